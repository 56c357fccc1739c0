package transfer

import "sync/atomic"

// StopToken is the cooperative cancellation signal for a batch. Setting it
// does not interrupt a native call; it only changes the answer to the next
// transfer-ready signal.
type StopToken struct {
	stop atomic.Bool
}

// Stop requests cancellation. Safe from any goroutine.
func (t *StopToken) Stop() { t.stop.Store(true) }

func (t *StopToken) Stopped() bool { return t.stop.Load() }

// Reset clears the token at the start of a scan.
func (t *StopToken) Reset() { t.stop.Store(false) }
