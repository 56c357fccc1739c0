package device

import (
	"context"
	"runtime"
	"sync"
)

// Loop is the device-owning goroutine. Once Run is called, every task
// submitted with Post or Invoke executes on the same locked OS thread, in
// submission order.
type Loop struct {
	tasks chan func()
	done  chan struct{}

	stopOnce sync.Once
}

var _ Dispatcher = &Loop{}

func NewLoop() *Loop {
	return &Loop{
		tasks: make(chan func(), 100),
		done:  make(chan struct{}),
	}
}

// Run processes tasks until ctx is cancelled. Tasks still queued when Run
// returns are dropped.
func (l *Loop) Run(ctx context.Context) error {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	defer l.stopOnce.Do(func() { close(l.done) })

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case task := <-l.tasks:
			task()
		}
	}
}

// Done is closed once Run has returned.
func (l *Loop) Done() <-chan struct{} { return l.done }

// Post queues f for execution on the loop. It returns false if the loop has
// stopped.
func (l *Loop) Post(f func()) bool {
	select {
	case <-l.done:
		return false
	default:
	}
	select {
	case l.tasks <- f:
		return true
	case <-l.done:
		return false
	}
}

// Invoke runs f on the loop and waits for its result.
//
// Invoke must not be called from the loop itself.
func (l *Loop) Invoke(ctx context.Context, f func() error) error {
	res := make(chan error, 1)
	if !l.Post(func() { res <- f() }) {
		return ErrLoopStopped
	}
	select {
	case err := <-res:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-l.done:
		select {
		case err := <-res:
			return err
		default:
			return ErrLoopStopped
		}
	}
}
