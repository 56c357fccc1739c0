package device

import "log/slog"

// CapabilitySet is a read-only snapshot of device capabilities, taken when
// the source is enabled. It must not be reused across open cycles.
type CapabilitySet map[Capability]bool

// Has reports whether c was queried and is supported.
func (cs CapabilitySet) Has(c Capability) bool { return cs[c] }

// QueryCapabilities asks d for each capability. A failed query is logged and
// recorded as unsupported.
func QueryCapabilities(d Driver, log *slog.Logger, caps ...Capability) CapabilitySet {
	cs := make(CapabilitySet, len(caps))
	for _, c := range caps {
		ok, err := d.Supports(c)
		if err != nil {
			log.Warn("capability query failed", "cap", string(c), "err", err)
			ok = false
		}
		cs[c] = ok
	}
	return cs
}
