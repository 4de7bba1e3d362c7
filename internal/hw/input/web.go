package input

import "sync/atomic"

// Web is armed by the HTTP panel. A single pending trigger is kept.
type Web struct {
	armed atomic.Bool
}

func NewWeb() *Web {
	return &Web{}
}

// Trigger arms the source. It returns false when a trigger is already pending.
func (w *Web) Trigger() bool {
	return w.armed.CompareAndSwap(false, true)
}

// Triggered consumes the pending trigger.
func (w *Web) Triggered() (bool, error) {
	return w.armed.CompareAndSwap(true, false), nil
}
