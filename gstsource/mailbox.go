package gstsource

import (
	"sync/atomic"

	camstream "github.com/duncanrhamill/cv-camstream"
)

// mailbox is a single-slot frame buffer with latest-wins semantics. The
// GStreamer streaming thread publishes into it without ever blocking;
// when a frame is still sitting in the slot it is dropped in favour of
// the newer one.
type mailbox struct {
	ch      chan camstream.RawFrame
	dropped atomic.Uint64
}

func newMailbox() *mailbox {
	return &mailbox{ch: make(chan camstream.RawFrame, 1)}
}

// put publishes a frame, displacing an undelivered older one if needed.
// Only the single streaming thread calls put, so the drain-retry loop
// terminates.
func (m *mailbox) put(raw camstream.RawFrame) {
	for {
		select {
		case m.ch <- raw:
			return
		default:
		}
		select {
		case <-m.ch:
			m.dropped.Add(1)
		default:
		}
	}
}

// discard throws away a frame left over from before the caller started
// waiting, so the next take observes a fresh delivery.
func (m *mailbox) discard() {
	select {
	case <-m.ch:
	default:
	}
}
