package exchange

import (
	"fmt"
	"sync/atomic"
)

// Stats counts controller events. It's safe to read while the
// controller is running.
type Stats struct {
	probes, replies, emptyWindows uint64
	frames, acks, rejected        uint64
	partialWrites, errors         uint64
}

// StatsSnapshot is a copy of Stats counters.
type StatsSnapshot struct {
	Probes        uint64 `json:"probes"`
	Replies       uint64 `json:"replies"`
	EmptyWindows  uint64 `json:"empty_windows"`
	Frames        uint64 `json:"frames"`
	Acks          uint64 `json:"acks"`
	Rejected      uint64 `json:"rejected"`
	PartialWrites uint64 `json:"partial_writes"`
	Errors        uint64 `json:"errors"`
}

// Report implements Reporter.
func (s *Stats) Report(ev Event) {
	switch ev.Kind {
	case EventProbeSent:
		atomic.AddUint64(&s.probes, 1)
	case EventReplyReceived:
		atomic.AddUint64(&s.replies, 1)
	case EventWindowEmpty:
		atomic.AddUint64(&s.emptyWindows, 1)
	case EventFrameReceived:
		atomic.AddUint64(&s.frames, 1)
	case EventAckSent:
		atomic.AddUint64(&s.acks, 1)
	case EventFrameRejected:
		atomic.AddUint64(&s.rejected, 1)
	}
	if ev.Err != nil {
		atomic.AddUint64(&s.errors, 1)
	} else if ev.Partial() {
		atomic.AddUint64(&s.partialWrites, 1)
	}
}

// Snapshot copies the counters.
func (s *Stats) Snapshot() StatsSnapshot {
	return StatsSnapshot{
		Probes:        atomic.LoadUint64(&s.probes),
		Replies:       atomic.LoadUint64(&s.replies),
		EmptyWindows:  atomic.LoadUint64(&s.emptyWindows),
		Frames:        atomic.LoadUint64(&s.frames),
		Acks:          atomic.LoadUint64(&s.acks),
		Rejected:      atomic.LoadUint64(&s.rejected),
		PartialWrites: atomic.LoadUint64(&s.partialWrites),
		Errors:        atomic.LoadUint64(&s.errors),
	}
}

// String implements fmt.Stringer.
func (s StatsSnapshot) String() string {
	return fmt.Sprintf("probes=%d replies=%d empty=%d frames=%d acks=%d rejected=%d partial=%d errors=%d",
		s.Probes, s.Replies, s.EmptyWindows, s.Frames, s.Acks, s.Rejected, s.PartialWrites, s.Errors)
}
