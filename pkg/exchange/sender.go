package exchange

import (
	"context"
	"time"

	"github.com/robotalks/linkping/pkg/frame"
	"github.com/robotalks/linkping/pkg/link"
)

// Sender defaults.
const (
	DefaultSenderPollTimeout = 50 * time.Millisecond
	DefaultWindow            = 500 * time.Millisecond
	DefaultInterval          = 500 * time.Millisecond
)

// RecvBufferSize is the capacity of a controller receive buffer. A read
// fills at most RecvBufferSize-1 bytes.
const RecvBufferSize = 256

// Sender emits probes and listens for replies: EMIT -> LISTEN -> IDLE.
type Sender struct {
	Port link.Port
	// PollTimeout bounds a single read while listening.
	PollTimeout time.Duration
	// Window is how long replies are awaited after a probe.
	Window time.Duration
	// Interval is the idle time between the end of a window and the next probe.
	Interval time.Duration
	// MaxProbes stops Run after that many probes, 0 runs until canceled.
	MaxProbes uint64
	// Framing selects how replies are split for reporting.
	Framing  Framing
	Reporter Reporter

	seq     frame.Seq
	emitted uint64
	probe   [frame.ProbeMaxLen]byte
	buf     [RecvBufferSize]byte
	asm     frame.Assembler
	stats   Stats
}

// NewSender creates a Sender with defaults.
func NewSender(port link.Port) *Sender {
	return &Sender{
		Port:        port,
		PollTimeout: DefaultSenderPollTimeout,
		Window:      DefaultWindow,
		Interval:    DefaultInterval,
	}
}

// Name implements Named.
func (s *Sender) Name() string {
	return RoleSender.String()
}

// Seq returns the sequence of the last probe, 0 if none is emitted.
func (s *Sender) Seq() frame.Seq {
	return s.seq
}

// Stats returns the counters.
func (s *Sender) Stats() *Stats {
	return &s.stats
}

// Run implements Runnable.
func (s *Sender) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		s.Emit()
		if _, err := s.Listen(ctx); err != nil {
			return err
		}
		if s.MaxProbes > 0 && s.emitted >= s.MaxProbes {
			return nil
		}
		if err := s.Idle(ctx); err != nil {
			return err
		}
	}
}

// Emit sends the probe with the next sequence number. The result of the
// write is reported and doesn't affect the sequence.
func (s *Sender) Emit() frame.Seq {
	s.seq = s.seq.Next()
	s.emitted++
	data, err := frame.AppendProbe(s.probe[:0], s.seq)
	if err != nil {
		// probe buffer is sized for the largest sequence.
		panic(err)
	}
	n, err := s.Port.Write(data)
	s.report(Event{
		Kind:    EventProbeSent,
		Seq:     s.seq,
		Data:    append([]byte(nil), data...),
		Written: n,
		Err:     err,
	})
	return s.seq
}

// Listen polls for replies until Window elapses and returns the number of
// replies. No reply isn't an error, only ctx errors are returned.
func (s *Sender) Listen(ctx context.Context) (replies int, err error) {
	deadline := time.Now().Add(s.Window)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			break
		}
		if err = ctx.Err(); err != nil {
			return
		}
		timeout := s.PollTimeout
		if timeout > remaining {
			timeout = remaining
		}
		n, rerr := s.Port.Read(s.buf[:len(s.buf)-1], timeout)
		if rerr != nil {
			s.report(Event{Kind: EventError, Seq: s.seq, Err: rerr})
			if err = sleep(ctx, timeout); err != nil {
				return
			}
			continue
		}
		if n > 0 {
			replies += s.received(s.buf[:n])
		}
	}
	if replies == 0 {
		s.report(Event{Kind: EventWindowEmpty, Seq: s.seq})
	}
	return replies, nil
}

// Idle waits Interval before the next probe, returning early when ctx is
// done.
func (s *Sender) Idle(ctx context.Context) error {
	return sleep(ctx, s.Interval)
}

func (s *Sender) received(data []byte) int {
	frames := s.Framing.split(&s.asm, data)
	for _, f := range frames {
		ev := Event{Kind: EventReplyReceived, Data: append([]byte(nil), f...)}
		if payload, ok := frame.ParseAck(f); ok {
			ev.Seq, _ = frame.ParseProbe(payload)
		}
		s.report(ev)
	}
	return len(frames)
}

func (s *Sender) report(ev Event) {
	report(&s.stats, s.Reporter, ev)
}

func report(stats *Stats, reporter Reporter, ev Event) {
	ev.Time = time.Now()
	stats.Report(ev)
	if reporter != nil {
		reporter.Report(ev)
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
