package exchange

import (
	"context"
	"errors"
	"time"

	"github.com/robotalks/linkping/pkg/frame"
	"github.com/robotalks/linkping/pkg/link"
)

// DefaultReceiverPollTimeout is the default timeout of a receiver read.
const DefaultReceiverPollTimeout = 100 * time.Millisecond

// AckBufferLen is the size of the ack buffer, enough for any read.
const AckBufferLen = len(frame.AckPrefix) + RecvBufferSize

// Receiver answers every frame read with an ack: LISTEN -> REPLY -> LISTEN.
// It never sends on its own.
type Receiver struct {
	Port        link.Port
	PollTimeout time.Duration
	// Framing selects how bytes read are split into frames to ack.
	Framing Framing
	// Strict acks well-formed probes only, other frames are rejected.
	Strict   bool
	Reporter Reporter

	buf   [RecvBufferSize]byte
	out   [AckBufferLen]byte
	asm   frame.Assembler
	stats Stats
}

// NewReceiver creates a Receiver with defaults.
func NewReceiver(port link.Port) *Receiver {
	return &Receiver{Port: port, PollTimeout: DefaultReceiverPollTimeout}
}

// Name implements Named.
func (r *Receiver) Name() string {
	return RoleReceiver.String()
}

// Stats returns the counters.
func (r *Receiver) Stats() *Stats {
	return &r.stats
}

// Run implements Runnable.
func (r *Receiver) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, err := r.Poll(); err != nil {
			if errors.Is(err, link.ErrClosed) || errors.Is(err, frame.ErrEncodingOverflow) {
				return err
			}
			if err = sleep(ctx, r.PollTimeout); err != nil {
				return err
			}
		}
	}
}

// Poll reads once and replies to the frames read. It returns the number
// of bytes read, 0 on timeout.
func (r *Receiver) Poll() (int, error) {
	n, err := r.Port.Read(r.buf[:len(r.buf)-1], r.PollTimeout)
	if err != nil {
		r.report(Event{Kind: EventError, Err: err})
		return 0, err
	}
	if n == 0 {
		return 0, nil
	}
	for _, f := range r.Framing.split(&r.asm, r.buf[:n]) {
		if err = r.Reply(f); err != nil {
			return n, err
		}
	}
	return n, nil
}

// Reply acks data verbatim, unless rejected in strict mode.
func (r *Receiver) Reply(data []byte) error {
	seq, isProbe := frame.ParseProbe(data)
	r.report(Event{Kind: EventFrameReceived, Seq: seq, Data: append([]byte(nil), data...)})
	if r.Strict && !isProbe {
		r.report(Event{Kind: EventFrameRejected, Data: append([]byte(nil), data...)})
		return nil
	}
	ack, err := frame.AppendAck(r.out[:0], data)
	if err != nil {
		r.report(Event{Kind: EventError, Err: err})
		return err
	}
	n, err := r.Port.Write(ack)
	r.report(Event{
		Kind:    EventAckSent,
		Seq:     seq,
		Data:    append([]byte(nil), ack...),
		Written: n,
		Err:     err,
	})
	return err
}

func (r *Receiver) report(ev Event) {
	report(&r.stats, r.Reporter, ev)
}
