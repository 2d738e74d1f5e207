package exchange

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/linkping/pkg/frame"
	"github.com/robotalks/linkping/pkg/link"
)

type recorder struct {
	lock   sync.Mutex
	events []Event
}

func (r *recorder) Report(ev Event) {
	r.lock.Lock()
	r.events = append(r.events, ev)
	r.lock.Unlock()
}

func (r *recorder) of(kind EventKind) (events []Event) {
	r.lock.Lock()
	defer r.lock.Unlock()
	for _, ev := range r.events {
		if ev.Kind == kind {
			events = append(events, ev)
		}
	}
	return
}

// failingPort never delivers bytes and fails every write.
type failingPort struct {
	writes int
}

func (p *failingPort) Read(buf []byte, timeout time.Duration) (int, error) {
	time.Sleep(timeout)
	return 0, nil
}

func (p *failingPort) Write(buf []byte) (int, error) {
	p.writes++
	return 0, errors.New("unplugged")
}

func (p *failingPort) Close() error { return nil }

func readChunk(t *testing.T, p link.Port) []byte {
	buf := make([]byte, 512)
	n, err := p.Read(buf, time.Second)
	require.NoError(t, err)
	require.NotZero(t, n, "read timeout")
	return buf[:n]
}

func expectSilence(t *testing.T, p link.Port) {
	buf := make([]byte, 512)
	n, err := p.Read(buf, 20*time.Millisecond)
	require.NoError(t, err)
	require.Zero(t, n, "unexpected %q", buf[:n])
}

func fastSender(port link.Port) *Sender {
	s := NewSender(port)
	s.PollTimeout, s.Window, s.Interval = time.Millisecond, 3*time.Millisecond, 0
	return s
}

func TestSenderSequence(t *testing.T) {
	a, b := newTestPipe(t)
	s := fastSender(a)
	s.MaxProbes = 20
	require.Zero(t, s.Seq())
	require.NoError(t, s.Run(context.Background()))
	require.Equal(t, frame.Seq(20), s.Seq())

	for n := 1; n <= 20; n++ {
		seq, ok := frame.ParseProbe(readChunk(t, b))
		require.True(t, ok)
		require.Equal(t, frame.Seq(n), seq)
	}
	stats := s.Stats().Snapshot()
	require.Equal(t, uint64(20), stats.Probes)
	require.Equal(t, uint64(20), stats.EmptyWindows)
	require.Zero(t, stats.Replies)
}

func TestSenderReplyKeepsSeq(t *testing.T) {
	a, b := newTestPipe(t)
	var rec recorder
	s := NewSender(a)
	s.Window, s.Reporter = 50*time.Millisecond, &rec
	r := NewReceiver(b)

	require.Equal(t, frame.Seq(1), s.Emit())
	n, err := r.Poll()
	require.NoError(t, err)
	require.Equal(t, len("PING 1\r\n"), n)

	replies, err := s.Listen(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, replies)
	require.Equal(t, frame.Seq(1), s.Seq())

	evs := rec.of(EventReplyReceived)
	require.Len(t, evs, 1)
	require.Equal(t, []byte("ACK:PING 1\r\n"), evs[0].Data)
	require.Equal(t, frame.Seq(1), evs[0].Seq)
	require.Empty(t, rec.of(EventWindowEmpty))

	require.Equal(t, frame.Seq(2), s.Emit())
	require.Equal(t, []byte("PING 2\r\n"), readChunk(t, b))
}

func TestSenderReplyDataOwned(t *testing.T) {
	a, b := newTestPipe(t)
	var rec recorder
	s := NewSender(a)
	s.Window, s.Reporter = 50*time.Millisecond, &rec

	s.Emit()
	require.Equal(t, []byte("PING 1\r\n"), readChunk(t, b))
	_, err := b.Write([]byte("ACK:PING 1\r\n"))
	require.NoError(t, err)
	_, err = b.Write([]byte("XXXXXXXXXXXX"))
	require.NoError(t, err)

	replies, err := s.Listen(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, replies)
	evs := rec.of(EventReplyReceived)
	require.Len(t, evs, 2)
	require.Equal(t, []byte("ACK:PING 1\r\n"), evs[0].Data)
	require.Equal(t, frame.Seq(1), evs[0].Seq)
	require.Equal(t, []byte("XXXXXXXXXXXX"), evs[1].Data)
}

func TestSenderIdle(t *testing.T) {
	s := NewSender(&failingPort{})
	s.Interval = 30 * time.Millisecond
	start := time.Now()
	require.NoError(t, s.Idle(context.Background()))
	require.True(t, time.Since(start) >= s.Interval)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s.Interval = time.Hour
	require.Equal(t, context.Canceled, s.Idle(ctx))

	s.Interval = 0
	require.NoError(t, s.Idle(context.Background()))
}

func TestSenderNoReplyProgresses(t *testing.T) {
	a, b := newTestPipe(t)
	var rec recorder
	s := fastSender(a)
	s.MaxProbes, s.Reporter = 2, &rec
	require.NoError(t, s.Run(context.Background()))

	require.Equal(t, []byte("PING 1\r\n"), readChunk(t, b))
	require.Equal(t, []byte("PING 2\r\n"), readChunk(t, b))
	empty := rec.of(EventWindowEmpty)
	require.Len(t, empty, 2)
	require.Equal(t, frame.Seq(1), empty[0].Seq)
	require.Equal(t, frame.Seq(2), empty[1].Seq)
}

func TestSenderWriteFailure(t *testing.T) {
	port := &failingPort{}
	var rec recorder
	s := fastSender(port)
	s.MaxProbes, s.Reporter = 3, &rec
	require.NoError(t, s.Run(context.Background()))
	require.Equal(t, 3, port.writes)
	require.Equal(t, frame.Seq(3), s.Seq())
	sent := rec.of(EventProbeSent)
	require.Len(t, sent, 3)
	for _, ev := range sent {
		require.Error(t, ev.Err)
		require.False(t, ev.Partial())
	}
	require.Equal(t, uint64(3), s.Stats().Snapshot().Errors)
}

func TestSenderCancel(t *testing.T) {
	a, _ := newTestPipe(t)
	s := NewSender(a)
	s.Window, s.Interval = time.Minute, time.Minute
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- s.Run(ctx) }()
	time.Sleep(20 * time.Millisecond)
	cancel()
	select {
	case err := <-errCh:
		require.Equal(t, context.Canceled, err)
	case <-time.After(time.Second):
		t.Fatal("sender didn't stop")
	}
	require.Equal(t, frame.Seq(1), s.Seq())
}

func TestSenderLineFraming(t *testing.T) {
	a, b := newTestPipe(t)
	var rec recorder
	s := NewSender(a)
	s.Window, s.Framing, s.Reporter = 100*time.Millisecond, FramingLine, &rec
	s.Emit()
	b.Write([]byte("ACK:PI"))
	b.Write([]byte("NG 1\r\nACK:"))
	replies, err := s.Listen(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, replies)
	evs := rec.of(EventReplyReceived)
	require.Len(t, evs, 1)
	require.Equal(t, []byte("ACK:PING 1\r\n"), evs[0].Data)
	require.Equal(t, frame.Seq(1), evs[0].Seq)
}

func TestReceiverAck(t *testing.T) {
	testCases := []struct {
		name    string
		payload []byte
	}{
		{"probe", []byte("PING 1\r\n")},
		{"single byte", []byte{'x'}},
		{"binary", []byte{0, 0xff, '\r', 0x80}},
		{"full buffer", bytes.Repeat([]byte{'a'}, RecvBufferSize-1)},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			a, b := newTestPipe(t)
			r := NewReceiver(a)
			_, err := b.Write(tc.payload)
			require.NoError(t, err)
			n, err := r.Poll()
			require.NoError(t, err)
			require.Equal(t, len(tc.payload), n)
			require.Equal(t, append([]byte("ACK:"), tc.payload...), readChunk(t, b))
			stats := r.Stats().Snapshot()
			require.Equal(t, uint64(1), stats.Frames)
			require.Equal(t, uint64(1), stats.Acks)
		})
	}
}

func TestReceiverScenario(t *testing.T) {
	a, b := newTestPipe(t)
	r := NewReceiver(a)
	b.Write(frame.EncodeProbe(1))
	_, err := r.Poll()
	require.NoError(t, err)
	require.Equal(t, "ACK:PING 1\r\n", string(readChunk(t, b)))
}

func TestReceiverZeroRead(t *testing.T) {
	a, b := newTestPipe(t)
	r := NewReceiver(a)
	r.PollTimeout = 5 * time.Millisecond
	n, err := r.Poll()
	require.NoError(t, err)
	require.Zero(t, n)
	expectSilence(t, b)
	require.Equal(t, StatsSnapshot{}, r.Stats().Snapshot())
}

func TestReceiverLongRead(t *testing.T) {
	a, b := newTestPipe(t)
	r := NewReceiver(a)
	payload := bytes.Repeat([]byte{'b'}, 300)
	b.Write(payload)

	n, err := r.Poll()
	require.NoError(t, err)
	require.Equal(t, RecvBufferSize-1, n)
	n, err = r.Poll()
	require.NoError(t, err)
	require.Equal(t, 300-(RecvBufferSize-1), n)

	ack := readChunk(t, b)
	require.Equal(t, append([]byte("ACK:"), payload[:RecvBufferSize-1]...), ack)
	ack = readChunk(t, b)
	require.Equal(t, append([]byte("ACK:"), payload[RecvBufferSize-1:]...), ack)
}

func TestReceiverStrict(t *testing.T) {
	a, b := newTestPipe(t)
	var rec recorder
	r := NewReceiver(a)
	r.Strict, r.Reporter = true, &rec

	b.Write([]byte("hello"))
	_, err := r.Poll()
	require.NoError(t, err)
	expectSilence(t, b)
	require.Len(t, rec.of(EventFrameRejected), 1)

	b.Write([]byte("PING 5\r\n"))
	_, err = r.Poll()
	require.NoError(t, err)
	require.Equal(t, "ACK:PING 5\r\n", string(readChunk(t, b)))
	acks := rec.of(EventAckSent)
	require.Len(t, acks, 1)
	require.Equal(t, frame.Seq(5), acks[0].Seq)
}

func TestReceiverLineFraming(t *testing.T) {
	a, b := newTestPipe(t)
	r := NewReceiver(a)
	r.Framing = FramingLine

	b.Write([]byte("PING 1\r\nPING 2\r\nPI"))
	_, err := r.Poll()
	require.NoError(t, err)
	require.Equal(t, "ACK:PING 1\r\n", string(readChunk(t, b)))
	require.Equal(t, "ACK:PING 2\r\n", string(readChunk(t, b)))
	expectSilence(t, b)

	b.Write([]byte("NG 3\r\n"))
	_, err = r.Poll()
	require.NoError(t, err)
	require.Equal(t, "ACK:PING 3\r\n", string(readChunk(t, b)))
}

func TestReceiverReplyOverflow(t *testing.T) {
	a, b := newTestPipe(t)
	r := NewReceiver(a)
	err := r.Reply(make([]byte, RecvBufferSize+1))
	require.True(t, errors.Is(err, frame.ErrEncodingOverflow))
	expectSilence(t, b)
}

func TestReceiverClosed(t *testing.T) {
	a, _ := newTestPipe(t)
	r := NewReceiver(a)
	a.Close()
	err := r.Run(context.Background())
	require.Equal(t, link.ErrClosed, err)
}

func TestExchange(t *testing.T) {
	a, b := newTestPipe(t)
	s := NewSender(a)
	s.PollTimeout, s.Window, s.Interval, s.MaxProbes = 5*time.Millisecond, 50*time.Millisecond, time.Millisecond, 3
	r := NewReceiver(b)
	r.PollTimeout = 5 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	errCh := make(chan error, 1)
	go func() { errCh <- r.Run(ctx) }()

	require.NoError(t, s.Run(ctx))
	cancel()
	require.Equal(t, context.Canceled, <-errCh)

	sent, recv := s.Stats().Snapshot(), r.Stats().Snapshot()
	require.Equal(t, uint64(3), sent.Probes)
	require.Equal(t, uint64(3), sent.Replies)
	require.Zero(t, sent.EmptyWindows)
	require.Equal(t, uint64(3), recv.Frames)
	require.Equal(t, uint64(3), recv.Acks)
}

// newTestPipe creates a pipe closed at the end of the test.
func newTestPipe(t *testing.T) (link.Port, link.Port) {
	a, b := link.NewPipe()
	t.Cleanup(func() { a.Close() })
	return a, b
}
