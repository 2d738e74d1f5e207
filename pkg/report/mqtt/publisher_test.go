package mqtt

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/linkping/pkg/exchange"
	"github.com/robotalks/linkping/pkg/frame"
)

func TestEncodeEvent(t *testing.T) {
	now := time.Now()
	payload, err := EncodeEvent("node1", "receiver", exchange.Event{
		Kind:    exchange.EventAckSent,
		Time:    now,
		Seq:     frame.Seq(7),
		Data:    []byte("ACK:PING 7\r\n"),
		Written: 12,
		Err:     errors.New("short write"),
	})
	require.NoError(t, err)
	msg, err := DecodeEvent(payload)
	require.NoError(t, err)
	require.Equal(t, "node1", msg.Node)
	require.Equal(t, "receiver", msg.Role)
	require.Equal(t, "ack-sent", msg.Kind)
	require.Equal(t, uint32(7), msg.Seq)
	require.Equal(t, []byte("ACK:PING 7\r\n"), msg.Data)
	require.Equal(t, int32(12), msg.Written)
	require.Equal(t, "short write", msg.Error)
	require.Equal(t, now.UnixNano(), msg.TimeUnixNano)

	_, err = DecodeEvent([]byte{0xff})
	require.Error(t, err)
}

func TestPublisherDrops(t *testing.T) {
	p := NewPublisher(nil, "node1", "sender")
	require.Equal(t, "node1/events", p.Topic())
	for n := 0; n < QueueSize+3; n++ {
		p.Report(exchange.Event{Kind: exchange.EventProbeSent})
	}
	require.Equal(t, uint64(3), p.Dropped())
}
