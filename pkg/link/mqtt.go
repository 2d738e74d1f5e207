package link

import (
	"fmt"
	"net/url"
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/linkping/pkg/mqtt"
)

// MQTTPort carries the byte stream over an MQTT broker. Side "a" publishes
// to <prefix>link/a and reads <prefix>link/b, side "b" the opposite.
type MQTTPort struct {
	Queue    *mqtt.Queue
	TxTopic  string
	RxTopic  string
	PubWait  time.Duration
	sub      *mqtt.Subscription
	incoming *chunkQueue
}

// DefaultPubWait bounds how long a write waits for the broker.
const DefaultPubWait = time.Second

// OpenMQTT connects the broker, e.g. mqtt://localhost:1883/linkping/?side=b
func OpenMQTT(brokerURL string) (*MQTTPort, error) {
	u, err := url.Parse(brokerURL)
	if err != nil {
		return nil, err
	}
	tx, rx, err := SideTopics(u.Query().Get("side"))
	if err != nil {
		return nil, err
	}
	q, err := mqtt.NewQueueFromURL(brokerURL)
	if err != nil {
		return nil, err
	}
	p := &MQTTPort{
		Queue:    q,
		TxTopic:  tx,
		RxTopic:  rx,
		PubWait:  DefaultPubWait,
		incoming: newChunkQueue(),
	}
	if err = q.Connect(); err != nil {
		return nil, err
	}
	p.sub = q.Sub(rx, p.handleMsg)
	p.sub.Token.Wait()
	if err = p.sub.Token.Error(); err != nil {
		q.Close()
		return nil, err
	}
	return p, nil
}

// SideTopics returns the topics a side publishes to and reads from.
// An empty side is "a".
func SideTopics(side string) (tx, rx string, err error) {
	tx, rx = "link/a", "link/b"
	switch side {
	case "", "a":
	case "b":
		tx, rx = rx, tx
	default:
		err = fmt.Errorf("invalid side %q", side)
	}
	return
}

// handleMsg runs in the paho callback and never blocks it.
func (p *MQTTPort) handleMsg(topic string, payload []byte) {
	select {
	case p.incoming.ch <- append([]byte(nil), payload...):
	default:
		glog.Warningf("%s: %d bytes dropped, reader too slow", topic, len(payload))
	}
}

// Read implements Port.
func (p *MQTTPort) Read(buf []byte, timeout time.Duration) (int, error) {
	return p.incoming.read(buf, timeout)
}

// Write implements Port.
func (p *MQTTPort) Write(buf []byte) (int, error) {
	token := p.Queue.Pub(p.TxTopic, append([]byte(nil), buf...))
	if !token.WaitTimeout(p.PubWait) {
		return 0, fmt.Errorf("publish %s timeout", p.TxTopic)
	}
	if err := token.Error(); err != nil {
		return 0, err
	}
	return len(buf), nil
}

// Close implements Port.
func (p *MQTTPort) Close() error {
	p.incoming.close()
	return p.Queue.Close()
}
