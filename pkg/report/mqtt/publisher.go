// Package mqtt publishes exchange events to an MQTT broker.
package mqtt

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/golang/glog"
	"github.com/golang/protobuf/proto"

	"github.com/robotalks/linkping/pkg/exchange"
	"github.com/robotalks/linkping/pkg/mqtt"
	pb "github.com/robotalks/linkping/pkg/proto/linkping/v1"
)

// EventsTopic is the topic suffix events are published to: <node>/events.
const EventsTopic = "events"

// QueueSize is the number of events buffered before dropping.
const QueueSize = 64

// PubTimeout bounds the wait for a single publish.
const PubTimeout = time.Second

// Publisher implements exchange.Reporter. Events are queued and published
// by Run, Report never blocks the controller.
type Publisher struct {
	Queue *mqtt.Queue
	Node  string
	Role  string

	events  chan exchange.Event
	dropped uint64
}

// NewPublisher creates a Publisher.
func NewPublisher(q *mqtt.Queue, node, role string) *Publisher {
	return &Publisher{
		Queue:  q,
		Node:   node,
		Role:   role,
		events: make(chan exchange.Event, QueueSize),
	}
}

// Topic returns the topic events are published to.
func (p *Publisher) Topic() string {
	return p.Node + "/" + EventsTopic
}

// Name implements Named.
func (p *Publisher) Name() string {
	return "mqtt-events"
}

// Dropped returns the number of events dropped because the queue was full.
func (p *Publisher) Dropped() uint64 {
	return atomic.LoadUint64(&p.dropped)
}

// Report implements exchange.Reporter.
func (p *Publisher) Report(ev exchange.Event) {
	select {
	case p.events <- ev:
	default:
		atomic.AddUint64(&p.dropped, 1)
	}
}

// Run implements Runnable.
func (p *Publisher) Run(ctx context.Context) error {
	defer p.Queue.Close()
	for {
		select {
		case <-ctx.Done():
			p.flush()
			return ctx.Err()
		case ev := <-p.events:
			p.publish(ev)
		}
	}
}

// flush publishes the events already queued.
func (p *Publisher) flush() {
	for {
		select {
		case ev := <-p.events:
			p.publish(ev)
		default:
			return
		}
	}
}

func (p *Publisher) publish(ev exchange.Event) {
	payload, err := EncodeEvent(p.Node, p.Role, ev)
	if err != nil {
		glog.Errorf("encode event: %v", err)
		return
	}
	token := p.Queue.Pub(p.Topic(), payload)
	if !token.WaitTimeout(PubTimeout) {
		glog.Warningf("publish %s timeout", p.Topic())
	} else if err = token.Error(); err != nil {
		glog.Warningf("publish %s: %v", p.Topic(), err)
	}
}

// EncodeEvent encodes an event into protobuf.
func EncodeEvent(node, role string, ev exchange.Event) ([]byte, error) {
	msg := &pb.Event{
		Node:         node,
		Role:         role,
		Kind:         ev.Kind.String(),
		Seq:          uint32(ev.Seq),
		Data:         ev.Data,
		Written:      int32(ev.Written),
		TimeUnixNano: ev.Time.UnixNano(),
	}
	if ev.Err != nil {
		msg.Error = ev.Err.Error()
	}
	return proto.Marshal(msg)
}

// DecodeEvent decodes a published event.
func DecodeEvent(payload []byte) (*pb.Event, error) {
	msg := &pb.Event{}
	if err := proto.Unmarshal(payload, msg); err != nil {
		return nil, err
	}
	return msg, nil
}
