package exchange

import (
	"fmt"
	"sync"
	"time"

	"github.com/golang/glog"

	fx "github.com/robotalks/linkping/pkg/framework"
	"github.com/robotalks/linkping/pkg/frame"
)

// EventKind identifies an observable action of a controller.
type EventKind int

// Event kinds.
const (
	EventProbeSent EventKind = iota + 1
	EventReplyReceived
	EventWindowEmpty
	EventFrameReceived
	EventAckSent
	EventFrameRejected
	EventError
)

var eventKindNames = map[EventKind]string{
	EventProbeSent:     "probe-sent",
	EventReplyReceived: "reply-received",
	EventWindowEmpty:   "window-empty",
	EventFrameReceived: "frame-received",
	EventAckSent:       "ack-sent",
	EventFrameRejected: "frame-rejected",
	EventError:         "error",
}

// String implements fmt.Stringer.
func (k EventKind) String() string {
	if name, ok := eventKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("event(%d)", int(k))
}

// Event describes one observable action. Data is owned by the event.
type Event struct {
	Kind EventKind
	Time time.Time
	// Seq is the probe sequence for sender events, and the sequence of the
	// acknowledged probe when it's recognizable.
	Seq frame.Seq
	// Data is the frame sent or received.
	Data []byte
	// Written is the count returned by the transport for sends.
	Written int
	Err     error
}

// Partial indicates the transport accepted fewer bytes than the frame.
func (e *Event) Partial() bool {
	return (e.Kind == EventProbeSent || e.Kind == EventAckSent) &&
		e.Err == nil && e.Written != len(e.Data)
}

// Reporter receives events. Report must not block for long, it's called
// from the controller loop.
type Reporter interface {
	Report(Event)
}

// ReportFunc is func form of Reporter.
type ReportFunc func(Event)

// Report implements Reporter.
func (f ReportFunc) Report(ev Event) {
	f(ev)
}

// ReporterMux fans out events to multiple reporters.
type ReporterMux struct {
	Reporters []Reporter
	lock      sync.RWMutex
}

// Add adds more reporters.
func (m *ReporterMux) Add(reporters ...Reporter) *ReporterMux {
	m.lock.Lock()
	m.Reporters = append(m.Reporters, reporters...)
	m.lock.Unlock()
	return m
}

// Report implements Reporter.
func (m *ReporterMux) Report(ev Event) {
	m.lock.RLock()
	defer m.lock.RUnlock()
	for _, r := range m.Reporters {
		r.Report(ev)
	}
}

// AddToRunner starts the reporters which need to run in background.
func (m *ReporterMux) AddToRunner(runner *fx.Runner) {
	m.lock.RLock()
	defer m.lock.RUnlock()
	for _, r := range m.Reporters {
		if runnable, ok := r.(fx.Runnable); ok {
			runner.Go(runnable)
		}
	}
}

// LogReporter writes human readable diagnostics with glog.
type LogReporter struct{}

// Report implements Reporter.
func (LogReporter) Report(ev Event) {
	switch ev.Kind {
	case EventProbeSent:
		if ev.Err != nil {
			glog.Warningf(">> Send seq=%d failed: %v", ev.Seq, ev.Err)
			return
		}
		glog.Infof(">> Sent (%d bytes): '%s'", ev.Written, frame.Display(ev.Data))
		if ev.Partial() {
			glog.Warningf(">> Partial write seq=%d: %d of %d bytes", ev.Seq, ev.Written, len(ev.Data))
		}
	case EventReplyReceived:
		glog.Infof("<< Received (%d bytes): '%s'", len(ev.Data), frame.Display(ev.Data))
	case EventWindowEmpty:
		glog.V(1).Infof("-- No reply for seq=%d", ev.Seq)
	case EventFrameReceived:
		glog.Infof("RX (%d bytes): '%s'", len(ev.Data), frame.Display(ev.Data))
	case EventAckSent:
		if ev.Err != nil {
			glog.Warningf("TX ACK failed: %v", ev.Err)
			return
		}
		glog.Infof("TX ACK (%d bytes)", ev.Written)
		if ev.Partial() {
			glog.Warningf("TX ACK partial write: %d of %d bytes", ev.Written, len(ev.Data))
		}
	case EventFrameRejected:
		glog.Warningf("RX rejected (%d bytes): '%s'", len(ev.Data), frame.Display(ev.Data))
	case EventError:
		glog.Errorf("link error: %v", ev.Err)
	}
}
