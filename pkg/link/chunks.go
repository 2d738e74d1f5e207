package link

import (
	"sync"
	"time"
)

// chunkQueue turns a sequence of written chunks into a byte stream.
// A read returns at most one chunk, the unread tail of a chunk is
// returned by the next read.
type chunkQueue struct {
	ch     chan []byte
	done   chan struct{}
	once   sync.Once
	rest   []byte
	readMu sync.Mutex
}

const chunkQueueSize = 64

func newChunkQueue() *chunkQueue {
	return &chunkQueue{
		ch:   make(chan []byte, chunkQueueSize),
		done: make(chan struct{}),
	}
}

func (q *chunkQueue) push(p []byte) error {
	chunk := append([]byte(nil), p...)
	select {
	case <-q.done:
		return ErrClosed
	default:
	}
	select {
	case q.ch <- chunk:
		return nil
	case <-q.done:
		return ErrClosed
	}
}

func (q *chunkQueue) read(p []byte, timeout time.Duration) (int, error) {
	q.readMu.Lock()
	defer q.readMu.Unlock()
	if len(q.rest) == 0 {
		var timer <-chan time.Time
		if timeout >= 0 {
			t := time.NewTimer(timeout)
			defer t.Stop()
			timer = t.C
		}
		select {
		case q.rest = <-q.ch:
		case <-timer:
			return 0, nil
		case <-q.done:
			return 0, ErrClosed
		}
	}
	n := copy(p, q.rest)
	q.rest = q.rest[n:]
	return n, nil
}

func (q *chunkQueue) close() {
	q.once.Do(func() { close(q.done) })
}
