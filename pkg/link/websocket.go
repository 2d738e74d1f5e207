package link

import (
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/golang/glog"
	"golang.org/x/net/websocket"
)

// DialWebSocket connects a websocket peer. Each Write is sent as one
// binary message.
func DialWebSocket(rawURL string) (*ConnPort, error) {
	conn, err := websocket.Dial(rawURL, "", "http://localhost/")
	if err != nil {
		return nil, err
	}
	conn.PayloadType = websocket.BinaryFrame
	return NewConnPort(conn), nil
}

// WebSocketListener is a Port accepting websocket peers. The most recently
// connected peer is used, earlier ones are closed.
type WebSocketListener struct {
	listener net.Listener
	server   *http.Server

	lock    sync.Mutex
	conn    *websocket.Conn
	connCh  chan struct{}
	release chan struct{}
	closed  bool
}

// ListenWebSocket listens on addr and serves websocket peers at path.
func ListenWebSocket(addr, path string) (*WebSocketListener, error) {
	if path == "" {
		path = "/"
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	l := &WebSocketListener{
		listener: ln,
		connCh:   make(chan struct{}),
	}
	mux := http.NewServeMux()
	mux.Handle(path, websocket.Handler(l.serve))
	l.server = &http.Server{Handler: mux}
	go l.server.Serve(ln)
	glog.Infof("websocket listening on %s%s", ln.Addr(), path)
	return l, nil
}

// Addr returns the listening address.
func (l *WebSocketListener) Addr() net.Addr {
	return l.listener.Addr()
}

func (l *WebSocketListener) serve(conn *websocket.Conn) {
	conn.PayloadType = websocket.BinaryFrame
	release := make(chan struct{})
	l.lock.Lock()
	if l.closed {
		l.lock.Unlock()
		return
	}
	if l.release != nil {
		close(l.release)
	}
	l.conn, l.release = conn, release
	close(l.connCh)
	l.connCh = make(chan struct{})
	l.lock.Unlock()
	glog.Infof("websocket peer %s connected", conn.Request().RemoteAddr)
	// returning closes the conn.
	<-release
}

func (l *WebSocketListener) current() (*websocket.Conn, <-chan struct{}, error) {
	l.lock.Lock()
	defer l.lock.Unlock()
	if l.closed {
		return nil, nil, ErrClosed
	}
	return l.conn, l.connCh, nil
}

func (l *WebSocketListener) drop(conn *websocket.Conn) {
	l.lock.Lock()
	if l.conn == conn {
		l.conn = nil
		close(l.release)
		l.release = nil
	}
	l.lock.Unlock()
}

// Read implements Port. Without a peer it waits up to timeout for one.
func (l *WebSocketListener) Read(buf []byte, timeout time.Duration) (int, error) {
	start := time.Now()
	conn, connCh, err := l.current()
	if err != nil {
		return 0, err
	}
	if conn == nil {
		select {
		case <-connCh:
		case <-time.After(timeout):
			return 0, nil
		}
		if conn, _, err = l.current(); conn == nil {
			return 0, err
		}
		if timeout -= time.Since(start); timeout < 0 {
			timeout = 0
		}
	}
	n, err := readWithDeadline(conn, buf, timeout)
	if err != nil {
		glog.Warningf("websocket peer dropped: %v", err)
		l.drop(conn)
		return n, nil
	}
	return n, nil
}

// Write implements Port.
func (l *WebSocketListener) Write(buf []byte) (int, error) {
	conn, _, err := l.current()
	if err != nil {
		return 0, err
	}
	if conn == nil {
		return 0, ErrNotConnected
	}
	n, err := conn.Write(buf)
	if err != nil {
		l.drop(conn)
	}
	return n, err
}

// Close implements Port.
func (l *WebSocketListener) Close() error {
	l.lock.Lock()
	l.closed = true
	if l.release != nil {
		close(l.release)
		l.release, l.conn = nil, nil
	}
	l.lock.Unlock()
	return l.server.Close()
}
