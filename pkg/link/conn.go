package link

import (
	"io"
	"net"
	"os"
	"time"
)

// DeadlineConn is a stream supporting read deadlines, e.g. net.Conn.
type DeadlineConn interface {
	io.ReadWriteCloser
	SetReadDeadline(time.Time) error
}

// ConnPort is a Port over a DeadlineConn.
type ConnPort struct {
	Conn DeadlineConn
}

// NewConnPort wraps conn.
func NewConnPort(conn DeadlineConn) *ConnPort {
	return &ConnPort{Conn: conn}
}

// DialTCP connects a TCP serial bridge (e.g. ser2net).
func DialTCP(addr string) (*ConnPort, error) {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, err
	}
	return NewConnPort(conn), nil
}

// Read implements Port.
func (p *ConnPort) Read(buf []byte, timeout time.Duration) (int, error) {
	return readWithDeadline(p.Conn, buf, timeout)
}

// Write implements Port.
func (p *ConnPort) Write(buf []byte) (int, error) {
	return p.Conn.Write(buf)
}

// Close implements Port.
func (p *ConnPort) Close() error {
	return p.Conn.Close()
}

func readWithDeadline(conn DeadlineConn, buf []byte, timeout time.Duration) (int, error) {
	var deadline time.Time
	if timeout >= 0 {
		deadline = time.Now().Add(timeout)
	}
	if err := conn.SetReadDeadline(deadline); err != nil {
		return 0, err
	}
	n, err := conn.Read(buf)
	if err != nil && isTimeout(err) {
		err = nil
	}
	return n, err
}

func isTimeout(err error) bool {
	if os.IsTimeout(err) {
		return true
	}
	if ne, ok := err.(net.Error); ok && ne.Timeout() {
		return true
	}
	return false
}
