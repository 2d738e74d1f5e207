// Package link provides the byte stream transports the exchange runs over.
package link

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Port is a byte stream transport.
type Port interface {
	// Read blocks at most timeout and returns the bytes available.
	// A timeout returns 0 bytes with no error.
	Read(p []byte, timeout time.Duration) (int, error)
	// Write blocks until p is handed to the transport. The count is
	// informational, partial writes are not retried.
	Write(p []byte) (int, error)
	// Close releases the transport.
	Close() error
}

var (
	// ErrConfig indicates the transport can't be opened or configured.
	ErrConfig = errors.New("transport config failure")
	// ErrClosed indicates the port is closed.
	ErrClosed = errors.New("port closed")
	// ErrNotConnected indicates no peer is connected yet.
	ErrNotConnected = errors.New("not connected")
)

// ConfigError wraps the cause of a failure to open a port.
type ConfigError struct {
	URL string
	Err error
}

// Error implements error.
func (e *ConfigError) Error() string {
	return fmt.Sprintf("%v %q: %v", ErrConfig, e.URL, e.Err)
}

// Unwrap returns the cause.
func (e *ConfigError) Unwrap() error {
	return e.Err
}

// Is makes errors.Is(err, ErrConfig) match.
func (e *ConfigError) Is(target error) bool {
	return target == ErrConfig
}

// Open opens a port by URL:
//
//	/dev/ttyUSB0 or serial:///dev/ttyUSB0?baud=115200&parity=none
//	mqtt://host:1883/prefix/?side=a
//	ws://host:port/path
//	ws+listen://:port/path
//	tcp://host:port
func Open(rawURL string) (Port, error) {
	port, err := open(rawURL)
	if err != nil {
		var ce *ConfigError
		if !errors.As(err, &ce) {
			err = &ConfigError{URL: rawURL, Err: err}
		}
		return nil, err
	}
	return port, nil
}

func open(rawURL string) (Port, error) {
	if rawURL == "" {
		return nil, errors.New("port URL required")
	}
	if strings.HasPrefix(rawURL, "/") || !strings.Contains(rawURL, "://") {
		return OpenSerial(DefaultSerialConfig(rawURL))
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, err
	}
	switch u.Scheme {
	case "serial":
		conf, err := SerialConfigFromURL(u)
		if err != nil {
			return nil, err
		}
		return OpenSerial(conf)
	case "mqtt", "mqtts":
		return OpenMQTT(rawURL)
	case "ws", "wss":
		return DialWebSocket(rawURL)
	case "ws+listen":
		return ListenWebSocket(u.Host, u.Path)
	case "tcp":
		return DialTCP(u.Host)
	default:
		return nil, fmt.Errorf("unknown port URL scheme: %q", u.Scheme)
	}
}
