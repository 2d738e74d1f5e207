package exchange

import (
	"fmt"
	"strings"
	"time"

	fx "github.com/robotalks/linkping/pkg/framework"
	"github.com/robotalks/linkping/pkg/frame"
	"github.com/robotalks/linkping/pkg/link"
)

// Role selects which controller runs.
type Role int

// Roles.
const (
	RoleSender Role = iota
	RoleReceiver
)

// String implements flag.Value.
func (r Role) String() string {
	switch r {
	case RoleSender:
		return "sender"
	case RoleReceiver:
		return "receiver"
	default:
		return fmt.Sprintf("role(%d)", int(r))
	}
}

// Set implements flag.Value.
func (r *Role) Set(val string) error {
	switch strings.ToLower(val) {
	case "sender", "send", "tx":
		*r = RoleSender
	case "receiver", "recv", "rx":
		*r = RoleReceiver
	default:
		return fmt.Errorf("unknown role %q, expect sender or receiver", val)
	}
	return nil
}

// Framing selects how bytes read are split into frames.
type Framing int

const (
	// FramingRaw treats every read as one frame.
	FramingRaw Framing = iota
	// FramingLine assembles CRLF terminated frames across reads.
	FramingLine
)

// String implements flag.Value.
func (f Framing) String() string {
	switch f {
	case FramingRaw:
		return "raw"
	case FramingLine:
		return "line"
	default:
		return fmt.Sprintf("framing(%d)", int(f))
	}
}

// Set implements flag.Value.
func (f *Framing) Set(val string) error {
	switch strings.ToLower(val) {
	case "raw":
		*f = FramingRaw
	case "line":
		*f = FramingLine
	default:
		return fmt.Errorf("unknown framing %q, expect raw or line", val)
	}
	return nil
}

func (f Framing) split(asm *frame.Assembler, data []byte) [][]byte {
	if f == FramingLine {
		asm.MaxFrame = RecvBufferSize - 1
		return asm.Feed(data)
	}
	return [][]byte{data}
}

// Controller is the running role.
type Controller interface {
	fx.Runnable
	fx.Named
	Stats() *Stats
}

// Config defines the parameters of both roles. Only those of Role apply.
type Config struct {
	Role Role

	SendPollTimeout time.Duration
	Window          time.Duration
	Interval        time.Duration
	MaxProbes       uint64

	RecvPollTimeout time.Duration
	Strict          bool

	Framing Framing
}

// DefaultConfig returns the defaults of the sender role.
func DefaultConfig() Config {
	return Config{
		Role:            RoleSender,
		SendPollTimeout: DefaultSenderPollTimeout,
		Window:          DefaultWindow,
		Interval:        DefaultInterval,
		RecvPollTimeout: DefaultReceiverPollTimeout,
	}
}

// Validate checks the timing parameters.
func (c *Config) Validate() error {
	switch c.Role {
	case RoleSender:
		if c.SendPollTimeout <= 0 || c.Window <= 0 {
			return fmt.Errorf("poll timeout and window must be positive")
		}
		if c.Interval < 0 {
			return fmt.Errorf("interval must not be negative")
		}
	case RoleReceiver:
		if c.RecvPollTimeout <= 0 {
			return fmt.Errorf("poll timeout must be positive")
		}
	default:
		return fmt.Errorf("invalid role %v", c.Role)
	}
	return nil
}

// NewController builds the controller of the selected role over port.
func (c *Config) NewController(port link.Port, reporter Reporter) (Controller, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	if c.Role == RoleReceiver {
		r := NewReceiver(port)
		r.PollTimeout, r.Strict, r.Framing, r.Reporter = c.RecvPollTimeout, c.Strict, c.Framing, reporter
		return r, nil
	}
	s := NewSender(port)
	s.PollTimeout, s.Window, s.Interval = c.SendPollTimeout, c.Window, c.Interval
	s.MaxProbes, s.Framing, s.Reporter = c.MaxProbes, c.Framing, reporter
	return s, nil
}
