package link

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/golang/glog"
	"go.bug.st/serial"
)

// SerialConfig is the line configuration of a serial port.
type SerialConfig struct {
	Device      string
	BaudRate    int
	DataBits    int
	Parity      string // none, odd, even, mark, space
	StopBits    string // 1, 1.5, 2
	FlowControl string // none
}

// Serial line defaults, 115200 8N1 without flow control.
const (
	DefaultBaudRate = 115200
	DefaultDataBits = 8
)

// DefaultSerialConfig creates a SerialConfig with defaults for device.
func DefaultSerialConfig(device string) SerialConfig {
	return SerialConfig{
		Device:      device,
		BaudRate:    DefaultBaudRate,
		DataBits:    DefaultDataBits,
		Parity:      "none",
		StopBits:    "1",
		FlowControl: "none",
	}
}

// SerialConfigFromURL parses serial:///dev/ttyUSB0?baud=9600&data=8&parity=even&stop=1&flow=none.
func SerialConfigFromURL(u *url.URL) (SerialConfig, error) {
	device := u.Path
	if u.Host != "" {
		// serial://COM3
		device = u.Host + u.Path
	}
	conf := DefaultSerialConfig(device)
	q := u.Query()
	var err error
	if val := q.Get("baud"); val != "" {
		if conf.BaudRate, err = strconv.Atoi(val); err != nil {
			return conf, fmt.Errorf("invalid baud: %v", err)
		}
	}
	if val := q.Get("data"); val != "" {
		if conf.DataBits, err = strconv.Atoi(val); err != nil {
			return conf, fmt.Errorf("invalid data bits: %v", err)
		}
	}
	if val := q.Get("parity"); val != "" {
		conf.Parity = val
	}
	if val := q.Get("stop"); val != "" {
		conf.StopBits = val
	}
	if val := q.Get("flow"); val != "" {
		conf.FlowControl = val
	}
	return conf, nil
}

// Mode converts the config into the driver mode.
func (c SerialConfig) Mode() (*serial.Mode, error) {
	if c.Device == "" {
		return nil, fmt.Errorf("serial device required")
	}
	if c.BaudRate <= 0 {
		return nil, fmt.Errorf("invalid baud rate %d", c.BaudRate)
	}
	if c.DataBits < 5 || c.DataBits > 8 {
		return nil, fmt.Errorf("invalid data bits %d", c.DataBits)
	}
	mode := &serial.Mode{BaudRate: c.BaudRate, DataBits: c.DataBits}
	switch strings.ToLower(c.Parity) {
	case "", "none", "n":
		mode.Parity = serial.NoParity
	case "odd", "o":
		mode.Parity = serial.OddParity
	case "even", "e":
		mode.Parity = serial.EvenParity
	case "mark", "m":
		mode.Parity = serial.MarkParity
	case "space", "s":
		mode.Parity = serial.SpaceParity
	default:
		return nil, fmt.Errorf("invalid parity %q", c.Parity)
	}
	switch c.StopBits {
	case "", "1":
		mode.StopBits = serial.OneStopBit
	case "1.5":
		mode.StopBits = serial.OnePointFiveStopBits
	case "2":
		mode.StopBits = serial.TwoStopBits
	default:
		return nil, fmt.Errorf("invalid stop bits %q", c.StopBits)
	}
	switch strings.ToLower(c.FlowControl) {
	case "", "none":
	default:
		return nil, fmt.Errorf("flow control %q not supported", c.FlowControl)
	}
	return mode, nil
}

// String returns a short description like /dev/ttyUSB0 115200 8N1.
func (c SerialConfig) String() string {
	parity := "N"
	if c.Parity != "" {
		parity = strings.ToUpper(c.Parity[:1])
	}
	stop := c.StopBits
	if stop == "" {
		stop = "1"
	}
	return fmt.Sprintf("%s %d %d%s%s", c.Device, c.BaudRate, c.DataBits, parity, stop)
}

// SerialPort is a Port over a serial device.
type SerialPort struct {
	Config SerialConfig

	port    serial.Port
	lock    sync.Mutex
	timeout time.Duration
}

// OpenSerial opens and configures the serial device.
func OpenSerial(conf SerialConfig) (*SerialPort, error) {
	mode, err := conf.Mode()
	if err != nil {
		return nil, &ConfigError{URL: conf.Device, Err: err}
	}
	port, err := serial.Open(conf.Device, mode)
	if err != nil {
		return nil, &ConfigError{URL: conf.Device, Err: err}
	}
	glog.Infof("serial %s configured", conf)
	return &SerialPort{Config: conf, port: port, timeout: -1}, nil
}

// Read implements Port.
func (p *SerialPort) Read(buf []byte, timeout time.Duration) (int, error) {
	p.lock.Lock()
	if timeout != p.timeout {
		if err := p.port.SetReadTimeout(timeout); err != nil {
			p.lock.Unlock()
			return 0, err
		}
		p.timeout = timeout
	}
	p.lock.Unlock()
	return p.port.Read(buf)
}

// Write implements Port.
func (p *SerialPort) Write(buf []byte) (int, error) {
	return p.port.Write(buf)
}

// Close implements Port.
func (p *SerialPort) Close() error {
	return p.port.Close()
}
