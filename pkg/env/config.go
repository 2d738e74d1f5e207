// Package env provides the common command line and environment
// configuration of linkping binaries.
package env

import (
	"flag"
	"fmt"
	"log"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/linkping/pkg/exchange"
	"github.com/robotalks/linkping/pkg/link"
	"github.com/robotalks/linkping/pkg/mqtt"
	report "github.com/robotalks/linkping/pkg/report/mqtt"
)

// Config provides common options of the link exerciser.
type Config struct {
	// Node identifies this end of the link in telemetry topics.
	Node string

	// PortURL specifies the link port, see link.Open.
	PortURL string
	// Baud overrides the baud rate of a bare serial device path.
	Baud int
	// PollTimeout overrides the poll timeout of the selected role.
	PollTimeout time.Duration

	// MQTTURL optionally specifies the broker telemetry events are
	// published to, e.g. mqtt://host:port/topic-prefix/
	MQTTURL string

	Exchange exchange.Config
}

var defaultConfig = Config{
	PortURL:  "/dev/ttyUSB0",
	Exchange: exchange.DefaultConfig(),
}

func init() {
	if val := os.Getenv("LINKPING_ROLE"); val != "" {
		if err := defaultConfig.Exchange.Role.Set(val); err != nil {
			glog.Warningf("LINKPING_ROLE ignored: %v", err)
		}
	}
	if val := os.Getenv("LINKPING_PORT"); val != "" {
		defaultConfig.PortURL = val
	}
	if val := os.Getenv("LINKPING_MQTT_URL"); val != "" {
		defaultConfig.MQTTURL = val
	}
	if val := os.Getenv("LINKPING_NODE_ID"); val != "" {
		defaultConfig.Node = val
	} else {
		defaultConfig.Node = MachineID()
	}
}

// SetupFlags sets command line flags.
func SetupFlags() {
	c := &defaultConfig
	flag.Var(&c.Exchange.Role, "role", "Role: sender or receiver")
	flag.StringVar(&c.PortURL, "port", c.PortURL, "Link port, device path or URL")
	flag.IntVar(&c.Baud, "baud", c.Baud, "Baud rate of a serial device path, 0 for default")
	flag.DurationVar(&c.Exchange.Window, "window", c.Exchange.Window, "Sender listen window")
	flag.DurationVar(&c.PollTimeout, "poll", c.PollTimeout, "Poll timeout, 0 for the role default")
	flag.DurationVar(&c.Exchange.Interval, "interval", c.Exchange.Interval, "Sender idle interval")
	flag.Var(&c.Exchange.Framing, "framing", "Framing: raw or line")
	flag.BoolVar(&c.Exchange.Strict, "strict", c.Exchange.Strict, "Receiver only acknowledges probes")
	flag.Uint64Var(&c.Exchange.MaxProbes, "count", c.Exchange.MaxProbes, "Sender stops after count probes, 0 for forever")
	flag.StringVar(&c.MQTTURL, "mqtt", c.MQTTURL, "MQTT broker URL for telemetry events")
	flag.StringVar(&c.Node, "node", c.Node, "Node ID")
}

// Default gets default config.
func Default() *Config {
	return &defaultConfig
}

// NewConfig creates a Config with default configurations.
func NewConfig() *Config {
	conf := defaultConfig
	return &conf
}

// ExchangeConfig returns the exchange config with PollTimeout applied to
// the selected role.
func (c *Config) ExchangeConfig() exchange.Config {
	conf := c.Exchange
	if c.PollTimeout > 0 {
		switch conf.Role {
		case exchange.RoleSender:
			conf.SendPollTimeout = c.PollTimeout
		case exchange.RoleReceiver:
			conf.RecvPollTimeout = c.PollTimeout
		}
	}
	return conf
}

// PortLocator returns the URL passed to link.Open, with Baud applied to a
// bare device path.
func (c *Config) PortLocator() string {
	if c.Baud <= 0 || strings.Contains(c.PortURL, "://") {
		return c.PortURL
	}
	u := url.URL{Scheme: "serial", Path: c.PortURL}
	if !strings.HasPrefix(c.PortURL, "/") {
		// serial://COM3
		u.Host, u.Path = c.PortURL, ""
	}
	u.RawQuery = url.Values{"baud": []string{strconv.Itoa(c.Baud)}}.Encode()
	return u.String()
}

// OpenPort opens the link port.
func (c *Config) OpenPort() (link.Port, error) {
	return link.Open(c.PortLocator())
}

// MustOpenPort opens the link port and fails on error.
func (c *Config) MustOpenPort() link.Port {
	port, err := c.OpenPort()
	if err != nil {
		log.Fatalln(err)
	}
	return port
}

// NewPublisher connects the telemetry broker. It returns nil without
// error if MQTTURL is not specified.
func (c *Config) NewPublisher() (*report.Publisher, error) {
	if c.MQTTURL == "" {
		return nil, nil
	}
	q, err := mqtt.NewQueueFromURL(c.MQTTURL)
	if err != nil {
		return nil, fmt.Errorf("create MQTT queue error: %v", err)
	}
	if err = q.Connect(); err != nil {
		return nil, fmt.Errorf("connect MQTT broker error: %v", err)
	}
	return report.NewPublisher(q, c.Node, c.Exchange.Role.String()), nil
}

// MustNewPublisher creates the publisher and fails on error.
func (c *Config) MustNewPublisher() *report.Publisher {
	pub, err := c.NewPublisher()
	if err != nil {
		log.Fatalln(err)
	}
	return pub
}

// PortFromEnv reports whether LINKPING_PORT selects the port.
func PortFromEnv() bool {
	return os.Getenv("LINKPING_PORT") != ""
}
