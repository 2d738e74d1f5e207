// Package sh provides an ishell backed interactive console to exercise a link.
package sh

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/abiosoft/ishell"

	"github.com/robotalks/linkping/pkg/env"
	"github.com/robotalks/linkping/pkg/exchange"
	"github.com/robotalks/linkping/pkg/frame"
	"github.com/robotalks/linkping/pkg/link"
)

// Shell provides ishell backed interactive shell.
type Shell struct {
	Interactive bool
	OutputJSON  bool
	AutoOpen    bool

	Shell  *ishell.Shell
	Config *env.Config

	// Port is the opened link, nil if none.
	Port    link.Port
	PortURL string
	Stats   exchange.Stats

	sender *exchange.Sender
}

const (
	shellKey       = "$shell"
	unopenedPrompt = "[none] > "
)

var (
	// flags

	evalOnly   bool
	outputJSON bool

	// commands
	commands = []*ishell.Cmd{
		&OpenCmd,
		&CloseCmd,
		&PingCmd,
		&SendCmd,
		&ListenCmd,
		&LoopbackCmd,
		&StatsCmd,
	}
)

func init() {
	flag.BoolVar(&evalOnly, "e", evalOnly, "Evaluation only, no interactive shell.")
	flag.BoolVar(&outputJSON, "json", outputJSON, "Print output in JSON.")
}

// AddCmds is used by other commands providers during init func.
func AddCmds(cmds ...*ishell.Cmd) {
	commands = append(commands, cmds...)
}

// New creates a new shell.
func New(conf *env.Config) *Shell {
	s := &Shell{
		Interactive: !evalOnly,
		OutputJSON:  outputJSON,

		Shell:  ishell.New(),
		Config: conf,
	}
	s.Shell.Set(shellKey, s)
	s.Shell.SetPrompt(unopenedPrompt)
	for _, cmd := range commands {
		s.Shell.AddCmd(cmd)
	}
	return s
}

// ShellFrom gets Shell from ishell context.
func ShellFrom(c *ishell.Context) *Shell {
	return c.Get(shellKey).(*Shell)
}

// MustBeOpened wraps command func requires an opened port.
func MustBeOpened(fn func(c *ishell.Context)) func(c *ishell.Context) {
	return func(c *ishell.Context) {
		if ShellFrom(c).Port == nil {
			c.Err(fmt.Errorf("no port opened"))
			return
		}
		fn(c)
	}
}

// WithAutoOpen sets AutoOpen.
func (s *Shell) WithAutoOpen(en bool) *Shell {
	s.AutoOpen = en
	return s
}

// Open opens the port and replaces the current one.
func (s *Shell) Open(portURL string) error {
	port, err := link.Open(portURL)
	if err != nil {
		return err
	}
	s.Close()
	s.Port, s.PortURL = port, portURL
	s.sender = s.newSender(port)
	s.Shell.SetPrompt(fmt.Sprintf("%s > ", portURL))
	return nil
}

// Close closes the current port.
func (s *Shell) Close() {
	if s.Port != nil {
		s.Port.Close()
		s.Port, s.PortURL, s.sender = nil, "", nil
		s.Shell.SetPrompt(unopenedPrompt)
	}
}

func (s *Shell) newSender(port link.Port) *exchange.Sender {
	conf := s.Config.ExchangeConfig()
	sender := exchange.NewSender(port)
	sender.PollTimeout, sender.Window = conf.SendPollTimeout, conf.Window
	sender.Interval, sender.Framing = conf.Interval, conf.Framing
	return sender
}

func (s *Shell) newReceiver(port link.Port) *exchange.Receiver {
	conf := s.Config.ExchangeConfig()
	receiver := exchange.NewReceiver(port)
	receiver.PollTimeout, receiver.Strict, receiver.Framing = conf.RecvPollTimeout, conf.Strict, conf.Framing
	return receiver
}

// Reporter prints events to the console and counts them in Stats.
func (s *Shell) Reporter(c *ishell.Context) exchange.Reporter {
	return (&exchange.ReporterMux{}).Add(&s.Stats, exchange.ReportFunc(func(ev exchange.Event) {
		if s.OutputJSON {
			out, err := json.Marshal(EventJSON(ev))
			if err != nil {
				c.Err(err)
				return
			}
			c.Println(string(out))
			return
		}
		c.Println(FormatEvent(ev))
	}))
}

// Ping runs count sender cycles on the opened port. The sequence continues
// across calls until the port is reopened.
func (s *Shell) Ping(ctx context.Context, count int, reporter exchange.Reporter) error {
	s.sender.Reporter = reporter
	return pingCycles(ctx, s.sender, count)
}

func pingCycles(ctx context.Context, sender *exchange.Sender, count int) error {
	for n := 0; n < count; n++ {
		if n > 0 {
			if err := sender.Idle(ctx); err != nil {
				return err
			}
		}
		sender.Emit()
		if _, err := sender.Listen(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Listen runs the receiver on the opened port for the duration.
func (s *Shell) Listen(ctx context.Context, d time.Duration, reporter exchange.Reporter) error {
	ctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()
	receiver := s.newReceiver(s.Port)
	receiver.Reporter = reporter
	if err := receiver.Run(ctx); err != context.DeadlineExceeded {
		return err
	}
	return nil
}

// Loopback runs count sender cycles against a receiver over an in-memory
// pipe, without any port opened.
func (s *Shell) Loopback(ctx context.Context, count int, reporter exchange.Reporter) error {
	a, b := link.NewPipe()
	defer a.Close()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	receiver := s.newReceiver(b)
	receiver.Reporter = reporter
	doneCh := make(chan error, 1)
	go func() {
		doneCh <- receiver.Run(ctx)
	}()

	sender := s.newSender(a)
	sender.Interval, sender.Reporter = 0, reporter
	err := pingCycles(ctx, sender, count)
	cancel()
	<-doneCh
	return err
}

// Run runs the shell.
func (s *Shell) Run(args ...string) {
	if s.AutoOpen && s.Config.PortURL != "" {
		if s.Interactive {
			s.Shell.Printf("Opening %s ...\n", s.Config.PortLocator())
		}
		if err := s.Open(s.Config.PortLocator()); err != nil {
			log.Fatalf("open %q failed: %v", s.Config.PortURL, err)
		}
	}
	defer s.Close()

	if len(args) > 0 {
		if err := s.Shell.Process(args...); err != nil {
			log.Fatalln(err)
		}
		return
	}
	if s.Interactive {
		s.Shell.Run()
		return
	}
	log.Fatalln("command expected")
}

// FormatEvent prints an event into friendly string for display.
func FormatEvent(ev exchange.Event) string {
	var line string
	switch ev.Kind {
	case exchange.EventProbeSent:
		line = fmt.Sprintf(">> Sent (%d bytes): '%s'", ev.Written, frame.Display(ev.Data))
	case exchange.EventReplyReceived:
		line = fmt.Sprintf("<< Received (%d bytes): '%s'", len(ev.Data), frame.Display(ev.Data))
	case exchange.EventWindowEmpty:
		line = fmt.Sprintf("-- No reply to seq=%d", ev.Seq)
	case exchange.EventFrameReceived:
		line = fmt.Sprintf("RX (%d bytes): '%s'", len(ev.Data), frame.Display(ev.Data))
	case exchange.EventAckSent:
		line = fmt.Sprintf("TX ACK (%d bytes)", ev.Written)
	case exchange.EventFrameRejected:
		line = fmt.Sprintf("Rejected (%d bytes): '%s'", len(ev.Data), frame.Display(ev.Data))
	default:
		line = ev.Kind.String()
	}
	if ev.Err != nil {
		line += fmt.Sprintf(" error: %v", ev.Err)
	}
	return line
}

// EventJSON converts an event to a JSON friendly map.
func EventJSON(ev exchange.Event) map[string]interface{} {
	m := map[string]interface{}{
		"kind": ev.Kind.String(),
		"time": ev.Time,
	}
	if ev.Seq != 0 {
		m["seq"] = uint32(ev.Seq)
	}
	if ev.Data != nil {
		m["data"] = string(ev.Data)
	}
	if ev.Kind == exchange.EventProbeSent || ev.Kind == exchange.EventAckSent {
		m["written"] = ev.Written
	}
	if ev.Err != nil {
		m["error"] = ev.Err.Error()
	}
	return m
}

func countArg(args []string, def int) (int, error) {
	if len(args) == 0 {
		return def, nil
	}
	count, err := strconv.Atoi(args[0])
	if err != nil || count <= 0 {
		return 0, fmt.Errorf("invalid count %q", args[0])
	}
	return count, nil
}

func durationArg(args []string, def time.Duration) (time.Duration, error) {
	if len(args) == 0 {
		return def, nil
	}
	d, err := time.ParseDuration(args[0])
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid duration %q", args[0])
	}
	return d, nil
}

// sendPayload builds the raw bytes of the send command.
func sendPayload(args []string) ([]byte, error) {
	terminate := true
	if len(args) > 0 && args[0] == "-n" {
		terminate, args = false, args[1:]
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("text expected")
	}
	text := strings.Join(args, " ")
	if terminate {
		text += frame.Terminator
	}
	return []byte(text), nil
}

var (
	// OpenCmd opens a link port.
	OpenCmd = ishell.Cmd{
		Name:    "open",
		Aliases: []string{"o"},
		Help:    "URL",
		Func: func(c *ishell.Context) {
			if len(c.Args) != 1 {
				c.Err(fmt.Errorf("port URL expected"))
				return
			}
			if err := ShellFrom(c).Open(c.Args[0]); err != nil {
				c.Err(err)
			}
		},
	}

	// CloseCmd closes current port.
	CloseCmd = ishell.Cmd{
		Name: "close",
		Help: "",
		Func: func(c *ishell.Context) {
			ShellFrom(c).Close()
		},
	}

	// PingCmd runs sender cycles.
	PingCmd = ishell.Cmd{
		Name:    "ping",
		Aliases: []string{"p"},
		Help:    "[COUNT]",
		Func: MustBeOpened(func(c *ishell.Context) {
			count, err := countArg(c.Args, 1)
			if err != nil {
				c.Err(err)
				return
			}
			s := ShellFrom(c)
			if err = s.Ping(context.Background(), count, s.Reporter(c)); err != nil {
				c.Err(err)
			}
		}),
	}

	// SendCmd writes raw text.
	SendCmd = ishell.Cmd{
		Name: "send",
		Help: "[-n] TEXT, -n doesn't append CRLF",
		Func: MustBeOpened(func(c *ishell.Context) {
			data, err := sendPayload(c.Args)
			if err != nil {
				c.Err(err)
				return
			}
			n, err := ShellFrom(c).Port.Write(data)
			if err != nil {
				c.Err(err)
				return
			}
			c.Printf(">> Sent (%d bytes): '%s'\n", n, frame.Display(data))
		}),
	}

	// ListenCmd runs the receiver for a while.
	ListenCmd = ishell.Cmd{
		Name:    "listen",
		Aliases: []string{"l"},
		Help:    "[DURATION]",
		Func: MustBeOpened(func(c *ishell.Context) {
			d, err := durationArg(c.Args, 10*time.Second)
			if err != nil {
				c.Err(err)
				return
			}
			s := ShellFrom(c)
			if err = s.Listen(context.Background(), d, s.Reporter(c)); err != nil {
				c.Err(err)
			}
		}),
	}

	// LoopbackCmd exercises sender and receiver over an in-memory pipe.
	LoopbackCmd = ishell.Cmd{
		Name: "loopback",
		Help: "[COUNT]",
		Func: func(c *ishell.Context) {
			count, err := countArg(c.Args, 3)
			if err != nil {
				c.Err(err)
				return
			}
			s := ShellFrom(c)
			if err = s.Loopback(context.Background(), count, s.Reporter(c)); err != nil {
				c.Err(err)
			}
		},
	}

	// StatsCmd prints counters of all commands.
	StatsCmd = ishell.Cmd{
		Name: "stats",
		Help: "",
		Func: func(c *ishell.Context) {
			s := ShellFrom(c)
			snapshot := s.Stats.Snapshot()
			if s.OutputJSON {
				out, err := json.Marshal(snapshot)
				if err != nil {
					c.Err(err)
					return
				}
				c.Println(string(out))
				return
			}
			c.Println(snapshot.String())
		},
	}
)

// Main is a helper to provide a single call in main.
func Main() {
	flag.Parse()
	New(env.NewConfig()).WithAutoOpen(portFlagSet()).Run(flag.Args()...)
}

// portFlagSet reports whether a port is explicitly chosen by flag or env.
func portFlagSet() (set bool) {
	flag.Visit(func(f *flag.Flag) {
		if f.Name == "port" {
			set = true
		}
	})
	return set || env.PortFromEnv()
}
