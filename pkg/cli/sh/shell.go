package sh

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"strconv"

	"github.com/abiosoft/ishell"
	"github.com/golang/glog"

	"github.com/robotalks/estim.go/pkg/comm"
	"github.com/robotalks/estim.go/pkg/transport"
)

// Shell provides ishell backed interactive shell.
type Shell struct {
	Interactive bool
	OutputJSON  bool
	AutoConnect bool

	Shell  *ishell.Shell
	Config *transport.Config
	Conn   *Conn
}

// Conn is an open link with its session.
type Conn struct {
	Port    string
	Stream  io.ReadWriteCloser
	Session *comm.Session
}

const (
	shellKey          = "$shell"
	unconnectedPrompt = "[none] > "
)

var (
	// flags

	evalOnly   bool
	outputJSON bool

	// commands
	commands = []*ishell.Cmd{
		&ConnectCmd,
		&DisconnectCmd,
		&SyncCmd,
		&KeyExchangeCmd,
		&KeyCmd,
		&StateCmd,
		&PeekCmd,
		&PokeCmd,
	}
)

func init() {
	flag.BoolVar(&evalOnly, "e", evalOnly, "Evaluation only, no interactive shell.")
	flag.BoolVar(&outputJSON, "json", outputJSON, "Print output in JSON.")
}

// New creates a new shell.
func New(conf *transport.Config) *Shell {
	s := &Shell{
		Interactive: !evalOnly,
		OutputJSON:  outputJSON,

		Shell:  ishell.New(),
		Config: conf,
	}
	s.Shell.Set(shellKey, s)
	s.Shell.SetPrompt(unconnectedPrompt)
	for _, cmd := range commands {
		s.Shell.AddCmd(cmd)
	}
	return s
}

// ShellFrom gets Shell from ishell context.
func ShellFrom(c *ishell.Context) *Shell {
	return c.Get(shellKey).(*Shell)
}

// MustBeConnected wraps command func requires a connection.
func MustBeConnected(fn func(c *ishell.Context, s *Shell)) func(c *ishell.Context) {
	return func(c *ishell.Context) {
		s := ShellFrom(c)
		if s.Conn == nil {
			c.Err(fmt.Errorf("not connected"))
			return
		}
		fn(c, s)
	}
}

// Print prints v as JSON or with its default format.
func (s *Shell) Print(c *ishell.Context, v interface{}) {
	if s.OutputJSON {
		out, err := json.Marshal(v)
		if err != nil {
			c.Err(err)
			return
		}
		c.Println(string(out))
		return
	}
	c.Println(v)
}

// WithAutoConnect sets AutoConnect.
func (s *Shell) WithAutoConnect(en bool) *Shell {
	s.AutoConnect = en
	return s
}

// Connect opens port, replacing any current connection.
// An empty port uses the configured one.
func (s *Shell) Connect(port string) error {
	conf := *s.Config
	if port != "" {
		conf.Port = port
	}
	stream, err := conf.Open()
	if err != nil {
		return err
	}
	s.Disconnect()
	s.Conn = &Conn{
		Port:    conf.Port,
		Stream:  stream,
		Session: comm.NewSession(stream),
	}
	s.setPrompt(fmt.Sprintf("%s > ", conf.Port))
	return nil
}

// Disconnect closes current connection.
func (s *Shell) Disconnect() {
	if s.Conn != nil {
		if err := s.Conn.Stream.Close(); err != nil {
			glog.Warningf("close %s: %v", s.Conn.Port, err)
		}
		s.Conn = nil
		s.setPrompt(unconnectedPrompt)
	}
}

func (s *Shell) setPrompt(prompt string) {
	if s.Shell != nil {
		s.Shell.SetPrompt(prompt)
	}
}

// Run runs the shell.
func (s *Shell) Run(args ...string) {
	if s.AutoConnect && s.Config.Port != "" {
		if s.Interactive {
			s.Shell.Printf("Connecting %s ...\n", s.Config.Port)
		}
		if err := s.Connect(""); err != nil {
			log.Fatalf("connect %q failed: %v", s.Config.Port, err)
		}
	}
	defer s.Disconnect()

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

// ParseByte parses a decimal or 0x-prefixed byte value.
func ParseByte(str string) (byte, error) {
	v, err := strconv.ParseUint(str, 0, 8)
	if err != nil {
		return 0, fmt.Errorf("invalid byte %q", str)
	}
	return byte(v), nil
}

// ParseBytes parses each argument with ParseByte.
func ParseBytes(args []string) ([]byte, error) {
	values := make([]byte, len(args))
	for n, arg := range args {
		v, err := ParseByte(arg)
		if err != nil {
			return nil, err
		}
		values[n] = v
	}
	return values, nil
}

// Main is a helper to provide a single call in main.
func Main() {
	flag.Parse()
	New(transport.NewConfig()).WithAutoConnect(true).Run(flag.Args()...)
}
