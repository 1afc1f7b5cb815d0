// Package sh implements an interactive shell to talk to a device.
package sh

import (
	"fmt"
	"strconv"

	"github.com/abiosoft/ishell"

	"github.com/robotalks/estim.go/pkg/comm"
)

// RegisterValue is printed by peek.
type RegisterValue struct {
	Address comm.Address `json:"address"`
	Value   byte         `json:"value"`
}

// String implements fmt.Stringer.
func (v RegisterValue) String() string {
	return fmt.Sprintf("%s: 0x%02x (%d)", v.Address, v.Value, v.Value)
}

// Peek reads count registers from addr.
func (s *Shell) Peek(addr comm.Address, count int) ([]RegisterValue, error) {
	values, err := s.Conn.Session.ReadRange(addr, count)
	result := make([]RegisterValue, len(values))
	for n, v := range values {
		result[n] = RegisterValue{Address: addr + comm.Address(n), Value: v}
	}
	return result, err
}

var (
	// ConnectCmd opens a port.
	ConnectCmd = ishell.Cmd{
		Name:    "connect",
		Aliases: []string{"c"},
		Help:    "[PORT]",
		Func: func(c *ishell.Context) {
			var port string
			if len(c.Args) > 0 {
				port = c.Args[0]
			}
			if err := ShellFrom(c).Connect(port); err != nil {
				c.Err(err)
			}
		},
	}

	// DisconnectCmd closes the current port.
	DisconnectCmd = ishell.Cmd{
		Name:    "disconnect",
		Aliases: []string{"d"},
		Help:    "",
		Func: func(c *ishell.Context) {
			ShellFrom(c).Disconnect()
		},
	}

	// SyncCmd performs the handshake.
	SyncCmd = ishell.Cmd{
		Name:    "sync",
		Aliases: []string{"hs"},
		Help:    "",
		Func: MustBeConnected(func(c *ishell.Context, s *Shell) {
			if err := s.Conn.Session.Handshake(); err != nil {
				c.Err(err)
				return
			}
			s.Print(c, s.Conn.Session.State().String())
		}),
	}

	// KeyExchangeCmd negotiates a session key.
	KeyExchangeCmd = ishell.Cmd{
		Name:    "keyx",
		Aliases: []string{"kx"},
		Help:    "",
		Func: MustBeConnected(func(c *ishell.Context, s *Shell) {
			key, err := s.Conn.Session.KeyExchange()
			if err != nil {
				c.Err(err)
				return
			}
			s.Print(c, fmt.Sprintf("0x%02x", key))
		}),
	}

	// KeyCmd shows or sets the session key.
	KeyCmd = ishell.Cmd{
		Name: "key",
		Help: "[VALUE]",
		Func: MustBeConnected(func(c *ishell.Context, s *Shell) {
			if len(c.Args) > 0 {
				key, err := ParseByte(c.Args[0])
				if err != nil {
					c.Err(err)
					return
				}
				s.Conn.Session.SetKey(key)
			}
			s.Print(c, fmt.Sprintf("0x%02x", s.Conn.Session.Key()))
		}),
	}

	// StateCmd prints the session state.
	StateCmd = ishell.Cmd{
		Name:    "state",
		Aliases: []string{"st"},
		Help:    "",
		Func: MustBeConnected(func(c *ishell.Context, s *Shell) {
			s.Print(c, s.Conn.Session.State().String())
		}),
	}

	// PeekCmd reads registers.
	PeekCmd = ishell.Cmd{
		Name:    "peek",
		Aliases: []string{"r"},
		Help:    "ADDR [COUNT]",
		Func: MustBeConnected(func(c *ishell.Context, s *Shell) {
			if len(c.Args) < 1 {
				c.Err(fmt.Errorf("address required"))
				return
			}
			addr, err := comm.ParseAddress(c.Args[0])
			if err != nil {
				c.Err(err)
				return
			}
			count := 1
			if len(c.Args) > 1 {
				if count, err = strconv.Atoi(c.Args[1]); err != nil || count < 1 {
					c.Err(fmt.Errorf("invalid count %q", c.Args[1]))
					return
				}
			}
			values, err := s.Peek(addr, count)
			if s.OutputJSON {
				s.Print(c, values)
			} else {
				for _, v := range values {
					c.Println(v)
				}
			}
			if err != nil {
				c.Err(err)
			}
		}),
	}

	// PokeCmd writes registers.
	PokeCmd = ishell.Cmd{
		Name:    "poke",
		Aliases: []string{"w"},
		Help:    "ADDR BYTE...",
		Func: MustBeConnected(func(c *ishell.Context, s *Shell) {
			if len(c.Args) < 2 {
				c.Err(fmt.Errorf("address and values required"))
				return
			}
			addr, err := comm.ParseAddress(c.Args[0])
			if err != nil {
				c.Err(err)
				return
			}
			values, err := ParseBytes(c.Args[1:])
			if err != nil {
				c.Err(err)
				return
			}
			if err := s.Conn.Session.WriteAddress(addr, values); err != nil {
				c.Err(err)
				return
			}
			s.Print(c, "OK")
		}),
	}
)
