// Package transport opens byte streams to a device.
package transport

import (
	"fmt"
	"io"
	"log"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/golang/glog"
	"github.com/tarm/serial"
	"golang.org/x/net/websocket"

	"github.com/robotalks/estim.go/pkg/sim"
)

// Open opens the configured port.
func (c *Config) Open() (io.ReadWriteCloser, error) {
	if c.Port == "" {
		return nil, fmt.Errorf("port must be specified")
	}
	if !strings.Contains(c.Port, "://") {
		return c.openSerial(c.Port)
	}
	u, err := url.Parse(c.Port)
	if err != nil {
		return nil, fmt.Errorf("invalid port URL: %w", err)
	}
	switch u.Scheme {
	case "serial":
		return c.openSerial(u.Path)
	case "tcp":
		return c.openTCP(u.Host)
	case "ws", "wss":
		return c.openWebsocket(u)
	case "sim":
		glog.Info("using simulated device")
		return sim.NewDevice(), nil
	default:
		return nil, fmt.Errorf("unknown port URL scheme: %q", u.Scheme)
	}
}

// MustOpen opens the port and fails on error.
func (c *Config) MustOpen() io.ReadWriteCloser {
	rw, err := c.Open()
	if err != nil {
		log.Fatalln(err)
	}
	return rw
}

func (c *Config) openSerial(name string) (io.ReadWriteCloser, error) {
	port, err := serial.OpenPort(&serial.Config{
		Name:        name,
		Baud:        c.BaudRate,
		ReadTimeout: c.ReadTimeout,
		Size:        8,
		Parity:      serial.ParityNone,
		StopBits:    serial.Stop1,
	})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", name, err)
	}
	glog.Infof("opened %s at %d baud", name, c.BaudRate)
	return port, nil
}

func (c *Config) openTCP(addr string) (io.ReadWriteCloser, error) {
	conn, err := net.DialTimeout("tcp", addr, c.dialTimeout())
	if err != nil {
		return nil, err
	}
	glog.Infof("connected %s", addr)
	return &deadlineConn{Conn: conn, timeout: c.ReadTimeout}, nil
}

func (c *Config) openWebsocket(u *url.URL) (io.ReadWriteCloser, error) {
	origin := "http://" + u.Host
	if u.Scheme == "wss" {
		origin = "https://" + u.Host
	}
	conf, err := websocket.NewConfig(u.String(), origin)
	if err != nil {
		return nil, err
	}
	conf.Dialer = &net.Dialer{Timeout: c.dialTimeout()}
	ws, err := websocket.DialConfig(conf)
	if err != nil {
		return nil, err
	}
	ws.PayloadType = websocket.BinaryFrame
	glog.Infof("connected %s", u)
	return &deadlineConn{Conn: ws, timeout: c.ReadTimeout}, nil
}

func (c *Config) dialTimeout() time.Duration {
	if c.ReadTimeout > 0 {
		return 5 * c.ReadTimeout
	}
	return 5 * DefaultReadTimeout
}

// deadlineConn applies the read timeout of a serial port to a network
// connection.
type deadlineConn struct {
	net.Conn
	timeout time.Duration
}

// Read implements io.Reader.
func (c *deadlineConn) Read(p []byte) (int, error) {
	if c.timeout > 0 {
		if err := c.Conn.SetReadDeadline(time.Now().Add(c.timeout)); err != nil {
			return 0, err
		}
	}
	return c.Conn.Read(p)
}
