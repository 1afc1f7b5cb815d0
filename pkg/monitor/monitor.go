// Package monitor polls device registers and mirrors them to a broker.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/estim.go/pkg/comm"
	fx "github.com/robotalks/estim.go/pkg/framework"
	"github.com/robotalks/estim.go/pkg/mqtt"
)

// Topics relative to the device topic prefix.
const (
	RegTopicPrefix   = "reg/"
	WriteTopicPrefix = "write/"
	ResultSuffix     = "/result"
	ResultOK         = "ok"
)

// Broker is where samples are published and write requests come from.
type Broker interface {
	Publish(topic string, payload []byte, retain bool) error
	Sub(topic string, handler mqtt.Handler)
}

// Monitor polls configured registers and publishes changed values.
// Write requests arriving from the broker are applied between polls.
type Monitor struct {
	Config Config
	Client *comm.Client
	Broker Broker
	Now    func() time.Time

	last      map[string]byte
	republish atomic.Bool
}

// New creates a Monitor.
func New(conf Config, client *comm.Client, broker Broker) *Monitor {
	return &Monitor{
		Config: conf,
		Client: client,
		Broker: broker,
		Now:    time.Now,
		last:   make(map[string]byte),
	}
}

// Name implements framework.Named.
func (m *Monitor) Name() string {
	return "monitor"
}

// Run implements framework.Runnable.
func (m *Monitor) Run(ctx context.Context) error {
	m.Broker.Sub(WriteTopicPrefix+"+", m.HandleWrite)

	interval := m.Config.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if err := m.Poll(); err != nil {
			glog.Warningf("poll: %v", err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Republish makes the next Poll publish every register, changed or not.
// It is safe to call from the broker's connect handler.
func (m *Monitor) Republish() {
	m.republish.Store(true)
}

// Poll reads every register once, re-synchronizing first if the session
// is not ready. Values equal to the last published ones are skipped.
func (m *Monitor) Poll() error {
	if m.republish.Swap(false) {
		m.last = make(map[string]byte)
	}
	if err := m.Client.Ensure(m.Config.Keyed); err != nil {
		return fmt.Errorf("sync: %w", err)
	}
	var errs fx.AggregatedError
	for _, reg := range m.Config.Registers {
		var value byte
		err := m.Client.Do(func(s *comm.Session) (err error) {
			value, err = s.ReadAddress(reg.Address)
			return
		})
		if err != nil {
			errs.Add(fmt.Errorf("%s: %w", reg.Name, err))
			if m.Client.State() == comm.StateFaulted {
				break
			}
			continue
		}
		if last, ok := m.last[reg.Name]; ok && last == value {
			continue
		}
		payload, err := EncodeSample(Sample{
			Name:    reg.Name,
			Address: reg.Address,
			Value:   value,
			Time:    m.Now(),
		})
		if err == nil {
			err = m.Broker.Publish(RegTopicPrefix+reg.Name, payload, true)
		}
		if err != nil {
			errs.Add(fmt.Errorf("%s: %w", reg.Name, err))
			continue
		}
		glog.V(3).Infof("%s(%s) = 0x%02x", reg.Name, reg.Address, value)
		m.last[reg.Name] = value
	}
	return errs.Aggregate()
}

// HandleWrite applies a write request received on write/NAME.
// The payload holds the raw bytes to write starting at the register.
func (m *Monitor) HandleWrite(topic string, payload []byte) {
	name := strings.TrimPrefix(topic, WriteTopicPrefix)
	err := m.write(name, payload)
	result := ResultOK
	if err != nil {
		glog.Warningf("write %s: %v", name, err)
		result = err.Error()
	}
	if err := m.Broker.Publish(WriteTopicPrefix+name+ResultSuffix, []byte(result), false); err != nil {
		glog.Errorf("publish write result: %v", err)
	}
}

func (m *Monitor) write(name string, payload []byte) error {
	reg, ok := m.Config.Register(name)
	if !ok {
		return fmt.Errorf("unknown register %q", name)
	}
	if !reg.Writable {
		return errors.New("register is read-only")
	}
	if err := m.Client.Ensure(m.Config.Keyed); err != nil {
		return fmt.Errorf("sync: %w", err)
	}
	return m.Client.Do(func(s *comm.Session) error {
		return s.WriteAddress(reg.Address, payload)
	})
}
