package monitor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/estim.go/pkg/comm"
	"github.com/robotalks/estim.go/pkg/mqtt"
	"github.com/robotalks/estim.go/pkg/sim"
)

type published struct {
	topic   string
	payload []byte
	retain  bool
}

type fakeBroker struct {
	lock     sync.Mutex
	pubs     []published
	handlers map[string]mqtt.Handler
	failPub  error
}

func (b *fakeBroker) Publish(topic string, payload []byte, retain bool) error {
	b.lock.Lock()
	defer b.lock.Unlock()
	if b.failPub != nil {
		return b.failPub
	}
	b.pubs = append(b.pubs, published{topic: topic, payload: payload, retain: retain})
	return nil
}

func (b *fakeBroker) Sub(topic string, handler mqtt.Handler) {
	b.lock.Lock()
	defer b.lock.Unlock()
	if b.handlers == nil {
		b.handlers = make(map[string]mqtt.Handler)
	}
	b.handlers[topic] = handler
}

func (b *fakeBroker) take() []published {
	b.lock.Lock()
	defer b.lock.Unlock()
	pubs := b.pubs
	b.pubs = nil
	return pubs
}

type monitorTestEnv struct {
	t      *testing.T
	dev    *sim.Device
	broker *fakeBroker
	mon    *Monitor
}

func newMonitorTestEnv(t *testing.T) *monitorTestEnv {
	env := &monitorTestEnv{t: t, dev: sim.NewDevice(), broker: &fakeBroker{}}
	conf := DefaultConfig()
	conf.Registers = []Register{
		{Name: "level_a", Address: 0x4064, Writable: true},
		{Name: "mode", Address: 0x407b},
	}
	env.mon = New(conf, comm.NewClient(comm.NewSession(env.dev)), env.broker)
	env.mon.Now = func() time.Time { return time.Unix(1700000000, 0) }
	return env
}

func (e *monitorTestEnv) expectSample(p published, name string, value byte) {
	require.Equal(e.t, RegTopicPrefix+name, p.topic)
	require.True(e.t, p.retain)
	s, err := DecodeSample(p.payload)
	require.NoError(e.t, err)
	require.Equal(e.t, name, s.Name)
	require.Equal(e.t, value, s.Value)
}

func TestPollPublishesChanges(t *testing.T) {
	env := newMonitorTestEnv(t)
	env.dev.Memory[0x4064] = 0x10
	env.dev.Memory[0x407b] = 0x76

	require.NoError(t, env.mon.Poll())
	require.Equal(t, comm.StateKeyed, env.mon.Client.State())
	pubs := env.broker.take()
	require.Len(t, pubs, 2)
	env.expectSample(pubs[0], "level_a", 0x10)
	env.expectSample(pubs[1], "mode", 0x76)

	require.NoError(t, env.mon.Poll())
	require.Empty(t, env.broker.take())

	env.dev.Memory[0x4064] = 0x20
	require.NoError(t, env.mon.Poll())
	pubs = env.broker.take()
	require.Len(t, pubs, 1)
	env.expectSample(pubs[0], "level_a", 0x20)
}

func TestPollRecoversAfterFault(t *testing.T) {
	env := newMonitorTestEnv(t)
	require.NoError(t, env.mon.Poll())
	env.broker.take()

	env.dev.CorruptNextChecksum()
	err := env.mon.Poll()
	var ce *comm.ChecksumError
	require.True(t, errors.As(err, &ce))
	require.Equal(t, comm.StateFaulted, env.mon.Client.State())

	env.dev.Memory[0x407b] = 0x01
	require.NoError(t, env.mon.Poll())
	require.Equal(t, comm.StateKeyed, env.mon.Client.State())
	pubs := env.broker.take()
	require.Len(t, pubs, 1)
	env.expectSample(pubs[0], "mode", 0x01)
}

func TestPollRepublish(t *testing.T) {
	env := newMonitorTestEnv(t)
	env.dev.Memory[0x4064] = 0x10
	require.NoError(t, env.mon.Poll())
	require.Len(t, env.broker.take(), 2)
	require.NoError(t, env.mon.Poll())
	require.Empty(t, env.broker.take())

	env.mon.Republish()
	require.NoError(t, env.mon.Poll())
	pubs := env.broker.take()
	require.Len(t, pubs, 2)
	env.expectSample(pubs[0], "level_a", 0x10)
	env.expectSample(pubs[1], "mode", 0x00)

	require.NoError(t, env.mon.Poll())
	require.Empty(t, env.broker.take())
}

func TestPollPublishFailureRetries(t *testing.T) {
	env := newMonitorTestEnv(t)
	env.broker.failPub = errors.New("offline")
	require.Error(t, env.mon.Poll())
	env.broker.failPub = nil
	require.NoError(t, env.mon.Poll())
	require.Len(t, env.broker.take(), 2)
}

func TestHandleWrite(t *testing.T) {
	env := newMonitorTestEnv(t)
	env.mon.HandleWrite("write/level_a", []byte{0x42, 0x43})
	require.Equal(t, byte(0x42), env.dev.Memory[0x4064])
	require.Equal(t, byte(0x43), env.dev.Memory[0x4065])
	require.Equal(t, []published{{topic: "write/level_a/result", payload: []byte(ResultOK)}}, env.broker.take())

	testCases := []struct {
		name    string
		topic   string
		payload []byte
	}{
		{"read-only", "write/mode", []byte{1}},
		{"unknown", "write/nothing", []byte{1}},
		{"too long", "write/level_a", make([]byte, 13)},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			env.mon.HandleWrite(tc.topic, tc.payload)
			pubs := env.broker.take()
			require.Len(t, pubs, 1)
			require.Equal(t, tc.topic+ResultSuffix, pubs[0].topic)
			require.NotEqual(t, ResultOK, string(pubs[0].payload))
		})
	}
	require.Equal(t, byte(0), env.dev.Memory[0x407b])
}

func TestRun(t *testing.T) {
	env := newMonitorTestEnv(t)
	env.mon.Config.Interval = time.Millisecond
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- env.mon.Run(ctx) }()

	require.Eventually(t, func() bool {
		env.broker.lock.Lock()
		defer env.broker.lock.Unlock()
		return len(env.broker.pubs) == 2 && env.broker.handlers[WriteTopicPrefix+"+"] != nil
	}, time.Second, time.Millisecond)
	cancel()
	require.Equal(t, context.Canceled, <-errCh)
}
