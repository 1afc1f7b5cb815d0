package monitor

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/estim.go/pkg/comm"
)

const sampleConfig = `
interval = "250ms"
keyed = false
device_id = "bench"

[[register]]
name = "level_a"
address = 0x4064
writable = true

[[register]]
name = "mode"
address = 16507
`

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "monitor.toml")
	require.NoError(t, os.WriteFile(path, []byte(sampleConfig), 0644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.Equal(t, 250*time.Millisecond, cfg.Interval)
	require.False(t, cfg.Keyed)
	require.Equal(t, "bench", cfg.DeviceID)
	require.Equal(t, []Register{
		{Name: "level_a", Address: 0x4064, Writable: true},
		{Name: "mode", Address: 0x407b},
	}, cfg.Registers)

	reg, ok := cfg.Register("mode")
	require.True(t, ok)
	require.Equal(t, comm.Address(0x407b), reg.Address)
	_, ok = cfg.Register("missing")
	require.False(t, ok)
}

func TestParseConfigDefaults(t *testing.T) {
	cfg, err := ParseConfig("")
	require.NoError(t, err)
	require.Equal(t, DefaultConfig(), cfg)
}

func TestParseConfigErrors(t *testing.T) {
	testCases := []struct {
		name string
		data string
	}{
		{"bad interval", `interval = "soon"`},
		{"negative interval", `interval = "-1s"`},
		{"empty name", "[[register]]\naddress = 1"},
		{"wildcard name", "[[register]]\nname = \"a/+\"\naddress = 1"},
		{"duplicated", "[[register]]\nname = \"a\"\naddress = 1\n[[register]]\nname = \"a\"\naddress = 2"},
		{"out of range", "[[register]]\nname = \"a\"\naddress = 0x10000"},
		{"syntax", "interval = "},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseConfig(tc.data)
			require.Error(t, err)
		})
	}
}

func TestLoadConfigMissing(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "none.toml"))
	require.Error(t, err)
}
