package monitor

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/denisbrodbeck/machineid"

	"github.com/robotalks/estim.go/pkg/comm"
)

// Register names a device register to watch.
type Register struct {
	Name     string
	Address  comm.Address
	Writable bool
}

// Config configures a Monitor.
type Config struct {
	Interval  time.Duration
	Keyed     bool
	DeviceID  string
	Registers []Register
}

// DefaultInterval is the poll interval when none is configured.
const DefaultInterval = 500 * time.Millisecond

type fileConfig struct {
	Interval  string         `toml:"interval"`
	Keyed     bool           `toml:"keyed"`
	DeviceID  string         `toml:"device_id"`
	Registers []fileRegister `toml:"register"`
}

type fileRegister struct {
	Name     string `toml:"name"`
	Address  int64  `toml:"address"`
	Writable bool   `toml:"writable"`
}

// DefaultConfig returns a config polling nothing, keyed, at DefaultInterval.
func DefaultConfig() Config {
	return Config{Interval: DefaultInterval, Keyed: true}
}

// LoadConfig reads a TOML config file.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("load monitor config: %w", err)
	}
	return ParseConfig(string(data))
}

// ParseConfig parses TOML config content like:
//
//	interval = "250ms"
//	keyed = true
//
//	[[register]]
//	name = "level_a"
//	address = 0x4064
//	writable = true
func ParseConfig(data string) (Config, error) {
	cfg := DefaultConfig()

	var raw fileConfig
	meta, err := toml.Decode(data, &raw)
	if err != nil {
		return Config{}, fmt.Errorf("parse monitor config: %w", err)
	}

	if meta.IsDefined("interval") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.Interval))
		if err != nil {
			return Config{}, fmt.Errorf("parse interval: %w", err)
		}
		if d <= 0 {
			return Config{}, fmt.Errorf("interval must be positive, got %s", d)
		}
		cfg.Interval = d
	}
	if meta.IsDefined("keyed") {
		cfg.Keyed = raw.Keyed
	}
	if meta.IsDefined("device_id") {
		cfg.DeviceID = strings.TrimSpace(raw.DeviceID)
	}

	names := make(map[string]bool)
	for n, reg := range raw.Registers {
		name := strings.TrimSpace(reg.Name)
		if name == "" || strings.ContainsAny(name, "/+#") {
			return Config{}, fmt.Errorf("register[%d]: invalid name %q", n, reg.Name)
		}
		if names[name] {
			return Config{}, fmt.Errorf("register[%d]: duplicated name %q", n, name)
		}
		if reg.Address < 0 || reg.Address > 0xffff {
			return Config{}, fmt.Errorf("register %q: address %d out of range", name, reg.Address)
		}
		names[name] = true
		cfg.Registers = append(cfg.Registers, Register{
			Name:     name,
			Address:  comm.Address(reg.Address),
			Writable: reg.Writable,
		})
	}
	return cfg, nil
}

// Register looks up a register by name.
func (c *Config) Register(name string) (Register, bool) {
	for _, reg := range c.Registers {
		if reg.Name == name {
			return reg, true
		}
	}
	return Register{}, false
}

// DefaultDeviceID derives a stable id for this host, falling back to the
// host name.
func DefaultDeviceID() string {
	if id, err := machineid.ProtectedID("estimmon"); err == nil {
		return id[:12]
	}
	host, _ := os.Hostname()
	return host
}
