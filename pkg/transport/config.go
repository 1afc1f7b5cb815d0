package transport

import (
	"flag"
	"os"
	"strconv"
	"time"
)

// Config provides options to open the link to a device.
type Config struct {
	// Port is a serial device path or a URL.
	// Supported URL schemes: serial, tcp, ws, wss, sim.
	Port string
	// BaudRate applies to serial ports only.
	BaudRate int
	// ReadTimeout bounds every read.
	ReadTimeout time.Duration
}

// Defaults matching the device's fixed line settings.
const (
	DefaultBaudRate    = 19200
	DefaultReadTimeout = time.Second
)

var defaultConfig = configFromEnv(builtinConfig(), os.Getenv)

func builtinConfig() Config {
	return Config{
		BaudRate:    DefaultBaudRate,
		ReadTimeout: DefaultReadTimeout,
	}
}

// configFromEnv overrides conf with ESTIM_PORT, ESTIM_BAUD and
// ESTIM_READ_TIMEOUT. Malformed values are ignored.
func configFromEnv(conf Config, getenv func(string) string) Config {
	if val := getenv("ESTIM_PORT"); val != "" {
		conf.Port = val
	}
	if val := getenv("ESTIM_BAUD"); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			conf.BaudRate = n
		}
	}
	if val := getenv("ESTIM_READ_TIMEOUT"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			conf.ReadTimeout = d
		}
	}
	return conf
}

// SetupFlags sets up command line flags.
func SetupFlags() {
	flag.StringVar(&defaultConfig.Port, "port", defaultConfig.Port, "Serial port or URL (tcp://, ws://, sim://).")
	flag.IntVar(&defaultConfig.BaudRate, "baud", defaultConfig.BaudRate, "Serial baud rate.")
	flag.DurationVar(&defaultConfig.ReadTimeout, "read-timeout", defaultConfig.ReadTimeout, "Read timeout.")
}

// Default gets the default config.
func Default() *Config {
	return &defaultConfig
}

// NewConfig creates a Config with default configurations.
func NewConfig() *Config {
	conf := defaultConfig
	return &conf
}
