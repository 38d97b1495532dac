// Package config holds the server and client settings. Settings come
// from built-in defaults, overridden by an optional TOML file,
// overridden by command-line flags. The resulting Config is passed by
// value; nothing else is shared between sessions.
package config

import (
	"fmt"
	"net"
	"os"
	"strconv"

	"github.com/BurntSushi/toml"
)

// DefaultPort is the TCP port used when none is configured.
const DefaultPort = 7070

// Config holds the complete configuration for one qooil process.
type Config struct {
	// Address to bind (server) or connect to (client). Empty means
	// all interfaces for the server and localhost for the client.
	Addr string `toml:"addr"`

	// TCP port.
	Port int `toml:"port"`

	// Workers bounds the server's concurrently served connections.
	Workers int `toml:"workers"`

	// MaxName and MaxPath are the limits the server advertises in
	// Info replies.
	MaxName uint64 `toml:"max_name"`
	MaxPath uint64 `toml:"max_path"`

	// LogLevel is a logrus level name: "debug", "info", "warn", ...
	LogLevel string `toml:"log_level"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Port:     DefaultPort,
		Workers:  4,
		MaxName:  255,
		MaxPath:  4096,
		LogLevel: "info",
	}
}

// Load reads a TOML configuration file over the defaults. A missing
// file is not an error; the defaults are returned.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate reports the first nonsensical setting.
func (c Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port %d out of range", c.Port)
	}
	if c.Workers < 1 {
		return fmt.Errorf("workers must be positive, got %d", c.Workers)
	}
	if c.MaxName == 0 {
		return fmt.Errorf("max_name must be positive")
	}
	return nil
}

// ListenAddr returns the host:port string for the server listener.
func (c Config) ListenAddr() string {
	return net.JoinHostPort(c.Addr, strconv.Itoa(c.Port))
}

// DialAddr returns the host:port string for the client to connect to.
func (c Config) DialAddr() string {
	host := c.Addr
	if host == "" {
		host = "localhost"
	}
	return net.JoinHostPort(host, strconv.Itoa(c.Port))
}
