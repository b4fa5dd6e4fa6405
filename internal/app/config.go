// Package app wires divvy's components (rule table, backend, metrics,
// logger, server) into a runnable Application, and defines the Config
// that drives that wiring.
package app

import (
	"errors"
	"strconv"
	"strings"
	"time"
)

// Config captures every startup setting divvy honors.
type Config struct {
	ListenAddr     string
	ConfigPath     string
	BackendAddrs   []string // empty = in-memory backend
	MaxLineBytes   int
	MaxConns       int
	DrainTimeout   time.Duration
	FailPolicy     string // "open" or "closed"
	LogLevel       string
}

// DefaultConfig returns divvy's documented defaults.
func DefaultConfig() *Config {
	return &Config{
		ListenAddr:   ":7606",
		ConfigPath:   "./divvy.ini",
		MaxLineBytes: 8192,
		MaxConns:     0,
		DrainTimeout: 5 * time.Second,
		FailPolicy:   "open",
		LogLevel:     "info",
	}
}

// Validate rejects configurations that cannot be started.
func (c *Config) Validate() error {
	if c.ListenAddr == "" {
		return errors.New("divvy: listen address is required")
	}
	if c.ConfigPath == "" {
		return errors.New("divvy: config path is required")
	}
	if c.MaxLineBytes <= 0 {
		return errors.New("divvy: max-line-bytes must be positive")
	}
	if c.FailPolicy != "open" && c.FailPolicy != "closed" {
		return errors.New("divvy: fail-policy must be \"open\" or \"closed\"")
	}
	return nil
}

// ApplyEnvOverrides overlays DIVVY_* environment variables onto cfg: an
// unset variable leaves the existing value untouched, a
// present-but-unparseable one is a startup error.
func ApplyEnvOverrides(cfg *Config, environ []string) error {
	if cfg == nil {
		return errors.New("divvy: config is required")
	}
	values := envMap(environ)

	if v, ok := values["DIVVY_LISTEN_ADDR"]; ok {
		cfg.ListenAddr = v
	}
	if v, ok := values["DIVVY_CONFIG"]; ok {
		cfg.ConfigPath = v
	}
	if v, ok := values["DIVVY_BACKEND_ADDR"]; ok {
		cfg.BackendAddrs = splitAddrs(v)
	}
	if v, ok := values["DIVVY_MAX_LINE_BYTES"]; ok {
		n, err := parseIntEnv("DIVVY_MAX_LINE_BYTES", v)
		if err != nil {
			return err
		}
		cfg.MaxLineBytes = int(n)
	}
	if v, ok := values["DIVVY_MAX_CONNS"]; ok {
		n, err := parseIntEnv("DIVVY_MAX_CONNS", v)
		if err != nil {
			return err
		}
		cfg.MaxConns = int(n)
	}
	if v, ok := values["DIVVY_DRAIN_TIMEOUT"]; ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return errors.New("divvy: invalid DIVVY_DRAIN_TIMEOUT: " + v)
		}
		cfg.DrainTimeout = d
	}
	if v, ok := values["DIVVY_FAIL_POLICY"]; ok {
		cfg.FailPolicy = v
	}
	if v, ok := values["DIVVY_LOG_LEVEL"]; ok {
		cfg.LogLevel = v
	}
	return nil
}

func splitAddrs(v string) []string {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	addrs := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			addrs = append(addrs, p)
		}
	}
	return addrs
}

func envMap(environ []string) map[string]string {
	values := make(map[string]string, len(environ))
	for _, entry := range environ {
		parts := strings.SplitN(entry, "=", 2)
		if len(parts) != 2 {
			continue
		}
		key := strings.TrimSpace(parts[0])
		if key == "" {
			continue
		}
		values[key] = parts[1]
	}
	return values
}

func parseIntEnv(name, value string) (int64, error) {
	parsed, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	if err != nil {
		return 0, errors.New("divvy: invalid env value for " + name)
	}
	return parsed, nil
}
