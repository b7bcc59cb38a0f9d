package config

import (
	"fmt"
	"time"
)

// Duration wraps time.Duration for YAML unmarshalling.
type Duration struct {
	time.Duration
	explicit bool
}

// UnmarshalText parses a textual duration, accepting empty strings.
func (d *Duration) UnmarshalText(text []byte) error {
	d.explicit = true
	if len(text) == 0 {
		d.Duration = 0
		return nil
	}
	dur, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", string(text), err)
	}
	d.Duration = dur
	return nil
}

// MarshalText renders the duration using time.Duration formatting.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// IsSet reports whether the duration was explicitly provided or non-zero.
func (d Duration) IsSet() bool {
	return d.explicit || d.Duration != 0
}

// Config mirrors the init.yaml document structure.
type Config struct {
	ServicesDir     string    `yaml:"servicesDir"`
	LogDir          string    `yaml:"logDir"`
	StateFile       string    `yaml:"stateFile"`
	Getty           GettySpec `yaml:"getty"`
	Mounts          MountSpec `yaml:"mounts"`
	ShutdownTimeout Duration  `yaml:"shutdownTimeout"`
	RestartBackoff  Duration  `yaml:"restartBackoff"`
	PoweroffPath    string    `yaml:"poweroffPath"`
}

// GettySpec configures the built-in console login service.
type GettySpec struct {
	TTY      string `yaml:"tty"`
	Disabled bool   `yaml:"disabled"`
}

// MountSpec controls early pseudo-filesystem setup.
type MountSpec struct {
	Disabled bool `yaml:"disabled"`
}

const (
	defaultServicesDir     = "/etc/ratos/services"
	defaultLogDir          = "/var/log"
	defaultStateFile       = "/run/ratinit/state.json"
	defaultTTY             = "/dev/tty1"
	defaultPoweroffPath    = "/sbin/poweroff"
	defaultShutdownTimeout = 5 * time.Second
	defaultRestartBackoff  = time.Second
)

// ApplyDefaults fills zero-valued fields with their boot-time defaults.
func (c *Config) ApplyDefaults() {
	if c.ServicesDir == "" {
		c.ServicesDir = defaultServicesDir
	}
	if c.LogDir == "" {
		c.LogDir = defaultLogDir
	}
	if c.StateFile == "" {
		c.StateFile = defaultStateFile
	}
	if c.Getty.TTY == "" {
		c.Getty.TTY = defaultTTY
	}
	if c.PoweroffPath == "" {
		c.PoweroffPath = defaultPoweroffPath
	}
	if !c.ShutdownTimeout.IsSet() {
		c.ShutdownTimeout.Duration = defaultShutdownTimeout
	}
	if !c.RestartBackoff.IsSet() {
		c.RestartBackoff.Duration = defaultRestartBackoff
	}
}

// Validate rejects configurations the supervisor cannot act on.
func (c *Config) Validate() error {
	if c.ShutdownTimeout.Duration < 0 {
		return fmt.Errorf("shutdownTimeout must not be negative")
	}
	if c.RestartBackoff.Duration < 0 {
		return fmt.Errorf("restartBackoff must not be negative")
	}
	return nil
}
