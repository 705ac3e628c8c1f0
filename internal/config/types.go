// SPDX-License-Identifier: MPL-2.0

package config

import (
	"strconv"
	"time"
)

// Keys accepted by Config.Get and Config.Is.
const (
	KeyAppName         = "app.name"
	KeyAppLogFile      = "app.log_file"
	KeyAppLevel        = "app.level"
	KeyLockEnabled     = "lock.enabled"
	KeyLockDir         = "lock.dir"
	KeyLockHost        = "lock.host"
	KeyLockProbe       = "lock.probe_timeout"
	KeyLockMaxBind     = "lock.max_bind_attempts"
	KeyModulesWatch    = "modules.watch"
	KeyModulesDebounce = "modules.debounce"
	KeyModeDebug       = "mode.debug"
	KeyModeTrace       = "mode.trace"
	KeyModeExperiment  = "mode.experimental"
)

type (
	// Config is the complete dval configuration.
	Config struct {
		App     AppConfig     `json:"app" toml:"app" mapstructure:"app"`
		Lock    LockConfig    `json:"lock" toml:"lock" mapstructure:"lock"`
		Modules ModulesConfig `json:"modules" toml:"modules" mapstructure:"modules"`
		Mode    ModeConfig    `json:"mode" toml:"mode" mapstructure:"mode"`
	}

	// AppConfig identifies the application. Name doubles as the
	// single-instance token.
	AppConfig struct {
		Name    string `json:"name" toml:"name" mapstructure:"name"`
		LogFile string `json:"log_file,omitempty" toml:"log_file,omitempty" mapstructure:"log_file"`
		Level   string `json:"level" toml:"level" mapstructure:"level"`
	}

	// LockConfig controls the single-instance lock. An empty Dir means the
	// system temp directory.
	LockConfig struct {
		Enabled         bool          `json:"enabled" toml:"enabled" mapstructure:"enabled"`
		Dir             string        `json:"dir,omitempty" toml:"dir,omitempty" mapstructure:"dir"`
		Host            string        `json:"host" toml:"host" mapstructure:"host"`
		ProbeTimeout    time.Duration `json:"probe_timeout" toml:"probe_timeout" mapstructure:"probe_timeout"`
		MaxBindAttempts int           `json:"max_bind_attempts" toml:"max_bind_attempts" mapstructure:"max_bind_attempts"`
	}

	// ModulesConfig lists where modules come from. Paths are files,
	// directories or doublestar globs.
	ModulesConfig struct {
		Paths     []string      `json:"paths" toml:"paths" mapstructure:"paths"`
		Watch     bool          `json:"watch" toml:"watch" mapstructure:"watch"`
		WatchDirs []string      `json:"watch_dirs" toml:"watch_dirs" mapstructure:"watch_dirs"`
		Debounce  time.Duration `json:"debounce" toml:"debounce" mapstructure:"debounce"`
	}

	ModeConfig struct {
		Debug        bool `json:"debug" toml:"debug" mapstructure:"debug"`
		Trace        bool `json:"trace" toml:"trace" mapstructure:"trace"`
		Experimental bool `json:"experimental" toml:"experimental" mapstructure:"experimental"`
	}
)

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		App: AppConfig{
			Name:  AppName,
			Level: "info",
		},
		Lock: LockConfig{
			Enabled:         true,
			Host:            "127.0.0.1",
			ProbeTimeout:    time.Second,
			MaxBindAttempts: 5,
		},
		Modules: ModulesConfig{
			Paths:     []string{},
			WatchDirs: []string{},
			Debounce:  500 * time.Millisecond,
		},
	}
}

// Get returns the value for key as a string, or "" for an unknown key.
func (c *Config) Get(key string) string {
	switch key {
	case KeyAppName:
		return c.App.Name
	case KeyAppLogFile:
		return c.App.LogFile
	case KeyAppLevel:
		return c.LogLevel()
	case KeyLockDir:
		return c.Lock.Dir
	case KeyLockHost:
		return c.Lock.Host
	case KeyLockProbe:
		return c.Lock.ProbeTimeout.String()
	case KeyLockMaxBind:
		return strconv.Itoa(c.Lock.MaxBindAttempts)
	case KeyModulesDebounce:
		return c.Modules.Debounce.String()
	}
	if _, ok := c.flag(key); ok {
		return strconv.FormatBool(c.Is(key))
	}
	return ""
}

// Is reports whether the boolean flag key is set. Unknown keys are false.
func (c *Config) Is(key string) bool {
	v, _ := c.flag(key)
	return v
}

func (c *Config) flag(key string) (value, known bool) {
	switch key {
	case KeyLockEnabled:
		return c.Lock.Enabled, true
	case KeyModulesWatch:
		return c.Modules.Watch, true
	case KeyModeDebug:
		return c.Mode.Debug || c.Mode.Trace, true
	case KeyModeTrace:
		return c.Mode.Trace, true
	case KeyModeExperiment:
		return c.Mode.Experimental, true
	}
	return false, false
}

// LogLevel returns the effective level: the debug and trace modes override
// app.level.
func (c *Config) LogLevel() string {
	switch {
	case c.Mode.Trace:
		return "trace"
	case c.Mode.Debug:
		return "debug"
	case c.App.Level == "":
		return "info"
	default:
		return c.App.Level
	}
}
