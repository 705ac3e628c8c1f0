// SPDX-License-Identifier: MPL-2.0

package config

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/spf13/viper"

	"dval/internal/issue"
)

const (
	// AppName is the application name and the default instance token.
	AppName = "dval"
	// ConfigFileName is the config file name without extension.
	ConfigFileName = "config"
	// ConfigFileExt is the config file extension.
	ConfigFileExt = "cue"
	// EnvPrefix prefixes environment overrides.
	EnvPrefix = "DVAL"
)

//go:embed config_schema.cue
var configSchema string

// ErrConfigNotFound is returned when an explicitly requested file is missing.
var ErrConfigNotFound = errors.New("config file not found")

// Schema returns the CUE schema config files are validated against.
func Schema() string {
	return configSchema
}

// ConfigDir returns <user config dir>/dval.
//
//nolint:revive // ConfigDir reads better than Dir at call sites
func ConfigDir() (string, error) {
	if configDirOverride != "" {
		return configDirOverride, nil
	}
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to locate config directory: %w", err)
	}
	return filepath.Join(base, AppName), nil
}

func loadWithOptions(ctx context.Context, opts LoadOptions) (*Config, string, error) {
	select {
	case <-ctx.Done():
		return nil, "", fmt.Errorf("load config canceled: %w", ctx.Err())
	default:
	}

	v := newViper(DefaultConfig())

	path, err := resolvePath(opts)
	if err != nil {
		return nil, "", err
	}
	if path != "" {
		if err := loadCUEIntoViper(v, path); err != nil {
			return nil, "", issue.NewErrorContext().
				WithOperation("load configuration").
				WithResource(path).
				WithSuggestion("Check that the file contains valid CUE syntax").
				WithSuggestion("Compare it with 'dval config schema'").
				Wrap(err).
				BuildError()
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, "", fmt.Errorf("failed to parse config: %w", err)
	}
	if cfg.App.Name == "" {
		cfg.App.Name = AppName
	}
	return &cfg, path, nil
}

// resolvePath picks the file to load. An explicit path must exist; the
// implicit locations are optional and "" means defaults only.
func resolvePath(opts LoadOptions) (string, error) {
	if opts.ConfigFilePath != "" {
		if !fileExists(opts.ConfigFilePath) {
			return "", issue.NewErrorContext().
				WithOperation("load configuration").
				WithResource(opts.ConfigFilePath).
				WithSuggestion("Verify the --config path").
				WithSuggestion("Run 'dval config init' to write a default file").
				Wrap(ErrConfigNotFound).
				BuildError()
		}
		return opts.ConfigFilePath, nil
	}

	dir := opts.ConfigDirPath
	if dir == "" {
		var err error
		if dir, err = ConfigDir(); err != nil {
			return "", err
		}
	}
	for _, p := range []string{
		filepath.Join(dir, ConfigFileName+"."+ConfigFileExt),
		ConfigFileName + "." + ConfigFileExt,
	} {
		if fileExists(p) {
			return p, nil
		}
	}
	return "", nil
}

func newViper(defaults *Config) *viper.Viper {
	v := viper.New()
	v.SetDefault(KeyAppName, defaults.App.Name)
	v.SetDefault(KeyAppLogFile, defaults.App.LogFile)
	v.SetDefault(KeyAppLevel, defaults.App.Level)
	v.SetDefault(KeyLockEnabled, defaults.Lock.Enabled)
	v.SetDefault(KeyLockDir, defaults.Lock.Dir)
	v.SetDefault(KeyLockHost, defaults.Lock.Host)
	v.SetDefault(KeyLockProbe, defaults.Lock.ProbeTimeout)
	v.SetDefault(KeyLockMaxBind, defaults.Lock.MaxBindAttempts)
	v.SetDefault("modules.paths", defaults.Modules.Paths)
	v.SetDefault(KeyModulesWatch, defaults.Modules.Watch)
	v.SetDefault("modules.watch_dirs", defaults.Modules.WatchDirs)
	v.SetDefault(KeyModulesDebounce, defaults.Modules.Debounce)
	v.SetDefault(KeyModeDebug, defaults.Mode.Debug)
	v.SetDefault(KeyModeTrace, defaults.Mode.Trace)
	v.SetDefault(KeyModeExperiment, defaults.Mode.Experimental)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// loadCUEIntoViper validates the file against #Config and merges it into v.
// Fields are optional, so validation is not concrete and the result is
// decoded to a map rather than a struct.
func loadCUEIntoViper(v *viper.Viper, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := checkFileSize(data, maxFileSize, path); err != nil {
		return err
	}

	ctx := cuecontext.New()
	schemaValue := ctx.CompileString(configSchema)
	if schemaValue.Err() != nil {
		return fmt.Errorf("internal error: failed to compile config schema: %w", schemaValue.Err())
	}

	userValue := ctx.CompileBytes(data, cue.Filename(path))
	if userValue.Err() != nil {
		return formatError(userValue.Err(), path)
	}

	unified := schemaValue.LookupPath(cue.ParsePath("#Config")).Unify(userValue)
	if err := unified.Validate(cue.Concrete(false)); err != nil {
		return formatError(err, path)
	}

	var configMap map[string]any
	if err := unified.Decode(&configMap); err != nil {
		return formatError(err, path)
	}
	if err := v.MergeConfigMap(configMap); err != nil {
		return fmt.Errorf("failed to merge config: %w", err)
	}
	return nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// CreateDefaultConfig writes the defaults to <dir>/config.cue unless the file
// already exists, and returns its path. An empty dir means ConfigDir.
func CreateDefaultConfig(dir string) (string, error) {
	if dir == "" {
		var err error
		if dir, err = ConfigDir(); err != nil {
			return "", err
		}
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}

	path := filepath.Join(dir, ConfigFileName+"."+ConfigFileExt)
	if _, err := os.Stat(path); err == nil {
		return path, nil
	}
	if err := os.WriteFile(path, []byte(GenerateCUE(DefaultConfig())), 0o644); err != nil {
		return "", fmt.Errorf("failed to write config file: %w", err)
	}
	return path, nil
}

// GenerateCUE renders cfg as a config file.
func GenerateCUE(cfg *Config) string {
	var sb strings.Builder

	sb.WriteString("// dval configuration file\n\n")

	sb.WriteString("app: {\n")
	fmt.Fprintf(&sb, "\tname:  %q\n", cfg.App.Name)
	fmt.Fprintf(&sb, "\tlevel: %q\n", cfg.App.Level)
	if cfg.App.LogFile != "" {
		fmt.Fprintf(&sb, "\tlog_file: %q\n", cfg.App.LogFile)
	}
	sb.WriteString("}\n")

	sb.WriteString("\nlock: {\n")
	fmt.Fprintf(&sb, "\tenabled:           %v\n", cfg.Lock.Enabled)
	if cfg.Lock.Dir != "" {
		fmt.Fprintf(&sb, "\tdir:               %q\n", cfg.Lock.Dir)
	}
	fmt.Fprintf(&sb, "\thost:              %q\n", cfg.Lock.Host)
	fmt.Fprintf(&sb, "\tprobe_timeout:     %q\n", cfg.Lock.ProbeTimeout.String())
	fmt.Fprintf(&sb, "\tmax_bind_attempts: %d\n", cfg.Lock.MaxBindAttempts)
	sb.WriteString("}\n")

	sb.WriteString("\nmodules: {\n")
	fmt.Fprintf(&sb, "\tpaths:      %s\n", cueList(cfg.Modules.Paths))
	fmt.Fprintf(&sb, "\twatch:      %v\n", cfg.Modules.Watch)
	fmt.Fprintf(&sb, "\twatch_dirs: %s\n", cueList(cfg.Modules.WatchDirs))
	fmt.Fprintf(&sb, "\tdebounce:   %q\n", cfg.Modules.Debounce.String())
	sb.WriteString("}\n")

	sb.WriteString("\nmode: {\n")
	fmt.Fprintf(&sb, "\tdebug:        %v\n", cfg.Mode.Debug)
	fmt.Fprintf(&sb, "\ttrace:        %v\n", cfg.Mode.Trace)
	fmt.Fprintf(&sb, "\texperimental: %v\n", cfg.Mode.Experimental)
	sb.WriteString("}\n")

	return sb.String()
}

func cueList(items []string) string {
	quoted := make([]string, len(items))
	for i, s := range items {
		quoted[i] = fmt.Sprintf("%q", s)
	}
	return "[" + strings.Join(quoted, ", ") + "]"
}
