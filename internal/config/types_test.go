// SPDX-License-Identifier: MPL-2.0

package config

import "testing"

func TestConfig_GetAndIs(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.Mode.Trace = true

	tests := []struct {
		key  string
		want string
	}{
		{KeyAppName, AppName},
		{KeyAppLevel, "trace"},
		{KeyLockEnabled, "true"},
		{KeyLockHost, "127.0.0.1"},
		{KeyLockProbe, "1s"},
		{KeyLockMaxBind, "5"},
		{KeyModulesWatch, "false"},
		{KeyModeDebug, "true"},
		{KeyModeTrace, "true"},
		{"no.such.key", ""},
	}
	for _, tt := range tests {
		if got := cfg.Get(tt.key); got != tt.want {
			t.Errorf("Get(%q) = %q, want %q", tt.key, got, tt.want)
		}
	}

	if !cfg.Is(KeyModeDebug) {
		t.Error("Is(mode.debug) = false while tracing")
	}
	if cfg.Is(KeyModeExperiment) || cfg.Is(KeyAppName) || cfg.Is("no.such.key") {
		t.Error("Is() = true for an unset or non-boolean key")
	}
}

func TestConfig_LogLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		cfg  Config
		want string
	}{
		{"empty", Config{}, "info"},
		{"configured", Config{App: AppConfig{Level: "warn"}}, "warn"},
		{"debug mode", Config{App: AppConfig{Level: "warn"}, Mode: ModeConfig{Debug: true}}, "debug"},
		{"trace wins", Config{Mode: ModeConfig{Debug: true, Trace: true}}, "trace"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := tt.cfg.LogLevel(); got != tt.want {
				t.Errorf("LogLevel() = %q, want %q", got, tt.want)
			}
		})
	}
}
