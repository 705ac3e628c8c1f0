// SPDX-License-Identifier: MPL-2.0

package config

// configDirOverride replaces ConfigDir in tests; os.UserConfigDir ignores
// HOME on some platforms.
var configDirOverride string

// SetConfigDirOverride makes ConfigDir return dir.
func SetConfigDirOverride(dir string) {
	configDirOverride = dir
}

// Reset clears test overrides.
func Reset() {
	configDirOverride = ""
}
