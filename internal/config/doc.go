// SPDX-License-Identifier: MPL-2.0

// Package config loads dval settings with Viper, using CUE as the file format.
//
// The file is looked up at --config, then <config dir>/dval/config.cue, then
// ./config.cue. It is validated against the embedded config_schema.cue before
// being merged over the defaults. DVAL_* environment variables override both,
// with dots in keys replaced by underscores (DVAL_LOCK_ENABLED=false).
package config
