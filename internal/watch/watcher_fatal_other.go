// SPDX-License-Identifier: MPL-2.0

//go:build !unix && !windows

package watch

func isFatalFsnotifyError(error) bool { return false }
