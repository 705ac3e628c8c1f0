// SPDX-License-Identifier: MPL-2.0

// Package applock ensures a single running instance per application token.
//
// At startup a process reads the last known lock port from a marker file in
// the temp directory and asks whoever listens there whether it holds the same
// token. A positive answer means another instance is running. Otherwise the
// process binds a loopback port, records it in the marker and answers the
// same question for later processes until [Lock.Release].
//
// Wire format: the client sends one length byte followed by the token bytes;
// the server replies with a single byte, 1 for a match and 0 otherwise. The
// marker holds the port as a 4-byte big-endian integer at offset 0 and is
// never truncated.
//
// Lock failures never stop the application: when no port can be bound the
// outcome is [OutcomeUnlocked] and the caller carries on without a lock.
package applock
