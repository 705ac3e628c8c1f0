// SPDX-License-Identifier: MPL-2.0

//go:build unix

package watch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"golang.org/x/sys/unix"
)

func TestIsFatalFsnotifyError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "inotify watch limit", err: os.NewSyscallError("inotify_add_watch", unix.ENOSPC), want: true},
		{name: "process descriptor limit", err: os.NewSyscallError("inotify_init1", unix.EMFILE), want: true},
		{name: "system descriptor limit", err: unix.ENFILE, want: true},
		{name: "wrapped by Run", err: fmt.Errorf("watch: fatal fsnotify error: %w", unix.ENOSPC), want: true},
		{name: "queue overflow", err: errors.New("fsnotify: queue or buffer overflow"), want: false},
		{name: "unreadable module dir", err: os.NewSyscallError("inotify_add_watch", unix.EACCES), want: false},
		{name: "module dir removed", err: unix.ENOENT, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := isFatalFsnotifyError(tt.err); got != tt.want {
				t.Errorf("isFatalFsnotifyError(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestRun_StopsOnFatalError(t *testing.T) {
	t.Parallel()

	w, err := New(Config{Dirs: []string{t.TempDir()}})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	done := make(chan error, 1)
	go func() { done <- w.Run(context.Background()) }()

	w.fsw.Errors <- os.NewSyscallError("inotify_add_watch", unix.EACCES)
	w.fsw.Errors <- os.NewSyscallError("inotify_add_watch", unix.ENOSPC)

	select {
	case err := <-done:
		if !errors.Is(err, unix.ENOSPC) {
			t.Errorf("Run() error = %v, want it to wrap ENOSPC", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run() kept going after a fatal fsnotify error")
	}
}
