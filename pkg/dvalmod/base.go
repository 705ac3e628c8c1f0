// SPDX-License-Identifier: MPL-2.0

package dvalmod

import (
	"context"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"github.com/charmbracelet/log"
)

// Base provides identity, state and entry-point handling shared by all
// module backends. Backends embed it and implement Load.
type Base struct {
	info   Info
	index  *Index
	logger *log.Logger

	state  atomic.Int32
	opened atomic.Bool
	closed atomic.Bool

	epMu sync.Mutex
	ep   EntryPoint
}

// NewBase creates a Base for info. A nil logger disables logging.
func NewBase(info Info, logger *log.Logger) *Base {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	b := &Base{
		info:   info,
		index:  NewIndex(),
		logger: logger,
	}
	b.state.Store(int32(StateNotLoaded))
	return b
}

// Info returns the module identity.
func (b *Base) Info() Info { return b.info }

// State returns the current lifecycle state.
func (b *Base) State() State { return State(b.state.Load()) }

// Index returns the module's entries.
func (b *Base) Index() *Index { return b.index }

// IsLibrary reports whether the module declares no entry point.
func (b *Base) IsLibrary() bool { return b.info.IsLibrary() }

// Started reports whether an entry point is currently running.
func (b *Base) Started() bool {
	b.epMu.Lock()
	defer b.epMu.Unlock()
	return b.ep != nil
}

// MarkLoaded records a successful Load.
func (b *Base) MarkLoaded() {
	b.state.CompareAndSwap(int32(StateNotLoaded), int32(StateLoaded))
}

// Open instantiates and starts the entry point. Library modules only change
// state. A failed activation leaves the module inert and returns an
// *ActivationError.
func (b *Base) Open(ctx context.Context, inst Instantiator) error {
	if !b.State().IsLoaded() {
		return fmt.Errorf("open %q: %w", b.info.Name, ErrNotLoaded)
	}
	if !b.opened.CompareAndSwap(false, true) {
		return fmt.Errorf("open %q: %w", b.info.Name, ErrAlreadyOpened)
	}

	if b.IsLibrary() {
		b.state.Store(int32(StateOpened))
		return nil
	}

	b.logger.Debug("opening module", "module", b.info.Name, "entry", b.info.EntryPoint)

	if err := b.activate(ctx, inst); err != nil {
		b.state.Store(int32(StateInert))
		return &ActivationError{Module: b.info.Name, EntryPoint: b.info.EntryPoint, Cause: err}
	}
	b.state.Store(int32(StateOpened))
	return nil
}

func (b *Base) activate(ctx context.Context, inst Instantiator) error {
	if inst == nil {
		return fmt.Errorf("no instantiator")
	}
	v, err := inst.Instantiate(ctx, b.info, b.info.EntryPoint)
	if err != nil {
		return err
	}
	ep, ok := v.(EntryPoint)
	if !ok {
		return fmt.Errorf("%T does not implement the entry point interface (start, stop)", v)
	}
	if err := ep.Start(ctx); err != nil {
		return fmt.Errorf("start: %w", err)
	}

	b.epMu.Lock()
	b.ep = ep
	b.epMu.Unlock()
	return nil
}

// Close stops a started entry point. Only the first call has an effect.
func (b *Base) Close(ctx context.Context) error {
	if !b.closed.CompareAndSwap(false, true) {
		return nil
	}
	defer b.state.Store(int32(StateClosed))

	b.epMu.Lock()
	ep := b.ep
	b.ep = nil
	b.epMu.Unlock()

	if ep == nil {
		return nil
	}
	if err := ep.Stop(ctx); err != nil {
		return fmt.Errorf("stop %q: %w", b.info.Name, err)
	}
	return nil
}
