// SPDX-License-Identifier: MPL-2.0

package resolver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"
	"sync"

	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"
	"go.starlark.net/syntax"

	"dval/pkg/dvalmod"
)

// loadingKey is the thread-local holding the chain of units being loaded.
const loadingKey = "dval.loading"

// ErrLoadCycle is returned when code units load each other in a cycle.
var ErrLoadCycle = errors.New("load cycle")

var fileOptions = &syntax.FileOptions{
	Set:             true,
	While:           true,
	TopLevelControl: true,
}

// coreBuiltins are predeclared in every unit and cannot be replaced.
var coreBuiltins = []string{"log", "module", "resource"}

type (
	// Unit is a compiled code unit. It implements dvalmod.CodeUnit.
	Unit struct {
		name  string
		src   []byte
		owner dvalmod.Info
		prog  *starlark.Program

		exportsOnce sync.Once
		exports     starlark.StringDict
		exportsErr  error
	}

	// ScriptError carries the Starlark backtrace of a failed evaluation.
	ScriptError struct {
		Backtrace string
		Err       error
	}

	scriptEntryPoint struct {
		r     *Resolver
		owner dvalmod.Info
		name  string
		start starlark.Callable
		stop  starlark.Callable
	}
)

// Name returns the dotted logical name.
func (u *Unit) Name() string { return u.name }

// Source returns the bytes the unit was compiled from.
func (u *Unit) Source() []byte { return u.src }

// Owner returns the module the unit was defined from.
func (u *Unit) Owner() dvalmod.Info { return u.owner }

func (e *ScriptError) Error() string { return e.Backtrace }

func (e *ScriptError) Unwrap() error { return e.Err }

func evalError(err error) error {
	var ee *starlark.EvalError
	if errors.As(err, &ee) {
		return &ScriptError{Backtrace: ee.Backtrace(), Err: err}
	}
	return err
}

func (r *Resolver) definer(owner dvalmod.Info) dvalmod.DefineFunc {
	return func(name string, src []byte) (dvalmod.CodeUnit, error) {
		filename := owner.Name + ":" + strings.ReplaceAll(name, ".", "/") + dvalmod.CodeSuffix
		_, prog, err := starlark.SourceProgramOptions(fileOptions, filename, src, r.isPredeclared)
		if err != nil {
			return nil, err
		}
		r.logger.Debug("defined code unit", "unit", name, "module", owner.Name)
		return &Unit{name: name, src: src, owner: owner, prog: prog}, nil
	}
}

func (r *Resolver) isPredeclared(name string) bool {
	if slices.Contains(coreBuiltins, name) {
		return true
	}
	_, ok := r.builtins[name]
	return ok
}

func (r *Resolver) predeclared(owner dvalmod.Info) starlark.StringDict {
	d := make(starlark.StringDict, len(r.builtins)+len(coreBuiltins))
	maps.Copy(d, r.builtins)
	d["module"] = starlarkstruct.FromStringDict(starlark.String("module"), starlark.StringDict{
		"name":        starlark.String(owner.Name),
		"version":     starlark.String(owner.Version.String()),
		"author":      starlark.String(owner.Author),
		"entry_point": starlark.String(owner.EntryPoint),
	})
	d["log"] = starlark.NewBuiltin("log", r.logBuiltin(owner))
	d["resource"] = starlark.NewBuiltin("resource", r.resourceBuiltin)
	return d
}

func (r *Resolver) newThread(owner dvalmod.Info, name string, loading []string) *starlark.Thread {
	logger := r.logger.WithPrefix(owner.Name)
	thread := &starlark.Thread{
		Name:  name,
		Print: func(_ *starlark.Thread, msg string) { logger.Info(msg) },
		Load:  r.load,
	}
	thread.SetLocal(loadingKey, loading)
	return thread
}

// load implements the Starlark load statement across modules. Loaded units
// are executed once and shared frozen.
func (r *Resolver) load(thread *starlark.Thread, module string) (starlark.StringDict, error) {
	name := normalize(module)
	loading, _ := thread.Local(loadingKey).([]string)
	if slices.Contains(loading, name) {
		chain := append(slices.Clone(loading), name)
		return nil, fmt.Errorf("%w: %s", ErrLoadCycle, strings.Join(chain, " -> "))
	}

	unit, err := r.ResolveCode(name)
	if err != nil {
		return nil, err
	}
	return unit.loadExports(r, append(slices.Clone(loading), name))
}

func (u *Unit) loadExports(r *Resolver, loading []string) (starlark.StringDict, error) {
	u.exportsOnce.Do(func() {
		thread := r.newThread(u.owner, "load "+u.name, loading)
		globals, err := u.prog.Init(thread, r.predeclared(u.owner))
		if err != nil {
			u.exportsErr = fmt.Errorf("load %q: %w", u.name, evalError(err))
			return
		}
		globals.Freeze()
		u.exports = globals
	})
	return u.exports, u.exportsErr
}

func (r *Resolver) logBuiltin(owner dvalmod.Info) func(*starlark.Thread, *starlark.Builtin, starlark.Tuple, []starlark.Tuple) (starlark.Value, error) {
	logger := r.logger.WithPrefix(owner.Name)
	return func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		var (
			msg   starlark.Value
			level = "info"
		)
		if err := starlark.UnpackArgs(b.Name(), args, kwargs, "msg", &msg, "level?", &level); err != nil {
			return nil, err
		}
		text, ok := starlark.AsString(msg)
		if !ok {
			text = msg.String()
		}
		switch level {
		case "debug":
			logger.Debug(text)
		case "warn":
			logger.Warn(text)
		case "error":
			logger.Error(text)
		default:
			logger.Info(text)
		}
		return starlark.None, nil
	}
}

func (r *Resolver) resourceBuiltin(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var name string
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 1, &name); err != nil {
		return nil, err
	}
	rc, ok, err := r.ResolveResource(name)
	if err != nil {
		return nil, err
	}
	if !ok {
		return starlark.None, nil
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, err
	}
	return starlark.String(data), nil
}

func newScriptEntryPoint(r *Resolver, owner dvalmod.Info, name string, globals starlark.StringDict) (*scriptEntryPoint, bool) {
	start, ok := globals["start"].(starlark.Callable)
	if !ok {
		return nil, false
	}
	stop, ok := globals["stop"].(starlark.Callable)
	if !ok {
		return nil, false
	}
	return &scriptEntryPoint{r: r, owner: owner, name: name, start: start, stop: stop}, true
}

func (ep *scriptEntryPoint) Start(ctx context.Context) error {
	return ep.call(ctx, "start", ep.start)
}

func (ep *scriptEntryPoint) Stop(ctx context.Context) error {
	return ep.call(ctx, "stop", ep.stop)
}

func (ep *scriptEntryPoint) call(ctx context.Context, fn string, c starlark.Callable) error {
	thread := ep.r.newThread(ep.owner, fn+" "+ep.name, []string{ep.name})
	stopCancel := context.AfterFunc(ctx, func() { thread.Cancel(context.Cause(ctx).Error()) })
	defer stopCancel()

	if _, err := starlark.Call(thread, c, nil, nil); err != nil {
		return fmt.Errorf("%s.%s: %w", ep.name, fn, evalError(err))
	}
	return nil
}
