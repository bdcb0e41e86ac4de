// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

// Package scripting embeds a Goja JavaScript VM for approval policies. Every
// evaluation is bounded by a context: when it ends the VM is interrupted.
package scripting

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/dop251/goja"
)

// Error is a script failure: an exception, a syntax error or an interrupt.
type Error struct {
	Message     string
	Interrupted bool
}

func (e *Error) Error() string { return e.Message }

// VM is a single-threaded JavaScript runtime. Calls are serialized.
type VM struct {
	mu  sync.Mutex
	rt  *goja.Runtime
	out func(string)
}

// New creates a VM whose print() and log() go to out (nil discards).
// Go struct values are exposed to scripts under their json tag names.
func New(out func(string)) *VM {
	if out == nil {
		out = func(string) {}
	}
	v := &VM{rt: goja.New(), out: out}
	v.rt.SetFieldNameMapper(goja.TagFieldNameMapper("json", true))

	emit := func(call goja.FunctionCall) goja.Value {
		parts := make([]string, len(call.Arguments))
		for i, arg := range call.Arguments {
			parts[i] = arg.String()
		}
		v.out(strings.Join(parts, " "))
		return goja.Undefined()
	}
	for _, name := range []string{"print", "log"} {
		// Set only fails for invalid names
		_ = v.rt.Set(name, emit)
	}
	return v
}

// Eval runs code and exports its completion value. undefined and null come
// back as nil.
func (v *VM) Eval(ctx context.Context, code string) (any, error) {
	return v.guard(ctx, func() (goja.Value, error) {
		return v.rt.RunString(code)
	})
}

// Call invokes the global function name.
func (v *VM) Call(ctx context.Context, name string, args ...any) (any, error) {
	return v.guard(ctx, func() (goja.Value, error) {
		fn, ok := goja.AssertFunction(v.rt.Get(name))
		if !ok {
			return nil, &Error{Message: name + " is not a function"}
		}
		vals := make([]goja.Value, len(args))
		for i, a := range args {
			vals[i] = v.rt.ToValue(a)
		}
		return fn(goja.Undefined(), vals...)
	})
}

// HasFunction reports whether name is a global function.
func (v *VM) HasFunction(name string) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	_, ok := goja.AssertFunction(v.rt.Get(name))
	return ok
}

func (v *VM) guard(ctx context.Context, fn func() (goja.Value, error)) (any, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return nil, &Error{Message: err.Error(), Interrupted: true}
	}

	done := make(chan struct{})
	fired := make(chan bool, 1)
	go func() {
		select {
		case <-ctx.Done():
			v.rt.Interrupt(context.Cause(ctx))
			fired <- true
		case <-done:
			fired <- false
		}
	}()
	val, err := fn()
	close(done)
	if <-fired {
		// Re-arm; the interrupt may have landed after fn returned
		v.rt.ClearInterrupt()
	}
	if err != nil {
		return nil, scriptError(err)
	}
	if val == nil || goja.IsUndefined(val) || goja.IsNull(val) {
		return nil, nil
	}
	return val.Export(), nil
}

func scriptError(err error) error {
	var exc *goja.Exception
	if errors.As(err, &exc) {
		// String keeps the message and position; Export gives a bare map
		return &Error{Message: exc.String()}
	}
	var intr *goja.InterruptedError
	if errors.As(err, &intr) {
		return &Error{Message: fmt.Sprintf("interrupted: %v", intr.Value()), Interrupted: true}
	}
	return err
}
