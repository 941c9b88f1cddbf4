// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package codegen

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strings"
	"sync"
	"weak"

	"github.com/dop251/goja"
)

// Hook is the interception point installed on one goja runtime.
type Hook struct {
	vm     *goja.Runtime
	ctxFn  func() context.Context
	tr     translator
	evalFn goja.Callable
}

// Option configures a Hook at install time.
type Option func(*Hook)

// WithContext sets the function that supplies the context handed to the
// decider for each interception event. It is called on the runtime's
// goroutine, once per event.
func WithContext(fn func() context.Context) Option {
	return func(h *Hook) {
		h.ctxFn = fn
	}
}

var (
	installMu sync.Mutex
	installed = make(map[weak.Pointer[goja.Runtime]]weak.Pointer[Hook])
)

// Install routes every compile-from-string on vm through the registered
// decider. It is idempotent: installing on the same runtime again returns the
// existing Hook and ignores opts.
//
// Install must be called while vm is not running, before any untrusted code
// has had a chance to capture the original eval or Function.
func Install(vm *goja.Runtime, opts ...Option) (*Hook, error) {
	if vm == nil {
		return nil, &InitializationError{Op: "install", Err: errors.New("nil runtime")}
	}

	installMu.Lock()
	defer installMu.Unlock()

	key := weak.Make(vm)
	if wp, ok := installed[key]; ok {
		if h := wp.Value(); h != nil {
			return h, nil
		}
	}

	h := &Hook{vm: vm, ctxFn: context.Background}
	for _, opt := range opts {
		opt(h)
	}
	if err := h.install(); err != nil {
		return nil, err
	}

	installed[key] = weak.Make(h)
	runtime.AddCleanup(vm, forget, key)
	return h, nil
}

func forget(key weak.Pointer[goja.Runtime]) {
	installMu.Lock()
	delete(installed, key)
	installMu.Unlock()
}

// constructorKind selects the source prefix the engine uses when it
// assembles a dynamic function.
type constructorKind int

const (
	plainFunction constructorKind = iota
	generatorFunction
	asyncFunction
)

func (k constructorKind) prefix() string {
	switch k {
	case generatorFunction:
		return "(function* anonymous("
	case asyncFunction:
		return "(async function anonymous("
	default:
		return "(function anonymous("
	}
}

// functionSource builds the text the engine compiles for a dynamic function
// with the given (already stringified) arguments.
func functionSource(kind constructorKind, args []string) string {
	var sb strings.Builder
	sb.WriteString(kind.prefix())
	if len(args) > 1 {
		sb.WriteString(strings.Join(args[:len(args)-1], ","))
	}
	sb.WriteString("\n) {\n")
	if len(args) > 0 {
		sb.WriteString(args[len(args)-1])
	}
	sb.WriteString("\n})")
	return sb.String()
}

func (h *Hook) install() error {
	vm := h.vm
	global := vm.GlobalObject()

	evalFn, ok := goja.AssertFunction(global.Get("eval"))
	if !ok {
		return &InitializationError{Op: "install", Err: errors.New("runtime does not expose eval")}
	}
	h.evalFn = evalFn

	evalError, ok := global.Get("EvalError").(*goja.Object)
	if !ok {
		return &InitializationError{Op: "install", Err: errors.New("runtime does not expose EvalError")}
	}
	if _, ok := goja.AssertConstructor(evalError); !ok {
		return &InitializationError{Op: "install", Err: errors.New("EvalError is not a constructor")}
	}
	h.tr = translator{vm: vm, evalError: evalError}

	function, ok := global.Get("Function").(*goja.Object)
	if !ok {
		return &InitializationError{Op: "install", Err: errors.New("runtime does not expose Function")}
	}
	generator, err := h.intrinsicConstructor("(function* () {})")
	if err != nil {
		return err
	}
	async, err := h.intrinsicConstructor("(async function () {})")
	if err != nil {
		return err
	}

	functionWrapper, err := h.wrapConstructor(function, "Function", plainFunction)
	if err != nil {
		return err
	}
	generatorWrapper, err := h.wrapConstructor(generator, "GeneratorFunction", generatorFunction)
	if err != nil {
		return err
	}
	asyncWrapper, err := h.wrapConstructor(async, "AsyncFunction", asyncFunction)
	if err != nil {
		return err
	}

	evalWrapper := vm.ToValue(h.eval).(*goja.Object)
	if err := setNameAndLength(vm, evalWrapper, "eval", 1); err != nil {
		return &InitializationError{Op: "wrap eval", Err: err}
	}

	type replacement struct {
		owner *goja.Object
		name  string
		value *goja.Object
	}
	replacements := []replacement{
		{global, "eval", evalWrapper},
		{global, "Function", functionWrapper},
	}
	for _, c := range []struct{ ctor, wrapper *goja.Object }{
		{function, functionWrapper},
		{generator, generatorWrapper},
		{async, asyncWrapper},
	} {
		proto, ok := c.ctor.Get("prototype").(*goja.Object)
		if !ok {
			return &InitializationError{Op: "install", Err: errors.New("constructor has no prototype object")}
		}
		replacements = append(replacements, replacement{proto, "constructor", c.wrapper})
	}
	for _, r := range replacements {
		// Unset flags keep the property's existing attributes.
		if err := r.owner.DefineDataProperty(r.name, r.value, goja.FLAG_NOT_SET, goja.FLAG_NOT_SET, goja.FLAG_NOT_SET); err != nil {
			return &InitializationError{Op: "replace " + r.name, Err: err}
		}
	}
	return nil
}

// intrinsicConstructor returns the constructor behind a function literal's
// prototype, which is not reachable through a global binding.
func (h *Hook) intrinsicConstructor(literal string) (*goja.Object, error) {
	v, err := h.vm.RunString(literal)
	if err != nil {
		return nil, &InitializationError{Op: "resolve " + literal, Err: err}
	}
	fn, ok := v.(*goja.Object)
	if !ok || fn.Prototype() == nil {
		return nil, &InitializationError{Op: "resolve " + literal, Err: errors.New("no prototype")}
	}
	ctor, ok := fn.Prototype().Get("constructor").(*goja.Object)
	if !ok {
		return nil, &InitializationError{Op: "resolve " + literal, Err: errors.New("no constructor")}
	}
	return ctor, nil
}

// wrapConstructor returns a constructor that consults the decider and then
// delegates to orig. The wrapper shares orig's prototype object, so
// instanceof and new.target based subclassing keep working.
func (h *Hook) wrapConstructor(orig *goja.Object, name string, kind constructorKind) (*goja.Object, error) {
	ctor, ok := goja.AssertConstructor(orig)
	if !ok {
		return nil, &InitializationError{Op: "wrap " + name, Err: fmt.Errorf("%s is not a constructor", name)}
	}

	vm := h.vm
	wrapper := vm.ToValue(func(call goja.ConstructorCall) *goja.Object {
		// Stringify once so user toString() side effects run exactly once.
		texts := make([]string, len(call.Arguments))
		args := make([]goja.Value, len(call.Arguments))
		for i, a := range call.Arguments {
			s := a.ToString()
			texts[i] = s.String()
			args[i] = s
		}

		h.check(functionSource(kind, texts))

		obj, err := ctor(call.NewTarget, args...)
		if err != nil {
			panic(err)
		}
		return obj
	}).(*goja.Object)

	if err := setNameAndLength(vm, wrapper, name, 1); err != nil {
		return nil, &InitializationError{Op: "wrap " + name, Err: err}
	}
	if err := wrapper.DefineDataProperty("prototype", orig.Get("prototype"), goja.FLAG_FALSE, goja.FLAG_FALSE, goja.FLAG_FALSE); err != nil {
		return nil, &InitializationError{Op: "wrap " + name, Err: err}
	}
	return wrapper, nil
}

func setNameAndLength(vm *goja.Runtime, fn *goja.Object, name string, length int) error {
	if err := fn.DefineDataProperty("name", vm.ToValue(name), goja.FLAG_FALSE, goja.FLAG_TRUE, goja.FLAG_FALSE); err != nil {
		return err
	}
	return fn.DefineDataProperty("length", vm.ToValue(length), goja.FLAG_FALSE, goja.FLAG_TRUE, goja.FLAG_FALSE)
}

// eval replaces the global eval. Non-string arguments are returned as-is
// without compiling anything, matching the intrinsic.
func (h *Hook) eval(call goja.FunctionCall) goja.Value {
	src, ok := call.Argument(0).(goja.String)
	if !ok {
		return call.Argument(0)
	}

	h.check(src.String())

	v, err := h.evalFn(goja.Undefined(), src)
	if err != nil {
		panic(err)
	}
	return v
}

// check dispatches one interception event and throws unless it is allowed.
func (h *Hook) check(source string) {
	ctx := h.ctxFn()
	if ctx == nil {
		ctx = context.Background()
	}
	h.tr.raise(dispatch(ctx, source))
}
