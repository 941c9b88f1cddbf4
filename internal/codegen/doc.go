// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

// Package codegen gates dynamic code generation in goja runtimes.
//
// A single process-wide Decider is consulted every time a script running in
// an installed runtime compiles code from a string: eval(s), Function(...),
// new Function(...), and the generator and async function constructors,
// however they were reached (globalThis.eval, ({}).constructor.constructor,
// Object.getPrototypeOf(function*(){}).constructor, Reflect.construct).
//
// The Decider returns a Verdict:
//   - Allow: compilation proceeds exactly as if nothing was installed.
//   - Deny(msg): the call site throws new EvalError(msg).
//   - DenyDefault: the call site throws EvalError(DefaultBlockedMessage).
//
// A Decider that returns an error or panics produces a DecisionFault, which
// is thrown at the call site; it is never turned into an allow or a deny.
//
// Usage:
//
//	vm := goja.New()
//	if _, err := codegen.Install(vm, codegen.WithContext(currentCtx)); err != nil {
//		return err // fatal: never run unguarded
//	}
//	_ = codegen.Register(codegen.DecisionFunc(func(ctx context.Context, src string) (codegen.Verdict, error) {
//		if req, ok := reqctx.FromContext(ctx); ok && req.Blocked {
//			return codegen.Deny("Blocked eval in request " + req.ID), nil
//		}
//		return codegen.Allow(), nil
//	}))
//
// Installed runtimes evaluate eval with global scope (indirect eval
// semantics): goja recognizes direct eval only by identity with its own
// intrinsic, which is no longer reachable once the hook is in place. Evaluated
// code cannot see the caller's locals, and its var declarations land on the
// global object even when the caller is strict.
package codegen
