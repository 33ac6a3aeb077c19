// Package core provides a small, stable facade over piiscan's internal engine
// for external integrations. It re-exports a narrow API surface so other
// tools can depend on a stable import path without reaching into internal
// packages.
//
// Example:
//
//	set, _ := core.CompilePatterns(core.Pairs{{Category: "email", Source: `[\w.]+@[\w.]+`}})
//	out, err := core.ScanLocal(ctx, core.LocalConfig{Root: "."}, set)
//	if err != nil { /* handle */ }
//	_ = core.MarshalOutcome(os.Stdout, out)
package core
