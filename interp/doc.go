// Package interp runs model-written Lua one top-level statement at a time.
//
// An Environment wraps a single gopher-lua state whose globals persist
// across statements. Parse splits program text into Statements, and an
// Executor runs each one, capturing printed output, the value of
// expression statements and any fault into a Record. A statement that
// calls quit, exit or os.exit ends execution with a TerminationSignal.
package interp
