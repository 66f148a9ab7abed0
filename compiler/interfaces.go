package compiler

import (
	"fmt"

	"github.com/xyproto/env/v2"

	"github.com/sowmyaramapatruni/zeek/zam"
)

// Stmt is a reduced statement. Lowering emits provisional instructions
// through the compiler's builder methods; errors are reported through the
// compiler's Reporter rather than returned.
type Stmt interface {
	Lower(c *Compiler)
	EndsInReturn() bool
}

// Reporter receives user-level and internal compiler errors. No error is
// propagated across the compiler boundary any other way; a positive Errors
// count makes CompileBody return nil.
type Reporter interface {
	Error(format string, args ...any)
	InternalError(format string, args ...any)
	Errors() int
}

// UsageSet answers membership queries against a use-definition result.
type UsageSet interface {
	HasID(id *zam.ID) bool
}

// UseDefs is the use-definition analyzer. It is consulted only during
// initialization, to decide which parameters need a load instruction.
type UseDefs interface {
	HasUsage(body Stmt) bool
	GetUsage(body Stmt) UsageSet
}

// Profile enumerates the globals and locals of the function being compiled.
type Profile interface {
	Globals() []*zam.ID
	Locals() []*zam.ID
	NonRecursive() bool
}

// Reducer is part of the construction contract but is not consulted by the
// finalizer.
type Reducer interface{}

// Options holds the compilation knobs.
type Options struct {
	NoZAMOpt bool // disable optimization and frame remapping
	DumpCode bool // dump the instruction listings after finalization
}

// OptionsFromEnv builds Options with environment-variable overrides.
func OptionsFromEnv() *Options {
	return &Options{
		NoZAMOpt: env.Bool("ZAM_NO_OPT"),
		DumpCode: env.Bool("ZAM_DUMP_CODE"),
	}
}

// DiagReporter is the default Reporter. It collects formatted messages;
// internal errors count toward Errors so that compilation cannot produce a
// body after one occurs.
type DiagReporter struct {
	errs     []string
	internal []string
}

func NewDiagReporter() *DiagReporter {
	return &DiagReporter{}
}

func (r *DiagReporter) Error(format string, args ...any) {
	r.errs = append(r.errs, fmt.Sprintf(format, args...))
}

func (r *DiagReporter) InternalError(format string, args ...any) {
	r.internal = append(r.internal, fmt.Sprintf(format, args...))
}

func (r *DiagReporter) Errors() int {
	return len(r.errs) + len(r.internal)
}

// Messages returns the user-level error messages.
func (r *DiagReporter) Messages() []string { return r.errs }

// InternalErrors returns the internal error messages.
func (r *DiagReporter) InternalErrors() []string { return r.internal }
