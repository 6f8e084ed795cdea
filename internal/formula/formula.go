// Package formula turns formula source text into compute functions over
// int64 cell values.
//
// A formula is either the name of a builtin (sum, sub, mul, max, ...) or a
// JavaScript expression prefixed with "js:". JavaScript runs on goja with
// the dependency values bound to the array args:
//
//	js: args[0] * 2 + args[1]
//	js: Math.max.apply(null, args)
package formula

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/dop251/goja"

	"github.com/roach88/cellgraph/internal/reactor"
)

// JSPrefix marks a JavaScript formula.
const JSPrefix = "js:"

// CompileError reports formula source that cannot be compiled.
type CompileError struct {
	Source  string
	Message string
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("formula %q: %s", e.Source, e.Message)
}

// EvalError reports a JavaScript formula that threw or returned something
// that is not a number. Compute functions cannot return errors, so the
// function panics with *EvalError; callers that run untrusted formulas
// recover it.
type EvalError struct {
	Source string
	Err    error
}

func (e *EvalError) Error() string {
	return fmt.Sprintf("formula %q: %v", e.Source, e.Err)
}

func (e *EvalError) Unwrap() error {
	return e.Err
}

// ErrNoArguments is wrapped by EvalError when a builtin that needs at
// least one value receives none.
var ErrNoArguments = errors.New("builtin needs at least one argument")

// Compile parses src and returns its compute function.
func Compile(src string) (reactor.ComputeFunc[int64], error) {
	trimmed := strings.TrimSpace(src)
	if trimmed == "" {
		return nil, &CompileError{Source: src, Message: "empty formula"}
	}

	if strings.HasPrefix(trimmed, JSPrefix) {
		return compileJS(src, strings.TrimSpace(strings.TrimPrefix(trimmed, JSPrefix)))
	}

	b, ok := builtins[strings.ToLower(trimmed)]
	if !ok {
		return nil, &CompileError{
			Source:  src,
			Message: fmt.Sprintf("unknown builtin (known: %s)", strings.Join(BuiltinNames(), ", ")),
		}
	}
	return b.bind(src), nil
}

// MustCompile is Compile that panics on error. For tests and fixed
// formulas only.
func MustCompile(src string) reactor.ComputeFunc[int64] {
	fn, err := Compile(src)
	if err != nil {
		panic(err)
	}
	return fn
}

// Check reports whether src compiles, without keeping the result.
func Check(src string) error {
	_, err := Compile(src)
	return err
}

// CheckArity reports a builtin that cannot take n arguments. JavaScript
// formulas accept any number.
func CheckArity(src string, n int) error {
	b, ok := builtins[strings.ToLower(strings.TrimSpace(src))]
	if !ok || n >= b.minArgs {
		return nil
	}
	return &CompileError{
		Source:  src,
		Message: fmt.Sprintf("needs at least %d argument(s), got %d", b.minArgs, n),
	}
}

// IsJS reports whether src is a JavaScript formula.
func IsJS(src string) bool {
	return strings.HasPrefix(strings.TrimSpace(src), JSPrefix)
}

// BuiltinNames returns the builtin formula names, sorted.
func BuiltinNames() []string {
	names := make([]string, 0, len(builtins))
	for name := range builtins {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// compileJS compiles an expression once. Every evaluation runs the program
// on a fresh runtime, so a formula that writes globals still yields the same
// value for the same arguments.
func compileJS(src, expr string) (reactor.ComputeFunc[int64], error) {
	if expr == "" {
		return nil, &CompileError{Source: src, Message: "empty JavaScript expression"}
	}

	prog, err := goja.Compile("formula", "("+expr+")", true)
	if err != nil {
		return nil, &CompileError{Source: src, Message: err.Error()}
	}

	return func(args []int64) int64 {
		vm := goja.New()
		vals := make([]interface{}, len(args))
		for i, a := range args {
			vals[i] = a
		}
		if err := vm.Set("args", vm.NewArray(vals...)); err != nil {
			panic(&EvalError{Source: src, Err: err})
		}

		v, err := vm.RunProgram(prog)
		if err != nil {
			panic(&EvalError{Source: src, Err: err})
		}
		return toInt64(src, v)
	}, nil
}

func toInt64(src string, v goja.Value) int64 {
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		panic(&EvalError{Source: src, Err: errors.New("expression produced no value")})
	}
	switch x := v.Export().(type) {
	case int64:
		return x
	case float64:
		if x != x {
			panic(&EvalError{Source: src, Err: errors.New("expression produced NaN")})
		}
		return v.ToInteger()
	case bool:
		if x {
			return 1
		}
		return 0
	default:
		panic(&EvalError{Source: src, Err: fmt.Errorf("expression produced %T, want a number", x)})
	}
}
