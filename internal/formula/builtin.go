package formula

import "github.com/roach88/cellgraph/internal/reactor"

type builtin struct {
	// minArgs is the smallest argument count the builtin accepts.
	minArgs int
	fn      func(args []int64) int64
}

func (b builtin) bind(src string) reactor.ComputeFunc[int64] {
	return func(args []int64) int64 {
		if len(args) < b.minArgs {
			panic(&EvalError{Source: src, Err: ErrNoArguments})
		}
		return b.fn(args)
	}
}

var builtins = map[string]builtin{
	"sum":     {fn: sumOf},
	"add":     {fn: sumOf},
	"product": {fn: productOf},
	"mul":     {fn: productOf},
	"sub":     {minArgs: 1, fn: subOf},
	"neg":     {minArgs: 1, fn: func(a []int64) int64 { return -a[0] }},
	"max":     {minArgs: 1, fn: maxOf},
	"min":     {minArgs: 1, fn: minOf},
	"first":   {minArgs: 1, fn: func(a []int64) int64 { return a[0] }},
	"last":    {minArgs: 1, fn: func(a []int64) int64 { return a[len(a)-1] }},
	"avg":     {minArgs: 1, fn: func(a []int64) int64 { return sumOf(a) / int64(len(a)) }},
	"count":   {fn: func(a []int64) int64 { return int64(len(a)) }},
}

func sumOf(a []int64) int64 {
	var total int64
	for _, v := range a {
		total += v
	}
	return total
}

func productOf(a []int64) int64 {
	total := int64(1)
	for _, v := range a {
		total *= v
	}
	return total
}

// subOf subtracts every later argument from the first.
func subOf(a []int64) int64 {
	total := a[0]
	for _, v := range a[1:] {
		total -= v
	}
	return total
}

func maxOf(a []int64) int64 {
	m := a[0]
	for _, v := range a[1:] {
		if v > m {
			m = v
		}
	}
	return m
}

func minOf(a []int64) int64 {
	m := a[0]
	for _, v := range a[1:] {
		if v < m {
			m = v
		}
	}
	return m
}
