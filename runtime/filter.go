package runtime

import (
	"fmt"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// FilterFunc transforms a loaded payload. arg is the argument declared next
// to the filter in the manifest, passed through verbatim.
type FilterFunc func(payload any, arg any) (any, error)

// Filter pairs a transform with its argument. Filters are declared as an
// ordered slice and applied to the loaded payload in declaration order.
type Filter struct {
	Name  string
	Arg   any
	Apply FilterFunc
}

// NewFilter wraps a plain transform function as a named Filter.
func NewFilter(name string, fn FilterFunc, arg any) Filter {
	return Filter{Name: name, Arg: arg, Apply: fn}
}

// ExprFilter compiles an expr-lang expression into a Filter. The expression
// sees the loaded payload as `data` and the filter argument as `arg`, and its
// result replaces the payload:
//
//	runtime.ExprFilter("adults_only", `filter(data, {.age >= arg})`, 18)
//
// A compile error surfaces on first application, so a bad expression fails
// the input step rather than the manifest declaration.
func ExprFilter(name, expression string, arg any) Filter {
	program, compileErr := expr.Compile(expression)
	return Filter{
		Name: name,
		Arg:  arg,
		Apply: func(payload any, arg any) (any, error) {
			if compileErr != nil {
				return nil, fmt.Errorf("compiling %q: %w", expression, compileErr)
			}
			return runProgram(program, payload, arg)
		},
	}
}

func runProgram(program *vm.Program, payload, arg any) (any, error) {
	return expr.Run(program, map[string]any{
		"data": payload,
		"arg":  arg,
	})
}

// applyFilters runs each filter over the payload in order. The first failure
// wins and is wrapped as ErrFilterFailure.
func applyFilters(payload any, filters []Filter) (any, error) {
	for _, f := range filters {
		if f.Apply == nil {
			return nil, fmt.Errorf("%w: filter %s has no transform", ErrFilterFailure, f.Name)
		}
		out, err := f.Apply(payload, f.Arg)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrFilterFailure, f.Name, err)
		}
		payload = out
	}
	return payload, nil
}
