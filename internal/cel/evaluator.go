// Package cel wraps cel-go for the predicates used to filter dashboards and
// select panel nodes. Data is always bound to the variable "_".
package cel

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"
	"github.com/google/cel-go/common/types/traits"
	celext "github.com/google/cel-go/ext"
)

// ErrEmptyExpression is returned when compiling a blank predicate.
var ErrEmptyExpression = errors.New("empty expression")

// Evaluator compiles and evaluates CEL expressions against "_".
type Evaluator struct {
	env *cel.Env
}

// NewEvaluator builds an environment with the strings, lists, math and
// encoders extensions plus any extra options.
func NewEvaluator(opts ...cel.EnvOption) (*Evaluator, error) {
	base := []cel.EnvOption{
		cel.Variable("_", cel.DynType),
		celext.Strings(),
		celext.Encoders(),
		celext.Lists(),
		celext.Math(),
	}
	env, err := cel.NewEnv(append(base, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("create CEL environment: %w", err)
	}
	return &Evaluator{env: env}, nil
}

var shared = sync.OnceValues(func() (*Evaluator, error) { return NewEvaluator() })

// Shared returns a process-wide evaluator with the default environment. The
// environment is immutable and safe for concurrent use.
func Shared() (*Evaluator, error) {
	return shared()
}

// Evaluate compiles and runs expr once against data.
// Example: "_.tags.service == 'aws'" or "_.children.filter(x, x.node_type == 'chart')"
func (e *Evaluator) Evaluate(expr string, data any) (any, error) {
	prg, err := e.program(expr)
	if err != nil {
		return nil, err
	}
	return eval(prg, data)
}

// Predicate is a compiled boolean expression that can be matched against many
// values without recompiling.
type Predicate struct {
	expr string
	prg  cel.Program
}

// Compile prepares expr as a predicate.
func (e *Evaluator) Compile(expr string) (*Predicate, error) {
	if strings.TrimSpace(expr) == "" {
		return nil, ErrEmptyExpression
	}
	prg, err := e.program(expr)
	if err != nil {
		return nil, err
	}
	return &Predicate{expr: expr, prg: prg}, nil
}

func (p *Predicate) String() string { return p.expr }

// Match evaluates the predicate against data. Non-boolean results are errors.
func (p *Predicate) Match(data any) (bool, error) {
	out, err := eval(p.prg, data)
	if err != nil {
		return false, err
	}
	b, ok := out.(bool)
	if !ok {
		return false, fmt.Errorf("expression %q returned %T, want bool", p.expr, out)
	}
	return b, nil
}

func (e *Evaluator) program(expr string) (cel.Program, error) {
	ast, issues := e.env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("compile: %w", issues.Err())
	}
	prg, err := e.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("program: %w", err)
	}
	return prg, nil
}

func eval(prg cel.Program, data any) (any, error) {
	out, _, err := prg.Eval(map[string]any{"_": data})
	if err != nil {
		return nil, fmt.Errorf("eval: %w", err)
	}
	return ToGo(out), nil
}

// ToGo converts a CEL value into plain Go values: lists become []any and
// maps become map[string]any, recursively.
func ToGo(val ref.Val) any {
	switch v := val.(type) {
	case nil, types.Null:
		return nil
	case types.Bool:
		return bool(v)
	case types.Int:
		return int64(v)
	case types.Uint:
		return uint64(v)
	case types.Double:
		return float64(v)
	case types.String:
		return string(v)
	case types.Bytes:
		return []byte(v)
	case traits.Mapper:
		out := make(map[string]any)
		for it := v.Iterator(); it.HasNext() == types.True; {
			k := it.Next()
			out[fmt.Sprint(ToGo(k))] = ToGo(v.Get(k))
		}
		return out
	case traits.Lister:
		out := make([]any, 0)
		for it := v.Iterator(); it.HasNext() == types.True; {
			out = append(out, ToGo(it.Next()))
		}
		return out
	default:
		return val.Value()
	}
}
