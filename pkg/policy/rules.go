// Package policy evaluates optional CEL admission rules over the numeric facts
// of a certificate and its patch.
package policy

import (
	"errors"
	"fmt"

	"github.com/google/cel-go/cel"

	"github.com/deskiziarecords/OpenGate/pkg/gate"
)

// ErrRuleDenied is wrapped by RuleError.
var ErrRuleDenied = errors.New("admission rule denied")

// RuleError reports which rule evaluated to false.
type RuleError struct {
	Index int
	Expr  string
}

func (e *RuleError) Error() string {
	return fmt.Sprintf("%s: rule %d (%s)", ErrRuleDenied, e.Index, e.Expr)
}

func (e *RuleError) Unwrap() error { return ErrRuleDenied }

// Facts is the rule input. All values are exposed to CEL as int.
type Facts struct {
	Cost      uint64
	Budget    uint32
	Epsilon   uint32
	HardMax   uint32
	PatchSize int
}

// FactsFor collects the facts for c and patch.
func FactsFor(c *gate.Certificate, patch []byte) Facts {
	return Facts{
		Cost:      gate.ComputeCost(patch),
		Budget:    c.Budget,
		Epsilon:   c.Epsilon,
		HardMax:   c.HardMax,
		PatchSize: len(patch),
	}
}

func (f Facts) activation() map[string]any {
	return map[string]any{
		"cost":       int64(f.Cost),
		"budget":     int64(f.Budget),
		"epsilon":    int64(f.Epsilon),
		"hard_max":   int64(f.HardMax),
		"patch_size": int64(f.PatchSize),
		"margin":     int64(f.Budget) - int64(f.Cost),
	}
}

type rule struct {
	expr string
	prg  cel.Program
}

// RuleSet is an ordered list of compiled rules. Safe for concurrent use.
type RuleSet struct {
	rules []rule
}

// Compile builds a RuleSet. Every rule must type-check to bool.
func Compile(exprs []string) (*RuleSet, error) {
	env, err := cel.NewEnv(
		cel.Variable("cost", cel.IntType),
		cel.Variable("budget", cel.IntType),
		cel.Variable("epsilon", cel.IntType),
		cel.Variable("hard_max", cel.IntType),
		cel.Variable("patch_size", cel.IntType),
		cel.Variable("margin", cel.IntType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	rs := &RuleSet{rules: make([]rule, 0, len(exprs))}
	for i, expr := range exprs {
		ast, issues := env.Compile(expr)
		if issues != nil && issues.Err() != nil {
			return nil, fmt.Errorf("rule %d: compile: %w", i, issues.Err())
		}
		if !ast.OutputType().IsExactType(cel.BoolType) {
			return nil, fmt.Errorf("rule %d: result type %s, want bool", i, ast.OutputType())
		}
		prg, err := env.Program(ast,
			cel.InterruptCheckFrequency(100),
			cel.CostLimit(10000),
		)
		if err != nil {
			return nil, fmt.Errorf("rule %d: program: %w", i, err)
		}
		rs.rules = append(rs.rules, rule{expr: expr, prg: prg})
	}
	return rs, nil
}

// Len returns the number of rules. A nil RuleSet has none.
func (rs *RuleSet) Len() int {
	if rs == nil {
		return 0
	}
	return len(rs.rules)
}

// Evaluate runs the rules in order and stops at the first that is not true.
// Evaluation errors deny.
func (rs *RuleSet) Evaluate(f Facts) error {
	if rs == nil {
		return nil
	}
	input := f.activation()
	for i, r := range rs.rules {
		out, _, err := r.prg.Eval(input)
		if err != nil {
			return fmt.Errorf("rule %d: eval: %w", i, err)
		}
		ok, isBool := out.Value().(bool)
		if !isBool {
			return fmt.Errorf("rule %d: result not bool", i)
		}
		if !ok {
			return &RuleError{Index: i, Expr: r.expr}
		}
	}
	return nil
}
