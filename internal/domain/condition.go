package domain

import "fmt"

// ConditionOp is an operator of the conditional-required expression grammar.
// The grammar is deliberately closed (field reference + equality + boolean
// combinators) so schemas stay pure data: no embedded scripts, safe to share
// between the validator, a renderer, and external tooling.
type ConditionOp string

const (
	EQUALS ConditionOp = "EQUALS"
	AND    ConditionOp = "AND"
	OR     ConditionOp = "OR"
	NOT    ConditionOp = "NOT"
)

// IsValid reports whether the operator is part of the grammar.
func (op ConditionOp) IsValid() bool {
	switch op {
	case EQUALS, AND, OR, NOT:
		return true
	default:
		return false
	}
}

// Condition is a declarative boolean expression over sibling field values
// within one section occurrence. EQUALS compares a sibling field against a
// literal; AND/OR/NOT combine sub-conditions.
//
// An EQUALS whose referenced sibling is unset evaluates to false, never to
// an error, so partially filled forms can always be validated.
type Condition struct {
	Op    ConditionOp  `json:"op"`
	Field string       `json:"field,omitempty"`
	Value *Value       `json:"value,omitempty"`
	Args  []*Condition `json:"args,omitempty"`
}

// CheckShape verifies arity and payload rules of the expression tree without
// resolving field references. Reference resolution against the enclosing
// section happens during schema compilation.
func (c *Condition) CheckShape() error {
	if c == nil {
		return fmt.Errorf("condition is nil")
	}
	switch c.Op {
	case EQUALS:
		if c.Field == "" {
			return fmt.Errorf("EQUALS requires a field reference")
		}
		if c.Value == nil {
			return fmt.Errorf("EQUALS requires a literal value")
		}
		if len(c.Args) != 0 {
			return fmt.Errorf("EQUALS takes no sub-conditions")
		}
		if err := c.Value.Conforms(c.Value.Kind); err != nil {
			return fmt.Errorf("EQUALS literal: %w", err)
		}
	case AND, OR:
		if c.Field != "" || c.Value != nil {
			return fmt.Errorf("%s takes only sub-conditions", c.Op)
		}
		if len(c.Args) < 1 {
			return fmt.Errorf("%s requires at least one sub-condition", c.Op)
		}
		for i, arg := range c.Args {
			if err := arg.CheckShape(); err != nil {
				return fmt.Errorf("%s arg %d: %w", c.Op, i, err)
			}
		}
	case NOT:
		if c.Field != "" || c.Value != nil {
			return fmt.Errorf("NOT takes only a sub-condition")
		}
		if len(c.Args) != 1 {
			return fmt.Errorf("NOT requires exactly one sub-condition")
		}
		if err := c.Args[0].CheckShape(); err != nil {
			return fmt.Errorf("NOT arg: %w", err)
		}
	default:
		return fmt.Errorf("unknown condition operator %q", c.Op)
	}
	return nil
}

// References returns every sibling field id the expression mentions.
func (c *Condition) References() []string {
	if c == nil {
		return nil
	}
	var refs []string
	if c.Op == EQUALS {
		refs = append(refs, c.Field)
	}
	for _, arg := range c.Args {
		refs = append(refs, arg.References()...)
	}
	return refs
}
