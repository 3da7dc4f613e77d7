package validator

import "github.com/psma-report-engine/internal/domain"

// evalCondition interprets a conditional-required expression against the
// sibling values of one section occurrence. The grammar is closed (EQUALS,
// AND, OR, NOT) and evaluation never fails: an EQUALS whose referenced
// sibling is unset, or set with a mismatched kind, is simply false.
func evalCondition(c *domain.Condition, occ *domain.Occurrence) bool {
	if c == nil {
		return false
	}
	switch c.Op {
	case domain.EQUALS:
		value, set := occ.Field(c.Field)
		if !set || c.Value == nil || value.Kind != c.Value.Kind {
			return false
		}
		return value.EqualAsSet(*c.Value)
	case domain.AND:
		for _, arg := range c.Args {
			if !evalCondition(arg, occ) {
				return false
			}
		}
		return len(c.Args) > 0
	case domain.OR:
		for _, arg := range c.Args {
			if evalCondition(arg, occ) {
				return true
			}
		}
		return false
	case domain.NOT:
		if len(c.Args) != 1 {
			return false
		}
		return !evalCondition(c.Args[0], occ)
	}
	return false
}
