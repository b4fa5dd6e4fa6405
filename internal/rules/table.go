package rules

// Table is an ordered, append-only sequence of rules. Precedence is
// positional: earlier rules win, except that the default rule (empty
// operation) is consulted only after every other rule has failed to match,
// wherever it appears.
type Table struct {
	rules []*Rule
}

// NewTable constructs an empty rule table.
func NewTable() *Table {
	return &Table{}
}

// Rules returns the table's rules in match order. The returned slice must
// not be mutated by callers.
func (t *Table) Rules() []*Rule {
	return t.rules
}

// Len reports the number of rules in the table.
func (t *Table) Len() int {
	return len(t.rules)
}

// AddRule appends rule to the table. The rule is rejected if an earlier
// rule matches the rule's own declared shape (its probe operation) and
// declares every label of that probe. An earlier rule that ignores some of
// the probe's labels does not mask it, so a rule that adds constraints the
// earlier rule doesn't test (including any rule after the default) is kept.
func (t *Table) AddRule(rule *Rule) error {
	probe := rule.probeOperation()
	for _, earlier := range t.rules {
		if !earlier.Matches(probe) {
			continue
		}
		covers := true
		for key := range probe {
			if _, ok := earlier.Get(key); !ok {
				covers = false
				break
			}
		}
		if covers {
			return &UnreachableRuleError{Rule: rule, MaskedBy: earlier}
		}
	}
	t.rules = append(t.rules, rule)
	return nil
}

// FindRule walks the table in order and returns the first non-default rule
// every one of whose declared labels is satisfied by op, falling back to
// the first default rule, plus a boolean reporting whether a match was
// found. No match is not an error.
func (t *Table) FindRule(op map[string]string) (*Rule, bool) {
	var fallback *Rule
	for _, r := range t.rules {
		if r.IsDefault() {
			if fallback == nil {
				fallback = r
			}
			continue
		}
		if r.Matches(op) {
			return r, true
		}
	}
	if fallback != nil {
		return fallback, true
	}
	return nil, false
}
