package rules

import (
	"fmt"
	"sort"
	"strings"
)

// Label is a single declared (key, pattern) pair of a rule's operation,
// kept in source order for diagnostics and canonical serialization.
type Label struct {
	Key     string
	Token   string // the raw INI token, e.g. "GET", "/ping*", "*"
	Pattern Pattern
}

// Rule is an immutable rule table entry.
type Rule struct {
	Labels       []Label
	CreditLimit  int64
	ResetSeconds int64
	ActorField   string
	Comment      *string
}

// IsDefault reports whether this is the catch-all rule (empty operation).
func (r *Rule) IsDefault() bool {
	return len(r.Labels) == 0
}

// Get returns the pattern declared for key, if any.
func (r *Rule) Get(key string) (Pattern, bool) {
	for _, l := range r.Labels {
		if l.Key == key {
			return l.Pattern, true
		}
	}
	return nil, false
}

// Matches reports whether every label this rule declares is satisfied by
// op (a missing label in op is treated as the empty string). Labels
// present in op but not declared by the rule are ignored.
func (r *Rule) Matches(op map[string]string) bool {
	for _, l := range r.Labels {
		if !l.Pattern.Match(op[l.Key]) {
			return false
		}
	}
	return true
}

// probeOperation builds the concrete operation used to test this rule's
// own shape against the rules that precede it when appending to a table:
// the rule treated as a concrete operation with only its declared labels,
// using each label's raw INI token as its value.
func (r *Rule) probeOperation() map[string]string {
	probe := make(map[string]string, len(r.Labels))
	for _, l := range r.Labels {
		probe[l.Key] = l.Token
	}
	return probe
}

// Source renders a canonical, order-independent description of the rule's
// declared operation shape (e.g. "ip=* method=GET path=/ping*"), used as
// the discriminator in the handler's bucket key derivation so two rules
// with different shapes but identical projections never collide.
func (r *Rule) Source() string {
	if r.IsDefault() {
		return "default"
	}
	keys := make([]string, 0, len(r.Labels))
	byKey := make(map[string]string, len(r.Labels))
	for _, l := range r.Labels {
		keys = append(keys, l.Key)
		byKey[l.Key] = l.Pattern.String()
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+byKey[k])
	}
	return strings.Join(parts, " ")
}

// UnreachableRuleError reports that a rule can never be reached because an
// earlier rule already matches its own shape.
type UnreachableRuleError struct {
	Rule     *Rule
	MaskedBy *Rule
}

func (e *UnreachableRuleError) Error() string {
	return fmt.Sprintf("unreachable rule %q: masked by earlier rule %q", e.Rule.Source(), e.MaskedBy.Source())
}
