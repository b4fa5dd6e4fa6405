package rules

import (
	"errors"
	"testing"
)

func mustAdd(t *testing.T, tbl *Table, rule *Rule) {
	t.Helper()
	if err := tbl.AddRule(rule); err != nil {
		t.Fatalf("AddRule: %v", err)
	}
}

func labelRule(pairs ...string) *Rule {
	r := &Rule{}
	for i := 0; i+1 < len(pairs); i += 2 {
		r.Labels = append(r.Labels, Label{Key: pairs[i], Token: pairs[i+1], Pattern: NewPattern(pairs[i+1])})
	}
	return r
}

func TestFindRuleFirstMatchWins(t *testing.T) {
	t.Parallel()

	tbl := NewTable()
	mustAdd(t, tbl, labelRule("method", "GET", "path", "/ping*"))
	mustAdd(t, tbl, &Rule{}) // default

	rule, ok := tbl.FindRule(map[string]string{"method": "GET", "path": "/ping"})
	if !ok || rule.IsDefault() {
		t.Fatalf("expected the specific rule to win, got default=%v ok=%v", rule.IsDefault(), ok)
	}

	rule, ok = tbl.FindRule(map[string]string{"method": "DELETE"})
	if !ok || !rule.IsDefault() {
		t.Fatalf("expected fallback to default rule")
	}
}

func TestFindRuleIgnoresUndeclaredLabels(t *testing.T) {
	t.Parallel()

	tbl := NewTable()
	mustAdd(t, tbl, labelRule("method", "GET"))

	rule, ok := tbl.FindRule(map[string]string{"method": "GET", "extra": "whatever"})
	if !ok || rule == nil {
		t.Fatalf("expected match ignoring undeclared label")
	}
}

func TestFindRuleReturnsNoMatch(t *testing.T) {
	t.Parallel()

	tbl := NewTable()
	mustAdd(t, tbl, labelRule("method", "GET"))

	_, ok := tbl.FindRule(map[string]string{"method": "POST"})
	if ok {
		t.Fatalf("expected no match")
	}
}

func TestAddRuleSelfMatch(t *testing.T) {
	t.Parallel()

	// A rule's own probe operation must match itself once appended.
	tbl := NewTable()
	r := labelRule("method", "GET", "path", "/ping*")
	mustAdd(t, tbl, r)

	found, ok := tbl.FindRule(map[string]string{"method": "GET", "path": "/ping"})
	if !ok || found != r {
		t.Fatalf("expected self-match to return the just-appended rule")
	}
}

func TestAddRuleRejectsUnreachableRule(t *testing.T) {
	t.Parallel()

	// A rule masked by an earlier broader rule fails to append.
	tbl := NewTable()
	mustAdd(t, tbl, labelRule("a", "*"))

	err := tbl.AddRule(labelRule("a", "1"))
	if err == nil {
		t.Fatalf("expected UnreachableRuleError")
	}
	var unreachable *UnreachableRuleError
	if !errors.As(err, &unreachable) {
		t.Fatalf("expected *UnreachableRuleError, got %T", err)
	}
}

func TestAddRuleAllowsNarrowerRuleWithExtraConstraint(t *testing.T) {
	t.Parallel()

	// [a=foo* b=bar] is not caught by [a=f*] because the probe includes
	// labels the earlier rule ignores. Narrower rules may follow broader
	// ones when they add constraints the broader rule doesn't test.
	tbl := NewTable()
	mustAdd(t, tbl, labelRule("a", "f*"))
	if err := tbl.AddRule(labelRule("a", "foo*", "b", "bar")); err != nil {
		t.Fatalf("expected narrower rule with extra constraint to be accepted, got %v", err)
	}
}

func TestDefaultRuleMatchesAnyOperation(t *testing.T) {
	t.Parallel()

	tbl := NewTable()
	mustAdd(t, tbl, &Rule{})

	rule, ok := tbl.FindRule(map[string]string{"anything": "goes"})
	if !ok || !rule.IsDefault() {
		t.Fatalf("expected default rule to match")
	}
	rule, ok = tbl.FindRule(map[string]string{})
	if !ok || !rule.IsDefault() {
		t.Fatalf("expected default rule to match the empty operation")
	}
}
