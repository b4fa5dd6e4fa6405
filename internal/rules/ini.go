package rules

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// ParseError reports a malformed INI document.
type ParseError struct {
	Line   int
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("divvy config: line %d: %s", e.Line, e.Reason)
}

// LoadFile reads and compiles an INI rule file into a Table.
func LoadFile(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Parse(f)
}

// Parse compiles an INI rule document into a Table. Sections are applied
// in document order via Table.AddRule, so an
// unreachable rule aborts parsing with an *UnreachableRuleError.
func Parse(r io.Reader) (*Table, error) {
	table := NewTable()
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)

	var current *sectionBuilder
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, ";") || strings.HasPrefix(line, "#") {
			continue
		}
		if strings.HasPrefix(line, "[") {
			if !strings.HasSuffix(line, "]") {
				return nil, &ParseError{Line: lineNo, Reason: "unterminated section header"}
			}
			if current != nil {
				if err := table.AddRule(current.build()); err != nil {
					return nil, err
				}
			}
			header := strings.TrimSpace(line[1 : len(line)-1])
			builder, err := newSectionBuilder(header)
			if err != nil {
				return nil, &ParseError{Line: lineNo, Reason: err.Error()}
			}
			current = builder
			continue
		}
		if current == nil {
			return nil, &ParseError{Line: lineNo, Reason: "body line outside of any section"}
		}
		key, value, ok := splitKeyValue(line)
		if !ok {
			return nil, &ParseError{Line: lineNo, Reason: "malformed body line: " + line}
		}
		current.setParam(key, value)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if current != nil {
		if err := table.AddRule(current.build()); err != nil {
			return nil, err
		}
	}
	return table, nil
}

// sectionBuilder accumulates one [section] worth of header labels and body
// parameters before producing a *Rule.
type sectionBuilder struct {
	labels       []Label
	creditLimit  int64
	resetSeconds int64
	actorField   string
	comment      *string
}

func newSectionBuilder(header string) (*sectionBuilder, error) {
	b := &sectionBuilder{}
	if header == "default" {
		return b, nil
	}
	if header == "" {
		return nil, fmt.Errorf("empty section header")
	}
	for _, tok := range strings.Fields(header) {
		key, value := splitHeaderToken(tok)
		if key == "" {
			return nil, fmt.Errorf("section header token %q has no label name", tok)
		}
		b.labels = append(b.labels, Label{Key: key, Token: value, Pattern: NewPattern(value)})
	}
	return b, nil
}

// splitHeaderToken splits a section header token: a token with no "="
// is a key with empty value; a trailing "=" also yields an empty value.
func splitHeaderToken(tok string) (key, value string) {
	idx := strings.IndexByte(tok, '=')
	if idx < 0 {
		return tok, ""
	}
	return tok[:idx], tok[idx+1:]
}

func (b *sectionBuilder) setParam(key, value string) {
	switch key {
	case "creditLimit":
		b.creditLimit = parseNonNegativeInt(value)
	case "resetSeconds":
		b.resetSeconds = parseNonNegativeInt(value)
	case "actorField":
		b.actorField = value
	case "comment":
		v := value
		b.comment = &v
	}
	// all other keys are recognized-but-ignored.
}

func (b *sectionBuilder) build() *Rule {
	return &Rule{
		Labels:       b.labels,
		CreditLimit:  b.creditLimit,
		ResetSeconds: b.resetSeconds,
		ActorField:   b.actorField,
		Comment:      b.comment,
	}
}

func parseNonNegativeInt(s string) int64 {
	v, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || v < 0 {
		return 0
	}
	return v
}

// splitKeyValue parses an INI body line of the form "key = value",
// tolerating surrounding whitespace around the separator.
func splitKeyValue(line string) (key, value string, ok bool) {
	idx := strings.IndexByte(line, '=')
	if idx < 0 {
		return "", "", false
	}
	return strings.TrimSpace(line[:idx]), strings.TrimSpace(line[idx+1:]), true
}
