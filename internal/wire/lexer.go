// Package wire implements divvy's line-oriented request protocol: a
// quoted-token lexer, command parsing, and reply formatting.
package wire

import (
	"errors"
	"strings"
)

// ErrUnterminatedQuote is returned by Tokenize when a line ends inside an
// open double-quoted string.
var ErrUnterminatedQuote = errors.New("Unexpected end of quoted string.")

// Tokenize splits a line into whitespace-separated tokens, honoring
// double-quoted strings that may themselves contain embedded whitespace.
// A bareword run and an immediately adjacent quoted run concatenate into
// a single token (so `key="a b"` lexes as one token, "key=a b"), which is
// what lets HIT's key=value arguments carry quoted values.
func Tokenize(line string) ([]string, error) {
	var tokens []string
	var cur strings.Builder
	haveToken := false

	runes := []rune(line)
	i := 0
	for i < len(runes) {
		c := runes[i]
		switch {
		case c == ' ' || c == '\t':
			if haveToken {
				tokens = append(tokens, cur.String())
				cur.Reset()
				haveToken = false
			}
			i++
		case c == '"':
			haveToken = true
			i++
			closed := false
			for i < len(runes) {
				switch runes[i] {
				case '"':
					closed = true
					i++
				case '\\':
					if i+1 < len(runes) {
						cur.WriteRune(runes[i+1])
						i += 2
					} else {
						i++
					}
					continue
				default:
					cur.WriteRune(runes[i])
					i++
					continue
				}
				break
			}
			if !closed {
				return nil, ErrUnterminatedQuote
			}
		default:
			haveToken = true
			cur.WriteRune(c)
			i++
		}
	}
	if haveToken {
		tokens = append(tokens, cur.String())
	}
	return tokens, nil
}

// Quote renders s as a double-quoted token, escaping backslashes and
// quotes so Tokenize can round-trip it.
func Quote(s string) string {
	var b strings.Builder
	b.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"', '\\':
			b.WriteByte('\\')
			b.WriteRune(r)
		default:
			b.WriteRune(r)
		}
	}
	b.WriteByte('"')
	return b.String()
}
