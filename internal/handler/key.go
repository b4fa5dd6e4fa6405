package handler

import (
	"crypto/sha1"
	"encoding/hex"
	"sort"
	"strings"

	"github.com/celliott/divvy/internal/rules"
)

// project builds the operation bag actually sent to the backend: retain
// only the labels rule declares, substituting "*" for any label whose
// pattern is ANY regardless of the observed value.
func project(rule *rules.Rule, op map[string]string) map[string]string {
	projected := make(map[string]string, len(rule.Labels))
	for _, l := range rule.Labels {
		if _, isAny := l.Pattern.(rules.Any); isAny {
			projected[l.Key] = "*"
			continue
		}
		projected[l.Key] = op[l.Key]
	}
	return projected
}

// actorOf extracts the rule's configured actor field value from op, if any.
func actorOf(rule *rules.Rule, op map[string]string) string {
	if rule.ActorField == "" {
		return ""
	}
	return op[rule.ActorField]
}

// bucketKey derives the deterministic backend key for a projected
// operation: sha1 of the canonical serialization, which sorts projected
// labels by key, prefixes the rule's own discriminator (its Source()) so
// two rules with different shapes but identical projections never
// collide, and appends "|actor=<actor>".
func bucketKey(rule *rules.Rule, projected map[string]string, actor string) []byte {
	keys := make([]string, 0, len(projected))
	for k := range projected {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(rule.Source())
	for _, k := range keys {
		b.WriteByte('|')
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(projected[k])
	}
	b.WriteString("|actor=")
	b.WriteString(actor)

	sum := sha1.Sum([]byte(b.String()))
	dst := make([]byte, hex.EncodedLen(len(sum)))
	hex.Encode(dst, sum[:])
	return dst
}
