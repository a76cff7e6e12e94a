// Package canonical provides deterministic text normalization and the
// identity hashes used for cross-run deduplication. Determinism is
// load-bearing here: the same logical input must reproduce the same
// digest across process restarts, so every hash input goes through
// Normalize first and field joins use a fixed order and escaping.
package canonical

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Normalize applies NFKC compatibility normalization, collapses
// consecutive whitespace (including newlines) into single spaces, and
// trims the edges. An empty input yields an empty string.
func Normalize(s string) string {
	if s == "" {
		return ""
	}
	s = norm.NFKC.String(s)
	return strings.Join(strings.Fields(s), " ")
}

// escapeField escapes backslashes and pipe delimiters so joined fields
// cannot collide with the join separator.
func escapeField(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, "|", `\|`)
}

func sum(s string) string {
	digest := sha256.Sum256([]byte(s))
	return hex.EncodeToString(digest[:])
}

// ContentHash computes the identity digest over the normalized,
// pipe-delimited identity-bearing fields of an item. The source item
// id, when present, is prepended to the fixed field order.
func ContentHash(title, organizationName, publishedAt, deadlineAt, url, sourceItemID string) string {
	parts := make([]string, 0, 6)
	if sourceItemID != "" {
		parts = append(parts, escapeField(Normalize(sourceItemID)))
	}
	parts = append(parts,
		escapeField(Normalize(title)),
		escapeField(Normalize(organizationName)),
		escapeField(Normalize(publishedAt)),
		escapeField(Normalize(deadlineAt)),
		escapeField(Normalize(url)),
	)
	return sum(strings.Join(parts, "|"))
}

// BodyHash hashes normalized body text. Empty or whitespace-only
// bodies yield an empty string rather than a digest of nothing.
func BodyHash(body string) string {
	normalized := Normalize(body)
	if normalized == "" {
		return ""
	}
	return sum(normalized)
}

// RawHash hashes raw fetch payload bytes unmodified.
func RawHash(payload []byte) string {
	digest := sha256.Sum256(payload)
	return hex.EncodeToString(digest[:])
}

// RequestFingerprint computes the digest correlating a raw fetch to the
// query that produced it. Empty-valued parameters are dropped, the rest
// are sorted by key and joined as key=value pairs.
func RequestFingerprint(source string, params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k, v := range params {
		if v != "" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, k+"="+params[k])
	}
	return sum(source + ":" + strings.Join(pairs, "&"))
}
