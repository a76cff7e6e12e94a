package canonical_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/728jm2pczg-glitch/bid-aggregator/internal/canonical"
)

func TestNormalize(t *testing.T) {
	testCases := []struct {
		name  string
		input string
		want  string
	}{
		{name: "empty", input: "", want: ""},
		{name: "trims edges", input: "  hello  ", want: "hello"},
		{name: "collapses runs", input: "a  b\t\tc", want: "a b c"},
		{name: "collapses newlines", input: "line one\n\nline two", want: "line one line two"},
		{name: "fullwidth digits fold to ascii", input: "第１２３号", want: "第123号"},
		{name: "fullwidth latin folds", input: "ＡＢＣ", want: "ABC"},
		{name: "halfwidth katakana widens", input: "ｶﾀｶﾅ", want: "カタカナ"},
		{name: "whitespace only", input: " \n\t ", want: ""},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, canonical.Normalize(tc.input))
		})
	}
}

func TestContentHashWhitespaceAndWidthInvariance(t *testing.T) {
	base := canonical.ContentHash("道路補修  工事", "国土交通省", "2025-01-30", "2025-02-15", "https://example.go.jp/1", "key-1")

	variants := []struct {
		name  string
		title string
		org   string
	}{
		{name: "extra whitespace", title: "道路補修\n工事", org: "  国土交通省  "},
		{name: "tab separated", title: "道路補修\t工事", org: "国土交通省"},
	}

	for _, v := range variants {
		t.Run(v.name, func(t *testing.T) {
			got := canonical.ContentHash(v.title, v.org, "2025-01-30", "2025-02-15", "https://example.go.jp/1", "key-1")
			assert.Equal(t, base, got)
		})
	}

	// Width variants of the same characters hash identically.
	wide := canonical.ContentHash("工事１号", "Ａ省", "", "", "", "")
	narrow := canonical.ContentHash("工事1号", "A省", "", "", "", "")
	assert.Equal(t, wide, narrow)
}

func TestContentHashFieldBoundaries(t *testing.T) {
	// A pipe inside a field must not collide with the field separator.
	a := canonical.ContentHash("a|b", "c", "", "", "", "")
	b := canonical.ContentHash("a", "b|c", "", "", "", "")
	assert.NotEqual(t, a, b)

	// Source item id changes identity when present.
	with := canonical.ContentHash("t", "o", "", "", "", "id-1")
	without := canonical.ContentHash("t", "o", "", "", "", "")
	assert.NotEqual(t, with, without)
}

func TestBodyHash(t *testing.T) {
	assert.Empty(t, canonical.BodyHash(""))
	assert.Empty(t, canonical.BodyHash("   \n "))

	h1 := canonical.BodyHash("some  body\ntext")
	h2 := canonical.BodyHash("some body text")
	require.NotEmpty(t, h1)
	assert.Equal(t, h1, h2)
}

func TestRequestFingerprint(t *testing.T) {
	fp1 := canonical.RequestFingerprint("kkj", map[string]string{"Query": "AI", "Count": "1000", "LG_Code": ""})
	fp2 := canonical.RequestFingerprint("kkj", map[string]string{"Count": "1000", "Query": "AI"})
	assert.Equal(t, fp1, fp2, "empty params dropped and order must not matter")

	fp3 := canonical.RequestFingerprint("pportal", map[string]string{"Query": "AI", "Count": "1000"})
	assert.NotEqual(t, fp1, fp3, "source participates in the fingerprint")
}

func TestRawHashStability(t *testing.T) {
	payload := []byte("<Results><SearchHits>2</SearchHits></Results>")
	assert.Equal(t, canonical.RawHash(payload), canonical.RawHash(payload))
	assert.Len(t, canonical.RawHash(payload), 64)
}
