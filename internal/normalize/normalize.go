// Package normalize holds the pure field-normalization rules applied to raw
// extracted values before a record is handed to a sink.
package normalize

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// sizeSeparator is the placeholder some storefronts use for the decimal point
// in size labels, e.g. "9_5" for size 9.5.
const sizeSeparator = "_"

// categoryDelimiter joins category path segments, outermost first.
const categoryDelimiter = " > "

// Sizes replaces the decimal-point placeholder in a size label with a literal
// period. Idempotent and total: an empty input yields an empty string.
func Sizes(s string) string {
	return strings.ReplaceAll(s, sizeSeparator, ".")
}

// SizeList applies Sizes to every label, preserving order.
func SizeList(labels []string) []string {
	out := make([]string, 0, len(labels))
	for _, l := range labels {
		out = append(out, Sizes(l))
	}
	return out
}

// Price is a decimal that may be unknown. Unparsable or absent source values
// stay unknown rather than collapsing to zero, so downstream aggregates are
// not silently corrupted.
type Price struct {
	Value float64
	Known bool
}

// KnownPrice returns a Price carrying v.
func KnownPrice(v float64) Price {
	return Price{Value: v, Known: true}
}

// UnknownPrice is the sentinel for absent or unparsable prices.
func UnknownPrice() Price {
	return Price{}
}

// ParsePrice parses a decimal literal from raw. Empty or non-numeric input
// yields the unknown sentinel, never zero.
func ParsePrice(raw string) Price {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return UnknownPrice()
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return UnknownPrice()
	}
	return KnownPrice(v)
}

// PriceFrom normalizes a value decoded from embedded JSON, which sites emit
// inconsistently as a number, a numeric string, or null.
func PriceFrom(v any) Price {
	switch t := v.(type) {
	case nil:
		return UnknownPrice()
	case float64:
		return KnownPrice(t)
	case int:
		return KnownPrice(float64(t))
	case string:
		return ParsePrice(t)
	case json.Number:
		return ParsePrice(t.String())
	default:
		return UnknownPrice()
	}
}

// String renders the price as a plain decimal, or the literal "unknown".
func (p Price) String() string {
	if !p.Known {
		return "unknown"
	}
	return strconv.FormatFloat(p.Value, 'f', -1, 64)
}

// MarshalJSON encodes a known price as a number and an unknown one as the
// string "unknown".
func (p Price) MarshalJSON() ([]byte, error) {
	if !p.Known {
		return json.Marshal("unknown")
	}
	return json.Marshal(p.Value)
}

// UnmarshalJSON accepts a number, a numeric string, "unknown", or null.
func (p *Price) UnmarshalJSON(data []byte) error {
	var v any
	dec := json.NewDecoder(strings.NewReader(string(data)))
	dec.UseNumber()
	if err := dec.Decode(&v); err != nil {
		return fmt.Errorf("failed to decode price: %w", err)
	}
	*p = PriceFrom(v)
	return nil
}

// JoinCategory joins non-empty segments with " > ". Empty segments are
// dropped, not rendered as empty-between-delimiters.
func JoinCategory(segments []string) string {
	kept := make([]string, 0, len(segments))
	for _, s := range segments {
		if s = strings.TrimSpace(s); s != "" {
			kept = append(kept, s)
		}
	}
	return strings.Join(kept, categoryDelimiter)
}

// DedupeURLs removes exact duplicates and any URL containing excludeSubstring,
// preserving first-seen order.
func DedupeURLs(urls []string, excludeSubstring string) []string {
	seen := make(map[string]bool, len(urls))
	out := make([]string, 0, len(urls))
	for _, u := range urls {
		if u == "" || seen[u] {
			continue
		}
		if excludeSubstring != "" && strings.Contains(u, excludeSubstring) {
			continue
		}
		seen[u] = true
		out = append(out, u)
	}
	return out
}
