// Package workflow materializes job templates: nested JSON documents that
// describe the compute graph sent to the remote service.
//
// Documents use the shapes produced by encoding/json when decoding into any:
// string, json.Number, float64, bool, nil, []any and map[string]any.
// Transform, Substitute and Clone return new trees; only SetPath writes in
// place, and only into a document the caller owns.
package workflow

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Transform walks doc and returns a copy where every string leaf has been
// replaced by fn(leaf). Containers are rebuilt; other leaves pass through.
func Transform(doc any, fn func(string) string) any {
	switch v := doc.(type) {
	case string:
		return fn(v)
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = Transform(item, fn)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, item := range v {
			out[k] = Transform(item, fn)
		}
		return out
	default:
		return v
	}
}

// Substitute replaces every occurrence of placeholder in every string leaf.
// A placeholder that does not occur anywhere leaves the copy unchanged.
func Substitute(doc any, placeholder, replacement string) any {
	if placeholder == "" {
		return Clone(doc)
	}
	return Transform(doc, func(s string) string {
		if !strings.Contains(s, placeholder) {
			return s
		}
		return strings.ReplaceAll(s, placeholder, replacement)
	})
}

// Clone returns a deep copy of doc.
func Clone(doc any) any {
	return Transform(doc, func(s string) string { return s })
}

// Number wraps an integer as a document number leaf.
func Number(n int) json.Number {
	return json.Number(strconv.Itoa(n))
}
