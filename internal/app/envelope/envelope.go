// Package envelope implements C7: the uniform success/error envelope,
// hypermedia link composition, and optional camelCase key rewriting.
package envelope

import (
	"strings"
	"unicode"
)

// Version is stamped onto every envelope.
const Version = "v2"

// KeyCase selects the response key style (spec.md §4.4, §6 web.case).
type KeyCase string

const (
	CaseSnake KeyCase = "snake"
	CaseCamel KeyCase = "camel"
)

// Success is the uniform envelope for every successful response.
type Success struct {
	Status  string      `json:"status"`
	Message string      `json:"message"`
	Result  interface{} `json:"result"`
	Version string      `json:"version"`
}

// Error is the uniform envelope for every error response.
type Error struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Version string `json:"version"`
}

// NewSuccess builds a success envelope, rewriting result's keys to the
// configured case. result must already be a JSON-shaped value (typically
// the output of json.Marshal/Unmarshal into map[string]interface{}, or a
// struct that marshals cleanly — the httpapi handlers perform that
// conversion before calling it).
func NewSuccess(message string, result interface{}, keyCase KeyCase) Success {
	return Success{
		Status:  "success",
		Message: message,
		Result:  rewriteKeys(result, keyCase),
		Version: Version,
	}
}

// NewError builds an error envelope.
func NewError(message string) Error {
	return Error{Status: "error", Message: message, Version: Version}
}

// rewriteKeys recursively camelCases map keys when keyCase is CaseCamel;
// applied only at the envelope boundary so internal representations never
// see the style choice (spec.md §9 design note).
func rewriteKeys(v interface{}, keyCase KeyCase) interface{} {
	if keyCase != CaseCamel {
		return v
	}
	switch val := v.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(val))
		for k, inner := range val {
			out[toCamel(k)] = rewriteKeys(inner, keyCase)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, inner := range val {
			out[i] = rewriteKeys(inner, keyCase)
		}
		return out
	default:
		return v
	}
}

// toCamel converts one snake_case key to camelCase; leaves keys without an
// underscore untouched.
func toCamel(s string) string {
	parts := strings.Split(s, "_")
	if len(parts) == 1 {
		return s
	}
	var b strings.Builder
	for i, p := range parts {
		if p == "" {
			continue
		}
		if i == 0 {
			b.WriteString(p)
			continue
		}
		r := []rune(p)
		r[0] = unicode.ToUpper(r[0])
		b.WriteString(string(r))
	}
	return b.String()
}

// ToSnake converts a camelCase key back to snake_case; used by round-trip
// tests (dict_to_camel(dict_to_snake(x)) == x, spec.md §8).
func ToSnake(s string) string {
	var b strings.Builder
	for i, r := range s {
		if unicode.IsUpper(r) {
			if i > 0 {
				b.WriteRune('_')
			}
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
