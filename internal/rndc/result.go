package rndc

import (
	"unicode/utf8"

	"github.com/zpapi-labs/rndc/internal/iscdict"
)

// Result is a response's _data map with byte-string leaves lifted to
// UTF-8 text where they decode cleanly, and left as raw bytes otherwise
// (spec section 4.1 "Text handling"). Nested maps, while not emitted by
// any request this client builds, are supported on parse (spec section
// 9 open question) and lifted recursively to Result.
type Result map[string]any

// liftData converts a parsed _data map into a Result.
func liftData(data *iscdict.Map) Result {
	out := make(Result, data.Len())

	data.Range(func(key string, val iscdict.Value) bool {
		out[key] = liftValue(val)

		return true
	})

	return out
}

// liftValue converts one codec Value into its Result representation.
func liftValue(val iscdict.Value) any {
	switch {
	case val.IsMap():
		return liftData(val.AsMap())

	case val.IsBytes():
		b := val.AsBytes()
		if utf8.Valid(b) {
			return string(b)
		}

		return b

	default:
		return nil
	}
}
