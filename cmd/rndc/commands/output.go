package commands

import (
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/zpapi-labs/rndc/internal/rndc"
)

// resultFieldsSkipped are never printed directly: "text" gets its own
// raw line, "type" and "result" are protocol bookkeeping the caller
// shouldn't see as a "key: value" pair.
var resultFieldsSkipped = map[string]bool{
	"text":   true,
	"type":   true,
	"result": true,
}

// render writes result to w the way a real deployment's rndc prints a
// response: the "text" field raw (if present), then every other field
// except "type"/"result" as a "key: value" line in sorted key order. It
// returns the process exit code, taken from a numeric "result" field
// (zero if absent or not a number).
func render(w io.Writer, result rndc.Result) int {
	if text, ok := result["text"]; ok {
		fmt.Fprintln(w, toText(text))
	}

	keys := make([]string, 0, len(result))
	for key := range result {
		if resultFieldsSkipped[key] {
			continue
		}

		keys = append(keys, key)
	}

	sort.Strings(keys)

	for _, key := range keys {
		fmt.Fprintf(w, "%s: %s\n", key, toText(result[key]))
	}

	return exitCodeOf(result)
}

// exitCodeOf extracts the process exit code from result's "result"
// field. A missing field, or one that doesn't parse as an integer,
// yields exit code 0.
func exitCodeOf(result rndc.Result) int {
	raw, ok := result["result"]
	if !ok {
		return 0
	}

	code, err := strconv.Atoi(toText(raw))
	if err != nil {
		return 0
	}

	return code
}

// toText renders a Result leaf (string or []byte, per Result's doc
// comment) as display text.
func toText(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case []byte:
		return string(t)
	default:
		return fmt.Sprint(t)
	}
}
