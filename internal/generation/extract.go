package generation

import (
	"encoding/json"
	"strings"
)

// ExtractJSONArray returns the first balanced top-level JSON array in text.
// Brackets inside string literals do not count toward the balance. When a
// bracketed span turns out not to be valid JSON (prose such as "[sic]"), the
// scan resumes at the next opening bracket.
func ExtractJSONArray(text string) (json.RawMessage, error) {
	for from := 0; from < len(text); {
		rel := strings.IndexByte(text[from:], '[')
		if rel < 0 {
			break
		}
		start := from + rel
		if end, ok := matchArray(text, start); ok {
			candidate := text[start : end+1]
			if json.Valid([]byte(candidate)) {
				return json.RawMessage(candidate), nil
			}
		}
		from = start + 1
	}
	return nil, ErrNoJSONArray
}

// matchArray returns the index of the bracket closing the array opened at start.
func matchArray(text string, start int) (int, bool) {
	depth := 0
	inString := false
	escaped := false

	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}

		switch c {
		case '"':
			inString = true
		case '[', '{':
			depth++
		case ']', '}':
			depth--
			if depth == 0 {
				return i, c == ']'
			}
			if depth < 0 {
				return 0, false
			}
		}
	}
	return 0, false
}
