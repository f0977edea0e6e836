package parser

import (
	"encoding/json"
	"fmt"

	"github.com/cortex-prime/agentcore/pkg/action"
)

// actionBody is the shape the parser expects inside an <action>...</action>
// element. The tag's attributes (spec §4.1: type/mode/id/depends_on) carry
// the graph-shape fields; the JSON body carries the dispatch fields a
// callable needs. target additionally accepts "name" as an alias, since
// generators are not perfectly consistent about the key they emit (spec.md
// §8's S6 example body uses "name").
type actionBody struct {
	Target      string          `json:"target"`
	Name        string          `json:"name"`
	Parameters  json.RawMessage `json:"parameters"`
	OutputKey   string          `json:"output_key"`
	TimeoutMS   int             `json:"timeout_ms"`
	Retry       *action.Retry   `json:"retry"`
	SkipOnError bool            `json:"skip_on_error"`
}

// parseActionBody tolerantly decodes a buffered action body. spec.md §4.1
// names exactly three generator defects to tolerate inside an action body —
// line comments, block comments, and trailing commas — so those are stripped
// by a hand-written pass before strict encoding/json decoding, rather than
// reaching for a JSON5 parser whose grammar is a wider superset (see
// DESIGN.md). Anything else malformed is left for encoding/json to reject,
// which the caller turns into a dropped action.
func parseActionBody(raw []byte) (actionBody, error) {
	stripped := stripJSONDefects(raw)
	var b actionBody
	if err := json.Unmarshal(stripped, &b); err != nil {
		return actionBody{}, fmt.Errorf("action body: %w", err)
	}
	if b.Target == "" {
		b.Target = b.Name
	}
	return b, nil
}

// stripJSONDefects removes C-style line comments, block comments, and
// trailing commas from a JSON document, leaving string literals (including
// escaped quotes within them) untouched. It is a single left-to-right pass
// over the bytes, not a regex, so it behaves predictably regardless of how
// the body was chunked before being buffered.
func stripJSONDefects(raw []byte) []byte {
	out := make([]byte, 0, len(raw))
	inString := false
	escaped := false

	for i := 0; i < len(raw); i++ {
		c := raw[i]

		if inString {
			out = append(out, c)
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

		switch {
		case c == '"':
			inString = true
			out = append(out, c)
		case c == '/' && i+1 < len(raw) && raw[i+1] == '/':
			for i < len(raw) && raw[i] != '\n' {
				i++
			}
			if i < len(raw) {
				out = append(out, '\n')
			}
		case c == '/' && i+1 < len(raw) && raw[i+1] == '*':
			i += 2
			for i+1 < len(raw) && !(raw[i] == '*' && raw[i+1] == '/') {
				i++
			}
			i++ // land on the closing '/'; the loop's i++ advances past it
		case c == ',':
			j := i + 1
			for j < len(raw) && isSpace(raw[j]) {
				j++
			}
			// Skip comments between the comma and the next significant byte
			// so a trailing comma followed by "// note\n}" is still caught.
			for j < len(raw) && raw[j] == '/' && j+1 < len(raw) {
				if raw[j+1] == '/' {
					for j < len(raw) && raw[j] != '\n' {
						j++
					}
				} else if raw[j+1] == '*' {
					j += 2
					for j+1 < len(raw) && !(raw[j] == '*' && raw[j+1] == '/') {
						j++
					}
					j += 2
				} else {
					break
				}
				for j < len(raw) && isSpace(raw[j]) {
					j++
				}
			}
			if j < len(raw) && (raw[j] == '}' || raw[j] == ']') {
				// Drop the comma; resume scanning right after it.
				continue
			}
			out = append(out, c)
		default:
			out = append(out, c)
		}
	}
	return out
}
