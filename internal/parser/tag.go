package parser

import "strings"

// tag is a fully-buffered top-level tag, from '<' through '>' inclusive,
// already split into its structural parts.
type tag struct {
	name     string
	closing  bool
	attrs    map[string]string
	attrKeys []string // preserves source order, for metadata round-tripping
}

// parseTag splits raw (e.g. `<action type="tool" id="F1">` or
// `</thought>`) into a tag. raw must include both angle brackets.
func parseTag(raw string) tag {
	inner := strings.TrimSuffix(strings.TrimPrefix(raw, "<"), ">")
	inner = strings.TrimSuffix(inner, "/") // tolerate self-closing syntax
	closing := strings.HasPrefix(inner, "/")
	if closing {
		inner = strings.TrimPrefix(inner, "/")
	}

	i := 0
	for i < len(inner) && !isSpace(inner[i]) {
		i++
	}
	name := strings.ToLower(inner[:i])
	attrs, keys := parseAttributes(inner[i:])
	return tag{name: name, closing: closing, attrs: attrs, attrKeys: keys}
}

// parseAttributes scans a whitespace-separated list of key="value" (or
// key='value') pairs. Written as an explicit character scanner rather than
// a regular expression: a streaming protocol's tag bodies are small and
// fully buffered by the time this runs, but regex over hand-assembled
// substrings is exactly the brittleness the teacher's patterns steer away
// from for stream-adjacent text.
func parseAttributes(s string) (map[string]string, []string) {
	attrs := make(map[string]string)
	var keys []string
	i, n := 0, len(s)
	for i < n {
		for i < n && isSpace(s[i]) {
			i++
		}
		if i >= n {
			break
		}
		keyStart := i
		for i < n && s[i] != '=' && !isSpace(s[i]) {
			i++
		}
		key := s[keyStart:i]
		if key == "" {
			i++
			continue
		}
		for i < n && isSpace(s[i]) {
			i++
		}
		if i >= n || s[i] != '=' {
			// Attribute with no value: record empty string.
			attrs[key] = ""
			keys = append(keys, key)
			continue
		}
		i++ // consume '='
		for i < n && isSpace(s[i]) {
			i++
		}
		if i >= n {
			attrs[key] = ""
			keys = append(keys, key)
			break
		}
		quote := s[i]
		var val string
		if quote == '"' || quote == '\'' {
			i++
			start := i
			for i < n && s[i] != quote {
				i++
			}
			val = s[start:i]
			if i < n {
				i++ // consume closing quote
			}
		} else {
			start := i
			for i < n && !isSpace(s[i]) {
				i++
			}
			val = s[start:i]
		}
		attrs[key] = val
		keys = append(keys, key)
	}
	return attrs, keys
}
