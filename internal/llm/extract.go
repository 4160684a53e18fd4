// Package llm pulls structured payloads out of free-form chat model replies.
package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrNoJSON is returned when a reply carries no decodable JSON value.
var ErrNoJSON = errors.New("no valid JSON found in reply")

// fencePattern matches a fenced block. A word alone on the opening line is the language tag.
// Captures: (1) language, (2) body.
var fencePattern = regexp.MustCompile("(?s)```(?:([A-Za-z0-9_-]*)[ \t]*\n)?(.*?)```")

// ExtractQuery returns the body of the first fenced block, or the whole reply
// when it has none. A leading language tag is dropped.
func ExtractQuery(reply string) string {
	m := fencePattern.FindStringSubmatch(reply)
	if m == nil {
		return strings.TrimSpace(reply)
	}
	return strings.TrimSpace(m[2])
}

// ExtractJSON returns the first JSON object or array found in reply.
// Fenced blocks tagged json (or untagged) win over raw JSON in the prose.
func ExtractJSON(reply string) (string, error) {
	for _, m := range fencePattern.FindAllStringSubmatch(reply, -1) {
		lang := strings.ToLower(m[1])
		if lang != "" && lang != "json" {
			continue
		}
		body := strings.TrimSpace(m[2])
		if isJSON(body) {
			return body, nil
		}
	}

	if raw, ok := rawJSON(reply); ok {
		return raw, nil
	}
	return "", ErrNoJSON
}

// ExtractJSONAs decodes the first JSON value of reply into T.
func ExtractJSONAs[T any](reply string) (T, error) {
	var out T

	raw, err := ExtractJSON(reply)
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return out, fmt.Errorf("unmarshal reply: %w", err)
	}
	return out, nil
}

// rawJSON scans for the first balanced object or array that decodes.
func rawJSON(s string) (string, bool) {
	for i := 0; i < len(s); i++ {
		if s[i] != '{' && s[i] != '[' {
			continue
		}
		if end := matchBracket(s[i:]); end > 0 && isJSON(s[i:i+end]) {
			return s[i : i+end], true
		}
	}
	return "", false
}

// matchBracket returns the length of the balanced prefix of s, or 0.
// s must start with '{' or '['.
func matchBracket(s string) int {
	open := s[0]
	closer := byte('}')
	if open == '[' {
		closer = ']'
	}

	depth := 0
	inString := false
	escaped := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case escaped:
			escaped = false
		case inString && c == '\\':
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
		case c == open:
			depth++
		case c == closer:
			depth--
			if depth == 0 {
				return i + 1
			}
		}
	}
	return 0
}

func isJSON(s string) bool {
	return json.Valid([]byte(s))
}
