package tools

import (
	"strings"

	"github.com/tidwall/gjson"
)

// Args is a decoded tool argument record.
type Args map[string]any

// ParseArguments decodes the argument text of a tool call. Besides strict
// JSON it accepts the Python-literal flavour some models emit: single-quoted
// strings, True/False/None and trailing commas. Empty text is an empty record.
func ParseArguments(raw string) (Args, error) {
	text := strings.TrimSpace(raw)
	if text == "" {
		return Args{}, nil
	}

	if !gjson.Valid(text) {
		text = normalizeLiteral(text)
		if !gjson.Valid(text) {
			return nil, &MalformedArgumentsError{Raw: raw, Reason: "not a JSON or Python literal"}
		}
	}

	result := gjson.Parse(text)
	if !result.IsObject() {
		return nil, &MalformedArgumentsError{Raw: raw, Reason: "not an object"}
	}
	obj, ok := result.Value().(map[string]any)
	if !ok {
		return nil, &MalformedArgumentsError{Raw: raw, Reason: "not an object"}
	}
	return Args(obj), nil
}

// normalizeLiteral rewrites a Python-style literal into JSON. The output is
// only a candidate; callers must validate it.
func normalizeLiteral(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '"' || c == '\'':
			i = writeQuoted(&b, s, i)
		case isIdentByte(c):
			j := i
			for j < len(s) && (isIdentByte(s[j]) || (s[j] >= '0' && s[j] <= '9')) {
				j++
			}
			switch word := s[i:j]; word {
			case "True":
				b.WriteString("true")
			case "False":
				b.WriteString("false")
			case "None":
				b.WriteString("null")
			default:
				b.WriteString(word)
			}
			i = j - 1
		case c == ',':
			k := i + 1
			for k < len(s) && isSpace(s[k]) {
				k++
			}
			if k < len(s) && (s[k] == '}' || s[k] == ']') {
				continue
			}
			b.WriteByte(c)
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

// writeQuoted copies the string literal starting at s[start] as a
// double-quoted JSON string and returns the index of its closing quote.
func writeQuoted(b *strings.Builder, s string, start int) int {
	quote := s[start]
	b.WriteByte('"')
	for k := start + 1; k < len(s); k++ {
		c := s[k]
		switch {
		case c == '\\' && k+1 < len(s):
			next := s[k+1]
			if next == '\'' {
				b.WriteByte('\'')
			} else {
				b.WriteByte('\\')
				b.WriteByte(next)
			}
			k++
		case c == quote:
			b.WriteByte('"')
			return k
		case c == '"':
			b.WriteString(`\"`)
		default:
			b.WriteByte(c)
		}
	}
	return len(s) - 1
}

func isIdentByte(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}
