package wildcard

import (
	"fmt"
	"strings"
)

// MissingKeyError is returned by Format when a placeholder has no value.
type MissingKeyError struct {
	Key string
}

func (e *MissingKeyError) Error() string {
	return fmt.Sprintf("no value for placeholder {%s}", e.Key)
}

// Lookup resolves a placeholder key such as "x" or "wildcards.x".
type Lookup func(key string) (string, bool)

// FromBinding is a Lookup over a single binding.
func FromBinding(b Binding) Lookup {
	return func(key string) (string, bool) {
		v, ok := b[key]
		return v, ok
	}
}

// Format substitutes every `{key}` in template. `{{` and `}}` produce literal
// braces. The first key lookup cannot resolve is reported as *MissingKeyError.
func Format(template string, lookup Lookup) (string, error) {
	return format(template, lookup, true)
}

// FormatLenient is Format but leaves unresolved placeholders untouched.
func FormatLenient(template string, lookup Lookup) string {
	s, _ := format(template, lookup, false)
	return s
}

func format(template string, lookup Lookup, strict bool) (string, error) {
	var sb strings.Builder
	sb.Grow(len(template))

	for _, seg := range scan(template) {
		if seg.key == "" {
			sb.WriteString(seg.literal)
			continue
		}
		v, ok := lookup(seg.key)
		if !ok {
			if strict {
				return "", &MissingKeyError{Key: seg.key}
			}
			v = "{" + seg.key + "}"
		}
		sb.WriteString(v)
	}
	return sb.String(), nil
}

// segment is either literal text or a placeholder key.
type segment struct {
	literal string
	key     string
}

// scan splits template into literal text and placeholders. `{{` and `}}`
// are literal braces; a `{` that does not open a valid key is literal too.
// Format, Compile and Names all read templates through scan.
func scan(template string) []segment {
	var segs []segment
	var lit strings.Builder
	flush := func() {
		if lit.Len() > 0 {
			segs = append(segs, segment{literal: lit.String()})
			lit.Reset()
		}
	}

	for i := 0; i < len(template); i++ {
		c := template[i]
		switch {
		case c == '{' && i+1 < len(template) && template[i+1] == '{':
			lit.WriteByte('{')
			i++
		case c == '}' && i+1 < len(template) && template[i+1] == '}':
			lit.WriteByte('}')
			i++
		case c == '{':
			end := strings.IndexByte(template[i+1:], '}')
			if end < 0 || !isKey(template[i+1:i+1+end]) {
				lit.WriteByte(c)
				continue
			}
			flush()
			segs = append(segs, segment{key: template[i+1 : i+1+end]})
			i += end + 1
		default:
			lit.WriteByte(c)
		}
	}
	flush()
	return segs
}

// isKey accepts identifiers optionally joined by dots.
func isKey(s string) bool {
	if s == "" {
		return false
	}
	for _, part := range strings.Split(s, ".") {
		if part == "" {
			return false
		}
		for j, r := range part {
			letter := r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
			digit := r >= '0' && r <= '9'
			if !letter && !(digit && j > 0) {
				return false
			}
		}
	}
	return true
}
