// Package wildcard compiles path templates with `{name}` placeholders into
// full-string matchers and substitutes bindings back into templates.
package wildcard

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// Binding maps wildcard names to the substrings they matched.
type Binding map[string]string

// Key returns a canonical, order-independent form of the binding. Two
// bindings with equal keys are the same binding.
func (b Binding) Key() string {
	names := make([]string, 0, len(b))
	for name := range b {
		names = append(names, name)
	}
	sort.Strings(names)

	var sb strings.Builder
	for i, name := range names {
		if i > 0 {
			sb.WriteByte(0)
		}
		sb.WriteString(name)
		sb.WriteByte('=')
		sb.WriteString(b[name])
	}
	return sb.String()
}

// Clone returns a copy of the binding.
func (b Binding) Clone() Binding {
	out := make(Binding, len(b))
	for k, v := range b {
		out[k] = v
	}
	return out
}

// Weight is the sum of the lengths of all matched substrings. Lower weight
// means a more specific match.
func Weight(b Binding) int {
	total := 0
	for _, v := range b {
		total += len(v)
	}
	return total
}

// Template is a compiled path template.
type Template struct {
	source string
	re     *regexp.Regexp
	// groups[i] is the wildcard name captured by submatch i+1.
	groups []string
	names  []string
	// segs is set when a name occurs more than once. Such templates are
	// matched by backtracking since regexp has no backreferences.
	segs []segment
}

// Compile turns a template into an anchored matcher. Literal text is quoted,
// every placeholder becomes a group matching one or more characters.
func Compile(template string) (*Template, error) {
	segs := scan(template)

	var pattern strings.Builder
	var groups []string
	pattern.WriteByte('^')
	for _, seg := range segs {
		if seg.key == "" {
			pattern.WriteString(regexp.QuoteMeta(seg.literal))
			continue
		}
		pattern.WriteString("(.+)")
		groups = append(groups, seg.key)
	}
	pattern.WriteByte('$')

	re, err := regexp.Compile(pattern.String())
	if err != nil {
		return nil, fmt.Errorf("compiling template %q: %w", template, err)
	}

	t := &Template{
		source: template,
		re:     re,
		groups: groups,
		names:  namesOf(segs),
	}
	if len(t.names) < len(groups) {
		t.segs = segs
	}
	return t, nil
}

// MustCompile is Compile for templates known to be valid.
func MustCompile(template string) *Template {
	t, err := Compile(template)
	if err != nil {
		panic(err)
	}
	return t
}

// String returns the template source.
func (t *Template) String() string { return t.source }

// Names returns the distinct wildcard names of the template.
func (t *Template) Names() []string { return t.names }

// Match reports whether candidate matches the whole template and, if so,
// which substring each wildcard took. A wildcard that appears more than once
// must take the same value everywhere. Earlier wildcards take the longest
// value that still lets the rest match.
func (t *Template) Match(candidate string) (Binding, bool) {
	if t.segs != nil {
		b := make(Binding, len(t.names))
		if !matchSegments(t.segs, candidate, b) {
			return nil, false
		}
		return b, true
	}

	sub := t.re.FindStringSubmatch(candidate)
	if sub == nil {
		return nil, false
	}
	b := make(Binding, len(t.names))
	for i, name := range t.groups {
		b[name] = sub[i+1]
	}
	return b, true
}

// matchSegments matches s against segs, extending b. Names already bound
// must repeat their value.
func matchSegments(segs []segment, s string, b Binding) bool {
	if len(segs) == 0 {
		return s == ""
	}
	seg := segs[0]
	if seg.key == "" {
		rest, ok := strings.CutPrefix(s, seg.literal)
		return ok && matchSegments(segs[1:], rest, b)
	}
	if v, bound := b[seg.key]; bound {
		rest, ok := strings.CutPrefix(s, v)
		return ok && matchSegments(segs[1:], rest, b)
	}
	for n := len(s); n >= 1; n-- {
		b[seg.key] = s[:n]
		if matchSegments(segs[1:], s[n:], b) {
			return true
		}
	}
	delete(b, seg.key)
	return false
}

// Names returns the distinct placeholder names of template in order of first
// occurrence.
func Names(template string) []string {
	return namesOf(scan(template))
}

func namesOf(segs []segment) []string {
	var names []string
	seen := make(map[string]struct{})
	for _, seg := range segs {
		if seg.key == "" {
			continue
		}
		if _, ok := seen[seg.key]; ok {
			continue
		}
		seen[seg.key] = struct{}{}
		names = append(names, seg.key)
	}
	return names
}

// SameNames reports whether a and b declare the same set of names.
func SameNames(a, b []string) bool {
	set := make(map[string]struct{}, len(a))
	for _, n := range a {
		set[n] = struct{}{}
	}
	other := make(map[string]struct{}, len(b))
	for _, n := range b {
		if _, ok := set[n]; !ok {
			return false
		}
		other[n] = struct{}{}
	}
	return len(set) == len(other)
}
