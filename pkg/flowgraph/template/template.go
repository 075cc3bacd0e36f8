package template

import (
	"fmt"
	"regexp"
	"strings"
)

var placeholder = regexp.MustCompile(`\$\{([a-zA-Z_][a-zA-Z0-9_]*)\}`)

// segment is either literal text or a variable reference.
type segment struct {
	text string
	name string
}

// Template is a parsed prompt.
type Template struct {
	source   string
	segments []segment
	vars     []string
}

// Parse splits text into literal and placeholder segments.
func Parse(text string) (*Template, error) {
	if text == "" {
		return nil, fmt.Errorf("template: empty text")
	}
	t := &Template{source: text}
	seen := make(map[string]bool)
	last := 0
	for _, m := range placeholder.FindAllStringSubmatchIndex(text, -1) {
		if m[0] > last {
			t.segments = append(t.segments, segment{text: text[last:m[0]]})
		}
		name := text[m[2]:m[3]]
		t.segments = append(t.segments, segment{name: name})
		if !seen[name] {
			seen[name] = true
			t.vars = append(t.vars, name)
		}
		last = m[1]
	}
	if last < len(text) {
		t.segments = append(t.segments, segment{text: text[last:]})
	}
	return t, nil
}

// Must panics if err is non-nil. Intended for package-level templates.
func Must(t *Template, err error) *Template {
	if err != nil {
		panic(err)
	}
	return t
}

// Vars returns the placeholder names in order of first appearance.
func (t *Template) Vars() []string {
	return append([]string(nil), t.vars...)
}

// Source returns the unparsed text.
func (t *Template) Source() string {
	return t.source
}

// Render substitutes vars into the template. Every placeholder must have
// a value; extra entries in vars are ignored.
func (t *Template) Render(vars map[string]string) (string, error) {
	var b strings.Builder
	b.Grow(len(t.source))
	var missing []string
	for _, seg := range t.segments {
		if seg.name == "" {
			b.WriteString(seg.text)
			continue
		}
		v, ok := vars[seg.name]
		if !ok {
			missing = append(missing, seg.name)
			continue
		}
		b.WriteString(v)
	}
	if len(missing) > 0 {
		return "", &UndefinedVariableError{Names: missing}
	}
	return b.String(), nil
}

// MustRender is Render for templates whose variables are known to be set.
func (t *Template) MustRender(vars map[string]string) string {
	out, err := t.Render(vars)
	if err != nil {
		panic(fmt.Sprintf("template: %v", err))
	}
	return out
}

// UndefinedVariableError lists placeholders that had no value.
type UndefinedVariableError struct {
	Names []string
}

func (e *UndefinedVariableError) Error() string {
	if len(e.Names) == 1 {
		return fmt.Sprintf("undefined variable: %s", e.Names[0])
	}
	return fmt.Sprintf("undefined variables: %s", strings.Join(e.Names, ", "))
}
