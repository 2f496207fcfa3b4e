package domain

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
)

// Recognized template placeholders.
const (
	PlaceholderX    = "{x}"
	PlaceholderY    = "{y}"
	PlaceholderTime = "{time}"
	PlaceholderAny  = "{}"
)

// Template is the compiled matching form of a filename template. Named
// placeholders capture optionally-signed digit runs; the anonymous wildcard
// matches an unsigned digit run without capturing. Literal template text is
// matched verbatim, and matching is anchored to the start of the base name.
type Template struct {
	raw      string
	withTime bool
	re       *regexp.Regexp
}

// CompileTemplate compiles a filename template. When withTime is set the
// {time} placeholder becomes a capturing group, otherwise it matches without
// capturing.
func CompileTemplate(raw string, withTime bool) (*Template, error) {
	placeholders := []string{PlaceholderX, PlaceholderY, PlaceholderTime, PlaceholderAny}

	var pattern strings.Builder
	pattern.WriteString("^")
	rest := raw
	for {
		idx, which := -1, ""
		for _, ph := range placeholders {
			if i := strings.Index(rest, ph); i >= 0 && (idx < 0 || i < idx) {
				idx, which = i, ph
			}
		}
		if idx < 0 {
			pattern.WriteString(regexp.QuoteMeta(rest))
			break
		}
		pattern.WriteString(regexp.QuoteMeta(rest[:idx]))
		switch which {
		case PlaceholderX:
			pattern.WriteString(`(?P<x>-?[0-9]*)`)
		case PlaceholderY:
			pattern.WriteString(`(?P<y>-?[0-9]*)`)
		case PlaceholderTime:
			if withTime {
				pattern.WriteString(`(?P<time>-?[0-9]*)`)
			} else {
				pattern.WriteString(`[0-9]*`)
			}
		case PlaceholderAny:
			pattern.WriteString(`[0-9]*`)
		}
		rest = rest[idx+len(which):]
	}

	re, err := regexp.Compile(pattern.String())
	if err != nil {
		return nil, fmt.Errorf("compile template %q: %w", raw, err)
	}
	return &Template{raw: raw, withTime: withTime, re: re}, nil
}

// Raw returns the template source string.
func (t *Template) Raw() string {
	return t.raw
}

// ResolveIdentity matches the base name of path against the template and
// returns the captured tile identity. Resolution is deterministic: the same
// path and template always yield the same identity. Fails with
// ErrTemplateMismatch when the pattern does not match or a required
// placeholder is missing from the template.
func (t *Template) ResolveIdentity(path string) (TileIdentity, error) {
	base := filepath.Base(path)
	match := t.re.FindStringSubmatch(base)
	if match == nil {
		return TileIdentity{}, fmt.Errorf("%q does not match template %q: %w",
			base, t.raw, ErrTemplateMismatch)
	}

	xi := t.re.SubexpIndex("x")
	yi := t.re.SubexpIndex("y")
	if xi < 0 || yi < 0 {
		return TileIdentity{}, fmt.Errorf("template %q has no tile index placeholders: %w",
			t.raw, ErrTemplateMismatch)
	}
	id := TileIdentity{X: match[xi], Y: match[yi]}

	if t.withTime {
		ti := t.re.SubexpIndex("time")
		if ti < 0 {
			return TileIdentity{}, fmt.Errorf("template %q has no time placeholder: %w",
				t.raw, ErrTemplateMismatch)
		}
		id.Time = match[ti]
	}
	return id, nil
}

// RenderTemplate substitutes {name} placeholders in raw from vars. The
// anonymous wildcard renders empty; placeholders missing from vars are left
// verbatim so that malformed templates stay visible in the output.
func RenderTemplate(raw string, vars map[string]string) string {
	pairs := make([]string, 0, 2*len(vars)+2)
	for name, value := range vars {
		pairs = append(pairs, "{"+name+"}", value)
	}
	pairs = append(pairs, PlaceholderAny, "")
	return strings.NewReplacer(pairs...).Replace(raw)
}

// TemplateMentions reports whether raw contains the named placeholder.
func TemplateMentions(raw, name string) bool {
	return strings.Contains(raw, "{"+name+"}")
}
