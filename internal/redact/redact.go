// Package redact scrubs known credential values out of text before it can
// reach a log line, an error message or a response body.
package redact

import (
	aho "github.com/petar-dambovaliev/aho-corasick"
)

const placeholder = "[REDACTED_BY_PORTICO]"

// Redactor replaces every occurrence of the configured secret values with a
// fixed placeholder. Uses Aho-Corasick for efficient multi-pattern matching.
// Safe for concurrent use; the matcher is immutable after construction.
type Redactor struct {
	matcher aho.AhoCorasick
	active  bool
}

// New builds a Redactor over the given secret values. Empty strings are
// ignored; with no usable secrets, Mask is the identity.
func New(secrets ...string) *Redactor {
	var filtered []string
	for _, s := range secrets {
		if len(s) > 0 {
			filtered = append(filtered, s)
		}
	}
	if len(filtered) == 0 {
		return &Redactor{}
	}

	builder := aho.NewAhoCorasickBuilder(aho.Opts{})
	return &Redactor{matcher: builder.Build(filtered), active: true}
}

// Mask returns s with every secret occurrence replaced by the placeholder.
func (r *Redactor) Mask(s string) string {
	if !r.active || s == "" {
		return s
	}

	matches := r.matcher.FindAll(s)
	if len(matches) == 0 {
		return s
	}

	var out []byte
	pos := 0
	for _, m := range matches {
		if m.Start() < pos {
			continue // overlapping match
		}
		out = append(out, s[pos:m.Start()]...)
		out = append(out, placeholder...)
		pos = m.End()
	}
	out = append(out, s[pos:]...)
	return string(out)
}
