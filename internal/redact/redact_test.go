package redact

import (
	"strings"
	"testing"
)

func TestMaskReplacesSecrets(t *testing.T) {
	r := New("tok123", "key-abc")

	got := r.Mask(`{"error":"bad token tok123 for key key-abc"}`)
	if strings.Contains(got, "tok123") || strings.Contains(got, "key-abc") {
		t.Fatalf("secret leaked: %q", got)
	}
	if !strings.Contains(got, "[REDACTED_BY_PORTICO]") {
		t.Fatalf("placeholder missing: %q", got)
	}
}

func TestMaskRepeatedOccurrences(t *testing.T) {
	r := New("s3cr3t")

	got := r.Mask("s3cr3t and again s3cr3t")
	if strings.Contains(got, "s3cr3t") {
		t.Fatalf("secret leaked: %q", got)
	}
	if n := strings.Count(got, "[REDACTED_BY_PORTICO]"); n != 2 {
		t.Fatalf("placeholder count = %d", n)
	}
}

func TestMaskNoSecretsIsIdentity(t *testing.T) {
	r := New("", "")
	in := "nothing to hide"
	if got := r.Mask(in); got != in {
		t.Fatalf("Mask = %q", got)
	}
}

func TestMaskUntouchedWithoutMatch(t *testing.T) {
	r := New("tok123")
	in := "plain response body"
	if got := r.Mask(in); got != in {
		t.Fatalf("Mask = %q", got)
	}
}
