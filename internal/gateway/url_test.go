package gateway

import (
	"errors"
	"testing"
)

func TestComposePath(t *testing.T) {
	cases := []struct {
		basePath string
		callPath string
		want     string
	}{
		{"/fred", "/series/GDPC1", "/fred/series/GDPC1"},
		{"", "/series/GDPC1", "/series/GDPC1"},
		{"/fred", "/", "/fred/"},
		{"/v2", "//items//5", "/v2/items/5"},
		{"/fred/", "/series", "/fred/series"},
	}
	for _, c := range cases {
		got, err := ComposePath(c.basePath, c.callPath)
		if err != nil {
			t.Errorf("ComposePath(%q, %q): %v", c.basePath, c.callPath, err)
			continue
		}
		if got != c.want {
			t.Errorf("ComposePath(%q, %q) = %q, want %q", c.basePath, c.callPath, got, c.want)
		}
	}
}

func TestComposePathDeterministic(t *testing.T) {
	for i := 0; i < 3; i++ {
		got, err := ComposePath("/fred", "/series/GDPC1")
		if err != nil {
			t.Fatalf("ComposePath: %v", err)
		}
		if got != "/fred/series/GDPC1" {
			t.Fatalf("ComposePath = %q", got)
		}
	}
}

func TestComposePathRejections(t *testing.T) {
	cases := []struct {
		basePath string
		callPath string
	}{
		{"/fred", ""},
		{"/fred", "series"},
		{"/fred", "/../admin"},
		{"/fred", "/series/../../etc/passwd"},
		{"", "/.."},
		{"/fred", "/ok/.."},
	}
	for _, c := range cases {
		_, err := ComposePath(c.basePath, c.callPath)
		var perr *PathError
		if !errors.As(err, &perr) {
			t.Errorf("ComposePath(%q, %q): got %v, want PathError", c.basePath, c.callPath, err)
		}
	}
}
