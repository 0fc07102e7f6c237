package util

import (
	"strings"
	"testing"
)

func TestStableIDDeterministic(t *testing.T) {
	a := StableID("entity", "proj", "john smith", "PERSON")
	b := StableID("entity", "proj", "john smith", "PERSON")
	if a != b {
		t.Errorf("same parts produced different ids: %s vs %s", a, b)
	}
}

func TestStableIDDistinguishesParts(t *testing.T) {
	tests := []struct {
		name string
		a    []string
		b    []string
	}{
		{"different value", []string{"entity", "p", "john"}, []string{"entity", "p", "jane"}},
		{"different kind", []string{"entity", "p", "john"}, []string{"code", "p", "john"}},
		{"different project", []string{"entity", "p1", "john"}, []string{"entity", "p2", "john"}},
		{"shifted boundary", []string{"ab", "c"}, []string{"a", "bc"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if StableID(tt.a...) == StableID(tt.b...) {
				t.Errorf("StableID(%v) == StableID(%v)", tt.a, tt.b)
			}
		})
	}
}

func TestStableIDTrimsParts(t *testing.T) {
	if StableID("entity", " john ") != StableID("entity", "john") {
		t.Error("surrounding whitespace must not change the id")
	}
}

func TestStableIDShape(t *testing.T) {
	id := StableID("quote", "int-1", "some text")
	if len(id) != 24 {
		t.Errorf("id length = %d, want 24", len(id))
	}
	if id != strings.ToLower(id) {
		t.Errorf("id %s is not lowercase", id)
	}
}

func TestNormalizeName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"John Smith", "john smith"},
		{"  John   Smith  ", "john smith"},
		{"John\nSmith", "john smith"},
		{"John\r\nSmith", "john smith"},
		{"", ""},
		{"   ", ""},
		{"ALL-CAPS NAME", "all-caps name"},
	}
	for _, tt := range tests {
		if got := NormalizeName(tt.in); got != tt.want {
			t.Errorf("NormalizeName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
