package geoip

import (
	"errors"
	"testing"
)

func TestParseAddr(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"203.0.113.7", "203.0.113.7"},
		{"203.0.113.7:5123", "203.0.113.7"},
		{"[2001:db8::1]:443", "2001:db8::1"},
		{"2001:db8::1", "2001:db8::1"},
		{"not-an-ip", ""},
	}
	for _, tc := range tests {
		got := ParseAddr(tc.in)
		if tc.want == "" {
			if got != nil {
				t.Fatalf("ParseAddr(%q) = %v, want nil", tc.in, got)
			}
			continue
		}
		if got == nil || got.String() != tc.want {
			t.Fatalf("ParseAddr(%q) = %v, want %s", tc.in, got, tc.want)
		}
	}
}

func TestNewResolverEmptyPath(t *testing.T) {
	r, err := NewResolver("  ")
	if err != nil || r != nil {
		t.Fatalf("NewResolver(empty) = %v, %v", r, err)
	}
	if _, err := r.CountryCode("203.0.113.7"); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("CountryCode on nil resolver error = %v", err)
	}
}

func TestNewResolverMissingFile(t *testing.T) {
	if _, err := NewResolver(t.TempDir() + "/missing.mmdb"); err == nil {
		t.Fatalf("expected error for missing database")
	}
}
