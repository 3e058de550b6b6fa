package auth

import (
	"strings"
	"testing"
)

func TestParseBearerToken(t *testing.T) {
	if token, ok := ParseBearerToken("Bearer abc123"); !ok || token != "abc123" {
		t.Fatalf("valid header: ok=%v token=%q", ok, token)
	}
	if token, ok := ParseBearerToken("bearer xyz"); !ok || token != "xyz" {
		t.Fatalf("lower-case scheme: ok=%v token=%q", ok, token)
	}
	for _, h := range []string{"", "abc123", "Bearer", "Bearer ", "Token abc123", "Bearer abc def"} {
		if token, ok := ParseBearerToken(h); ok || token != "" {
			t.Fatalf("expected failure for header %q, got ok=%v token=%q", h, ok, token)
		}
	}
}

func TestOpenWithoutKeys(t *testing.T) {
	a, err := New([]string{"", "  "})
	if err != nil {
		t.Fatal(err)
	}
	if !a.Open() {
		t.Fatal("expected open auth")
	}
	if c, ok := a.Authorize(""); !ok || c != Anonymous {
		t.Fatalf("open auth rejected request: %v %v", c, ok)
	}
	var nilAuth *Auth
	if !nilAuth.Open() {
		t.Fatal("nil auth should be open")
	}
}

func TestLookup(t *testing.T) {
	a, err := New([]string{"k-one", "k-two"})
	if err != nil {
		t.Fatal(err)
	}
	one, ok := a.Lookup("k-one")
	if !ok {
		t.Fatal("k-one rejected")
	}
	two, ok := a.Authorize("Bearer k-two")
	if !ok || two == one {
		t.Fatalf("k-two = %v %v", two, ok)
	}
	if strings.Contains(one.ID, "k-one") {
		t.Fatalf("client id leaks key: %s", one.ID)
	}
	if _, ok := a.Lookup("k-three"); ok {
		t.Fatal("unknown key accepted")
	}
	if _, ok := a.Authorize("k-one"); ok {
		t.Fatal("header without scheme accepted")
	}
	if _, ok := a.Lookup(""); ok {
		t.Fatal("empty key accepted")
	}
}

func TestDuplicateKeys(t *testing.T) {
	_, err := New([]string{"dup", "dup"})
	if err == nil {
		t.Fatal("expected duplicate error")
	}
	if strings.Contains(err.Error(), "dup ") || strings.HasSuffix(err.Error(), "dup") {
		t.Fatalf("error leaks key: %v", err)
	}
}
