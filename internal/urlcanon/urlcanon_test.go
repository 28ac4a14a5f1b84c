package urlcanon

import "testing"

func TestCanonicalize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"adds scheme", "example.com", "https://example.com/"},
		{"lowercases host", "https://EXAMPLE.com/Path", "https://example.com/Path"},
		{"strips www", "https://www.example.com", "https://example.com/"},
		{"strips trailing slash", "https://example.com/about/", "https://example.com/about"},
		{"drops query and fragment", "https://example.com/a?x=1#frag", "https://example.com/a"},
		{"empty path becomes slash", "https://example.com", "https://example.com/"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Canonicalize(tt.in); got != tt.want {
				t.Errorf("Canonicalize(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestCanonicalizeIdempotent(t *testing.T) {
	inputs := []string{
		"example.com", "https://www.EXAMPLE.com/Foo/", "http://a.test/b?x=1#y",
	}

	for _, in := range inputs {
		once := Canonicalize(in)
		twice := Canonicalize(once)

		if once != twice {
			t.Errorf("Canonicalize not idempotent for %q: %q != %q", in, once, twice)
		}
	}
}

func TestHostOf(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"https://www.Example.com/a", "example.com"},
		{"https://sub.example.com", "sub.example.com"},
		{"://bad url", ""},
	}

	for _, tt := range tests {
		if got := HostOf(tt.in); got != tt.want {
			t.Errorf("HostOf(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestInScope(t *testing.T) {
	tests := []struct {
		name string
		url  string
		base string
		want bool
	}{
		{"same host", "https://a.test/contact", "a.test", true},
		{"subdomain", "https://blog.a.test/x", "a.test", true},
		{"other host", "https://other.test/x", "a.test", false},
		{"excluded extension", "https://a.test/logo.png", "a.test", false},
		{"no scheme", "a.test/x", "a.test", false},
		{"excluded extension case-insensitive", "https://a.test/doc.PDF", "a.test", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := InScope(tt.url, tt.base); got != tt.want {
				t.Errorf("InScope(%q, %q) = %v, want %v", tt.url, tt.base, got, tt.want)
			}
		})
	}
}
