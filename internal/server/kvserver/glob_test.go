package kvserver

import "testing"

func TestMatchGlob(t *testing.T) {
	tests := []struct {
		pattern string
		s       string
		want    bool
	}{
		{"*", "", true},
		{"*", "anything", true},
		{"ses_*", "ses_alice-1", true},
		{"ses_*", "id_alice", false},
		{"pk_*_alice", "pk_3_alice", true},
		{"pk_*_alice", "pk_3_bob", false},
		{"h?llo", "hello", true},
		{"h?llo", "hllo", false},
		{"a*b*c", "axxbyyc", true},
		{"a*b*c", "axxbyy", false},
		{`a\*b`, "a*b", true},
		{`a\*b`, "axb", false},
		{`a\?`, "a?", true},
		{"exact", "exact", true},
		{"exact", "exactly", false},
	}

	for _, tt := range tests {
		if got := matchGlob(tt.pattern, tt.s); got != tt.want {
			t.Errorf("matchGlob(%q, %q) = %v, want %v", tt.pattern, tt.s, got, tt.want)
		}
	}
}

func TestLiteralPrefix(t *testing.T) {
	tests := []struct {
		pattern string
		want    string
	}{
		{"*", ""},
		{"ses_alice-*", "ses_alice-"},
		{"pk_?_x", "pk_"},
		{`a\*b*`, "a*b"},
		{"plain", "plain"},
	}

	for _, tt := range tests {
		if got := literalPrefix(tt.pattern); got != tt.want {
			t.Errorf("literalPrefix(%q) = %q, want %q", tt.pattern, got, tt.want)
		}
	}
}
