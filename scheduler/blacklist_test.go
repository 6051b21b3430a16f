package scheduler

import (
	"os"
	"path/filepath"
	"testing"
)

func TestExclMatcherNetworkAndPattern(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "blacklist.txt")
	content := "# comment\n\n192.0.2.0/24\n^10\\.0\\.0\\.\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write blacklist: %v", err)
	}

	m := NewExclMatcher(path)

	cases := []struct {
		target string
		want   bool
	}{
		{"192.0.2.55", true},
		{"198.51.100.1", false},
		{"10.0.0.5", true},
		{"hostname.example", false},
	}
	for _, c := range cases {
		if got := m.Match(c.target); got != c.want {
			t.Errorf("Match(%q) = %v, want %v", c.target, got, c.want)
		}
	}
}

func TestExclMatcherEmptyPath(t *testing.T) {
	m := NewExclMatcher("")
	if m.Match("anything") {
		t.Fatal("expected empty-path matcher to exclude nothing")
	}
}

func TestExclMatcherMissingFile(t *testing.T) {
	m := NewExclMatcher("/nonexistent/path/blacklist.txt")
	if m.Match("anything") {
		t.Fatal("expected matcher backed by missing file to exclude nothing")
	}
}
