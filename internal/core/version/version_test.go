package version

import "testing"

func TestInfoString(t *testing.T) {
	b := BuildInfo{Version: "v1.2.3", Commit: "abc", Date: "2026-01-02"}
	if got := b.String(); got != "v1.2.3 (commit abc, built 2026-01-02)" {
		t.Fatalf("String() = %q", got)
	}
	if Info().Version == "" {
		t.Fatalf("empty default version")
	}
}
