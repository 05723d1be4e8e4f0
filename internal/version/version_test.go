package version

import "testing"

func TestString(t *testing.T) {
	origVersion, origSHA, origTime := Version, GitSHA, BuildTime
	t.Cleanup(func() { Version, GitSHA, BuildTime = origVersion, origSHA, origTime })

	Version, GitSHA, BuildTime = "0.3.1", "0123456789abcdef", "2026-01-02T03:04:05Z"
	if got, want := String(), "0.3.1 (0123456, built 2026-01-02T03:04:05Z)"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}

	GitSHA = "abc"
	if got, want := String(), "0.3.1 (abc, built 2026-01-02T03:04:05Z)"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}
