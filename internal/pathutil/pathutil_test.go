package pathutil

import (
	"os"
	"path/filepath"
	"testing"
)

func TestExpandHomeExpandsTildeSlash(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory available")
	}
	got := ExpandHome("~/pueue/state.yml")
	want := filepath.Join(home, "pueue", "state.yml")
	if got != want {
		t.Fatalf("ExpandHome: got %q, want %q", got, want)
	}
}

func TestExpandHomeExpandsBareTilde(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory available")
	}
	if got := ExpandHome("~"); got != home {
		t.Fatalf("ExpandHome(~): got %q, want %q", got, home)
	}
}

func TestExpandHomeLeavesAbsolutePathUnchanged(t *testing.T) {
	if got := ExpandHome("/var/lib/pueue"); got != "/var/lib/pueue" {
		t.Fatalf("expected absolute path unchanged, got %q", got)
	}
}

func TestExpandHomeLeavesRelativePathUnchanged(t *testing.T) {
	if got := ExpandHome("relative/path"); got != "relative/path" {
		t.Fatalf("expected relative non-tilde path unchanged, got %q", got)
	}
}
