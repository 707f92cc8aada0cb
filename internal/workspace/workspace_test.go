package workspace

import (
	"os"
	"path/filepath"
	"testing"
)

func TestNewCreatesTree(t *testing.T) {
	root := t.TempDir()
	ws, err := New(root)
	if err != nil {
		t.Fatal(err)
	}
	for _, dir := range []string{ws.InDir, ws.OutDir} {
		info, err := os.Stat(dir)
		if err != nil || !info.IsDir() {
			t.Fatalf("expected directory %s: %v", dir, err)
		}
	}
	if filepath.Dir(ws.Base) != root {
		t.Fatalf("workspace not under root: %s", ws.Base)
	}
}

func TestWorkspacesAreUnique(t *testing.T) {
	root := t.TempDir()
	a, err := New(root)
	if err != nil {
		t.Fatal(err)
	}
	b, err := New(root)
	if err != nil {
		t.Fatal(err)
	}
	if a.Base == b.Base {
		t.Fatalf("workspaces collide: %s", a.Base)
	}
}

func TestCleanupRemovesEverything(t *testing.T) {
	ws, err := New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(ws.OutPath("sprite1.jpg"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := ws.Cleanup(); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(ws.Base); !os.IsNotExist(err) {
		t.Fatalf("workspace still exists: %v", err)
	}
}

func TestCleanupNilSafe(t *testing.T) {
	var ws *Workspace
	if err := ws.Cleanup(); err != nil {
		t.Fatal(err)
	}
}
