// Package workspace allocates the isolated scratch directory tree a single
// job works in and guarantees best-effort removal when the job finishes.
package workspace

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// Workspace is a per-job temporary directory with in/ and out/ subtrees.
// Retrieved source assets land under in/, encoder output under out/.
type Workspace struct {
	Base   string
	InDir  string
	OutDir string
}

// New allocates a uniquely named workspace under workDir.
func New(workDir string) (*Workspace, error) {
	base := filepath.Join(workDir, uuid.NewString())
	ws := &Workspace{
		Base:   base,
		InDir:  filepath.Join(base, "in"),
		OutDir: filepath.Join(base, "out"),
	}
	for _, dir := range []string{ws.InDir, ws.OutDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create workspace directory %s: %w", dir, err)
		}
	}
	return ws, nil
}

// InPath returns the path of name inside the input directory.
func (w *Workspace) InPath(name string) string {
	return filepath.Join(w.InDir, name)
}

// OutPath returns the path of name inside the output directory.
func (w *Workspace) OutPath(name string) string {
	return filepath.Join(w.OutDir, name)
}

// Cleanup removes the whole workspace tree. Callers treat failures as
// non-fatal and log them.
func (w *Workspace) Cleanup() error {
	if w == nil || w.Base == "" {
		return nil
	}
	if err := os.RemoveAll(w.Base); err != nil {
		return fmt.Errorf("remove workspace %s: %w", w.Base, err)
	}
	return nil
}
