package storage

import (
	"os"
	"path/filepath"

	"prism/internal/fileutil"
)

// Local is a filesystem-backed device rooted at a directory.
type Local struct {
	root string
}

// NewLocal constructs a local device. An empty root addresses absolute paths.
func NewLocal(root string) *Local {
	return &Local{root: root}
}

// Read returns the contents of path.
func (l *Local) Read(path string) ([]byte, error) {
	data, err := os.ReadFile(l.abs(path))
	if err != nil {
		return nil, &Error{Op: "read", Path: path, Err: err}
	}
	return data, nil
}

// Write stores data at path. The mime type is ignored on the filesystem.
func (l *Local) Write(path string, data []byte, _ string) error {
	if err := fileutil.WriteFile(l.abs(path), data); err != nil {
		return &Error{Op: "write", Path: path, Err: err}
	}
	return nil
}

// Transfer streams src to dst on target. When the target is also a local
// device the copy goes file to file without an in-memory buffer.
func (l *Local) Transfer(src, dst string, target Device) error {
	if local, ok := target.(*Local); ok {
		if err := fileutil.CopyFile(l.abs(src), local.abs(dst)); err != nil {
			return &Error{Op: "transfer", Path: src, Err: err}
		}
		return nil
	}

	data, err := l.Read(src)
	if err != nil {
		return err
	}
	return target.Write(dst, data, "")
}

// Path returns the device-relative prefix for an object id.
func (l *Local) Path(id string) string {
	return id
}

func (l *Local) abs(path string) string {
	if l.root == "" {
		return path
	}
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(l.root, path)
}

var _ Device = (*Local)(nil)
