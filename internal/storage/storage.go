// Package storage defines the device contract the worker reads originals
// from and writes produced artifacts to, plus a local filesystem device.
//
// Remote blob devices (S3 and friends) are owned by the surrounding
// platform; the worker only depends on the Device interface.
package storage

import (
	"fmt"
)

// Device is a blob storage backend.
type Device interface {
	// Read returns the full contents of path.
	Read(path string) ([]byte, error)
	// Write stores data at path with the given mime type.
	Write(path string, data []byte, mime string) error
	// Transfer streams src on this device to dst on target without
	// buffering the whole object in memory.
	Transfer(src, dst string, target Device) error
	// Path returns the device-relative prefix for an object id.
	Path(id string) string
}

// Error wraps a device failure so the pipeline can classify it.
type Error struct {
	Op   string
	Path string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("storage %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// ErrorCode identifies storage failures at the pipeline error boundary.
func (e *Error) ErrorCode() string { return "storage" }
