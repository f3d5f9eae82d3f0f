// Package storage defines the library file-system abstraction.
package storage

import "github.com/starford/raido/internal/models"

// Provider is the interface for library file operations. All paths are
// relative to the library root.
type Provider interface {
	// List walks dir and returns metadata for every file whose extension is
	// in exts (e.g. ".safetensors"). Empty exts matches every file.
	List(dir string, exts []string) ([]models.FileMeta, error)
	// Read returns the raw bytes of the file at path.
	Read(path string) ([]byte, error)
	// Write atomically writes content to path.
	Write(path string, content []byte) error
	// Delete removes the file at path.
	Delete(path string) error
	// Move renames oldPath to newPath.
	Move(oldPath, newPath string) error
	// Exists reports whether a file exists at path.
	Exists(path string) bool
	// Abs resolves path against the library root, rejecting escapes.
	Abs(path string) (string, error)
}
