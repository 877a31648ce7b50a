// Package storage defines the knowledge-root file access abstraction.
package storage

// Provider is the interface for knowledge-root file operations. All paths
// are relative to the root; implementations must reject traversal outside
// it.
type Provider interface {
	// Abs resolves a root-relative path to an absolute one, rejecting
	// anything that escapes the root.
	Abs(rel string) (string, error)
	// Read returns the raw bytes of the file at rel.
	Read(rel string) ([]byte, error)
	// Write atomically replaces the file at rel with content.
	Write(rel string, content []byte) error
	// Exists reports whether a regular file exists at rel.
	Exists(rel string) bool
}
