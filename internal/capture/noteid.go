package capture

import (
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
)

const noteIDPrefix = "note:"

// NoteID returns a stable memory ID for a captured note file. The same
// absolute path always yields the same ID, so edits update the existing
// memory instead of creating a new one.
func NoteID(absolutePath string) string {
	normalized := filepath.Clean(absolutePath)
	hash := sha256.Sum256([]byte(normalized))
	return noteIDPrefix + hex.EncodeToString(hash[:])
}
