// Package document defines the document model the lint pipeline consumes:
// stable identities derived from file location, immutable text snapshots,
// and lifecycle events (opened, saved, closed, changed).
//
// The pipeline does not own the editor's document model; it reacts to events
// emitted by a Source. Tracker is an in-memory Source used by the CLI driver
// and by tests.
package document

import (
	"path/filepath"
	"strings"
)

// ID is an opaque, stable key uniquely identifying a trackable document.
// It is derived from the document's file location.
type ID string

// IDForPath derives the identity for a file path.
func IDForPath(path string) ID {
	abs, err := filepath.Abs(path)
	if err != nil {
		return ID(filepath.Clean(path))
	}
	return ID(abs)
}

// Snapshot is an immutable view of a document at a point in time.
type Snapshot struct {
	// ID is the document's stable identity.
	ID ID

	// Path is the document's location on disk.
	Path string

	// Language is the document's language tag (e.g. "go", "python").
	Language string

	// Text is the document's current in-memory content.
	Text string

	// Version increases with each change.
	Version int
}

// EventKind identifies a document lifecycle event.
type EventKind int

const (
	// Opened indicates a document became tracked.
	Opened EventKind = iota
	// Saved indicates a document's content was written to disk.
	Saved
	// Closed indicates a document is no longer tracked.
	Closed
	// Changed indicates a document's in-memory content changed.
	Changed
)

// String returns the event kind name.
func (k EventKind) String() string {
	switch k {
	case Opened:
		return "opened"
	case Saved:
		return "saved"
	case Closed:
		return "closed"
	case Changed:
		return "changed"
	default:
		return "unknown"
	}
}

// Event is a document lifecycle notification.
type Event struct {
	// Kind is the lifecycle transition.
	Kind EventKind

	// Doc is the document snapshot at the time of the event. For Closed
	// events the snapshot carries the last known content.
	Doc Snapshot
}

// Source supplies documents and their lifecycle events.
type Source interface {
	// Subscribe registers a handler for lifecycle events and returns an
	// unsubscribe function.
	Subscribe(fn func(Event)) (unsubscribe func())

	// Lookup returns the current snapshot for an identity.
	Lookup(id ID) (Snapshot, bool)

	// All returns snapshots for every tracked document.
	All() []Snapshot
}

// languagesByExt maps file extensions to language tags.
var languagesByExt = map[string]string{
	".c":    "c",
	".cc":   "cpp",
	".cpp":  "cpp",
	".go":   "go",
	".h":    "c",
	".js":   "javascript",
	".jsx":  "javascript",
	".lua":  "lua",
	".py":   "python",
	".rb":   "ruby",
	".rs":   "rust",
	".sh":   "shell",
	".ts":   "typescript",
	".tsx":  "typescript",
	".yaml": "yaml",
	".yml":  "yaml",
}

// LanguageForPath guesses a language tag from a file extension. Unknown
// extensions map to the bare extension name.
func LanguageForPath(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	if lang, ok := languagesByExt[ext]; ok {
		return lang
	}
	return strings.TrimPrefix(ext, ".")
}
