// Package diag defines diagnostic records produced by analysis runs and a
// store that keeps the live diagnostic set per document identity.
package diag

import "strings"

// Severity indicates how serious a diagnostic is.
type Severity int

const (
	// SeverityError is a problem that must be fixed.
	SeverityError Severity = iota + 1
	// SeverityWarning is a problem that should be fixed.
	SeverityWarning
	// SeverityInfo is informational.
	SeverityInfo
	// SeverityHint is a suggestion.
	SeverityHint
)

// String returns the severity name.
func (s Severity) String() string {
	switch s {
	case SeverityError:
		return "error"
	case SeverityWarning:
		return "warning"
	case SeverityInfo:
		return "info"
	case SeverityHint:
		return "hint"
	default:
		return "unknown"
	}
}

// ParseSeverity normalizes a tool-reported severity word. Unknown words
// default to error, matching how most linters treat unclassified findings.
func ParseSeverity(s string) Severity {
	switch strings.ToLower(s) {
	case "error", "fatal", "e":
		return SeverityError
	case "warning", "warn", "w":
		return SeverityWarning
	case "info", "information", "note", "i", "n":
		return SeverityInfo
	case "hint", "style", "convention", "refactor", "h":
		return SeverityHint
	default:
		return SeverityError
	}
}

// Diagnostic is a single structured finding from an analysis run.
type Diagnostic struct {
	// File is the path the finding refers to.
	File string

	// Line is the 1-based line number (0 if unknown).
	Line int

	// Column is the 1-based column number (0 if unknown).
	Column int

	// EndLine is the end line for multi-line findings (0 if single line).
	EndLine int

	// EndColumn is the end column for multi-line findings.
	EndColumn int

	// Severity classifies the finding.
	Severity Severity

	// Code is an optional rule or error code.
	Code string

	// Message is the finding description.
	Message string

	// Source is the tool that reported the finding.
	Source string
}
