// Package config supplies the pipeline's settings: which tool to run, how
// runs are triggered, and how output is parsed. Settings load from a TOML
// file; Service holds the current value and notifies observers when it
// changes; Watcher reloads the file when it is edited.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// TriggerMode controls when documents are re-analyzed.
type TriggerMode int

const (
	// TriggerOnSave runs analysis when a document is saved or opened.
	TriggerOnSave TriggerMode = iota
	// TriggerOnType additionally runs analysis as the document changes,
	// debounced by the configured delay.
	TriggerOnType
	// TriggerOff disables scheduled runs; only forced runs execute.
	TriggerOff
)

// String returns the mode name.
func (m TriggerMode) String() string {
	switch m {
	case TriggerOnSave:
		return "onSave"
	case TriggerOnType:
		return "onType"
	case TriggerOff:
		return "off"
	default:
		return "unknown"
	}
}

// ParseTriggerMode parses a mode name.
func ParseTriggerMode(s string) (TriggerMode, error) {
	switch s {
	case "onSave", "onsave", "save", "":
		return TriggerOnSave, nil
	case "onType", "ontype", "type":
		return TriggerOnType, nil
	case "off", "never":
		return TriggerOff, nil
	default:
		return TriggerOnSave, fmt.Errorf("unknown trigger mode %q", s)
	}
}

// UnmarshalText implements encoding.TextUnmarshaler for TOML decoding.
func (m *TriggerMode) UnmarshalText(text []byte) error {
	mode, err := ParseTriggerMode(string(text))
	if err != nil {
		return err
	}
	*m = mode
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (m TriggerMode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// Settings is the pipeline configuration.
type Settings struct {
	// Executable is the analysis tool to run.
	Executable string `toml:"executable"`

	// Args are the base arguments passed on every invocation.
	Args []string `toml:"args"`

	// ContentArgs are extra arguments appended when the document's
	// in-memory content is streamed to the tool's stdin.
	ContentArgs []string `toml:"content_args"`

	// Trigger selects when analysis runs.
	Trigger TriggerMode `toml:"trigger"`

	// DelayMS is the coalescing delay for onType triggering.
	DelayMS int `toml:"delay_ms"`

	// WorkingDir is the tool's working directory. Empty means the
	// directory of the document being analyzed.
	WorkingDir string `toml:"working_dir"`

	// LintProject sweeps all open documents on activation and after
	// configuration changes.
	LintProject bool `toml:"lint_project"`

	// Languages restricts which document languages are handled.
	// Empty means all.
	Languages []string `toml:"languages"`

	// Parser selects the output parser: "regex", "json", or "lua".
	Parser string `toml:"parser"`

	// Matchers names builtin regex definitions for the regex parser.
	Matchers []string `toml:"matchers"`

	// MatcherFile is a YAML file of additional regex definitions.
	MatcherFile string `toml:"matcher_file"`

	// ParserScript is the Lua script path for the lua parser.
	ParserScript string `toml:"parser_script"`

	// Source labels published diagnostics. Defaults to the executable
	// name.
	Source string `toml:"source"`
}

// DefaultSettings returns the baseline configuration.
func DefaultSettings() Settings {
	return Settings{
		Trigger: TriggerOnSave,
		DelayMS: 300,
		Parser:  "regex",
	}
}

// Delay returns the onType coalescing delay as a duration.
func (s Settings) Delay() time.Duration {
	if s.DelayMS <= 0 {
		return 0
	}
	return time.Duration(s.DelayMS) * time.Millisecond
}

// HandlesLanguage reports whether documents of the given language are
// analyzed.
func (s Settings) HandlesLanguage(lang string) bool {
	if len(s.Languages) == 0 {
		return true
	}
	for _, l := range s.Languages {
		if l == lang {
			return true
		}
	}
	return false
}

// Load reads settings from a TOML file, applying defaults for absent keys.
// A missing file is not an error; defaults are returned.
func Load(path string) (Settings, error) {
	s := DefaultSettings()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return s, fmt.Errorf("reading config file %s: %w", path, err)
	}

	if err := toml.Unmarshal(data, &s); err != nil {
		return DefaultSettings(), fmt.Errorf("parsing config file %s: %w", path, err)
	}
	return s, nil
}
