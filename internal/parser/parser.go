// Package parser turns decoded tool output lines into structured
// diagnostics.
//
// Parsers are pure: they map an ordered sequence of lines to an ordered
// sequence of diagnostic records with no side effects and no knowledge of
// scheduling. Three implementations cover the common linter output shapes:
// regex patterns for line-oriented formats, gjson extraction for JSON
// emitters, and a Lua script hook for anything bespoke.
package parser

import (
	"fmt"
	"os"

	"github.com/dshills/lintstorm/internal/diag"
)

// Parser maps decoded output lines to diagnostics.
type Parser interface {
	Parse(lines []string) []diag.Diagnostic
}

// Func adapts a plain function to the Parser interface.
type Func func(lines []string) []diag.Diagnostic

// Parse implements Parser.
func (f Func) Parse(lines []string) []diag.Diagnostic {
	return f(lines)
}

// Options selects and configures a parser by name.
type Options struct {
	// Source labels diagnostics with the reporting tool's name.
	Source string

	// Matchers names builtin regex definitions to use (regex parser).
	Matchers []string

	// MatcherFile is a YAML file of additional regex definitions.
	MatcherFile string

	// ScriptFile is a Lua script defining a parse function (lua parser).
	ScriptFile string

	// JSON configures key paths for the JSON parser. Zero value uses
	// defaults.
	JSON JSONConfig
}

// New builds a parser by name: "regex", "json", or "lua". An empty name
// selects the regex parser with the generic builtin definition.
func New(name string, opts Options) (Parser, error) {
	switch name {
	case "", "regex":
		defs, err := resolveDefinitions(opts)
		if err != nil {
			return nil, err
		}
		return NewRegexParser(opts.Source, defs...)

	case "json":
		cfg := opts.JSON
		cfg.applyDefaults()
		return NewJSONParser(opts.Source, cfg), nil

	case "lua":
		if opts.ScriptFile == "" {
			return nil, fmt.Errorf("lua parser requires a script file")
		}
		script, err := os.ReadFile(opts.ScriptFile)
		if err != nil {
			return nil, fmt.Errorf("reading parser script: %w", err)
		}
		return NewLuaParser(opts.Source, string(script)), nil

	default:
		return nil, fmt.Errorf("unknown parser %q", name)
	}
}

// resolveDefinitions collects regex definitions from builtin names and an
// optional YAML file.
func resolveDefinitions(opts Options) ([]Definition, error) {
	var defs []Definition

	names := opts.Matchers
	if len(names) == 0 && opts.MatcherFile == "" {
		names = []string{"generic"}
	}
	for _, name := range names {
		def, ok := Builtin(name)
		if !ok {
			return nil, fmt.Errorf("unknown builtin matcher %q", name)
		}
		defs = append(defs, def)
	}

	if opts.MatcherFile != "" {
		loaded, err := LoadDefinitions(opts.MatcherFile)
		if err != nil {
			return nil, err
		}
		defs = append(defs, loaded...)
	}

	return defs, nil
}
