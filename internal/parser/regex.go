package parser

import (
	"fmt"
	"os"
	"regexp"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/dshills/lintstorm/internal/diag"
)

// Pattern defines a regex with capture-group indices for each diagnostic
// field. A zero group index means the field is not captured.
type Pattern struct {
	// Pattern is the regex applied to each output line.
	Pattern string `yaml:"pattern"`

	// File is the capture group for the file path.
	File int `yaml:"file"`

	// Line is the capture group for the line number.
	Line int `yaml:"line"`

	// Column is the capture group for the column number.
	Column int `yaml:"column"`

	// EndLine is the capture group for the end line.
	EndLine int `yaml:"endLine"`

	// EndColumn is the capture group for the end column.
	EndColumn int `yaml:"endColumn"`

	// Severity is the capture group for the severity word.
	Severity int `yaml:"severity"`

	// Code is the capture group for the rule code.
	Code int `yaml:"code"`

	// Message is the capture group for the message.
	Message int `yaml:"message"`

	// DefaultSeverity is used when no severity group is captured.
	DefaultSeverity string `yaml:"defaultSeverity"`
}

// Definition is a named set of patterns for one output format.
type Definition struct {
	// Name identifies the definition.
	Name string `yaml:"name"`

	// Owner labels diagnostics when Options.Source is empty.
	Owner string `yaml:"owner"`

	// Patterns are tried in order against each line.
	Patterns []Pattern `yaml:"patterns"`
}

type compiledPattern struct {
	regex   *regexp.Regexp
	pattern Pattern
}

// RegexParser matches each output line against its definitions in order and
// collects one diagnostic per first-matching pattern.
type RegexParser struct {
	source   string
	owner    string
	patterns []compiledPattern
}

// NewRegexParser compiles the given definitions.
func NewRegexParser(source string, defs ...Definition) (*RegexParser, error) {
	p := &RegexParser{source: source}

	for _, def := range defs {
		if p.owner == "" {
			p.owner = def.Owner
		}
		for _, pat := range def.Patterns {
			re, err := regexp.Compile(pat.Pattern)
			if err != nil {
				return nil, fmt.Errorf("matcher %q: %w", def.Name, err)
			}
			p.patterns = append(p.patterns, compiledPattern{regex: re, pattern: pat})
		}
	}

	if len(p.patterns) == 0 {
		return nil, fmt.Errorf("no patterns defined")
	}
	return p, nil
}

// Parse implements Parser. Lines that match no pattern are skipped.
func (p *RegexParser) Parse(lines []string) []diag.Diagnostic {
	var out []diag.Diagnostic
	for _, line := range lines {
		if d, ok := p.match(line); ok {
			out = append(out, d)
		}
	}
	return out
}

func (p *RegexParser) match(line string) (diag.Diagnostic, bool) {
	for _, cp := range p.patterns {
		matches := cp.regex.FindStringSubmatch(line)
		if matches == nil {
			continue
		}

		d := diag.Diagnostic{Source: p.source}
		if d.Source == "" {
			d.Source = p.owner
		}

		pat := cp.pattern
		d.File = group(matches, pat.File)
		d.Line = groupInt(matches, pat.Line)
		d.Column = groupInt(matches, pat.Column)
		d.EndLine = groupInt(matches, pat.EndLine)
		d.EndColumn = groupInt(matches, pat.EndColumn)
		d.Code = group(matches, pat.Code)
		d.Message = group(matches, pat.Message)

		if sev := group(matches, pat.Severity); sev != "" {
			d.Severity = diag.ParseSeverity(sev)
		} else if pat.DefaultSeverity != "" {
			d.Severity = diag.ParseSeverity(pat.DefaultSeverity)
		} else {
			d.Severity = diag.SeverityError
		}

		return d, true
	}

	return diag.Diagnostic{}, false
}

func group(matches []string, idx int) string {
	if idx <= 0 || idx >= len(matches) {
		return ""
	}
	return matches[idx]
}

func groupInt(matches []string, idx int) int {
	s := group(matches, idx)
	if s == "" {
		return 0
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}

// LoadDefinitions reads matcher definitions from a YAML file. The file holds
// a list of Definition documents.
func LoadDefinitions(path string) ([]Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading matcher file %s: %w", path, err)
	}

	var defs []Definition
	if err := yaml.Unmarshal(data, &defs); err != nil {
		return nil, fmt.Errorf("parsing matcher file %s: %w", path, err)
	}
	return defs, nil
}

// builtins holds ready-made definitions for common output formats.
var builtins = map[string]Definition{
	"gcc": {
		Name:  "gcc",
		Owner: "gcc",
		Patterns: []Pattern{
			{
				Pattern:  `^(.+):(\d+):(\d+):\s*(error|warning|note):\s*(.+)$`,
				File:     1,
				Line:     2,
				Column:   3,
				Severity: 4,
				Message:  5,
			},
			{
				Pattern:  `^(.+):(\d+):\s*(error|warning|note):\s*(.+)$`,
				File:     1,
				Line:     2,
				Severity: 3,
				Message:  4,
			},
		},
	},
	"go": {
		Name:  "go",
		Owner: "go",
		Patterns: []Pattern{
			{
				Pattern: `^(.+):(\d+):(\d+):\s*(.+)$`,
				File:    1,
				Line:    2,
				Column:  3,
				Message: 4,
			},
			{
				Pattern: `^(.+):(\d+):\s*(.+)$`,
				File:    1,
				Line:    2,
				Message: 3,
			},
		},
	},
	"eslint-compact": {
		Name:  "eslint-compact",
		Owner: "eslint",
		Patterns: []Pattern{
			{
				Pattern:  `^(.+):\s*line\s+(\d+),\s*col\s+(\d+),\s*(Error|Warning)\s*-\s*(.+)$`,
				File:     1,
				Line:     2,
				Column:   3,
				Severity: 4,
				Message:  5,
			},
		},
	},
	"pylint": {
		Name:  "pylint",
		Owner: "pylint",
		Patterns: []Pattern{
			{
				Pattern:         `^(.+):(\d+):(\d+):\s*([A-Z]\d+):\s*(.+)$`,
				File:            1,
				Line:            2,
				Column:          3,
				Code:            4,
				Message:         5,
				DefaultSeverity: "warning",
			},
		},
	},
	"generic": {
		Name:  "generic",
		Owner: "generic",
		Patterns: []Pattern{
			{
				Pattern: `^(.+):(\d+):(\d+):\s*(.+)$`,
				File:    1,
				Line:    2,
				Column:  3,
				Message: 4,
			},
			{
				Pattern: `^(.+):(\d+):\s*(.+)$`,
				File:    1,
				Line:    2,
				Message: 3,
			},
		},
	},
}

// Builtin returns a builtin definition by name.
func Builtin(name string) (Definition, bool) {
	def, ok := builtins[name]
	return def, ok
}

// BuiltinNames lists the available builtin definitions.
func BuiltinNames() []string {
	names := make([]string, 0, len(builtins))
	for name := range builtins {
		names = append(names, name)
	}
	return names
}
