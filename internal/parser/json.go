package parser

import (
	"strings"

	"github.com/tidwall/gjson"

	"github.com/dshills/lintstorm/internal/diag"
)

// JSONConfig names the paths used to pull diagnostic fields out of a JSON
// document. Paths use gjson syntax relative to each finding object.
type JSONConfig struct {
	// Items is the path to the findings array. Empty means the root value
	// is itself the array.
	Items string `yaml:"items"`

	File      string `yaml:"file"`
	Line      string `yaml:"line"`
	Column    string `yaml:"column"`
	EndLine   string `yaml:"endLine"`
	EndColumn string `yaml:"endColumn"`
	Severity  string `yaml:"severity"`
	Code      string `yaml:"code"`
	Message   string `yaml:"message"`
}

// applyDefaults fills empty field paths with the common names JSON-emitting
// linters use.
func (c *JSONConfig) applyDefaults() {
	if c.File == "" {
		c.File = "file"
	}
	if c.Line == "" {
		c.Line = "line"
	}
	if c.Column == "" {
		c.Column = "column"
	}
	if c.Severity == "" {
		c.Severity = "severity"
	}
	if c.Code == "" {
		c.Code = "code"
	}
	if c.Message == "" {
		c.Message = "message"
	}
}

// JSONParser decodes tool output that is a JSON document rather than
// line-oriented text. The decoded lines are rejoined before parsing since
// JSON emitters are free to pretty-print across lines.
type JSONParser struct {
	source string
	cfg    JSONConfig
}

// NewJSONParser creates a JSONParser. Zero-value config fields fall back to
// conventional key names.
func NewJSONParser(source string, cfg JSONConfig) *JSONParser {
	cfg.applyDefaults()
	return &JSONParser{source: source, cfg: cfg}
}

// Parse implements Parser. Invalid JSON yields no diagnostics; a failed run
// carries no information.
func (p *JSONParser) Parse(lines []string) []diag.Diagnostic {
	doc := strings.TrimSpace(strings.Join(lines, "\n"))
	if doc == "" || !gjson.Valid(doc) {
		return nil
	}

	root := gjson.Parse(doc)
	items := root
	if p.cfg.Items != "" {
		items = root.Get(p.cfg.Items)
	}
	if !items.IsArray() {
		return nil
	}

	var out []diag.Diagnostic
	items.ForEach(func(_, item gjson.Result) bool {
		d := diag.Diagnostic{
			File:     item.Get(p.cfg.File).String(),
			Line:     int(item.Get(p.cfg.Line).Int()),
			Column:   int(item.Get(p.cfg.Column).Int()),
			Code:     item.Get(p.cfg.Code).String(),
			Message:  item.Get(p.cfg.Message).String(),
			Source:   p.source,
			Severity: severityFromResult(item.Get(p.cfg.Severity)),
		}
		if p.cfg.EndLine != "" {
			d.EndLine = int(item.Get(p.cfg.EndLine).Int())
		}
		if p.cfg.EndColumn != "" {
			d.EndColumn = int(item.Get(p.cfg.EndColumn).Int())
		}
		if d.Message != "" {
			out = append(out, d)
		}
		return true
	})
	return out
}

// severityFromResult accepts either severity words or the numeric scheme
// (1=error, 2=warning) some tools emit.
func severityFromResult(r gjson.Result) diag.Severity {
	if r.Type == gjson.Number {
		switch r.Int() {
		case 1:
			return diag.SeverityError
		case 2:
			return diag.SeverityWarning
		case 3:
			return diag.SeverityInfo
		case 4:
			return diag.SeverityHint
		default:
			return diag.SeverityError
		}
	}
	return diag.ParseSeverity(r.String())
}
