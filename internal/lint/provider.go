// Package lint orchestrates the analysis pipeline: it reacts to document
// lifecycle and configuration changes, decides when each document should be
// re-analyzed, invokes the external tool through a per-document throttled
// delayer, and publishes parsed diagnostics keyed by document identity.
//
// Scheduling discipline: each tracked document owns one delayer, so at most
// one analysis per document is in flight at any time and a burst of triggers
// collapses to a single run of the most recent work. Per-document state is
// created lazily on first trigger and destroyed only by the document's close
// event.
package lint

import (
	"context"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/dshills/lintstorm/internal/config"
	"github.com/dshills/lintstorm/internal/delay"
	"github.com/dshills/lintstorm/internal/diag"
	"github.com/dshills/lintstorm/internal/document"
	"github.com/dshills/lintstorm/internal/parser"
	"github.com/dshills/lintstorm/internal/runner"
)

// ToolRunner abstracts the external tool invocation. *runner.Runner is the
// production implementation.
type ToolRunner interface {
	Run(ctx context.Context, req runner.Request) (runner.Result, error)
	ToolMissing() bool
	ResetToolMissing()
}

// Provider wires documents, configuration, the tool runner, and the
// diagnostic store together.
type Provider struct {
	cfg  *config.Service
	docs document.Source

	run    ToolRunner
	store  *diag.Store
	logger *slog.Logger

	mu             sync.Mutex
	settings       config.Settings
	delayers       map[document.ID]*delay.Delayer
	parser         parser.Parser
	parserInjected bool
	active         bool
	disposed       bool

	unsubCfg  func()
	unsubDocs func()
}

// Option configures a Provider.
type Option func(*Provider)

// WithRunner sets the tool runner. Defaults to runner.New().
func WithRunner(r ToolRunner) Option {
	return func(p *Provider) {
		p.run = r
	}
}

// WithStore sets the diagnostic store. Defaults to a fresh store.
func WithStore(s *diag.Store) Option {
	return func(p *Provider) {
		p.store = s
	}
}

// WithParser fixes the output parser, overriding parser selection from
// configuration.
func WithParser(ps parser.Parser) Option {
	return func(p *Provider) {
		p.parser = ps
		p.parserInjected = true
	}
}

// WithLogger sets the provider's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Provider) {
		p.logger = logger
	}
}

// NewProvider creates a Provider. Call Activate to start it.
func NewProvider(cfg *config.Service, docs document.Source, opts ...Option) *Provider {
	p := &Provider{
		cfg:      cfg,
		docs:     docs,
		logger:   slog.Default(),
		delayers: make(map[document.ID]*delay.Delayer),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.run == nil {
		p.run = runner.New(runner.WithLogger(p.logger))
	}
	if p.store == nil {
		p.store = diag.NewStore()
	}
	return p
}

// Store returns the diagnostic store diagnostics are published into.
func (p *Provider) Store() *diag.Store {
	return p.store
}

// Activate loads the initial configuration and subscribes to configuration
// and document lifecycle events. If project linting is enabled, every
// currently known document is triggered.
func (p *Provider) Activate() {
	p.mu.Lock()
	if p.active || p.disposed {
		p.mu.Unlock()
		return
	}
	p.active = true
	p.mu.Unlock()

	p.applySettings(p.cfg.Settings())

	p.unsubCfg = p.cfg.Subscribe(p.applySettings)
	p.unsubDocs = p.docs.Subscribe(p.handleEvent)
}

// Dispose tears the provider down. In-flight subprocesses run to completion;
// their results are discarded because publication is guarded by liveness.
func (p *Provider) Dispose() {
	p.mu.Lock()
	if p.disposed {
		p.mu.Unlock()
		return
	}
	p.disposed = true
	p.delayers = make(map[document.ID]*delay.Delayer)
	unsubCfg, unsubDocs := p.unsubCfg, p.unsubDocs
	p.unsubCfg, p.unsubDocs = nil, nil
	p.mu.Unlock()

	if unsubCfg != nil {
		unsubCfg()
	}
	if unsubDocs != nil {
		unsubDocs()
	}
	p.store.Clear()
}

// applySettings installs new settings: the delayer table is discarded and
// rebuilt lazily (in-flight runs are not killed; their completions resolve
// harmlessly), the parser is rebuilt, and the executable-missing flag is
// cleared if the tool path changed.
func (p *Provider) applySettings(s config.Settings) {
	p.mu.Lock()
	if p.disposed {
		p.mu.Unlock()
		return
	}
	old := p.settings
	p.settings = s
	p.delayers = make(map[document.ID]*delay.Delayer)

	if !p.parserInjected {
		ps, err := parser.New(s.Parser, parser.Options{
			Source:      diagnosticSource(s),
			Matchers:    s.Matchers,
			MatcherFile: s.MatcherFile,
			ScriptFile:  s.ParserScript,
		})
		if err != nil {
			p.logger.Warn("parser configuration invalid, keeping previous parser", "error", err)
		} else {
			p.parser = ps
		}
	}
	sweep := s.LintProject
	p.mu.Unlock()

	if s.Executable != old.Executable {
		p.run.ResetToolMissing()
	}

	if sweep {
		for _, doc := range p.docs.All() {
			p.TriggerLint(doc, false, false)
		}
	}
}

// handleEvent reacts to document lifecycle events. Save always triggers;
// change triggers only in onType mode; close destroys the document's
// scheduling state and its published diagnostics.
func (p *Provider) handleEvent(ev document.Event) {
	switch ev.Kind {
	case document.Opened:
		p.TriggerLint(ev.Doc, false, false)

	case document.Saved:
		p.TriggerLint(ev.Doc, false, false)

	case document.Changed:
		p.mu.Lock()
		onType := p.settings.Trigger == config.TriggerOnType
		p.mu.Unlock()
		if onType {
			p.TriggerLint(ev.Doc, false, true)
		}

	case document.Closed:
		p.mu.Lock()
		delete(p.delayers, ev.Doc.ID)
		p.mu.Unlock()
		p.store.Delete(ev.Doc.ID)
	}
}

// TriggerLint schedules an analysis of doc through its delayer. It is a
// no-op when the document's language is not handled, the tool is known to be
// missing, or the trigger mode is off and the call is not forced.
// useContent requests analysis of the in-memory text rather than the saved
// file.
func (p *Provider) TriggerLint(doc document.Snapshot, forced, useContent bool) {
	p.mu.Lock()
	if p.disposed {
		p.mu.Unlock()
		return
	}
	s := p.settings

	if !s.HandlesLanguage(doc.Language) {
		p.mu.Unlock()
		return
	}
	if p.run.ToolMissing() {
		p.mu.Unlock()
		return
	}
	if s.Trigger == config.TriggerOff && !forced {
		p.mu.Unlock()
		return
	}

	var d time.Duration
	if s.Trigger == config.TriggerOnType {
		d = s.Delay()
	}

	dl, ok := p.delayers[doc.ID]
	if !ok {
		dl = delay.New(d)
		p.delayers[doc.ID] = dl
	}
	p.mu.Unlock()

	dl.Trigger(func() {
		p.analyze(doc, useContent)
	})
}

// analyze runs the tool for one document and publishes the outcome. All
// failures are absorbed here; nothing propagates to the scheduling flow.
func (p *Provider) analyze(doc document.Snapshot, useContent bool) {
	p.mu.Lock()
	if p.disposed {
		p.mu.Unlock()
		return
	}
	s := p.settings
	ps := p.parser
	p.mu.Unlock()

	dir := s.WorkingDir
	if dir == "" {
		dir = filepath.Dir(doc.Path)
	}

	req := runner.Request{
		Executable: s.Executable,
		Dir:        dir,
		Path:       doc.Path,
	}
	// onSave analysis always reads the saved file, even if the trigger
	// asked for current content.
	if useContent && s.Trigger != config.TriggerOnSave {
		req.UseContent = true
		req.Content = doc.Text
		req.Args = append(append([]string{}, s.Args...), s.ContentArgs...)
	} else {
		req.Args = append(append([]string{}, s.Args...), doc.Path)
	}

	res, err := p.run.Run(context.Background(), req)
	if err != nil {
		p.logger.Warn("analysis run failed", "path", doc.Path, "error", err)
		return
	}

	switch res.Kind {
	case runner.ResultToolUnavailable:
		p.logger.Debug("analysis tool unavailable", "path", doc.Path)

	case runner.ResultNoOutput:
		// Silence with a failing exit means the tool itself broke; a failed
		// run carries no information, so prior findings stay stale.
		if res.ExitCode != 0 {
			p.logger.Warn("analysis tool failed without output",
				"path", doc.Path, "exit", res.ExitCode)
			return
		}
		// A clean run: clear any previous findings.
		if p.stillLive(doc.ID) {
			p.store.Delete(doc.ID)
		}

	case runner.ResultLines:
		if ps == nil {
			p.logger.Warn("no output parser configured, dropping output", "path", doc.Path)
			return
		}
		diags := ps.Parse(res.Lines)
		for i := range diags {
			if diags[i].File == "" {
				diags[i].File = doc.Path
			}
		}
		if p.stillLive(doc.ID) {
			p.store.Set(doc.ID, diags)
		}
	}
}

// stillLive reports whether a completion may publish: the provider is not
// disposed and the document is still tracked. A stray completion for a
// closed document must not recreate its entry.
func (p *Provider) stillLive(id document.ID) bool {
	p.mu.Lock()
	disposed := p.disposed
	p.mu.Unlock()
	if disposed {
		return false
	}
	_, ok := p.docs.Lookup(id)
	return ok
}

// diagnosticSource labels published diagnostics with the tool's name.
func diagnosticSource(s config.Settings) string {
	if s.Source != "" {
		return s.Source
	}
	if s.Executable != "" {
		return filepath.Base(s.Executable)
	}
	return ""
}
