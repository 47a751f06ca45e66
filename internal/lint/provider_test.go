package lint

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dshills/lintstorm/internal/config"
	"github.com/dshills/lintstorm/internal/diag"
	"github.com/dshills/lintstorm/internal/document"
	"github.com/dshills/lintstorm/internal/parser"
	"github.com/dshills/lintstorm/internal/runner"
)

// fakeRunner records invocations and returns a canned result.
type fakeRunner struct {
	mu       sync.Mutex
	calls    []runner.Request
	result   runner.Result
	err      error
	missing  bool
	resets   int
	block    chan struct{} // when non-nil, Run blocks until closed
	started  chan struct{} // receives one value per Run entry
	finished chan struct{} // receives one value per Run exit
}

func newFakeRunner(result runner.Result) *fakeRunner {
	return &fakeRunner{
		result:   result,
		started:  make(chan struct{}, 16),
		finished: make(chan struct{}, 16),
	}
}

func (f *fakeRunner) Run(_ context.Context, req runner.Request) (runner.Result, error) {
	f.mu.Lock()
	f.calls = append(f.calls, req)
	block := f.block
	res, err := f.result, f.err
	f.mu.Unlock()

	f.started <- struct{}{}
	if block != nil {
		<-block
	}
	defer func() { f.finished <- struct{}{} }()
	return res, err
}

func (f *fakeRunner) ToolMissing() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.missing
}

func (f *fakeRunner) ResetToolMissing() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resets++
	f.missing = false
}

func (f *fakeRunner) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeRunner) lastCall(t *testing.T) runner.Request {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.calls) == 0 {
		t.Fatal("no runner invocations recorded")
	}
	return f.calls[len(f.calls)-1]
}

func waitFinished(t *testing.T, f *fakeRunner) {
	t.Helper()
	select {
	case <-f.finished:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for analysis to finish")
	}
}

// lineParser turns each "line:col:message" output line into a diagnostic.
var lineParser = parser.Func(func(lines []string) []diag.Diagnostic {
	var out []diag.Diagnostic
	for _, l := range lines {
		parts := strings.SplitN(l, ":", 2)
		if len(parts) != 2 {
			continue
		}
		out = append(out, diag.Diagnostic{
			Severity: diag.SeverityError,
			Message:  parts[1],
		})
	}
	return out
})

func newTestProvider(t *testing.T, s config.Settings, f *fakeRunner) (*Provider, *document.Tracker) {
	t.Helper()
	tracker := document.NewTracker()
	p := NewProvider(config.NewService(s), tracker,
		WithRunner(f),
		WithParser(lineParser),
	)
	t.Cleanup(p.Dispose)
	return p, tracker
}

func TestProvider_OffModeSuppressesUnlessForced(t *testing.T) {
	f := newFakeRunner(runner.Result{Kind: runner.ResultNoOutput})
	s := config.DefaultSettings()
	s.Trigger = config.TriggerOff

	p, tracker := newTestProvider(t, s, f)
	doc := tracker.Open("/tmp/a.go", "go", "package a")
	p.Activate()

	tracker.Save(doc.ID)
	tracker.Change(doc.ID, "package b")
	time.Sleep(100 * time.Millisecond)

	if got := f.callCount(); got != 0 {
		t.Fatalf("off mode should suppress scheduled runs, got %d", got)
	}

	p.TriggerLint(doc, true, false)
	waitFinished(t, f)

	if got := f.callCount(); got != 1 {
		t.Errorf("forced trigger should run exactly once, got %d", got)
	}
}

func TestProvider_OnTypeCoalescesToLatestContent(t *testing.T) {
	f := newFakeRunner(runner.Result{Kind: runner.ResultNoOutput})
	s := config.DefaultSettings()
	s.Trigger = config.TriggerOnType
	s.DelayMS = 80

	p, tracker := newTestProvider(t, s, f)
	doc := tracker.Open("/tmp/b.go", "go", "v0")
	p.Activate()

	for i := 1; i <= 5; i++ {
		tracker.Change(doc.ID, "v"+string(rune('0'+i)))
		time.Sleep(5 * time.Millisecond)
	}

	waitFinished(t, f)
	time.Sleep(150 * time.Millisecond)

	if got := f.callCount(); got != 1 {
		t.Fatalf("expected exactly 1 run for a rapid burst, got %d", got)
	}

	req := f.lastCall(t)
	if !req.UseContent {
		t.Error("onType analysis should stream in-memory content")
	}
	if req.Content != "v5" {
		t.Errorf("run used content %q, want content of the 5th change", req.Content)
	}
}

func TestProvider_SaveUsesSavedPath(t *testing.T) {
	f := newFakeRunner(runner.Result{
		Kind:  runner.ResultLines,
		Lines: []string{"3:unused variable"},
	})
	s := config.DefaultSettings()
	s.Executable = "mylint"
	s.Args = []string{"--quiet"}

	p, tracker := newTestProvider(t, s, f)
	doc := tracker.Open("/tmp/c.go", "go", "package c")
	p.Activate()

	tracker.Save(doc.ID)
	waitFinished(t, f)

	req := f.lastCall(t)
	if req.UseContent {
		t.Error("onSave analysis should not stream content")
	}
	if req.Executable != "mylint" {
		t.Errorf("executable = %q", req.Executable)
	}
	wantArgs := []string{"--quiet", "/tmp/c.go"}
	if len(req.Args) != 2 || req.Args[0] != wantArgs[0] || req.Args[1] != wantArgs[1] {
		t.Errorf("args = %v, want %v", req.Args, wantArgs)
	}

	// Published diagnostics are keyed by the document identity.
	deadline := time.Now().Add(time.Second)
	for !p.Store().Has(doc.ID) && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	got := p.Store().Get(doc.ID)
	if len(got) != 1 || got[0].Message != "unused variable" {
		t.Errorf("stored diagnostics = %v", got)
	}
	if got[0].File != "/tmp/c.go" {
		t.Errorf("diagnostic file = %q, want re-keyed to document path", got[0].File)
	}
}

func TestProvider_CleanRunClearsDiagnostics(t *testing.T) {
	f := newFakeRunner(runner.Result{
		Kind:  runner.ResultLines,
		Lines: []string{"1:bad"},
	})
	s := config.DefaultSettings()

	p, tracker := newTestProvider(t, s, f)
	doc := tracker.Open("/tmp/d.go", "go", "x")
	p.Activate()

	tracker.Save(doc.ID)
	waitFinished(t, f)

	deadline := time.Now().Add(time.Second)
	for !p.Store().Has(doc.ID) && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if !p.Store().Has(doc.ID) {
		t.Fatal("expected diagnostics after failing run")
	}

	f.mu.Lock()
	f.result = runner.Result{Kind: runner.ResultNoOutput}
	f.mu.Unlock()

	tracker.Save(doc.ID)
	waitFinished(t, f)

	deadline = time.Now().Add(time.Second)
	for p.Store().Has(doc.ID) && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if p.Store().Has(doc.ID) {
		t.Error("clean run should clear previous diagnostics")
	}
}

func TestProvider_FailedRunLeavesDiagnosticsStale(t *testing.T) {
	f := newFakeRunner(runner.Result{
		Kind:  runner.ResultLines,
		Lines: []string{"1:finding"},
	})
	s := config.DefaultSettings()

	p, tracker := newTestProvider(t, s, f)
	doc := tracker.Open("/tmp/j.go", "go", "x")
	p.Activate()

	tracker.Save(doc.ID)
	waitFinished(t, f)

	deadline := time.Now().Add(time.Second)
	for !p.Store().Has(doc.ID) && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if !p.Store().Has(doc.ID) {
		t.Fatal("expected initial diagnostics")
	}

	// Tool crashes: no output, non-zero exit.
	f.mu.Lock()
	f.result = runner.Result{Kind: runner.ResultNoOutput, ExitCode: 2}
	f.mu.Unlock()

	tracker.Save(doc.ID)
	waitFinished(t, f)

	time.Sleep(50 * time.Millisecond)
	if !p.Store().Has(doc.ID) {
		t.Error("failed run should leave prior diagnostics in place")
	}
	if got := p.Store().Get(doc.ID); len(got) != 1 || got[0].Message != "finding" {
		t.Errorf("stale diagnostics = %v", got)
	}
}

func TestProvider_CloseDiscardsLateCompletion(t *testing.T) {
	f := newFakeRunner(runner.Result{
		Kind:  runner.ResultLines,
		Lines: []string{"1:stale finding"},
	})
	f.block = make(chan struct{})
	s := config.DefaultSettings()

	p, tracker := newTestProvider(t, s, f)
	doc := tracker.Open("/tmp/e.go", "go", "x")
	p.Activate()

	p.TriggerLint(doc, true, false)
	select {
	case <-f.started:
	case <-time.After(2 * time.Second):
		t.Fatal("analysis never started")
	}

	// Close while the run is in flight.
	tracker.Close(doc.ID)
	close(f.block)
	waitFinished(t, f)

	time.Sleep(50 * time.Millisecond)
	if p.Store().Has(doc.ID) {
		t.Error("late completion recreated diagnostics for a closed document")
	}
}

func TestProvider_ToolMissingSuppressesScheduling(t *testing.T) {
	f := newFakeRunner(runner.Result{Kind: runner.ResultNoOutput})
	f.missing = true
	s := config.DefaultSettings()

	p, tracker := newTestProvider(t, s, f)
	doc := tracker.Open("/tmp/f.go", "go", "x")
	p.Activate()

	tracker.Save(doc.ID)
	p.TriggerLint(doc, true, false)
	time.Sleep(100 * time.Millisecond)

	if got := f.callCount(); got != 0 {
		t.Errorf("expected no runs while tool is missing, got %d", got)
	}
}

func TestProvider_LanguageFilter(t *testing.T) {
	f := newFakeRunner(runner.Result{Kind: runner.ResultNoOutput})
	s := config.DefaultSettings()
	s.Languages = []string{"go"}

	p, tracker := newTestProvider(t, s, f)
	pyDoc := tracker.Open("/tmp/g.py", "python", "x = 1")
	p.Activate()

	tracker.Save(pyDoc.ID)
	time.Sleep(100 * time.Millisecond)

	if got := f.callCount(); got != 0 {
		t.Errorf("unhandled language should not trigger runs, got %d", got)
	}
}

func TestProvider_ExecutableChangeResetsMissingFlag(t *testing.T) {
	f := newFakeRunner(runner.Result{Kind: runner.ResultNoOutput})
	s := config.DefaultSettings()
	s.Executable = "toolA"

	tracker := document.NewTracker()
	svc := config.NewService(s)
	p := NewProvider(svc, tracker, WithRunner(f), WithParser(lineParser))
	t.Cleanup(p.Dispose)
	p.Activate()

	// Initial activation sees "" -> "toolA".
	f.mu.Lock()
	after := f.resets
	f.mu.Unlock()

	// Unrelated change: no reset.
	next := s
	next.DelayMS = 500
	svc.Update(next)

	f.mu.Lock()
	if f.resets != after {
		t.Error("reset called without an executable change")
	}
	f.mu.Unlock()

	// Executable change clears the flag.
	next.Executable = "toolB"
	svc.Update(next)

	f.mu.Lock()
	if f.resets != after+1 {
		t.Errorf("expected one reset after executable change, got %d", f.resets-after)
	}
	f.mu.Unlock()
}

func TestProvider_ProjectSweepOnActivate(t *testing.T) {
	f := newFakeRunner(runner.Result{Kind: runner.ResultNoOutput})
	s := config.DefaultSettings()
	s.LintProject = true

	p, tracker := newTestProvider(t, s, f)
	tracker.Open("/tmp/h1.go", "go", "a")
	tracker.Open("/tmp/h2.go", "go", "b")
	p.Activate()

	waitFinished(t, f)
	waitFinished(t, f)

	if got := f.callCount(); got != 2 {
		t.Errorf("expected a run per open document, got %d", got)
	}
}

func TestProvider_DisposeStopsScheduling(t *testing.T) {
	f := newFakeRunner(runner.Result{Kind: runner.ResultNoOutput})
	s := config.DefaultSettings()

	p, tracker := newTestProvider(t, s, f)
	doc := tracker.Open("/tmp/i.go", "go", "x")
	p.Activate()
	p.Dispose()

	tracker.Save(doc.ID)
	p.TriggerLint(doc, true, false)
	time.Sleep(100 * time.Millisecond)

	if got := f.callCount(); got != 0 {
		t.Errorf("disposed provider scheduled %d runs", got)
	}
	if p.Store().Count() != 0 {
		t.Error("dispose should clear the store")
	}
}
