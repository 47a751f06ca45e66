package runner

import (
	"context"
	"reflect"
	"sync/atomic"
	"testing"
)

func TestRunner_CollectsLines(t *testing.T) {
	r := New()

	res, err := r.Run(context.Background(), Request{
		Executable: "sh",
		Args:       []string{"-c", "printf 'one\\ntwo\\n'"},
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if res.Kind != ResultLines {
		t.Fatalf("kind = %v, want lines", res.Kind)
	}
	want := []string{"one", "two"}
	if !reflect.DeepEqual(res.Lines, want) {
		t.Errorf("lines = %v, want %v", res.Lines, want)
	}
	if res.ExitCode != 0 {
		t.Errorf("exit code = %d, want 0", res.ExitCode)
	}
}

func TestRunner_NoOutput(t *testing.T) {
	r := New()

	res, err := r.Run(context.Background(), Request{Executable: "true"})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Kind != ResultNoOutput {
		t.Errorf("kind = %v, want no-output", res.Kind)
	}
}

func TestRunner_StreamsContentToStdin(t *testing.T) {
	r := New()

	res, err := r.Run(context.Background(), Request{
		Executable: "cat",
		Content:    "alpha\nbeta",
		UseContent: true,
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	want := []string{"alpha", "beta"}
	if !reflect.DeepEqual(res.Lines, want) {
		t.Errorf("lines = %v, want %v", res.Lines, want)
	}
}

func TestRunner_NonZeroExitKeepsOutput(t *testing.T) {
	r := New()

	res, err := r.Run(context.Background(), Request{
		Executable: "sh",
		Args:       []string{"-c", "echo finding; exit 1"},
	})
	if err != nil {
		t.Fatalf("non-zero exit with output should not be an error: %v", err)
	}

	if res.Kind != ResultLines {
		t.Errorf("kind = %v, want lines", res.Kind)
	}
	if res.ExitCode != 1 {
		t.Errorf("exit code = %d, want 1", res.ExitCode)
	}
	if len(res.Lines) != 1 || res.Lines[0] != "finding" {
		t.Errorf("lines = %v", res.Lines)
	}
}

func TestRunner_ToolNotFound(t *testing.T) {
	var notices atomic.Int32
	r := New(WithNotice(func(string) {
		notices.Add(1)
	}))

	res, err := r.Run(context.Background(), Request{
		Executable: "definitely-not-an-installed-tool-xyz",
	})
	if err != nil {
		t.Fatalf("not-found should not be an error: %v", err)
	}
	if res.Kind != ResultToolUnavailable {
		t.Fatalf("kind = %v, want tool-unavailable", res.Kind)
	}
	if !r.ToolMissing() {
		t.Error("expected missing flag to be set")
	}
	if got := notices.Load(); got != 1 {
		t.Errorf("expected exactly 1 notice, got %d", got)
	}

	// Further runs resolve silently while the flag is set, without even
	// attempting a spawn.
	res, err = r.Run(context.Background(), Request{Executable: "sh", Args: []string{"-c", "echo hi"}})
	if err != nil {
		t.Fatalf("suppressed run errored: %v", err)
	}
	if res.Kind != ResultToolUnavailable {
		t.Errorf("kind = %v, want tool-unavailable while flag set", res.Kind)
	}
	if got := notices.Load(); got != 1 {
		t.Errorf("expected no additional notice, got %d", got)
	}
}

func TestRunner_ResetToolMissing(t *testing.T) {
	var notices atomic.Int32
	r := New(WithNotice(func(string) {
		notices.Add(1)
	}))

	if _, err := r.Run(context.Background(), Request{Executable: "no-such-tool-abc"}); err != nil {
		t.Fatalf("run: %v", err)
	}
	if !r.ToolMissing() {
		t.Fatal("expected missing flag")
	}

	r.ResetToolMissing()
	if r.ToolMissing() {
		t.Error("expected flag cleared")
	}

	res, err := r.Run(context.Background(), Request{
		Executable: "sh",
		Args:       []string{"-c", "echo back"},
	})
	if err != nil {
		t.Fatalf("run after reset: %v", err)
	}
	if res.Kind != ResultLines {
		t.Errorf("kind = %v, want lines after reset", res.Kind)
	}

	// Flag can be set again, producing a fresh notice.
	if _, err := r.Run(context.Background(), Request{Executable: "no-such-tool-abc"}); err != nil {
		t.Fatalf("run: %v", err)
	}
	if got := notices.Load(); got != 2 {
		t.Errorf("expected a second notice after reset, got %d", got)
	}
}

func TestResultKind_String(t *testing.T) {
	tests := []struct {
		kind ResultKind
		want string
	}{
		{ResultLines, "lines"},
		{ResultNoOutput, "no-output"},
		{ResultToolUnavailable, "tool-unavailable"},
		{ResultKind(99), "unknown"},
	}

	for _, tt := range tests {
		if got := tt.kind.String(); got != tt.want {
			t.Errorf("%d.String() = %q, want %q", tt.kind, got, tt.want)
		}
	}
}
