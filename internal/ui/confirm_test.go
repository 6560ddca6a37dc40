package ui

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/philippherzig/datocms-mcp/pkg/types"
)

func newScripted(config types.Confirmation, answers string) (*Confirmer, *bytes.Buffer) {
	var out bytes.Buffer
	return NewConfirmerWithIO(config, strings.NewReader(answers), &out), &out
}

// blocking returns a confirmer whose input never delivers a line
func blocking(t *testing.T, config types.Confirmation) *Confirmer {
	r, w := io.Pipe()
	t.Cleanup(func() { _ = w.Close() })
	return NewConfirmerWithIO(config, r, io.Discard)
}

func TestConfirmBatchMode(t *testing.T) {
	tests := []struct {
		name        string
		batchMode   bool
		autoApprove bool
		defaultDeny bool
		expected    bool
	}{
		{"batch mode approve", true, false, false, true},
		{"batch mode deny", true, false, true, false},
		{"auto approve", false, true, false, true},
		{"auto approve with deny", false, true, true, true},
		{"auto approve wins over batch deny", true, true, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, out := newScripted(types.Confirmation{
				BatchMode:   tt.batchMode,
				AutoApprove: tt.autoApprove,
				DefaultDeny: tt.defaultDeny,
			}, "")

			result := c.Confirm(context.Background(), "Delete record?")
			if result.Approved != tt.expected {
				t.Errorf("expected approved=%v, got %v", tt.expected, result.Approved)
			}
			if result.TimedOut || result.Error != nil {
				t.Errorf("unexpected result %+v", result)
			}
			if out.Len() != 0 {
				t.Errorf("nothing should be printed in non-interactive mode, got %q", out.String())
			}
		})
	}
}

func TestConfirmAnswers(t *testing.T) {
	tests := []struct {
		answer      string
		defaultDeny bool
		expected    bool
	}{
		{"y\n", false, true},
		{"YES\n", true, true},
		{"n\n", false, false},
		{"no\n", false, false},
		{"\n", false, true},
		{"\n", true, false},
		{"maybe\n", false, true},
		{"maybe\n", true, false},
		{"y", true, true},
	}

	for _, tt := range tests {
		t.Run(strings.TrimSpace(tt.answer), func(t *testing.T) {
			c, out := newScripted(types.Confirmation{DefaultDeny: tt.defaultDeny}, tt.answer)
			result := c.Confirm(context.Background(), "Publish record?")
			if result.Error != nil {
				t.Fatalf("unexpected error: %v", result.Error)
			}
			if result.Approved != tt.expected {
				t.Errorf("answer %q: expected %v, got %v", tt.answer, tt.expected, result.Approved)
			}
			if !strings.HasPrefix(out.String(), "Publish record?") {
				t.Errorf("prompt not printed: %q", out.String())
			}
		})
	}
}

func TestConfirmClosedInput(t *testing.T) {
	c, _ := newScripted(types.Confirmation{}, "")
	result := c.Confirm(context.Background(), "Continue?")
	if result.Error == nil {
		t.Error("expected an error when input is closed")
	}
	if result.Approved {
		t.Error("closed input must not approve")
	}
}

func TestConfirmTimeout(t *testing.T) {
	tests := []struct {
		name        string
		defaultDeny bool
		expected    bool
	}{
		{"default approve", false, true},
		{"default deny", true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := blocking(t, types.Confirmation{Timeout: 50 * time.Millisecond, DefaultDeny: tt.defaultDeny})

			start := time.Now()
			result := c.Confirm(context.Background(), "Continue?")
			if time.Since(start) > 2*time.Second {
				t.Errorf("confirmation took too long")
			}
			if !result.TimedOut {
				t.Error("expected timeout")
			}
			if result.Approved != tt.expected {
				t.Errorf("expected approved=%v on timeout", tt.expected)
			}
		})
	}
}

func TestContextCancellation(t *testing.T) {
	c := blocking(t, types.Confirmation{})
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	result := c.Confirm(ctx, "Continue?")
	if !result.TimedOut {
		t.Error("cancellation should end the prompt")
	}
}

func TestConfirmDestructive(t *testing.T) {
	tests := []struct {
		name     string
		config   types.Confirmation
		answer   string
		expected bool
	}{
		{"auto approve", types.Confirmation{AutoApprove: true}, "", true},
		{"batch mode denies", types.Confirmation{BatchMode: true}, "", false},
		{"empty answer denies", types.Confirmation{}, "\n", false},
		{"explicit yes", types.Confirmation{}, "yes\n", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, out := newScripted(tt.config, tt.answer)
			result := c.ConfirmDestructive(context.Background(), "Delete upload", "12345")
			if result.Approved != tt.expected {
				t.Errorf("expected approved=%v, got %v", tt.expected, result.Approved)
			}
			if tt.answer != "" && !strings.Contains(out.String(), "[y/N]") {
				t.Errorf("destructive prompt should default to no: %q", out.String())
			}
		})
	}
}

func TestBuildOperationMessage(t *testing.T) {
	msg := buildOperationMessage("Create profile", "production", map[string]any{
		"environment": "staging",
		"api_token":   "3f2a9c0d1e4b5a6978c8",
	})

	want := "Confirm: Create profile 'production' with:\n  api_token: [MASKED]\n  environment: staging?"
	if msg != want {
		t.Errorf("got %q\nwant %q", msg, want)
	}
	if got := buildOperationMessage("Delete", "x", nil); got != "Confirm: Delete 'x'?" {
		t.Errorf("got %q", got)
	}
}

func TestIsSensitiveKey(t *testing.T) {
	for _, key := range []string{"api_token", "API_TOKEN", "master_password", "Authorization"} {
		if !isSensitiveKey(key) {
			t.Errorf("%q should be sensitive", key)
		}
	}
	for _, key := range []string{"environment", "base_url", "name"} {
		if isSensitiveKey(key) {
			t.Errorf("%q should not be sensitive", key)
		}
	}
}

func TestConfirmBatchOperation(t *testing.T) {
	c, out := newScripted(types.Confirmation{}, "y\n")
	items := []string{"a", "b", "c", "d", "e", "f", "g"}

	result := c.ConfirmBatchOperation(context.Background(), "delete", items)
	if !result.Approved {
		t.Error("expected approval")
	}
	if !strings.Contains(out.String(), "... and 2 more") {
		t.Errorf("expected truncated list, got %q", out.String())
	}

	if r := c.ConfirmBatchOperation(context.Background(), "delete", nil); r.Error == nil {
		t.Error("expected error for empty batch")
	}

	yes, yout := newScripted(types.Confirmation{AutoApprove: true, DefaultDeny: true}, "")
	if r := yes.ConfirmBatchOperation(context.Background(), "delete record", items); !r.Approved || r.Error != nil {
		t.Errorf("auto-approve must approve a default-deny batch, got %+v", r)
	}
	if yout.Len() != 0 {
		t.Errorf("auto-approve should not prompt, got %q", yout.String())
	}
}

func TestShowProgress(t *testing.T) {
	c, out := newScripted(types.Confirmation{}, "")
	c.ShowProgress(1, 2, "items")
	c.ShowProgress(2, 2, "items")
	if !strings.Contains(out.String(), "[100%] items (2/2)\n") {
		t.Errorf("unexpected progress output %q", out.String())
	}

	quiet, qout := newScripted(types.Confirmation{BatchMode: true}, "")
	quiet.ShowProgress(1, 1, "items")
	if qout.Len() != 0 {
		t.Error("batch mode should not draw progress")
	}
}
