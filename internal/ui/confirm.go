// Package ui prompts the operator on the terminal. Output goes to stderr
// because stdout carries the MCP protocol when serving over stdio.
package ui

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"maps"
	"os"
	"slices"
	"strings"
	"sync"

	"github.com/philippherzig/datocms-mcp/pkg/types"
)

// ConfirmationResult represents the result of a confirmation prompt
type ConfirmationResult struct {
	Approved bool
	TimedOut bool
	Error    error
}

// Confirmer handles user confirmation prompts
type Confirmer struct {
	mu     sync.Mutex
	config types.Confirmation
	in     *bufio.Reader
	out    io.Writer
}

// NewConfirmer creates a confirmer reading from stdin and writing to stderr
func NewConfirmer(config types.Confirmation) *Confirmer {
	return NewConfirmerWithIO(config, os.Stdin, os.Stderr)
}

// NewConfirmerWithIO creates a confirmer on the given streams
func NewConfirmerWithIO(config types.Confirmation, in io.Reader, out io.Writer) *Confirmer {
	return &Confirmer{
		config: config,
		in:     bufio.NewReader(in),
		out:    out,
	}
}

// Confirm asks a yes/no question. Auto-approve always approves; batch mode
// answers with the default.
func (c *Confirmer) Confirm(ctx context.Context, message string) *ConfirmationResult {
	cfg := c.GetConfig()
	if cfg.AutoApprove {
		return &ConfirmationResult{Approved: true}
	}
	if cfg.BatchMode {
		return &ConfirmationResult{Approved: !cfg.DefaultDeny}
	}
	return c.promptUser(ctx, message, cfg)
}

// ConfirmOperation asks for confirmation of an operation on a resource
func (c *Confirmer) ConfirmOperation(ctx context.Context, operation, resource string, details map[string]any) *ConfirmationResult {
	return c.Confirm(ctx, buildOperationMessage(operation, resource, details))
}

// ConfirmDestructive asks for confirmation of an operation that cannot be
// undone. No answer, an unreadable answer and a timeout all deny.
func (c *Confirmer) ConfirmDestructive(ctx context.Context, operation, resource string) *ConfirmationResult {
	cfg := c.GetConfig()
	cfg.DefaultDeny = true
	if cfg.AutoApprove {
		return &ConfirmationResult{Approved: true}
	}
	if cfg.BatchMode {
		return &ConfirmationResult{Approved: false}
	}
	message := fmt.Sprintf("WARNING: %s '%s' cannot be undone. Continue?", operation, resource)
	return c.promptUser(ctx, message, cfg)
}

// ConfirmBatchOperation asks once for an operation over many items
func (c *Confirmer) ConfirmBatchOperation(ctx context.Context, operation string, items []string) *ConfirmationResult {
	if len(items) == 0 {
		return &ConfirmationResult{Error: fmt.Errorf("no items to process")}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Confirm %s for %d items:", operation, len(items))
	const showCount = 5
	for i, item := range items {
		if i == showCount {
			fmt.Fprintf(&b, "\n  ... and %d more", len(items)-showCount)
			break
		}
		fmt.Fprintf(&b, "\n  - %s", item)
	}
	b.WriteString("\nProceed?")
	return c.Confirm(ctx, b.String())
}

func (c *Confirmer) promptUser(ctx context.Context, message string, cfg types.Confirmation) *ConfirmationResult {
	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	hint := "[Y/n]"
	if cfg.DefaultDeny {
		hint = "[y/N]"
	}
	timeout := ""
	if cfg.Timeout > 0 {
		timeout = fmt.Sprintf(" (%v)", cfg.Timeout)
	}
	fmt.Fprintf(c.out, "%s %s%s ", message, hint, timeout)

	type answer struct {
		line string
		err  error
	}
	answers := make(chan answer, 1)
	go func() {
		line, err := c.in.ReadString('\n')
		if err != nil && !(err == io.EOF && line != "") {
			answers <- answer{err: fmt.Errorf("failed to read user input: %w", err)}
			return
		}
		answers <- answer{line: line}
	}()

	select {
	case <-ctx.Done():
		fmt.Fprintln(c.out, "\nTimeout - using default response")
		return &ConfirmationResult{Approved: !cfg.DefaultDeny, TimedOut: true}
	case a := <-answers:
		if a.err != nil {
			return &ConfirmationResult{Error: a.err}
		}
		return &ConfirmationResult{Approved: c.parseResponse(a.line, cfg.DefaultDeny)}
	}
}

// parseResponse maps an answer to approval; empty or unknown answers use the default
func (c *Confirmer) parseResponse(response string, defaultDeny bool) bool {
	switch strings.ToLower(strings.TrimSpace(response)) {
	case "y", "yes":
		return true
	case "n", "no":
		return false
	case "":
		return !defaultDeny
	default:
		fmt.Fprintf(c.out, "Invalid response '%s', using default\n", strings.TrimSpace(response))
		return !defaultDeny
	}
}

func buildOperationMessage(operation, resource string, details map[string]any) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Confirm: %s '%s'", operation, resource)
	if len(details) > 0 {
		b.WriteString(" with:")
		for _, key := range slices.Sorted(maps.Keys(details)) {
			if isSensitiveKey(key) {
				fmt.Fprintf(&b, "\n  %s: [MASKED]", key)
			} else {
				fmt.Fprintf(&b, "\n  %s: %v", key, details[key])
			}
		}
	}
	b.WriteString("?")
	return b.String()
}

func isSensitiveKey(key string) bool {
	keyLower := strings.ToLower(key)
	for _, sensitive := range []string{"token", "password", "secret", "auth", "credential"} {
		if strings.Contains(keyLower, sensitive) {
			return true
		}
	}
	return false
}

// DisplayWarning prints a warning
func (c *Confirmer) DisplayWarning(message string) {
	fmt.Fprintf(c.out, "WARNING: %s\n", message)
}

// DisplayInfo prints an informational message
func (c *Confirmer) DisplayInfo(message string) {
	fmt.Fprintf(c.out, "INFO: %s\n", message)
}

// DisplayError prints an error message
func (c *Confirmer) DisplayError(message string) {
	fmt.Fprintf(c.out, "ERROR: %s\n", message)
}

// DisplaySuccess prints a success message
func (c *Confirmer) DisplaySuccess(message string) {
	fmt.Fprintf(c.out, "SUCCESS: %s\n", message)
}

// ShowProgress draws a progress line; silent in batch mode
func (c *Confirmer) ShowProgress(current, total int, message string) {
	if c.GetConfig().BatchMode || total <= 0 {
		return
	}
	percent := float64(current) / float64(total) * 100
	fmt.Fprintf(c.out, "\r[%3.0f%%] %s (%d/%d)", percent, message, current, total)
	if current == total {
		fmt.Fprintln(c.out)
	}
}

// GetConfig returns the current confirmer configuration
func (c *Confirmer) GetConfig() types.Confirmation {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.config
}
