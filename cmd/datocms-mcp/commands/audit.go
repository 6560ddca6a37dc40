package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/philippherzig/datocms-mcp/internal/audit"
)

var (
	auditTypes         []string
	auditSince         time.Duration
	auditCorrelationID string
	auditLimit         int
	auditJSON          bool

	auditOutput io.Writer = os.Stdout
)

// auditCmd represents the audit command
var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Search the audit log",
	Long: `Show the most recent audit events, optionally filtered.

Examples:
  # Last 50 events
  datocms-mcp audit

  # Failed tool calls of the last hour
  datocms-mcp audit --type ERROR --since 1h

  # Everything logged for one tool call
  datocms-mcp audit --correlation-id 0b6f1c2e-... --json`,
	RunE: runAudit,
}

func init() {
	rootCmd.AddCommand(auditCmd)

	auditCmd.Flags().StringSliceVar(&auditTypes, "type", nil, "event types to show, e.g. ACCESS_DENIED,ERROR")
	auditCmd.Flags().DurationVar(&auditSince, "since", 0, "only events newer than this")
	auditCmd.Flags().StringVar(&auditCorrelationID, "correlation-id", "", "only events of one tool call")
	auditCmd.Flags().IntVar(&auditLimit, "limit", 50, "show at most this many of the newest events (0 for all)")
	auditCmd.Flags().BoolVar(&auditJSON, "json", false, "print events as JSON lines")
}

func runAudit(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(false)
	if err != nil {
		return err
	}
	path := cfg.Logging.File
	if path == "" {
		path = filepath.Join(configDir(), "audit.log")
	}

	query := audit.Query{CorrelationID: auditCorrelationID}
	for _, t := range auditTypes {
		query.EventTypes = append(query.EventTypes, audit.EventType(strings.ToUpper(strings.TrimSpace(t))))
	}
	if profile != "" {
		query.Profiles = []string{profile}
	}
	if auditSince > 0 {
		query.StartTime = time.Now().Add(-auditSince)
	}
	verboseLog("Searching %s", path)

	events, err := audit.Search(path, query)
	if err != nil {
		return err
	}
	if auditLimit > 0 && len(events) > auditLimit {
		events = events[len(events)-auditLimit:]
	}

	if auditJSON {
		enc := json.NewEncoder(auditOutput)
		for _, e := range events {
			if err := enc.Encode(e); err != nil {
				return err
			}
		}
		return nil
	}

	if len(events) == 0 {
		fmt.Fprintln(auditOutput, "No matching audit events.")
		return nil
	}
	w := tabwriter.NewWriter(auditOutput, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tTYPE\tPROFILE\tRESOURCE\tACTION\tRESULT")
	for _, e := range events {
		result := e.Result
		if e.Error != "" {
			result += ": " + e.Error
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			e.Timestamp.Local().Format(time.DateTime), e.Type, e.Profile, e.Resource, e.Action, result)
	}
	return w.Flush()
}
