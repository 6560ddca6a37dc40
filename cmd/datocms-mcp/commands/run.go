package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/philippherzig/datocms-mcp/internal/audit"
	"github.com/philippherzig/datocms-mcp/internal/dato"
	"github.com/philippherzig/datocms-mcp/internal/node"
	"github.com/philippherzig/datocms-mcp/internal/ui"
	"github.com/philippherzig/datocms-mcp/pkg/types"
)

var (
	runFile           string
	runContinueOnFail bool
	runYes            bool
	runStrict         bool

	// runOutput receives the JSON outputs of the run command
	runOutput io.Writer = os.Stdout
)

// Batch is the input of the run command: one request applied to every item
type Batch struct {
	Request types.Request    `json:"request"`
	Items   []map[string]any `json:"items"`
	// IDField names the item key holding the record or upload ID
	IDField        string `json:"id_field,omitempty"`
	ContinueOnFail bool   `json:"continue_on_fail,omitempty"`
}

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one operation over a batch of input items",
	Long: `Run a record, upload or schema operation for every item of a JSON batch
file and print the paired outputs as JSON.

The batch file looks like:
  {
    "request": {"resource": "record", "operation": "upsert",
                "item_type": "api_key:product", "matching_columns": ["sku"],
                "mapping_mode": "autoMapInputData"},
    "items": [{"sku": "A1", "title": "Chair"}, {"sku": "B2", "title": "Desk"}]
  }

Examples:
  # Upsert products
  datocms-mcp run --file products.json

  # Delete the records listed in a file without asking
  datocms-mcp run --file stale.json --yes

  # Read the batch from stdin
  cat batch.json | datocms-mcp run --file -`,
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runFile, "file", "f", "", "batch file, - for stdin (required)")
	runCmd.Flags().BoolVar(&runContinueOnFail, "continue-on-fail", false, "record item errors as outputs instead of stopping")
	runCmd.Flags().BoolVarP(&runYes, "yes", "y", false, "do not ask before destructive operations")
	runCmd.Flags().BoolVar(&runStrict, "strict-encoding", false, "keep JSON-looking strings of scalar fields verbatim")
	_ = runCmd.MarkFlagRequired("file")
}

func runRun(cmd *cobra.Command, args []string) error {
	batch, err := readBatch(runFile)
	if err != nil {
		return err
	}

	cfg, err := loadConfig(false)
	if err != nil {
		return err
	}
	profileName, err := resolveProfile(cfg)
	if err != nil {
		return err
	}
	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	p, err := store.GetProfile(profileName)
	if err != nil {
		return fmt.Errorf("profile '%s' not found", profileName)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	// without a terminal there is nobody to ask and nothing to draw on
	confirmer := ui.NewConfirmer(types.Confirmation{
		BatchMode:   !term.IsTerminal(int(os.Stdin.Fd())),
		AutoApprove: runYes,
		DefaultDeny: true,
		Timeout:     cfg.Security.ConfirmationTimeout,
	})
	if isDestructive(batch.Request.Operation) {
		result := confirmer.ConfirmBatchOperation(ctx, fmt.Sprintf("%s %s", batch.Request.Operation, batch.Request.Resource), batch.describe())
		if result.Error != nil {
			return result.Error
		}
		if !result.Approved {
			confirmer.DisplayInfo("Operation cancelled.")
			return nil
		}
	}

	logger, err := audit.NewLogger(audit.Config{FilePath: cfg.Logging.File})
	if err != nil {
		return fmt.Errorf("failed to create audit logger: %w", err)
	}
	defer logger.Close()

	client, err := dato.NewClient(withDefaults(p, cfg), logger, clientOptions(cfg)...)
	if err != nil {
		return err
	}
	n := node.New(client, logger, node.Options{
		ContinueOnFail:    runContinueOnFail || batch.ContinueOnFail,
		StrictEncoding:    runStrict,
		UploadConcurrency: cfg.Upload.Concurrency,
		Profile:           profileName,
		Progress: func(done, total int) {
			confirmer.ShowProgress(done, total, string(batch.Request.Operation))
		},
	})

	verboseLog("Running %s %s for %d items", batch.Request.Operation, batch.Request.Resource, len(batch.Items))
	results, runErr := n.Execute(ctx, batch.Items, batch.requestFor)
	if runErr == nil {
		for _, r := range results {
			if r.Err != nil {
				confirmer.DisplayError(fmt.Sprintf("item %d: %v", r.Index, r.Err))
			}
		}
	}

	enc := json.NewEncoder(runOutput)
	enc.SetIndent("", "  ")
	if err := enc.Encode(node.Outputs(results)); err != nil {
		return fmt.Errorf("failed to write outputs: %w", err)
	}
	return runErr
}

func readBatch(path string) (*Batch, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path) // #nosec G304 - user-provided batch file
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read batch: %w", err)
	}

	var batch Batch
	if err := json.Unmarshal(data, &batch); err != nil {
		return nil, fmt.Errorf("invalid batch file: %w", err)
	}
	if batch.Request.Resource == "" || batch.Request.Operation == "" {
		return nil, errors.New("invalid batch file: request needs a resource and an operation")
	}
	if len(batch.Items) == 0 {
		// schema and list operations still run once
		batch.Items = []map[string]any{{}}
	}
	return &batch, nil
}

// requestFor copies the batch request and fills the ID from IDField
func (b *Batch) requestFor(_ int, item map[string]any) (*types.Request, error) {
	req := b.Request
	if b.IDField == "" {
		return &req, nil
	}

	id := itemID(item[b.IDField])
	if id == "" {
		return nil, fmt.Errorf("item has no %q", b.IDField)
	}
	if req.Resource == types.ResourceUpload {
		req.UploadID = id
	} else {
		req.RecordID = id
	}
	return &req, nil
}

// describe lists the targets of the batch for the confirmation prompt
func (b *Batch) describe() []string {
	out := make([]string, 0, len(b.Items))
	for i, item := range b.Items {
		switch {
		case b.IDField != "":
			out = append(out, fmt.Sprintf("%s %s", b.Request.Resource, itemID(item[b.IDField])))
		case b.Request.UploadID != "":
			out = append(out, "upload "+b.Request.UploadID)
		case b.Request.RecordID != "":
			out = append(out, "record "+b.Request.RecordID)
		default:
			out = append(out, fmt.Sprintf("item %d", i))
		}
	}
	return out
}

// itemID accepts a plain ID, a JSON number or a relationship object
func itemID(v any) string {
	switch id := v.(type) {
	case string:
		return strings.TrimSpace(id)
	case float64:
		return strconv.FormatFloat(id, 'f', -1, 64)
	case json.Number:
		return id.String()
	}
	return dato.RefID(v)
}

func isDestructive(op types.Operation) bool {
	return op == types.OperationDelete || op == types.OperationUnpublish
}
