package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/philippherzig/datocms-mcp/internal/audit"
	"github.com/philippherzig/datocms-mcp/internal/config"
	"github.com/philippherzig/datocms-mcp/internal/dato"
	"github.com/philippherzig/datocms-mcp/internal/mcp"
	"github.com/philippherzig/datocms-mcp/internal/node"
	"github.com/philippherzig/datocms-mcp/internal/storage"
	"github.com/philippherzig/datocms-mcp/pkg/types"
)

var (
	serveBatch       bool
	serveAutoApprove bool
	serveStrict      bool
	serveTimeout     time.Duration
	serveMetricsAddr string
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the DatoCMS MCP server",
	Long: `Start the Model Context Protocol server to handle requests from AI agents.

The server communicates over stdio (stdin/stdout) using the MCP protocol.
It connects with a stored profile, or with DATOCMS_API_TOKEN (or the
datocms_api_token Docker secret) when no profile is requested.

Examples:
  # Start server with the default profile
  datocms-mcp serve

  # Start server with a specific profile
  datocms-mcp serve --profile production

  # Skip confirmations for destructive tools
  datocms-mcp serve --batch

  # Expose Prometheus metrics of API calls
  datocms-mcp serve --metrics-addr 127.0.0.1:9464`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.SetOut(os.Stderr)
	serveCmd.SetErr(os.Stderr)

	serveCmd.Flags().BoolVar(&serveBatch, "batch", false, "enable batch mode (no confirmation round trips)")
	serveCmd.Flags().BoolVar(&serveAutoApprove, "auto-approve", false, "auto-approve all operations (dangerous)")
	serveCmd.Flags().BoolVar(&serveStrict, "strict-encoding", false, "keep JSON-looking strings of scalar fields verbatim")
	serveCmd.Flags().DurationVar(&serveTimeout, "timeout", 0, "tool call timeout (default from config)")
	serveCmd.Flags().StringVar(&serveMetricsAddr, "metrics-addr", "", "address for the Prometheus /metrics endpoint")
}

func runServe(cmd *cobra.Command, args []string) error {
	var direct *types.Profile
	if profile == "" {
		if p, err := config.LoadDirectProfile(); err == nil {
			direct = p
			verboseLog("Using direct configuration from Docker secrets or environment")
		}
	}

	cfg, err := config.Load(configPath())
	switch {
	case errors.Is(err, config.ErrConfigNotFound) && direct != nil:
		// a container with only a token needs no config file
		cfg, err = config.FromEnv()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
	case errors.Is(err, config.ErrConfigNotFound):
		cfg, err = loadConfig(true)
		if err != nil {
			return err
		}
	case err != nil:
		return fmt.Errorf("failed to load config: %w", err)
	}

	if cfg.Logging.File == "" {
		cfg.Logging.File = filepath.Join(configDir(), "audit.log")
	}

	var (
		store       storage.ProfileStoreInterface
		profileName string
	)
	if direct != nil {
		mem := storage.NewMemoryProfileStore()
		mem.AddProfile(direct)
		store = mem
		profileName = direct.Name
	} else {
		profileName, err = resolveProfile(cfg)
		if err != nil {
			return err
		}
		ps, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer ps.Close()
		store = ps
	}
	verboseLog("Using profile: %s", profileName)

	logger, err := audit.NewLogger(audit.Config{
		FilePath: cfg.Logging.File,
		MaxSize:  100 * 1024 * 1024,
		MaxAge:   30 * 24 * time.Hour,
	})
	if err != nil {
		return fmt.Errorf("failed to create audit logger: %w", err)
	}
	defer logger.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	clientOpts := clientOptions(cfg)
	addr := serveMetricsAddr
	if addr == "" {
		addr = cfg.Metrics.Addr
	}
	if addr != "" {
		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		clientOpts = append(clientOpts, dato.WithMetrics(dato.NewMetrics(reg)))

		shutdown := serveMetrics(addr, reg)
		defer shutdown()
	}

	timeout := serveTimeout
	if timeout <= 0 {
		timeout = cfg.MCP.Timeout
	}

	serverOpts := &mcp.ServerOptions{
		BatchMode:         serveBatch || cfg.Security.BatchMode,
		AutoApprove:       serveAutoApprove || cfg.Security.AutoApprove,
		Timeout:           timeout,
		ProfileName:       profileName,
		RateLimit:         cfg.MCP.RateLimit.RequestsPerMinute,
		RateBurst:         cfg.MCP.RateLimit.Burst,
		UploadConcurrency: cfg.Upload.Concurrency,
		StrictEncoding:    serveStrict,
		ClientOptions:     clientOpts,
		NewRemote: func(p *types.Profile, l *audit.Logger) (node.Remote, error) {
			return dato.NewClient(withDefaults(p, cfg), l, clientOpts...)
		},
	}

	server := mcp.NewServer(store, logger, serverOpts)
	if err := server.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// serveMetrics exposes reg on addr until the returned func is called
func serveMetrics(addr string, reg *prometheus.Registry) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			fmt.Fprintf(os.Stderr, "metrics server: %v\n", err)
		}
	}()
	verboseLog("Serving metrics on %s/metrics", addr)

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}
