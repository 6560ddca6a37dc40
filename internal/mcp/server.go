package mcp

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/server"

	"github.com/philippherzig/datocms-mcp/internal/audit"
	"github.com/philippherzig/datocms-mcp/internal/dato"
	"github.com/philippherzig/datocms-mcp/internal/node"
	"github.com/philippherzig/datocms-mcp/internal/storage"
	"github.com/philippherzig/datocms-mcp/internal/validation"
	"github.com/philippherzig/datocms-mcp/pkg/types"
)

// Version is reported to MCP clients during initialization
var Version = "dev"

const serverName = "datocms-mcp"

// Server implements the MCP protocol server
type Server struct {
	mcpServer      *server.MCPServer
	storage        storage.ProfileStoreInterface
	profiles       map[string]Dispatcher
	currentProfile string
	logger         *audit.Logger
	validator      *validation.Validator
	options        *ServerOptions
	mu             sync.RWMutex

	// handlers by tool name; confirmed holds the second step of destructive tools
	handlers  map[string]server.ToolHandlerFunc
	confirmed map[string]toolFunc

	rateLimiter *RateLimiter

	sessionID string
	startTime time.Time
}

// ServerOptions configuration for the server
type ServerOptions struct {
	BatchMode   bool
	AutoApprove bool
	Timeout     time.Duration
	ProfileName string
	RateLimit   int // requests per minute
	RateBurst   int

	// UploadConcurrency is the bulk upload default for every profile
	UploadConcurrency int
	StrictEncoding    bool

	// ClientOptions are applied to every CMA client the server creates
	ClientOptions []dato.Option
	// NewRemote replaces the CMA client constructor
	NewRemote RemoteFactory
}

// DefaultServerOptions returns the options used when none are given
func DefaultServerOptions() *ServerOptions {
	return &ServerOptions{
		Timeout:           30 * time.Second,
		RateLimit:         60,
		UploadConcurrency: node.DefaultUploadConcurrency,
	}
}

// NewServer creates a new MCP server with every tool and prompt registered
func NewServer(store storage.ProfileStoreInterface, logger *audit.Logger, options *ServerOptions) *Server {
	if options == nil {
		options = DefaultServerOptions()
	}

	s := &Server{
		storage:     store,
		profiles:    make(map[string]Dispatcher),
		logger:      logger,
		validator:   validation.NewValidator(),
		options:     options,
		handlers:    make(map[string]server.ToolHandlerFunc),
		confirmed:   make(map[string]toolFunc),
		rateLimiter: NewRateLimiter(options.RateLimit, options.RateBurst),
		sessionID:   uuid.NewString(),
		startTime:   time.Now(),
	}

	s.mcpServer = server.NewMCPServer(
		serverName,
		Version,
		server.WithToolCapabilities(true),
		server.WithPromptCapabilities(false),
		server.WithRecovery(),
		server.WithInstructions("This MCP server manages content in a DatoCMS project through the Content Management API. "+
			"Use the schema tools (list_models, get_model_fields, get_filterable_fields) to discover field API keys before "+
			"creating, updating, upserting or filtering records. Destructive tools answer with status 'confirmation_required'; "+
			"show the confirm_action prompt to the user and call execute_confirmed_action with their decision."),
	)

	s.registerTools()
	s.registerPrompts()

	return s
}

// MCPServer returns the underlying mcp-go server instance
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// SessionID identifies this server run in audit events
func (s *Server) SessionID() string {
	return s.sessionID
}

// Start loads the configured profile and serves MCP over stdio until ctx is done or stdin closes
func (s *Server) Start(ctx context.Context) error {
	s.logger.LogSystem(audit.EventStartup, "MCP server started", map[string]any{
		"session_id": s.sessionID,
		"batch_mode": s.options.BatchMode,
		"profile":    s.options.ProfileName,
	})
	defer s.logger.LogSystem(audit.EventShutdown, "MCP server stopped", map[string]any{
		"session_id": s.sessionID,
		"duration":   time.Since(s.startTime).String(),
	})

	if s.options.ProfileName != "" {
		if err := s.SwitchProfile(ctx, s.options.ProfileName); err != nil {
			return fmt.Errorf("failed to load profile %s: %w", s.options.ProfileName, err)
		}
	}

	stdio := server.NewStdioServer(s.mcpServer)
	if err := stdio.Listen(ctx, os.Stdin, os.Stdout); err != nil && ctx.Err() == nil {
		return fmt.Errorf("stdio server: %w", err)
	}
	return nil
}

// SwitchProfile loads a profile if needed and makes it the active one
func (s *Server) SwitchProfile(ctx context.Context, name string) error {
	if err := s.loadProfile(ctx, name); err != nil {
		return err
	}
	s.mu.Lock()
	s.currentProfile = name
	s.mu.Unlock()
	return nil
}

// loadProfile creates and connection-tests the dispatcher for a profile
func (s *Server) loadProfile(ctx context.Context, name string) error {
	s.mu.RLock()
	_, loaded := s.profiles[name]
	s.mu.RUnlock()
	if loaded {
		return nil
	}

	if s.storage == nil {
		return fmt.Errorf("profile storage not configured")
	}
	profile, err := s.storage.GetProfile(name)
	if err != nil {
		return fmt.Errorf("failed to get profile: %w", err)
	}

	newRemote := s.options.NewRemote
	if newRemote == nil {
		newRemote = s.defaultRemote
	}
	remote, err := newRemote(profile, s.logger)
	if err != nil {
		return fmt.Errorf("failed to create DatoCMS client: %w", err)
	}

	testCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	if _, err := remote.FindSite(testCtx); err != nil {
		s.logger.LogAuth(false, name, map[string]any{"error": err.Error()})
		return fmt.Errorf("failed to connect to DatoCMS: %w", err)
	}
	s.logger.LogAuth(true, name, nil)

	n := node.New(remote, s.logger, node.Options{
		StrictEncoding:    s.options.StrictEncoding,
		UploadConcurrency: s.options.UploadConcurrency,
		Profile:           name,
	})

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.profiles[name]; !exists {
		s.profiles[name] = n
	}
	return nil
}

func (s *Server) defaultRemote(profile *types.Profile, logger *audit.Logger) (node.Remote, error) {
	return dato.NewClient(profile, logger, s.options.ClientOptions...)
}

// currentDispatcher returns the dispatcher of the active profile
func (s *Server) currentDispatcher() (Dispatcher, string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.currentProfile == "" {
		return nil, "", fmt.Errorf("no profile selected: call switch_profile first")
	}
	d, exists := s.profiles[s.currentProfile]
	if !exists {
		return nil, "", fmt.Errorf("profile not loaded: %s", s.currentProfile)
	}
	return d, s.currentProfile, nil
}

// needsConfirmation reports whether destructive tools must ask before running
func (s *Server) needsConfirmation() bool {
	return !s.options.BatchMode && !s.options.AutoApprove
}
