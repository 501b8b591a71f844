// Package mcp provides an MCP (Model Context Protocol) server for thresholds.
package mcp

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/georgeberry/thresholds/internal/backup"
	"github.com/georgeberry/thresholds/internal/logging"
	"github.com/georgeberry/thresholds/internal/metrics"
	"github.com/georgeberry/thresholds/internal/ratelimit"
	"github.com/georgeberry/thresholds/internal/simulation"
	"github.com/georgeberry/thresholds/internal/store"
)

// DefaultMaxNodes caps the graph size of a single simulate call.
const DefaultMaxNodes = 5000

// DefaultMaxReplicates caps the replicates of a single simulate call.
const DefaultMaxReplicates = 20

// RunStore persists simulated runs and reads them back.
type RunStore interface {
	store.Sink
	store.RunReader
}

// Server wraps the MCP SDK server and exposes simulations as tools.
type Server struct {
	server       *sdk.Server
	store        RunStore
	runner       *simulation.Runner
	auditLogger  *AuditLogger
	toolLimiters ratelimit.ToolLimiters
	logger       *slog.Logger
	maxNodes     int
	backupDir    string
}

// Config holds server configuration.
type Config struct {
	Name    string // Server name (e.g., "thresholds")
	Version string // Server version

	// DBPath is the SQLite results database. Empty keeps runs in memory for
	// the lifetime of the server.
	DBPath string

	// AuditDir receives audit.jsonl. Empty disables auditing.
	AuditDir string

	// BackupDir confines the archive tools. Empty uses ~/.thresholds/backups.
	BackupDir string

	Logger   *slog.Logger
	Metrics  *metrics.Registry
	MaxNodes int
}

// NewServer creates a new MCP server with thresholds tools.
func NewServer(cfg *Config) (*Server, error) {
	var runStore RunStore
	if cfg.DBPath != "" {
		s, err := store.NewSQLiteStore(cfg.DBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open results store: %w", err)
		}
		runStore = s
	} else {
		runStore = store.NewMemoryStore()
	}

	logger := cfg.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	maxNodes := cfg.MaxNodes
	if maxNodes <= 0 {
		maxNodes = DefaultMaxNodes
	}

	backupDir := cfg.BackupDir
	if backupDir == "" {
		dir, err := backup.DefaultBackupDir()
		if err != nil {
			runStore.Close()
			return nil, err
		}
		backupDir = dir
	}

	mcpServer := sdk.NewServer(&sdk.Implementation{
		Name:    cfg.Name,
		Version: cfg.Version,
	}, &sdk.ServerOptions{
		InitializedHandler: func(ctx context.Context, req *sdk.InitializedRequest) {
			logger.Debug("mcp client initialized")
		},
	})

	s := &Server{
		server:       mcpServer,
		store:        runStore,
		runner:       simulation.NewRunner(runStore, simulation.WithLogger(logger), simulation.WithMetrics(cfg.Metrics)),
		toolLimiters: ratelimit.NewToolLimiters(),
		logger:       logger,
		maxNodes:     maxNodes,
		backupDir:    backupDir,
	}
	if cfg.AuditDir != "" {
		s.auditLogger = NewAuditLogger(cfg.AuditDir)
	}

	s.registerTools()
	s.registerResources()

	return s, nil
}

// Run starts the MCP server over stdio transport.
// This blocks until the client disconnects or the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	notifySignals(sigChan)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case <-sigChan:
			cancel()
		case <-ctx.Done():
		}
	}()

	err := s.server.Run(ctx, &sdk.StdioTransport{})
	if cerr := s.Close(); err == nil {
		err = cerr
	}
	return err
}

// Close closes the server and releases resources.
func (s *Server) Close() error {
	s.auditLogger.Close()
	return s.store.Close()
}
