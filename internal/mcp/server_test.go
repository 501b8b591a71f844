package mcp

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"
)

func setupTestServer(t *testing.T) *Server {
	t.Helper()
	server, err := NewServer(&Config{
		Name:    "test-server",
		Version: "v1.0.0",
	})
	if err != nil {
		t.Fatalf("NewServer failed: %v", err)
	}
	t.Cleanup(func() { server.Close() })
	return server
}

func TestNewServer(t *testing.T) {
	server := setupTestServer(t)

	if server.server == nil {
		t.Error("Server.server is nil")
	}
	if server.store == nil {
		t.Error("Server.store is nil")
	}
	if server.runner == nil {
		t.Error("Server.runner is nil")
	}
	if server.maxNodes != DefaultMaxNodes {
		t.Errorf("maxNodes = %d, want %d", server.maxNodes, DefaultMaxNodes)
	}
}

func TestNewServer_SQLiteAndAudit(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "db", "thresholds.db")
	auditDir := filepath.Join(tmpDir, "audit")

	server, err := NewServer(&Config{
		Name:     "test-server",
		Version:  "v1.0.0",
		DBPath:   dbPath,
		AuditDir: auditDir,
		MaxNodes: 50,
	})
	if err != nil {
		t.Fatalf("NewServer failed: %v", err)
	}
	defer server.Close()

	if _, err := os.Stat(dbPath); err != nil {
		t.Errorf("database not created: %v", err)
	}
	if server.auditLogger == nil {
		t.Error("audit logger not configured")
	}
	if server.maxNodes != 50 {
		t.Errorf("maxNodes = %d, want 50", server.maxNodes)
	}
}

func TestServer_Close(t *testing.T) {
	server, err := NewServer(&Config{Name: "test-server", Version: "v1.0.0", AuditDir: t.TempDir()})
	if err != nil {
		t.Fatalf("NewServer failed: %v", err)
	}
	if err := server.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}

func TestServer_InMemoryClient(t *testing.T) {
	server := setupTestServer(t)
	ctx := context.Background()

	serverTransport, clientTransport := sdk.NewInMemoryTransports()
	ss, err := server.server.Connect(ctx, serverTransport, nil)
	if err != nil {
		t.Fatalf("server Connect failed: %v", err)
	}
	defer ss.Close()

	client := sdk.NewClient(&sdk.Implementation{Name: "test-client", Version: "v1.0.0"}, nil)
	cs, err := client.Connect(ctx, clientTransport, nil)
	if err != nil {
		t.Fatalf("client Connect failed: %v", err)
	}
	defer cs.Close()

	res, err := cs.CallTool(ctx, &sdk.CallToolParams{
		Name: "thresholds_simulate",
		Arguments: map[string]any{
			"model":     "integer",
			"graph":     "cycle",
			"nodes":     20,
			"threshold": 0,
		},
	})
	if err != nil {
		t.Fatalf("CallTool failed: %v", err)
	}
	if res.IsError {
		t.Fatalf("tool returned error: %+v", res.Content)
	}

	listed, err := cs.CallTool(ctx, &sdk.CallToolParams{Name: "thresholds_runs"})
	if err != nil {
		t.Fatalf("CallTool(runs) failed: %v", err)
	}
	if listed.IsError {
		t.Fatalf("runs tool returned error: %+v", listed.Content)
	}

	resource, err := cs.ReadResource(ctx, &sdk.ReadResourceParams{URI: recentRunsURI})
	if err != nil {
		t.Fatalf("ReadResource failed: %v", err)
	}
	if len(resource.Contents) != 1 || resource.Contents[0].Text == "" {
		t.Errorf("unexpected resource contents: %+v", resource.Contents)
	}
}
