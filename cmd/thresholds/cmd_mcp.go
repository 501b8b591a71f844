package main

import (
	"fmt"
	"path/filepath"

	"github.com/georgeberry/thresholds/internal/mcp"
	"github.com/georgeberry/thresholds/internal/metrics"
	"github.com/georgeberry/thresholds/internal/store"
	"github.com/spf13/cobra"
)

func newMCPServerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mcp-server",
		Short: "Run the MCP server over stdio",
		Long: `Start a Model Context Protocol server on stdin/stdout so AI agents can
run small simulations and browse stored runs.

Tools:
  thresholds_simulate  run a scenario and return summaries and records
  thresholds_runs      list runs or show one run
  thresholds_backup    archive stored runs into the backup directory
  thresholds_restore   load runs from an archive in the backup directory

Runs are stored in the SQLite results database unless --memory is set.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			dbPath, _ := cmd.Flags().GetString("db")
			inMemory, _ := cmd.Flags().GetBool("memory")
			maxNodes, _ := cmd.Flags().GetInt("max-nodes")
			noAudit, _ := cmd.Flags().GetBool("no-audit")
			backupDir, _ := cmd.Flags().GetString("backup-dir")

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			// stdout carries the protocol; logs stay on stderr.
			logger := newLogger(cmd, cfg)

			if dbPath == "" {
				dbPath = cfg.Output.SQLitePath
			}
			if dbPath == "" {
				if dbPath, err = store.DefaultSQLitePath(); err != nil {
					return err
				}
			}
			if inMemory {
				dbPath = ""
			}

			var auditDir string
			if !noAudit {
				global, err := store.GlobalPath()
				if err != nil {
					return err
				}
				auditDir = filepath.Join(global, "audit")
			}

			server, err := mcp.NewServer(&mcp.Config{
				Name:      "thresholds",
				Version:   version,
				DBPath:    dbPath,
				AuditDir:  auditDir,
				BackupDir: backupDir,
				Logger:    logger,
				Metrics:   metrics.NewRegistry(),
				MaxNodes:  maxNodes,
			})
			if err != nil {
				return fmt.Errorf("failed to create MCP server: %w", err)
			}

			logger.Info("mcp server starting", "db", dbPath, "max_nodes", maxNodes)
			return server.Run(cmd.Context())
		},
	}

	cmd.Flags().String("db", "", "SQLite results database (default from config or ~/.thresholds/thresholds.db)")
	cmd.Flags().Bool("memory", false, "Keep runs in memory instead of SQLite")
	cmd.Flags().Int("max-nodes", mcp.DefaultMaxNodes, "Largest graph a tool call may simulate")
	cmd.Flags().Bool("no-audit", false, "Disable the tool call audit log")
	cmd.Flags().String("backup-dir", "", "Directory the archive tools may read and write (default ~/.thresholds/backups)")

	return cmd
}
