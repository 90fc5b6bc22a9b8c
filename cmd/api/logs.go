package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/mandalnilabja/chatrelay/internal/storage"
)

var logsFlags struct {
	limit     int
	olderThan time.Duration
}

var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "Show recent request audit-log entries as JSON",
	Long: `Show the most recent entries of the request audit log (REQUEST_LOG_PATH).
Entries hold request metadata only, never message content.`,
	RunE: listLogs,
}

var logsPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete audit-log entries older than a duration",
	RunE:  pruneLogs,
}

func init() {
	rootCmd.AddCommand(logsCmd)
	logsCmd.AddCommand(logsPruneCmd)

	logsCmd.Flags().IntVarP(&logsFlags.limit, "limit", "n", 50, "maximum entries to show (0 for all)")
	logsPruneCmd.Flags().DurationVar(&logsFlags.olderThan, "older-than", 30*24*time.Hour, "delete entries older than this")
}

// openRequestLog opens the configured audit log. It fails when the log is disabled.
func openRequestLog() (storage.Storage, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if cfg.RequestLogPath == "" {
		return nil, errors.New("request log is disabled: set REQUEST_LOG_PATH or request_log_path")
	}
	return storage.New(cfg.RequestLogPath)
}

func listLogs(cmd *cobra.Command, args []string) error {
	store, err := openRequestLog()
	if err != nil {
		return err
	}
	defer store.Close()

	logs, err := store.GetRequestLogs(cmd.Context(), logsFlags.limit)
	if err != nil {
		return fmt.Errorf("failed to read request log: %w", err)
	}
	if logs == nil {
		logs = []*storage.RequestLog{}
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(logs)
}

func pruneLogs(cmd *cobra.Command, args []string) error {
	if logsFlags.olderThan <= 0 {
		return errors.New("--older-than must be positive")
	}

	store, err := openRequestLog()
	if err != nil {
		return err
	}
	defer store.Close()

	cutoff := time.Now().Add(-logsFlags.olderThan)
	deleted, err := store.DeleteRequestLogs(cmd.Context(), cutoff)
	if err != nil {
		return fmt.Errorf("failed to prune request log: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d entries older than %s\n", deleted, cutoff.UTC().Format(time.RFC3339))
	return nil
}
