// Package pathutil provides centralized path management for ledger data files.
package pathutil

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// PathResolver manages paths for the ledger database, the sequence store and
// saved reconciliation reports.
type PathResolver struct {
	dataDir      string
	databasePath string
	sequencePath string
	reportsDir   string
}

// Config represents the configuration for PathResolver.
type Config struct {
	// DataDir is the root directory for all ledger data (e.g., ./data)
	DataDir string
	// DatabasePath is the SQLite ledger database
	DatabasePath string
	// SequencePath is the bbolt file holding document number counters
	SequencePath string
	// ReportsDir receives saved reconciliation reports
	ReportsDir string
}

// New creates a new PathResolver with the given configuration.
// Empty paths default to {DataDir}/ledger.db, {DataDir}/sequences.db and
// {DataDir}/reports.
func New(config Config) *PathResolver {
	dataDir := config.DataDir
	if dataDir == "" {
		dataDir = "data"
	}

	dbPath := config.DatabasePath
	if dbPath == "" {
		dbPath = filepath.Join(dataDir, "ledger.db")
	}

	seqPath := config.SequencePath
	if seqPath == "" {
		seqPath = filepath.Join(dataDir, "sequences.db")
	}

	reportsDir := config.ReportsDir
	if reportsDir == "" {
		reportsDir = filepath.Join(dataDir, "reports")
	}

	return &PathResolver{
		dataDir:      dataDir,
		databasePath: dbPath,
		sequencePath: seqPath,
		reportsDir:   reportsDir,
	}
}

// GetDataDir returns the data root.
func (p *PathResolver) GetDataDir() string {
	return p.dataDir
}

// GetDatabasePath returns the database file path.
func (p *PathResolver) GetDatabasePath() string {
	return p.databasePath
}

// GetSequencePath returns the sequence store path.
func (p *PathResolver) GetSequencePath() string {
	return p.sequencePath
}

// GetReportsDir returns the reports directory.
func (p *PathResolver) GetReportsDir() string {
	return p.reportsDir
}

// GetReconcileReportPath returns where the reconciliation report of an
// organization taken on date (YYYY-MM-DD) is saved.
// Example: reports/org-1/2026/03/reconcile-2026-03-05.json
func (p *PathResolver) GetReconcileReportPath(organizationID, date string) (string, error) {
	if organizationID == "" || strings.ContainsAny(organizationID, `/\`) || organizationID == ".." {
		return "", fmt.Errorf("invalid organization id: %q", organizationID)
	}

	parts := strings.Split(date, "-")
	if len(parts) != 3 || len(parts[0]) != 4 || len(parts[1]) != 2 || len(parts[2]) != 2 {
		return "", fmt.Errorf("invalid date format: %s. Expected YYYY-MM-DD", date)
	}

	filename := fmt.Sprintf("reconcile-%s.json", date)
	return filepath.Join(p.reportsDir, organizationID, parts[0], parts[1], filename), nil
}

// EnsureDir creates a directory if it doesn't exist.
// It creates all parent directories as needed (like mkdir -p).
func (p *PathResolver) EnsureDir(dirPath string) error {
	if err := os.MkdirAll(dirPath, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dirPath, err)
	}
	return nil
}

// EnsureParentDir ensures the parent directory of a file exists.
func (p *PathResolver) EnsureParentDir(filePath string) error {
	return p.EnsureDir(filepath.Dir(filePath))
}

// FileExists checks if a file exists.
func (p *PathResolver) FileExists(filePath string) bool {
	_, err := os.Stat(filePath)
	return err == nil
}
