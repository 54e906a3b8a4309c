package pathutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaults(t *testing.T) {
	p := New(Config{DataDir: "/srv/ledger"})

	assert.Equal(t, "/srv/ledger", p.GetDataDir())
	assert.Equal(t, filepath.Join("/srv/ledger", "ledger.db"), p.GetDatabasePath())
	assert.Equal(t, filepath.Join("/srv/ledger", "sequences.db"), p.GetSequencePath())
	assert.Equal(t, filepath.Join("/srv/ledger", "reports"), p.GetReportsDir())

	p = New(Config{})
	assert.Equal(t, filepath.Join("data", "ledger.db"), p.GetDatabasePath())
}

func TestNewExplicitPaths(t *testing.T) {
	p := New(Config{
		DataDir:      "/srv/ledger",
		DatabasePath: "/var/db/ledger.db",
		SequencePath: "/var/db/seq.db",
		ReportsDir:   "/var/reports",
	})

	assert.Equal(t, "/var/db/ledger.db", p.GetDatabasePath())
	assert.Equal(t, "/var/db/seq.db", p.GetSequencePath())
	assert.Equal(t, "/var/reports", p.GetReportsDir())
}

func TestGetReconcileReportPath(t *testing.T) {
	p := New(Config{DataDir: "/srv/ledger"})

	tests := []struct {
		name    string
		org     string
		date    string
		want    string
		wantErr bool
	}{
		{
			name: "valid",
			org:  "org-1",
			date: "2026-03-05",
			want: filepath.Join("/srv/ledger", "reports", "org-1", "2026", "03", "reconcile-2026-03-05.json"),
		},
		{name: "month only", org: "org-1", date: "2026-03", wantErr: true},
		{name: "empty org", org: "", date: "2026-03-05", wantErr: true},
		{name: "path in org", org: "../etc", date: "2026-03-05", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := p.GetReconcileReportPath(tt.org, tt.date)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEnsureParentDir(t *testing.T) {
	root := t.TempDir()
	p := New(Config{DataDir: root})

	path, err := p.GetReconcileReportPath("org-1", "2026-03-05")
	require.NoError(t, err)
	assert.False(t, p.FileExists(path))

	require.NoError(t, p.EnsureParentDir(path))
	require.NoError(t, os.WriteFile(path, []byte("{}"), 0o600))
	assert.True(t, p.FileExists(path))
}
