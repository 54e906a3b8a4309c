package category

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleMapping = `
payroll:
  category: payroll
expense_run:
  fallback: misc
  rules:
    - recurring: office rent
      ledger: RENT
    - recurring: Internet
      ledger: utilities
`

func TestParse(t *testing.T) {
	m, err := Parse([]byte(sampleMapping))
	require.NoError(t, err)

	assert.Equal(t, "PAYROLL", m.PayrollCategory())

	tests := []struct {
		in   string
		want string
	}{
		{"office rent", "RENT"},
		{"  OFFICE RENT ", "RENT"},
		{"internet", "UTILITIES"},
		{"fuel", "FUEL"},
		{"", "MISC"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, m.ExpenseRunCategory(tt.in))
		})
	}

	assert.True(t, m.HasMapping("Office Rent"))
	assert.False(t, m.HasMapping("fuel"))
	assert.Equal(t, map[string]string{"OFFICE RENT": "RENT", "INTERNET": "UTILITIES"}, m.GetAllMappings())
}

func TestParseRejectsIncompleteRule(t *testing.T) {
	_, err := Parse([]byte("expense_run:\n  rules:\n    - recurring: rent\n"))
	assert.Error(t, err)

	_, err = Parse([]byte("payroll: [unclosed"))
	assert.Error(t, err)
}

func TestDefault(t *testing.T) {
	m := Default()
	assert.Equal(t, DefaultPayrollCategory, m.PayrollCategory())
	assert.Equal(t, DefaultFallbackCategory, m.ExpenseRunCategory(""))
	assert.Equal(t, "RENT", m.ExpenseRunCategory("rent"))
	assert.Empty(t, m.GetAllMappings())
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()

	m, err := Load(filepath.Join(dir, "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultPayrollCategory, m.PayrollCategory())

	path := filepath.Join(dir, "mapping.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleMapping), 0o644))
	m, err = Load(path)
	require.NoError(t, err)
	assert.Equal(t, "PAYROLL", m.PayrollCategory())

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("payroll: [unclosed"), 0o644))
	_, err = Load(bad)
	assert.Error(t, err)
}

func TestRepositoryMappingFileParses(t *testing.T) {
	m, err := NewMapper(filepath.Join("..", "..", "config", "category-mapping.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "SALARIES", m.PayrollCategory())
	assert.NotEmpty(t, m.GetAllMappings())
}
