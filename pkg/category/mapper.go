// Package category maps run sources to ledger expense categories.
package category

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	DefaultPayrollCategory  = "SALARIES"
	DefaultFallbackCategory = "GENERAL"
)

// Rule maps a recurring-expense category to a ledger expense category.
type Rule struct {
	Recurring string `yaml:"recurring"`
	Ledger    string `yaml:"ledger"`
}

// MappingConfig is the on-disk mapping file.
type MappingConfig struct {
	Payroll struct {
		Category string `yaml:"category"`
	} `yaml:"payroll"`
	ExpenseRun struct {
		Fallback string `yaml:"fallback"`
		Rules    []Rule `yaml:"rules"`
	} `yaml:"expense_run"`
}

// Mapper resolves categories for generated expenses. It holds no state beyond
// the mapping it was built from.
type Mapper struct {
	payroll   string
	fallback  string
	recurring map[string]string
}

// Default returns a Mapper with no rules: payroll expenses use SALARIES and
// recurring expenses keep their own category.
func Default() *Mapper {
	return &Mapper{
		payroll:   DefaultPayrollCategory,
		fallback:  DefaultFallbackCategory,
		recurring: make(map[string]string),
	}
}

// NewMapper creates a Mapper from a YAML configuration file.
func NewMapper(configPath string) (*Mapper, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read category mapping: %w", err)
	}
	return Parse(data)
}

// Load is NewMapper for an optional file: a missing file yields Default.
func Load(configPath string) (*Mapper, error) {
	if configPath == "" {
		return Default(), nil
	}
	m, err := NewMapper(configPath)
	if errors.Is(err, fs.ErrNotExist) {
		return Default(), nil
	}
	return m, err
}

// Parse builds a Mapper from YAML bytes.
func Parse(data []byte) (*Mapper, error) {
	var config MappingConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	m := Default()
	if c := normalize(config.Payroll.Category); c != "" {
		m.payroll = c
	}
	if c := normalize(config.ExpenseRun.Fallback); c != "" {
		m.fallback = c
	}
	for i, rule := range config.ExpenseRun.Rules {
		from, to := normalize(rule.Recurring), normalize(rule.Ledger)
		if from == "" || to == "" {
			return nil, fmt.Errorf("expense_run rule %d: recurring and ledger are required", i)
		}
		m.recurring[from] = to
	}
	return m, nil
}

// PayrollCategory is the category of expenses generated by a payroll run.
func (m *Mapper) PayrollCategory() string {
	return m.payroll
}

// ExpenseRunCategory returns the ledger category for a recurring expense's
// category. Unmapped categories pass through; an empty one gets the fallback.
func (m *Mapper) ExpenseRunCategory(recurring string) string {
	key := normalize(recurring)
	if mapped, ok := m.recurring[key]; ok {
		return mapped
	}
	if key == "" {
		return m.fallback
	}
	return key
}

// HasMapping reports whether a rule exists for a recurring category.
func (m *Mapper) HasMapping(recurring string) bool {
	_, ok := m.recurring[normalize(recurring)]
	return ok
}

// GetAllMappings returns a copy of the recurring rules.
func (m *Mapper) GetAllMappings() map[string]string {
	result := make(map[string]string, len(m.recurring))
	for k, v := range m.recurring {
		result[k] = v
	}
	return result
}

func normalize(category string) string {
	return strings.ToUpper(strings.TrimSpace(category))
}
