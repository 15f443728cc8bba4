package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/vinodismyname/branchrollup/internal/branches"
	"gopkg.in/yaml.v3"
)

// File is the optional YAML configuration. Zero values keep the defaults.
type File struct {
	Limits struct {
		MaxConcurrentRequests int           `yaml:"max_concurrent_requests"`
		MaxOpenWorkbooks      int           `yaml:"max_open_workbooks"`
		MaxConcurrentLoads    int           `yaml:"max_concurrent_loads"`
		MaxReportsPerCall     int           `yaml:"max_reports_per_call"`
		MaxRowsPerSheet       int           `yaml:"max_rows_per_sheet"`
		OperationTimeout      time.Duration `yaml:"operation_timeout"`
	} `yaml:"limits"`

	Sheet struct {
		Name         string `yaml:"name"`
		BranchColumn string `yaml:"branch_column"`
	} `yaml:"sheet"`

	// Model names the client's language model; its context window bounds the
	// size of one tool response.
	Model string `yaml:"model"`

	// ExemptBranches replaces the default first-wins set when non-empty.
	ExemptBranches []string `yaml:"exempt_branches"`

	// ExtraBranches maps additional branch names into the static hierarchy.
	ExtraBranches map[string]branches.Mapping `yaml:"extra_branches"`
}

// SheetName returns the configured report sheet or the default.
func (f *File) SheetName() string {
	if f == nil || f.Sheet.Name == "" {
		return DefaultSheetName
	}
	return f.Sheet.Name
}

// BranchColumn returns the configured branch header or the default.
func (f *File) BranchColumn() string {
	if f == nil || f.Sheet.BranchColumn == "" {
		return DefaultBranchColumn
	}
	return f.Sheet.BranchColumn
}

// Load parses the YAML configuration file at path.
func Load(path string) (*File, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	var f File
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if f.Limits.OperationTimeout < 0 {
		return nil, fmt.Errorf("config: negative operation_timeout")
	}
	return &f, nil
}

// LoadFromEnv reads a .env file when present, then loads the YAML file named
// by BRANCHROLLUP_CONFIG. An unset variable yields an empty File.
func LoadFromEnv() (*File, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("config: load .env: %w", err)
	}
	path := os.Getenv(EnvConfigPath)
	if path == "" {
		return &File{}, nil
	}
	return Load(path)
}
