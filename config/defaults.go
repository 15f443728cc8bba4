package config

import "time"

// Default runtime limits and report-reading conventions for the branch rollup
// server. They can be overridden by the YAML file named in BRANCHROLLUP_CONFIG
// and are referenced by internal/runtime and internal/sheets.

const (
	// Concurrency
	DefaultMaxConcurrentRequests = 10
	DefaultMaxOpenWorkbooks      = 8
	DefaultMaxConcurrentLoads    = 4

	// Per-call bounds
	DefaultMaxReportsPerCall = 366
	DefaultMaxRowsPerSheet   = 5_000
	DefaultMaxCellsPerOp     = 200_000
	DefaultMaxPayloadBytes   = 256 * 1024 // 256KB

	// Pagination of series output
	DefaultSeriesPageSize = 100
	MaxSeriesPageSize     = 1_000
)

const (
	// Timeouts
	DefaultOperationTimeout      = 60 * time.Second
	DefaultAcquireRequestTimeout = 2 * time.Second
)

const (
	// Workbook handle cache
	DefaultWorkbookIdleTTL       = 5 * time.Minute
	DefaultWorkbookCleanupPeriod = time.Minute
)

const (
	// Report sheet layout
	DefaultSheetName    = "Country"
	DefaultBranchColumn = "Branch"
)

// Environment variables read at startup.
const (
	EnvAllowedDirs = "BRANCHROLLUP_ALLOWED_DIRS"
	EnvConfigPath  = "BRANCHROLLUP_CONFIG"
)
