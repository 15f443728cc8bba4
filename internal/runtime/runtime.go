package runtime

import (
	"context"
	"time"

	"github.com/vinodismyname/branchrollup/config"
	"golang.org/x/sync/semaphore"
)

// Limits captures the concurrency and report-loading guardrails configured for the server.
type Limits struct {
	// Concurrency caps
	MaxConcurrentRequests int
	MaxOpenWorkbooks      int
	MaxConcurrentLoads    int

	// Per-call bounds
	MaxReportsPerCall int
	MaxRowsPerSheet   int
	MaxCellsPerOp     int
	MaxPayloadBytes   int

	// Timeouts
	OperationTimeout      time.Duration
	AcquireRequestTimeout time.Duration
}

// NewLimits initializes Limits with sensible fallbacks when values are unset.
func NewLimits(maxConcurrentRequests, maxOpenWorkbooks int) Limits {
	if maxConcurrentRequests <= 0 {
		maxConcurrentRequests = config.DefaultMaxConcurrentRequests
	}
	if maxOpenWorkbooks <= 0 {
		maxOpenWorkbooks = config.DefaultMaxOpenWorkbooks
	}
	loads := config.DefaultMaxConcurrentLoads
	if loads > maxOpenWorkbooks {
		loads = maxOpenWorkbooks
	}

	return Limits{
		MaxConcurrentRequests: maxConcurrentRequests,
		MaxOpenWorkbooks:      maxOpenWorkbooks,
		MaxConcurrentLoads:    loads,
		MaxReportsPerCall:     config.DefaultMaxReportsPerCall,
		MaxRowsPerSheet:       config.DefaultMaxRowsPerSheet,
		MaxCellsPerOp:         config.DefaultMaxCellsPerOp,
		MaxPayloadBytes:       config.DefaultMaxPayloadBytes,
		OperationTimeout:      config.DefaultOperationTimeout,
		AcquireRequestTimeout: config.DefaultAcquireRequestTimeout,
	}
}

// FromFile applies non-zero overrides from the YAML configuration.
func (l Limits) FromFile(f *config.File) Limits {
	if f == nil {
		return l
	}
	o := f.Limits
	if o.MaxConcurrentRequests > 0 {
		l.MaxConcurrentRequests = o.MaxConcurrentRequests
	}
	if o.MaxOpenWorkbooks > 0 {
		l.MaxOpenWorkbooks = o.MaxOpenWorkbooks
	}
	if o.MaxConcurrentLoads > 0 {
		l.MaxConcurrentLoads = o.MaxConcurrentLoads
	}
	if l.MaxConcurrentLoads > l.MaxOpenWorkbooks {
		l.MaxConcurrentLoads = l.MaxOpenWorkbooks
	}
	if o.MaxReportsPerCall > 0 {
		l.MaxReportsPerCall = o.MaxReportsPerCall
	}
	if o.MaxRowsPerSheet > 0 {
		l.MaxRowsPerSheet = o.MaxRowsPerSheet
	}
	if o.OperationTimeout > 0 {
		l.OperationTimeout = o.OperationTimeout
	}
	return l
}

// Controller coordinates runtime semaphores for request and workbook guardrails.
type Controller struct {
	limits            Limits
	requestSemaphore  *semaphore.Weighted
	workbookSemaphore *semaphore.Weighted
}

// NewController constructs a Controller backed by weighted semaphores.
func NewController(limits Limits) *Controller {
	return &Controller{
		limits:            limits,
		requestSemaphore:  semaphore.NewWeighted(int64(limits.MaxConcurrentRequests)),
		workbookSemaphore: semaphore.NewWeighted(int64(limits.MaxOpenWorkbooks)),
	}
}

// AcquireRequest reserves capacity for an incoming request.
func (c *Controller) AcquireRequest(ctx context.Context) error {
	return c.requestSemaphore.Acquire(ctx, 1)
}

// ReleaseRequest frees previously-acquired request capacity.
func (c *Controller) ReleaseRequest() {
	c.requestSemaphore.Release(1)
}

// AcquireWorkbook reserves an open workbook slot.
func (c *Controller) AcquireWorkbook(ctx context.Context) error {
	return c.workbookSemaphore.Acquire(ctx, 1)
}

// TryAcquireWorkbook reserves an open workbook slot without waiting.
func (c *Controller) TryAcquireWorkbook() bool {
	return c.workbookSemaphore.TryAcquire(1)
}

// ReleaseWorkbook frees an open workbook slot.
func (c *Controller) ReleaseWorkbook() {
	c.workbookSemaphore.Release(1)
}

// LimitsSnapshot exposes the configured guardrails for telemetry and discovery.
func (c *Controller) LimitsSnapshot() Limits {
	return c.limits
}
