package runtime

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/vinodismyname/branchrollup/config"
)

func TestControllerAcquireRelease(t *testing.T) {
	limits := NewLimits(1, 1)
	controller := NewController(limits)

	require.Equal(t, limits, controller.LimitsSnapshot())

	require.NoError(t, controller.AcquireRequest(context.Background()))
	controller.ReleaseRequest()

	require.True(t, controller.TryAcquireWorkbook())
	require.False(t, controller.TryAcquireWorkbook())
	controller.ReleaseWorkbook()

	require.NoError(t, controller.AcquireWorkbook(context.Background()))
	controller.ReleaseWorkbook()
}

func TestNewLimits_LoadsBoundedByOpenWorkbooks(t *testing.T) {
	limits := NewLimits(0, 2)
	require.Equal(t, config.DefaultMaxConcurrentRequests, limits.MaxConcurrentRequests)
	require.Equal(t, 2, limits.MaxConcurrentLoads)
}

func TestLimits_FromFile(t *testing.T) {
	f := &config.File{}
	f.Limits.MaxOpenWorkbooks = 3
	f.Limits.MaxConcurrentLoads = 16
	f.Limits.MaxReportsPerCall = 12
	f.Limits.OperationTimeout = 5 * time.Second

	l := NewLimits(0, 0).FromFile(f)
	require.Equal(t, 3, l.MaxOpenWorkbooks)
	require.Equal(t, 3, l.MaxConcurrentLoads)
	require.Equal(t, 12, l.MaxReportsPerCall)
	require.Equal(t, 5*time.Second, l.OperationTimeout)
	require.Equal(t, config.DefaultMaxRowsPerSheet, l.MaxRowsPerSheet)

	require.Equal(t, NewLimits(0, 0), NewLimits(0, 0).FromFile(nil))
}
