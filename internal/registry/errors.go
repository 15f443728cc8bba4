package registry

import (
	"context"
	"errors"
	"os"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/vinodismyname/branchrollup/internal/insights"
	"github.com/vinodismyname/branchrollup/internal/security"
	"github.com/vinodismyname/branchrollup/internal/sheets"
	"github.com/vinodismyname/branchrollup/internal/workbooks"
	"github.com/vinodismyname/branchrollup/pkg/mcperr"
	"github.com/vinodismyname/branchrollup/pkg/pagination"
)

// toolError maps an analysis error to its catalog code, falling back to
// fallback for errors without a more specific meaning.
func toolError(err error, fallback mcperr.Code) *mcp.CallToolResult {
	return mcperr.New(errorCode(err, fallback), err.Error())
}

func errorCode(err error, fallback mcperr.Code) mcperr.Code {
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return mcperr.Timeout
	case errors.Is(err, security.ErrNotAllowed):
		return mcperr.PermissionDenied
	case errors.Is(err, security.ErrUnsupportedExtension), errors.Is(err, workbooks.ErrUnsupportedFormat):
		return mcperr.UnsupportedFormat
	case errors.Is(err, security.ErrNotFound), errors.Is(err, os.ErrNotExist), errors.Is(err, os.ErrPermission):
		return mcperr.OpenFailed
	case errors.Is(err, sheets.ErrSheetNotFound):
		return mcperr.InvalidSheet
	case errors.Is(err, sheets.ErrRowLimit), errors.Is(err, sheets.ErrTooManyReports):
		return mcperr.LimitExceeded
	case errors.Is(err, sheets.ErrNoBranchColumn):
		return mcperr.LoadFailed
	case errors.Is(err, insights.ErrInvalidSelection):
		return mcperr.InvalidSelection
	case errors.Is(err, insights.ErrCursorMismatch), errors.Is(err, pagination.ErrInvalidCursor):
		return mcperr.CursorInvalid
	}
	return fallback
}
