package validation

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vinodismyname/branchrollup/pkg/pagination"
)

type sample struct {
	Path    string `json:"path" validate:"required,filepath_ext"`
	OrgType string `json:"org_type" validate:"required,org_type"`
	Date    string `json:"date" validate:"required,isodate"`
	From    string `json:"from,omitempty" validate:"omitempty,isodate"`
	Cursor  string `json:"cursor,omitempty" validate:"omitempty,cursor"`
	Gran    string `json:"granularity,omitempty" validate:"omitempty,oneof=daily monthly"`
}

func valid() sample {
	return sample{Path: "/reports/jan.xlsx", OrgType: "cs", Date: "2024-01-31"}
}

func TestValidateStruct_OK(t *testing.T) {
	s := valid()
	tok, err := pagination.EncodeCursor(pagination.Cursor{Ds: "d", Sel: "s", Ps: 10})
	require.NoError(t, err)
	s.Cursor = tok
	s.Gran = "monthly"
	require.Empty(t, ValidateStruct(s))
}

func TestValidateStruct_Messages(t *testing.T) {
	cases := []struct {
		mut  func(*sample)
		want string
	}{
		{func(s *sample) { s.Path = "" }, "VALIDATION: path is required"},
		{func(s *sample) { s.Path = "report.csv" }, "VALIDATION: path must be an Excel file (.xlsx, .xlsm, .xltx, .xltm)"},
		{func(s *sample) { s.OrgType = "RETAIL" }, "VALIDATION: org_type must be one of CS, LBF, SME"},
		{func(s *sample) { s.Date = "31/01/2024" }, "VALIDATION: date must be a date formatted YYYY-MM-DD"},
		{func(s *sample) { s.From = "2024-13-01" }, "VALIDATION: from must be a date formatted YYYY-MM-DD"},
		{func(s *sample) { s.Cursor = "!!!" }, "CURSOR_INVALID: failed to decode cursor; restart pagination from the first page"},
		{func(s *sample) { s.Gran = "weekly" }, "VALIDATION: granularity must be one of daily monthly"},
	}
	for _, c := range cases {
		s := valid()
		c.mut(&s)
		require.Equal(t, c.want, ValidateStruct(s))
	}
}
