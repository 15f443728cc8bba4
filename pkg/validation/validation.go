package validation

import (
	"encoding/base64"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/vinodismyname/branchrollup/internal/branches"
	"github.com/vinodismyname/branchrollup/pkg/pagination"
)

var (
	v    *validator.Validate
	once sync.Once
)

// Validator returns a singleton validator with custom rules registered.
func Validator() *validator.Validate {
	once.Do(func() {
		v = validator.New()
		// Report field names as clients send them (json tags), e.g. org_type.
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
		// Custom: Excel file path must have supported extension
		_ = v.RegisterValidation("filepath_ext", func(fl validator.FieldLevel) bool {
			s := strings.TrimSpace(fl.Field().String())
			if s == "" {
				return false
			}
			s = strings.ToLower(s)
			return strings.HasSuffix(s, ".xlsx") || strings.HasSuffix(s, ".xlsm") || strings.HasSuffix(s, ".xltx") || strings.HasSuffix(s, ".xltm")
		})
		// Custom: CS, LBF or SME in any case
		_ = v.RegisterValidation("org_type", func(fl validator.FieldLevel) bool {
			_, err := branches.ParseOrgType(fl.Field().String())
			return err == nil
		})
		// Custom: calendar date as YYYY-MM-DD
		_ = v.RegisterValidation("isodate", func(fl validator.FieldLevel) bool {
			s := strings.TrimSpace(fl.Field().String())
			if s == "" {
				return true // pair with required when mandatory
			}
			_, err := time.Parse(time.DateOnly, s)
			return err == nil
		})
		// Custom: cursor must be decodable via pagination.DecodeCursor
		_ = v.RegisterValidation("cursor", func(fl validator.FieldLevel) bool {
			s := strings.TrimSpace(fl.Field().String())
			if s == "" {
				return true // empty is allowed; use omitempty with this tag
			}
			if _, err := base64.RawURLEncoding.DecodeString(s); err != nil {
				return false
			}
			_, err := pagination.DecodeCursor(s)
			return err == nil
		})
	})
	return v
}

// ValidateStruct validates a struct and returns a user-friendly error string
// suitable for MCP tool errors. Returns empty string when valid.
func ValidateStruct(s any) string {
	err := Validator().Struct(s)
	if err == nil {
		return ""
	}
	ve, ok := err.(validator.ValidationErrors)
	if !ok || len(ve) == 0 {
		return "VALIDATION: invalid inputs"
	}
	fe := ve[0]
	field := strings.ToLower(fe.Field())
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("VALIDATION: %s is required", field)
	case "filepath_ext":
		return "VALIDATION: path must be an Excel file (.xlsx, .xlsm, .xltx, .xltm)"
	case "org_type":
		return "VALIDATION: org_type must be one of CS, LBF, SME"
	case "isodate":
		return fmt.Sprintf("VALIDATION: %s must be a date formatted YYYY-MM-DD", field)
	case "cursor":
		return "CURSOR_INVALID: failed to decode cursor; restart pagination from the first page"
	case "oneof":
		return fmt.Sprintf("VALIDATION: %s must be one of %s", field, fe.Param())
	case "min", "max", "gte", "lte":
		return fmt.Sprintf("VALIDATION: %s must satisfy %s=%s", field, fe.Tag(), fe.Param())
	}
	return fmt.Sprintf("VALIDATION: invalid %s", field)
}
