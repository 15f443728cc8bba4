package security

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/vinodismyname/branchrollup/config"
)

// ReportExtensions are the workbook formats reports may be uploaded as.
var ReportExtensions = []string{".xlsx", ".xlsm", ".xltx", ".xltm"}

// Manager enforces the report directory allow-list. It stores canonical
// absolute roots and validates that requested report paths live under one of
// them with a supported extension.
type Manager struct {
	allowedDirs []string
	allowedExts map[string]struct{}
}

// ErrNotAllowed indicates the requested path is outside the allow-list roots.
var ErrNotAllowed = errors.New("security: path not allowed")

// ErrUnsupportedExtension indicates the requested file extension is not supported.
var ErrUnsupportedExtension = errors.New("security: unsupported file extension")

// ErrNotFound indicates the requested file does not exist or is not accessible.
var ErrNotFound = errors.New("security: file not found")

// NewManager constructs a security manager given an allow-list of directories
// and a list of allowed file extensions (case-insensitive, with leading dot).
// Directories are canonicalized (absolute + EvalSymlinks) and validated.
func NewManager(allowDirs []string, allowedExtensions []string) (*Manager, error) {
	if len(allowedExtensions) == 0 {
		allowedExtensions = ReportExtensions
	}

	exts := make(map[string]struct{}, len(allowedExtensions))
	for _, e := range allowedExtensions {
		e = strings.ToLower(strings.TrimSpace(e))
		if e == "" || !strings.HasPrefix(e, ".") {
			return nil, fmt.Errorf("security: invalid extension: %q", e)
		}
		exts[e] = struct{}{}
	}

	canonical := make([]string, 0, len(allowDirs))
	for _, d := range allowDirs {
		d = strings.TrimSpace(d)
		if d == "" {
			continue
		}
		real, err := realPath(d)
		if err != nil {
			return nil, err
		}
		info, err := os.Stat(real)
		if err != nil {
			return nil, fmt.Errorf("security: stat %q: %w", real, err)
		}
		if !info.IsDir() {
			return nil, fmt.Errorf("security: allow-list entry is not a directory: %q", real)
		}
		canonical = append(canonical, filepath.Clean(real))
	}

	return &Manager{allowedDirs: canonical, allowedExts: exts}, nil
}

// NewManagerFromEnv constructs a Manager from BRANCHROLLUP_ALLOWED_DIRS, a path
// list separated by os.PathListSeparator. An unset variable yields an empty
// allow-list (deny-by-default).
func NewManagerFromEnv() (*Manager, error) {
	var dirs []string
	if list := os.Getenv(config.EnvAllowedDirs); list != "" {
		dirs = filepath.SplitList(list)
	}
	return NewManager(dirs, nil)
}

// AllowedDirectories returns the canonical allow-list roots.
func (m *Manager) AllowedDirectories() []string {
	out := make([]string, len(m.allowedDirs))
	copy(out, m.allowedDirs)
	return out
}

// ValidateConfig returns an error when no allow-list entries are configured,
// so the server refuses to start without an explicit report directory.
func (m *Manager) ValidateConfig() error {
	if len(m.allowedDirs) == 0 {
		return fmt.Errorf("security: no allowed directories configured (set %s)", config.EnvAllowedDirs)
	}
	return nil
}

// ValidateOpenPath ensures the input path refers to an existing report file with
// an allowed extension inside one of the allow-list directories. It returns the
// canonical absolute path suitable for opening and for cache keys.
func (m *Manager) ValidateOpenPath(input string) (string, error) {
	if strings.TrimSpace(input) == "" {
		return "", ErrNotAllowed
	}
	ext := strings.ToLower(filepath.Ext(input))
	if _, ok := m.allowedExts[ext]; !ok {
		return "", ErrUnsupportedExtension
	}

	real, err := realPath(input)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", ErrNotFound
		}
		return "", err
	}
	info, err := os.Stat(real)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("security: stat: %w", err)
	}
	if info.IsDir() {
		return "", ErrNotAllowed
	}

	for _, root := range m.allowedDirs {
		if within(root, real) {
			return real, nil
		}
	}
	return "", ErrNotAllowed
}

// realPath makes p absolute and resolves symlinks so links cannot escape a root.
func realPath(p string) (string, error) {
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", fmt.Errorf("security: resolve abs for %q: %w", p, err)
	}
	real, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return "", fmt.Errorf("security: eval symlinks for %q: %w", abs, err)
	}
	return real, nil
}

// within reports whether path is strictly below root.
func within(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil || rel == "." || rel == "" {
		return false
	}
	rel = filepath.Clean(rel)
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
