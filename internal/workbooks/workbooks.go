package workbooks

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/vinodismyname/branchrollup/config"
	"github.com/xuri/excelize/v2"
)

// Handle is an open report workbook paired with metadata for TTL eviction.
// ModTime is the file's modification time when it was opened; a newer file on
// disk replaces the handle on the next lookup.
type Handle struct {
	ID       string
	Path     string
	ModTime  time.Time
	File     *excelize.File
	LoadedAt time.Time

	// expires holds the expiry as unix nanoseconds. It is refreshed without mu
	// so lookups never wait on readers.
	expires atomic.Int64
	// mu guards File: readers share it, Close takes it exclusively.
	mu sync.RWMutex
}

// WorkbookGate coordinates capacity for open workbook handles (backed by runtime.Controller).
type WorkbookGate interface {
	AcquireWorkbook(ctx context.Context) error
	TryAcquireWorkbook() bool
	ReleaseWorkbook()
}

// PathValidator abstracts filesystem path validation. Implementations should
// return a canonical absolute path if allowed, or an error when denied.
type PathValidator interface {
	ValidateOpenPath(path string) (string, error)
}

// ErrHandleNotFound indicates an unknown or expired handle ID.
var ErrHandleNotFound = errors.New("workbooks: handle not found")

// ErrUnsupportedFormat indicates a path whose extension is not a workbook format.
var ErrUnsupportedFormat = errors.New("workbooks: unsupported format")

// Manager caches open report workbooks keyed by canonical path, so repeated
// calls over the same report set reuse parsed files.
type Manager struct {
	mu           sync.RWMutex
	handles      map[string]*Handle
	byPath       map[string]string
	ttl          time.Duration
	cleanupEvery time.Duration
	clock        func() time.Time
	gate         WorkbookGate
	validator    PathValidator
	stopCh       chan struct{}
	stopOnce     sync.Once
	cleanupWG    sync.WaitGroup
}

// NewManager constructs a workbook cache with TTL-bearing handles.
// Pass ttl or cleanupEvery <= 0 to use defaults from config.
// Gate and validator can be nil for tests; clock defaults to time.Now when nil.
func NewManager(ttl, cleanupEvery time.Duration, gate WorkbookGate, validator PathValidator, clock func() time.Time) *Manager {
	if ttl <= 0 {
		ttl = config.DefaultWorkbookIdleTTL
	}
	if cleanupEvery <= 0 {
		cleanupEvery = config.DefaultWorkbookCleanupPeriod
	}
	if clock == nil {
		clock = time.Now
	}
	return &Manager{
		handles:      make(map[string]*Handle),
		byPath:       make(map[string]string),
		ttl:          ttl,
		cleanupEvery: cleanupEvery,
		clock:        clock,
		gate:         gate,
		validator:    validator,
		stopCh:       make(chan struct{}),
	}
}

// Start launches periodic eviction of expired handles.
func (m *Manager) Start() {
	m.cleanupWG.Add(1)
	ticker := time.NewTicker(m.cleanupEvery)
	go func() {
		defer m.cleanupWG.Done()
		defer ticker.Stop()
		for {
			select {
			case <-m.stopCh:
				return
			case <-ticker.C:
				m.EvictExpired()
			}
		}
	}()
}

// Close stops background cleanup and closes all open handles.
func (m *Manager) Close(ctx context.Context) error {
	m.stopOnce.Do(func() { close(m.stopCh) })
	done := make(chan struct{})
	go func() { m.cleanupWG.Wait(); close(done) }()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for id, h := range m.handles {
		h.mu.Lock()
		_ = h.File.Close()
		h.mu.Unlock()
		delete(m.handles, id)
		delete(m.byPath, h.Path)
		m.release()
	}
	return nil
}

// GetOrOpenByPath returns the cached handle for a report path, opening it when
// absent or when the file changed on disk since it was cached. The returned
// path is the canonical one used as the cache key.
func (m *Manager) GetOrOpenByPath(ctx context.Context, path string) (string, string, error) {
	canonical, err := m.canonicalize(path)
	if err != nil {
		return "", "", err
	}
	info, err := os.Stat(canonical)
	if err != nil {
		return "", "", fmt.Errorf("workbooks: stat %s: %w", canonical, err)
	}

	m.mu.RLock()
	id, ok := m.byPath[canonical]
	m.mu.RUnlock()
	if ok {
		if h, ok := m.Get(id); ok {
			if !info.ModTime().After(h.ModTime) {
				return id, canonical, nil
			}
			// stale copy; drop it and reopen below
			_ = m.CloseHandle(ctx, id)
		}
	}

	id, err = m.open(ctx, canonical, info.ModTime())
	if err != nil {
		return "", "", err
	}
	return id, canonical, nil
}

// Open opens a workbook from the given path and registers a new handle, bypassing the path cache.
func (m *Manager) Open(ctx context.Context, path string) (string, error) {
	canonical, err := m.canonicalize(path)
	if err != nil {
		return "", err
	}
	return m.open(ctx, canonical, time.Time{})
}

func (m *Manager) canonicalize(path string) (string, error) {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".xlsx", ".xlsm", ".xltx", ".xltm":
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
	if m.validator != nil {
		return m.validator.ValidateOpenPath(path)
	}
	return filepath.Abs(path)
}

func (m *Manager) open(ctx context.Context, canonical string, modTime time.Time) (string, error) {
	if err := m.acquire(ctx); err != nil {
		return "", err
	}
	f, err := excelize.OpenFile(canonical)
	if err != nil {
		m.release()
		return "", err
	}
	h, err := m.newHandle(f, canonical, modTime)
	if err != nil {
		_ = f.Close()
		m.release()
		return "", err
	}

	m.mu.Lock()
	if prev, ok := m.byPath[canonical]; ok && canonical != "" {
		// a concurrent caller opened the same path first; keep theirs
		m.mu.Unlock()
		_ = f.Close()
		m.release()
		return prev, nil
	}
	m.handles[h.ID] = h
	if canonical != "" {
		m.byPath[canonical] = h.ID
	}
	m.mu.Unlock()
	return h.ID, nil
}

// Adopt registers an existing excelize.File as a managed handle without a path.
func (m *Manager) Adopt(ctx context.Context, f *excelize.File) (string, error) {
	if f == nil {
		return "", fmt.Errorf("workbooks: nil file")
	}
	if err := m.acquire(ctx); err != nil {
		return "", err
	}
	h, err := m.newHandle(f, "", time.Time{})
	if err != nil {
		m.release()
		return "", err
	}
	m.mu.Lock()
	m.handles[h.ID] = h
	m.mu.Unlock()
	return h.ID, nil
}

func (m *Manager) newHandle(f *excelize.File, path string, modTime time.Time) (*Handle, error) {
	if f == nil {
		return nil, fmt.Errorf("workbooks: nil excelize file")
	}
	loadedAt := m.clock()
	h := &Handle{
		ID:       uuid.NewString(),
		Path:     path,
		ModTime:  modTime,
		File:     f,
		LoadedAt: loadedAt,
	}
	h.expires.Store(loadedAt.Add(m.ttl).UnixNano())
	return h, nil
}

// Get returns the handle when present and refreshes its TTL.
func (m *Manager) Get(id string) (*Handle, bool) {
	m.mu.RLock()
	h, ok := m.handles[id]
	m.mu.RUnlock()
	if !ok {
		return nil, false
	}
	h.expires.Store(m.clock().Add(m.ttl).UnixNano())
	return h, true
}

// WithRead obtains a shared read lock for the handle and executes fn.
func (m *Manager) WithRead(id string, fn func(*excelize.File) error) error {
	h, ok := m.Get(id)
	if !ok {
		return ErrHandleNotFound
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	return fn(h.File)
}

// CloseHandle closes and removes a handle by ID, releasing capacity via the gate.
func (m *Manager) CloseHandle(ctx context.Context, id string) error {
	m.mu.Lock()
	h, ok := m.handles[id]
	if ok {
		delete(m.handles, id)
		if h.Path != "" && m.byPath[h.Path] == id {
			delete(m.byPath, h.Path)
		}
	}
	m.mu.Unlock()
	if !ok {
		return ErrHandleNotFound
	}
	// wait for readers inside the workbook
	h.mu.Lock()
	err := h.File.Close()
	h.mu.Unlock()
	m.release()
	return err
}

// EvictExpired scans for expired handles and closes them.
func (m *Manager) EvictExpired() {
	now := m.clock()
	var expired []string

	m.mu.RLock()
	for id, h := range m.handles {
		if h.Expired(now) {
			expired = append(expired, id)
		}
	}
	m.mu.RUnlock()

	for _, id := range expired {
		_ = m.CloseHandle(context.Background(), id)
	}
}

// evictIdle closes the least recently used handle that no reader holds.
func (m *Manager) evictIdle() bool {
	var victim *Handle
	var victimExp int64
	m.mu.RLock()
	for _, h := range m.handles {
		if !h.mu.TryLock() {
			continue
		}
		exp := h.expires.Load()
		h.mu.Unlock()
		if victim == nil || exp < victimExp {
			victim, victimExp = h, exp
		}
	}
	m.mu.RUnlock()
	if victim == nil {
		return false
	}
	return m.CloseHandle(context.Background(), victim.ID) == nil
}

// Count returns the current number of cached handles.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.handles)
}

// acquire takes an open-workbook slot. When the gate is full, the least
// recently used idle handle is evicted before waiting.
func (m *Manager) acquire(ctx context.Context) error {
	if m.gate == nil {
		return nil
	}
	if m.gate.TryAcquireWorkbook() {
		return nil
	}
	m.evictIdle()
	return m.gate.AcquireWorkbook(ctx)
}

func (m *Manager) release() {
	if m.gate == nil {
		return
	}
	m.gate.ReleaseWorkbook()
}

// ExpiresAt returns when the handle becomes eligible for eviction.
func (h *Handle) ExpiresAt() time.Time {
	return time.Unix(0, h.expires.Load())
}

// Expired reports whether the handle has reached its TTL.
func (h *Handle) Expired(now time.Time) bool {
	return now.After(h.ExpiresAt())
}
