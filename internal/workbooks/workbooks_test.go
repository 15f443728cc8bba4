package workbooks

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

// fakeGate implements WorkbookGate for tests with counters and a capacity.
type fakeGate struct {
	acquireErr error
	capacity   int64
	held       atomic.Int64
	acquires   atomic.Int64
	releases   atomic.Int64
}

func (g *fakeGate) AcquireWorkbook(ctx context.Context) error {
	g.acquires.Add(1)
	if g.acquireErr != nil {
		return g.acquireErr
	}
	g.held.Add(1)
	return nil
}

func (g *fakeGate) TryAcquireWorkbook() bool {
	if g.acquireErr != nil {
		return false
	}
	if g.capacity > 0 && g.held.Load() >= g.capacity {
		return false
	}
	g.acquires.Add(1)
	g.held.Add(1)
	return true
}

func (g *fakeGate) ReleaseWorkbook() {
	g.releases.Add(1)
	g.held.Add(-1)
}

func writeReport(t *testing.T, dir, name string, branch string) string {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	require.NoError(t, f.SetCellValue("Sheet1", "A1", "Branch"))
	require.NoError(t, f.SetCellValue("Sheet1", "A2", branch))
	path := filepath.Join(dir, name)
	require.NoError(t, f.SaveAs(path))
	return path
}

func TestAdoptGetClose(t *testing.T) {
	gate := &fakeGate{}
	m := NewManager(2*time.Second, time.Second, gate, nil, time.Now)

	id, err := m.Adopt(context.Background(), excelize.NewFile())
	require.NoError(t, err)
	require.NotEmpty(t, id)
	require.Equal(t, int64(1), gate.acquires.Load())
	require.Equal(t, 1, m.Count())

	h, ok := m.Get(id)
	require.True(t, ok)
	require.Equal(t, id, h.ID)

	require.NoError(t, m.CloseHandle(context.Background(), id))
	require.Equal(t, 0, m.Count())
	require.Equal(t, int64(1), gate.releases.Load())
	require.ErrorIs(t, m.CloseHandle(context.Background(), id), ErrHandleNotFound)
}

func TestTTLExpiryAndEviction(t *testing.T) {
	var now atomic.Int64
	now.Store(time.Now().UnixNano())
	clock := func() time.Time { return time.Unix(0, now.Load()) }

	gate := &fakeGate{}
	m := NewManager(50*time.Millisecond, 5*time.Millisecond, gate, nil, clock)

	_, err := m.Adopt(context.Background(), excelize.NewFile())
	require.NoError(t, err)
	require.Equal(t, 1, m.Count())

	now.Store(time.Now().Add(200 * time.Millisecond).UnixNano())
	m.EvictExpired()

	require.Equal(t, 0, m.Count())
	require.Equal(t, int64(1), gate.releases.Load())
}

func TestGetOrOpenByPath_ReusesHandle(t *testing.T) {
	dir := t.TempDir()
	path := writeReport(t, dir, "2024-01-01.xlsx", "Mbeya")
	gate := &fakeGate{}
	m := NewManager(time.Minute, time.Minute, gate, nil, time.Now)
	defer m.Close(context.Background())

	id1, canonical, err := m.GetOrOpenByPath(context.Background(), path)
	require.NoError(t, err)
	require.True(t, filepath.IsAbs(canonical))
	id2, _, err := m.GetOrOpenByPath(context.Background(), path)
	require.NoError(t, err)
	require.Equal(t, id1, id2)
	require.Equal(t, 1, m.Count())
	require.Equal(t, int64(1), gate.acquires.Load())

	var got string
	require.NoError(t, m.WithRead(id1, func(f *excelize.File) error {
		v, err := f.GetCellValue("Sheet1", "A2")
		got = v
		return err
	}))
	require.Equal(t, "Mbeya", got)
}

func TestGetOrOpenByPath_ReopensChangedFile(t *testing.T) {
	dir := t.TempDir()
	path := writeReport(t, dir, "report.xlsx", "Mbeya")
	m := NewManager(time.Minute, time.Minute, nil, nil, time.Now)
	defer m.Close(context.Background())

	id1, _, err := m.GetOrOpenByPath(context.Background(), path)
	require.NoError(t, err)

	writeReport(t, dir, "report.xlsx", "Arusha")
	future := time.Now().Add(time.Hour)
	require.NoError(t, os.Chtimes(path, future, future))

	id2, _, err := m.GetOrOpenByPath(context.Background(), path)
	require.NoError(t, err)
	require.NotEqual(t, id1, id2)
	require.Equal(t, 1, m.Count())

	require.NoError(t, m.WithRead(id2, func(f *excelize.File) error {
		v, err := f.GetCellValue("Sheet1", "A2")
		require.Equal(t, "Arusha", v)
		return err
	}))
	require.ErrorIs(t, m.WithRead(id1, func(*excelize.File) error { return nil }), ErrHandleNotFound)
}

func TestGetOrOpenByPath_EvictsIdleWhenFull(t *testing.T) {
	dir := t.TempDir()
	a := writeReport(t, dir, "a.xlsx", "A")
	b := writeReport(t, dir, "b.xlsx", "B")
	gate := &fakeGate{capacity: 1}
	m := NewManager(time.Minute, time.Minute, gate, nil, time.Now)
	defer m.Close(context.Background())

	_, _, err := m.GetOrOpenByPath(context.Background(), a)
	require.NoError(t, err)
	_, _, err = m.GetOrOpenByPath(context.Background(), b)
	require.NoError(t, err)
	require.Equal(t, 1, m.Count())
	require.Equal(t, int64(1), gate.releases.Load())
}

func TestConcurrentReaders(t *testing.T) {
	m := NewManager(time.Second, time.Second, nil, nil, time.Now)
	id, err := m.Adopt(context.Background(), excelize.NewFile())
	require.NoError(t, err)

	var wg sync.WaitGroup
	var inside atomic.Int64
	var peak atomic.Int64
	release := make(chan struct{})
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = m.WithRead(id, func(*excelize.File) error {
				n := inside.Add(1)
				for {
					p := peak.Load()
					if n <= p || peak.CompareAndSwap(p, n) {
						break
					}
				}
				<-release
				inside.Add(-1)
				return nil
			})
		}()
	}
	require.Eventually(t, func() bool { return peak.Load() == 3 }, time.Second, 5*time.Millisecond)
	close(release)
	wg.Wait()
}

// holdReader keeps a read lock on id until the returned func is called.
func holdReader(t *testing.T, m *Manager, id string) func() {
	t.Helper()
	entered := make(chan struct{})
	release := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = m.WithRead(id, func(*excelize.File) error {
			close(entered)
			<-release
			return nil
		})
	}()
	select {
	case <-entered:
	case <-time.After(time.Second):
		t.Fatal("reader did not start")
	}
	return func() { close(release); <-done }
}

func TestGet_RefreshesWhileReaderHolds(t *testing.T) {
	var now atomic.Int64
	start := time.Date(2024, 1, 5, 9, 0, 0, 0, time.UTC)
	now.Store(start.UnixNano())
	clock := func() time.Time { return time.Unix(0, now.Load()) }
	m := NewManager(time.Minute, time.Minute, nil, nil, clock)

	id, err := m.Adopt(context.Background(), excelize.NewFile())
	require.NoError(t, err)
	done := holdReader(t, m, id)
	defer done()

	now.Store(start.Add(30 * time.Second).UnixNano())
	got := make(chan *Handle, 1)
	go func() {
		h, _ := m.Get(id)
		got <- h
	}()
	select {
	case h := <-got:
		require.NotNil(t, h)
		require.True(t, h.ExpiresAt().Equal(start.Add(90*time.Second)))
		require.False(t, h.Expired(start.Add(80*time.Second)))
	case <-time.After(time.Second):
		t.Fatal("Get blocked behind a reader")
	}
}

func TestEvictIdle_SkipsBusyAndPicksOldest(t *testing.T) {
	var now atomic.Int64
	start := time.Date(2024, 1, 5, 9, 0, 0, 0, time.UTC)
	now.Store(start.UnixNano())
	clock := func() time.Time { return time.Unix(0, now.Load()) }
	gate := &fakeGate{}
	m := NewManager(time.Minute, time.Minute, gate, nil, clock)

	ids := make([]string, 3)
	for i := range ids {
		now.Store(start.Add(time.Duration(i) * time.Second).UnixNano())
		id, err := m.Adopt(context.Background(), excelize.NewFile())
		require.NoError(t, err)
		ids[i] = id
	}

	// the oldest handle is in use, so the next oldest goes
	done := holdReader(t, m, ids[0])
	require.True(t, m.evictIdle())
	done()

	_, ok := m.Get(ids[0])
	require.True(t, ok)
	_, ok = m.Get(ids[1])
	require.False(t, ok)
	_, ok = m.Get(ids[2])
	require.True(t, ok)
	require.Equal(t, int64(1), gate.releases.Load())

	// nothing to evict while every handle is read
	m2 := NewManager(time.Minute, time.Minute, nil, nil, clock)
	id, err := m2.Adopt(context.Background(), excelize.NewFile())
	require.NoError(t, err)
	done = holdReader(t, m2, id)
	require.False(t, m2.evictIdle())
	done()
}

func TestOpen_UnsupportedFormat(t *testing.T) {
	gate := &fakeGate{}
	m := NewManager(time.Second, time.Second, gate, nil, time.Now)

	_, err := m.Open(context.Background(), "not_excel.txt")
	require.ErrorIs(t, err, ErrUnsupportedFormat)
	require.Equal(t, int64(0), gate.acquires.Load())
}

func TestOpen_GateBusy(t *testing.T) {
	gate := &fakeGate{acquireErr: context.DeadlineExceeded}
	m := NewManager(time.Second, time.Second, gate, nil, time.Now)

	path := writeReport(t, t.TempDir(), "sheet.xlsx", "A")
	_, err := m.Open(context.Background(), path)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Equal(t, 0, m.Count())
}

type denyValidator struct{}

func (denyValidator) ValidateOpenPath(string) (string, error) { return "", os.ErrPermission }

func TestGetOrOpenByPath_ValidatorDenies(t *testing.T) {
	m := NewManager(time.Second, time.Second, nil, denyValidator{}, time.Now)
	_, _, err := m.GetOrOpenByPath(context.Background(), "/etc/report.xlsx")
	require.ErrorIs(t, err, os.ErrPermission)
}

func TestCloseStopsCleanup(t *testing.T) {
	gate := &fakeGate{}
	m := NewManager(time.Minute, 5*time.Millisecond, gate, nil, time.Now)
	m.Start()
	_, err := m.Adopt(context.Background(), excelize.NewFile())
	require.NoError(t, err)

	require.NoError(t, m.Close(context.Background()))
	require.Equal(t, 0, m.Count())
	require.Equal(t, int64(1), gate.releases.Load())
}
