package insights

import (
	"sync"
	"time"

	"github.com/vinodismyname/branchrollup/internal/rollup"
)

// Dataset is a hierarchy built from one report set, identified by a
// fingerprint of the report references and file modification times.
type Dataset struct {
	Key       string
	Hierarchy *rollup.Hierarchy
	Reports   int
	CreatedAt time.Time
	UsedAt    time.Time
}

// DatasetStore is an in-memory cache of built datasets so paging and repeated
// tool calls over the same report set skip reloading. It is not persisted and
// is safe for concurrent access.
type DatasetStore struct {
	mu      sync.Mutex
	sets    map[string]*Dataset
	maxKeep int
	clock   func() time.Time
}

func NewDatasetStore(maxKeep int) *DatasetStore {
	if maxKeep <= 0 {
		maxKeep = 8
	}
	return &DatasetStore{
		sets:    make(map[string]*Dataset),
		maxKeep: maxKeep,
		clock:   time.Now,
	}
}

func (s *DatasetStore) Get(key string) (*Dataset, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.sets[key]
	if ok {
		d.UsedAt = s.clock()
	}
	return d, ok
}

// Put stores d, dropping the least recently used datasets beyond capacity.
func (s *DatasetStore) Put(d *Dataset) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.clock()
	if d.CreatedAt.IsZero() {
		d.CreatedAt = now
	}
	d.UsedAt = now
	s.sets[d.Key] = d
	for len(s.sets) > s.maxKeep {
		var oldest *Dataset
		for _, c := range s.sets {
			if c.Key == d.Key {
				continue
			}
			if oldest == nil || c.UsedAt.Before(oldest.UsedAt) {
				oldest = c
			}
		}
		delete(s.sets, oldest.Key)
	}
}

func (s *DatasetStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sets)
}
