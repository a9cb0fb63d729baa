package geometry

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/GRID-datagroup/GRID-Data-tools/internal/hia"
	"github.com/GRID-datagroup/GRID-Data-tools/internal/metrics"
)

// Dataset is a fully built service published for readers.
type Dataset struct {
	Service  *Service
	Detector string
	Normal   [3]float64 // detector axis in the body frame
	Grid     *hia.Index // SAA grid behind the occupancy flags
	Source   string
	LoadedAt time.Time
}

// Store provides thread-safe access to the current dataset.
type Store struct {
	dataset atomic.Pointer[Dataset]
	mu      sync.Mutex // serializes reloads
}

// NewStore creates a new empty Store.
func NewStore() *Store {
	return &Store{}
}

// Get returns the current dataset, or nil if none has been published.
func (s *Store) Get() *Dataset {
	return s.dataset.Load()
}

// Set atomically replaces the current dataset. ds must be fully built.
func (s *Store) Set(ds *Dataset) {
	s.dataset.Store(ds)
}

// Ready reports whether a dataset has been published.
func (s *Store) Ready() bool {
	return s.dataset.Load() != nil
}

// AgeSeconds returns the age of the current dataset in seconds.
// Returns -1 if no dataset is loaded.
func (s *Store) AgeSeconds() float64 {
	ds := s.dataset.Load()
	if ds == nil {
		return -1
	}
	return time.Since(ds.LoadedAt).Seconds()
}

// Reload runs build and publishes its result. Concurrent reloads are
// serialized; on error the current dataset stays published.
func (s *Store) Reload(ctx context.Context, build func(context.Context) (*Dataset, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ds, err := build(ctx)
	if err != nil {
		return err
	}
	if ds.LoadedAt.IsZero() {
		ds.LoadedAt = time.Now()
	}
	s.dataset.Store(ds)

	bank := ds.Service.Bank()
	metrics.SetDataset(bank.Samples(), bank.Start(), bank.End())
	metrics.SetDatasetAge(0)
	return nil
}
