package storage

import (
	"context"
	"errors"
	"sync/atomic"
	"time"
)

type StoreMetrics struct {
	Reads   int64 `json:"reads"`
	Misses  int64 `json:"misses"`
	Writes  int64 `json:"writes"`
	Deletes int64 `json:"deletes"`
	Errors  int64 `json:"errors"`

	StartTime int64 `json:"start_time"`
}

func NewStoreMetrics() *StoreMetrics {
	return &StoreMetrics{
		StartTime: time.Now().Unix(),
	}
}

func (m *StoreMetrics) RecordRead() {
	atomic.AddInt64(&m.Reads, 1)
}

func (m *StoreMetrics) RecordMiss() {
	atomic.AddInt64(&m.Misses, 1)
}

func (m *StoreMetrics) RecordWrite() {
	atomic.AddInt64(&m.Writes, 1)
}

func (m *StoreMetrics) RecordDelete() {
	atomic.AddInt64(&m.Deletes, 1)
}

func (m *StoreMetrics) RecordError() {
	atomic.AddInt64(&m.Errors, 1)
}

func (m *StoreMetrics) GetStats() StoreMetrics {
	return StoreMetrics{
		Reads:     atomic.LoadInt64(&m.Reads),
		Misses:    atomic.LoadInt64(&m.Misses),
		Writes:    atomic.LoadInt64(&m.Writes),
		Deletes:   atomic.LoadInt64(&m.Deletes),
		Errors:    atomic.LoadInt64(&m.Errors),
		StartTime: atomic.LoadInt64(&m.StartTime),
	}
}

// MissRate is the percentage of reads that found no value.
func (m *StoreMetrics) MissRate() float64 {
	reads := atomic.LoadInt64(&m.Reads)
	misses := atomic.LoadInt64(&m.Misses)

	if reads == 0 {
		return 0.0
	}

	return float64(misses) / float64(reads) * 100.0
}

func (m *StoreMetrics) Reset() {
	atomic.StoreInt64(&m.Reads, 0)
	atomic.StoreInt64(&m.Misses, 0)
	atomic.StoreInt64(&m.Writes, 0)
	atomic.StoreInt64(&m.Deletes, 0)
	atomic.StoreInt64(&m.Errors, 0)
	atomic.StoreInt64(&m.StartTime, time.Now().Unix())
}

// InstrumentedStore counts operations against the wrapped backend.
type InstrumentedStore struct {
	KeyValueStore
	metrics *StoreMetrics
}

func NewInstrumentedStore(inner KeyValueStore) *InstrumentedStore {
	return &InstrumentedStore{
		KeyValueStore: inner,
		metrics:       NewStoreMetrics(),
	}
}

func (s *InstrumentedStore) Get(ctx context.Context, key string) ([]byte, error) {
	s.metrics.RecordRead()
	value, err := s.KeyValueStore.Get(ctx, key)
	switch {
	case errors.Is(err, ErrNotFound):
		s.metrics.RecordMiss()
	case err != nil:
		s.metrics.RecordError()
	}
	return value, err
}

func (s *InstrumentedStore) Set(ctx context.Context, key string, value []byte) error {
	s.metrics.RecordWrite()
	err := s.KeyValueStore.Set(ctx, key, value)
	if err != nil {
		s.metrics.RecordError()
	}
	return err
}

func (s *InstrumentedStore) Delete(ctx context.Context, key string) error {
	s.metrics.RecordDelete()
	err := s.KeyValueStore.Delete(ctx, key)
	if err != nil {
		s.metrics.RecordError()
	}
	return err
}

func (s *InstrumentedStore) Metrics() *StoreMetrics {
	return s.metrics
}

// Stats merges operation counters with backend statistics when the backend
// exposes any.
func (s *InstrumentedStore) Stats() map[string]interface{} {
	stats := map[string]interface{}{
		"operations": s.metrics.GetStats(),
		"miss_rate":  s.metrics.MissRate(),
	}

	if reporter, ok := s.KeyValueStore.(interface{ Stats() map[string]interface{} }); ok {
		stats["backend"] = reporter.Stats()
	}

	return stats
}
