package progress

import (
	"bytes"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/khanglvm/maxent/internal/gis"
	"github.com/khanglvm/maxent/internal/storage"
)

type mockStore struct {
	mu      sync.Mutex
	records map[int64][]storage.IterationRecord
	calls   int
	err     error
}

func newMockStore() *mockStore {
	return &mockStore{records: map[int64][]storage.IterationRecord{}}
}

func (m *mockStore) RecordIterations(runID int64, its []storage.IterationRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return m.err
	}
	m.records[runID] = append(m.records[runID], its...)
	return nil
}

func (m *mockStore) count(runID int64) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records[runID])
}

func TestRecorderFlushesOnStop(t *testing.T) {
	store := newMockStore()
	r := NewRecorder(store, 7, nil)

	for i := 1; i <= 60; i++ {
		r.Observe(gis.IterationStats{Iteration: i, LogLikelihood: -float64(100 - i)})
	}
	r.Stop()

	if got := store.count(7); got != 60 {
		t.Fatalf("expected 60 recorded iterations, got %d", got)
	}
	recs := store.records[7]
	for i, rec := range recs {
		if rec.Iteration != i+1 {
			t.Fatalf("iterations out of order at %d: %d", i, rec.Iteration)
		}
	}

	// Stop is idempotent.
	r.Stop()
}

func TestRecorderPeriodicFlush(t *testing.T) {
	store := newMockStore()
	r := NewRecorder(store, 1, nil)
	defer r.Stop()

	r.Observe(gis.IterationStats{Iteration: 1})

	deadline := time.Now().Add(2 * time.Second)
	for store.count(1) == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if store.count(1) != 1 {
		t.Error("expected the ticker to flush a partial batch")
	}
}

func TestRecorderStoreErrors(t *testing.T) {
	store := newMockStore()
	store.err = errors.New("disk full")
	r := NewRecorder(store, 1, nil)

	r.Observe(gis.IterationStats{Iteration: 1})
	r.Stop()

	if store.calls == 0 {
		t.Error("expected a flush attempt")
	}
}

func TestMulti(t *testing.T) {
	var a, b int
	fn := Multi(func(gis.IterationStats) { a++ }, nil, func(gis.IterationStats) { b++ })
	fn(gis.IterationStats{})
	fn(gis.IterationStats{})
	if a != 2 || b != 2 {
		t.Errorf("expected both callbacks twice, got %d and %d", a, b)
	}
}

func TestPrinter(t *testing.T) {
	var buf bytes.Buffer
	p := Printer(&buf, 10)
	for i := 1; i <= 25; i++ {
		p(gis.IterationStats{Iteration: i, LogLikelihood: -1.5, Accuracy: 0.75})
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected iterations 1, 10 and 20, got %q", buf.String())
	}
	if !strings.HasPrefix(strings.TrimSpace(lines[1]), "10:") {
		t.Errorf("unexpected line %q", lines[1])
	}
	if !strings.Contains(lines[0], "-1.500000  0.7500") {
		t.Errorf("unexpected format %q", lines[0])
	}
}
