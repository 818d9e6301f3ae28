package index

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/khanglvm/maxent/internal/event"
)

func indexEvents(t *testing.T, events []event.Event, cutoff int) *Matrix {
	t.Helper()
	m, err := Index(context.Background(), event.NewSliceStream(events), cutoff)
	if err != nil {
		t.Fatalf("Index failed: %v", err)
	}
	return m
}

func TestIndexBasic(t *testing.T) {
	events := []event.Event{
		event.New("A", "x", "y"),
		event.New("B", "x", "z"),
		event.New("A", "y", "x"),
	}
	m := indexEvents(t, events, 0)

	if diff := cmp.Diff([]string{"x", "y", "z"}, m.PredLabels); diff != "" {
		t.Errorf("PredLabels mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"A", "B"}, m.OutcomeLabels); diff != "" {
		t.Errorf("OutcomeLabels mismatch (-want +got):\n%s", diff)
	}

	want := []Row{
		{Outcome: 0, Predicates: []int{0, 1}, Weight: 2},
		{Outcome: 1, Predicates: []int{0, 2}, Weight: 1},
	}
	if diff := cmp.Diff(want, m.Rows); diff != "" {
		t.Errorf("Rows mismatch (-want +got):\n%s", diff)
	}
	if m.NumEvents != 3 {
		t.Errorf("expected 3 events, got %d", m.NumEvents)
	}
	if m.MaxRowLength() != 2 {
		t.Errorf("expected max row length 2, got %d", m.MaxRowLength())
	}
}

func TestIndexDeterministic(t *testing.T) {
	events := []event.Event{
		event.New("B", "q", "r"),
		event.New("A", "r", "s", "t"),
		event.New("C", "t"),
		event.New("A", "s", "r", "t"),
		event.New("B", "r", "q"),
	}

	first := indexEvents(t, events, 0)
	for i := 0; i < 5; i++ {
		again := indexEvents(t, events, 0)
		if diff := cmp.Diff(first, again); diff != "" {
			t.Fatalf("run %d differs (-first +again):\n%s", i, diff)
		}
	}
}

func TestIndexDedupBySet(t *testing.T) {
	perms := [][]string{
		{"a", "b", "c"},
		{"c", "a", "b"},
		{"b", "c", "a"},
		{"a", "a", "b", "c"},
	}
	var events []event.Event
	for _, p := range perms {
		events = append(events, event.New("X", p...))
	}
	events = append(events, event.Repeat(event.New("X", "c", "b", "a"), 3)...)

	m := indexEvents(t, events, 0)
	if m.Len() != 1 {
		t.Fatalf("expected 1 merged row, got %d: %+v", m.Len(), m.Rows)
	}
	if m.Rows[0].Weight != 7 {
		t.Errorf("expected weight 7, got %d", m.Rows[0].Weight)
	}
	if diff := cmp.Diff([]int{0, 1, 2}, m.Rows[0].Predicates); diff != "" {
		t.Errorf("predicates mismatch (-want +got):\n%s", diff)
	}
}

func TestIndexSameSetDifferentOutcome(t *testing.T) {
	m := indexEvents(t, []event.Event{
		event.New("A", "x"),
		event.New("B", "x"),
	}, 0)
	if m.Len() != 2 {
		t.Errorf("rows with different outcomes must not merge, got %d rows", m.Len())
	}
}

func TestIndexCutoff(t *testing.T) {
	events := []event.Event{
		event.New("A", "common", "rare"),
		event.New("A", "common", "medium"),
		event.New("B", "common", "medium"),
		event.New("B", "lonely"),
	}

	tests := []struct {
		cutoff    int
		wantPreds []string
		wantRows  int
	}{
		{0, []string{"common", "rare", "medium", "lonely"}, 4},
		{1, []string{"common", "rare", "medium", "lonely"}, 4},
		{2, []string{"common", "medium"}, 3},
		{3, []string{"common"}, 2},
		{4, nil, 0},
	}

	for _, tt := range tests {
		m := indexEvents(t, events, tt.cutoff)
		if diff := cmp.Diff(tt.wantPreds, m.PredLabels); diff != "" {
			t.Errorf("cutoff %d: PredLabels mismatch (-want +got):\n%s", tt.cutoff, diff)
		}
		if m.Len() != tt.wantRows {
			t.Errorf("cutoff %d: expected %d rows, got %d", tt.cutoff, tt.wantRows, m.Len())
		}
	}
}

func TestIndexCutoffCountsAcrossEvents(t *testing.T) {
	// "p" reaches the cutoff on the third event; earlier occurrences still count.
	events := []event.Event{
		event.New("A", "p", "q"),
		event.New("A", "p", "q"),
		event.New("B", "p"),
	}
	m := indexEvents(t, events, 3)
	if diff := cmp.Diff([]string{"p"}, m.PredLabels); diff != "" {
		t.Errorf("PredLabels mismatch (-want +got):\n%s", diff)
	}
	for _, r := range m.Rows {
		for _, id := range r.Predicates {
			if id != 0 {
				t.Errorf("only predicate 0 should survive, row has %v", r.Predicates)
			}
		}
	}
}

func TestIndexDropsEmptyRows(t *testing.T) {
	events := []event.Event{
		event.New("A", "x"),
		event.New("A", "x"),
		event.New("B", "y"),
		event.New("C"),
	}
	m := indexEvents(t, events, 2)

	if m.Len() != 1 {
		t.Fatalf("expected 1 row, got %d: %+v", m.Len(), m.Rows)
	}
	if m.Dropped != 2 {
		t.Errorf("expected 2 dropped events, got %d", m.Dropped)
	}
	// Outcomes of dropped events still receive ids.
	if diff := cmp.Diff([]string{"A", "B", "C"}, m.OutcomeLabels); diff != "" {
		t.Errorf("OutcomeLabels mismatch (-want +got):\n%s", diff)
	}
}

func TestIndexEmptyStream(t *testing.T) {
	m := indexEvents(t, nil, 0)
	if m.Len() != 0 || m.NumPredicates() != 0 || m.NumOutcomes() != 0 {
		t.Errorf("expected empty matrix, got %+v", m)
	}
}

func TestIndexOrder(t *testing.T) {
	events := []event.Event{
		event.New("A", "b", "c"),
		event.New("A", "a"),
		event.New("A", "a", "b"),
	}
	m := indexEvents(t, events, 0)

	// ids: b=0 c=1 a=2. Rows sort lexicographically, shorter prefix first.
	want := [][]int{{0, 1}, {0, 2}, {2}}
	if diff := cmp.Diff(want, m.Contexts()); diff != "" {
		t.Errorf("Contexts mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]int{0, 0, 0}, m.Outcomes()); diff != "" {
		t.Errorf("Outcomes mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]int{1, 1, 1}, m.Weights()); diff != "" {
		t.Errorf("Weights mismatch (-want +got):\n%s", diff)
	}
}

type failingStream struct{ err error }

func (f failingStream) Next() (event.Event, error) { return event.Event{}, f.err }

func TestIndexStreamError(t *testing.T) {
	boom := errors.New("boom")
	_, err := Index(context.Background(), failingStream{err: boom}, 0)
	if !errors.Is(err, boom) {
		t.Errorf("expected wrapped stream error, got %v", err)
	}
}

func TestIndexCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Index(ctx, event.NewSliceStream(event.Repeat(event.New("A", "x"), 10)), 0)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestIndexNegativeCutoff(t *testing.T) {
	if _, err := Index(context.Background(), event.NewSliceStream(nil), -1); err == nil {
		t.Error("expected error for negative cutoff")
	}
}
