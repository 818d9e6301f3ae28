/*
Package index compresses a stream of events into a deduplicated training matrix.

Indexing runs in three passes:
 1. Count every predicate, assigning an id the moment its running count reaches
    the cutoff, while buffering the events.
 2. Map each buffered event to an outcome id and a sorted set of surviving
    predicate ids. Events with no surviving predicates are dropped.
 3. Sort the rows and merge identical ones, summing their weights.
*/
package index

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"

	"github.com/khanglvm/maxent/internal/event"
)

// cancelCheckInterval is how many events are read between context checks.
const cancelCheckInterval = 1024

// Row is one unique training example.
type Row struct {
	// Outcome is the outcome id.
	Outcome int

	// Predicates is the sorted, duplicate-free set of active predicate ids.
	Predicates []int

	// Weight is the number of source events that collapsed into this row.
	Weight int
}

// Matrix is the indexed, deduplicated training data.
type Matrix struct {
	Rows []Row

	// PredLabels maps predicate id to name.
	PredLabels []string

	// OutcomeLabels maps outcome id to name.
	OutcomeLabels []string

	// NumEvents is the number of events read from the stream.
	NumEvents int

	// Dropped counts events discarded because no predicate survived the cutoff.
	Dropped int
}

// Index reads every event from stream and builds a Matrix.
// Predicates seen fewer than cutoff times are discarded; cutoff <= 1 keeps all.
func Index(ctx context.Context, stream event.Stream, cutoff int) (*Matrix, error) {
	if cutoff < 0 {
		return nil, fmt.Errorf("cutoff must be non-negative, got %d", cutoff)
	}

	events, predIndex, predLabels, err := countPredicates(ctx, stream, cutoff)
	if err != nil {
		return nil, err
	}

	m := &Matrix{
		PredLabels: predLabels,
		NumEvents:  len(events),
	}

	rows := m.buildRows(events, predIndex)
	m.Rows = mergeRows(rows)
	return m, nil
}

// countPredicates is the first pass. Ids are assigned in the order predicates
// reach the cutoff, which keeps the vocabulary deterministic for a given stream.
func countPredicates(ctx context.Context, stream event.Stream, cutoff int) ([]event.Event, map[string]int, []string, error) {
	var events []event.Event
	counts := make(map[string]int)
	predIndex := make(map[string]int)
	var predLabels []string

	for {
		if len(events)%cancelCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, nil, nil, fmt.Errorf("indexing canceled: %w", err)
			}
		}

		ev, err := stream.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, nil, nil, fmt.Errorf("failed to read event %d: %w", len(events)+1, err)
		}

		for _, p := range ev.Predicates {
			if _, ok := predIndex[p]; ok {
				continue
			}
			counts[p]++
			if counts[p] >= cutoff {
				predIndex[p] = len(predLabels)
				predLabels = append(predLabels, p)
				delete(counts, p)
			}
		}
		events = append(events, ev)
	}

	return events, predIndex, predLabels, nil
}

// buildRows is the second pass.
func (m *Matrix) buildRows(events []event.Event, predIndex map[string]int) []Row {
	outcomeIndex := make(map[string]int)
	rows := make([]Row, 0, len(events))

	for _, ev := range events {
		oid, ok := outcomeIndex[ev.Outcome]
		if !ok {
			oid = len(m.OutcomeLabels)
			outcomeIndex[ev.Outcome] = oid
			m.OutcomeLabels = append(m.OutcomeLabels, ev.Outcome)
		}

		ids := make([]int, 0, len(ev.Predicates))
		for _, p := range ev.Predicates {
			if id, ok := predIndex[p]; ok {
				ids = append(ids, id)
			}
		}
		if len(ids) == 0 {
			m.Dropped++
			continue
		}

		slices.Sort(ids)
		rows = append(rows, Row{
			Outcome:    oid,
			Predicates: slices.Compact(ids),
			Weight:     1,
		})
	}
	return rows
}

// compareRows orders rows by outcome, then predicate ids lexicographically,
// then length.
func compareRows(a, b Row) int {
	if a.Outcome != b.Outcome {
		return a.Outcome - b.Outcome
	}
	return slices.Compare(a.Predicates, b.Predicates)
}

// mergeRows is the third pass.
func mergeRows(rows []Row) []Row {
	if len(rows) == 0 {
		return nil
	}

	slices.SortStableFunc(rows, compareRows)

	merged := rows[:1]
	for _, r := range rows[1:] {
		last := &merged[len(merged)-1]
		if compareRows(*last, r) == 0 {
			last.Weight += r.Weight
			continue
		}
		merged = append(merged, r)
	}
	return slices.Clip(merged)
}

// Len returns the number of unique rows.
func (m *Matrix) Len() int {
	return len(m.Rows)
}

// NumPredicates returns the size of the predicate vocabulary.
func (m *Matrix) NumPredicates() int {
	return len(m.PredLabels)
}

// NumOutcomes returns the size of the outcome vocabulary.
func (m *Matrix) NumOutcomes() int {
	return len(m.OutcomeLabels)
}

// Outcomes returns the outcome id of each row.
func (m *Matrix) Outcomes() []int {
	out := make([]int, len(m.Rows))
	for i, r := range m.Rows {
		out[i] = r.Outcome
	}
	return out
}

// Weights returns the weight of each row.
func (m *Matrix) Weights() []int {
	out := make([]int, len(m.Rows))
	for i, r := range m.Rows {
		out[i] = r.Weight
	}
	return out
}

// Contexts returns the predicate id set of each row. The inner slices are shared with the matrix.
func (m *Matrix) Contexts() [][]int {
	out := make([][]int, len(m.Rows))
	for i, r := range m.Rows {
		out[i] = r.Predicates
	}
	return out
}

// MaxRowLength returns the largest number of active predicates in any row.
func (m *Matrix) MaxRowLength() int {
	maxLen := 0
	for _, r := range m.Rows {
		maxLen = max(maxLen, len(r.Predicates))
	}
	return maxLen
}
