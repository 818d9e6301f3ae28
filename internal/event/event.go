/*
Package event defines the labeled training examples consumed by the indexer.

An Event is one observation: the outcome that was seen plus the contextual
predicates that were active when it was seen. Predicates may optionally carry
a non-negative real value; events without values are treated as binary.
*/
package event

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ErrValueCountMismatch is returned when an event has values but not one per predicate.
var ErrValueCountMismatch = errors.New("number of values does not match number of predicates")

// ErrNonFiniteValue is returned for NaN or infinite predicate values.
var ErrNonFiniteValue = errors.New("non-finite predicate value")

// Event represents a single training example.
type Event struct {
	// Outcome is the label observed for this example.
	Outcome string

	// Predicates are the names of the active contextual predicates, in source order.
	Predicates []string

	// Values holds one value per predicate, or nil when every predicate is binary.
	Values []float64
}

// NegativeValueError reports a predicate carrying a negative value.
// Negative values cannot be represented by GIS features, so the event is rejected.
type NegativeValueError struct {
	Predicate string
	Value     float64
	// Line is the 1-based source line, or 0 when the event did not come from a file.
	Line int
}

func (e *NegativeValueError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("line %d: negative value %g for predicate %q", e.Line, e.Value, e.Predicate)
	}
	return fmt.Sprintf("negative value %g for predicate %q", e.Value, e.Predicate)
}

// New creates a binary event.
func New(outcome string, predicates ...string) Event {
	return Event{
		Outcome:    outcome,
		Predicates: predicates,
	}
}

// NewWithValues creates an event whose predicates carry real values.
func NewWithValues(outcome string, predicates []string, values []float64) (Event, error) {
	ev := Event{
		Outcome:    outcome,
		Predicates: predicates,
		Values:     values,
	}
	if err := ev.Validate(); err != nil {
		return Event{}, err
	}
	return ev, nil
}

// Validate checks the value vector of the event.
func (e Event) Validate() error {
	if e.Values == nil {
		return nil
	}
	if len(e.Values) != len(e.Predicates) {
		return fmt.Errorf("%w: %d predicates, %d values", ErrValueCountMismatch, len(e.Predicates), len(e.Values))
	}
	for i, v := range e.Values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: %g for predicate %q", ErrNonFiniteValue, v, e.Predicates[i])
		}
		if v < 0 {
			return &NegativeValueError{Predicate: e.Predicates[i], Value: v}
		}
	}
	return nil
}

// HasValues reports whether any predicate carries an explicit value.
func (e Event) HasValues() bool {
	return e.Values != nil
}

// Value returns the value of the i-th predicate (1 for binary events).
func (e Event) Value(i int) float64 {
	if e.Values == nil {
		return 1
	}
	return e.Values[i]
}

// String renders the event as "outcome [p1 p2=0.5]".
func (e Event) String() string {
	var sb strings.Builder
	sb.WriteString(e.Outcome)
	sb.WriteString(" [")
	for i, p := range e.Predicates {
		if i > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(p)
		if e.Values != nil {
			sb.WriteByte('=')
			sb.WriteString(strconv.FormatFloat(e.Values[i], 'g', -1, 64))
		}
	}
	sb.WriteByte(']')
	return sb.String()
}
