package event

import (
	"errors"
	"io"
)

// Stream produces events one at a time.
//
// Next returns io.EOF once the stream is exhausted. A stream only needs to
// support a single pass; the indexer buffers what it reads.
type Stream interface {
	Next() (Event, error)
}

// SliceStream serves events from memory.
type SliceStream struct {
	events []Event
	pos    int
}

// NewSliceStream creates a stream over the given events.
func NewSliceStream(events []Event) *SliceStream {
	return &SliceStream{events: events}
}

// Next returns the next event or io.EOF.
func (s *SliceStream) Next() (Event, error) {
	if s.pos >= len(s.events) {
		return Event{}, io.EOF
	}
	ev := s.events[s.pos]
	s.pos++
	return ev, nil
}

// Reset rewinds the stream so it can be replayed.
func (s *SliceStream) Reset() {
	s.pos = 0
}

// Collect drains a stream into a slice.
func Collect(stream Stream) ([]Event, error) {
	var events []Event
	for {
		ev, err := stream.Next()
		if errors.Is(err, io.EOF) {
			return events, nil
		}
		if err != nil {
			return events, err
		}
		events = append(events, ev)
	}
}

// Repeat returns n copies of ev, handy for building synthetic training sets.
func Repeat(ev Event, n int) []Event {
	events := make([]Event, n)
	for i := range events {
		events[i] = ev
	}
	return events
}
