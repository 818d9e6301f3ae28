package event

import (
	"errors"
	"io"
	"math"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestEventValidate(t *testing.T) {
	tests := []struct {
		name    string
		event   Event
		wantErr bool
	}{
		{"binary", New("A", "x", "y"), false},
		{"valued", Event{Outcome: "A", Predicates: []string{"x"}, Values: []float64{0.5}}, false},
		{"zero value", Event{Outcome: "A", Predicates: []string{"x"}, Values: []float64{0}}, false},
		{"negative", Event{Outcome: "A", Predicates: []string{"x"}, Values: []float64{-1}}, true},
		{"mismatch", Event{Outcome: "A", Predicates: []string{"x", "y"}, Values: []float64{1}}, true},
		{"nan", Event{Outcome: "A", Predicates: []string{"x"}, Values: []float64{math.NaN()}}, true},
		{"infinite", Event{Outcome: "A", Predicates: []string{"x"}, Values: []float64{math.Inf(1)}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.event.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestNewWithValuesRejectsNegative(t *testing.T) {
	_, err := NewWithValues("A", []string{"x", "y"}, []float64{1, -0.5})
	var negErr *NegativeValueError
	if !errors.As(err, &negErr) {
		t.Fatalf("expected NegativeValueError, got %v", err)
	}
	if negErr.Predicate != "y" {
		t.Errorf("expected predicate y, got %q", negErr.Predicate)
	}
}

func TestEventString(t *testing.T) {
	if got := New("A", "x", "y").String(); got != "A [x y]" {
		t.Errorf("unexpected string %q", got)
	}
	ev := Event{Outcome: "B", Predicates: []string{"x"}, Values: []float64{0.5}}
	if got := ev.String(); got != "B [x=0.5]" {
		t.Errorf("unexpected string %q", got)
	}
}

func TestSliceStream(t *testing.T) {
	events := []Event{New("A", "x"), New("B", "y")}
	stream := NewSliceStream(events)

	got, err := Collect(stream)
	if err != nil {
		t.Fatalf("Collect failed: %v", err)
	}
	if diff := cmp.Diff(events, got); diff != "" {
		t.Errorf("events mismatch (-want +got):\n%s", diff)
	}

	if _, err := stream.Next(); !errors.Is(err, io.EOF) {
		t.Errorf("expected io.EOF after exhaustion, got %v", err)
	}

	stream.Reset()
	if ev, err := stream.Next(); err != nil || ev.Outcome != "A" {
		t.Errorf("Reset did not rewind: %v %v", ev, err)
	}
}

func TestFileStreamPlain(t *testing.T) {
	input := "A x y\n\n  B x z  \nC\n"
	stream, err := NewReaderStream(strings.NewReader(input), Options{})
	if err != nil {
		t.Fatalf("NewReaderStream failed: %v", err)
	}

	got, err := Collect(stream)
	if err != nil {
		t.Fatalf("Collect failed: %v", err)
	}

	want := []Event{
		{Outcome: "A", Predicates: []string{"x", "y"}},
		{Outcome: "B", Predicates: []string{"x", "z"}},
		{Outcome: "C", Predicates: []string{}},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("events mismatch (-want +got):\n%s", diff)
	}
	if stream.Line() != 4 {
		t.Errorf("expected 4 lines consumed, got %d", stream.Line())
	}
}

func TestFileStreamVerbatimTokens(t *testing.T) {
	stream, _ := NewReaderStream(strings.NewReader("A w=the prev=dog\n"), Options{})
	ev, err := stream.Next()
	if err != nil {
		t.Fatalf("Next failed: %v", err)
	}
	if ev.HasValues() {
		t.Error("plain stream should not parse values")
	}
	if ev.Predicates[0] != "w=the" {
		t.Errorf("expected verbatim token, got %q", ev.Predicates[0])
	}
}

func TestFileStreamRealValues(t *testing.T) {
	input := "A x=0.5 y\nB z=abc w\n"
	stream, _ := NewReaderStream(strings.NewReader(input), Options{RealValues: true})

	ev, err := stream.Next()
	if err != nil {
		t.Fatalf("Next failed: %v", err)
	}
	want := Event{Outcome: "A", Predicates: []string{"x", "y"}, Values: []float64{0.5, 1}}
	if diff := cmp.Diff(want, ev); diff != "" {
		t.Errorf("event mismatch (-want +got):\n%s", diff)
	}

	// Unparsable value: whole token kept, binary, stream continues.
	ev, err = stream.Next()
	if err != nil {
		t.Fatalf("malformed value should be recovered, got %v", err)
	}
	want = Event{Outcome: "B", Predicates: []string{"z=abc", "w"}}
	if diff := cmp.Diff(want, ev); diff != "" {
		t.Errorf("event mismatch (-want +got):\n%s", diff)
	}
}

func TestFileStreamNonFiniteValues(t *testing.T) {
	input := "A p=NaN r=+Inf s=-Inf q=2\n"
	stream, _ := NewReaderStream(strings.NewReader(input), Options{RealValues: true})

	ev, err := stream.Next()
	if err != nil {
		t.Fatalf("non-finite values should be recovered, got %v", err)
	}
	want := Event{
		Outcome:    "A",
		Predicates: []string{"p=NaN", "r=+Inf", "s=-Inf", "q"},
		Values:     []float64{1, 1, 1, 2},
	}
	if diff := cmp.Diff(want, ev); diff != "" {
		t.Errorf("event mismatch (-want +got):\n%s", diff)
	}
	if err := ev.Validate(); err != nil {
		t.Errorf("parsed event should validate, got %v", err)
	}
}

func TestNewWithValuesRejectsNonFinite(t *testing.T) {
	_, err := NewWithValues("A", []string{"x"}, []float64{math.NaN()})
	if !errors.Is(err, ErrNonFiniteValue) {
		t.Errorf("expected ErrNonFiniteValue, got %v", err)
	}
}

func TestFileStreamNegativeValue(t *testing.T) {
	input := "A x=1\nB y=-2\nC z\n"

	t.Run("fail fast", func(t *testing.T) {
		stream, _ := NewReaderStream(strings.NewReader(input), Options{RealValues: true})
		if _, err := stream.Next(); err != nil {
			t.Fatalf("first event should parse: %v", err)
		}
		_, err := stream.Next()
		var negErr *NegativeValueError
		if !errors.As(err, &negErr) {
			t.Fatalf("expected NegativeValueError, got %v", err)
		}
		if negErr.Line != 2 {
			t.Errorf("expected line 2, got %d", negErr.Line)
		}
		if !strings.Contains(err.Error(), "line 2") {
			t.Errorf("error should mention the line, got %q", err.Error())
		}
	})

	t.Run("skip invalid", func(t *testing.T) {
		stream, _ := NewReaderStream(strings.NewReader(input), Options{RealValues: true, SkipInvalid: true})
		events, err := Collect(stream)
		if err != nil {
			t.Fatalf("Collect failed: %v", err)
		}
		if len(events) != 2 || events[1].Outcome != "C" {
			t.Errorf("expected the negative event to be skipped, got %v", events)
		}
	})
}

func TestFileStreamComma(t *testing.T) {
	input := "sunny hot,no\nrainy mild, yes\nbroken line\n"
	stream, _ := NewReaderStream(strings.NewReader(input), Options{Format: FormatComma, SkipInvalid: true})

	events, err := Collect(stream)
	if err != nil {
		t.Fatalf("Collect failed: %v", err)
	}
	want := []Event{
		{Outcome: "no", Predicates: []string{"sunny", "hot"}},
		{Outcome: "yes", Predicates: []string{"rainy", "mild"}},
	}
	if diff := cmp.Diff(want, events); diff != "" {
		t.Errorf("events mismatch (-want +got):\n%s", diff)
	}
}

func TestFileStreamEncoding(t *testing.T) {
	// "café" encoded as ISO-8859-1.
	input := []byte{'A', ' ', 'c', 'a', 'f', 0xe9, '\n'}
	stream, err := NewReaderStream(strings.NewReader(string(input)), Options{Encoding: "latin1"})
	if err != nil {
		t.Fatalf("NewReaderStream failed: %v", err)
	}
	ev, err := stream.Next()
	if err != nil {
		t.Fatalf("Next failed: %v", err)
	}
	if ev.Predicates[0] != "café" {
		t.Errorf("expected decoded predicate, got %q", ev.Predicates[0])
	}

	if _, err := NewReaderStream(strings.NewReader(""), Options{Encoding: "no-such-charset"}); err == nil {
		t.Error("expected error for unknown encoding")
	}
}

func TestParseFormat(t *testing.T) {
	if f, err := ParseFormat("comma"); err != nil || f != FormatComma {
		t.Errorf("ParseFormat(comma) = %v, %v", f, err)
	}
	if f, err := ParseFormat(""); err != nil || f != FormatPlain {
		t.Errorf("ParseFormat(\"\") = %v, %v", f, err)
	}
	if _, err := ParseFormat("xml"); err == nil {
		t.Error("expected error for unknown format")
	}
}

func TestFormatLineRoundTrip(t *testing.T) {
	ev := Event{Outcome: "A", Predicates: []string{"x", "y"}, Values: []float64{0.25, 2}}
	line := FormatLine(ev)
	if line != "A x=0.25 y=2" {
		t.Fatalf("unexpected line %q", line)
	}

	stream, _ := NewReaderStream(strings.NewReader(line), Options{RealValues: true})
	got, err := stream.Next()
	if err != nil {
		t.Fatalf("Next failed: %v", err)
	}
	if diff := cmp.Diff(ev, got); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}
