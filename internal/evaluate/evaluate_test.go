package evaluate

import (
	"bytes"
	"context"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/khanglvm/maxent/internal/event"
	"github.com/khanglvm/maxent/internal/model"
)

// sentimentModel favors "yes" for good and "no" for bad.
func sentimentModel(t *testing.T) *model.Model {
	t.Helper()
	m, err := model.New([]model.Context{
		{Outcomes: []int{0}, Params: []float64{2}},
		{Outcomes: []int{1}, Params: []float64{2}},
	}, []string{"good", "bad"}, []string{"yes", "no"}, 1, 0)
	if err != nil {
		t.Fatalf("model.New failed: %v", err)
	}
	return m
}

func sentimentEvents() []event.Event {
	return []event.Event{
		event.New("yes", "good"),
		event.New("no", "bad"),
		event.New("yes", "bad"),
		event.New("no", "good"),
		event.New("no", "unseen"),
	}
}

func TestEvaluate(t *testing.T) {
	m := sentimentModel(t)
	var verbose bytes.Buffer

	r, err := Evaluate(context.Background(), m, event.NewSliceStream(sentimentEvents()),
		Options{NegativeOutcome: "no", Verbose: &verbose})
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}

	if r.Events != 5 || r.Correct != 2 {
		t.Errorf("expected 2/5 correct, got %d/%d", r.Correct, r.Events)
	}
	if r.Accuracy != 0.4 {
		t.Errorf("expected accuracy 0.4, got %v", r.Accuracy)
	}
	// The unseen event ties and falls to the lowest outcome id, "yes".
	if r.TruePositives != 1 || r.FalsePositives != 2 || r.Positives != 2 {
		t.Errorf("unexpected counts: tp=%d fp=%d pos=%d", r.TruePositives, r.FalsePositives, r.Positives)
	}
	if math.Abs(r.Precision-1.0/3) > 1e-12 || r.Recall != 0.5 {
		t.Errorf("unexpected precision/recall: %v %v", r.Precision, r.Recall)
	}
	if r.MeanLogProb >= 0 {
		t.Errorf("mean log probability should be negative, got %v", r.MeanLogProb)
	}

	want := []OutcomeCounts{
		{Outcome: "no", Gold: 3, Guessed: 2, Correct: 1},
		{Outcome: "yes", Gold: 2, Guessed: 3, Correct: 1},
	}
	if diff := cmp.Diff(want, r.Outcomes); diff != "" {
		t.Errorf("per-outcome counts mismatch (-want +got):\n%s", diff)
	}

	lines := strings.Split(strings.TrimSpace(verbose.String()), "\n")
	if len(lines) != 5 || lines[2] != "yes no" {
		t.Errorf("unexpected verbose output %q", verbose.String())
	}
}

func TestEvaluateNoNegative(t *testing.T) {
	r, err := Evaluate(context.Background(), sentimentModel(t),
		event.NewSliceStream(sentimentEvents()), Options{})
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if r.Precision != r.Accuracy || r.Recall != r.Accuracy {
		t.Errorf("without a negative outcome precision and recall equal accuracy: %+v", r)
	}
}

func TestEvaluateUnknownGold(t *testing.T) {
	r, err := Evaluate(context.Background(), sentimentModel(t),
		event.NewSliceStream([]event.Event{event.New("maybe", "good")}), Options{NegativeOutcome: "no"})
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if r.Correct != 0 || r.FalsePositives != 1 {
		t.Errorf("unexpected report: %+v", r)
	}
	if r.MeanLogProb != 0 {
		t.Errorf("unknown outcomes have no log probability, got %v", r.MeanLogProb)
	}
}

func TestEvaluateEmpty(t *testing.T) {
	r, err := Evaluate(context.Background(), sentimentModel(t), event.NewSliceStream(nil), Options{})
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if r.Events != 0 || r.Accuracy != 0 || r.Precision != 0 || r.Recall != 0 {
		t.Errorf("expected zero report, got %+v", r)
	}
}

type failingStream struct{}

func (failingStream) Next() (event.Event, error) { return event.Event{}, errors.New("broken pipe") }

func TestEvaluateErrors(t *testing.T) {
	if _, err := Evaluate(context.Background(), nil, event.NewSliceStream(nil), Options{}); err == nil {
		t.Error("expected an error for a nil model")
	}

	_, err := Evaluate(context.Background(), sentimentModel(t), failingStream{}, Options{})
	if err == nil || !strings.Contains(err.Error(), "broken pipe") {
		t.Errorf("expected the stream error, got %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = Evaluate(ctx, sentimentModel(t), event.NewSliceStream(sentimentEvents()), Options{})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestFormatReport(t *testing.T) {
	r, err := Evaluate(context.Background(), sentimentModel(t),
		event.NewSliceStream(sentimentEvents()), Options{NegativeOutcome: "no"})
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	out := FormatReport(r)
	for _, want := range []string{"Accuracy:   0.4000 (2/5)", "Negative:   no", "Recall:     0.5000", "yes"} {
		if !strings.Contains(out, want) {
			t.Errorf("report missing %q:\n%s", want, out)
		}
	}
}
