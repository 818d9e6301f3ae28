/*
Package evaluate scores a trained model against held-out events.

Every event is classified with the model's best outcome and compared with
its gold outcome. Besides accuracy, the report carries precision and recall
against a negative outcome: any outcome other than the negative one counts
as a positive label, and a positive guess is a true positive only when it
names the gold outcome exactly.
*/
package evaluate

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"sort"
	"strings"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"

	"github.com/khanglvm/maxent/internal/event"
	"github.com/khanglvm/maxent/internal/model"
)

// OutcomeCounts tallies one outcome.
type OutcomeCounts struct {
	Outcome string `json:"outcome"`
	Gold    int    `json:"gold"`
	Guessed int    `json:"guessed"`
	Correct int    `json:"correct"`
}

// Precision is Correct/Guessed, or 0 when the outcome was never guessed.
func (c OutcomeCounts) Precision() float64 {
	return ratio(c.Correct, c.Guessed)
}

// Recall is Correct/Gold, or 0 when the outcome never occurred.
func (c OutcomeCounts) Recall() float64 {
	return ratio(c.Correct, c.Gold)
}

// Report summarizes an evaluation run.
type Report struct {
	Events          int             `json:"events"`
	Correct         int             `json:"correct"`
	Accuracy        float64         `json:"accuracy"`
	NegativeOutcome string          `json:"negativeOutcome,omitempty"`
	TruePositives   int             `json:"truePositives"`
	FalsePositives  int             `json:"falsePositives"`
	Positives       int             `json:"positives"`
	Precision       float64         `json:"precision"`
	Recall          float64         `json:"recall"`
	MeanLogProb     float64         `json:"meanLogProb"`
	Outcomes        []OutcomeCounts `json:"outcomes"`
}

// Options tune an evaluation run.
type Options struct {
	// NegativeOutcome is the label that does not count as a positive.
	// Empty means every label is positive.
	NegativeOutcome string

	// Verbose receives one "gold guess" line per event when set.
	Verbose io.Writer

	Logger *zap.Logger
}

// Evaluate classifies every event of stream with m.
func Evaluate(ctx context.Context, m *model.Model, stream event.Stream, opts Options) (*Report, error) {
	if m == nil {
		return nil, errors.New("model is nil")
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	counts := make(map[string]*OutcomeCounts)
	tally := func(outcome string) *OutcomeCounts {
		c, ok := counts[outcome]
		if !ok {
			c = &OutcomeCounts{Outcome: outcome}
			counts[outcome] = c
		}
		return c
	}

	r := &Report{NegativeOutcome: opts.NegativeOutcome}
	dist := make([]float64, m.NumOutcomes())
	var logProbs []float64

	for {
		if r.Events%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, fmt.Errorf("evaluation cancelled: %w", err)
			}
		}

		ev, err := stream.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read event %d: %w", r.Events+1, err)
		}

		dist = m.EvalInto(ev.Predicates, dist)
		guess := m.BestOutcome(dist)
		gold := ev.Outcome
		r.Events++

		if opts.Verbose != nil {
			fmt.Fprintf(opts.Verbose, "%s %s\n", gold, guess)
		}

		tally(gold).Gold++
		tally(guess).Guessed++
		if guess == gold {
			r.Correct++
			tally(gold).Correct++
		}

		if idx := m.Index(gold); idx >= 0 && dist[idx] > 0 {
			logProbs = append(logProbs, math.Log(dist[idx]))
		} else {
			logger.Debug("gold outcome unknown to model", zap.String("outcome", gold))
		}

		if gold != opts.NegativeOutcome {
			r.Positives++
		}
		if guess != opts.NegativeOutcome {
			if guess == gold {
				r.TruePositives++
			} else {
				r.FalsePositives++
			}
		}
	}

	r.Accuracy = ratio(r.Correct, r.Events)
	r.Precision = ratio(r.TruePositives, r.TruePositives+r.FalsePositives)
	r.Recall = ratio(r.TruePositives, r.Positives)
	if len(logProbs) > 0 {
		r.MeanLogProb = floats.Sum(logProbs) / float64(len(logProbs))
	}

	r.Outcomes = make([]OutcomeCounts, 0, len(counts))
	for _, c := range counts {
		r.Outcomes = append(r.Outcomes, *c)
	}
	sort.Slice(r.Outcomes, func(i, j int) bool {
		return r.Outcomes[i].Outcome < r.Outcomes[j].Outcome
	})

	logger.Info("evaluation complete",
		zap.Int("events", r.Events),
		zap.Float64("accuracy", r.Accuracy),
		zap.Float64("precision", r.Precision),
		zap.Float64("recall", r.Recall))

	return r, nil
}

func ratio(num, den int) float64 {
	if den == 0 {
		return 0
	}
	return float64(num) / float64(den)
}

// FormatReport renders a report for the terminal.
func FormatReport(r *Report) string {
	var sb strings.Builder

	sb.WriteString("╔══════════════════════════════════════════════════════════════╗\n")
	sb.WriteString("║                    EVALUATION RESULTS                        ║\n")
	sb.WriteString("╚══════════════════════════════════════════════════════════════╝\n")
	fmt.Fprintf(&sb, "  Events:     %d\n", r.Events)
	fmt.Fprintf(&sb, "  Accuracy:   %.4f (%d/%d)\n", r.Accuracy, r.Correct, r.Events)
	if r.NegativeOutcome != "" {
		fmt.Fprintf(&sb, "  Negative:   %s\n", r.NegativeOutcome)
	}
	fmt.Fprintf(&sb, "  Precision:  %.4f\n", r.Precision)
	fmt.Fprintf(&sb, "  Recall:     %.4f\n", r.Recall)
	fmt.Fprintf(&sb, "  Mean log p: %.4f\n", r.MeanLogProb)
	sb.WriteString("\n")

	fmt.Fprintf(&sb, "  %-20s %8s %8s %8s %9s %9s\n", "OUTCOME", "GOLD", "GUESSED", "CORRECT", "PRECISION", "RECALL")
	for _, c := range r.Outcomes {
		fmt.Fprintf(&sb, "  %-20s %8d %8d %8d %9.4f %9.4f\n",
			c.Outcome, c.Gold, c.Guessed, c.Correct, c.Precision(), c.Recall())
	}
	return sb.String()
}
