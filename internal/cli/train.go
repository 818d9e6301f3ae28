package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/khanglvm/maxent/internal/config"
	"github.com/khanglvm/maxent/internal/event"
	"github.com/khanglvm/maxent/internal/gis"
	"github.com/khanglvm/maxent/internal/index"
	"github.com/khanglvm/maxent/internal/progress"
	"github.com/khanglvm/maxent/internal/storage"
)

type trainFlags struct {
	name                 string
	description          string
	iterations           int
	cutoff               int
	smoothing            bool
	smoothingObservation float64
	workers              int
	format               string
	encoding             string
	realValues           bool
	skipInvalid          bool
	progressEvery        int
	jsonOutput           bool
}

// TrainSummary is printed after a successful training run.
type TrainSummary struct {
	Model         string  `json:"model"`
	RunID         int64   `json:"runId"`
	Events        int     `json:"events"`
	Dropped       int     `json:"dropped"`
	Rows          int     `json:"rows"`
	Predicates    int     `json:"predicates"`
	Outcomes      int     `json:"outcomes"`
	Iterations    int     `json:"iterations"`
	LogLikelihood float64 `json:"logLikelihood"`
	Accuracy      float64 `json:"accuracy"`
	Status        string  `json:"status"`
	Elapsed       string  `json:"elapsed"`
}

// NewTrainCmd creates the 'train' command.
func NewTrainCmd() *cobra.Command {
	var f trainFlags

	cmd := &cobra.Command{
		Use:   "train <events-file>",
		Short: "Train a model from an event file",
		Long: `Index the events in a file and train a maximum entropy model with GIS.

Each line holds one event. In the default plain format the first token is the
outcome and the remaining tokens are the active predicates:

  no outlook=sunny temperature=hot humidity=high windy=false

The comma format puts the predicates first and the outcome after the last comma:

  outlook=sunny temperature=hot humidity=high windy=false,no

The trained model is saved under --name (default: the file name without its
extension). Flags override the training section of the config file.`,
		Example: `  maxent train weather.txt
  maxent train tagger.txt --name tagger --iterations 200 --cutoff 2 --workers 4
  maxent train sports.csv --format comma --smoothing`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runTrain(ctx, cmd, args[0], f)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&f.name, "name", "n", "", "Model name (default: file name)")
	flags.StringVarP(&f.description, "description", "d", "", "Free text stored with the model")
	flags.IntVarP(&f.iterations, "iterations", "i", gis.DefaultIterations, "Maximum GIS iterations")
	flags.IntVarP(&f.cutoff, "cutoff", "c", gis.DefaultCutoff, "Drop predicates seen fewer times than this")
	flags.BoolVar(&f.smoothing, "smoothing", false, "Smooth unseen (predicate, outcome) pairs")
	flags.Float64Var(&f.smoothingObservation, "smoothing-observation", gis.DefaultSmoothingObservation, "Pseudo-count for smoothing")
	flags.IntVarP(&f.workers, "workers", "w", 1, "Goroutines per iteration")
	flags.StringVar(&f.format, "format", "plain", "Event format: plain or comma")
	flags.StringVar(&f.encoding, "encoding", "", "Character set of the event file (e.g. latin1, gbk)")
	flags.BoolVar(&f.realValues, "real-values", false, "Parse pred=value tokens")
	flags.BoolVar(&f.skipInvalid, "skip-invalid", false, "Skip events with negative values instead of failing")
	flags.IntVarP(&f.progressEvery, "progress", "p", 10, "Print progress every N iterations (0 disables)")
	flags.BoolVarP(&f.jsonOutput, "json", "j", false, "Output summary as JSON")

	return cmd
}

// trainingSettings merges the config file with the flags the user set.
func trainingSettings(cmd *cobra.Command, cfg *config.Config, f trainFlags) (config.TrainingSettings, error) {
	ts := *cfg.Training
	changed := cmd.Flags().Changed

	if changed("iterations") {
		ts.Iterations = f.iterations
	}
	if changed("cutoff") {
		ts.Cutoff = f.cutoff
	}
	if changed("smoothing") {
		ts.Smoothing = f.smoothing
	}
	if changed("smoothing-observation") {
		ts.SmoothingObservation = f.smoothingObservation
	}
	if changed("workers") {
		ts.Workers = f.workers
	}
	if changed("format") {
		ts.Format = f.format
	}
	if changed("encoding") {
		ts.Encoding = f.encoding
	}
	if changed("real-values") {
		ts.RealValues = f.realValues
	}

	if err := config.ValidateTraining(&ts); err != nil {
		return ts, err
	}
	return ts, nil
}

// openEvents opens an event file with the given training settings.
func openEvents(path string, ts config.TrainingSettings, skipInvalid bool, logger *zap.Logger) (*event.FileStream, error) {
	format, err := event.ParseFormat(ts.Format)
	if err != nil {
		return nil, err
	}
	return event.Open(path, event.Options{
		Format:      format,
		RealValues:  ts.RealValues,
		Encoding:    ts.Encoding,
		SkipInvalid: skipInvalid,
		Logger:      logger,
	})
}

func modelNameFromPath(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// runTrain indexes the events, trains, records the run and saves the model.
func runTrain(ctx context.Context, cmd *cobra.Command, path string, f trainFlags) error {
	e, err := loadEnv(cmd)
	if err != nil {
		return err
	}
	defer e.close()
	w := cmd.OutOrStdout()

	ts, err := trainingSettings(cmd, e.cfg, f)
	if err != nil {
		return err
	}

	name := f.name
	if name == "" {
		name = modelNameFromPath(path)
	}
	source, err := filepath.Abs(path)
	if err != nil {
		source = path
	}

	stream, err := openEvents(path, ts, f.skipInvalid, e.logger)
	if err != nil {
		return err
	}
	defer stream.Close()

	matrix, err := index.Index(ctx, stream, ts.Cutoff)
	if err != nil {
		return fmt.Errorf("failed to index events: %w", err)
	}
	if err := gis.CheckMatrix(matrix); err != nil {
		return fmt.Errorf("cannot train on %s: %w", path, err)
	}

	store, err := e.openStorage()
	if err != nil {
		return err
	}
	defer store.Close()

	run := storage.TrainingRun{
		ModelName:  name,
		Source:     source,
		Events:     matrix.NumEvents,
		Rows:       matrix.Len(),
		Predicates: matrix.NumPredicates(),
		Outcomes:   matrix.NumOutcomes(),
		StartedAt:  time.Now(),
	}
	if run.ID, err = store.StartRun(run); err != nil {
		e.logger.Warn("training run not recorded", zap.Error(err))
	}

	recorder := progress.NewRecorder(store, run.ID, e.logger)
	var printer gis.ProgressFunc
	if f.progressEvery > 0 && !f.jsonOutput {
		fmt.Fprintf(w, "Training %s: %d events, %d rows, %d predicates, %d outcomes\n",
			name, matrix.NumEvents, matrix.Len(), matrix.NumPredicates(), matrix.NumOutcomes())
		fmt.Fprintln(w, "Iteration  Log-likelihood  Accuracy")
		printer = progress.Printer(w, f.progressEvery)
	}

	trainer := gis.Options{
		Iterations:           ts.Iterations,
		Cutoff:               ts.Cutoff,
		Smoothing:            ts.Smoothing,
		SmoothingObservation: ts.SmoothingObservation,
		Workers:              ts.Workers,
		Logger:               e.logger,
		Progress:             progress.Multi(recorder.Observe, printer),
	}.Trainer()

	m, trainErr := trainer.Train(ctx, matrix)
	recorder.Stop()
	result := trainer.Result()

	run.Iterations = result.Iterations
	run.LogLikelihood = result.LogLikelihood
	run.Status = runStatus(result, trainErr)
	if trainErr != nil {
		run.Error = trainErr.Error()
	}
	if err := store.FinishRun(run); err != nil {
		e.logger.Warn("failed to finish training run", zap.Int64("run", run.ID), zap.Error(err))
	}

	if trainErr != nil {
		return fmt.Errorf("training failed: %w", trainErr)
	}

	if err := store.SaveModel(m, storage.ModelInfo{
		Name:          name,
		Description:   f.description,
		Source:        source,
		Iterations:    result.Iterations,
		Cutoff:        ts.Cutoff,
		Smoothing:     ts.Smoothing,
		LogLikelihood: result.LogLikelihood,
	}); err != nil {
		return fmt.Errorf("failed to save model: %w", err)
	}

	if days := e.cfg.Storage.RetentionDays; days > 0 {
		if err := store.Cleanup(time.Duration(days) * 24 * time.Hour); err != nil {
			e.logger.Warn("history cleanup failed", zap.Error(err))
		}
	}

	summary := TrainSummary{
		Model:         name,
		RunID:         run.ID,
		Events:        matrix.NumEvents,
		Dropped:       matrix.Dropped,
		Rows:          matrix.Len(),
		Predicates:    m.NumPredicates(),
		Outcomes:      m.NumOutcomes(),
		Iterations:    result.Iterations,
		LogLikelihood: result.LogLikelihood,
		Accuracy:      result.Accuracy,
		Status:        string(run.Status),
		Elapsed:       result.Elapsed.Round(time.Millisecond).String(),
	}
	if f.jsonOutput {
		return writeJSON(w, summary)
	}
	printTrainSummary(w, summary, store.Path())
	return nil
}

func runStatus(result gis.Result, err error) storage.RunStatus {
	switch {
	case err != nil:
		return storage.RunFailed
	case result.Diverged:
		return storage.RunDiverged
	case result.Converged:
		return storage.RunConverged
	default:
		return storage.RunCompleted
	}
}

func printTrainSummary(w io.Writer, s TrainSummary, dbPath string) {
	fmt.Fprintln(w)
	fmt.Fprintf(w, "✓ Model '%s' saved to %s\n", s.Model, dbPath)
	fmt.Fprintf(w, "  Status:         %s after %d iterations (%s)\n", s.Status, s.Iterations, s.Elapsed)
	fmt.Fprintf(w, "  Log-likelihood: %.6f\n", s.LogLikelihood)
	fmt.Fprintf(w, "  Accuracy:       %.4f\n", s.Accuracy)
	fmt.Fprintf(w, "  Predicates:     %d\n", s.Predicates)
	fmt.Fprintf(w, "  Outcomes:       %d\n", s.Outcomes)
	if s.Dropped > 0 {
		fmt.Fprintf(w, "  Dropped events: %d (no predicate survived the cutoff)\n", s.Dropped)
	}
}

// isNotFound reports whether err means the model does not exist.
func isNotFound(err error) bool {
	return errors.Is(err, storage.ErrModelNotFound)
}
