/*
Package progress reports GIS training progress.

A Recorder persists per-iteration statistics in the background so that a slow
or unavailable database never stalls the trainer. A Printer writes the same
statistics to a terminal.
*/
package progress

import (
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/khanglvm/maxent/internal/gis"
	"github.com/khanglvm/maxent/internal/storage"
)

const (
	// queueSize is the buffer size for pending iterations.
	// If full, iterations are dropped (non-blocking).
	queueSize = 1000

	// batchFlushSize is the number of iterations that triggers an immediate flush.
	batchFlushSize = 25

	// flushInterval is how often pending iterations are flushed.
	flushInterval = 100 * time.Millisecond
)

// IterationStore persists iteration statistics for a training run.
type IterationStore interface {
	RecordIterations(runID int64, iterations []storage.IterationRecord) error
}

// Recorder writes iteration statistics of one training run to a store.
type Recorder struct {
	store    IterationStore
	runID    int64
	queue    chan storage.IterationRecord
	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
	dropped  atomic.Int64
	logger   *zap.Logger
}

// NewRecorder starts a background recorder for runID.
func NewRecorder(store IterationStore, runID int64, logger *zap.Logger) *Recorder {
	if logger == nil {
		logger = zap.NewNop()
	}

	r := &Recorder{
		store:    store,
		runID:    runID,
		queue:    make(chan storage.IterationRecord, queueSize),
		stopChan: make(chan struct{}),
		logger:   logger,
	}

	r.wg.Add(1)
	go r.process()

	return r
}

// Observe queues an iteration. It never blocks; it has the signature of gis.ProgressFunc.
func (r *Recorder) Observe(stats gis.IterationStats) {
	rec := storage.IterationRecord{
		Iteration:     stats.Iteration,
		LogLikelihood: stats.LogLikelihood,
		Accuracy:      stats.Accuracy,
		Elapsed:       stats.Elapsed,
	}

	select {
	case r.queue <- rec:
	default:
		r.dropped.Add(1)
		r.logger.Warn("progress queue full, dropping iteration", zap.Int("iteration", stats.Iteration))
	}
}

// Stop flushes pending iterations and stops the background goroutine.
func (r *Recorder) Stop() {
	r.stopOnce.Do(func() {
		close(r.stopChan)
		r.wg.Wait()
	})
}

// Dropped returns the number of iterations discarded because the queue was full.
func (r *Recorder) Dropped() int64 {
	return r.dropped.Load()
}

func (r *Recorder) process() {
	defer r.wg.Done()

	ticker := time.NewTicker(flushInterval)
	defer ticker.Stop()

	batch := make([]storage.IterationRecord, 0, batchFlushSize)

	for {
		select {
		case rec := <-r.queue:
			batch = append(batch, rec)
			if len(batch) >= batchFlushSize {
				batch = r.flush(batch)
			}

		case <-ticker.C:
			batch = r.flush(batch)

		case <-r.stopChan:
			for {
				select {
				case rec := <-r.queue:
					batch = append(batch, rec)
					if len(batch) >= batchFlushSize {
						batch = r.flush(batch)
					}
				default:
					r.flush(batch)
					return
				}
			}
		}
	}
}

// flush writes a batch and returns it emptied for reuse.
func (r *Recorder) flush(batch []storage.IterationRecord) []storage.IterationRecord {
	if len(batch) == 0 {
		return batch
	}
	if err := r.store.RecordIterations(r.runID, batch); err != nil {
		r.logger.Warn("failed to record iterations", zap.Int64("run", r.runID), zap.Error(err))
	}
	return batch[:0]
}

// Multi combines progress callbacks; nil entries are skipped.
func Multi(fns ...gis.ProgressFunc) gis.ProgressFunc {
	return func(stats gis.IterationStats) {
		for _, fn := range fns {
			if fn != nil {
				fn(stats)
			}
		}
	}
}
