package progress

import (
	"fmt"
	"io"

	"github.com/khanglvm/maxent/internal/gis"
)

// Printer returns a progress callback that writes every n-th iteration as
// "  iter:  loglikelihood  accuracy". n <= 1 prints every iteration.
func Printer(w io.Writer, n int) gis.ProgressFunc {
	if n < 1 {
		n = 1
	}
	return func(stats gis.IterationStats) {
		if stats.Iteration == 1 || stats.Iteration%n == 0 {
			fmt.Fprintf(w, "%5d:  %.6f  %.4f\n", stats.Iteration, stats.LogLikelihood, stats.Accuracy)
		}
	}
}
