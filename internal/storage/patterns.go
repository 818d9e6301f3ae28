package storage

import (
	"strconv"
	"strings"

	"github.com/khanglvm/maxent/internal/model"
)

// outcomePatterns groups predicates that carry parameters for the same set
// of outcomes, so the set is stored once per model.
type outcomePatterns struct {
	// patterns[i] is the sorted outcome id list of pattern i.
	patterns [][]int

	// byPredicate[pid] is the pattern used by predicate pid.
	byPredicate []int
}

// buildPatterns assigns pattern ids in order of first use by predicate id.
func buildPatterns(m *model.Model) outcomePatterns {
	n := m.NumPredicates()
	op := outcomePatterns{byPredicate: make([]int, n)}
	ids := make(map[string]int)

	for pid := 0; pid < n; pid++ {
		outcomes := m.Context(pid).Outcomes
		key := patternKey(outcomes)
		id, ok := ids[key]
		if !ok {
			id = len(op.patterns)
			ids[key] = id
			op.patterns = append(op.patterns, outcomes)
		}
		op.byPredicate[pid] = id
	}
	return op
}

func patternKey(outcomes []int) string {
	var sb strings.Builder
	for i, o := range outcomes {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(strconv.Itoa(o))
	}
	return sb.String()
}
