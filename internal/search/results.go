/*
Package search finds predicates of trained models by keyword.

Each predicate of an indexed model becomes one Bleve document holding its
name, the outcomes it carries weights for, and its strongest outcome. Queries
use BM25 scoring and can be scoped to a single model.
*/
package search

// PredicateResult is one matching predicate.
type PredicateResult struct {
	Model      string   `json:"model"`
	Predicate  string   `json:"predicate"`
	ID         int      `json:"id"`
	Outcomes   []string `json:"outcomes"`
	TopOutcome string   `json:"top_outcome"`
	TopWeight  float64  `json:"top_weight"`
	Score      float64  `json:"score"`
}

// predicateDocument is a predicate as stored in the index.
type predicateDocument struct {
	Model      string   `json:"model"`
	Name       string   `json:"name"`
	ID         int      `json:"pid"`
	Outcomes   []string `json:"outcomes"`
	TopOutcome string   `json:"top_outcome"`
	TopWeight  float64  `json:"top_weight"`
}
