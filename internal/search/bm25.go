package search

import (
	"fmt"

	"github.com/blevesearch/bleve/v2"
	bsearch "github.com/blevesearch/bleve/v2/search"
	"github.com/blevesearch/bleve/v2/search/query"
)

const defaultLimit = 10

var resultFields = []string{"model", "name", "pid", "outcomes", "top_outcome", "top_weight"}

// Search performs a BM25 keyword search across all indexed models.
func (i *Indexer) Search(text string, limit int) ([]PredicateResult, error) {
	return i.run(buildMatchQuery(text), limit)
}

// SearchModel performs a BM25 search scoped to one model.
func (i *Indexer) SearchModel(text, modelName string, limit int) ([]PredicateResult, error) {
	modelQuery := bleve.NewTermQuery(modelName)
	modelQuery.SetField("model")
	return i.run(bleve.NewConjunctionQuery(buildMatchQuery(text), modelQuery), limit)
}

// ByOutcome lists the predicates of a model whose strongest outcome is outcome.
func (i *Indexer) ByOutcome(modelName, outcome string, limit int) ([]PredicateResult, error) {
	modelQuery := bleve.NewTermQuery(modelName)
	modelQuery.SetField("model")
	outcomeQuery := bleve.NewTermQuery(outcome)
	outcomeQuery.SetField("top_outcome")
	return i.run(bleve.NewConjunctionQuery(modelQuery, outcomeQuery), limit)
}

// buildMatchQuery matches predicate names and outcome names, tolerating small typos.
func buildMatchQuery(text string) query.Query {
	exact := bleve.NewMatchQuery(text)
	fuzzy := bleve.NewMatchQuery(text)
	fuzzy.SetFuzziness(1)
	fuzzy.SetBoost(0.5)
	return bleve.NewDisjunctionQuery(exact, fuzzy)
}

func (i *Indexer) run(q query.Query, limit int) ([]PredicateResult, error) {
	i.mu.RLock()
	defer i.mu.RUnlock()

	if limit <= 0 {
		limit = defaultLimit
	}

	req := bleve.NewSearchRequestOptions(q, limit, 0, false)
	req.Fields = resultFields

	results, err := i.bleveIndex.Search(req)
	if err != nil {
		return nil, fmt.Errorf("bleve search failed: %w", err)
	}
	return convertHits(results.Hits), nil
}

// convertHits converts Bleve hits to PredicateResults.
func convertHits(hits bsearch.DocumentMatchCollection) []PredicateResult {
	out := make([]PredicateResult, 0, len(hits))
	for _, hit := range hits {
		r := PredicateResult{Score: hit.Score}
		r.Model, _ = hit.Fields["model"].(string)
		r.Predicate, _ = hit.Fields["name"].(string)
		r.TopOutcome, _ = hit.Fields["top_outcome"].(string)
		r.TopWeight, _ = hit.Fields["top_weight"].(float64)
		if pid, ok := hit.Fields["pid"].(float64); ok {
			r.ID = int(pid)
		}

		// Multi-valued fields come back as a slice, single values as a string.
		switch v := hit.Fields["outcomes"].(type) {
		case string:
			r.Outcomes = []string{v}
		case []interface{}:
			for _, o := range v {
				if s, ok := o.(string); ok {
					r.Outcomes = append(r.Outcomes, s)
				}
			}
		}

		out = append(out, r)
	}
	return out
}
