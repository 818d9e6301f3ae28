package rpc

import (
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/khanglvm/maxent/internal/model"
	"github.com/khanglvm/maxent/internal/search"
	"github.com/khanglvm/maxent/internal/storage"
	"github.com/khanglvm/maxent/internal/version"
)

var methods = []string{
	"initialize",
	"models/list",
	"model/eval",
	"model/best",
	"model/outcomes",
	"features/search",
}

// InitializeResult describes the server.
type InitializeResult struct {
	Name    string       `json:"name"`
	Version version.Info `json:"version"`
	Methods []string     `json:"methods"`
}

// ContextParams names a model and the active predicates of one context.
type ContextParams struct {
	Model   string   `json:"model"`
	Context []string `json:"context"`
}

// EvalResult is the distribution over every outcome, in outcome id order.
type EvalResult struct {
	Model     string             `json:"model"`
	Outcomes  []model.Prediction `json:"outcomes"`
	Formatted string             `json:"formatted"`
}

// OutcomesResult summarizes a model.
type OutcomesResult struct {
	Model              string   `json:"model"`
	Outcomes           []string `json:"outcomes"`
	NumPredicates      int      `json:"numPredicates"`
	CorrectionConstant int      `json:"correctionConstant"`
}

// SearchParams is a predicate search.
type SearchParams struct {
	Query string `json:"query"`
	Model string `json:"model"`
	Limit int    `json:"limit,omitempty"`
}

func (s *Server) handleInitialize() (interface{}, error) {
	return InitializeResult{
		Name:    "maxent",
		Version: version.Get(),
		Methods: methods,
	}, nil
}

func (s *Server) handleModelsList() (interface{}, error) {
	if s.catalog == nil {
		return nil, storage.ErrDisabled
	}
	infos, err := s.catalog.ListModels()
	if err != nil {
		return nil, err
	}
	if infos == nil {
		infos = []storage.ModelInfo{}
	}
	return infos, nil
}

// evalContext loads the model and evaluates params.Context.
func (s *Server) evalContext(raw json.RawMessage) (*model.Model, ContextParams, []float64, error) {
	var params ContextParams
	if err := decodeParams(raw, &params); err != nil {
		return nil, params, nil, err
	}
	if params.Model == "" {
		return nil, params, nil, &Error{Code: CodeInvalidParams, Message: "model is required"}
	}
	m, err := s.models.Get(params.Model)
	if err != nil {
		return nil, params, nil, err
	}
	return m, params, m.Eval(params.Context), nil
}

func (s *Server) handleEval(raw json.RawMessage) (interface{}, error) {
	m, params, dist, err := s.evalContext(raw)
	if err != nil {
		return nil, err
	}
	preds := make([]model.Prediction, len(dist))
	for i, p := range dist {
		preds[i] = model.Prediction{Outcome: m.Outcome(i), Probability: p}
	}
	return EvalResult{
		Model:     params.Model,
		Outcomes:  preds,
		Formatted: m.AllOutcomesFormatted(dist),
	}, nil
}

func (s *Server) handleBest(raw json.RawMessage) (interface{}, error) {
	m, params, dist, err := s.evalContext(raw)
	if err != nil {
		return nil, err
	}
	best := m.BestOutcome(dist)
	idx := m.Index(best)
	if idx < 0 {
		return nil, fmt.Errorf("model %s has no outcomes", params.Model)
	}
	return model.Prediction{Outcome: best, Probability: dist[idx]}, nil
}

func (s *Server) handleOutcomes(raw json.RawMessage) (interface{}, error) {
	var params struct {
		Model string `json:"model"`
	}
	if err := decodeParams(raw, &params); err != nil {
		return nil, err
	}
	m, err := s.models.Get(params.Model)
	if err != nil {
		return nil, err
	}
	return OutcomesResult{
		Model:              params.Model,
		Outcomes:           m.Outcomes(),
		NumPredicates:      m.NumPredicates(),
		CorrectionConstant: m.CorrectionConstant(),
	}, nil
}

func (s *Server) handleFeatureSearch(raw json.RawMessage) (interface{}, error) {
	if s.indexer == nil {
		return nil, fmt.Errorf("predicate search is not available")
	}
	var params SearchParams
	if err := decodeParams(raw, &params); err != nil {
		return nil, err
	}
	if params.Query == "" {
		return nil, &Error{Code: CodeInvalidParams, Message: "query is required"}
	}

	var (
		results []search.PredicateResult
		err     error
	)
	if params.Model != "" {
		if err := s.ensureIndexed(params.Model); err != nil {
			return nil, err
		}
		results, err = s.indexer.SearchModel(params.Query, params.Model, params.Limit)
	} else {
		results, err = s.indexer.Search(params.Query, params.Limit)
	}
	if err != nil {
		return nil, err
	}
	if results == nil {
		results = []search.PredicateResult{}
	}
	return results, nil
}

// ensureIndexed adds a model's predicates to the search index on first use.
func (s *Server) ensureIndexed(name string) error {
	s.indexMu.Lock()
	defer s.indexMu.Unlock()

	if s.indexed[name] {
		return nil
	}
	m, err := s.models.Get(name)
	if err != nil {
		return err
	}
	if err := s.indexer.IndexModel(name, m); err != nil {
		return fmt.Errorf("failed to index model %s: %w", name, err)
	}
	s.indexed[name] = true
	s.logger.Info("indexed model predicates", zap.String("model", name), zap.Int("predicates", m.NumPredicates()))
	return nil
}

// IndexModel adds a model to the search index ahead of any query.
func (s *Server) IndexModel(name string) error {
	if s.indexer == nil {
		return nil
	}
	return s.ensureIndexed(name)
}
