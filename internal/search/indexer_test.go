package search

import (
	"path/filepath"
	"testing"

	"github.com/khanglvm/maxent/internal/model"
)

func taggerModel(t *testing.T) *model.Model {
	t.Helper()
	contexts := []model.Context{
		{Outcomes: []int{0, 1}, Params: []float64{2.5, -1}},
		{Outcomes: []int{1}, Params: []float64{3}},
		{Outcomes: []int{0, 2}, Params: []float64{-0.5, 1.25}},
		{Outcomes: []int{2}, Params: []float64{0.75}},
	}
	m, err := model.New(contexts,
		[]string{"prev=the", "suffix=ing", "word=running", "cap=true"},
		[]string{"NOUN", "VERB", "ADJ"}, 2, 0)
	if err != nil {
		t.Fatalf("model.New failed: %v", err)
	}
	return m
}

func newTestIndexer(t *testing.T) *Indexer {
	t.Helper()
	indexer, err := NewIndexer(nil)
	if err != nil {
		t.Fatalf("failed to create indexer: %v", err)
	}
	t.Cleanup(func() { indexer.Close() })
	return indexer
}

func TestIndexModel(t *testing.T) {
	indexer := newTestIndexer(t)

	if err := indexer.IndexModel("tagger", taggerModel(t)); err != nil {
		t.Fatalf("IndexModel failed: %v", err)
	}

	count, err := indexer.Count()
	if err != nil {
		t.Fatalf("failed to get count: %v", err)
	}
	if count != 4 {
		t.Errorf("expected 4 indexed predicates, got %d", count)
	}

	// Reindexing replaces instead of duplicating.
	if err := indexer.IndexModel("tagger", taggerModel(t)); err != nil {
		t.Fatalf("second IndexModel failed: %v", err)
	}
	if count, _ := indexer.Count(); count != 4 {
		t.Errorf("expected 4 predicates after reindex, got %d", count)
	}
}

func TestSearch(t *testing.T) {
	indexer := newTestIndexer(t)
	if err := indexer.IndexModel("tagger", taggerModel(t)); err != nil {
		t.Fatalf("IndexModel failed: %v", err)
	}

	results, err := indexer.Search("running", 10)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(results) == 0 {
		t.Fatal("expected results for 'running'")
	}

	top := results[0]
	if top.Predicate != "word=running" {
		t.Errorf("expected word=running first, got %q", top.Predicate)
	}
	if top.Model != "tagger" || top.ID != 2 {
		t.Errorf("unexpected metadata: %+v", top)
	}
	if top.TopOutcome != "ADJ" || top.TopWeight != 1.25 {
		t.Errorf("unexpected strongest outcome: %s %v", top.TopOutcome, top.TopWeight)
	}
	if len(top.Outcomes) != 2 {
		t.Errorf("expected 2 outcomes, got %v", top.Outcomes)
	}
	if top.Score <= 0 {
		t.Errorf("expected positive score, got %v", top.Score)
	}
}

func TestSearchSingleOutcome(t *testing.T) {
	indexer := newTestIndexer(t)
	indexer.IndexModel("tagger", taggerModel(t))

	results, err := indexer.Search("suffix", 5)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(results) == 0 || results[0].Predicate != "suffix=ing" {
		t.Fatalf("expected suffix=ing, got %+v", results)
	}
	if len(results[0].Outcomes) != 1 || results[0].Outcomes[0] != "VERB" {
		t.Errorf("expected [VERB], got %v", results[0].Outcomes)
	}
}

func TestSearchModelScope(t *testing.T) {
	indexer := newTestIndexer(t)
	indexer.IndexModel("tagger", taggerModel(t))
	indexer.IndexModel("other", taggerModel(t))

	all, err := indexer.Search("prev", 10)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("expected a hit per model, got %d", len(all))
	}

	scoped, err := indexer.SearchModel("prev", "other", 10)
	if err != nil {
		t.Fatalf("SearchModel failed: %v", err)
	}
	if len(scoped) != 1 || scoped[0].Model != "other" {
		t.Errorf("expected one hit in 'other', got %+v", scoped)
	}
}

func TestByOutcome(t *testing.T) {
	indexer := newTestIndexer(t)
	indexer.IndexModel("tagger", taggerModel(t))

	results, err := indexer.ByOutcome("tagger", "ADJ", 10)
	if err != nil {
		t.Fatalf("ByOutcome failed: %v", err)
	}
	if len(results) != 2 {
		t.Errorf("expected word=running and cap=true, got %+v", results)
	}
}

func TestSearchNoResults(t *testing.T) {
	indexer := newTestIndexer(t)
	indexer.IndexModel("tagger", taggerModel(t))

	results, err := indexer.Search("zzzzqqqq", 10)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("expected no results, got %d", len(results))
	}
}

func TestRemoveModel(t *testing.T) {
	indexer := newTestIndexer(t)
	indexer.IndexModel("tagger", taggerModel(t))
	indexer.IndexModel("other", taggerModel(t))

	if err := indexer.RemoveModel("tagger"); err != nil {
		t.Fatalf("RemoveModel failed: %v", err)
	}
	if count, _ := indexer.Count(); count != 4 {
		t.Errorf("expected 4 predicates left, got %d", count)
	}
	if results, _ := indexer.SearchModel("running", "tagger", 10); len(results) != 0 {
		t.Errorf("removed model still searchable: %+v", results)
	}
}

func TestIndexerWithPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "predicates.bleve")

	indexer, err := NewIndexerWithPath(path, nil)
	if err != nil {
		t.Fatalf("NewIndexerWithPath failed: %v", err)
	}
	if err := indexer.IndexModel("tagger", taggerModel(t)); err != nil {
		t.Fatalf("IndexModel failed: %v", err)
	}
	indexer.Close()

	reopened, err := NewIndexerWithPath(path, nil)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer reopened.Close()

	if count, _ := reopened.Count(); count != 4 {
		t.Errorf("expected 4 predicates after reopen, got %d", count)
	}
}
