package search

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/index/scorch"
	"github.com/blevesearch/bleve/v2/mapping"
	"go.uber.org/zap"

	"github.com/khanglvm/maxent/internal/model"
)

// removeBatchSize bounds how many documents RemoveModel deletes per search.
const removeBatchSize = 1000

// Indexer manages the predicate search index.
type Indexer struct {
	bleveIndex bleve.Index
	mu         sync.RWMutex
	indexPath  string
	logger     *zap.Logger
}

// NewIndexer creates a search indexer backed by an in-memory Bleve index.
func NewIndexer(logger *zap.Logger) (*Indexer, error) {
	index, err := bleve.NewMemOnly(buildIndexMapping())
	if err != nil {
		return nil, fmt.Errorf("failed to create bleve index: %w", err)
	}

	return &Indexer{
		bleveIndex: index,
		logger:     orNop(logger),
	}, nil
}

// NewIndexerWithPath creates an indexer with persistent disk storage,
// reopening the index if it already exists.
func NewIndexerWithPath(indexPath string, logger *zap.Logger) (*Indexer, error) {
	if err := os.MkdirAll(filepath.Dir(indexPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create index directory: %w", err)
	}

	index, err := bleve.NewUsing(indexPath, buildIndexMapping(), scorch.Name, scorch.Name, nil)
	if err != nil {
		index, err = bleve.Open(indexPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open/create index: %w", err)
		}
	}

	return &Indexer{
		bleveIndex: index,
		indexPath:  indexPath,
		logger:     orNop(logger),
	}, nil
}

func orNop(logger *zap.Logger) *zap.Logger {
	if logger == nil {
		return zap.NewNop()
	}
	return logger
}

// buildIndexMapping creates the Bleve index mapping.
func buildIndexMapping() mapping.IndexMapping {
	doc := bleve.NewDocumentMapping()

	// Predicate names are free text; "prev=dog" is searchable by "dog".
	doc.AddFieldMappingsAt("name", bleve.NewTextFieldMapping())
	doc.AddFieldMappingsAt("outcomes", bleve.NewTextFieldMapping())
	doc.AddFieldMappingsAt("top_outcome", bleve.NewKeywordFieldMapping())

	// Model names are matched exactly.
	modelField := bleve.NewKeywordFieldMapping()
	modelField.IncludeInAll = false
	doc.AddFieldMappingsAt("model", modelField)

	pid := bleve.NewNumericFieldMapping()
	pid.IncludeInAll = false
	doc.AddFieldMappingsAt("pid", pid)

	weight := bleve.NewNumericFieldMapping()
	weight.IncludeInAll = false
	doc.AddFieldMappingsAt("top_weight", weight)

	indexMapping := bleve.NewIndexMapping()
	indexMapping.AddDocumentMapping("_default", doc)
	return indexMapping
}

// IndexModel indexes every predicate of a model, replacing any earlier
// documents of the same model.
func (i *Indexer) IndexModel(modelName string, m *model.Model) error {
	if err := i.RemoveModel(modelName); err != nil {
		return err
	}

	i.mu.Lock()
	defer i.mu.Unlock()

	batch := i.bleveIndex.NewBatch()
	for pid, name := range m.Predicates() {
		doc := newPredicateDocument(modelName, pid, name, m)
		docID := fmt.Sprintf("%s/%d", modelName, pid)
		if err := batch.Index(docID, doc); err != nil {
			i.logger.Warn("failed to index predicate", zap.String("id", docID), zap.Error(err))
		}
	}

	if err := i.bleveIndex.Batch(batch); err != nil {
		return fmt.Errorf("failed to batch index predicates: %w", err)
	}
	return nil
}

func newPredicateDocument(modelName string, pid int, name string, m *model.Model) predicateDocument {
	ctx := m.Context(pid)
	doc := predicateDocument{
		Model:     modelName,
		Name:      name,
		ID:        pid,
		Outcomes:  make([]string, len(ctx.Outcomes)),
		TopWeight: math.Inf(-1),
	}
	for j, o := range ctx.Outcomes {
		doc.Outcomes[j] = m.Outcome(o)
		if ctx.Params[j] > doc.TopWeight {
			doc.TopWeight = ctx.Params[j]
			doc.TopOutcome = m.Outcome(o)
		}
	}
	if len(ctx.Outcomes) == 0 {
		doc.TopWeight = 0
	}
	return doc
}

// RemoveModel removes all predicates of a model.
func (i *Indexer) RemoveModel(modelName string) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	q := bleve.NewTermQuery(modelName)
	q.SetField("model")

	for {
		req := bleve.NewSearchRequestOptions(q, removeBatchSize, 0, false)
		results, err := i.bleveIndex.Search(req)
		if err != nil {
			return fmt.Errorf("failed to find model docs: %w", err)
		}
		if len(results.Hits) == 0 {
			return nil
		}

		batch := i.bleveIndex.NewBatch()
		for _, hit := range results.Hits {
			batch.Delete(hit.ID)
		}
		if err := i.bleveIndex.Batch(batch); err != nil {
			return fmt.Errorf("failed to batch delete: %w", err)
		}
	}
}

// Count returns the total number of indexed predicates.
func (i *Indexer) Count() (uint64, error) {
	i.mu.RLock()
	defer i.mu.RUnlock()

	docCount, err := i.bleveIndex.DocCount()
	if err != nil {
		return 0, fmt.Errorf("failed to get doc count: %w", err)
	}
	return docCount, nil
}

// Close closes the index and releases resources.
func (i *Indexer) Close() error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.bleveIndex != nil {
		return i.bleveIndex.Close()
	}
	return nil
}
