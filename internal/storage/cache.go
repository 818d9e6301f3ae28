package storage

import (
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/khanglvm/maxent/internal/model"
)

// DefaultCacheSize is the number of models kept in memory by default.
const DefaultCacheSize = 8

// ModelLoader loads a model by name.
type ModelLoader interface {
	LoadModel(name string) (*model.Model, error)
}

// ModelCache keeps recently used models in memory. Models are immutable, so
// cached instances are shared by all callers.
type ModelCache struct {
	loader ModelLoader
	cache  *lru.Cache[string, *model.Model]

	// loadMu serializes misses so a model is loaded once.
	loadMu sync.Mutex
}

// NewModelCache creates a cache holding up to size models.
func NewModelCache(loader ModelLoader, size int) (*ModelCache, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	cache, err := lru.New[string, *model.Model](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create model cache: %w", err)
	}
	return &ModelCache{loader: loader, cache: cache}, nil
}

// Get returns the named model, loading it on a miss.
func (c *ModelCache) Get(name string) (*model.Model, error) {
	if m, ok := c.cache.Get(name); ok {
		return m, nil
	}

	c.loadMu.Lock()
	defer c.loadMu.Unlock()

	if m, ok := c.cache.Get(name); ok {
		return m, nil
	}

	m, err := c.loader.LoadModel(name)
	if err != nil {
		return nil, err
	}
	c.cache.Add(name, m)
	return m, nil
}

// Put stores a model, replacing any cached version.
func (c *ModelCache) Put(name string, m *model.Model) {
	c.cache.Add(name, m)
}

// Invalidate drops a model from the cache.
func (c *ModelCache) Invalidate(name string) {
	c.cache.Remove(name)
}

// Len returns the number of cached models.
func (c *ModelCache) Len() int {
	return c.cache.Len()
}
