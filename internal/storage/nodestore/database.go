package nodestore

import (
	"context"
	"sync/atomic"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// store is the Database implementation: a backend fronted by an
// expiring LRU read cache.
type store struct {
	backend Backend
	cache   *expirable.LRU[Hash256, *Node]

	reads  atomic.Uint64
	hits   atomic.Uint64
	misses atomic.Uint64
	writes atomic.Uint64
}

// New opens a Database using the configured backend.
func New(config *Config) (Database, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	backend, err := CreateBackend(config.Backend, config)
	if err != nil {
		return nil, err
	}
	if err := backend.Open(config.CreateIfMissing); err != nil {
		return nil, err
	}
	return NewWithBackend(backend, config), nil
}

// NewWithBackend wraps an already-open backend.
func NewWithBackend(backend Backend, config *Config) Database {
	if config == nil {
		config = DefaultConfig()
	}

	var cache *expirable.LRU[Hash256, *Node]
	if config.CacheSize > 0 {
		cache = expirable.NewLRU[Hash256, *Node](config.CacheSize, nil, config.CacheTTL)
	}
	return &store{backend: backend, cache: cache}
}

func (s *store) Store(ctx context.Context, node *Node) error {
	if node == nil || len(node.Data) == 0 {
		return ErrInvalidNode
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	status := s.backend.Store(node)
	if status != OK {
		return wrapStatus("store", s.backend.Name(), node.Hash, status)
	}

	s.writes.Add(1)
	if s.cache != nil {
		s.cache.Add(node.Hash, node.clone())
	}
	return nil
}

func (s *store) StoreBatch(ctx context.Context, nodes []*Node) error {
	if len(nodes) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	status := s.backend.StoreBatch(nodes)
	if status != OK {
		return wrapStatus("store_batch", s.backend.Name(), Hash256{}, status)
	}

	s.writes.Add(uint64(len(nodes)))
	if s.cache != nil {
		for _, node := range nodes {
			if node != nil {
				s.cache.Add(node.Hash, node.clone())
			}
		}
	}
	return nil
}

func (s *store) Fetch(ctx context.Context, hash Hash256) (*Node, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.reads.Add(1)
	if s.cache != nil {
		if node, ok := s.cache.Get(hash); ok {
			s.hits.Add(1)
			return node.clone(), nil
		}
	}
	s.misses.Add(1)

	node, status := s.backend.Fetch(hash)
	if status != OK {
		return nil, wrapStatus("fetch", s.backend.Name(), hash, status)
	}

	if s.cache != nil {
		s.cache.Add(hash, node.clone())
	}
	return node, nil
}

func (s *store) FetchBatch(ctx context.Context, hashes []Hash256) ([]*Node, error) {
	results := make([]*Node, len(hashes))
	for i, hash := range hashes {
		node, err := s.Fetch(ctx, hash)
		if err != nil {
			if IsNotFound(err) {
				continue
			}
			return nil, err
		}
		results[i] = node
	}
	return results, nil
}

func (s *store) Stats() Statistics {
	return Statistics{
		Reads:       s.reads.Load(),
		CacheHits:   s.hits.Load(),
		CacheMisses: s.misses.Load(),
		Writes:      s.writes.Load(),
		BackendName: s.backend.Name(),
	}
}

func (s *store) Sync() error {
	if status := s.backend.Sync(); status != OK {
		return wrapStatus("sync", s.backend.Name(), Hash256{}, status)
	}
	return nil
}

func (s *store) Close() error {
	if s.cache != nil {
		s.cache.Purge()
	}
	return s.backend.Close()
}

// IsNotFound reports whether err signals a missing node.
func IsNotFound(err error) bool {
	if err == nil {
		return false
	}
	if err == ErrNotFound {
		return true
	}
	se, ok := err.(*StoreError)
	return ok && se.Cause == ErrNotFound
}
