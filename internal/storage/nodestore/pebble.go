package nodestore

import (
	"fmt"
	"os"
	"runtime"
	"sync/atomic"

	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/bloom"

	"github.com/tokenvault/tokenvaultd/internal/storage/nodestore/compression"
)

// PebbleBackend stores nodes in a PebbleDB LSM tree. The workload is
// point lookups by content hash with batched writes at ledger close.
type PebbleBackend struct {
	db         *pebble.DB
	compressor compression.Compressor
	config     *Config

	open atomic.Bool
}

// NewPebbleBackend creates a PebbleDB backend from configuration.
func NewPebbleBackend(config *Config) (Backend, error) {
	if config == nil {
		config = DefaultConfig()
	}

	name := config.Compressor
	if name == "" {
		name = "none"
	}
	comp, err := compression.Get(name)
	if err != nil {
		return nil, fmt.Errorf("get compressor %s: %w", name, err)
	}

	return &PebbleBackend{
		compressor: comp,
		config:     config,
	}, nil
}

func (p *PebbleBackend) Name() string {
	return fmt.Sprintf("pebble(%s)", p.config.Path)
}

func (p *PebbleBackend) Open(createIfMissing bool) error {
	if !p.open.CompareAndSwap(false, true) {
		return fmt.Errorf("backend already open")
	}

	if createIfMissing {
		if err := os.MkdirAll(p.config.Path, 0o755); err != nil {
			p.open.Store(false)
			return fmt.Errorf("create directory %s: %w", p.config.Path, err)
		}
	}

	db, err := pebble.Open(p.config.Path, p.buildOptions())
	if err != nil {
		p.open.Store(false)
		return fmt.Errorf("open pebble at %s: %w", p.config.Path, err)
	}
	p.db = db
	return nil
}

// buildOptions tunes PebbleDB for hash-keyed point lookups.
func (p *PebbleBackend) buildOptions() *pebble.Options {
	opts := &pebble.Options{
		Cache:                       pebble.NewCache(256 << 20),
		MaxOpenFiles:                4096,
		MemTableSize:                64 << 20,
		MemTableStopWritesThreshold: 4,
		MaxConcurrentCompactions:    runtime.NumCPU,
		L0CompactionThreshold:       4,
		L0StopWritesThreshold:       20,
		LBaseMaxBytes:               256 << 20,
		Levels:                      make([]pebble.LevelOptions, 7),
	}

	for i := range opts.Levels {
		opts.Levels[i] = pebble.LevelOptions{
			BlockSize:      32 << 10,
			IndexBlockSize: 256 << 10,
			FilterPolicy:   bloom.FilterPolicy(10),
			FilterType:     pebble.TableFilter,
			TargetFileSize: int64(8<<20) << uint(i),
			// The nodestore compresses values itself.
			Compression: pebble.NoCompression,
		}
		if opts.Levels[i].TargetFileSize > 256<<20 {
			opts.Levels[i].TargetFileSize = 256 << 20
		}
	}
	return opts
}

func (p *PebbleBackend) Close() error {
	if !p.open.CompareAndSwap(true, false) {
		return nil
	}

	var err error
	if p.db != nil {
		if flushErr := p.db.Flush(); flushErr != nil {
			err = flushErr
		}
		if closeErr := p.db.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
		p.db = nil
	}
	return err
}

func (p *PebbleBackend) IsOpen() bool {
	return p.open.Load()
}

func (p *PebbleBackend) Fetch(key Hash256) (*Node, Status) {
	if !p.IsOpen() {
		return nil, BackendFailure
	}

	value, closer, err := p.db.Get(key[:])
	if err != nil {
		if err == pebble.ErrNotFound {
			return nil, NotFound
		}
		return nil, BackendFailure
	}
	defer closer.Close()

	node, err := decodeNode(key, value, p.compressor)
	if err != nil {
		return nil, DataCorrupt
	}
	return node, OK
}

func (p *PebbleBackend) Store(node *Node) Status {
	if node == nil || !p.IsOpen() {
		return BackendFailure
	}

	value, err := encodeNode(node, p.compressor, p.config.CompressionLevel)
	if err != nil {
		return BackendFailure
	}

	// NoSync: the WAL carries durability until an explicit Sync.
	if err := p.db.Set(node.Hash[:], value, pebble.NoSync); err != nil {
		return BackendFailure
	}
	return OK
}

func (p *PebbleBackend) StoreBatch(nodes []*Node) Status {
	if !p.IsOpen() {
		return BackendFailure
	}
	if len(nodes) == 0 {
		return OK
	}

	batch := p.db.NewBatch()
	defer batch.Close()

	for _, node := range nodes {
		if node == nil {
			continue
		}
		value, err := encodeNode(node, p.compressor, p.config.CompressionLevel)
		if err != nil {
			return BackendFailure
		}
		if err := batch.Set(node.Hash[:], value, nil); err != nil {
			return BackendFailure
		}
	}

	if err := batch.Commit(pebble.NoSync); err != nil {
		return BackendFailure
	}
	return OK
}

func (p *PebbleBackend) Sync() Status {
	if !p.IsOpen() {
		return BackendFailure
	}
	if err := p.db.Flush(); err != nil {
		return BackendFailure
	}
	return OK
}

func (p *PebbleBackend) ForEach(fn func(*Node) error) error {
	if !p.IsOpen() {
		return ErrBackendClosed
	}

	iter, err := p.db.NewIter(nil)
	if err != nil {
		return err
	}
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		key := iter.Key()
		if len(key) != 32 {
			continue
		}
		var hash Hash256
		copy(hash[:], key)

		node, err := decodeNode(hash, iter.Value(), p.compressor)
		if err != nil {
			continue
		}
		if err := fn(node); err != nil {
			return err
		}
	}
	return iter.Error()
}

func init() {
	RegisterBackend("pebble", NewPebbleBackend)
}
