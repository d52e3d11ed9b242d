package nodestore

import (
	"fmt"
	"sync/atomic"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/errors"
	"github.com/syndtr/goleveldb/leveldb/filter"
	"github.com/syndtr/goleveldb/leveldb/opt"

	"github.com/tokenvault/tokenvaultd/internal/storage/nodestore/compression"
)

// LevelBackend stores nodes in goleveldb. It is the lighter-weight
// alternative to pebble for small deployments.
type LevelBackend struct {
	db         *leveldb.DB
	compressor compression.Compressor
	config     *Config

	open atomic.Bool
}

// NewLevelBackend creates a goleveldb backend from configuration.
func NewLevelBackend(config *Config) (Backend, error) {
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

	return &LevelBackend{
		compressor: comp,
		config:     config,
	}, nil
}

func (l *LevelBackend) Name() string {
	return fmt.Sprintf("leveldb(%s)", l.config.Path)
}

func (l *LevelBackend) Open(createIfMissing bool) error {
	if !l.open.CompareAndSwap(false, true) {
		return fmt.Errorf("backend already open")
	}

	opts := &opt.Options{
		Filter:                 filter.NewBloomFilter(10),
		BlockCacheCapacity:     64 << 20,
		WriteBuffer:            32 << 20,
		OpenFilesCacheCapacity: 512,
		// The nodestore compresses values itself.
		Compression:    opt.NoCompression,
		ErrorIfMissing: !createIfMissing,
	}

	db, err := leveldb.OpenFile(l.config.Path, opts)
	if err != nil {
		l.open.Store(false)
		return fmt.Errorf("open leveldb at %s: %w", l.config.Path, err)
	}
	l.db = db
	return nil
}

func (l *LevelBackend) Close() error {
	if !l.open.CompareAndSwap(true, false) {
		return nil
	}

	var err error
	if l.db != nil {
		err = l.db.Close()
		l.db = nil
	}
	return err
}

func (l *LevelBackend) IsOpen() bool {
	return l.open.Load()
}

func (l *LevelBackend) Fetch(key Hash256) (*Node, Status) {
	if !l.IsOpen() {
		return nil, BackendFailure
	}

	value, err := l.db.Get(key[:], nil)
	if err != nil {
		if err == errors.ErrNotFound {
			return nil, NotFound
		}
		return nil, BackendFailure
	}

	node, err := decodeNode(key, value, l.compressor)
	if err != nil {
		return nil, DataCorrupt
	}
	return node, OK
}

func (l *LevelBackend) Store(node *Node) Status {
	if node == nil || !l.IsOpen() {
		return BackendFailure
	}

	value, err := encodeNode(node, l.compressor, l.config.CompressionLevel)
	if err != nil {
		return BackendFailure
	}
	if err := l.db.Put(node.Hash[:], value, nil); err != nil {
		return BackendFailure
	}
	return OK
}

func (l *LevelBackend) StoreBatch(nodes []*Node) Status {
	if !l.IsOpen() {
		return BackendFailure
	}
	if len(nodes) == 0 {
		return OK
	}

	batch := new(leveldb.Batch)
	for _, node := range nodes {
		if node == nil {
			continue
		}
		value, err := encodeNode(node, l.compressor, l.config.CompressionLevel)
		if err != nil {
			return BackendFailure
		}
		batch.Put(node.Hash[:], value)
	}

	if err := l.db.Write(batch, nil); err != nil {
		return BackendFailure
	}
	return OK
}

func (l *LevelBackend) Sync() Status {
	if !l.IsOpen() {
		return BackendFailure
	}
	// goleveldb has no explicit flush; a synced write forces the journal out.
	if err := l.db.Put([]byte("__sync__"), nil, &opt.WriteOptions{Sync: true}); err != nil {
		return BackendFailure
	}
	if err := l.db.Delete([]byte("__sync__"), nil); err != nil {
		return BackendFailure
	}
	return OK
}

func (l *LevelBackend) ForEach(fn func(*Node) error) error {
	if !l.IsOpen() {
		return ErrBackendClosed
	}

	iter := l.db.NewIterator(nil, nil)
	defer iter.Release()

	for iter.Next() {
		key := iter.Key()
		if len(key) != 32 {
			continue
		}
		var hash Hash256
		copy(hash[:], key)

		node, err := decodeNode(hash, iter.Value(), l.compressor)
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
	RegisterBackend("leveldb", NewLevelBackend)
}
