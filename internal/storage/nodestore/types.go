// Package nodestore provides content-addressed persistent storage for
// ledger objects. Keys are 32-byte hashes; values are serialized ledger
// records, headers and transactions. Backends are pluggable, with
// optional caching and compression layered on top.
package nodestore

import (
	"context"
	"fmt"
	"time"

	crypto "github.com/tokenvault/tokenvaultd/internal/crypto"
)

// Hash256 is the content hash used as storage key.
type Hash256 [32]byte

// Blob is raw serialized object data.
type Blob []byte

// Hash256FromData computes the content hash of a blob.
func Hash256FromData(data Blob) Hash256 {
	return Hash256(crypto.Sha512Half(data))
}

// IsZero reports whether the hash is all zeros.
func (h Hash256) IsZero() bool {
	return h == Hash256{}
}

func (h Hash256) String() string {
	const hexChars = "0123456789ABCDEF"
	out := make([]byte, 64)
	for i, b := range h {
		out[i*2] = hexChars[b>>4]
		out[i*2+1] = hexChars[b&0x0F]
	}
	return string(out)
}

// NodeType classifies a stored object.
type NodeType uint32

const (
	NodeUnknown NodeType = 0
	// NodeHeader is a serialized ledger header.
	NodeHeader NodeType = 1
	// NodeState is a ledger state entry (account, asset, holding, vault, swap).
	NodeState NodeType = 2
	// NodeTransaction is a transaction blob.
	NodeTransaction NodeType = 3
)

func (nt NodeType) String() string {
	switch nt {
	case NodeUnknown:
		return "NodeUnknown"
	case NodeHeader:
		return "NodeHeader"
	case NodeState:
		return "NodeState"
	case NodeTransaction:
		return "NodeTransaction"
	default:
		return fmt.Sprintf("NodeType(%d)", uint32(nt))
	}
}

// Node is a stored object with its metadata.
type Node struct {
	Type      NodeType
	Hash      Hash256
	Data      Blob
	LedgerSeq uint32
	CreatedAt time.Time
}

// NewNode builds a node whose hash is derived from its data.
func NewNode(nodeType NodeType, data Blob) *Node {
	return &Node{
		Type:      nodeType,
		Hash:      Hash256FromData(data),
		Data:      data,
		CreatedAt: time.Now(),
	}
}

func (n *Node) Size() int {
	return len(n.Data)
}

// clone returns a deep copy so callers cannot mutate stored data.
func (n *Node) clone() *Node {
	c := &Node{
		Type:      n.Type,
		Hash:      n.Hash,
		Data:      make(Blob, len(n.Data)),
		LedgerSeq: n.LedgerSeq,
		CreatedAt: n.CreatedAt,
	}
	copy(c.Data, n.Data)
	return c
}

// Status is the outcome of a backend operation.
type Status int

const (
	OK Status = iota
	NotFound
	DataCorrupt
	BackendFailure
)

func (s Status) String() string {
	switch s {
	case OK:
		return "OK"
	case NotFound:
		return "NotFound"
	case DataCorrupt:
		return "DataCorrupt"
	case BackendFailure:
		return "BackendFailure"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// Backend is a raw storage backend.
type Backend interface {
	// Name identifies the backend.
	Name() string

	// Open readies the backend. createIfMissing creates the store on disk
	// if it does not exist.
	Open(createIfMissing bool) error

	// Close releases resources.
	Close() error

	// IsOpen reports whether the backend is usable.
	IsOpen() bool

	// Fetch retrieves a single object by key.
	Fetch(key Hash256) (*Node, Status)

	// Store saves a single object.
	Store(node *Node) Status

	// StoreBatch saves multiple objects in one write.
	StoreBatch(nodes []*Node) Status

	// Sync flushes pending writes.
	Sync() Status

	// ForEach visits every stored object.
	ForEach(fn func(*Node) error) error
}

// Database is the caching store served to the rest of the node.
type Database interface {
	Store(ctx context.Context, node *Node) error
	StoreBatch(ctx context.Context, nodes []*Node) error
	Fetch(ctx context.Context, hash Hash256) (*Node, error)
	FetchBatch(ctx context.Context, hashes []Hash256) ([]*Node, error)
	Stats() Statistics
	Sync() error
	Close() error
}

// Statistics holds store performance counters.
type Statistics struct {
	Reads       uint64
	CacheHits   uint64
	CacheMisses uint64
	Writes      uint64
	BackendName string
}

func (s Statistics) String() string {
	hitRate := float64(0)
	if s.Reads > 0 {
		hitRate = float64(s.CacheHits) / float64(s.Reads) * 100
	}
	return fmt.Sprintf("nodestore[%s]: reads=%d (%.1f%% cached) writes=%d",
		s.BackendName, s.Reads, hitRate, s.Writes)
}
