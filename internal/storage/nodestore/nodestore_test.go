package nodestore

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/tokenvault/tokenvaultd/internal/storage/nodestore/compression"
)

func memoryConfig() *Config {
	return &Config{
		Backend:    "memory",
		CacheSize:  16,
		CacheTTL:   time.Minute,
		Compressor: "none",
	}
}

func TestMemoryBackendLifecycle(t *testing.T) {
	b := NewMemoryBackend()
	if b.IsOpen() {
		t.Fatal("backend should start closed")
	}
	if err := b.Open(true); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if err := b.Open(true); err == nil {
		t.Error("double Open should fail")
	}

	node := NewNode(NodeState, Blob("hello"))
	if status := b.Store(node); status != OK {
		t.Fatalf("Store: got %v, expected OK", status)
	}

	got, status := b.Fetch(node.Hash)
	if status != OK {
		t.Fatalf("Fetch: got %v, expected OK", status)
	}
	if !bytes.Equal(got.Data, node.Data) {
		t.Errorf("Fetch data mismatch: got %q, expected %q", got.Data, node.Data)
	}

	// Mutating the returned node must not affect the stored copy.
	got.Data[0] = 'X'
	again, _ := b.Fetch(node.Hash)
	if !bytes.Equal(again.Data, Blob("hello")) {
		t.Error("stored data was mutated through a fetched copy")
	}

	if _, status := b.Fetch(Hash256{1}); status != NotFound {
		t.Errorf("missing key: got %v, expected NotFound", status)
	}

	if err := b.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if _, status := b.Fetch(node.Hash); status != BackendFailure {
		t.Error("fetch after close should fail")
	}
}

func TestDatabaseStoreFetch(t *testing.T) {
	db, err := New(memoryConfig())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer db.Close()

	ctx := context.Background()
	node := NewNode(NodeTransaction, Blob("tx blob"))

	if err := db.Store(ctx, node); err != nil {
		t.Fatalf("Store failed: %v", err)
	}

	got, err := db.Fetch(ctx, node.Hash)
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if got.Type != NodeTransaction {
		t.Errorf("type mismatch: got %v", got.Type)
	}
	if !bytes.Equal(got.Data, node.Data) {
		t.Errorf("data mismatch: got %q", got.Data)
	}

	if _, err := db.Fetch(ctx, Hash256{0xFF}); !IsNotFound(err) {
		t.Errorf("missing node: got %v, expected not-found", err)
	}

	stats := db.Stats()
	if stats.Reads != 2 {
		t.Errorf("stats reads: got %d, expected 2", stats.Reads)
	}
	if stats.CacheHits != 1 {
		t.Errorf("stats cache hits: got %d, expected 1 (store primes the cache)", stats.CacheHits)
	}
}

func TestDatabaseBatch(t *testing.T) {
	db, err := New(memoryConfig())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer db.Close()

	ctx := context.Background()
	nodes := []*Node{
		NewNode(NodeState, Blob("one")),
		NewNode(NodeState, Blob("two")),
		NewNode(NodeHeader, Blob("three")),
	}
	if err := db.StoreBatch(ctx, nodes); err != nil {
		t.Fatalf("StoreBatch failed: %v", err)
	}

	hashes := []Hash256{nodes[0].Hash, {0xAB}, nodes[2].Hash}
	results, err := db.FetchBatch(ctx, hashes)
	if err != nil {
		t.Fatalf("FetchBatch failed: %v", err)
	}
	if results[0] == nil || results[2] == nil {
		t.Error("stored nodes should be returned")
	}
	if results[1] != nil {
		t.Error("missing node should be nil in batch result")
	}
}

func TestEncodingRoundTrip(t *testing.T) {
	comp, err := compression.Get("lz4")
	if err != nil {
		t.Fatalf("get lz4: %v", err)
	}

	// Large repetitive payload compresses; tiny payload is stored raw.
	payloads := []Blob{
		Blob(bytes.Repeat([]byte("ledger state "), 100)),
		Blob("tiny"),
	}
	for _, payload := range payloads {
		node := NewNode(NodeState, payload)
		node.LedgerSeq = 7

		encoded, err := encodeNode(node, comp, 1)
		if err != nil {
			t.Fatalf("encodeNode failed: %v", err)
		}
		decoded, err := decodeNode(node.Hash, encoded, comp)
		if err != nil {
			t.Fatalf("decodeNode failed: %v", err)
		}
		if !bytes.Equal(decoded.Data, payload) {
			t.Errorf("payload mismatch after round trip (len %d)", len(payload))
		}
		if decoded.LedgerSeq != 7 {
			t.Errorf("ledger seq mismatch: got %d", decoded.LedgerSeq)
		}
		if decoded.Type != NodeState {
			t.Errorf("type mismatch: got %v", decoded.Type)
		}
	}
}

func TestLZ4CompressorRoundTrip(t *testing.T) {
	comp, err := compression.Get("lz4")
	if err != nil {
		t.Fatalf("get lz4: %v", err)
	}

	data := bytes.Repeat([]byte("abcdefgh"), 512)
	compressed, err := comp.Compress(data, 1)
	if err != nil {
		t.Fatalf("Compress failed: %v", err)
	}
	if len(compressed) >= len(data) {
		t.Errorf("repetitive data should compress: %d >= %d", len(compressed), len(data))
	}

	out, err := comp.Decompress(compressed)
	if err != nil {
		t.Fatalf("Decompress failed: %v", err)
	}
	if !bytes.Equal(out, data) {
		t.Error("round trip mismatch")
	}
}

func TestConfigValidate(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}

	bad := *cfg
	bad.Backend = ""
	if err := bad.Validate(); err == nil {
		t.Error("empty backend should fail validation")
	}

	bad = *cfg
	bad.Compressor = "zip"
	if err := bad.Validate(); err == nil {
		t.Error("unknown compressor should fail validation")
	}

	mem := Config{Backend: "memory"}
	if err := mem.Validate(); err != nil {
		t.Errorf("memory backend should not require a path: %v", err)
	}
}

func TestBackendRegistry(t *testing.T) {
	for _, name := range []string{"memory", "pebble", "leveldb"} {
		found := false
		for _, have := range AvailableBackends() {
			if have == name {
				found = true
			}
		}
		if !found {
			t.Errorf("backend %s should be registered", name)
		}
	}

	if _, err := CreateBackend("bogus", nil); err == nil {
		t.Error("unknown backend should fail")
	}
}
