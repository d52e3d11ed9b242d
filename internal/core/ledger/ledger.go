// Package ledger holds the in-memory ledger: a versioned key/value state
// map plus the transactions applied while the ledger was open.
package ledger

import (
	"encoding/binary"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/tokenvault/tokenvaultd/internal/core/ledger/header"
	"github.com/tokenvault/tokenvaultd/internal/core/ledger/keylet"
	crypto "github.com/tokenvault/tokenvaultd/internal/crypto"
)

var (
	ErrNotFound      = errors.New("ledger: entry not found")
	ErrAlreadyExists = errors.New("ledger: entry already exists")
	ErrImmutable     = errors.New("ledger: ledger is closed")
	ErrNotClosed     = errors.New("ledger: ledger is not closed")
	ErrAlreadyClosed = errors.New("ledger: ledger already closed")
)

// hash prefixes for the state and transaction map hashes
var (
	statePrefix = []byte("MLN\x00")
	txListPrefix = []byte("TXL\x00")
)

// Ledger is a single ledger version. An open ledger accepts state
// mutations and transactions; Close freezes it and computes its hash.
type Ledger struct {
	mu sync.RWMutex

	state map[[32]byte][]byte
	txs   map[[32]byte][]byte

	// txOrder preserves the order transactions were accepted in.
	txOrder [][32]byte

	hdr header.LedgerHeader

	closed    bool
	validated bool
}

// FromGenesis wraps an already-built genesis state into a closed,
// validated ledger.
func FromGenesis(hdr header.LedgerHeader, state map[[32]byte][]byte, txs map[[32]byte][]byte) *Ledger {
	l := &Ledger{
		state:     make(map[[32]byte][]byte, len(state)),
		txs:       make(map[[32]byte][]byte, len(txs)),
		hdr:       hdr,
		closed:    true,
		validated: true,
	}
	for k, v := range state {
		l.state[k] = append([]byte(nil), v...)
	}
	for k, v := range txs {
		l.txs[k] = append([]byte(nil), v...)
		l.txOrder = append(l.txOrder, k)
	}
	l.hdr.AccountHash = l.stateHashLocked()
	l.hdr.TxHash = l.txHashLocked()
	l.hdr.Hash = l.hdr.CalculateHash()
	return l
}

// NewOpen creates the next open ledger on top of a closed parent. The
// parent's state is copied; the transaction set starts empty.
func NewOpen(parent *Ledger, now time.Time) (*Ledger, error) {
	if parent == nil {
		return nil, errors.New("ledger: nil parent")
	}
	parent.mu.RLock()
	defer parent.mu.RUnlock()

	if !parent.closed {
		return nil, ErrNotClosed
	}

	l := &Ledger{
		state: make(map[[32]byte][]byte, len(parent.state)),
		txs:   make(map[[32]byte][]byte),
		hdr: header.LedgerHeader{
			LedgerIndex:         parent.hdr.LedgerIndex + 1,
			TotalGrains:         parent.hdr.TotalGrains,
			ParentHash:          parent.hdr.Hash,
			ParentCloseTime:     parent.hdr.CloseTime,
			CloseTimeResolution: parent.hdr.CloseTimeResolution,
		},
	}
	// For an open ledger CloseTime is the provisional close time.
	l.hdr.CloseTime = now.UTC()
	for k, v := range parent.state {
		l.state[k] = v
	}
	return l, nil
}

// Read implements tx.LedgerView.
func (l *Ledger) Read(k keylet.Keylet) ([]byte, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	data, ok := l.state[k.Key]
	if !ok {
		return nil, nil
	}
	return append([]byte(nil), data...), nil
}

// Exists implements tx.LedgerView.
func (l *Ledger) Exists(k keylet.Keylet) (bool, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	_, ok := l.state[k.Key]
	return ok, nil
}

// Insert implements tx.LedgerView.
func (l *Ledger) Insert(k keylet.Keylet, data []byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return ErrImmutable
	}
	if _, ok := l.state[k.Key]; ok {
		return ErrAlreadyExists
	}
	l.state[k.Key] = append([]byte(nil), data...)
	return nil
}

// Update implements tx.LedgerView.
func (l *Ledger) Update(k keylet.Keylet, data []byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return ErrImmutable
	}
	if _, ok := l.state[k.Key]; !ok {
		return ErrNotFound
	}
	l.state[k.Key] = append([]byte(nil), data...)
	return nil
}

// Erase implements tx.LedgerView.
func (l *Ledger) Erase(k keylet.Keylet) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return ErrImmutable
	}
	if _, ok := l.state[k.Key]; !ok {
		return ErrNotFound
	}
	delete(l.state, k.Key)
	return nil
}

// ForEach implements tx.LedgerView. Keys are visited in sorted order so
// iteration is deterministic.
func (l *Ledger) ForEach(fn func(key [32]byte, data []byte) bool) error {
	l.mu.RLock()
	keys := make([][32]byte, 0, len(l.state))
	for k := range l.state {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		return compareKeys(keys[i], keys[j]) < 0
	})
	snapshot := make([][]byte, len(keys))
	for i, k := range keys {
		snapshot[i] = l.state[k]
	}
	l.mu.RUnlock()

	for i, k := range keys {
		if !fn(k, snapshot[i]) {
			break
		}
	}
	return nil
}

// AddTransaction records a transaction blob in the open ledger.
func (l *Ledger) AddTransaction(txHash [32]byte, txData []byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return ErrImmutable
	}
	if _, ok := l.txs[txHash]; ok {
		return ErrAlreadyExists
	}
	l.txs[txHash] = append([]byte(nil), txData...)
	l.txOrder = append(l.txOrder, txHash)
	return nil
}

// GetTransaction returns a transaction blob by hash.
func (l *Ledger) GetTransaction(txHash [32]byte) ([]byte, bool, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	data, ok := l.txs[txHash]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), data...), true, nil
}

// TransactionHashes returns the hashes of applied transactions in the
// order they were accepted.
func (l *Ledger) TransactionHashes() [][32]byte {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([][32]byte(nil), l.txOrder...)
}

// TransactionCount returns the number of transactions in this ledger.
func (l *Ledger) TransactionCount() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.txs)
}

// Close freezes the ledger, computes the state and transaction hashes
// and the final ledger hash.
func (l *Ledger) Close(closeTime time.Time, resolution uint32) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return ErrAlreadyClosed
	}
	if resolution == 0 {
		resolution = 1
	}

	l.hdr.CloseTime = closeTime.UTC().Truncate(time.Duration(resolution) * time.Second)
	l.hdr.CloseTimeResolution = resolution
	l.hdr.AccountHash = l.stateHashLocked()
	l.hdr.TxHash = l.txHashLocked()
	l.hdr.Hash = l.hdr.CalculateHash()
	l.closed = true
	return nil
}

// SetValidated marks a closed ledger as validated. Validation is sticky.
func (l *Ledger) SetValidated() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.closed {
		return ErrNotClosed
	}
	l.validated = true
	return nil
}

func (l *Ledger) Sequence() uint32 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.hdr.LedgerIndex
}

func (l *Ledger) Hash() [32]byte {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.hdr.Hash
}

func (l *Ledger) ParentHash() [32]byte {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.hdr.ParentHash
}

func (l *Ledger) CloseTime() time.Time {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.hdr.CloseTime
}

// TotalGrains returns the total native currency recorded in the header.
func (l *Ledger) TotalGrains() uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.hdr.TotalGrains
}

func (l *Ledger) IsClosed() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.closed
}

func (l *Ledger) IsValidated() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.validated
}

// Header returns a copy of the ledger header.
func (l *Ledger) Header() header.LedgerHeader {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.hdr
}

// SerializeHeader returns the binary form of the header.
func (l *Ledger) SerializeHeader() []byte {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.hdr.Serialize()
}

// StateMapHash returns the hash over all state entries.
func (l *Ledger) StateMapHash() [32]byte {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.stateHashLocked()
}

// TxMapHash returns the hash over the applied transaction set.
func (l *Ledger) TxMapHash() [32]byte {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.txHashLocked()
}

// StateEntryCount returns the number of state entries.
func (l *Ledger) StateEntryCount() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.state)
}

// stateHashLocked hashes the state entries in key order. Callers hold
// at least a read lock.
func (l *Ledger) stateHashLocked() [32]byte {
	keys := make([][32]byte, 0, len(l.state))
	for k := range l.state {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		return compareKeys(keys[i], keys[j]) < 0
	})

	parts := make([][]byte, 0, 2*len(keys)+1)
	parts = append(parts, statePrefix)
	for _, k := range keys {
		key := k
		parts = append(parts, key[:], l.state[k])
	}
	return crypto.Sha512Half(parts...)
}

// txHashLocked hashes the transaction set in acceptance order.
func (l *Ledger) txHashLocked() [32]byte {
	parts := make([][]byte, 0, 2*len(l.txOrder)+2)
	parts = append(parts, txListPrefix)
	var count [4]byte
	binary.BigEndian.PutUint32(count[:], uint32(len(l.txOrder)))
	parts = append(parts, count[:])
	for _, h := range l.txOrder {
		hash := h
		parts = append(parts, hash[:], l.txs[h])
	}
	return crypto.Sha512Half(parts...)
}

func compareKeys(a, b [32]byte) int {
	for i := 0; i < 32; i++ {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}
	return 0
}
