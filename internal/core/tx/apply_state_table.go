package tx

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/tokenvault/tokenvaultd/internal/core/ledger/keylet"
)

// Action represents the type of modification to a ledger record
type Action int

const (
	// ActionCache means the record was read but not modified
	ActionCache Action = iota
	// ActionInsert means a new record was created
	ActionInsert
	// ActionModify means an existing record was modified
	ActionModify
	// ActionErase means a record was deleted
	ActionErase
)

// TrackedEntry represents a ledger record being tracked for changes
type TrackedEntry struct {
	Action   Action
	Original []byte // Original state (nil for inserts)
	Current  []byte // Current state
}

// ApplyStateTable wraps a LedgerView and buffers all modifications made
// while a transaction applies. Nothing reaches the base view until
// Apply() commits; a failed transaction simply drops the table, which is
// what makes transaction effects all-or-nothing.
type ApplyStateTable struct {
	base   LedgerView
	items  map[[32]byte]*TrackedEntry
	txHash [32]byte
	txSeq  uint32
}

// NewApplyStateTable creates a new ApplyStateTable wrapping the given base view
func NewApplyStateTable(base LedgerView, txHash [32]byte, txSeq uint32) *ApplyStateTable {
	return &ApplyStateTable{
		base:   base,
		items:  make(map[[32]byte]*TrackedEntry),
		txHash: txHash,
		txSeq:  txSeq,
	}
}

// Read reads a ledger record, tracking it as cached
func (t *ApplyStateTable) Read(k keylet.Keylet) ([]byte, error) {
	if entry, exists := t.items[k.Key]; exists {
		if entry.Action == ActionErase {
			return nil, nil
		}
		return entry.Current, nil
	}

	data, err := t.base.Read(k)
	if err != nil {
		return nil, err
	}

	// Only track records that exist in the base
	if data != nil {
		t.items[k.Key] = &TrackedEntry{
			Action:   ActionCache,
			Original: data,
			Current:  data,
		}
	}

	return data, nil
}

// Exists checks if a record exists
func (t *ApplyStateTable) Exists(k keylet.Keylet) (bool, error) {
	if entry, exists := t.items[k.Key]; exists {
		return entry.Action != ActionErase, nil
	}
	return t.base.Exists(k)
}

// Insert adds a new record
func (t *ApplyStateTable) Insert(k keylet.Keylet, data []byte) error {
	if entry, exists := t.items[k.Key]; exists {
		if entry.Action != ActionErase {
			return fmt.Errorf("record already exists")
		}
		// Re-inserting a deleted record becomes a modify
		entry.Action = ActionModify
		entry.Current = data
		return nil
	}

	exists, err := t.base.Exists(k)
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("record already exists")
	}

	t.items[k.Key] = &TrackedEntry{
		Action:   ActionInsert,
		Original: nil,
		Current:  data,
	}

	return nil
}

// Update modifies an existing record
func (t *ApplyStateTable) Update(k keylet.Keylet, data []byte) error {
	if entry, exists := t.items[k.Key]; exists {
		if entry.Action == ActionErase {
			return fmt.Errorf("record not found (deleted)")
		}
		if entry.Action == ActionCache {
			entry.Action = ActionModify
		}
		// For insert, keep it as insert with new data
		entry.Current = data
		return nil
	}

	original, err := t.base.Read(k)
	if err != nil {
		return err
	}

	t.items[k.Key] = &TrackedEntry{
		Action:   ActionModify,
		Original: original,
		Current:  data,
	}

	return nil
}

// Erase removes a record
func (t *ApplyStateTable) Erase(k keylet.Keylet) error {
	if entry, exists := t.items[k.Key]; exists {
		if entry.Action == ActionErase {
			return fmt.Errorf("record already deleted")
		}
		if entry.Action == ActionInsert {
			// Inserting then deleting = no change
			delete(t.items, k.Key)
			return nil
		}
		// Current keeps the state before deletion for metadata
		entry.Action = ActionErase
		return nil
	}

	original, err := t.base.Read(k)
	if err != nil {
		return err
	}

	t.items[k.Key] = &TrackedEntry{
		Action:   ActionErase,
		Original: original,
		Current:  original,
	}

	return nil
}

// IsErased returns true if the record at the given key has been erased.
func (t *ApplyStateTable) IsErased(k keylet.Keylet) bool {
	if entry, exists := t.items[k.Key]; exists {
		return entry.Action == ActionErase
	}
	return false
}

// ForEach iterates over all state records. Buffered changes are not
// visible through iteration; this delegates to the base view.
func (t *ApplyStateTable) ForEach(fn func(key [32]byte, data []byte) bool) error {
	return t.base.ForEach(fn)
}

// Apply commits all buffered changes to the base view and returns
// generated metadata describing them.
func (t *ApplyStateTable) Apply() (*Metadata, error) {
	metadata := &Metadata{
		AffectedNodes: make([]AffectedNode, 0),
	}

	for key, entry := range t.items {
		switch entry.Action {
		case ActionCache:
			continue

		case ActionInsert:
			metadata.AffectedNodes = append(metadata.AffectedNodes, buildCreatedNode(key, entry.Current))
			if err := t.base.Insert(keylet.Keylet{Key: key}, entry.Current); err != nil {
				return nil, err
			}

		case ActionModify:
			// Skip if no actual change
			if bytes.Equal(entry.Original, entry.Current) {
				continue
			}
			metadata.AffectedNodes = append(metadata.AffectedNodes, buildModifiedNode(key, entry.Original, entry.Current))
			if err := t.base.Update(keylet.Keylet{Key: key}, entry.Current); err != nil {
				return nil, err
			}

		case ActionErase:
			metadata.AffectedNodes = append(metadata.AffectedNodes, buildDeletedNode(key, entry.Original, entry.Current))
			if err := t.base.Erase(keylet.Keylet{Key: key}); err != nil {
				return nil, err
			}
		}
	}

	return metadata, nil
}

// buildCreatedNode creates metadata for a newly created record
func buildCreatedNode(key [32]byte, data []byte) AffectedNode {
	return AffectedNode{
		NodeType:    "CreatedNode",
		RecordType:  RecordTypeName(data),
		LedgerIndex: strings.ToUpper(hex.EncodeToString(key[:])),
		NewFields:   recordFields(data),
	}
}

// buildModifiedNode creates metadata for a modified record
func buildModifiedNode(key [32]byte, original, current []byte) AffectedNode {
	node := AffectedNode{
		NodeType:    "ModifiedNode",
		RecordType:  RecordTypeName(current),
		LedgerIndex: strings.ToUpper(hex.EncodeToString(key[:])),
		FinalFields: recordFields(current),
	}

	// PreviousFields: only the fields that changed
	origFields := recordFields(original)
	prev := make(map[string]any)
	for name, origValue := range origFields {
		if currValue, ok := node.FinalFields[name]; !ok || fmt.Sprintf("%v", origValue) != fmt.Sprintf("%v", currValue) {
			prev[name] = origValue
		}
	}
	if len(prev) > 0 {
		node.PreviousFields = prev
	}

	return node
}

// buildDeletedNode creates metadata for a deleted record
func buildDeletedNode(key [32]byte, original, current []byte) AffectedNode {
	return AffectedNode{
		NodeType:    "DeletedNode",
		RecordType:  RecordTypeName(current),
		LedgerIndex: strings.ToUpper(hex.EncodeToString(key[:])),
		FinalFields: recordFields(current),
	}
}
