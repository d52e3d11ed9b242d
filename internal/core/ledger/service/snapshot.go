package service

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/ugorji/go/codec"
)

// snapshotVersion is bumped whenever the snapshot layout changes.
const snapshotVersion = 1

// snapshotMagic identifies a tokenvaultd snapshot stream.
var snapshotMagic = [4]byte{'T', 'V', 'S', snapshotVersion}

// ErrBadSnapshot is returned when a snapshot stream fails to decode or
// its contents do not match its own header.
var ErrBadSnapshot = errors.New("bad snapshot")

// Snapshot is a full copy of one ledger's state map, msgpack-encoded on
// the wire. Entries are sorted by key so two snapshots of the same
// ledger are byte-identical.
type Snapshot struct {
	LedgerSeq   uint32          `codec:"ledger_seq"`
	LedgerHash  [32]byte        `codec:"ledger_hash"`
	StateHash   [32]byte        `codec:"state_hash"`
	CloseTime   int64           `codec:"close_time"`
	TotalGrains uint64          `codec:"total_grains"`
	Entries     []SnapshotEntry `codec:"entries"`
}

// SnapshotEntry is one state record keyed by its ledger address.
type SnapshotEntry struct {
	Key  [32]byte `codec:"key"`
	Data []byte   `codec:"data"`
}

func snapshotHandle() *codec.MsgpackHandle {
	return &codec.MsgpackHandle{WriteExt: true}
}

// ExportSnapshot writes a snapshot of the selected ledger to w.
func (s *Service) ExportSnapshot(w io.Writer, ledgerIndex string) (*Snapshot, error) {
	s.mu.RLock()
	if !s.started {
		s.mu.RUnlock()
		return nil, ErrNotStarted
	}
	l, err := s.getLedgerForQuery(ledgerIndex)
	if err != nil {
		s.mu.RUnlock()
		return nil, err
	}

	snap := &Snapshot{
		LedgerSeq:   l.Sequence(),
		LedgerHash:  l.Hash(),
		StateHash:   l.StateMapHash(),
		CloseTime:   l.CloseTime().Unix(),
		TotalGrains: l.TotalGrains(),
	}
	err = l.ForEach(func(key [32]byte, data []byte) bool {
		entry := SnapshotEntry{Key: key, Data: make([]byte, len(data))}
		copy(entry.Data, data)
		snap.Entries = append(snap.Entries, entry)
		return true
	})
	s.mu.RUnlock()
	if err != nil {
		return nil, err
	}

	sort.Slice(snap.Entries, func(i, j int) bool {
		return bytes.Compare(snap.Entries[i].Key[:], snap.Entries[j].Key[:]) < 0
	})

	if _, err := w.Write(snapshotMagic[:]); err != nil {
		return nil, err
	}
	if err := codec.NewEncoder(w, snapshotHandle()).Encode(snap); err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	return snap, nil
}

// WriteSnapshotFile exports the selected ledger to a file at path.
func (s *Service) WriteSnapshotFile(path, ledgerIndex string) (*Snapshot, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	snap, err := s.ExportSnapshot(f, ledgerIndex)
	if err != nil {
		f.Close()
		os.Remove(path)
		return nil, err
	}
	if err := f.Close(); err != nil {
		return nil, err
	}
	return snap, nil
}

// ReadSnapshot decodes and checks a snapshot stream.
func ReadSnapshot(r io.Reader) (*Snapshot, error) {
	var magic [4]byte
	if _, err := io.ReadFull(r, magic[:]); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadSnapshot, err)
	}
	if magic != snapshotMagic {
		return nil, fmt.Errorf("%w: unrecognized header", ErrBadSnapshot)
	}

	snap := &Snapshot{}
	if err := codec.NewDecoder(r, snapshotHandle()).Decode(snap); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadSnapshot, err)
	}

	// Keys must be sorted and unique
	for i := 1; i < len(snap.Entries); i++ {
		if bytes.Compare(snap.Entries[i-1].Key[:], snap.Entries[i].Key[:]) >= 0 {
			return nil, fmt.Errorf("%w: entries out of order", ErrBadSnapshot)
		}
	}
	return snap, nil
}

// ReadSnapshotFile decodes a snapshot from a file at path.
func ReadSnapshotFile(path string) (*Snapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadSnapshot(f)
}
