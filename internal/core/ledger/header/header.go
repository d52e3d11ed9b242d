package header

import (
	"encoding/binary"
	"errors"
	"time"

	crypto "github.com/tokenvault/tokenvaultd/internal/crypto"
)

// Ledger close flags
const LCFNoConsensusTime uint32 = 0x01

var ErrShortHeader = errors.New("header: serialized header too short")

// hash prefix mixed into the ledger hash computation
var ledgerPrefix = []byte("LGR\x00")

// LedgerHeader describes a ledger at a point in time. For open ledgers
// only LedgerIndex, ParentHash and ParentCloseTime are meaningful; the
// remaining fields are filled in at close.
type LedgerHeader struct {
	LedgerIndex uint32

	// TotalGrains is the total native currency in existence.
	TotalGrains uint64

	ParentHash  [32]byte
	TxHash      [32]byte
	AccountHash [32]byte

	ParentCloseTime time.Time
	CloseTime       time.Time

	// CloseTimeResolution is the rounding applied to CloseTime (seconds).
	CloseTimeResolution uint32
	CloseFlags          uint32

	// Hash is set once the ledger closes.
	Hash [32]byte
}

// GetCloseAgree returns true if there was consensus on the close time.
func (h *LedgerHeader) GetCloseAgree() bool {
	return (h.CloseFlags & LCFNoConsensusTime) == 0
}

// CalculateHash computes the ledger hash over the header contents.
func (h *LedgerHeader) CalculateHash() [32]byte {
	var buf [4 + 8 + 32 + 32 + 32 + 8 + 8 + 4 + 4]byte
	off := 0
	binary.BigEndian.PutUint32(buf[off:], h.LedgerIndex)
	off += 4
	binary.BigEndian.PutUint64(buf[off:], h.TotalGrains)
	off += 8
	copy(buf[off:], h.ParentHash[:])
	off += 32
	copy(buf[off:], h.TxHash[:])
	off += 32
	copy(buf[off:], h.AccountHash[:])
	off += 32
	binary.BigEndian.PutUint64(buf[off:], uint64(h.ParentCloseTime.Unix()))
	off += 8
	binary.BigEndian.PutUint64(buf[off:], uint64(h.CloseTime.Unix()))
	off += 8
	binary.BigEndian.PutUint32(buf[off:], h.CloseTimeResolution)
	off += 4
	binary.BigEndian.PutUint32(buf[off:], h.CloseFlags)
	return crypto.Sha512Half(ledgerPrefix, buf[:])
}

// Serialize encodes the header in a fixed-width big-endian layout,
// hash included.
func (h *LedgerHeader) Serialize() []byte {
	buf := make([]byte, 4+8+32+32+32+8+8+4+4+32)
	off := 0
	binary.BigEndian.PutUint32(buf[off:], h.LedgerIndex)
	off += 4
	binary.BigEndian.PutUint64(buf[off:], h.TotalGrains)
	off += 8
	copy(buf[off:], h.ParentHash[:])
	off += 32
	copy(buf[off:], h.TxHash[:])
	off += 32
	copy(buf[off:], h.AccountHash[:])
	off += 32
	binary.BigEndian.PutUint64(buf[off:], uint64(h.ParentCloseTime.Unix()))
	off += 8
	binary.BigEndian.PutUint64(buf[off:], uint64(h.CloseTime.Unix()))
	off += 8
	binary.BigEndian.PutUint32(buf[off:], h.CloseTimeResolution)
	off += 4
	binary.BigEndian.PutUint32(buf[off:], h.CloseFlags)
	off += 4
	copy(buf[off:], h.Hash[:])
	return buf
}

// Deserialize decodes a header produced by Serialize.
func Deserialize(data []byte) (*LedgerHeader, error) {
	const size = 4 + 8 + 32 + 32 + 32 + 8 + 8 + 4 + 4 + 32
	if len(data) < size {
		return nil, ErrShortHeader
	}
	h := &LedgerHeader{}
	off := 0
	h.LedgerIndex = binary.BigEndian.Uint32(data[off:])
	off += 4
	h.TotalGrains = binary.BigEndian.Uint64(data[off:])
	off += 8
	copy(h.ParentHash[:], data[off:])
	off += 32
	copy(h.TxHash[:], data[off:])
	off += 32
	copy(h.AccountHash[:], data[off:])
	off += 32
	h.ParentCloseTime = time.Unix(int64(binary.BigEndian.Uint64(data[off:])), 0).UTC()
	off += 8
	h.CloseTime = time.Unix(int64(binary.BigEndian.Uint64(data[off:])), 0).UTC()
	off += 8
	h.CloseTimeResolution = binary.BigEndian.Uint32(data[off:])
	off += 4
	h.CloseFlags = binary.BigEndian.Uint32(data[off:])
	off += 4
	copy(h.Hash[:], data[off:])
	return h, nil
}
