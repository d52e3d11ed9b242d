package tx

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/tokenvault/tokenvaultd/internal/core/native"
)

// Record discriminators. Every serialized ledger record starts with one
// byte identifying its type; parsing a record with the wrong
// discriminator fails rather than reinterpreting the bytes.
const (
	RecordAccountRoot byte = 0x01
	RecordAsset       byte = 0x02
	RecordHolding     byte = 0x03
	RecordVault       byte = 0x04
	RecordSwap        byte = 0x05
)

// ErrBadRecord is returned when record bytes fail to deserialize
var ErrBadRecord = errors.New("bad ledger record")

// VaultState tracks whether a vault currently holds its asset
type VaultState uint8

const (
	VaultUnlocked VaultState = 0
	VaultLocked   VaultState = 1
)

// String returns the state name
func (s VaultState) String() string {
	switch s {
	case VaultUnlocked:
		return "unlocked"
	case VaultLocked:
		return "locked"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(s))
	}
}

// SwapStatus tracks the lifecycle of a swap listing
type SwapStatus uint8

const (
	SwapOpen      SwapStatus = 0
	SwapExecuted  SwapStatus = 1
	SwapCancelled SwapStatus = 2
)

// String returns the status name
func (s SwapStatus) String() string {
	switch s {
	case SwapOpen:
		return "open"
	case SwapExecuted:
		return "executed"
	case SwapCancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(s))
	}
}

// AccountRoot is the ledger record for an account
type AccountRoot struct {
	AccountID         [20]byte
	Balance           native.Amount
	Sequence          uint32
	OwnerCount        uint32
	Flags             uint32
	PreviousTxnID     [32]byte
	PreviousTxnLgrSeq uint32
}

// SerializeAccountRoot encodes an AccountRoot record
func SerializeAccountRoot(a *AccountRoot) ([]byte, error) {
	buf := new(bytes.Buffer)
	buf.WriteByte(RecordAccountRoot)
	buf.Write(a.AccountID[:])
	binary.Write(buf, binary.BigEndian, uint64(a.Balance))
	binary.Write(buf, binary.BigEndian, a.Sequence)
	binary.Write(buf, binary.BigEndian, a.OwnerCount)
	binary.Write(buf, binary.BigEndian, a.Flags)
	buf.Write(a.PreviousTxnID[:])
	binary.Write(buf, binary.BigEndian, a.PreviousTxnLgrSeq)
	return buf.Bytes(), nil
}

// ParseAccountRoot decodes an AccountRoot record
func ParseAccountRoot(data []byte) (*AccountRoot, error) {
	const size = 1 + 20 + 8 + 4 + 4 + 4 + 32 + 4
	if len(data) != size || data[0] != RecordAccountRoot {
		return nil, ErrBadRecord
	}
	a := &AccountRoot{}
	off := 1
	copy(a.AccountID[:], data[off:off+20])
	off += 20
	a.Balance = native.Amount(binary.BigEndian.Uint64(data[off:]))
	off += 8
	a.Sequence = binary.BigEndian.Uint32(data[off:])
	off += 4
	a.OwnerCount = binary.BigEndian.Uint32(data[off:])
	off += 4
	a.Flags = binary.BigEndian.Uint32(data[off:])
	off += 4
	copy(a.PreviousTxnID[:], data[off:off+32])
	off += 32
	a.PreviousTxnLgrSeq = binary.BigEndian.Uint32(data[off:])
	return a, nil
}

// AssetRecord is the ledger record for an issued asset. Supply is fixed
// at issuance and is always 1 for custody assets.
type AssetRecord struct {
	AssetID [32]byte
	Issuer  [20]byte
	Supply  uint64
	Name    string
	Symbol  string
	URI     string
}

// SerializeAsset encodes an AssetRecord
func SerializeAsset(a *AssetRecord) ([]byte, error) {
	if len(a.Name) > maxAssetNameLength || len(a.Symbol) > maxAssetSymbolLength || len(a.URI) > maxAssetURILength {
		return nil, ErrBadRecord
	}
	buf := new(bytes.Buffer)
	buf.WriteByte(RecordAsset)
	buf.Write(a.AssetID[:])
	buf.Write(a.Issuer[:])
	binary.Write(buf, binary.BigEndian, a.Supply)
	writeString(buf, a.Name)
	writeString(buf, a.Symbol)
	writeString(buf, a.URI)
	return buf.Bytes(), nil
}

// ParseAsset decodes an AssetRecord
func ParseAsset(data []byte) (*AssetRecord, error) {
	if len(data) < 1+32+20+8 || data[0] != RecordAsset {
		return nil, ErrBadRecord
	}
	a := &AssetRecord{}
	off := 1
	copy(a.AssetID[:], data[off:off+32])
	off += 32
	copy(a.Issuer[:], data[off:off+20])
	off += 20
	a.Supply = binary.BigEndian.Uint64(data[off:])
	off += 8

	var err error
	if a.Name, off, err = readString(data, off); err != nil {
		return nil, err
	}
	if a.Symbol, off, err = readString(data, off); err != nil {
		return nil, err
	}
	if a.URI, off, err = readString(data, off); err != nil {
		return nil, err
	}
	if off != len(data) {
		return nil, ErrBadRecord
	}
	return a, nil
}

// HoldingRecord is the ledger record for an asset balance under an
// authority. Custodial marks holdings whose authority is a derived
// custody authority rather than an account.
type HoldingRecord struct {
	Asset     [32]byte
	Authority [20]byte
	Balance   uint64
	Custodial bool
}

// SerializeHolding encodes a HoldingRecord
func SerializeHolding(h *HoldingRecord) ([]byte, error) {
	buf := new(bytes.Buffer)
	buf.WriteByte(RecordHolding)
	buf.Write(h.Asset[:])
	buf.Write(h.Authority[:])
	binary.Write(buf, binary.BigEndian, h.Balance)
	if h.Custodial {
		buf.WriteByte(1)
	} else {
		buf.WriteByte(0)
	}
	return buf.Bytes(), nil
}

// ParseHolding decodes a HoldingRecord
func ParseHolding(data []byte) (*HoldingRecord, error) {
	const size = 1 + 32 + 20 + 8 + 1
	if len(data) != size || data[0] != RecordHolding {
		return nil, ErrBadRecord
	}
	h := &HoldingRecord{}
	off := 1
	copy(h.Asset[:], data[off:off+32])
	off += 32
	copy(h.Authority[:], data[off:off+20])
	off += 20
	h.Balance = binary.BigEndian.Uint64(data[off:])
	off += 8
	h.Custodial = data[off] == 1
	return h, nil
}

// VaultRecord is the ledger record for a custody vault. Bump is the byte
// used to derive the vault's custody authority.
type VaultRecord struct {
	Owner [20]byte
	Asset [32]byte
	Bump  uint8
	State VaultState
}

// SerializeVault encodes a VaultRecord
func SerializeVault(v *VaultRecord) ([]byte, error) {
	buf := new(bytes.Buffer)
	buf.WriteByte(RecordVault)
	buf.Write(v.Owner[:])
	buf.Write(v.Asset[:])
	buf.WriteByte(v.Bump)
	buf.WriteByte(byte(v.State))
	return buf.Bytes(), nil
}

// ParseVault decodes a VaultRecord
func ParseVault(data []byte) (*VaultRecord, error) {
	const size = 1 + 20 + 32 + 1 + 1
	if len(data) != size || data[0] != RecordVault {
		return nil, ErrBadRecord
	}
	v := &VaultRecord{}
	off := 1
	copy(v.Owner[:], data[off:off+20])
	off += 20
	copy(v.Asset[:], data[off:off+32])
	off += 32
	v.Bump = data[off]
	off++
	v.State = VaultState(data[off])
	if v.State > VaultLocked {
		return nil, ErrBadRecord
	}
	return v, nil
}

// SwapRecord is the ledger record for a swap listing
type SwapRecord struct {
	Seller [20]byte
	Asset  [32]byte
	Price  native.Amount
	Status SwapStatus
}

// SerializeSwap encodes a SwapRecord
func SerializeSwap(s *SwapRecord) ([]byte, error) {
	buf := new(bytes.Buffer)
	buf.WriteByte(RecordSwap)
	buf.Write(s.Seller[:])
	buf.Write(s.Asset[:])
	binary.Write(buf, binary.BigEndian, uint64(s.Price))
	buf.WriteByte(byte(s.Status))
	return buf.Bytes(), nil
}

// ParseSwap decodes a SwapRecord
func ParseSwap(data []byte) (*SwapRecord, error) {
	const size = 1 + 20 + 32 + 8 + 1
	if len(data) != size || data[0] != RecordSwap {
		return nil, ErrBadRecord
	}
	s := &SwapRecord{}
	off := 1
	copy(s.Seller[:], data[off:off+20])
	off += 20
	copy(s.Asset[:], data[off:off+32])
	off += 32
	s.Price = native.Amount(binary.BigEndian.Uint64(data[off:]))
	off += 8
	s.Status = SwapStatus(data[off])
	if s.Status > SwapCancelled {
		return nil, ErrBadRecord
	}
	return s, nil
}

// Asset metadata limits
const (
	maxAssetNameLength   = 128
	maxAssetSymbolLength = 16
	maxAssetURILength    = 512
)

func writeString(buf *bytes.Buffer, s string) {
	var lenBytes [2]byte
	binary.BigEndian.PutUint16(lenBytes[:], uint16(len(s)))
	buf.Write(lenBytes[:])
	buf.WriteString(s)
}

func readString(data []byte, off int) (string, int, error) {
	if off+2 > len(data) {
		return "", 0, ErrBadRecord
	}
	length := int(binary.BigEndian.Uint16(data[off:]))
	off += 2
	if off+length > len(data) {
		return "", 0, ErrBadRecord
	}
	return string(data[off : off+length]), off + length, nil
}

// RecordTypeName returns the name of the record type for serialized data
func RecordTypeName(data []byte) string {
	if len(data) == 0 {
		return "Unknown"
	}
	switch data[0] {
	case RecordAccountRoot:
		return "AccountRoot"
	case RecordAsset:
		return "Asset"
	case RecordHolding:
		return "Holding"
	case RecordVault:
		return "Vault"
	case RecordSwap:
		return "Swap"
	default:
		return "Unknown"
	}
}

// recordFields decodes a record into a field map for metadata
func recordFields(data []byte) map[string]any {
	if len(data) == 0 {
		return nil
	}
	switch data[0] {
	case RecordAccountRoot:
		a, err := ParseAccountRoot(data)
		if err != nil {
			return nil
		}
		return map[string]any{
			"AccountID":  hex.EncodeToString(a.AccountID[:]),
			"Balance":    uint64(a.Balance),
			"Sequence":   a.Sequence,
			"OwnerCount": a.OwnerCount,
			"Flags":      a.Flags,
		}
	case RecordAsset:
		a, err := ParseAsset(data)
		if err != nil {
			return nil
		}
		return map[string]any{
			"AssetID": hex.EncodeToString(a.AssetID[:]),
			"Issuer":  hex.EncodeToString(a.Issuer[:]),
			"Supply":  a.Supply,
			"Name":    a.Name,
			"Symbol":  a.Symbol,
			"URI":     a.URI,
		}
	case RecordHolding:
		h, err := ParseHolding(data)
		if err != nil {
			return nil
		}
		return map[string]any{
			"Asset":     hex.EncodeToString(h.Asset[:]),
			"Authority": hex.EncodeToString(h.Authority[:]),
			"Balance":   h.Balance,
			"Custodial": h.Custodial,
		}
	case RecordVault:
		v, err := ParseVault(data)
		if err != nil {
			return nil
		}
		return map[string]any{
			"Owner": hex.EncodeToString(v.Owner[:]),
			"Asset": hex.EncodeToString(v.Asset[:]),
			"Bump":  uint32(v.Bump),
			"State": v.State.String(),
		}
	case RecordSwap:
		s, err := ParseSwap(data)
		if err != nil {
			return nil
		}
		return map[string]any{
			"Seller": hex.EncodeToString(s.Seller[:]),
			"Asset":  hex.EncodeToString(s.Asset[:]),
			"Price":  uint64(s.Price),
			"Status": s.Status.String(),
		}
	default:
		return nil
	}
}
