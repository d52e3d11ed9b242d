// Package keylet computes the deterministic addresses of ledger records.
// Every record lives at a 256-bit key derived from a namespace identifier
// plus the fields that make the record unique; callers recompute the key
// and compare instead of trusting a supplied address.
package keylet

import (
	"encoding/binary"

	crypto "github.com/tokenvault/tokenvaultd/internal/crypto"
)

// Namespace identifiers for key derivation.
const (
	spaceAccount uint16 = 'a' // Account root
	spaceAsset   uint16 = 'm' // Asset record (mint)
	spaceHolding uint16 = 'h' // Asset holding
	spaceVault   uint16 = 'V' // Custody vault
	spaceSwap    uint16 = 's' // Swap listing
	spaceCustody uint16 = 'c' // Derived custody authority
)

// RecordType tags the kind of record a keylet addresses.
type RecordType uint8

const (
	TypeAny RecordType = iota
	TypeAccountRoot
	TypeAsset
	TypeHolding
	TypeVault
	TypeSwap
)

// Keylet is an addressable location in ledger state.
type Keylet struct {
	Type RecordType
	Key  [32]byte
}

// indexHash derives a key by hashing the namespace and the provided data.
func indexHash(space uint16, data ...[]byte) [32]byte {
	spaceBytes := make([]byte, 2)
	binary.BigEndian.PutUint16(spaceBytes, space)

	inputs := make([][]byte, 0, len(data)+1)
	inputs = append(inputs, spaceBytes)
	inputs = append(inputs, data...)

	return crypto.Sha512Half(inputs...)
}

// Account returns the keylet for an account root.
func Account(accountID [20]byte) Keylet {
	return Keylet{
		Type: TypeAccountRoot,
		Key:  indexHash(spaceAccount, accountID[:]),
	}
}

// Asset returns the keylet for an asset record. The key doubles as the
// asset's mint identifier: it is unique per (issuer, sequence) pair.
func Asset(issuerID [20]byte, sequence uint32) Keylet {
	seqBytes := make([]byte, 4)
	binary.BigEndian.PutUint32(seqBytes, sequence)
	return Keylet{
		Type: TypeAsset,
		Key:  indexHash(spaceAsset, issuerID[:], seqBytes),
	}
}

// Holding returns the keylet for the holding of an asset under an
// authority. The authority is either an account ID or a derived custody
// authority; either way exactly one holding record exists per pair.
func Holding(assetID [32]byte, authority [20]byte) Keylet {
	return Keylet{
		Type: TypeHolding,
		Key:  indexHash(spaceHolding, assetID[:], authority[:]),
	}
}

// Vault returns the keylet for a vault record.
func Vault(ownerID [20]byte, assetID [32]byte) Keylet {
	return Keylet{
		Type: TypeVault,
		Key:  indexHash(spaceVault, ownerID[:], assetID[:]),
	}
}

// Swap returns the keylet for a swap record.
func Swap(sellerID [20]byte, sequence uint32) Keylet {
	seqBytes := make([]byte, 4)
	binary.BigEndian.PutUint32(seqBytes, sequence)
	return Keylet{
		Type: TypeSwap,
		Key:  indexHash(spaceSwap, sellerID[:], seqBytes),
	}
}

// CustodyAuthority derives the 20-byte spending authority for a vault's
// custodial holding. The derivation is keyed by the vault's address and a
// bump byte recorded in the vault; no signing key exists for the result,
// so only program logic can move funds held under it. Unlock recomputes
// the authority from the stored bump and compares.
func CustodyAuthority(vaultKey [32]byte, bump uint8) [20]byte {
	full := indexHash(spaceCustody, vaultKey[:], []byte{bump})
	var authority [20]byte
	copy(authority[:], full[:20])
	return authority
}

// FindCustodyBump picks the bump byte for a new vault. Candidates are
// tried from 255 downward and the first whose authority does not collide
// with an existing holding authority is used. taken reports whether an
// authority is already in use.
func FindCustodyBump(vaultKey [32]byte, taken func([20]byte) bool) (uint8, [20]byte, bool) {
	for i := 255; i >= 0; i-- {
		bump := uint8(i)
		authority := CustodyAuthority(vaultKey, bump)
		if taken == nil || !taken(authority) {
			return bump, authority, true
		}
	}
	return 0, [20]byte{}, false
}
