// Package crypto provides key handling, account identifiers and transaction
// signatures for the custody ledger.
package crypto

import (
	"crypto/sha256"

	"github.com/decred/dcrd/crypto/ripemd160"
)

// AccountID computes the 20-byte account identifier for a public key:
// RIPEMD-160 over SHA-256 of the serialized key.
func AccountID(pubKey []byte) [20]byte {
	sha := sha256.Sum256(pubKey)
	h := ripemd160.New()
	h.Write(sha[:])

	var id [20]byte
	copy(id[:], h.Sum(nil))
	return id
}
