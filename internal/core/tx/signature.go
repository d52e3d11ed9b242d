package tx

import (
	"encoding/hex"
	"encoding/json"
	"errors"

	addresscodec "github.com/tokenvault/tokenvaultd/internal/codec/address-codec"
	crypto "github.com/tokenvault/tokenvaultd/internal/crypto"
)

// Signing errors
var (
	ErrNoSignature    = errors.New("transaction has no signature")
	ErrNoSigningKey   = errors.New("transaction has no signing public key")
	ErrBadSignature   = errors.New("signature verification failed")
	ErrWrongSigner    = errors.New("signing key does not match account")
	ErrAlreadySigned  = errors.New("transaction is already signed")
	ErrCannotSerialze = errors.New("transaction cannot be serialized for signing")
)

// Hash prefixes distinguishing the signing payload from the stored
// transaction hash.
var (
	signingPrefix = []byte{'S', 'T', 'X', 0x00}
	txIDPrefix    = []byte{'T', 'X', 'N', 0x00}
)

// canonicalJSON serializes a flattened transaction deterministically.
// encoding/json sorts map keys, which is all the canonicalization the
// flat field map needs.
func canonicalJSON(flat map[string]any) ([]byte, error) {
	return json.Marshal(flat)
}

// SigningDigest computes the digest a signer commits to: the canonical
// serialization of every field except the signature itself.
func SigningDigest(txn Transaction) ([32]byte, error) {
	var digest [32]byte

	flat, err := txn.Flatten()
	if err != nil {
		return digest, err
	}
	delete(flat, "TxnSignature")

	payload, err := canonicalJSON(flat)
	if err != nil {
		return digest, err
	}

	return crypto.Sha512Half(signingPrefix, payload), nil
}

// Hash computes the transaction's identifying hash over the full signed
// serialization.
func Hash(txn Transaction) ([32]byte, error) {
	var digest [32]byte

	flat, err := txn.Flatten()
	if err != nil {
		return digest, err
	}

	payload, err := canonicalJSON(flat)
	if err != nil {
		return digest, err
	}

	return crypto.Sha512Half(txIDPrefix, payload), nil
}

// Sign fills in SigningPubKey and TxnSignature on a transaction using
// the given key pair. The Account field must already match the key.
func Sign(txn Transaction, kp *crypto.KeyPair) error {
	common := txn.GetCommon()
	if common.TxnSignature != "" {
		return ErrAlreadySigned
	}

	accountID := crypto.AccountID(kp.PublicKey)
	if common.Account != addresscodec.Encode(accountID) {
		return ErrWrongSigner
	}

	common.SigningPubKey = hex.EncodeToString(kp.PublicKey)

	digest, err := SigningDigest(txn)
	if err != nil {
		return err
	}

	sig, err := kp.Sign(digest)
	if err != nil {
		return err
	}

	common.TxnSignature = hex.EncodeToString(sig)
	return nil
}

// VerifySignature checks a transaction's signature and that the signing
// key is authorized for the source account.
func VerifySignature(txn Transaction) error {
	common := txn.GetCommon()
	if common.SigningPubKey == "" {
		return ErrNoSigningKey
	}
	if common.TxnSignature == "" {
		return ErrNoSignature
	}

	pubKey, err := hex.DecodeString(common.SigningPubKey)
	if err != nil {
		return ErrBadSignature
	}
	sig, err := hex.DecodeString(common.TxnSignature)
	if err != nil {
		return ErrBadSignature
	}

	// The signing key must hash to the source account ID.
	accountID, err := common.AccountID()
	if err != nil {
		return ErrWrongSigner
	}
	if crypto.AccountID(pubKey) != accountID {
		return ErrWrongSigner
	}

	digest, err := SigningDigest(txn)
	if err != nil {
		return err
	}

	if !crypto.VerifySignature(pubKey, digest, sig) {
		return ErrBadSignature
	}
	return nil
}
