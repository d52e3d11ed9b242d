// Package addresscodec encodes 20-byte account identifiers as base58check
// addresses. Addresses carry a one-byte version prefix and a 4-byte
// double-SHA-256 checksum.
package addresscodec

import (
	"bytes"
	"crypto/sha256"
	"errors"
	"math/big"
)

const (
	// accountPrefix is the version byte for account addresses. It maps to
	// a leading 'v' in the base58 alphabet below.
	accountPrefix = 0x46

	checksumLength  = 4
	accountIDLength = 20
)

// alphabet is the bitcoin base58 alphabet.
const alphabet = "123456789ABCDEFGHJKLMNPQRSTUVWXYZabcdefghijkmnopqrstuvwxyz"

var (
	ErrInvalidAddress  = errors.New("invalid address")
	ErrInvalidChecksum = errors.New("invalid address checksum")
)

// Encode encodes a 20-byte account ID into its address form.
func Encode(accountID [20]byte) string {
	payload := make([]byte, 0, 1+accountIDLength+checksumLength)
	payload = append(payload, accountPrefix)
	payload = append(payload, accountID[:]...)
	payload = append(payload, checksum(payload)...)
	return base58Encode(payload)
}

// Decode decodes an address back into its 20-byte account ID.
func Decode(address string) ([20]byte, error) {
	var id [20]byte

	payload, err := base58Decode(address)
	if err != nil {
		return id, err
	}
	if len(payload) != 1+accountIDLength+checksumLength {
		return id, ErrInvalidAddress
	}
	if payload[0] != accountPrefix {
		return id, ErrInvalidAddress
	}

	body := payload[:1+accountIDLength]
	if !bytes.Equal(checksum(body), payload[1+accountIDLength:]) {
		return id, ErrInvalidChecksum
	}

	copy(id[:], body[1:])
	return id, nil
}

// IsValid reports whether a string parses as a well-formed address.
func IsValid(address string) bool {
	_, err := Decode(address)
	return err == nil
}

// checksum is the first 4 bytes of double SHA-256.
func checksum(data []byte) []byte {
	first := sha256.Sum256(data)
	second := sha256.Sum256(first[:])
	return second[:checksumLength]
}

func base58Encode(input []byte) string {
	x := new(big.Int).SetBytes(input)
	base := big.NewInt(58)
	mod := new(big.Int)

	var out []byte
	for x.Sign() > 0 {
		x.DivMod(x, base, mod)
		out = append(out, alphabet[mod.Int64()])
	}

	// Leading zero bytes map to the alphabet's zero character.
	for _, b := range input {
		if b != 0 {
			break
		}
		out = append(out, alphabet[0])
	}

	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return string(out)
}

func base58Decode(input string) ([]byte, error) {
	x := big.NewInt(0)
	base := big.NewInt(58)

	for _, c := range input {
		idx := bytes.IndexByte([]byte(alphabet), byte(c))
		if idx < 0 {
			return nil, ErrInvalidAddress
		}
		x.Mul(x, base)
		x.Add(x, big.NewInt(int64(idx)))
	}

	decoded := x.Bytes()

	// Restore leading zeros.
	var zeros int
	for i := 0; i < len(input) && input[i] == alphabet[0]; i++ {
		zeros++
	}

	out := make([]byte, zeros+len(decoded))
	copy(out[zeros:], decoded)
	return out, nil
}
