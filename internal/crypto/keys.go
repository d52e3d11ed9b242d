package crypto

import (
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"fmt"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	secpecdsa "github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
)

// KeyType identifies the signing algorithm behind a key pair.
type KeyType string

const (
	KeyTypeEd25519   KeyType = "ed25519"
	KeyTypeSecp256k1 KeyType = "secp256k1"
)

// ed25519Prefix marks an ed25519 public key in its serialized form. The
// secp256k1 compressed encoding always starts with 0x02 or 0x03, so the
// prefix byte disambiguates the two without a separate type field.
const ed25519Prefix = 0xED

var (
	ErrUnknownKeyType = errors.New("unknown key type")
	ErrBadPublicKey   = errors.New("malformed public key")
)

// KeyPair holds a generated signing key pair. PublicKey is the serialized
// form that gets hashed into an account ID and embedded in transactions.
type KeyPair struct {
	Type       KeyType
	PublicKey  []byte
	PrivateKey []byte
}

// GenerateKeyPair creates a fresh key pair of the given type.
func GenerateKeyPair(kt KeyType) (*KeyPair, error) {
	switch kt {
	case KeyTypeEd25519:
		pub, priv, err := ed25519.GenerateKey(rand.Reader)
		if err != nil {
			return nil, fmt.Errorf("ed25519 keygen: %w", err)
		}
		serialized := append([]byte{ed25519Prefix}, pub...)
		return &KeyPair{Type: kt, PublicKey: serialized, PrivateKey: priv}, nil

	case KeyTypeSecp256k1:
		priv, err := secp256k1.GeneratePrivateKey()
		if err != nil {
			return nil, fmt.Errorf("secp256k1 keygen: %w", err)
		}
		return &KeyPair{
			Type:       kt,
			PublicKey:  priv.PubKey().SerializeCompressed(),
			PrivateKey: priv.Serialize(),
		}, nil

	default:
		return nil, ErrUnknownKeyType
	}
}

// KeyPairFromSeed derives a deterministic key pair from a seed. The same
// seed and type always produce the same keys.
func KeyPairFromSeed(kt KeyType, seed []byte) (*KeyPair, error) {
	digest := Sha512Half(seed)
	switch kt {
	case KeyTypeEd25519:
		priv := ed25519.NewKeyFromSeed(digest[:])
		pub := priv.Public().(ed25519.PublicKey)
		serialized := append([]byte{ed25519Prefix}, pub...)
		return &KeyPair{Type: kt, PublicKey: serialized, PrivateKey: priv}, nil

	case KeyTypeSecp256k1:
		priv := secp256k1.PrivKeyFromBytes(digest[:])
		return &KeyPair{
			Type:       kt,
			PublicKey:  priv.PubKey().SerializeCompressed(),
			PrivateKey: priv.Serialize(),
		}, nil

	default:
		return nil, ErrUnknownKeyType
	}
}

// Sign signs a 32-byte digest with the key pair.
func (kp *KeyPair) Sign(digest [32]byte) ([]byte, error) {
	switch kp.Type {
	case KeyTypeEd25519:
		return ed25519.Sign(ed25519.PrivateKey(kp.PrivateKey), digest[:]), nil
	case KeyTypeSecp256k1:
		priv := secp256k1.PrivKeyFromBytes(kp.PrivateKey)
		sig := secpecdsa.Sign(priv, digest[:])
		return sig.Serialize(), nil
	default:
		return nil, ErrUnknownKeyType
	}
}

// VerifySignature verifies a signature over a 32-byte digest against a
// serialized public key. The key's leading byte selects the algorithm.
func VerifySignature(pubKey []byte, digest [32]byte, sig []byte) bool {
	if len(pubKey) == 0 {
		return false
	}

	if pubKey[0] == ed25519Prefix {
		if len(pubKey) != 1+ed25519.PublicKeySize {
			return false
		}
		return ed25519.Verify(ed25519.PublicKey(pubKey[1:]), digest[:], sig)
	}

	parsed, err := secp256k1.ParsePubKey(pubKey)
	if err != nil {
		return false
	}
	parsedSig, err := secpecdsa.ParseDERSignature(sig)
	if err != nil {
		return false
	}
	return parsedSig.Verify(digest[:], parsed)
}
