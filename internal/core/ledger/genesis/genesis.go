// Package genesis builds the first ledger: a single master account
// holding the entire native grain supply.
package genesis

import (
	"errors"
	"time"

	addresscodec "github.com/tokenvault/tokenvaultd/internal/codec/address-codec"
	"github.com/tokenvault/tokenvaultd/internal/core/ledger/header"
	"github.com/tokenvault/tokenvaultd/internal/core/ledger/keylet"
	"github.com/tokenvault/tokenvaultd/internal/core/native"
	"github.com/tokenvault/tokenvaultd/internal/core/tx"
	crypto "github.com/tokenvault/tokenvaultd/internal/crypto"
)

// DefaultMasterSeed is the well-known seed used in standalone mode.
const DefaultMasterSeed = "masterpassphrase"

// DefaultSupply is the full grain supply minted at genesis.
const DefaultSupply uint64 = 100_000_000_000 * uint64(native.GrainsPerToken)

// Config controls genesis ledger creation.
type Config struct {
	// MasterSeed derives the master account key pair.
	MasterSeed string

	// InitialSupply is the grain balance of the master account.
	InitialSupply uint64

	// CloseTime is the genesis close time. Zero means current time.
	CloseTime time.Time
}

// DefaultConfig returns the standalone-mode genesis configuration.
func DefaultConfig() Config {
	return Config{
		MasterSeed:    DefaultMasterSeed,
		InitialSupply: DefaultSupply,
	}
}

// Result holds the pieces of the genesis ledger.
type Result struct {
	Header header.LedgerHeader
	State  map[[32]byte][]byte
	Txs    map[[32]byte][]byte
}

// MasterKeyPair derives the master account keys from the configured seed.
func MasterKeyPair(seed string) (*crypto.KeyPair, error) {
	if seed == "" {
		return nil, errors.New("genesis: empty master seed")
	}
	return crypto.KeyPairFromSeed(crypto.KeyTypeEd25519, []byte(seed))
}

// MasterAccount returns the master account ID and address for a seed.
func MasterAccount(seed string) ([20]byte, string, error) {
	kp, err := MasterKeyPair(seed)
	if err != nil {
		return [20]byte{}, "", err
	}
	accountID := crypto.AccountID(kp.PublicKey)
	return accountID, addresscodec.Encode(accountID), nil
}

// Create builds the genesis ledger state.
func Create(cfg Config) (*Result, error) {
	if cfg.MasterSeed == "" {
		cfg.MasterSeed = DefaultMasterSeed
	}
	if cfg.InitialSupply == 0 {
		cfg.InitialSupply = DefaultSupply
	}
	closeTime := cfg.CloseTime
	if closeTime.IsZero() {
		closeTime = time.Now().UTC()
	}

	accountID, _, err := MasterAccount(cfg.MasterSeed)
	if err != nil {
		return nil, err
	}

	root := &tx.AccountRoot{
		AccountID: accountID,
		Balance:   native.Amount(cfg.InitialSupply),
		Sequence:  1,
	}
	data, err := tx.SerializeAccountRoot(root)
	if err != nil {
		return nil, err
	}

	state := map[[32]byte][]byte{
		keylet.Account(accountID).Key: data,
	}

	hdr := header.LedgerHeader{
		LedgerIndex:         1,
		TotalGrains:         cfg.InitialSupply,
		ParentCloseTime:     closeTime,
		CloseTime:           closeTime,
		CloseTimeResolution: 1,
	}

	return &Result{
		Header: hdr,
		State:  state,
		Txs:    map[[32]byte][]byte{},
	}, nil
}
