// Package vault implements the VaultCreate, VaultLock, and VaultUnlock
// transactions. A vault gives one asset a custody home: locking moves the
// owner's single unit under a derived authority no key can sign for, and
// unlocking moves it back.
package vault

import (
	"encoding/hex"
	"errors"

	"github.com/tokenvault/tokenvaultd/internal/core/ledger/keylet"
	"github.com/tokenvault/tokenvaultd/internal/core/tx"
)

func init() {
	tx.Register(tx.TypeVaultCreate, func() tx.Transaction {
		return &VaultCreate{BaseTx: *tx.NewBaseTx(tx.TypeVaultCreate, "")}
	})
	tx.Register(tx.TypeVaultLock, func() tx.Transaction {
		return &VaultLock{BaseTx: *tx.NewBaseTx(tx.TypeVaultLock, "")}
	})
	tx.Register(tx.TypeVaultUnlock, func() tx.Transaction {
		return &VaultUnlock{BaseTx: *tx.NewBaseTx(tx.TypeVaultUnlock, "")}
	})
}

// Vault errors
var (
	ErrAssetIDRequired = errors.New("temMALFORMED: AssetID is required")
	ErrBadAssetID      = errors.New("temMALFORMED: AssetID must be 32 bytes of hex")
)

// parseAssetID decodes a hex-encoded 32-byte asset identifier
func parseAssetID(s string) ([32]byte, error) {
	var id [32]byte
	if s == "" {
		return id, ErrAssetIDRequired
	}
	raw, err := hex.DecodeString(s)
	if err != nil || len(raw) != 32 {
		return id, ErrBadAssetID
	}
	copy(id[:], raw)
	return id, nil
}

// readVault loads and checks the vault owned by the transaction's source
// account for the given asset. The second return is a non-success result
// when the vault is missing or the stored bytes are damaged.
func readVault(ctx *tx.ApplyContext, assetID [32]byte) (*tx.VaultRecord, keylet.Keylet, tx.Result) {
	vaultKey := keylet.Vault(ctx.AccountID, assetID)

	data, err := ctx.View.Read(vaultKey)
	if err != nil {
		return nil, vaultKey, tx.TefINTERNAL
	}
	if data == nil {
		return nil, vaultKey, tx.TecNO_ENTRY
	}

	vault, err := tx.ParseVault(data)
	if err != nil {
		return nil, vaultKey, tx.TefBAD_RECORD
	}
	// Vault keys derive from the source account, so a stored owner that
	// differs can only come from a damaged record
	if vault.Owner != ctx.AccountID {
		return nil, vaultKey, tx.TecUNAUTHORIZED
	}
	if vault.Asset != assetID {
		return nil, vaultKey, tx.TecASSET_MISMATCH
	}

	return vault, vaultKey, tx.TesSUCCESS
}

// readHolding loads a holding record, returning nil when absent
func readHolding(ctx *tx.ApplyContext, assetID [32]byte, authority [20]byte) (*tx.HoldingRecord, keylet.Keylet, tx.Result) {
	holdingKey := keylet.Holding(assetID, authority)

	data, err := ctx.View.Read(holdingKey)
	if err != nil {
		return nil, holdingKey, tx.TefINTERNAL
	}
	if data == nil {
		return nil, holdingKey, tx.TecNO_ENTRY
	}

	holding, err := tx.ParseHolding(data)
	if err != nil {
		return nil, holdingKey, tx.TefBAD_RECORD
	}
	if holding.Asset != assetID {
		return nil, holdingKey, tx.TecASSET_MISMATCH
	}

	return holding, holdingKey, tx.TesSUCCESS
}

// writeHolding serializes and updates a holding record
func writeHolding(ctx *tx.ApplyContext, key keylet.Keylet, holding *tx.HoldingRecord) tx.Result {
	data, err := tx.SerializeHolding(holding)
	if err != nil {
		return tx.TefINTERNAL
	}
	if err := ctx.View.Update(key, data); err != nil {
		return tx.TefINTERNAL
	}
	return tx.TesSUCCESS
}

// writeVault serializes and updates a vault record
func writeVault(ctx *tx.ApplyContext, key keylet.Keylet, vault *tx.VaultRecord) tx.Result {
	data, err := tx.SerializeVault(vault)
	if err != nil {
		return tx.TefINTERNAL
	}
	if err := ctx.View.Update(key, data); err != nil {
		return tx.TefINTERNAL
	}
	return tx.TesSUCCESS
}
