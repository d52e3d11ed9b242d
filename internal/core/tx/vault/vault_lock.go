package vault

import (
	"github.com/tokenvault/tokenvaultd/internal/core/ledger/keylet"
	"github.com/tokenvault/tokenvaultd/internal/core/tx"
)

// VaultLock moves the owner's unit of the vault's asset into the
// custodial holding and marks the vault locked. Only the vault owner can
// lock, and only while the vault is unlocked.
type VaultLock struct {
	tx.BaseTx

	// AssetID is the hex-encoded identifier of the vault's asset (required)
	AssetID string `json:"AssetID"`
}

// NewVaultLock creates a new VaultLock transaction
func NewVaultLock(account, assetID string) *VaultLock {
	return &VaultLock{
		BaseTx:  *tx.NewBaseTx(tx.TypeVaultLock, account),
		AssetID: assetID,
	}
}

// Validate validates the VaultLock transaction
func (v *VaultLock) Validate() error {
	if err := v.BaseTx.Validate(); err != nil {
		return err
	}
	if _, err := parseAssetID(v.AssetID); err != nil {
		return err
	}
	return nil
}

// Flatten returns a flat map of all transaction fields
func (v *VaultLock) Flatten() (map[string]any, error) {
	m := v.Common.ToMap()
	m["AssetID"] = v.AssetID
	return m, nil
}

// Apply applies a VaultLock transaction
func (v *VaultLock) Apply(ctx *tx.ApplyContext) tx.Result {
	assetID, err := parseAssetID(v.AssetID)
	if err != nil {
		return tx.TemMALFORMED
	}

	vault, vaultKey, res := readVault(ctx, assetID)
	if !res.IsSuccess() {
		return res
	}
	if vault.State == tx.VaultLocked {
		return tx.TecALREADY_LOCKED
	}

	// The owner must hold exactly the one unit being locked
	ownerHolding, ownerKey, res := readHolding(ctx, assetID, ctx.AccountID)
	if !res.IsSuccess() {
		return res
	}
	if ownerHolding.Balance != 1 {
		return tx.TecBALANCE_MISMATCH
	}

	custodyAuthority := keylet.CustodyAuthority(vaultKey.Key, vault.Bump)
	custody, custodyKey, res := readHolding(ctx, assetID, custodyAuthority)
	if !res.IsSuccess() {
		return res
	}
	if custody.Balance != 0 {
		return tx.TecBALANCE_MISMATCH
	}

	ownerHolding.Balance = 0
	custody.Balance = 1
	vault.State = tx.VaultLocked

	if res := writeHolding(ctx, ownerKey, ownerHolding); !res.IsSuccess() {
		return res
	}
	if res := writeHolding(ctx, custodyKey, custody); !res.IsSuccess() {
		return res
	}
	return writeVault(ctx, vaultKey, vault)
}
