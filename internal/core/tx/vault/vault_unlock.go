package vault

import (
	"github.com/tokenvault/tokenvaultd/internal/core/ledger/keylet"
	"github.com/tokenvault/tokenvaultd/internal/core/tx"
)

// VaultUnlock moves the custodied unit back to the vault owner's holding
// and marks the vault unlocked. The custody authority is recomputed from
// the vault's stored bump; a vault whose custodial holding does not sit
// at that derived authority cannot release funds.
type VaultUnlock struct {
	tx.BaseTx

	// AssetID is the hex-encoded identifier of the vault's asset (required)
	AssetID string `json:"AssetID"`
}

// NewVaultUnlock creates a new VaultUnlock transaction
func NewVaultUnlock(account, assetID string) *VaultUnlock {
	return &VaultUnlock{
		BaseTx:  *tx.NewBaseTx(tx.TypeVaultUnlock, account),
		AssetID: assetID,
	}
}

// Validate validates the VaultUnlock transaction
func (v *VaultUnlock) Validate() error {
	if err := v.BaseTx.Validate(); err != nil {
		return err
	}
	if _, err := parseAssetID(v.AssetID); err != nil {
		return err
	}
	return nil
}

// Flatten returns a flat map of all transaction fields
func (v *VaultUnlock) Flatten() (map[string]any, error) {
	m := v.Common.ToMap()
	m["AssetID"] = v.AssetID
	return m, nil
}

// Apply applies a VaultUnlock transaction
func (v *VaultUnlock) Apply(ctx *tx.ApplyContext) tx.Result {
	assetID, err := parseAssetID(v.AssetID)
	if err != nil {
		return tx.TemMALFORMED
	}

	vault, vaultKey, res := readVault(ctx, assetID)
	if !res.IsSuccess() {
		return res
	}
	if vault.State != tx.VaultLocked {
		return tx.TecNOT_LOCKED
	}

	custodyAuthority := keylet.CustodyAuthority(vaultKey.Key, vault.Bump)
	custody, custodyKey, res := readHolding(ctx, assetID, custodyAuthority)
	if !res.IsSuccess() {
		return res
	}
	if custody.Balance != 1 {
		return tx.TecBALANCE_MISMATCH
	}

	ownerHolding, ownerKey, res := readHolding(ctx, assetID, ctx.AccountID)
	if !res.IsSuccess() {
		return res
	}
	if ownerHolding.Balance != 0 {
		return tx.TecBALANCE_MISMATCH
	}

	custody.Balance = 0
	ownerHolding.Balance = 1
	vault.State = tx.VaultUnlocked

	if res := writeHolding(ctx, custodyKey, custody); !res.IsSuccess() {
		return res
	}
	if res := writeHolding(ctx, ownerKey, ownerHolding); !res.IsSuccess() {
		return res
	}
	return writeVault(ctx, vaultKey, vault)
}
