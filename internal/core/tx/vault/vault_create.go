package vault

import (
	"github.com/tokenvault/tokenvaultd/internal/core/ledger/keylet"
	"github.com/tokenvault/tokenvaultd/internal/core/tx"
)

// VaultCreate creates an empty, unlocked vault for one asset together
// with the custodial holding that will receive the asset on lock. The
// custody authority is derived from the vault address and a bump byte
// recorded in the vault, so no signing key for it exists.
type VaultCreate struct {
	tx.BaseTx

	// AssetID is the hex-encoded identifier of the asset to custody (required)
	AssetID string `json:"AssetID"`
}

// NewVaultCreate creates a new VaultCreate transaction
func NewVaultCreate(account, assetID string) *VaultCreate {
	return &VaultCreate{
		BaseTx:  *tx.NewBaseTx(tx.TypeVaultCreate, account),
		AssetID: assetID,
	}
}

// Validate validates the VaultCreate transaction
func (v *VaultCreate) Validate() error {
	if err := v.BaseTx.Validate(); err != nil {
		return err
	}
	if _, err := parseAssetID(v.AssetID); err != nil {
		return err
	}
	return nil
}

// Flatten returns a flat map of all transaction fields
func (v *VaultCreate) Flatten() (map[string]any, error) {
	m := v.Common.ToMap()
	m["AssetID"] = v.AssetID
	return m, nil
}

// Apply applies a VaultCreate transaction
func (v *VaultCreate) Apply(ctx *tx.ApplyContext) tx.Result {
	assetID, err := parseAssetID(v.AssetID)
	if err != nil {
		return tx.TemMALFORMED
	}

	// The asset must exist
	assetKey := keylet.Keylet{Type: keylet.TypeAsset, Key: assetID}
	exists, err := ctx.View.Exists(assetKey)
	if err != nil {
		return tx.TefINTERNAL
	}
	if !exists {
		return tx.TecNO_ENTRY
	}

	vaultKey := keylet.Vault(ctx.AccountID, assetID)
	if exists, err := ctx.View.Exists(vaultKey); err != nil {
		return tx.TefINTERNAL
	} else if exists {
		return tx.TecDUPLICATE
	}

	// Pick a custody authority that does not collide with an existing
	// holding for this asset
	bump, authority, ok := keylet.FindCustodyBump(vaultKey.Key, func(candidate [20]byte) bool {
		taken, err := ctx.View.Exists(keylet.Holding(assetID, candidate))
		return err == nil && taken
	})
	if !ok {
		return tx.TecINTERNAL
	}

	vault := &tx.VaultRecord{
		Owner: ctx.AccountID,
		Asset: assetID,
		Bump:  bump,
		State: tx.VaultUnlocked,
	}
	vaultData, err := tx.SerializeVault(vault)
	if err != nil {
		return tx.TefINTERNAL
	}
	if err := ctx.View.Insert(vaultKey, vaultData); err != nil {
		return tx.TecDUPLICATE
	}

	// Create the empty custodial holding
	custodyKey := keylet.Holding(assetID, authority)
	custody := &tx.HoldingRecord{
		Asset:     assetID,
		Authority: authority,
		Balance:   0,
		Custodial: true,
	}
	custodyData, err := tx.SerializeHolding(custody)
	if err != nil {
		return tx.TefINTERNAL
	}
	if err := ctx.View.Insert(custodyKey, custodyData); err != nil {
		return tx.TecDUPLICATE
	}

	ctx.Account.OwnerCount += 2

	return tx.TesSUCCESS
}
