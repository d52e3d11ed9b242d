// Package asset implements the AssetIssue transaction.
package asset

import (
	"errors"
	"net/url"

	"github.com/tokenvault/tokenvaultd/internal/core/ledger/keylet"
	"github.com/tokenvault/tokenvaultd/internal/core/tx"
)

func init() {
	tx.Register(tx.TypeAssetIssue, func() tx.Transaction {
		return &AssetIssue{BaseTx: *tx.NewBaseTx(tx.TypeAssetIssue, "")}
	})
}

// Metadata limits for issued assets
const (
	MaxNameLength   = 128
	MaxSymbolLength = 16
	MaxURILength    = 512
)

// AssetIssue creates a new asset with a fixed supply of one unit and
// credits that unit to the issuer's holding. The asset's identifier is
// derived from the issuer and the transaction sequence, so each issuance
// produces a distinct asset.
type AssetIssue struct {
	tx.BaseTx

	// Name is the human-readable asset name (required)
	Name string `json:"Name"`

	// Symbol is the short ticker for the asset (required)
	Symbol string `json:"Symbol"`

	// URI points at external metadata for the asset (optional)
	URI string `json:"URI,omitempty"`
}

// NewAssetIssue creates a new AssetIssue transaction
func NewAssetIssue(account, name, symbol, uri string) *AssetIssue {
	return &AssetIssue{
		BaseTx: *tx.NewBaseTx(tx.TypeAssetIssue, account),
		Name:   name,
		Symbol: symbol,
		URI:    uri,
	}
}

// Validate validates the AssetIssue transaction
func (a *AssetIssue) Validate() error {
	if err := a.BaseTx.Validate(); err != nil {
		return err
	}

	if a.Name == "" {
		return errors.New("temMALFORMED: Name is required")
	}
	if len(a.Name) > MaxNameLength {
		return errors.New("temMALFORMED: Name is too long")
	}
	if a.Symbol == "" {
		return errors.New("temMALFORMED: Symbol is required")
	}
	if len(a.Symbol) > MaxSymbolLength {
		return errors.New("temMALFORMED: Symbol is too long")
	}
	if len(a.URI) > MaxURILength {
		return errors.New("temMALFORMED: URI is too long")
	}
	if a.URI != "" {
		u, err := url.Parse(a.URI)
		if err != nil || u.Scheme == "" {
			return errors.New("temMALFORMED: URI must be an absolute URL")
		}
	}

	return nil
}

// Flatten returns a flat map of all transaction fields
func (a *AssetIssue) Flatten() (map[string]any, error) {
	m := a.Common.ToMap()
	m["Name"] = a.Name
	m["Symbol"] = a.Symbol
	if a.URI != "" {
		m["URI"] = a.URI
	}
	return m, nil
}

// Apply applies an AssetIssue transaction
func (a *AssetIssue) Apply(ctx *tx.ApplyContext) tx.Result {
	sequence := a.GetCommon().GetSequence()

	assetKey := keylet.Asset(ctx.AccountID, sequence)

	record := &tx.AssetRecord{
		AssetID: assetKey.Key,
		Issuer:  ctx.AccountID,
		Supply:  1,
		Name:    a.Name,
		Symbol:  a.Symbol,
		URI:     a.URI,
	}
	assetData, err := tx.SerializeAsset(record)
	if err != nil {
		return tx.TefINTERNAL
	}
	if err := ctx.View.Insert(assetKey, assetData); err != nil {
		return tx.TecDUPLICATE
	}

	// Credit the full supply to the issuer's holding
	holdingKey := keylet.Holding(assetKey.Key, ctx.AccountID)
	holding := &tx.HoldingRecord{
		Asset:     assetKey.Key,
		Authority: ctx.AccountID,
		Balance:   1,
	}
	holdingData, err := tx.SerializeHolding(holding)
	if err != nil {
		return tx.TefINTERNAL
	}
	if err := ctx.View.Insert(holdingKey, holdingData); err != nil {
		return tx.TecDUPLICATE
	}

	ctx.Account.OwnerCount += 2

	return tx.TesSUCCESS
}
