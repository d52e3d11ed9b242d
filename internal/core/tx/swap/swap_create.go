package swap

import (
	"encoding/hex"
	"errors"

	"github.com/tokenvault/tokenvaultd/internal/core/ledger/keylet"
	"github.com/tokenvault/tokenvaultd/internal/core/native"
	"github.com/tokenvault/tokenvaultd/internal/core/tx"
)

// SwapCreate lists one unit of an asset for sale at a fixed price in
// grains. The listing's identifier is derived from the seller and the
// transaction sequence. Listing moves nothing: the unit may sit in the
// seller's own holding or locked in their vault, and delivery is checked
// at execution time.
type SwapCreate struct {
	tx.BaseTx

	// AssetID is the hex-encoded identifier of the asset for sale (required)
	AssetID string `json:"AssetID"`

	// Price is the asking price in grains (required, must be positive)
	Price native.Amount `json:"Price"`
}

// NewSwapCreate creates a new SwapCreate transaction
func NewSwapCreate(account, assetID string, price native.Amount) *SwapCreate {
	return &SwapCreate{
		BaseTx:  *tx.NewBaseTx(tx.TypeSwapCreate, account),
		AssetID: assetID,
		Price:   price,
	}
}

// Validate validates the SwapCreate transaction
func (s *SwapCreate) Validate() error {
	if err := s.BaseTx.Validate(); err != nil {
		return err
	}
	if s.AssetID == "" {
		return errors.New("temMALFORMED: AssetID is required")
	}
	if raw, err := hex.DecodeString(s.AssetID); err != nil || len(raw) != 32 {
		return errors.New("temMALFORMED: AssetID must be 32 bytes of hex")
	}
	if s.Price == 0 {
		return errors.New("temBAD_PRICE: Price must be positive")
	}
	return nil
}

// Flatten returns a flat map of all transaction fields
func (s *SwapCreate) Flatten() (map[string]any, error) {
	m := s.Common.ToMap()
	m["AssetID"] = s.AssetID
	m["Price"] = uint64(s.Price)
	return m, nil
}

// Apply applies a SwapCreate transaction
func (s *SwapCreate) Apply(ctx *tx.ApplyContext) tx.Result {
	var assetID [32]byte
	raw, err := hex.DecodeString(s.AssetID)
	if err != nil || len(raw) != 32 {
		return tx.TemMALFORMED
	}
	copy(assetID[:], raw)

	// The asset must exist; whether the seller can deliver the unit is
	// settled at execution time
	assetKey := keylet.Keylet{Type: keylet.TypeAsset, Key: assetID}
	exists, err := ctx.View.Exists(assetKey)
	if err != nil {
		return tx.TefINTERNAL
	}
	if !exists {
		return tx.TecNO_ENTRY
	}

	swapKey := keylet.Swap(ctx.AccountID, s.GetCommon().GetSequence())
	swap := &tx.SwapRecord{
		Seller: ctx.AccountID,
		Asset:  assetID,
		Price:  s.Price,
		Status: tx.SwapOpen,
	}
	swapData, err := tx.SerializeSwap(swap)
	if err != nil {
		return tx.TefINTERNAL
	}
	if err := ctx.View.Insert(swapKey, swapData); err != nil {
		return tx.TecDUPLICATE
	}

	ctx.Account.OwnerCount++

	return tx.TesSUCCESS
}
