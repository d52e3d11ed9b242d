package swap

import (
	"github.com/tokenvault/tokenvaultd/internal/core/ledger/keylet"
	"github.com/tokenvault/tokenvaultd/internal/core/tx"
)

// SwapExecute settles an open swap: the buyer (the transaction's source)
// pays the seller the asking price and receives the asset unit. The unit
// is taken from the seller's own holding, or released from the custody
// holding of the seller's locked vault, which is unlocked in the same
// step. Payment and transfer are staged together, so a failure at any
// step leaves both sides untouched.
type SwapExecute struct {
	tx.BaseTx

	// SwapID is the hex-encoded ledger key of the swap to execute (required)
	SwapID string `json:"SwapID"`
}

// NewSwapExecute creates a new SwapExecute transaction
func NewSwapExecute(account, swapID string) *SwapExecute {
	return &SwapExecute{
		BaseTx: *tx.NewBaseTx(tx.TypeSwapExecute, account),
		SwapID: swapID,
	}
}

// Validate validates the SwapExecute transaction
func (s *SwapExecute) Validate() error {
	if err := s.BaseTx.Validate(); err != nil {
		return err
	}
	if _, err := parseID(s.SwapID, ErrSwapIDRequired, ErrBadSwapID); err != nil {
		return err
	}
	return nil
}

// Flatten returns a flat map of all transaction fields
func (s *SwapExecute) Flatten() (map[string]any, error) {
	m := s.Common.ToMap()
	m["SwapID"] = s.SwapID
	return m, nil
}

// Apply applies a SwapExecute transaction
func (s *SwapExecute) Apply(ctx *tx.ApplyContext) tx.Result {
	swapID, err := parseID(s.SwapID, ErrSwapIDRequired, ErrBadSwapID)
	if err != nil {
		return tx.TemMALFORMED
	}

	swap, swapKey, res := readSwap(ctx, swapID)
	if !res.IsSuccess() {
		return res
	}
	if swap.Status != tx.SwapOpen {
		return tx.TecSWAP_NOT_OPEN
	}
	if swap.Seller == ctx.AccountID {
		return tx.TecUNAUTHORIZED
	}

	// Buyer must be able to pay the asking price
	if ctx.Account.Balance < swap.Price {
		return tx.TecINSUFFICIENT_FUNDS
	}

	// Locate the unit being sold: the seller's own holding, or the
	// custody holding of the seller's locked vault
	sellerHoldingKey := keylet.Holding(swap.Asset, swap.Seller)
	sellerHoldingData, err := ctx.View.Read(sellerHoldingKey)
	if err != nil {
		return tx.TefINTERNAL
	}

	var sourceKey keylet.Keylet
	var sourceHolding *tx.HoldingRecord
	if sellerHoldingData != nil {
		holding, err := tx.ParseHolding(sellerHoldingData)
		if err != nil {
			return tx.TefBAD_RECORD
		}
		if holding.Asset != swap.Asset {
			return tx.TecASSET_MISMATCH
		}
		if holding.Balance == 1 {
			sourceKey, sourceHolding = sellerHoldingKey, holding
		}
	}

	var vaultKey keylet.Keylet
	var vaultRecord *tx.VaultRecord
	if sourceHolding == nil {
		vaultKey = keylet.Vault(swap.Seller, swap.Asset)
		vaultData, err := ctx.View.Read(vaultKey)
		if err != nil {
			return tx.TefINTERNAL
		}
		if vaultData == nil {
			if sellerHoldingData == nil {
				return tx.TecNO_ENTRY
			}
			return tx.TecBALANCE_MISMATCH
		}
		vault, err := tx.ParseVault(vaultData)
		if err != nil {
			return tx.TefBAD_RECORD
		}
		if vault.Asset != swap.Asset {
			return tx.TecASSET_MISMATCH
		}
		if vault.State != tx.VaultLocked {
			return tx.TecBALANCE_MISMATCH
		}

		custodyKey := keylet.Holding(swap.Asset, keylet.CustodyAuthority(vaultKey.Key, vault.Bump))
		custodyData, err := ctx.View.Read(custodyKey)
		if err != nil {
			return tx.TefINTERNAL
		}
		if custodyData == nil {
			return tx.TecNO_ENTRY
		}
		custody, err := tx.ParseHolding(custodyData)
		if err != nil {
			return tx.TefBAD_RECORD
		}
		if custody.Balance != 1 {
			return tx.TecBALANCE_MISMATCH
		}
		sourceKey, sourceHolding = custodyKey, custody
		vaultRecord = vault
	}

	// Seller account receives the payment
	sellerKey := keylet.Account(swap.Seller)
	sellerData, err := ctx.View.Read(sellerKey)
	if err != nil {
		return tx.TefINTERNAL
	}
	if sellerData == nil {
		return tx.TecNO_DST
	}
	seller, err := tx.ParseAccountRoot(sellerData)
	if err != nil {
		return tx.TefBAD_RECORD
	}

	buyerBalance, err := ctx.Account.Balance.Sub(swap.Price)
	if err != nil {
		return tx.TecINSUFFICIENT_FUNDS
	}
	sellerBalance, err := seller.Balance.Add(swap.Price)
	if err != nil {
		return tx.TecOVERFLOW
	}

	// Move the asset unit to the buyer, creating their holding if needed
	buyerHoldingKey := keylet.Holding(swap.Asset, ctx.AccountID)
	buyerHoldingData, err := ctx.View.Read(buyerHoldingKey)
	if err != nil {
		return tx.TefINTERNAL
	}

	var buyerHolding *tx.HoldingRecord
	newBuyerHolding := buyerHoldingData == nil
	if newBuyerHolding {
		buyerHolding = &tx.HoldingRecord{
			Asset:     swap.Asset,
			Authority: ctx.AccountID,
		}
	} else {
		buyerHolding, err = tx.ParseHolding(buyerHoldingData)
		if err != nil {
			return tx.TefBAD_RECORD
		}
		if buyerHolding.Balance != 0 {
			return tx.TecBALANCE_MISMATCH
		}
	}

	ctx.Account.Balance = buyerBalance
	seller.Balance = sellerBalance
	sourceHolding.Balance = 0
	buyerHolding.Balance = 1
	swap.Status = tx.SwapExecuted

	serializedSeller, err := tx.SerializeAccountRoot(seller)
	if err != nil {
		return tx.TefINTERNAL
	}
	if err := ctx.View.Update(sellerKey, serializedSeller); err != nil {
		return tx.TefINTERNAL
	}

	serializedSource, err := tx.SerializeHolding(sourceHolding)
	if err != nil {
		return tx.TefINTERNAL
	}
	if err := ctx.View.Update(sourceKey, serializedSource); err != nil {
		return tx.TefINTERNAL
	}

	// A sale out of custody unlocks the vault
	if vaultRecord != nil {
		vaultRecord.State = tx.VaultUnlocked
		serializedVault, err := tx.SerializeVault(vaultRecord)
		if err != nil {
			return tx.TefINTERNAL
		}
		if err := ctx.View.Update(vaultKey, serializedVault); err != nil {
			return tx.TefINTERNAL
		}
	}

	serializedBuyerHolding, err := tx.SerializeHolding(buyerHolding)
	if err != nil {
		return tx.TefINTERNAL
	}
	if newBuyerHolding {
		if err := ctx.View.Insert(buyerHoldingKey, serializedBuyerHolding); err != nil {
			return tx.TefINTERNAL
		}
		ctx.Account.OwnerCount++
	} else {
		if err := ctx.View.Update(buyerHoldingKey, serializedBuyerHolding); err != nil {
			return tx.TefINTERNAL
		}
	}

	return writeSwap(ctx, swapKey, swap)
}
