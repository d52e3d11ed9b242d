package swap

import (
	"github.com/tokenvault/tokenvaultd/internal/core/tx"
)

// SwapCancel closes an open swap without settling it. Only the seller
// can cancel; the listing stays on ledger with cancelled status.
type SwapCancel struct {
	tx.BaseTx

	// SwapID is the hex-encoded ledger key of the swap to cancel (required)
	SwapID string `json:"SwapID"`
}

// NewSwapCancel creates a new SwapCancel transaction
func NewSwapCancel(account, swapID string) *SwapCancel {
	return &SwapCancel{
		BaseTx: *tx.NewBaseTx(tx.TypeSwapCancel, account),
		SwapID: swapID,
	}
}

// Validate validates the SwapCancel transaction
func (s *SwapCancel) Validate() error {
	if err := s.BaseTx.Validate(); err != nil {
		return err
	}
	if _, err := parseID(s.SwapID, ErrSwapIDRequired, ErrBadSwapID); err != nil {
		return err
	}
	return nil
}

// Flatten returns a flat map of all transaction fields
func (s *SwapCancel) Flatten() (map[string]any, error) {
	m := s.Common.ToMap()
	m["SwapID"] = s.SwapID
	return m, nil
}

// Apply applies a SwapCancel transaction
func (s *SwapCancel) Apply(ctx *tx.ApplyContext) tx.Result {
	swapID, err := parseID(s.SwapID, ErrSwapIDRequired, ErrBadSwapID)
	if err != nil {
		return tx.TemMALFORMED
	}

	swap, swapKey, res := readSwap(ctx, swapID)
	if !res.IsSuccess() {
		return res
	}
	if swap.Seller != ctx.AccountID {
		return tx.TecUNAUTHORIZED
	}
	if swap.Status != tx.SwapOpen {
		return tx.TecSWAP_NOT_OPEN
	}

	swap.Status = tx.SwapCancelled

	return writeSwap(ctx, swapKey, swap)
}
