// Package swap implements the SwapCreate, SwapExecute, and SwapCancel
// transactions. A swap is an on-ledger listing that escrows nothing up
// front: execution settles payment and asset transfer atomically or not
// at all.
package swap

import (
	"encoding/hex"
	"errors"

	"github.com/tokenvault/tokenvaultd/internal/core/ledger/keylet"
	"github.com/tokenvault/tokenvaultd/internal/core/tx"
)

func init() {
	tx.Register(tx.TypeSwapCreate, func() tx.Transaction {
		return &SwapCreate{BaseTx: *tx.NewBaseTx(tx.TypeSwapCreate, "")}
	})
	tx.Register(tx.TypeSwapExecute, func() tx.Transaction {
		return &SwapExecute{BaseTx: *tx.NewBaseTx(tx.TypeSwapExecute, "")}
	})
	tx.Register(tx.TypeSwapCancel, func() tx.Transaction {
		return &SwapCancel{BaseTx: *tx.NewBaseTx(tx.TypeSwapCancel, "")}
	})
}

// Swap errors
var (
	ErrSwapIDRequired = errors.New("temMALFORMED: SwapID is required")
	ErrBadSwapID      = errors.New("temMALFORMED: SwapID must be 32 bytes of hex")
)

// parseID decodes a hex-encoded 32-byte ledger key
func parseID(s string, missing, malformed error) ([32]byte, error) {
	var id [32]byte
	if s == "" {
		return id, missing
	}
	raw, err := hex.DecodeString(s)
	if err != nil || len(raw) != 32 {
		return id, malformed
	}
	copy(id[:], raw)
	return id, nil
}

// readSwap loads a swap record by its ledger key
func readSwap(ctx *tx.ApplyContext, swapID [32]byte) (*tx.SwapRecord, keylet.Keylet, tx.Result) {
	swapKey := keylet.Keylet{Type: keylet.TypeSwap, Key: swapID}

	data, err := ctx.View.Read(swapKey)
	if err != nil {
		return nil, swapKey, tx.TefINTERNAL
	}
	if data == nil {
		return nil, swapKey, tx.TecNO_ENTRY
	}

	swap, err := tx.ParseSwap(data)
	if err != nil {
		return nil, swapKey, tx.TefBAD_RECORD
	}

	return swap, swapKey, tx.TesSUCCESS
}

// writeSwap serializes and updates a swap record
func writeSwap(ctx *tx.ApplyContext, key keylet.Keylet, swap *tx.SwapRecord) tx.Result {
	data, err := tx.SerializeSwap(swap)
	if err != nil {
		return tx.TefINTERNAL
	}
	if err := ctx.View.Update(key, data); err != nil {
		return tx.TefINTERNAL
	}
	return tx.TesSUCCESS
}
