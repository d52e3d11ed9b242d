package tx

import (
	"errors"

	addresscodec "github.com/tokenvault/tokenvaultd/internal/codec/address-codec"
	"github.com/tokenvault/tokenvaultd/internal/core/ledger/keylet"
	"github.com/tokenvault/tokenvaultd/internal/core/native"
)

func init() {
	Register(TypePayment, func() Transaction {
		return &Payment{BaseTx: *NewBaseTx(TypePayment, "")}
	})
}

// Payment moves native funds from the source account to a destination,
// creating the destination account if it does not exist yet.
type Payment struct {
	BaseTx

	// Amount is the number of grains to send (required)
	Amount native.Amount `json:"Amount"`

	// Destination is the account to receive the funds (required)
	Destination string `json:"Destination"`
}

// NewPayment creates a new Payment transaction
func NewPayment(account, destination string, amount native.Amount) *Payment {
	return &Payment{
		BaseTx:      *NewBaseTx(TypePayment, account),
		Amount:      amount,
		Destination: destination,
	}
}

// Validate validates the Payment transaction
func (p *Payment) Validate() error {
	if err := p.BaseTx.Validate(); err != nil {
		return err
	}

	if p.Destination == "" {
		return errors.New("temDST_NEEDED: Destination is required")
	}
	if !addresscodec.IsValid(p.Destination) {
		return errors.New("temINVALID: Destination is not a valid address")
	}
	if p.Destination == p.Account {
		return errors.New("temDST_IS_SRC: Destination may not be source")
	}
	if p.Amount == 0 {
		return errors.New("temBAD_AMOUNT: Amount must be positive")
	}

	return nil
}

// Flatten returns a flat map of all transaction fields
func (p *Payment) Flatten() (map[string]any, error) {
	m := p.Common.ToMap()
	m["Amount"] = uint64(p.Amount)
	m["Destination"] = p.Destination
	return m, nil
}

// Apply applies a Payment transaction
func (p *Payment) Apply(ctx *ApplyContext) Result {
	if ctx.Account.Balance < p.Amount {
		return TecUNFUNDED
	}

	destID, err := addresscodec.Decode(p.Destination)
	if err != nil {
		return TemINVALID
	}
	destKey := keylet.Account(destID)

	newBalance, err := ctx.Account.Balance.Sub(p.Amount)
	if err != nil {
		return TecUNFUNDED
	}

	destData, err := ctx.View.Read(destKey)
	if err != nil {
		return TefINTERNAL
	}

	if destData == nil {
		// Fund a new account
		dest := &AccountRoot{
			AccountID: destID,
			Balance:   p.Amount,
			Sequence:  1,
		}
		serialized, err := SerializeAccountRoot(dest)
		if err != nil {
			return TefINTERNAL
		}
		if err := ctx.View.Insert(destKey, serialized); err != nil {
			return TefINTERNAL
		}
	} else {
		dest, err := ParseAccountRoot(destData)
		if err != nil {
			return TefBAD_RECORD
		}
		dest.Balance, err = dest.Balance.Add(p.Amount)
		if err != nil {
			return TecOVERFLOW
		}
		serialized, err := SerializeAccountRoot(dest)
		if err != nil {
			return TefINTERNAL
		}
		if err := ctx.View.Update(destKey, serialized); err != nil {
			return TefINTERNAL
		}
	}

	ctx.Account.Balance = newBalance

	return TesSUCCESS
}
