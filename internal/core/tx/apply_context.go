package tx

// ApplyContext provides all the state and helpers needed to apply a
// transaction. It is passed to Appliable.Apply() instead of individual
// parameters.
type ApplyContext struct {
	// View provides read/write access to ledger state (the ApplyStateTable)
	View LedgerView

	// Account is the source account (mutable, written back by the engine)
	Account *AccountRoot

	// AccountID is the decoded source account ID
	AccountID [20]byte

	// Config holds engine configuration
	Config EngineConfig

	// TxHash is the hash of the current transaction
	TxHash [32]byte

	// Metadata allows transactions to record extra result data
	Metadata *Metadata

	// Engine provides access to shared helper methods
	Engine *Engine
}

// ReadAccountRoot reads and parses the account root at the given ID.
// Returns nil without error if the account does not exist.
func (ctx *ApplyContext) ReadAccountRoot(accountID [20]byte) (*AccountRoot, error) {
	data, err := ctx.View.Read(accountKeylet(accountID))
	if err != nil || data == nil {
		return nil, err
	}
	return ParseAccountRoot(data)
}

// WriteAccountRoot serializes and updates an account root
func (ctx *ApplyContext) WriteAccountRoot(a *AccountRoot) error {
	data, err := SerializeAccountRoot(a)
	if err != nil {
		return err
	}
	return ctx.View.Update(accountKeylet(a.AccountID), data)
}
