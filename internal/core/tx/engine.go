package tx

import (
	"encoding/hex"
	"encoding/json"
	"sort"

	"github.com/tokenvault/tokenvaultd/internal/core/ledger/keylet"
)

// Validation constants
const (
	// MaxMemoSize is the maximum total size of memo data (in bytes)
	MaxMemoSize = 1024

	// MaxMemoTypeSize is the maximum size of the MemoType field (in bytes)
	MaxMemoTypeSize = 256
)

// Engine processes transactions against a ledger
type Engine struct {
	// view provides access to ledger state
	view LedgerView

	// config holds engine configuration
	config EngineConfig
}

// EngineConfig holds configuration for the transaction engine
type EngineConfig struct {
	// LedgerSequence is the current ledger sequence
	LedgerSequence uint32

	// SkipSignatureVerification skips signature checks (for testing/standalone)
	SkipSignatureVerification bool

	// Standalone indicates if running in standalone mode
	Standalone bool
}

// LedgerView provides read/write access to ledger state
type LedgerView interface {
	// Read reads a ledger record
	Read(k keylet.Keylet) ([]byte, error)

	// Exists checks if a record exists
	Exists(k keylet.Keylet) (bool, error)

	// Insert adds a new record
	Insert(k keylet.Keylet, data []byte) error

	// Update modifies an existing record
	Update(k keylet.Keylet, data []byte) error

	// Erase removes a record
	Erase(k keylet.Keylet) error

	// ForEach iterates over all state records.
	// If fn returns false, iteration stops early.
	ForEach(fn func(key [32]byte, data []byte) bool) error
}

// ApplyResult contains the result of applying a transaction
type ApplyResult struct {
	// Result is the transaction result code
	Result Result

	// Applied indicates if the transaction was applied to the ledger
	Applied bool

	// TxHash is the transaction's identifying hash
	TxHash [32]byte

	// Metadata contains the changes made by the transaction
	Metadata *Metadata

	// Message is a human-readable result message
	Message string
}

// Metadata tracks changes made by a transaction
type Metadata struct {
	// AffectedNodes lists all records that were created, modified, or deleted
	AffectedNodes []AffectedNode

	// TransactionIndex is the index in the ledger
	TransactionIndex uint32

	// TransactionResult is the result code
	TransactionResult Result
}

// AffectedNode describes one record touched by a transaction
type AffectedNode struct {
	NodeType       string
	RecordType     string
	LedgerIndex    string
	NewFields      map[string]any
	FinalFields    map[string]any
	PreviousFields map[string]any
}

// MarshalJSON renders metadata with nodes keyed by their node type and
// sorted by ledger index for deterministic output.
func (m Metadata) MarshalJSON() ([]byte, error) {
	sortedNodes := make([]AffectedNode, len(m.AffectedNodes))
	copy(sortedNodes, m.AffectedNodes)
	sort.Slice(sortedNodes, func(i, j int) bool {
		return sortedNodes[i].LedgerIndex < sortedNodes[j].LedgerIndex
	})

	affectedNodes := make([]map[string]any, 0, len(sortedNodes))
	for _, node := range sortedNodes {
		inner := map[string]any{
			"RecordType":  node.RecordType,
			"LedgerIndex": node.LedgerIndex,
		}
		if node.NewFields != nil {
			inner["NewFields"] = node.NewFields
		}
		if node.FinalFields != nil {
			inner["FinalFields"] = node.FinalFields
		}
		if len(node.PreviousFields) > 0 {
			inner["PreviousFields"] = node.PreviousFields
		}
		affectedNodes = append(affectedNodes, map[string]any{node.NodeType: inner})
	}

	return json.Marshal(map[string]any{
		"AffectedNodes":     affectedNodes,
		"TransactionIndex":  m.TransactionIndex,
		"TransactionResult": m.TransactionResult.String(),
	})
}

// NewEngine creates a new transaction engine
func NewEngine(view LedgerView, config EngineConfig) *Engine {
	return &Engine{
		view:   view,
		config: config,
	}
}

func accountKeylet(accountID [20]byte) keylet.Keylet {
	return keylet.Account(accountID)
}

// Apply processes a transaction and applies it to the ledger
func (e *Engine) Apply(txn Transaction) ApplyResult {
	// Step 1: Preflight checks (syntax validation)
	result := e.preflight(txn)
	if !result.IsSuccess() {
		return ApplyResult{
			Result:  result,
			Applied: false,
			Message: result.Message(),
		}
	}

	// Step 2: Preclaim checks (validate against ledger state)
	result = e.preclaim(txn)
	if !result.IsSuccess() {
		return ApplyResult{
			Result:  result,
			Applied: false,
			Message: result.Message(),
		}
	}

	// Step 3: Compute transaction hash
	txHash, err := Hash(txn)
	if err != nil {
		return ApplyResult{
			Result:  TefINTERNAL,
			Applied: false,
			Message: "failed to compute transaction hash: " + err.Error(),
		}
	}

	// Step 4: Apply the transaction
	metadata := &Metadata{
		AffectedNodes:     make([]AffectedNode, 0),
		TransactionResult: TesSUCCESS,
	}

	result = e.doApply(txn, metadata, txHash)
	metadata.TransactionResult = result

	return ApplyResult{
		Result:   result,
		Applied:  result.IsApplied(),
		TxHash:   txHash,
		Metadata: metadata,
		Message:  result.Message(),
	}
}

// preflight performs initial validation on the transaction
func (e *Engine) preflight(txn Transaction) Result {
	common := txn.GetCommon()

	if common.Account == "" {
		return TemBAD_SRC_ACCOUNT
	}
	if common.TransactionType == "" {
		return TemINVALID
	}
	if _, err := common.AccountID(); err != nil {
		return TemBAD_SRC_ACCOUNT
	}

	// Sequence must be present
	if common.Sequence == nil {
		return TemBAD_SEQUENCE
	}

	if result := e.validateMemos(common); result != TesSUCCESS {
		return result
	}

	// Verify signature (unless skipped for testing)
	if !e.config.SkipSignatureVerification {
		if err := VerifySignature(txn); err != nil {
			if err == ErrWrongSigner {
				return TefBAD_AUTH
			}
			return TemBAD_SIGNATURE
		}
	}

	// Transaction-specific validation
	if err := txn.Validate(); err != nil {
		return parseValidationError(err)
	}

	return TesSUCCESS
}

// parseValidationError extracts a result code from a validation error.
// Validate() implementations prefix their errors with the code name
// (e.g. "temBAD_PRICE: message"); unmatched errors map to temINVALID.
func parseValidationError(err error) Result {
	msg := err.Error()

	codes := map[string]Result{
		"temMALFORMED":       TemMALFORMED,
		"temBAD_AMOUNT":      TemBAD_AMOUNT,
		"temBAD_PRICE":       TemBAD_PRICE,
		"temBAD_EXPIRATION":  TemBAD_EXPIRATION,
		"temBAD_ISSUER":      TemBAD_ISSUER,
		"temBAD_SEQUENCE":    TemBAD_SEQUENCE,
		"temBAD_SIGNATURE":   TemBAD_SIGNATURE,
		"temBAD_SRC_ACCOUNT": TemBAD_SRC_ACCOUNT,
		"temDST_IS_SRC":      TemDST_IS_SRC,
		"temDST_NEEDED":      TemDST_NEEDED,
		"temINVALID":         TemINVALID,
		"temINVALID_FLAG":    TemINVALID_FLAG,
		"temREDUNDANT":       TemREDUNDANT,
	}

	for code, result := range codes {
		if len(msg) >= len(code) && msg[:len(code)] == code {
			if len(msg) == len(code) || msg[len(code)] == ':' || msg[len(code)] == ' ' {
				return result
			}
		}
	}

	return TemINVALID
}

// validateMemos validates the Memos array
func (e *Engine) validateMemos(common *Common) Result {
	if len(common.Memos) == 0 {
		return TesSUCCESS
	}

	totalSize := 0
	for _, memoWrapper := range common.Memos {
		memo := memoWrapper.Memo

		if memo.MemoType != "" {
			memoTypeBytes, err := hex.DecodeString(memo.MemoType)
			if err != nil {
				return TemINVALID
			}
			if len(memoTypeBytes) > MaxMemoTypeSize {
				return TemINVALID
			}
			totalSize += len(memoTypeBytes)
		}

		if memo.MemoData != "" {
			memoDataBytes, err := hex.DecodeString(memo.MemoData)
			if err != nil {
				return TemINVALID
			}
			totalSize += len(memoDataBytes)
		}
	}

	if totalSize > MaxMemoSize {
		return TemINVALID
	}

	return TesSUCCESS
}

// preclaim validates the transaction against the current ledger state
func (e *Engine) preclaim(txn Transaction) Result {
	common := txn.GetCommon()

	accountID, err := common.AccountID()
	if err != nil {
		return TemBAD_SRC_ACCOUNT
	}

	accountKey := keylet.Account(accountID)
	exists, err := e.view.Exists(accountKey)
	if err != nil {
		return TefINTERNAL
	}
	if !exists {
		return TerNO_ACCOUNT
	}

	accountData, err := e.view.Read(accountKey)
	if err != nil {
		return TefINTERNAL
	}

	account, err := ParseAccountRoot(accountData)
	if err != nil {
		return TefBAD_RECORD
	}

	// Check sequence number
	if common.Sequence != nil {
		if *common.Sequence < account.Sequence {
			return TefPAST_SEQ
		}
		if *common.Sequence > account.Sequence {
			return TerPRE_SEQ
		}
	}

	// LastLedgerSequence check
	if common.LastLedgerSequence != nil {
		if e.config.LedgerSequence > *common.LastLedgerSequence {
			return TefMAX_LEDGER
		}
	}

	return TesSUCCESS
}

// doApply applies the transaction to the ledger. All transaction effects
// go through an ApplyStateTable; only a tesSUCCESS result commits them.
// tec results consume the sequence number but discard every other effect.
func (e *Engine) doApply(txn Transaction, metadata *Metadata, txHash [32]byte) Result {
	common := txn.GetCommon()
	accountID, err := common.AccountID()
	if err != nil {
		return TefINTERNAL
	}
	accountKey := keylet.Account(accountID)

	accountData, err := e.view.Read(accountKey)
	if err != nil {
		return TefINTERNAL
	}

	account, err := ParseAccountRoot(accountData)
	if err != nil {
		return TefBAD_RECORD
	}

	// Consume the sequence number and thread the account
	if common.Sequence != nil {
		account.Sequence = *common.Sequence + 1
	}
	account.PreviousTxnID = txHash
	account.PreviousTxnLgrSeq = e.config.LedgerSequence

	// Stage transaction effects in an ApplyStateTable
	table := NewApplyStateTable(e.view, txHash, e.config.LedgerSequence)

	ctx := &ApplyContext{
		View:      table,
		Account:   account,
		AccountID: accountID,
		Config:    e.config,
		TxHash:    txHash,
		Metadata:  metadata,
		Engine:    e,
	}

	var result Result
	if appliable, ok := txn.(Appliable); ok {
		result = appliable.Apply(ctx)
	} else {
		result = TefINTERNAL
	}

	// For tec results, only the sequence consumption is applied; the
	// staged effects are dropped with the table.
	if result.IsTec() {
		fresh, err := ParseAccountRoot(accountData)
		if err != nil {
			return TefINTERNAL
		}
		if common.Sequence != nil {
			fresh.Sequence = *common.Sequence + 1
		}
		fresh.PreviousTxnID = txHash
		fresh.PreviousTxnLgrSeq = e.config.LedgerSequence

		updatedData, err := SerializeAccountRoot(fresh)
		if err != nil {
			return TefINTERNAL
		}
		if err := e.view.Update(accountKey, updatedData); err != nil {
			return TefINTERNAL
		}

		metadata.AffectedNodes = []AffectedNode{
			{
				NodeType:    "ModifiedNode",
				RecordType:  "AccountRoot",
				LedgerIndex: hexUpper(accountKey.Key),
			},
		}

		return result
	}

	if !result.IsSuccess() {
		// Staged effects are discarded, nothing reaches the base view
		return result
	}

	// Write the mutated source account through the table (unless the
	// transaction erased it)
	if !table.IsErased(accountKey) {
		updatedData, err := SerializeAccountRoot(account)
		if err != nil {
			return TefINTERNAL
		}
		if err := table.Update(accountKey, updatedData); err != nil {
			return TefINTERNAL
		}
	}

	// Commit all staged changes and generate metadata
	generatedMeta, err := table.Apply()
	if err != nil {
		return TefINTERNAL
	}
	metadata.AffectedNodes = generatedMeta.AffectedNodes

	return result
}

func hexUpper(key [32]byte) string {
	const hexDigits = "0123456789ABCDEF"
	out := make([]byte, 64)
	for i, b := range key {
		out[i*2] = hexDigits[b>>4]
		out[i*2+1] = hexDigits[b&0x0F]
	}
	return string(out)
}
