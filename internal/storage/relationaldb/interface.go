// Package relationaldb defines the transaction-indexing interfaces
// backing history queries. Implementations live in subpackages.
package relationaldb

import (
	"context"
	"encoding/hex"
	"time"
)

// LedgerIndex is a ledger sequence number.
type LedgerIndex uint32

// Hash is a 256-bit identifier.
type Hash [32]byte

func (h Hash) String() string {
	return hex.EncodeToString(h[:])
}

func (h Hash) IsZero() bool {
	return h == Hash{}
}

// AccountID is a 20-byte account identifier.
type AccountID [20]byte

func (a AccountID) String() string {
	return hex.EncodeToString(a[:])
}

// LedgerInfo is the indexed form of a closed ledger header.
type LedgerInfo struct {
	Hash            Hash        `json:"hash"`
	Sequence        LedgerIndex `json:"sequence"`
	ParentHash      Hash        `json:"parent_hash"`
	AccountHash     Hash        `json:"account_hash"`
	TransactionHash Hash        `json:"transaction_hash"`
	TotalGrains     uint64      `json:"total_grains"`
	CloseTime       time.Time   `json:"close_time"`
	ParentCloseTime time.Time   `json:"parent_close_time"`
	CloseTimeRes    int32       `json:"close_time_res"`
	CloseFlags      uint32      `json:"close_flags"`
}

// LedgerHashPair is a ledger hash with its parent.
type LedgerHashPair struct {
	LedgerHash Hash `json:"ledger_hash"`
	ParentHash Hash `json:"parent_hash"`
}

// LedgerRange bounds a span of ledger sequences.
type LedgerRange struct {
	Min LedgerIndex `json:"min"`
	Max LedgerIndex `json:"max"`
}

// TransactionInfo is an indexed transaction row.
type TransactionInfo struct {
	Hash      Hash        `json:"hash"`
	LedgerSeq LedgerIndex `json:"ledger_seq"`
	TxnSeq    uint32      `json:"txn_seq"`
	Status    string      `json:"status"`
	RawTxn    []byte      `json:"raw_txn"`
	TxnMeta   []byte      `json:"txn_meta"`
	Account   AccountID   `json:"account"`
}

// AccountTxMarker is a pagination cursor for account history.
type AccountTxMarker struct {
	LedgerSeq LedgerIndex `json:"ledger_seq"`
	TxnSeq    uint32      `json:"txn_seq"`
}

// AccountTxPageOptions selects a page of an account's transactions.
type AccountTxPageOptions struct {
	Account   AccountID        `json:"account"`
	MinLedger LedgerIndex      `json:"min_ledger"`
	MaxLedger LedgerIndex      `json:"max_ledger"`
	Marker    *AccountTxMarker `json:"marker,omitempty"`
	Limit     uint32           `json:"limit"`
}

// AccountTxResult is one page of account history.
type AccountTxResult struct {
	Transactions []TransactionInfo `json:"transactions"`
	LedgerRange  LedgerRange       `json:"ledger_range"`
	Limit        uint32            `json:"limit"`
	Marker       *AccountTxMarker  `json:"marker,omitempty"`
}

// LedgerRepository stores and queries indexed ledger headers.
type LedgerRepository interface {
	GetMinLedgerSeq(ctx context.Context) (*LedgerIndex, error)
	GetMaxLedgerSeq(ctx context.Context) (*LedgerIndex, error)
	GetLedgerInfoBySeq(ctx context.Context, seq LedgerIndex) (*LedgerInfo, error)
	GetLedgerInfoByHash(ctx context.Context, hash Hash) (*LedgerInfo, error)
	GetNewestLedgerInfo(ctx context.Context) (*LedgerInfo, error)
	GetHashesByRange(ctx context.Context, minSeq, maxSeq LedgerIndex) (map[LedgerIndex]LedgerHashPair, error)
	SaveValidatedLedger(ctx context.Context, ledger *LedgerInfo) error
	DeleteLedgersBefore(ctx context.Context, seq LedgerIndex) error
}

// TransactionRepository stores and queries indexed transactions.
type TransactionRepository interface {
	GetTransactionCount(ctx context.Context) (int64, error)
	GetTransaction(ctx context.Context, hash Hash) (*TransactionInfo, error)
	GetTxHistory(ctx context.Context, startIndex LedgerIndex, limit int) ([]TransactionInfo, error)
	SaveTransaction(ctx context.Context, txInfo *TransactionInfo) error
	DeleteTransactionsBefore(ctx context.Context, ledgerSeq LedgerIndex) error
}

// AccountTransactionRepository indexes transactions per account.
type AccountTransactionRepository interface {
	GetAccountTransactionCount(ctx context.Context) (int64, error)
	GetOldestAccountTxsPage(ctx context.Context, options AccountTxPageOptions) (*AccountTxResult, error)
	GetNewestAccountTxsPage(ctx context.Context, options AccountTxPageOptions) (*AccountTxResult, error)
	SaveAccountTransaction(ctx context.Context, accountID AccountID, txInfo *TransactionInfo) error
	DeleteAccountTransactionsBefore(ctx context.Context, ledgerSeq LedgerIndex) error
}

// RepositoryManager provides repository access and connection lifecycle.
type RepositoryManager interface {
	Ledger() LedgerRepository
	Transaction() TransactionRepository
	AccountTransaction() AccountTransactionRepository

	Open(ctx context.Context) error
	Close(ctx context.Context) error
	Ping(ctx context.Context) error
}
