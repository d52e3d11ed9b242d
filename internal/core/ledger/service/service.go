// Package service manages the ledger lifecycle: genesis creation, the
// open ledger, transaction submission, standalone ledger acceptance,
// and persistence of validated ledgers.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	addresscodec "github.com/tokenvault/tokenvaultd/internal/codec/address-codec"
	"github.com/tokenvault/tokenvaultd/internal/core/ledger"
	"github.com/tokenvault/tokenvaultd/internal/core/ledger/genesis"
	"github.com/tokenvault/tokenvaultd/internal/core/tx"
	"github.com/tokenvault/tokenvaultd/internal/storage/nodestore"
	"github.com/tokenvault/tokenvaultd/internal/storage/relationaldb"
)

var (
	ErrNotStarted     = errors.New("ledger service not started")
	ErrAlreadyStarted = errors.New("ledger service already started")
	ErrNotStandalone  = errors.New("operation requires standalone mode")
	ErrTxNotFound     = errors.New("transaction not found")
	ErrLedgerNotFound = errors.New("ledger not found")
)

// Close time resolution used when accepting ledgers in standalone mode.
const standaloneCloseResolution = 1

// Config holds the ledger service configuration.
type Config struct {
	// Standalone enables manual ledger acceptance without consensus.
	Standalone bool

	// Genesis describes the genesis ledger to create on first start.
	Genesis genesis.Config

	// NodeStore receives headers and state entries of validated ledgers.
	// Optional; nil disables node storage.
	NodeStore nodestore.Database

	// RelationalDB receives validated ledger and transaction rows for
	// history queries. Optional; nil disables history persistence.
	RelationalDB relationaldb.RepositoryManager
}

// appliedTx is a transaction applied to the open ledger, held until the
// ledger closes and the transaction can be persisted and published.
type appliedTx struct {
	hash    [32]byte
	blob    []byte
	meta    []byte
	result  tx.Result
	account [20]byte
	txnSeq  uint32
}

// txLocation records where a closed transaction lives.
type txLocation struct {
	ledgerSeq uint32
	txnSeq    uint32
}

// Service coordinates the open, closed, and validated ledgers.
type Service struct {
	mu     sync.RWMutex
	config Config

	genesisLedger   *ledger.Ledger
	openLedger      *ledger.Ledger
	closedLedger    *ledger.Ledger
	validatedLedger *ledger.Ledger

	// history holds every ledger this node has closed, by sequence.
	history map[uint32]*ledger.Ledger

	txIndex map[[32]byte]txLocation
	pending []appliedTx

	hooks   EventHooks
	started bool
}

// New creates a ledger service. Call Start before use.
func New(config Config) *Service {
	return &Service{
		config:  config,
		history: make(map[uint32]*ledger.Ledger),
		txIndex: make(map[[32]byte]txLocation),
	}
}

// SetEventHooks installs event callbacks. Must be called before Start.
func (s *Service) SetEventHooks(hooks EventHooks) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hooks = hooks
}

// Start creates the genesis ledger and opens ledger 2 on top of it.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return ErrAlreadyStarted
	}

	result, err := genesis.Create(s.config.Genesis)
	if err != nil {
		return fmt.Errorf("create genesis: %w", err)
	}

	gen := ledger.FromGenesis(result.Header, result.State, result.Txs)
	open, err := ledger.NewOpen(gen, time.Now())
	if err != nil {
		return fmt.Errorf("open ledger on genesis: %w", err)
	}

	s.genesisLedger = gen
	s.closedLedger = gen
	s.validatedLedger = gen
	s.openLedger = open
	s.history[gen.Sequence()] = gen

	if err := s.persistLedger(ctx, gen, nil); err != nil {
		return fmt.Errorf("persist genesis: %w", err)
	}

	s.started = true
	return nil
}

// Stop flushes pending writes. The storage backends belong to the
// caller and are not closed here.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return nil
	}
	s.started = false

	if s.config.NodeStore != nil {
		if err := s.config.NodeStore.Sync(); err != nil {
			return fmt.Errorf("sync node store: %w", err)
		}
	}
	return nil
}

// IsStandalone reports whether the service runs without consensus.
func (s *Service) IsStandalone() bool {
	return s.config.Standalone
}

// GetCurrentLedgerIndex returns the open ledger sequence.
func (s *Service) GetCurrentLedgerIndex() uint32 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.openLedger == nil {
		return 0
	}
	return s.openLedger.Sequence()
}

// GetClosedLedgerIndex returns the last closed ledger sequence.
func (s *Service) GetClosedLedgerIndex() uint32 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closedLedger == nil {
		return 0
	}
	return s.closedLedger.Sequence()
}

// GetValidatedLedgerIndex returns the highest validated ledger sequence.
func (s *Service) GetValidatedLedgerIndex() uint32 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.validatedLedger == nil {
		return 0
	}
	return s.validatedLedger.Sequence()
}

// GetMasterAccount returns the genesis master account address.
func (s *Service) GetMasterAccount() (string, error) {
	_, address, err := genesis.MasterAccount(s.config.Genesis.MasterSeed)
	return address, err
}

// SubmitResult reports the outcome of a transaction submission.
type SubmitResult struct {
	Result    tx.Result
	Applied   bool
	TxHash    [32]byte
	Message   string
	TxJSON    []byte
	LedgerSeq uint32
}

// SubmitTransaction parses txJSON, applies it to the open ledger, and
// records it for persistence at the next ledger close. Transactions
// with tec results are recorded too; only tes and tec change the
// ledger contents.
func (s *Service) SubmitTransaction(txJSON []byte) (*SubmitResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return nil, ErrNotStarted
	}

	txn, err := tx.FromJSON(txJSON)
	if err != nil {
		return nil, fmt.Errorf("parse transaction: %w", err)
	}

	engine := tx.NewEngine(s.openLedger, tx.EngineConfig{
		LedgerSequence:            s.openLedger.Sequence(),
		SkipSignatureVerification: s.config.Standalone,
		Standalone:                s.config.Standalone,
	})

	applied := engine.Apply(txn)
	result := &SubmitResult{
		Result:    applied.Result,
		Applied:   applied.Applied,
		TxHash:    applied.TxHash,
		Message:   applied.Message,
		LedgerSeq: s.openLedger.Sequence(),
	}

	if !applied.Applied {
		return result, nil
	}

	blob, err := tx.ToJSON(txn)
	if err != nil {
		return nil, fmt.Errorf("serialize transaction: %w", err)
	}
	result.TxJSON = blob

	var meta []byte
	if applied.Metadata != nil {
		applied.Metadata.TransactionIndex = uint32(len(s.pending))
		meta, err = json.Marshal(applied.Metadata)
		if err != nil {
			return nil, fmt.Errorf("serialize metadata: %w", err)
		}
	}

	if err := s.openLedger.AddTransaction(applied.TxHash, blob); err != nil {
		return nil, fmt.Errorf("record transaction: %w", err)
	}

	account, err := txn.GetCommon().AccountID()
	if err != nil {
		account = [20]byte{}
	}

	s.pending = append(s.pending, appliedTx{
		hash:    applied.TxHash,
		blob:    blob,
		meta:    meta,
		result:  applied.Result,
		account: account,
		txnSeq:  uint32(len(s.pending)),
	})

	return result, nil
}

// AcceptLedger closes the open ledger, validates it, persists it, and
// opens the next one. Standalone mode only.
func (s *Service) AcceptLedger(ctx context.Context) (uint32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return 0, ErrNotStarted
	}
	if !s.config.Standalone {
		return 0, ErrNotStandalone
	}

	closing := s.openLedger
	accepted := s.pending
	s.pending = nil

	if err := closing.Close(time.Now(), standaloneCloseResolution); err != nil {
		return 0, fmt.Errorf("close ledger %d: %w", closing.Sequence(), err)
	}
	if err := closing.SetValidated(); err != nil {
		return 0, fmt.Errorf("validate ledger %d: %w", closing.Sequence(), err)
	}

	seq := closing.Sequence()
	s.closedLedger = closing
	s.validatedLedger = closing
	s.history[seq] = closing

	for _, atx := range accepted {
		s.txIndex[atx.hash] = txLocation{ledgerSeq: seq, txnSeq: atx.txnSeq}
	}

	if err := s.persistLedger(ctx, closing, accepted); err != nil {
		return 0, fmt.Errorf("persist ledger %d: %w", seq, err)
	}

	open, err := ledger.NewOpen(closing, time.Now())
	if err != nil {
		return 0, fmt.Errorf("open ledger on %d: %w", seq, err)
	}
	s.openLedger = open

	s.publishLedgerClosed(closing, accepted)

	return seq, nil
}

// GetLedgerBySequence returns a closed ledger from the in-memory history.
func (s *Service) GetLedgerBySequence(seq uint32) (*ledger.Ledger, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if l, ok := s.history[seq]; ok {
		return l, nil
	}
	return nil, ErrLedgerNotFound
}

// GetLedgerByHash returns a closed ledger by its header hash.
func (s *Service) GetLedgerByHash(hash [32]byte) (*ledger.Ledger, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, l := range s.history {
		if l.Hash() == hash {
			return l, nil
		}
	}
	return nil, ErrLedgerNotFound
}

// TransactionInfo is a transaction looked up by hash.
type TransactionInfo struct {
	Hash      [32]byte
	LedgerSeq uint32
	TxnSeq    uint32
	Validated bool
	TxJSON    []byte
	Meta      []byte
}

// GetTransaction looks a transaction up by hash, checking the open
// ledger first and then the closed history.
func (s *Service) GetTransaction(txHash [32]byte) (*TransactionInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, atx := range s.pending {
		if atx.hash == txHash {
			return &TransactionInfo{
				Hash:      txHash,
				LedgerSeq: s.openLedger.Sequence(),
				TxnSeq:    atx.txnSeq,
				Validated: false,
				TxJSON:    atx.blob,
				Meta:      atx.meta,
			}, nil
		}
	}

	loc, ok := s.txIndex[txHash]
	if !ok {
		return nil, ErrTxNotFound
	}
	l, ok := s.history[loc.ledgerSeq]
	if !ok {
		return nil, ErrTxNotFound
	}
	blob, found, err := l.GetTransaction(txHash)
	if err != nil || !found {
		return nil, ErrTxNotFound
	}

	info := &TransactionInfo{
		Hash:      txHash,
		LedgerSeq: loc.ledgerSeq,
		TxnSeq:    loc.txnSeq,
		Validated: l.IsValidated(),
		TxJSON:    blob,
	}

	if s.config.RelationalDB != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		row, err := s.config.RelationalDB.Transaction().GetTransaction(ctx, relationaldb.Hash(txHash))
		if err == nil && row != nil {
			info.Meta = row.TxnMeta
		}
	}

	return info, nil
}

// GetAccountTransactions pages through an account's transaction history
// from the relational database.
func (s *Service) GetAccountTransactions(ctx context.Context, account string, options relationaldb.AccountTxPageOptions, forward bool) (*relationaldb.AccountTxResult, error) {
	if s.config.RelationalDB == nil {
		return nil, errors.New("history persistence disabled")
	}

	accountID, err := addresscodec.Decode(account)
	if err != nil {
		return nil, fmt.Errorf("decode account: %w", err)
	}
	options.Account = relationaldb.AccountID(accountID)

	repo := s.config.RelationalDB.AccountTransaction()
	if forward {
		return repo.GetOldestAccountTxsPage(ctx, options)
	}
	return repo.GetNewestAccountTxsPage(ctx, options)
}

// ServerInfo is a snapshot of the service state.
type ServerInfo struct {
	Standalone            bool
	CurrentLedgerIndex    uint32
	ClosedLedgerIndex     uint32
	ValidatedLedgerIndex  uint32
	ValidatedLedgerHash   [32]byte
	ValidatedCloseTime    time.Time
	OpenTransactionCount  int
	ClosedLedgerCount     int
	TotalGrains           uint64
	MasterAccount         string
}

// GetServerInfo returns a snapshot of the service state.
func (s *Service) GetServerInfo() ServerInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	info := ServerInfo{
		Standalone:        s.config.Standalone,
		ClosedLedgerCount: len(s.history),
	}
	if s.openLedger != nil {
		info.CurrentLedgerIndex = s.openLedger.Sequence()
		info.OpenTransactionCount = len(s.pending)
	}
	if s.closedLedger != nil {
		info.ClosedLedgerIndex = s.closedLedger.Sequence()
	}
	if s.validatedLedger != nil {
		info.ValidatedLedgerIndex = s.validatedLedger.Sequence()
		info.ValidatedLedgerHash = s.validatedLedger.Hash()
		info.ValidatedCloseTime = s.validatedLedger.CloseTime()
		info.TotalGrains = s.validatedLedger.TotalGrains()
	}
	if addr, err := s.GetMasterAccount(); err == nil {
		info.MasterAccount = addr
	}
	return info
}
