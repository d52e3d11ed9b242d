package service

import (
	"time"

	addresscodec "github.com/tokenvault/tokenvaultd/internal/codec/address-codec"
	"github.com/tokenvault/tokenvaultd/internal/core/ledger"
)

// LedgerClosedEvent describes a ledger that was closed and validated.
type LedgerClosedEvent struct {
	LedgerSeq   uint32
	LedgerHash  [32]byte
	CloseTime   time.Time
	TxCount     int
	TotalGrains uint64
}

// TransactionEvent describes a transaction included in a closed ledger.
type TransactionEvent struct {
	Hash      [32]byte
	LedgerSeq uint32
	TxnSeq    uint32
	Result    string
	Account   string
	TxJSON    []byte
	Meta      []byte
	Validated bool
}

// EventHooks receives ledger lifecycle notifications. Hooks run on a
// separate goroutine; implementations must be safe for concurrent use.
type EventHooks interface {
	OnLedgerClosed(event LedgerClosedEvent)
	OnTransaction(event TransactionEvent)
}

// publishLedgerClosed dispatches events for a newly validated ledger.
// Called with the service lock held; hooks run asynchronously so slow
// subscribers cannot stall ledger acceptance.
func (s *Service) publishLedgerClosed(closed *ledger.Ledger, accepted []appliedTx) {
	if s.hooks == nil {
		return
	}

	ledgerEvent := LedgerClosedEvent{
		LedgerSeq:   closed.Sequence(),
		LedgerHash:  closed.Hash(),
		CloseTime:   closed.CloseTime(),
		TxCount:     len(accepted),
		TotalGrains: closed.TotalGrains(),
	}

	txEvents := make([]TransactionEvent, 0, len(accepted))
	for _, atx := range accepted {
		txEvents = append(txEvents, TransactionEvent{
			Hash:      atx.hash,
			LedgerSeq: closed.Sequence(),
			TxnSeq:    atx.txnSeq,
			Result:    atx.result.String(),
			Account:   addresscodec.Encode(atx.account),
			TxJSON:    atx.blob,
			Meta:      atx.meta,
			Validated: true,
		})
	}

	hooks := s.hooks
	go func() {
		hooks.OnLedgerClosed(ledgerEvent)
		for _, event := range txEvents {
			hooks.OnTransaction(event)
		}
	}()
}
