package rpc

import (
	"encoding/json"

	"github.com/tokenvault/tokenvaultd/internal/core/ledger/service"
)

// Publisher forwards ledger service events to stream subscribers. It
// implements service.EventHooks.
type Publisher struct {
	manager *SubscriptionManager
}

func NewPublisher(manager *SubscriptionManager) *Publisher {
	return &Publisher{manager: manager}
}

// OnLedgerClosed broadcasts a ledgerClosed message on the ledger stream.
func (p *Publisher) OnLedgerClosed(event service.LedgerClosedEvent) {
	p.manager.Broadcast(SubLedger, map[string]any{
		"type":         "ledgerClosed",
		"ledger_index": event.LedgerSeq,
		"ledger_hash":  hashHex(event.LedgerHash),
		"ledger_time":  event.CloseTime.Unix(),
		"txn_count":    event.TxCount,
		"total_grains": event.TotalGrains,
	}, nil)
}

// OnTransaction broadcasts a transaction message on the transactions
// stream and to account subscribers following the sender.
func (p *Publisher) OnTransaction(event service.TransactionEvent) {
	message := map[string]any{
		"type":          "transaction",
		"hash":          hashHex(event.Hash),
		"ledger_index":  event.LedgerSeq,
		"txn_index":     event.TxnSeq,
		"engine_result": event.Result,
		"account":       event.Account,
		"validated":     event.Validated,
	}
	var txJSON map[string]any
	if err := json.Unmarshal(event.TxJSON, &txJSON); err == nil {
		message["tx_json"] = txJSON
	}
	if len(event.Meta) > 0 {
		var meta map[string]any
		if err := json.Unmarshal(event.Meta, &meta); err == nil {
			message["meta"] = meta
		}
	}

	p.manager.Broadcast(SubTransactions, message, nil)
	p.manager.Broadcast(SubAccounts, message, []string{event.Account})
}
