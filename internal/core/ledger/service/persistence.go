package service

import (
	"context"
	"fmt"
	"time"

	"github.com/tokenvault/tokenvaultd/internal/core/ledger"
	"github.com/tokenvault/tokenvaultd/internal/storage/nodestore"
	"github.com/tokenvault/tokenvaultd/internal/storage/relationaldb"
)

// persistLedger writes a validated ledger to the configured stores.
// State entries and the serialized header go to the node store; ledger
// and transaction rows go to the relational database. Called with the
// service lock held.
func (s *Service) persistLedger(ctx context.Context, l *ledger.Ledger, accepted []appliedTx) error {
	if err := s.persistNodes(ctx, l); err != nil {
		return err
	}
	return s.persistHistory(ctx, l, accepted)
}

func (s *Service) persistNodes(ctx context.Context, l *ledger.Ledger) error {
	if s.config.NodeStore == nil {
		return nil
	}

	seq := l.Sequence()
	now := time.Now()
	var nodes []*nodestore.Node

	// State nodes are keyed by their state key, not the content hash.
	err := l.ForEach(func(key [32]byte, data []byte) bool {
		nodes = append(nodes, &nodestore.Node{
			Type:      nodestore.NodeState,
			Hash:      nodestore.Hash256(key),
			Data:      data,
			LedgerSeq: seq,
			CreatedAt: now,
		})
		return true
	})
	if err != nil {
		return fmt.Errorf("walk state: %w", err)
	}

	nodes = append(nodes, &nodestore.Node{
		Type:      nodestore.NodeHeader,
		Hash:      nodestore.Hash256(l.Hash()),
		Data:      l.SerializeHeader(),
		LedgerSeq: seq,
		CreatedAt: now,
	})

	for _, hash := range l.TransactionHashes() {
		blob, ok, err := l.GetTransaction(hash)
		if err != nil || !ok {
			continue
		}
		nodes = append(nodes, &nodestore.Node{
			Type:      nodestore.NodeTransaction,
			Hash:      nodestore.Hash256(hash),
			Data:      blob,
			LedgerSeq: seq,
			CreatedAt: now,
		})
	}

	if err := s.config.NodeStore.StoreBatch(ctx, nodes); err != nil {
		return fmt.Errorf("store nodes: %w", err)
	}
	return s.config.NodeStore.Sync()
}

func (s *Service) persistHistory(ctx context.Context, l *ledger.Ledger, accepted []appliedTx) error {
	if s.config.RelationalDB == nil {
		return nil
	}

	hdr := l.Header()
	info := &relationaldb.LedgerInfo{
		Hash:            relationaldb.Hash(l.Hash()),
		Sequence:        relationaldb.LedgerIndex(l.Sequence()),
		ParentHash:      relationaldb.Hash(l.ParentHash()),
		AccountHash:     relationaldb.Hash(hdr.AccountHash),
		TransactionHash: relationaldb.Hash(hdr.TxHash),
		TotalGrains:     l.TotalGrains(),
		CloseTime:       hdr.CloseTime,
		ParentCloseTime: hdr.ParentCloseTime,
		CloseTimeRes:    int32(hdr.CloseTimeResolution),
		CloseFlags:      hdr.CloseFlags,
	}
	if err := s.config.RelationalDB.Ledger().SaveValidatedLedger(ctx, info); err != nil {
		return fmt.Errorf("save ledger row: %w", err)
	}

	for _, atx := range accepted {
		row := &relationaldb.TransactionInfo{
			Hash:      relationaldb.Hash(atx.hash),
			LedgerSeq: relationaldb.LedgerIndex(l.Sequence()),
			TxnSeq:    atx.txnSeq,
			Status:    atx.result.String(),
			RawTxn:    atx.blob,
			TxnMeta:   atx.meta,
			Account:   relationaldb.AccountID(atx.account),
		}
		if err := s.config.RelationalDB.Transaction().SaveTransaction(ctx, row); err != nil {
			return fmt.Errorf("save transaction row: %w", err)
		}
		if err := s.config.RelationalDB.AccountTransaction().SaveAccountTransaction(ctx, row.Account, row); err != nil {
			return fmt.Errorf("save account transaction row: %w", err)
		}
	}
	return nil
}
