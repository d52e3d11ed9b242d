package sqldb

import (
	"context"
	"database/sql"

	"github.com/tokenvault/tokenvaultd/internal/storage/relationaldb"
)

type transactionRepository struct {
	q *querier
}

const txColumns = `tx_hash, ledger_seq, txn_seq, status, account, raw_txn, txn_meta`

func (r *transactionRepository) GetTransactionCount(ctx context.Context) (int64, error) {
	var count int64
	if err := r.q.QueryRowContext(ctx, "SELECT COUNT(*) FROM transactions").Scan(&count); err != nil {
		return 0, relationaldb.NewError("tx_count", "query count", err)
	}
	return count, nil
}

func (r *transactionRepository) GetTransaction(ctx context.Context, hash relationaldb.Hash) (*relationaldb.TransactionInfo, error) {
	row := r.q.QueryRowContext(ctx,
		"SELECT "+txColumns+" FROM transactions WHERE tx_hash = ?", hash[:])

	info, err := scanTransactionInfo(row.Scan)
	if err == sql.ErrNoRows {
		return nil, relationaldb.ErrTransactionNotFound
	}
	if err != nil {
		return nil, relationaldb.NewError("get_transaction", "query transaction", err)
	}
	return info, nil
}

func (r *transactionRepository) GetTxHistory(ctx context.Context, startIndex relationaldb.LedgerIndex, limit int) ([]relationaldb.TransactionInfo, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.q.QueryContext(ctx,
		"SELECT "+txColumns+` FROM transactions WHERE ledger_seq >= ?
		 ORDER BY ledger_seq DESC, txn_seq DESC LIMIT ?`,
		int64(startIndex), limit)
	if err != nil {
		return nil, relationaldb.NewError("tx_history", "query history", err)
	}
	defer rows.Close()

	var result []relationaldb.TransactionInfo
	for rows.Next() {
		info, err := scanTransactionInfo(rows.Scan)
		if err != nil {
			return nil, relationaldb.NewError("tx_history", "scan row", err)
		}
		result = append(result, *info)
	}
	return result, rows.Err()
}

func scanTransactionInfo(scan func(...any) error) (*relationaldb.TransactionInfo, error) {
	var info relationaldb.TransactionInfo
	var hash, account []byte

	err := scan(&hash, &info.LedgerSeq, &info.TxnSeq, &info.Status,
		&account, &info.RawTxn, &info.TxnMeta)
	if err != nil {
		return nil, err
	}
	copy(info.Hash[:], hash)
	copy(info.Account[:], account)
	return &info, nil
}

func (r *transactionRepository) SaveTransaction(ctx context.Context, txInfo *relationaldb.TransactionInfo) error {
	if _, err := r.q.ExecContext(ctx,
		"DELETE FROM transactions WHERE tx_hash = ?", txInfo.Hash[:]); err != nil {
		return relationaldb.NewError("save_transaction", "delete stale row", err)
	}

	_, err := r.q.ExecContext(ctx,
		`INSERT INTO transactions (tx_hash, ledger_seq, txn_seq, status, account, raw_txn, txn_meta)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		txInfo.Hash[:], int64(txInfo.LedgerSeq), txInfo.TxnSeq, txInfo.Status,
		txInfo.Account[:], txInfo.RawTxn, txInfo.TxnMeta)
	if err != nil {
		return relationaldb.NewError("save_transaction", "insert transaction", err)
	}
	return nil
}

func (r *transactionRepository) DeleteTransactionsBefore(ctx context.Context, ledgerSeq relationaldb.LedgerIndex) error {
	if _, err := r.q.ExecContext(ctx,
		"DELETE FROM transactions WHERE ledger_seq < ?", int64(ledgerSeq)); err != nil {
		return relationaldb.NewError("delete_transactions", "delete rows", err)
	}
	return nil
}
