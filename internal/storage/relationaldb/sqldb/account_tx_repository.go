package sqldb

import (
	"context"

	"github.com/tokenvault/tokenvaultd/internal/storage/relationaldb"
)

type accountTxRepository struct {
	q *querier
}

func (r *accountTxRepository) GetAccountTransactionCount(ctx context.Context) (int64, error) {
	var count int64
	if err := r.q.QueryRowContext(ctx, "SELECT COUNT(*) FROM account_transactions").Scan(&count); err != nil {
		return 0, relationaldb.NewError("account_tx_count", "query count", err)
	}
	return count, nil
}

func (r *accountTxRepository) GetOldestAccountTxsPage(ctx context.Context, options relationaldb.AccountTxPageOptions) (*relationaldb.AccountTxResult, error) {
	return r.page(ctx, options, true)
}

func (r *accountTxRepository) GetNewestAccountTxsPage(ctx context.Context, options relationaldb.AccountTxPageOptions) (*relationaldb.AccountTxResult, error) {
	return r.page(ctx, options, false)
}

func (r *accountTxRepository) page(ctx context.Context, options relationaldb.AccountTxPageOptions, forward bool) (*relationaldb.AccountTxResult, error) {
	limit := options.Limit
	if limit == 0 || limit > 400 {
		limit = 200
	}

	query := `SELECT at.ledger_seq, at.txn_seq, t.tx_hash, t.status, t.account, t.raw_txn, t.txn_meta
		FROM account_transactions at
		JOIN transactions t ON t.tx_hash = at.tx_hash
		WHERE at.account = ? AND at.ledger_seq >= ? AND at.ledger_seq <= ?`
	args := []any{options.Account[:], int64(options.MinLedger), int64(options.MaxLedger)}

	// The marker points at the last row of the previous page.
	if m := options.Marker; m != nil {
		if forward {
			query += ` AND (at.ledger_seq > ? OR (at.ledger_seq = ? AND at.txn_seq > ?))`
		} else {
			query += ` AND (at.ledger_seq < ? OR (at.ledger_seq = ? AND at.txn_seq < ?))`
		}
		args = append(args, int64(m.LedgerSeq), int64(m.LedgerSeq), m.TxnSeq)
	}

	if forward {
		query += ` ORDER BY at.ledger_seq ASC, at.txn_seq ASC`
	} else {
		query += ` ORDER BY at.ledger_seq DESC, at.txn_seq DESC`
	}
	// Fetch one extra row to detect whether another page exists.
	query += ` LIMIT ?`
	args = append(args, int64(limit)+1)

	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, relationaldb.NewError("account_tx_page", "query page", err)
	}
	defer rows.Close()

	result := &relationaldb.AccountTxResult{
		LedgerRange: relationaldb.LedgerRange{Min: options.MinLedger, Max: options.MaxLedger},
		Limit:       limit,
	}

	for rows.Next() {
		var info relationaldb.TransactionInfo
		var hash, account []byte
		if err := rows.Scan(&info.LedgerSeq, &info.TxnSeq, &hash, &info.Status,
			&account, &info.RawTxn, &info.TxnMeta); err != nil {
			return nil, relationaldb.NewError("account_tx_page", "scan row", err)
		}
		copy(info.Hash[:], hash)
		copy(info.Account[:], account)

		if uint32(len(result.Transactions)) == limit {
			last := result.Transactions[len(result.Transactions)-1]
			result.Marker = &relationaldb.AccountTxMarker{
				LedgerSeq: last.LedgerSeq,
				TxnSeq:    last.TxnSeq,
			}
			break
		}
		result.Transactions = append(result.Transactions, info)
	}
	return result, rows.Err()
}

func (r *accountTxRepository) SaveAccountTransaction(ctx context.Context, accountID relationaldb.AccountID, txInfo *relationaldb.TransactionInfo) error {
	if _, err := r.q.ExecContext(ctx,
		`DELETE FROM account_transactions WHERE account = ? AND ledger_seq = ? AND txn_seq = ? AND tx_hash = ?`,
		accountID[:], int64(txInfo.LedgerSeq), txInfo.TxnSeq, txInfo.Hash[:]); err != nil {
		return relationaldb.NewError("save_account_tx", "delete stale row", err)
	}

	_, err := r.q.ExecContext(ctx,
		`INSERT INTO account_transactions (account, ledger_seq, txn_seq, tx_hash)
		 VALUES (?, ?, ?, ?)`,
		accountID[:], int64(txInfo.LedgerSeq), txInfo.TxnSeq, txInfo.Hash[:])
	if err != nil {
		return relationaldb.NewError("save_account_tx", "insert row", err)
	}
	return nil
}

func (r *accountTxRepository) DeleteAccountTransactionsBefore(ctx context.Context, ledgerSeq relationaldb.LedgerIndex) error {
	if _, err := r.q.ExecContext(ctx,
		"DELETE FROM account_transactions WHERE ledger_seq < ?", int64(ledgerSeq)); err != nil {
		return relationaldb.NewError("delete_account_txs", "delete rows", err)
	}
	return nil
}
