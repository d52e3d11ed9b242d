package sqldb

import (
	"context"
	"database/sql"
	"time"

	"github.com/tokenvault/tokenvaultd/internal/storage/relationaldb"
)

type ledgerRepository struct {
	q *querier
}

const ledgerColumns = `ledger_hash, ledger_seq, parent_hash, account_hash, tx_hash,
	total_grains, close_time, prev_close_time, close_time_res, close_flags`

func (r *ledgerRepository) GetMinLedgerSeq(ctx context.Context) (*relationaldb.LedgerIndex, error) {
	return r.scanSeq(ctx, "SELECT MIN(ledger_seq) FROM ledgers")
}

func (r *ledgerRepository) GetMaxLedgerSeq(ctx context.Context) (*relationaldb.LedgerIndex, error) {
	return r.scanSeq(ctx, "SELECT MAX(ledger_seq) FROM ledgers")
}

func (r *ledgerRepository) scanSeq(ctx context.Context, query string) (*relationaldb.LedgerIndex, error) {
	var seq sql.NullInt64
	if err := r.q.QueryRowContext(ctx, query).Scan(&seq); err != nil {
		return nil, relationaldb.NewError("ledger_seq", "query sequence bound", err)
	}
	if !seq.Valid {
		return nil, nil
	}
	result := relationaldb.LedgerIndex(seq.Int64)
	return &result, nil
}

func (r *ledgerRepository) GetLedgerInfoBySeq(ctx context.Context, seq relationaldb.LedgerIndex) (*relationaldb.LedgerInfo, error) {
	row := r.q.QueryRowContext(ctx,
		"SELECT "+ledgerColumns+" FROM ledgers WHERE ledger_seq = ?", int64(seq))
	return scanLedgerInfo(row)
}

func (r *ledgerRepository) GetLedgerInfoByHash(ctx context.Context, hash relationaldb.Hash) (*relationaldb.LedgerInfo, error) {
	row := r.q.QueryRowContext(ctx,
		"SELECT "+ledgerColumns+" FROM ledgers WHERE ledger_hash = ?", hash[:])
	return scanLedgerInfo(row)
}

func (r *ledgerRepository) GetNewestLedgerInfo(ctx context.Context) (*relationaldb.LedgerInfo, error) {
	row := r.q.QueryRowContext(ctx,
		"SELECT "+ledgerColumns+" FROM ledgers ORDER BY ledger_seq DESC LIMIT 1")
	return scanLedgerInfo(row)
}

func scanLedgerInfo(row *sql.Row) (*relationaldb.LedgerInfo, error) {
	var info relationaldb.LedgerInfo
	var hash, parentHash, accountHash, txHash []byte
	var totalGrains, closeTime, prevCloseTime int64

	err := row.Scan(&hash, &info.Sequence, &parentHash, &accountHash, &txHash,
		&totalGrains, &closeTime, &prevCloseTime, &info.CloseTimeRes, &info.CloseFlags)
	if err == sql.ErrNoRows {
		return nil, relationaldb.ErrLedgerNotFound
	}
	if err != nil {
		return nil, relationaldb.NewError("ledger_info", "query ledger", err)
	}

	copy(info.Hash[:], hash)
	copy(info.ParentHash[:], parentHash)
	copy(info.AccountHash[:], accountHash)
	copy(info.TransactionHash[:], txHash)
	info.TotalGrains = uint64(totalGrains)
	info.CloseTime = time.Unix(closeTime, 0).UTC()
	info.ParentCloseTime = time.Unix(prevCloseTime, 0).UTC()
	return &info, nil
}

func (r *ledgerRepository) GetHashesByRange(ctx context.Context, minSeq, maxSeq relationaldb.LedgerIndex) (map[relationaldb.LedgerIndex]relationaldb.LedgerHashPair, error) {
	rows, err := r.q.QueryContext(ctx,
		"SELECT ledger_seq, ledger_hash, parent_hash FROM ledgers WHERE ledger_seq >= ? AND ledger_seq <= ?",
		int64(minSeq), int64(maxSeq))
	if err != nil {
		return nil, relationaldb.NewError("hashes_by_range", "query hashes", err)
	}
	defer rows.Close()

	result := make(map[relationaldb.LedgerIndex]relationaldb.LedgerHashPair)
	for rows.Next() {
		var seq int64
		var hash, parentHash []byte
		if err := rows.Scan(&seq, &hash, &parentHash); err != nil {
			return nil, relationaldb.NewError("hashes_by_range", "scan row", err)
		}
		var pair relationaldb.LedgerHashPair
		copy(pair.LedgerHash[:], hash)
		copy(pair.ParentHash[:], parentHash)
		result[relationaldb.LedgerIndex(seq)] = pair
	}
	return result, rows.Err()
}

func (r *ledgerRepository) SaveValidatedLedger(ctx context.Context, ledger *relationaldb.LedgerInfo) error {
	// Replace any previous row for the sequence; validation is final.
	if _, err := r.q.ExecContext(ctx,
		"DELETE FROM ledgers WHERE ledger_seq = ?", int64(ledger.Sequence)); err != nil {
		return relationaldb.NewError("save_ledger", "delete stale row", err)
	}

	_, err := r.q.ExecContext(ctx,
		`INSERT INTO ledgers (ledger_seq, ledger_hash, parent_hash, account_hash, tx_hash,
			total_grains, close_time, prev_close_time, close_time_res, close_flags)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		int64(ledger.Sequence), ledger.Hash[:], ledger.ParentHash[:],
		ledger.AccountHash[:], ledger.TransactionHash[:],
		int64(ledger.TotalGrains), ledger.CloseTime.Unix(), ledger.ParentCloseTime.Unix(),
		ledger.CloseTimeRes, ledger.CloseFlags)
	if err != nil {
		return relationaldb.NewError("save_ledger", "insert ledger", err)
	}
	return nil
}

func (r *ledgerRepository) DeleteLedgersBefore(ctx context.Context, seq relationaldb.LedgerIndex) error {
	if _, err := r.q.ExecContext(ctx,
		"DELETE FROM ledgers WHERE ledger_seq < ?", int64(seq)); err != nil {
		return relationaldb.NewError("delete_ledgers", "delete rows", err)
	}
	return nil
}
