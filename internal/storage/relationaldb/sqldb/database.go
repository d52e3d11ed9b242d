// Package sqldb implements the relationaldb repositories over
// database/sql. The same implementation serves sqlite (standalone) and
// postgres; queries are written with ? placeholders and rebound for
// postgres.
package sqldb

import (
	"context"
	"database/sql"
	"strconv"
	"strings"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/tokenvault/tokenvaultd/internal/storage/relationaldb"
)

// driverName maps the config driver to the registered sql driver.
func driverName(driver string) string {
	if driver == relationaldb.DriverPostgres {
		return "postgres"
	}
	return "sqlite"
}

// Manager implements relationaldb.RepositoryManager.
type Manager struct {
	config *relationaldb.Config
	db     *sql.DB

	ledgerRepo    *ledgerRepository
	txRepo        *transactionRepository
	accountTxRepo *accountTxRepository
}

// NewManager creates a repository manager from configuration.
func NewManager(config *relationaldb.Config) (*Manager, error) {
	if config == nil {
		config = relationaldb.DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, relationaldb.NewError("new_manager", "invalid configuration", err)
	}
	return &Manager{config: config}, nil
}

// Open connects and creates the schema if needed.
func (m *Manager) Open(ctx context.Context) error {
	dsn, err := m.config.DSN()
	if err != nil {
		return relationaldb.NewError("open", "build dsn", err)
	}

	db, err := sql.Open(driverName(m.config.Driver), dsn)
	if err != nil {
		return relationaldb.NewError("open", "open connection", err)
	}

	db.SetMaxOpenConns(m.config.MaxOpenConns)
	db.SetMaxIdleConns(m.config.MaxIdleConns)
	db.SetConnMaxLifetime(m.config.ConnMaxLifetime)

	pingCtx, cancel := context.WithTimeout(ctx, m.config.DefaultTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return relationaldb.NewError("open", "ping", err)
	}

	m.db = db
	q := newQuerier(db, m.config.Driver)
	if err := m.initSchema(ctx, q); err != nil {
		db.Close()
		m.db = nil
		return err
	}

	m.ledgerRepo = &ledgerRepository{q: q}
	m.txRepo = &transactionRepository{q: q}
	m.accountTxRepo = &accountTxRepository{q: q}
	return nil
}

// Close shuts the connection pool down.
func (m *Manager) Close(ctx context.Context) error {
	if m.db == nil {
		return nil
	}
	err := m.db.Close()
	m.db = nil
	if err != nil {
		return relationaldb.NewError("close", "close connection", err)
	}
	return nil
}

// Ping verifies connectivity.
func (m *Manager) Ping(ctx context.Context) error {
	if m.db == nil {
		return relationaldb.ErrDatabaseClosed
	}
	return m.db.PingContext(ctx)
}

func (m *Manager) Ledger() relationaldb.LedgerRepository { return m.ledgerRepo }

func (m *Manager) Transaction() relationaldb.TransactionRepository { return m.txRepo }

func (m *Manager) AccountTransaction() relationaldb.AccountTransactionRepository {
	return m.accountTxRepo
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS ledgers (
		ledger_seq      BIGINT PRIMARY KEY,
		ledger_hash     BYTEA NOT NULL,
		parent_hash     BYTEA NOT NULL,
		account_hash    BYTEA NOT NULL,
		tx_hash         BYTEA NOT NULL,
		total_grains    BIGINT NOT NULL,
		close_time      BIGINT NOT NULL,
		prev_close_time BIGINT NOT NULL,
		close_time_res  INTEGER NOT NULL,
		close_flags     INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS ledgers_hash_idx ON ledgers (ledger_hash)`,
	`CREATE TABLE IF NOT EXISTS transactions (
		tx_hash    BYTEA PRIMARY KEY,
		ledger_seq BIGINT NOT NULL,
		txn_seq    INTEGER NOT NULL,
		status     TEXT NOT NULL,
		account    BYTEA NOT NULL,
		raw_txn    BYTEA,
		txn_meta   BYTEA
	)`,
	`CREATE INDEX IF NOT EXISTS transactions_ledger_idx ON transactions (ledger_seq)`,
	`CREATE TABLE IF NOT EXISTS account_transactions (
		account    BYTEA NOT NULL,
		ledger_seq BIGINT NOT NULL,
		txn_seq    INTEGER NOT NULL,
		tx_hash    BYTEA NOT NULL,
		PRIMARY KEY (account, ledger_seq, txn_seq, tx_hash)
	)`,
	`CREATE INDEX IF NOT EXISTS account_tx_idx ON account_transactions (account, ledger_seq, txn_seq)`,
}

func (m *Manager) initSchema(ctx context.Context, q *querier) error {
	for _, stmt := range schema {
		if m.config.Driver == relationaldb.DriverSQLite {
			// sqlite has no BYTEA type; BLOB is the equivalent.
			stmt = strings.ReplaceAll(stmt, "BYTEA", "BLOB")
		}
		if _, err := q.db.ExecContext(ctx, stmt); err != nil {
			return relationaldb.NewError("init_schema", "create schema", err)
		}
	}
	return nil
}

// querier executes queries with driver-appropriate placeholders.
type querier struct {
	db     *sql.DB
	driver string
}

func newQuerier(db *sql.DB, driver string) *querier {
	return &querier{db: db, driver: driver}
}

// rebind rewrites ? placeholders to $N for postgres.
func (q *querier) rebind(query string) string {
	if q.driver != relationaldb.DriverPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (q *querier) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return q.db.ExecContext(ctx, q.rebind(query), args...)
}

func (q *querier) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return q.db.QueryContext(ctx, q.rebind(query), args...)
}

func (q *querier) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	return q.db.QueryRowContext(ctx, q.rebind(query), args...)
}
