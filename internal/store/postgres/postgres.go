// Package postgres implements store.Store against PostgreSQL via pgx,
// grounded on the teacher's internal/store/postgres.go and
// internal/service/transfer.go, generalized from the teacher's
// SELECT ... FOR UPDATE row-locking into an explicit compare-and-swap
// UPDATE on the account's version column (spec §4.A requires the store to
// "provide this semantics directly — not via a read-then-write pattern").
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/ledgerbank/corebank/internal/domain"
	"github.com/ledgerbank/corebank/internal/money"
	"github.com/ledgerbank/corebank/internal/store"
)

// Store is a pgxpool-backed implementation of store.Store.
type Store struct {
	pool *pgxpool.Pool
}

// New connects to Postgres and pings it, exactly as the teacher's
// store.NewStore does.
func New(ctx context.Context, connString string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("parse database config: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Store{pool: pool}, nil
}

// Close releases the pool.
func (s *Store) Close() { s.pool.Close() }

// Migrate creates the engine's four tables (accounts, journal entries,
// transfers, idempotency records), if absent.
// Grounded on ravivats-go-api-example's initSchema, generalized from a
// single accounts table to the full schema.
func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, schemaSQL)
	if err != nil {
		return fmt.Errorf("migrate schema: %w", err)
	}
	return nil
}

const schemaSQL = `
CREATE TABLE IF NOT EXISTS accounts (
	id              TEXT PRIMARY KEY,
	account_number  TEXT NOT NULL UNIQUE,
	user_id         TEXT NOT NULL,
	account_type    TEXT NOT NULL,
	status          TEXT NOT NULL,
	balance_cents   BIGINT NOT NULL DEFAULT 0,
	currency        TEXT NOT NULL,
	version         BIGINT NOT NULL DEFAULT 0,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS journal_entries (
	id                   TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	account_id           TEXT NOT NULL REFERENCES accounts(id),
	amount_cents         BIGINT NOT NULL,
	kind                 TEXT NOT NULL,
	status               TEXT NOT NULL,
	balance_after_cents  BIGINT NOT NULL,
	transfer_id          TEXT,
	description          TEXT NOT NULL DEFAULT '',
	created_at           TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_journal_entries_account_id ON journal_entries(account_id);

CREATE TABLE IF NOT EXISTS transfers (
	id                       TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	source_account_id        TEXT NOT NULL REFERENCES accounts(id),
	destination_account_id   TEXT NOT NULL REFERENCES accounts(id),
	amount_cents             BIGINT NOT NULL,
	currency                 TEXT NOT NULL,
	status                   TEXT NOT NULL,
	description              TEXT NOT NULL DEFAULT '',
	operation_key            TEXT NOT NULL UNIQUE,
	failure_reason           TEXT NOT NULL DEFAULT '',
	created_at               TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	completed_at             TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS idempotency_records (
	operation_key  TEXT NOT NULL,
	user_id        TEXT NOT NULL,
	path           TEXT NOT NULL,
	completed      BOOLEAN NOT NULL DEFAULT FALSE,
	response_body  JSONB,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	PRIMARY KEY (operation_key, user_id)
);
`

// Begin opens a transaction. Isolation is RepeatableRead, matching the
// teacher and satisfying spec §5's "at least repeatable read" requirement.
func (s *Store) Begin(ctx context.Context) (store.Tx, error) {
	pgxTx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	return &tx{pgxTx: pgxTx}, nil
}

type tx struct {
	pgxTx pgx.Tx
}

func (t *tx) FindAccountByID(ctx context.Context, id string) (*domain.Account, error) {
	return t.scanAccount(ctx, "SELECT id, account_number, user_id, account_type, status, balance_cents, currency, version, created_at FROM accounts WHERE id = $1", id)
}

func (t *tx) FindAccountByNumber(ctx context.Context, number string) (*domain.Account, error) {
	return t.scanAccount(ctx, "SELECT id, account_number, user_id, account_type, status, balance_cents, currency, version, created_at FROM accounts WHERE account_number = $1", number)
}

func (t *tx) scanAccount(ctx context.Context, query string, arg string) (*domain.Account, error) {
	var a domain.Account
	var balanceCents int64
	err := t.pgxTx.QueryRow(ctx, query, arg).Scan(
		&a.ID, &a.Number, &a.UserID, &a.Type, &a.Status, &balanceCents, &a.Currency, &a.Version, &a.CreatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("find account: %w", err)
	}
	a.Balance = money.Amount(balanceCents)
	return &a, nil
}

func (t *tx) InsertJournalEntry(ctx context.Context, e *domain.JournalEntry) error {
	err := t.pgxTx.QueryRow(ctx,
		`INSERT INTO journal_entries (account_id, amount_cents, kind, status, balance_after_cents, transfer_id, description, created_at)
		 VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7, NOW())
		 RETURNING id, created_at`,
		e.AccountID, int64(e.Amount), e.Kind, e.Status, int64(e.BalanceAfter), e.TransferID, e.Description,
	).Scan(&e.ID, &e.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert journal entry: %w", err)
	}
	return nil
}

func (t *tx) InsertTransfer(ctx context.Context, tr *domain.Transfer) error {
	err := t.pgxTx.QueryRow(ctx,
		`INSERT INTO transfers (source_account_id, destination_account_id, amount_cents, currency, status, description, operation_key, created_at, completed_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())
		 RETURNING id, created_at, completed_at`,
		tr.SourceID, tr.DestinationID, int64(tr.Amount), tr.Currency, tr.Status, tr.Description, tr.OperationKey,
	).Scan(&tr.ID, &tr.CreatedAt, &tr.CompletedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return domain.ErrDuplicateKey
		}
		return fmt.Errorf("insert transfer: %w", err)
	}
	return nil
}

func (t *tx) FindTransferByOperationKey(ctx context.Context, key string) (*domain.Transfer, error) {
	var tr domain.Transfer
	var amountCents int64
	err := t.pgxTx.QueryRow(ctx,
		`SELECT id, source_account_id, destination_account_id, amount_cents, currency, status, description, operation_key, created_at, completed_at
		 FROM transfers WHERE operation_key = $1`,
		key,
	).Scan(&tr.ID, &tr.SourceID, &tr.DestinationID, &amountCents, &tr.Currency, &tr.Status, &tr.Description, &tr.OperationKey, &tr.CreatedAt, &tr.CompletedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("find transfer by operation key: %w", err)
	}
	tr.Amount = money.Amount(amountCents)
	return &tr, nil
}

// UpdateAccountVersion issues the store's one and only compare-and-swap:
// the WHERE clause on version is the entirety of the OCC mechanism (spec
// §4.A, §5). A zero rows-affected result means the version had already
// moved, and a serialization failure (SQLSTATE 40001) means a concurrent
// writer committed an update to the row after this transaction's snapshot;
// both are reported as domain.ErrVersionConflict, never as a generic
// storage error.
func (t *tx) UpdateAccountVersion(ctx context.Context, accountID string, newBalance money.Amount, expectedVersion int64) error {
	tag, err := t.pgxTx.Exec(ctx,
		`UPDATE accounts SET balance_cents = $1, version = version + 1 WHERE id = $2 AND version = $3`,
		int64(newBalance), accountID, expectedVersion,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "40001" {
			return domain.ErrVersionConflict
		}
		return fmt.Errorf("update account version: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrVersionConflict
	}
	return nil
}

func (t *tx) FindIdempotencyRecord(ctx context.Context, operationKey, userID string) (*domain.IdempotencyRecord, error) {
	var r domain.IdempotencyRecord
	err := t.pgxTx.QueryRow(ctx,
		`SELECT operation_key, user_id, path, completed, response_body, created_at, updated_at
		 FROM idempotency_records WHERE operation_key = $1 AND user_id = $2`,
		operationKey, userID,
	).Scan(&r.OperationKey, &r.UserID, &r.Path, &r.Completed, &r.ResponseBody, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("find idempotency record: %w", err)
	}
	return &r, nil
}

func (t *tx) InsertIdempotencyRecord(ctx context.Context, r *domain.IdempotencyRecord) error {
	err := t.pgxTx.QueryRow(ctx,
		`INSERT INTO idempotency_records (operation_key, user_id, path, completed, response_body, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
		 RETURNING created_at, updated_at`,
		r.OperationKey, r.UserID, r.Path, r.Completed, r.ResponseBody,
	).Scan(&r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return domain.ErrDuplicateKey
		}
		return fmt.Errorf("insert idempotency record: %w", err)
	}
	return nil
}

func (t *tx) UpdateIdempotencyRecord(ctx context.Context, r *domain.IdempotencyRecord) error {
	err := t.pgxTx.QueryRow(ctx,
		`UPDATE idempotency_records SET completed = $1, response_body = $2, updated_at = NOW()
		 WHERE operation_key = $3 AND user_id = $4
		 RETURNING updated_at`,
		r.Completed, r.ResponseBody, r.OperationKey, r.UserID,
	).Scan(&r.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update idempotency record: %w", err)
	}
	return nil
}

func (t *tx) SumCompletedEntries(ctx context.Context, accountID string) (money.Amount, int, error) {
	var sumCents int64
	var count int
	err := t.pgxTx.QueryRow(ctx,
		`SELECT COALESCE(SUM(amount_cents), 0), COUNT(*) FROM journal_entries WHERE account_id = $1 AND status = $2`,
		accountID, domain.EntryCompleted,
	).Scan(&sumCents, &count)
	if err != nil {
		return 0, 0, fmt.Errorf("sum completed entries: %w", err)
	}
	return money.Amount(sumCents), count, nil
}

func (t *tx) Commit(ctx context.Context) error {
	if err := t.pgxTx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func (t *tx) Rollback(ctx context.Context) error {
	if err := t.pgxTx.Rollback(ctx); err != nil && err != pgx.ErrTxClosed {
		return fmt.Errorf("rollback transaction: %w", err)
	}
	return nil
}
