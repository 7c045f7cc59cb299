package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/Abhishek001-1/WalnutFolks-FSE/internal/transaction"
)

type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// The primary key on transaction_id is the idempotency backbone: concurrent
// inserts for the same identifier are serialized by the index and exactly one
// of them lands.
const createTableQuery = `
	CREATE TABLE IF NOT EXISTS transactions (
		transaction_id      TEXT PRIMARY KEY,
		source_account      TEXT NOT NULL,
		destination_account TEXT NOT NULL,
		amount              NUMERIC(20, 4) NOT NULL,
		currency            TEXT NOT NULL,
		status              TEXT NOT NULL,
		created_at          TIMESTAMPTZ NOT NULL,
		processed_at        TIMESTAMPTZ
	)
`

// EnsureSchema creates the transactions table and its uniqueness constraint.
// Safe to call on every start. A failure here means the store is unreachable
// or the schema cannot be guaranteed, and the caller should treat it as fatal
// rather than run without the constraint.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, createTableQuery); err != nil {
		return fmt.Errorf("ensuring transactions table: %w", err)
	}

	return nil
}

// InsertIfAbsent writes the transaction unless one with the same identifier
// already exists. The conflict is resolved by the unique index inside a
// single statement, never by a read-then-write in application code. Returns
// true only for the caller whose row actually landed.
func (s *Store) InsertIfAbsent(ctx context.Context, tx *transaction.Transaction) (bool, error) {
	query := `
		INSERT INTO transactions (transaction_id, source_account, destination_account, amount, currency, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (transaction_id) DO NOTHING
	`

	res, err := s.db.ExecContext(ctx, query,
		tx.TransactionID,
		tx.SourceAccount,
		tx.DestinationAccount,
		tx.Amount,
		tx.Currency,
		tx.Status,
		tx.CreatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("inserting transaction: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("reading rows affected: %w", err)
	}

	return n == 1, nil
}

func (s *Store) GetTransaction(ctx context.Context, transactionID string) (*transaction.Transaction, error) {
	query := `
		SELECT transaction_id, source_account, destination_account, amount, currency, status, created_at, processed_at
		FROM transactions
		WHERE transaction_id = $1
	`

	var (
		tx          transaction.Transaction
		statusStr   string
		processedAt sql.NullTime
	)

	err := s.db.QueryRowContext(ctx, query, transactionID).Scan(
		&tx.TransactionID, &tx.SourceAccount, &tx.DestinationAccount,
		&tx.Amount, &tx.Currency, &statusStr, &tx.CreatedAt, &processedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, transaction.ErrNotFound
		}

		return nil, fmt.Errorf("getting transaction: %w", err)
	}

	tx.Status = transaction.Status(statusStr)

	if processedAt.Valid {
		t := processedAt.Time
		tx.ProcessedAt = &t
	}

	return &tx, nil
}

// MarkProcessed stamps the record as settled. A missing record is a no-op,
// not an error: the transaction may have been purged while the settlement
// delay elapsed.
func (s *Store) MarkProcessed(ctx context.Context, transactionID string) error {
	query := `
		UPDATE transactions
		SET status = $1, processed_at = NOW()
		WHERE transaction_id = $2
	`

	_, err := s.db.ExecContext(ctx, query, transaction.StatusProcessed, transactionID)
	if err != nil {
		return fmt.Errorf("marking transaction processed: %w", err)
	}

	return nil
}

// ListStalled returns identifiers still in PROCESSING whose created_at is
// older than the cutoff. These are records whose settlement task was lost,
// typically to a restart between insert and delay expiry.
func (s *Store) ListStalled(ctx context.Context, olderThan time.Time) ([]string, error) {
	query := `
		SELECT transaction_id
		FROM transactions
		WHERE status = $1 AND created_at < $2
		ORDER BY created_at ASC
	`

	rows, err := s.db.QueryContext(ctx, query, transaction.StatusProcessing, olderThan)
	if err != nil {
		return nil, fmt.Errorf("listing stalled transactions: %w", err)
	}
	defer rows.Close()

	var ids []string

	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning transaction id: %w", err)
		}

		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating stalled rows: %w", err)
	}

	return ids, nil
}
