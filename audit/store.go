// Package audit persists the disposition of every authorization the
// facilitator has seen: one row per nonce, inserted idempotently on verify
// and moved monotonically to settled or failed on settle.
package audit

import (
	"context"
	"database/sql"
	"fmt"
	"math/big"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	upto "github.com/radiustechsystems/x402-upto"
)

// Store is a SQLite-backed audit log.
type Store struct {
	db *sql.DB
}

// Open opens (creating if necessary) the SQLite database at path and
// ensures the payments table and its indexes exist.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open audit db: %w", err)
	}
	// SQLite serializes writes at the connection level; a single connection
	// avoids SQLITE_BUSY under concurrent request handling.
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }

func (s *Store) migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS payments (
			id                TEXT PRIMARY KEY,
			payer             TEXT NOT NULL,
			recipient         TEXT NOT NULL,
			token             TEXT NOT NULL,
			authorized_amount TEXT NOT NULL,
			settled_amount    TEXT,
			nonce             TEXT NOT NULL UNIQUE,
			tx_hash           TEXT,
			status            TEXT NOT NULL,
			network           TEXT NOT NULL,
			created_at        INTEGER NOT NULL,
			settled_at        INTEGER
		);
		CREATE INDEX IF NOT EXISTS idx_payments_payer ON payments(payer);
		CREATE INDEX IF NOT EXISTS idx_payments_status ON payments(status);
		CREATE INDEX IF NOT EXISTS idx_payments_nonce ON payments(nonce);
	`)
	if err != nil {
		return fmt.Errorf("migrate audit db: %w", err)
	}
	return nil
}

// RecordVerified inserts a verified row for record.Nonce, ignoring the
// insert if a row for that nonce already exists. Repeated /verify calls for
// the same payload are therefore idempotent.
func (s *Store) RecordVerified(ctx context.Context, record upto.AuditRecord) error {
	record.ID = uuid.New().String()
	record.Status = upto.StatusVerified

	_, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO payments
			(id, payer, recipient, token, authorized_amount, nonce, status, network, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, record.ID, record.Payer, record.Recipient, record.Token, record.AuthorizedAmount,
		record.Nonce, string(record.Status), record.Network, record.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert verified row: %w", err)
	}
	return nil
}

// RecordSettled moves the row for nonce to settled, storing the settled
// amount and transaction hash. A row not already in verified state is left
// untouched: transitions are monotonic.
func (s *Store) RecordSettled(ctx context.Context, nonce, settledAmount, txHash string, settledAt int64) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE payments
		SET status = ?, settled_amount = ?, tx_hash = ?, settled_at = ?
		WHERE nonce = ? AND status = ?
	`, string(upto.StatusSettled), settledAmount, txHash, settledAt, nonce, string(upto.StatusVerified))
	if err != nil {
		return fmt.Errorf("update settled row: %w", err)
	}
	_, err = result.RowsAffected()
	return err
}

// RecordFailed moves the row for nonce to failed, storing the error message
// in settled_amount as an operational convenience.
func (s *Store) RecordFailed(ctx context.Context, nonce, errMessage string, settledAt int64) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE payments
		SET status = ?, settled_amount = ?, settled_at = ?
		WHERE nonce = ? AND status = ?
	`, string(upto.StatusFailed), errMessage, settledAt, nonce, string(upto.StatusVerified))
	if err != nil {
		return fmt.Errorf("update failed row: %w", err)
	}
	_, err = result.RowsAffected()
	return err
}

// Stats aggregates totals across every row, accumulating in big.Int rather
// than a SQL SUM to avoid integer overflow at high transaction volume.
func (s *Store) Stats(ctx context.Context) (*upto.StatsResponse, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT authorized_amount, settled_amount, status FROM payments
	`)
	if err != nil {
		return nil, fmt.Errorf("query stats: %w", err)
	}
	defer rows.Close()

	var totalPayments, settledPayments int64
	totalAuthorized := big.NewInt(0)
	totalSettled := big.NewInt(0)

	for rows.Next() {
		var authorizedAmount string
		var settledAmount sql.NullString
		var status string
		if err := rows.Scan(&authorizedAmount, &settledAmount, &status); err != nil {
			return nil, fmt.Errorf("scan stats row: %w", err)
		}
		totalPayments++

		if authorized, ok := new(big.Int).SetString(authorizedAmount, 10); ok {
			totalAuthorized.Add(totalAuthorized, authorized)
		}
		if status == string(upto.StatusSettled) {
			settledPayments++
			if settledAmount.Valid {
				if settled, ok := new(big.Int).SetString(settledAmount.String, 10); ok {
					totalSettled.Add(totalSettled, settled)
				}
			}
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate stats rows: %w", err)
	}

	savingsPercent := int64(0)
	if totalAuthorized.Sign() > 0 {
		// round(100 * (1 - totalSettled/totalAuthorized)), rounded half up
		diff := new(big.Int).Sub(totalAuthorized, totalSettled)
		scaled := new(big.Int).Mul(diff, big.NewInt(100))
		quotient, remainder := new(big.Int).QuoRem(scaled, totalAuthorized, new(big.Int))
		if new(big.Int).Mul(remainder, big.NewInt(2)).Cmp(totalAuthorized) >= 0 {
			quotient.Add(quotient, big.NewInt(1))
		}
		savingsPercent = quotient.Int64()
	}

	return &upto.StatsResponse{
		TotalPayments:   totalPayments,
		SettledPayments: settledPayments,
		TotalAuthorized: totalAuthorized.String(),
		TotalSettled:    totalSettled.String(),
		SavingsPercent:  savingsPercent,
	}, nil
}
