// Package ledger persists user accounts and star transactions in SQLite.
// The job orchestrator is the only writer for spend movements, and it debits
// strictly commit-on-success, so no overdraft handling lives here.
package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	log "github.com/sirupsen/logrus"

	"transbooks/internal/models"
)

const schema = `
CREATE TABLE IF NOT EXISTS users (
	requester_id INTEGER PRIMARY KEY,
	username     TEXT DEFAULT '',
	balance      INTEGER DEFAULT 0,
	format       TEXT DEFAULT 'md',
	created_at   TEXT DEFAULT (datetime('now'))
);
CREATE TABLE IF NOT EXISTS transactions (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	requester_id INTEGER NOT NULL,
	type         TEXT NOT NULL,
	amount       INTEGER NOT NULL,
	details      TEXT DEFAULT '',
	created_at   TEXT DEFAULT (datetime('now')),
	FOREIGN KEY (requester_id) REFERENCES users(requester_id)
);
`

// Store is the SQLite-backed account ledger.
type Store struct {
	db *sql.DB
}

// Open opens (creating if necessary) the ledger database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open ledger db: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init ledger schema: %w", err)
	}
	log.Infof("Ledger database initialized: %s", path)
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// GetOrCreate returns the user record, creating it with a zero balance on
// first contact. A changed username is written through.
func (s *Store) GetOrCreate(ctx context.Context, requesterID int64, username string) (*models.User, error) {
	u, err := s.get(ctx, requesterID)
	if err == nil {
		if username != "" && u.Username != username {
			if _, err := s.db.ExecContext(ctx,
				`UPDATE users SET username = ? WHERE requester_id = ?`, username, requesterID); err != nil {
				return nil, fmt.Errorf("update username: %w", err)
			}
			u.Username = username
		}
		return u, nil
	}
	if !errors.Is(err, models.ErrNotFound) {
		return nil, err
	}
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO users (requester_id, username) VALUES (?, ?)`, requesterID, username); err != nil {
		return nil, fmt.Errorf("create user %d: %w", requesterID, err)
	}
	return s.get(ctx, requesterID)
}

func (s *Store) get(ctx context.Context, requesterID int64) (*models.User, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT requester_id, username, balance, format, created_at FROM users WHERE requester_id = ?`, requesterID)
	var u models.User
	var createdAt string
	if err := row.Scan(&u.RequesterID, &u.Username, &u.Balance, &u.Format, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("get user %d: %w", requesterID, err)
	}
	return &u, nil
}

// Balance returns the current star balance; unknown users have zero.
func (s *Store) Balance(ctx context.Context, requesterID int64) (int64, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT balance FROM users WHERE requester_id = ?`, requesterID)
	var balance int64
	if err := row.Scan(&balance); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("get balance for %d: %w", requesterID, err)
	}
	return balance, nil
}

// Credit adds stars to a balance and records the movement. txType is
// TxTypeBuy or TxTypeGift. Returns the new balance.
func (s *Store) Credit(ctx context.Context, requesterID int64, amount int64, txType, details string) (int64, error) {
	if amount <= 0 {
		return 0, fmt.Errorf("%w: credit amount must be positive, got %d", models.ErrValidation, amount)
	}
	return s.move(ctx, requesterID, amount, txType, details)
}

// Debit removes stars from a balance and records a spend movement. The
// caller has already verified sufficiency; this is the at-most-once
// commit-on-success write. Returns the new balance.
func (s *Store) Debit(ctx context.Context, requesterID int64, amount int64, details string) (int64, error) {
	if amount <= 0 {
		return 0, fmt.Errorf("%w: debit amount must be positive, got %d", models.ErrValidation, amount)
	}
	return s.move(ctx, requesterID, -amount, models.TxTypeSpend, details)
}

func (s *Store) move(ctx context.Context, requesterID, delta int64, txType, details string) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin ledger tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`UPDATE users SET balance = balance + ? WHERE requester_id = ?`, delta, requesterID); err != nil {
		return 0, fmt.Errorf("update balance for %d: %w", requesterID, err)
	}
	amount := delta
	if amount < 0 {
		amount = -amount
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO transactions (requester_id, type, amount, details) VALUES (?, ?, ?, ?)`,
		requesterID, txType, amount, details); err != nil {
		return 0, fmt.Errorf("record transaction for %d: %w", requesterID, err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit ledger tx: %w", err)
	}
	return s.Balance(ctx, requesterID)
}

// SetFormat stores the user's preferred output format.
func (s *Store) SetFormat(ctx context.Context, requesterID int64, format string) error {
	if _, err := s.db.ExecContext(ctx,
		`UPDATE users SET format = ? WHERE requester_id = ?`, format, requesterID); err != nil {
		return fmt.Errorf("set format for %d: %w", requesterID, err)
	}
	return nil
}

// Format returns the user's preferred output format, defaulting to "md".
func (s *Store) Format(ctx context.Context, requesterID int64) (string, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT format FROM users WHERE requester_id = ?`, requesterID)
	var format string
	if err := row.Scan(&format); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "md", nil
		}
		return "", fmt.Errorf("get format for %d: %w", requesterID, err)
	}
	return format, nil
}

// Users lists all accounts, newest first.
func (s *Store) Users(ctx context.Context) ([]*models.User, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT requester_id, username, balance, format, created_at FROM users ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var out []*models.User
	for rows.Next() {
		var u models.User
		var createdAt string
		if err := rows.Scan(&u.RequesterID, &u.Username, &u.Balance, &u.Format, &createdAt); err != nil {
			return nil, fmt.Errorf("scan user row: %w", err)
		}
		out = append(out, &u)
	}
	return out, rows.Err()
}

// Stats aggregates ledger activity.
func (s *Store) Stats(ctx context.Context) (*models.LedgerStats, error) {
	var st models.LedgerStats
	queries := []struct {
		dst   *int64
		query string
	}{
		{&st.Users, `SELECT COUNT(*) FROM users`},
		{&st.Translations, `SELECT COUNT(*) FROM transactions WHERE type = 'spend'`},
		{&st.StarsBought, `SELECT COALESCE(SUM(amount), 0) FROM transactions WHERE type = 'buy'`},
		{&st.StarsSpent, `SELECT COALESCE(SUM(amount), 0) FROM transactions WHERE type = 'spend'`},
		{&st.StarsGifted, `SELECT COALESCE(SUM(amount), 0) FROM transactions WHERE type = 'gift'`},
	}
	for _, q := range queries {
		if err := s.db.QueryRowContext(ctx, q.query).Scan(q.dst); err != nil {
			return nil, fmt.Errorf("ledger stats: %w", err)
		}
	}
	return &st, nil
}
