// Package database holds the engine's view of the external wallet,
// multiplier and penalty store. It is read-only except for penalty
// clearance and is never written mid-computation.
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/taskforge/rewards/internal/money"
	"github.com/taskforge/rewards/internal/settlement"
)

// Store is the sqlite-backed implementation of settlement.Store.
type Store struct {
	db       *sql.DB
	prepared map[string]*sql.Stmt
	mutex    sync.RWMutex
}

// NewStore opens (and migrates) the store under dataDir.
func NewStore(dataDir string) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "rewards.db")
	connStr := fmt.Sprintf("%s?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=foreign_keys(ON)&_pragma=busy_timeout(5000)", dbPath)

	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	store := &Store{
		db:       db,
		prepared: make(map[string]*sql.Stmt),
	}

	if err := store.migrate(); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	if err := store.initPreparedStatements(); err != nil {
		return nil, fmt.Errorf("failed to initialize prepared statements: %w", err)
	}

	slog.Info("Reward store initialized", "path", dbPath)
	return store, nil
}

func (s *Store) migrate() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS wallets (
			user_id INTEGER PRIMARY KEY,
			address TEXT NOT NULL,
			updated_at DATETIME NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS multipliers (
			user_id INTEGER NOT NULL,
			repo TEXT NOT NULL,
			value TEXT NOT NULL,
			reason TEXT,
			updated_at DATETIME NOT NULL,
			PRIMARY KEY (user_id, repo)
		)`,

		// Outstanding penalties are a single numeric amount keyed by
		// (user, repo, currency); clearance reduces the amount and deletes
		// the row once nothing remains.
		`CREATE TABLE IF NOT EXISTS penalties (
			user_id INTEGER NOT NULL,
			repo TEXT NOT NULL,
			currency TEXT NOT NULL,
			amount TEXT NOT NULL,
			updated_at DATETIME NOT NULL,
			PRIMARY KEY (user_id, repo, currency)
		)`,

		`CREATE INDEX IF NOT EXISTS idx_multipliers_repo ON multipliers(repo)`,
		`CREATE INDEX IF NOT EXISTS idx_penalties_repo ON penalties(repo)`,
	}

	for _, query := range queries {
		if _, err := s.db.Exec(query); err != nil {
			return fmt.Errorf("failed to execute migration: %w", err)
		}
	}

	return nil
}

func (s *Store) initPreparedStatements() error {
	statements := map[string]string{
		"get_wallet":     `SELECT address FROM wallets WHERE user_id = ?`,
		"get_multiplier": `SELECT value, reason FROM multipliers WHERE user_id = ? AND repo = ?`,
		"get_penalty":    `SELECT amount FROM penalties WHERE user_id = ? AND repo = ? AND currency = ?`,

		"upsert_wallet": `INSERT INTO wallets (user_id, address, updated_at) VALUES (?, ?, ?)
			ON CONFLICT(user_id) DO UPDATE SET address = excluded.address, updated_at = excluded.updated_at`,

		"update_penalty": `UPDATE penalties SET amount = ?, updated_at = ? WHERE user_id = ? AND repo = ? AND currency = ?`,
		"delete_penalty": `DELETE FROM penalties WHERE user_id = ? AND repo = ? AND currency = ?`,

		"upsert_penalty": `INSERT INTO penalties (user_id, repo, currency, amount, updated_at) VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(user_id, repo, currency) DO UPDATE SET amount = excluded.amount, updated_at = excluded.updated_at`,

		"upsert_multiplier": `INSERT INTO multipliers (user_id, repo, value, reason, updated_at) VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(user_id, repo) DO UPDATE SET value = excluded.value, reason = excluded.reason, updated_at = excluded.updated_at`,
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	for name, query := range statements {
		stmt, err := s.db.Prepare(query)
		if err != nil {
			return fmt.Errorf("failed to prepare statement %s: %w", name, err)
		}
		s.prepared[name] = stmt
	}

	return nil
}

func (s *Store) stmt(name string) *sql.Stmt {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.prepared[name]
}

// Wallet returns the payout address on file, or "" when there is none.
func (s *Store) Wallet(ctx context.Context, userID int64) (string, error) {
	var address string
	err := s.stmt("get_wallet").QueryRowContext(ctx, userID).Scan(&address)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("wallet lookup for user %d: %w", userID, err)
	}
	return address, nil
}

// Multiplier returns the per-user reward multiplier, or nil when none is
// configured.
func (s *Store) Multiplier(ctx context.Context, userID int64, repo string) (*settlement.Multiplier, error) {
	var value string
	var reason sql.NullString

	err := s.stmt("get_multiplier").QueryRowContext(ctx, userID, repo).Scan(&value, &reason)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("multiplier lookup for user %d: %w", userID, err)
	}

	dec, err := money.Parse(value)
	if err != nil {
		return nil, fmt.Errorf("stored multiplier for user %d is not a decimal: %w", userID, err)
	}

	return &settlement.Multiplier{Value: dec, Reason: reason.String}, nil
}

// Penalty returns the outstanding penalty amount, zero when none.
func (s *Store) Penalty(ctx context.Context, userID int64, repo, currency string) (money.Dec, error) {
	var amount string
	err := s.stmt("get_penalty").QueryRowContext(ctx, userID, repo, currency).Scan(&amount)
	if errors.Is(err, sql.ErrNoRows) {
		return money.Zero(), nil
	}
	if err != nil {
		return money.Zero(), fmt.Errorf("penalty lookup for user %d: %w", userID, err)
	}

	dec, err := money.Parse(amount)
	if err != nil {
		return money.Zero(), fmt.Errorf("stored penalty for user %d is not a decimal: %w", userID, err)
	}
	return dec, nil
}

// ClearPenalty reduces the outstanding penalty by the consumed amount.
// Fully consumed penalties are deleted rather than left as zero rows.
func (s *Store) ClearPenalty(ctx context.Context, userID int64, repo, currency string, consumed money.Dec) error {
	outstanding, err := s.Penalty(ctx, userID, repo, currency)
	if err != nil {
		return err
	}

	remaining := outstanding.Sub(consumed)
	if remaining.Sign() <= 0 {
		if _, err := s.stmt("delete_penalty").ExecContext(ctx, userID, repo, currency); err != nil {
			return fmt.Errorf("penalty clearance for user %d: %w", userID, err)
		}
		return nil
	}

	if _, err := s.stmt("update_penalty").ExecContext(ctx, remaining.String(), time.Now(), userID, repo, currency); err != nil {
		return fmt.Errorf("penalty reduction for user %d: %w", userID, err)
	}
	return nil
}

// SetWallet records a payout address. Used by provisioning, not the
// settlement pipeline.
func (s *Store) SetWallet(ctx context.Context, userID int64, address string) error {
	_, err := s.stmt("upsert_wallet").ExecContext(ctx, userID, address, time.Now())
	return err
}

// SetMultiplier records a per-user multiplier.
func (s *Store) SetMultiplier(ctx context.Context, userID int64, repo string, value money.Dec, reason string) error {
	_, err := s.stmt("upsert_multiplier").ExecContext(ctx, userID, repo, value.String(), reason, time.Now())
	return err
}

// SetPenalty records an outstanding penalty.
func (s *Store) SetPenalty(ctx context.Context, userID int64, repo, currency string, amount money.Dec) error {
	_, err := s.stmt("upsert_penalty").ExecContext(ctx, userID, repo, currency, amount.String(), time.Now())
	return err
}

// Close closes prepared statements and the underlying connection.
func (s *Store) Close() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	for name, stmt := range s.prepared {
		if err := stmt.Close(); err != nil {
			slog.Warn("Failed to close prepared statement", "name", name, "error", err)
		}
	}
	s.prepared = make(map[string]*sql.Stmt)

	return s.db.Close()
}
