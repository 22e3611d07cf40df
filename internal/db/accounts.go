package db

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/taxilian/portal/internal/model"
)

// CreateAccount inserts a client account with a caller-chosen id.
func (db *DB) CreateAccount(a *model.Account) error {
	if err := a.Validate(); err != nil {
		return err
	}
	now := time.Now()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now
	}
	a.UpdatedAt = now

	_, err := db.ExecRetry(`
		INSERT INTO client_accounts (id, name, created_at, updated_at)
		VALUES (?, ?, ?, ?)`,
		a.ID, a.Name, sqlTime(a.CreatedAt), sqlTime(a.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to create account: %w", err)
	}
	return nil
}

// FindAccount retrieves a client account by id.
// Returns an error wrapping ErrNotFound if there is no such account.
func (db *DB) FindAccount(id int64) (*model.Account, error) {
	return findAccount(db.DB, id)
}

// FindAccount retrieves a client account by id within the transaction.
func (t *Tx) FindAccount(id int64) (*model.Account, error) {
	return findAccount(t.tx, id)
}

func findAccount(q queryer, id int64) (*model.Account, error) {
	a := &model.Account{}
	err := q.QueryRow(`
		SELECT id, name, created_at, updated_at
		FROM client_accounts WHERE id = ?`, id,
	).Scan(&a.ID, &a.Name, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("account %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account %d: %w", id, err)
	}
	return a, nil
}

// ListAccounts returns all client accounts ordered by id.
func (db *DB) ListAccounts() ([]model.Account, error) {
	rows, err := db.QueryRetry(`SELECT id, name, created_at, updated_at FROM client_accounts ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var accounts []model.Account
	for rows.Next() {
		var a model.Account
		if err := rows.Scan(&a.ID, &a.Name, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}
