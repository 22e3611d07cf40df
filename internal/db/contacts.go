package db

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/taxilian/portal/internal/model"
)

// ContactFilter narrows ListContacts. Zero fields match everything.
type ContactFilter struct {
	AccountID int64
	ProjectID int64 // Only contacts linked to this project
}

// CreateContact validates and inserts a contact, setting c.ID.
// No deduplication is done: identical contacts get distinct rows.
func (db *DB) CreateContact(c *model.Contact) error {
	return withRetryNoResult(func() error {
		return createContact(db.DB, c)
	})
}

// CreateContact validates and inserts a contact within the transaction.
func (t *Tx) CreateContact(c *model.Contact) error {
	return createContact(t.tx, c)
}

func createContact(q queryer, c *model.Contact) error {
	if err := c.Validate(); err != nil {
		return err
	}
	emails, err := json.Marshal(c.Emails)
	if err != nil {
		return fmt.Errorf("failed to encode emails: %w", err)
	}
	now := time.Now()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = now

	res, err := q.Exec(`
		INSERT INTO client_contacts (account_id, name, emails, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)`,
		c.AccountID, c.Name, string(emails), sqlTime(c.CreatedAt), sqlTime(c.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to create contact: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read contact id: %w", err)
	}
	c.ID = id
	return nil
}

const contactColumns = `c.id, c.account_id, c.name, c.emails, c.created_at, c.updated_at`

func scanContact(row interface{ Scan(...any) error }) (*model.Contact, error) {
	c := &model.Contact{}
	var emails string
	if err := row.Scan(&c.ID, &c.AccountID, &c.Name, &emails, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(emails), &c.Emails); err != nil {
		return nil, fmt.Errorf("contact %d has malformed emails: %w", c.ID, err)
	}
	return c, nil
}

// GetContact retrieves a contact by id.
func (db *DB) GetContact(id int64) (*model.Contact, error) {
	row := db.QueryRow(`SELECT `+contactColumns+` FROM client_contacts c WHERE c.id = ?`, id)
	c, err := scanContact(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("contact %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get contact %d: %w", id, err)
	}
	return c, nil
}

// ListContacts returns contacts matching the filter, oldest first.
func (db *DB) ListContacts(filter ContactFilter) ([]model.Contact, error) {
	query := `SELECT ` + contactColumns + ` FROM client_contacts c`
	var conds []string
	var args []any
	if filter.AccountID != 0 {
		conds = append(conds, "c.account_id = ?")
		args = append(args, filter.AccountID)
	}
	if filter.ProjectID != 0 {
		conds = append(conds, `EXISTS (
			SELECT 1 FROM client_contacts_projects l
			WHERE l.client_contact_id = c.id AND l.project_id = ?)`)
		args = append(args, filter.ProjectID)
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY c.id"

	rows, err := db.QueryRetry(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list contacts: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var contacts []model.Contact
	for rows.Next() {
		c, err := scanContact(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan contact: %w", err)
		}
		contacts = append(contacts, *c)
	}
	return contacts, rows.Err()
}

// CountContacts returns the number of contact rows.
func (db *DB) CountContacts() (int, error) {
	var n int
	if err := db.QueryRow(`SELECT COUNT(*) FROM client_contacts`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count contacts: %w", err)
	}
	return n, nil
}
