package db

import (
	"fmt"
	"strings"
	"time"

	"github.com/taxilian/portal/internal/model"
)

// LinkFilter narrows ListContactProjects. Zero fields match everything.
type LinkFilter struct {
	ProjectID int64
	ContactID int64
}

// CreateContactProject validates and inserts a contact-project link, setting l.ID.
func (db *DB) CreateContactProject(l *model.ContactProject) error {
	return withRetryNoResult(func() error {
		return createContactProject(db.DB, l)
	})
}

// CreateContactProject validates and inserts a link within the transaction.
func (t *Tx) CreateContactProject(l *model.ContactProject) error {
	return createContactProject(t.tx, l)
}

func createContactProject(q queryer, l *model.ContactProject) error {
	if err := l.Validate(); err != nil {
		return err
	}
	if l.CreatedAt.IsZero() {
		l.CreatedAt = time.Now()
	}

	res, err := q.Exec(`
		INSERT INTO client_contacts_projects (project_id, client_contact_id, main, role, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		l.ProjectID, l.ContactID, l.Main, l.Role, sqlTime(l.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to link contact %d to project %d: %w", l.ContactID, l.ProjectID, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read link id: %w", err)
	}
	l.ID = id
	return nil
}

// ListContactProjects returns links matching the filter, oldest first.
func (db *DB) ListContactProjects(filter LinkFilter) ([]model.ContactProject, error) {
	query := `SELECT id, project_id, client_contact_id, main, role, created_at FROM client_contacts_projects`
	var conds []string
	var args []any
	if filter.ProjectID != 0 {
		conds = append(conds, "project_id = ?")
		args = append(args, filter.ProjectID)
	}
	if filter.ContactID != 0 {
		conds = append(conds, "client_contact_id = ?")
		args = append(args, filter.ContactID)
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY id"

	rows, err := db.QueryRetry(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list links: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var links []model.ContactProject
	for rows.Next() {
		var l model.ContactProject
		if err := rows.Scan(&l.ID, &l.ProjectID, &l.ContactID, &l.Main, &l.Role, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan link: %w", err)
		}
		links = append(links, l)
	}
	return links, rows.Err()
}
