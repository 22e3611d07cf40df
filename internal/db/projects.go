package db

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/taxilian/portal/internal/model"
)

// CreateProject inserts a project with a caller-chosen id.
func (db *DB) CreateProject(p *model.Project) error {
	if err := p.Validate(); err != nil {
		return err
	}
	now := time.Now()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now

	_, err := db.ExecRetry(`
		INSERT INTO projects (id, name, created_at, updated_at)
		VALUES (?, ?, ?, ?)`,
		p.ID, p.Name, sqlTime(p.CreatedAt), sqlTime(p.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to create project: %w", err)
	}
	return nil
}

// FindProject retrieves a project by id.
// Returns an error wrapping ErrNotFound if there is no such project.
func (db *DB) FindProject(id int64) (*model.Project, error) {
	return findProject(db.DB, id)
}

// FindProject retrieves a project by id within the transaction.
func (t *Tx) FindProject(id int64) (*model.Project, error) {
	return findProject(t.tx, id)
}

func findProject(q queryer, id int64) (*model.Project, error) {
	p := &model.Project{}
	err := q.QueryRow(`
		SELECT id, name, created_at, updated_at
		FROM projects WHERE id = ?`, id,
	).Scan(&p.ID, &p.Name, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("project %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get project %d: %w", id, err)
	}
	return p, nil
}

// ListProjects returns all projects ordered by id.
func (db *DB) ListProjects() ([]model.Project, error) {
	rows, err := db.QueryRetry(`SELECT id, name, created_at, updated_at FROM projects ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var projects []model.Project
	for rows.Next() {
		var p model.Project
		if err := rows.Scan(&p.ID, &p.Name, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan project: %w", err)
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}
