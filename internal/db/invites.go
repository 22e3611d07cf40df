package db

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/taxilian/portal/internal/model"
)

// CreateInvite stores an invite for a contact, setting inv.ID.
func (db *DB) CreateInvite(inv *model.Invite) error {
	return withRetryNoResult(func() error {
		return createInvite(db.DB, inv)
	})
}

// CreateInvite stores an invite within the transaction.
func (t *Tx) CreateInvite(inv *model.Invite) error {
	return createInvite(t.tx, inv)
}

func createInvite(q queryer, inv *model.Invite) error {
	if inv.ContactID <= 0 {
		return &model.ValidationError{Record: "invite", Field: "client_contact", Reason: "is required"}
	}
	if inv.TokenHash == "" {
		return &model.ValidationError{Record: "invite", Field: "token_hash", Reason: "is required"}
	}
	if inv.CreatedAt.IsZero() {
		inv.CreatedAt = time.Now()
	}
	res, err := q.Exec(`
		INSERT INTO portal_invites (client_contact_id, token_hash, created_at)
		VALUES (?, ?, ?)`,
		inv.ContactID, inv.TokenHash, sqlTime(inv.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to create invite: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read invite id: %w", err)
	}
	inv.ID = id
	return nil
}

// ListInvites returns every invite issued to a contact, newest first.
func (db *DB) ListInvites(contactID int64) ([]model.Invite, error) {
	rows, err := db.QueryRetry(`
		SELECT id, client_contact_id, token_hash, created_at, accepted_at
		FROM portal_invites
		WHERE client_contact_id = ?
		ORDER BY id DESC`, contactID)
	if err != nil {
		return nil, fmt.Errorf("failed to list invites: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var invites []model.Invite
	for rows.Next() {
		var inv model.Invite
		var accepted sql.NullTime
		if err := rows.Scan(&inv.ID, &inv.ContactID, &inv.TokenHash, &inv.CreatedAt, &accepted); err != nil {
			return nil, fmt.Errorf("failed to scan invite: %w", err)
		}
		if accepted.Valid {
			t := accepted.Time
			inv.AcceptedAt = &t
		}
		invites = append(invites, inv)
	}
	return invites, rows.Err()
}

// AcceptInvite marks an invite as redeemed. Accepting twice is an error.
func (db *DB) AcceptInvite(id int64, at time.Time) error {
	res, err := db.ExecRetry(`
		UPDATE portal_invites SET accepted_at = ?
		WHERE id = ? AND accepted_at IS NULL`, sqlTime(at), id)
	if err != nil {
		return fmt.Errorf("failed to accept invite: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to accept invite: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("open invite %d: %w", id, ErrNotFound)
	}
	return nil
}
