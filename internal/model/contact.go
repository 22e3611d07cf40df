// Package model defines the core record types for client contact provisioning.
package model

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// Project is a unit of client work. Provisioning reads it, never mutates it.
type Project struct {
	ID        int64
	Name      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Account is a billing/ownership grouping for contacts.
type Account struct {
	ID        int64
	Name      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Contact is a person record belonging to an Account.
type Contact struct {
	ID        int64    // Assigned by the store on create
	AccountID int64    // Owning account
	Name      string   // Display name, free-form
	Emails    []string // At least one entry; format is not checked
	CreatedAt time.Time
	UpdatedAt time.Time
}

// PrimaryEmail returns the first email address, or "" if there is none.
func (c *Contact) PrimaryEmail() string {
	if len(c.Emails) == 0 {
		return ""
	}
	return c.Emails[0]
}

// ContactProject links a Contact to a Project.
type ContactProject struct {
	ID        int64
	ProjectID int64
	ContactID int64
	Main      bool   // Contact's primary association
	Role      string // Free-form role label, may be empty
	CreatedAt time.Time
}

// ValidationError reports a record that failed validation before it was written.
type ValidationError struct {
	Record string // "contact", "link", "project", "account"
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s %s", e.Record, e.Field, e.Reason)
}

func invalid(record, field, reason string) *ValidationError {
	return &ValidationError{Record: record, Field: field, Reason: reason}
}

// Validate checks the fields a project must carry.
func (p *Project) Validate() error {
	if p.ID <= 0 {
		return invalid("project", "id", "must be positive")
	}
	if strings.TrimSpace(p.Name) == "" {
		return invalid("project", "name", "is required")
	}
	return nil
}

// Validate checks the fields an account must carry.
func (a *Account) Validate() error {
	if a.ID <= 0 {
		return invalid("account", "id", "must be positive")
	}
	if strings.TrimSpace(a.Name) == "" {
		return invalid("account", "name", "is required")
	}
	return nil
}

// Validate checks a contact before insert.
// Email addresses only need to be non-blank UTF-8; format checks are opt-in.
func (c *Contact) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return invalid("contact", "name", "is required")
	}
	if !utf8.ValidString(c.Name) {
		return invalid("contact", "name", "is not valid UTF-8")
	}
	if c.AccountID <= 0 {
		return invalid("contact", "account", "is required")
	}
	if len(c.Emails) == 0 {
		return invalid("contact", "emails", "must contain at least one address")
	}
	for _, e := range c.Emails {
		if strings.TrimSpace(e) == "" {
			return invalid("contact", "emails", "must not contain blank addresses")
		}
		if !utf8.ValidString(e) {
			return invalid("contact", "emails", "must be valid UTF-8")
		}
	}
	return nil
}

// Validate checks a link before insert.
func (l *ContactProject) Validate() error {
	if l.ProjectID <= 0 {
		return invalid("link", "project", "is required")
	}
	if l.ContactID <= 0 {
		return invalid("link", "client_contact", "is required")
	}
	return nil
}
