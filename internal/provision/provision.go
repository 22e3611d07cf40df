// Package provision creates a client contact under an account and links it
// to a project as the contact's main association.
package provision

import (
	"errors"
	"fmt"

	"github.com/taxilian/portal/internal/db"
	"github.com/taxilian/portal/internal/invite"
	"github.com/taxilian/portal/internal/model"
)

// Store is the data access provisioning needs. *db.DB, *db.Tx and
// *MemStore implement it.
type Store interface {
	FindProject(id int64) (*model.Project, error)
	FindAccount(id int64) (*model.Account, error)
	CreateContact(c *model.Contact) error
	CreateContactProject(l *model.ContactProject) error
}

// Request names the records to look up and the contact to create.
type Request struct {
	ProjectID int64
	AccountID int64
	Name      string
	Email     string

	// StrictEmail rejects malformed addresses once both lookups succeed.
	StrictEmail bool
}

// Result holds the looked-up and created records.
type Result struct {
	Project *model.Project
	Account *model.Account
	Contact *model.Contact
	Link    *model.ContactProject
}

// Run looks up the project and account, creates the contact and then the
// link, stopping at the first failure. Nothing is written when either
// lookup fails, and no link is written when the contact is rejected.
func Run(store Store, req Request) (*Result, error) {
	project, err := store.FindProject(req.ProjectID)
	if err != nil {
		return nil, err
	}
	account, err := store.FindAccount(req.AccountID)
	if err != nil {
		return nil, err
	}
	if req.StrictEmail && !invite.ValidateEmail(req.Email) {
		return nil, &model.ValidationError{Record: "contact", Field: "emails", Reason: "is not a valid address"}
	}

	contact := &model.Contact{
		AccountID: account.ID,
		Name:      req.Name,
		Emails:    []string{req.Email},
	}
	if err := store.CreateContact(contact); err != nil {
		return nil, err
	}

	link := &model.ContactProject{
		ProjectID: project.ID,
		ContactID: contact.ID,
		Main:      true,
		Role:      "",
	}
	if err := store.CreateContactProject(link); err != nil {
		return nil, err
	}

	return &Result{Project: project, Account: account, Contact: contact, Link: link}, nil
}

// RunInTx runs provisioning inside a single database transaction so a
// failed link insert leaves no orphan contact behind.
func RunInTx(database *db.DB, req Request) (*Result, error) {
	var result *Result
	err := database.InTx(func(tx *db.Tx) error {
		var err error
		result, err = Run(tx, req)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Kind classifies a provisioning failure.
type Kind int

const (
	KindNone Kind = iota
	KindNotFound
	KindValidation
	KindStorage
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindNotFound:
		return "not found"
	case KindValidation:
		return "validation failed"
	case KindStorage:
		return "storage error"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// KindOf reports which kind of failure err is.
func KindOf(err error) Kind {
	if err == nil {
		return KindNone
	}
	if errors.Is(err, db.ErrNotFound) {
		return KindNotFound
	}
	var verr *model.ValidationError
	if errors.As(err, &verr) {
		return KindValidation
	}
	return KindStorage
}

// Process exit codes for each failure kind.
const (
	ExitOK         = 0
	ExitNotFound   = 3
	ExitValidation = 4
	ExitStorage    = 5
)

// ExitCode maps err to a process exit code.
func ExitCode(err error) int {
	switch KindOf(err) {
	case KindNone:
		return ExitOK
	case KindNotFound:
		return ExitNotFound
	case KindValidation:
		return ExitValidation
	default:
		return ExitStorage
	}
}
