package provision

import (
	"fmt"
	"sync"
	"time"

	"github.com/taxilian/portal/internal/db"
	"github.com/taxilian/portal/internal/model"
)

// Compile-time checks that every backend satisfies Store.
var (
	_ Store = (*MemStore)(nil)
	_ Store = (*db.DB)(nil)
	_ Store = (*db.Tx)(nil)
)

// MemStore is an in-memory Store. It applies the same record validation
// as the SQLite store and hands out sequential ids.
type MemStore struct {
	mu       sync.Mutex
	projects map[int64]model.Project
	accounts map[int64]model.Account
	contacts []model.Contact
	links    []model.ContactProject

	// FailLinks makes CreateContactProject fail, for exercising rollback paths.
	FailLinks error
}

// NewMemStore returns an empty MemStore.
func NewMemStore() *MemStore {
	return &MemStore{
		projects: make(map[int64]model.Project),
		accounts: make(map[int64]model.Account),
	}
}

// AddProject seeds a project.
func (s *MemStore) AddProject(p model.Project) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.projects[p.ID] = p
}

// AddAccount seeds an account.
func (s *MemStore) AddAccount(a model.Account) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[a.ID] = a
}

func (s *MemStore) FindProject(id int64) (*model.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.projects[id]
	if !ok {
		return nil, fmt.Errorf("project %d: %w", id, db.ErrNotFound)
	}
	return &p, nil
}

func (s *MemStore) FindAccount(id int64) (*model.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[id]
	if !ok {
		return nil, fmt.Errorf("account %d: %w", id, db.ErrNotFound)
	}
	return &a, nil
}

func (s *MemStore) CreateContact(c *model.Contact) error {
	if err := c.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[c.AccountID]; !ok {
		return fmt.Errorf("failed to create contact: account %d does not exist", c.AccountID)
	}
	now := time.Now()
	c.ID = int64(len(s.contacts) + 1)
	c.CreatedAt, c.UpdatedAt = now, now
	stored := *c
	stored.Emails = append([]string(nil), c.Emails...)
	s.contacts = append(s.contacts, stored)
	return nil
}

func (s *MemStore) CreateContactProject(l *model.ContactProject) error {
	if err := l.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailLinks != nil {
		return s.FailLinks
	}
	l.ID = int64(len(s.links) + 1)
	l.CreatedAt = time.Now()
	s.links = append(s.links, *l)
	return nil
}

// Contacts returns a copy of the stored contacts.
func (s *MemStore) Contacts() []model.Contact {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.Contact(nil), s.contacts...)
}

// Links returns a copy of the stored links.
func (s *MemStore) Links() []model.ContactProject {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.ContactProject(nil), s.links...)
}

// Preview runs provisioning against an in-memory copy of the project and
// account src holds for req. Nothing is written to src.
func Preview(src Store, req Request) (*Result, error) {
	mem := NewMemStore()
	project, err := src.FindProject(req.ProjectID)
	if err != nil {
		return nil, err
	}
	mem.AddProject(*project)
	account, err := src.FindAccount(req.AccountID)
	if err != nil {
		return nil, err
	}
	mem.AddAccount(*account)
	return Run(mem, req)
}
