package repository

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shenikar/sos_alert_system/internal/models"
	"github.com/shenikar/sos_alert_system/internal/service"
)

// MemoryContactRepository хранит контакты в памяти процесса
type MemoryContactRepository struct {
	mu       sync.RWMutex
	contacts map[string][]*models.Contact
}

func NewMemoryContactRepository() *MemoryContactRepository {
	return &MemoryContactRepository{contacts: make(map[string][]*models.Contact)}
}

var _ service.ContactRepository = (*MemoryContactRepository)(nil)

func (r *MemoryContactRepository) CreateContact(_ context.Context, contact *models.Contact) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	contact.ID = uuid.New()
	contact.CreatedAt = time.Now().UTC()
	c := *contact
	r.contacts[contact.ReporterID] = append(r.contacts[contact.ReporterID], &c)
	return nil
}

func (r *MemoryContactRepository) ListContacts(_ context.Context, reporterID string) ([]*models.Contact, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*models.Contact, 0, len(r.contacts[reporterID]))
	for _, c := range r.contacts[reporterID] {
		cp := *c
		out = append(out, &cp)
	}
	return out, nil
}

func (r *MemoryContactRepository) UpdateContact(_ context.Context, contact *models.Contact) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, c := range r.contacts[contact.ReporterID] {
		if c.ID == contact.ID {
			c.Name = contact.Name
			c.Phone = contact.Phone
			c.Email = contact.Email
			c.Relationship = contact.Relationship
			contact.CreatedAt = c.CreatedAt
			return nil
		}
	}
	return fmt.Errorf("%w: %s", models.ErrContactNotFound, contact.ID)
}

func (r *MemoryContactRepository) DeleteContact(_ context.Context, reporterID string, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	list := r.contacts[reporterID]
	for i, c := range list {
		if c.ID == id {
			r.contacts[reporterID] = append(list[:i:i], list[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("%w: %s", models.ErrContactNotFound, id)
}
