package repository

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shenikar/sos_alert_system/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryContactRepository_CRUD(t *testing.T) {
	repo := NewMemoryContactRepository()
	ctx := context.Background()

	mom := &models.Contact{ReporterID: "u1", Name: "Maria", Phone: "111", Relationship: "mother"}
	friend := &models.Contact{ReporterID: "u1", Name: "Jose", Phone: "222"}
	require.NoError(t, repo.CreateContact(ctx, mom))
	require.NoError(t, repo.CreateContact(ctx, friend))
	assert.NotEqual(t, uuid.Nil, mom.ID)

	contacts, err := repo.ListContacts(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, contacts, 2)
	assert.Equal(t, "Maria", contacts[0].Name)

	require.NoError(t, repo.DeleteContact(ctx, "u1", mom.ID))
	contacts, err = repo.ListContacts(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, contacts, 1)
	assert.Equal(t, friend.ID, contacts[0].ID)
}

func TestMemoryContactRepository_DeleteUnknown(t *testing.T) {
	repo := NewMemoryContactRepository()

	err := repo.DeleteContact(context.Background(), "u1", uuid.New())

	assert.ErrorIs(t, err, models.ErrContactNotFound)
}

func TestMemoryContactRepository_OtherReporterIsolated(t *testing.T) {
	repo := NewMemoryContactRepository()
	ctx := context.Background()
	c := &models.Contact{ReporterID: "u1", Name: "Maria", Phone: "111"}
	require.NoError(t, repo.CreateContact(ctx, c))

	contacts, err := repo.ListContacts(ctx, "u2")
	require.NoError(t, err)
	assert.Empty(t, contacts)

	err = repo.DeleteContact(ctx, "u2", c.ID)
	assert.ErrorIs(t, err, models.ErrContactNotFound)
}

func TestMemoryContactRepository_Update(t *testing.T) {
	repo := NewMemoryContactRepository()
	ctx := context.Background()
	c := &models.Contact{ReporterID: "u1", Name: "Maria", Phone: "111"}
	require.NoError(t, repo.CreateContact(ctx, c))

	update := &models.Contact{ID: c.ID, ReporterID: "u1", Name: "Maria S.", Phone: "333", Email: "maria@example.com"}
	require.NoError(t, repo.UpdateContact(ctx, update))
	assert.Equal(t, c.CreatedAt, update.CreatedAt)

	contacts, err := repo.ListContacts(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, contacts, 1)
	assert.Equal(t, "Maria S.", contacts[0].Name)
	assert.Equal(t, "333", contacts[0].Phone)
	assert.Equal(t, "maria@example.com", contacts[0].Email)

	// Чужой заявитель не может изменить контакт
	foreign := &models.Contact{ID: c.ID, ReporterID: "u2", Name: "X", Phone: "0"}
	assert.ErrorIs(t, repo.UpdateContact(ctx, foreign), models.ErrContactNotFound)
}
