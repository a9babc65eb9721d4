package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shenikar/sos_alert_system/internal/models"
	"github.com/shenikar/sos_alert_system/internal/service"
)

type ContactRepository struct {
	db *pgxpool.Pool
}

func NewContactRepository(db *pgxpool.Pool) service.ContactRepository {
	return &ContactRepository{db: db}
}

// CreateContact создает запись о контакте в бд
func (r *ContactRepository) CreateContact(ctx context.Context, contact *models.Contact) error {
	query := `
		INSERT INTO contacts (reporter_id, name, phone, email, relationship)
		VALUES ($1, $2, $3, $4, $5) RETURNING id, created_at;
	`
	err := r.db.QueryRow(ctx, query,
		contact.ReporterID,
		contact.Name,
		contact.Phone,
		contact.Email,
		contact.Relationship,
	).Scan(&contact.ID, &contact.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create contact: %w", err)
	}
	return nil
}

// ListContacts возвращает контакты заявителя в порядке добавления
func (r *ContactRepository) ListContacts(ctx context.Context, reporterID string) ([]*models.Contact, error) {
	query := `
		SELECT id, reporter_id, name, phone, email, relationship, created_at
		FROM contacts
		WHERE reporter_id = $1
		ORDER BY created_at ASC;
	`
	rows, err := r.db.Query(ctx, query, reporterID)
	if err != nil {
		return nil, fmt.Errorf("failed to list contacts: %w", err)
	}
	defer rows.Close()

	contacts := make([]*models.Contact, 0)
	for rows.Next() {
		contact := &models.Contact{}
		err := rows.Scan(
			&contact.ID,
			&contact.ReporterID,
			&contact.Name,
			&contact.Phone,
			&contact.Email,
			&contact.Relationship,
			&contact.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan contact row: %w", err)
		}
		contacts = append(contacts, contact)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error list iteration: %w", err)
	}
	return contacts, nil
}

// UpdateContact перезаписывает поля контакта, принадлежащего заявителю
func (r *ContactRepository) UpdateContact(ctx context.Context, contact *models.Contact) error {
	query := `
		UPDATE contacts SET
			name = $1,
			phone = $2,
			email = $3,
			relationship = $4
		WHERE id = $5 AND reporter_id = $6
		RETURNING created_at;
	`
	err := r.db.QueryRow(ctx, query,
		contact.Name,
		contact.Phone,
		contact.Email,
		contact.Relationship,
		contact.ID,
		contact.ReporterID,
	).Scan(&contact.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("%w: %s", models.ErrContactNotFound, contact.ID)
		}
		return fmt.Errorf("failed to update contact: %w", err)
	}
	return nil
}

func (r *ContactRepository) DeleteContact(ctx context.Context, reporterID string, id uuid.UUID) error {
	cmdTag, err := r.db.Exec(ctx, `DELETE FROM contacts WHERE id = $1 AND reporter_id = $2;`, id, reporterID)
	if err != nil {
		return fmt.Errorf("failed to delete contact: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", models.ErrContactNotFound, id)
	}
	return nil
}
