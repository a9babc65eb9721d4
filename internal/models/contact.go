package models

import (
	"time"

	"github.com/google/uuid"
)

// Contact - экстренный контакт заявителя, используется только для рассылки
type Contact struct {
	ID           uuid.UUID `json:"id"`
	ReporterID   string    `json:"reporter_id"`
	Name         string    `json:"name"`
	Phone        string    `json:"phone"`
	Email        string    `json:"email"`
	Relationship string    `json:"relationship"`
	CreatedAt    time.Time `json:"created_at"`
}
