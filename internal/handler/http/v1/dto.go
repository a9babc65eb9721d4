package v1

import (
	"time"

	"github.com/google/uuid"
	"github.com/shenikar/sos_alert_system/internal/dashboard"
	"github.com/shenikar/sos_alert_system/internal/models"
)

// LocationRequest DTO координат, полученных клиентом
// @Description DTO координат, полученных клиентом
type LocationRequest struct {
	Lat      float64  `json:"lat" validate:"latitude"`
	Lng      float64  `json:"lng" validate:"longitude"`
	Accuracy *float64 `json:"accuracy,omitempty" validate:"omitempty,gte=0"`
}

// ReporterRequest DTO профиля заявителя на момент отправки тревоги
// @Description DTO профиля заявителя
type ReporterRequest struct {
	UserID    string `json:"userId" validate:"max=128"`
	UserName  string `json:"userName" validate:"max=255"`
	UserPhone string `json:"userPhone" validate:"max=64"`
}

// CreateAlertRequest DTO для создания тревоги.
// Если location и locationError не переданы, координаты берутся у провайдера сервера.
// @Description DTO для создания тревоги
type CreateAlertRequest struct {
	Category      string           `json:"category" validate:"required"`
	Location      *LocationRequest `json:"location,omitempty"`
	LocationError string           `json:"locationError,omitempty" validate:"max=512"`
	Reporter      ReporterRequest  `json:"reporter"`
}

// LocationResponse DTO координат тревоги
type LocationResponse struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// ReporterResponse DTO снимка профиля заявителя
type ReporterResponse struct {
	UserID    string `json:"userId"`
	UserName  string `json:"userName"`
	UserPhone string `json:"userPhone"`
}

// AlertResponse DTO для ответа с информацией о тревоге
// @Description DTO для ответа с информацией о тревоге
type AlertResponse struct {
	ID         uuid.UUID        `json:"id"`
	CategoryID string           `json:"categoryId"`
	Category   string           `json:"category"`
	Timestamp  time.Time        `json:"timestamp"`
	Location   LocationResponse `json:"location"`
	Status     string           `json:"status"`
	Reporter   ReporterResponse `json:"reporter"`
	Version    int              `json:"version"`
}

// CreateAlertResponse DTO ответа на создание тревоги с нефатальными предупреждениями
// @Description DTO ответа на создание тревоги
type CreateAlertResponse struct {
	Alert            *AlertResponse `json:"alert"`
	FallbackLocation bool           `json:"fallbackLocation"`
	Warnings         []string       `json:"warnings,omitempty"`
}

// CategoryResponse категория тревоги для панели заявителя
type CategoryResponse struct {
	ID    models.CategoryID `json:"id"`
	Label string            `json:"label"`
}

// ContactRequest DTO для создания экстренного контакта
// @Description DTO для создания экстренного контакта
type ContactRequest struct {
	Name         string `json:"name" validate:"required,min=1,max=255"`
	Phone        string `json:"phone" validate:"required,max=64"`
	Email        string `json:"email,omitempty" validate:"omitempty,email"`
	Relationship string `json:"relationship,omitempty" validate:"max=64"`
}

// ContactResponse DTO экстренного контакта
type ContactResponse struct {
	ID           uuid.UUID `json:"id"`
	Name         string    `json:"name"`
	Phone        string    `json:"phone"`
	Email        string    `json:"email,omitempty"`
	Relationship string    `json:"relationship,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

// SessionResponse DTO представления ответчика
// @Description DTO представления ответчика
type SessionResponse struct {
	SessionID   uuid.UUID        `json:"sessionId"`
	Alerts      []*AlertResponse `json:"alerts"`
	ActiveCount int              `json:"activeCount"`
	Counts      dashboard.Counts `json:"counts"`
	PolledAt    time.Time        `json:"polledAt"`
}
