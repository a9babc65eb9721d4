package models

import (
	"time"

	"github.com/google/uuid"
)

// Location - пара координат, фиксируется при создании тревоги
type Location struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Reporter - снимок профиля заявителя на момент создания тревоги
type Reporter struct {
	UserID    string `json:"userId"`
	UserName  string `json:"userName"`
	UserPhone string `json:"userPhone"`
}

type Alert struct {
	ID         uuid.UUID   `json:"id"`
	CategoryID CategoryID  `json:"categoryId"`
	Category   string      `json:"category"`
	Timestamp  time.Time   `json:"timestamp"`
	Location   Location    `json:"location"`
	Status     AlertStatus `json:"status"`
	Reporter   Reporter    `json:"reporter"`
	Version    int         `json:"version"`
}

// Clone возвращает независимую копию тревоги, проекции не должны делить указатели
func (a *Alert) Clone() *Alert {
	if a == nil {
		return nil
	}
	c := *a
	return &c
}

// EventType - тип события в журнале тревог
type EventType string

const (
	EventCreated   EventType = "created"
	EventResolved  EventType = "resolved"
	EventCancelled EventType = "cancelled"
)

// AlertEvent - запись append-only журнала, из которого строятся обе проекции
type AlertEvent struct {
	Seq        int64       `json:"seq"`
	AlertID    uuid.UUID   `json:"alert_id"`
	ReporterID string      `json:"reporter_id"`
	Type       EventType   `json:"type"`
	Status     AlertStatus `json:"status"`
	OccurredAt time.Time   `json:"occurred_at"`
}

// EventTypeFor возвращает тип события, соответствующий новому статусу
func EventTypeFor(status AlertStatus) EventType {
	switch status {
	case StatusResolved:
		return EventResolved
	case StatusCancelled:
		return EventCancelled
	default:
		return EventCreated
	}
}
