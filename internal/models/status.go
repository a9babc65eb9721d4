package models

import "fmt"

type AlertStatus string

const (
	StatusActive    AlertStatus = "active"
	StatusResolved  AlertStatus = "resolved"
	StatusCancelled AlertStatus = "cancelled"
)

// IsTerminal сообщает, что из статуса больше нет переходов
func (s AlertStatus) IsTerminal() bool {
	return s == StatusResolved || s == StatusCancelled
}

// ParseStatus разбирает статус из строки запроса
func ParseStatus(raw string) (AlertStatus, bool) {
	switch s := AlertStatus(raw); s {
	case StatusActive, StatusResolved, StatusCancelled:
		return s, true
	}
	return "", false
}

// Transition проверяет переход статуса и возвращает новый статус.
// Допустимы только active -> resolved и active -> cancelled.
func Transition(current, requested AlertStatus) (AlertStatus, error) {
	if current == StatusActive && (requested == StatusResolved || requested == StatusCancelled) {
		return requested, nil
	}
	return current, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, current, requested)
}
