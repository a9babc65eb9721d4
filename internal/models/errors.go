package models

import "errors"

var (
	ErrLocationUnavailable  = errors.New("location unavailable")
	ErrInvalidTransition    = errors.New("invalid status transition")
	ErrUnknownCategory      = errors.New("unknown category")
	ErrProjectionWrite      = errors.New("projection write failed")
	ErrNotificationDispatch = errors.New("notification dispatch failed")
	ErrAlertNotFound        = errors.New("alert not found")
	ErrStaleVersion         = errors.New("alert was modified concurrently")
	ErrContactNotFound      = errors.New("contact not found")
)
