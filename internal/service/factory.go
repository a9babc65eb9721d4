package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shenikar/sos_alert_system/internal/models"
)

// Creation - результат сборки тревоги. Warnings содержит нефатальные ошибки (ErrLocationUnavailable)
type Creation struct {
	Alert    *models.Alert
	Warnings []error
}

// AlertFactory собирает новую тревогу из категории, геопозиции и профиля заявителя.
// Фабрика ничего не сохраняет, запись в проекции делает вызывающий код.
type AlertFactory struct {
	fallback models.Location
	now      func() time.Time
	newID    func() uuid.UUID
}

func NewAlertFactory(fallback models.Location) *AlertFactory {
	return &AlertFactory{
		fallback: fallback,
		now:      func() time.Time { return time.Now().UTC() },
		newID:    uuid.New,
	}
}

// Create создает тревогу в статусе active.
// Если fix отсутствует или fixErr != nil, подставляется резервная координата и добавляется предупреждение.
func (f *AlertFactory) Create(categoryID models.CategoryID, fix *models.LocationFix, fixErr error, reporter models.Reporter) (*Creation, error) {
	label, err := models.LookupCategory(categoryID)
	if err != nil {
		return nil, err
	}

	result := &Creation{}
	location := f.fallback
	switch {
	case fixErr != nil:
		result.Warnings = append(result.Warnings, fmt.Errorf("%w: %w", models.ErrLocationUnavailable, fixErr))
	case fix == nil:
		result.Warnings = append(result.Warnings, fmt.Errorf("%w: no location sample", models.ErrLocationUnavailable))
	default:
		location = models.Location{Lat: fix.Lat, Lng: fix.Lng}
	}

	result.Alert = &models.Alert{
		ID:         f.newID(),
		CategoryID: categoryID,
		Category:   label,
		Timestamp:  f.now(),
		Location:   location,
		Status:     models.StatusActive,
		Reporter:   reporter,
		Version:    1,
	}
	return result, nil
}

// HasLocationWarning сообщает, что тревога создана с резервной координатой
func (c *Creation) HasLocationWarning() bool {
	for _, w := range c.Warnings {
		if errors.Is(w, models.ErrLocationUnavailable) {
			return true
		}
	}
	return false
}
