package notification

//go:generate mockgen -source=fanout.go -destination=mocks/mock_fanout.go -package=mocks

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shenikar/sos_alert_system/internal/metrics"
	"github.com/shenikar/sos_alert_system/internal/models"
	"github.com/sirupsen/logrus"
)

// Summary - содержимое уведомления одному контакту
type Summary struct {
	AlertID      uuid.UUID         `json:"alert_id"`
	ContactName  string            `json:"contact_name"`
	ContactPhone string            `json:"contact_phone"`
	ContactEmail string            `json:"contact_email,omitempty"`
	CategoryID   models.CategoryID `json:"category_id"`
	Category     string            `json:"category"`
	Location     models.Location   `json:"location"`
	ReporterName string            `json:"reporter_name,omitempty"`
	Timestamp    time.Time         `json:"timestamp"`
}

// Channel - внешний канал доставки уведомлений
type Channel interface {
	Send(ctx context.Context, contact *models.Contact, summary Summary) error
}

// Fanout рассылает уведомление о тревоге каждому контакту заявителя.
// Доставка best-effort: без подтверждений и повторов, ошибка одного контакта не влияет на остальных.
type Fanout struct {
	channel Channel
	logger  *logrus.Logger
	metrics *metrics.Metrics
}

func NewFanout(channel Channel, logger *logrus.Logger, m *metrics.Metrics) *Fanout {
	return &Fanout{
		channel: channel,
		logger:  logger,
		metrics: m,
	}
}

// Notify возвращает число контактов, которым уведомление было передано в канал
func (f *Fanout) Notify(ctx context.Context, contacts []*models.Contact, alert *models.Alert) int {
	sent := 0
	for _, contact := range contacts {
		summary := NewSummary(contact, alert)
		if err := f.send(ctx, contact, summary); err != nil {
			f.logger.WithFields(logrus.Fields{
				"alert_id":   alert.ID,
				"contact_id": contact.ID,
			}).WithError(err).Warn("Failed to notify contact")
			f.metrics.Notification(false)
			continue
		}
		f.metrics.Notification(true)
		sent++
	}
	return sent
}

func (f *Fanout) send(ctx context.Context, contact *models.Contact, summary Summary) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: channel panic: %v", models.ErrNotificationDispatch, r)
		}
	}()
	if err := f.channel.Send(ctx, contact, summary); err != nil {
		return fmt.Errorf("%w: %v", models.ErrNotificationDispatch, err)
	}
	return nil
}

// NewSummary собирает уведомление для контакта
func NewSummary(contact *models.Contact, alert *models.Alert) Summary {
	return Summary{
		AlertID:      alert.ID,
		ContactName:  contact.Name,
		ContactPhone: contact.Phone,
		ContactEmail: contact.Email,
		CategoryID:   alert.CategoryID,
		Category:     alert.Category,
		Location:     alert.Location,
		ReporterName: alert.Reporter.UserName,
		Timestamp:    alert.Timestamp,
	}
}
