package notification

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/shenikar/sos_alert_system/internal/models"
	"github.com/sirupsen/logrus"
)

const (
	notificationQueueKey = "notification_events"
)

// LogChannel только пишет уведомление в лог
type LogChannel struct {
	logger *logrus.Logger
}

func NewLogChannel(logger *logrus.Logger) *LogChannel {
	return &LogChannel{logger: logger}
}

func (c *LogChannel) Send(_ context.Context, contact *models.Contact, summary Summary) error {
	c.logger.WithFields(logrus.Fields{
		"alert_id":      summary.AlertID,
		"contact_name":  contact.Name,
		"contact_phone": contact.Phone,
	}).Infof("Alert sent to %s (%s): %s emergency at location %f, %f",
		summary.ContactName, summary.ContactPhone, summary.Category, summary.Location.Lat, summary.Location.Lng)
	return nil
}

// Delivery - элемент очереди уведомлений в Redis
type Delivery struct {
	ContactID string  `json:"contact_id"`
	Summary   Summary `json:"summary"`
}

// QueueChannel публикует уведомления в очередь Redis, доставку выполняет Worker
type QueueChannel struct {
	redisClient *redis.Client
}

func NewQueueChannel(client *redis.Client) *QueueChannel {
	return &QueueChannel{redisClient: client}
}

func (c *QueueChannel) Send(ctx context.Context, contact *models.Contact, summary Summary) error {
	payload, err := json.Marshal(Delivery{ContactID: contact.ID.String(), Summary: summary})
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}

	// LPUSH в левую часть списка, Worker забирает справа
	if err := c.redisClient.LPush(ctx, notificationQueueKey, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish notification to Redis: %w", err)
	}
	return nil
}
