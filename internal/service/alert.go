package service

//go:generate mockgen -source=alert.go -destination=mocks/mock_alert.go -package=mocks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shenikar/sos_alert_system/internal/config"
	"github.com/shenikar/sos_alert_system/internal/metrics"
	"github.com/shenikar/sos_alert_system/internal/models"
	"github.com/sirupsen/logrus"
)

// ProjectionStore определяет контракт хранилища двух проекций тревог:
// истории заявителя и общей очереди ответчиков
type ProjectionStore interface {
	Record(ctx context.Context, alert *models.Alert) error
	Apply(ctx context.Context, id uuid.UUID, status models.AlertStatus) (*models.Alert, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Alert, error)
	ListReporter(ctx context.Context, reporterID string) ([]*models.Alert, error)
	ListResponder(ctx context.Context) ([]*models.Alert, error)
	Reconcile(ctx context.Context, reporterID string) error
}

// ContactRepository определяет контракт хранения экстренных контактов
type ContactRepository interface {
	CreateContact(ctx context.Context, contact *models.Contact) error
	ListContacts(ctx context.Context, reporterID string) ([]*models.Contact, error)
	UpdateContact(ctx context.Context, contact *models.Contact) error
	DeleteContact(ctx context.Context, reporterID string, id uuid.UUID) error
}

// LocationProvider отдает текущие координаты устройства
type LocationProvider interface {
	Current(ctx context.Context) (models.LocationFix, error)
}

// Notifier рассылает уведомления контактам заявителя, ошибки не возвращаются
type Notifier interface {
	Notify(ctx context.Context, contacts []*models.Contact, alert *models.Alert) int
}

// ChangePublisher сообщает подписчикам об изменении очереди
type ChangePublisher interface {
	Publish(ctx context.Context, alertID uuid.UUID) error
}

// CreateAlertInput - данные для создания тревоги.
// Если Location и LocationError пусты, координаты запрашиваются у LocationProvider.
type CreateAlertInput struct {
	CategoryID    models.CategoryID
	Location      *models.LocationFix
	LocationError string
	Reporter      models.Reporter
}

// AlertService определяет контракт бизнес-логики жизненного цикла тревог
type AlertService interface {
	CreateAlert(ctx context.Context, input CreateAlertInput) (*Creation, error)
	GetAlert(ctx context.Context, id uuid.UUID) (*models.Alert, error)
	ResolveAlert(ctx context.Context, id uuid.UUID) (*models.Alert, error)
	CancelAlert(ctx context.Context, id uuid.UUID) (*models.Alert, error)
	ListResponderQueue(ctx context.Context, status models.AlertStatus) ([]*models.Alert, error)
	ListReporterHistory(ctx context.Context, reporterID string, status models.AlertStatus) ([]*models.Alert, error)
	ReconcileHistory(ctx context.Context, reporterID string) error
	AddContact(ctx context.Context, contact *models.Contact) error
	ListContacts(ctx context.Context, reporterID string) ([]*models.Contact, error)
	UpdateContact(ctx context.Context, contact *models.Contact) error
	RemoveContact(ctx context.Context, reporterID string, id uuid.UUID) error
}

type alertService struct {
	store    ProjectionStore
	contacts ContactRepository
	notifier Notifier
	factory  *AlertFactory
	provider LocationProvider
	changes  ChangePublisher
	metrics  *metrics.Metrics
	logger   *logrus.Logger
	cfg      *config.Config
}

// Option настраивает необязательные зависимости сервиса
type Option func(*alertService)

func WithLocationProvider(p LocationProvider) Option {
	return func(s *alertService) { s.provider = p }
}

func WithChangePublisher(p ChangePublisher) Option {
	return func(s *alertService) { s.changes = p }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *alertService) { s.metrics = m }
}

func WithFactory(f *AlertFactory) Option {
	return func(s *alertService) { s.factory = f }
}

func NewAlertService(store ProjectionStore, contacts ContactRepository, notifier Notifier, logger *logrus.Logger, cfg *config.Config, opts ...Option) AlertService {
	s := &alertService{
		store:    store,
		contacts: contacts,
		notifier: notifier,
		factory:  NewAlertFactory(models.Location{Lat: cfg.FallbackLat, Lng: cfg.FallbackLng}),
		logger:   logger,
		cfg:      cfg,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateAlert создает тревогу, записывает ее в проекции и оповещает контакты
func (s *alertService) CreateAlert(ctx context.Context, input CreateAlertInput) (*Creation, error) {
	log := s.logger.WithFields(logrus.Fields{
		"service":     "alert",
		"method":      "CreateAlert",
		"category":    input.CategoryID,
		"reporter_id": input.Reporter.UserID,
	})
	log.Info("Attempting to create a new alert")

	fix, fixErr := s.resolveLocation(ctx, input)
	creation, err := s.factory.Create(input.CategoryID, fix, fixErr, input.Reporter)
	if err != nil {
		log.WithError(err).Warn("Rejected alert with unknown category")
		return nil, fmt.Errorf("service: could not create alert: %w", err)
	}
	alert := creation.Alert
	log = log.WithField("alert_id", alert.ID)
	if creation.HasLocationWarning() {
		log.WithField("warnings", len(creation.Warnings)).Warn("Alert created with fallback location")
	}

	if err := s.store.Record(ctx, alert); err != nil {
		if !errors.Is(err, models.ErrProjectionWrite) {
			log.WithError(err).Error("Failed to record alert in store")
			return nil, fmt.Errorf("service: could not record alert: %w", err)
		}
		// Очередь ответчиков записана, история заявителя устарела до сверки
		log.WithError(err).Warn("Reporter history is stale after partial write")
		creation.Warnings = append(creation.Warnings, err)
	}
	s.metrics.AlertCreated(string(alert.CategoryID))
	s.publishChange(ctx, log, alert.ID)

	sent := s.notifyContacts(ctx, log, alert)
	log.WithField("notified", sent).Info("Alert created successfully")
	return creation, nil
}

func (s *alertService) resolveLocation(ctx context.Context, input CreateAlertInput) (*models.LocationFix, error) {
	if input.LocationError != "" {
		return nil, errors.New(input.LocationError)
	}
	if input.Location != nil {
		return input.Location, nil
	}
	if s.provider == nil {
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(ctx, s.locationTimeout())
	defer cancel()
	fix, err := s.provider.Current(ctx)
	if err != nil {
		return nil, err
	}
	return &fix, nil
}

func (s *alertService) locationTimeout() time.Duration {
	if s.cfg.LocationTimeout > 0 {
		return s.cfg.LocationTimeout
	}
	return 10 * time.Second
}

func (s *alertService) notifyContacts(ctx context.Context, log *logrus.Entry, alert *models.Alert) int {
	if s.notifier == nil || alert.Reporter.UserID == "" {
		return 0
	}
	contacts, err := s.contacts.ListContacts(ctx, alert.Reporter.UserID)
	if err != nil {
		log.WithError(err).Warn("Failed to load contacts, skipping notifications")
		return 0
	}
	return s.notifier.Notify(ctx, contacts, alert)
}

func (s *alertService) publishChange(ctx context.Context, log *logrus.Entry, id uuid.UUID) {
	if s.changes == nil {
		return
	}
	if err := s.changes.Publish(ctx, id); err != nil {
		log.WithError(err).Warn("Failed to publish alert change")
	}
}

// GetAlert получает тревогу по ID
func (s *alertService) GetAlert(ctx context.Context, id uuid.UUID) (*models.Alert, error) {
	log := s.logger.WithFields(logrus.Fields{
		"service":  "alert",
		"method":   "GetAlert",
		"alert_id": id,
	})
	log.Debug("Fetching alert by ID")

	alert, err := s.store.Get(ctx, id)
	if err != nil {
		log.WithError(err).Warn("Failed to get alert from store")
		return nil, fmt.Errorf("service: could not get alert: %w", err)
	}
	return alert, nil
}

// ResolveAlert переводит тревогу в статус resolved
func (s *alertService) ResolveAlert(ctx context.Context, id uuid.UUID) (*models.Alert, error) {
	return s.applyStatus(ctx, id, models.StatusResolved)
}

// CancelAlert переводит тревогу в статус cancelled
func (s *alertService) CancelAlert(ctx context.Context, id uuid.UUID) (*models.Alert, error) {
	return s.applyStatus(ctx, id, models.StatusCancelled)
}

func (s *alertService) applyStatus(ctx context.Context, id uuid.UUID, status models.AlertStatus) (*models.Alert, error) {
	log := s.logger.WithFields(logrus.Fields{
		"service":  "alert",
		"method":   "applyStatus",
		"alert_id": id,
		"status":   status,
	})
	log.Info("Attempting to change alert status")

	alert, err := s.store.Apply(ctx, id, status)
	if err != nil {
		if alert != nil && errors.Is(err, models.ErrProjectionWrite) {
			log.WithError(err).Warn("Status applied, reporter history is stale")
		} else {
			s.metrics.Transition(string(status), false)
			if errors.Is(err, models.ErrInvalidTransition) || errors.Is(err, models.ErrAlertNotFound) {
				log.WithError(err).Warn("Status change rejected")
			} else {
				log.WithError(err).Error("Failed to apply status in store")
			}
			return nil, fmt.Errorf("service: could not change alert status: %w", err)
		}
	}

	s.metrics.Transition(string(status), true)
	s.publishChange(ctx, log, id)
	log.Info("Alert status changed successfully")
	return alert, nil
}

// ListResponderQueue возвращает снимок очереди ответчиков, пустой status означает все тревоги
func (s *alertService) ListResponderQueue(ctx context.Context, status models.AlertStatus) ([]*models.Alert, error) {
	log := s.logger.WithFields(logrus.Fields{
		"service": "alert",
		"method":  "ListResponderQueue",
		"status":  status,
	})

	alerts, err := s.store.ListResponder(ctx)
	if err != nil {
		log.WithError(err).Error("Failed to list responder queue")
		return nil, fmt.Errorf("service: could not list responder queue: %w", err)
	}
	return filterByStatus(alerts, status), nil
}

// ListReporterHistory возвращает историю тревог заявителя, новые первыми
func (s *alertService) ListReporterHistory(ctx context.Context, reporterID string, status models.AlertStatus) ([]*models.Alert, error) {
	log := s.logger.WithFields(logrus.Fields{
		"service":     "alert",
		"method":      "ListReporterHistory",
		"reporter_id": reporterID,
		"status":      status,
	})

	alerts, err := s.store.ListReporter(ctx, reporterID)
	if err != nil {
		log.WithError(err).Error("Failed to list reporter history")
		return nil, fmt.Errorf("service: could not list reporter history: %w", err)
	}
	return filterByStatus(alerts, status), nil
}

// ReconcileHistory перестраивает историю заявителя по очереди ответчиков
func (s *alertService) ReconcileHistory(ctx context.Context, reporterID string) error {
	log := s.logger.WithFields(logrus.Fields{
		"service":     "alert",
		"method":      "ReconcileHistory",
		"reporter_id": reporterID,
	})
	log.Info("Reconciling reporter history")

	if err := s.store.Reconcile(ctx, reporterID); err != nil {
		log.WithError(err).Error("Failed to reconcile reporter history")
		return fmt.Errorf("service: could not reconcile history: %w", err)
	}
	log.Info("Reporter history reconciled")
	return nil
}

// AddContact сохраняет экстренный контакт заявителя
func (s *alertService) AddContact(ctx context.Context, contact *models.Contact) error {
	log := s.logger.WithFields(logrus.Fields{
		"service":     "alert",
		"method":      "AddContact",
		"reporter_id": contact.ReporterID,
	})

	if err := s.contacts.CreateContact(ctx, contact); err != nil {
		log.WithError(err).Error("Failed to create contact")
		return fmt.Errorf("service: could not create contact: %w", err)
	}
	log.WithField("contact_id", contact.ID).Info("Contact created")
	return nil
}

func (s *alertService) ListContacts(ctx context.Context, reporterID string) ([]*models.Contact, error) {
	contacts, err := s.contacts.ListContacts(ctx, reporterID)
	if err != nil {
		s.logger.WithError(err).WithField("reporter_id", reporterID).Error("Failed to list contacts")
		return nil, fmt.Errorf("service: could not list contacts: %w", err)
	}
	return contacts, nil
}

// UpdateContact изменяет контакт заявителя, id и reporterId не меняются
func (s *alertService) UpdateContact(ctx context.Context, contact *models.Contact) error {
	log := s.logger.WithFields(logrus.Fields{
		"service":     "alert",
		"method":      "UpdateContact",
		"reporter_id": contact.ReporterID,
		"contact_id":  contact.ID,
	})

	if err := s.contacts.UpdateContact(ctx, contact); err != nil {
		log.WithError(err).Warn("Failed to update contact")
		return fmt.Errorf("service: could not update contact: %w", err)
	}
	log.Info("Contact updated")
	return nil
}

func (s *alertService) RemoveContact(ctx context.Context, reporterID string, id uuid.UUID) error {
	if err := s.contacts.DeleteContact(ctx, reporterID, id); err != nil {
		s.logger.WithError(err).WithField("contact_id", id).Warn("Failed to delete contact")
		return fmt.Errorf("service: could not delete contact: %w", err)
	}
	return nil
}

func filterByStatus(alerts []*models.Alert, status models.AlertStatus) []*models.Alert {
	if status == "" {
		return alerts
	}
	filtered := make([]*models.Alert, 0, len(alerts))
	for _, a := range alerts {
		if a.Status == status {
			filtered = append(filtered, a)
		}
	}
	return filtered
}
