package service_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shenikar/sos_alert_system/internal/config"
	"github.com/shenikar/sos_alert_system/internal/models"
	"github.com/shenikar/sos_alert_system/internal/service"
	"github.com/shenikar/sos_alert_system/internal/service/mocks"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type testDeps struct {
	store     *mocks.MockProjectionStore
	contacts  *mocks.MockContactRepository
	notifier  *mocks.MockNotifier
	provider  *mocks.MockLocationProvider
	publisher *mocks.MockChangePublisher
}

// newTestAlertService создает сервис с моками всех зависимостей
func newTestAlertService(t *testing.T) (service.AlertService, *testDeps) {
	ctrl := gomock.NewController(t)
	deps := &testDeps{
		store:     mocks.NewMockProjectionStore(ctrl),
		contacts:  mocks.NewMockContactRepository(ctrl),
		notifier:  mocks.NewMockNotifier(ctrl),
		provider:  mocks.NewMockLocationProvider(ctrl),
		publisher: mocks.NewMockChangePublisher(ctrl),
	}

	logger := logrus.New()
	logger.SetOutput(&bytes.Buffer{}) // Отключаем вывод логов в тестах

	cfg := &config.Config{
		FallbackLat:     14.5995,
		FallbackLng:     120.9842,
		LocationTimeout: 50 * time.Millisecond,
	}

	svc := service.NewAlertService(deps.store, deps.contacts, deps.notifier, logger, cfg,
		service.WithLocationProvider(deps.provider),
		service.WithChangePublisher(deps.publisher),
	)
	return svc, deps
}

var testReporter = models.Reporter{UserID: "u1", UserName: "Ana", UserPhone: "555"}

func TestCreateAlert_Success(t *testing.T) {
	// Подготовка
	svc, deps := newTestAlertService(t)
	ctx := context.Background()
	contacts := []*models.Contact{{ID: uuid.New(), ReporterID: "u1", Name: "Maria", Phone: "111"}}
	input := service.CreateAlertInput{
		CategoryID: models.CategoryMedical,
		Location:   &models.LocationFix{Lat: 10, Lng: 20},
		Reporter:   testReporter,
	}

	// Ожидания
	var recorded *models.Alert
	deps.store.EXPECT().Record(ctx, gomock.Any()).DoAndReturn(func(_ context.Context, a *models.Alert) error {
		recorded = a
		return nil
	}).Times(1)
	deps.publisher.EXPECT().Publish(ctx, gomock.Any()).Return(nil).Times(1)
	deps.contacts.EXPECT().ListContacts(ctx, "u1").Return(contacts, nil).Times(1)
	deps.notifier.EXPECT().Notify(ctx, contacts, gomock.Any()).Return(1).Times(1)

	// Действие
	creation, err := svc.CreateAlert(ctx, input)

	// Проверки
	require.NoError(t, err)
	assert.Empty(t, creation.Warnings)
	assert.Same(t, recorded, creation.Alert)
	assert.Equal(t, models.StatusActive, creation.Alert.Status)
	assert.Equal(t, "Medical Emergency", creation.Alert.Category)
	assert.Equal(t, models.Location{Lat: 10, Lng: 20}, creation.Alert.Location)
	assert.Equal(t, testReporter, creation.Alert.Reporter)
}

func TestCreateAlert_LocationErrorUsesFallback(t *testing.T) {
	svc, deps := newTestAlertService(t)
	ctx := context.Background()

	deps.store.EXPECT().Record(ctx, gomock.Any()).Return(nil).Times(1)
	deps.publisher.EXPECT().Publish(ctx, gomock.Any()).Return(nil).Times(1)
	deps.contacts.EXPECT().ListContacts(ctx, "u1").Return(nil, nil).Times(1)
	deps.notifier.EXPECT().Notify(ctx, gomock.Nil(), gomock.Any()).Return(0).Times(1)

	creation, err := svc.CreateAlert(ctx, service.CreateAlertInput{
		CategoryID:    models.CategoryFire,
		LocationError: "permission denied",
		Reporter:      testReporter,
	})

	require.NoError(t, err)
	assert.True(t, creation.HasLocationWarning())
	assert.Equal(t, models.FallbackLocation, creation.Alert.Location)
	assert.Equal(t, models.StatusActive, creation.Alert.Status)
}

func TestCreateAlert_ProviderTimeoutUsesFallback(t *testing.T) {
	svc, deps := newTestAlertService(t)
	ctx := context.Background()

	deps.provider.EXPECT().Current(gomock.Any()).DoAndReturn(func(ctx context.Context) (models.LocationFix, error) {
		<-ctx.Done()
		return models.LocationFix{}, ctx.Err()
	}).Times(1)
	deps.store.EXPECT().Record(ctx, gomock.Any()).Return(nil).Times(1)
	deps.publisher.EXPECT().Publish(ctx, gomock.Any()).Return(nil).Times(1)
	deps.contacts.EXPECT().ListContacts(ctx, "u1").Return(nil, nil).Times(1)
	deps.notifier.EXPECT().Notify(ctx, gomock.Any(), gomock.Any()).Return(0).Times(1)

	creation, err := svc.CreateAlert(ctx, service.CreateAlertInput{CategoryID: models.CategoryCrime, Reporter: testReporter})

	require.NoError(t, err)
	assert.True(t, creation.HasLocationWarning())
	assert.ErrorIs(t, creation.Warnings[0], context.DeadlineExceeded)
	assert.Equal(t, models.FallbackLocation, creation.Alert.Location)
}

func TestCreateAlert_ProviderFix(t *testing.T) {
	svc, deps := newTestAlertService(t)
	ctx := context.Background()

	deps.provider.EXPECT().Current(gomock.Any()).Return(models.LocationFix{Lat: 1.5, Lng: 2.5}, nil).Times(1)
	deps.store.EXPECT().Record(ctx, gomock.Any()).Return(nil).Times(1)
	deps.publisher.EXPECT().Publish(ctx, gomock.Any()).Return(nil).Times(1)
	deps.contacts.EXPECT().ListContacts(ctx, "u1").Return(nil, nil).Times(1)
	deps.notifier.EXPECT().Notify(ctx, gomock.Any(), gomock.Any()).Return(0).Times(1)

	creation, err := svc.CreateAlert(ctx, service.CreateAlertInput{CategoryID: models.CategoryAccident, Reporter: testReporter})

	require.NoError(t, err)
	assert.False(t, creation.HasLocationWarning())
	assert.Equal(t, models.Location{Lat: 1.5, Lng: 2.5}, creation.Alert.Location)
}

func TestCreateAlert_UnknownCategory(t *testing.T) {
	svc, deps := newTestAlertService(t)
	ctx := context.Background()

	deps.store.EXPECT().Record(gomock.Any(), gomock.Any()).Times(0)
	deps.notifier.EXPECT().Notify(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

	creation, err := svc.CreateAlert(ctx, service.CreateAlertInput{
		CategoryID: "volcano",
		Location:   &models.LocationFix{Lat: 1, Lng: 2},
		Reporter:   testReporter,
	})

	assert.ErrorIs(t, err, models.ErrUnknownCategory)
	assert.Nil(t, creation)
}

func TestCreateAlert_StoreError(t *testing.T) {
	svc, deps := newTestAlertService(t)
	ctx := context.Background()

	deps.store.EXPECT().Record(ctx, gomock.Any()).Return(errors.New("db down")).Times(1)
	deps.publisher.EXPECT().Publish(gomock.Any(), gomock.Any()).Times(0)
	deps.notifier.EXPECT().Notify(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

	creation, err := svc.CreateAlert(ctx, service.CreateAlertInput{
		CategoryID: models.CategoryHome,
		Location:   &models.LocationFix{Lat: 1, Lng: 2},
		Reporter:   testReporter,
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "db down")
	assert.Nil(t, creation)
}

func TestCreateAlert_PartialProjectionWriteIsWarning(t *testing.T) {
	svc, deps := newTestAlertService(t)
	ctx := context.Background()

	deps.store.EXPECT().Record(ctx, gomock.Any()).
		Return(fmt.Errorf("%w: cache unavailable", models.ErrProjectionWrite)).Times(1)
	deps.publisher.EXPECT().Publish(ctx, gomock.Any()).Return(nil).Times(1)
	deps.contacts.EXPECT().ListContacts(ctx, "u1").Return(nil, nil).Times(1)
	deps.notifier.EXPECT().Notify(ctx, gomock.Any(), gomock.Any()).Return(0).Times(1)

	creation, err := svc.CreateAlert(ctx, service.CreateAlertInput{
		CategoryID: models.CategoryDisaster,
		Location:   &models.LocationFix{Lat: 1, Lng: 2},
		Reporter:   testReporter,
	})

	require.NoError(t, err)
	require.Len(t, creation.Warnings, 1)
	assert.ErrorIs(t, creation.Warnings[0], models.ErrProjectionWrite)
}

func TestCreateAlert_ContactsErrorDoesNotFail(t *testing.T) {
	svc, deps := newTestAlertService(t)
	ctx := context.Background()

	deps.store.EXPECT().Record(ctx, gomock.Any()).Return(nil).Times(1)
	deps.publisher.EXPECT().Publish(ctx, gomock.Any()).Return(errors.New("redis down")).Times(1)
	deps.contacts.EXPECT().ListContacts(ctx, "u1").Return(nil, errors.New("db down")).Times(1)
	deps.notifier.EXPECT().Notify(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

	creation, err := svc.CreateAlert(ctx, service.CreateAlertInput{
		CategoryID: models.CategoryFire,
		Location:   &models.LocationFix{Lat: 1, Lng: 2},
		Reporter:   testReporter,
	})

	require.NoError(t, err)
	assert.NotNil(t, creation.Alert)
}

func TestCreateAlert_AnonymousReporterSkipsNotifications(t *testing.T) {
	svc, deps := newTestAlertService(t)
	ctx := context.Background()

	deps.store.EXPECT().Record(ctx, gomock.Any()).Return(nil).Times(1)
	deps.publisher.EXPECT().Publish(ctx, gomock.Any()).Return(nil).Times(1)
	deps.contacts.EXPECT().ListContacts(gomock.Any(), gomock.Any()).Times(0)

	creation, err := svc.CreateAlert(ctx, service.CreateAlertInput{
		CategoryID: models.CategoryFire,
		Location:   &models.LocationFix{Lat: 1, Lng: 2},
	})

	require.NoError(t, err)
	assert.Equal(t, models.Reporter{}, creation.Alert.Reporter)
}

func TestResolveAlert_Success(t *testing.T) {
	// Подготовка
	svc, deps := newTestAlertService(t)
	ctx := context.Background()
	id := uuid.New()
	resolved := &models.Alert{ID: id, Status: models.StatusResolved, Version: 2}

	// Ожидания
	deps.store.EXPECT().Apply(ctx, id, models.StatusResolved).Return(resolved, nil).Times(1)
	deps.publisher.EXPECT().Publish(ctx, id).Return(nil).Times(1)

	// Действие
	alert, err := svc.ResolveAlert(ctx, id)

	// Проверки
	require.NoError(t, err)
	assert.Equal(t, resolved, alert)
}

func TestCancelAlert_InvalidTransition(t *testing.T) {
	svc, deps := newTestAlertService(t)
	ctx := context.Background()
	id := uuid.New()

	deps.store.EXPECT().Apply(ctx, id, models.StatusCancelled).
		Return(nil, fmt.Errorf("%w: resolved -> cancelled", models.ErrInvalidTransition)).Times(1)
	deps.publisher.EXPECT().Publish(gomock.Any(), gomock.Any()).Times(0)

	alert, err := svc.CancelAlert(ctx, id)

	assert.ErrorIs(t, err, models.ErrInvalidTransition)
	assert.Nil(t, alert)
}

func TestCancelAlert_NotFound(t *testing.T) {
	svc, deps := newTestAlertService(t)
	ctx := context.Background()
	id := uuid.New()

	deps.store.EXPECT().Apply(ctx, id, models.StatusCancelled).Return(nil, models.ErrAlertNotFound).Times(1)

	_, err := svc.CancelAlert(ctx, id)

	assert.ErrorIs(t, err, models.ErrAlertNotFound)
}

func TestResolveAlert_StaleHistoryIsNotFailure(t *testing.T) {
	svc, deps := newTestAlertService(t)
	ctx := context.Background()
	id := uuid.New()
	resolved := &models.Alert{ID: id, Status: models.StatusResolved, Version: 2}

	deps.store.EXPECT().Apply(ctx, id, models.StatusResolved).
		Return(resolved, fmt.Errorf("%w: cache unavailable", models.ErrProjectionWrite)).Times(1)
	deps.publisher.EXPECT().Publish(ctx, id).Return(nil).Times(1)

	alert, err := svc.ResolveAlert(ctx, id)

	require.NoError(t, err)
	assert.Equal(t, models.StatusResolved, alert.Status)
}

func TestGetAlert(t *testing.T) {
	svc, deps := newTestAlertService(t)
	ctx := context.Background()
	id := uuid.New()

	deps.store.EXPECT().Get(ctx, id).Return(nil, models.ErrAlertNotFound).Times(1)

	_, err := svc.GetAlert(ctx, id)

	assert.ErrorIs(t, err, models.ErrAlertNotFound)
}

func TestListResponderQueue_StatusFilter(t *testing.T) {
	svc, deps := newTestAlertService(t)
	ctx := context.Background()
	queue := []*models.Alert{
		{ID: uuid.New(), Status: models.StatusActive},
		{ID: uuid.New(), Status: models.StatusCancelled},
		{ID: uuid.New(), Status: models.StatusActive},
	}

	deps.store.EXPECT().ListResponder(ctx).Return(queue, nil).Times(2)

	all, err := svc.ListResponderQueue(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 3)

	active, err := svc.ListResponderQueue(ctx, models.StatusActive)
	require.NoError(t, err)
	assert.Len(t, active, 2)
}

func TestListReporterHistory(t *testing.T) {
	svc, deps := newTestAlertService(t)
	ctx := context.Background()
	history := []*models.Alert{
		{ID: uuid.New(), Status: models.StatusResolved},
		{ID: uuid.New(), Status: models.StatusActive},
	}

	deps.store.EXPECT().ListReporter(ctx, "u1").Return(history, nil).Times(1)

	alerts, err := svc.ListReporterHistory(ctx, "u1", models.StatusResolved)

	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Equal(t, history[0].ID, alerts[0].ID)
}

func TestReconcileHistory_Error(t *testing.T) {
	svc, deps := newTestAlertService(t)
	ctx := context.Background()

	deps.store.EXPECT().Reconcile(ctx, "u1").Return(errors.New("db down")).Times(1)

	err := svc.ReconcileHistory(ctx, "u1")

	assert.Error(t, err)
}

func TestContacts(t *testing.T) {
	svc, deps := newTestAlertService(t)
	ctx := context.Background()
	contact := &models.Contact{ReporterID: "u1", Name: "Maria", Phone: "111"}
	id := uuid.New()

	deps.contacts.EXPECT().CreateContact(ctx, contact).Return(nil).Times(1)
	deps.contacts.EXPECT().ListContacts(ctx, "u1").Return([]*models.Contact{contact}, nil).Times(1)
	deps.contacts.EXPECT().DeleteContact(ctx, "u1", id).Return(models.ErrContactNotFound).Times(1)

	require.NoError(t, svc.AddContact(ctx, contact))
	listed, err := svc.ListContacts(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, listed, 1)
	assert.ErrorIs(t, svc.RemoveContact(ctx, "u1", id), models.ErrContactNotFound)
}

func TestUpdateContact(t *testing.T) {
	svc, deps := newTestAlertService(t)
	ctx := context.Background()
	contact := &models.Contact{ID: uuid.New(), ReporterID: "u1", Name: "Maria", Phone: "222"}

	deps.contacts.EXPECT().UpdateContact(ctx, contact).Return(nil).Times(1)
	deps.contacts.EXPECT().UpdateContact(ctx, contact).Return(models.ErrContactNotFound).Times(1)

	require.NoError(t, svc.UpdateContact(ctx, contact))
	assert.ErrorIs(t, svc.UpdateContact(ctx, contact), models.ErrContactNotFound)
}
