package dashboard

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shenikar/sos_alert_system/internal/feed"
	"github.com/shenikar/sos_alert_system/internal/models"
	"github.com/shenikar/sos_alert_system/internal/repository"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(&bytes.Buffer{}) // Отключаем вывод логов в тестах
	return logger
}

func newTestAlert(status models.AlertStatus) *models.Alert {
	return &models.Alert{
		ID:         uuid.New(),
		CategoryID: models.CategoryFire,
		Category:   "Fire",
		Timestamp:  time.Now(),
		Location:   models.Location{Lat: 10, Lng: 20},
		Status:     status,
		Reporter:   models.Reporter{UserID: "u1"},
		Version:    1,
	}
}

// fakeTicker отдает тики только по команде теста
type fakeTicker struct {
	ch chan time.Time
}

func newFakeTicker() *fakeTicker {
	return &fakeTicker{ch: make(chan time.Time)}
}

func (f *fakeTicker) tick(time.Duration) (<-chan time.Time, func()) {
	return f.ch, func() {}
}

// fire отправляет два тика. Второй принимается только после завершения опроса по первому
func (f *fakeTicker) fire() {
	f.ch <- time.Now()
	f.ch <- time.Now()
}

func newTestPoller(t *testing.T, source Source, changes Subscriber) (*Poller, *fakeTicker) {
	ticker := newFakeTicker()
	p := NewPoller(source, changes, 5*time.Second, testLogger(), nil)
	p.tick = ticker.tick
	t.Cleanup(p.Stop)
	return p, ticker
}

func TestPoller_ObservesMutationOnlyAfterTick(t *testing.T) {
	// Подготовка
	store := repository.NewMemoryStore()
	t.Cleanup(store.Close)
	ctx := context.Background()
	p, ticker := newTestPoller(t, store, nil)

	// Действие: t=0 запуск и немедленный опрос, затем новая тревога
	p.Start(ctx)
	require.NoError(t, store.Record(ctx, newTestAlert(models.StatusActive)))

	// Проверки: до тика изменение не видно
	snap := p.Snapshot()
	assert.Equal(t, 0, snap.ActiveCount)
	assert.Equal(t, 1, snap.Polls)

	// t=5s: тик
	ticker.fire()
	snap = p.Snapshot()
	assert.Equal(t, 1, snap.ActiveCount)
	assert.Len(t, snap.Alerts, 1)
}

func TestPoller_RecomputesCounts(t *testing.T) {
	store := repository.NewMemoryStore()
	t.Cleanup(store.Close)
	ctx := context.Background()
	active := newTestAlert(models.StatusActive)
	resolved := newTestAlert(models.StatusActive)
	cancelled := newTestAlert(models.StatusActive)
	for _, a := range []*models.Alert{active, resolved, cancelled} {
		require.NoError(t, store.Record(ctx, a))
	}
	p, ticker := newTestPoller(t, store, nil)
	p.Start(ctx)
	assert.Equal(t, Counts{Active: 3, All: 3}, p.Snapshot().Counts)

	_, err := store.Apply(ctx, resolved.ID, models.StatusResolved)
	require.NoError(t, err)
	_, err = store.Apply(ctx, cancelled.ID, models.StatusCancelled)
	require.NoError(t, err)
	ticker.fire()

	snap := p.Snapshot()
	assert.Equal(t, Counts{Active: 1, Resolved: 1, Cancelled: 1, All: 3}, snap.Counts)
	assert.Equal(t, 1, snap.ActiveCount)
	require.Len(t, snap.Filter(models.StatusResolved), 1)
	assert.Equal(t, resolved.ID, snap.Filter(models.StatusResolved)[0].ID)
	assert.Len(t, snap.Filter(""), 3)
}

func TestPoller_StopHaltsPolling(t *testing.T) {
	store := repository.NewMemoryStore()
	t.Cleanup(store.Close)
	ctx := context.Background()
	p, ticker := newTestPoller(t, store, nil)

	p.Start(ctx)
	p.Stop()
	require.NoError(t, store.Record(ctx, newTestAlert(models.StatusActive)))

	select {
	case ticker.ch <- time.Now():
		t.Fatal("poller still running after Stop")
	case <-time.After(20 * time.Millisecond):
	}
	assert.Equal(t, 0, p.Snapshot().ActiveCount)
	assert.Equal(t, 1, p.Snapshot().Polls)
}

type failingSource struct {
	mu    sync.Mutex
	fail  bool
	items []*models.Alert
}

func (s *failingSource) ListResponder(context.Context) ([]*models.Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return nil, errors.New("db down")
	}
	return s.items, nil
}

func TestPoller_KeepsLastSnapshotOnError(t *testing.T) {
	source := &failingSource{items: []*models.Alert{newTestAlert(models.StatusActive)}}
	p, ticker := newTestPoller(t, source, nil)

	p.Start(context.Background())
	source.mu.Lock()
	source.fail = true
	source.mu.Unlock()
	ticker.fire()

	snap := p.Snapshot()
	assert.Equal(t, 1, snap.ActiveCount)
	assert.Equal(t, 1, snap.Polls)
}

func TestPoller_ChangeFeedTriggersEarlyPoll(t *testing.T) {
	store := repository.NewMemoryStore()
	t.Cleanup(store.Close)
	ctx := context.Background()
	changes := feed.NewLocalFeed()
	p, _ := newTestPoller(t, store, changes)

	p.Start(ctx)
	alert := newTestAlert(models.StatusActive)
	require.NoError(t, store.Record(ctx, alert))
	require.NoError(t, changes.Publish(ctx, alert.ID))

	assert.Eventually(t, func() bool {
		return p.Snapshot().ActiveCount == 1
	}, time.Second, 5*time.Millisecond)
}
