package repository

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/redis/go-redis/v9"
	"github.com/shenikar/sos_alert_system/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var alertRowColumns = []string{
	"id", "category_id", "category", "latitude", "longitude", "status",
	"reporter_id", "reporter_name", "reporter_phone", "version", "created_at",
}

const (
	selectForUpdate = `SELECT .* FROM alerts WHERE id = \$1 FOR UPDATE`
	selectHistory   = `SELECT .* FROM alerts WHERE reporter_id = \$1 ORDER BY created_at DESC`
)

type repoEnv struct {
	repo  *AlertRepository
	db    pgxmock.PgxPoolIface
	redis *miniredis.Miniredis
}

func newTestAlertRepository(t *testing.T) *repoEnv {
	db, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(db.Close)

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })

	repo := NewAlertRepository(db, client, 5*time.Minute).(*AlertRepository)
	return &repoEnv{repo: repo, db: db, redis: mr}
}

func alertRows(alerts ...*models.Alert) *pgxmock.Rows {
	rows := pgxmock.NewRows(alertRowColumns)
	for _, a := range alerts {
		rows.AddRow(
			a.ID, a.CategoryID, a.Category, a.Location.Lat, a.Location.Lng, a.Status,
			a.Reporter.UserID, a.Reporter.UserName, a.Reporter.UserPhone, a.Version, a.Timestamp,
		)
	}
	return rows
}

func cachedHistory(t *testing.T, mr *miniredis.Miniredis, reporterID string) []*models.Alert {
	raw, err := mr.Get(historyKey(reporterID))
	if err != nil {
		return nil
	}
	var alerts []*models.Alert
	require.NoError(t, json.Unmarshal([]byte(raw), &alerts))
	return alerts
}

func TestAlertRepository_ApplyResolves(t *testing.T) {
	// Подготовка
	env := newTestAlertRepository(t)
	ctx := context.Background()
	alert := newTestAlert("u1", models.CategoryFire, time.Now().UTC())

	env.db.ExpectBegin()
	env.db.ExpectQuery(selectForUpdate).WithArgs(alert.ID).WillReturnRows(alertRows(alert))
	env.db.ExpectExec(`UPDATE alerts SET`).
		WithArgs(models.StatusResolved, alert.ID, 1).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	env.db.ExpectExec(`INSERT INTO alert_events`).
		WithArgs(alert.ID, "u1", models.EventTypeFor(models.StatusResolved), models.StatusResolved).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	env.db.ExpectCommit()

	// Действие
	updated, err := env.repo.Apply(ctx, alert.ID, models.StatusResolved)

	// Проверки
	require.NoError(t, err)
	assert.Equal(t, models.StatusResolved, updated.Status)
	assert.Equal(t, 2, updated.Version)
	assert.NoError(t, env.db.ExpectationsWereMet())
}

func TestAlertRepository_ApplyStaleVersion(t *testing.T) {
	env := newTestAlertRepository(t)
	alert := newTestAlert("u1", models.CategoryFire, time.Now().UTC())

	env.db.ExpectBegin()
	env.db.ExpectQuery(selectForUpdate).WithArgs(alert.ID).WillReturnRows(alertRows(alert))
	env.db.ExpectExec(`UPDATE alerts SET`).
		WithArgs(models.StatusResolved, alert.ID, 1).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	env.db.ExpectRollback()

	updated, err := env.repo.Apply(context.Background(), alert.ID, models.StatusResolved)

	assert.ErrorIs(t, err, models.ErrStaleVersion)
	assert.Nil(t, updated)
	assert.NoError(t, env.db.ExpectationsWereMet())
}

// Второй Apply видит уже зафиксированный статус после снятия блокировки строки
func TestAlertRepository_ApplyAfterConcurrentWinnerIsInvalidTransition(t *testing.T) {
	env := newTestAlertRepository(t)
	alert := newTestAlert("u1", models.CategoryFire, time.Now().UTC())
	alert.Status = models.StatusResolved
	alert.Version = 2

	env.db.ExpectBegin()
	env.db.ExpectQuery(selectForUpdate).WithArgs(alert.ID).WillReturnRows(alertRows(alert))
	env.db.ExpectRollback()

	_, err := env.repo.Apply(context.Background(), alert.ID, models.StatusCancelled)

	assert.ErrorIs(t, err, models.ErrInvalidTransition)
	assert.NoError(t, env.db.ExpectationsWereMet())
}

func TestAlertRepository_ApplyInvalidationFailureIsProjectionWrite(t *testing.T) {
	env := newTestAlertRepository(t)
	alert := newTestAlert("u1", models.CategoryFire, time.Now().UTC())

	env.db.ExpectBegin()
	env.db.ExpectQuery(selectForUpdate).WithArgs(alert.ID).WillReturnRows(alertRows(alert))
	env.db.ExpectExec(`UPDATE alerts SET`).WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	env.db.ExpectExec(`INSERT INTO alert_events`).WillReturnResult(pgxmock.NewResult("INSERT", 1))
	env.db.ExpectCommit()

	// Redis недоступен после коммита
	env.redis.Close()

	updated, err := env.repo.Apply(context.Background(), alert.ID, models.StatusResolved)

	assert.ErrorIs(t, err, models.ErrProjectionWrite)
	require.NotNil(t, updated)
	assert.Equal(t, models.StatusResolved, updated.Status)
	assert.NoError(t, env.db.ExpectationsWereMet())
}

func TestAlertRepository_ListReporterFillsAndUsesCache(t *testing.T) {
	env := newTestAlertRepository(t)
	ctx := context.Background()
	alert := newTestAlert("u1", models.CategoryFire, time.Now().UTC())

	env.db.ExpectQuery(selectHistory).WithArgs("u1").WillReturnRows(alertRows(alert))

	first, err := env.repo.ListReporter(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, first, 1)
	require.Len(t, cachedHistory(t, env.redis, "u1"), 1)

	// Второе чтение обслуживается кэшем, запроса к базе нет
	second, err := env.repo.ListReporter(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, second, 1)
	assert.Equal(t, alert.ID, second[0].ID)
	assert.NoError(t, env.db.ExpectationsWereMet())
}

// Сброс кэша во время чтения из базы не дает записать в кэш устаревшую историю
func TestAlertRepository_ListReporterDoesNotCacheAcrossInvalidation(t *testing.T) {
	env := newTestAlertRepository(t)
	ctx := context.Background()
	stale := newTestAlert("u1", models.CategoryFire, time.Now().UTC())

	env.db.ExpectQuery(selectHistory).WithArgs("u1").
		WillReturnRows(alertRows(stale)).
		WillDelayFor(300 * time.Millisecond)

	done := make(chan []*models.Alert, 1)
	go func() {
		alerts, err := env.repo.ListReporter(ctx, "u1")
		assert.NoError(t, err)
		done <- alerts
	}()

	time.Sleep(100 * time.Millisecond)
	require.NoError(t, env.repo.invalidateHistoryCache(ctx, "u1"))

	select {
	case alerts := <-done:
		assert.Len(t, alerts, 1)
	case <-time.After(3 * time.Second):
		t.Fatal("ListReporter did not return")
	}
	assert.False(t, env.redis.Exists(historyKey("u1")))
	assert.NoError(t, env.db.ExpectationsWereMet())
}

func TestAlertRepository_CacheHistoryChecksGeneration(t *testing.T) {
	env := newTestAlertRepository(t)
	ctx := context.Background()
	alerts := []*models.Alert{newTestAlert("u1", models.CategoryFire, time.Now().UTC())}

	gen, err := env.repo.historyGeneration(ctx, "u1")
	require.NoError(t, err)
	require.NoError(t, env.repo.invalidateHistoryCache(ctx, "u1"))

	stored, err := env.repo.cacheHistory(ctx, "u1", gen, alerts)
	require.NoError(t, err)
	assert.False(t, stored)
	assert.False(t, env.redis.Exists(historyKey("u1")))

	gen, err = env.repo.historyGeneration(ctx, "u1")
	require.NoError(t, err)
	stored, err = env.repo.cacheHistory(ctx, "u1", gen, alerts)
	require.NoError(t, err)
	assert.True(t, stored)
	assert.True(t, env.redis.Exists(historyKey("u1")))
}

func TestAlertRepository_ApplyInvalidatesHistory(t *testing.T) {
	env := newTestAlertRepository(t)
	ctx := context.Background()
	alert := newTestAlert("u1", models.CategoryFire, time.Now().UTC())

	env.db.ExpectQuery(selectHistory).WithArgs("u1").WillReturnRows(alertRows(alert))
	_, err := env.repo.ListReporter(ctx, "u1")
	require.NoError(t, err)
	require.True(t, env.redis.Exists(historyKey("u1")))

	env.db.ExpectBegin()
	env.db.ExpectQuery(selectForUpdate).WithArgs(alert.ID).WillReturnRows(alertRows(alert))
	env.db.ExpectExec(`UPDATE alerts SET`).WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	env.db.ExpectExec(`INSERT INTO alert_events`).WillReturnResult(pgxmock.NewResult("INSERT", 1))
	env.db.ExpectCommit()
	_, err = env.repo.Apply(ctx, alert.ID, models.StatusResolved)
	require.NoError(t, err)

	assert.False(t, env.redis.Exists(historyKey("u1")))

	resolved := *alert
	resolved.Status = models.StatusResolved
	resolved.Version = 2
	env.db.ExpectQuery(selectHistory).WithArgs("u1").WillReturnRows(alertRows(&resolved))
	history, err := env.repo.ListReporter(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, models.StatusResolved, history[0].Status)
	assert.NoError(t, env.db.ExpectationsWereMet())
}

func TestAlertRepository_ApplyUnknownID(t *testing.T) {
	env := newTestAlertRepository(t)
	id := uuid.New()

	env.db.ExpectBegin()
	env.db.ExpectQuery(selectForUpdate).WithArgs(id).WillReturnRows(pgxmock.NewRows(alertRowColumns))
	env.db.ExpectRollback()

	_, err := env.repo.Apply(context.Background(), id, models.StatusResolved)

	assert.ErrorIs(t, err, models.ErrAlertNotFound)
	assert.NoError(t, env.db.ExpectationsWereMet())
}

func TestAlertRepository_ReconcileRebuildsCache(t *testing.T) {
	env := newTestAlertRepository(t)
	ctx := context.Background()
	alert := newTestAlert("u1", models.CategoryFire, time.Now().UTC())
	require.NoError(t, env.redis.Set(historyKey("u1"), "[]"))

	env.db.ExpectQuery(selectHistory).WithArgs("u1").WillReturnRows(alertRows(alert))

	require.NoError(t, env.repo.Reconcile(ctx, "u1"))

	history := cachedHistory(t, env.redis, "u1")
	require.Len(t, history, 1)
	assert.Equal(t, alert.ID, history[0].ID)
	assert.NoError(t, env.db.ExpectationsWereMet())
}

func TestAlertRepository_RecordWritesAlertAndEvent(t *testing.T) {
	env := newTestAlertRepository(t)
	ctx := context.Background()
	alert := newTestAlert("u1", models.CategoryMedical, time.Now().UTC())
	require.NoError(t, env.redis.Set(historyKey("u1"), "[]"))

	env.db.ExpectBegin()
	env.db.ExpectExec(`INSERT INTO alerts`).WillReturnResult(pgxmock.NewResult("INSERT", 1))
	env.db.ExpectExec(`INSERT INTO alert_events`).
		WithArgs(alert.ID, "u1", models.EventCreated, models.StatusActive).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	env.db.ExpectCommit()

	require.NoError(t, env.repo.Record(ctx, alert))

	assert.False(t, env.redis.Exists(historyKey("u1")))
	assert.NoError(t, env.db.ExpectationsWereMet())
}
