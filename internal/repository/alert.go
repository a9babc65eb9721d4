package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
	"github.com/shenikar/sos_alert_system/internal/models"
	"github.com/shenikar/sos_alert_system/internal/service"
)

const alertColumns = `
	id,
	category_id,
	category,
	ST_Y(location::geometry) as latitude,
	ST_X(location::geometry) as longitude,
	status,
	reporter_id,
	reporter_name,
	reporter_phone,
	version,
	created_at`

// DB - часть pgxpool.Pool, которая нужна репозиторию тревог
type DB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// AlertRepository хранит очередь ответчиков и журнал событий в PostgreSQL.
// История заявителя кэшируется в Redis и может устареть, если кэш не удалось сбросить.
type AlertRepository struct {
	db          DB
	redisClient *redis.Client
	cacheTTL    time.Duration
}

func NewAlertRepository(db DB, redisClient *redis.Client, cacheTTL time.Duration) service.ProjectionStore {
	return &AlertRepository{
		db:          db,
		redisClient: redisClient,
		cacheTTL:    cacheTTL,
	}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAlert(row rowScanner) (*models.Alert, error) {
	alert := &models.Alert{}
	err := row.Scan(
		&alert.ID,
		&alert.CategoryID,
		&alert.Category,
		&alert.Location.Lat,
		&alert.Location.Lng,
		&alert.Status,
		&alert.Reporter.UserID,
		&alert.Reporter.UserName,
		&alert.Reporter.UserPhone,
		&alert.Version,
		&alert.Timestamp,
	)
	if err != nil {
		return nil, err
	}
	return alert, nil
}

// Record записывает тревогу и событие created в одной транзакции, затем сбрасывает кэш истории
func (r *AlertRepository) Record(ctx context.Context, alert *models.Alert) error {
	err := r.inTx(ctx, func(tx pgx.Tx) error {
		query := `
			INSERT INTO alerts (id, category_id, category, location, status, reporter_id, reporter_name, reporter_phone, version, created_at)
			VALUES ($1, $2, $3, ST_SetSRID(ST_MakePoint($4, $5), 4326), $6, $7, $8, $9, $10, $11);
		`
		_, err := tx.Exec(ctx, query,
			alert.ID,
			alert.CategoryID,
			alert.Category,
			alert.Location.Lng,
			alert.Location.Lat,
			alert.Status,
			alert.Reporter.UserID,
			alert.Reporter.UserName,
			alert.Reporter.UserPhone,
			alert.Version,
			alert.Timestamp,
		)
		if err != nil {
			return fmt.Errorf("failed to insert alert: %w", err)
		}
		return insertEvent(ctx, tx, alert, models.EventCreated)
	})
	if err != nil {
		return fmt.Errorf("failed to record alert: %w", err)
	}

	if err := r.invalidateHistoryCache(ctx, alert.Reporter.UserID); err != nil {
		return fmt.Errorf("%w: %v", models.ErrProjectionWrite, err)
	}
	return nil
}

// Apply меняет статус через models.Transition. Строка блокируется FOR UPDATE, поэтому
// конкурирующий Apply дожидается коммита и получает ErrInvalidTransition. Проверка версии
// (compare-and-swap) остается на случай записи в обход блокировки, тогда возвращается
// models.ErrStaleVersion.
func (r *AlertRepository) Apply(ctx context.Context, id uuid.UUID, status models.AlertStatus) (*models.Alert, error) {
	var updated *models.Alert
	err := r.inTx(ctx, func(tx pgx.Tx) error {
		current, err := scanAlert(tx.QueryRow(ctx, `SELECT`+alertColumns+` FROM alerts WHERE id = $1 FOR UPDATE;`, id))
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return fmt.Errorf("%w: %s", models.ErrAlertNotFound, id)
			}
			return fmt.Errorf("failed to get alert by id: %w", err)
		}

		next, err := models.Transition(current.Status, status)
		if err != nil {
			return err
		}

		query := `
			UPDATE alerts SET
				status = $1,
				version = version + 1,
				updated_at = NOW()
			WHERE id = $2 AND version = $3;
		`
		cmdTag, err := tx.Exec(ctx, query, next, id, current.Version)
		if err != nil {
			return fmt.Errorf("failed to update alert status: %w", err)
		}
		if cmdTag.RowsAffected() == 0 {
			return fmt.Errorf("%w: %s", models.ErrStaleVersion, id)
		}

		current.Status = next
		current.Version++
		if err := insertEvent(ctx, tx, current, models.EventTypeFor(next)); err != nil {
			return err
		}
		updated = current
		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := r.invalidateHistoryCache(ctx, updated.Reporter.UserID); err != nil {
		return updated, fmt.Errorf("%w: %v", models.ErrProjectionWrite, err)
	}
	return updated, nil
}

// inTx выполняет fn в транзакции: коммит при успехе, откат при ошибке
func (r *AlertRepository) inTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func insertEvent(ctx context.Context, tx pgx.Tx, alert *models.Alert, typ models.EventType) error {
	query := `
		INSERT INTO alert_events (alert_id, reporter_id, event_type, status)
		VALUES ($1, $2, $3, $4);
	`
	if _, err := tx.Exec(ctx, query, alert.ID, alert.Reporter.UserID, typ, alert.Status); err != nil {
		return fmt.Errorf("failed to append alert event: %w", err)
	}
	return nil
}

// Get возвращает тревогу по UUID
func (r *AlertRepository) Get(ctx context.Context, id uuid.UUID) (*models.Alert, error) {
	alert, err := scanAlert(r.db.QueryRow(ctx, `SELECT`+alertColumns+` FROM alerts WHERE id = $1;`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", models.ErrAlertNotFound, id)
		}
		return nil, fmt.Errorf("failed to get alert by id: %w", err)
	}
	return alert, nil
}

// ListResponder возвращает полный снимок очереди ответчиков
func (r *AlertRepository) ListResponder(ctx context.Context) ([]*models.Alert, error) {
	return r.queryAlerts(ctx, `SELECT`+alertColumns+` FROM alerts ORDER BY created_at DESC;`)
}

// ListReporter возвращает историю заявителя, сначала из кэша Redis.
// Прочитанная из базы история попадает в кэш, только если с начала чтения
// никто не сбросил кэш этого заявителя.
func (r *AlertRepository) ListReporter(ctx context.Context, reporterID string) ([]*models.Alert, error) {
	cached, err := r.getHistoryFromCache(ctx, reporterID)
	if err == nil && cached != nil {
		return cached, nil
	}

	gen, genErr := r.historyGeneration(ctx, reporterID)
	alerts, err := r.loadHistory(ctx, reporterID)
	if err != nil {
		return nil, err
	}
	// Ошибка записи в кэш не влияет на чтение
	if genErr == nil {
		_, _ = r.cacheHistory(ctx, reporterID, gen, alerts)
	}
	return alerts, nil
}

// Reconcile перестраивает кэш истории заявителя из таблицы alerts
func (r *AlertRepository) Reconcile(ctx context.Context, reporterID string) error {
	if err := r.invalidateHistoryCache(ctx, reporterID); err != nil {
		return fmt.Errorf("failed to reconcile history: %w", err)
	}
	gen, err := r.historyGeneration(ctx, reporterID)
	if err != nil {
		return fmt.Errorf("failed to reconcile history: %w", err)
	}
	alerts, err := r.loadHistory(ctx, reporterID)
	if err != nil {
		return fmt.Errorf("failed to reconcile history: %w", err)
	}
	// Если кэш успели сбросить снова, его заполнит следующее чтение
	if _, err := r.cacheHistory(ctx, reporterID, gen, alerts); err != nil {
		return fmt.Errorf("failed to reconcile history: %w", err)
	}
	return nil
}

func (r *AlertRepository) loadHistory(ctx context.Context, reporterID string) ([]*models.Alert, error) {
	return r.queryAlerts(ctx, `SELECT`+alertColumns+` FROM alerts WHERE reporter_id = $1 ORDER BY created_at DESC;`, reporterID)
}

func (r *AlertRepository) queryAlerts(ctx context.Context, query string, args ...any) ([]*models.Alert, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list alerts: %w", err)
	}
	defer rows.Close()

	alerts := make([]*models.Alert, 0)
	for rows.Next() {
		alert, err := scanAlert(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan alert row: %w", err)
		}
		alerts = append(alerts, alert)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error list iteration: %w", err)
	}
	return alerts, nil
}

func historyKey(reporterID string) string {
	return fmt.Sprintf("reporter_history:%s", reporterID)
}

func historyGenKey(reporterID string) string {
	return fmt.Sprintf("reporter_history_gen:%s", reporterID)
}

// getHistoryFromCache пытается получить историю из Redis, (nil, nil) означает промах
func (r *AlertRepository) getHistoryFromCache(ctx context.Context, reporterID string) ([]*models.Alert, error) {
	if r.redisClient == nil {
		return nil, nil
	}
	val, err := r.redisClient.Get(ctx, historyKey(reporterID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get history from cache: %w", err)
	}

	var alerts []*models.Alert
	if err := json.Unmarshal(val, &alerts); err != nil {
		return nil, fmt.Errorf("failed to unmarshal history from cache: %w", err)
	}
	return alerts, nil
}

// historyGeneration возвращает счетчик сбросов кэша истории заявителя
func (r *AlertRepository) historyGeneration(ctx context.Context, reporterID string) (int64, error) {
	if r.redisClient == nil {
		return 0, nil
	}
	gen, err := r.redisClient.Get(ctx, historyGenKey(reporterID)).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return 0, fmt.Errorf("failed to get history generation: %w", err)
	}
	return gen, nil
}

// cacheHistory сохраняет историю в Redis, если счетчик сбросов все еще равен gen.
// WATCH на счетчике отменяет запись, если сброс случился между проверкой и EXEC.
func (r *AlertRepository) cacheHistory(ctx context.Context, reporterID string, gen int64, alerts []*models.Alert) (bool, error) {
	if r.redisClient == nil {
		return false, nil
	}
	val, err := json.Marshal(alerts)
	if err != nil {
		return false, fmt.Errorf("failed to marshal history for cache: %w", err)
	}

	stored := false
	genKey := historyGenKey(reporterID)
	err = r.redisClient.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, genKey).Int64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if current != gen {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, historyKey(reporterID), val, r.cacheTTL)
			return nil
		})
		if err == nil {
			stored = true
		}
		return err
	}, genKey)
	if errors.Is(err, redis.TxFailedErr) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to set history in cache: %w", err)
	}
	return stored, nil
}

// invalidateHistoryCache удаляет историю заявителя из Redis и увеличивает счетчик сбросов
func (r *AlertRepository) invalidateHistoryCache(ctx context.Context, reporterID string) error {
	if r.redisClient == nil {
		return nil
	}
	_, err := r.redisClient.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, historyGenKey(reporterID))
		pipe.Del(ctx, historyKey(reporterID))
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to invalidate history cache: %w", err)
	}
	return nil
}
