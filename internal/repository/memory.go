package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shenikar/sos_alert_system/internal/models"
	"github.com/shenikar/sos_alert_system/internal/service"
)

var ErrStoreClosed = errors.New("store is closed")

// memoryState принадлежит только горутине-владельцу MemoryStore
type memoryState struct {
	events  []models.AlertEvent
	created map[uuid.UUID]*models.Alert // исходные записи для перестроения истории
	queue   map[uuid.UUID]*models.Alert // ResponderQueue
	history map[string][]*models.Alert  // ReporterHistory, новые первыми
}

// MemoryStore хранит журнал событий и обе материализованные проекции в памяти.
// Все операции выполняет одна горутина, остальные передают ей замыкания через канал.
type MemoryStore struct {
	ops       chan func(*memoryState)
	done      chan struct{}
	closeOnce sync.Once
	now       func() time.Time
}

func NewMemoryStore() *MemoryStore {
	s := &MemoryStore{
		ops:  make(chan func(*memoryState)),
		done: make(chan struct{}),
		now:  func() time.Time { return time.Now().UTC() },
	}
	go s.run(&memoryState{
		created: make(map[uuid.UUID]*models.Alert),
		queue:   make(map[uuid.UUID]*models.Alert),
		history: make(map[string][]*models.Alert),
	})
	return s
}

var _ service.ProjectionStore = (*MemoryStore)(nil)

func (s *MemoryStore) run(state *memoryState) {
	for {
		select {
		case op := <-s.ops:
			op(state)
		case <-s.done:
			return
		}
	}
}

// Close останавливает горутину-владельца. Последующие вызовы возвращают ErrStoreClosed
func (s *MemoryStore) Close() {
	s.closeOnce.Do(func() { close(s.done) })
}

// do передает операцию владельцу и ждет ее завершения
func (s *MemoryStore) do(ctx context.Context, op func(*memoryState)) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case <-s.done:
		return ErrStoreClosed
	default:
	}

	finished := make(chan struct{})
	wrapped := func(state *memoryState) {
		defer close(finished)
		op(state)
	}

	select {
	case s.ops <- wrapped:
	case <-ctx.Done():
		return ctx.Err()
	case <-s.done:
		return ErrStoreClosed
	}
	<-finished
	return nil
}

// Record добавляет событие created и записывает тревогу в обе проекции за один шаг
func (s *MemoryStore) Record(ctx context.Context, alert *models.Alert) error {
	var opErr error
	err := s.do(ctx, func(st *memoryState) {
		if _, exists := st.queue[alert.ID]; exists {
			opErr = fmt.Errorf("alert with id %s already recorded", alert.ID)
			return
		}
		st.appendEvent(alert, models.EventCreated, s.now())
		st.created[alert.ID] = alert.Clone()
		st.queue[alert.ID] = alert.Clone()
		reporterID := alert.Reporter.UserID
		st.history[reporterID] = append([]*models.Alert{alert.Clone()}, st.history[reporterID]...)
	})
	if err != nil {
		return fmt.Errorf("failed to record alert: %w", err)
	}
	return opErr
}

// Apply проверяет переход статуса и применяет его к обеим проекциям по id
func (s *MemoryStore) Apply(ctx context.Context, id uuid.UUID, status models.AlertStatus) (*models.Alert, error) {
	var (
		updated *models.Alert
		opErr   error
	)
	err := s.do(ctx, func(st *memoryState) {
		current, ok := st.queue[id]
		if !ok {
			opErr = fmt.Errorf("%w: %s", models.ErrAlertNotFound, id)
			return
		}
		next, err := models.Transition(current.Status, status)
		if err != nil {
			opErr = err
			return
		}

		current.Status = next
		current.Version++
		st.appendEvent(current, models.EventTypeFor(next), s.now())
		for _, h := range st.history[current.Reporter.UserID] {
			if h.ID == id {
				h.Status = next
				h.Version = current.Version
			}
		}
		updated = current.Clone()
	})
	if err != nil {
		return nil, fmt.Errorf("failed to apply status: %w", err)
	}
	return updated, opErr
}

func (s *MemoryStore) Get(ctx context.Context, id uuid.UUID) (*models.Alert, error) {
	var found *models.Alert
	err := s.do(ctx, func(st *memoryState) {
		found = st.queue[id].Clone()
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get alert: %w", err)
	}
	if found == nil {
		return nil, fmt.Errorf("%w: %s", models.ErrAlertNotFound, id)
	}
	return found, nil
}

// ListReporter возвращает копию истории заявителя
func (s *MemoryStore) ListReporter(ctx context.Context, reporterID string) ([]*models.Alert, error) {
	var alerts []*models.Alert
	err := s.do(ctx, func(st *memoryState) {
		alerts = cloneAll(st.history[reporterID])
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list reporter history: %w", err)
	}
	return alerts, nil
}

// ListResponder возвращает полный снимок очереди, новые первыми
func (s *MemoryStore) ListResponder(ctx context.Context) ([]*models.Alert, error) {
	var alerts []*models.Alert
	err := s.do(ctx, func(st *memoryState) {
		alerts = make([]*models.Alert, 0, len(st.queue))
		for _, a := range st.queue {
			alerts = append(alerts, a.Clone())
		}
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list responder queue: %w", err)
	}
	sortNewestFirst(alerts)
	return alerts, nil
}

// Reconcile перестраивает историю заявителя проигрыванием журнала событий
func (s *MemoryStore) Reconcile(ctx context.Context, reporterID string) error {
	err := s.do(ctx, func(st *memoryState) {
		st.history[reporterID] = st.replay(reporterID)
	})
	if err != nil {
		return fmt.Errorf("failed to reconcile reporter history: %w", err)
	}
	return nil
}

// eventLog возвращает копию журнала событий
func (s *MemoryStore) eventLog(ctx context.Context) ([]models.AlertEvent, error) {
	var events []models.AlertEvent
	err := s.do(ctx, func(st *memoryState) {
		events = append([]models.AlertEvent(nil), st.events...)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read events: %w", err)
	}
	return events, nil
}

func (st *memoryState) appendEvent(alert *models.Alert, typ models.EventType, at time.Time) {
	st.events = append(st.events, models.AlertEvent{
		Seq:        int64(len(st.events) + 1),
		AlertID:    alert.ID,
		ReporterID: alert.Reporter.UserID,
		Type:       typ,
		Status:     alert.Status,
		OccurredAt: at,
	})
}

func (st *memoryState) replay(reporterID string) []*models.Alert {
	var history []*models.Alert
	byID := make(map[uuid.UUID]*models.Alert)
	for _, ev := range st.events {
		if ev.ReporterID != reporterID {
			continue
		}
		if ev.Type == models.EventCreated {
			a := st.created[ev.AlertID].Clone()
			if a == nil {
				continue
			}
			byID[a.ID] = a
			history = append([]*models.Alert{a}, history...)
			continue
		}
		if a, ok := byID[ev.AlertID]; ok {
			a.Status = ev.Status
			a.Version++
		}
	}
	return history
}

func cloneAll(alerts []*models.Alert) []*models.Alert {
	out := make([]*models.Alert, len(alerts))
	for i, a := range alerts {
		out[i] = a.Clone()
	}
	return out
}

func sortNewestFirst(alerts []*models.Alert) {
	sort.SliceStable(alerts, func(i, j int) bool {
		return alerts[i].Timestamp.After(alerts[j].Timestamp)
	})
}
