package dashboard

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shenikar/sos_alert_system/internal/config"
	"github.com/shenikar/sos_alert_system/internal/metrics"
	"github.com/sirupsen/logrus"
)

var ErrSessionNotFound = errors.New("responder session not found")

// View - снимок очереди в рамках сессии ответчика
type View struct {
	SessionID uuid.UUID `json:"sessionId"`
	Snapshot
}

type session struct {
	poller   *Poller
	lastSeen time.Time
}

// Manager держит по одному Poller на каждую открытую сессию ответчика.
// Сессии, к которым не обращались дольше idleTimeout, закрываются.
type Manager struct {
	source   Source
	changes  Subscriber
	interval time.Duration
	idle     time.Duration
	logger   *logrus.Logger
	metrics  *metrics.Metrics
	now      func() time.Time
	tick     func(d time.Duration) (<-chan time.Time, func())
	pollTick func(d time.Duration) (<-chan time.Time, func())

	mu       sync.Mutex
	sessions map[uuid.UUID]*session
	base     context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

func NewManager(source Source, changes Subscriber, logger *logrus.Logger, cfg *config.Config, m *metrics.Metrics) *Manager {
	base, cancel := context.WithCancel(context.Background())
	return &Manager{
		source:   source,
		changes:  changes,
		interval: cfg.PollInterval,
		idle:     cfg.SessionIdleTimeout,
		logger:   logger,
		metrics:  m,
		now:      time.Now,
		tick:     newTicker,
		pollTick: newTicker,
		sessions: make(map[uuid.UUID]*session),
		base:     base,
		cancel:   cancel,
	}
}

// Start запускает фоновое закрытие простаивающих сессий
func (m *Manager) Start() {
	if m.idle <= 0 {
		return
	}
	ticks, stop := m.tick(m.idle / 2)
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer stop()
		for {
			select {
			case <-m.base.Done():
				return
			case <-ticks:
				m.reap()
			}
		}
	}()
}

// Open создает сессию и сразу выполняет первый опрос
func (m *Manager) Open() (View, error) {
	if err := m.base.Err(); err != nil {
		return View{}, err
	}
	id := uuid.New()
	p := NewPoller(m.source, m.changes, m.interval, m.logger, m.metrics)
	p.tick = m.pollTick
	p.Start(m.base)

	m.mu.Lock()
	m.sessions[id] = &session{poller: p, lastSeen: m.now()}
	n := len(m.sessions)
	m.mu.Unlock()

	m.metrics.Sessions(n)
	m.logger.WithField("session_id", id).Info("Responder session opened")
	return View{SessionID: id, Snapshot: p.Snapshot()}, nil
}

// View возвращает последний снимок сессии и продлевает ее жизнь
func (m *Manager) View(id uuid.UUID) (View, error) {
	m.mu.Lock()
	s, ok := m.sessions[id]
	if ok {
		s.lastSeen = m.now()
	}
	m.mu.Unlock()
	if !ok {
		return View{}, ErrSessionNotFound
	}
	return View{SessionID: id, Snapshot: s.poller.Snapshot()}, nil
}

// Close останавливает опрос сессии
func (m *Manager) Close(id uuid.UUID) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	n := len(m.sessions)
	m.mu.Unlock()
	if !ok {
		return ErrSessionNotFound
	}

	s.poller.Stop()
	m.metrics.Sessions(n)
	m.logger.WithField("session_id", id).Info("Responder session closed")
	return nil
}

// Shutdown закрывает все сессии и останавливает фоновые горутины
func (m *Manager) Shutdown() {
	m.cancel()
	m.wg.Wait()

	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[uuid.UUID]*session)
	m.mu.Unlock()

	for _, s := range sessions {
		s.poller.Stop()
	}
	m.metrics.Sessions(0)
}

// Len возвращает число открытых сессий
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

func (m *Manager) reap() {
	deadline := m.now().Add(-m.idle)
	m.mu.Lock()
	var stale []uuid.UUID
	for id, s := range m.sessions {
		if s.lastSeen.Before(deadline) {
			stale = append(stale, id)
		}
	}
	m.mu.Unlock()

	for _, id := range stale {
		if err := m.Close(id); err == nil {
			m.logger.WithField("session_id", id).Info("Idle responder session reaped")
		}
	}
}
