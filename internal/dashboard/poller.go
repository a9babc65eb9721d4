package dashboard

import (
	"context"
	"sync"
	"time"

	"github.com/shenikar/sos_alert_system/internal/metrics"
	"github.com/shenikar/sos_alert_system/internal/models"
	"github.com/sirupsen/logrus"
)

// Source - полный снимок очереди ответчиков
type Source interface {
	ListResponder(ctx context.Context) ([]*models.Alert, error)
}

// Subscriber сообщает об изменениях очереди между тиками
type Subscriber interface {
	Subscribe(ctx context.Context) <-chan struct{}
}

// Counts - число тревог по статусам
type Counts struct {
	Active    int `json:"active"`
	Resolved  int `json:"resolved"`
	Cancelled int `json:"cancelled"`
	All       int `json:"all"`
}

// Snapshot - состояние представления ответчика после очередного опроса
type Snapshot struct {
	Alerts      []*models.Alert `json:"alerts"`
	ActiveCount int             `json:"activeCount"`
	Counts      Counts          `json:"counts"`
	PolledAt    time.Time       `json:"polledAt"`
	Polls       int             `json:"polls"`
}

// Filter возвращает тревоги снимка с указанным статусом, пустой статус означает все
func (s Snapshot) Filter(status models.AlertStatus) []*models.Alert {
	if status == "" {
		return s.Alerts
	}
	out := make([]*models.Alert, 0, len(s.Alerts))
	for _, a := range s.Alerts {
		if a.Status == status {
			out = append(out, a)
		}
	}
	return out
}

// Poller перечитывает очередь целиком с фиксированным интервалом.
// Изменения между тиками не видны до следующего опроса.
type Poller struct {
	source   Source
	changes  Subscriber
	interval time.Duration
	logger   *logrus.Logger
	metrics  *metrics.Metrics
	now      func() time.Time
	tick     func(d time.Duration) (<-chan time.Time, func())

	mu   sync.RWMutex
	snap Snapshot

	runMu  sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewPoller(source Source, changes Subscriber, interval time.Duration, logger *logrus.Logger, m *metrics.Metrics) *Poller {
	return &Poller{
		source:   source,
		changes:  changes,
		interval: interval,
		logger:   logger,
		metrics:  m,
		now:      func() time.Time { return time.Now().UTC() },
		tick:     newTicker,
	}
}

func newTicker(d time.Duration) (<-chan time.Time, func()) {
	t := time.NewTicker(d)
	return t.C, t.Stop
}

// Start сразу выполняет первый опрос, затем опрашивает очередь каждые interval
func (p *Poller) Start(ctx context.Context) {
	p.runMu.Lock()
	defer p.runMu.Unlock()
	if p.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.poll(ctx)

	var changes <-chan struct{}
	if p.changes != nil {
		changes = p.changes.Subscribe(ctx)
	}
	ticks, stop := p.tick(p.interval)

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticks:
				p.poll(ctx)
			case _, ok := <-changes:
				if !ok {
					changes = nil
					continue
				}
				p.poll(ctx)
			}
		}
	}()
}

// Stop останавливает таймер и дожидается выхода из цикла опроса
func (p *Poller) Stop() {
	p.runMu.Lock()
	defer p.runMu.Unlock()
	if p.cancel == nil {
		return
	}
	p.cancel()
	p.wg.Wait()
	p.cancel = nil
}

// Snapshot возвращает результат последнего успешного опроса
func (p *Poller) Snapshot() Snapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.snap
}

func (p *Poller) poll(ctx context.Context) {
	alerts, err := p.source.ListResponder(ctx)
	if err != nil {
		if ctx.Err() == nil {
			p.logger.WithError(err).WithField("component", "poller").Warn("Failed to poll responder queue")
		}
		p.metrics.Poll(false, p.Snapshot().ActiveCount)
		return
	}

	counts := countByStatus(alerts)
	p.mu.Lock()
	p.snap = Snapshot{
		Alerts:      alerts,
		ActiveCount: counts.Active,
		Counts:      counts,
		PolledAt:    p.now(),
		Polls:       p.snap.Polls + 1,
	}
	p.mu.Unlock()
	p.metrics.Poll(true, counts.Active)
}

func countByStatus(alerts []*models.Alert) Counts {
	c := Counts{All: len(alerts)}
	for _, a := range alerts {
		switch a.Status {
		case models.StatusActive:
			c.Active++
		case models.StatusResolved:
			c.Resolved++
		case models.StatusCancelled:
			c.Cancelled++
		}
	}
	return c
}
