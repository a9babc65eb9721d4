package location

import (
	"context"
	"sync"
	"time"

	"github.com/shenikar/sos_alert_system/internal/config"
	"github.com/shenikar/sos_alert_system/internal/metrics"
	"github.com/shenikar/sos_alert_system/internal/models"
	"github.com/sirupsen/logrus"
)

// State - последнее известное положение устройства
type State struct {
	DeviceID      string                        `json:"deviceId"`
	Location      models.Location               `json:"location"`
	Accuracy      *float64                      `json:"accuracy,omitempty"`
	AccuracyClass string                        `json:"accuracyClass"`
	Fallback      bool                          `json:"fallback"`
	Warning       string                        `json:"warning,omitempty"`
	SampledAt     time.Time                     `json:"sampledAt"`
	History       []models.CachedLocationSample `json:"history"`
}

// Sampler периодически запрашивает координаты устройства у Provider.
// Успешные ответы попадают в кольцевой буфер Cache, при ошибке подставляется резервная координата.
type Sampler struct {
	deviceID string
	provider Provider
	cache    Cache
	fallback models.Location
	interval time.Duration
	timeout  time.Duration
	logger   *logrus.Logger
	metrics  *metrics.Metrics
	now      func() time.Time
	tick     func(d time.Duration) (<-chan time.Time, func())

	mu    sync.RWMutex
	state State

	runMu  sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewSampler(provider Provider, cache Cache, logger *logrus.Logger, cfg *config.Config, m *metrics.Metrics) *Sampler {
	fallback := models.Location{Lat: cfg.FallbackLat, Lng: cfg.FallbackLng}
	return &Sampler{
		deviceID: cfg.DeviceID,
		provider: provider,
		cache:    cache,
		fallback: fallback,
		interval: cfg.LocationSampleInterval,
		timeout:  cfg.LocationTimeout,
		logger:   logger,
		metrics:  m,
		now:      func() time.Time { return time.Now().UTC() },
		tick:     newTicker,
		state: State{
			DeviceID:      cfg.DeviceID,
			Location:      fallback,
			AccuracyClass: Classify(nil),
			Fallback:      true,
		},
	}
}

func newTicker(d time.Duration) (<-chan time.Time, func()) {
	t := time.NewTicker(d)
	return t.C, t.Stop
}

// Start выполняет первый замер сразу, затем повторяет его с интервалом LocationSampleInterval
func (s *Sampler) Start(ctx context.Context) {
	s.runMu.Lock()
	defer s.runMu.Unlock()
	if s.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.sample(ctx)

	ticks, stop := s.tick(s.interval)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticks:
				s.sample(ctx)
			}
		}
	}()
}

// Stop останавливает таймер и дожидается завершения цикла
func (s *Sampler) Stop() {
	s.runMu.Lock()
	defer s.runMu.Unlock()
	if s.cancel == nil {
		return
	}
	s.cancel()
	s.wg.Wait()
	s.cancel = nil
}

// Refresh выполняет внеочередной замер
func (s *Sampler) Refresh(ctx context.Context) (State, error) {
	s.sample(ctx)
	return s.Status(ctx)
}

// Status возвращает последнее состояние вместе с буфером координат
func (s *Sampler) Status(ctx context.Context) (State, error) {
	s.mu.RLock()
	state := s.state
	s.mu.RUnlock()

	history, err := s.cache.Recent(ctx, s.deviceID)
	if err != nil {
		return state, err
	}
	state.History = history
	return state, nil
}

func (s *Sampler) sample(ctx context.Context) {
	log := s.logger.WithFields(logrus.Fields{
		"component": "location_sampler",
		"device_id": s.deviceID,
	})

	sctx, cancel := context.WithTimeout(ctx, s.timeout)
	fix, err := s.provider.Current(sctx)
	cancel()
	at := s.now()

	if err != nil {
		log.WithError(err).Warn("Location unavailable, using fallback coordinate")
		s.metrics.LocationSample(false)
		s.mu.Lock()
		s.state = State{
			DeviceID:      s.deviceID,
			Location:      s.fallback,
			AccuracyClass: Classify(nil),
			Fallback:      true,
			Warning:       err.Error(),
			SampledAt:     at,
		}
		s.mu.Unlock()
		return
	}

	s.metrics.LocationSample(true)
	s.mu.Lock()
	s.state = State{
		DeviceID:      s.deviceID,
		Location:      models.Location{Lat: fix.Lat, Lng: fix.Lng},
		Accuracy:      fix.Accuracy,
		AccuracyClass: Classify(fix.Accuracy),
		SampledAt:     at,
	}
	s.mu.Unlock()

	sample := models.CachedLocationSample{Lat: fix.Lat, Lng: fix.Lng, Timestamp: at}
	if err := s.cache.Append(ctx, s.deviceID, sample); err != nil {
		log.WithError(err).Warn("Failed to cache location sample")
	}
}
