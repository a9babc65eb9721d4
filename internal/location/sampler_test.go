package location

import (
	"bytes"
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shenikar/sos_alert_system/internal/config"
	"github.com/shenikar/sos_alert_system/internal/models"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// providerFunc игнорирует отмену контекста, чтобы замер всегда завершался
type providerFunc func() (models.LocationFix, error)

func (f providerFunc) Current(context.Context) (models.LocationFix, error) { return f() }

func newTestSampler(provider Provider) (*Sampler, chan time.Time, *MemoryCache) {
	logger := logrus.New()
	logger.SetOutput(&bytes.Buffer{}) // Отключаем вывод логов в тестах

	cfg := &config.Config{
		DeviceID:               "dev-1",
		FallbackLat:            14.5995,
		FallbackLng:            120.9842,
		LocationSampleInterval: 30 * time.Second,
		LocationTimeout:        time.Second,
	}
	cache := NewMemoryCache()
	s := NewSampler(provider, cache, logger, cfg, nil)

	ticks := make(chan time.Time)
	s.tick = func(time.Duration) (<-chan time.Time, func()) { return ticks, func() {} }
	return s, ticks, cache
}

func TestSampler_SuccessAppendsHistory(t *testing.T) {
	// Подготовка
	s, _, _ := newTestSampler(StaticProvider{Fix: models.LocationFix{Lat: 10, Lng: 20, Accuracy: ptr(7)}})
	ctx := context.Background()

	// Действие
	state, err := s.Refresh(ctx)

	// Проверки
	require.NoError(t, err)
	assert.Equal(t, models.Location{Lat: 10, Lng: 20}, state.Location)
	assert.Equal(t, "Excellent", state.AccuracyClass)
	assert.False(t, state.Fallback)
	assert.Empty(t, state.Warning)
	require.Len(t, state.History, 1)
	assert.Equal(t, 10.0, state.History[0].Lat)
}

func TestSampler_FailureUsesFallbackWithoutAppend(t *testing.T) {
	s, _, cache := newTestSampler(StaticProvider{Err: ErrPermissionDenied})
	ctx := context.Background()

	state, err := s.Refresh(ctx)

	require.NoError(t, err)
	assert.Equal(t, models.FallbackLocation, state.Location)
	assert.True(t, state.Fallback)
	assert.Equal(t, ErrPermissionDenied.Error(), state.Warning)
	assert.Equal(t, "Unknown", state.AccuracyClass)
	assert.Empty(t, state.History)

	samples, err := cache.Recent(ctx, "dev-1")
	require.NoError(t, err)
	assert.Empty(t, samples)
}

func TestSampler_RecoveryClearsWarning(t *testing.T) {
	var fail atomic.Bool
	fail.Store(true)
	s, _, _ := newTestSampler(providerFunc(func() (models.LocationFix, error) {
		if fail.Load() {
			return models.LocationFix{}, ErrTimeout
		}
		return models.LocationFix{Lat: 1, Lng: 2, Accuracy: ptr(60)}, nil
	}))
	ctx := context.Background()

	state, err := s.Refresh(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, state.Warning)

	fail.Store(false)
	state, err = s.Refresh(ctx)
	require.NoError(t, err)
	assert.Empty(t, state.Warning)
	assert.Equal(t, "Fair", state.AccuracyClass)
	assert.Len(t, state.History, 1)
}

func TestSampler_ProviderTimeout(t *testing.T) {
	s, _, _ := newTestSampler(nil)
	s.timeout = 20 * time.Millisecond
	s.provider = blockingProvider{}

	state, err := s.Refresh(context.Background())

	require.NoError(t, err)
	assert.True(t, state.Fallback)
	assert.Contains(t, state.Warning, "deadline exceeded")
}

type blockingProvider struct{}

func (blockingProvider) Current(ctx context.Context) (models.LocationFix, error) {
	<-ctx.Done()
	return models.LocationFix{}, ctx.Err()
}

func TestSampler_StartSamplesEagerlyThenOnTicks(t *testing.T) {
	var calls atomic.Int32
	s, ticks, cache := newTestSampler(providerFunc(func() (models.LocationFix, error) {
		n := calls.Add(1)
		return models.LocationFix{Lat: float64(n), Lng: 0}, nil
	}))
	ctx := context.Background()

	s.Start(ctx)
	assert.Equal(t, int32(1), calls.Load())

	// Второй тик принимается только после завершения первого замера
	ticks <- time.Now()
	ticks <- time.Now()
	s.Stop()

	assert.Equal(t, int32(3), calls.Load())
	samples, err := cache.Recent(ctx, "dev-1")
	require.NoError(t, err)
	assert.Len(t, samples, 3)

	// После Stop тики больше не принимаются
	select {
	case ticks <- time.Now():
		t.Fatal("sampler still running after Stop")
	case <-time.After(20 * time.Millisecond):
	}
}

func TestSampler_StopWithoutStart(t *testing.T) {
	s, _, _ := newTestSampler(StaticProvider{})
	assert.NotPanics(t, s.Stop)
}

func TestSampler_WithoutProviderURLReportsFallback(t *testing.T) {
	s, _, _ := newTestSampler(NewProvider("", time.Second))

	state, err := s.Refresh(context.Background())

	require.NoError(t, err)
	assert.True(t, state.Fallback)
	assert.Equal(t, models.FallbackLocation, state.Location)
	assert.Equal(t, ErrUnsupported.Error(), state.Warning)
	assert.Empty(t, state.History)
}
