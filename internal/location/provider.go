package location

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/shenikar/sos_alert_system/internal/models"
)

var (
	ErrPermissionDenied = errors.New("location permission denied")
	ErrUnsupported      = errors.New("geolocation is not supported")
	ErrTimeout          = errors.New("location request timed out")
)

// Provider - источник текущих координат устройства.
// Каждый вызов запрашивает свежую координату, кешированные ответы не допускаются.
type Provider interface {
	Current(ctx context.Context) (models.LocationFix, error)
}

// StaticProvider всегда отдает заданную координату или ошибку
type StaticProvider struct {
	Fix models.LocationFix
	Err error
}

func (p StaticProvider) Current(ctx context.Context) (models.LocationFix, error) {
	if err := ctx.Err(); err != nil {
		return models.LocationFix{}, fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	if p.Err != nil {
		return models.LocationFix{}, p.Err
	}
	return p.Fix, nil
}

// HTTPProvider получает координаты у внешнего сервиса геолокации
type HTTPProvider struct {
	BaseURL string
	HTTP    *http.Client
}

type fixResp struct {
	Lat      float64  `json:"lat"`
	Lng      float64  `json:"lng"`
	Accuracy *float64 `json:"accuracy"`
}

// NewProvider возвращает HTTPProvider, а при пустом baseURL провайдер,
// который всегда отвечает ErrUnsupported
func NewProvider(baseURL string, timeout time.Duration) Provider {
	if strings.TrimSpace(baseURL) == "" {
		return StaticProvider{Err: ErrUnsupported}
	}
	return NewHTTPProvider(baseURL, timeout)
}

func NewHTTPProvider(baseURL string, timeout time.Duration) *HTTPProvider {
	return &HTTPProvider{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP:    &http.Client{Timeout: timeout},
	}
}

func (p *HTTPProvider) Current(ctx context.Context) (models.LocationFix, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.BaseURL, nil)
	if err != nil {
		return models.LocationFix{}, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := p.HTTP.Do(req)
	if err != nil {
		if ctx.Err() != nil || isTimeout(err) {
			return models.LocationFix{}, fmt.Errorf("%w: %v", ErrTimeout, err)
		}
		return models.LocationFix{}, fmt.Errorf("location provider: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusUnauthorized, http.StatusForbidden:
		return models.LocationFix{}, ErrPermissionDenied
	case http.StatusNotFound, http.StatusNotImplemented:
		return models.LocationFix{}, ErrUnsupported
	case http.StatusGatewayTimeout, http.StatusRequestTimeout:
		return models.LocationFix{}, ErrTimeout
	default:
		return models.LocationFix{}, fmt.Errorf("location provider: status %d", resp.StatusCode)
	}

	var fr fixResp
	if err := json.NewDecoder(resp.Body).Decode(&fr); err != nil {
		return models.LocationFix{}, fmt.Errorf("location provider: %w", err)
	}
	return models.LocationFix{Lat: fr.Lat, Lng: fr.Lng, Accuracy: fr.Accuracy}, nil
}

func isTimeout(err error) bool {
	var te interface{ Timeout() bool }
	return errors.As(err, &te) && te.Timeout()
}

// Classify переводит радиус точности в метрах в словесную оценку
func Classify(accuracy *float64) string {
	switch {
	case accuracy == nil:
		return "Unknown"
	case *accuracy < 10:
		return "Excellent"
	case *accuracy < 50:
		return "Good"
	case *accuracy < 100:
		return "Fair"
	default:
		return "Poor"
	}
}
