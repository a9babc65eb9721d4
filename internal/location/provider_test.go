package location

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shenikar/sos_alert_system/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr(v float64) *float64 { return &v }

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		accuracy *float64
		want     string
	}{
		{"excellent", ptr(5), "Excellent"},
		{"good", ptr(40), "Good"},
		{"fair", ptr(75), "Fair"},
		{"poor", ptr(150), "Poor"},
		{"unknown", nil, "Unknown"},
		{"good lower bound", ptr(10), "Good"},
		{"fair lower bound", ptr(50), "Fair"},
		{"poor lower bound", ptr(100), "Poor"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.accuracy))
		})
	}
}

func TestHTTPProvider_Current(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "no-cache", r.Header.Get("Cache-Control"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"lat":10.5,"lng":20.25,"accuracy":8}`))
	}))
	defer server.Close()

	fix, err := NewHTTPProvider(server.URL, time.Second).Current(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 10.5, fix.Lat)
	assert.Equal(t, 20.25, fix.Lng)
	require.NotNil(t, fix.Accuracy)
	assert.Equal(t, 8.0, *fix.Accuracy)
}

func TestHTTPProvider_ErrorClassification(t *testing.T) {
	tests := []struct {
		status int
		want   error
	}{
		{http.StatusForbidden, ErrPermissionDenied},
		{http.StatusNotImplemented, ErrUnsupported},
		{http.StatusGatewayTimeout, ErrTimeout},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer server.Close()

			_, err := NewHTTPProvider(server.URL, time.Second).Current(context.Background())

			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestHTTPProvider_ContextDeadline(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := NewHTTPProvider(server.URL, time.Second).Current(ctx)

	assert.ErrorIs(t, err, ErrTimeout)
}

func TestStaticProvider(t *testing.T) {
	fix, err := StaticProvider{Fix: models.LocationFix{Lat: 1, Lng: 2}}.Current(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1.0, fix.Lat)

	_, err = StaticProvider{Err: ErrPermissionDenied}.Current(context.Background())
	assert.True(t, errors.Is(err, ErrPermissionDenied))
}

func TestNewProvider_WithoutURLIsUnsupported(t *testing.T) {
	p := NewProvider("  ", time.Second)

	_, err := p.Current(context.Background())

	assert.ErrorIs(t, err, ErrUnsupported)
	assert.IsType(t, &HTTPProvider{}, NewProvider("http://localhost:9000", time.Second))
}
