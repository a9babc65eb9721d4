package models

import "time"

// LocationFix - ответ провайдера геолокации. Accuracy - радиус в метрах, может отсутствовать
type LocationFix struct {
	Lat      float64  `json:"lat"`
	Lng      float64  `json:"lng"`
	Accuracy *float64 `json:"accuracy,omitempty"`
}

// CachedLocationSample - запись кольцевого буфера последних координат устройства
type CachedLocationSample struct {
	Lat       float64   `json:"lat"`
	Lng       float64   `json:"lng"`
	Timestamp time.Time `json:"timestamp"`
}

// FallbackLocation - координата по умолчанию, когда провайдер недоступен
var FallbackLocation = Location{Lat: 14.5995, Lng: 120.9842}
