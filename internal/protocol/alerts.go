package protocol

import (
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/smukkama/weather-monitor/internal/weather"
)

// AlertNotification is the Kafka message emitted for every fired alert.
type AlertNotification struct {
	ID        string            `json:"id"`
	Type      string            `json:"type"` // TEMPERATURE_ALERT, FORECAST_ALERT
	City      string            `json:"city"`
	Kind      weather.AlertKind `json:"kind"`
	Value     float64           `json:"value,omitempty"`
	Threshold float64           `json:"threshold"`
	Unit      string            `json:"unit,omitempty"`
	Message   string            `json:"message"`
	Dates     []string          `json:"dates,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

const (
	AlertTypeTemperature = "TEMPERATURE_ALERT"
	AlertTypeForecast    = "FORECAST_ALERT"
)

// NewTemperatureAlert builds the notification for a debounced current-conditions alert.
func NewTemperatureAlert(city string, value, threshold float64, unit weather.TempUnit, message string, now time.Time) *AlertNotification {
	return &AlertNotification{
		ID:        uuid.NewString(),
		Type:      AlertTypeTemperature,
		City:      city,
		Kind:      weather.AlertHighTemperature,
		Value:     value,
		Threshold: threshold,
		Unit:      unit.Symbol(),
		Message:   message,
		CreatedAt: now.UTC(),
	}
}

// NewForecastAlert builds the notification for a forecast alert. Dates are
// rendered as YYYY-MM-DD in the order given.
func NewForecastAlert(city string, alert weather.ForecastAlert, threshold float64, now time.Time) *AlertNotification {
	dates := make([]string, len(alert.Dates))
	for i, d := range alert.Dates {
		dates[i] = d.Format(weather.DateLayout)
	}
	return &AlertNotification{
		ID:        uuid.NewString(),
		Type:      AlertTypeForecast,
		City:      city,
		Kind:      alert.Kind,
		Threshold: threshold,
		Message:   alert.Message,
		Dates:     dates,
		CreatedAt: now.UTC(),
	}
}

// Key is the Kafka partition key; alerts of one city stay ordered.
func (a *AlertNotification) Key() string {
	return a.City
}

// EncodeAlertNotification encodes an AlertNotification to JSON
func EncodeAlertNotification(alert *AlertNotification) ([]byte, error) {
	return json.Marshal(alert)
}

// DecodeAlertNotification decodes JSON to AlertNotification
func DecodeAlertNotification(data []byte) (*AlertNotification, error) {
	var alert AlertNotification
	if err := json.Unmarshal(data, &alert); err != nil {
		return nil, err
	}
	if alert.ID == "" || alert.City == "" {
		return nil, fmt.Errorf("alert notification missing id or city")
	}
	return &alert, nil
}
