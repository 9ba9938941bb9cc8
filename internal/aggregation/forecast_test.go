package aggregation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smukkama/weather-monitor/internal/weather"
)

func step(dayOffset, hour int, temp float64) weather.ForecastSample {
	return weather.ForecastSample{
		City:        "Delhi",
		Timestamp:   day.AddDate(0, 0, dayOffset).Add(time.Duration(hour) * time.Hour).Unix(),
		Temperature: temp,
		Main:        "Clear",
	}
}

func TestGroupByDay(t *testing.T) {
	agg := NewForecastAggregator(DefaultAlertRules())

	a := step(1, 0, 30)
	a.Pop, a.Rain3h, a.Humidity = 0.2, 1, 50
	b := step(1, 3, 34)
	b.Pop, b.Rain3h, b.Snow3h, b.Humidity, b.Main = 0.6, 2.5, 0.5, 70, "Rain"
	c := step(0, 21, 28)
	c.Pop = 0.1
	d := step(1, 6, 26)
	d.Main = "Rain"

	got := agg.GroupByDay("Delhi", []weather.ForecastSample{a, b, c, d})

	require.Len(t, got, 2)
	assert.Equal(t, day, got[0].Date)
	assert.Equal(t, 1, got[0].SampleCount)
	assert.Equal(t, 0.1, got[0].PrecipitationProbability)

	second := got[1]
	assert.Equal(t, day.AddDate(0, 0, 1), second.Date)
	assert.Equal(t, "Delhi", second.City)
	assert.Equal(t, 30.0, second.AvgTemp)
	assert.Equal(t, 34.0, second.MaxTemp)
	assert.Equal(t, 26.0, second.MinTemp)
	assert.Equal(t, "Rain", second.DominantWeather)
	assert.Equal(t, 40.0, second.AvgHumidity)
	assert.Equal(t, 0.6, second.PrecipitationProbability)
	assert.Equal(t, 3.5, second.TotalRain)
	assert.Equal(t, 0.5, second.TotalSnow)
	assert.Equal(t, 3, second.SampleCount)
}

func TestGroupByDay_Empty(t *testing.T) {
	agg := NewForecastAggregator(DefaultAlertRules())
	assert.Empty(t, agg.GroupByDay("Delhi", nil))
}

func TestDetectAlerts_HighTemperature(t *testing.T) {
	agg := NewForecastAggregator(DefaultAlertRules())

	alerts := agg.DetectAlerts([]weather.ForecastSample{step(2, 12, 36)})

	require.Len(t, alerts, 1)
	assert.Equal(t, weather.AlertHighTemperature, alerts[0].Kind)
	assert.Equal(t, []time.Time{day.AddDate(0, 0, 2)}, alerts[0].Dates)
	assert.Equal(t, "Temperatures above 35°C expected on 2024-05-22", alerts[0].Message)

	assert.Empty(t, agg.DetectAlerts([]weather.ForecastSample{step(2, 12, 30)}))
}

func TestDetectAlerts_ThresholdIsStrict(t *testing.T) {
	agg := NewForecastAggregator(DefaultAlertRules())
	s := step(0, 0, 35)
	s.Rain3h = 10
	s.WindSpeed = 20

	assert.Empty(t, agg.DetectAlerts([]weather.ForecastSample{s}))
}

func TestDetectAlerts_IndependentKinds(t *testing.T) {
	agg := NewForecastAggregator(DefaultAlertRules())

	stormy := step(1, 0, 37)
	stormy.Rain3h = 12
	stormy.WindSpeed = 25
	hotAgain := step(0, 9, 38)
	hotSameDay := step(1, 6, 39)

	alerts := agg.DetectAlerts([]weather.ForecastSample{stormy, hotAgain, hotSameDay})

	require.Len(t, alerts, 3)
	assert.Equal(t, weather.AlertHighTemperature, alerts[0].Kind)
	assert.Equal(t, []time.Time{day, day.AddDate(0, 0, 1)}, alerts[0].Dates)
	assert.Equal(t, weather.AlertHeavyRain, alerts[1].Kind)
	assert.Equal(t, "Heavy rain expected on 2024-05-21", alerts[1].Message)
	assert.Equal(t, weather.AlertStrongWinds, alerts[2].Kind)
	assert.Equal(t, "Strong winds expected on 2024-05-21", alerts[2].Message)
}

func TestDetectAlerts_CustomRules(t *testing.T) {
	agg := NewForecastAggregator(AlertRules{
		TempThreshold:    95,
		RainThresholdMM:  5,
		WindThresholdMPS: 10,
		Unit:             weather.Fahrenheit,
	})

	s := step(0, 0, 96.5)
	s.Rain3h = 6

	alerts := agg.DetectAlerts([]weather.ForecastSample{s})

	require.Len(t, alerts, 2)
	assert.Equal(t, "Temperatures above 95°F expected on 2024-05-20", alerts[0].Message)
	assert.Equal(t, weather.AlertHeavyRain, alerts[1].Kind)
}
