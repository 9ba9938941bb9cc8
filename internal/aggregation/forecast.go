package aggregation

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/smukkama/weather-monitor/internal/weather"
)

// AlertRules holds the forecast alert thresholds. A step must strictly exceed a threshold.
type AlertRules struct {
	TempThreshold    float64
	RainThresholdMM  float64
	WindThresholdMPS float64
	Unit             weather.TempUnit
}

// DefaultAlertRules returns the stock thresholds: 35°, 10 mm per 3h, 20 m/s.
func DefaultAlertRules() AlertRules {
	return AlertRules{
		TempThreshold:    35,
		RainThresholdMM:  10,
		WindThresholdMPS: 20,
		Unit:             weather.Celsius,
	}
}

// Threshold returns the threshold that the rule for kind compares against.
func (r AlertRules) Threshold(kind weather.AlertKind) float64 {
	switch kind {
	case weather.AlertHeavyRain:
		return r.RainThresholdMM
	case weather.AlertStrongWinds:
		return r.WindThresholdMPS
	default:
		return r.TempThreshold
	}
}

// ForecastAggregator summarizes forecast steps and evaluates forecast alert rules.
// It holds no per-call state.
type ForecastAggregator struct {
	rules AlertRules
}

// NewForecastAggregator creates a forecast aggregator with the given rules.
func NewForecastAggregator(rules AlertRules) *ForecastAggregator {
	return &ForecastAggregator{rules: rules}
}

// Rules returns the configured alert thresholds.
func (f *ForecastAggregator) Rules() AlertRules {
	return f.rules
}

// GroupByDay buckets forecast steps by UTC calendar day and summarizes each bucket,
// returning the days in ascending order.
func (f *ForecastAggregator) GroupByDay(city string, samples []weather.ForecastSample) []weather.ForecastDailySummary {
	buckets := make(map[time.Time][]weather.ForecastSample)
	for _, s := range samples {
		day := s.Date()
		buckets[day] = append(buckets[day], s)
	}

	days := make([]time.Time, 0, len(buckets))
	for day := range buckets {
		days = append(days, day)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })

	summaries := make([]weather.ForecastDailySummary, 0, len(days))
	for _, day := range days {
		summaries = append(summaries, summarizeForecastDay(city, day, buckets[day]))
	}
	return summaries
}

func summarizeForecastDay(city string, day time.Time, steps []weather.ForecastSample) weather.ForecastDailySummary {
	var temp, humidity, wind series
	var pop, rain, snow float64
	mains := make([]string, 0, len(steps))

	for i, s := range steps {
		temp.add(s.Temperature)
		humidity.add(s.Humidity)
		wind.add(s.WindSpeed)
		if i == 0 || s.Pop > pop {
			pop = s.Pop
		}
		rain += s.Rain3h
		snow += s.Snow3h
		mains = append(mains, s.Main)
	}

	return weather.ForecastDailySummary{
		Date:                     day,
		City:                     city,
		AvgTemp:                  temp.mean(),
		MaxTemp:                  temp.max,
		MinTemp:                  temp.min,
		DominantWeather:          Mode(mains),
		AvgHumidity:              humidity.mean(),
		AvgWindSpeed:             wind.mean(),
		PrecipitationProbability: pop,
		TotalRain:                rain,
		TotalSnow:                snow,
		SampleCount:              len(steps),
	}
}

// DetectAlerts evaluates every rule over the full input. Rules are independent,
// so one step can contribute to several alerts. Alerts come back in the order
// High Temperature, Heavy Rain, Strong Winds, each listing its distinct dates ascending.
func (f *ForecastAggregator) DetectAlerts(samples []weather.ForecastSample) []weather.ForecastAlert {
	var alerts []weather.ForecastAlert

	if dates := matchingDates(samples, func(s weather.ForecastSample) bool {
		return s.Temperature > f.rules.TempThreshold
	}); len(dates) > 0 {
		alerts = append(alerts, weather.ForecastAlert{
			Kind:  weather.AlertHighTemperature,
			Dates: dates,
			Message: fmt.Sprintf("Temperatures above %s%s expected on %s",
				formatThreshold(f.rules.TempThreshold), f.rules.Unit.Symbol(), joinDates(dates)),
		})
	}

	if dates := matchingDates(samples, func(s weather.ForecastSample) bool {
		return s.Rain3h > f.rules.RainThresholdMM
	}); len(dates) > 0 {
		alerts = append(alerts, weather.ForecastAlert{
			Kind:    weather.AlertHeavyRain,
			Dates:   dates,
			Message: fmt.Sprintf("Heavy rain expected on %s", joinDates(dates)),
		})
	}

	if dates := matchingDates(samples, func(s weather.ForecastSample) bool {
		return s.WindSpeed > f.rules.WindThresholdMPS
	}); len(dates) > 0 {
		alerts = append(alerts, weather.ForecastAlert{
			Kind:    weather.AlertStrongWinds,
			Dates:   dates,
			Message: fmt.Sprintf("Strong winds expected on %s", joinDates(dates)),
		})
	}

	return alerts
}

func matchingDates(samples []weather.ForecastSample, match func(weather.ForecastSample) bool) []time.Time {
	seen := make(map[time.Time]bool)
	var dates []time.Time
	for _, s := range samples {
		if !match(s) {
			continue
		}
		day := s.Date()
		if !seen[day] {
			seen[day] = true
			dates = append(dates, day)
		}
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
	return dates
}

func joinDates(dates []time.Time) string {
	parts := make([]string, len(dates))
	for i, d := range dates {
		parts[i] = d.Format(weather.DateLayout)
	}
	return strings.Join(parts, ", ")
}

func formatThreshold(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
