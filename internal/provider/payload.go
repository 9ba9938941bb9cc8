package provider

import (
	"errors"
	"fmt"

	"github.com/smukkama/weather-monitor/internal/weather"
)

// ErrMissingField is returned when a provider payload lacks a required key.
var ErrMissingField = errors.New("missing required field")

type conditionPayload struct {
	Main        string `json:"main"`
	Description string `json:"description"`
}

type mainPayload struct {
	Temp      float64 `json:"temp"`
	FeelsLike float64 `json:"feels_like"`
	TempMin   float64 `json:"temp_min"`
	TempMax   float64 `json:"temp_max"`
	Pressure  float64 `json:"pressure"`
	Humidity  float64 `json:"humidity"`
}

type windPayload struct {
	Speed float64 `json:"speed"`
	Deg   float64 `json:"deg"`
}

type cloudsPayload struct {
	All float64 `json:"all"`
}

type precipPayload struct {
	OneHour   float64 `json:"1h"`
	ThreeHour float64 `json:"3h"`
}

// currentPayload mirrors the /weather response. Pointers mark the keys whose
// absence makes the payload unusable.
type currentPayload struct {
	Name       *string            `json:"name"`
	Dt         *int64             `json:"dt"`
	Weather    []conditionPayload `json:"weather"`
	Main       *mainPayload       `json:"main"`
	Wind       windPayload        `json:"wind"`
	Clouds     cloudsPayload      `json:"clouds"`
	Visibility float64            `json:"visibility"`
	Rain       precipPayload      `json:"rain"`
	Snow       precipPayload      `json:"snow"`
}

type forecastItemPayload struct {
	Dt      *int64             `json:"dt"`
	Weather []conditionPayload `json:"weather"`
	Main    *mainPayload       `json:"main"`
	Wind    windPayload        `json:"wind"`
	Clouds  cloudsPayload      `json:"clouds"`
	Pop     float64            `json:"pop"`
	Rain    precipPayload      `json:"rain"`
	Snow    precipPayload      `json:"snow"`
}

// forecastPayload mirrors the /forecast response (3-hour steps).
type forecastPayload struct {
	City *struct {
		Name *string `json:"name"`
	} `json:"city"`
	List []forecastItemPayload `json:"list"`
}

func missing(field string) error {
	return fmt.Errorf("%w: %s", ErrMissingField, field)
}

// toSample normalizes a current-conditions payload. Wind speed is converted to
// m/s when the provider reported mph.
func (p currentPayload) toSample(city string, unit weather.TempUnit) (weather.Sample, error) {
	switch {
	case p.Name == nil:
		return weather.Sample{}, missing("name")
	case p.Dt == nil:
		return weather.Sample{}, missing("dt")
	case len(p.Weather) == 0:
		return weather.Sample{}, missing("weather[0]")
	case p.Main == nil:
		return weather.Sample{}, missing("main")
	}

	return weather.Sample{
		City:          city,
		Timestamp:     *p.Dt,
		Main:          p.Weather[0].Main,
		Description:   p.Weather[0].Description,
		Temperature:   p.Main.Temp,
		FeelsLike:     p.Main.FeelsLike,
		TempMin:       p.Main.TempMin,
		TempMax:       p.Main.TempMax,
		Pressure:      p.Main.Pressure,
		Humidity:      p.Main.Humidity,
		WindSpeed:     windSpeed(p.Wind.Speed, unit),
		WindDirection: p.Wind.Deg,
		Clouds:        p.Clouds.All,
		Visibility:    p.Visibility,
		Rain1h:        p.Rain.OneHour,
		Snow1h:        p.Snow.OneHour,
	}, nil
}

func (p forecastPayload) toSamples(city string, unit weather.TempUnit) ([]weather.ForecastSample, error) {
	if p.City == nil || p.City.Name == nil {
		return nil, missing("city.name")
	}

	samples := make([]weather.ForecastSample, 0, len(p.List))
	for i, item := range p.List {
		switch {
		case item.Dt == nil:
			return nil, missing(fmt.Sprintf("list[%d].dt", i))
		case len(item.Weather) == 0:
			return nil, missing(fmt.Sprintf("list[%d].weather[0]", i))
		case item.Main == nil:
			return nil, missing(fmt.Sprintf("list[%d].main", i))
		}

		samples = append(samples, weather.ForecastSample{
			City:          city,
			Timestamp:     *item.Dt,
			Main:          item.Weather[0].Main,
			Description:   item.Weather[0].Description,
			Temperature:   item.Main.Temp,
			FeelsLike:     item.Main.FeelsLike,
			TempMin:       item.Main.TempMin,
			TempMax:       item.Main.TempMax,
			Pressure:      item.Main.Pressure,
			Humidity:      item.Main.Humidity,
			WindSpeed:     windSpeed(item.Wind.Speed, unit),
			WindDirection: item.Wind.Deg,
			Clouds:        item.Clouds.All,
			Pop:           item.Pop,
			Rain3h:        item.Rain.ThreeHour,
			Snow3h:        item.Snow.ThreeHour,
		})
	}
	return samples, nil
}

func windSpeed(v float64, unit weather.TempUnit) float64 {
	if unit == weather.Fahrenheit {
		return weather.MphToMps(v)
	}
	return v
}
