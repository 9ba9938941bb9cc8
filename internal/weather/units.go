package weather

import "fmt"

// TempUnit is the temperature unit samples are reported in.
type TempUnit string

const (
	Celsius    TempUnit = "celsius"
	Fahrenheit TempUnit = "fahrenheit"
)

// ParseTempUnit validates a configured unit name.
func ParseTempUnit(s string) (TempUnit, error) {
	switch TempUnit(s) {
	case Celsius, Fahrenheit:
		return TempUnit(s), nil
	default:
		return "", fmt.Errorf("unknown temperature unit %q (expected celsius or fahrenheit)", s)
	}
}

// Symbol returns the display suffix for the unit.
func (u TempUnit) Symbol() string {
	if u == Fahrenheit {
		return "°F"
	}
	return "°C"
}

// ProviderUnits returns the OpenWeatherMap "units" query value.
func (u TempUnit) ProviderUnits() string {
	if u == Fahrenheit {
		return "imperial"
	}
	return "metric"
}

// MphToMps converts miles per hour to meters per second.
func MphToMps(mph float64) float64 {
	return mph * 0.44704
}
