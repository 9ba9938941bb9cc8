package aggregation

import (
	"math"

	"github.com/smukkama/weather-monitor/internal/weather"
)

// compassPoints are the 16 wind sectors, 22.5° each, starting at north.
var compassPoints = [16]string{
	"N", "NNE", "NE", "ENE", "E", "ESE", "SE", "SSE",
	"S", "SSW", "SW", "WSW", "W", "WNW", "NW", "NNW",
}

const sectorWidth = 22.5

// series accumulates mean/min/max over a stream of values.
type series struct {
	sum, min, max float64
	n             int
}

func (s *series) add(v float64) {
	if s.n == 0 || v < s.min {
		s.min = v
	}
	if s.n == 0 || v > s.max {
		s.max = v
	}
	s.sum += v
	s.n++
}

func (s *series) mean() float64 {
	if s.n == 0 {
		return 0
	}
	return s.sum / float64(s.n)
}

// Mode returns the most frequent value. Ties go to the value seen first.
// An empty input yields weather.Unknown.
func Mode(values []string) string {
	if len(values) == 0 {
		return weather.Unknown
	}

	counts := make(map[string]int, len(values))
	best, bestCount := "", 0
	for _, v := range values {
		counts[v]++
	}
	// Second pass in input order so the earliest value wins a tie.
	for _, v := range values {
		if c := counts[v]; c > bestCount {
			best, bestCount = v, c
		}
	}
	return best
}

// Sector maps a direction in degrees to one of the 16 compass labels.
// Directions are normalized into [0, 360) first, so 370° and 10° agree.
func Sector(degrees float64) (string, bool) {
	if math.IsNaN(degrees) || math.IsInf(degrees, 0) {
		return "", false
	}
	d := math.Mod(degrees, 360)
	if d < 0 {
		d += 360
	}
	idx := int(math.Floor(d/sectorWidth+0.5)) % len(compassPoints)
	return compassPoints[idx], true
}

// DominantDirection returns the modal compass sector of the given directions.
// It falls back to "N" when the input is empty or any direction is not a finite number.
func DominantDirection(degrees []float64) string {
	if len(degrees) == 0 {
		return compassPoints[0]
	}
	sectors := make([]string, 0, len(degrees))
	for _, d := range degrees {
		s, ok := Sector(d)
		if !ok {
			return compassPoints[0]
		}
		sectors = append(sectors, s)
	}
	return Mode(sectors)
}
