package store

import (
	"errors"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/smukkama/weather-monitor/internal/weather"
)

// ErrMissingIdentity is returned when a sample has no city or no timestamp.
var ErrMissingIdentity = errors.New("sample is missing city or timestamp")

// Predicate selects samples for a window query.
type Predicate func(weather.Sample) bool

// OnDay matches samples whose UTC calendar day equals the day of date.
func OnDay(date time.Time) Predicate {
	day := weather.DateOf(date)
	return func(s weather.Sample) bool {
		return s.Date().Equal(day)
	}
}

// Since matches samples taken at or after t.
func Since(t time.Time) Predicate {
	return func(s weather.Sample) bool {
		return !s.Time().Before(t)
	}
}

// SampleStore buffers observation samples per city in arrival order.
// Samples are never mutated after Append; they leave the store only through EvictOlderThan.
type SampleStore struct {
	mu     sync.RWMutex
	clock  clockwork.Clock
	byCity map[string][]weather.Sample
}

// NewSampleStore creates an empty store. A nil clock means real time.
func NewSampleStore(clock clockwork.Clock) *SampleStore {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &SampleStore{
		clock:  clock,
		byCity: make(map[string][]weather.Sample),
	}
}

// Append stores a sample. Non-finite numeric fields are coerced to zero;
// a sample without city or timestamp is dropped with ErrMissingIdentity.
func (s *SampleStore) Append(sample weather.Sample) error {
	if sample.City == "" || sample.Timestamp == 0 {
		return ErrMissingIdentity
	}
	sample = sanitize(sample)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.byCity[sample.City] = append(s.byCity[sample.City], sample)
	return nil
}

// Window returns a copy of the city's samples that match pred, in arrival order.
func (s *SampleStore) Window(city string, pred Predicate) []weather.Sample {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []weather.Sample
	for _, sample := range s.byCity[city] {
		if pred == nil || pred(sample) {
			result = append(result, sample)
		}
	}
	return result
}

// EvictOlderThan removes, per city, every sample older than now minus retention.
// It returns the number of samples removed.
func (s *SampleStore) EvictOlderThan(retention time.Duration) int {
	keep := Since(s.clock.Now().Add(-retention))

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for city, samples := range s.byCity {
		// Arrival order is not time order, so filter rather than trim a prefix.
		kept := samples[:0:0]
		for _, sample := range samples {
			if keep(sample) {
				kept = append(kept, sample)
			}
		}
		removed += len(samples) - len(kept)

		if len(kept) == 0 {
			delete(s.byCity, city)
			continue
		}
		s.byCity[city] = kept
	}
	return removed
}

// Recent returns every city's samples taken within the last window.
func (s *SampleStore) Recent(window time.Duration) map[string][]weather.Sample {
	pred := Since(s.clock.Now().Add(-window))

	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make(map[string][]weather.Sample)
	for city, samples := range s.byCity {
		for _, sample := range samples {
			if pred(sample) {
				result[city] = append(result[city], sample)
			}
		}
	}
	return result
}

// Cities returns the cities with buffered samples, sorted.
func (s *SampleStore) Cities() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cities := make([]string, 0, len(s.byCity))
	for city := range s.byCity {
		cities = append(cities, city)
	}
	sort.Strings(cities)
	return cities
}

// Len returns the number of samples buffered for a city.
func (s *SampleStore) Len(city string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byCity[city])
}

// Total returns the number of samples buffered across all cities.
func (s *SampleStore) Total() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, samples := range s.byCity {
		n += len(samples)
	}
	return n
}

func sanitize(s weather.Sample) weather.Sample {
	for _, f := range []*float64{
		&s.Temperature, &s.FeelsLike, &s.TempMin, &s.TempMax,
		&s.Pressure, &s.Humidity, &s.WindSpeed, &s.WindDirection,
		&s.Clouds, &s.Visibility, &s.Rain1h, &s.Snow1h,
	} {
		*f = finiteOrZero(*f)
	}
	return s
}

func finiteOrZero(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
