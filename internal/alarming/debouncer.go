package alarming

import (
	"fmt"
	"sort"
	"strconv"
	"sync"

	"github.com/smukkama/weather-monitor/internal/weather"
)

// Rule is a debounced threshold: a value must exceed Threshold on
// Consecutive observations in a row before the rule fires.
type Rule struct {
	Kind        weather.AlertKind
	Threshold   float64
	Consecutive int
}

// State is the breach counter for one city and alert kind.
type State struct {
	City  string            `json:"city"`
	Kind  weather.AlertKind `json:"kind"`
	Count int               `json:"count"`
}

type stateKey struct {
	city string
	kind weather.AlertKind
}

// Debouncer counts consecutive threshold breaches per city and alert kind.
//
// The counter is not reset when a rule fires, so once the run length is reached
// every further breaching observation fires again until a non-breaching one arrives.
type Debouncer struct {
	mu     sync.Mutex
	rules  map[weather.AlertKind]Rule
	counts map[stateKey]int
	unit   weather.TempUnit
}

// NewDebouncer creates a debouncer with a High Temperature rule using the given
// threshold and run length. Extra rules can be added with AddRule.
func NewDebouncer(threshold float64, consecutive int, unit weather.TempUnit) *Debouncer {
	d := &Debouncer{
		rules:  make(map[weather.AlertKind]Rule),
		counts: make(map[stateKey]int),
		unit:   unit,
	}
	d.AddRule(Rule{Kind: weather.AlertHighTemperature, Threshold: threshold, Consecutive: consecutive})
	return d
}

// AddRule registers or replaces the rule for its kind. A run length below 1 is treated as 1.
func (d *Debouncer) AddRule(r Rule) {
	if r.Consecutive < 1 {
		r.Consecutive = 1
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.rules[r.Kind] = r
}

// Rule returns the rule registered for kind.
func (d *Debouncer) Rule(kind weather.AlertKind) (Rule, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	r, ok := d.rules[kind]
	return r, ok
}

// Observe feeds a current temperature reading for a city and reports whether
// the High Temperature alert should fire.
func (d *Debouncer) Observe(city string, temperature float64) bool {
	return d.ObserveKind(city, weather.AlertHighTemperature, temperature)
}

// ObserveKind feeds a reading into the rule for kind. Unknown kinds never fire.
func (d *Debouncer) ObserveKind(city string, kind weather.AlertKind, value float64) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	rule, ok := d.rules[kind]
	if !ok {
		return false
	}

	key := stateKey{city: city, kind: kind}
	if value > rule.Threshold {
		d.counts[key]++
		return d.counts[key] >= rule.Consecutive
	}

	d.counts[key] = 0
	return false
}

// Count returns the current breach run length for a city and kind.
func (d *Debouncer) Count(city string, kind weather.AlertKind) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.counts[stateKey{city: city, kind: kind}]
}

// FormatAlert renders the High Temperature alert message. It does not touch state.
func (d *Debouncer) FormatAlert(city string, temperature float64) string {
	rule, _ := d.Rule(weather.AlertHighTemperature)
	symbol := d.unit.Symbol()
	return fmt.Sprintf(
		"ALERT: Temperature in %s has exceeded %s%s for %d consecutive updates.\nCurrent temperature: %.1f%s",
		city, strconv.FormatFloat(rule.Threshold, 'f', -1, 64), symbol, rule.Consecutive, temperature, symbol,
	)
}

// Snapshot returns every non-zero counter, ordered by city then kind.
func (d *Debouncer) Snapshot() []State {
	d.mu.Lock()
	defer d.mu.Unlock()

	states := make([]State, 0, len(d.counts))
	for key, count := range d.counts {
		if count == 0 {
			continue
		}
		states = append(states, State{City: key.city, Kind: key.kind, Count: count})
	}
	sort.Slice(states, func(i, j int) bool {
		if states[i].City != states[j].City {
			return states[i].City < states[j].City
		}
		return states[i].Kind < states[j].Kind
	})
	return states
}

// CityStates returns the counters of one city, including zeros, for every rule.
func (d *Debouncer) CityStates(city string) []State {
	d.mu.Lock()
	defer d.mu.Unlock()

	states := make([]State, 0, len(d.rules))
	for kind := range d.rules {
		states = append(states, State{City: city, Kind: kind, Count: d.counts[stateKey{city: city, kind: kind}]})
	}
	sort.Slice(states, func(i, j int) bool { return states[i].Kind < states[j].Kind })
	return states
}

// Restore loads previously checkpointed counters, overwriting current ones.
func (d *Debouncer) Restore(states []State) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, s := range states {
		d.counts[stateKey{city: s.City, kind: s.Kind}] = s.Count
	}
}
