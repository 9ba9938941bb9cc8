package database

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smukkama/weather-monitor/internal/weather"
)

func TestRowFromSummary_RoundTrip(t *testing.T) {
	s := weather.DailySummary{
		Date:                  time.Date(2024, 5, 21, 17, 30, 0, 0, time.UTC),
		City:                  "Delhi",
		AvgTemp:               22,
		MaxTemp:               24,
		MinTemp:               20,
		DominantWeather:       "Clear",
		DetailedDescription:   "clear sky",
		AvgHumidity:           40,
		AvgPressure:           1008,
		AvgWindSpeed:          3,
		MaxWindSpeed:          5,
		DominantWindDirection: "NW",
		TotalRain:             1.2,
		AvgClouds:             10,
		AvgVisibility:         8000,
		SampleCount:           3,
	}

	r := rowFromSummary("Delhi", s)
	assert.Equal(t, time.Date(2024, 5, 21, 0, 0, 0, 0, time.UTC), r.Date)
	assert.Equal(t, "clear sky", r.Description)
	assert.Equal(t, "NW", r.WindDirection)

	back := r.Summary()
	s.Date = weather.DateOf(s.Date)
	assert.Equal(t, s, back)
}

func TestMigrationFiles(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"002_alerts.sql", "001_init.sql", "README.md"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("--"), 0o600))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "003_dir.sql"), 0o700))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)

	assert.Equal(t, []string{"001_init.sql", "002_alerts.sql"}, migrationFiles(entries))
}

func TestRepositoryMigrationsPresent(t *testing.T) {
	entries, err := os.ReadDir(filepath.Join("..", "..", "migrations"))
	require.NoError(t, err)

	files := migrationFiles(entries)
	require.NotEmpty(t, files)

	content, err := os.ReadFile(filepath.Join("..", "..", "migrations", files[0]))
	require.NoError(t, err)
	assert.Contains(t, string(content), "UNIQUE (city, date)")
	assert.Contains(t, string(content), "alerts_log")
}
