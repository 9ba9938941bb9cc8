package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "github.com/lib/pq"

	"github.com/smukkama/weather-monitor/internal/weather"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("not found")

// DB wraps the database connection
type DB struct {
	*sql.DB
}

// Connect establishes a connection to the database
func Connect(ctx context.Context, connectionString string) (*DB, error) {
	db, err := sql.Open("postgres", connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)

	return &DB{db}, nil
}

// RunMigrations executes every .sql file in migrationsDir in name order and
// returns the files it ran. The files are expected to be idempotent.
func (db *DB) RunMigrations(ctx context.Context, migrationsDir string) ([]string, error) {
	files, err := os.ReadDir(migrationsDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read migrations directory: %w", err)
	}

	sqlFiles := migrationFiles(files)
	for _, filename := range sqlFiles {
		content, err := os.ReadFile(filepath.Join(migrationsDir, filename))
		if err != nil {
			return nil, fmt.Errorf("failed to read migration %s: %w", filename, err)
		}
		if _, err := db.ExecContext(ctx, string(content)); err != nil {
			return nil, fmt.Errorf("failed to execute migration %s: %w", filename, err)
		}
	}
	return sqlFiles, nil
}

func migrationFiles(entries []os.DirEntry) []string {
	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names
}

const summaryColumns = `id, city, date, avg_temp, max_temp, min_temp, dominant_weather, description,
	avg_humidity, avg_pressure, avg_wind_speed, max_wind_speed, wind_direction,
	total_rain, total_snow, avg_clouds, avg_visibility, sample_count, last_updated`

// UpsertDailySummary inserts or overwrites the summary for (city, date) and
// stamps last_updated.
func (db *DB) UpsertDailySummary(ctx context.Context, city string, s weather.DailySummary) error {
	r := rowFromSummary(city, s)
	query := `
		INSERT INTO daily_weather_summary (
			city, date, avg_temp, max_temp, min_temp, dominant_weather, description,
			avg_humidity, avg_pressure, avg_wind_speed, max_wind_speed, wind_direction,
			total_rain, total_snow, avg_clouds, avg_visibility, sample_count, last_updated
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, NOW())
		ON CONFLICT (city, date) DO UPDATE
		SET avg_temp = EXCLUDED.avg_temp,
		    max_temp = EXCLUDED.max_temp,
		    min_temp = EXCLUDED.min_temp,
		    dominant_weather = EXCLUDED.dominant_weather,
		    description = EXCLUDED.description,
		    avg_humidity = EXCLUDED.avg_humidity,
		    avg_pressure = EXCLUDED.avg_pressure,
		    avg_wind_speed = EXCLUDED.avg_wind_speed,
		    max_wind_speed = EXCLUDED.max_wind_speed,
		    wind_direction = EXCLUDED.wind_direction,
		    total_rain = EXCLUDED.total_rain,
		    total_snow = EXCLUDED.total_snow,
		    avg_clouds = EXCLUDED.avg_clouds,
		    avg_visibility = EXCLUDED.avg_visibility,
		    sample_count = EXCLUDED.sample_count,
		    last_updated = NOW()
	`

	_, err := db.ExecContext(ctx, query,
		r.City, r.Date, r.AvgTemp, r.MaxTemp, r.MinTemp, r.DominantWeather, r.Description,
		r.AvgHumidity, r.AvgPressure, r.AvgWindSpeed, r.MaxWindSpeed, r.WindDirection,
		r.TotalRain, r.TotalSnow, r.AvgClouds, r.AvgVisibility, r.SampleCount,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert summary for %s on %s: %w", city, r.Date.Format(weather.DateLayout), err)
	}
	return nil
}

// GetDailySummaries returns the summaries of every city with from <= date <= to,
// ordered by date then city.
func (db *DB) GetDailySummaries(ctx context.Context, from, to time.Time) ([]weather.DailySummary, error) {
	query := `SELECT ` + summaryColumns + `
		FROM daily_weather_summary
		WHERE date BETWEEN $1 AND $2
		ORDER BY date, city`
	return db.querySummaries(ctx, query, weather.DateOf(from), weather.DateOf(to))
}

// GetCitySummaries returns one city's summaries with from <= date <= to, ordered by date.
func (db *DB) GetCitySummaries(ctx context.Context, city string, from, to time.Time) ([]weather.DailySummary, error) {
	query := `SELECT ` + summaryColumns + `
		FROM daily_weather_summary
		WHERE city = $1 AND date BETWEEN $2 AND $3
		ORDER BY date`
	return db.querySummaries(ctx, query, city, weather.DateOf(from), weather.DateOf(to))
}

// GetLatestSummary returns the most recent summary for city, or ErrNotFound.
func (db *DB) GetLatestSummary(ctx context.Context, city string) (weather.DailySummary, error) {
	query := `SELECT ` + summaryColumns + `
		FROM daily_weather_summary
		WHERE city = $1
		ORDER BY date DESC
		LIMIT 1`

	r, err := scanSummary(db.QueryRowContext(ctx, query, city))
	if errors.Is(err, sql.ErrNoRows) {
		return weather.DailySummary{}, fmt.Errorf("latest summary for %s: %w", city, ErrNotFound)
	}
	if err != nil {
		return weather.DailySummary{}, err
	}
	return r.Summary(), nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSummary(row rowScanner) (SummaryRow, error) {
	var r SummaryRow
	err := row.Scan(
		&r.ID, &r.City, &r.Date, &r.AvgTemp, &r.MaxTemp, &r.MinTemp, &r.DominantWeather, &r.Description,
		&r.AvgHumidity, &r.AvgPressure, &r.AvgWindSpeed, &r.MaxWindSpeed, &r.WindDirection,
		&r.TotalRain, &r.TotalSnow, &r.AvgClouds, &r.AvgVisibility, &r.SampleCount, &r.LastUpdated,
	)
	return r, err
}

func (db *DB) querySummaries(ctx context.Context, query string, args ...any) ([]weather.DailySummary, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query summaries: %w", err)
	}
	defer rows.Close()

	summaries := []weather.DailySummary{}
	for rows.Next() {
		r, err := scanSummary(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan summary: %w", err)
		}
		summaries = append(summaries, r.Summary())
	}
	return summaries, rows.Err()
}

// InsertAlertLogs writes a batch of alert events in one transaction. Events
// already present (same alert_id, e.g. a redelivered message) are skipped.
func (db *DB) InsertAlertLogs(ctx context.Context, logs []AlertLog) error {
	if len(logs) == 0 {
		return nil
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO alerts_log (
			alert_id, alert_type, city, kind, value, threshold, message, dates, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (alert_id) DO NOTHING
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, l := range logs {
		if _, err := stmt.ExecContext(ctx,
			l.AlertID, l.Type, l.City, l.Kind, l.Value, l.Threshold, l.Message, l.Dates, l.CreatedAt,
		); err != nil {
			return fmt.Errorf("failed to insert alert %s: %w", l.AlertID, err)
		}
	}

	return tx.Commit()
}
