package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"

	"github.com/smukkama/weather-monitor/internal/weather"
)

type Config struct {
	Monitor     MonitorConfig
	OpenWeather OpenWeatherConfig
	Database    DatabaseConfig
	Redis       RedisConfig
	Kafka       KafkaConfig
	SMTP        SMTPConfig
	HTTP        HTTPConfig
	Log         LogConfig
}

// MonitorConfig holds the polling and alerting options. The yaml keys are the
// option names accepted in the config file.
type MonitorConfig struct {
	Cities               []string         `yaml:"cities"`
	CountryCode          string           `yaml:"country_code"`
	IntervalSeconds      int              `yaml:"interval_seconds"`
	TempUnit             weather.TempUnit `yaml:"temp_unit"`
	TempThreshold        float64          `yaml:"temp_threshold"`
	ConsecutiveThreshold int              `yaml:"consecutive_threshold"`
	RainThresholdMM      float64          `yaml:"rain_threshold_mm"`
	WindThresholdMPS     float64          `yaml:"wind_threshold_mps"`
	RetentionDays        int              `yaml:"retention_days"`
	ForecastSchedule     string           `yaml:"forecast_schedule"`
}

// Interval returns the cooldown between sweeps.
func (m MonitorConfig) Interval() time.Duration {
	return time.Duration(m.IntervalSeconds) * time.Second
}

// Retention returns how long samples stay buffered.
func (m MonitorConfig) Retention() time.Duration {
	return time.Duration(m.RetentionDays) * 24 * time.Hour
}

type OpenWeatherConfig struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
	Enabled  bool
}

func (d DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode)
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	StateTTL time.Duration
}

type KafkaConfig struct {
	Brokers     []string
	TopicAlerts string
}

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	To       string
}

type HTTPConfig struct {
	Addr string
}

type LogConfig struct {
	Level  string
	Format string
}

// DefaultMonitorConfig returns the stock polling setup for six Indian metros.
func DefaultMonitorConfig() MonitorConfig {
	return MonitorConfig{
		Cities:               []string{"Delhi", "Mumbai", "Chennai", "Bengaluru", "Kolkata", "Hyderabad"},
		CountryCode:          "IN",
		IntervalSeconds:      300,
		TempUnit:             weather.Celsius,
		TempThreshold:        35,
		ConsecutiveThreshold: 2,
		RainThresholdMM:      10,
		WindThresholdMPS:     20,
		RetentionDays:        7,
		ForecastSchedule:     "0 * * * *",
	}
}

// Load builds the configuration from, in increasing priority: defaults, the YAML
// file named by CONFIG_FILE (config.yaml when unset, skipped if absent), and environment.
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not present)
	_ = godotenv.Load()

	monitor := DefaultMonitorConfig()
	path := getEnv("CONFIG_FILE", "config.yaml")
	if err := loadFile(path, &monitor); err != nil {
		return nil, err
	}
	applyMonitorEnv(&monitor)

	config := &Config{
		Monitor: monitor,
		OpenWeather: OpenWeatherConfig{
			APIKey:  getEnv("OPENWEATHERMAP_API_KEY", ""),
			BaseURL: getEnv("OPENWEATHERMAP_BASE_URL", "https://api.openweathermap.org/data/2.5"),
			Timeout: getEnvAsDuration("OPENWEATHERMAP_TIMEOUT", 10*time.Second),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "weather_user"),
			Password: getEnv("DB_PASSWORD", "weather_pass"),
			DBName:   getEnv("DB_NAME", "weather_db"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
			Enabled:  getEnv("DB_ENABLED", "true") == "true",
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			StateTTL: getEnvAsDuration("REDIS_STATE_TTL", 7*24*time.Hour),
		},
		Kafka: KafkaConfig{
			Brokers:     splitList(getEnv("KAFKA_BROKERS", "")),
			TopicAlerts: getEnv("KAFKA_TOPIC_ALERTS", "weather.alerts"),
		},
		SMTP: SMTPConfig{
			Host:     getEnv("SMTP_HOST", "smtp.gmail.com"),
			Port:     getEnvAsInt("SMTP_PORT", 587),
			Username: getEnv("SMTP_USERNAME", ""),
			Password: getEnv("SMTP_PASSWORD", ""),
			From:     getEnv("SMTP_FROM", "weather-monitor@example.com"),
			To:       getEnv("SMTP_TO", "admin@example.com"),
		},
		HTTP: HTTPConfig{
			Addr: getEnv("HTTP_ADDR", ":8080"),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	if err := config.Monitor.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate checks the monitor options for values the engine cannot run with.
func (m MonitorConfig) Validate() error {
	if len(m.Cities) == 0 {
		return errors.New("at least one city is required")
	}
	if m.IntervalSeconds <= 0 {
		return errors.New("interval_seconds must be positive")
	}
	if _, err := weather.ParseTempUnit(string(m.TempUnit)); err != nil {
		return err
	}
	if m.ConsecutiveThreshold < 1 {
		return errors.New("consecutive_threshold must be at least 1")
	}
	if m.RetentionDays <= 0 {
		return errors.New("retention_days must be positive")
	}
	if _, err := cron.ParseStandard(m.ForecastSchedule); err != nil {
		return fmt.Errorf("invalid forecast_schedule: %w", err)
	}
	return nil
}

// minFahrenheitThreshold is the lowest temp_threshold accepted without a
// warning when temp_unit is fahrenheit (50°F is 10°C).
const minFahrenheitThreshold = 50

// Warnings reports settings that are valid but probably not what was meant.
func (m MonitorConfig) Warnings() []string {
	var warnings []string
	if m.TempUnit == weather.Fahrenheit && m.TempThreshold < minFahrenheitThreshold {
		warnings = append(warnings, fmt.Sprintf(
			"temp_threshold %s is compared in fahrenheit; it looks like a celsius value",
			strconv.FormatFloat(m.TempThreshold, 'f', -1, 64)))
	}
	return warnings
}

func loadFile(path string, monitor *MonitorConfig) error {
	buf, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(buf, monitor); err != nil {
		return fmt.Errorf("parsing yaml: %w", err)
	}
	return nil
}

func applyMonitorEnv(m *MonitorConfig) {
	if v := getEnv("CITIES", ""); v != "" {
		m.Cities = splitList(v)
	}
	m.CountryCode = getEnv("COUNTRY_CODE", m.CountryCode)
	m.IntervalSeconds = getEnvAsInt("UPDATE_INTERVAL_SECONDS", m.IntervalSeconds)
	m.TempUnit = weather.TempUnit(getEnv("TEMP_UNIT", string(m.TempUnit)))
	m.TempThreshold = getEnvAsFloat("TEMP_THRESHOLD", m.TempThreshold)
	m.ConsecutiveThreshold = getEnvAsInt("CONSECUTIVE_THRESHOLD", m.ConsecutiveThreshold)
	m.RainThresholdMM = getEnvAsFloat("RAIN_THRESHOLD_MM", m.RainThresholdMM)
	m.WindThresholdMPS = getEnvAsFloat("WIND_THRESHOLD_MPS", m.WindThresholdMPS)
	m.RetentionDays = getEnvAsInt("RETENTION_DAYS", m.RetentionDays)
	m.ForecastSchedule = getEnv("FORECAST_SCHEDULE", m.ForecastSchedule)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
