package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Database struct {
		Path string `yaml:"path"`
	} `yaml:"database"`

	Redis struct {
		Address         string `yaml:"address"`
		Password        string `yaml:"password"`
		DB              int    `yaml:"db"`
		RulesTTLSeconds int    `yaml:"rules_ttl_seconds"`
	} `yaml:"redis"`

	API struct {
		Port          int     `yaml:"port"`
		RatePerSecond float64 `yaml:"rate_per_second"`
		RateBurst     int     `yaml:"rate_burst"`
	} `yaml:"api"`

	Monitoring struct {
		HealthCheckPort   int  `yaml:"health_check_port"`
		PrometheusEnabled bool `yaml:"prometheus_enabled"`
		PrometheusPort    int  `yaml:"prometheus_port"`
	} `yaml:"monitoring"`

	Facility struct {
		Timezone            string `yaml:"timezone"`
		SlotDurationMinutes int    `yaml:"slot_duration_minutes"`
		MaxGuests           int    `yaml:"max_guests"`
		AutoConfirm         bool   `yaml:"auto_confirm"`
		MinNoticeHours      int    `yaml:"min_notice_hours"`
		MaxAdvanceDays      int    `yaml:"max_advance_days"`
		DefaultOpen         string `yaml:"default_open"`
		DefaultClose        string `yaml:"default_close"`
	} `yaml:"facility"`

	Booking struct {
		LockTimeoutMillis int `yaml:"lock_timeout_millis"`
		BusyRetries       int `yaml:"busy_retries"`
		BusyBackoffMillis int `yaml:"busy_backoff_millis"`
	} `yaml:"booking"`

	Audit struct {
		Enabled       bool   `yaml:"enabled"`
		ExportPath    string `yaml:"export_path"`
		IntervalHours int    `yaml:"interval_hours"`
	} `yaml:"audit"`

	Backup struct {
		Enabled       bool   `yaml:"enabled"`
		StoragePath   string `yaml:"storage_path"`
		IntervalHours int    `yaml:"interval_hours"`
		RetentionDays int    `yaml:"retention_days"`
	} `yaml:"backup"`
}

func Load(path string) (*Config, error) {
	if path == "" {
		path = "configs/config.yaml"
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Support ${ENV_VAR} placeholders in YAML config.
	data = []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err = yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	cfg.fillDefaults()

	if err = cfg.Validate(); err != nil {
		return nil, err
	}

	if err = os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) fillDefaults() {
	if c.Database.Path == "" {
		c.Database.Path = "data/clubsched.db"
	}
	if c.Facility.Timezone == "" {
		c.Facility.Timezone = "UTC"
	}
	if c.Facility.SlotDurationMinutes == 0 {
		c.Facility.SlotDurationMinutes = 60
	}
	if c.Facility.MaxGuests == 0 {
		c.Facility.MaxGuests = 4
	}
	if c.Facility.DefaultOpen == "" {
		c.Facility.DefaultOpen = "09:00"
	}
	if c.Facility.DefaultClose == "" {
		c.Facility.DefaultClose = "17:00"
	}
	if c.Booking.LockTimeoutMillis == 0 {
		c.Booking.LockTimeoutMillis = 2000
	}
	if c.Booking.BusyRetries == 0 {
		c.Booking.BusyRetries = 2
	}
	if c.Booking.BusyBackoffMillis == 0 {
		c.Booking.BusyBackoffMillis = 50
	}
	if c.API.RatePerSecond == 0 {
		c.API.RatePerSecond = 20
	}
	if c.API.RateBurst == 0 {
		c.API.RateBurst = 40
	}
	if c.Redis.RulesTTLSeconds == 0 {
		c.Redis.RulesTTLSeconds = 30
	}
	if c.Audit.IntervalHours == 0 {
		c.Audit.IntervalHours = 24
	}
	if c.Audit.ExportPath == "" {
		c.Audit.ExportPath = "data/exports"
	}
	if c.Backup.StoragePath == "" {
		c.Backup.StoragePath = "data/backups"
	}
	if c.Backup.IntervalHours == 0 {
		c.Backup.IntervalHours = 24
	}
	if c.Backup.RetentionDays == 0 {
		c.Backup.RetentionDays = 14
	}
}

// Validate rejects malformed facility configuration outright. A config that
// fails here is never partially applied.
func (c *Config) Validate() error {
	if c.Facility.SlotDurationMinutes <= 0 {
		return fmt.Errorf("facility.slot_duration_minutes must be positive, got %d", c.Facility.SlotDurationMinutes)
	}
	if c.Facility.MaxGuests <= 0 {
		return fmt.Errorf("facility.max_guests must be positive, got %d", c.Facility.MaxGuests)
	}
	if c.Facility.MinNoticeHours < 0 {
		return fmt.Errorf("facility.min_notice_hours must not be negative, got %d", c.Facility.MinNoticeHours)
	}
	if c.Facility.MaxAdvanceDays < 0 {
		return fmt.Errorf("facility.max_advance_days must not be negative, got %d", c.Facility.MaxAdvanceDays)
	}
	if _, err := time.LoadLocation(c.Facility.Timezone); err != nil {
		return fmt.Errorf("facility.timezone: %w", err)
	}
	for _, hhmm := range []string{c.Facility.DefaultOpen, c.Facility.DefaultClose} {
		if _, err := time.Parse("15:04", hhmm); err != nil {
			return fmt.Errorf("facility default hours: %w", err)
		}
	}
	if c.Facility.DefaultOpen >= c.Facility.DefaultClose {
		return fmt.Errorf("facility default hours: open %s must be before close %s", c.Facility.DefaultOpen, c.Facility.DefaultClose)
	}
	return nil
}

// Location returns the facility timezone. Validate guarantees it loads.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Facility.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func (c *Config) SlotDuration() time.Duration {
	return time.Duration(c.Facility.SlotDurationMinutes) * time.Minute
}

func (c *Config) MinNotice() time.Duration {
	return time.Duration(c.Facility.MinNoticeHours) * time.Hour
}

func (c *Config) MaxAdvance() time.Duration {
	return time.Duration(c.Facility.MaxAdvanceDays) * 24 * time.Hour
}

func (c *Config) LockTimeout() time.Duration {
	return time.Duration(c.Booking.LockTimeoutMillis) * time.Millisecond
}

func (c *Config) BusyBackoff() time.Duration {
	return time.Duration(c.Booking.BusyBackoffMillis) * time.Millisecond
}

func (c *Config) RulesTTL() time.Duration {
	return time.Duration(c.Redis.RulesTTLSeconds) * time.Second
}
