package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config captures configuration values for the timetable service. Values come
// from an optional YAML file overlaid by environment variables; the
// environment always wins.
type Config struct {
	HTTPPort      int           `yaml:"http_port"`
	SQLiteDSN     string        `yaml:"sqlite_dsn"`
	Timezone      string        `yaml:"timezone"`
	ExpansionCap  int           `yaml:"expansion_cap"`
	ReminderLead  time.Duration `yaml:"reminder_lead"`
	SweepInterval time.Duration `yaml:"sweep_interval"`
}

// Load parses configuration from the current process environment, reading the
// YAML file named by SCHEDULER_CONFIG_FILE first when set.
//
// The loader applies sensible defaults for optional fields while validating
// provided values.
func Load() (Config, error) {
	cfg := Config{
		HTTPPort:      8080,
		SQLiteDSN:     "file:scheduler.db?_foreign_keys=on",
		Timezone:      "UTC",
		ExpansionCap:  366,
		ReminderLead:  24 * time.Hour,
		SweepInterval: time.Minute,
	}

	if path := strings.TrimSpace(os.Getenv("SCHEDULER_CONFIG_FILE")); path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}

	invalid := make([]string, 0, 2)

	if portValue := strings.TrimSpace(os.Getenv("SCHEDULER_HTTP_PORT")); portValue != "" {
		port, err := strconv.Atoi(portValue)
		if err != nil || port <= 0 {
			invalid = append(invalid, "SCHEDULER_HTTP_PORT")
		} else {
			cfg.HTTPPort = port
		}
	}

	if dsn := strings.TrimSpace(os.Getenv("SCHEDULER_SQLITE_DSN")); dsn != "" {
		cfg.SQLiteDSN = dsn
	}

	if tz := strings.TrimSpace(os.Getenv("SCHEDULER_TIMEZONE")); tz != "" {
		cfg.Timezone = tz
	}

	if capValue := strings.TrimSpace(os.Getenv("SCHEDULER_EXPANSION_CAP")); capValue != "" {
		expansionCap, err := strconv.Atoi(capValue)
		if err != nil || expansionCap <= 0 {
			invalid = append(invalid, "SCHEDULER_EXPANSION_CAP")
		} else {
			cfg.ExpansionCap = expansionCap
		}
	}

	if leadValue := strings.TrimSpace(os.Getenv("SCHEDULER_REMINDER_LEAD")); leadValue != "" {
		lead, err := time.ParseDuration(leadValue)
		if err != nil || lead <= 0 {
			invalid = append(invalid, "SCHEDULER_REMINDER_LEAD")
		} else {
			cfg.ReminderLead = lead
		}
	}

	if intervalValue := strings.TrimSpace(os.Getenv("SCHEDULER_SWEEP_INTERVAL")); intervalValue != "" {
		interval, err := time.ParseDuration(intervalValue)
		if err != nil || interval <= 0 {
			invalid = append(invalid, "SCHEDULER_SWEEP_INTERVAL")
		} else {
			cfg.SweepInterval = interval
		}
	}

	if len(invalid) > 0 {
		return Config{}, fmt.Errorf("invalid environment variable values: %s", strings.Join(invalid, ", "))
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func (c Config) validate() error {
	if c.HTTPPort <= 0 {
		return fmt.Errorf("http_port must be positive")
	}
	if strings.TrimSpace(c.SQLiteDSN) == "" {
		return fmt.Errorf("sqlite_dsn must not be empty")
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("unknown timezone %q", c.Timezone)
	}
	if c.ExpansionCap <= 0 {
		return fmt.Errorf("expansion_cap must be positive")
	}
	if c.ReminderLead <= 0 {
		return fmt.Errorf("reminder_lead must be positive")
	}
	if c.SweepInterval <= 0 {
		return fmt.Errorf("sweep_interval must be positive")
	}
	return nil
}
