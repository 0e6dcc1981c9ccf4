package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	NATS     NATSConfig     `yaml:"nats"`
	MySky    MySkyConfig    `yaml:"mysky"`
	Scoring  ScoringConfig  `yaml:"scoring"`
	Safety   SafetyConfig   `yaml:"safety"`
	Balance  BalanceConfig  `yaml:"balance"`
	Logging  LoggingConfig  `yaml:"logging"`
}

type ServerConfig struct {
	Port        int    `yaml:"port"`
	MetricsPort int    `yaml:"metrics_port"`
	AdminToken  string `yaml:"admin_token"`
}

type DatabaseConfig struct {
	URL string `yaml:"url"`
}

type NATSConfig struct {
	URL string `yaml:"url"`
}

type MySkyConfig struct {
	URL   string `yaml:"url"`
	Token string `yaml:"token"`
}

type ScoringConfig struct {
	Weights ScoringWeights `yaml:"weights"`
	// SafetyMode is "alert-penalty" or "display-only".
	SafetyMode string `yaml:"safety_mode"`
}

type ScoringWeights struct {
	Familiarity       float64 `yaml:"familiarity"`
	RotationFairness  float64 `yaml:"rotation_fairness"`
	SpecialAirport    float64 `yaml:"special_airport"`
	UpgradeMentorship float64 `yaml:"upgrade_mentorship"`
	DutyHealth        float64 `yaml:"duty_health"`
}

type SafetyConfig struct {
	SpecialWindowDays   int     `yaml:"special_window_days"`
	RequireBothCurrent  bool    `yaml:"require_both_current"`
	NightLandingsMin    int     `yaml:"night_landings_min"`
	NightHoursMin       float64 `yaml:"night_hours_min"`
	NightWindowDays     int     `yaml:"night_window_days"`
	DutyReviewThreshold int     `yaml:"duty_review_threshold"`
}

type BalanceConfig struct {
	Metric string `yaml:"metric"`
	Unit   string `yaml:"unit"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

func Load(path string) (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:        8700,
			MetricsPort: 8701,
		},
		NATS: NATSConfig{
			URL: "nats://localhost:4222",
		},
		Scoring: ScoringConfig{
			Weights: ScoringWeights{
				Familiarity:       0.30,
				RotationFairness:  0.20,
				SpecialAirport:    0.20,
				UpgradeMentorship: 0.20,
				DutyHealth:        0.10,
			},
			SafetyMode: "alert-penalty",
		},
		Safety: SafetyConfig{
			SpecialWindowDays:   60,
			RequireBothCurrent:  false,
			NightLandingsMin:    3,
			NightHoursMin:       15,
			NightWindowDays:     90,
			DutyReviewThreshold: 10,
		},
		Balance: BalanceConfig{
			Metric: "credit-by-duration",
			Unit:   "hours",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnv(cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("AUTOPILOT_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = n
		}
	}
	if v := os.Getenv("AUTOPILOT_METRICS_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Server.MetricsPort = n
		}
	}
	if v := os.Getenv("AUTOPILOT_ADMIN_TOKEN"); v != "" {
		cfg.Server.AdminToken = v
	}
	if v := os.Getenv("AUTOPILOT_DATABASE_URL"); v != "" {
		cfg.Database.URL = v
	}
	if v := os.Getenv("AUTOPILOT_NATS_URL"); v != "" {
		cfg.NATS.URL = v
	}
	if v := os.Getenv("AUTOPILOT_MYSKY_URL"); v != "" {
		cfg.MySky.URL = v
	}
	if v := os.Getenv("AUTOPILOT_MYSKY_TOKEN"); v != "" {
		cfg.MySky.Token = v
	}
	if v := os.Getenv("AUTOPILOT_SAFETY_MODE"); v != "" {
		cfg.Scoring.SafetyMode = v
	}
	if v := os.Getenv("AUTOPILOT_SPECIAL_WINDOW_DAYS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Safety.SpecialWindowDays = n
		}
	}
	if v := os.Getenv("AUTOPILOT_REQUIRE_BOTH_CURRENT"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Safety.RequireBothCurrent = b
		}
	}
	if v := os.Getenv("AUTOPILOT_BALANCE_METRIC"); v != "" {
		cfg.Balance.Metric = v
	}
	if v := os.Getenv("AUTOPILOT_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}
