// Package config resolves rubyquiz settings from defaults, an optional YAML
// file, RUBYQUIZ_* environment variables and command-line flags, in
// increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Keys understood by Load. Nested keys map to env vars with "_" in place of
// ".", e.g. RUBYQUIZ_STUDY_COUNT.
const (
	KeyDB                 = "db"
	KeyUser               = "user"
	KeyLog                = "log"
	KeyLogLevel           = "log_level"
	KeyStudyCount         = "study.count"
	KeyStudyLookahead     = "study.lookahead"
	KeyStudyPerStateLimit = "study.per_state_limit"
	KeyCapacityBudget     = "capacity.budget"
	KeyCapacityRate       = "capacity.rate"
)

const envPrefix = "rubyquiz"

// Config is the resolved configuration.
type Config struct {
	DB       string
	User     string
	Log      string
	LogLevel string
	Study    Study
	Capacity Capacity
	// File is the config file that was read, if any.
	File string
}

// Study holds study-session defaults.
type Study struct {
	Count         int
	Lookahead     time.Duration
	PerStateLimit int
}

// Capacity holds capacity scheduler pacing.
type Capacity struct {
	Budget time.Duration
	Rate   float64
}

// NewViper returns a viper instance with defaults and environment lookup
// configured. Callers bind flags on it before calling Load.
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetDefault(KeyDB, "")
	v.SetDefault(KeyUser, "guest")
	v.SetDefault(KeyLog, "dev")
	v.SetDefault(KeyLogLevel, "warn")
	v.SetDefault(KeyStudyCount, 20)
	v.SetDefault(KeyStudyLookahead, time.Duration(0))
	v.SetDefault(KeyStudyPerStateLimit, 120)
	v.SetDefault(KeyCapacityBudget, 8*time.Millisecond)
	v.SetDefault(KeyCapacityRate, 60.0)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// DefaultFile returns $XDG_CONFIG_HOME/rubyquiz/config.yaml (or the
// platform equivalent).
func DefaultFile() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolve config dir: %w", err)
	}
	return filepath.Join(dir, "rubyquiz", "config.yaml"), nil
}

// Load reads file into v and returns the resolved Config. An explicit file
// must exist; when file is empty the default location is tried and a
// missing file is not an error.
func Load(v *viper.Viper, file string) (*Config, error) {
	explicit := file != ""
	if !explicit {
		p, err := DefaultFile()
		if err == nil {
			file = p
		}
	}
	if file != "" {
		v.SetConfigFile(file)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			switch {
			case errors.As(err, &notFound), !explicit && errors.Is(err, os.ErrNotExist):
				file = ""
			default:
				return nil, fmt.Errorf("read config %s: %w", file, err)
			}
		}
	}

	cfg := &Config{
		File:     file,
		DB:       v.GetString(KeyDB),
		User:     strings.TrimSpace(v.GetString(KeyUser)),
		Log:      strings.ToLower(v.GetString(KeyLog)),
		LogLevel: v.GetString(KeyLogLevel),
		Study: Study{
			Count:         v.GetInt(KeyStudyCount),
			Lookahead:     v.GetDuration(KeyStudyLookahead),
			PerStateLimit: v.GetInt(KeyStudyPerStateLimit),
		},
		Capacity: Capacity{
			Budget: v.GetDuration(KeyCapacityBudget),
			Rate:   v.GetFloat64(KeyCapacityRate),
		},
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch {
	case c.User == "":
		return fmt.Errorf("config: %s must not be empty", KeyUser)
	case c.Log != "dev" && c.Log != "prod":
		return fmt.Errorf("config: %s must be dev or prod, got %q", KeyLog, c.Log)
	case c.Study.Count <= 0:
		return fmt.Errorf("config: %s must be positive, got %d", KeyStudyCount, c.Study.Count)
	case c.Study.Lookahead < 0:
		return fmt.Errorf("config: %s must not be negative", KeyStudyLookahead)
	case c.Study.PerStateLimit <= 0:
		return fmt.Errorf("config: %s must be positive, got %d", KeyStudyPerStateLimit, c.Study.PerStateLimit)
	case c.Capacity.Budget <= 0:
		return fmt.Errorf("config: %s must be positive", KeyCapacityBudget)
	case c.Capacity.Rate <= 0:
		return fmt.Errorf("config: %s must be positive", KeyCapacityRate)
	}
	return nil
}
