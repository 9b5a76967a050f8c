package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolate points the default config location at an empty directory.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	t.Setenv("HOME", dir)
	return dir
}

func writeFile(t *testing.T, path, body string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
}

func TestLoad_Defaults(t *testing.T) {
	isolate(t)

	cfg, err := Load(NewViper(), "")
	require.NoError(t, err)

	assert.Equal(t, "", cfg.DB)
	assert.Equal(t, "guest", cfg.User)
	assert.Equal(t, "dev", cfg.Log)
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, 20, cfg.Study.Count)
	assert.Equal(t, time.Duration(0), cfg.Study.Lookahead)
	assert.Equal(t, 120, cfg.Study.PerStateLimit)
	assert.Equal(t, 8*time.Millisecond, cfg.Capacity.Budget)
	assert.Equal(t, 60.0, cfg.Capacity.Rate)
	assert.Empty(t, cfg.File)
}

func TestLoad_DefaultFile(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "rubyquiz", "config.yaml")
	writeFile(t, path, "user: alice\nstudy:\n  count: 5\n  lookahead: 10m\n")

	cfg, err := Load(NewViper(), "")
	require.NoError(t, err)

	assert.Equal(t, "alice", cfg.User)
	assert.Equal(t, 5, cfg.Study.Count)
	assert.Equal(t, 10*time.Minute, cfg.Study.Lookahead)
	assert.Equal(t, path, cfg.File)
}

func TestLoad_ExplicitFileMustExist(t *testing.T) {
	dir := isolate(t)

	_, err := Load(NewViper(), filepath.Join(dir, "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read config")
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "custom.yaml")
	writeFile(t, path, "user: alice\ncapacity:\n  rate: 30\n")
	t.Setenv("RUBYQUIZ_USER", "bob")
	t.Setenv("RUBYQUIZ_STUDY_COUNT", "7")

	cfg, err := Load(NewViper(), path)
	require.NoError(t, err)

	assert.Equal(t, "bob", cfg.User)
	assert.Equal(t, 7, cfg.Study.Count)
	assert.Equal(t, 30.0, cfg.Capacity.Rate)
}

func TestLoad_FlagOverridesEnv(t *testing.T) {
	isolate(t)
	t.Setenv("RUBYQUIZ_USER", "bob")

	cmd := &cobra.Command{Use: "x"}
	cmd.Flags().String("user", "", "")
	cmd.Flags().String("log", "", "")
	require.NoError(t, cmd.Flags().Set("user", "carol"))

	v := NewViper()
	require.NoError(t, v.BindPFlag(KeyUser, cmd.Flags().Lookup("user")))
	require.NoError(t, v.BindPFlag(KeyLog, cmd.Flags().Lookup("log")))

	cfg, err := Load(v, "")
	require.NoError(t, err)

	assert.Equal(t, "carol", cfg.User)
	// An unchanged flag does not shadow the default.
	assert.Equal(t, "dev", cfg.Log)
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			User:     "guest",
			Log:      "dev",
			Study:    Study{Count: 20, PerStateLimit: 120},
			Capacity: Capacity{Budget: time.Millisecond, Rate: 60},
		}
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"valid", func(*Config) {}, ""},
		{"empty user", func(c *Config) { c.User = "" }, "user"},
		{"bad log mode", func(c *Config) { c.Log = "verbose" }, "dev or prod"},
		{"zero count", func(c *Config) { c.Study.Count = 0 }, "study.count"},
		{"negative lookahead", func(c *Config) { c.Study.Lookahead = -time.Second }, "study.lookahead"},
		{"zero per-state limit", func(c *Config) { c.Study.PerStateLimit = 0 }, "study.per_state_limit"},
		{"zero budget", func(c *Config) { c.Capacity.Budget = 0 }, "capacity.budget"},
		{"zero rate", func(c *Config) { c.Capacity.Rate = 0 }, "capacity.rate"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.want == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
