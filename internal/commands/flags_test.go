package commands

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/colonyops/dbpool/internal/core/config"
)

func TestFlags_Apply(t *testing.T) {
	tests := []struct {
		name  string
		flags Flags
		check func(t *testing.T, cfg config.Config)
	}{
		{
			name:  "unset flags keep config",
			flags: Flags{Workers: -1},
			check: func(t *testing.T, cfg config.Config) {
				assert.Equal(t, "mysql", cfg.Database.Driver)
				assert.Equal(t, 1, cfg.WorkerCount())
			},
		},
		{
			name: "overrides",
			flags: Flags{
				Driver:   "postgres",
				Host:     "db:5432",
				User:     "app",
				Password: "secret",
				Database: "events",
				Workers:  0,
				LogLevel: "debug",
			},
			check: func(t *testing.T, cfg config.Config) {
				assert.Equal(t, "postgres", cfg.Database.Driver)
				assert.Equal(t, "db:5432", cfg.Database.Host)
				assert.Equal(t, "app", cfg.Database.User)
				assert.Equal(t, "secret", cfg.Database.Password)
				assert.Equal(t, "events", cfg.Database.Name)
				assert.Equal(t, 0, cfg.WorkerCount())
				assert.Equal(t, "debug", cfg.Log.Level)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.DefaultConfig()
			tt.flags.Apply(&cfg)
			tt.check(t, cfg)
		})
	}
}

func TestDefaultConfigPath(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/tmp/xdg")
	assert.Equal(t, "/tmp/xdg/dbpool/config.yaml", DefaultConfigPath())
}

func TestResolvePassword_NotRequested(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Database.Password = "keep"
	f := &Flags{Config: &cfg}

	assert.NoError(t, f.ResolvePassword())
	assert.Equal(t, "keep", cfg.Database.Password)
}
