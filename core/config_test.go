package core

import (
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() Config {
	return Config{
		Env: "TEST",
		Database: DatabaseConfig{
			Engine: "postgres",
			Host:   "localhost",
			Port:   5432,
			Name:   "canvas_test",
		},
		Remover: RemoverConfig{MaxPasses: 3, ProtectedAccountIDs: []int64{1, 2}},
		Splitter: SplitterConfig{
			CopyMode:         CopyInline,
			CopyPollInterval: time.Second,
			CopyTimeout:      time.Minute,
		},
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		wantField string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "missing host", mutate: func(c *Config) { c.Database.Host = "" }, wantField: "Config.database.host"},
		{name: "bad db name", mutate: func(c *Config) { c.Database.Name = "canvas-test" }, wantField: "Config.database.name"},
		{name: "port out of range", mutate: func(c *Config) { c.Database.Port = 70000 }, wantField: "Config.database.port"},
		{name: "no passes", mutate: func(c *Config) { c.Remover.MaxPasses = 0 }, wantField: "Config.remover.maxPasses"},
		{name: "bad protected id", mutate: func(c *Config) { c.Remover.ProtectedAccountIDs = []int64{1, 0} }, wantField: "Config.remover.protectedAccountIDs"},
		{name: "unknown copy mode", mutate: func(c *Config) { c.Splitter.CopyMode = "rsync" }, wantField: "Config.splitter.copyMode"},
		{name: "timeout below interval", mutate: func(c *Config) { c.Splitter.CopyTimeout = time.Millisecond }, wantField: "Config.splitter.copyTimeout"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conf := validConfig()
			tt.mutate(&conf)
			err := conf.Validate()
			if tt.wantField == "" {
				assert.NoError(t, err)
				return
			}
			var verr *ValidationError
			require.True(t, errors.As(err, &verr), "got %v", err)
			var fields []string
			for _, f := range verr.Fields {
				fields = append(fields, f.Field)
			}
			assert.Equal(t, []string{tt.wantField}, fields)
		})
	}
}

func TestValidationError_Error(t *testing.T) {
	err := NewValidationError(errors.New("invalid config"),
		FieldError{Field: "host", Error: "host is required"},
		FieldError{Field: "port", Error: "port must be 65,535 or less"})
	assert.Equal(t, "invalid config: host: host is required; port: port must be 65,535 or less", err.Error())
	assert.Equal(t, "invalid config", NewValidationError(errors.New("invalid config")).Error())
}

func TestParseIDs(t *testing.T) {
	tests := []struct {
		raw  []string
		want []int64
	}{
		{raw: nil, want: nil},
		{raw: []string{"1", "2"}, want: []int64{1, 2}},
		{raw: []string{"1,", "5"}, want: []int64{1, 5}},
		{raw: []string{" 3 , 4 "}, want: []int64{3, 4}},
		{raw: []string{"x"}, want: []int64{0}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, parseIDs(tt.raw), "%q", tt.raw)
	}
}

func TestRemoverConfig_IsProtected(t *testing.T) {
	conf := RemoverConfig{ProtectedAccountIDs: []int64{1, 2}}
	assert.True(t, conf.IsProtected(2))
	assert.False(t, conf.IsProtected(3))
}

func TestLoadConfig(t *testing.T) {
	t.Setenv("ENV", "test")
	t.Setenv("TEST_DATABASE_NAME", "canvas_test")
	t.Setenv("TEST_REMOVER_PROTECTEDACCOUNTIDS", "1, 5")
	t.Setenv("TEST_SPLITTER_COPYMODE", "QUEUE")

	conf, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "TEST", conf.Env)
	assert.Equal(t, "canvas_test", conf.Database.Name)
	assert.Equal(t, "localhost:5432", conf.Database.Address())
	assert.Equal(t, 10, conf.Remover.MaxPasses)
	assert.Equal(t, []int64{1, 5}, conf.Remover.ProtectedAccountIDs)
	assert.Equal(t, CopyQueue, conf.Splitter.CopyMode)
	assert.Equal(t, time.Hour, conf.Splitter.CopyTimeout)
}

func TestLoadConfig_invalid(t *testing.T) {
	t.Setenv("ENV", "test")
	t.Setenv("TEST_REMOVER_MAXPASSES", "0")

	_, err := LoadConfig()
	var verr *ValidationError
	assert.True(t, errors.As(err, &verr))
}
