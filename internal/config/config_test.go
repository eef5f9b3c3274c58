package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alikendir0/backend-simulated-radar-simulator/model"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("", nil)
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, 400.0, cfg.Sensor.Range)
	assert.Equal(t, 120.0, cfg.Sensor.SweepWidth)
	assert.Equal(t, 100.0, cfg.Sensor.MaxElevation)
	assert.Equal(t, 16700*time.Microsecond, cfg.Simulation.TickPeriod)
	assert.Equal(t, 0.5, cfg.Simulation.Step)
	assert.Equal(t, 100, cfg.Simulation.Population.InstancesPerTemplate)
	require.Len(t, cfg.Simulation.Population.Templates, 3)
	assert.Equal(t, "F-16D", cfg.Simulation.Population.Templates[2].Name)
	assert.False(t, cfg.Tracing.Enabled)
}

func TestLoad_WithJSONFile(t *testing.T) {
	dir := t.TempDir()
	body := `{
		"http_addr": ":9000",
		"sensor": { "range": 250, "sweep_width": 90 },
		"simulation": {
			"tick_period": "50ms",
			"seed": 7,
			"population": {
				"instances": 2,
				"templates": [
					{"name": "Drone", "category": "Police", "speed": {"min": 1, "max": 2}, "distance": {"min": 10, "max": 20}, "elevation": 5}
				]
			}
		},
		"stream": { "allowed_origins": ["http://localhost:3000"] }
	}`
	path := filepath.Join(dir, "radar.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	cfg, err := Load(path, nil)
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.HTTPAddr)
	assert.Equal(t, 250.0, cfg.Sensor.Range)
	assert.Equal(t, 90.0, cfg.Sensor.SweepWidth)
	assert.Equal(t, 100.0, cfg.Sensor.MaxElevation, "unset keys keep their defaults")
	assert.Equal(t, 50*time.Millisecond, cfg.Simulation.TickPeriod)
	assert.Equal(t, uint64(7), cfg.Simulation.Seed)
	assert.Equal(t, 2, cfg.Simulation.Population.InstancesPerTemplate)
	require.Len(t, cfg.Simulation.Population.Templates, 1)
	tmpl := cfg.Simulation.Population.Templates[0]
	assert.Equal(t, "Drone", tmpl.Name)
	assert.Equal(t, model.CategoryPolice, tmpl.Category)
	assert.Equal(t, 20.0, tmpl.Distance.Max)
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.Stream.AllowedOrigins)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("RADAR_HTTP_ADDR", ":7070")
	t.Setenv("RADAR_SENSOR_RANGE", "123.5")
	t.Setenv("RADAR_SIMULATION_TICK_PERIOD", "20ms")
	t.Setenv("RADAR_TRACING_ENABLED", "true")
	t.Setenv("RADAR_LOG_FORMAT", "json")

	cfg, err := Load("", nil)
	require.NoError(t, err)

	assert.Equal(t, ":7070", cfg.HTTPAddr)
	assert.Equal(t, 123.5, cfg.Sensor.Range)
	assert.Equal(t, 20*time.Millisecond, cfg.Simulation.TickPeriod)
	assert.True(t, cfg.Tracing.Enabled)
	logCfg := cfg.Log.Logging("radar-server")
	assert.Equal(t, "json", logCfg.Format)
	assert.Equal(t, "radar-server", logCfg.Service)
}

func TestLoad_OverridesWin(t *testing.T) {
	t.Setenv("RADAR_GRPC_ADDR", ":1111")
	cfg, err := Load("", map[string]any{"grpc_addr": ":2222"})
	require.NoError(t, err)
	assert.Equal(t, ":2222", cfg.GRPCAddr)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/radar.json", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error reading config file")
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty http addr", func(c *Config) { c.HTTPAddr = " " }},
		{"negative range", func(c *Config) { c.Sensor.Range = -1 }},
		{"sweep too wide", func(c *Config) { c.Sensor.SweepWidth = 400 }},
		{"zero tick", func(c *Config) { c.Simulation.TickPeriod = 0 }},
		{"negative instances", func(c *Config) { c.Simulation.Population.InstancesPerTemplate = -1 }},
		{"unnamed template", func(c *Config) { c.Simulation.Population.Templates[0].Name = "" }},
		{"inverted distance", func(c *Config) { c.Simulation.Population.Templates[0].Distance.Max = -5 }},
		{"zero burst", func(c *Config) { c.Stream.InspectBurst = 0 }},
		{"bad log format", func(c *Config) { c.Log.Format = "xml" }},
		{"bad exporter", func(c *Config) { c.Tracing.Exporter = "zipkin" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalid)
		})
	}

	require.NoError(t, Default().Validate())
}

func TestLoad_InvalidFileValues(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "radar.yaml")
	require.NoError(t, os.WriteFile(path, []byte("sensor:\n  sweep_width: 720\n"), 0o644))

	_, err := Load(path, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalid)
}
