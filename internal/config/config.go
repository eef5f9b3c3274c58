// Package config loads server configuration from defaults, an optional config
// file and RADAR_* environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/alikendir0/backend-simulated-radar-simulator/core"
	"github.com/alikendir0/backend-simulated-radar-simulator/internal/broadcast"
	"github.com/alikendir0/backend-simulated-radar-simulator/internal/logging"
	"github.com/alikendir0/backend-simulated-radar-simulator/internal/observability"
	"github.com/alikendir0/backend-simulated-radar-simulator/internal/transport/ws"
)

// EnvPrefix prefixes every environment override, e.g. RADAR_HTTP_ADDR or
// RADAR_SENSOR_RANGE.
const EnvPrefix = "RADAR"

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid configuration")

// LogConfig selects the logger level and format.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Logging converts to the logger's own config, tagging lines with service.
func (c LogConfig) Logging(service string) logging.Config {
	return logging.Config{Level: c.Level, Format: c.Format, Service: service}
}

// SensorConfig is the detection cone geometry.
type SensorConfig struct {
	Range        float64 `mapstructure:"range"`
	SweepWidth   float64 `mapstructure:"sweep_width"`
	MaxElevation float64 `mapstructure:"max_elevation"`
}

// SimulationConfig controls the sweep loop and the generated fleet.
type SimulationConfig struct {
	TickPeriod   time.Duration         `mapstructure:"tick_period"`
	Step         float64               `mapstructure:"step"`
	ConeRate     float64               `mapstructure:"cone_rate"`
	AircraftRate float64               `mapstructure:"aircraft_rate"`
	Seed         uint64                `mapstructure:"seed"`
	Population   core.PopulationConfig `mapstructure:"population"`
}

// Config is the complete server configuration.
type Config struct {
	HTTPAddr    string `mapstructure:"http_addr"`
	GRPCAddr    string `mapstructure:"grpc_addr"`
	CatalogPath string `mapstructure:"catalog_path"`

	Log        LogConfig                   `mapstructure:"log"`
	Sensor     SensorConfig                `mapstructure:"sensor"`
	Simulation SimulationConfig            `mapstructure:"simulation"`
	Stream     ws.Config                   `mapstructure:"stream"`
	Tracing    observability.TracingConfig `mapstructure:"tracing"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("http_addr", ":8080")
	v.SetDefault("grpc_addr", ":50051")
	v.SetDefault("catalog_path", "")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetDefault("sensor.range", 400.0)
	v.SetDefault("sensor.sweep_width", 120.0)
	v.SetDefault("sensor.max_elevation", 100.0)

	v.SetDefault("simulation.tick_period", broadcast.DefaultPeriod)
	v.SetDefault("simulation.step", broadcast.DefaultStep)
	v.SetDefault("simulation.cone_rate", core.DefaultConeRate)
	v.SetDefault("simulation.aircraft_rate", core.DefaultAircraftRate)
	v.SetDefault("simulation.seed", uint64(1))
	pop := core.DefaultPopulationConfig()
	v.SetDefault("simulation.population.instances", pop.InstancesPerTemplate)
	v.SetDefault("simulation.population.templates", pop.Templates)

	stream := ws.DefaultConfig()
	v.SetDefault("stream.write_wait", stream.WriteWait)
	v.SetDefault("stream.pong_wait", stream.PongWait)
	v.SetDefault("stream.max_message_bytes", stream.MaxMessageBytes)
	v.SetDefault("stream.inspect_rate", stream.InspectRate)
	v.SetDefault("stream.inspect_burst", stream.InspectBurst)
	v.SetDefault("stream.allowed_origins", stream.AllowedOrigins)

	tracing := observability.DefaultTracingConfig()
	v.SetDefault("tracing.enabled", tracing.Enabled)
	v.SetDefault("tracing.service_name", tracing.ServiceName)
	v.SetDefault("tracing.exporter", tracing.Exporter)
	v.SetDefault("tracing.endpoint", tracing.Endpoint)
	v.SetDefault("tracing.sample_ratio", tracing.SampleRatio)
}

// New returns a viper instance carrying every default and wired to RADAR_*
// environment overrides.
func New() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads the optional config file at path (JSON, YAML or TOML by
// extension), applies overrides on top and validates the result.
func Load(path string, overrides map[string]any) (Config, error) {
	v := New()
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("error reading config file: %w", err)
		}
	}
	for key, val := range overrides {
		v.Set(key, val)
	}
	return FromViper(v)
}

// FromViper decodes and validates v.
func FromViper(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Default returns the configuration with no file and no environment.
func Default() Config {
	pop := core.DefaultPopulationConfig()
	return Config{
		HTTPAddr: ":8080",
		GRPCAddr: ":50051",
		Log:      LogConfig{Level: "info", Format: "text"},
		Sensor:   SensorConfig{Range: 400, SweepWidth: 120, MaxElevation: 100},
		Simulation: SimulationConfig{
			TickPeriod:   broadcast.DefaultPeriod,
			Step:         broadcast.DefaultStep,
			ConeRate:     core.DefaultConeRate,
			AircraftRate: core.DefaultAircraftRate,
			Seed:         1,
			Population:   pop,
		},
		Stream:  ws.DefaultConfig(),
		Tracing: observability.DefaultTracingConfig(),
	}
}

// Validate reports every problem it finds, joined.
func (c Config) Validate() error {
	var errs []error
	fail := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalid}, args...)...))
	}

	if strings.TrimSpace(c.HTTPAddr) == "" {
		fail("http_addr is required")
	}
	if c.Sensor.Range < 0 {
		fail("sensor.range %v is negative", c.Sensor.Range)
	}
	if c.Sensor.SweepWidth < 0 || c.Sensor.SweepWidth > 360 {
		fail("sensor.sweep_width %v outside [0,360]", c.Sensor.SweepWidth)
	}
	if c.Simulation.TickPeriod <= 0 {
		fail("simulation.tick_period must be positive")
	}
	if c.Simulation.Population.InstancesPerTemplate < 0 {
		fail("simulation.population.instances %d is negative", c.Simulation.Population.InstancesPerTemplate)
	}
	for i, tmpl := range c.Simulation.Population.Templates {
		if strings.TrimSpace(tmpl.Name) == "" {
			fail("simulation.population.templates[%d] has no name", i)
		}
		if tmpl.Distance.Min < 0 || tmpl.Distance.Max < tmpl.Distance.Min {
			fail("simulation.population.templates[%d] distance span %v..%v", i, tmpl.Distance.Min, tmpl.Distance.Max)
		}
	}
	if c.Stream.InspectRate < 0 {
		fail("stream.inspect_rate %v is negative", c.Stream.InspectRate)
	}
	if c.Stream.InspectRate > 0 && c.Stream.InspectBurst < 1 {
		fail("stream.inspect_burst must be at least 1")
	}
	switch strings.ToLower(c.Log.Format) {
	case "", "text", "json":
	default:
		fail("log.format %q is not text or json", c.Log.Format)
	}
	if err := c.Tracing.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("%w: %w", ErrInvalid, err))
	}
	return errors.Join(errs...)
}
