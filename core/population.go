package core

import (
	"fmt"
	"math/rand/v2"

	"github.com/alikendir0/backend-simulated-radar-simulator/model"
)

// Span is a half-open [Min, Max) range sampled uniformly.
type Span struct {
	Min float64 `mapstructure:"min" json:"min"`
	Max float64 `mapstructure:"max" json:"max"`
}

func (s Span) sample(rng *rand.Rand) float64 {
	if s.Max <= s.Min {
		return s.Min
	}
	return s.Min + rng.Float64()*(s.Max-s.Min)
}

// AircraftTemplate describes one family of generated aircraft. Generated IDs
// are "<Name> Instance: <i>" so catalog lookups can strip the suffix.
type AircraftTemplate struct {
	Name      string         `mapstructure:"name" json:"name"`
	Category  model.Category `mapstructure:"category" json:"category"`
	Speed     Span           `mapstructure:"speed" json:"speed"`
	Distance  Span           `mapstructure:"distance" json:"distance"`
	Elevation float64        `mapstructure:"elevation" json:"elevation"`
}

// PopulationConfig controls GeneratePopulation.
type PopulationConfig struct {
	InstancesPerTemplate int                `mapstructure:"instances" json:"instances"`
	Templates            []AircraftTemplate `mapstructure:"templates" json:"templates"`
}

// DefaultTemplates is the demo fleet: a civilian jet, a police helicopter and
// a fighter, each at its own fixed elevation.
func DefaultTemplates() []AircraftTemplate {
	return []AircraftTemplate{
		{
			Name:      "C20A - AFRC",
			Category:  model.CategoryCivilian,
			Speed:     Span{Min: 1, Max: 3},
			Distance:  Span{Min: 200, Max: 400},
			Elevation: 40,
		},
		{
			Name:      "Eurocopter AS350 Écureuil",
			Category:  model.CategoryPolice,
			Speed:     Span{Min: 1, Max: 3},
			Distance:  Span{Min: 40, Max: 300},
			Elevation: 20,
		},
		{
			Name:      "F-16D",
			Category:  model.CategoryMilitary,
			Speed:     Span{Min: 1, Max: 3},
			Distance:  Span{Min: 100, Max: 300},
			Elevation: 10,
		},
	}
}

// DefaultPopulationConfig returns 100 instances of each default template.
func DefaultPopulationConfig() PopulationConfig {
	return PopulationConfig{
		InstancesPerTemplate: 100,
		Templates:            DefaultTemplates(),
	}
}

// InstanceID formats the identifier of the i-th instance of a template.
func InstanceID(name string, i int) string {
	return fmt.Sprintf("%s Instance: %d", name, i)
}

// GeneratePopulation builds the fixed roster. Instances are interleaved by
// index (instance 0 of every template, then instance 1, ...). The same rng
// seed always yields the same roster.
func GeneratePopulation(origin Vec3, cfg PopulationConfig, rng *rand.Rand) []*Aircraft {
	if rng == nil {
		rng = rand.New(rand.NewPCG(1, 2))
	}
	out := make([]*Aircraft, 0, cfg.InstancesPerTemplate*len(cfg.Templates))
	for i := 0; i < cfg.InstancesPerTemplate; i++ {
		for _, tmpl := range cfg.Templates {
			out = append(out, NewAircraft(
				InstanceID(tmpl.Name, i),
				tmpl.Category,
				origin,
				tmpl.Speed.sample(rng),
				tmpl.Distance.sample(rng),
				rng.Float64()*360,
				tmpl.Elevation,
			))
		}
	}
	return out
}
