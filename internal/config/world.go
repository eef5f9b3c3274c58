package config

import (
	"fmt"
	"math/rand/v2"

	"github.com/alikendir0/backend-simulated-radar-simulator/core"
	"github.com/alikendir0/backend-simulated-radar-simulator/kb"
)

// seedMix decorrelates the two PCG words derived from a single seed.
const seedMix = 0x9e3779b97f4a7c15

// BuildWorld constructs the cone and the generated fleet around the origin.
// The same seed always yields the same fleet.
func BuildWorld(sensor SensorConfig, sim SimulationConfig) (*core.World, error) {
	origin := core.Vec3{}
	cone := core.NewDetectionCone(origin, sensor.Range, sensor.SweepWidth, sensor.MaxElevation)
	rng := rand.New(rand.NewPCG(sim.Seed, sim.Seed^seedMix))
	fleet := core.GeneratePopulation(origin, sim.Population, rng)

	world, err := core.NewWorld(cone, fleet,
		core.WithConeRate(sim.ConeRate),
		core.WithAircraftRate(sim.AircraftRate),
	)
	if err != nil {
		return nil, fmt.Errorf("build world: %w", err)
	}
	return world, nil
}

// LoadCatalog returns the built-in catalog when path is empty and otherwise
// the records from the JSON file at path.
func LoadCatalog(path string) (*kb.Catalog, error) {
	if path == "" {
		return kb.NewDefaultCatalog(), nil
	}
	catalog := kb.NewCatalog()
	if _, err := catalog.LoadFile(path); err != nil {
		return nil, err
	}
	return catalog, nil
}
