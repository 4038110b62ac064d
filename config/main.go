// Package config holds the tuning constants of a simulation, loaded from JSON.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/google/uuid"
	"nyiyui.ca/hato/senro/rail"
	"nyiyui.ca/hato/senro/rail/plan"
	"nyiyui.ca/hato/senro/train"
)

type Config struct {
	Rail  rail.Params `json:"rail"`
	Plan  plan.Params `json:"plan"`
	Train Train       `json:"train"`
	Kujo  Kujo        `json:"kujo"`
}

type Train struct {
	// Speed is used for trains without a calibrated formation.
	Speed float64 `json:"speed"`
	// Seed seeds the random branch selector.
	Seed int64 `json:"seed"`
	// Spacing is the length of a train; trains closer than it on a rail overlap.
	Spacing float64 `json:"spacing"`
	// CalibrationDB is the path of the calibration store; ":memory:" keeps nothing.
	CalibrationDB string        `json:"calibration-db"`
	Calibration   []Calibration `json:"calibration"`
}

// Calibration is measured (power, speed) points for a formation.
type Calibration struct {
	Form   uuid.UUID    `json:"form"`
	Points [][2]float64 `json:"points"`
}

type Kujo struct {
	// Addr is where kujo listens. Empty disables it.
	Addr           string   `json:"addr"`
	AllowedOrigins []string `json:"allowed-origins"`
}

func Default() Config {
	return Config{
		Rail: rail.DefaultParams(),
		Plan: plan.DefaultParams(),
		Train: Train{
			Speed:         10,
			Seed:          1,
			Spacing:       train.DefaultSpacing,
			CalibrationDB: ":memory:",
		},
		Kujo: Kujo{
			Addr: "127.0.0.1:8001",
		},
	}
}

// Load reads the config at path. Fields missing from the file keep their defaults.
func Load(path string) (Config, error) {
	c := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	if err := json.Unmarshal(data, &c); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := c.Validate(); err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	return c, nil
}

func (c Config) Validate() error {
	var errs []error
	if c.Rail.IntersectionRadius <= 0 {
		errs = append(errs, fmt.Errorf("rail.intersection-radius must be positive (got %f)", c.Rail.IntersectionRadius))
	}
	if c.Rail.MinDelta <= 0 {
		errs = append(errs, fmt.Errorf("rail.min-delta must be positive (got %f)", c.Rail.MinDelta))
	}
	if c.Plan.MinDelta < c.Rail.MinDelta {
		// intersections only have room for rails at least rail.min-delta apart
		errs = append(errs, fmt.Errorf("plan.min-delta %f is below rail.min-delta %f", c.Plan.MinDelta, c.Rail.MinDelta))
	}
	if c.Plan.MinLength <= 0 {
		errs = append(errs, fmt.Errorf("plan.min-length must be positive (got %f)", c.Plan.MinLength))
	}
	if c.Plan.MaxLength < c.Plan.MinLength {
		errs = append(errs, fmt.Errorf("plan.max-length %f is below plan.min-length %f", c.Plan.MaxLength, c.Plan.MinLength))
	}
	if c.Plan.MaxTurn <= 0 {
		errs = append(errs, fmt.Errorf("plan.max-turn must be positive (got %f)", c.Plan.MaxTurn))
	}
	if c.Train.Spacing < 0 {
		errs = append(errs, fmt.Errorf("train.spacing must not be negative (got %f)", c.Train.Spacing))
	}
	if c.Train.Speed < 0 {
		errs = append(errs, fmt.Errorf("train.speed must not be negative (got %f)", c.Train.Speed))
	}
	for i, cal := range c.Train.Calibration {
		if cal.Form == uuid.Nil {
			errs = append(errs, fmt.Errorf("train.calibration[%d] has no form", i))
		}
	}
	return errors.Join(errs...)
}
