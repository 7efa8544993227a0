// Package config loads the scenario of a run. Values come from the
// defaults, then a YAML file, then DOSFLOW_* environment variables (which
// may be set from a .env file), and are validated last.
package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

// ASMS holds the gains of the M2 segment controller aggregate.
type ASMS struct {
	ModalForcesGain  float64 `yaml:"modal_forces_gain"`
	FluidDampingGain float64 `yaml:"fluid_damping_gain"`
}

// Fade is the sigmoid fade-in of the wind loads, in steps.
type Fade struct {
	Delay int `yaml:"delay" validate:"gte=0"`
	Ramp  int `yaml:"ramp" validate:"gt=0"`
}

// Plant is the modal plant.
type Plant struct {
	Modes   int     `yaml:"modes" validate:"gt=0"`
	Damping float64 `yaml:"damping" validate:"gt=0,lt=1"`
	Seed    uint64  `yaml:"seed"`
}

// WindLoads selects the disturbance profile.
type WindLoads struct {
	Source     string  `yaml:"source" validate:"oneof=gusts series"`
	SeriesFile string  `yaml:"series_file" validate:"required_if=Source series"`
	SeriesHz   float64 `yaml:"series_hz" validate:"required_if=Source series,gte=0"`
	Seed       uint64  `yaml:"seed"`
	Stddev     float64 `yaml:"stddev" validate:"gte=0"`
}

// Logger is the record of the run.
type Logger struct {
	Decimation int    `yaml:"decimation" validate:"gte=1"`
	Output     string `yaml:"output"`
}

// Monitor is the HTTP monitor.
type Monitor struct {
	Enabled     bool `yaml:"enabled"`
	Port        int  `yaml:"port" validate:"gte=0,lte=65535"`
	OpenBrowser bool `yaml:"open_browser"`
}

// Config is a full scenario.
type Config struct {
	Name       string    `yaml:"name" validate:"required"`
	CFDCase    string    `yaml:"cfd_case"`
	SamplingHz int       `yaml:"sampling_frequency" validate:"gt=0"`
	Duration   float64   `yaml:"duration" validate:"gt=0"`
	M1Rate     int       `yaml:"m1_rate" validate:"gt=0"`
	Parallel   int       `yaml:"parallel" validate:"gte=0"`
	ASMS       ASMS      `yaml:"asms"`
	Fade       Fade      `yaml:"fade"`
	Plant      Plant     `yaml:"plant"`
	WindLoads  WindLoads `yaml:"wind_loads"`
	Logger     Logger    `yaml:"logger"`
	Monitor    Monitor   `yaml:"monitor"`
}

// Default returns the reference scenario: 10 s at 8 kHz, M1 at 80 steps.
func Default() Config {
	return Config{
		Name:       "asms",
		CFDCase:    "zen30az000_OS7",
		SamplingHz: 8000,
		Duration:   10,
		M1Rate:     80,
		ASMS: ASMS{
			ModalForcesGain:  0.5,
			FluidDampingGain: -9.1,
		},
		Fade:  Fade{Delay: 6000, Ramp: 8000},
		Plant: Plant{Modes: 20, Damping: 0.005, Seed: 1},
		WindLoads: WindLoads{
			Source: "gusts",
			Seed:   7,
			Stddev: 1,
		},
		Logger:  Logger{Decimation: 4},
		Monitor: Monitor{Port: 0},
	}
}

// Ticks is the number of simulation steps.
func (c Config) Ticks() uint64 {
	return uint64(float64(c.SamplingHz) * c.Duration)
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterStructValidation(validateRates, Config{})

	return v
}

func validateRates(sl validator.StructLevel) {
	c := sl.Current().Interface().(Config)

	if c.M1Rate > 0 && c.SamplingHz%c.M1Rate != 0 {
		sl.ReportError(c.M1Rate, "M1Rate", "M1Rate", "divides", "SamplingHz")
	}
}

// Validate checks the scenario.
func (c Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	e := verrs[0]
	if e.Tag() == "divides" {
		return fmt.Errorf("%w: m1 rate %d does not divide the sampling frequency %d",
			ErrInvalidConfig, c.M1Rate, c.SamplingHz)
	}

	return fmt.Errorf("%w: %s fails %q (got %v)",
		ErrInvalidConfig, e.Namespace(), e.Tag(), e.Value())
}

// Load reads the scenario from a YAML file. An empty path keeps the
// defaults. envFiles are loaded before the environment overrides are read;
// missing ones are skipped.
func Load(path string, envFiles ...string) (Config, error) {
	c := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return c, fmt.Errorf("read config: %w", err)
		}

		if err := yaml.Unmarshal(data, &c); err != nil {
			return c, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	for _, f := range envFiles {
		if _, err := os.Stat(f); err != nil {
			continue
		}

		if err := godotenv.Load(f); err != nil {
			return c, fmt.Errorf("load %s: %w", f, err)
		}
	}

	if err := c.applyEnv(); err != nil {
		return c, err
	}

	return c, c.Validate()
}
