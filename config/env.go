package config

import (
	"fmt"
	"os"
	"strconv"
)

// Environment variables that override the file.
const (
	EnvName        = "DOSFLOW_NAME"
	EnvCFDCase     = "DOSFLOW_CFD_CASE"
	EnvSampling    = "DOSFLOW_SAMPLING_FREQUENCY"
	EnvDuration    = "DOSFLOW_DURATION"
	EnvM1Rate      = "DOSFLOW_M1_RATE"
	EnvParallel    = "DOSFLOW_PARALLEL"
	EnvDamping     = "DOSFLOW_PLANT_DAMPING"
	EnvOutput      = "DOSFLOW_LOGGER_OUTPUT"
	EnvMonitor     = "DOSFLOW_MONITOR"
	EnvMonitorPort = "DOSFLOW_MONITOR_PORT"
)

func (c *Config) applyEnv() error {
	str := func(key string, dst *string) {
		if v, ok := os.LookupEnv(key); ok {
			*dst = v
		}
	}

	str(EnvName, &c.Name)
	str(EnvCFDCase, &c.CFDCase)
	str(EnvOutput, &c.Logger.Output)

	for _, o := range []struct {
		key   string
		apply func(string) error
	}{
		{EnvSampling, intSetter(&c.SamplingHz)},
		{EnvM1Rate, intSetter(&c.M1Rate)},
		{EnvParallel, intSetter(&c.Parallel)},
		{EnvMonitorPort, intSetter(&c.Monitor.Port)},
		{EnvDuration, floatSetter(&c.Duration)},
		{EnvDamping, floatSetter(&c.Plant.Damping)},
		{EnvMonitor, boolSetter(&c.Monitor.Enabled)},
	} {
		v, ok := os.LookupEnv(o.key)
		if !ok {
			continue
		}

		if err := o.apply(v); err != nil {
			return fmt.Errorf("%w: %s=%q: %v", ErrInvalidConfig, o.key, v, err)
		}
	}

	return nil
}

func intSetter(dst *int) func(string) error {
	return func(s string) error {
		v, err := strconv.Atoi(s)
		if err == nil {
			*dst = v
		}

		return err
	}
}

func floatSetter(dst *float64) func(string) error {
	return func(s string) error {
		v, err := strconv.ParseFloat(s, 64)
		if err == nil {
			*dst = v
		}

		return err
	}
}

func boolSetter(dst *bool) func(string) error {
	return func(s string) error {
		v, err := strconv.ParseBool(s)
		if err == nil {
			*dst = v
		}

		return err
	}
}
