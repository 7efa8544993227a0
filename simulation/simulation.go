// Package simulation ties a telescope model to the services around a run:
// the data recorder, the run information, metrics, tracing and the monitor.
package simulation

import (
	"context"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/dosflow/dosflow/config"
	"github.com/dosflow/dosflow/datarecording"
	"github.com/dosflow/dosflow/model"
	"github.com/dosflow/dosflow/monitoring"
	"github.com/dosflow/dosflow/sim/graph"
	"github.com/dosflow/dosflow/tracing"
)

// A Simulation is a telescope model ready to run and the services observing
// it.
type Simulation struct {
	id         string
	cfg        config.Config
	outputPath string
	logger     *zerolog.Logger

	telescope    *model.Telescope
	dataRecorder datarecording.DataRecorder
	runRecorder  *datarecording.RunRecorder
	monitor      *monitoring.Monitor
	metrics      *tracing.Metrics
	counter      *tracing.ActivationCounter
	edgeRecorder *tracing.EdgeRecorder
}

// ID returns the unique id of the simulation.
func (s *Simulation) ID() string {
	return s.id
}

// OutputPath returns the data recorder file name without extension.
func (s *Simulation) OutputPath() string {
	return s.outputPath
}

// Telescope returns the wired model.
func (s *Simulation) Telescope() *model.Telescope {
	return s.telescope
}

// Model returns the runnable model.
func (s *Simulation) Model() *graph.Model {
	return s.telescope.Model
}

// GetDataRecorder returns the data recorder used in the simulation.
func (s *Simulation) GetDataRecorder() datarecording.DataRecorder {
	return s.dataRecorder
}

// GetMonitor returns the monitor, nil when monitoring is off.
func (s *Simulation) GetMonitor() *monitoring.Monitor {
	return s.monitor
}

// Metrics returns the Prometheus metrics of the model.
func (s *Simulation) Metrics() *tracing.Metrics {
	return s.metrics
}

// ActivationCounter returns the per node counters.
func (s *Simulation) ActivationCounter() *tracing.ActivationCounter {
	return s.counter
}

// EdgeRecorder returns the edge recorder, nil unless edge tracing is on.
func (s *Simulation) EdgeRecorder() *tracing.EdgeRecorder {
	return s.edgeRecorder
}

// Run runs the scenario to its last tick, one simulated second at a time so
// that a cancelled context stops it between seconds. A scenario whose wind
// loads run out ends after the second in which they did, and counts as
// complete. The record is exported whether or not the run completes.
func (s *Simulation) Run(ctx context.Context) error {
	m := s.telescope.Model
	total := s.cfg.Ticks()
	chunk := uint64(s.cfg.SamplingHz)

	s.runRecorder.Start(m.Name())
	s.runRecorder.Set("CFD Case", s.cfg.CFDCase)
	s.runRecorder.Set("Sampling Frequency", strconv.Itoa(s.cfg.SamplingHz))
	s.runRecorder.Set("Duration", strconv.FormatFloat(s.cfg.Duration, 'g', -1, 64))

	var bar *monitoring.ProgressBar
	if s.monitor != nil {
		bar = s.monitor.TrackRun(m.Name(), total)
		defer s.monitor.CompleteProgressBar(bar)
	}

	start := time.Now()
	err := s.runChunks(ctx, total, chunk)
	exhausted := s.telescope.WindLoads.Done()
	complete := err == nil && (m.Now() == total || exhausted)

	m.Finish(complete)

	s.telescope.Logger.Export(s.dataRecorder)
	s.runRecorder.Set("Wind Loads Exhausted", strconv.FormatBool(exhausted))
	s.runRecorder.End(m.Now(), complete)
	s.dataRecorder.Flush()

	s.logger.Info().
		Str("model", m.Name()).
		Uint64("ticks", m.Now()).
		Bool("complete", complete).
		Dur("elapsed", time.Since(start)).
		Str("output", s.outputPath+".sqlite3").
		Msg("simulation done")

	s.logStalls()

	return err
}

func (s *Simulation) runChunks(ctx context.Context, total, chunk uint64) error {
	m := s.telescope.Model

	for m.Now() < total {
		if err := ctx.Err(); err != nil {
			return err
		}

		n := min(chunk, total-m.Now())
		if err := m.Run(n); err != nil {
			return err
		}

		if s.telescope.WindLoads.Done() {
			s.logger.Info().
				Uint64("tick", m.Now()).
				Msg("wind loads exhausted, ending the run")

			return nil
		}
	}

	return nil
}

func (s *Simulation) logStalls() {
	for _, name := range s.counter.NodeNames() {
		c := s.counter.Count(name)
		if c.Stalls == 0 && c.Dropped == 0 {
			continue
		}

		s.logger.Warn().
			Str("node", name).
			Uint64("stalls", c.Stalls).
			Uint64("dropped", c.Dropped).
			Float64("utilization", c.Utilization()).
			Msg("node did not run every tick")
	}
}

// Terminate stops the monitor and closes the data recorder.
func (s *Simulation) Terminate() {
	if s.monitor != nil {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()

		if err := s.monitor.Shutdown(ctx); err != nil {
			s.logger.Warn().Err(err).Msg("monitor shutdown")
		}
	}

	if err := s.dataRecorder.Close(); err != nil {
		s.logger.Error().Err(err).Msg("closing the data recorder")
	}
}
