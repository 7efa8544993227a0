package simulation

import (
	"fmt"

	"github.com/rs/xid"

	"github.com/dosflow/dosflow/config"
	"github.com/dosflow/dosflow/datarecording"
	"github.com/dosflow/dosflow/internal/logging"
	"github.com/dosflow/dosflow/model"
	"github.com/dosflow/dosflow/monitoring"
	"github.com/dosflow/dosflow/sim/graph"
	"github.com/dosflow/dosflow/tracing"
)

// Builder can be used to build a simulation.
type Builder struct {
	cfg            config.Config
	parallelism    int
	monitorOn      bool
	monitorPort    int
	openBrowser    bool
	traceEdges     bool
	outputFileName string
}

// MakeBuilder creates a new builder for the default scenario, with
// monitoring off.
func MakeBuilder() Builder {
	return Builder{cfg: config.Default()}
}

// WithConfig sets the scenario. The monitor, parallelism and output settings
// of the scenario are taken over; later With calls override them. The
// monitor port and browser settings of a scenario with monitoring disabled
// are ignored.
func (b Builder) WithConfig(cfg config.Config) Builder {
	b.cfg = cfg
	b.parallelism = cfg.Parallel
	b.monitorOn = cfg.Monitor.Enabled
	b.monitorPort = 0
	b.openBrowser = false

	if cfg.Monitor.Enabled {
		b.monitorPort = cfg.Monitor.Port
		b.openBrowser = cfg.Monitor.OpenBrowser
	}

	b.outputFileName = cfg.Logger.Output

	return b
}

// WithParallelism runs each topological level on up to n goroutines.
func (b Builder) WithParallelism(n int) Builder {
	b.parallelism = n
	return b
}

// WithMonitoring turns on the web monitor.
func (b Builder) WithMonitoring() Builder {
	b.monitorOn = true
	return b
}

// WithoutMonitoring sets the simulation to not use monitoring.
func (b Builder) WithoutMonitoring() Builder {
	b.monitorOn = false
	b.monitorPort = 0

	return b
}

// WithMonitorPort sets the port number for the monitoring server.
func (b Builder) WithMonitorPort(port int) Builder {
	b.monitorPort = port
	return b
}

// WithEdgeTrace records every payload pushed onto an edge.
func (b Builder) WithEdgeTrace() Builder {
	b.traceEdges = true
	return b
}

// WithOutputFileName sets the custom output file name for the data recorder.
func (b Builder) WithOutputFileName(filename string) Builder {
	b.outputFileName = filename
	return b
}

func (b Builder) parametersMustBeValid() {
	if !b.monitorOn && b.monitorPort != 0 {
		panic("monitor port cannot be set when monitoring is disabled")
	}
}

// Build wires the model and the services around it.
func (b Builder) Build() (*Simulation, error) {
	b.parametersMustBeValid()

	s := &Simulation{
		id:     xid.New().String(),
		cfg:    b.cfg,
		logger: logging.Component("simulation"),
	}

	opts := []graph.ModelOption{graph.WithLogger(*logging.Component("graph"))}
	if b.parallelism > 1 {
		opts = append(opts, graph.WithParallelism(b.parallelism))
	}

	t, err := model.Build(b.cfg, opts...)
	if err != nil {
		return nil, fmt.Errorf("build %s: %w", b.cfg.Name, err)
	}

	s.telescope = t

	s.outputPath = b.outputFileName
	if s.outputPath == "" {
		s.outputPath = "dosflow_" + s.id
	}

	s.dataRecorder = datarecording.New(s.outputPath)
	s.runRecorder = datarecording.NewRunRecorder(s.dataRecorder)

	s.metrics = tracing.NewMetrics(b.cfg.Name)
	s.metrics.Observe(t.Model)

	s.counter = tracing.NewActivationCounter(nil)
	tracing.CollectModelTrace(t.Model, s.counter)

	if b.traceEdges {
		s.edgeRecorder = tracing.NewEdgeRecorder(s.dataRecorder)
		tracing.CollectModelTrace(t.Model, s.edgeRecorder)
	}

	if b.monitorOn {
		s.monitor = monitoring.NewMonitor().
			WithPortNumber(b.monitorPort).
			WithBrowser(b.openBrowser)
		s.monitor.RegisterModel(t.Model)
		s.monitor.RegisterMetrics(s.metrics)

		if _, err := s.monitor.StartServer(); err != nil {
			s.dataRecorder.Close()
			return nil, err
		}
	}

	return s, nil
}
