package model

import (
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/dosflow/dosflow/asms"
	"github.com/dosflow/dosflow/clients"
	"github.com/dosflow/dosflow/clients/fem"
	"github.com/dosflow/dosflow/clients/logger"
	"github.com/dosflow/dosflow/clients/m1"
	"github.com/dosflow/dosflow/clients/m2"
	"github.com/dosflow/dosflow/clients/mount"
	"github.com/dosflow/dosflow/clients/windloads"
	"github.com/dosflow/dosflow/config"
	"github.com/dosflow/dosflow/internal/logging"
	"github.com/dosflow/dosflow/sim/graph"
	"github.com/dosflow/dosflow/sim/modeling"
)

// Node names of the telescope model.
const (
	NodeWindLoads     = "CFDLoads"
	NodeSigmoid       = "Sigmoid"
	NodeSmoothM1      = "SmoothM1"
	NodeSmoothM2      = "SmoothM2"
	NodeSmoothMount   = "SmoothMount"
	NodeAdder         = "Adder"
	NodeMountSetPoint = "MountSetPoint"
	NodeMount         = "Mount"
	NodeM1SetPoint    = "M1RBMSetPoint"
	NodeHardpoints    = "M1Hardpoints"
	NodeLoadCells     = "M1LoadCells"
	NodeM2SetPoint    = "M2PositionerSetPoint"
	NodePositioner    = "M2Positioner"
	NodeASMSSetPoint  = "ASMSSetPoint"
	NodeASMS          = "ASMS"
	NodePlant         = "FEM"
	NodeLogger        = "Logger"
)

// SegmentNode is the name of the actuator node of M1 segment id.
func SegmentNode(id int) string {
	return fmt.Sprintf("M1Segment[%d]", id)
}

// Telescope is the wired model and the clients a caller may inspect.
type Telescope struct {
	Config    config.Config
	Graph     *graph.Graph
	Model     *graph.Model
	Logger    *logger.Logger
	Aggregate *asms.Aggregate
	Plant     *fem.Plant
	WindLoads *windloads.Loads
}

// Build wires the telescope model of the scenario and validates it.
func Build(cfg config.Config, opts ...graph.ModelOption) (*Telescope, error) {
	t, err := Wire(cfg)
	if err != nil {
		return nil, err
	}

	opts = append([]graph.ModelOption{graph.WithHorizon(cfg.Ticks())}, opts...)

	t.Model, err = t.Graph.Build(opts...)
	if err != nil {
		return nil, err
	}

	return t, nil
}

// Wire creates the clients and connects them without building the model.
func Wire(cfg config.Config) (*Telescope, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	w := &wiring{
		cfg: cfg,
		t:   &Telescope{Config: cfg, Graph: graph.New(cfg.Name)},
	}

	for _, step := range []func() error{
		w.wireWindLoads,
		w.wireMount,
		w.wireM1,
		w.wireM2,
		w.wireASMS,
		w.wirePlant,
		w.wireLogger,
	} {
		if err := step(); err != nil {
			return nil, err
		}
	}

	w.connect()

	logging.Component("model").Info().
		Str("model", cfg.Name).
		Int("nodes", len(w.t.Graph.Nodes())).
		Int("edges", len(w.t.Graph.Edges())).
		Uint64("ticks", cfg.Ticks()).
		Msg("telescope wired")

	return w.t, nil
}

type wiring struct {
	cfg config.Config
	t   *Telescope

	loads, sigmoid, smoothM1, smoothM2, smoothMount, adder *modeling.Node
	mountSP, mount                                         *modeling.Node
	m1SP, hardpoints, loadCells                            *modeling.Node
	segments                                               [m1.NumSegments]*modeling.Node
	m2SP, positioner                                       *modeling.Node
	asmsSP, asms                                           *modeling.Node
	plant, logger                                          *modeling.Node
}

func (w *wiring) add(name string, c modeling.Client, rate modeling.RateRatio) (*modeling.Node, error) {
	return w.t.Graph.AddNode(name, c, rate)
}

func (w *wiring) steps() int {
	return int(w.cfg.Ticks())
}

func (w *wiring) dt() float64 {
	return 1 / float64(w.cfg.SamplingHz)
}

func (w *wiring) profile() (windloads.Profile, error) {
	if w.cfg.WindLoads.Source != "series" {
		width := CFDM1WindLoads.Len() + CFDM2WindLoads.Len() + CFDMountWindLoads.Len()
		return windloads.NewGusts(width, w.cfg.WindLoads.Seed, w.cfg.WindLoads.Stddev), nil
	}

	f, err := os.Open(w.cfg.WindLoads.SeriesFile)
	if err != nil {
		return nil, fmt.Errorf("wind loads: %w", err)
	}
	defer f.Close()

	return readSeries(f, w.cfg.WindLoads.SeriesHz)
}

func readSeries(r io.Reader, hz float64) (windloads.Profile, error) {
	s, err := windloads.ReadSeries(r, hz)
	if err != nil {
		return nil, fmt.Errorf("wind loads: %w", err)
	}

	return s, nil
}

func (w *wiring) wireWindLoads() (err error) {
	profile, err := w.profile()
	if err != nil {
		return err
	}

	w.t.WindLoads, err = windloads.NewLoads(
		windloads.Ports{M1: CFDM1WindLoads, M2: CFDM2WindLoads, Mount: CFDMountWindLoads},
		profile,
		float64(w.cfg.SamplingHz),
		windloads.WithDuration(w.cfg.Duration),
	)
	if err != nil {
		return err
	}

	sigmoid, err := clients.NewSigmoid(Weight, w.cfg.Fade.Delay, w.cfg.Fade.Ramp)
	if err != nil {
		return err
	}

	smoothM1, err := clients.NewSmooth(Weight, CFDM1WindLoads)
	if err != nil {
		return err
	}

	smoothM2, err := clients.NewSmooth(Weight, CFDM2WindLoads)
	if err != nil {
		return err
	}

	smoothMount, err := clients.NewSmooth(Weight, CFDMountWindLoads)
	if err != nil {
		return err
	}

	adder, err := clients.NewAdder(CFDM2WindLoads, M2ASMUcp, CFDM2WindLoads)
	if err != nil {
		return err
	}

	for _, n := range []struct {
		dst    **modeling.Node
		name   string
		client modeling.Client
	}{
		{&w.loads, NodeWindLoads, w.t.WindLoads},
		{&w.sigmoid, NodeSigmoid, sigmoid},
		{&w.smoothM1, NodeSmoothM1, smoothM1},
		{&w.smoothM2, NodeSmoothM2, smoothM2},
		{&w.smoothMount, NodeSmoothMount, smoothMount},
		{&w.adder, NodeAdder, adder},
	} {
		if *n.dst, err = w.add(n.name, n.client, modeling.SingleRate); err != nil {
			return err
		}
	}

	return nil
}

func (w *wiring) wireMount() (err error) {
	gains := mount.DefaultGains()
	gains.Dt = w.dt()

	ctrl, err := mount.New(mount.Ports{
		SetPoint: MountSetPoint,
		Encoders: MountEncoders,
		Torques:  MountTorques,
	}, gains)
	if err != nil {
		return err
	}

	w.mountSP, err = w.add(NodeMountSetPoint,
		clients.NewSignals(MountSetPoint, w.steps()), modeling.SingleRate)
	if err != nil {
		return err
	}

	w.mount, err = w.add(NodeMount, ctrl, modeling.SingleRate)

	return err
}

func (w *wiring) wireM1() (err error) {
	hardpoints, err := m1.NewHardpoints(M1RBMcmd, OSSHardpointDeltaF, 1, 0.5)
	if err != nil {
		return err
	}

	loadCells, err := m1.NewLoadCells(m1.LoadCellPorts{
		DeltaF:        OSSHardpointDeltaF,
		Displacements: OSSHardpointD,
		Segments:      HardpointLoadCells,
	}, 1)
	if err != nil {
		return err
	}

	w.m1SP, err = w.add(NodeM1SetPoint,
		clients.NewSignals(M1RBMcmd, w.steps()), modeling.SingleRate)
	if err != nil {
		return err
	}

	if w.hardpoints, err = w.add(NodeHardpoints, hardpoints, modeling.SingleRate); err != nil {
		return err
	}

	rate := w.cfg.M1Rate
	if w.loadCells, err = w.add(NodeLoadCells, loadCells, modeling.DownSample(rate)); err != nil {
		return err
	}

	for i := range m1.NumSegments {
		act, err := m1.NewActuators(i+1, HardpointLoadCells[i], ActuatorsSegment[i], 0.1)
		if err != nil {
			return err
		}

		if w.segments[i], err = w.add(SegmentNode(i+1), act, modeling.Hold(rate)); err != nil {
			return err
		}
	}

	return nil
}

func (w *wiring) wireM2() (err error) {
	positioner, err := m2.NewPositioner(m2.Ports{
		Command: M2PosCmd,
		Nodes:   M2PositionerNodes,
		Forces:  M2PositionerForces,
	}, 1)
	if err != nil {
		return err
	}

	w.m2SP, err = w.add(NodeM2SetPoint,
		clients.NewSignals(M2PosCmd, w.steps()), modeling.SingleRate)
	if err != nil {
		return err
	}

	w.positioner, err = w.add(NodePositioner, positioner, modeling.SingleRate)

	return err
}

func (w *wiring) wireASMS() (err error) {
	gains := asms.DefaultGains()
	gains.Dt = w.dt()

	var ctrls [asms.NumSegments]asms.SegmentController
	for i := range ctrls {
		if ctrls[i], err = asms.NewPTTController(schema, gains); err != nil {
			return err
		}
	}

	w.t.Aggregate, err = asms.New(
		asms.WithModalForcesGain(w.cfg.ASMS.ModalForcesGain),
		asms.WithFluidDampingGain(w.cfg.ASMS.FluidDampingGain),
		asms.WithControllers(ctrls),
	)
	if err != nil {
		return err
	}

	client, err := asms.NewClient(w.t.Aggregate, asms.Ports{
		Command:       M2ASMCommand,
		Feedback:      M2ASMFaceSheetNodes,
		Forces:        M2ASMForces,
		CPModalForces: M2ASMUcp,
	})
	if err != nil {
		return err
	}

	w.asmsSP, err = w.add(NodeASMSSetPoint,
		clients.NewSignals(M2ASMCommand, w.steps()), modeling.SingleRate)
	if err != nil {
		return err
	}

	w.asms, err = w.add(NodeASMS, client, modeling.SingleRate)

	return err
}

func (w *wiring) wirePlant() (err error) {
	cfg := fem.DefaultConfig()
	cfg.Modes = w.cfg.Plant.Modes
	cfg.Damping = w.cfg.Plant.Damping
	cfg.Seed = w.cfg.Plant.Seed
	cfg.SamplingHz = float64(w.cfg.SamplingHz)

	w.t.Plant, err = fem.NewPlant(cfg, PlantInputs(), PlantOutputs())
	if err != nil {
		return err
	}

	w.plant, err = w.add(NodePlant, w.t.Plant, modeling.SingleRate)

	return err
}

func (w *wiring) wireLogger() (err error) {
	l := logger.New(w.cfg.Name,
		logger.WithDecimation(w.cfg.Logger.Decimation),
		logger.WithFilename(w.cfg.Logger.Output),
		logger.WithMetadata("sim_sampling_frequency", strconv.Itoa(w.cfg.SamplingHz)),
		logger.WithMetadata("sim_duration", strconv.FormatFloat(w.cfg.Duration, 'g', -1, 64)),
		logger.WithMetadata("CFD_CASE", w.cfg.CFDCase),
		logger.WithMetadata("FEM_MODAL_DAMPING", strconv.FormatFloat(w.cfg.Plant.Damping, 'g', -1, 64)),
	)

	if err := l.LogN(M1RigidBodyMotions, M1RigidBodyMotions.Len()); err != nil {
		return err
	}

	if err := l.LogN(M2ASMFaceSheetNodes, M2ASMFaceSheetNodes.Len()); err != nil {
		return err
	}

	w.t.Logger = l
	w.logger, err = w.add(NodeLogger, l, modeling.SingleRate)

	return err
}

func (w *wiring) connect() {
	g := w.t.Graph

	g.Output(w.sigmoid, Weight).Multiplex(3).
		Into(w.smoothM1).
		Into(w.smoothM2).
		Into(w.smoothMount)

	g.Output(w.loads, CFDM1WindLoads).Into(w.smoothM1)
	g.Output(w.smoothM1, CFDM1WindLoads).Into(w.plant)
	g.Output(w.loads, CFDM2WindLoads).Into(w.smoothM2)
	g.Output(w.smoothM2, CFDM2WindLoads).Into(w.adder)
	g.Output(w.adder, CFDM2WindLoads).Into(w.plant)
	g.Output(w.loads, CFDMountWindLoads).Into(w.smoothMount)
	g.Output(w.smoothMount, CFDMountWindLoads).Into(w.plant)

	g.Output(w.mountSP, MountSetPoint).Into(w.mount)
	g.Output(w.mount, MountTorques).Into(w.plant)

	g.Output(w.m1SP, M1RBMcmd).Into(w.hardpoints)
	g.Output(w.hardpoints, OSSHardpointDeltaF).Multiplex(2).
		Into(w.plant).
		Into(w.loadCells)

	for i, seg := range w.segments {
		g.Output(w.loadCells, HardpointLoadCells[i]).Into(seg)
		g.Output(seg, ActuatorsSegment[i]).Bootstrap().Into(w.plant)
	}

	g.Output(w.m2SP, M2PosCmd).Into(w.positioner)
	g.Output(w.positioner, M2PositionerForces).Into(w.plant)

	g.Output(w.asmsSP, M2ASMCommand).Into(w.asms)
	g.Output(w.asms, M2ASMForces).Into(w.plant)
	g.Output(w.asms, M2ASMUcp).Into(w.adder)

	g.Output(w.plant, MountEncoders).Bootstrap().Into(w.mount)
	g.Output(w.plant, OSSHardpointD).Bootstrap().Into(w.loadCells)
	g.Output(w.plant, M1RigidBodyMotions).Bootstrap().Unbounded().Into(w.logger)
	g.Output(w.plant, M2ASMFaceSheetNodes).Multiplex(2).Bootstrap().Unbounded().
		Into(w.asms).
		Into(w.logger)
	g.Output(w.plant, M2PositionerNodes).Bootstrap().Into(w.positioner)
}
