// Package model wires the integrated telescope model: wind loads, the modal
// plant, the mount, M1 and M2 control loops and the record of the run.
package model

import (
	"fmt"

	"github.com/dosflow/dosflow/asms"
	"github.com/dosflow/dosflow/clients/m1"
	"github.com/dosflow/dosflow/sim/payload"
)

// Catalogue holds every tag of the telescope model.
var Catalogue = payload.NewRegistry()

// Wind loads.
var (
	Weight            = Catalogue.MustDefine("Weight", 1)
	CFDM1WindLoads    = Catalogue.MustDefine("CFDM1WindLoads", 42)
	CFDM2WindLoads    = Catalogue.MustDefine("CFDM2WindLoads", 21)
	CFDMountWindLoads = Catalogue.MustDefine("CFDMountWindLoads", 6)
)

// Mount.
var (
	MountSetPoint = Catalogue.MustDefine("MountSetPoint", 3)
	MountEncoders = Catalogue.MustDefine("MountEncoders", 3)
	MountTorques  = Catalogue.MustDefine("MountTorques", 3)
)

// M1.
var (
	M1RBMcmd           = Catalogue.MustDefine("M1RBMcmd", m1.NumHardpoints)
	OSSHardpointDeltaF = Catalogue.MustDefine("OSSHardpointDeltaF", m1.NumHardpoints)
	OSSHardpointD      = Catalogue.MustDefine("OSSHardpointD", 2*m1.NumHardpoints)
	M1RigidBodyMotions = Catalogue.MustDefine("M1RigidBodyMotions", 42)

	// HardpointLoadCells are the per segment load cell readings, S1HPLC to
	// S7HPLC.
	HardpointLoadCells [m1.NumSegments]*payload.Tag

	// ActuatorsSegment are the per segment actuator forces,
	// M1ActuatorsSegment1 to M1ActuatorsSegment7.
	ActuatorsSegment [m1.NumSegments]*payload.Tag
)

var schema = asms.DefaultSchema()

func cpModalForcesLen() int {
	sl, _ := schema.Slice(asms.CPModalForce)
	return asms.NumSegments * sl.Len
}

// M2.
var (
	M2PosCmd            = Catalogue.MustDefine("M2poscmd", 42)
	M2PositionerNodes   = Catalogue.MustDefine("M2PositionerNodes", 84)
	M2PositionerForces  = Catalogue.MustDefine("M2PositionerForces", 42)
	M2ASMCommand        = Catalogue.MustDefine("M2ASMCommand", asms.NumSegments*schema.CommandLen)
	M2ASMFaceSheetNodes = Catalogue.MustDefine("M2ASMFaceSheetNodes", asms.NumSegments*schema.FeedbackLen)
	M2ASMForces         = Catalogue.MustDefine("M2ASMForces", schema.CollectedLen())
	M2ASMUcp            = Catalogue.MustDefine("M2ASMUcp", cpModalForcesLen())
)

func init() {
	for i := range m1.NumSegments {
		HardpointLoadCells[i] = Catalogue.MustDefine(
			fmt.Sprintf("S%dHPLC", i+1), m1.HardpointsPerSegment)
		ActuatorsSegment[i] = Catalogue.MustDefine(
			fmt.Sprintf("M1ActuatorsSegment%d", i+1), m1.HardpointsPerSegment)
	}
}

// PlantInputs are the inputs of the modal plant, in the order of its input
// vector.
func PlantInputs() []*payload.Tag {
	ins := []*payload.Tag{MountTorques, OSSHardpointDeltaF}
	ins = append(ins, ActuatorsSegment[:]...)

	return append(ins,
		CFDM1WindLoads,
		M2PositionerForces,
		M2ASMForces,
		CFDM2WindLoads,
		CFDMountWindLoads,
	)
}

// PlantOutputs are the outputs of the modal plant, in the order of its
// output vector.
func PlantOutputs() []*payload.Tag {
	return []*payload.Tag{
		MountEncoders,
		OSSHardpointD,
		M1RigidBodyMotions,
		M2ASMFaceSheetNodes,
		M2PositionerNodes,
	}
}
