// Package model holds the shared data types that flow between the motion
// control components: leg-indexed positions and angles, the servo command
// wire type, and the small mutable records the scheduler and pose
// controller own (Pose, Tilt, PositionOffsets).
package model

import (
	"math"

	"github.com/golang/geo/r3"
)

// Vector3 is an (x, y, z) triple in millimetres (positions/offsets) or
// radians (joint angles), body frame unless stated otherwise.
type Vector3 = r3.Vector

// LegIndex identifies one of the four legs. The ordering is fixed and used
// by tilt compensation and auto-level: 0=front-right, 1=front-left,
// 2=back-left, 3=back-right.
type LegIndex int

const (
	FrontRight LegIndex = iota
	FrontLeft
	BackLeft
	BackRight
)

// NumLegs is the number of legs on the robot.
const NumLegs = 4

// NumJoints is the number of actuated joints per leg (coxa, femur, tibia).
const NumJoints = 3

// Joint indexes within a per-leg angle triple.
const (
	Coxa = iota
	Femur
	Tibia
)

// FootPositions is a 4x3 matrix of Vector3, one foot position per leg, in
// the body frame: origin at the geometric center, +z up, +x forward,
// +y left.
type FootPositions [NumLegs]Vector3

// Add returns a new FootPositions with each leg offset by the matching
// entry of delta.
func (f FootPositions) Add(delta FootPositions) FootPositions {
	var out FootPositions
	for i := range f {
		out[i] = f[i].Add(delta[i])
	}
	return out
}

// AddOffsets adds each leg's entry of offsets to that leg's position
// (PositionOffsets are stored per leg).
func (f FootPositions) AddOffsets(offsets PositionOffsets) FootPositions {
	var out FootPositions
	for i := range f {
		out[i] = f[i].Add(offsets[i])
	}
	return out
}

// Scale multiplies every leg's position by a scalar.
func (f FootPositions) Scale(s float64) FootPositions {
	var out FootPositions
	for i := range f {
		out[i] = f[i].Mul(s)
	}
	return out
}

// ScalePerLeg multiplies each leg's position componentwise by the matching
// entry of factors. Used by the named-posture formulas (SIT, WALK).
func (f FootPositions) ScalePerLeg(factors [NumLegs]Vector3) FootPositions {
	var out FootPositions
	for i := range f {
		out[i] = Vector3{X: f[i].X * factors[i].X, Y: f[i].Y * factors[i].Y, Z: f[i].Z * factors[i].Z}
	}
	return out
}

// Finite reports whether every coordinate of every leg position is finite,
// the FootPositions invariant from spec §3.
func (f FootPositions) Finite() bool {
	for _, p := range f {
		for _, v := range []float64{p.X, p.Y, p.Z} {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return false
			}
		}
	}
	return true
}

// JointAngles is a 4x3 matrix of radians: [coxa, femur, tibia] per leg.
type JointAngles [NumLegs][NumJoints]float64

// PositionOffsets is a 4x3 matrix of signed millimetre offsets added to
// every commanded foot position. Zero-valued at startup.
type PositionOffsets [NumLegs]Vector3
