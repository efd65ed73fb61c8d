// Package kinematics implements closed-form inverse and forward solvers
// for one leg of the robot (spec §4.1), plus whole-body tilt compensation.
// A leg is modelled as a planar two-link arm (femur, tibia) in the x-z
// plane, with the coxa providing rotation about z so a lateral y component
// lifts the plane.
package kinematics

import (
	"math"

	"github.com/pkg/errors"

	"github.com/kevywilly/vega/internal/model"
)

// ErrUnreachable is returned by IK when the target lies outside the
// reachable annulus |femur-tibia| <= r <= femur+tibia (spec §3, §4.1).
var ErrUnreachable = errors.New("foot position unreachable")

// Solver holds the link lengths for one leg geometry, shared by all four
// legs (the geometry is assumed identical per the spec's data model).
type Solver struct {
	Coxa, Femur, Tibia float64
}

// New builds a Solver from the configured link lengths (mm).
func New(coxa, femur, tibia float64) Solver {
	return Solver{Coxa: coxa, Femur: femur, Tibia: tibia}
}

// IK solves the joint angles that place the foot at the given body-frame
// position. Returns ErrUnreachable when the point lies outside the
// reachable annulus.
func (s Solver) IK(pos model.Vector3) (model.Vector3, error) {
	x := -pos.X
	z := pos.Z

	r2 := x*x + z*z
	r := math.Sqrt(r2)
	if r > s.Femur+s.Tibia || r < math.Abs(s.Femur-s.Tibia) {
		return model.Vector3{}, errors.Wrapf(ErrUnreachable, "r=%.3f femur=%.3f tibia=%.3f", r, s.Femur, s.Tibia)
	}

	cosQ2 := (r2 - s.Femur*s.Femur - s.Tibia*s.Tibia) / (2 * s.Femur * s.Tibia)
	cosQ2 = clamp(cosQ2, -1, 1)
	q2 := math.Acos(cosQ2)

	q1 := math.Atan2(z, x) - math.Atan2(s.Tibia*math.Sin(q2), s.Femur+s.Tibia*math.Cos(q2))
	q0 := math.Atan2(pos.Y, pos.Z)

	return model.Vector3{X: q0, Y: q1, Z: q2}, nil
}

// FK computes the foot position reached by the given (coxa, femur, tibia)
// angles, discarding the coxa's out-of-plane contribution and returning
// the planar solution (spec §4.1: "FK is total").
func (s Solver) FK(angles model.Vector3) model.Vector3 {
	q1, q2 := angles.Y, angles.Z
	x := s.Femur*math.Cos(q1) + s.Tibia*math.Cos(q1+q2)
	z := s.Femur*math.Sin(q1) + s.Tibia*math.Sin(q1+q2)
	return model.Vector3{X: -x, Y: 0, Z: z}
}

// IKAll runs IK on all four legs of a FootPositions matrix, failing the
// whole command if any single leg is unreachable (spec §4.6: "the whole
// command is dropped").
func (s Solver) IKAll(positions model.FootPositions) (model.JointAngles, error) {
	var angles model.JointAngles
	for leg := 0; leg < model.NumLegs; leg++ {
		a, err := s.IK(positions[leg])
		if err != nil {
			return model.JointAngles{}, errors.Wrapf(err, "leg %d", leg)
		}
		angles[leg] = [model.NumJoints]float64{a.X, a.Y, a.Z}
	}
	return angles, nil
}

// FKAll runs FK on all four legs of a JointAngles matrix.
func (s Solver) FKAll(angles model.JointAngles) model.FootPositions {
	var positions model.FootPositions
	for leg := 0; leg < model.NumLegs; leg++ {
		a := angles[leg]
		positions[leg] = s.FK(model.Vector3{X: a[0], Y: a[1], Z: a[2]})
	}
	return positions
}

// BodyTilt applies a small-angle body-rotation approximation to a
// FootPositions matrix: pitch and yaw translate each foot in z, producing
// a commanded chassis rotation without moving the feet (spec §4.1).
//
// length and width are the robot's overall body length (x) and width (y)
// in mm; leg ordering follows model.LegIndex
// (0=FR, 1=FL, 2=BL, 3=BR).
func BodyTilt(positions model.FootPositions, length, width float64, tilt model.Tilt) model.FootPositions {
	zx := (length / 2) * math.Sin(deg2rad(tilt.YawDeg))
	zy := (width / 2) * math.Sin(deg2rad(tilt.PitchDeg))

	zxSign := [model.NumLegs]float64{+1, +1, -1, -1}
	zySign := [model.NumLegs]float64{+1, -1, -1, +1}

	out := positions
	for i := range out {
		out[i].Z += zx*zxSign[i] + zy*zySign[i]
	}
	return out
}

func deg2rad(d float64) float64 { return d * math.Pi / 180 }

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
