package kinematics_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kevywilly/vega/internal/kinematics"
	"github.com/kevywilly/vega/internal/model"
)

func newTestSolver() kinematics.Solver {
	return kinematics.New(53, 102, 114)
}

func TestIKFKRoundTrip(t *testing.T) {
	s := newTestSolver()

	target := model.Vector3{X: 30, Y: 0, Z: -150}
	angles, err := s.IK(target)
	require.NoError(t, err)

	got := s.FK(angles)
	assert.InDelta(t, target.X, got.X, 1e-6)
	assert.InDelta(t, target.Z, got.Z, 1e-6)
}

func TestIKUnreachableBeyondMaxExtension(t *testing.T) {
	s := newTestSolver()

	maxReach := s.Femur + s.Tibia
	_, err := s.IK(model.Vector3{X: 0, Y: 0, Z: -(maxReach + 50)})
	assert.ErrorIs(t, err, kinematics.ErrUnreachable)
}

func TestIKUnreachableInsideMinExtension(t *testing.T) {
	s := newTestSolver()

	minReach := math.Abs(s.Femur - s.Tibia)
	_, err := s.IK(model.Vector3{X: 0, Y: 0, Z: -(minReach - 10)})
	assert.ErrorIs(t, err, kinematics.ErrUnreachable)
}

func TestIKAllDropsWholeCommandOnOneUnreachableLeg(t *testing.T) {
	s := newTestSolver()

	var positions model.FootPositions
	for i := range positions {
		positions[i] = model.Vector3{X: 0, Y: 0, Z: -150}
	}
	positions[2] = model.Vector3{X: 0, Y: 0, Z: -10000}

	_, err := s.IKAll(positions)
	assert.ErrorIs(t, err, kinematics.ErrUnreachable)
}

func TestBodyTiltZeroTiltIsIdentity(t *testing.T) {
	var positions model.FootPositions
	for i := range positions {
		positions[i] = model.Vector3{X: 0, Y: 0, Z: -150}
	}

	out := kinematics.BodyTilt(positions, 223, 142, model.Tilt{})
	assert.Equal(t, positions, out)
}

func TestBodyTiltPitchOpposesRightAndLeft(t *testing.T) {
	var positions model.FootPositions

	out := kinematics.BodyTilt(positions, 223, 142, model.Tilt{PitchDeg: 5})

	// Pitch ties right legs (FR, BR) and left legs (FL, BL) to opposite z
	// shifts (spec §4.1).
	assert.NotEqual(t, out[model.FrontRight].Z, out[model.BackLeft].Z)
}
