package config_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kevywilly/vega/internal/config"
	"github.com/kevywilly/vega/internal/model"
)

func TestLoadMissingFileFallsBackToDefaults(t *testing.T) {
	s, err := config.Load("/does/not/exist/vega.yaml")
	require.NoError(t, err)

	assert.Equal(t, "/dev/serial0", s.SerialPort)
	assert.Len(t, s.ServoIDs, model.NumLegs*model.NumJoints)
	assert.Equal(t, 11, s.ServoIDs[0])
	assert.Equal(t, s.FemurLength+s.TibiaLength, s.RobotMaxHeight)
}

func TestLoadEmptyPathUsesDefaultGaitParams(t *testing.T) {
	s, err := config.Load("")
	require.NoError(t, err)
	assert.Equal(t, 40.0, s.TrotParams.Stride)
	assert.Equal(t, 60.0, s.TrotParams.Clearance)
	assert.Equal(t, 15.0, s.TrotParams.StepSize)
}

func TestReadyStanceLowersFrontLegsRelativeToBack(t *testing.T) {
	s, err := config.Load("")
	require.NoError(t, err)

	front := s.PositionReady[model.FrontRight].Z
	back := s.PositionReady[model.BackRight].Z
	assert.Less(t, front, back, "front legs should sit lower than back legs in the ready stance")
}

func TestNamedPostureResolvesAllNames(t *testing.T) {
	s, err := config.Load("")
	require.NoError(t, err)

	assert.Equal(t, s.PositionHome, s.NamedPosture(model.Home))
	assert.Equal(t, s.PositionReady, s.NamedPosture(model.Ready))
	assert.Equal(t, s.PositionCrouch, s.NamedPosture(model.Crouch))
	assert.Equal(t, s.PositionSit, s.NamedPosture(model.Sit))
	assert.Equal(t, s.PositionWalk, s.NamedPosture(model.Walk))
}

func TestAdjustOffsetsAffectsOnlyTargetedGroup(t *testing.T) {
	s, err := config.Load("")
	require.NoError(t, err)

	delta := model.Vector3{Z: 5}
	s.AdjustOffsets(delta, model.GroupLeft)

	offsets := s.Offsets()
	assert.Equal(t, s.DefaultOffsets[model.FrontLeft].Add(delta), offsets[model.FrontLeft])
	assert.Equal(t, s.DefaultOffsets[model.BackLeft].Add(delta), offsets[model.BackLeft])
	assert.Equal(t, s.DefaultOffsets[model.FrontRight], offsets[model.FrontRight], "right legs must be untouched")
}

func TestAdjustLegOffsetAffectsOnlyThatLeg(t *testing.T) {
	s, err := config.Load("")
	require.NoError(t, err)

	delta := model.Vector3{Z: 3}
	s.AdjustLegOffset(model.BackRight, delta)

	offsets := s.Offsets()
	assert.Equal(t, s.DefaultOffsets[model.BackRight].Add(delta), offsets[model.BackRight])
	assert.Equal(t, s.DefaultOffsets[model.FrontRight], offsets[model.FrontRight])
}

func TestResetOffsetsRestoresDefaults(t *testing.T) {
	s, err := config.Load("")
	require.NoError(t, err)

	s.AdjustLegOffset(model.FrontLeft, model.Vector3{X: 10})
	s.ResetOffsets()
	assert.Equal(t, s.DefaultOffsets, s.Offsets())
}

func TestSetTiltClampsToMax(t *testing.T) {
	s, err := config.Load("")
	require.NoError(t, err)

	s.SetTilt(model.Tilt{PitchDeg: 100, YawDeg: -100}, 15)
	tilt := s.Tilt()
	assert.LessOrEqual(t, tilt.PitchDeg, 15.0)
	assert.GreaterOrEqual(t, tilt.YawDeg, -15.0)
}
