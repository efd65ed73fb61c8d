package servocodec_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kevywilly/vega/internal/model"
	"github.com/kevywilly/vega/internal/servocodec"
)

func testCalibration() servocodec.Calibration {
	var cal servocodec.Calibration
	for leg := 0; leg < model.NumLegs; leg++ {
		cal.Flip[leg] = [model.NumJoints]int{-1, 1, 1}
		cal.ZeroAngle[leg] = [model.NumJoints]float64{0, 1.57, 0.52}
	}
	return cal
}

func TestServoIDEncoding(t *testing.T) {
	assert.Equal(t, 11, servocodec.ServoID(model.FrontRight, model.Coxa))
	assert.Equal(t, 23, servocodec.ServoID(model.FrontLeft, model.Tibia))
	assert.Equal(t, 41, servocodec.ServoID(model.BackRight, model.Coxa))
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	codec := servocodec.New(testCalibration())

	var angles model.JointAngles
	for leg := 0; leg < model.NumLegs; leg++ {
		angles[leg] = [model.NumJoints]float64{0.1, 1.4, 0.9}
	}

	encoded := codec.Encode(angles)
	require.False(t, encoded.Saturated)

	decoded := codec.Decode(encoded.Command)
	reEncoded := codec.Encode(decoded)

	assert.Equal(t, encoded.Command, reEncoded.Command)
}

func TestEncodeSaturatesAtBounds(t *testing.T) {
	codec := servocodec.New(testCalibration())

	var angles model.JointAngles
	for leg := 0; leg < model.NumLegs; leg++ {
		angles[leg] = [model.NumJoints]float64{100, 100, 100}
	}

	result := codec.Encode(angles)
	assert.True(t, result.Saturated)

	for _, raw := range result.Command {
		assert.True(t, raw == 0 || raw == 1000)
	}
}

func TestEncodeCenterIsRawCenter(t *testing.T) {
	cal := testCalibration()
	codec := servocodec.New(cal)

	var angles model.JointAngles
	for leg := 0; leg < model.NumLegs; leg++ {
		angles[leg] = cal.ZeroAngle[leg]
	}

	result := codec.Encode(angles)
	for _, raw := range result.Command {
		assert.Equal(t, 500, raw)
	}
}
