// Package servocodec maps joint angles to raw servo counts and back using
// per-joint calibration (spec §4.2). A servo's full mechanical range is
// 240 degrees; raw count 500 corresponds to the calibrated zero angle, 0
// and 1000 correspond to +/-120 degrees from zero.
package servocodec

import (
	"math"

	"github.com/kevywilly/vega/internal/model"
)

const (
	fullRangeDeg = 240.0
	rawCenter    = 500
	rawMin       = 0
	rawMax       = 1000
)

// Calibration holds per-joint mechanical calibration: the joint angle
// (radians) that encodes to the center count 500, and the sign of the
// servo's mechanical orientation.
type Calibration struct {
	ZeroAngle [model.NumLegs][model.NumJoints]float64
	Flip      [model.NumLegs][model.NumJoints]int
}

// Codec encodes/decodes JointAngles against a fixed Calibration.
type Codec struct {
	cal Calibration
	// ServoID maps (leg, joint) to the wire identifier 10*leg + joint
	// (spec §6), leg numbered 1-4 and joint numbered 1-3.
}

// New builds a Codec from the given per-joint calibration.
func New(cal Calibration) Codec {
	return Codec{cal: cal}
}

// ServoID returns the two-digit wire identifier for (leg, joint), per
// spec §6: id = 10*(leg+1) + (joint+1).
func ServoID(leg model.LegIndex, joint int) int {
	return 10*(int(leg)+1) + (joint + 1)
}

// EncodeResult reports the raw ServoCommand plus whether any joint's
// count saturated at 0 or 1000 (spec §4.2/§7: "saturation is silent but
// observable via a clipping flag").
type EncodeResult struct {
	Command  model.ServoCommand
	Saturated bool
}

// Encode converts JointAngles to a ServoCommand using the codec's
// calibration. Pure and total: out-of-range angles saturate rather than
// error (spec §4.2, §7).
func (c Codec) Encode(angles model.JointAngles) EncodeResult {
	cmd := make(model.ServoCommand, model.NumLegs*model.NumJoints)
	saturated := false

	for leg := 0; leg < model.NumLegs; leg++ {
		for joint := 0; joint < model.NumJoints; joint++ {
			adjusted := angles[leg][joint] - c.cal.ZeroAngle[leg][joint]
			flip := float64(c.cal.Flip[leg][joint])
			raw := math.Round(adjusted*flip*1000/(fullRangeDeg*math.Pi/180)) + rawCenter

			if raw < rawMin {
				raw = rawMin
				saturated = true
			} else if raw > rawMax {
				raw = rawMax
				saturated = true
			}

			cmd[ServoID(model.LegIndex(leg), joint)] = int(raw)
		}
	}

	return EncodeResult{Command: cmd, Saturated: saturated}
}

// Decode converts a ServoCommand back to JointAngles, the inverse of
// Encode (spec §4.2).
func (c Codec) Decode(cmd model.ServoCommand) model.JointAngles {
	var angles model.JointAngles
	for leg := 0; leg < model.NumLegs; leg++ {
		for joint := 0; joint < model.NumJoints; joint++ {
			raw, ok := cmd[ServoID(model.LegIndex(leg), joint)]
			if !ok {
				continue
			}
			flip := float64(c.cal.Flip[leg][joint])
			adjusted := float64(raw-rawCenter) * (fullRangeDeg * math.Pi / 180) / (1000 * flip)
			angles[leg][joint] = adjusted + c.cal.ZeroAngle[leg][joint]
		}
	}
	return angles
}
