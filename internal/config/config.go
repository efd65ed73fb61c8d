// Package config loads the robot's static configuration from YAML
// (spec §6, grounded on the original's settings.py/config.py split) and
// derives the named postures and calibration tables every other package
// consumes. A small amount of runtime-mutable state (position offsets,
// body tilt) lives alongside it, guarded by a short critical section,
// replacing the original's reactive Settings attributes with an
// explicit, narrowly scoped mutable record (spec §5, §9).
package config

import (
	"os"
	"sync"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/kevywilly/vega/internal/gait"
	"github.com/kevywilly/vega/internal/imu"
	"github.com/kevywilly/vega/internal/model"
	"github.com/kevywilly/vega/internal/servocodec"
)

// GaitParams mirrors one of the original's *_params dicts: stride and
// clearance in millimeters, step_size in degrees.
type GaitParams struct {
	Stride    float64 `yaml:"stride"`
	Clearance float64 `yaml:"clearance"`
	StepSize  float64 `yaml:"step_size"`
}

func (g GaitParams) toGaitParams() gait.Params {
	return gait.Params{Stride: g.Stride, Clearance: g.Clearance, StepSize: g.StepSize}
}

// raw is the literal YAML document shape, kept distinct from Settings so
// the zero-value defaults below only ever apply once, at load time.
type raw struct {
	Debug       bool   `yaml:"debug"`
	Environment string `yaml:"environment"`
	APIURL      string `yaml:"api_url"`
	SerialPort  string `yaml:"serial_port"`

	Servos [model.NumLegs][model.NumJoints]int `yaml:"servos"`

	IMU struct {
		AxisRemap [6]int `yaml:"bno_axis_remap"`
		Offsets   struct {
			Magnetic [3]float64 `yaml:"magnetic"`
			Gyro     [3]float64 `yaml:"gyro"`
			Accel    [3]float64 `yaml:"acceleration"`
		} `yaml:"offsets"`
	} `yaml:"imu"`

	Dims struct {
		RobotWidth  float64 `yaml:"robot_width"`
		RobotLength float64 `yaml:"robot_length"`
		Coxa        float64 `yaml:"coxa_length"`
		Femur       float64 `yaml:"femur_length"`
		Tibia       float64 `yaml:"tibia_length"`
	} `yaml:"dims"`

	Leveling struct {
		YawThresholdDeg   float64 `yaml:"yaw_threshold"`
		PitchThresholdDeg float64 `yaml:"pitch_threshold"`
		AutoLevel         bool    `yaml:"auto_level"`
	} `yaml:"leveling"`

	Positioning struct {
		AngleFlip       [model.NumLegs][model.NumJoints]int     `yaml:"angle_flip"`
		AngleZeroDeg    [model.NumLegs][model.NumJoints]float64 `yaml:"angle_zero"`
		Offsets         [model.NumLegs][3]float64                `yaml:"offsets"`
		ForwardOffsets  [3]float64                                `yaml:"forward_offsets"`
		BackwardOffsets [3]float64                                `yaml:"backward_offsets"`
		ReadyHeightPct  float64                                   `yaml:"ready_height_pct"`
	} `yaml:"positioning"`

	GaitParams struct {
		Trot        GaitParams `yaml:"trot"`
		TrotReverse GaitParams `yaml:"trot_reverse"`
		Sidestep    GaitParams `yaml:"sidestep"`
		Turn        GaitParams `yaml:"turn"`
		Walk        GaitParams `yaml:"walk"`
		TrotInPlace GaitParams `yaml:"trot_in_place"`
	} `yaml:"gait_params"`
}

func defaultRaw() raw {
	var r raw
	r.SerialPort = "/dev/serial0"
	r.Environment = "development"
	r.Servos = [model.NumLegs][model.NumJoints]int{{11, 12, 13}, {21, 22, 23}, {31, 32, 33}, {41, 42, 43}}
	r.IMU.AxisRemap = [6]int{0, 1, 2, 1, 0, 1}
	r.IMU.Offsets.Magnetic = [3]float64{419, -250, -597}
	r.IMU.Offsets.Gyro = [3]float64{0, -2, -1}
	r.IMU.Offsets.Accel = [3]float64{16, -31, 14}
	r.Dims.RobotWidth = 142
	r.Dims.RobotLength = 223
	r.Dims.Coxa = 53
	r.Dims.Femur = 102
	r.Dims.Tibia = 114
	r.Leveling.YawThresholdDeg = 0.5
	r.Leveling.PitchThresholdDeg = 0.5
	r.Positioning.AngleFlip = [model.NumLegs][model.NumJoints]int{{-1, 1, 1}, {-1, -1, -1}, {-1, -1, -1}, {-1, 1, 1}}
	r.Positioning.AngleZeroDeg = [model.NumLegs][model.NumJoints]float64{{-2, 90, 30}, {-2, 90, 30}, {2, 90, 30}, {2, 90, 30}}
	r.Positioning.ReadyHeightPct = 0.5
	r.GaitParams.Trot = GaitParams{Stride: 40, Clearance: 60, StepSize: 15}
	r.GaitParams.Sidestep = GaitParams{Stride: 25, Clearance: 30, StepSize: 15}
	r.GaitParams.Turn = GaitParams{Stride: 20, Clearance: 60, StepSize: 10}
	r.GaitParams.Walk = GaitParams{Stride: 40, Clearance: 50, StepSize: 10}
	r.GaitParams.TrotInPlace = GaitParams{Stride: 0, Clearance: 40, StepSize: 25}
	r.GaitParams.TrotReverse = GaitParams{Stride: 40, Clearance: 60, StepSize: 15}
	return r
}

// Settings is the resolved, immutable configuration plus the small
// runtime-mutable state guarded by mu (spec §5, §9). Everything derived
// from raw is computed once at Load, mirroring the original's
// cached_property fields without needing a caching layer: Go structs
// just hold the value.
type Settings struct {
	Debug       bool
	Environment string
	SerialPort  string

	ServoIDs []int

	IMURemap   imu.AxisRemap
	IMUOffsets imu.Offsets

	RobotWidth, RobotLength    float64
	CoxaLength, FemurLength, TibiaLength float64
	RobotMaxHeight             float64

	YawThresholdDeg, PitchThresholdDeg float64
	AutoLevel                          bool

	Calibration servocodec.Calibration

	DefaultOffsets  model.PositionOffsets
	ForwardOffsets  model.Vector3
	BackwardOffsets model.Vector3
	ReadyHeightPct  float64

	PositionHome   model.FootPositions
	PositionReady  model.FootPositions
	PositionCrouch model.FootPositions
	PositionSit    model.FootPositions
	PositionWalk   model.FootPositions

	TrotParams, TrotReverseParams, SidestepParams, TurnParams, WalkParams, TrotInPlaceParams gait.Params

	mu       sync.Mutex
	offsets  model.PositionOffsets
	tilt     model.Tilt
}

// Load reads a YAML file at path and derives a Settings. A missing file
// is not an error: the built-in defaults (grounded on config.py's
// literal constants) are used, matching the original's willingness to
// run with in-repo defaults during development.
func Load(path string) (*Settings, error) {
	r := defaultRaw()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, errors.Wrapf(err, "read config %s", path)
			}
		} else if err := yaml.Unmarshal(data, &r); err != nil {
			return nil, errors.Wrapf(err, "parse config %s", path)
		}
	}

	return derive(r), nil
}

func derive(r raw) *Settings {
	s := &Settings{
		Debug:       r.Debug,
		Environment: r.Environment,
		SerialPort:  r.SerialPort,

		RobotWidth:  r.Dims.RobotWidth,
		RobotLength: r.Dims.RobotLength,
		CoxaLength:  r.Dims.Coxa,
		FemurLength: r.Dims.Femur,
		TibiaLength: r.Dims.Tibia,

		YawThresholdDeg:   r.Leveling.YawThresholdDeg,
		PitchThresholdDeg: r.Leveling.PitchThresholdDeg,
		AutoLevel:         r.Leveling.AutoLevel,

		ForwardOffsets:  model.Vector3{X: r.Positioning.ForwardOffsets[0], Y: r.Positioning.ForwardOffsets[1], Z: r.Positioning.ForwardOffsets[2]},
		BackwardOffsets: model.Vector3{X: r.Positioning.BackwardOffsets[0], Y: r.Positioning.BackwardOffsets[1], Z: r.Positioning.BackwardOffsets[2]},
		ReadyHeightPct:  r.Positioning.ReadyHeightPct,

		TrotParams:        r.GaitParams.Trot.toGaitParams(),
		TrotReverseParams: r.GaitParams.TrotReverse.toGaitParams(),
		SidestepParams:    r.GaitParams.Sidestep.toGaitParams(),
		TurnParams:        r.GaitParams.Turn.toGaitParams(),
		WalkParams:        r.GaitParams.Walk.toGaitParams(),
		TrotInPlaceParams: r.GaitParams.TrotInPlace.toGaitParams(),
	}
	s.RobotMaxHeight = s.FemurLength + s.TibiaLength

	s.ServoIDs = make([]int, 0, model.NumLegs*model.NumJoints)
	for leg := 0; leg < model.NumLegs; leg++ {
		for joint := 0; joint < model.NumJoints; joint++ {
			s.ServoIDs = append(s.ServoIDs, r.Servos[leg][joint])
		}
	}

	s.IMURemap = imu.AxisRemap{
		Index: [3]int{r.IMU.AxisRemap[0], r.IMU.AxisRemap[1], r.IMU.AxisRemap[2]},
		Sign:  signFromRemap(r.IMU.AxisRemap),
	}
	s.IMUOffsets = imu.Offsets{
		Magnetometer:  model.Vector3{X: r.IMU.Offsets.Magnetic[0], Y: r.IMU.Offsets.Magnetic[1], Z: r.IMU.Offsets.Magnetic[2]},
		Gyroscope:     model.Vector3{X: r.IMU.Offsets.Gyro[0], Y: r.IMU.Offsets.Gyro[1], Z: r.IMU.Offsets.Gyro[2]},
		Accelerometer: model.Vector3{X: r.IMU.Offsets.Accel[0], Y: r.IMU.Offsets.Accel[1], Z: r.IMU.Offsets.Accel[2]},
	}

	for leg := 0; leg < model.NumLegs; leg++ {
		for joint := 0; joint < model.NumJoints; joint++ {
			s.Calibration.Flip[leg][joint] = r.Positioning.AngleFlip[leg][joint]
			s.Calibration.ZeroAngle[leg][joint] = degToRad(r.Positioning.AngleZeroDeg[leg][joint])
		}
		s.DefaultOffsets[leg] = model.Vector3{X: r.Positioning.Offsets[leg][0], Y: r.Positioning.Offsets[leg][1], Z: r.Positioning.Offsets[leg][2]}
	}

	s.PositionHome = homePositions(s.RobotMaxHeight)
	s.PositionReady = readyPositions(s.PositionHome, s.ReadyHeightPct)
	s.PositionCrouch = s.PositionReady.Scale(0.7)
	s.PositionSit = sitPositions(s.PositionHome)
	s.PositionWalk = walkPositions(s.PositionHome, s.ReadyHeightPct)

	s.offsets = s.DefaultOffsets
	return s
}

// signFromRemap reinterprets the original's 6-tuple BNO_AXIS_REMAP
// (three axis indices followed by three 0/1 sign flags) into the
// AxisRemap{Index,Sign} shape this module's imu package expects.
func signFromRemap(remap [6]int) [3]int {
	var signs [3]int
	for i := 0; i < 3; i++ {
		if remap[3+i] == 0 {
			signs[i] = 1
		} else {
			signs[i] = -1
		}
	}
	return signs
}

func degToRad(d float64) float64 {
	const pi = 3.14159265358979323846
	return d * pi / 180
}

// homePositions is every foot directly below its hip at full leg
// extension (spec §6: "HOME = legs fully extended, feet below body
// center").
func homePositions(maxHeight float64) model.FootPositions {
	var p model.FootPositions
	for i := range p {
		p[i] = model.Vector3{X: 0, Y: 0, Z: maxHeight}
	}
	return p
}

// readyPositions scales HOME by readyHeightPct and gives the front legs
// (FR, FL) a slightly lower stance than the back legs, grounded on
// position_ready's "ar[:, 2] *= [0.9, 0.9, 1, 1]".
func readyPositions(home model.FootPositions, pct float64) model.FootPositions {
	scaled := home.Scale(pct)
	zFactor := [model.NumLegs]model.Vector3{
		{X: 1, Y: 1, Z: 0.9},
		{X: 1, Y: 1, Z: 0.9},
		{X: 1, Y: 1, Z: 1.0},
		{X: 1, Y: 1, Z: 1.0},
	}
	return scaled.ScalePerLeg(zFactor)
}

// sitPositions drops the back legs to a fraction of HOME and shifts the
// front/back legs fore-aft, grounded on position_sit.
func sitPositions(home model.FootPositions) model.FootPositions {
	zFactor := [model.NumLegs]model.Vector3{
		{X: 1, Y: 1, Z: 0.8},
		{X: 1, Y: 1, Z: 0.8},
		{X: 1, Y: 1, Z: 0.2},
		{X: 1, Y: 1, Z: 0.2},
	}
	out := home.ScalePerLeg(zFactor)
	xShift := [model.NumLegs]float64{10, 10, -25, -35}
	for i := range out {
		out[i].X += xShift[i]
	}
	return out
}

// walkPositions is the ready stance with the front legs lowered further,
// grounded on position_walk's "ar[:, 2] *= [0.8, 0.8, 1, 1]".
func walkPositions(home model.FootPositions, pct float64) model.FootPositions {
	scaled := home.Scale(pct)
	zFactor := [model.NumLegs]model.Vector3{
		{X: 1, Y: 1, Z: 0.8},
		{X: 1, Y: 1, Z: 0.8},
		{X: 1, Y: 1, Z: 1.0},
		{X: 1, Y: 1, Z: 1.0},
	}
	return scaled.ScalePerLeg(zFactor)
}

// NamedPosture resolves a model.NamedPosture to its concrete foot
// positions.
func (s *Settings) NamedPosture(n model.NamedPosture) model.FootPositions {
	switch n {
	case model.Home:
		return s.PositionHome
	case model.Ready:
		return s.PositionReady
	case model.Crouch:
		return s.PositionCrouch
	case model.Sit:
		return s.PositionSit
	case model.Walk:
		return s.PositionWalk
	default:
		return s.PositionReady
	}
}

// Offsets returns a copy of the current per-leg position offsets.
func (s *Settings) Offsets() model.PositionOffsets {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.offsets
}

// AdjustOffsets adds delta to every leg in group's position offset
// (spec §7, grounded on Settings.adjust_offsets).
func (s *Settings) AdjustOffsets(delta model.Vector3, group model.LegGroup) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, leg := range group.Legs() {
		s.offsets[leg] = s.offsets[leg].Add(delta)
	}
}

// AdjustLegOffset adds delta to a single leg's position offset, used by
// auto-level where each leg's z nudge carries its own sign (spec §4.7).
func (s *Settings) AdjustLegOffset(leg model.LegIndex, delta model.Vector3) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.offsets[leg] = s.offsets[leg].Add(delta)
}

// ResetOffsets restores the default position offsets.
func (s *Settings) ResetOffsets() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.offsets = s.DefaultOffsets
}

// Tilt returns the current commanded body tilt.
func (s *Settings) Tilt() model.Tilt {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tilt
}

// SetTilt updates the commanded body tilt, clamped to its configured
// maximum (spec §4.1, §7).
func (s *Settings) SetTilt(t model.Tilt, maxDeg float64) {
	t = t.Clamp(maxDeg)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tilt = t
}
