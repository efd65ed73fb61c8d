// Package scheduler runs the fixed-rate control loop that drives
// locomotion: a move-intent state machine selects a gait, the loop ticks
// it forward and dispatches each tick through the pose controller, and a
// threshold-driven auto-level routine nulls out body pitch/yaw using the
// IMU (spec §4.7, grounded on src/nodes/robot.py's Robot.spinner/
// process_move/level).
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/kevywilly/vega/internal/config"
	"github.com/kevywilly/vega/internal/gait"
	"github.com/kevywilly/vega/internal/imu"
	"github.com/kevywilly/vega/internal/model"
	"github.com/kevywilly/vega/internal/pose"
)

// TickDurationMS is the per-tick servo move duration dispatched to the
// pose controller while a gait is running, short enough to keep up with
// the control loop's own period.
const TickDurationMS = 20

// postureDurationMS is used for one-shot postural moves (ready, stop,
// level), matching the original's default millis=200.
const postureDurationMS = 200

// levelPassCount and levelIterationsPerPass mirror auto_level's four
// outer passes of up to ten offset-nudging iterations each.
const (
	levelPassCount         = 4
	levelIterationsPerPass = 10
)

// levelPitchSigns and levelYawSigns are the fixed per-leg sign patterns
// auto-level nudges the z offset by, grounded on level()'s pitch_array
// and yaw_array.
var (
	levelPitchSigns = [model.NumLegs]float64{1, -1, -1, 1}
	levelYawSigns   = [model.NumLegs]float64{-1, -1, 1, 1}
)

// moveState holds the in-progress gait and the absolute position its
// offsets are added to, replacing the original's implicit p0 captured
// inside each Gait instance (spec §9: gaits carry no absolute position).
type moveState struct {
	intent model.MoveIntent
	g      *gait.Gait
	home   model.FootPositions
}

// Stats is a point-in-time snapshot for the get_stats command surface
// (spec §7). AngularVelocity and AngularAcceleration are derived here by
// finite differences of consecutive IMU samples rather than read from
// the IMU directly, since imu.Device only promises a euler readout
// (SPEC_FULL.md SUPPLEMENTED FEATURES, grounded on src/nodes computing
// the same derivative between ticks).
type Stats struct {
	Intent              model.MoveIntent
	Moving              bool
	Euler               imu.Euler
	AngularVelocity     imu.Euler
	AngularAcceleration imu.Euler
	IMUValid            bool
	Calibration         imu.CalibrationStatus
	Offsets             model.PositionOffsets
	Tilt                model.Tilt
	TickCount           uint64
	DroppedTicks        uint64
}

// imuHistory holds the previous IMU sample and its derived velocity,
// enough to compute the next finite difference.
type imuHistory struct {
	valid     bool
	prevEuler imu.Euler
	prevAt    time.Time
	velocity  imu.Euler
}

// Scheduler owns the move-intent state machine and the fixed-rate
// control loop. All mutation of move state goes through mu so Run's
// ticker goroutine and command-surface calls never race (spec §5, §7).
type Scheduler struct {
	pose   *pose.Controller
	imu    *imu.Reader
	s      *config.Settings
	logger zerolog.Logger

	rate time.Duration

	mu       sync.Mutex
	moving   bool
	move     moveState
	shutdown sync.Once
	history  imuHistory

	tickCount    uint64
	droppedTicks uint64
}

// New builds a Scheduler ticking at the given control rate.
func New(poseCtl *pose.Controller, imuReader *imu.Reader, settings *config.Settings, rate time.Duration, logger zerolog.Logger) *Scheduler {
	return &Scheduler{pose: poseCtl, imu: imuReader, s: settings, rate: rate, logger: logger}
}

// Run ticks the control loop until ctx is cancelled (spec §4.7). Each
// tick advances the active gait (if any) and dispatches the resulting
// foot positions; a dispatch failure is logged and counted, never fatal
// to the loop (spec §7 "a dropped tick must not stall the scheduler").
func (sch *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(sch.rate)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sch.tick(ctx)
		}
	}
}

func (sch *Scheduler) tick(ctx context.Context) {
	sch.mu.Lock()
	moving := sch.moving
	g := sch.move.g
	home := sch.move.home
	sch.mu.Unlock()

	if !moving || g == nil {
		return
	}

	offset := g.Next()
	target := home.Add(offset)

	sch.pose.SetTargets(target)
	if err := sch.pose.MoveToTargets(ctx, sch.s.Offsets(), sch.s.Tilt(), TickDurationMS); err != nil {
		sch.droppedTicks++
		sch.logger.Debug().Err(err).Msg("gait tick dropped")
		return
	}
	sch.tickCount++
}

// ProcessMove selects the gait for a move intent (spec §4.7/§6, grounded
// on Robot.process_move's MoveTypes switch). Stop is equivalent to
// calling Stop.
func (sch *Scheduler) ProcessMove(ctx context.Context, intent model.MoveIntent) error {
	if intent == model.Stop {
		return sch.Stop(ctx)
	}

	variant, params, home, err := sch.gaitForIntent(intent)
	if err != nil {
		return err
	}

	g, err := gait.Build(variant, params)
	if err != nil {
		return err
	}

	sch.mu.Lock()
	sch.move = moveState{intent: intent, g: g, home: home}
	sch.moving = true
	sch.mu.Unlock()

	return nil
}

// gaitForIntent reproduces process_move's per-intent gait selection.
// Forward/backward intents shift the resting position by the configured
// forward/backward offsets instead of the gait carrying its own home
// (spec §9 READY_REVERSE decision, see DESIGN.md).
func (sch *Scheduler) gaitForIntent(intent model.MoveIntent) (gait.Variant, gait.Params, model.FootPositions, error) {
	ready := sch.s.PositionReady

	switch intent {
	case model.Forward:
		home := ready.AddOffsets(vectorOffsets(sch.s.ForwardOffsets))
		return gait.Trot, sch.s.TrotParams, home, nil
	case model.ForwardLeftTurn:
		p := sch.s.TurnParams
		p.TurnBias = 0.7
		return gait.Trot, p, ready, nil
	case model.ForwardRightTurn:
		p := sch.s.TurnParams
		p.TurnBias = -0.7
		return gait.Trot, p, ready, nil
	case model.Backward:
		home := ready.AddOffsets(vectorOffsets(sch.s.BackwardOffsets))
		return gait.Trot, sch.s.TrotReverseParams, home, nil
	case model.BackwardLeftTurn:
		p := sch.s.TurnParams
		p.TurnBias = 0.7
		p.Reversed = true
		return gait.Trot, p, ready, nil
	case model.BackwardRightTurn:
		p := sch.s.TurnParams
		p.TurnBias = -0.7
		p.Reversed = true
		return gait.Trot, p, ready, nil
	case model.Left:
		p := sch.s.SidestepParams
		p.Reversed = true
		return gait.Sidestep, p, ready, nil
	case model.Right:
		return gait.Sidestep, sch.s.SidestepParams, ready, nil
	case model.TrotInPlace:
		return gait.TrotInPlace, sch.s.TrotInPlaceParams, ready, nil
	default:
		return 0, gait.Params{}, model.FootPositions{}, gait.ErrInvalidParams
	}
}

func vectorOffsets(v model.Vector3) model.PositionOffsets {
	var out model.PositionOffsets
	for i := range out {
		out[i] = v
	}
	return out
}

// Stop halts the active gait and returns to the ready posture (spec
// §4.7, grounded on Robot.stop).
func (sch *Scheduler) Stop(ctx context.Context) error {
	sch.mu.Lock()
	sch.moving = false
	sch.move = moveState{intent: model.Stop}
	sch.mu.Unlock()

	return sch.Ready(ctx, postureDurationMS)
}

// Ready moves to the configured ready posture over durationMS.
func (sch *Scheduler) Ready(ctx context.Context, durationMS uint16) error {
	return sch.pose.MoveTo(ctx, sch.s.PositionReady, sch.s.Offsets(), sch.s.Tilt(), durationMS)
}

// SetPose moves directly to a named posture, bypassing any active gait
// (spec §4.7/§6).
func (sch *Scheduler) SetPose(ctx context.Context, posture model.NamedPosture, durationMS uint16) error {
	sch.mu.Lock()
	sch.moving = false
	sch.mu.Unlock()

	return sch.pose.MoveTo(ctx, sch.s.NamedPosture(posture), sch.s.Offsets(), sch.s.Tilt(), durationMS)
}

// AutoLevel runs up to levelPassCount leveling passes, stopping at the
// first success, grounded on Robot.auto_level.
func (sch *Scheduler) AutoLevel(ctx context.Context) bool {
	for i := 0; i < levelPassCount; i++ {
		sch.logger.Info().Int("pass", i).Msg("leveling pass")
		if sch.Level(ctx) {
			return true
		}
	}
	return false
}

// Level runs one leveling attempt: settle to ready, then nudge the z
// offset of all four legs by a fixed sign pattern per axis until both
// pitch and yaw fall within their configured thresholds or
// levelIterationsPerPass is exhausted (spec §4.7, grounded on
// Robot.level). On failure or an IMU error the offsets are reset and the
// robot returns to ready.
func (sch *Scheduler) Level(ctx context.Context) bool {
	if err := sch.Ready(ctx, postureDurationMS); err != nil {
		sch.logger.Warn().Err(err).Msg("level: failed to settle to ready")
	}
	time.Sleep(200 * time.Millisecond)

	for i := 0; i < levelIterationsPerPass; i++ {
		euler, ok := sch.imu.Latest()
		if !ok || sch.imu.ConsecutiveFailures() > 0 {
			sch.logger.Warn().Msg("level: no valid IMU sample, aborting pass")
			break
		}

		if withinThreshold(euler, sch.s.PitchThresholdDeg, sch.s.YawThresholdDeg) {
			sch.logger.Info().Float64("pitch", euler.Pitch).Float64("yaw", euler.Yaw).Msg("leveling succeeded")
			return true
		}

		delta := levelDelta(euler, sch.s.PitchThresholdDeg, sch.s.YawThresholdDeg)
		for leg := 0; leg < model.NumLegs; leg++ {
			sch.s.AdjustLegOffset(model.LegIndex(leg), delta[leg])
		}

		if err := sch.Ready(ctx, 10); err != nil {
			sch.logger.Warn().Err(err).Msg("level: failed mid-adjustment")
		}
		time.Sleep(300 * time.Millisecond)
	}

	sch.logger.Info().Msg("leveling failed, resetting offsets")
	sch.s.ResetOffsets()
	if err := sch.Ready(ctx, postureDurationMS); err != nil {
		sch.logger.Warn().Err(err).Msg("level: failed to restore ready after reset")
	}
	return false
}

func withinThreshold(e imu.Euler, pitchThreshold, yawThreshold float64) bool {
	return absf(e.Pitch) <= pitchThreshold && absf(e.Yaw) <= yawThreshold
}

// levelDelta returns the per-leg z-offset delta for one leveling
// iteration: levelPitchSigns/levelYawSigns scaled by the sign of the
// measured pitch/yaw error and summed, zero on axes already within
// threshold.
func levelDelta(e imu.Euler, pitchThreshold, yawThreshold float64) [model.NumLegs]model.Vector3 {
	var out [model.NumLegs]model.Vector3

	pitchSign := 0.0
	if absf(e.Pitch) > pitchThreshold {
		pitchSign = signOf(e.Pitch)
	}
	yawSign := 0.0
	if absf(e.Yaw) > yawThreshold {
		yawSign = signOf(e.Yaw)
	}

	for leg := 0; leg < model.NumLegs; leg++ {
		out[leg] = model.Vector3{Z: levelPitchSigns[leg]*pitchSign + levelYawSigns[leg]*yawSign}
	}
	return out
}

func absf(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

func signOf(v float64) float64 {
	if v < 0 {
		return -1
	}
	return 1
}

// Stats returns a point-in-time snapshot for the get_stats command
// surface.
func (sch *Scheduler) Stats() Stats {
	sch.mu.Lock()
	defer sch.mu.Unlock()

	euler, at, ok := sch.imu.LatestSample()
	velocity, accel := sch.deriveAngularMotion(euler, at, ok)

	return Stats{
		Intent:              sch.move.intent,
		Moving:              sch.moving,
		Euler:               euler,
		AngularVelocity:     velocity,
		AngularAcceleration: accel,
		IMUValid:            ok,
		Calibration:         sch.imu.CalibrationStatus(),
		Offsets:             sch.s.Offsets(),
		Tilt:                sch.s.Tilt(),
		TickCount:           sch.tickCount,
		DroppedTicks:        sch.droppedTicks,
	}
}

// deriveAngularMotion advances sch.history by one sample and returns the
// velocity/acceleration implied by the change since the previous call.
// Must be called with sch.mu held.
func (sch *Scheduler) deriveAngularMotion(euler imu.Euler, at time.Time, ok bool) (imu.Euler, imu.Euler) {
	if !ok || !sch.history.valid {
		if ok {
			sch.history = imuHistory{valid: true, prevEuler: euler, prevAt: at}
		}
		return imu.Euler{}, imu.Euler{}
	}

	dt := at.Sub(sch.history.prevAt).Seconds()
	if dt <= 0 {
		return sch.history.velocity, imu.Euler{}
	}

	velocity := imu.Euler{
		Roll:  (euler.Roll - sch.history.prevEuler.Roll) / dt,
		Pitch: (euler.Pitch - sch.history.prevEuler.Pitch) / dt,
		Yaw:   (euler.Yaw - sch.history.prevEuler.Yaw) / dt,
	}
	accel := imu.Euler{
		Roll:  (velocity.Roll - sch.history.velocity.Roll) / dt,
		Pitch: (velocity.Pitch - sch.history.velocity.Pitch) / dt,
		Yaw:   (velocity.Yaw - sch.history.velocity.Yaw) / dt,
	}

	sch.history = imuHistory{valid: true, prevEuler: euler, prevAt: at, velocity: velocity}
	return velocity, accel
}

// Demo cycles through ready, crouch, ready, sit with a pause between
// each, grounded on Robot.demo.
func (sch *Scheduler) Demo(ctx context.Context) error {
	postures := []model.NamedPosture{model.Ready, model.Crouch, model.Ready, model.Sit}
	for _, p := range postures {
		if err := sch.SetPose(ctx, p, postureDurationMS); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(2 * time.Second):
		}
	}
	return nil
}

// Shutdown stops the loop's effect on the servo bus exactly once,
// releasing torque (spec §4.7).
func (sch *Scheduler) Shutdown(ctx context.Context) error {
	var err error
	sch.shutdown.Do(func() {
		sch.mu.Lock()
		sch.moving = false
		sch.mu.Unlock()
		err = sch.pose.Shutdown(ctx)
	})
	return err
}
