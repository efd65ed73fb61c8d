// Package pose owns the one writable path from a target foot-position
// table to commanded servo counts (spec §4.6): apply offsets and body
// tilt, solve inverse kinematics, encode to raw servo counts, dispatch
// over the servo bus, and record what was actually sent. No other
// package talks to the servo bus directly.
package pose

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/kevywilly/vega/internal/kinematics"
	"github.com/kevywilly/vega/internal/model"
	"github.com/kevywilly/vega/internal/servobus"
	"github.com/kevywilly/vega/internal/servocodec"
)

// Geometry carries the body dimensions BodyTilt needs, set once from
// config (spec §6).
type Geometry struct {
	Length float64
	Width  float64
}

// Controller is the sole writer of model.Pose. It serializes every move
// through mu so a gait tick and a manual set_pose command can never
// interleave into a torn servo command (spec §4.6, §7).
type Controller struct {
	mu sync.Mutex

	solver kinematics.Solver
	codec  servocodec.Codec
	bus    servobus.Bus
	geom   Geometry
	ids    []int
	logger zerolog.Logger

	pose model.Pose
}

// New builds a Controller. home is recorded as the initial position and
// target; no servo command is sent until the first move.
func New(solver kinematics.Solver, codec servocodec.Codec, bus servobus.Bus, geom Geometry, ids []int, logger zerolog.Logger, home model.FootPositions) *Controller {
	return &Controller{
		solver: solver,
		codec:  codec,
		bus:    bus,
		geom:   geom,
		ids:    ids,
		logger: logger,
		pose: model.Pose{
			Positions:       home,
			TargetPositions: home,
		},
	}
}

// Snapshot returns a copy of the current pose.
func (c *Controller) Snapshot() model.Pose {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pose
}

// SetTargets records the next foot-position target without dispatching
// a move, used when a caller wants to stage a target ahead of a
// scheduler tick (spec §4.6).
func (c *Controller) SetTargets(positions model.FootPositions) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pose.TargetPositions = positions
}

// MoveToTargets solves and dispatches the currently staged target. On
// an unreachable leg the whole command is dropped and the previous pose
// is left in place (spec §4.1 "the whole command is dropped", §4.6).
func (c *Controller) MoveToTargets(ctx context.Context, offsets model.PositionOffsets, tilt model.Tilt, durationMS uint16) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	target := c.pose.TargetPositions.AddOffsets(offsets)
	target = kinematics.BodyTilt(target, c.geom.Length, c.geom.Width, tilt)

	angles, err := c.solver.IKAll(target)
	if err != nil {
		c.logger.Warn().Err(err).Msg("pose target unreachable, command dropped")
		return err
	}

	result := c.codec.Encode(angles)
	if result.Saturated {
		c.logger.Warn().Msg("servo command saturated on one or more joints")
	}

	if err := c.bus.Move(ctx, result.Command, durationMS); err != nil {
		return err
	}

	c.pose.Positions = target
	c.pose.Angles = angles
	c.pose.TargetAngles = angles
	c.pose.LastCommand = result.Command
	c.pose.UpdatedAt = time.Now()

	return nil
}

// MoveTo is the SetTargets+MoveToTargets convenience used for one-shot
// postural moves (ready, sit, crouch) where offsets and tilt are
// typically zero.
func (c *Controller) MoveTo(ctx context.Context, positions model.FootPositions, offsets model.PositionOffsets, tilt model.Tilt, durationMS uint16) error {
	c.SetTargets(positions)
	return c.MoveToTargets(ctx, offsets, tilt, durationMS)
}

// Shutdown releases servo torque, the last action on the servo bus
// before the process exits (spec §4.6).
func (c *Controller) Shutdown(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.bus.Unload(ctx, c.ids)
}
