// Package servobus implements the wire-level operations against the
// twelve-servo serial bus (spec §4.3, §6): move a group of servos to
// positions over a coordinated travel time, read positions back, and
// unload (release torque) at shutdown.
//
// On transport open failure the bus degrades into dry-run mode, where
// every operation reports success without effect, logged once (spec §4.3,
// §7).
package servobus

import (
	"context"
	"sync"
	"time"

	"github.com/hipsterbrown/feetech-servo/feetech"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/kevywilly/vega/internal/model"
)

// MinDurationMS and MaxDurationMS bound the coordinated travel time
// accepted by Move, per the wire protocol contract in spec §6.
const (
	MinDurationMS = 1
	MaxDurationMS = 30000
)

// ErrDurationOutOfRange is returned by Move when duration_ms falls
// outside [MinDurationMS, MaxDurationMS].
var ErrDurationOutOfRange = errors.New("servo move duration out of range")

// Bus is the ServoBus contract consumed by the pose controller: move a
// set of servos to raw counts over a duration, read positions back,
// release torque, and report battery voltage.
type Bus interface {
	Move(ctx context.Context, positions model.ServoCommand, durationMS uint16) error
	ReadPositions(ctx context.Context, ids []int) (model.ServoCommand, error)
	Unload(ctx context.Context, ids []int) error
	Voltage(ctx context.Context) (float64, error)
	DryRun() bool
	Close() error
}

// Config describes how to open the underlying serial transport.
type Config struct {
	Port     string
	BaudRate int
	Timeout  time.Duration
}

// feetechBus drives a feetech.Bus/feetech.ServoGroup per servo ID, the
// same construction the teacher's controller registry uses (one
// feetech.Servo per ID, grouped for a coordinated SyncWrite).
type feetechBus struct {
	mu     sync.Mutex
	bus    *feetech.Bus
	group  *feetech.ServoGroup
	ids    []int
	logger zerolog.Logger

	dryRun     bool
	dryRunOnce sync.Once
}

// Open opens the serial transport and builds a servo group spanning ids.
// On transport failure it returns a Bus already in dry-run mode rather
// than an error, per spec §4.3/§7 ("degrades the process into dry-run
// mode with a clear one-shot notification") — construction itself must
// not be fatal to the scheduler's startup sequence.
func Open(cfg Config, ids []int, logger zerolog.Logger) Bus {
	busConfig := feetech.BusConfig{
		Port:     cfg.Port,
		BaudRate: cfg.BaudRate,
		Protocol: feetech.ProtocolSTS,
		Timeout:  cfg.Timeout,
	}
	if busConfig.Timeout == 0 {
		busConfig.Timeout = time.Second
	}
	if busConfig.BaudRate == 0 {
		busConfig.BaudRate = 1000000
	}

	fb := &feetechBus{ids: ids, logger: logger}

	bus, err := feetech.NewBus(busConfig)
	if err != nil {
		fb.enterDryRun(errors.Wrapf(err, "open servo bus on %s", cfg.Port))
		return fb
	}

	servos := make([]*feetech.Servo, 0, len(ids))
	for _, id := range ids {
		servos = append(servos, feetech.NewServo(bus, id, &feetech.ModelSTS3215))
	}

	fb.bus = bus
	fb.group = feetech.NewServoGroup(bus, servos...)
	return fb
}

func (b *feetechBus) enterDryRun(cause error) {
	b.dryRunOnce.Do(func() {
		b.dryRun = true
		b.logger.Warn().Err(cause).Msg("servo bus entering dry-run mode: commands will succeed without wire effect")
	})
}

func (b *feetechBus) DryRun() bool { return b.dryRun }

// Move dispatches one coordinated multi-servo move frame. Transient
// per-frame failures are returned to the caller (the pose controller
// treats them as non-fatal: skip, record, continue — spec §4.3/§7); a
// failure is never escalated into dry-run mode on its own, only an open
// failure is.
func (b *feetechBus) Move(ctx context.Context, positions model.ServoCommand, durationMS uint16) error {
	if durationMS < MinDurationMS || durationMS > MaxDurationMS {
		return errors.Wrapf(ErrDurationOutOfRange, "%d ms", durationMS)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.dryRun {
		return nil
	}

	speeds := speedsForDuration(positions, durationMS)
	if err := b.group.SetPositionsWithSpeed(ctx, positions, speeds); err != nil {
		return errors.Wrap(err, "servo move")
	}
	return nil
}

// speedsForDuration gives every servo in the move the same speed: 1000
// for durations up to 200 ms, 200 for longer ones. Travel distance is not
// taken into account, so the move time is not matched to durationMS. The
// speed is supplied alongside target position, mirroring the teacher's
// SetPositionsWithSpeed usage (manager.go).
func speedsForDuration(positions model.ServoCommand, durationMS uint16) map[int]int {
	// One control tick's worth of travel is interpolated by the servo
	// firmware itself (spec §4.3 "Ordering guarantees"); the fast speed
	// keeps successive short-duration gait ticks smooth and the slow one
	// is used for longer postural moves.
	speed := 1000
	if durationMS > 200 {
		speed = 200
	}
	speeds := make(map[int]int, len(positions))
	for id := range positions {
		speeds[id] = speed
	}
	return speeds
}

// ReadPositions blocks until all requested servo positions are read back.
func (b *feetechBus) ReadPositions(ctx context.Context, ids []int) (model.ServoCommand, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make(model.ServoCommand, len(ids))
	if b.dryRun {
		for _, id := range ids {
			out[id] = 500
		}
		return out, nil
	}

	positions, err := b.group.Positions(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "read servo positions")
	}
	for _, id := range ids {
		if p, ok := positions[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

// Unload releases torque on every servo in the bus's group, used at
// shutdown so the robot does not hold torque (spec §4.6). The ids
// argument is not consulted. A wire failure is logged and nil is
// returned.
func (b *feetechBus) Unload(ctx context.Context, ids []int) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.dryRun {
		return nil
	}

	if err := b.group.DisableAll(ctx); err != nil {
		b.logger.Warn().Err(err).Msg("failed to unload servos")
	}
	return nil
}

// Voltage reads the battery level off the bus. The feetech protocol this
// bus speaks has no standard voltage register exposed through
// ServoGroup, so this always reports zero (spec §4.3: "may be zero if
// unsupported").
func (b *feetechBus) Voltage(ctx context.Context) (float64, error) {
	return 0, nil
}

// Close releases the underlying serial transport.
func (b *feetechBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.dryRun || b.bus == nil {
		return nil
	}
	return b.bus.Close()
}
