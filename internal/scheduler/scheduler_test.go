package scheduler_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kevywilly/vega/internal/config"
	"github.com/kevywilly/vega/internal/imu"
	"github.com/kevywilly/vega/internal/kinematics"
	"github.com/kevywilly/vega/internal/model"
	"github.com/kevywilly/vega/internal/pose"
	"github.com/kevywilly/vega/internal/scheduler"
	"github.com/kevywilly/vega/internal/servocodec"
)

type fakeBus struct {
	moveCalls int
}

func (f *fakeBus) Move(ctx context.Context, positions model.ServoCommand, durationMS uint16) error {
	f.moveCalls++
	return nil
}

func (f *fakeBus) ReadPositions(ctx context.Context, ids []int) (model.ServoCommand, error) {
	return model.ServoCommand{}, nil
}

func (f *fakeBus) Unload(ctx context.Context, ids []int) error { return nil }
func (f *fakeBus) Voltage(ctx context.Context) (float64, error) { return 0, nil }
func (f *fakeBus) DryRun() bool                                 { return true }
func (f *fakeBus) Close() error                                 { return nil }

// fakeIMUDevice reports whatever orientation was last set; it does not
// model the effect of leveling's offset nudges. A zero reading is enough
// for withinThreshold to see a flat body immediately.
type fakeIMUDevice struct {
	mu    sync.Mutex
	euler imu.Euler
}

func (f *fakeIMUDevice) setEuler(e imu.Euler) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.euler = e
}

func (f *fakeIMUDevice) ReadEuler(ctx context.Context) (imu.Euler, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.euler, nil
}

func (f *fakeIMUDevice) ReadCalibrationStatus(ctx context.Context) (imu.CalibrationStatus, error) {
	return imu.CalibrationStatus{Sys: 3, Gyro: 3, Accel: 3, Mag: 3}, nil
}

func newTestScheduler(t *testing.T) (*scheduler.Scheduler, *fakeBus) {
	t.Helper()

	settings, err := config.Load("")
	require.NoError(t, err)

	solver := kinematics.New(settings.CoxaLength, settings.FemurLength, settings.TibiaLength)
	codec := servocodec.New(settings.Calibration)
	bus := &fakeBus{}
	poseCtl := pose.New(solver, codec, bus, pose.Geometry{Length: settings.RobotLength, Width: settings.RobotWidth}, settings.ServoIDs, zerolog.Nop(), settings.PositionHome)

	reader := imu.NewReader(&fakeIMUDevice{}, 5*time.Millisecond, zerolog.Nop())
	readerCtx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	go reader.Run(readerCtx)
	<-readerCtx.Done()

	sch := scheduler.New(poseCtl, reader, settings, 5*time.Millisecond, zerolog.Nop())
	return sch, bus
}

func TestProcessMoveStartsGaitAndStopReturnsToReady(t *testing.T) {
	sch, bus := newTestScheduler(t)
	ctx := context.Background()

	require.NoError(t, sch.ProcessMove(ctx, model.Forward))
	assert.True(t, sch.Stats().Moving)
	assert.Equal(t, model.Forward, sch.Stats().Intent)

	sch.Run(ctxWithTimeout(t, 30*time.Millisecond))
	assert.Greater(t, bus.moveCalls, 0, "gait ticks should have dispatched at least one move")

	require.NoError(t, sch.Stop(ctx))
	assert.False(t, sch.Stats().Moving)
	assert.Equal(t, model.Stop, sch.Stats().Intent)
}

func ctxWithTimeout(t *testing.T, d time.Duration) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), d)
	t.Cleanup(cancel)
	return ctx
}

func TestProcessMoveRejectsUnknownIntent(t *testing.T) {
	sch, _ := newTestScheduler(t)
	err := sch.ProcessMove(context.Background(), model.MoveIntent(999))
	assert.Error(t, err)
}

func TestTickIsNoopWhenNotMoving(t *testing.T) {
	sch, bus := newTestScheduler(t)
	sch.Run(ctxWithTimeout(t, 20*time.Millisecond))
	assert.Equal(t, 0, bus.moveCalls, "a tick with no active gait must not dispatch a move")
	assert.Equal(t, uint64(0), sch.Stats().TickCount)
}

func TestStopMidGaitHaltsFurtherTicks(t *testing.T) {
	sch, bus := newTestScheduler(t)
	ctx := context.Background()

	require.NoError(t, sch.ProcessMove(ctx, model.TrotInPlace))
	sch.Run(ctxWithTimeout(t, 15*time.Millisecond))
	require.NoError(t, sch.Stop(ctx))

	afterStopCalls := bus.moveCalls
	sch.Run(ctxWithTimeout(t, 15*time.Millisecond))
	assert.Equal(t, afterStopCalls, bus.moveCalls, "no further gait ticks should dispatch once stopped")
}

func TestStatsDerivesAngularVelocityBetweenCalls(t *testing.T) {
	settings, err := config.Load("")
	require.NoError(t, err)

	solver := kinematics.New(settings.CoxaLength, settings.FemurLength, settings.TibiaLength)
	codec := servocodec.New(settings.Calibration)
	bus := &fakeBus{}
	poseCtl := pose.New(solver, codec, bus, pose.Geometry{Length: settings.RobotLength, Width: settings.RobotWidth}, settings.ServoIDs, zerolog.Nop(), settings.PositionHome)

	dev := &fakeIMUDevice{euler: imu.Euler{Pitch: 0}}
	reader := imu.NewReader(dev, 2*time.Millisecond, zerolog.Nop())
	ctx, cancel := context.WithTimeout(context.Background(), 40*time.Millisecond)
	defer cancel()
	go reader.Run(ctx)
	time.Sleep(10 * time.Millisecond)

	sch := scheduler.New(poseCtl, reader, settings, 5*time.Millisecond, zerolog.Nop())

	first := sch.Stats()
	assert.True(t, first.IMUValid)
	assert.Zero(t, first.AngularVelocity.Pitch, "no prior sample yet, velocity must be zero")

	dev.setEuler(imu.Euler{Pitch: 10})
	time.Sleep(10 * time.Millisecond)
	second := sch.Stats()
	assert.NotZero(t, second.AngularVelocity.Pitch, "a changed pitch reading should produce a nonzero velocity")
}

func TestAutoLevelSucceedsImmediatelyWhenFlat(t *testing.T) {
	sch, _ := newTestScheduler(t)
	assert.True(t, sch.AutoLevel(context.Background()))
}

func TestLevelResetsOffsetsOnFailureWhenTilted(t *testing.T) {
	settings, err := config.Load("")
	require.NoError(t, err)

	solver := kinematics.New(settings.CoxaLength, settings.FemurLength, settings.TibiaLength)
	codec := servocodec.New(settings.Calibration)
	bus := &fakeBus{}
	poseCtl := pose.New(solver, codec, bus, pose.Geometry{Length: settings.RobotLength, Width: settings.RobotWidth}, settings.ServoIDs, zerolog.Nop(), settings.PositionHome)

	reader := imu.NewReader(&fakeIMUDevice{euler: imu.Euler{Pitch: 45, Yaw: 45}}, 5*time.Millisecond, zerolog.Nop())
	readerCtx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	go reader.Run(readerCtx)
	<-readerCtx.Done()

	sch := scheduler.New(poseCtl, reader, settings, 5*time.Millisecond, zerolog.Nop())

	ok := sch.Level(context.Background())
	assert.False(t, ok, "leveling should fail to converge against a constant, uncorrectable tilt reading")
	assert.Equal(t, settings.DefaultOffsets, sch.Stats().Offsets, "offsets should be reset after a failed leveling pass")
}

func TestDemoReturnsContextErrorWhenCancelled(t *testing.T) {
	sch, _ := newTestScheduler(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	err := sch.Demo(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestShutdownIsIdempotent(t *testing.T) {
	sch, _ := newTestScheduler(t)
	assert.NoError(t, sch.Shutdown(context.Background()))
	assert.NoError(t, sch.Shutdown(context.Background()))
}
