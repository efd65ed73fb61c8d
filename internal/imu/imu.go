// Package imu samples body orientation (roll, pitch, yaw) on its own
// schedule and publishes the latest reading into a single-slot,
// non-blocking slot that the scheduler and auto-level read from (spec
// §4.4, §5). On a read failure the previous sample is retained.
package imu

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/kevywilly/vega/internal/model"
)

// Euler is a (roll, pitch, yaw) orientation sample in degrees.
type Euler struct {
	Roll, Pitch, Yaw float64
}

// CalibrationStatus reports the sensor's internal calibration confidence
// for system, gyroscope, accelerometer, and magnetometer, each in [0,3]
// (spec §6).
type CalibrationStatus struct {
	Sys, Gyro, Accel, Mag int
}

// Device is the blocking hardware contract (spec §6): a single euler
// readout and a calibration-status readout, with axis remap and offset
// configuration applied once at init.
type Device interface {
	ReadEuler(ctx context.Context) (Euler, error)
	ReadCalibrationStatus(ctx context.Context) (CalibrationStatus, error)
}

// AxisRemap permutes and signs the sensor's native axes to match the
// robot's body frame (spec §6, §9 "treat the values as calibration data
// per physical unit"). Index order is (x, y, z); Sign is +1/-1 per axis.
type AxisRemap struct {
	Index [3]int
	Sign  [3]int
}

// Offsets are the three calibration offset triples a Device is built
// with: magnetometer, gyroscope, accelerometer (spec §3, §6).
// HardwareDevice subtracts Accelerometer from every accelerometer read;
// it does not use Magnetometer or Gyroscope.
type Offsets struct {
	Magnetometer model.Vector3
	Gyroscope    model.Vector3
	Accelerometer model.Vector3
}

// sample is the atomically published single-slot value. Stored as a
// pointer so reads and writes are lock-free (spec §5: "any reader
// observes the most recent sample without blocking").
type sample struct {
	euler Euler
	cal   CalibrationStatus
	at    time.Time
	valid bool
}

// Reader periodically samples a Device and publishes the latest reading
// for any number of non-blocking readers. It owns the only write path to
// the latest orientation sample (spec §3, §5).
type Reader struct {
	device Device
	period time.Duration
	logger zerolog.Logger

	latest atomic.Pointer[sample]

	failures atomic.Int32
}

// NewReader builds a Reader sampling device at the given rate.
func NewReader(device Device, rate time.Duration, logger zerolog.Logger) *Reader {
	r := &Reader{device: device, period: rate, logger: logger}
	r.latest.Store(&sample{})
	return r
}

// Run samples the device on its own ticker until ctx is cancelled. Must
// not block the control loop: it runs on its own goroutine and each
// sample attempt is itself bounded to one sample interval (spec §5).
func (r *Reader) Run(ctx context.Context) {
	ticker := time.NewTicker(r.period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.sampleOnce(ctx)
		}
	}
}

func (r *Reader) sampleOnce(ctx context.Context) {
	sampleCtx, cancel := context.WithTimeout(ctx, r.period)
	defer cancel()

	euler, err := r.device.ReadEuler(sampleCtx)
	if err != nil {
		r.failures.Add(1)
		r.logger.Warn().Err(err).Msg("imu read failed, retaining previous sample")
		return
	}
	r.failures.Store(0)

	cal, err := r.device.ReadCalibrationStatus(sampleCtx)
	if err != nil {
		cal = CalibrationStatus{}
	}

	r.latest.Store(&sample{euler: euler, cal: cal, at: time.Now(), valid: true})
}

// Latest returns the most recently published orientation sample without
// blocking. ok is false only before the first successful sample.
func (r *Reader) Latest() (Euler, bool) {
	s := r.latest.Load()
	return s.euler, s.valid
}

// LatestSample returns the most recently published orientation sample
// together with the time it was taken, used by the scheduler to derive
// angular velocity/acceleration by finite differences (spec §6
// get_stats, SUPPLEMENTED FEATURES).
func (r *Reader) LatestSample() (Euler, time.Time, bool) {
	s := r.latest.Load()
	return s.euler, s.at, s.valid
}

// CalibrationStatus returns the most recently published calibration
// status.
func (r *Reader) CalibrationStatus() CalibrationStatus {
	return r.latest.Load().cal
}

// ConsecutiveFailures reports how many reads have failed in a row, used
// by auto-level to abort per spec §7 ("auto-level aborts if N
// consecutive failures occur").
func (r *Reader) ConsecutiveFailures() int {
	return int(r.failures.Load())
}
