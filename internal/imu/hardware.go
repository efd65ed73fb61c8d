package imu

import (
	"context"
	"math"
	"sync"

	"github.com/pkg/errors"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/devices/v3/mpu9250"
	"periph.io/x/host/v3"
)

// HardwareDevice reads a MPU9250 over SPI and derives (roll, pitch) from
// accelerometer tilt, the same approach and the same
// NewSpiTransport/GetAcceleration{X,Y,Z} calls used for the left IMU in
// the inertial-computer orientation source this is grounded on. That
// source leaves yaw at 0 until magnetometer fusion is added; this device
// does the same rather than inventing a gyroscope readout the grounding
// source never calls (spec §4.4/§6/§9 still gets its axis remap and
// offset triples applied to whatever axes are read).
type HardwareDevice struct {
	mpu    *mpu9250.MPU9250
	remap  AxisRemap
	offset Offsets

	mu sync.Mutex
}

// NewHardwareDevice opens the MPU9250 over the given SPI device path with
// chip-select on the named GPIO pin, initializes it, and runs its
// self-test and calibration, mirroring NewIMUSourceLeft's startup
// sequence.
func NewHardwareDevice(spiPath, csPin string, remap AxisRemap, offsets Offsets) (*HardwareDevice, error) {
	if _, err := host.Init(); err != nil {
		return nil, errors.Wrap(err, "periph host init")
	}

	cs := gpioreg.ByName(csPin)
	if cs == nil {
		return nil, errors.Errorf("imu chip-select pin %q not found", csPin)
	}

	tr, err := mpu9250.NewSpiTransport(spiPath, cs)
	if err != nil {
		return nil, errors.Wrap(err, "mpu9250 spi transport")
	}

	dev, err := mpu9250.New(*tr)
	if err != nil {
		return nil, errors.Wrap(err, "mpu9250 new device")
	}

	if err := dev.Init(); err != nil {
		return nil, errors.Wrap(err, "mpu9250 init")
	}
	if _, err := dev.SelfTest(); err != nil {
		return nil, errors.Wrap(err, "mpu9250 self-test")
	}
	if err := dev.Calibrate(); err != nil {
		return nil, errors.Wrap(err, "mpu9250 calibrate")
	}

	return &HardwareDevice{mpu: dev, remap: remap, offset: offsets}, nil
}

// ReadEuler samples the accelerometer for a tilt-based roll/pitch
// estimate, applying the configured axis remap and offsets (spec §4.4,
// §6). Yaw is always 0 (see HardwareDevice doc comment).
func (d *HardwareDevice) ReadEuler(ctx context.Context) (Euler, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	ax, err := d.mpu.GetAccelerationX()
	if err != nil {
		return Euler{}, errors.Wrap(err, "mpu9250 acceleration x")
	}
	ay, err := d.mpu.GetAccelerationY()
	if err != nil {
		return Euler{}, errors.Wrap(err, "mpu9250 acceleration y")
	}
	az, err := d.mpu.GetAccelerationZ()
	if err != nil {
		return Euler{}, errors.Wrap(err, "mpu9250 acceleration z")
	}

	raw := [3]float64{
		float64(ax) - d.offset.Accelerometer.X,
		float64(ay) - d.offset.Accelerometer.Y,
		float64(az) - d.offset.Accelerometer.Z,
	}
	remapped := d.applyRemap(raw)

	rollRad := math.Atan2(remapped[1], remapped[2])
	pitchRad := math.Atan2(-remapped[0], math.Sqrt(remapped[1]*remapped[1]+remapped[2]*remapped[2]))

	return Euler{
		Roll:  rollRad * 180 / math.Pi,
		Pitch: pitchRad * 180 / math.Pi,
		Yaw:   0,
	}, nil
}

// ReadCalibrationStatus reports calibration confidence. The MPU9250 has
// no BNO055-style fusion calibration state machine: accel reports full
// confidence once Calibrate has run, gyro/mag stay at zero since neither
// is read here.
func (d *HardwareDevice) ReadCalibrationStatus(ctx context.Context) (CalibrationStatus, error) {
	return CalibrationStatus{Sys: 0, Gyro: 0, Accel: 3, Mag: 0}, nil
}

func (d *HardwareDevice) applyRemap(raw [3]float64) [3]float64 {
	var out [3]float64
	signs := [3]float64{float64(d.remap.Sign[0]), float64(d.remap.Sign[1]), float64(d.remap.Sign[2])}
	for i := 0; i < 3; i++ {
		out[i] = raw[d.remap.Index[i]] * signs[i]
	}
	return out
}
