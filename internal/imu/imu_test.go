package imu_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kevywilly/vega/internal/imu"
)

type fakeDevice struct {
	euler   imu.Euler
	failing atomic.Bool
}

func (f *fakeDevice) ReadEuler(ctx context.Context) (imu.Euler, error) {
	if f.failing.Load() {
		return imu.Euler{}, context.DeadlineExceeded
	}
	return f.euler, nil
}

func (f *fakeDevice) ReadCalibrationStatus(ctx context.Context) (imu.CalibrationStatus, error) {
	return imu.CalibrationStatus{Sys: 3, Gyro: 3, Accel: 3, Mag: 3}, nil
}

func TestReaderLatestBeforeFirstSampleIsInvalid(t *testing.T) {
	reader := imu.NewReader(&fakeDevice{}, 10*time.Millisecond, zerolog.Nop())
	_, ok := reader.Latest()
	assert.False(t, ok)
}

func TestReaderPublishesSamples(t *testing.T) {
	dev := &fakeDevice{euler: imu.Euler{Roll: 1, Pitch: 2, Yaw: 3}}
	reader := imu.NewReader(dev, 5*time.Millisecond, zerolog.Nop())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	go reader.Run(ctx)
	<-ctx.Done()

	euler, ok := reader.Latest()
	require.True(t, ok)
	assert.Equal(t, dev.euler, euler)
	assert.Equal(t, 0, reader.ConsecutiveFailures())
}

func TestReaderRetainsLastSampleOnFailure(t *testing.T) {
	dev := &fakeDevice{euler: imu.Euler{Roll: 5}}
	reader := imu.NewReader(dev, 5*time.Millisecond, zerolog.Nop())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	go reader.Run(ctx)
	<-ctx.Done()

	euler, ok := reader.Latest()
	require.True(t, ok)

	dev.failing.Store(true)

	ctx2, cancel2 := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel2()
	go reader.Run(ctx2)
	<-ctx2.Done()

	stillEuler, ok := reader.Latest()
	require.True(t, ok)
	assert.Equal(t, euler, stillEuler)
	assert.Greater(t, reader.ConsecutiveFailures(), 0)
}
