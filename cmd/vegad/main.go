// Command vegad runs the motion control daemon: it loads configuration,
// opens the servo bus and IMU, and runs the fixed-rate control loop
// until interrupted.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/kevywilly/vega/internal/config"
	"github.com/kevywilly/vega/internal/imu"
	"github.com/kevywilly/vega/internal/kinematics"
	"github.com/kevywilly/vega/internal/pose"
	"github.com/kevywilly/vega/internal/scheduler"
	"github.com/kevywilly/vega/internal/servobus"
	"github.com/kevywilly/vega/internal/servocodec"
)

const controlRate = 20 * time.Millisecond

func main() {
	configPath := flag.String("config", os.Getenv("VEGA_CONFIG_FILE"), "path to settings.yml")
	imuSPIPath := flag.String("imu-spi-path", "/dev/spidev0.0", "SPI device path for the IMU")
	imuCSPin := flag.String("imu-cs-pin", "18", "GPIO pin name for the IMU chip-select")
	dryRunIMU := flag.Bool("dry-run-imu", false, "skip opening the IMU hardware and report no samples")
	flag.Parse()

	logger := zerolog.New(zerolog.NewConsoleWriter()).With().Timestamp().Logger()

	settings, err := config.Load(*configPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("load config")
	}

	solver := kinematics.New(settings.CoxaLength, settings.FemurLength, settings.TibiaLength)
	codec := servocodec.New(settings.Calibration)

	bus := servobus.Open(servobus.Config{
		Port:     settings.SerialPort,
		BaudRate: 1000000,
		Timeout:  time.Second,
	}, settings.ServoIDs, logger)
	defer bus.Close()

	poseCtl := pose.New(solver, codec, bus, pose.Geometry{Length: settings.RobotLength, Width: settings.RobotWidth}, settings.ServoIDs, logger, settings.PositionReady)

	var imuDevice imu.Device
	if *dryRunIMU {
		imuDevice = noopIMU{}
	} else {
		dev, err := imu.NewHardwareDevice(*imuSPIPath, *imuCSPin, settings.IMURemap, settings.IMUOffsets)
		if err != nil {
			logger.Warn().Err(err).Msg("imu hardware unavailable, running without orientation feedback")
			imuDevice = noopIMU{}
		} else {
			imuDevice = dev
		}
	}
	imuReader := imu.NewReader(imuDevice, 50*time.Millisecond, logger)

	sch := scheduler.New(poseCtl, imuReader, settings, controlRate, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go imuReader.Run(ctx)
	go sch.Run(ctx)

	if settings.AutoLevel {
		sch.AutoLevel(ctx)
	}

	logger.Info().Msg("vegad running")
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := sch.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("shutdown")
	}
}

// noopIMU reports no samples, used when no hardware is attached (spec
// §4.4: the scheduler and auto-level must tolerate a sensorless run).
type noopIMU struct{}

func (noopIMU) ReadEuler(ctx context.Context) (imu.Euler, error) {
	return imu.Euler{}, context.Canceled
}

func (noopIMU) ReadCalibrationStatus(ctx context.Context) (imu.CalibrationStatus, error) {
	return imu.CalibrationStatus{}, context.Canceled
}
