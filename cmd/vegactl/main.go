// Command vegactl issues a single command against the motion stack and
// exits, useful for bench testing a leg/servo setup without running the
// full daemon loop.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/kevywilly/vega/internal/config"
	"github.com/kevywilly/vega/internal/imu"
	"github.com/kevywilly/vega/internal/kinematics"
	"github.com/kevywilly/vega/internal/model"
	"github.com/kevywilly/vega/internal/pose"
	"github.com/kevywilly/vega/internal/scheduler"
	"github.com/kevywilly/vega/internal/servobus"
	"github.com/kevywilly/vega/internal/servocodec"
)

func main() {
	configPath := flag.String("config", os.Getenv("VEGA_CONFIG_FILE"), "path to settings.yml")
	durationMS := flag.Int("duration-ms", 500, "move duration in milliseconds")
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "usage: vegactl [-config path] <pose|move|stop|level|demo|stats> [arg]")
		os.Exit(2)
	}

	logger := zerolog.New(zerolog.NewConsoleWriter()).With().Timestamp().Logger()

	settings, err := config.Load(*configPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("load config")
	}

	solver := kinematics.New(settings.CoxaLength, settings.FemurLength, settings.TibiaLength)
	codec := servocodec.New(settings.Calibration)
	bus := servobus.Open(servobus.Config{Port: settings.SerialPort, BaudRate: 1000000, Timeout: time.Second}, settings.ServoIDs, logger)
	defer bus.Close()

	poseCtl := pose.New(solver, codec, bus, pose.Geometry{Length: settings.RobotLength, Width: settings.RobotWidth}, settings.ServoIDs, logger, settings.PositionReady)
	imuReader := imu.NewReader(noopIMU{}, 50*time.Millisecond, logger)
	sch := scheduler.New(poseCtl, imuReader, settings, 20*time.Millisecond, logger)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	cmd, rest := args[0], args[1:]
	if err := dispatch(ctx, sch, cmd, rest, uint16(*durationMS)); err != nil {
		logger.Fatal().Err(err).Str("command", cmd).Msg("command failed")
	}
}

func dispatch(ctx context.Context, sch *scheduler.Scheduler, cmd string, args []string, durationMS uint16) error {
	switch cmd {
	case "pose":
		if len(args) != 1 {
			return fmt.Errorf("pose requires a posture name")
		}
		posture, ok := model.ParseNamedPosture(args[0])
		if !ok {
			return fmt.Errorf("unknown posture %q", args[0])
		}
		return sch.SetPose(ctx, posture, durationMS)
	case "move":
		if len(args) != 1 {
			return fmt.Errorf("move requires an intent name")
		}
		intent, ok := model.ParseMoveIntent(args[0])
		if !ok {
			return fmt.Errorf("unknown move intent %q", args[0])
		}
		return sch.ProcessMove(ctx, intent)
	case "stop":
		return sch.Stop(ctx)
	case "level":
		if !sch.AutoLevel(ctx) {
			return fmt.Errorf("leveling did not converge")
		}
		return nil
	case "demo":
		return sch.Demo(ctx)
	case "stats":
		stats := sch.Stats()
		fmt.Printf("%+v\n", stats)
		return nil
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
}

type noopIMU struct{}

func (noopIMU) ReadEuler(ctx context.Context) (imu.Euler, error) {
	return imu.Euler{}, context.Canceled
}

func (noopIMU) ReadCalibrationStatus(ctx context.Context) (imu.CalibrationStatus, error) {
	return imu.CalibrationStatus{}, context.Canceled
}
