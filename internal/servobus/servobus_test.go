package servobus_test

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kevywilly/vega/internal/model"
	"github.com/kevywilly/vega/internal/servobus"
)

func TestOpenOnBadPortEntersDryRun(t *testing.T) {
	bus := servobus.Open(servobus.Config{Port: "/dev/does-not-exist-vega-test", BaudRate: 1000000, Timeout: time.Second}, []int{11, 12, 13}, zerolog.Nop())
	defer bus.Close()

	require.True(t, bus.DryRun())

	err := bus.Move(context.Background(), model.ServoCommand{11: 500}, 100)
	assert.NoError(t, err)

	positions, err := bus.ReadPositions(context.Background(), []int{11, 12, 13})
	require.NoError(t, err)
	assert.Len(t, positions, 3)

	assert.NoError(t, bus.Unload(context.Background(), []int{11, 12, 13}))

	voltage, err := bus.Voltage(context.Background())
	require.NoError(t, err)
	assert.Zero(t, voltage)
}

func TestMoveRejectsDurationOutOfRange(t *testing.T) {
	bus := servobus.Open(servobus.Config{Port: "/dev/does-not-exist-vega-test"}, []int{11}, zerolog.Nop())
	defer bus.Close()

	err := bus.Move(context.Background(), model.ServoCommand{11: 500}, 0)
	assert.ErrorIs(t, err, servobus.ErrDurationOutOfRange)

	err = bus.Move(context.Background(), model.ServoCommand{11: 500}, servobus.MaxDurationMS+1)
	assert.ErrorIs(t, err, servobus.ErrDurationOutOfRange)
}
