package gait_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kevywilly/vega/internal/gait"
)

func trotParams() gait.Params {
	return gait.Params{Stride: 40, Clearance: 60, StepSize: 15}
}

func TestBuildRejectsInvalidStepSize(t *testing.T) {
	_, err := gait.Build(gait.Trot, gait.Params{StepSize: 0})
	assert.ErrorIs(t, err, gait.ErrInvalidParams)

	_, err = gait.Build(gait.Trot, gait.Params{StepSize: 200})
	assert.ErrorIs(t, err, gait.ErrInvalidParams)
}

func TestTrotCycleIsPeriodic(t *testing.T) {
	g, err := gait.Build(gait.Trot, trotParams())
	require.NoError(t, err)

	n := g.Len()
	first := make([]float64, n)
	for i := 0; i < n; i++ {
		p := g.Next()
		first[i] = p[0].X
	}

	second := make([]float64, n)
	for i := 0; i < n; i++ {
		p := g.Next()
		second[i] = p[0].X
	}

	assert.Equal(t, first, second)
}

func TestTrotDiagonalPairsShareCurve(t *testing.T) {
	g, err := gait.Build(gait.Trot, trotParams())
	require.NoError(t, err)

	for i := 0; i < g.Len(); i++ {
		p := g.Next()
		assert.Equal(t, p[0], p[2], "front-right and back-left should share a diagonal curve")
		assert.Equal(t, p[1], p[3], "front-left and back-right should share a diagonal curve")
	}
}

func TestTrotDiagonalsAreOutOfPhase(t *testing.T) {
	g, err := gait.Build(gait.Trot, trotParams())
	require.NoError(t, err)

	// Skip ahead to mid-swing, where one diagonal is lifted and the other
	// is planted flat, so their z offsets must differ.
	var positions [2]float64
	for i := 0; i <= g.Len()/8; i++ {
		pos := g.Next()
		positions[0] = pos[0].Z
		positions[1] = pos[1].Z
	}
	assert.NotEqual(t, positions[0], positions[1])
}

func TestJumpLegsAreSynchronized(t *testing.T) {
	g, err := gait.Build(gait.Jump, gait.Params{Clearance: 50, StepSize: 10})
	require.NoError(t, err)

	for i := 0; i < g.Len(); i++ {
		p := g.Next()
		for leg := 1; leg < 4; leg++ {
			assert.Equal(t, p[0], p[leg])
		}
	}
}

func TestWalkOnlyOneLegSwingsAtATime(t *testing.T) {
	g, err := gait.Build(gait.Walk, gait.Params{Stride: 40, Clearance: 50, StepSize: 15})
	require.NoError(t, err)

	for i := 0; i < g.Len(); i++ {
		p := g.Next()
		lifted := 0
		for _, leg := range p {
			if leg.Z != 0 {
				lifted++
			}
		}
		assert.LessOrEqual(t, lifted, 1, "at most one leg should be lifted at a time in a four-beat walk")
	}
}

func TestLateralSwayAddsOppositeYPhaseOnLeftAndRight(t *testing.T) {
	params := trotParams()
	params.LateralSwayAmplitude = 10
	g, err := gait.Build(gait.Trot, params)
	require.NoError(t, err)

	quarter := g.Len() / 4
	var fr, fl float64
	for i := 0; i <= quarter; i++ {
		pos := g.Next()
		fr = pos[0].Y
		fl = pos[1].Y
	}
	assert.NotEqual(t, fr, fl, "left and right legs should sway out of phase")
}

func TestReversedNegatesStride(t *testing.T) {
	forward, err := gait.Build(gait.Trot, trotParams())
	require.NoError(t, err)

	reverseParams := trotParams()
	reverseParams.Reversed = true
	backward, err := gait.Build(gait.Trot, reverseParams)
	require.NoError(t, err)

	var pfx, pbx float64
	for i := 0; i <= forward.Len()/8; i++ {
		pfx = forward.Next()[0].X
		pbx = backward.Next()[0].X
	}
	assert.InDelta(t, -pfx, pbx, 1e-9)
}
