package gait

import (
	"github.com/pkg/errors"

	"github.com/kevywilly/vega/internal/model"
)

// Variant names a gait construction, replacing the original's per-subclass
// Gait type with a single tagged type and a step-table builder (spec §9
// redesign notes: "normalize gait variation as data, not inheritance").
type Variant int

const (
	Trot Variant = iota
	TrotInPlace
	Sidestep
	Turn
	Jump
	Walk
)

func (v Variant) String() string {
	switch v {
	case Trot:
		return "trot"
	case TrotInPlace:
		return "trot_in_place"
	case Sidestep:
		return "sidestep"
	case Turn:
		return "turn"
	case Jump:
		return "jump"
	case Walk:
		return "walk"
	default:
		return "unknown"
	}
}

// ErrInvalidParams is returned by Build when step_size is outside
// (0, 90] or the variant is unknown.
var ErrInvalidParams = errors.New("invalid gait parameters")

// Params configures a gait's geometry (spec §4.5, §6). Stride and
// Clearance are in millimeters; StepSize is in degrees, in (0, 90], and
// the per-quarter-cycle step count is 90 / StepSize truncated to an
// integer, matching the original's num_steps = int(90 / step_size).
type Params struct {
	Stride    float64
	Clearance float64
	StepSize  float64

	// TurnBias biases a Trot's swing amplitude toward one side: positive
	// scales the left legs' (FL, BL) stride by (1 - TurnBias), turning
	// left; negative scales the right legs' (FR, BR) stride by
	// (1 + TurnBias), turning right; zero walks straight (spec §4.5
	// "turn_pct").
	TurnBias float64

	// TurnDirection is +1 or -1 and selects the rotation sense for Turn.
	TurnDirection float64

	// Reversed negates Stride, the same one-flag treatment the original
	// gave is_reversed, and the basis for this module's READY_REVERSE
	// handling (see DESIGN.md).
	Reversed bool

	// LateralSwayAmplitude adds a body-sway sinusoid on the y-axis, one
	// full cycle per gait period, legs on the left and right sides 180
	// degrees out of phase (spec §4.5 "optional lateral sway", grounded
	// on trot_with_lateral.py). Zero disables it.
	LateralSwayAmplitude float64
}

func (p Params) stride() float64 {
	if p.Reversed {
		return -p.Stride
	}
	return p.Stride
}

func (p Params) numSteps() (int, error) {
	if p.StepSize <= 0 || p.StepSize > 90 {
		return 0, errors.Wrapf(ErrInvalidParams, "step_size %v", p.StepSize)
	}
	n := 90 / p.StepSize
	if n < 1 {
		return 0, errors.Wrapf(ErrInvalidParams, "step_size %v yields zero steps", p.StepSize)
	}
	return int(n), nil
}

// legCurve is one leg's per-tick (x, y, z) offset table for a full gait
// cycle.
type legCurve []model.Vector3

func zip3(x, y, z []float64) legCurve {
	out := make(legCurve, len(x))
	for i := range x {
		out[i] = model.Vector3{X: x[i], Y: y[i], Z: z[i]}
	}
	return out
}

// Gait is a precomputed, fixed-length per-leg offset table walked by
// Next. Offsets are added to the pose's home/ready position by the
// scheduler before it hands the result to the pose controller (spec §4.5: "gaits never know the absolute foot position,
// only the offset from home").
type Gait struct {
	variant Variant
	legs    [model.NumLegs]legCurve
	index   int
}

// Len reports the number of ticks in one full cycle.
func (g *Gait) Len() int {
	return len(g.legs[0])
}

// Variant reports which construction built this gait.
func (g *Gait) Variant() Variant {
	return g.variant
}

// Reset rewinds the cycle to its first tick.
func (g *Gait) Reset() {
	g.index = 0
}

// Next returns the foot-offset table for the current tick and advances
// the cycle, wrapping at Len.
func (g *Gait) Next() model.FootPositions {
	var out model.FootPositions
	for leg := 0; leg < model.NumLegs; leg++ {
		out[leg] = g.legs[leg][g.index]
	}
	g.index++
	if g.index >= g.Len() {
		g.index = 0
	}
	return out
}

// Build constructs a Gait for the given variant and parameters (spec
// §4.5). diagonal pairing follows model.LegIndex ordering (0=FR, 1=FL,
// 2=BL, 3=BR): diagonal A is {FR, BL}, diagonal B is {FL, BR}, the same
// pairing the original's steps1/steps2 convention encodes.
func Build(variant Variant, p Params) (*Gait, error) {
	n, err := p.numSteps()
	if err != nil {
		return nil, err
	}

	var (
		g        *Gait
		buildErr error
	)
	switch variant {
	case Trot:
		g, buildErr = buildTrot(n, p)
	case TrotInPlace:
		g, buildErr = buildTrotInPlace(n, p)
	case Sidestep:
		g, buildErr = buildSidestep(n, p)
	case Turn:
		g, buildErr = buildTurn(n, p)
	case Jump:
		g, buildErr = buildJump(n, p)
	case Walk:
		g, buildErr = buildWalk(n, p)
	default:
		return nil, errors.Wrapf(ErrInvalidParams, "unknown gait variant %d", variant)
	}
	if buildErr != nil {
		return nil, buildErr
	}

	if p.LateralSwayAmplitude != 0 {
		applyLateralSway(g, p.LateralSwayAmplitude)
	}
	return g, nil
}

// applyLateralSway adds a one-cycle-per-gait-period sine to every leg's
// y channel, left-side legs (FL, BL) phase-shifted 180 degrees from the
// right side (FR, BR) so the body sways toward the planted side.
func applyLateralSway(g *Gait, amplitude float64) {
	n := g.Len()
	sway := sinCurve(0, 360, n, amplitude)
	for leg := range g.legs {
		// Diagonal legs may share one backing curve; copy it first so
		// each leg receives only its own phase of the sway.
		g.legs[leg] = append(legCurve{}, g.legs[leg]...)
		shift := 0
		if leg == int(model.FrontLeft) || leg == int(model.BackLeft) {
			shift = n / 2
		}
		for i := range g.legs[leg] {
			g.legs[leg][i].Y += sway[(i+shift)%n]
		}
	}
}

const (
	diagonalA0 = model.FrontRight
	diagonalA1 = model.BackLeft
	diagonalB0 = model.FrontLeft
	diagonalB1 = model.BackRight
)

// buildTrot builds the two-beat diagonal gait: {FR,BL} swing while
// {FL,BR} stance, then the pair roles swap, grounded on trot.py's
// steps1/steps2 construction (l1_x/l1_z swing curve, l2_x stance drag).
func buildTrot(n int, p Params) (*Gait, error) {
	stride := p.stride()

	swingX := concat(strideForward(n, stride), strideHome(n, stride))
	swingZ := concat(updown(n, -p.Clearance), zeros(n))
	stanceX := strideFrontToBack(2*n, stride)
	stanceZ := zeros(2 * n)

	swingCurve := zip3(swingX, zeros(2*n), swingZ)
	stanceCurve := zip3(stanceX, zeros(2*n), stanceZ)

	diagACurve := append(append(legCurve{}, swingCurve...), stanceCurve...)
	diagBCurve := append(append(legCurve{}, stanceCurve...), swingCurve...)

	var legs [model.NumLegs]legCurve
	legs[diagonalA0] = diagACurve
	legs[diagonalA1] = append(legCurve{}, diagACurve...)
	legs[diagonalB0] = diagBCurve
	legs[diagonalB1] = append(legCurve{}, diagBCurve...)

	applyTurnBias(legs, p.TurnBias)

	return &Gait{variant: Trot, legs: legs}, nil
}

// applyTurnBias scales the x (fore-aft) channel of one side's legs by
// (1 - |turnBias|): positive shortens the left legs (FL, BL), negative the
// right legs (FR, BR), steering the body toward the side whose stride is
// shortened (spec §4.5, grounded on gait.py's turn_pct offsets scaling).
func applyTurnBias(legs [model.NumLegs]legCurve, turnBias float64) {
	switch {
	case turnBias > 0:
		scaleX(legs[model.FrontLeft], 1-turnBias)
		scaleX(legs[model.BackLeft], 1-turnBias)
	case turnBias < 0:
		scaleX(legs[model.FrontRight], 1+turnBias)
		scaleX(legs[model.BackRight], 1+turnBias)
	}
}

func scaleX(c legCurve, factor float64) {
	for i := range c {
		c[i].X *= factor
	}
}

// buildTrotInPlace is Trot with no fore-aft travel: only the diagonal
// lift-and-lower alternation remains, grounded on trot_in_place.py
// building its z curve identically to Trot's while leaving x at zero.
func buildTrotInPlace(n int, p Params) (*Gait, error) {
	swingZ := concat(updown(n, -p.Clearance), zeros(n))
	stanceZ := zeros(2 * n)

	swingCurve := zip3(zeros(2*n), zeros(2*n), swingZ)
	stanceCurve := zip3(zeros(2*n), zeros(2*n), stanceZ)

	diagACurve := append(append(legCurve{}, swingCurve...), stanceCurve...)
	diagBCurve := append(append(legCurve{}, stanceCurve...), swingCurve...)

	var legs [model.NumLegs]legCurve
	legs[diagonalA0] = diagACurve
	legs[diagonalA1] = diagACurve
	legs[diagonalB0] = diagBCurve
	legs[diagonalB1] = diagBCurve

	return &Gait{variant: TrotInPlace, legs: legs}, nil
}

// buildSidestep translates the body laterally (y) with the same
// diagonal lift alternation as Trot, grounded on sidestep.py's y0/y1
// curves (x left untouched, z lifts only the swinging diagonal).
func buildSidestep(n int, p Params) (*Gait, error) {
	stride := p.stride()

	swingY := concat(strideForward(n, stride), strideHome(n, stride))
	swingZ := concat(updown(n, -p.Clearance), zeros(n))
	stanceY := strideFrontToBack(2*n, stride)
	stanceZ := zeros(2 * n)

	swingCurve := zip3(zeros(2*n), swingY, swingZ)
	stanceCurve := zip3(zeros(2*n), stanceY, stanceZ)

	diagACurve := append(append(legCurve{}, swingCurve...), stanceCurve...)
	diagBCurve := append(append(legCurve{}, stanceCurve...), swingCurve...)

	var legs [model.NumLegs]legCurve
	legs[diagonalA0] = diagACurve
	legs[diagonalA1] = diagACurve
	legs[diagonalB0] = diagBCurve
	legs[diagonalB1] = diagBCurve

	return &Gait{variant: Sidestep, legs: legs}, nil
}

// buildTurn rotates in place: legs on one side of the body stride
// forward while legs on the other stride backward, with the same
// diagonal-pair lift alternation used by the translating gaits.
// Grounded on turn.py's step/back/up_down construction, direction taken
// from TurnDirection rather than a sign baked into one subclass.
func buildTurn(n int, p Params) (*Gait, error) {
	mag := p.Stride * p.TurnDirection

	swingZ := concat(updown(n, -p.Clearance), zeros(n))
	stanceZ := zeros(2 * n)

	fwdSwingY := concat(strideForward(n, mag), strideHome(n, mag))
	fwdStanceY := strideFrontToBack(2*n, mag)
	backSwingY := concat(strideForward(n, -mag), strideHome(n, -mag))
	backStanceY := strideFrontToBack(2*n, -mag)

	fwdSwing := zip3(zeros(2*n), fwdSwingY, swingZ)
	fwdStance := zip3(zeros(2*n), fwdStanceY, stanceZ)
	backSwing := zip3(zeros(2*n), backSwingY, swingZ)
	backStance := zip3(zeros(2*n), backStanceY, stanceZ)

	// Right side (FR, BR) strides forward, left side (FL, BL) strides
	// back; each side still alternates which of its two legs is
	// swinging via the diagonal phase offset.
	frCurve := append(append(legCurve{}, fwdSwing...), fwdStance...)
	brCurve := append(append(legCurve{}, fwdStance...), fwdSwing...)
	flCurve := append(append(legCurve{}, backStance...), backSwing...)
	blCurve := append(append(legCurve{}, backSwing...), backStance...)

	var legs [model.NumLegs]legCurve
	legs[model.FrontRight] = frCurve
	legs[model.BackRight] = brCurve
	legs[model.FrontLeft] = flCurve
	legs[model.BackLeft] = blCurve

	return &Gait{variant: Turn, legs: legs}, nil
}

// buildJump lifts and lowers all four legs together, grounded on
// jump.py: a single updown hump followed by its mirror image, identical
// across every leg with no phase offset.
func buildJump(n int, p Params) (*Gait, error) {
	up := updown(2*n, p.Clearance)
	down := make([]float64, len(up))
	for i, v := range up {
		down[i] = -v
	}
	z := concat(up, down)
	curve := zip3(zeros(len(z)), zeros(len(z)), z)

	var legs [model.NumLegs]legCurve
	for i := range legs {
		legs[i] = append(legCurve{}, curve...)
	}

	return &Gait{variant: Jump, legs: legs}, nil
}

// buildWalk is the four-beat gait: one leg swings at a time while the
// other three stay planted and drag backward, grounded on walk.py's
// single swing+stance curve rotated by num_steps per leg.
func buildWalk(n int, p Params) (*Gait, error) {
	stride := p.stride()

	swingX := strideForward(n, stride)
	swingZ := updown(n, -p.Clearance)
	stanceX := strideFrontToBack(3*n, stride)
	stanceZ := zeros(3 * n)

	fullX := concat(swingX, stanceX)
	fullZ := concat(swingZ, stanceZ)
	full := zip3(fullX, zeros(4*n), fullZ)

	// Each leg's cycle is the same curve, started a quarter cycle later
	// than the previous one in walk order, reproducing walk.py's
	// np.roll(steps, num_steps * k) per leg.
	order := [model.NumLegs]model.LegIndex{model.BackRight, model.BackLeft, model.FrontLeft, model.FrontRight}

	var legs [model.NumLegs]legCurve
	for k, leg := range order {
		legs[leg] = rotate(full, -n*k)
	}

	return &Gait{variant: Walk, legs: legs}, nil
}

func rotate(c legCurve, shift int) legCurve {
	n := len(c)
	shift = ((shift % n) + n) % n
	out := make(legCurve, n)
	for i := 0; i < n; i++ {
		out[i] = c[(i+shift)%n]
	}
	return out
}
