// Package gait synthesizes the periodic foot-offset tables that drive
// locomotion (spec §4.5). Every variant is built from the same six
// primitive motion curves named in the spec's redesign notes
// (updown, stride_forward, stride_home, stride_back, stride_front_to_back,
// zeros) instead of the original's inheritance hierarchy of Gait
// subclasses, each overriding build_steps with its own ad hoc numpy. A
// Gait here is a precomputed, fixed-length table of per-leg offsets that
// Next walks through and wraps, with no implicit subclass dispatch.
package gait

import "math"

const degToRad = math.Pi / 180

// linspace mirrors numpy.linspace(start, end, n): n samples evenly spaced
// over [start, end] inclusive, the sampling grid every primitive curve in
// this package is built on.
func linspace(start, end float64, n int) []float64 {
	if n <= 1 {
		return []float64{start}
	}
	out := make([]float64, n)
	step := (end - start) / float64(n-1)
	for i := 0; i < n; i++ {
		out[i] = start + step*float64(i)
	}
	return out
}

func sinCurve(startDeg, endDeg float64, n int, amp float64) []float64 {
	out := make([]float64, n)
	for i, d := range linspace(startDeg, endDeg, n) {
		out[i] = math.Sin(d*degToRad) * amp
	}
	return out
}

func cosCurve(startDeg, endDeg float64, n int, amp float64) []float64 {
	out := make([]float64, n)
	for i, d := range linspace(startDeg, endDeg, n) {
		out[i] = math.Cos(d*degToRad) * amp
	}
	return out
}

// updown is a single lift-and-lower hump over a half cycle, used for the
// swing phase of every gait that leaves the ground (spec §4.5).
func updown(n int, amp float64) []float64 { return sinCurve(0, 180, n, amp) }

// strideForward sweeps a swinging foot from its home offset out to amp.
func strideForward(n int, amp float64) []float64 { return sinCurve(0, 90, n, amp) }

// strideHome eases a swinging foot from amp back down to its home offset,
// the mirror half of strideForward.
func strideHome(n int, amp float64) []float64 { return cosCurve(0, 90, n, amp) }

// strideBack sweeps a foot from home to -amp, the trailing-direction twin
// of strideForward. No builder in this package calls it; buildTurn passes
// a negated amplitude to strideForward instead.
func strideBack(n int, amp float64) []float64 { return sinCurve(0, 90, n, -amp) }

// strideFrontToBack is the planted-foot stance curve: a continuous drag
// from 0 to -amp while the foot stays on the ground and the body moves
// over it. Callers pass the stance portion's sample count (2n in the
// two-beat gaits, 3n in walk), not the full cycle length.
func strideFrontToBack(n int, amp float64) []float64 { return cosCurve(90, 180, n, amp) }

// zeros is a flat curve, used for axes a gait leaves untouched during a
// given phase.
func zeros(n int) []float64 { return make([]float64, n) }

func concat(parts ...[]float64) []float64 {
	total := 0
	for _, p := range parts {
		total += len(p)
	}
	out := make([]float64, 0, total)
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

func scale(c []float64, factor float64) []float64 {
	out := make([]float64, len(c))
	for i, v := range c {
		out[i] = v * factor
	}
	return out
}
