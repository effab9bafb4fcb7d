// Package trajectory synthesizes humanized cursor paths between two points.
//
// A path is a quadratic Bezier curve through a randomly offset control point,
// sampled with quintic easing, a short overshoot near the end and a jitter
// envelope that vanishes at both endpoints. The last step always lands
// exactly on the destination.
package trajectory

import (
	"math"
	"math/rand"
	"sync"
	"time"

	"actionreplay/internal/action"
)

const (
	DefaultBaseSteps = 20
	DefaultMaxSteps  = 100
	DefaultStepDelay = 5 * time.Millisecond

	// scaleDistance is the distance from which the step count grows with sqrt(d/scaleDistance)
	scaleDistance = 100.0
	controlOffset = 10.0
	jitterMinDist = 20.0
	jitterAmount  = 1.5

	overshootStart = 0.8
	overshootEnd   = 0.95
	overshootSize  = 0.04

	edgeFraction = 0.2
	edgeSlowdown = 1.5
	jumpLength   = 10.0
	jumpSlowdown = 1.3
)

// Step is one intermediate cursor position and the pause that follows it
type Step struct {
	Point action.Point
	Delay time.Duration
}

// Options tunes a Synthesizer
type Options struct {
	BaseSteps int
	MaxSteps  int
	StepDelay time.Duration

	// Seed is used when Rand is nil.
	Seed int64
	Rand *rand.Rand
}

// Synthesizer computes humanized trajectories. It is safe for concurrent use.
type Synthesizer struct {
	baseSteps int
	maxSteps  int
	stepDelay time.Duration

	mu  sync.Mutex
	rng *rand.Rand
}

// New creates a synthesizer, filling unset options with defaults.
func New(opts Options) *Synthesizer {
	if opts.BaseSteps <= 0 {
		opts.BaseSteps = DefaultBaseSteps
	}
	if opts.MaxSteps <= 0 {
		opts.MaxSteps = DefaultMaxSteps
	}
	if opts.StepDelay < 0 {
		opts.StepDelay = 0
	}
	rng := opts.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(opts.Seed))
	}
	return &Synthesizer{
		baseSteps: opts.BaseSteps,
		maxSteps:  opts.MaxSteps,
		stepDelay: opts.StepDelay,
		rng:       rng,
	}
}

// StepDelay returns the base delay between steps
func (s *Synthesizer) StepDelay() time.Duration {
	return s.stepDelay
}

// StepCount returns the number of steps used for a path of the given length.
func (s *Synthesizer) StepCount(distance float64) int {
	return stepCount(s.baseSteps, s.maxSteps, distance)
}

func stepCount(base, maxSteps int, distance float64) int {
	n := base
	if distance >= scaleDistance {
		n = int(math.Round(float64(base) * math.Sqrt(distance/scaleDistance)))
	}
	if n > maxSteps {
		n = maxSteps
	}
	if n < 1 {
		n = 1
	}
	return n
}

// Path returns the steps from start to end using the configured base delay.
func (s *Synthesizer) Path(start, end action.Point) []Step {
	return s.PathWith(start, end, 0, s.stepDelay)
}

// PathWith returns the steps from start to end. A positive steps value
// overrides the distance-derived count (still capped).
func (s *Synthesizer) PathWith(start, end action.Point, steps int, delay time.Duration) []Step {
	sx, sy := float64(start.X), float64(start.Y)
	ex, ey := float64(end.X), float64(end.Y)
	distance := math.Hypot(ex-sx, ey-sy)

	if distance == 0 {
		return []Step{{Point: end, Delay: delay}}
	}

	n := steps
	if n <= 0 {
		n = s.StepCount(distance)
	} else if n > s.maxSteps {
		n = s.maxSteps
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cx := (sx+ex)/2 + s.uniform(controlOffset)
	cy := (sy+ey)/2 + s.uniform(controlOffset)

	path := make([]Step, 0, n)
	prevX, prevY := sx, sy
	for i := 1; i < n; i++ {
		t := float64(i) / float64(n)
		e := Ease(t)
		u := 1 - e
		x := u*u*sx + 2*u*e*cx + e*e*ex
		y := u*u*sy + 2*u*e*cy + e*e*ey

		if distance > jitterMinDist {
			env := 4 * t * (1 - t)
			x += s.uniform(jitterAmount) * env
			y += s.uniform(jitterAmount) * env
		}

		path = append(path, Step{
			Point: action.Point{X: int(math.Round(x)), Y: int(math.Round(y))},
			Delay: stepDelay(delay, t, math.Hypot(x-prevX, y-prevY)),
		})
		prevX, prevY = x, y
	}

	path = append(path, Step{
		Point: end,
		Delay: stepDelay(delay, 1, math.Hypot(ex-prevX, ey-prevY)),
	})
	return path
}

// uniform returns a value in [-amount, amount]. Callers hold s.mu.
func (s *Synthesizer) uniform(amount float64) float64 {
	return (s.rng.Float64()*2 - 1) * amount
}

// Ease maps linear progress t in [0,1] to eased progress: quintic
// acceleration, quintic deceleration, and a small overshoot bump in
// [0.8, 0.95].
func Ease(t float64) float64 {
	var e float64
	if t < 0.5 {
		e = 16 * t * t * t * t * t
	} else {
		e = 1 - math.Pow(-2*t+2, 5)/2
	}
	if t >= overshootStart && t <= overshootEnd {
		e += overshootSize * math.Sin(math.Pi*(t-overshootStart)/(overshootEnd-overshootStart))
	}
	return e
}

func stepDelay(base time.Duration, t, segment float64) time.Duration {
	d := float64(base)
	if t <= edgeFraction || t >= 1-edgeFraction {
		d *= edgeSlowdown
	}
	if segment > jumpLength {
		d *= jumpSlowdown
	}
	return time.Duration(d)
}
