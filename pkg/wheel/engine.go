// Package wheel implements the fair selection engine: a uniform random draw
// over the full candidate list, mapped onto a visually bounded spinning
// wheel. The visual slice count only affects rendering granularity, never
// selection probability.
package wheel

import (
	"errors"
	"math"
	"math/rand"

	"github.com/grubwheel/grubwheel/pkg/overpass"
)

const (
	// MaxVisualSlices caps how many slices are rendered. Lists larger
	// than this are compressed: each slice represents a contiguous,
	// size-balanced partition of the true candidate ordering.
	MaxVisualSlices = 200

	// minExtraSpins and maxExtraSpins bound the extra full rotations
	// added to every spin for visual effect.
	minExtraSpins = 4
	maxExtraSpins = 7

	// pointerReferenceDegrees locates the fixed pointer: the candidate
	// under it after a rotation r sits at wheel angle normalize(90 - r).
	pointerReferenceDegrees = 90.0
)

var (
	// ErrNoCandidates means the filtered list is empty and spinning is
	// disabled.
	ErrNoCandidates = errors.New("wheel: no candidates")

	// ErrSpinInProgress guards re-entrancy; only one spin may be in
	// flight.
	ErrSpinInProgress = errors.New("wheel: spin already in progress")
)

// Slice is one angular segment handed to the rendering collaborator.
// Labels are only populated when the full candidate list fits under the
// visual cap.
type Slice struct {
	Index        int     `json:"index"`
	Label        string  `json:"label,omitempty"`
	StartDegrees float64 `json:"start_degrees"`
	SweepDegrees float64 `json:"sweep_degrees"`
}

// Outcome is the precomputed result of one spin. Rotation is the new
// accumulated rotation the renderer animates to; once the animation
// completes, ChosenIndex is the candidate under the pointer.
type Outcome struct {
	ChosenIndex int            `json:"chosen_index"`
	Venue       overpass.Venue `json:"venue"`
	VisualIndex int            `json:"visual_index"`
	Rotation    float64        `json:"rotation"`
}

// Engine holds the current candidate list and the accumulated rotation
// state. It is not safe for concurrent use; the owning session serializes
// access. The random source is injected so outcomes are reproducible under
// test.
type Engine struct {
	candidates []overpass.Venue
	rotation   float64
	spinning   bool
	rng        *rand.Rand
}

// NewEngine creates an idle engine with no candidates.
func NewEngine(rng *rand.Rand) *Engine {
	return &Engine{rng: rng}
}

// SetCandidates replaces the candidate list, e.g. after a filter change or a
// new fetch. The accumulated rotation is deliberately preserved so
// consecutive spins compose visually instead of jumping. A spin already in
// flight keeps its precomputed result; the new list applies from the next
// spin.
func (e *Engine) SetCandidates(venues []overpass.Venue) {
	e.candidates = venues
}

// Candidates returns the current list.
func (e *Engine) Candidates() []overpass.Venue {
	return e.candidates
}

// Rotation returns the accumulated rotation in degrees. It is monotonically
// increasing and never reset.
func (e *Engine) Rotation() float64 {
	return e.rotation
}

// IsSpinning reports whether an animation is in flight.
func (e *Engine) IsSpinning() bool {
	return e.spinning
}

// VisualCount is the number of rendered slices.
func (e *Engine) VisualCount() int {
	n := len(e.candidates)
	if n > MaxVisualSlices {
		return MaxVisualSlices
	}
	return n
}

// SliceAngle is the angular span of one rendered slice.
func (e *Engine) SliceAngle() float64 {
	count := e.VisualCount()
	if count == 0 {
		return 0
	}
	return 360.0 / float64(count)
}

// Slices returns the wheel geometry for the renderer. When the list exceeds
// the visual cap, labels are omitted: a compressed slice stands for many
// candidates and a single name would be misleading.
func (e *Engine) Slices() []Slice {
	count := e.VisualCount()
	if count == 0 {
		return nil
	}
	angle := e.SliceAngle()
	compressed := len(e.candidates) > MaxVisualSlices

	slices := make([]Slice, count)
	for i := range slices {
		slices[i] = Slice{
			Index:        i,
			StartDegrees: float64(i) * angle,
			SweepDegrees: angle,
		}
		if !compressed {
			slices[i].Label = e.candidates[i].Name
		}
	}
	return slices
}

// Spin draws the outcome and advances the accumulated rotation. The draw is
// uniform over the full candidate list regardless of compression:
// P(candidate i) = 1/n for all i. Returns ErrSpinInProgress or
// ErrNoCandidates when spinning is not possible; callers treat both as a
// no-op. The engine stays in the spinning state until CompleteSpin.
func (e *Engine) Spin() (Outcome, error) {
	if e.spinning {
		return Outcome{}, ErrSpinInProgress
	}
	n := len(e.candidates)
	if n == 0 {
		return Outcome{}, ErrNoCandidates
	}

	chosen := e.rng.Intn(n)

	visualCount := e.VisualCount()
	sliceAngle := 360.0 / float64(visualCount)

	// Proportional bucketing keeps each visual slice representing a
	// contiguous, size-balanced span of the true ordering.
	visualIndex := chosen * visualCount / n

	// Random offset within the slice so the pointer does not always stop
	// at a boundary.
	target := float64(visualIndex)*sliceAngle + e.rng.Float64()*sliceAngle

	// Minimal forward offset to bring the target under the pointer, plus
	// 4-7 full rotations for visual effect. The accumulated rotation only
	// grows, so consecutive spins compose continuously.
	desired := normalizeDegrees(pointerReferenceDegrees - target)
	forward := normalizeDegrees(desired - normalizeDegrees(e.rotation))
	extra := minExtraSpins + e.rng.Intn(maxExtraSpins-minExtraSpins+1)

	e.rotation += forward + 360.0*float64(extra)
	e.spinning = true

	return Outcome{
		ChosenIndex: chosen,
		Venue:       e.candidates[chosen],
		VisualIndex: visualIndex,
		Rotation:    e.rotation,
	}, nil
}

// CompleteSpin ends the animation and unlocks the next spin. A spin always
// completes and reveals its precomputed result; filter changes made while
// spinning only affect the next spin's candidate list.
func (e *Engine) CompleteSpin() {
	e.spinning = false
}

// IndexUnderPointer recovers the candidate index from the rotation alone.
// In the non-compressed path it must agree with the chosen index of the
// last spin; it is the consistency check between the selection math and the
// rendered geometry.
func (e *Engine) IndexUnderPointer() int {
	n := len(e.candidates)
	if n == 0 {
		return -1
	}
	angle := e.SliceAngle()
	under := normalizeDegrees(pointerReferenceDegrees - e.rotation)
	return int(math.Floor(under/angle)) % e.VisualCount()
}

func normalizeDegrees(d float64) float64 {
	d = math.Mod(d, 360.0)
	if d < 0 {
		d += 360.0
	}
	return d
}
