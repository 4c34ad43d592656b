// Package srs implements the spaced-repetition scheduling rule: given a
// card's learning state and a recall rating, it produces the next state.
package srs

import (
	"math"
	"time"

	"github.com/dkempf/kartei/internal/domain"
)

// Ease factor bounds. Every update clamps into this range.
const (
	MinEase = 1.3
	MaxEase = 2.8
)

// RelearnDelay is how soon a lapsed card comes back.
const RelearnDelay = 10 * time.Minute

// Interval modifiers applied on top of a successful review.
const (
	hardFactor = 0.75
	easyFactor = 1.15
)

// Scheduler applies the rating-driven state transition. The zero value is not
// usable; construct with New.
type Scheduler struct {
	now func() time.Time
}

// New returns a Scheduler reading wall-clock time. Tests can substitute the
// clock with NewWithClock.
func New() *Scheduler {
	return NewWithClock(time.Now)
}

// NewWithClock returns a Scheduler using the given time source.
func NewWithClock(now func() time.Time) *Scheduler {
	return &Scheduler{now: now}
}

// Apply returns the next learning state after rating a card. The input state
// is not modified.
//
// The ease factor moves every review: a perfect recall (q=5) earns +0.1,
// lower qualities are penalized increasingly steeply. A rating below the
// success threshold (q<3) is a lapse: the streak and interval reset and the
// card is due again after RelearnDelay. On success the interval follows the
// 1, 6, round(I*ease) progression, shrunk for Hard and stretched for Easy.
func (s *Scheduler) Apply(state domain.LearningState, rate domain.Rating) domain.LearningState {
	now := s.now()
	q := rate.Quality()
	state.Ease = nextEase(state.Ease, q)

	if q < 3 {
		state.Reps = 0
		state.IntervalDays = 0
		state.Lapses++
		state.Due = now.Add(RelearnDelay)
	} else {
		interval := state.IntervalDays
		switch state.Reps {
		case 0:
			interval = 1
		case 1:
			interval = 6
		default:
			interval = round(float64(interval) * state.Ease)
		}
		switch rate {
		case domain.Hard:
			interval = max(1, round(float64(interval)*hardFactor))
		case domain.Easy:
			interval = round(float64(interval) * easyFactor)
		}
		state.Reps++
		state.IntervalDays = interval
		state.Due = now.Add(time.Duration(interval) * 24 * time.Hour)
	}

	state.LastRate = rate.String()
	state.UpdatedAt = now
	return state
}

// nextEase computes the updated ease factor for a review of quality q.
// delta = 0.1 - (5-q)*(0.08 + (5-q)*0.02), clamped to [MinEase, MaxEase].
func nextEase(ease float64, q int) float64 {
	d := float64(5 - q)
	e := ease + (0.1 - d*(0.08+d*0.02))
	return math.Min(math.Max(e, MinEase), MaxEase)
}

func round(f float64) int {
	return int(math.Round(f))
}
