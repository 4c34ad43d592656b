package domain

import (
	"sort"
	"time"
)

// Option is a single answer choice on a card. Keys are lowercase and unique
// within the card.
type Option struct {
	Key  string `json:"k"`
	Text string `json:"t"`
}

// Card represents a single multiple-choice question.
// Cards are immutable once imported; re-importing a card with the same
// (subject, question) pair produces the same ID and overwrites it.
type Card struct {
	ID          int64    `json:"id"`
	Subject     string   `json:"subject" validate:"required"`
	Question    string   `json:"question" validate:"required"`
	Options     []Option `json:"options" validate:"min=1,dive"`
	Correct     []string `json:"correct" validate:"min=1"`
	Explanation string   `json:"explanation,omitempty"`
}

// IsCorrect reports whether the given option key is in the card's correct set.
func (c Card) IsCorrect(key string) bool {
	for _, k := range c.Correct {
		if k == key {
			return true
		}
	}
	return false
}

// Subjects returns the sorted set of distinct subjects in the given cards.
func Subjects(cards []Card) []string {
	seen := make(map[string]bool)
	var subjects []string
	for _, c := range cards {
		if !seen[c.Subject] {
			seen[c.Subject] = true
			subjects = append(subjects, c.Subject)
		}
	}
	sort.Strings(subjects)
	return subjects
}

// LearningState holds the per-card scheduling state. It is created lazily the
// first time a card is scheduled or rated; a zero Due means the card has never
// been scheduled.
type LearningState struct {
	ID             int64     `json:"id"`
	Reps           int       `json:"reps"`
	IntervalDays   int       `json:"intervalDays"`
	Ease           float64   `json:"ease"`
	Due            time.Time `json:"due"`
	Lapses         int       `json:"lapses"`
	LastRate       string    `json:"lastRate,omitempty"`
	LastWasCorrect *bool     `json:"lastWasCorrect,omitempty"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// DefaultEase is the starting ease factor for a card that has never been rated.
const DefaultEase = 2.5

// NewLearningState returns the default state for a card that has never been
// studied.
func NewLearningState(id int64) LearningState {
	return LearningState{ID: id, Ease: DefaultEase}
}

// IsFresh reports whether the card has never been scheduled.
func (s LearningState) IsFresh() bool {
	return s.Due.IsZero()
}

// IsDue reports whether the card's scheduled review time has passed at t.
func (s LearningState) IsDue(t time.Time) bool {
	return !s.Due.IsZero() && !s.Due.After(t)
}
