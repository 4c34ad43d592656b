package domain

import (
	"encoding"
	"errors"
	"fmt"
)

// Rating is the user's assessment of recall quality after seeing the answer.
type Rating int

const (
	Again Rating = iota + 1 // Failed to recall; card re-enters learning.
	Hard                    // Recalled with effort.
	Good                    // Recalled correctly.
	Easy                    // Recalled effortlessly.
)

// ErrInvalidRating is returned when parsing or marshaling an unknown rating.
var ErrInvalidRating = errors.New("invalid rating")

var ratingNames = [...]string{Again: "again", Hard: "hard", Good: "good", Easy: "easy"}

var ratingByName = map[string]Rating{
	"again": Again,
	"hard":  Hard,
	"good":  Good,
	"easy":  Easy,
}

// Quality maps a rating onto the 0-5 recall-quality scale used by the
// scheduler. Hard and Easy are collapsed onto fixed points of the scale rather
// than spanning it.
var ratingQuality = [...]int{Again: 0, Hard: 3, Good: 4, Easy: 5}

var (
	_ fmt.Stringer             = Rating(0)
	_ encoding.TextMarshaler   = Rating(0)
	_ encoding.TextUnmarshaler = (*Rating)(nil)
)

// String returns the lowercase name of the rating.
func (r Rating) String() string {
	if r.IsValid() {
		return ratingNames[r]
	}
	return fmt.Sprintf("Rating(%d)", int(r))
}

// IsValid reports whether r is one of the four defined ratings.
func (r Rating) IsValid() bool {
	return r >= Again && r <= Easy
}

// Quality returns the 0-5 quality score for the rating.
func (r Rating) Quality() int {
	if !r.IsValid() {
		return 0
	}
	return ratingQuality[r]
}

// ParseRating converts a lowercase rating name into a Rating.
func ParseRating(s string) (Rating, error) {
	r, ok := ratingByName[s]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrInvalidRating, s)
	}
	return r, nil
}

// MarshalText implements encoding.TextMarshaler.
func (r Rating) MarshalText() ([]byte, error) {
	if !r.IsValid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidRating, int(r))
	}
	return []byte(ratingNames[r]), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (r *Rating) UnmarshalText(text []byte) error {
	v, err := ParseRating(string(text))
	if err != nil {
		return err
	}
	*r = v
	return nil
}

// Ratings lists all valid ratings in ascending quality order.
func Ratings() []Rating {
	return []Rating{Again, Hard, Good, Easy}
}
