// Package queue assembles the ordered, size-bounded card queue for one study
// session from a pool of cards with mixed due-states.
package queue

import (
	"errors"
	"math"
	"math/rand"
	"sort"
	"time"

	"github.com/dkempf/kartei/internal/domain"
)

var (
	// ErrNoSubjects means no subject is enabled; the session must not start.
	ErrNoSubjects = errors.New("no subject enabled")
	// ErrNoCards means no card is eligible; the session must not start.
	ErrNoCards = errors.New("no eligible cards")
)

// dueShare caps scheduled reviews at this fraction of the session size so a
// large backlog cannot crowd out fresh cards entirely.
const dueShare = 0.7

// Shuffle permutes cards in place. The production shuffle is uniformly random;
// tests inject the identity to make ordering deterministic.
type Shuffle func([]domain.Card)

// Builder produces session queues. Construct with New.
type Builder struct {
	now     func() time.Time
	shuffle Shuffle
}

// New returns a Builder using wall-clock time and a uniform random shuffle.
func New() *Builder {
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	return NewWith(time.Now, func(cards []domain.Card) {
		rng.Shuffle(len(cards), func(i, j int) {
			cards[i], cards[j] = cards[j], cards[i]
		})
	})
}

// NewWith returns a Builder with an explicit clock and shuffle.
func NewWith(now func() time.Time, shuffle Shuffle) *Builder {
	return &Builder{now: now, shuffle: shuffle}
}

// Build selects and orders the cards for one session.
//
// Cards are filtered to enabled subjects and bucketed by their learning state:
// never scheduled (fresh), scheduled and due, or scheduled but not yet due
// (learning). Due reviews fill first, capped at dueShare of the session size,
// then fresh cards, then any remainder drains due, fresh and finally learning.
// Ordering follows the settings: grouped by subject when subjects must not
// mix, fully shuffled when random order is on, otherwise fill order.
//
// Cards without a learning state get the lazily created default; the created
// states are returned so the caller can persist them.
func (b *Builder) Build(cards []domain.Card, states map[int64]domain.LearningState, settings domain.Settings) ([]domain.Card, []domain.LearningState, error) {
	enabled := settings.EnabledSubjects()
	if len(enabled) == 0 {
		return nil, nil, ErrNoSubjects
	}
	on := make(map[string]bool, len(enabled))
	for _, sub := range enabled {
		on[sub] = true
	}

	now := b.now()
	var due, fresh, learning []domain.Card
	var created []domain.LearningState
	for _, c := range cards {
		if !on[c.Subject] {
			continue
		}
		st, ok := states[c.ID]
		if !ok {
			st = domain.NewLearningState(c.ID)
			created = append(created, st)
		}
		switch {
		case st.IsFresh():
			fresh = append(fresh, c)
		case st.IsDue(now):
			due = append(due, c)
		default:
			learning = append(learning, c)
		}
	}
	if len(due)+len(fresh)+len(learning) == 0 {
		return nil, nil, ErrNoCards
	}

	b.shuffle(due)
	b.shuffle(fresh)
	b.shuffle(learning)

	size := settings.SessionSize
	dueTarget := min(len(due), int(math.Round(float64(size)*dueShare)))
	newTarget := min(len(fresh), size-dueTarget)

	queue := make([]domain.Card, 0, size)
	queue, due = take(queue, due, dueTarget)
	queue, fresh = take(queue, fresh, newTarget)
	queue, due = take(queue, due, size-len(queue))
	queue, fresh = take(queue, fresh, size-len(queue))
	queue, _ = take(queue, learning, size-len(queue))

	if !settings.MixSubjects {
		queue = b.groupBySubject(queue)
	} else if settings.RandomOrder {
		b.shuffle(queue)
	}

	if len(queue) > size {
		queue = queue[:size]
	}
	return queue, created, nil
}

// take moves up to n cards from src onto dst and returns both slices.
func take(dst, src []domain.Card, n int) ([]domain.Card, []domain.Card) {
	if n <= 0 {
		return dst, src
	}
	if n > len(src) {
		n = len(src)
	}
	return append(dst, src[:n]...), src[n:]
}

// groupBySubject partitions the queue into contiguous same-subject runs,
// subjects in lexicographic order, shuffled within each run.
func (b *Builder) groupBySubject(queue []domain.Card) []domain.Card {
	by := make(map[string][]domain.Card)
	var subjects []string
	for _, c := range queue {
		if _, ok := by[c.Subject]; !ok {
			subjects = append(subjects, c.Subject)
		}
		by[c.Subject] = append(by[c.Subject], c)
	}
	sort.Strings(subjects)

	ordered := make([]domain.Card, 0, len(queue))
	for _, sub := range subjects {
		group := by[sub]
		b.shuffle(group)
		ordered = append(ordered, group...)
	}
	return ordered
}
