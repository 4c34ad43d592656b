// Package session drives one study pass over a queue of cards, feeding
// ratings back into the scheduler, the learning-state store and the daily
// statistics.
package session

import (
	"context"
	"fmt"
	"time"

	"github.com/dkempf/kartei/internal/domain"
	"github.com/dkempf/kartei/internal/queue"
	"github.com/dkempf/kartei/internal/srs"
)

// Store is the persistence surface the session needs. *storage.DB satisfies
// it.
type Store interface {
	GetAllCards(ctx context.Context) ([]domain.Card, error)
	GetAllStates(ctx context.Context) (map[int64]domain.LearningState, error)
	GetState(ctx context.Context, id int64) (*domain.LearningState, error)
	PutState(ctx context.Context, st domain.LearningState) error
	PutStates(ctx context.Context, states []domain.LearningState) error
	GetDayStats(ctx context.Context, day string) (*domain.DayStats, error)
	PutDayStats(ctx context.Context, d domain.DayStats) error
	PutSettings(ctx context.Context, s domain.Settings) error
}

// Session is one pass over a fixed queue. It is not safe for concurrent use;
// the application model is a single user driving one action at a time.
type Session struct {
	store     Store
	scheduler *srs.Scheduler
	now       func() time.Time

	settings domain.Settings
	queue    []domain.Card
	idx      int

	// Per-card transient answer state, reset when a new card is presented.
	revealed   bool
	checked    bool
	picked     string
	wasCorrect *bool
}

// Start builds the queue for a new session and persists the settings snapshot
// plus any lazily created default learning states. The precondition errors
// queue.ErrNoSubjects and queue.ErrNoCards pass through unchanged; callers
// report them to the user without starting a session.
func Start(ctx context.Context, store Store, builder *queue.Builder, scheduler *srs.Scheduler, settings domain.Settings) (*Session, error) {
	return startWithClock(ctx, store, builder, scheduler, settings, time.Now)
}

func startWithClock(ctx context.Context, store Store, builder *queue.Builder, scheduler *srs.Scheduler, settings domain.Settings, now func() time.Time) (*Session, error) {
	settings.Clamp()

	cards, err := store.GetAllCards(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load cards: %w", err)
	}
	states, err := store.GetAllStates(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load learning state: %w", err)
	}

	q, created, err := builder.Build(cards, states, settings)
	if err != nil {
		return nil, err
	}
	if len(created) > 0 {
		if err := store.PutStates(ctx, created); err != nil {
			return nil, fmt.Errorf("failed to persist default states: %w", err)
		}
	}
	if err := store.PutSettings(ctx, settings); err != nil {
		return nil, fmt.Errorf("failed to persist settings: %w", err)
	}

	return &Session{
		store:     store,
		scheduler: scheduler,
		now:       now,
		settings:  settings,
		queue:     q,
	}, nil
}

// Current returns the card being studied, or nil when the session is
// finished.
func (s *Session) Current() *domain.Card {
	if s.Finished() {
		return nil
	}
	return &s.queue[s.idx]
}

// Finished reports whether every card in the queue has been rated.
func (s *Session) Finished() bool {
	return s.idx >= len(s.queue)
}

// Progress returns how many cards are done and the queue length.
func (s *Session) Progress() (done, total int) {
	return s.idx, len(s.queue)
}

// Mode returns the session's study mode.
func (s *Session) Mode() domain.Mode {
	return s.settings.Mode
}

// Picked returns the currently picked option key, empty if none.
func (s *Session) Picked() string {
	return s.picked
}

// Checked reports whether the current card's answer has been checked.
func (s *Session) Checked() bool {
	return s.checked
}

// Revealed reports whether the current card's answer has been revealed.
func (s *Session) Revealed() bool {
	return s.revealed
}

// WasCorrect returns the grading result of the current card, nil before
// checking.
func (s *Session) WasCorrect() *bool {
	return s.wasCorrect
}

// Pick records the user's option choice in exam mode. The first pick wins;
// later picks before the next card are ignored, as are picks in flash mode or
// after checking.
func (s *Session) Pick(key string) {
	if s.Finished() || s.settings.Mode != domain.ModeExam || s.checked || s.picked != "" {
		return
	}
	for _, o := range s.Current().Options {
		if o.Key == key {
			s.picked = key
			return
		}
	}
}

// Check grades the picked option in exam mode. Without a pick it is a no-op.
// Grading is single-select: the pick is correct iff it is one of the card's
// correct keys, even for cards with several correct keys.
func (s *Session) Check() {
	if s.Finished() || s.settings.Mode != domain.ModeExam || s.checked || s.picked == "" {
		return
	}
	ok := s.Current().IsCorrect(s.picked)
	s.wasCorrect = &ok
	s.checked = true
}

// Reveal shows the answer in flash mode. No correctness is computed; the
// later rating determines it.
func (s *Session) Reveal() {
	if s.Finished() || s.settings.Mode != domain.ModeFlash {
		return
	}
	s.revealed = true
}

// Rate records the rating for the current card: it runs the scheduler,
// persists the updated learning state, bumps today's statistics and advances
// to the next card. Called before Check (exam) or Reveal (flash) it is a
// silent no-op. The cursor only advances after both writes succeeded, so an
// error leaves the session on the same card.
func (s *Session) Rate(ctx context.Context, rate domain.Rating) error {
	if s.Finished() || !rate.IsValid() {
		return nil
	}

	var wasCorrect bool
	switch s.settings.Mode {
	case domain.ModeFlash:
		if !s.revealed {
			return nil
		}
		wasCorrect = rate != domain.Again
	default:
		if !s.checked {
			return nil
		}
		wasCorrect = *s.wasCorrect
	}

	card := s.Current()
	st, err := s.store.GetState(ctx, card.ID)
	if err != nil {
		return fmt.Errorf("failed to load state for card %d: %w", card.ID, err)
	}
	state := domain.NewLearningState(card.ID)
	if st != nil {
		state = *st
	}

	state.LastWasCorrect = &wasCorrect
	state = s.scheduler.Apply(state, rate)
	if err := s.store.PutState(ctx, state); err != nil {
		return fmt.Errorf("failed to persist state for card %d: %w", card.ID, err)
	}

	if err := s.bumpStats(ctx, rate, wasCorrect); err != nil {
		return err
	}

	s.idx++
	s.revealed = false
	s.checked = false
	s.picked = ""
	s.wasCorrect = nil
	return nil
}

func (s *Session) bumpStats(ctx context.Context, rate domain.Rating, wasCorrect bool) error {
	day := domain.DayKey(s.now())
	cur, err := s.store.GetDayStats(ctx, day)
	if err != nil {
		return fmt.Errorf("failed to load stats for %s: %w", day, err)
	}
	stats := domain.NewDayStats(day)
	if cur != nil {
		stats = *cur
	}
	stats.Record(rate, wasCorrect)
	if err := s.store.PutDayStats(ctx, stats); err != nil {
		return fmt.Errorf("failed to persist stats for %s: %w", day, err)
	}
	return nil
}
