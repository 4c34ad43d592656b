package domain

import "sort"

// Mode selects how a study session presents cards.
type Mode string

const (
	ModeExam  Mode = "exam"  // Pick an answer, check it, then rate.
	ModeFlash Mode = "flash" // Reveal the answer, then self-rate.
)

// IsValid reports whether m is a known mode.
func (m Mode) IsValid() bool {
	return m == ModeExam || m == ModeFlash
}

// Bounds for the clamped settings fields.
const (
	MinSessionSize = 5
	MaxSessionSize = 200
	MinDailyGoal   = 5
	MaxDailyGoal   = 500
)

// Settings is the process-wide study configuration, persisted as a singleton.
type Settings struct {
	SessionSize int             `json:"sessionSize" validate:"min=5,max=200"`
	Mode        Mode            `json:"mode" validate:"oneof=exam flash"`
	RandomOrder bool            `json:"randomOrder"`
	MixSubjects bool            `json:"mixSubjects"`
	SubjectsOn  map[string]bool `json:"subjectsOn"`
	DailyGoal   int             `json:"dailyGoal" validate:"min=5,max=500"`
}

// DefaultSettings returns the settings used before the user has saved any.
func DefaultSettings() Settings {
	return Settings{
		SessionSize: 30,
		Mode:        ModeExam,
		RandomOrder: true,
		MixSubjects: true,
		SubjectsOn:  make(map[string]bool),
		DailyGoal:   50,
	}
}

// Clamp forces the numeric fields into their allowed ranges and the mode onto
// a valid value.
func (s *Settings) Clamp() {
	s.SessionSize = clampInt(s.SessionSize, MinSessionSize, MaxSessionSize)
	s.DailyGoal = clampInt(s.DailyGoal, MinDailyGoal, MaxDailyGoal)
	if !s.Mode.IsValid() {
		s.Mode = ModeExam
	}
	if s.SubjectsOn == nil {
		s.SubjectsOn = make(map[string]bool)
	}
}

// ReconcileSubjects updates SubjectsOn against the subjects currently present
// in the card pool: newly seen subjects default to enabled, subjects that no
// longer exist are pruned.
func (s *Settings) ReconcileSubjects(subjects []string) {
	if s.SubjectsOn == nil {
		s.SubjectsOn = make(map[string]bool)
	}
	present := make(map[string]bool, len(subjects))
	for _, sub := range subjects {
		present[sub] = true
		if _, ok := s.SubjectsOn[sub]; !ok {
			s.SubjectsOn[sub] = true
		}
	}
	for sub := range s.SubjectsOn {
		if !present[sub] {
			delete(s.SubjectsOn, sub)
		}
	}
}

// EnabledSubjects returns the sorted list of subjects currently switched on.
func (s Settings) EnabledSubjects() []string {
	var on []string
	for sub, enabled := range s.SubjectsOn {
		if enabled {
			on = append(on, sub)
		}
	}
	sort.Strings(on)
	return on
}

func clampInt(n, min, max int) int {
	if n < min {
		return min
	}
	if n > max {
		return max
	}
	return n
}
