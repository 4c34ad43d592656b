package web

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/dkempf/kartei/internal/domain"
	"github.com/dkempf/kartei/internal/importer"
	"github.com/dkempf/kartei/internal/queue"
	"github.com/dkempf/kartei/internal/session"
	deckssync "github.com/dkempf/kartei/internal/sync"
)

// subjectChip is one subject toggle on the home and setup panels.
type subjectChip struct {
	Name string
	On   bool
}

func chips(settings domain.Settings) []subjectChip {
	var out []subjectChip
	for _, sub := range sortedSubjects(settings.SubjectsOn) {
		out = append(out, subjectChip{Name: sub, On: settings.SubjectsOn[sub]})
	}
	return out
}

func sortedSubjects(on map[string]bool) []string {
	subjects := make([]string, 0, len(on))
	for sub := range on {
		subjects = append(subjects, sub)
	}
	sort.Strings(subjects)
	return subjects
}

type homeData struct {
	Today     domain.DayStats
	Goal      int
	GoalPct   int
	GoalDone  bool
	Subjects  []subjectChip
	CardCount int
	Settings  domain.Settings
	Message   string
	Back      string
}

func (s *Server) homeData(r *http.Request, message string) (homeData, error) {
	ctx := r.Context()
	cards, err := s.db.GetAllCards(ctx)
	if err != nil {
		return homeData{}, err
	}
	settings, err := s.loadSettings(r, cards)
	if err != nil {
		return homeData{}, err
	}

	today := domain.NewDayStats(domain.DayKey(time.Now()))
	if cur, err := s.db.GetDayStats(ctx, today.Day); err != nil {
		return homeData{}, err
	} else if cur != nil {
		today = *cur
	}

	pct := 0
	if settings.DailyGoal > 0 {
		pct = today.Done * 100 / settings.DailyGoal
		if pct > 100 {
			pct = 100
		}
	}
	return homeData{
		Today:     today,
		Goal:      settings.DailyGoal,
		GoalPct:   pct,
		GoalDone:  today.Done >= settings.DailyGoal,
		Subjects:  chips(settings),
		CardCount: len(cards),
		Settings:  settings,
		Message:   message,
		Back:      "/",
	}, nil
}

func (s *Server) handleHome(w http.ResponseWriter, r *http.Request) {
	data, err := s.homeData(r, r.URL.Query().Get("msg"))
	if err != nil {
		s.storeError(w, err)
		return
	}
	s.render(w, "home", data)
}

type setupData struct {
	Settings domain.Settings
	Subjects []subjectChip
	Message  string
	Back     string
}

func (s *Server) handleSetup(w http.ResponseWriter, r *http.Request) {
	cards, err := s.db.GetAllCards(r.Context())
	if err != nil {
		s.storeError(w, err)
		return
	}
	settings, err := s.loadSettings(r, cards)
	if err != nil {
		s.storeError(w, err)
		return
	}
	s.render(w, "setup", setupData{
		Settings: settings,
		Subjects: chips(settings),
		Message:  r.URL.Query().Get("msg"),
		Back:     "/setup",
	})
}

// readSettingsForm applies the posted settings form onto the given settings.
// Absent numeric fields keep their previous value; checkboxes are only
// trusted when the form says it carried them.
func readSettingsForm(r *http.Request, settings *domain.Settings) {
	if v := r.PostFormValue("sessionSize"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			settings.SessionSize = n
		}
	}
	if v := r.PostFormValue("dailyGoal"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			settings.DailyGoal = n
		}
	}
	if v := r.PostFormValue("mode"); v != "" {
		settings.Mode = domain.Mode(v)
	}
	if r.PostFormValue("hasToggles") != "" {
		settings.RandomOrder = r.PostFormValue("randomOrder") != ""
		settings.MixSubjects = r.PostFormValue("mixSubjects") != ""
	}
	settings.Clamp()
}

func (s *Server) handleSaveSettings(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	cards, err := s.db.GetAllCards(ctx)
	if err != nil {
		s.storeError(w, err)
		return
	}
	settings, err := s.loadSettings(r, cards)
	if err != nil {
		s.storeError(w, err)
		return
	}
	readSettingsForm(r, &settings)
	if err := s.db.PutSettings(ctx, settings); err != nil {
		s.storeError(w, err)
		return
	}
	http.Redirect(w, r, backTo(r, "/setup"), http.StatusSeeOther)
}

// backTo returns the panel the posting form came from.
func backTo(r *http.Request, fallback string) string {
	if back := r.PostFormValue("back"); back == "/" || back == "/setup" {
		return back
	}
	return fallback
}

func (s *Server) handleToggleSubject(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	subject := r.PostFormValue("subject")
	if subject == "" {
		http.Error(w, "subject missing", http.StatusBadRequest)
		return
	}
	cards, err := s.db.GetAllCards(ctx)
	if err != nil {
		s.storeError(w, err)
		return
	}
	settings, err := s.loadSettings(r, cards)
	if err != nil {
		s.storeError(w, err)
		return
	}
	if _, ok := settings.SubjectsOn[subject]; ok {
		settings.SubjectsOn[subject] = !settings.SubjectsOn[subject]
	}
	if err := s.db.PutSettings(ctx, settings); err != nil {
		s.storeError(w, err)
		return
	}
	http.Redirect(w, r, backTo(r, "/"), http.StatusSeeOther)
}

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	text := r.PostFormValue("deck")
	format := importer.Format(r.PostFormValue("format"))
	if format != importer.FormatJSON {
		format = importer.FormatCSV
	}

	cards, err := importer.Parse(strings.NewReader(text), format)
	if err != nil {
		slog.Warn("deck import failed", "error", err)
		http.Redirect(w, r, "/setup?msg="+queryEscape("Import failed: "+err.Error()), http.StatusSeeOther)
		return
	}
	if err := s.db.PutCards(ctx, cards, 0); err != nil {
		s.storeError(w, err)
		return
	}
	if err := s.reconcileSettings(r); err != nil {
		s.storeError(w, err)
		return
	}
	slog.Info("deck imported", "cards", len(cards))
	http.Redirect(w, r, "/setup?msg="+queryEscape(strconv.Itoa(len(cards))+" cards imported"), http.StatusSeeOther)
}

func (s *Server) handleSample(w http.ResponseWriter, r *http.Request) {
	if err := s.db.PutCards(r.Context(), importer.Sample(), 0); err != nil {
		s.storeError(w, err)
		return
	}
	if err := s.reconcileSettings(r); err != nil {
		s.storeError(w, err)
		return
	}
	http.Redirect(w, r, "/setup?msg="+queryEscape("Sample deck loaded"), http.StatusSeeOther)
}

// reconcileSettings refreshes the subject toggles after the card pool changed.
func (s *Server) reconcileSettings(r *http.Request) error {
	ctx := r.Context()
	cards, err := s.db.GetAllCards(ctx)
	if err != nil {
		return err
	}
	settings, err := s.loadSettings(r, cards)
	if err != nil {
		return err
	}
	return s.db.PutSettings(ctx, settings)
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.session = nil
	s.mu.Unlock()

	if err := s.db.ResetAll(r.Context()); err != nil {
		s.storeError(w, err)
		return
	}
	slog.Info("all cards, learning state and stats cleared")
	http.Redirect(w, r, "/?msg="+queryEscape("Everything reset"), http.StatusSeeOther)
}

func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	// Runs in the foreground so the pool is current when the page reloads.
	if err := deckssync.RunSync(r.Context(), s.db, s.reposDir); err != nil {
		s.storeError(w, err)
		return
	}
	if err := s.reconcileSettings(r); err != nil {
		s.storeError(w, err)
		return
	}
	http.Redirect(w, r, "/setup?msg="+queryEscape("Sources synced"), http.StatusSeeOther)
}

func (s *Server) handleStartSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	cards, err := s.db.GetAllCards(ctx)
	if err != nil {
		s.storeError(w, err)
		return
	}
	settings, err := s.loadSettings(r, cards)
	if err != nil {
		s.storeError(w, err)
		return
	}
	readSettingsForm(r, &settings)
	// The start buttons on the home panel force a mode.
	if forced := domain.Mode(r.PostFormValue("forceMode")); forced.IsValid() {
		settings.Mode = forced
	}

	sess, err := session.Start(ctx, s.db, s.builder, s.scheduler, settings)
	switch {
	case errors.Is(err, queue.ErrNoSubjects):
		http.Redirect(w, r, "/?msg="+queryEscape("Enable at least one subject first"), http.StatusSeeOther)
		return
	case errors.Is(err, queue.ErrNoCards):
		http.Redirect(w, r, "/?msg="+queryEscape("No cards found. Import a deck or load the sample"), http.StatusSeeOther)
		return
	case err != nil:
		s.storeError(w, err)
		return
	}

	s.mu.Lock()
	s.session = sess
	s.mu.Unlock()
	http.Redirect(w, r, "/review", http.StatusSeeOther)
}

// reviewData is everything the review panel needs for the current card.
type reviewData struct {
	Card       *domain.Card
	Mode       domain.Mode
	Done       int
	Total      int
	Pct        int
	Picked     string
	Checked    bool
	Revealed   bool
	WasCorrect bool
	CorrectSet map[string]bool
}

func (s *Server) reviewDataLocked() reviewData {
	sess := s.session
	done, total := sess.Progress()
	pct := 0
	if total > 0 {
		pct = done * 100 / total
	}
	data := reviewData{
		Card:       sess.Current(),
		Mode:       sess.Mode(),
		Done:       done,
		Total:      total,
		Pct:        pct,
		Picked:     sess.Picked(),
		Checked:    sess.Checked(),
		Revealed:   sess.Revealed(),
	}
	if wc := sess.WasCorrect(); wc != nil {
		data.WasCorrect = *wc
	}
	if data.Card != nil {
		data.CorrectSet = make(map[string]bool, len(data.Card.Correct))
		for _, k := range data.Card.Correct {
			data.CorrectSet[k] = true
		}
	}
	return data
}

func (s *Server) handleReview(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session == nil {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	if s.session.Finished() {
		s.session = nil
		http.Redirect(w, r, "/stats?msg="+queryEscape("Session finished"), http.StatusSeeOther)
		return
	}
	s.render(w, "review", s.reviewDataLocked())
}

func (s *Server) handleAnswer(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session == nil {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	s.session.Pick(r.PostFormValue("key"))
	s.session.Check()
	http.Redirect(w, r, "/review", http.StatusSeeOther)
}

func (s *Server) handleReveal(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session == nil {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	s.session.Reveal()
	http.Redirect(w, r, "/review", http.StatusSeeOther)
}

func (s *Server) handleRate(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session == nil {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	rate, err := domain.ParseRating(r.PostFormValue("rate"))
	if err != nil {
		http.Error(w, "invalid rating", http.StatusBadRequest)
		return
	}
	if err := s.session.Rate(r.Context(), rate); err != nil {
		s.storeError(w, err)
		return
	}
	http.Redirect(w, r, "/review", http.StatusSeeOther)
}

// statsData is the stats panel: today's counters plus a pool breakdown.
type statsData struct {
	Today   domain.DayStats
	Acc     int
	Total   int
	Learned int
	Due     int
	Fresh   int
	History []domain.DayStats
	Message string
}

// historyDays caps how many past days the stats panel lists.
const historyDays = 14

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	cards, err := s.db.GetAllCards(ctx)
	if err != nil {
		s.storeError(w, err)
		return
	}
	states, err := s.db.GetAllStates(ctx)
	if err != nil {
		s.storeError(w, err)
		return
	}

	now := time.Now()
	today := domain.NewDayStats(domain.DayKey(now))
	if cur, err := s.db.GetDayStats(ctx, today.Day); err != nil {
		s.storeError(w, err)
		return
	} else if cur != nil {
		today = *cur
	}

	history, err := s.db.GetAllDayStats(ctx)
	if err != nil {
		s.storeError(w, err)
		return
	}
	if len(history) > historyDays {
		history = history[:historyDays]
	}

	data := statsData{
		Today:   today,
		Acc:     today.Accuracy(),
		Total:   len(cards),
		History: history,
		Message: r.URL.Query().Get("msg"),
	}
	for _, c := range cards {
		st, ok := states[c.ID]
		if !ok || st.IsFresh() {
			data.Fresh++
			continue
		}
		data.Learned++
		if st.IsDue(now) {
			data.Due++
		}
	}
	s.render(w, "stats", data)
}

func queryEscape(s string) string {
	return url.QueryEscape(s)
}
