package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/dkempf/kartei/internal/domain"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "kartei.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func testCard(id int64, subject string) domain.Card {
	return domain.Card{
		ID:       id,
		Subject:  subject,
		Question: "What is the answer?",
		Options:  []domain.Option{{Key: "a", Text: "Yes"}, {Key: "b", Text: "No"}},
		Correct:  []string{"a"},
	}
}

func TestCardRoundTrip(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	cards := []domain.Card{testCard(1, "SG1"), testCard(2, "SG2")}
	if err := db.PutCards(ctx, cards, 0); err != nil {
		t.Fatalf("PutCards: %v", err)
	}

	all, err := db.GetAllCards(ctx)
	if err != nil {
		t.Fatalf("GetAllCards: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("got %d cards, want 2", len(all))
	}

	c, err := db.GetCard(ctx, 2)
	if err != nil {
		t.Fatalf("GetCard: %v", err)
	}
	if c == nil || c.Subject != "SG2" {
		t.Fatalf("GetCard(2) = %+v, want subject SG2", c)
	}

	absent, err := db.GetCard(ctx, 99)
	if err != nil {
		t.Fatalf("GetCard(99): %v", err)
	}
	if absent != nil {
		t.Fatalf("GetCard(99) = %+v, want nil", absent)
	}
}

func TestPutCardsUpserts(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	c := testCard(1, "SG1")
	if err := db.PutCards(ctx, []domain.Card{c}, 0); err != nil {
		t.Fatal(err)
	}
	c.Explanation = "updated"
	if err := db.PutCards(ctx, []domain.Card{c}, 0); err != nil {
		t.Fatal(err)
	}

	all, err := db.GetAllCards(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 1 {
		t.Fatalf("got %d cards after re-import, want 1", len(all))
	}
	if all[0].Explanation != "updated" {
		t.Errorf("explanation = %q, want %q", all[0].Explanation, "updated")
	}
}

func TestStateRoundTrip(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	st := domain.NewLearningState(1)
	st.Reps = 2
	st.IntervalDays = 6
	st.Due = time.Date(2024, 3, 20, 12, 0, 0, 0, time.UTC)
	if err := db.PutState(ctx, st); err != nil {
		t.Fatalf("PutState: %v", err)
	}

	got, err := db.GetState(ctx, 1)
	if err != nil {
		t.Fatalf("GetState: %v", err)
	}
	if got == nil {
		t.Fatal("GetState returned nil")
	}
	if got.Reps != 2 || got.IntervalDays != 6 || !got.Due.Equal(st.Due) {
		t.Errorf("state = %+v, want %+v", got, st)
	}

	none, err := db.GetState(ctx, 42)
	if err != nil {
		t.Fatal(err)
	}
	if none != nil {
		t.Fatalf("GetState(42) = %+v, want nil", none)
	}
}

func TestPutStatesMany(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	var states []domain.LearningState
	for i := int64(1); i <= 5; i++ {
		states = append(states, domain.NewLearningState(i))
	}
	if err := db.PutStates(ctx, states); err != nil {
		t.Fatalf("PutStates: %v", err)
	}

	all, err := db.GetAllStates(ctx)
	if err != nil {
		t.Fatalf("GetAllStates: %v", err)
	}
	if len(all) != 5 {
		t.Fatalf("got %d states, want 5", len(all))
	}
	if all[3].Ease != domain.DefaultEase {
		t.Errorf("state 3 ease = %v, want %v", all[3].Ease, domain.DefaultEase)
	}
}

func TestSettingsRoundTrip(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	none, err := db.GetSettings(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if none != nil {
		t.Fatalf("GetSettings on empty db = %+v, want nil", none)
	}

	s := domain.DefaultSettings()
	s.SessionSize = 42
	s.SubjectsOn["SG1"] = false
	if err := db.PutSettings(ctx, s); err != nil {
		t.Fatalf("PutSettings: %v", err)
	}

	got, err := db.GetSettings(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if got == nil || got.SessionSize != 42 {
		t.Fatalf("settings = %+v, want sessionSize 42", got)
	}
	if on, ok := got.SubjectsOn["SG1"]; !ok || on {
		t.Errorf("SubjectsOn[SG1] = %v/%v, want false/present", on, ok)
	}
}

func TestDayStatsRoundTrip(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	day := "2024-01-01"
	none, err := db.GetDayStats(ctx, day)
	if err != nil {
		t.Fatal(err)
	}
	if none != nil {
		t.Fatalf("stats for fresh day = %+v, want nil", none)
	}

	d := domain.NewDayStats(day)
	d.Record(domain.Good, true)
	if err := db.PutDayStats(ctx, d); err != nil {
		t.Fatalf("PutDayStats: %v", err)
	}

	got, err := db.GetDayStats(ctx, day)
	if err != nil {
		t.Fatal(err)
	}
	if got == nil {
		t.Fatal("GetDayStats returned nil")
	}
	if got.Done != 1 || got.Correct != 1 || got.Wrong != 0 || got.Good != 1 {
		t.Errorf("stats = %+v, want done:1 correct:1 wrong:0 good:1", got)
	}
}

func TestGetAllDayStatsNewestFirst(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	for _, day := range []string{"2024-01-02", "2024-01-01", "2024-01-03"} {
		if err := db.PutDayStats(ctx, domain.NewDayStats(day)); err != nil {
			t.Fatal(err)
		}
	}

	all, err := db.GetAllDayStats(ctx)
	if err != nil {
		t.Fatalf("GetAllDayStats: %v", err)
	}
	want := []string{"2024-01-03", "2024-01-02", "2024-01-01"}
	if len(all) != len(want) {
		t.Fatalf("got %d days, want %d", len(all), len(want))
	}
	for i, day := range want {
		if all[i].Day != day {
			t.Errorf("position %d = %s, want %s", i, all[i].Day, day)
		}
	}
}

func TestClearCollections(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	if err := db.PutCard(ctx, testCard(1, "SG1"), 0); err != nil {
		t.Fatal(err)
	}
	if err := db.PutState(ctx, domain.NewLearningState(1)); err != nil {
		t.Fatal(err)
	}
	if err := db.PutDayStats(ctx, domain.NewDayStats("2024-01-01")); err != nil {
		t.Fatal(err)
	}

	if err := db.ClearCards(ctx); err != nil {
		t.Fatalf("ClearCards: %v", err)
	}
	if err := db.ClearStates(ctx); err != nil {
		t.Fatalf("ClearStates: %v", err)
	}
	if err := db.ClearStats(ctx); err != nil {
		t.Fatalf("ClearStats: %v", err)
	}

	cards, _ := db.GetAllCards(ctx)
	states, _ := db.GetAllStates(ctx)
	stats, _ := db.GetAllDayStats(ctx)
	if len(cards)+len(states)+len(stats) != 0 {
		t.Errorf("collections not empty: %d cards, %d states, %d stat days",
			len(cards), len(states), len(stats))
	}
}

func TestSourcesAndOrphans(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	id, err := db.InsertSource(ctx, "/decks", "local")
	if err != nil {
		t.Fatalf("InsertSource: %v", err)
	}

	if err := db.PutCards(ctx, []domain.Card{testCard(1, "SG1"), testCard(2, "SG1")}, id); err != nil {
		t.Fatal(err)
	}
	if err := db.PutCards(ctx, []domain.Card{testCard(3, "SG2")}, 0); err != nil {
		t.Fatal(err)
	}

	ids, err := db.GetCardIDsBySource(ctx, id)
	if err != nil {
		t.Fatalf("GetCardIDsBySource: %v", err)
	}
	if len(ids) != 2 {
		t.Fatalf("got %d source cards, want 2", len(ids))
	}

	if err := db.DeleteCard(ctx, 1); err != nil {
		t.Fatalf("DeleteCard: %v", err)
	}
	all, err := db.GetAllCards(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 2 {
		t.Fatalf("got %d cards after delete, want 2", len(all))
	}

	found, err := db.FindSourceByPath(ctx, "/decks")
	if err != nil {
		t.Fatal(err)
	}
	if found == nil || found.ID != id {
		t.Fatalf("FindSourceByPath = %+v, want id %d", found, id)
	}
	if err := db.UpdateSourceLastScanned(ctx, id); err != nil {
		t.Fatalf("UpdateSourceLastScanned: %v", err)
	}
}

func TestResetAll(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	if err := db.PutCards(ctx, []domain.Card{testCard(1, "SG1")}, 0); err != nil {
		t.Fatal(err)
	}
	if err := db.PutState(ctx, domain.NewLearningState(1)); err != nil {
		t.Fatal(err)
	}
	d := domain.NewDayStats("2024-01-01")
	d.Record(domain.Easy, true)
	if err := db.PutDayStats(ctx, d); err != nil {
		t.Fatal(err)
	}
	s := domain.DefaultSettings()
	s.SubjectsOn["SG1"] = true
	if err := db.PutSettings(ctx, s); err != nil {
		t.Fatal(err)
	}

	if err := db.ResetAll(ctx); err != nil {
		t.Fatalf("ResetAll: %v", err)
	}

	cards, _ := db.GetAllCards(ctx)
	states, _ := db.GetAllStates(ctx)
	stats, _ := db.GetDayStats(ctx, "2024-01-01")
	if len(cards) != 0 || len(states) != 0 || stats != nil {
		t.Errorf("reset left data behind: %d cards, %d states, stats %+v", len(cards), len(states), stats)
	}
	got, _ := db.GetSettings(ctx)
	if got == nil || len(got.SubjectsOn) != 0 {
		t.Errorf("settings after reset = %+v, want empty SubjectsOn", got)
	}
	if got != nil && got.SessionSize != s.SessionSize {
		t.Errorf("sessionSize after reset = %d, want %d preserved", got.SessionSize, s.SessionSize)
	}
}
