package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dkempf/kartei/internal/domain"
	_ "modernc.org/sqlite" // Registers the sqlite driver
)

// settingsKey is the fixed key of the singleton settings record.
const settingsKey = "main"

// DB wraps the SQLite connection holding all study collections.
type DB struct {
	conn *sql.DB
}

// Open creates a new database connection and ensures the schema is up to date.
func Open(dsn string) (*DB, error) {
	db, err := sql.Open("sqlite", dsn+"?_pragma=journal_mode(wal)&_pragma=foreign_keys(on)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &DB{conn: db}, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Cards

// GetAllCards returns every card in the pool.
func (db *DB) GetAllCards(ctx context.Context) ([]domain.Card, error) {
	rows, err := db.conn.QueryContext(ctx, `SELECT value FROM cards`)
	if err != nil {
		return nil, fmt.Errorf("failed to get all cards: %w", err)
	}
	defer rows.Close()

	var cards []domain.Card
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("failed to scan card row: %w", err)
		}
		var c domain.Card
		if err := json.Unmarshal([]byte(raw), &c); err != nil {
			return nil, fmt.Errorf("failed to decode card: %w", err)
		}
		cards = append(cards, c)
	}
	return cards, rows.Err()
}

// GetCard returns the card with the given id, or nil if it does not exist.
func (db *DB) GetCard(ctx context.Context, id int64) (*domain.Card, error) {
	var raw string
	err := db.conn.QueryRowContext(ctx, `SELECT value FROM cards WHERE id = ?`, id).Scan(&raw)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get card %d: %w", id, err)
	}
	var c domain.Card
	if err := json.Unmarshal([]byte(raw), &c); err != nil {
		return nil, fmt.Errorf("failed to decode card %d: %w", id, err)
	}
	return &c, nil
}

// PutCards upserts cards by id. A sourceID of 0 records no source.
func (db *DB) PutCards(ctx context.Context, cards []domain.Card, sourceID int64) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin card upsert: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO cards (id, value, source_id) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET value = excluded.value, source_id = excluded.source_id
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare card upsert: %w", err)
	}
	defer stmt.Close()

	src := sql.NullInt64{Int64: sourceID, Valid: sourceID != 0}
	for _, c := range cards {
		raw, err := json.Marshal(c)
		if err != nil {
			return fmt.Errorf("failed to encode card %d: %w", c.ID, err)
		}
		if _, err := stmt.ExecContext(ctx, c.ID, string(raw), src); err != nil {
			return fmt.Errorf("failed to upsert card %d: %w", c.ID, err)
		}
	}
	return tx.Commit()
}

// PutCard upserts a single card.
func (db *DB) PutCard(ctx context.Context, c domain.Card, sourceID int64) error {
	return db.PutCards(ctx, []domain.Card{c}, sourceID)
}

// GetCardIDsBySource returns the ids of all cards imported from a source.
func (db *DB) GetCardIDsBySource(ctx context.Context, sourceID int64) ([]int64, error) {
	rows, err := db.conn.QueryContext(ctx, `SELECT id FROM cards WHERE source_id = ?`, sourceID)
	if err != nil {
		return nil, fmt.Errorf("failed to get cards for source %d: %w", sourceID, err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan card id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// DeleteCard removes a card and its learning state.
func (db *DB) DeleteCard(ctx context.Context, id int64) error {
	if _, err := db.conn.ExecContext(ctx, `DELETE FROM cards WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete card %d: %w", id, err)
	}
	if _, err := db.conn.ExecContext(ctx, `DELETE FROM state WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete state for card %d: %w", id, err)
	}
	return nil
}

// ClearCards removes every card.
func (db *DB) ClearCards(ctx context.Context) error {
	return db.clear(ctx, "cards")
}

// Learning state

// GetAllStates returns the learning state of every card that has one, keyed
// by card id.
func (db *DB) GetAllStates(ctx context.Context) (map[int64]domain.LearningState, error) {
	rows, err := db.conn.QueryContext(ctx, `SELECT value FROM state`)
	if err != nil {
		return nil, fmt.Errorf("failed to get all states: %w", err)
	}
	defer rows.Close()

	states := make(map[int64]domain.LearningState)
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("failed to scan state row: %w", err)
		}
		var st domain.LearningState
		if err := json.Unmarshal([]byte(raw), &st); err != nil {
			return nil, fmt.Errorf("failed to decode state: %w", err)
		}
		states[st.ID] = st
	}
	return states, rows.Err()
}

// GetState returns the learning state for a card, or nil if none exists yet.
func (db *DB) GetState(ctx context.Context, id int64) (*domain.LearningState, error) {
	var raw string
	err := db.conn.QueryRowContext(ctx, `SELECT value FROM state WHERE id = ?`, id).Scan(&raw)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get state %d: %w", id, err)
	}
	var st domain.LearningState
	if err := json.Unmarshal([]byte(raw), &st); err != nil {
		return nil, fmt.Errorf("failed to decode state %d: %w", id, err)
	}
	return &st, nil
}

// PutState upserts one card's learning state.
func (db *DB) PutState(ctx context.Context, st domain.LearningState) error {
	raw, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("failed to encode state %d: %w", st.ID, err)
	}
	_, err = db.conn.ExecContext(ctx, `
		INSERT INTO state (id, value) VALUES (?, ?)
		ON CONFLICT(id) DO UPDATE SET value = excluded.value
	`, st.ID, string(raw))
	if err != nil {
		return fmt.Errorf("failed to upsert state %d: %w", st.ID, err)
	}
	return nil
}

// PutStates upserts many learning states in one transaction.
func (db *DB) PutStates(ctx context.Context, states []domain.LearningState) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin state upsert: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO state (id, value) VALUES (?, ?)
		ON CONFLICT(id) DO UPDATE SET value = excluded.value
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare state upsert: %w", err)
	}
	defer stmt.Close()

	for _, st := range states {
		raw, err := json.Marshal(st)
		if err != nil {
			return fmt.Errorf("failed to encode state %d: %w", st.ID, err)
		}
		if _, err := stmt.ExecContext(ctx, st.ID, string(raw)); err != nil {
			return fmt.Errorf("failed to upsert state %d: %w", st.ID, err)
		}
	}
	return tx.Commit()
}

// ClearStates removes every learning state.
func (db *DB) ClearStates(ctx context.Context) error {
	return db.clear(ctx, "state")
}

// Settings

// GetSettings returns the persisted settings, or nil if never saved.
func (db *DB) GetSettings(ctx context.Context) (*domain.Settings, error) {
	var raw string
	err := db.conn.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, settingsKey).Scan(&raw)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get settings: %w", err)
	}
	var s domain.Settings
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		return nil, fmt.Errorf("failed to decode settings: %w", err)
	}
	return &s, nil
}

// PutSettings persists the singleton settings record.
func (db *DB) PutSettings(ctx context.Context, s domain.Settings) error {
	raw, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to encode settings: %w", err)
	}
	_, err = db.conn.ExecContext(ctx, `
		INSERT INTO settings (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, settingsKey, string(raw))
	if err != nil {
		return fmt.Errorf("failed to upsert settings: %w", err)
	}
	return nil
}

// Stats

// GetDayStats returns the stats for a day key, or nil if none recorded yet.
func (db *DB) GetDayStats(ctx context.Context, day string) (*domain.DayStats, error) {
	var raw string
	err := db.conn.QueryRowContext(ctx, `SELECT value FROM stats WHERE day = ?`, day).Scan(&raw)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get stats for %s: %w", day, err)
	}
	var d domain.DayStats
	if err := json.Unmarshal([]byte(raw), &d); err != nil {
		return nil, fmt.Errorf("failed to decode stats for %s: %w", day, err)
	}
	return &d, nil
}

// PutDayStats upserts one day's counters.
func (db *DB) PutDayStats(ctx context.Context, d domain.DayStats) error {
	raw, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("failed to encode stats for %s: %w", d.Day, err)
	}
	_, err = db.conn.ExecContext(ctx, `
		INSERT INTO stats (day, value) VALUES (?, ?)
		ON CONFLICT(day) DO UPDATE SET value = excluded.value
	`, d.Day, string(raw))
	if err != nil {
		return fmt.Errorf("failed to upsert stats for %s: %w", d.Day, err)
	}
	return nil
}

// GetAllDayStats returns every recorded day, newest first.
func (db *DB) GetAllDayStats(ctx context.Context) ([]domain.DayStats, error) {
	rows, err := db.conn.QueryContext(ctx, `SELECT value FROM stats ORDER BY day DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to get all stats: %w", err)
	}
	defer rows.Close()

	var days []domain.DayStats
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("failed to scan stats row: %w", err)
		}
		var d domain.DayStats
		if err := json.Unmarshal([]byte(raw), &d); err != nil {
			return nil, fmt.Errorf("failed to decode stats: %w", err)
		}
		days = append(days, d)
	}
	return days, rows.Err()
}

// ClearStats removes every day's counters.
func (db *DB) ClearStats(ctx context.Context) error {
	return db.clear(ctx, "stats")
}

// Sources

// Source is a deck origin: a local directory or a git repository.
type Source struct {
	ID          int64
	Path        string
	Type        string // "local" or "git"
	LastScanned sql.NullTime
}

// InsertSource registers a new deck source and returns its id.
func (db *DB) InsertSource(ctx context.Context, path, typ string) (int64, error) {
	res, err := db.conn.ExecContext(ctx, `
		INSERT INTO sources (path, type) VALUES (?, ?)
	`, path, typ)
	if err != nil {
		return 0, fmt.Errorf("failed to insert source %s: %w", path, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get id for source %s: %w", path, err)
	}
	return id, nil
}

// FindSourceByPath returns the source with the given path, or nil.
func (db *DB) FindSourceByPath(ctx context.Context, path string) (*Source, error) {
	var s Source
	err := db.conn.QueryRowContext(ctx, `
		SELECT id, path, type, last_scanned FROM sources WHERE path = ?
	`, path).Scan(&s.ID, &s.Path, &s.Type, &s.LastScanned)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find source by path %s: %w", path, err)
	}
	return &s, nil
}

// GetAllSources returns every registered deck source.
func (db *DB) GetAllSources(ctx context.Context) ([]Source, error) {
	rows, err := db.conn.QueryContext(ctx, `SELECT id, path, type, last_scanned FROM sources`)
	if err != nil {
		return nil, fmt.Errorf("failed to get all sources: %w", err)
	}
	defer rows.Close()

	var sources []Source
	for rows.Next() {
		var s Source
		if err := rows.Scan(&s.ID, &s.Path, &s.Type, &s.LastScanned); err != nil {
			return nil, fmt.Errorf("failed to scan source row: %w", err)
		}
		sources = append(sources, s)
	}
	return sources, rows.Err()
}

// UpdateSourceLastScanned records when a source was last reconciled.
func (db *DB) UpdateSourceLastScanned(ctx context.Context, sourceID int64) error {
	_, err := db.conn.ExecContext(ctx, `
		UPDATE sources SET last_scanned = ? WHERE id = ?
	`, time.Now(), sourceID)
	if err != nil {
		return fmt.Errorf("failed to update last scanned for source %d: %w", sourceID, err)
	}
	return nil
}

func (db *DB) clear(ctx context.Context, table string) error {
	if _, err := db.conn.ExecContext(ctx, `DELETE FROM `+table); err != nil {
		return fmt.Errorf("failed to clear %s: %w", table, err)
	}
	return nil
}

// Reset

// ResetAll clears cards, learning state and statistics, and empties the
// per-subject toggles while keeping the remaining settings. Deck sources are
// kept; a later sync repopulates the pool.
func (db *DB) ResetAll(ctx context.Context) error {
	s, err := db.GetSettings(ctx)
	if err != nil {
		return err
	}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin reset: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"cards", "state", "stats"} {
		if _, err := tx.ExecContext(ctx, `DELETE FROM `+table); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}
	if s != nil {
		s.SubjectsOn = make(map[string]bool)
		raw, err := json.Marshal(s)
		if err != nil {
			return fmt.Errorf("failed to encode settings: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO settings (key, value) VALUES (?, ?)
			ON CONFLICT(key) DO UPDATE SET value = excluded.value
		`, settingsKey, string(raw)); err != nil {
			return fmt.Errorf("failed to reset settings: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit reset: %w", err)
	}
	return nil
}
