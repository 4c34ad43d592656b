package storage

const schema = `
-- Each study collection stores one JSON record per row, keyed the same way
-- the application model is keyed (card id, day string, singleton key).
CREATE TABLE IF NOT EXISTS cards (
    id INTEGER PRIMARY KEY,
    value TEXT NOT NULL,
    source_id INTEGER,

    FOREIGN KEY(source_id) REFERENCES sources(id)
);

CREATE TABLE IF NOT EXISTS state (
    id INTEGER PRIMARY KEY,
    value TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS settings (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS stats (
    day TEXT PRIMARY KEY,
    value TEXT NOT NULL
);

-- Deck sources: local directories or git repositories scanned for deck files.
CREATE TABLE IF NOT EXISTS sources (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    path TEXT NOT NULL UNIQUE,
    type TEXT NOT NULL DEFAULT 'local',
    last_scanned DATETIME
);
`
