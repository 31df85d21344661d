package store

const schema = `
CREATE TABLE IF NOT EXISTS mics (
    id             INTEGER PRIMARY KEY AUTOINCREMENT,
    name           TEXT NOT NULL,
    venue          TEXT NOT NULL,
    address        TEXT NOT NULL DEFAULT '',
    neighborhood   TEXT NOT NULL DEFAULT '',
    borough        TEXT NOT NULL DEFAULT '',
    day_of_week    TEXT NOT NULL,
    start_time     TEXT NOT NULL,
    display_time   TEXT NOT NULL DEFAULT '',
    end_time       TEXT NOT NULL DEFAULT '',
    cost           TEXT NOT NULL DEFAULT '',
    set_length_min INTEGER NOT NULL DEFAULT 0,
    signup_method  TEXT NOT NULL DEFAULT '',
    signup_url     TEXT NOT NULL DEFAULT '',
    signup_notes   TEXT NOT NULL DEFAULT '',
    venue_url      TEXT NOT NULL DEFAULT '',
    instagram      TEXT NOT NULL DEFAULT '',
    mic_rating     REAL NOT NULL DEFAULT 0,
    notes          TEXT NOT NULL DEFAULT '',
    latitude       REAL,
    longitude      REAL,
    is_biweekly    BOOLEAN NOT NULL DEFAULT 0,
    is_active      BOOLEAN NOT NULL DEFAULT 1,
    created_at     DATETIME NOT NULL,
    updated_at     DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_mics_day ON mics(day_of_week);
CREATE INDEX IF NOT EXISTS idx_mics_active ON mics(is_active);

CREATE TABLE IF NOT EXISTS sets (
    id             INTEGER PRIMARY KEY AUTOINCREMENT,
    mic_id         INTEGER NOT NULL REFERENCES mics(id),
    date_performed TEXT NOT NULL,
    set_rating     INTEGER NOT NULL DEFAULT 0,
    crowd_rating   INTEGER NOT NULL DEFAULT 0,
    crowd_size     TEXT NOT NULL DEFAULT '',
    set_list       TEXT NOT NULL DEFAULT '',
    recording_url  TEXT NOT NULL DEFAULT '',
    notes          TEXT NOT NULL DEFAULT '',
    new_material   BOOLEAN NOT NULL DEFAULT 0,
    got_feedback   BOOLEAN NOT NULL DEFAULT 0,
    feedback_notes TEXT NOT NULL DEFAULT '',
    would_return   BOOLEAN NOT NULL DEFAULT 1,
    tags           TEXT NOT NULL DEFAULT '',
    created_at     DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_sets_mic ON sets(mic_id);
CREATE INDEX IF NOT EXISTS idx_sets_date ON sets(date_performed);

CREATE TABLE IF NOT EXISTS plans (
    id         INTEGER PRIMARY KEY AUTOINCREMENT,
    mic_id     INTEGER NOT NULL REFERENCES mics(id),
    plan_date  TEXT NOT NULL,
    status     TEXT NOT NULL CHECK(status IN ('going', 'cancelled')),
    created_at DATETIME NOT NULL,
    UNIQUE(mic_id, plan_date)
);

CREATE INDEX IF NOT EXISTS idx_plans_date ON plans(plan_date);

CREATE TABLE IF NOT EXISTS scrape_log (
    id         INTEGER PRIMARY KEY AUTOINCREMENT,
    source     TEXT NOT NULL,
    scraped_at DATETIME NOT NULL,
    status     TEXT NOT NULL,
    notes      TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_scrape_log_at ON scrape_log(scraped_at);
`
