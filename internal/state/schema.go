package state

const schema = `
CREATE TABLE IF NOT EXISTS installs (
    id           INTEGER PRIMARY KEY AUTOINCREMENT,
    version      TEXT NOT NULL,
    os           TEXT NOT NULL,
    arch         TEXT NOT NULL,
    url          TEXT NOT NULL,
    binary_path  TEXT NOT NULL,
    sha256       TEXT NOT NULL,
    verified     INTEGER NOT NULL DEFAULT 0,
    installed_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS invocations (
    id           INTEGER PRIMARY KEY AUTOINCREMENT,
    call_id      TEXT NOT NULL UNIQUE,
    kind         TEXT NOT NULL,
    args         TEXT,
    outcome      TEXT NOT NULL,
    error_kind   TEXT,
    exit_code    INTEGER NOT NULL DEFAULT 0,
    input_bytes  INTEGER NOT NULL DEFAULT 0,
    output_bytes INTEGER NOT NULL DEFAULT 0,
    warnings     INTEGER NOT NULL DEFAULT 0,
    duration_ms  INTEGER NOT NULL,
    started_at   INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS invocations_kind ON invocations (kind, outcome);
`
