package state

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when no matching record exists.
var ErrNotFound = errors.New("record not found")

// Install is one successful run of the installer.
type Install struct {
	ID          int64
	Version     string
	OS          string
	Arch        string
	URL         string
	BinaryPath  string
	SHA256      string
	Verified    bool // archive checksum matched a published checksums.txt
	InstalledAt time.Time
}

// Invocation is one bridge call as seen by the CLI.
type Invocation struct {
	ID          int64
	CallID      string
	Kind        string
	Args        []string
	Outcome     string // "resolved" or "rejected"
	ErrorKind   string
	ExitCode    int
	InputBytes  int
	OutputBytes int
	Warnings    int
	Duration    time.Duration
	StartedAt   time.Time
}

// KindStats counts invocations of one kind by outcome.
type KindStats struct {
	Kind     string
	Resolved int
	Rejected int
}

// Store wraps a SQLite database for install and invocation history.
type Store struct {
	db *sql.DB
}

// Open creates or opens a SQLite database at the given path with WAL mode.
// Use ":memory:" for in-memory databases in tests.
func Open(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening state db %s: %w", dbPath, err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting WAL mode: %w", err)
	}

	// SQLite handles one writer at a time
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// RecordInstall appends an install record and sets its ID.
func (s *Store) RecordInstall(ctx context.Context, in *Install) error {
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO installs (version, os, arch, url, binary_path, sha256, verified, installed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		in.Version, in.OS, in.Arch, in.URL, in.BinaryPath, in.SHA256,
		boolInt(in.Verified), in.InstalledAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("recording install %s: %w", in.Version, err)
	}
	in.ID, _ = result.LastInsertId()
	return nil
}

// LatestInstall returns the most recent install.
func (s *Store) LatestInstall(ctx context.Context) (*Install, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, version, os, arch, url, binary_path, sha256, verified, installed_at
		 FROM installs ORDER BY id DESC LIMIT 1`)

	in, err := scanInstall(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting latest install: %w", err)
	}
	return in, nil
}

// ListInstalls returns all installs, newest first.
func (s *Store) ListInstalls(ctx context.Context) ([]*Install, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, version, os, arch, url, binary_path, sha256, verified, installed_at
		 FROM installs ORDER BY id DESC`)
	if err != nil {
		return nil, fmt.Errorf("listing installs: %w", err)
	}
	defer rows.Close()

	var installs []*Install
	for rows.Next() {
		in, err := scanInstall(rows)
		if err != nil {
			return nil, err
		}
		installs = append(installs, in)
	}
	return installs, rows.Err()
}

// RecordInvocation appends an invocation record and sets its ID.
func (s *Store) RecordInvocation(ctx context.Context, inv *Invocation) error {
	args, err := marshalJSON(inv.Args)
	if err != nil {
		return err
	}
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO invocations (call_id, kind, args, outcome, error_kind, exit_code, input_bytes, output_bytes, warnings, duration_ms, started_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		inv.CallID, inv.Kind, args, inv.Outcome, nullString(inv.ErrorKind),
		inv.ExitCode, inv.InputBytes, inv.OutputBytes, inv.Warnings,
		inv.Duration.Milliseconds(), inv.StartedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("recording invocation %s: %w", inv.CallID, err)
	}
	inv.ID, _ = result.LastInsertId()
	return nil
}

// ListInvocations returns up to limit invocations, newest first.
// A limit of zero or less returns all of them.
func (s *Store) ListInvocations(ctx context.Context, limit int) ([]*Invocation, error) {
	if limit <= 0 {
		limit = -1 // SQLite: no limit
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, call_id, kind, args, outcome, error_kind, exit_code, input_bytes, output_bytes, warnings, duration_ms, started_at
		 FROM invocations ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing invocations: %w", err)
	}
	defer rows.Close()

	var invs []*Invocation
	for rows.Next() {
		var inv Invocation
		var args, errKind sql.NullString
		var durMS, started int64
		if err := rows.Scan(&inv.ID, &inv.CallID, &inv.Kind, &args, &inv.Outcome, &errKind,
			&inv.ExitCode, &inv.InputBytes, &inv.OutputBytes, &inv.Warnings, &durMS, &started); err != nil {
			return nil, err
		}
		inv.ErrorKind = errKind.String
		inv.Duration = time.Duration(durMS) * time.Millisecond
		inv.StartedAt = time.UnixMilli(started)
		if args.Valid && args.String != "" {
			if err := json.Unmarshal([]byte(args.String), &inv.Args); err != nil {
				return nil, fmt.Errorf("unmarshaling invocation args: %w", err)
			}
		}
		invs = append(invs, &inv)
	}
	return invs, rows.Err()
}

// InvocationStats counts invocations per kind, ordered by kind.
func (s *Store) InvocationStats(ctx context.Context) ([]KindStats, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT kind,
		        SUM(CASE WHEN outcome = 'resolved' THEN 1 ELSE 0 END),
		        SUM(CASE WHEN outcome = 'rejected' THEN 1 ELSE 0 END)
		 FROM invocations GROUP BY kind ORDER BY kind`)
	if err != nil {
		return nil, fmt.Errorf("counting invocations: %w", err)
	}
	defer rows.Close()

	var stats []KindStats
	for rows.Next() {
		var ks KindStats
		if err := rows.Scan(&ks.Kind, &ks.Resolved, &ks.Rejected); err != nil {
			return nil, err
		}
		stats = append(stats, ks)
	}
	return stats, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanInstall(row scanner) (*Install, error) {
	var in Install
	var verified int
	var installedAt int64
	err := row.Scan(&in.ID, &in.Version, &in.OS, &in.Arch, &in.URL,
		&in.BinaryPath, &in.SHA256, &verified, &installedAt)
	if err != nil {
		return nil, err
	}
	in.Verified = verified != 0
	in.InstalledAt = time.Unix(installedAt, 0)
	return &in, nil
}

func marshalJSON(v []string) (sql.NullString, error) {
	if len(v) == 0 {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("marshaling JSON: %w", err)
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
