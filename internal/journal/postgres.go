package journal

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

const schema = `
CREATE TABLE IF NOT EXISTS transmission_journal (
	id         UUID PRIMARY KEY,
	run_id     TEXT NOT NULL,
	profile    TEXT NOT NULL,
	direction  TEXT NOT NULL,
	record     TEXT NOT NULL,
	from_state TEXT NOT NULL DEFAULT '',
	to_state   TEXT NOT NULL DEFAULT '',
	event      TEXT NOT NULL,
	message    TEXT NOT NULL DEFAULT '',
	at         TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS transmission_journal_profile_at ON transmission_journal (profile, at DESC);
`

// Postgres stores entries in a PostgreSQL table
type Postgres struct {
	db *sql.DB
}

// OpenPostgres connects to dsn and creates the journal table if needed
func OpenPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("error opening journal database: %w", err)
	}
	db.SetMaxOpenConns(5)
	db.SetConnMaxIdleTime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("error pinging journal database: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("error creating journal table: %w", err)
	}
	return &Postgres{db: db}, nil
}

// Record inserts e
func (p *Postgres) Record(ctx context.Context, e Entry) error {
	stamp(&e)
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO transmission_journal (
			id, run_id, profile, direction, record, from_state, to_state, event, message, at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		e.ID, e.RunID, e.Profile, string(e.Direction), e.Record, e.From, e.To, e.Event, e.Message, e.At,
	)
	if err != nil {
		return fmt.Errorf("error recording journal entry: %w", err)
	}
	return nil
}

// Recent returns up to limit newest entries for profile, newest first
func (p *Postgres) Recent(ctx context.Context, profile string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, run_id, profile, direction, record, from_state, to_state, event, message, at
		FROM transmission_journal
		WHERE $1 = '' OR profile = $1
		ORDER BY at DESC
		LIMIT $2`, profile, limit)
	if err != nil {
		return nil, fmt.Errorf("error querying journal: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		var dir string
		if err := rows.Scan(&e.ID, &e.RunID, &e.Profile, &dir, &e.Record, &e.From, &e.To, &e.Event, &e.Message, &e.At); err != nil {
			return nil, fmt.Errorf("error scanning journal row: %w", err)
		}
		e.Direction = Direction(dir)
		out = append(out, e)
	}
	return out, rows.Err()
}

// Close releases the connection pool
func (p *Postgres) Close() error {
	return p.db.Close()
}
