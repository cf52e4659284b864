package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"
)

// Event actions recorded by the CLI.
const (
	ActionBuild      = "build"
	ActionStratified = "stratified"
	ActionImport     = "import"
	ActionExport     = "export"
	ActionApply      = "apply"
	ActionDelete     = "delete"
)

// Event is one entry in a scheme's history.
type Event struct {
	ID        uuid.UUID
	Scheme    string
	Action    string
	Detail    string
	Cases     int
	Skipped   int
	Timestamp time.Time
}

// HistoryRepo is an append-only log of scheme operations.
type HistoryRepo interface {
	// Append records ev. A zero ID or Timestamp is filled in.
	Append(ctx context.Context, ev Event) error

	// Query returns the newest events first. An empty scheme matches all
	// schemes; limit 0 means unlimited.
	Query(ctx context.Context, scheme string, limit int) ([]Event, error)
}

type historyRepo struct {
	db      *sql.DB
	dialect string
}

func (r *historyRepo) Append(ctx context.Context, ev Event) error {
	if ev.ID == uuid.Nil {
		ev.ID = uuid.New()
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}
	query, args := entsql.Dialect(r.dialect).
		Insert("scheme_events").
		Columns("id", "scheme_name", "action", "detail", "cases", "skipped", "created_at").
		Values(ev.ID.String(), ev.Scheme, ev.Action, ev.Detail, ev.Cases, ev.Skipped, ev.Timestamp.UnixNano()).
		Query()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("save %s event: %w", ev.Action, err)
	}
	return nil
}

func (r *historyRepo) Query(ctx context.Context, scheme string, limit int) ([]Event, error) {
	sel := entsql.Dialect(r.dialect).
		Select("id", "scheme_name", "action", "detail", "cases", "skipped", "created_at").
		From(entsql.Table("scheme_events")).
		OrderBy(entsql.Desc("created_at"))
	if scheme != "" {
		sel = sel.Where(entsql.EQ("scheme_name", scheme))
	}
	if limit > 0 {
		sel = sel.Limit(limit)
	}
	query, args := sel.Query()

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var (
			ev Event
			id string
			ts int64
		)
		if err := rows.Scan(&id, &ev.Scheme, &ev.Action, &ev.Detail, &ev.Cases, &ev.Skipped, &ts); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		if ev.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("event id: %w", err)
		}
		ev.Timestamp = time.Unix(0, ts).UTC()
		out = append(out, ev)
	}
	return out, rows.Err()
}
