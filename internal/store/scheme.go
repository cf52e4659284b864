package store

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"

	"github.com/abhisek/sidd/internal/ms"
	"github.com/abhisek/sidd/internal/taxonomy"
)

// ErrNotFound is returned when no scheme has the requested name.
var ErrNotFound = errors.New("scheme not found")

// SchemeRecord is a stored mapping scheme. Document holds the XML form.
type SchemeRecord struct {
	ID        uuid.UUID
	Name      string
	Taxonomy  string
	Zones     int
	Document  []byte
	CreatedAt time.Time
	UpdatedAt time.Time
}

// SchemeRepo manages named mapping schemes.
type SchemeRepo interface {
	// Save stores scheme under name, replacing any scheme with that name.
	Save(ctx context.Context, name string, scheme *ms.MappingScheme) (*SchemeRecord, error)

	// Get returns the record for name, or ErrNotFound.
	Get(ctx context.Context, name string) (*SchemeRecord, error)

	// Load decodes the scheme stored under name. A nil tax resolves the
	// taxonomy recorded in the document.
	Load(ctx context.Context, name string, tax taxonomy.Taxonomy) (*ms.MappingScheme, error)

	// List returns all records ordered by name, without documents.
	List(ctx context.Context) ([]SchemeRecord, error)

	// Delete removes the scheme stored under name.
	Delete(ctx context.Context, name string) error
}

type schemeRepo struct {
	db      *sql.DB
	dialect string
}

func (r *schemeRepo) Save(ctx context.Context, name string, scheme *ms.MappingScheme) (*SchemeRecord, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errors.New("scheme name must not be empty")
	}
	var buf bytes.Buffer
	if err := scheme.WriteXML(&buf); err != nil {
		return nil, fmt.Errorf("encode scheme: %w", err)
	}
	now := time.Now().UTC()

	existing, err := r.Get(ctx, name)
	switch {
	case errors.Is(err, ErrNotFound):
		rec := &SchemeRecord{
			ID:        uuid.New(),
			Name:      name,
			Taxonomy:  scheme.Taxonomy().Name(),
			Zones:     scheme.Len(),
			Document:  buf.Bytes(),
			CreatedAt: now,
			UpdatedAt: now,
		}
		query, args := entsql.Dialect(r.dialect).
			Insert("schemes").
			Columns("id", "name", "taxonomy", "zones", "document", "created_at", "updated_at").
			Values(rec.ID.String(), rec.Name, rec.Taxonomy, rec.Zones, string(rec.Document), now.UnixNano(), now.UnixNano()).
			Query()
		if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
			return nil, fmt.Errorf("insert scheme: %w", err)
		}
		return rec, nil
	case err != nil:
		return nil, err
	}

	existing.Taxonomy = scheme.Taxonomy().Name()
	existing.Zones = scheme.Len()
	existing.Document = buf.Bytes()
	existing.UpdatedAt = now
	query, args := entsql.Dialect(r.dialect).
		Update("schemes").
		Set("taxonomy", existing.Taxonomy).
		Set("zones", existing.Zones).
		Set("document", string(existing.Document)).
		Set("updated_at", now.UnixNano()).
		Where(entsql.EQ("id", existing.ID.String())).
		Query()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return nil, fmt.Errorf("update scheme: %w", err)
	}
	return existing, nil
}

func (r *schemeRepo) Get(ctx context.Context, name string) (*SchemeRecord, error) {
	query, args := entsql.Dialect(r.dialect).
		Select("id", "name", "taxonomy", "zones", "document", "created_at", "updated_at").
		From(entsql.Table("schemes")).
		Where(entsql.EQ("name", name)).
		Query()

	var (
		rec              SchemeRecord
		id, doc          string
		created, updated int64
	)
	err := r.db.QueryRowContext(ctx, query, args...).
		Scan(&id, &rec.Name, &rec.Taxonomy, &rec.Zones, &doc, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("query scheme: %w", err)
	}
	if rec.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("scheme %q: %w", name, err)
	}
	rec.Document = []byte(doc)
	rec.CreatedAt = time.Unix(0, created).UTC()
	rec.UpdatedAt = time.Unix(0, updated).UTC()
	return &rec, nil
}

func (r *schemeRepo) Load(ctx context.Context, name string, tax taxonomy.Taxonomy) (*ms.MappingScheme, error) {
	rec, err := r.Get(ctx, name)
	if err != nil {
		return nil, err
	}
	scheme, err := ms.ReadXML(bytes.NewReader(rec.Document), tax)
	if err != nil {
		return nil, fmt.Errorf("decode scheme %q: %w", name, err)
	}
	return scheme, nil
}

func (r *schemeRepo) List(ctx context.Context) ([]SchemeRecord, error) {
	query, args := entsql.Dialect(r.dialect).
		Select("id", "name", "taxonomy", "zones", "created_at", "updated_at").
		From(entsql.Table("schemes")).
		OrderBy("name").
		Query()
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list schemes: %w", err)
	}
	defer rows.Close()

	var out []SchemeRecord
	for rows.Next() {
		var (
			rec              SchemeRecord
			id               string
			created, updated int64
		)
		if err := rows.Scan(&id, &rec.Name, &rec.Taxonomy, &rec.Zones, &created, &updated); err != nil {
			return nil, fmt.Errorf("scan scheme: %w", err)
		}
		if rec.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("scheme %q: %w", rec.Name, err)
		}
		rec.CreatedAt = time.Unix(0, created).UTC()
		rec.UpdatedAt = time.Unix(0, updated).UTC()
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (r *schemeRepo) Delete(ctx context.Context, name string) error {
	query, args := entsql.Dialect(r.dialect).
		Delete("schemes").
		Where(entsql.EQ("name", name)).
		Query()
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("delete scheme: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete scheme: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	return nil
}
