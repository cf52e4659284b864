// Package survey loads surveyed building records.
//
// A survey file is either a JSON array of records or JSON Lines, one record
// per line. Each record is validated against a JSON Schema; records that
// fail validation are skipped and reported, the rest are returned.
package survey

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/abhisek/sidd/internal/ms"
)

// Record is one surveyed (or assumed) building.
type Record struct {
	ID       string  `json:"id,omitempty"`
	Zone     string  `json:"zone,omitempty"`
	Group    string  `json:"group,omitempty"`
	Taxonomy string  `json:"taxonomy"`
	Height   float64 `json:"height,omitempty"` // storeys
	Area     float64 `json:"area,omitempty"`   // footprint area, m²
	Cost     float64 `json:"cost,omitempty"`   // replacement cost per m²
	Weight   float64 `json:"weight,omitempty"` // building count, default 1
}

// Report summarizes a load.
type Report struct {
	Loaded  int
	Skipped []*RecordError
}

// Loader reads survey files.
type Loader struct {
	logger *slog.Logger
}

// Option configures a Loader.
type Option func(*Loader)

// WithLogger sets the logger used for skipped records.
func WithLogger(l *slog.Logger) Option {
	return func(ld *Loader) {
		if l != nil {
			ld.logger = l
		}
	}
}

// NewLoader creates a Loader.
func NewLoader(opts ...Option) *Loader {
	ld := &Loader{logger: slog.Default().With(slog.String("component", "survey"))}
	for _, opt := range opts {
		opt(ld)
	}
	return ld
}

// Load reads all records from r. Records failing schema validation are
// skipped and listed in the report; a document that is not JSON at all
// is an error.
func (ld *Loader) Load(r io.Reader) ([]Record, Report, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, Report{}, fmt.Errorf("read survey: %w", err)
	}

	items, err := split(raw)
	if err != nil {
		return nil, Report{}, err
	}

	var (
		out []Record
		rep Report
	)
	for i, item := range items {
		rec, err := decode(item)
		if err != nil {
			re := &RecordError{Index: i, Err: err}
			ld.logger.Warn("skipping survey record",
				slog.Int("index", i),
				slog.String("error", err.Error()))
			rep.Skipped = append(rep.Skipped, re)
			continue
		}
		out = append(out, rec)
	}
	rep.Loaded = len(out)
	ld.logger.Debug("survey loaded", slog.Int("records", rep.Loaded), slog.Int("skipped", len(rep.Skipped)))
	return out, rep, nil
}

// split returns the raw records of a JSON array or JSON Lines document.
func split(raw []byte) ([]json.RawMessage, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, nil
	}
	if trimmed[0] == '[' {
		var items []json.RawMessage
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return nil, fmt.Errorf("parse survey array: %w", err)
		}
		return items, nil
	}

	var items []json.RawMessage
	sc := bufio.NewScanner(bytes.NewReader(trimmed))
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for sc.Scan() {
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		items = append(items, json.RawMessage(bytes.Clone(line)))
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("scan survey lines: %w", err)
	}
	return items, nil
}

func decode(item json.RawMessage) (Record, error) {
	if err := validateRecord(item); err != nil {
		return Record{}, err
	}
	var rec Record
	if err := json.Unmarshal(item, &rec); err != nil {
		return Record{}, fmt.Errorf("decode record: %w", err)
	}
	return rec, nil
}

// Cases converts records into zoned cases for ms.BuildFromCases. Area is
// carried as the per-building size annotation.
func Cases(records []Record) []ms.ZonedCase {
	out := make([]ms.ZonedCase, len(records))
	for i, r := range records {
		out[i] = ms.ZonedCase{
			Zone: r.Zone,
			Case: ms.Case{
				Taxonomy: r.Taxonomy,
				Weight:   r.Weight,
				Size:     r.Area,
				Cost:     r.Cost,
			},
		}
	}
	return out
}
