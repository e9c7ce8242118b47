// Copyright 2025 The ChapaUY Authors
// SPDX-License-Identifier: Apache-2.0

// Package store persists resolution runs in DuckDB.
package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jcodagnone/barrios/boundaries"
	"github.com/jcodagnone/barrios/resolution"
	"github.com/jcodagnone/barrios/spatial"
	"github.com/uber/h3-go/v4"
)

// H3 resolutions stored for every resolved point, from about 5 km² down to 0.1 km² cells.
const (
	minH3Res = 7
	maxH3Res = 9
)

// ErrRunNotFound is returned when a run id is unknown.
var ErrRunNotFound = errors.New("run not found")

// Run describes one execution of the engine over a batch.
type Run struct {
	ID        uuid.UUID          `json:"id"`
	Input     string             `json:"input"`
	CreatedAt time.Time          `json:"created_at"`
	Summary   resolution.Summary `json:"summary"`
}

// NewRun creates a run with a fresh id.
func NewRun(input string) *Run {
	return &Run{ID: uuid.New(), Input: input, CreatedAt: time.Now().UTC()}
}

// ProvenanceCounts is the number of slots per taxonomy and provenance.
type ProvenanceCounts map[boundaries.Taxonomy]map[resolution.Provenance]int

// ResolutionRepository defines the interface for database operations.
type ResolutionRepository interface {
	// CreateSchema creates the database schema.
	CreateSchema() error
	// SaveRun replaces the run and all its resolutions in a single transaction.
	SaveRun(run *Run, resolutions []*resolution.Resolution) error
	// GetRun returns the run metadata.
	GetRun(id uuid.UUID) (*Run, error)
	// ListRuns returns every run, newest first.
	ListRuns() ([]*Run, error)
	// ListRun returns the resolutions of a run in record order.
	ListRun(id uuid.UUID) ([]*resolution.Resolution, error)
	// CountByProvenance aggregates the slots of a run.
	CountByProvenance(id uuid.UUID) (ProvenanceCounts, error)
}

type sqlResolutionRepository struct {
	db *sql.DB
}

// NewResolutionRepository creates a repository on db, loading the spatial extension.
func NewResolutionRepository(db *sql.DB) (ResolutionRepository, error) {
	// DuckDB needs to load the spatial extension
	if _, err := db.Exec(`INSTALL spatial; LOAD spatial;`); err != nil {
		return nil, fmt.Errorf("loading spatial extension: %w", err)
	}

	return &sqlResolutionRepository{db: db}, nil
}

func (r *sqlResolutionRepository) CreateSchema() error {
	_, err := r.db.Exec(`
		CREATE TABLE IF NOT EXISTS runs (
			id VARCHAR PRIMARY KEY,
			input VARCHAR,
			created_at TIMESTAMPTZ NOT NULL,
			summary VARCHAR
		);

		CREATE TABLE IF NOT EXISTS resolutions (
			run_id VARCHAR NOT NULL,
			seq INTEGER NOT NULL,
			record_id VARCHAR NOT NULL,
			state VARCHAR NOT NULL,
			trace VARCHAR[],
			geometry VARCHAR,
			point POINT_2D,
			barrio_vereda VARCHAR,
			barrio_vereda_kind VARCHAR NOT NULL,
			barrio_vereda_provenance VARCHAR,
			comuna_corregimiento VARCHAR,
			comuna_corregimiento_kind VARCHAR NOT NULL,
			comuna_corregimiento_provenance VARCHAR,
			needs_review BOOLEAN NOT NULL,
			issues VARCHAR,
			forward_query VARCHAR,
			forward_point POINT_2D,
			forward_confidence VARCHAR,
			forward_offset DOUBLE,
			forward_error VARCHAR,
			h3_res7 UBIGINT,
			h3_res8 UBIGINT,
			h3_res9 UBIGINT
		);
	`)

	return err
}

func nve(v string) any {
	if v == "" {
		return nil
	}

	return v
}

func nz(v uint64) any {
	if v == 0 {
		return nil
	}

	return v
}

// h3Cells returns the cells of p for minH3Res..maxH3Res, zero when p is nil.
func h3Cells(p *spatial.Point) ([maxH3Res - minH3Res + 1]uint64, error) {
	var cells [maxH3Res - minH3Res + 1]uint64

	if p == nil {
		return cells, nil
	}

	latLng := h3.NewLatLng(p.Lat, p.Lng)

	for res := minH3Res; res <= maxH3Res; res++ {
		cell, err := h3.LatLngToCell(latLng, res)
		if err != nil {
			return cells, fmt.Errorf("error converting to h3 cell at res %d: %w", res, err)
		}

		cells[res-minH3Res] = uint64(cell)
	}

	return cells, nil
}

func coords(p *spatial.Point) (lng, lat any) {
	if p == nil {
		return nil, nil
	}

	return p.Lng, p.Lat
}

func (r *sqlResolutionRepository) SaveRun(run *Run, resolutions []*resolution.Resolution) error {
	summary, err := json.Marshal(run.Summary)
	if err != nil {
		return fmt.Errorf("encoding summary: %w", err)
	}

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("starting transaction for run %s: %w", run.ID, err)
	}

	defer func() {
		if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			log.Printf("failed to rollback transaction for run %s: %v", run.ID, err)
		}
	}()

	if _, err := tx.Exec("DELETE FROM resolutions WHERE run_id = ?", run.ID.String()); err != nil {
		return fmt.Errorf("deleting resolutions of run %s: %w", run.ID, err)
	}

	if _, err := tx.Exec("DELETE FROM runs WHERE id = ?", run.ID.String()); err != nil {
		return fmt.Errorf("deleting run %s: %w", run.ID, err)
	}

	if _, err := tx.Exec(
		"INSERT INTO runs (id, input, created_at, summary) VALUES (?, ?, ?, ?)",
		run.ID.String(), nve(run.Input), run.CreatedAt, string(summary),
	); err != nil {
		return fmt.Errorf("inserting run %s: %w", run.ID, err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO resolutions (
			run_id, seq, record_id, state, trace, geometry, point,
			barrio_vereda, barrio_vereda_kind, barrio_vereda_provenance,
			comuna_corregimiento, comuna_corregimiento_kind, comuna_corregimiento_provenance,
			needs_review, issues,
			forward_query, forward_point, forward_confidence, forward_offset, forward_error,
			h3_res7, h3_res8, h3_res9
		) VALUES (?, ?, ?, ?, string_split(?, ','), ?, ST_Point(?, ?), ?, ?, ?, ?, ?, ?, ?, ?, ?, ST_Point(?, ?), ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer stmt.Close()

	for seq, res := range resolutions {
		if err := insertResolution(stmt, run.ID, seq, res); err != nil {
			return fmt.Errorf("inserting record %s: %w", res.RecordID, err)
		}
	}

	return tx.Commit()
}

func insertResolution(stmt *sql.Stmt, runID uuid.UUID, seq int, res *resolution.Resolution) error {
	cells, err := h3Cells(res.Point)
	if err != nil {
		return err
	}

	trace := make([]string, 0, len(res.Trace))
	for _, s := range res.Trace {
		trace = append(trace, s.String())
	}

	var geometry any
	if res.Point != nil {
		geometry = spatial.Encode(*res.Point)
	}

	var issues any

	if len(res.Issues) > 0 {
		data, err := json.Marshal(res.Issues)
		if err != nil {
			return fmt.Errorf("encoding issues: %w", err)
		}

		issues = string(data)
	}

	var (
		forwardQuery, forwardConfidence, forwardError, forwardOffset any
		forwardPoint                                                 *spatial.Point
	)

	if f := res.Forward; f != nil {
		forwardQuery = nve(f.Query)
		forwardConfidence = nve(f.Confidence)
		forwardError = nve(f.Error)
		forwardPoint = f.Point

		if f.Point != nil {
			forwardOffset = f.OffsetMeters
		}
	}

	lng, lat := coords(res.Point)
	fLng, fLat := coords(forwardPoint)
	barrio, comuna := res.Result.BarrioVereda, res.Result.ComunaCorregimiento

	_, err = stmt.Exec(
		runID.String(), seq, res.RecordID, res.State.String(), strings.Join(trace, ","), geometry, lng, lat,
		nve(barrio.String()), barrio.Kind.String(), nve(string(barrio.Provenance)),
		nve(comuna.String()), comuna.Kind.String(), nve(string(comuna.Provenance)),
		res.NeedsReview, issues,
		forwardQuery, fLng, fLat, forwardConfidence, forwardOffset, forwardError,
		nz(cells[0]), nz(cells[1]), nz(cells[2]),
	)

	return err
}

func (r *sqlResolutionRepository) GetRun(id uuid.UUID) (*Run, error) {
	run := &Run{ID: id}

	var (
		input   sql.NullString
		summary sql.NullString
	)

	err := r.db.QueryRow("SELECT input, created_at, summary FROM runs WHERE id = ?", id.String()).
		Scan(&input, &run.CreatedAt, &summary)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}

	if err != nil {
		return nil, fmt.Errorf("querying run %s: %w", id, err)
	}

	run.Input = input.String

	if summary.Valid {
		if err := json.Unmarshal([]byte(summary.String), &run.Summary); err != nil {
			return nil, fmt.Errorf("decoding summary of run %s: %w", id, err)
		}
	}

	return run, nil
}

func (r *sqlResolutionRepository) ListRuns() ([]*Run, error) {
	rows, err := r.db.Query("SELECT id FROM runs ORDER BY created_at DESC")
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}

	var ids []uuid.UUID

	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()

			return nil, fmt.Errorf("scanning run: %w", err)
		}

		parsed, err := uuid.Parse(id)
		if err != nil {
			rows.Close()

			return nil, fmt.Errorf("run id %q: %w", id, err)
		}

		ids = append(ids, parsed)
	}

	rows.Close()

	runs := make([]*Run, 0, len(ids))

	for _, id := range ids {
		run, err := r.GetRun(id)
		if err != nil {
			return nil, err
		}

		runs = append(runs, run)
	}

	return runs, nil
}

// nullPoint scans a nullable POINT_2D column.
type nullPoint struct {
	Point spatial.Point
	Valid bool
}

func (n *nullPoint) Scan(value any) error {
	if value == nil {
		n.Valid = false

		return nil
	}

	n.Valid = true

	return n.Point.Scan(value)
}

func (n *nullPoint) ptr() *spatial.Point {
	if !n.Valid {
		return nil
	}

	p := n.Point

	return &p
}

func label(value sql.NullString, kind string, provenance sql.NullString) (resolution.Label, error) {
	k, err := resolution.ParseLabelKind(kind)
	if err != nil {
		return resolution.Label{}, err
	}

	return resolution.Label{Kind: k, Value: value.String, Provenance: resolution.Provenance(provenance.String)}, nil
}

func (r *sqlResolutionRepository) ListRun(id uuid.UUID) ([]*resolution.Resolution, error) {
	rows, err := r.db.Query(`
		SELECT record_id, state, array_to_string(trace, ','), point,
		       barrio_vereda, barrio_vereda_kind, barrio_vereda_provenance,
		       comuna_corregimiento, comuna_corregimiento_kind, comuna_corregimiento_provenance,
		       needs_review, issues,
		       forward_query, forward_point, forward_confidence, forward_offset, forward_error
		FROM resolutions
		WHERE run_id = ?
		ORDER BY seq
	`, id.String())
	if err != nil {
		return nil, fmt.Errorf("querying resolutions of run %s: %w", id, err)
	}
	defer rows.Close()

	var ret []*resolution.Resolution

	for rows.Next() {
		res, err := scanResolution(rows)
		if err != nil {
			return nil, err
		}

		ret = append(ret, res)
	}

	return ret, rows.Err()
}

func scanResolution(rows *sql.Rows) (*resolution.Resolution, error) {
	var (
		res                           resolution.Resolution
		state, barrioKind, comunaKind string
		trace, issues                 sql.NullString
		barrio, barrioProv            sql.NullString
		comuna, comunaProv            sql.NullString
		fQuery, fConfidence, fError   sql.NullString
		fOffset                       sql.NullFloat64
		point, fPoint                 nullPoint
	)

	if err := rows.Scan(
		&res.RecordID, &state, &trace, &point,
		&barrio, &barrioKind, &barrioProv,
		&comuna, &comunaKind, &comunaProv,
		&res.NeedsReview, &issues,
		&fQuery, &fPoint, &fConfidence, &fOffset, &fError,
	); err != nil {
		return nil, fmt.Errorf("scanning resolution: %w", err)
	}

	if err := res.State.UnmarshalText([]byte(state)); err != nil {
		return nil, err
	}

	if trace.String != "" {
		for _, s := range strings.Split(trace.String, ",") {
			var st resolution.State
			if err := st.UnmarshalText([]byte(s)); err != nil {
				return nil, err
			}

			res.Trace = append(res.Trace, st)
		}
	}

	var err error

	if res.Result.BarrioVereda, err = label(barrio, barrioKind, barrioProv); err != nil {
		return nil, err
	}

	if res.Result.ComunaCorregimiento, err = label(comuna, comunaKind, comunaProv); err != nil {
		return nil, err
	}

	res.Point = point.ptr()

	if issues.Valid {
		if err := json.Unmarshal([]byte(issues.String), &res.Issues); err != nil {
			return nil, fmt.Errorf("decoding issues of %s: %w", res.RecordID, err)
		}
	}

	if fQuery.Valid {
		res.Forward = &resolution.Forward{
			Query:        fQuery.String,
			Point:        fPoint.ptr(),
			Confidence:   fConfidence.String,
			OffsetMeters: fOffset.Float64,
			Error:        fError.String,
		}
	}

	return &res, nil
}

func (r *sqlResolutionRepository) CountByProvenance(id uuid.UUID) (ProvenanceCounts, error) {
	rows, err := r.db.Query(`
		SELECT 'barrio_vereda', COALESCE(barrio_vereda_provenance, ''), COUNT(*)
		FROM resolutions WHERE run_id = ? GROUP BY 2
		UNION ALL
		SELECT 'comuna_corregimiento', COALESCE(comuna_corregimiento_provenance, ''), COUNT(*)
		FROM resolutions WHERE run_id = ? GROUP BY 2
	`, id.String(), id.String())
	if err != nil {
		return nil, fmt.Errorf("counting provenance of run %s: %w", id, err)
	}
	defer rows.Close()

	counts := make(ProvenanceCounts)

	for rows.Next() {
		var (
			taxonomy, provenance string
			count                int
		)

		if err := rows.Scan(&taxonomy, &provenance, &count); err != nil {
			return nil, fmt.Errorf("scanning provenance count: %w", err)
		}

		tax := boundaries.Taxonomy(taxonomy)
		if counts[tax] == nil {
			counts[tax] = make(map[resolution.Provenance]int)
		}

		counts[tax][resolution.Provenance(provenance)] = count
	}

	return counts, rows.Err()
}
