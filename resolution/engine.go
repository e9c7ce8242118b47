// Copyright 2025 The ChapaUY Authors
// SPDX-License-Identifier: Apache-2.0

package resolution

import (
	"context"
	"fmt"
	"log"

	"github.com/jcodagnone/barrios/boundaries"
	"github.com/jcodagnone/barrios/geocoding"
	"github.com/jcodagnone/barrios/spatial"
)

// Record is one project location as it comes from the extraction stage.
type Record struct {
	RecordID string `json:"id"`
	// Geometry is the point payload in (lat, lng) order, or a sentinel.
	Geometry            any    `json:"geometry"`
	Direccion           string `json:"direccion,omitempty"`
	BarrioVereda        string `json:"barrio_vereda,omitempty"`
	ComunaCorregimiento string `json:"comuna_corregimiento,omitempty"`
	NeedsResolution     bool   `json:"needs_resolution"`
}

// IssueKind classifies what went wrong, or needed attention, on a record.
type IssueKind string

const (
	IssueInvalidGeometry    IssueKind = "invalid_geometry"
	IssueAPICallFailure     IssueKind = "api_call_failure"
	IssueAmbiguousLabel     IssueKind = "ambiguous_label"
	IssueMisclassifiedLabel IssueKind = "misclassified_label"
	IssueForwardGeocoding   IssueKind = "forward_geocoding"
	IssueInternal           IssueKind = "internal"
)

// Issue is a per record finding. Issues never abort a batch.
type Issue struct {
	Kind    IssueKind `json:"kind"`
	Message string    `json:"message"`
}

// Resolution is the outcome for one record.
type Resolution struct {
	RecordID    string         `json:"id"`
	Point       *spatial.Point `json:"point,omitempty"`
	Result      Result         `json:"result"`
	State       State          `json:"state"`
	Trace       []State        `json:"trace"`
	NeedsReview bool           `json:"needs_review"`
	Issues      []Issue        `json:"issues,omitempty"`
	Forward     *Forward       `json:"forward,omitempty"`
}

func (r *Resolution) addIssue(kind IssueKind, format string, args ...any) {
	r.Issues = append(r.Issues, Issue{Kind: kind, Message: fmt.Sprintf(format, args...)})
}

// HasIssue reports whether an issue of kind was recorded.
func (r *Resolution) HasIssue(kind IssueKind) bool {
	for _, issue := range r.Issues {
		if issue.Kind == kind {
			return true
		}
	}

	return false
}

// Geocoder is the part of the geocoding client the engine needs.
type Geocoder interface {
	ReverseGeocode(ctx context.Context, p spatial.Point) ([]geocoding.AddressComponent, error)
	ForwardGeocode(ctx context.Context, address string) (*geocoding.GeocodingResult, error)
}

// Options tunes the engine.
type Options struct {
	// City is the name of the city, the ambiguous value of both taxonomies.
	City string
	// Region is appended to forward queries, e.g. "Valle del Cauca, Colombia".
	Region string
	// Forward enables forward geocoding of the record address.
	Forward bool
}

// Engine resolves records against the reference boundaries and, for what the
// polygons cannot answer, the geocoding service.
type Engine struct {
	ref          *boundaries.Reference
	geocoder     Geocoder
	standardizer *Standardizer
	opts         Options
}

// NewEngine creates an engine. geocoder may be nil, in which case slots the
// polygons do not resolve end up unresolved.
func NewEngine(ref *boundaries.Reference, geocoder Geocoder, opts Options) *Engine {
	return &Engine{
		ref:          ref,
		geocoder:     geocoder,
		standardizer: NewStandardizer(ref),
		opts:         opts,
	}
}

// Lookup answers with the polygons only. Slots without a containing polygon
// are absent.
func (e *Engine) Lookup(p spatial.Point) Result {
	var r Result

	for _, taxonomy := range Taxonomies {
		if label, ok := e.containing(taxonomy, p); ok {
			r.Set(taxonomy, NewLabel(label, ProvenanceSpatial))
		}
	}

	return e.standardizer.Standardize(r)
}

func (e *Engine) containing(taxonomy boundaries.Taxonomy, p spatial.Point) (string, bool) {
	idx := e.ref.Index(taxonomy)
	if idx == nil {
		return "", false
	}

	return idx.ContainingLabel(p)
}

// Resolve runs the whole cascade for one record. It never fails: problems
// are recorded as issues and degrade the slots to the error sentinel.
func (e *Engine) Resolve(ctx context.Context, rec Record) *Resolution {
	res := &Resolution{
		RecordID: rec.RecordID,
		State:    StateSpatialPending,
		Trace:    []State{StateSpatialPending},
	}

	if err := e.resolve(ctx, res, rec); err != nil {
		log.Printf("record %s: %v", rec.RecordID, err)

		res.Result = Result{BarrioVereda: ErrorLabel(), ComunaCorregimiento: ErrorLabel()}
		res.NeedsReview = true
		res.addIssue(IssueInternal, "%v", err)
		res.State = StateDone
		res.Trace = append(res.Trace, StateDone)
	}

	return res
}

func (e *Engine) resolve(ctx context.Context, res *Resolution, rec Record) error {
	if !rec.NeedsResolution {
		res.Result = Result{
			BarrioVereda:        ParseLabel(rec.BarrioVereda, ProvenanceSource, e.opts.City),
			ComunaCorregimiento: ParseLabel(rec.ComunaCorregimiento, ProvenanceSource, e.opts.City),
		}

		return res.advance(StateDone)
	}

	p, err := spatial.Parse(rec.Geometry)
	if err != nil {
		res.Result = Result{BarrioVereda: ErrorLabel(), ComunaCorregimiento: ErrorLabel()}
		res.NeedsReview = true
		res.addIssue(IssueInvalidGeometry, "%v", err)

		return e.finish(ctx, res, rec)
	}

	res.Point = &p

	pending := e.resolveSpatial(res, p)
	if len(pending) == 0 {
		if err := res.advance(StateSpatialResolved); err != nil {
			return err
		}
	} else {
		if len(pending) < len(Taxonomies) {
			if err := res.advance(StateSpatialResolved); err != nil {
				return err
			}
		}

		if err := res.advance(StateAPIPending); err != nil {
			return err
		}

		if err := res.advance(e.resolveAPI(ctx, res, p, pending)); err != nil {
			return err
		}
	}

	return e.finish(ctx, res, rec)
}

// resolveSpatial fills the slots the polygons answer and returns the others.
func (e *Engine) resolveSpatial(res *Resolution, p spatial.Point) []boundaries.Taxonomy {
	var pending []boundaries.Taxonomy

	for _, taxonomy := range Taxonomies {
		if label, ok := e.containing(taxonomy, p); ok {
			res.Result.Set(taxonomy, NewLabel(label, ProvenanceSpatial))
		} else {
			pending = append(pending, taxonomy)
		}
	}

	return pending
}

// resolveAPI asks the geocoder once for all the pending slots and returns
// the state the record ends in.
func (e *Engine) resolveAPI(ctx context.Context, res *Resolution, p spatial.Point, pending []boundaries.Taxonomy) State {
	for _, taxonomy := range pending {
		res.Result.Set(taxonomy, ErrorLabel())
	}

	if e.geocoder == nil {
		return StateUnresolved
	}

	components, err := e.geocoder.ReverseGeocode(ctx, p)
	if err != nil {
		if !geocoding.IsNotFoundError(err) {
			log.Printf("⚠️  record %s: %v", res.RecordID, err)
			res.addIssue(IssueAPICallFailure, "%v", err)
		}

		return StateUnresolved
	}

	state := StateAPIResolved

	for _, taxonomy := range pending {
		var (
			value string
			found bool
		)

		if taxonomy == boundaries.ComunaCorregimiento {
			value, found = geocoding.ExtractComuna(components, e.opts.City)
		} else {
			value, found = geocoding.ExtractBarrio(components)
		}

		switch {
		case !found:
			state = StateUnresolved
		case geocoding.IsCity(value, e.opts.City):
			res.Result.Set(taxonomy, AmbiguousLabel(value, ProvenanceAPI))
			res.NeedsReview = true
			res.addIssue(IssueAmbiguousLabel, "%s resolved to the city name %q", taxonomy, value)
		default:
			res.Result.Set(taxonomy, NewLabel(value, ProvenanceAPI))
		}
	}

	return state
}

// finish runs the steps shared by every record that asked for resolution.
func (e *Engine) finish(ctx context.Context, res *Resolution, rec Record) error {
	before := res.Result

	var outcome reclassification

	res.Result, outcome = reclassify(res.Result, e.ref)

	switch outcome {
	case swapped:
		res.addIssue(IssueMisclassifiedLabel, "swapped %q and %q between taxonomies",
			before.BarrioVereda.Value, before.ComunaCorregimiento.Value)
	case cleared:
		res.addIssue(IssueMisclassifiedLabel, "dropped %q from %s, it is a %s",
			before.BarrioVereda.Value, boundaries.BarrioVereda, boundaries.ComunaCorregimiento)
	case conflicted:
		res.NeedsReview = true
		res.addIssue(IssueMisclassifiedLabel, "%q and %q disagree once filed under their taxonomy",
			before.BarrioVereda.Value, before.ComunaCorregimiento.Value)
	}

	if err := res.advance(StateReclassified); err != nil {
		return err
	}

	res.Result = e.standardizer.Standardize(res.Result)

	if err := res.advance(StateStandardized); err != nil {
		return err
	}

	if e.opts.Forward && e.geocoder != nil && res.Point != nil {
		e.forward(ctx, res, rec.Direccion)
	}

	return res.advance(StateDone)
}

// ResolveBatch resolves records one after the other, calling callback with
// every resolution. It stops early only when ctx is done or callback fails.
func (e *Engine) ResolveBatch(ctx context.Context, records []Record, callback func(*Resolution) error) (Summary, error) {
	var summary Summary

	for _, rec := range records {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		res := e.Resolve(ctx, rec)
		summary.Add(res)

		if callback == nil {
			continue
		}

		if err := callback(res); err != nil {
			return summary, err
		}
	}

	return summary, nil
}
