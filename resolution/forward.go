// Copyright 2025 The ChapaUY Authors
// SPDX-License-Identifier: Apache-2.0

package resolution

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jcodagnone/barrios/spatial"
	"github.com/jcodagnone/barrios/utils/textutils"
)

var (
	// ErrNotReclassified is returned when an address is requested from labels
	// that did not go through reclassification.
	ErrNotReclassified = errors.New("labels have not been reclassified")
	// ErrEmptyAddress means there is nothing beyond the city to look up.
	ErrEmptyAddress = errors.New("empty address")
)

// Forward is the best effort forward geocoding of a record address.
type Forward struct {
	Query      string         `json:"query"`
	Point      *spatial.Point `json:"point,omitempty"`
	Confidence string         `json:"confidence,omitempty"`
	// OffsetMeters is the distance between the record point and Point.
	OffsetMeters float64 `json:"offset_meters,omitempty"`
	Error        string  `json:"error,omitempty"`
}

// BuildAddress returns the forward geocoding query for res: the street
// address, the resolved labels, the city and the region. Sentinel and
// ambiguous slots are left out.
func BuildAddress(res *Resolution, direccion, city, region string) (string, error) {
	if !res.Reached(StateReclassified) {
		return "", ErrNotReclassified
	}

	var parts []string

	if d := textutils.CollapseSpaces(direccion); d != "" {
		parts = append(parts, d)
	}

	for _, taxonomy := range Taxonomies {
		if l := res.Result.Get(taxonomy); l.IsResolved() {
			parts = append(parts, textutils.CollapseSpaces(l.Value))
		}
	}

	if len(parts) == 0 {
		return "", ErrEmptyAddress
	}

	for _, s := range []string{city, region} {
		if s != "" {
			parts = append(parts, s)
		}
	}

	return strings.Join(parts, ", "), nil
}

// forward geocodes the record address. Failures are recorded on res.Forward
// and never touch the label slots.
func (e *Engine) forward(ctx context.Context, res *Resolution, direccion string) {
	query, err := BuildAddress(res, direccion, e.opts.City, e.opts.Region)
	if errors.Is(err, ErrEmptyAddress) {
		return
	}

	if err != nil {
		res.addIssue(IssueForwardGeocoding, "%v", err)

		return
	}

	res.Forward = &Forward{Query: query}

	result, err := e.geocoder.ForwardGeocode(ctx, query)
	if err == nil {
		err = spatial.ValidateCoordinates(result.Point.Lat, result.Point.Lng)
	}

	if err != nil {
		res.Forward.Error = err.Error()
		res.addIssue(IssueForwardGeocoding, "%s: %v", query, err)

		return
	}

	res.Forward.Point = &result.Point
	res.Forward.Confidence = result.Confidence

	if res.Point != nil {
		res.Forward.OffsetMeters = res.Point.DistanceTo(result.Point)
	}
}

// String is a one line description used by the CLI.
func (f *Forward) String() string {
	if f.Point == nil {
		return fmt.Sprintf("%q: %s", f.Query, f.Error)
	}

	return fmt.Sprintf("%q: %v (%s, %.0fm)", f.Query, f.Point, f.Confidence, f.OffsetMeters)
}
