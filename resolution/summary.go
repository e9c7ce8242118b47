// Copyright 2025 The ChapaUY Authors
// SPDX-License-Identifier: Apache-2.0

package resolution

// Summary counts the outcome of a batch. Every record that asked for
// resolution lands in exactly one of ResolvedSpatial, ResolvedAPI and
// Unresolved.
type Summary struct {
	Records     int `json:"records"`
	PassThrough int `json:"pass_through"`

	ResolvedSpatial int `json:"resolved_spatial"`
	ResolvedAPI     int `json:"resolved_api"`
	Unresolved      int `json:"unresolved"`

	InvalidGeometry int `json:"invalid_geometry"`
	APIFailures     int `json:"api_failures"`
	Ambiguous       int `json:"ambiguous"`
	Reclassified    int `json:"reclassified"`
	NeedsReview     int `json:"needs_review"`

	ForwardGeocoded int `json:"forward_geocoded"`
	ForwardFailures int `json:"forward_failures"`

	// Slots counts single slots per provenance.
	Slots map[Provenance]int `json:"slots"`
}

// Add accounts for res.
func (s *Summary) Add(res *Resolution) {
	s.Records++

	if s.Slots == nil {
		s.Slots = make(map[Provenance]int)
	}

	if res.NeedsReview {
		s.NeedsReview++
	}

	for _, issue := range res.Issues {
		switch issue.Kind {
		case IssueInvalidGeometry:
			s.InvalidGeometry++
		case IssueAPICallFailure:
			s.APIFailures++
		case IssueAmbiguousLabel:
			s.Ambiguous++
		case IssueMisclassifiedLabel:
			s.Reclassified++
		}
	}

	if res.Forward != nil {
		if res.Forward.Point != nil {
			s.ForwardGeocoded++
		} else {
			s.ForwardFailures++
		}
	}

	var unresolved, api bool

	for _, taxonomy := range Taxonomies {
		l := res.Result.Get(taxonomy)
		s.Slots[l.Provenance]++

		switch {
		case l.Kind == KindError || l.Kind == KindAbsent:
			unresolved = true
		case l.Provenance == ProvenanceAPI:
			api = true
		}
	}

	switch {
	case !res.Reached(StateReclassified) && res.Result.BarrioVereda.Provenance == ProvenanceSource:
		s.PassThrough++
	case unresolved:
		s.Unresolved++
	case api:
		s.ResolvedAPI++
	default:
		s.ResolvedSpatial++
	}
}

// Merge adds the counters of other.
func (s *Summary) Merge(other Summary) {
	s.Records += other.Records
	s.PassThrough += other.PassThrough
	s.ResolvedSpatial += other.ResolvedSpatial
	s.ResolvedAPI += other.ResolvedAPI
	s.Unresolved += other.Unresolved
	s.InvalidGeometry += other.InvalidGeometry
	s.APIFailures += other.APIFailures
	s.Ambiguous += other.Ambiguous
	s.Reclassified += other.Reclassified
	s.NeedsReview += other.NeedsReview
	s.ForwardGeocoded += other.ForwardGeocoded
	s.ForwardFailures += other.ForwardFailures

	if len(other.Slots) > 0 && s.Slots == nil {
		s.Slots = make(map[Provenance]int)
	}

	for k, v := range other.Slots {
		s.Slots[k] += v
	}
}
