// Copyright 2025 The ChapaUY Authors
// SPDX-License-Identifier: Apache-2.0

package resolution

import (
	"github.com/jcodagnone/barrios/boundaries"
	"github.com/jcodagnone/barrios/utils/textutils"
)

// Standardizer aligns label spelling with the reference data.
type Standardizer struct {
	canonical map[boundaries.Taxonomy]map[string]string
}

// NewStandardizer indexes the reference labels of ref. When two labels fold
// to the same key the first one in load order is kept.
func NewStandardizer(ref *boundaries.Reference) *Standardizer {
	s := &Standardizer{canonical: make(map[boundaries.Taxonomy]map[string]string)}

	for _, taxonomy := range Taxonomies {
		byKey := make(map[string]string)

		if idx := ref.Index(taxonomy); idx != nil {
			for _, label := range idx.Labels() {
				key := textutils.FoldKey(label)
				if _, ok := byKey[key]; !ok {
					byKey[key] = label
				}
			}
		}

		s.canonical[taxonomy] = byKey
	}

	return s
}

// Standardize cleans both slots of r.
func (s *Standardizer) Standardize(r Result) Result {
	for _, taxonomy := range Taxonomies {
		r.Set(taxonomy, s.Label(taxonomy, r.Get(taxonomy)))
	}

	return r
}

// Label trims and collapses the spaces of a resolved label and replaces it
// with the reference spelling when one matches ignoring case and accents.
// Sentinels pass through unchanged.
func (s *Standardizer) Label(taxonomy boundaries.Taxonomy, l Label) Label {
	if !l.IsResolved() {
		return l
	}

	l.Value = textutils.CollapseSpaces(l.Value)

	if canonical, ok := s.canonical[taxonomy][textutils.FoldKey(l.Value)]; ok {
		l.Value = canonical
	}

	return l
}
