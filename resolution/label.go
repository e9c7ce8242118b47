// Copyright 2025 The ChapaUY Authors
// SPDX-License-Identifier: Apache-2.0

// Package resolution decides, for every project record, which barrio/vereda
// and comuna/corregimiento it belongs to. Polygons are asked first, the
// geocoding service second; values filed under the wrong taxonomy are swapped
// and spelling is aligned with the reference data.
package resolution

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jcodagnone/barrios/boundaries"
	"github.com/jcodagnone/barrios/geocoding"
)

// ErrorSentinel is how an unresolved slot is written out.
const ErrorSentinel = "ERROR"

// Provenance tells where the value of a slot came from.
type Provenance string

const (
	ProvenanceSpatial    Provenance = "SPATIAL"
	ProvenanceAPI        Provenance = "API"
	ProvenanceUnresolved Provenance = "UNRESOLVED"
	// ProvenanceSource marks values copied from records that did not ask for resolution.
	ProvenanceSource Provenance = "SOURCE"
)

// LabelKind distinguishes a real label from the sentinel states.
type LabelKind int

const (
	KindAbsent LabelKind = iota
	KindResolved
	// KindAmbiguous holds the city's own name where a finer label was expected.
	KindAmbiguous
	KindError
)

var kindNames = map[LabelKind]string{
	KindAbsent:    "absent",
	KindResolved:  "resolved",
	KindAmbiguous: "ambiguous",
	KindError:     "error",
}

func (k LabelKind) String() string {
	return kindNames[k]
}

// ParseLabelKind is the inverse of LabelKind.String.
func ParseLabelKind(s string) (LabelKind, error) {
	for k, name := range kindNames {
		if name == s {
			return k, nil
		}
	}

	return KindAbsent, fmt.Errorf("unknown label kind %q", s)
}

// Label is the content of one resolution slot.
type Label struct {
	Kind       LabelKind
	Value      string
	Provenance Provenance
}

// NewLabel returns a resolved label.
func NewLabel(value string, provenance Provenance) Label {
	return Label{Kind: KindResolved, Value: value, Provenance: provenance}
}

// AmbiguousLabel returns a label holding the city name.
func AmbiguousLabel(value string, provenance Provenance) Label {
	return Label{Kind: KindAmbiguous, Value: value, Provenance: provenance}
}

// ErrorLabel returns an unresolved slot.
func ErrorLabel() Label {
	return Label{Kind: KindError, Value: ErrorSentinel, Provenance: ProvenanceUnresolved}
}

// ParseLabel classifies a raw text value coming from the input data.
func ParseLabel(raw string, provenance Provenance, city string) Label {
	trimmed := strings.TrimSpace(raw)

	switch {
	case trimmed == "":
		return Label{Provenance: provenance}
	case strings.EqualFold(trimmed, ErrorSentinel):
		return Label{Kind: KindError, Value: ErrorSentinel, Provenance: provenance}
	case geocoding.IsCity(trimmed, city):
		return AmbiguousLabel(raw, provenance)
	default:
		return NewLabel(raw, provenance)
	}
}

// IsResolved reports whether the slot holds a proper label.
func (l Label) IsResolved() bool {
	return l.Kind == KindResolved
}

// String returns the value as written out: the sentinel for errors.
func (l Label) String() string {
	if l.Kind == KindError {
		return ErrorSentinel
	}

	return l.Value
}

type labelJSON struct {
	Value      string     `json:"value"`
	Provenance Provenance `json:"provenance,omitempty"`
	Kind       string     `json:"kind"`
}

// MarshalJSON keeps the sentinel values downstream consumers expect.
func (l Label) MarshalJSON() ([]byte, error) {
	return json.Marshal(labelJSON{Value: l.String(), Provenance: l.Provenance, Kind: l.Kind.String()})
}

// UnmarshalJSON reads what MarshalJSON writes.
func (l *Label) UnmarshalJSON(data []byte) error {
	var v labelJSON
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}

	kind, err := ParseLabelKind(v.Kind)
	if err != nil {
		return err
	}

	*l = Label{Kind: kind, Value: v.Value, Provenance: v.Provenance}

	return nil
}

// Result holds the two resolved slots of a record.
type Result struct {
	BarrioVereda        Label `json:"barrio_vereda_resolved"`
	ComunaCorregimiento Label `json:"comuna_corregimiento_resolved"`
}

// Get returns the slot of taxonomy.
func (r Result) Get(taxonomy boundaries.Taxonomy) Label {
	if taxonomy == boundaries.ComunaCorregimiento {
		return r.ComunaCorregimiento
	}

	return r.BarrioVereda
}

// Set replaces the slot of taxonomy.
func (r *Result) Set(taxonomy boundaries.Taxonomy, l Label) {
	if taxonomy == boundaries.ComunaCorregimiento {
		r.ComunaCorregimiento = l
	} else {
		r.BarrioVereda = l
	}
}

// Taxonomies lists the slots in the order they are resolved.
var Taxonomies = []boundaries.Taxonomy{boundaries.BarrioVereda, boundaries.ComunaCorregimiento}
