// Copyright 2025 The ChapaUY Authors
// SPDX-License-Identifier: Apache-2.0

package resolution

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLabel(t *testing.T) {
	tests := []struct {
		raw  string
		want Label
	}{
		{raw: "", want: Label{Provenance: ProvenanceSource}},
		{raw: "   ", want: Label{Provenance: ProvenanceSource}},
		{raw: "error", want: Label{Kind: KindError, Value: ErrorSentinel, Provenance: ProvenanceSource}},
		{raw: "CALI", want: AmbiguousLabel("CALI", ProvenanceSource)},
		{raw: "El Peñón", want: NewLabel("El Peñón", ProvenanceSource)},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLabel(tt.raw, ProvenanceSource, "Cali"))
		})
	}
}

func TestLabelJSON(t *testing.T) {
	out, err := json.Marshal(result(ErrorLabel(), NewLabel("Comuna 3", ProvenanceSpatial)))
	require.NoError(t, err)

	assert.JSONEq(t, `{
		"barrio_vereda_resolved": {"value": "ERROR", "provenance": "UNRESOLVED", "kind": "error"},
		"comuna_corregimiento_resolved": {"value": "Comuna 3", "provenance": "SPATIAL", "kind": "resolved"}
	}`, string(out))

	var back Result
	require.NoError(t, json.Unmarshal(out, &back))
	assert.Equal(t, ErrorLabel(), back.BarrioVereda)
	assert.Equal(t, NewLabel("Comuna 3", ProvenanceSpatial), back.ComunaCorregimiento)

	assert.Error(t, json.Unmarshal([]byte(`{"value":"x","kind":"maybe"}`), &Label{}))
}

func TestStateTransitions(t *testing.T) {
	res := &Resolution{State: StateSpatialPending, Trace: []State{StateSpatialPending}}

	assert.ErrorIs(t, res.advance(StateStandardized), ErrInvalidTransition)
	require.NoError(t, res.advance(StateAPIPending))
	assert.ErrorIs(t, res.advance(StateReclassified), ErrInvalidTransition, "the API stage must end first")
	require.NoError(t, res.advance(StateUnresolved))
	require.NoError(t, res.advance(StateReclassified))

	assert.True(t, res.Reached(StateReclassified))
	assert.False(t, res.Reached(StateSpatialResolved))

	var s State
	require.NoError(t, s.UnmarshalText([]byte("API_RESOLVED")))
	assert.Equal(t, StateAPIResolved, s)
	assert.Error(t, s.UnmarshalText([]byte("FINISHED")))

	out, err := json.Marshal(res.Trace)
	require.NoError(t, err)
	assert.Equal(t, `["SPATIAL_PENDING","API_PENDING","UNRESOLVED","RECLASSIFIED"]`, string(out))
}

func TestSummaryMerge(t *testing.T) {
	a := Summary{Records: 2, ResolvedSpatial: 1, Unresolved: 1, Slots: map[Provenance]int{ProvenanceSpatial: 3, ProvenanceUnresolved: 1}}
	b := Summary{Records: 1, ResolvedAPI: 1, APIFailures: 2, Slots: map[Provenance]int{ProvenanceAPI: 2}}

	var total Summary
	total.Merge(a)
	total.Merge(b)

	assert.Equal(t, 3, total.Records)
	assert.Equal(t, 1, total.ResolvedSpatial)
	assert.Equal(t, 1, total.ResolvedAPI)
	assert.Equal(t, 1, total.Unresolved)
	assert.Equal(t, 2, total.APIFailures)
	assert.Equal(t, map[Provenance]int{ProvenanceSpatial: 3, ProvenanceUnresolved: 1, ProvenanceAPI: 2}, total.Slots)
}
