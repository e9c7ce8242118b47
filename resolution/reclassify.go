// Copyright 2025 The ChapaUY Authors
// SPDX-License-Identifier: Apache-2.0

package resolution

import (
	"github.com/jcodagnone/barrios/boundaries"
)

// LabelSets answers exact membership in the reference label sets.
// *boundaries.Reference implements it.
type LabelSets interface {
	Has(taxonomy boundaries.Taxonomy, label string) bool
}

// misfiled reports whether l, stored in the slot of taxonomy, is a label of
// the other taxonomy only. Sentinels and ambiguous values have no opinion.
func misfiled(sets LabelSets, taxonomy boundaries.Taxonomy, l Label) bool {
	if !l.IsResolved() {
		return false
	}

	other := boundaries.ComunaCorregimiento
	if taxonomy == boundaries.ComunaCorregimiento {
		other = boundaries.BarrioVereda
	}

	return sets.Has(other, l.Value) && !sets.Has(taxonomy, l.Value)
}

// belongs reports whether l is a label of taxonomy.
func belongs(sets LabelSets, taxonomy boundaries.Taxonomy, l Label) bool {
	return l.IsResolved() && sets.Has(taxonomy, l.Value)
}

// reclassification is what a pass of reclassify did to a result.
type reclassification int

const (
	unchanged reclassification = iota
	// swapped exchanged the two slots.
	swapped
	// cleared dropped a misfiled value repeating the other slot.
	cleared
	// conflicted dropped a misfiled value that disagrees with the correctly
	// filed value of the other slot.
	conflicted
)

// Reclassify swaps the two slots when a value is filed under the wrong
// taxonomy. The swap only happens when it does not push a correctly filed
// value into the wrong slot. Otherwise the misfiled slot becomes an error,
// which makes the function idempotent.
func Reclassify(r Result, sets LabelSets) Result {
	r, _ = reclassify(r, sets)

	return r
}

func reclassify(r Result, sets LabelSets) (Result, reclassification) {
	misB := misfiled(sets, boundaries.BarrioVereda, r.BarrioVereda)
	misC := misfiled(sets, boundaries.ComunaCorregimiento, r.ComunaCorregimiento)
	okB := belongs(sets, boundaries.BarrioVereda, r.BarrioVereda)
	okC := belongs(sets, boundaries.ComunaCorregimiento, r.ComunaCorregimiento)

	switch {
	case (misB && misC) || (misB && !okC) || (misC && !okB):
		r.BarrioVereda, r.ComunaCorregimiento = r.ComunaCorregimiento, r.BarrioVereda

		return r, swapped
	case misB && r.BarrioVereda.Value == r.ComunaCorregimiento.Value:
		r.BarrioVereda = ErrorLabel()

		return r, cleared
	case misB:
		r.BarrioVereda = ErrorLabel()

		return r, conflicted
	case misC:
		r.ComunaCorregimiento = ErrorLabel()

		return r, conflicted
	default:
		return r, unchanged
	}
}
