// Copyright 2025 The ChapaUY Authors
// SPDX-License-Identifier: Apache-2.0

package boundaries

import (
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"testing"

	"github.com/jcodagnone/barrios/spatial"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func square(lat, lng, size float64) spatial.MultiPolygon {
	return spatial.MultiPolygon{{Exterior: spatial.Ring{
		{Lat: lat, Lng: lng},
		{Lat: lat, Lng: lng + size},
		{Lat: lat + size, Lng: lng + size},
		{Lat: lat + size, Lng: lng},
	}}}
}

func TestLoadGeoJSONFiles(t *testing.T) {
	barrios, err := LoadBarrios(GeoJSONFile{Path: "testdata/barrios.geojson", LabelProperty: "barrio"})
	require.NoError(t, err)

	comunas, err := LoadComunas(GeoJSONFile{Path: "testdata/comunas.geojson", LabelProperty: "nombre"})
	require.NoError(t, err)

	assert.Equal(t, BarrioVereda, barrios.Taxonomy())
	assert.Equal(t, ComunaCorregimiento, comunas.Taxonomy())
	assert.Equal(t, 3, barrios.Len())
	assert.Equal(t, []string{"El Peñón", "San Antonio", "Los Andes"}, barrios.Labels())
	assert.Equal(t, []string{"Comuna 3", "Corregimiento Los Andes"}, comunas.Labels())

	// Scenario: a point in El Peñón, stored (lat, lng)
	label, found := barrios.ContainingLabel(spatial.Point{Lat: 3.43, Lng: -76.52})
	assert.True(t, found)
	assert.Equal(t, "El Peñón", label)

	label, found = comunas.ContainingLabel(spatial.Point{Lat: 3.43, Lng: -76.52})
	assert.True(t, found)
	assert.Equal(t, "Comuna 3", label)

	// Second part of the Los Andes multipolygon
	label, found = barrios.ContainingLabel(spatial.Point{Lat: 3.46, Lng: -76.63})
	assert.True(t, found)
	assert.Equal(t, "Los Andes", label)
}

func TestContainingLabelMiss(t *testing.T) {
	idx, err := LoadBarrios(Boundaries{{Label: "El Peñón", Shape: square(3.42, -76.54, 0.02)}})
	require.NoError(t, err)

	label, found := idx.ContainingLabel(spatial.Point{Lat: 3.30, Lng: -76.30})
	assert.False(t, found)
	assert.Empty(t, label)
}

func TestContainingLabelOverlapKeepsLoadOrder(t *testing.T) {
	idx, err := LoadBarrios(Boundaries{
		{Label: "Primero", Shape: square(3.40, -76.60, 0.10)},
		{Label: "Segundo", Shape: square(3.45, -76.55, 0.10)},
	})
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		label, found := idx.ContainingLabel(spatial.Point{Lat: 3.47, Lng: -76.52})
		require.True(t, found)
		assert.Equal(t, "Primero", label)
	}
}

func TestSpatialCorrectness(t *testing.T) {
	// 10x10 grid of disjoint cells, more than maxChildren so the tree is bulk loaded.
	var cells Boundaries

	const size = 0.05

	for i := 0; i < 10; i++ {
		for j := 0; j < 10; j++ {
			cells = append(cells, Boundary{
				Label: fmt.Sprintf("Barrio %d-%d", i, j),
				Shape: square(3.0+float64(i)*size, -77.0+float64(j)*size, size),
			})
		}
	}

	idx, err := LoadBarrios(cells)
	require.NoError(t, err)

	rng := rand.New(rand.NewSource(7))

	for n := 0; n < 2000; n++ {
		i, j := rng.Intn(10), rng.Intn(10)

		// strictly inside, away from the shared edges
		p := spatial.Point{
			Lat: 3.0 + float64(i)*size + size*(0.01+0.98*rng.Float64()),
			Lng: -77.0 + float64(j)*size + size*(0.01+0.98*rng.Float64()),
		}

		label, found := idx.ContainingLabel(p)
		require.True(t, found, "point %v", p)
		require.Equal(t, fmt.Sprintf("Barrio %d-%d", i, j), label)
	}
}

func TestConcurrentLookups(t *testing.T) {
	idx, err := LoadBarrios(GeoJSONFile{Path: "testdata/barrios.geojson", LabelProperty: "BARRIO"})
	require.NoError(t, err)

	var wg sync.WaitGroup

	for i := 0; i < 16; i++ {
		wg.Add(1)

		go func() {
			defer wg.Done()

			for j := 0; j < 200; j++ {
				label, found := idx.ContainingLabel(spatial.Point{Lat: 3.45, Lng: -76.52})
				if !found || label != "San Antonio" {
					t.Errorf("ContainingLabel() = %q, %v", label, found)

					return
				}
			}
		}()
	}

	wg.Wait()
}

func TestLoadSkipsEmptyBoundaries(t *testing.T) {
	idx, err := LoadComunas(Boundaries{
		{Label: "", Shape: square(3.4, -76.5, 0.1)},
		{Label: "Comuna 3"},
		{Label: "Comuna 4", Shape: square(3.4, -76.5, 0.1)},
	})
	require.NoError(t, err)

	assert.Equal(t, 1, idx.Len())
	assert.True(t, idx.Has("Comuna 4"))
	assert.False(t, idx.Has("Comuna 3"))
}

func TestLoadPropagatesSourceErrors(t *testing.T) {
	_, err := LoadBarrios(GeoJSONFile{Path: "testdata/missing.geojson", LabelProperty: "barrio"})
	assert.Error(t, err)

	_, err = ReadGeoJSON(strings.NewReader(`{"features":[{"geometry":{"type":"Point","coordinates":[-76.5,3.4]}}]}`), "name")
	assert.Error(t, err)
}

func TestReferenceHas(t *testing.T) {
	barrios, err := LoadBarrios(Boundaries{{Label: "El Peñón", Shape: square(3.42, -76.54, 0.02)}})
	require.NoError(t, err)

	comunas, err := LoadComunas(Boundaries{{Label: "Comuna 3", Shape: square(3.40, -76.56, 0.08)}})
	require.NoError(t, err)

	ref := &Reference{Barrios: barrios, Comunas: comunas}

	assert.True(t, ref.Has(BarrioVereda, "El Peñón"))
	assert.False(t, ref.Has(BarrioVereda, "el peñón"), "membership is exact")
	assert.True(t, ref.Has(ComunaCorregimiento, "Comuna 3"))
	assert.False(t, ref.Has(ComunaCorregimiento, "El Peñón"))
}

func TestParseTaxonomy(t *testing.T) {
	tax, err := ParseTaxonomy("Comunas")
	require.NoError(t, err)
	assert.Equal(t, ComunaCorregimiento, tax)

	tax, err = ParseTaxonomy("barrio_vereda")
	require.NoError(t, err)
	assert.Equal(t, BarrioVereda, tax)

	_, err = ParseTaxonomy("municipio")
	assert.True(t, errors.Is(err, ErrUnknownTaxonomy))
}
