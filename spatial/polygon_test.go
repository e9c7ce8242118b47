// Copyright 2025 The ChapaUY Authors
// SPDX-License-Identifier: Apache-2.0

package spatial

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func square(lat, lng, size float64) Ring {
	return Ring{
		{Lat: lat, Lng: lng},
		{Lat: lat, Lng: lng + size},
		{Lat: lat + size, Lng: lng + size},
		{Lat: lat + size, Lng: lng},
		{Lat: lat, Lng: lng},
	}
}

func TestPolygonContains(t *testing.T) {
	pg := Polygon{
		Exterior: square(3.40, -76.55, 0.10),
		Holes:    []Ring{square(3.44, -76.51, 0.02)},
	}

	assert.True(t, pg.Contains(Point{Lat: 3.42, Lng: -76.53}))
	assert.False(t, pg.Contains(Point{Lat: 3.45, Lng: -76.50}), "inside the hole")
	assert.False(t, pg.Contains(Point{Lat: 3.60, Lng: -76.53}), "north of the polygon")
	assert.False(t, pg.Contains(Point{Lat: 3.42, Lng: -76.60}), "west of the polygon")
}

func TestPolygonContainsConcave(t *testing.T) {
	// L shaped polygon, the notch is at the north east.
	pg := Polygon{Exterior: Ring{
		{Lat: 3.40, Lng: -76.60},
		{Lat: 3.40, Lng: -76.50},
		{Lat: 3.45, Lng: -76.50},
		{Lat: 3.45, Lng: -76.55},
		{Lat: 3.50, Lng: -76.55},
		{Lat: 3.50, Lng: -76.60},
	}}

	assert.True(t, pg.Contains(Point{Lat: 3.42, Lng: -76.52}))
	assert.True(t, pg.Contains(Point{Lat: 3.48, Lng: -76.58}))
	assert.False(t, pg.Contains(Point{Lat: 3.48, Lng: -76.52}))
}

func TestDegeneratePolygon(t *testing.T) {
	pg := Polygon{Exterior: Ring{{Lat: 3.4, Lng: -76.5}, {Lat: 3.5, Lng: -76.5}}}

	assert.False(t, pg.Contains(Point{Lat: 3.45, Lng: -76.5}))
}

func TestMultiPolygonBounds(t *testing.T) {
	mp := MultiPolygon{
		{Exterior: square(3.40, -76.55, 0.01)},
		{Exterior: square(3.50, -76.45, 0.02)},
	}

	box := mp.Bounds()
	assert.Equal(t, 3.40, box.MinLat)
	assert.InDelta(t, 3.52, box.MaxLat, 1e-9)
	assert.Equal(t, -76.55, box.MinLng)
	assert.InDelta(t, -76.43, box.MaxLng, 1e-9)

	assert.True(t, mp.Contains(Point{Lat: 3.51, Lng: -76.44}))
	assert.False(t, mp.Contains(Point{Lat: 3.45, Lng: -76.50}))
}

func TestPointScan(t *testing.T) {
	var p Point

	require.NoError(t, p.Scan([]byte("POINT (-76.52 3.43)")))
	assert.Equal(t, Point{Lat: 3.43, Lng: -76.52}, p)

	require.NoError(t, p.Scan("POINT(-76.5 3.4)"))
	assert.Equal(t, Point{Lat: 3.4, Lng: -76.5}, p)

	require.NoError(t, p.Scan(map[string]any{"x": -76.5, "y": 3.4}))
	assert.Equal(t, Point{Lat: 3.4, Lng: -76.5}, p)

	require.NoError(t, p.Scan(nil))
	assert.Equal(t, Point{}, p)

	assert.Error(t, p.Scan(map[string]any{"x": "a"}))
	assert.Error(t, p.Scan("LINESTRING (0 0, 1 1)"))
	assert.Error(t, p.Scan(42))
}

func TestPointString(t *testing.T) {
	assert.Equal(t, "3.430000,-76.520000", Point{Lat: 3.43, Lng: -76.52}.String())
}

func TestDistanceTo(t *testing.T) {
	a := Point{Lat: 3.4516, Lng: -76.5320}
	b := Point{Lat: 3.4616, Lng: -76.5320}

	// 0.01 degrees of latitude is roughly 1.1 km
	assert.InDelta(t, 1112, a.DistanceTo(b), 5)
	assert.InDelta(t, a.DistanceTo(b), b.DistanceTo(a), 1e-9)
	assert.Zero(t, a.DistanceTo(a))
}
