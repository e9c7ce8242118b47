// Copyright 2025 The ChapaUY Authors
// SPDX-License-Identifier: Apache-2.0

package spatial

// Ring is a closed sequence of vertices. Closing the ring explicitly (last
// vertex equal to the first) is optional.
type Ring []Point

// Polygon is an exterior ring with optional holes.
type Polygon struct {
	Exterior Ring   `json:"exterior"`
	Holes    []Ring `json:"holes,omitempty"`
}

// MultiPolygon is a shape made of disjoint polygons.
type MultiPolygon []Polygon

// contains uses the even-odd ray casting rule with x=lng, y=lat.
func (r Ring) contains(p Point) bool {
	inside := false

	n := len(r)
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		a, b := r[i], r[j]
		if (a.Lat > p.Lat) != (b.Lat > p.Lat) &&
			p.Lng < (b.Lng-a.Lng)*(p.Lat-a.Lat)/(b.Lat-a.Lat)+a.Lng {
			inside = !inside
		}
	}

	return inside
}

// Contains reports whether p is inside the exterior ring and outside every hole.
func (pg Polygon) Contains(p Point) bool {
	if len(pg.Exterior) < 3 || !pg.Exterior.contains(p) {
		return false
	}

	for _, hole := range pg.Holes {
		if hole.contains(p) {
			return false
		}
	}

	return true
}

// Bounds returns the bounding box of the exterior ring.
func (pg Polygon) Bounds() BoundingBox {
	box := emptyBox()
	for _, v := range pg.Exterior {
		box.Extend(v)
	}

	return box
}

// Contains reports whether any part contains p.
func (mp MultiPolygon) Contains(p Point) bool {
	for _, pg := range mp {
		if pg.Contains(p) {
			return true
		}
	}

	return false
}

// Bounds returns the bounding box of all parts.
func (mp MultiPolygon) Bounds() BoundingBox {
	box := emptyBox()

	for _, pg := range mp {
		for _, v := range pg.Exterior {
			box.Extend(v)
		}
	}

	return box
}
