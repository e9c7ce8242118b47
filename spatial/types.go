// Copyright 2025 The ChapaUY Authors
// SPDX-License-Identifier: Apache-2.0

// Package spatial holds the point and polygon types shared by the resolution
// engine, together with the codec for the project's point payloads.
//
// A Point is always (latitude, longitude). The project payloads keep that
// order on the wire, which is the inverse of GeoJSON; DuckDB POINT_2D columns
// use the GIS (x=lng, y=lat) order and are read through Scan.
package spatial

import (
	"fmt"
	"math"
)

const earthRadius = 6371e3 // meters

// Point is a WGS84 coordinate.
type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// String returns "lat,lng", the order the geocoding API expects.
func (p Point) String() string {
	return fmt.Sprintf("%.6f,%.6f", p.Lat, p.Lng)
}

// Scan implements sql.Scanner for POINT_2D values and their WKT text form.
func (p *Point) Scan(value any) error {
	switch v := value.(type) {
	case nil:
		*p = Point{}

		return nil
	case map[string]any:
		x, okX := v["x"].(float64)
		y, okY := v["y"].(float64)

		if !okX || !okY {
			return fmt.Errorf("spatial: POINT_2D without float x/y: %+v", v)
		}

		*p = Point{Lat: y, Lng: x}

		return nil
	case []byte:
		return p.scanWKT(string(v))
	case string:
		return p.scanWKT(v)
	default:
		return fmt.Errorf("spatial: cannot scan %T into Point", value)
	}
}

func (p *Point) scanWKT(s string) error {
	var x, y float64

	if _, err := fmt.Sscanf(s, "POINT (%f %f)", &x, &y); err != nil {
		if _, err := fmt.Sscanf(s, "POINT(%f %f)", &x, &y); err != nil {
			return fmt.Errorf("spatial: invalid WKT point %q: %w", s, err)
		}
	}

	*p = Point{Lat: y, Lng: x}

	return nil
}

// DistanceTo returns the great circle distance to other, in meters.
func (p Point) DistanceTo(other Point) float64 {
	rad := func(deg float64) float64 { return deg * math.Pi / 180 }

	dLat := rad(other.Lat - p.Lat)
	dLng := rad(other.Lng - p.Lng)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(rad(p.Lat))*math.Cos(rad(other.Lat))*math.Sin(dLng/2)*math.Sin(dLng/2)

	return 2 * earthRadius * math.Asin(math.Sqrt(a))
}
