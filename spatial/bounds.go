// Copyright 2025 The ChapaUY Authors
// SPDX-License-Identifier: Apache-2.0

package spatial

import (
	"errors"
	"fmt"
	"math"
)

// ErrOutOfBounds is returned for points outside CityBounds.
var ErrOutOfBounds = errors.New("spatial: point out of bounds")

// BoundingBox is an axis aligned lat/lng rectangle, bounds included.
type BoundingBox struct {
	MinLat float64 `json:"min_lat"`
	MaxLat float64 `json:"max_lat"`
	MinLng float64 `json:"min_lng"`
	MaxLng float64 `json:"max_lng"`
}

// CityBounds is the bounding box of Santiago de Cali. Every valid record
// point lies inside it.
var CityBounds = BoundingBox{
	MinLat: 3.0,
	MaxLat: 4.0,
	MinLng: -77.0,
	MaxLng: -76.0,
}

// Contains reports whether p lies inside the box.
func (b BoundingBox) Contains(p Point) bool {
	return p.Lat >= b.MinLat && p.Lat <= b.MaxLat &&
		p.Lng >= b.MinLng && p.Lng <= b.MaxLng
}

// Extend grows the box to include p.
func (b *BoundingBox) Extend(p Point) {
	b.MinLat = math.Min(b.MinLat, p.Lat)
	b.MaxLat = math.Max(b.MaxLat, p.Lat)
	b.MinLng = math.Min(b.MinLng, p.Lng)
	b.MaxLng = math.Max(b.MaxLng, p.Lng)
}

func emptyBox() BoundingBox {
	return BoundingBox{
		MinLat: math.Inf(1),
		MaxLat: math.Inf(-1),
		MinLng: math.Inf(1),
		MaxLng: math.Inf(-1),
	}
}

// ValidateCoordinates verifica que las coordenadas sean válidas y estén dentro
// de los límites de la ciudad.
func ValidateCoordinates(lat, lng float64) error {
	if math.IsNaN(lat) || math.IsNaN(lng) || math.IsInf(lat, 0) || math.IsInf(lng, 0) {
		return fmt.Errorf("%w: coordenadas no finitas (%f, %f)", ErrOutOfBounds, lat, lng)
	}

	// Límites globales
	if lat < -90 || lat > 90 {
		return fmt.Errorf("%w: latitud debe estar entre -90 y 90 (recibido: %f)", ErrOutOfBounds, lat)
	}

	if lng < -180 || lng > 180 {
		return fmt.Errorf("%w: longitud debe estar entre -180 y 180 (recibido: %f)", ErrOutOfBounds, lng)
	}

	if lat < CityBounds.MinLat || lat > CityBounds.MaxLat {
		return fmt.Errorf("%w: latitud fuera de los límites de Cali (%f a %f): %f",
			ErrOutOfBounds, CityBounds.MinLat, CityBounds.MaxLat, lat)
	}

	if lng < CityBounds.MinLng || lng > CityBounds.MaxLng {
		return fmt.Errorf("%w: longitud fuera de los límites de Cali (%f a %f): %f",
			ErrOutOfBounds, CityBounds.MinLng, CityBounds.MaxLng, lng)
	}

	return nil
}
