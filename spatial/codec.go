// Copyright 2025 The ChapaUY Authors
// SPDX-License-Identifier: Apache-2.0

package spatial

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Errors returned by Parse.
var (
	ErrEmpty           = errors.New("spatial: empty geometry")
	ErrInvalidSentinel = errors.New("spatial: invalid geometry sentinel")
	ErrMalformed       = errors.New("spatial: malformed geometry")
)

// Strings the extraction stage writes instead of a point. Compared lowercased.
var invalidSentinels = map[string]bool{
	"error":   true,
	"revisar": true,
	"null":    true,
}

// payload is the project's structured point. Coordinates are [lat, lng].
type payload struct {
	Type        string    `json:"type"`
	Coordinates []float64 `json:"coordinates"`
}

// Encode serializes p as a structured point payload, latitude first.
func Encode(p Point) string {
	data, err := json.Marshal(payload{Type: "Point", Coordinates: []float64{p.Lat, p.Lng}})
	if err != nil {
		// only non finite floats fail to marshal
		return "ERROR"
	}

	return string(data)
}

// Decode is Parse without the reason.
func Decode(raw any) (Point, bool) {
	p, err := Parse(raw)

	return p, err == nil
}

// Parse reads a point from a serialized payload or a native value. The first
// component is always the latitude. The result is checked against
// CityBounds.
func Parse(raw any) (Point, error) {
	var (
		p   Point
		err error
	)

	switch v := raw.(type) {
	case nil:
		return Point{}, ErrEmpty
	case Point:
		p = v
	case *Point:
		if v == nil {
			return Point{}, ErrEmpty
		}

		p = *v
	case string:
		p, err = parseString(v)
	case []byte:
		p, err = parseString(string(v))
	case json.RawMessage:
		p, err = parseString(string(v))
	case [2]float64:
		p = Point{Lat: v[0], Lng: v[1]}
	case []float64:
		p, err = fromPair(v)
	case []any:
		p, err = fromAnyPair(v)
	case map[string]any:
		p, err = fromMap(v)
	default:
		return Point{}, fmt.Errorf("%w: unsupported type %T", ErrMalformed, raw)
	}

	if err != nil {
		return Point{}, err
	}

	if err := ValidateCoordinates(p.Lat, p.Lng); err != nil {
		return Point{}, err
	}

	return p, nil
}

func parseString(s string) (Point, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Point{}, ErrEmpty
	}

	if invalidSentinels[strings.ToLower(s)] {
		return Point{}, fmt.Errorf("%w: %q", ErrInvalidSentinel, s)
	}

	switch s[0] {
	case '{':
		var m map[string]any
		if err := json.Unmarshal([]byte(s), &m); err != nil {
			return Point{}, fmt.Errorf("%w: %w", ErrMalformed, err)
		}

		return fromMap(m)
	case '[':
		var pair []float64
		if err := json.Unmarshal([]byte(s), &pair); err != nil {
			return Point{}, fmt.Errorf("%w: %w", ErrMalformed, err)
		}

		return fromPair(pair)
	}

	// "lat, lng" as typed in the spreadsheets
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return Point{}, fmt.Errorf("%w: %q", ErrMalformed, s)
	}

	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return Point{}, fmt.Errorf("%w: latitude: %w", ErrMalformed, err)
	}

	lng, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return Point{}, fmt.Errorf("%w: longitude: %w", ErrMalformed, err)
	}

	return Point{Lat: lat, Lng: lng}, nil
}

func fromPair(pair []float64) (Point, error) {
	if len(pair) != 2 {
		return Point{}, fmt.Errorf("%w: expected 2 coordinates, got %d", ErrMalformed, len(pair))
	}

	return Point{Lat: pair[0], Lng: pair[1]}, nil
}

func fromAnyPair(pair []any) (Point, error) {
	if len(pair) != 2 {
		return Point{}, fmt.Errorf("%w: expected 2 coordinates, got %d", ErrMalformed, len(pair))
	}

	lat, okLat := toFloat(pair[0])
	lng, okLng := toFloat(pair[1])

	if !okLat || !okLng {
		return Point{}, fmt.Errorf("%w: non numeric coordinates %v", ErrMalformed, pair)
	}

	return Point{Lat: lat, Lng: lng}, nil
}

func fromMap(m map[string]any) (Point, error) {
	if t, ok := m["type"].(string); ok && !strings.EqualFold(t, "Point") {
		return Point{}, fmt.Errorf("%w: unexpected geometry type %q", ErrMalformed, t)
	}

	if coords, ok := m["coordinates"]; ok {
		switch c := coords.(type) {
		case []any:
			return fromAnyPair(c)
		case []float64:
			return fromPair(c)
		default:
			return Point{}, fmt.Errorf("%w: coordinates of type %T", ErrMalformed, coords)
		}
	}

	lat, okLat := toFloat(m["lat"])

	lng, okLng := toFloat(m["lng"])
	if !okLng {
		lng, okLng = toFloat(m["lon"])
	}

	if !okLat || !okLng {
		return Point{}, fmt.Errorf("%w: missing coordinates in %v", ErrMalformed, m)
	}

	return Point{Lat: lat, Lng: lng}, nil
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()

		return f, err == nil
	default:
		return 0, false
	}
}
