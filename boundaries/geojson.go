// Copyright 2025 The ChapaUY Authors
// SPDX-License-Identifier: Apache-2.0

package boundaries

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/jcodagnone/barrios/spatial"
)

// GeoJSONFile is a Source reading a FeatureCollection from disk. The label
// of each feature is taken from LabelProperty.
//
// Unlike the project payloads, reference files use the standard GeoJSON
// [lng, lat] order.
type GeoJSONFile struct {
	Path          string
	LabelProperty string
}

// Each loads the file and calls callback for every feature, in file order.
func (f GeoJSONFile) Each(callback func(Boundary) error) error {
	file, err := os.Open(f.Path) // #nosec G304 - path is provided by the operator
	if err != nil {
		return fmt.Errorf("opening boundaries file: %w", err)
	}
	defer file.Close()

	boundaries, err := ReadGeoJSON(file, f.LabelProperty)
	if err != nil {
		return fmt.Errorf("%s: %w", f.Path, err)
	}

	return boundaries.Each(callback)
}

type featureCollection struct {
	Features []struct {
		Geometry struct {
			Type        string          `json:"type"`
			Coordinates json.RawMessage `json:"coordinates"`
		} `json:"geometry"`
		Properties map[string]any `json:"properties"`
	} `json:"features"`
}

// ReadGeoJSON parses a FeatureCollection of Polygon and MultiPolygon features.
func ReadGeoJSON(r io.Reader, labelProperty string) (Boundaries, error) {
	var fc featureCollection
	if err := json.NewDecoder(r).Decode(&fc); err != nil {
		return nil, fmt.Errorf("parsing boundaries GeoJSON: %w", err)
	}

	boundaries := make(Boundaries, 0, len(fc.Features))

	for i, feature := range fc.Features {
		label := propertyLabel(feature.Properties, labelProperty)

		var (
			shape spatial.MultiPolygon
			err   error
		)

		switch feature.Geometry.Type {
		case "Polygon":
			var rings [][][]float64
			if err = json.Unmarshal(feature.Geometry.Coordinates, &rings); err == nil {
				var pg spatial.Polygon

				pg, err = toPolygon(rings)
				shape = spatial.MultiPolygon{pg}
			}
		case "MultiPolygon":
			var polygons [][][][]float64
			if err = json.Unmarshal(feature.Geometry.Coordinates, &polygons); err == nil {
				shape, err = toMultiPolygon(polygons)
			}
		default:
			err = fmt.Errorf("unsupported geometry type %q", feature.Geometry.Type)
		}

		if err != nil {
			return nil, fmt.Errorf("feature #%d (%s): %w", i, label, err)
		}

		boundaries = append(boundaries, Boundary{Label: label, Shape: shape})
	}

	return boundaries, nil
}

func propertyLabel(properties map[string]any, name string) string {
	for k, v := range properties {
		if !strings.EqualFold(k, name) {
			continue
		}

		switch val := v.(type) {
		case string:
			return strings.TrimSpace(val)
		case float64:
			return strconv.FormatFloat(val, 'f', -1, 64)
		case nil:
			return ""
		default:
			return fmt.Sprint(val)
		}
	}

	return ""
}

func toMultiPolygon(polygons [][][][]float64) (spatial.MultiPolygon, error) {
	shape := make(spatial.MultiPolygon, 0, len(polygons))

	for _, rings := range polygons {
		pg, err := toPolygon(rings)
		if err != nil {
			return nil, err
		}

		shape = append(shape, pg)
	}

	return shape, nil
}

func toPolygon(rings [][][]float64) (spatial.Polygon, error) {
	if len(rings) == 0 {
		return spatial.Polygon{}, errors.New("polygon without rings")
	}

	var pg spatial.Polygon

	for i, coords := range rings {
		ring := make(spatial.Ring, 0, len(coords))

		for _, c := range coords {
			if len(c) < 2 {
				return spatial.Polygon{}, fmt.Errorf("position with %d coordinates", len(c))
			}

			ring = append(ring, spatial.Point{Lat: c[1], Lng: c[0]})
		}

		if i == 0 {
			pg.Exterior = ring
		} else {
			pg.Holes = append(pg.Holes, ring)
		}
	}

	return pg, nil
}
