// Copyright 2025 The ChapaUY Authors
// SPDX-License-Identifier: Apache-2.0

// Package ingest reads project records from the spreadsheets and JSON dumps
// produced by the extraction stage.
package ingest

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/jcodagnone/barrios/resolution"
	"github.com/jcodagnone/barrios/utils/textutils"
)

type field int

const (
	fieldUnknown field = iota
	fieldID
	fieldGeometry
	fieldLat
	fieldLng
	fieldDireccion
	fieldBarrio
	fieldComuna
	fieldNeedsResolution
)

// header aliases, compared by textutils.FoldKey
var aliases = map[string]field{
	"id":                   fieldID,
	"record_id":            fieldID,
	"codigo":               fieldID,
	"geometry":             fieldGeometry,
	"geometria":            fieldGeometry,
	"punto":                fieldGeometry,
	"ubicacion":            fieldGeometry,
	"lat":                  fieldLat,
	"latitud":              fieldLat,
	"lng":                  fieldLng,
	"lon":                  fieldLng,
	"longitud":             fieldLng,
	"direccion":            fieldDireccion,
	"barrio_vereda":        fieldBarrio,
	"barrio":               fieldBarrio,
	"comuna_corregimiento": fieldComuna,
	"comuna":               fieldComuna,
	"needs_resolution":     fieldNeedsResolution,
	"revisar":              fieldNeedsResolution,
}

// ErrNoIDColumn is returned when the input has no identifier column.
var ErrNoIDColumn = errors.New("no id column")

func lookupField(name string) field {
	key := strings.ReplaceAll(textutils.FoldKey(name), " ", "_")

	return aliases[key]
}

// ParseFlag reads the spreadsheet spellings of a boolean. Blank is false.
func ParseFlag(s string) (bool, error) {
	switch textutils.FoldKey(s) {
	case "", "false", "0", "no", "n":
		return false, nil
	case "true", "1", "si", "s", "x", "yes", "y":
		return true, nil
	default:
		return false, fmt.Errorf("invalid flag %q", s)
	}
}

// builder accumulates the fields of one record.
type builder struct {
	rec      resolution.Record
	lat, lng string
	hasID    bool
}

func (b *builder) set(f field, value any) error {
	text := func() string {
		switch v := value.(type) {
		case nil:
			return ""
		case string:
			return v
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64)
		default:
			return fmt.Sprint(v)
		}
	}

	switch f {
	case fieldID:
		b.rec.RecordID = strings.TrimSpace(text())
		b.hasID = true
	case fieldGeometry:
		b.rec.Geometry = value
	case fieldLat:
		b.lat = text()
	case fieldLng:
		b.lng = text()
	case fieldDireccion:
		b.rec.Direccion = text()
	case fieldBarrio:
		b.rec.BarrioVereda = text()
	case fieldComuna:
		b.rec.ComunaCorregimiento = text()
	case fieldNeedsResolution:
		if flag, ok := value.(bool); ok {
			b.rec.NeedsResolution = flag

			return nil
		}

		flag, err := ParseFlag(text())
		if err != nil {
			return err
		}

		b.rec.NeedsResolution = flag
	}

	return nil
}

func (b *builder) record() resolution.Record {
	if b.rec.Geometry == nil || b.rec.Geometry == "" {
		if lat, lng := strings.TrimSpace(b.lat), strings.TrimSpace(b.lng); lat != "" && lng != "" {
			b.rec.Geometry = lat + "," + lng
		}
	}

	return b.rec
}

// ReadJSON reads an array of record objects. Keys follow the same aliases
// as the spreadsheet headers.
func ReadJSON(r io.Reader) ([]resolution.Record, error) {
	var objects []map[string]any
	if err := json.NewDecoder(r).Decode(&objects); err != nil {
		return nil, fmt.Errorf("decoding records: %w", err)
	}

	records := make([]resolution.Record, 0, len(objects))

	for i, obj := range objects {
		var b builder

		for k, v := range obj {
			if err := b.set(lookupField(k), v); err != nil {
				return nil, fmt.Errorf("record #%d, %s: %w", i, k, err)
			}
		}

		if !b.hasID {
			return nil, fmt.Errorf("record #%d: %w", i, ErrNoIDColumn)
		}

		records = append(records, b.record())
	}

	return records, nil
}
