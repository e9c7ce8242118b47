// Copyright 2025 The ChapaUY Authors
// SPDX-License-Identifier: Apache-2.0

package ingest

import (
	"fmt"
	"log"
	"strings"

	"github.com/jcodagnone/barrios/resolution"
	"github.com/xuri/excelize/v2"
)

// ReadXLSX reads the records of sheet, or of the first sheet when sheet is
// empty. The first row holds the column names; rows without an id are skipped.
func ReadXLSX(path, sheet string) ([]resolution.Record, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open Excel file: %w", err)
	}
	defer func() { _ = f.Close() }()

	if sheet == "" {
		sheet = f.GetSheetName(0)
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("reading sheet %q: %w", sheet, err)
	}

	return parseRows(rows)
}

func parseRows(rows [][]string) ([]resolution.Record, error) {
	if len(rows) == 0 {
		return nil, nil
	}

	columns := make([]field, len(rows[0]))
	hasID := false

	for i, name := range rows[0] {
		columns[i] = lookupField(name)
		hasID = hasID || columns[i] == fieldID
	}

	if !hasID {
		return nil, ErrNoIDColumn
	}

	var (
		records []resolution.Record
		skipped int
	)

	for n, row := range rows[1:] {
		var b builder

		for i, cell := range row {
			if i >= len(columns) || columns[i] == fieldUnknown {
				continue
			}

			var value any
			if cell != "" {
				value = cell
			}

			if err := b.set(columns[i], value); err != nil {
				return nil, fmt.Errorf("row %d, %s: %w", n+2, rows[0][i], err)
			}
		}

		if strings.TrimSpace(b.rec.RecordID) == "" {
			skipped++

			continue
		}

		records = append(records, b.record())
	}

	if skipped > 0 {
		log.Printf("⚠️  skipped %d rows without id", skipped)
	}

	return records, nil
}
