// Copyright 2025 The ChapaUY Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/jcodagnone/barrios/resolution"
	"github.com/jcodagnone/barrios/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadRecords(t *testing.T) {
	path := filepath.Join(t.TempDir(), "records.JSON")
	require.NoError(t, os.WriteFile(path, []byte(`[{"id": "a", "geometry": "ERROR"}]`), 0o600))

	records, err := readRecords(path, "")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "a", records[0].RecordID)

	_, err = readRecords("records.csv", "")
	assert.ErrorContains(t, err, "unsupported input")

	_, err = readRecords(filepath.Join(t.TempDir(), "missing.json"), "")
	assert.Error(t, err)
}

func TestWriteRun(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.json")
	run := store.NewRun("records.json")
	run.Summary = resolution.Summary{Records: 1, Unresolved: 1}

	resolutions := []*resolution.Resolution{{
		RecordID: "a",
		Result: resolution.Result{
			BarrioVereda:        resolution.ErrorLabel(),
			ComunaCorregimiento: resolution.ErrorLabel(),
		},
		State: resolution.StateDone,
	}}

	require.NoError(t, writeRun(path, run, resolutions))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var got runFile
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, run.ID, got.Run.ID)
	assert.Equal(t, 1, got.Run.Summary.Unresolved)
	require.Len(t, got.Resolutions, 1)
	assert.Equal(t, resolutions[0].Result, got.Resolutions[0].Result)
}

func TestSaveRunAndExport(t *testing.T) {
	path := filepath.Join(t.TempDir(), "barrios.duckdb")
	run := store.NewRun("records.json")

	require.NoError(t, saveRun(path, run, []*resolution.Resolution{{
		RecordID: "a",
		Result: resolution.Result{
			BarrioVereda:        resolution.NewLabel("El Peñón", resolution.ProvenanceSpatial),
			ComunaCorregimiento: resolution.NewLabel("Comuna 3", resolution.ProvenanceSpatial),
		},
		State: resolution.StateDone,
	}}))

	db, repo, err := openStore(path)
	require.NoError(t, err)
	defer db.Close()

	got, err := repo.ListRun(run.ID)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "El Peñón", got[0].Result.BarrioVereda.Value)
}
