// Copyright 2025 The ChapaUY Authors
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	_ "github.com/duckdb/duckdb-go/v2"
	"github.com/gin-gonic/gin"
	"github.com/jcodagnone/barrios/boundaries"
	"github.com/jcodagnone/barrios/resolution"
	"github.com/jcodagnone/barrios/spatial"
	"github.com/jcodagnone/barrios/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func box(minLat, minLng, maxLat, maxLng float64) spatial.MultiPolygon {
	return spatial.MultiPolygon{{Exterior: spatial.Ring{
		{Lat: minLat, Lng: minLng},
		{Lat: minLat, Lng: maxLng},
		{Lat: maxLat, Lng: maxLng},
		{Lat: maxLat, Lng: minLng},
	}}}
}

func setupServerTest(t *testing.T, repo store.ResolutionRepository) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	barrios, err := boundaries.LoadBarrios(boundaries.Boundaries{
		{Label: "El Peñón", Shape: box(3.42, -76.54, 3.44, -76.50)},
		{Label: "San Antonio", Shape: box(3.44, -76.54, 3.46, -76.50)},
	})
	require.NoError(t, err)

	comunas, err := boundaries.LoadComunas(boundaries.Boundaries{
		{Label: "Comuna 3", Shape: box(3.40, -76.56, 3.48, -76.48)},
	})
	require.NoError(t, err)

	ref := &boundaries.Reference{Barrios: barrios, Comunas: comunas}
	engine := resolution.NewEngine(ref, nil, resolution.Options{City: "Cali"})

	return NewServer(engine, ref, repo).Router()
}

func setupRepository(t *testing.T) store.ResolutionRepository {
	t.Helper()

	db, err := sql.Open("duckdb", "")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	repo, err := store.NewResolutionRepository(db)
	require.NoError(t, err)
	require.NoError(t, repo.CreateSchema())

	return repo
}

const resolveBody = `[
	{"id": "a", "geometry": {"type": "Point", "coordinates": [3.43, -76.52]}, "needs_resolution": true},
	{"id": "b", "geometry": "ERROR", "needs_resolution": true},
	{"id": "c", "barrio": "San Antonio", "comuna": "Comuna 3", "needs_resolution": false}
]`

func TestResolveAPI(t *testing.T) {
	router := setupServerTest(t, nil)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodPost, "/api/resolve", strings.NewReader(resolveBody))
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp resolveResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Resolutions, 3)
	assert.Nil(t, resp.RunID)

	a := resp.Resolutions[0]
	assert.Equal(t, "a", a.RecordID)
	assert.Equal(t, resolution.NewLabel("El Peñón", resolution.ProvenanceSpatial), a.Result.BarrioVereda)
	assert.Equal(t, resolution.NewLabel("Comuna 3", resolution.ProvenanceSpatial), a.Result.ComunaCorregimiento)
	assert.Equal(t, resolution.StateDone, a.State)

	b := resp.Resolutions[1]
	assert.Equal(t, resolution.ErrorLabel(), b.Result.BarrioVereda)
	assert.True(t, b.NeedsReview)
	assert.True(t, b.HasIssue(resolution.IssueInvalidGeometry))

	c := resp.Resolutions[2]
	assert.Equal(t, "San Antonio", c.Result.BarrioVereda.Value)
	assert.Equal(t, resolution.ProvenanceSource, c.Result.BarrioVereda.Provenance)

	assert.Equal(t, 3, resp.Summary.Records)
	assert.Equal(t, 1, resp.Summary.PassThrough)
	assert.Equal(t, 1, resp.Summary.ResolvedSpatial)
	assert.Equal(t, 1, resp.Summary.InvalidGeometry)
}

func TestResolveAPIBadRequest(t *testing.T) {
	router := setupServerTest(t, nil)

	for _, body := range []string{`{"id": 1}`, `[{"geometry": "ERROR"}]`, `not json`} {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest(http.MethodPost, "/api/resolve", strings.NewReader(body))
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code, body)
	}
}

func TestResolveAPIStoresRun(t *testing.T) {
	router := setupServerTest(t, setupRepository(t))

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodPost, "/api/resolve", strings.NewReader(resolveBody))
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp resolveResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotNil(t, resp.RunID)

	w = httptest.NewRecorder()
	req, _ = http.NewRequest(http.MethodGet, "/api/runs/"+resp.RunID.String(), nil)
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var run struct {
		Run         store.Run                `json:"run"`
		Resolutions []*resolution.Resolution `json:"resolutions"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &run))
	assert.Equal(t, *resp.RunID, run.Run.ID)
	assert.Equal(t, 3, run.Run.Summary.Records)
	require.Len(t, run.Resolutions, 3)
	assert.Equal(t, resp.Resolutions[0].Result, run.Resolutions[0].Result)

	w = httptest.NewRecorder()
	req, _ = http.NewRequest(http.MethodGet, "/api/runs", nil)
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var runs []store.Run
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &runs))
	assert.Len(t, runs, 1)
}

func TestGetRunErrors(t *testing.T) {
	tests := []struct {
		name string
		repo bool
		path string
		want int
	}{
		{"no store", false, "/api/runs/6ba7b810-9dad-11d1-80b4-00c04fd430c8", http.StatusNotFound},
		{"invalid id", true, "/api/runs/nope", http.StatusBadRequest},
		{"unknown run", true, "/api/runs/6ba7b810-9dad-11d1-80b4-00c04fd430c8", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var repo store.ResolutionRepository
			if tt.repo {
				repo = setupRepository(t)
			}

			router := setupServerTest(t, repo)

			w := httptest.NewRecorder()
			req, _ := http.NewRequest(http.MethodGet, tt.path, nil)
			router.ServeHTTP(w, req)

			assert.Equal(t, tt.want, w.Code)
		})
	}
}

func TestLookupAPI(t *testing.T) {
	router := setupServerTest(t, nil)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/api/lookup?lat=3.45&lng=-76.52", nil)
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var got resolution.Result
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, "San Antonio", got.BarrioVereda.Value)
	assert.Equal(t, "Comuna 3", got.ComunaCorregimiento.Value)

	w = httptest.NewRecorder()
	req, _ = http.NewRequest(http.MethodGet, "/api/lookup?lat=3.47&lng=-76.52", nil)
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, resolution.KindAbsent, got.BarrioVereda.Kind)
	assert.Equal(t, "Comuna 3", got.ComunaCorregimiento.Value)

	for _, query := range []string{"lat=3.4", "lat=abc&lng=-76.5", "lat=40.7&lng=-74.0"} {
		w = httptest.NewRecorder()
		req, _ = http.NewRequest(http.MethodGet, "/api/lookup?"+query, nil)
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code, query)
	}
}

func TestListBoundariesAPI(t *testing.T) {
	router := setupServerTest(t, nil)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/api/boundaries/barrios", nil)
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var got struct {
		Taxonomy boundaries.Taxonomy `json:"taxonomy"`
		Labels   []string            `json:"labels"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, boundaries.BarrioVereda, got.Taxonomy)
	assert.Equal(t, []string{"El Peñón", "San Antonio"}, got.Labels)

	w = httptest.NewRecorder()
	req, _ = http.NewRequest(http.MethodGet, "/api/boundaries/departamentos", nil)
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
