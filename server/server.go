// Copyright 2025 The ChapaUY Authors
// SPDX-License-Identifier: Apache-2.0

// Package server exposes the resolution engine over HTTP.
package server

import (
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jcodagnone/barrios/boundaries"
	"github.com/jcodagnone/barrios/ingest"
	"github.com/jcodagnone/barrios/resolution"
	"github.com/jcodagnone/barrios/spatial"
	"github.com/jcodagnone/barrios/store"
)

type Server struct {
	engine *resolution.Engine
	ref    *boundaries.Reference
	repo   store.ResolutionRepository
}

// NewServer creates a server. repo may be nil, in which case runs are not
// stored and the /api/runs endpoints answer 404.
func NewServer(engine *resolution.Engine, ref *boundaries.Reference, repo store.ResolutionRepository) *Server {
	return &Server{engine: engine, ref: ref, repo: repo}
}

// Router returns the gin engine with every route registered.
func (s *Server) Router() *gin.Engine {
	r := gin.Default()

	r.POST("/api/resolve", s.resolve)
	r.GET("/api/lookup", s.lookup)
	r.GET("/api/boundaries/:taxonomy", s.listBoundaries)
	r.GET("/api/runs", s.listRuns)
	r.GET("/api/runs/:id", s.getRun)

	return r
}

func (s *Server) Run(addr string) error {
	log.Printf("ℹ️  listening on %s", addr)

	return s.Router().Run(addr)
}

type resolveResponse struct {
	RunID       *uuid.UUID               `json:"run_id,omitempty"`
	Resolutions []*resolution.Resolution `json:"resolutions"`
	Summary     resolution.Summary       `json:"summary"`
}

func (s *Server) resolve(ctx *gin.Context) {
	records, err := ingest.ReadJSON(ctx.Request.Body)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})

		return
	}

	resolutions := make([]*resolution.Resolution, 0, len(records))

	summary, err := s.engine.ResolveBatch(ctx.Request.Context(), records, func(res *resolution.Resolution) error {
		resolutions = append(resolutions, res)

		return nil
	})
	if err != nil {
		// only a cancelled request gets here
		ctx.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})

		return
	}

	resp := resolveResponse{Resolutions: resolutions, Summary: summary}

	if s.repo != nil {
		run := store.NewRun("api")
		run.Summary = summary

		if err := s.repo.SaveRun(run, resolutions); err != nil {
			log.Printf("🛑 saving run %s: %v", run.ID, err)
			ctx.JSON(http.StatusInternalServerError, gin.H{"error": "failed to save run"})

			return
		}

		resp.RunID = &run.ID
	}

	ctx.JSON(http.StatusOK, resp)
}

func (s *Server) lookup(ctx *gin.Context) {
	lat, errLat := strconv.ParseFloat(ctx.Query("lat"), 64)
	lng, errLng := strconv.ParseFloat(ctx.Query("lng"), 64)

	if errLat != nil || errLng != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "lat and lng query parameters are required"})

		return
	}

	if err := spatial.ValidateCoordinates(lat, lng); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})

		return
	}

	ctx.JSON(http.StatusOK, s.engine.Lookup(spatial.Point{Lat: lat, Lng: lng}))
}

func (s *Server) listBoundaries(ctx *gin.Context) {
	taxonomy, err := boundaries.ParseTaxonomy(ctx.Param("taxonomy"))
	if err != nil {
		ctx.JSON(http.StatusNotFound, gin.H{"error": err.Error()})

		return
	}

	idx := s.ref.Index(taxonomy)
	if idx == nil {
		ctx.JSON(http.StatusNotFound, gin.H{"error": "no boundaries loaded"})

		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"taxonomy": taxonomy,
		"labels":   idx.Labels(),
	})
}

func (s *Server) listRuns(ctx *gin.Context) {
	if s.repo == nil {
		ctx.JSON(http.StatusNotFound, gin.H{"error": "no store configured"})

		return
	}

	runs, err := s.repo.ListRuns()
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})

		return
	}

	ctx.JSON(http.StatusOK, runs)
}

func (s *Server) getRun(ctx *gin.Context) {
	if s.repo == nil {
		ctx.JSON(http.StatusNotFound, gin.H{"error": "no store configured"})

		return
	}

	id, err := uuid.Parse(ctx.Param("id"))
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid run id"})

		return
	}

	run, err := s.repo.GetRun(id)
	if errors.Is(err, store.ErrRunNotFound) {
		ctx.JSON(http.StatusNotFound, gin.H{"error": err.Error()})

		return
	} else if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})

		return
	}

	resolutions, err := s.repo.ListRun(id)
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})

		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"run":         run,
		"resolutions": resolutions,
	})
}
