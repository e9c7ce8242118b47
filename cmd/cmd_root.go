// Copyright 2025 The ChapaUY Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	_ "github.com/duckdb/duckdb-go/v2" // register duckdb driver
	"github.com/jcodagnone/barrios/boundaries"
	"github.com/jcodagnone/barrios/config"
	"github.com/jcodagnone/barrios/geocoding"
	"github.com/jcodagnone/barrios/resolution"
	"github.com/jcodagnone/barrios/store"
	"github.com/spf13/cobra"
)

type logWriter struct {
	writer io.Writer
}

func (w *logWriter) Write(bytes []byte) (int, error) {
	return fmt.Fprintf(w.writer, "%s %s", time.Now().Format("2006-01-02 15:04:05"), string(bytes))
}

func init() {
	log.SetFlags(0)
	log.SetOutput(&logWriter{writer: os.Stderr})
}

var rootCmd = &cobra.Command{
	Use:   "barrios",
	Short: "resolución de barrio/vereda y comuna/corregimiento de proyectos en Cali",
	Long: `
barrios completa las etiquetas de barrio/vereda y comuna/corregimiento de los
proyectos extraídos, primero con los polígonos de referencia y luego con la
geocodificación inversa de Google Maps.
`,
	SilenceUsage: true,
	PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
		var err error

		cfg, err = config.Load()
		if err != nil {
			return fmt.Errorf("loading configuration: %w", err)
		}

		if httpTrace {
			cfg.Geocoding.HTTPTrace = true
		}

		if dbPath != "" {
			cfg.DB.Path = dbPath
		}

		return nil
	},
}

var (
	cfg       *config.Config
	httpTrace bool
	dbPath    string
)

var Version = "dev"

func Execute(version string) {
	Version = version

	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVar(
		&httpTrace,
		"http-trace",
		false,
		"Display geocoding HTTP requests-responses, with the API key redacted",
	)
	rootCmd.PersistentFlags().StringVar(
		&dbPath,
		"db",
		"",
		"Base de datos DuckDB donde se almacenan las corridas (por defecto db.path)",
	)
}

func userAgent() string {
	return fmt.Sprintf("barrios/%s (+https://github.com/jcodagnone/barrios)", Version)
}

// newEngine loads the reference boundaries and, when an API key is available,
// the geocoding client. client is nil when there is no key.
func newEngine(ctx context.Context) (*resolution.Engine, *boundaries.Reference, *geocoding.Client, error) {
	ref, err := cfg.LoadReference()
	if err != nil {
		return nil, nil, nil, err
	}

	log.Printf("ℹ️  loaded %d barrios/veredas and %d comunas/corregimientos", ref.Barrios.Len(), ref.Comunas.Len())

	var (
		client   *geocoding.Client
		geocoder resolution.Geocoder
	)

	apiKey, err := cfg.APIKey(ctx)
	if err != nil {
		log.Printf("⚠️  %v: records the polygons do not resolve will stay unresolved", err)
	} else {
		client = geocoding.NewClient(cfg.GeocodingOptions(apiKey, userAgent(), os.Stderr))
		geocoder = client
	}

	return resolution.NewEngine(ref, geocoder, cfg.EngineOptions()), ref, client, nil
}

func openStore(path string) (*sql.DB, store.ResolutionRepository, error) {
	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, nil, fmt.Errorf("opening database: %w", err)
	}

	repo, err := store.NewResolutionRepository(db)
	if err != nil {
		db.Close()

		return nil, nil, fmt.Errorf("initializing repository: %w", err)
	}

	if err := repo.CreateSchema(); err != nil {
		db.Close()

		return nil, nil, fmt.Errorf("creating schema: %w", err)
	}

	return db, repo, nil
}
