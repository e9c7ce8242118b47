// Copyright 2025 The ChapaUY Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/jcodagnone/barrios/ingest"
	"github.com/jcodagnone/barrios/resolution"
	"github.com/jcodagnone/barrios/store"
	"github.com/jcodagnone/barrios/utils/textutils"
	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

type resolveOptions struct {
	Input   string
	Sheet   string
	Output  string
	Forward bool
	NoStore bool
}

var resolveOpts = &resolveOptions{}

var resolveCmd = &cobra.Command{
	Use:   "resolve",
	Short: "Resuelve las etiquetas de los registros de un archivo",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if cmd.Flags().Changed("forward") {
			cfg.Resolve.Forward = resolveOpts.Forward
		}

		records, err := readRecords(resolveOpts.Input, resolveOpts.Sheet)
		if err != nil {
			return err
		}

		log.Printf("ℹ️  read %d records from %s", len(records), resolveOpts.Input)

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		engine, _, client, err := newEngine(ctx)
		if err != nil {
			return err
		}

		resolutions, summary, err := resolveAll(ctx, engine, records)
		if err != nil {
			return err
		}

		run := store.NewRun(resolveOpts.Input)
		run.Summary = summary

		logSummary(summary)

		if client != nil {
			log.Printf(
				"ℹ️  geocoding API: %s requests, %s failed",
				textutils.FormatCount(client.Requests()),
				textutils.FormatCount(client.Failures()),
			)
		}

		if !resolveOpts.NoStore {
			if err := saveRun(cfg.DB.Path, run, resolutions); err != nil {
				return err
			}
		}

		if resolveOpts.Output != "" {
			return writeRun(resolveOpts.Output, run, resolutions)
		}

		return nil
	},
}

func readRecords(input, sheet string) ([]resolution.Record, error) {
	switch {
	case input == "-":
		return ingest.ReadJSON(os.Stdin)
	case strings.EqualFold(filepath.Ext(input), ".xlsx"):
		return ingest.ReadXLSX(input, sheet)
	case strings.EqualFold(filepath.Ext(input), ".json"):
		f, err := os.Open(input) // #nosec G304 - path is provided by the operator
		if err != nil {
			return nil, fmt.Errorf("opening input: %w", err)
		}
		defer f.Close()

		return ingest.ReadJSON(f)
	default:
		return nil, fmt.Errorf("unsupported input %q: expected .xlsx, .json or -", input)
	}
}

func resolveAll(ctx context.Context, engine *resolution.Engine, records []resolution.Record) ([]*resolution.Resolution, resolution.Summary, error) {
	var bar *progressbar.ProgressBar
	if isatty.IsTerminal(os.Stderr.Fd()) {
		bar = progressbar.NewOptions(len(records),
			progressbar.OptionSetDescription("Resolving"),
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionShowCount(),
			progressbar.OptionClearOnFinish(),
		)
	}

	resolutions := make([]*resolution.Resolution, 0, len(records))

	summary, err := engine.ResolveBatch(ctx, records, func(res *resolution.Resolution) error {
		resolutions = append(resolutions, res)

		if res.Forward != nil && res.Forward.Point == nil {
			log.Printf("⚠️  %s: forward geocoding failed, %s", res.RecordID, res.Forward)
		}

		if bar != nil {
			_ = bar.Add(1)
		}

		return nil
	})

	if bar != nil {
		_ = bar.Finish()
	}

	if errors.Is(err, context.Canceled) {
		log.Printf("⚠️  interrupted after %d of %d records", len(resolutions), len(records))
	} else if err != nil {
		return nil, summary, err
	}

	return resolutions, summary, nil
}

func logSummary(s resolution.Summary) {
	log.Printf(
		"✅ %s records: %d resolved with polygons, %d with the geocoding API, %d passed through",
		textutils.FormatCount(int64(s.Records)),
		s.ResolvedSpatial,
		s.ResolvedAPI,
		s.PassThrough,
	)

	if s.Unresolved > 0 {
		log.Printf("⚠️  %d records unresolved", s.Unresolved)
	}

	if s.InvalidGeometry > 0 {
		log.Printf("⚠️  %d records with invalid geometry", s.InvalidGeometry)
	}

	if s.APIFailures > 0 {
		log.Printf("⚠️  %d geocoding API failures", s.APIFailures)
	}

	if s.Ambiguous > 0 {
		log.Printf("⚠️  %d ambiguous labels", s.Ambiguous)
	}

	if s.Reclassified > 0 {
		log.Printf("ℹ️  %d records reclassified", s.Reclassified)
	}

	if s.NeedsReview > 0 {
		log.Printf("⚠️  %d records need manual review", s.NeedsReview)
	}

	if s.ForwardGeocoded+s.ForwardFailures > 0 {
		log.Printf("ℹ️  forward geocoding: %d located, %d failed", s.ForwardGeocoded, s.ForwardFailures)
	}
}

func saveRun(path string, run *store.Run, resolutions []*resolution.Resolution) error {
	db, repo, err := openStore(path)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := repo.SaveRun(run, resolutions); err != nil {
		return fmt.Errorf("saving run: %w", err)
	}

	log.Printf("✅ run %s stored in %s", run.ID, path)

	return nil
}

type runFile struct {
	Run         *store.Run               `json:"run"`
	Resolutions []*resolution.Resolution `json:"resolutions"`
}

func writeRun(output string, run *store.Run, resolutions []*resolution.Resolution) error {
	var w io.Writer = os.Stdout

	if output != "-" {
		f, err := os.Create(output) // #nosec G304 - path is provided by the operator
		if err != nil {
			return fmt.Errorf("creating output: %w", err)
		}
		defer f.Close()

		w = f
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	if err := enc.Encode(runFile{Run: run, Resolutions: resolutions}); err != nil {
		return fmt.Errorf("writing output: %w", err)
	}

	return nil
}

func init() {
	rootCmd.AddCommand(resolveCmd)
	resolveCmd.Flags().StringVar(
		&resolveOpts.Input,
		"input",
		"",
		"Archivo de registros (.xlsx o .json, - para JSON por stdin)",
	)
	resolveCmd.Flags().StringVar(
		&resolveOpts.Sheet,
		"sheet",
		"",
		"Hoja del archivo Excel. Por defecto la primera",
	)
	resolveCmd.Flags().StringVar(
		&resolveOpts.Output,
		"output",
		"",
		"Escribe el resultado en formato JSON (- para stdout)",
	)
	resolveCmd.Flags().BoolVar(
		&resolveOpts.Forward,
		"forward",
		false,
		"Geocodifica la dirección de cada registro con las etiquetas resueltas",
	)
	resolveCmd.Flags().BoolVar(
		&resolveOpts.NoStore,
		"no-store",
		false,
		"No persiste la corrida en la base de datos",
	)
	_ = resolveCmd.MarkFlagRequired("input")
}
