// Copyright 2025 The ChapaUY Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var (
	exportRun    string
	exportOutput string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Exporta una corrida almacenada en formato JSON",
	Args:  cobra.NoArgs,
	RunE: func(_ *cobra.Command, _ []string) error {
		id, err := uuid.Parse(exportRun)
		if err != nil {
			return fmt.Errorf("invalid run id %q: %w", exportRun, err)
		}

		db, repo, err := openStore(cfg.DB.Path)
		if err != nil {
			return err
		}
		defer db.Close()

		run, err := repo.GetRun(id)
		if err != nil {
			return err
		}

		resolutions, err := repo.ListRun(id)
		if err != nil {
			return err
		}

		return writeRun(exportOutput, run, resolutions)
	},
}

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Lista las corridas almacenadas",
	Args:  cobra.NoArgs,
	RunE: func(_ *cobra.Command, _ []string) error {
		db, repo, err := openStore(cfg.DB.Path)
		if err != nil {
			return err
		}
		defer db.Close()

		runs, err := repo.ListRuns()
		if err != nil {
			return err
		}

		a, b, c, d := strings.Repeat("─", 36), strings.Repeat("─", 19), strings.Repeat("─", 8), strings.Repeat("─", 30)
		fmt.Println("Corridas almacenadas:")
		fmt.Printf("╭─%36s─┬─%-19s─┬─%8s─┬─%-30s╮\n", a, b, c, d)
		fmt.Printf("│ %-36s │ %-19s │ %8s │ %-30s│\n", "Id", "Fecha", "Records", "Entrada")
		fmt.Printf("├─%36s─┼─%-19s─┼─%8s─┼─%-30s┤\n", a, b, c, d)

		for _, run := range runs {
			fmt.Printf("│ %-36s │ %-19s │ %8d │ %-30s│\n",
				run.ID, run.CreatedAt.Format("2006-01-02 15:04:05"), run.Summary.Records, run.Input)
		}

		fmt.Printf("╰─%36s─┴─%-19s─┴─%8s─┴─%-30s╯\n", a, b, c, d)

		return nil
	},
}

func init() {
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(runsCmd)
	exportCmd.Flags().StringVar(&exportRun, "run", "", "Id de la corrida")
	exportCmd.Flags().StringVar(&exportOutput, "output", "-", "Archivo de salida (- para stdout)")
	_ = exportCmd.MarkFlagRequired("run")
}
