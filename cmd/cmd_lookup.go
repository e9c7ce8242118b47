// Copyright 2025 The ChapaUY Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"fmt"
	"strconv"

	"github.com/jcodagnone/barrios/resolution"
	"github.com/jcodagnone/barrios/spatial"
	"github.com/spf13/cobra"
)

var lookupCmd = &cobra.Command{
	Use:   "lookup <lat> <lng>",
	Short: "Consulta los polígonos que contienen un punto, sin usar la API",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		lat, err := strconv.ParseFloat(args[0], 64)
		if err != nil {
			return fmt.Errorf("invalid latitude %q: %w", args[0], err)
		}

		lng, err := strconv.ParseFloat(args[1], 64)
		if err != nil {
			return fmt.Errorf("invalid longitude %q: %w", args[1], err)
		}

		if err := spatial.ValidateCoordinates(lat, lng); err != nil {
			return err
		}

		ref, err := cfg.LoadReference()
		if err != nil {
			return err
		}

		engine := resolution.NewEngine(ref, nil, cfg.EngineOptions())
		result := engine.Lookup(spatial.Point{Lat: lat, Lng: lng})

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "barrio/vereda:        %s\n", labelOrDash(result.BarrioVereda))
		fmt.Fprintf(out, "comuna/corregimiento: %s\n", labelOrDash(result.ComunaCorregimiento))

		return nil
	},
}

func labelOrDash(l resolution.Label) string {
	if l.Kind == resolution.KindAbsent {
		return "-"
	}

	return l.String()
}

func init() {
	rootCmd.AddCommand(lookupCmd)
}
