// Copyright (C) 2026 Meridian AI (engineering@meridianai.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/MeridianAI/MeridianCausal/services/causal/graph"
)

var (
	pathsUnit string
	pathsFrom string
	pathsTo   string
	pathsMax  int
	pathsJSON bool
)

var pathsCmd = &cobra.Command{
	Use:   "paths",
	Short: "Enumerate causal paths between two variables of a unit",
	Long: `Extract the causal DAG from a code unit and list the simple directed
paths from one variable to another. A pure structure query; no traces or
fitted mechanisms are involved.

Examples:
  causal paths --unit unit.json --from x --to return
  causal paths --unit unit.json --from n --to total --max 5`,
	RunE: runPaths,
}

func init() {
	pathsCmd.Flags().StringVar(&pathsUnit, "unit", "",
		"Path to the code unit JSON document (required)")
	pathsCmd.Flags().StringVar(&pathsFrom, "from", "",
		"Source variable (required)")
	pathsCmd.Flags().StringVar(&pathsTo, "to", "",
		"Target variable (required)")
	pathsCmd.Flags().IntVar(&pathsMax, "max", 10,
		"Maximum number of paths to enumerate")
	pathsCmd.Flags().BoolVar(&pathsJSON, "json", false,
		"Output paths as JSON")
	_ = pathsCmd.MarkFlagRequired("unit")
	_ = pathsCmd.MarkFlagRequired("from")
	_ = pathsCmd.MarkFlagRequired("to")
	rootCmd.AddCommand(pathsCmd)
}

func runPaths(cmd *cobra.Command, args []string) error {
	u, err := loadUnit(pathsUnit)
	if err != nil {
		return err
	}

	g, err := graph.NewExtractor().Extract(context.Background(), u)
	if err != nil {
		return err
	}

	paths, err := g.SimplePaths(pathsFrom, pathsTo, pathsMax)
	if err != nil {
		return err
	}

	if pathsJSON {
		return json.NewEncoder(os.Stdout).Encode(paths)
	}
	if len(paths) == 0 {
		fmt.Printf("no causal path from %s to %s\n", pathsFrom, pathsTo)
		return nil
	}
	for _, p := range paths {
		fmt.Println(strings.Join(p, " -> "))
	}
	return nil
}
