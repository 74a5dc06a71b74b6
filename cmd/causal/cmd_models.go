// Copyright (C) 2026 Meridian AI (engineering@meridianai.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/MeridianAI/MeridianCausal/services/causal/store"
)

var (
	modelsStore string
	modelsID    string
	modelsJSON  bool
)

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List or inspect stored causal models",
	Long: `Without --id, list the run IDs of every stored model. With --id, print
the display-safe summary of one model: structure, mechanism types, and
validation scores. The summary never contains numeric parameters.

Examples:
  causal models --store ~/.meridian/models
  causal models --store ~/.meridian/models --id <run> --json`,
	RunE: runModels,
}

func init() {
	modelsCmd.Flags().StringVar(&modelsStore, "store", "",
		"Directory of the model store (required)")
	modelsCmd.Flags().StringVar(&modelsID, "id", "",
		"Run ID to inspect; empty lists all")
	modelsCmd.Flags().BoolVar(&modelsJSON, "json", false,
		"Output as JSON")
	_ = modelsCmd.MarkFlagRequired("store")
	rootCmd.AddCommand(modelsCmd)
}

func runModels(cmd *cobra.Command, args []string) error {
	st, err := store.Open(store.DefaultConfig(modelsStore))
	if err != nil {
		return err
	}
	defer st.Close()

	if modelsID == "" {
		ids, err := st.List()
		if err != nil {
			return err
		}
		if modelsJSON {
			return json.NewEncoder(os.Stdout).Encode(ids)
		}
		for _, id := range ids {
			fmt.Println(id)
		}
		return nil
	}

	sum, err := st.Summary(modelsID)
	if err != nil {
		return err
	}
	if modelsJSON {
		return json.NewEncoder(os.Stdout).Encode(sum)
	}
	fmt.Printf("model %s: unit %q (%s)\n", sum.ID, sum.Unit, sum.Source)
	fmt.Printf("  graph: %d nodes, %d edges\n", sum.Nodes, sum.Edges)
	if len(sum.R2Scores) > 0 {
		fmt.Printf("  validation: aggregate R² %.4f (passed: %v)\n", sum.AggregateR2, sum.Passed)
	}
	fmt.Printf("  saved: %s\n", sum.SavedAt.Format("2006-01-02 15:04:05 MST"))
	return nil
}
