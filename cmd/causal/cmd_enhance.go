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

	"github.com/spf13/cobra"

	"github.com/MeridianAI/MeridianCausal/services/causal/enhance"
	"github.com/MeridianAI/MeridianCausal/services/causal/fit"
	"github.com/MeridianAI/MeridianCausal/services/causal/store"
	"github.com/MeridianAI/MeridianCausal/services/causal/validate"
)

var (
	enhanceUnit      string
	enhanceTraces    string
	enhanceMode      string
	enhanceThreshold float64
	enhanceStore     string
	enhanceBoundary  string
	enhanceJSON      bool
)

var enhanceCmd = &cobra.Command{
	Use:   "enhance",
	Short: "Extract, fit, and validate a causal model for one code unit",
	Long: `Run the full enhancement pipeline: extract the causal DAG from the
unit's statements, fit per-node mechanisms (statically from structure, or
dynamically from execution traces), and cross-validate the fit.

The pipeline never fails on a unit that does not analyze well; it
degrades and reports warnings instead.

Examples:
  causal enhance --unit unit.json
  causal enhance --unit unit.json --traces traces.json --mode dynamic
  causal enhance --unit unit.json --traces traces.json --store ~/.meridian/models
  causal enhance --unit unit.json --traces traces.json --boundary causal-fitd`,
	RunE: runEnhance,
}

func init() {
	enhanceCmd.Flags().StringVar(&enhanceUnit, "unit", "",
		"Path to the code unit JSON document (required)")
	enhanceCmd.Flags().StringVar(&enhanceTraces, "traces", "",
		"Path to the execution trace table JSON")
	enhanceCmd.Flags().StringVar(&enhanceMode, "mode", "auto",
		"Fitting mode: static, dynamic, auto")
	enhanceCmd.Flags().Float64Var(&enhanceThreshold, "threshold", validate.DefaultThreshold,
		"Aggregate R² pass bar for validation")
	enhanceCmd.Flags().StringVar(&enhanceStore, "store", "",
		"Directory of the model store; fitted models are saved under their run ID")
	enhanceCmd.Flags().StringVar(&enhanceBoundary, "boundary", "",
		"External fitting command; empty uses the in-process fitter")
	enhanceCmd.Flags().BoolVar(&enhanceJSON, "json", false,
		"Output the result summary as JSON")
	_ = enhanceCmd.MarkFlagRequired("unit")
	rootCmd.AddCommand(enhanceCmd)
}

// enhanceSummary is the CLI's display form of one run.
type enhanceSummary struct {
	RunID       string             `json:"run_id"`
	Unit        string             `json:"unit"`
	Mode        string             `json:"mode,omitempty"`
	Nodes       int                `json:"nodes"`
	Edges       int                `json:"edges"`
	AggregateR2 float64            `json:"aggregate_r2,omitempty"`
	R2Scores    map[string]float64 `json:"r2_scores,omitempty"`
	Passed      bool               `json:"passed"`
	Warnings    []string           `json:"warnings,omitempty"`
	Saved       bool               `json:"saved"`
}

func runEnhance(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	u, err := loadUnit(enhanceUnit)
	if err != nil {
		return err
	}
	tab, err := loadTraces(enhanceTraces)
	if err != nil {
		return err
	}

	fitterOpts := []fit.FitterOption{
		fit.WithR2Threshold(enhanceThreshold),
	}
	if enhanceBoundary != "" {
		fitterOpts = append(fitterOpts,
			fit.WithBoundary(fit.NewProcessBoundary(enhanceBoundary)))
	}

	enhancer := enhance.New(
		enhance.WithFitter(fit.NewFitter(fitterOpts...)),
		enhance.WithValidator(validate.New(validate.WithThreshold(enhanceThreshold))),
	)

	res, err := enhancer.Enhance(ctx, u, tab, fit.Mode(enhanceMode))
	if err != nil {
		return err
	}

	sum := enhanceSummary{
		RunID:    res.RunID,
		Unit:     u.Name,
		Mode:     string(res.ModeUsed),
		Warnings: res.Warnings,
	}
	if res.Graph != nil {
		sum.Nodes = res.Graph.NodeCount()
		sum.Edges = res.Graph.EdgeCount()
	}
	if res.Validation != nil {
		sum.AggregateR2 = res.Validation.Aggregate
		sum.R2Scores = res.Validation.NodeR2
		sum.Passed = res.Validation.Passed
	}

	if enhanceStore != "" && res.Model != nil {
		st, err := store.Open(store.DefaultConfig(enhanceStore))
		if err != nil {
			return err
		}
		defer st.Close()
		if err := st.Save(res.RunID, res.Model, res.Validation); err != nil {
			return err
		}
		sum.Saved = true
	}

	if enhanceJSON {
		return json.NewEncoder(os.Stdout).Encode(sum)
	}

	fmt.Printf("run %s: unit %q\n", sum.RunID, sum.Unit)
	if res.Graph == nil {
		fmt.Println("  no causal graph extracted")
	} else {
		fmt.Printf("  graph: %d nodes, %d edges\n", sum.Nodes, sum.Edges)
	}
	if res.Model != nil {
		fmt.Printf("  model: %s mode\n", sum.Mode)
	}
	if res.Validation != nil {
		fmt.Printf("  validation: aggregate R² %.4f (passed: %v)\n",
			sum.AggregateR2, sum.Passed)
	}
	for _, w := range sum.Warnings {
		fmt.Printf("  warning: %s\n", w)
	}
	if sum.Saved {
		fmt.Printf("  saved to %s\n", enhanceStore)
	}
	return nil
}
