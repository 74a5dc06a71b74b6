// Copyright (C) 2026 Meridian AI (engineering@meridianai.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/MeridianAI/MeridianCausal/pkg/logging"
	"github.com/MeridianAI/MeridianCausal/services/causal/trace"
	"github.com/MeridianAI/MeridianCausal/services/causal/unit"
)

// Global flags.
var (
	flagLogLevel string
	flagLogJSON  bool
	flagQuiet    bool
)

var appLogger *logging.Logger

var rootCmd = &cobra.Command{
	Use:   "causal",
	Short: "Causal analysis engine for code units",
	Long: `causal extracts a causal DAG from a code unit, fits per-node
mechanisms from execution traces, validates the fit on held-out rows,
and answers path and intervention queries against the resulting model.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logger, err := logging.New(logging.Config{
			Level:   logging.ParseLevel(flagLogLevel),
			JSON:    flagLogJSON,
			Quiet:   flagQuiet,
			Service: "causal",
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "logging setup: %v\n", err)
			os.Exit(1)
		}
		appLogger = logger
		slog.SetDefault(logger.Slog())
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if appLogger != nil {
			_ = appLogger.Close()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "info",
		"Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().BoolVar(&flagLogJSON, "log-json", false,
		"Emit logs as JSON")
	rootCmd.PersistentFlags().BoolVar(&flagQuiet, "quiet", false,
		"Suppress stderr logging")
}

// loadUnit decodes a code unit document from a JSON file.
func loadUnit(path string) (*unit.CodeUnit, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open unit file: %w", err)
	}
	defer f.Close()
	u, err := unit.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode unit %s: %w", path, err)
	}
	return u, nil
}

// loadTraces decodes a trace table from a JSON file. An empty path
// yields nil, which restricts auto mode to static fitting.
func loadTraces(path string) (*trace.Table, error) {
	if path == "" {
		return nil, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open traces file: %w", err)
	}
	defer f.Close()
	tab, err := trace.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode traces %s: %w", path, err)
	}
	return tab, nil
}
