// Copyright (C) 2026 Meridian AI (engineering@meridianai.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Command causal runs the causal analysis engine from the command line.
//
// It extracts a causal DAG from a code unit's statement-level AST,
// fits per-node mechanisms from execution traces when available, and
// answers path and intervention queries against the fitted model.
//
// Usage:
//
//	causal enhance --unit unit.json --traces traces.json --mode auto
//	causal paths --unit unit.json --from x --to return
//	causal intervene --store ~/.meridian/models --id <run> --node x --value 3 --query y,z
//	causal models --store ~/.meridian/models
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
