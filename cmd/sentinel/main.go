// Copyright (C) 2026 Civic Sentinel Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Command sentinel runs the Civic Sentinel self-improving policy-analysis
// engine: a control loop that asks a conductor agent for a plan each
// cycle, dispatches its actions against a tracker-backed backlog, and
// records telemetry for every cycle it runs.
package main

import (
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"
)

// version is overridden at build time via -ldflags "-X main.version=...".
var version = "dev"

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatalf("sentinel: %v", err)
	}
}

var rootCmd = &cobra.Command{
	Use:   "sentinel",
	Short: "Civic Sentinel self-improving policy-analysis engine",
}

func init() {
	rootCmd.AddCommand(runCmd, versionCmd)
	bindRunFlags(runCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the sentinel build version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(os.Stdout, version)
	},
}
