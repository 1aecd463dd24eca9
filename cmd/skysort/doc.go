// Package main hosts the Skysort CLI entrypoint and command graph.
//
// The Cobra-based command tree covers one-off folder analysis, catalog
// inspection, dependency checks, notification testing, and configuration
// scaffolding. It centralizes configuration resolution and store access so
// subcommands can focus on presentation.
package main
