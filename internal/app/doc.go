// Package app wires application dependencies for the CLI.
//
// It loads Config (defaults, then <home>/config.yaml, then NSYTE_*
// environment variables), builds the logger, and constructs the stores,
// relay pool and services, exposing them via App for commands to use.
package app
