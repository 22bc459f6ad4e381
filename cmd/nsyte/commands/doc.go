// Package commands defines the nsyte CLI and wires dependencies for subcommands.
//
// Commands
//
//   - connect      Pair with a remote signer (QR invitation, two-step, or bunker URI)
//   - complete     Finish a two-step pairing
//   - status       Show the current session
//   - sign         Have the remote signer sign an event
//   - publish      Broadcast signed events to the configured relays
//   - auth-header  Produce an HTTP Authorization header for a request
//   - disconnect   Forget the session and pending invitation
//
// # Implementation
//
// The root command loads configuration and builds the dependency graph
// (stores, relay pool, services) before any subcommand runs, and releases it
// afterwards.
package commands
