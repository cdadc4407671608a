// Package cli provides the command-line plumbing shared by omnicall tools.
//
// This package includes:
//   - Context configuration (API key, endpoint, model) stored as YAML
//   - Call profiles loaded from YAML or JSON files
//   - Output formatting (YAML, JSON, raw) and terminal print helpers
//   - Status badges for connection and turn states
//
// Configuration lives in ~/.omnicall/<app>/config.yaml and supports several
// named contexts, similar to kubectl.
//
// Example usage:
//
//	cfg, err := cli.LoadConfig("omnicall")
//	ctx, err := cfg.ResolveContext("")
//	profile, err := cli.LoadProfile("call.yaml")
package cli
