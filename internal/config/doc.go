// Package config loads and validates the worker configuration from TOML.
//
// Configuration covers the scratch directories used by per-job workspaces,
// the catalog database location, the storage device roots, the external
// encoder binaries, decryption keys, and the realtime publishing endpoint.
// A sample configuration is embedded so `prismd config init` can write a
// starting point.
package config
