// Package config handles loading and validation of the monitor configuration
// from YAML files and environment variables. It defines the server, logging,
// scan cadence, probe tier timeouts, batch endpoint, inventory tree and
// snapshot ledger settings.
package config
