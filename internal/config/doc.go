// Package config loads the authgate process configuration and carries the
// immutable ClientConfig handed to the broker at init.
//
// The configuration file is YAML with an auth section (client identity) and
// an ipc section (channel socket and per-call timeout). The same
// ClientConfig type travels over the auth-init IPC route as JSON, so a
// caller process can initialize the broker without a config file.
package config
