// Package config loads and validates IntuiTherm Pattern Core configuration.
//
// Configuration is layered: hardcoded defaults, then the YAML file, then
// INTUITHERM_* environment variable overrides. Validation runs once at load
// time so the rest of the application can trust the values it receives.
//
// Engine tuning values (acceptance threshold, confidence step and cap, prune
// margin) live under the engine section; they are policy, not constants, and
// may differ between installs.
package config
