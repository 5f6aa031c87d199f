// Package config loads the simulator configuration from the environment and turns it into
// the options of the eventsim components, the slog logger and the OpenTelemetry providers.
package config
