// Package helper provides test doubles for the eventsim packages:
// spies for the logger, metrics and tracing interfaces, and an in-memory EventStore fake.
package helper
