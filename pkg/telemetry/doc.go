// Package telemetry holds the captured event model, the concurrent buffer
// producers append into, and the flat CSV-style report rendered on flush.
package telemetry
