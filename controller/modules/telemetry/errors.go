package telemetry

import "errors"

var (
	// ErrMalformedTelemetry is returned for a sensor field that is not a
	// finite number. The whole cycle is dropped.
	ErrMalformedTelemetry = errors.New("malformed telemetry field")
	ErrUnknownChannel     = errors.New("unknown telemetry channel")
)
