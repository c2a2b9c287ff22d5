// Package types holds the JSON envelopes every API response uses.
package types

// SuccessEnvelope wraps successful payloads: booking, trip, and list bodies
// all sit under "data".
type SuccessEnvelope struct {
	Data any `json:"data"`
}

// APIError is the public error body; Code matches the pkg/errors taxonomy.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}
