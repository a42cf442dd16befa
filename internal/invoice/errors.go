package invoice

import "errors"

var (
	// ErrParse marks detail text that does not match the expected tabular
	// shape. The orchestrator skips the affected group and keeps the run
	// going.
	ErrParse = errors.New("invoice detail parse failed")

	// ErrConfiguration marks input that makes the whole run impossible:
	// mutually exclusive filter lists, or an invoice reference without a
	// readable billing date. It aborts before any group is processed.
	ErrConfiguration = errors.New("invalid configuration")
)
