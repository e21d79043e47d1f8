package extraction

import "errors"

var (
	// ErrMalformedExtraction is returned when a model reply is not well-formed
	// JSON or does not match the extraction shape.
	ErrMalformedExtraction = errors.New("malformed extraction")
)
