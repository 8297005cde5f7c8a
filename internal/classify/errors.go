package classify

import "errors"

// ErrMalformedPayload is returned when a body is neither JSON (after repair)
// nor a recognizable text template.
var ErrMalformedPayload = errors.New("malformed payload")

var errNoMetadata = errors.New("payload has no metadata section")
