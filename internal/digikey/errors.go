package digikey

import "errors"

// Terminal and retryable conditions surfaced by the search layer. Workers
// classify results with errors.Is against these.
var (
	// ErrAuthFailed means the credential fetch was rejected. It fails the
	// current item only, never the whole pool.
	ErrAuthFailed = errors.New("authentication failed")

	// ErrThrottled means the upstream rejected the call for exceeding the
	// allowed request rate. Retryable after a cool-down.
	ErrThrottled = errors.New("rate limit exceeded")

	// ErrNotFound means the part does not exist upstream.
	ErrNotFound = errors.New("part not found")

	// ErrAmbiguous means multiple equally valid candidates exist and no
	// manufacturer hint resolved the tie.
	ErrAmbiguous = errors.New("ambiguous match")
)
