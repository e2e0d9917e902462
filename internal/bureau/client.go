// Package bureau provides clients for external credit report sources.
package bureau

import (
	"context"
	"errors"
)

// Fetch failure taxonomy. These are per-source outcomes recorded as data by
// the aggregation engine, not failures of the aggregation call itself.
var (
	// ErrTimeout indicates the source did not respond within the deadline.
	ErrTimeout = errors.New("bureau fetch timed out")
	// ErrAuthFailure indicates the source rejected our credentials.
	ErrAuthFailure = errors.New("bureau rejected credentials")
	// ErrRateLimited indicates the source throttled the request.
	ErrRateLimited = errors.New("bureau rate limited the request")
	// ErrMalformedResponse indicates the source returned an unusable response.
	ErrMalformedResponse = errors.New("bureau returned malformed response")
)

// Client fetches one credit report from one external data source.
// Implementations wrap one source's protocol; the aggregation engine treats
// all of them uniformly and knows nothing source-specific. FetchReport must
// honor ctx cancellation and not block past its deadline.
type Client interface {
	// Source returns the stable source name recorded in report entries.
	Source() string

	// FetchReport pulls the report for the person identified by idNumber.
	// userRef is our internal user ID, passed for the source's audit trail.
	// The payload is opaque to the caller; each source defines its own
	// document structure.
	FetchReport(ctx context.Context, userRef, idNumber string) ([]byte, error)
}
