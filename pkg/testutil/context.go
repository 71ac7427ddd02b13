package testutil

import (
	"context"
	"net/http"

	id "tracker/pkg/domain"
	"tracker/pkg/requestcontext"
)

// WithRequester adds an authenticated requester key to the request context.
// This simulates what the auth middleware would do for authenticated requests.
// If the key is not a valid UUID, it will not be added to the context.
func WithRequester(req *http.Request, userKey string) *http.Request {
	if parsed, err := id.ParseUserKey(userKey); err == nil {
		return req.WithContext(requestcontext.WithRequesterKey(req.Context(), parsed))
	}
	return req
}

// WithContextValue adds an arbitrary key-value pair to the request context.
func WithContextValue(req *http.Request, key, value any) *http.Request {
	ctx := context.WithValue(req.Context(), key, value)
	return req.WithContext(ctx)
}
