// Package middleware provides the HTTP middleware wrapped around the
// document API.
//
// # Available Middleware
//
//   - RequestID: Assigns or propagates X-Request-ID
//   - Logger: One structured log line per request
//   - Recovery: Turns panics into a problem+json 500
//   - CORS: Origin allow-list
//   - Compress: gzip for clients that accept it
//   - RateLimit: Token bucket per client host (golang.org/x/time/rate)
//
// Compose them with Chain; the first middleware listed is the outermost:
//
//	handler := middleware.Chain(mux,
//	    middleware.RequestID,
//	    middleware.Logger,
//	    middleware.Recovery,
//	)
//
// # Context Values
//
//   - GetRequestID(ctx): Returns the request identifier
package middleware
