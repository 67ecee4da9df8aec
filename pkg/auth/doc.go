// Package auth guards the stream and history endpoints.
//
// Authenticators vote Yes, No or Abstain on each request and an AuthChain
// takes the first non-abstaining vote, falling back to its default. The
// accepted Identity travels in the request context and scopes history
// storage to its tenant. An optional RateLimiter throttles callers per
// subject and service tier.
package auth
