// Package server provides authstub, a local stand-in for the BetForbes auth API.
//
// The server is configured through environment variables (see internal/config StubEnvironment).
// It serves:
//   - /api/auth/register, /api/auth/verify-email and /api/auth/login (internal/auth)
//   - /health/live, /health/ready, /version and /.well-known/jwks.json
//
// Middleware is in internal/server/middleware.
package server
