// Package handlers provides the HTTP handlers of the authstub server:
// the /api/auth endpoints and the infrastructure handlers (health, readiness, version, jwks).
package handlers
