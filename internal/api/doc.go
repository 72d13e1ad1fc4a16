// Package api handles incoming HTTP requests, routing, request validation,
// and response formatting. It adapts external clients to the internal
// services: document submission and retrieval endpoints, authentication and
// provider key management, and the admin account surface.
package api
