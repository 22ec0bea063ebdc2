// Package client is the SessionGuard API client used by the CLI.
//
// HTTPClient speaks the JSON API over net/http. It keeps the session cookie
// and the CSRF token in a State persisted to a small JSON file, so separate
// CLI invocations share one login.
//
// # Error Handling
//
// Transport failures wrap ErrUnavailable. Error responses are returned as
// *APIError, which unwraps to ErrUnauthorized for 401 and ErrServer for 5xx.
// Calls that need a session fail with ErrNotLoggedIn before any request is
// made when no session cookie is stored.
package client
