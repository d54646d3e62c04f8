// Package confluence implements the REST API client used to read a space:
// page listings with expanded bodies, attachment metadata, and attachment
// binaries.
//
// The client owns everything transport-shaped so the rest of the exporter
// does not touch net/http: basic authentication, pagination, per-request
// timeouts, and retries with exponential backoff on 429/5xx responses.
// Errors that survive the retry policy are permanent and classified into
// the package sentinel errors (ErrAuthFailed, ErrSpaceNotFound, ErrNotFound).
package confluence
