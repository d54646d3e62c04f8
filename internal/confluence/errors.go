package confluence

import "errors"

// Client errors.
//
// Design decision: We use package-level sentinel errors so callers can
// classify failures with errors.Is(): authentication and missing-space
// errors abort an export, while transient errors are retried inside the
// client and not seen by callers at all.
var (
	// ErrInvalidSiteURL is returned by NewClient when the site URL does not
	// parse as an absolute http or https URL.
	ErrInvalidSiteURL = errors.New("invalid site URL: must be an absolute http(s) URL")

	// ErrNoCredentials is returned by NewClient when the username or API
	// token is empty. The REST API rejects anonymous listing requests for
	// most spaces, so requiring credentials up front fails faster.
	ErrNoCredentials = errors.New("missing credentials: username and API token are required")

	// ErrAuthFailed is returned when the API responds with 401 or 403.
	// Retrying cannot help; the token or the account permissions are wrong.
	ErrAuthFailed = errors.New("authentication failed: check username and API token")

	// ErrSpaceNotFound is returned when the requested space key does not
	// exist on the site (404 from the space endpoint).
	ErrSpaceNotFound = errors.New("space not found")

	// ErrNotFound is returned for 404 responses on content and attachment
	// endpoints, e.g. an attachment deleted between listing and download.
	ErrNotFound = errors.New("resource not found")
)

// errTransient marks 429 and 5xx responses internally so the retry policy
// can distinguish them from permanent failures.
var errTransient = errors.New("transient status")

// errTooManyRedirects aborts a redirect loop. A loop is deterministic, so
// the retry policy treats it as permanent.
var errTooManyRedirects = errors.New("stopped after 10 redirects")
