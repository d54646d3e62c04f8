package config

import "errors"

// Configuration validation errors.
// These errors are returned by Config.Validate() and provide specific
// information about what is wrong with the configuration.
//
// Design decision: We use package-level sentinel errors rather than
// creating new error instances in Validate(). This allows callers to use
// errors.Is() for programmatic error handling while still providing
// human-readable messages. Using errors.New() here rather than fmt.Errorf()
// because we don't need to include dynamic values in these messages.
var (
	// ErrNoBaseURL is returned when no Confluence site URL is specified.
	// The URL must come from the --url flag or the configuration file.
	ErrNoBaseURL = errors.New("no site URL specified: provide --url or set url in the config file")

	// ErrInvalidBaseURL is returned when the site URL does not parse as an
	// absolute http or https URL.
	ErrInvalidBaseURL = errors.New("invalid site URL: must be an absolute http(s) URL")

	// ErrNoSpaceKey is returned when no space key is specified.
	ErrNoSpaceKey = errors.New("no space specified: provide --space or set a space in the config file")

	// ErrNoUsername is returned when no account name is specified.
	ErrNoUsername = errors.New("no username specified: provide --username or set username in the config file")

	// ErrNoAPIToken is returned when no API token is specified.
	ErrNoAPIToken = errors.New("no API token specified: provide --token or set token in the config file")

	// ErrNoOutputDir is returned when the output directory is empty.
	ErrNoOutputDir = errors.New("no output directory specified")

	// ErrInvalidTimeout is returned when the timeout is not positive.
	// A timeout of zero or negative would cause immediate request failures.
	ErrInvalidTimeout = errors.New("invalid timeout: must be positive")

	// ErrInvalidConcurrency is returned when the request concurrency is not
	// positive. Zero concurrency would stall every download.
	ErrInvalidConcurrency = errors.New("invalid concurrency: must be positive")

	// ErrInvalidSinceDate is returned when the --since value is not a date
	// in YYYY-MM-DD form.
	ErrInvalidSinceDate = errors.New("invalid since date: expected YYYY-MM-DD")

	// ErrConflictingReportFormats is returned when both --json and --markdown
	// are specified. Only one output format can be used at a time.
	ErrConflictingReportFormats = errors.New("conflicting report formats: --json and --markdown cannot be used together")
)
