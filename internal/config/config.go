package config

import (
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
)

// Default configuration values.
// These values are chosen for typical Confluence Cloud instances and can be
// overridden via CLI flags or the configuration file.
const (
	// DefaultTimeout is set to 60 seconds because Confluence REST responses
	// for content listings can be large (full page bodies are expanded into
	// the listing), and slow instances need headroom before we give up.
	DefaultTimeout = 60 * time.Second

	// DefaultConcurrency of 4 concurrent requests balances export speed
	// with politeness. Confluence Cloud rate-limits aggressive clients
	// (HTTP 429), and a small limit keeps retries rare.
	DefaultConcurrency = 4

	// DefaultOutputDir is where the export tree is written when the user
	// does not specify --output.
	DefaultOutputDir = "confluence_export"

	// DefaultPageLimit is the page size for paginated listing requests.
	// 50 keeps individual responses at a manageable size even with page
	// bodies expanded.
	DefaultPageLimit = 50

	// AppName is the application name used for XDG directory paths.
	AppName = "spacedown"

	// DefaultUserAgent identifies spacedown in HTTP requests.
	// A descriptive User-Agent lets instance administrators identify
	// export traffic in their logs.
	DefaultUserAgent = "spacedown/1.0 (+https://github.com/spacedown/spacedown)"

	// SinceLayout is the accepted format of the --since flag.
	SinceLayout = "2006-01-02"
)

// Config holds all configuration options for an export run.
// This struct is designed to be populated from CLI flags and the optional
// configuration file, then passed through the application via dependency
// injection rather than global state.
//
// Design decision: We use a single flat struct instead of nested structs
// (e.g., ConnectionConfig, OutputConfig) for simplicity. The number of
// options is manageable, and nesting would add complexity without
// significant benefit.
type Config struct {
	// BaseURL is the root URL of the Confluence site, e.g.
	// "https://example.atlassian.net". The REST API path is appended to it.
	BaseURL string

	// SpaceKey is the key of the space to export, e.g. "DOCS".
	SpaceKey string

	// Username is the Confluence account (usually an email address) used
	// for basic authentication together with APIToken.
	Username string

	// APIToken is the API token paired with Username.
	// Never logged; the logging layer redacts it defensively.
	APIToken string

	// OutputDir is the directory the export tree is written into.
	// Created if it does not exist.
	OutputDir string

	// Since, when non-nil, excludes pages whose latest version is older
	// than this timestamp. Pages without a parseable version timestamp
	// are always included.
	Since *time.Time

	// Concurrency is the maximum number of in-flight HTTP requests during
	// attachment metadata listing and attachment downloads.
	Concurrency int

	// Timeout is the per-request HTTP timeout.
	Timeout time.Duration

	// Verbose enables detailed log output using slog.LevelDebug.
	// When false, only warnings and errors are logged.
	Verbose bool

	// ConfigFilePath is the path to the configuration file.
	// If empty, the tool searches for .spacedown.yaml in the current
	// directory and then in the user's home directory.
	ConfigFilePath string

	// SpaceConfigs holds per-space configuration loaded from the config
	// file. Populated by LoadConfigFile and consulted before an export.
	SpaceConfigs *File

	// JSONReport enables JSON summary output instead of the human-readable
	// format. Mutually exclusive with MarkdownReport.
	JSONReport bool

	// MarkdownReport enables Markdown summary output instead of the
	// human-readable format. Mutually exclusive with JSONReport.
	MarkdownReport bool

	// ReportFile is the output file path for the run summary.
	// When set, the summary is written to this file instead of stdout.
	ReportFile string

	// DBDir is the directory path for the export history database.
	// When empty, the XDG data directory is used.
	DBDir string

	// SaveHistory indicates whether finished runs are recorded in the
	// history database. Disabled with --no-history.
	SaveHistory bool

	// UserAgent is the User-Agent header sent with HTTP requests.
	UserAgent string
}

// NewConfig creates a new Config with default values.
// All fields are set to safe, sensible defaults that work for most use
// cases. Users override specific values after creation.
//
// Design decision: We use a constructor function instead of relying on
// zero values because many defaults are non-zero (e.g., timeout,
// concurrency). This also serves as documentation of what the defaults are.
func NewConfig() *Config {
	return &Config{
		OutputDir:   DefaultOutputDir,
		Concurrency: DefaultConcurrency,
		Timeout:     DefaultTimeout,
		UserAgent:   DefaultUserAgent,
		SaveHistory: true,
	}
}

// XDGDataDir returns the XDG data directory for spacedown.
// This follows the XDG Base Directory Specification.
// On Linux: ~/.local/share/spacedown
// On macOS: ~/Library/Application Support/spacedown
// On Windows: %LOCALAPPDATA%\spacedown
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// ParseSinceDate parses the value of the --since flag.
// Only the YYYY-MM-DD form is accepted; the cutoff is midnight UTC of
// that day.
func ParseSinceDate(value string) (time.Time, error) {
	t, err := time.Parse(SinceLayout, value)
	if err != nil {
		return time.Time{}, ErrInvalidSinceDate
	}
	return t, nil
}

// Validate checks if the configuration is valid.
// It returns a specific error describing what is invalid.
//
// Design decision: We validate at the config level rather than at each
// point of use to fail fast and provide clear error messages upfront.
// This is called once after CLI parsing and config file merging, before
// any network request is made.
//
// We chose to return the first error found rather than collecting all
// errors because fixing one error often makes others irrelevant.
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return ErrNoBaseURL
	}

	// The base URL must parse and must be http(s); anything else would
	// only fail later with a confusing transport error.
	u, err := url.Parse(c.BaseURL)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return ErrInvalidBaseURL
	}

	if c.SpaceKey == "" {
		return ErrNoSpaceKey
	}

	if c.Username == "" {
		return ErrNoUsername
	}

	if c.APIToken == "" {
		return ErrNoAPIToken
	}

	if c.OutputDir == "" {
		return ErrNoOutputDir
	}

	// Timeout must be positive; zero timeout would cause immediate failures
	if c.Timeout <= 0 {
		return ErrInvalidTimeout
	}

	// Concurrency must be positive; zero would mean no downloads at all
	if c.Concurrency <= 0 {
		return ErrInvalidConcurrency
	}

	// JSONReport and MarkdownReport are mutually exclusive
	if c.JSONReport && c.MarkdownReport {
		return ErrConflictingReportFormats
	}

	return nil
}

// NormalizedBaseURL returns the base URL without a trailing slash so API
// paths can be appended uniformly.
func (c *Config) NormalizedBaseURL() string {
	return strings.TrimRight(c.BaseURL, "/")
}
