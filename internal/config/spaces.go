package config

// SpaceConfig holds per-space configuration. This allows exporting several
// spaces from the same site with different settings without repeating CLI
// flags.
type SpaceConfig struct {
	// Output overrides the output directory for this space.
	// If empty, the global output directory is used.
	Output string `yaml:"output,omitempty"`

	// Since overrides the modification-date cutoff for this space,
	// in YYYY-MM-DD form. If empty, no per-space cutoff applies.
	Since string `yaml:"since,omitempty"`

	// Concurrency overrides the request concurrency for this space.
	// If zero, the global concurrency is used.
	Concurrency int `yaml:"concurrency,omitempty"`
}

// File represents the structure of the .spacedown.yaml configuration file.
type File struct {
	// URL is the Confluence site base URL, e.g. "https://example.atlassian.net".
	// The --url flag takes precedence over this value.
	URL string `yaml:"url,omitempty"`

	// Username is the account used for basic authentication.
	// The --username flag takes precedence over this value.
	Username string `yaml:"username,omitempty"`

	// Token is the API token paired with Username.
	// The --token flag takes precedence over this value.
	Token string `yaml:"token,omitempty"`

	// Spaces maps space keys to their per-space configurations.
	Spaces map[string]SpaceConfig `yaml:"spaces,omitempty"`

	// Defaults contains space configuration applied to all spaces unless
	// overridden in the space-specific configuration.
	Defaults SpaceConfig `yaml:"defaults,omitempty"`
}

// GetSpaceConfig returns the configuration for a specific space key.
// It merges the space-specific configuration with defaults.
func (cf *File) GetSpaceConfig(spaceKey string) SpaceConfig {
	// Start with defaults
	result := cf.Defaults

	// Override with space-specific configuration if present
	if spaceConfig, ok := cf.Spaces[spaceKey]; ok {
		if spaceConfig.Output != "" {
			result.Output = spaceConfig.Output
		}
		if spaceConfig.Since != "" {
			result.Since = spaceConfig.Since
		}
		if spaceConfig.Concurrency != 0 {
			result.Concurrency = spaceConfig.Concurrency
		}
	}

	return result
}
