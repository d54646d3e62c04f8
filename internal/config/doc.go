// Package config provides configuration structures and utilities for spacedown.
// It defines the main configuration options for connecting to a Confluence
// site, filtering and exporting a space, and summary output preferences.
package config
