// Package vkapi builds request URLs for the VK API methods used by the
// friends and photos reports. It performs no I/O.
package vkapi

import (
	"slices"
	"strings"
)

const (
	// DefaultBaseURL is the VK API method root.
	DefaultBaseURL = "https://api.vk.com/method"
	// DefaultVersion is the API version the schema in engine/domain targets.
	DefaultVersion = "5.131"
	// DefaultCount is the page size sent with every request.
	DefaultCount = 500
)

// ProfileFields is the attribute list requested for friend profiles.
var ProfileFields = []string{
	"about", "activities", "occupation", "bdate", "city", "connections",
	"contacts", "counters", "relatives", "sex", "universities", "last_seen",
}

// Config holds everything needed to build request URLs.
type Config struct {
	Token   string
	Version string
	Fields  []string
	Count   int
	BaseURL string
}

// DefaultConfig returns a Config with the standard version, field list and
// page size. The token is left empty.
func DefaultConfig() Config {
	return Config{
		Version: DefaultVersion,
		Fields:  slices.Clone(ProfileFields),
		Count:   DefaultCount,
		BaseURL: DefaultBaseURL,
	}
}

func (c Config) withDefaults() Config {
	if c.Version == "" {
		c.Version = DefaultVersion
	}
	if len(c.Fields) == 0 {
		c.Fields = slices.Clone(ProfileFields)
	}
	if c.Count <= 0 {
		c.Count = DefaultCount
	}
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	return c
}
