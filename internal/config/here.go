package config

import "time"

// HEREConfig configures the HERE Places client.
// Either APIKey or the legacy AppID/AppCode pair authenticates requests.
type HEREConfig struct {
	BaseURL string `yaml:"base_url"`
	APIKey  string `yaml:"api_key,omitempty"`
	AppID   string `yaml:"app_id,omitempty"`
	AppCode string `yaml:"app_code,omitempty"`

	PageSize    int    `yaml:"page_size"`    // size= parameter, API maximum is 100
	MaxPages    int    `yaml:"max_pages"`    // pages followed via results.next
	Timeout     string `yaml:"timeout"`      // per-request HTTP timeout
	MinInterval string `yaml:"min_interval"` // pacing between requests
}

// HasCredentials reports whether an API key or an app id/code pair is set.
func (h HEREConfig) HasCredentials() bool {
	return h.APIKey != "" || (h.AppID != "" && h.AppCode != "")
}

// GetTimeout returns the HTTP timeout as a duration.
func (h HEREConfig) GetTimeout() time.Duration {
	return parseDuration(h.Timeout, 30*time.Second)
}

// GetMinInterval returns the minimum delay between requests.
func (h HEREConfig) GetMinInterval() time.Duration {
	return parseDuration(h.MinInterval, 0)
}
