package config

import "maps"

// SiteConfig holds the overrides for one origin.
type SiteConfig struct {
	// Headers are added to every request sent to the origin.
	Headers map[string]string `yaml:"headers,omitempty"`

	// Depth overrides the crawl depth for seeds on this origin when set.
	// Zero crawls only the seed page.
	Depth *int `yaml:"depth,omitempty"`

	// VerifyTLS overrides certificate verification when set.
	VerifyTLS *bool `yaml:"verifyTLS,omitempty"`

	// UserAgent overrides the User-Agent header when non-empty.
	UserAgent string `yaml:"userAgent,omitempty"`
}

// File represents the structure of the .linkcrawl configuration file.
type File struct {
	// Sites maps origins ("https://example.com", "http://localhost:8080") to
	// their overrides. Keys must match the origin exactly, scheme included.
	Sites map[string]SiteConfig `yaml:"sites,omitempty"`

	// Defaults apply to every site unless the site entry overrides them.
	Defaults SiteConfig `yaml:"defaults,omitempty"`
}

// GetSiteConfig returns the configuration for origin, merged with defaults.
// Site headers are added to the default headers, replacing equal keys.
// The result never shares its Headers map with f.
func (f *File) GetSiteConfig(origin string) SiteConfig {
	result := f.Defaults
	result.Headers = maps.Clone(f.Defaults.Headers)

	site, ok := f.Sites[origin]
	if !ok {
		return result
	}

	if site.Depth != nil {
		result.Depth = site.Depth
	}
	if site.VerifyTLS != nil {
		result.VerifyTLS = site.VerifyTLS
	}
	if site.UserAgent != "" {
		result.UserAgent = site.UserAgent
	}
	if len(site.Headers) > 0 {
		if result.Headers == nil {
			result.Headers = make(map[string]string, len(site.Headers))
		}
		maps.Copy(result.Headers, site.Headers)
	}

	return result
}
