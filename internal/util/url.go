// url.go — URL parsing utilities: path extraction, origin extraction, endpoint matching.
package util

import (
	"net/url"
	"strings"
)

// ExtractURLPath extracts the path portion from a URL string, stripping query parameters.
// Returns "/" if the URL has no path component.
// Returns the input unchanged if it cannot be parsed.
func ExtractURLPath(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	if parsed.Path == "" {
		return "/"
	}
	return parsed.Path
}

// ExtractOrigin extracts the origin (scheme://host[:port]) from a URL.
// Returns empty string for data: URLs and malformed or relative URLs.
// blob: URLs yield their nested origin.
func ExtractOrigin(rawURL string) string {
	if strings.HasPrefix(rawURL, "data:") {
		return ""
	}
	// blob:https://example.com/uuid -> https://example.com
	rawURL = strings.TrimPrefix(rawURL, "blob:")

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return ""
	}
	return strings.ToLower(parsed.Scheme) + "://" + strings.ToLower(parsed.Host)
}

// MatchesEndpoint reports whether rawURL targets endpoint: same origin and a path
// at or below the endpoint's path. An endpoint without a path matches its whole origin.
func MatchesEndpoint(rawURL, endpoint string) bool {
	origin := ExtractOrigin(endpoint)
	if origin == "" || ExtractOrigin(rawURL) != origin {
		return false
	}
	prefix := strings.TrimSuffix(ExtractURLPath(endpoint), "/")
	if prefix == "" {
		return true
	}
	path := ExtractURLPath(rawURL)
	return path == prefix || strings.HasPrefix(path, prefix+"/")
}
