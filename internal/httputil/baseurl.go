package httputil

import (
	"fmt"
	"net/url"
	"strings"
)

// NormalizeBaseURL trims whitespace and trailing slashes and validates that
// raw is an absolute http(s) URL with no embedded user info (grounded on the
// teacher's base-url normalization for service-to-service calls, generalized
// here to integration base_urls).
func NormalizeBaseURL(raw string) (string, error) {
	base := strings.TrimRight(strings.TrimSpace(raw), "/")
	if base == "" {
		return "", fmt.Errorf("base_url is required")
	}
	parsed, err := url.Parse(base)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return "", fmt.Errorf("base_url must be a valid absolute URL")
	}
	if parsed.User != nil {
		return "", fmt.Errorf("base_url must not include user info")
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return "", fmt.Errorf("base_url scheme must be http or https")
	}
	return base, nil
}

// JoinEndpoint joins a normalized base URL with an endpoint path and
// optional query parameters (spec.md §4.8 "URL construction").
func JoinEndpoint(baseURL, endpoint string, query map[string]any) (string, error) {
	base, err := NormalizeBaseURL(baseURL)
	if err != nil {
		return "", err
	}
	if endpoint == "" {
		return "", fmt.Errorf("params.endpoint is required")
	}
	if !strings.HasPrefix(endpoint, "/") {
		endpoint = "/" + endpoint
	}

	full, err := url.Parse(base + endpoint)
	if err != nil {
		return "", fmt.Errorf("invalid endpoint: %w", err)
	}

	if len(query) > 0 {
		q := full.Query()
		for k, v := range query {
			q.Set(k, fmt.Sprintf("%v", v))
		}
		full.RawQuery = q.Encode()
	}
	return full.String(), nil
}
