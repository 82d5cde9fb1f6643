// Package utils provides helpers shared by the sync engine and its adapters
package utils

import (
	"net/url"
	"strings"
)

// NormalizeIconURL fixes provider icon URLs before download. Scheme-relative
// URLs take the scheme of baseURL; with alignPort, icons served from the same
// host as baseURL take its port (or lose theirs when baseURL has none).
func NormalizeIconURL(iconURL, baseURL string, alignPort bool) string {
	if iconURL == "" {
		return ""
	}

	base, err := url.Parse(baseURL)
	if err != nil {
		return iconURL
	}

	if strings.HasPrefix(iconURL, "//") {
		return base.Scheme + ":" + iconURL
	}

	if !alignPort {
		return iconURL
	}

	icon, err := url.Parse(iconURL)
	if err != nil || icon.Hostname() != base.Hostname() {
		return iconURL
	}
	if port := base.Port(); port != "" {
		icon.Host = icon.Hostname() + ":" + port
	} else {
		icon.Host = icon.Hostname()
	}
	return icon.String()
}

// ResolveURL resolves href against the page it was found on
func ResolveURL(pageURL, href string) (string, error) {
	page, err := url.Parse(pageURL)
	if err != nil {
		return "", err
	}
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return "", err
	}
	return page.ResolveReference(ref).String(), nil
}

// SiteRoot returns scheme://host/ of a page URL, or "" when it has no host
func SiteRoot(pageURL string) string {
	page, err := url.Parse(pageURL)
	if err != nil || page.Host == "" {
		return ""
	}
	return page.Scheme + "://" + page.Host + "/"
}
