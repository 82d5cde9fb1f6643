// ABOUTME: Provider API quota usage parsed from Inoreader-style response headers
// ABOUTME: Zone 1 counts read requests, zone 2 counts edit-tag requests

package models

import (
	"net/http"
	"strconv"
	"time"
)

// Inoreader reports request quotas in these headers on every API response.
const (
	HeaderZone1Usage  = "X-Reader-Zone1-Usage"
	HeaderZone1Limit  = "X-Reader-Zone1-Limit"
	HeaderZone2Usage  = "X-Reader-Zone2-Usage"
	HeaderZone2Limit  = "X-Reader-Zone2-Limit"
	HeaderLimitsReset = "X-Reader-Limits-Reset-After"
)

// APIUsage is the most recent quota snapshot reported by the provider
type APIUsage struct {
	Zone1Usage  int       `json:"zone1_usage"`
	Zone1Limit  int       `json:"zone1_limit"`
	Zone2Usage  int       `json:"zone2_usage"`
	Zone2Limit  int       `json:"zone2_limit"`
	ResetAt     time.Time `json:"reset_at"`
	LastUpdated time.Time `json:"last_updated"`
}

// APIUsageFromHeaders parses quota headers; ok is false when none are present
func APIUsageFromHeaders(h http.Header, now time.Time) (APIUsage, bool) {
	if h == nil || h.Get(HeaderZone1Limit) == "" && h.Get(HeaderZone2Limit) == "" {
		return APIUsage{}, false
	}

	usage := APIUsage{
		Zone1Usage:  headerInt(h, HeaderZone1Usage),
		Zone1Limit:  headerInt(h, HeaderZone1Limit),
		Zone2Usage:  headerInt(h, HeaderZone2Usage),
		Zone2Limit:  headerInt(h, HeaderZone2Limit),
		LastUpdated: now,
	}
	if secs, err := strconv.ParseFloat(h.Get(HeaderLimitsReset), 64); err == nil {
		usage.ResetAt = now.Add(time.Duration(secs * float64(time.Second)))
	}
	return usage, true
}

func headerInt(h http.Header, key string) int {
	v, err := strconv.Atoi(h.Get(key))
	if err != nil {
		return 0
	}
	return v
}

// Zone1Remaining returns the read requests left before the quota resets
func (u APIUsage) Zone1Remaining() int {
	if u.Zone1Limit <= u.Zone1Usage {
		return 0
	}
	return u.Zone1Limit - u.Zone1Usage
}

// Zone2Remaining returns the edit requests left before the quota resets
func (u APIUsage) Zone2Remaining() int {
	if u.Zone2Limit <= u.Zone2Usage {
		return 0
	}
	return u.Zone2Limit - u.Zone2Usage
}

// Exhausted reports whether the read quota is used up
func (u APIUsage) Exhausted() bool {
	return u.Zone1Limit > 0 && u.Zone1Usage >= u.Zone1Limit
}
