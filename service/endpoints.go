// ABOUTME: Builds Google Reader API endpoint URLs for a configured provider
// ABOUTME: Handles base URL sanitizing, id encoding and the xt/ot/c query parameters

package service

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"greader-sync/models"
)

// State streams and category suffixes of the Google Reader protocol
const (
	StreamReadingList  = "user/-/state/com.google/reading-list"
	StreamRead         = "user/-/state/com.google/read"
	StreamStarred      = "user/-/state/com.google/starred"
	StateReadSuffix    = "state/com.google/read"
	StateStarredSuffix = "state/com.google/starred"
)

const (
	pathClientLogin      = "accounts/ClientLogin"
	pathToken            = "reader/api/0/token"
	pathTagList          = "reader/api/0/tag/list?output=json"
	pathSubscriptionList = "reader/api/0/subscription/list?output=json"
	pathStreamContents   = "reader/api/0/stream/contents/%s?output=json&n=%d"
	pathUserInfo         = "reader/api/0/user-info?output=json"
	pathEditTag          = "reader/api/0/edit-tag"
	pathItemIDs          = "reader/api/0/stream/items/ids?output=json&s=%s&n=%d"
	pathItemContents     = "reader/api/0/stream/items/contents?output=json"
)

// Endpoints renders URLs for one provider and base URL
type Endpoints struct {
	spec models.ProviderSpec
	base string
}

// NewEndpoints sanitizes the base URL; providers with a fixed host ignore baseURL
func NewEndpoints(spec models.ProviderSpec, baseURL string) Endpoints {
	if spec.DefaultBaseURL != "" {
		baseURL = spec.DefaultBaseURL
	}
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	return Endpoints{spec: spec, base: baseURL + spec.BasePath}
}

// BaseURL returns the sanitized base including any provider path
func (e Endpoints) BaseURL() string {
	return e.base
}

func (e Endpoints) ClientLogin() string      { return e.base + pathClientLogin }
func (e Endpoints) Token() string            { return e.base + pathToken }
func (e Endpoints) TagList() string          { return e.base + pathTagList }
func (e Endpoints) SubscriptionList() string { return e.base + pathSubscriptionList }
func (e Endpoints) UserInfo() string         { return e.base + pathUserInfo }
func (e Endpoints) EditTag() string          { return e.base + pathEditTag }
func (e Endpoints) ItemContents() string     { return e.base + pathItemContents }

// StreamQuery holds the optional filters shared by id and content listings
type StreamQuery struct {
	UnreadOnly bool
	NewerThan  time.Time
}

func (q StreamQuery) apply(u string) string {
	if q.UnreadOnly {
		u += "&xt=" + StreamRead
	}
	if !q.NewerThan.IsZero() {
		u += fmt.Sprintf("&ot=%d", q.NewerThan.Unix())
	}
	return u
}

// ItemIDs returns the id listing URL; n <= 0 uses the protocol maximum
func (e Endpoints) ItemIDs(streamID string, n int, q StreamQuery) string {
	if n <= 0 {
		n = models.ItemIDsMaxPerPage
	}
	return q.apply(e.base + fmt.Sprintf(pathItemIDs, e.encodeID(streamID, e.spec.RawItemIDs), n))
}

// StreamContents returns the full stream listing URL
func (e Endpoints) StreamContents(streamID string, n int, q StreamQuery) string {
	return q.apply(e.base + fmt.Sprintf(pathStreamContents, e.encodeID(streamID, e.spec.RawStreamContentsID), n))
}

// ItemContentsBody renders the i= form body for one batch of ids
func (e Endpoints) ItemContentsBody(ids []string) []byte {
	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		parts = append(parts, "i="+e.encodeID(id, e.spec.RawItemIDs))
	}
	return []byte(strings.Join(parts, "&"))
}

func (e Endpoints) encodeID(id string, raw bool) string {
	if raw {
		return id
	}
	return percentEncode(id)
}

// percentEncode escapes everything outside the unreserved set, spaces as %20
func percentEncode(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}

// WithContinuation appends the pagination cursor when present
func WithContinuation(u, continuation string) string {
	if continuation == "" {
		return u
	}
	return u + "&c=" + percentEncode(continuation)
}
