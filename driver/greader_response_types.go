// ABOUTME: Google Reader API response structures shared by every compatible provider
// ABOUTME: Items stay as raw JSON so the original object can be preserved on the message

package driver

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// ItemIDsResponse is returned by stream/items/ids
type ItemIDsResponse struct {
	ItemRefs     []ItemRef `json:"itemRefs"`
	Continuation string    `json:"continuation"`
}

// ItemRef is a single id entry; id may be short or long form depending on provider
type ItemRef struct {
	ID string `json:"id"`
}

// StreamContentsResponse is returned by stream/contents and stream/items/contents
type StreamContentsResponse struct {
	ID           string            `json:"id,omitempty"`
	Updated      int64             `json:"updated,omitempty"`
	Items        []json.RawMessage `json:"items"`
	Continuation string            `json:"continuation"`
}

// Item is one article entry of a stream contents response
type Item struct {
	ID         string       `json:"id"`
	Title      string       `json:"title"`
	Author     string       `json:"author"`
	Published  EpochSeconds `json:"published"`
	Categories []string     `json:"categories"`
	Alternate  []Link       `json:"alternate"`
	Enclosure  []Link       `json:"enclosure"`
	Summary    Summary      `json:"summary"`
	Origin     Origin       `json:"origin"`
}

// Link is an alternate or enclosure entry
type Link struct {
	Href string `json:"href"`
	Type string `json:"type,omitempty"`
}

// Summary holds the HTML body of an article
type Summary struct {
	Direction string `json:"direction,omitempty"`
	Content   string `json:"content"`
}

// Origin identifies the feed an item came from
type Origin struct {
	StreamID string `json:"streamId"`
	Title    string `json:"title,omitempty"`
	HTMLURL  string `json:"htmlUrl,omitempty"`
}

// TagListResponse is returned by tag/list
type TagListResponse struct {
	Tags []Tag `json:"tags"`
}

// Tag is a folder, label or state stream. Type is empty on some providers.
type Tag struct {
	ID      string `json:"id"`
	Type    string `json:"type,omitempty"`
	HTMLURL string `json:"htmlUrl,omitempty"`
}

// SubscriptionListResponse is returned by subscription/list
type SubscriptionListResponse struct {
	Subscriptions []Subscription `json:"subscriptions"`
}

// Subscription is one feed the account follows
type Subscription struct {
	ID         string     `json:"id"`
	Title      string     `json:"title"`
	URL        string     `json:"url,omitempty"`
	HTMLURL    string     `json:"htmlUrl"`
	IconURL    string     `json:"iconUrl"`
	Categories []Category `json:"categories"`
}

// Category is a folder reference embedded in a subscription
type Category struct {
	ID    string `json:"id"`
	Label string `json:"label,omitempty"`
}

// EpochSeconds accepts a JSON number or a numeric string; anything else decodes to zero
type EpochSeconds int64

func (e *EpochSeconds) UnmarshalJSON(data []byte) error {
	data = bytes.Trim(data, `"`)
	if len(data) == 0 || string(data) == "null" {
		*e = 0
		return nil
	}
	if v, err := strconv.ParseInt(string(data), 10, 64); err == nil {
		*e = EpochSeconds(v)
		return nil
	}
	if f, err := strconv.ParseFloat(string(data), 64); err == nil {
		*e = EpochSeconds(int64(f))
		return nil
	}
	*e = 0
	return nil
}
