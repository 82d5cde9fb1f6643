// ABOUTME: Message, enclosure and feed status types produced by a sync cycle
// ABOUTME: FeedStatus is the only error signal surfaced to the feed collection

package models

import "time"

// FeedStatus is the outcome of fetching one feed
type FeedStatus int

const (
	FeedStatusNormal FeedStatus = iota
	FeedStatusAuthError
	FeedStatusNetworkError
	FeedStatusOtherError
)

func (s FeedStatus) String() string {
	switch s {
	case FeedStatusNormal:
		return "normal"
	case FeedStatusAuthError:
		return "auth_error"
	case FeedStatusNetworkError:
		return "network_error"
	default:
		return "other_error"
	}
}

// Enclosure is an attached media link of a message
type Enclosure struct {
	URL      string `json:"url"`
	MimeType string `json:"mime_type"`
}

// Feed is the minimal feed identity the sync engine needs
type Feed struct {
	CustomID string `json:"custom_id"`
	Title    string `json:"title"`
}

// Message is a decoded article from a stream-contents or item-contents response
type Message struct {
	CustomID        string      `json:"custom_id"`
	FeedID          string      `json:"feed_id"`
	Title           string      `json:"title"`
	Author          string      `json:"author"`
	URL             string      `json:"url"`
	Contents        string      `json:"contents"`
	Created         time.Time   `json:"created"`
	CreatedFromFeed bool        `json:"created_from_feed"`
	IsRead          bool        `json:"is_read"`
	IsImportant     bool        `json:"is_important"`
	Enclosures      []Enclosure `json:"enclosures,omitempty"`
	AssignedLabels  []string    `json:"assigned_labels,omitempty"`
	RawContents     string      `json:"-"`
}

// MessageCustomIDs returns the custom ids of the messages in order
func MessageCustomIDs(messages []Message) []string {
	out := make([]string, 0, len(messages))
	for _, m := range messages {
		out = append(out, m.CustomID)
	}
	return out
}
