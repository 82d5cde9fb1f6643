// ABOUTME: Decodes stream-contents items into messages with flags, enclosures and labels
// ABOUTME: Keeps the compact original JSON of every item on the message

package service

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html"
	"log/slog"
	"strings"
	"time"

	"greader-sync/driver"
	"greader-sync/models"
)

// ContentSanitizer cleans message HTML; utils.Sanitizer implements it
type ContentSanitizer interface {
	SanitizeHTML(content string) string
}

// ContentDecoder turns raw items into messages
type ContentDecoder struct {
	sanitizer ContentSanitizer
	logger    *slog.Logger
}

// NewContentDecoder creates a decoder; sanitizer may be nil to keep contents as served
func NewContentDecoder(sanitizer ContentSanitizer, logger *slog.Logger) *ContentDecoder {
	if logger == nil {
		logger = slog.Default()
	}
	return &ContentDecoder{sanitizer: sanitizer, logger: logger}
}

// Decode converts items. streamID, when set, becomes the feed id of every
// message; otherwise each item's origin stream is used. Label categories are
// kept only when present in liveLabels.
func (d *ContentDecoder) Decode(items []json.RawMessage, streamID string, liveLabels models.IDSet) ([]models.Message, error) {
	messages := make([]models.Message, 0, len(items))

	for i, raw := range items {
		var item driver.Item
		if err := json.Unmarshal(raw, &item); err != nil {
			d.logger.Error("failed to decode item", "stream_id", streamID, "index", i, "error", err)
			return nil, newSyncError(ErrorKindOther, "decode_item", streamID, fmt.Errorf("%w: %v", ErrMalformedPayload, err))
		}
		messages = append(messages, d.decodeItem(item, raw, streamID, liveLabels))
	}

	return messages, nil
}

func (d *ContentDecoder) decodeItem(item driver.Item, raw json.RawMessage, streamID string, liveLabels models.IDSet) models.Message {
	msg := models.Message{
		CustomID:        item.ID,
		Title:           html.UnescapeString(item.Title),
		Author:          html.UnescapeString(item.Author),
		Created:         time.Unix(int64(item.Published), 0).UTC(),
		CreatedFromFeed: true,
		Contents:        item.Summary.Content,
		FeedID:          streamID,
	}
	if msg.FeedID == "" {
		msg.FeedID = item.Origin.StreamID
	}

	urlSet := false
	for _, alt := range item.Alternate {
		if !urlSet && (alt.Type == "" || alt.Type == "text/html") {
			msg.URL = alt.Href
			urlSet = true
			continue
		}
		msg.Enclosures = append(msg.Enclosures, models.Enclosure{URL: alt.Href, MimeType: alt.Type})
	}
	for _, enc := range item.Enclosure {
		msg.Enclosures = append(msg.Enclosures, models.Enclosure{URL: enc.Href, MimeType: enc.Type})
	}

	for _, category := range item.Categories {
		switch {
		case strings.HasSuffix(category, StateReadSuffix):
			msg.IsRead = true
		case strings.HasSuffix(category, StateStarredSuffix):
			msg.IsImportant = true
		case strings.Contains(category, "label"):
			if liveLabels.Has(category) {
				msg.AssignedLabels = append(msg.AssignedLabels, category)
			}
		}
	}

	if d.sanitizer != nil {
		msg.Contents = d.sanitizer.SanitizeHTML(msg.Contents)
	}

	if msg.Title == "" {
		msg.Title = msg.URL
	}

	var compact bytes.Buffer
	if err := json.Compact(&compact, raw); err == nil {
		msg.RawContents = compact.String()
	} else {
		msg.RawContents = string(raw)
	}

	return msg
}
