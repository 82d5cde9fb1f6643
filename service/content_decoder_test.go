package service

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"greader-sync/models"
)

type upperSanitizer struct{}

func (upperSanitizer) SanitizeHTML(content string) string {
	return strings.ToUpper(content)
}

func rawItems(t *testing.T, items ...map[string]any) []json.RawMessage {
	t.Helper()
	out := make([]json.RawMessage, 0, len(items))
	for _, item := range items {
		data, err := json.MarshalIndent(item, "", "  ")
		require.NoError(t, err)
		out = append(out, data)
	}
	return out
}

func TestContentDecoder_Decode(t *testing.T) {
	item := map[string]any{
		"id":        "tag:google.com,2005:reader/item/000000000000002a",
		"title":     "Fish &amp; Chips",
		"author":    "Jane &lt;J&gt;",
		"published": "1700000000",
		"categories": []string{
			"user/1005/state/com.google/read",
			"user/1005/state/com.google/starred",
			"user/1005/label/Tech",
			"user/1005/label/Gone",
			"user/-/state/com.google/reading-list",
		},
		"alternate": []map[string]string{
			{"href": "https://example.com/a", "type": "text/html"},
			{"href": "https://example.com/a.mp3", "type": "audio/mpeg"},
		},
		"enclosure": []map[string]string{
			{"href": "https://example.com/a.jpg", "type": "image/jpeg"},
		},
		"summary": map[string]string{"content": "<p>hello</p>"},
		"origin":  map[string]string{"streamId": "feed/http://example.com/rss"},
	}

	decoder := NewContentDecoder(nil, nil)
	messages, err := decoder.Decode(rawItems(t, item), "feed/explicit", models.NewIDSet("user/1005/label/Tech"))
	require.NoError(t, err)
	require.Len(t, messages, 1)

	msg := messages[0]
	assert.Equal(t, "tag:google.com,2005:reader/item/000000000000002a", msg.CustomID)
	assert.Equal(t, "feed/explicit", msg.FeedID)
	assert.Equal(t, "Fish & Chips", msg.Title)
	assert.Equal(t, "Jane <J>", msg.Author)
	assert.Equal(t, time.Unix(1700000000, 0).UTC(), msg.Created)
	assert.True(t, msg.CreatedFromFeed)
	assert.True(t, msg.IsRead)
	assert.True(t, msg.IsImportant)
	assert.Equal(t, "https://example.com/a", msg.URL)
	assert.Equal(t, []models.Enclosure{
		{URL: "https://example.com/a.mp3", MimeType: "audio/mpeg"},
		{URL: "https://example.com/a.jpg", MimeType: "image/jpeg"},
	}, msg.Enclosures)
	assert.Equal(t, []string{"user/1005/label/Tech"}, msg.AssignedLabels)
	assert.Equal(t, "<p>hello</p>", msg.Contents)
	assert.NotContains(t, msg.RawContents, "\n")
	assert.JSONEq(t, string(rawItems(t, item)[0]), msg.RawContents)
}

func TestContentDecoder_Fallbacks(t *testing.T) {
	tests := map[string]struct {
		item     map[string]any
		streamID string
		validate func(t *testing.T, msg models.Message)
	}{
		"feed id from origin": {
			item: map[string]any{"id": "1", "origin": map[string]string{"streamId": "feed/origin"}},
			validate: func(t *testing.T, msg models.Message) {
				assert.Equal(t, "feed/origin", msg.FeedID)
			},
		},
		"title falls back to url": {
			item: map[string]any{
				"id":        "1",
				"alternate": []map[string]string{{"href": "https://example.com/x"}},
			},
			streamID: "feed/1",
			validate: func(t *testing.T, msg models.Message) {
				assert.Equal(t, "https://example.com/x", msg.Title)
				assert.Equal(t, "https://example.com/x", msg.URL)
			},
		},
		"only first html alternate is the url": {
			item: map[string]any{
				"id": "1",
				"alternate": []map[string]string{
					{"href": "https://example.com/one", "type": "text/html"},
					{"href": "https://example.com/two", "type": "text/html"},
				},
			},
			streamID: "feed/1",
			validate: func(t *testing.T, msg models.Message) {
				assert.Equal(t, "https://example.com/one", msg.URL)
				assert.Equal(t, []models.Enclosure{{URL: "https://example.com/two", MimeType: "text/html"}}, msg.Enclosures)
			},
		},
		"unread and unstarred": {
			item:     map[string]any{"id": "1", "categories": []string{"user/-/state/com.google/reading-list"}},
			streamID: "feed/1",
			validate: func(t *testing.T, msg models.Message) {
				assert.False(t, msg.IsRead)
				assert.False(t, msg.IsImportant)
				assert.Empty(t, msg.AssignedLabels)
			},
		},
		"numeric published": {
			item:     map[string]any{"id": "1", "published": 1600000000},
			streamID: "feed/1",
			validate: func(t *testing.T, msg models.Message) {
				assert.Equal(t, int64(1600000000), msg.Created.Unix())
			},
		},
	}

	decoder := NewContentDecoder(nil, nil)
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			messages, err := decoder.Decode(rawItems(t, tc.item), tc.streamID, nil)
			require.NoError(t, err)
			require.Len(t, messages, 1)
			tc.validate(t, messages[0])
		})
	}
}

func TestContentDecoder_Sanitizes(t *testing.T) {
	decoder := NewContentDecoder(upperSanitizer{}, nil)
	messages, err := decoder.Decode(rawItems(t, map[string]any{
		"id":      "1",
		"summary": map[string]string{"content": "<p>x</p>"},
	}), "feed/1", nil)

	require.NoError(t, err)
	assert.Equal(t, "<P>X</P>", messages[0].Contents)
}

func TestContentDecoder_MalformedItem(t *testing.T) {
	decoder := NewContentDecoder(nil, nil)
	_, err := decoder.Decode([]json.RawMessage{json.RawMessage(`[1,2]`)}, "feed/1", nil)

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMalformedPayload)
	assert.Equal(t, models.FeedStatusOtherError, StatusFromError(err))
}
