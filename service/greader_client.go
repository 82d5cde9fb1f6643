// ABOUTME: Authenticated Google Reader API calls built on the transport and session
// ABOUTME: Every failure is returned as a SyncError tagged with op and stream

package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"greader-sync/driver"
	"greader-sync/models"
)

// GreaderClient issues protocol requests for one account
type GreaderClient struct {
	spec      models.ProviderSpec
	endpoints Endpoints
	codec     StreamIDCodec
	session   *AuthSession
	transport driver.Transport
	timeout   time.Duration
	logger    *slog.Logger
}

// NewGreaderClient creates a client sharing the session's provider and base URL
func NewGreaderClient(cfg AuthSessionConfig, session *AuthSession, transport driver.Transport, logger *slog.Logger) *GreaderClient {
	if logger == nil {
		logger = slog.Default()
	}
	return &GreaderClient{
		spec:      cfg.Spec,
		endpoints: NewEndpoints(cfg.Spec, cfg.BaseURL),
		codec:     NewStreamIDCodec(cfg.Spec),
		session:   session,
		transport: transport,
		timeout:   cfg.Timeout,
		logger:    logger,
	}
}

// Codec returns the id codec for the client's provider
func (c *GreaderClient) Codec() StreamIDCodec {
	return c.codec
}

// Endpoints returns the URL builder for the client's provider
func (c *GreaderClient) Endpoints() Endpoints {
	return c.endpoints
}

// Session returns the auth session used by the client
func (c *GreaderClient) Session() *AuthSession {
	return c.session
}

func (c *GreaderClient) do(ctx context.Context, op, stream, method, url string, body []byte) ([]byte, error) {
	headers := c.session.Headers()
	if body != nil {
		headers["Content-Type"] = "application/x-www-form-urlencoded"
	}

	resp, err := c.transport.PerformRequest(ctx, &driver.Request{
		URL:     url,
		Method:  method,
		Body:    body,
		Headers: headers,
		Timeout: c.timeout,
	})
	if err != nil {
		c.logger.Error("request failed", "op", op, "stream_id", stream, "error", err)
		return nil, newSyncError(ErrorKindNetwork, op, stream, err)
	}
	if !resp.OK() {
		if resp.StatusCode == http.StatusUnauthorized {
			// force a fresh login on the next cycle
			c.session.ClearCredentials()
		}
		c.logger.Error("request returned error status", "op", op, "stream_id", stream, "status_code", resp.StatusCode)
		return nil, newSyncError(ErrorKindNetwork, op, stream, fmt.Errorf("%w %d", ErrUnexpectedStatus, resp.StatusCode))
	}
	return resp.Body, nil
}

func (c *GreaderClient) decode(op, stream string, data []byte, v any) error {
	if err := json.Unmarshal(data, v); err != nil {
		c.logger.Error("failed to decode response", "op", op, "stream_id", stream, "error", err)
		return newSyncError(ErrorKindOther, op, stream, fmt.Errorf("%w: %v", ErrMalformedPayload, err))
	}
	return nil
}

// ItemIDs lists the long-form ids of a stream across all pages
func (c *GreaderClient) ItemIDs(ctx context.Context, streamID string, limit int, q StreamQuery) ([]string, error) {
	if err := c.session.EnsureLogin(ctx); err != nil {
		return nil, err
	}

	base := c.endpoints.ItemIDs(streamID, limit, q)
	fetch := func(ctx context.Context, continuation string) ([]string, string, error) {
		data, err := c.do(ctx, "item_ids", streamID, http.MethodGet, WithContinuation(base, continuation), nil)
		if err != nil {
			return nil, "", err
		}
		var page driver.ItemIDsResponse
		if err := c.decode("item_ids", streamID, data, &page); err != nil {
			return nil, "", err
		}
		ids := make([]string, 0, len(page.ItemRefs))
		for _, ref := range page.ItemRefs {
			ids = append(ids, c.codec.ToLong(ref.ID))
		}
		return ids, page.Continuation, nil
	}

	ids, err := Paginate(ctx, fetch, 0)
	if err != nil {
		return nil, err
	}
	c.logger.Debug("fetched item ids", "stream_id", streamID, "count", len(ids), "unread_only", q.UnreadOnly)
	return ids, nil
}

// ItemContents fetches one batch of items by id, following continuations
func (c *GreaderClient) ItemContents(ctx context.Context, ids []string) ([]json.RawMessage, error) {
	if err := c.session.EnsureLogin(ctx); err != nil {
		return nil, err
	}

	body := c.endpoints.ItemContentsBody(ids)
	fetch := func(ctx context.Context, continuation string) ([]json.RawMessage, string, error) {
		url := WithContinuation(c.endpoints.ItemContents(), continuation)
		data, err := c.do(ctx, "item_contents", "", http.MethodPost, url, body)
		if err != nil {
			return nil, "", err
		}
		var page driver.StreamContentsResponse
		if err := c.decode("item_contents", "", data, &page); err != nil {
			return nil, "", err
		}
		return page.Items, page.Continuation, nil
	}
	return Paginate(ctx, fetch, 0)
}

// StreamContents fetches a whole stream, stopping once target items were collected.
// target <= 0 uses the protocol maximum.
func (c *GreaderClient) StreamContents(ctx context.Context, streamID string, target int, q StreamQuery) ([]json.RawMessage, error) {
	if err := c.session.EnsureLogin(ctx); err != nil {
		return nil, err
	}
	if target <= 0 {
		target = models.UnlimitedBatchSize
	}

	base := c.endpoints.StreamContents(streamID, target, q)
	fetch := func(ctx context.Context, continuation string) ([]json.RawMessage, string, error) {
		data, err := c.do(ctx, "stream_contents", streamID, http.MethodGet, WithContinuation(base, continuation), nil)
		if err != nil {
			return nil, "", err
		}
		var page driver.StreamContentsResponse
		if err := c.decode("stream_contents", streamID, data, &page); err != nil {
			return nil, "", err
		}
		return page.Items, page.Continuation, nil
	}
	return Paginate(ctx, fetch, target)
}

// TagList returns the folders, labels and state streams of the account
func (c *GreaderClient) TagList(ctx context.Context) (*driver.TagListResponse, error) {
	if err := c.session.EnsureLogin(ctx); err != nil {
		return nil, err
	}
	data, err := c.do(ctx, "tag_list", "", http.MethodGet, c.endpoints.TagList(), nil)
	if err != nil {
		return nil, err
	}
	var out driver.TagListResponse
	if err := c.decode("tag_list", "", data, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SubscriptionList returns the feeds the account follows
func (c *GreaderClient) SubscriptionList(ctx context.Context) (*driver.SubscriptionListResponse, error) {
	if err := c.session.EnsureLogin(ctx); err != nil {
		return nil, err
	}
	data, err := c.do(ctx, "subscription_list", "", http.MethodGet, c.endpoints.SubscriptionList(), nil)
	if err != nil {
		return nil, err
	}
	var out driver.SubscriptionListResponse
	if err := c.decode("subscription_list", "", data, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UserInfo returns the account metadata object
func (c *GreaderClient) UserInfo(ctx context.Context) (map[string]any, error) {
	if err := c.session.EnsureLogin(ctx); err != nil {
		return nil, err
	}
	data, err := c.do(ctx, "user_info", "", http.MethodGet, c.endpoints.UserInfo(), nil)
	if err != nil {
		return nil, err
	}
	out := map[string]any{}
	if err := c.decode("user_info", "", data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// EditTags assigns or removes a state stream on messages in batches of
// models.EditTagBatch ids per request
func (c *GreaderClient) EditTags(ctx context.Context, state string, assign bool, ids []string) error {
	if err := c.session.EnsureLogin(ctx); err != nil {
		return err
	}

	verb := "r="
	if assign {
		verb = "a="
	}

	for start := 0; start < len(ids); start += models.EditTagBatch {
		end := min(start+models.EditTagBatch, len(ids))

		parts := make([]string, 0, end-start+2)
		parts = append(parts, verb+state)
		for _, id := range ids[start:end] {
			parts = append(parts, "i="+c.endpoints.encodeID(c.codec.ToRequestForm(id), c.spec.RawItemIDs))
		}
		if c.spec.NeedsEditToken {
			parts = append(parts, "T="+c.session.EditToken())
		}

		if _, err := c.do(ctx, "edit_tag", state, http.MethodPost, c.endpoints.EditTag(), []byte(strings.Join(parts, "&"))); err != nil {
			return err
		}
	}
	return nil
}
