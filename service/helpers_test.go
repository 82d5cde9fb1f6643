package service

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"greader-sync/driver"
	"greader-sync/models"
)

const testBaseURL = "https://rss.example.com"

type routeHandler func(req *driver.Request) (*driver.Response, error)

type route struct {
	match   string
	handler routeHandler
}

// scriptedTransport answers requests from the route whose match string is the
// longest substring of the request URL
type scriptedTransport struct {
	mu       sync.Mutex
	routes   []route
	requests []*driver.Request
}

func newScriptedTransport() *scriptedTransport {
	return &scriptedTransport{}
}

func (s *scriptedTransport) handle(match string, handler routeHandler) *scriptedTransport {
	s.routes = append(s.routes, route{match: match, handler: handler})
	return s
}

func (s *scriptedTransport) reply(match string, status int, body string) *scriptedTransport {
	return s.handle(match, func(*driver.Request) (*driver.Response, error) {
		return &driver.Response{StatusCode: status, Body: []byte(body), Header: http.Header{}}, nil
	})
}

func (s *scriptedTransport) fail(match string, err error) *scriptedTransport {
	return s.handle(match, func(*driver.Request) (*driver.Response, error) {
		return nil, err
	})
}

func (s *scriptedTransport) PerformRequest(_ context.Context, req *driver.Request) (*driver.Response, error) {
	s.mu.Lock()
	s.requests = append(s.requests, req)
	var best *route
	for i := range s.routes {
		r := &s.routes[i]
		if strings.Contains(req.URL, r.match) && (best == nil || len(r.match) > len(best.match)) {
			best = r
		}
	}
	s.mu.Unlock()

	if best == nil {
		return &driver.Response{StatusCode: http.StatusNotFound, Header: http.Header{}}, nil
	}
	return best.handler(req)
}

func (s *scriptedTransport) requestsTo(fragment string) []*driver.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*driver.Request
	for _, r := range s.requests {
		if strings.Contains(r.URL, fragment) {
			out = append(out, r)
		}
	}
	return out
}

// idsRoute returns the URL fragment of an item-ids listing for a stream
func idsRoute(stream string, unreadOnly bool) string {
	u := fmt.Sprintf("stream/items/ids?output=json&s=%s&n=%d", percentEncode(stream), models.ItemIDsMaxPerPage)
	if unreadOnly {
		u += "&xt=" + StreamRead
	}
	return u
}

func itemIDsBody(ids ...string) string {
	refs := make([]map[string]string, 0, len(ids))
	for _, id := range ids {
		refs = append(refs, map[string]string{"id": id})
	}
	data, _ := json.Marshal(map[string]any{"itemRefs": refs})
	return string(data)
}

func itemJSON(id, feedID string, categories ...string) map[string]any {
	return map[string]any{
		"id":         id,
		"title":      "Title " + id,
		"author":     "Author",
		"published":  1700000000,
		"categories": categories,
		"alternate":  []map[string]string{{"href": "https://example.com/" + id, "type": "text/html"}},
		"summary":    map[string]string{"content": "<p>body</p>"},
		"origin":     map[string]string{"streamId": feedID},
	}
}

// contentsHandler serves item-contents requests from a catalogue of id -> feed id
func contentsHandler(t *testing.T, catalogue map[string]string, batches *[][]string) routeHandler {
	return func(req *driver.Request) (*driver.Response, error) {
		values, err := url.ParseQuery(string(req.Body))
		require.NoError(t, err)

		ids := values["i"]
		if batches != nil {
			*batches = append(*batches, ids)
		}
		items := make([]map[string]any, 0, len(ids))
		for _, id := range ids {
			if feed, ok := catalogue[id]; ok {
				items = append(items, itemJSON(id, feed))
			}
		}
		data, _ := json.Marshal(map[string]any{"items": items})
		return &driver.Response{StatusCode: http.StatusOK, Body: data, Header: http.Header{}}, nil
	}
}

func longID(n int) string {
	return fmt.Sprintf("%s%016x", LongIDPrefix, n)
}

func newTestClient(spec models.ProviderSpec, transport driver.Transport, tokens TokenProvider) *GreaderClient {
	cfg := AuthSessionConfig{Spec: spec, BaseURL: testBaseURL, Username: "user", Password: "pass"}
	session := NewAuthSession(cfg, transport, tokens, nil)
	return NewGreaderClient(cfg, session, transport, nil)
}

// loggedInTransport answers ClientLogin so credential providers log in
func loggedInTransport() *scriptedTransport {
	return newScriptedTransport().reply(pathClientLogin, http.StatusOK, "SID=sid\nLSID=lsid\nAuth=auth-token\n")
}
