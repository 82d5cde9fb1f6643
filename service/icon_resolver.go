//go:generate mockgen -source=icon_resolver.go -destination=../mocks/icon_resolver_mock.go -package=mocks IconResolver

// ABOUTME: Resolves feed icons from direct images, HTML pages and feed documents
// ABOUTME: Falls back to the site's favicon.ico when no candidate yields an icon

package service

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"

	"greader-sync/driver"
	"greader-sync/models"
	"greader-sync/utils"
)

// ErrNoIcon is returned when no candidate produced an image
var ErrNoIcon = errors.New("no icon candidate succeeded")

// IconResolver downloads a feed icon from an ordered candidate list
type IconResolver interface {
	Resolve(ctx context.Context, candidates []models.IconCandidate) ([]byte, error)
}

// HTTPIconResolver fetches icons directly or discovers them from a web page
type HTTPIconResolver struct {
	transport driver.Transport
	timeout   time.Duration
	logger    *slog.Logger
}

// NewHTTPIconResolver creates a resolver; timeout applies to every single download
func NewHTTPIconResolver(transport driver.Transport, timeout time.Duration, logger *slog.Logger) *HTTPIconResolver {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = time.Second
	}
	return &HTTPIconResolver{transport: transport, timeout: timeout, logger: logger}
}

// Resolve returns the first icon that downloads successfully
func (r *HTTPIconResolver) Resolve(ctx context.Context, candidates []models.IconCandidate) ([]byte, error) {
	for _, candidate := range candidates {
		if candidate.URL == "" {
			continue
		}

		var (
			icon []byte
			err  error
		)
		if candidate.Direct {
			icon, err = r.fetchImage(ctx, candidate.URL)
		} else {
			icon, err = r.discover(ctx, candidate.URL)
		}
		if err == nil {
			return icon, nil
		}
		r.logger.Debug("icon candidate failed", "url", candidate.URL, "direct", candidate.Direct, "error", err)
	}
	return nil, ErrNoIcon
}

func (r *HTTPIconResolver) get(ctx context.Context, url string) (*driver.Response, error) {
	resp, err := r.transport.PerformRequest(ctx, &driver.Request{URL: url, Method: http.MethodGet, Timeout: r.timeout})
	if err != nil {
		return nil, err
	}
	if !resp.OK() || len(resp.Body) == 0 {
		return nil, ErrNoIcon
	}
	return resp, nil
}

func (r *HTTPIconResolver) fetchImage(ctx context.Context, url string) ([]byte, error) {
	resp, err := r.get(ctx, url)
	if err != nil {
		return nil, err
	}
	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = http.DetectContentType(resp.Body)
	}
	if !strings.HasPrefix(contentType, "image/") && !isICO(resp.Body) {
		return nil, ErrNoIcon
	}
	return resp.Body, nil
}

// discover reads <link rel="icon"> style tags from a web page and falls back to
// /favicon.ico. When the URL serves a feed instead of a page, the feed's image
// and its site link are tried.
func (r *HTTPIconResolver) discover(ctx context.Context, pageURL string) ([]byte, error) {
	var hrefs []string

	if resp, err := r.get(ctx, pageURL); err == nil {
		if gofeed.DetectFeedType(bytes.NewReader(resp.Body)) != gofeed.FeedTypeUnknown {
			site, images := feedHints(pageURL, resp.Body)
			hrefs = append(hrefs, images...)
			if site != "" {
				if page, err := r.get(ctx, site); err == nil {
					hrefs = append(hrefs, iconLinks(site, page.Body)...)
				}
				pageURL = site
			}
		} else {
			hrefs = append(hrefs, iconLinks(pageURL, resp.Body)...)
		}
	}

	if root := utils.SiteRoot(pageURL); root != "" {
		hrefs = append(hrefs, root+"favicon.ico")
	}

	for _, href := range hrefs {
		if icon, err := r.fetchImage(ctx, href); err == nil {
			return icon, nil
		}
	}
	return nil, ErrNoIcon
}

// iconLinks returns the resolved href of every icon link tag on an HTML page
func iconLinks(pageURL string, body []byte) []string {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil
	}
	var hrefs []string
	doc.Find("link[rel][href]").Each(func(_ int, s *goquery.Selection) {
		rel := strings.ToLower(s.AttrOr("rel", ""))
		if !strings.Contains(rel, "icon") {
			return
		}
		if resolved, err := utils.ResolveURL(pageURL, s.AttrOr("href", "")); err == nil {
			hrefs = append(hrefs, resolved)
		}
	})
	return hrefs
}

// feedHints extracts the site link and image of an RSS, Atom or JSON feed
func feedHints(feedURL string, body []byte) (site string, images []string) {
	feed, err := gofeed.NewParser().Parse(bytes.NewReader(body))
	if err != nil {
		return "", nil
	}
	if feed.Image != nil && feed.Image.URL != "" {
		if resolved, err := utils.ResolveURL(feedURL, feed.Image.URL); err == nil {
			images = append(images, resolved)
		}
	}
	if feed.Link != "" {
		if resolved, err := utils.ResolveURL(feedURL, feed.Link); err == nil && resolved != feedURL {
			site = resolved
		}
	}
	return site, images
}

func isICO(data []byte) bool {
	return len(data) >= 4 && data[0] == 0 && data[1] == 0 && data[2] == 1 && data[3] == 0
}
