// Package linkpreview extracts title, description and image metadata from
// shared web pages.
package linkpreview

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gregjones/httpcache"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/ericfisherdev/leadinbox/internal/domain/model"
	"github.com/ericfisherdev/leadinbox/internal/domain/port/driven"
)

var _ driven.LinkPreviewer = (*Fetcher)(nil)

const (
	// maxDocument bounds how much of a page is parsed; metadata lives in <head>.
	maxDocument = 512 << 10
	userAgent   = "leadinbox-linkpreview/1.0"
)

// Fetcher fetches pages through an in-memory HTTP cache so links shared
// repeatedly in a conversation are only downloaded once per freshness window.
type Fetcher struct {
	httpClient *http.Client
	timeout    time.Duration
	logger     *slog.Logger
}

// NewFetcher creates a Fetcher whose requests are bounded by timeout.
func NewFetcher(timeout time.Duration, logger *slog.Logger) *Fetcher {
	return NewFetcherWithHTTPClient(&http.Client{Transport: httpcache.NewMemoryCacheTransport()}, timeout, logger)
}

// NewFetcherWithHTTPClient creates a Fetcher on an existing client.
func NewFetcherWithHTTPClient(hc *http.Client, timeout time.Duration, logger *slog.Logger) *Fetcher {
	return &Fetcher{httpClient: hc, timeout: timeout, logger: logger}
}

// Preview returns the page metadata for rawURL. Only a malformed URL is an
// error; every upstream failure degrades to a domain-only fallback preview.
func (f *Fetcher) Preview(ctx context.Context, rawURL string) (model.LinkPreview, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return model.LinkPreview{}, fmt.Errorf("invalid url %q", rawURL)
	}

	preview, err := f.fetch(ctx, u)
	if err != nil {
		f.logger.Debug("link preview fallback", "url", u.String(), "error", err)
		return fallback(u), nil
	}
	return preview, nil
}

func (f *Fetcher) fetch(ctx context.Context, u *url.URL) (model.LinkPreview, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return model.LinkPreview{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return model.LinkPreview{}, fmt.Errorf("fetch page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return model.LinkPreview{}, fmt.Errorf("fetch page: status %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "" {
		mediaType, _, _ := mime.ParseMediaType(ct)
		if mediaType != "text/html" && mediaType != "application/xhtml+xml" {
			return model.LinkPreview{}, fmt.Errorf("fetch page: unsupported content type %q", mediaType)
		}
	}

	// The final URL after redirects is the base for relative image paths.
	base := u
	if resp.Request != nil && resp.Request.URL != nil {
		base = resp.Request.URL
	}

	// Reading to EOF lets the cache transport store the response.
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxDocument))
	if err != nil {
		return model.LinkPreview{}, fmt.Errorf("read page: %w", err)
	}

	meta := parseHead(bytes.NewReader(body))
	preview := model.LinkPreview{
		URL:         u.String(),
		Domain:      domainOf(u),
		Title:       firstNonEmpty(meta["og:title"], meta["twitter:title"], meta["title"]),
		Description: firstNonEmpty(meta["og:description"], meta["twitter:description"], meta["description"]),
		Image:       resolve(base, firstNonEmpty(meta["og:image"], meta["twitter:image"])),
	}
	if preview.Title == "" {
		preview.Title = preview.Domain
	}
	return preview, nil
}

// parseHead collects <title> and <meta> values until </head> or <body>.
func parseHead(r io.Reader) map[string]string {
	meta := make(map[string]string)
	z := html.NewTokenizer(r)
	inTitle := false

	for {
		switch z.Next() {
		case html.ErrorToken:
			return meta
		case html.StartTagToken, html.SelfClosingTagToken:
			tok := z.Token()
			switch tok.DataAtom {
			case atom.Title:
				inTitle = true
			case atom.Meta:
				collectMeta(tok, meta)
			case atom.Body:
				return meta
			}
		case html.TextToken:
			if inTitle {
				if _, ok := meta["title"]; !ok {
					meta["title"] = strings.TrimSpace(string(z.Text()))
				}
			}
		case html.EndTagToken:
			tok := z.Token()
			switch tok.DataAtom {
			case atom.Title:
				inTitle = false
			case atom.Head:
				return meta
			}
		}
	}
}

func collectMeta(tok html.Token, meta map[string]string) {
	var key, content string
	for _, attr := range tok.Attr {
		switch strings.ToLower(attr.Key) {
		case "property", "name":
			if key == "" {
				key = strings.ToLower(strings.TrimSpace(attr.Val))
			}
		case "content":
			content = strings.TrimSpace(attr.Val)
		}
	}
	if key == "" || content == "" {
		return
	}
	if _, ok := meta[key]; !ok {
		meta[key] = content
	}
}

func fallback(u *url.URL) model.LinkPreview {
	domain := domainOf(u)
	return model.LinkPreview{URL: u.String(), Domain: domain, Title: domain, Fallback: true}
}

func domainOf(u *url.URL) string {
	return strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
}

func resolve(base *url.URL, ref string) string {
	if ref == "" {
		return ""
	}
	r, err := url.Parse(ref)
	if err != nil {
		return ""
	}
	return base.ResolveReference(r).String()
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
