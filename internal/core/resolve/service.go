// Package resolve turns a social-media page URL into a direct media URL via
// the proxy API. The proxy answers with either structured JSON or an HTML
// page; both shapes are handled here and never leak to callers.
package resolve

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"reelscribe/internal/config"
	"reelscribe/internal/logger"

	"github.com/PuerkitoBio/goquery"
)

var ErrResolutionFailed = errors.New("could not resolve a media URL")

type Options struct {
	Endpoint   string
	Platforms  []config.Platform
	HTTPClient *http.Client
}

type Service struct {
	log       *logger.Logger
	client    *http.Client
	endpoint  string
	platforms []config.Platform
}

func New(opts Options) *Service {
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 2 * time.Minute}
	}
	return &Service{
		log:       logger.New("ResolveService"),
		client:    client,
		endpoint:  opts.Endpoint,
		platforms: opts.Platforms,
	}
}

// Supports reports whether the URL belongs to a configured platform. Matching
// is a host-fragment substring check, same as the input filter in the UI.
func (s *Service) Supports(rawURL string) bool {
	lower := strings.ToLower(rawURL)
	for _, p := range s.platforms {
		for _, host := range p.Hosts {
			if strings.Contains(lower, host) {
				return true
			}
		}
	}
	return false
}

type strategy func(body []byte) (string, bool)

// Resolve calls the proxy and extracts a direct media URL from its response.
func (s *Service) Resolve(ctx context.Context, pageURL string) (string, error) {
	if !s.Supports(pageURL) {
		return "", fmt.Errorf("%w: unsupported platform for %s", ErrResolutionFailed, pageURL)
	}

	endpoint := s.endpoint + "?url=" + url.QueryEscape(pageURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrResolutionFailed, err)
	}
	req.Header.Set("Accept", "application/json, text/html")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: proxy request failed: %v", ErrResolutionFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: proxy returned status %d", ErrResolutionFailed, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return "", fmt.Errorf("%w: reading proxy response: %v", ErrResolutionFailed, err)
	}

	for _, strat := range []strategy{parseStructured, parseMarkup} {
		if mediaURL, ok := strat(body); ok {
			s.log.Debug().Str("page", pageURL).Str("media", mediaURL).Msg("resolved")
			return mediaURL, nil
		}
	}
	return "", fmt.Errorf("%w: no parsable media location in proxy response", ErrResolutionFailed)
}

// mediaURLFields are the keys proxies use for the direct download link,
// probed in order.
var mediaURLFields = []string{"videoUrl", "video_url", "downloadUrl", "download_url", "videoPlayUrl", "url"}

// parseStructured handles the JSON response shape: either a single object or
// a list of result items carrying a media URL under one of the known keys.
func parseStructured(body []byte) (string, bool) {
	var item map[string]interface{}
	if err := json.Unmarshal(body, &item); err == nil {
		return probeItem(item)
	}
	var items []map[string]interface{}
	if err := json.Unmarshal(body, &items); err == nil && len(items) > 0 {
		return probeItem(items[0])
	}
	return "", false
}

func probeItem(item map[string]interface{}) (string, bool) {
	for _, field := range mediaURLFields {
		if val, ok := item[field].(string); ok && isMediaURL(val) {
			return val, true
		}
	}
	// Some proxies nest results under "data" or a "medias" list.
	if data, ok := item["data"].(map[string]interface{}); ok {
		if u, ok := probeItem(data); ok {
			return u, true
		}
	}
	if medias, ok := item["medias"].([]interface{}); ok {
		for _, m := range medias {
			if mm, ok := m.(map[string]interface{}); ok {
				if u, ok := probeItem(mm); ok {
					return u, true
				}
			}
		}
	}
	return "", false
}

// parseMarkup handles the HTML response shape: a download page whose media
// link sits in a video tag, an og:video meta, or a download anchor.
func parseMarkup(body []byte) (string, bool) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(body)))
	if err != nil {
		return "", false
	}

	if src, ok := doc.Find("video source[src]").First().Attr("src"); ok && isMediaURL(src) {
		return src, true
	}
	if src, ok := doc.Find("video[src]").First().Attr("src"); ok && isMediaURL(src) {
		return src, true
	}
	if content, ok := doc.Find(`meta[property="og:video"]`).First().Attr("content"); ok && isMediaURL(content) {
		return content, true
	}

	found := ""
	doc.Find("a[href]").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		href, _ := sel.Attr("href")
		if isMediaURL(href) && strings.Contains(strings.ToLower(href), ".mp4") {
			found = href
			return false
		}
		return true
	})
	return found, found != ""
}

func isMediaURL(v string) bool {
	return strings.HasPrefix(v, "http://") || strings.HasPrefix(v, "https://")
}
