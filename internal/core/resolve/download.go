package resolve

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"reelscribe/internal/logger"
)

var ErrFetchFailed = errors.New("failed to download media")

// Downloader retrieves the bytes behind a resolved media URL.
type Downloader struct {
	log      *logger.Logger
	client   *http.Client
	maxBytes int64
}

func NewDownloader(maxBytes int64, client *http.Client) *Downloader {
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Minute}
	}
	return &Downloader{log: logger.New("MediaDownloader"), client: client, maxBytes: maxBytes}
}

// Fetch downloads the media payload. Reads are capped slightly above the
// transcription upload limit so oversize media still classifies as too large
// downstream instead of truncating silently.
func (d *Downloader) Fetch(ctx context.Context, mediaURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, mediaURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrFetchFailed, resp.StatusCode)
	}

	limit := d.maxBytes + 1
	if d.maxBytes <= 0 {
		limit = 256 << 20
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, limit))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}
	d.log.Debug().Str("url", mediaURL).Int("bytes", len(data)).Msg("media fetched")
	return data, nil
}
