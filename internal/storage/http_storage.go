package storage

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ImageFetcher streams the raw bytes of a remote image into dst
type ImageFetcher interface {
	FetchImage(ctx context.Context, imageURL string, dst io.Writer) (int64, error)
}

// ErrTooLarge is returned when a download exceeds the configured limit
var ErrTooLarge = fmt.Errorf("image exceeds size limit")

// HTTPImageFetcher implements ImageFetcher over HTTP(S) with retries
type HTTPImageFetcher struct {
	client   *http.Client
	maxBytes int64
	backoff  time.Duration
}

// HTTPFetcherOption customises an HTTPImageFetcher
type HTTPFetcherOption func(*HTTPImageFetcher)

// WithMaxBytes caps the download size; zero means unlimited
func WithMaxBytes(n int64) HTTPFetcherOption {
	return func(h *HTTPImageFetcher) { h.maxBytes = n }
}

// WithBackoff sets the base delay between retries
func WithBackoff(d time.Duration) HTTPFetcherOption {
	return func(h *HTTPImageFetcher) { h.backoff = d }
}

// NewHTTPImageFetcher creates an HTTP image fetcher with the given overall
// request timeout
func NewHTTPImageFetcher(timeout time.Duration, opts ...HTTPFetcherOption) *HTTPImageFetcher {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	// Connection pooling sized for single image downloads
	transport := &http.Transport{
		MaxIdleConns:        10,
		MaxIdleConnsPerHost: 2,
		IdleConnTimeout:     30 * time.Second,

		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,

		DisableCompression:     false,
		MaxResponseHeaderBytes: 4096,
	}

	h := &HTTPImageFetcher{
		client: &http.Client{
			Transport: transport,
			Timeout:   timeout,

			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 3 {
					return fmt.Errorf("too many redirects (limit: 3)")
				}
				return nil
			},
		},
		backoff: time.Second,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// FetchImage downloads imageURL into dst, retrying transient failures up to
// three times. 4xx responses are not retried.
func (h *HTTPImageFetcher) FetchImage(ctx context.Context, imageURL string, dst io.Writer) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return 0, fmt.Errorf("invalid URL: %w", err)
	}

	// Headers for image downloads
	req.Header.Set("Accept", "image/jpeg, image/png, image/webp, image/gif, image/tiff, image/bmp, */*")
	req.Header.Set("User-Agent", "Image-Forensics/1.0")

	var resp *http.Response
	var lastErr error

	for attempt := 0; attempt < 3; attempt++ {
		resp, err = h.client.Do(req)

		if err != nil {
			lastErr = err
			if ctx.Err() != nil {
				return 0, fmt.Errorf("failed to fetch image: %w", ctx.Err())
			}
		}

		if err == nil && resp.StatusCode == http.StatusOK {
			break
		}

		if err == nil {
			resp.Body.Close()

			// 4xx client errors are non-retryable
			if resp.StatusCode >= 400 && resp.StatusCode < 500 {
				return 0, fmt.Errorf("client error: status code %d", resp.StatusCode)
			}
			lastErr = fmt.Errorf("server error: status code %d", resp.StatusCode)
			resp = nil
		}

		if attempt < 2 {
			select {
			case <-ctx.Done():
				return 0, fmt.Errorf("failed to fetch image: %w", ctx.Err())
			case <-time.After(time.Duration(attempt+1) * h.backoff):
			}
		}
	}

	if resp == nil {
		if lastErr == nil {
			lastErr = fmt.Errorf("unknown error")
		}
		return 0, fmt.Errorf("failed to fetch image after 3 attempts: %w", lastErr)
	}
	defer resp.Body.Close()

	return copyLimited(dst, resp.Body, h.maxBytes)
}

// copyLimited copies src to dst, failing with ErrTooLarge past limit bytes
func copyLimited(dst io.Writer, src io.Reader, limit int64) (int64, error) {
	if limit <= 0 {
		return io.Copy(dst, src)
	}
	n, err := io.Copy(dst, io.LimitReader(src, limit+1))
	if err != nil {
		return n, err
	}
	if n > limit {
		return n, ErrTooLarge
	}
	return n, nil
}
