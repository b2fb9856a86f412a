package media

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/avast/retry-go"
	"go.uber.org/zap"
)

const userAgent = "TheLedLead/1.0"

// Fetcher downloads remote cover images, retrying transient failures.
type Fetcher struct {
	httpClient *http.Client
	maxBytes   int64
	attempts   uint
	delay      time.Duration
}

// NewFetcher creates a fetcher that accepts images up to maxBytes.
func NewFetcher(maxBytes int64) *Fetcher {
	return &Fetcher{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		maxBytes: maxBytes,
		attempts: 3,
		delay:    time.Second,
	}
}

// FetchImage downloads and validates the image at rawURL. Network errors,
// 429 and 5xx responses are retried; anything else fails immediately.
func (f *Fetcher) FetchImage(ctx context.Context, rawURL string) (*Image, error) {
	var img *Image
	err := retry.Do(
		func() error {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
			if err != nil {
				return retry.Unrecoverable(err)
			}
			req.Header.Set("User-Agent", userAgent)

			resp, err := f.httpClient.Do(req)
			if err != nil {
				return err
			}
			defer resp.Body.Close()

			switch {
			case resp.StatusCode == http.StatusTooManyRequests, resp.StatusCode >= 500:
				return fmt.Errorf("fetch cover: status %d", resp.StatusCode)
			case resp.StatusCode != http.StatusOK:
				return retry.Unrecoverable(fmt.Errorf("fetch cover: status %d", resp.StatusCode))
			}

			img, err = ReadImage(resp.Body, f.maxBytes)
			if err != nil {
				return retry.Unrecoverable(err)
			}
			return nil
		},
		retry.Attempts(f.attempts),
		retry.Delay(f.delay),
		retry.Context(ctx),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			zap.L().Warn("cover fetch failed",
				zap.String("url", rawURL),
				zap.Uint("attempt", n+1),
				zap.Error(err))
		}),
	)
	if err != nil {
		return nil, err
	}
	return img, nil
}
