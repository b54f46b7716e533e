package dataset

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Client fetches dataset files by name.
type Client interface {
	Download(ctx context.Context, name string, dst io.Writer) error
}

// HTTPClient downloads files from a base URL, retrying transient failures.
type HTTPClient struct {
	baseURL    string
	attempts   int
	backoff    time.Duration
	httpClient *http.Client
	logger     *slog.Logger
}

func NewHTTPClient(baseURL string, attempts int, logger *slog.Logger) *HTTPClient {
	if attempts < 1 {
		attempts = 1
	}
	return &HTTPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		attempts:   attempts,
		backoff:    2 * time.Second,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		logger:     logger,
	}
}

// errPermanent marks responses that retrying will not fix.
var errPermanent = errors.New("permanent")

func (c *HTTPClient) Download(ctx context.Context, name string, dst io.Writer) error {
	var lastErr error
	for attempt := 1; attempt <= c.attempts; attempt++ {
		body, err := c.fetch(ctx, name)
		if err == nil {
			_, err = dst.Write(body)
			return err
		}
		lastErr = err
		if errors.Is(err, errPermanent) || ctx.Err() != nil {
			break
		}
		if attempt < c.attempts {
			c.logger.Warn("dataset download failed, retrying", "file", name, "attempt", attempt, "error", err)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(attempt) * c.backoff):
			}
		}
	}
	return fmt.Errorf("download %s: %w", name, lastErr)
}

func (c *HTTPClient) fetch(ctx context.Context, name string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+"/"+name, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errPermanent, err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 500 {
		return nil, fmt.Errorf("dataset server: %d", resp.StatusCode)
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("%w: dataset server: %d %s", errPermanent, resp.StatusCode, string(body))
	}
	return body, nil
}

// EnsureFiles downloads any of names missing from dir. Existing files are
// left untouched.
func EnsureFiles(ctx context.Context, c Client, dir string, names ...string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create dataset dir: %w", err)
	}
	for _, name := range names {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			continue
		}
		tmp, err := os.CreateTemp(dir, name+".*.part")
		if err != nil {
			return err
		}
		err = c.Download(ctx, name, tmp)
		if cerr := tmp.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			os.Remove(tmp.Name())
			return err
		}
		if err := os.Rename(tmp.Name(), path); err != nil {
			os.Remove(tmp.Name())
			return err
		}
	}
	return nil
}
