package installer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/outranker/qrimzn-bridge/internal/logging"
)

const (
	// DefaultTimeout bounds a single download attempt including redirects.
	DefaultTimeout = 5 * time.Minute
	// DefaultUserAgent is sent with every request.
	DefaultUserAgent = "qrimzn-bridge/1.0"
	// maxSmallBody caps documents read fully into memory, such as checksums.txt.
	maxSmallBody = 1 << 20
)

var (
	ErrTooManyRedirects = errors.New("too many redirects")
	ErrMissingLocation  = errors.New("redirect without Location header")
)

// StatusError is a final response that is neither a success nor a redirect.
type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: unexpected status %d %s", e.URL, e.Code, http.StatusText(e.Code))
}

// Fetcher downloads over HTTP, following redirects itself up to a fixed
// number of hops.
type Fetcher struct {
	client       *http.Client
	maxRedirects int
	retries      int
	backoff      time.Duration
	userAgent    string
	log          logrus.FieldLogger
}

// NewFetcher creates a Fetcher. client may be nil.
func NewFetcher(client *http.Client, maxRedirects, retries int, log logrus.FieldLogger) *Fetcher {
	if client == nil {
		client = &http.Client{Timeout: DefaultTimeout}
	}
	// Redirects are handled by resolve so the hop limit is ours.
	c := *client
	c.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}
	return &Fetcher{
		client:       &c,
		maxRedirects: maxRedirects,
		retries:      retries,
		backoff:      time.Second,
		userAgent:    DefaultUserAgent,
		log:          logging.OrDiscard(log),
	}
}

// resolve issues GET requests along the redirect chain and returns the first
// 200 response together with the URL that produced it.
func (f *Fetcher) resolve(ctx context.Context, rawURL string) (*http.Response, string, error) {
	current := rawURL
	for hop := 0; ; hop++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, current, nil)
		if err != nil {
			return nil, "", fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("User-Agent", f.userAgent)

		resp, err := f.client.Do(req)
		if err != nil {
			return nil, "", fmt.Errorf("GET %s: %w", current, err)
		}

		switch resp.StatusCode {
		case http.StatusOK:
			return resp, current, nil
		case http.StatusMovedPermanently, http.StatusFound, http.StatusSeeOther,
			http.StatusTemporaryRedirect, http.StatusPermanentRedirect:
			loc := resp.Header.Get("Location")
			resp.Body.Close()
			if loc == "" {
				return nil, "", fmt.Errorf("%w: %s returned %d", ErrMissingLocation, current, resp.StatusCode)
			}
			if hop >= f.maxRedirects {
				return nil, "", fmt.Errorf("%w: more than %d following %s", ErrTooManyRedirects, f.maxRedirects, rawURL)
			}
			next, err := resolveLocation(current, loc)
			if err != nil {
				return nil, "", err
			}
			f.log.WithFields(logrus.Fields{"hop": hop + 1, "url": next}).Debug("following redirect")
			current = next
		default:
			resp.Body.Close()
			return nil, "", &StatusError{URL: current, Code: resp.StatusCode}
		}
	}
}

// resolveLocation interprets a Location header relative to the URL that sent it.
func resolveLocation(base, loc string) (string, error) {
	b, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse url %s: %w", base, err)
	}
	l, err := url.Parse(loc)
	if err != nil {
		return "", fmt.Errorf("parse redirect location %q: %w", loc, err)
	}
	return b.ResolveReference(l).String(), nil
}

// DownloadToFile writes the body at rawURL to destPath and returns its hex
// SHA256. The file appears only after a complete transfer.
func (f *Fetcher) DownloadToFile(ctx context.Context, rawURL, destPath string) (string, error) {
	var lastErr error

	for attempt := 0; attempt <= f.retries; attempt++ {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}

		if attempt > 0 {
			// Exponential backoff: 1s, 2s, 4s
			wait := f.backoff << uint(attempt-1)
			f.log.WithFields(logrus.Fields{"url": rawURL, "attempt": attempt + 1}).
				WithError(lastErr).Warn("retrying download")
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}

		sum, err := f.downloadOnce(ctx, rawURL, destPath)
		if err == nil {
			return sum, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		if !retryable(err) {
			return "", err
		}
	}

	return "", fmt.Errorf("download failed after %d retries: %w", f.retries, lastErr)
}

func (f *Fetcher) downloadOnce(ctx context.Context, rawURL, destPath string) (string, error) {
	resp, final, err := f.resolve(ctx, rawURL)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if err := os.MkdirAll(filepath.Dir(destPath), 0755); err != nil {
		return "", fmt.Errorf("create dest dir: %w", err)
	}

	tmpPath := destPath + ".tmp"
	tmpFile, err := os.Create(tmpPath)
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	cleanupNeeded := true
	defer func() {
		tmpFile.Close()
		if cleanupNeeded {
			os.Remove(tmpPath)
		}
	}()

	h := sha256.New()
	n, err := io.Copy(io.MultiWriter(tmpFile, h), resp.Body)
	if err != nil {
		return "", fmt.Errorf("copy response body from %s: %w", final, err)
	}
	if err := tmpFile.Close(); err != nil {
		return "", fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, destPath); err != nil {
		return "", fmt.Errorf("rename temp file: %w", err)
	}
	cleanupNeeded = false

	f.log.WithFields(logrus.Fields{"url": final, "bytes": n}).Debug("downloaded")
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Fetch returns a small document, such as a checksum list, in full.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	resp, _, err := f.resolve(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxSmallBody+1))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rawURL, err)
	}
	if len(data) > maxSmallBody {
		return nil, fmt.Errorf("read %s: body exceeds %d bytes", rawURL, maxSmallBody)
	}
	return data, nil
}

// retryable reports whether another attempt could succeed.
func retryable(err error) bool {
	if errors.Is(err, ErrTooManyRedirects) || errors.Is(err, ErrMissingLocation) {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) && se.Code >= 400 && se.Code < 500 {
		return false
	}
	return true
}
