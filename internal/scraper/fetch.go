package scraper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"kultuurivoog/internal/config"
)

// ErrBlocked matches a *StatusError whose final status was 403 or 429.
var ErrBlocked = errors.New("scraper: blocked by source")

type StatusError struct {
	Status int
	URL    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("scraper: GET %s: http %d", e.URL, e.Status)
}

func (e *StatusError) Is(target error) bool {
	return target == ErrBlocked && isBlockStatus(e.Status)
}

const maxBodyBytes = 8 << 20

// Page is a successfully fetched document.
type Page struct {
	URL    *url.URL
	Status int
	Body   []byte
}

// Fetcher performs paced GET requests with browser-like headers and
// retries 403, 429, 5xx and transport failures with doubling backoff.
type Fetcher struct {
	Client         *http.Client
	Limiter        *rate.Limiter
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	UserAgent      string
	AcceptLanguage string
	Logger         *zap.Logger
}

func NewFetcher(cfg config.FetchConfig, logger *zap.Logger) *Fetcher {
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	return &Fetcher{
		Client:         newHTTPClient(cfg.Timeout),
		Limiter:        rate.NewLimiter(limit, 1),
		MaxAttempts:    cfg.MaxAttempts,
		InitialBackoff: cfg.InitialBackoff,
		MaxBackoff:     cfg.MaxBackoff,
		UserAgent:      cfg.UserAgent,
		AcceptLanguage: cfg.AcceptLanguage,
		Logger:         logger,
	}
}

func newHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	tr := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		DialContext:         (&net.Dialer{Timeout: 5 * time.Second, KeepAlive: 60 * time.Second}).DialContext,
		MaxIdleConns:        20,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 5 * time.Second,
	}
	return &http.Client{Timeout: timeout, Transport: tr}
}

// Get fetches target. The last failure is returned as a *StatusError for
// HTTP errors or the transport error otherwise.
func (f *Fetcher) Get(ctx context.Context, target, referer string) (*Page, error) {
	attempts := f.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	backoff := f.InitialBackoff
	if backoff <= 0 {
		backoff = 2 * time.Second
	}

	var lastErr error
	for i := 0; i < attempts; i++ {
		if i > 0 {
			if f.Logger != nil {
				f.Logger.Info("retrying fetch",
					zap.String("url", target),
					zap.Int("attempt", i+1),
					zap.Duration("backoff", backoff),
					zap.Error(lastErr),
				)
			}
			timer := time.NewTimer(backoff)
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
				return nil, ctx.Err()
			}
			backoff *= 2
			if f.MaxBackoff > 0 && backoff > f.MaxBackoff {
				backoff = f.MaxBackoff
			}
		}

		page, err := f.do(ctx, target, referer)
		if err == nil {
			return page, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if !retryable(err) {
			return nil, err
		}
	}
	return nil, lastErr
}

func (f *Fetcher) do(ctx context.Context, target, referer string) (*Page, error) {
	if f.Limiter != nil {
		if err := f.Limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	f.setHeaders(req, referer)

	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		return nil, &StatusError{Status: resp.StatusCode, URL: target}
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, err
	}
	return &Page{URL: resp.Request.URL, Status: resp.StatusCode, Body: body}, nil
}

// Accept-Encoding is left to the transport so gzip is decoded transparently.
func (f *Fetcher) setHeaders(req *http.Request, referer string) {
	ua := strings.TrimSpace(f.UserAgent)
	if ua == "" {
		ua = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	}
	lang := strings.TrimSpace(f.AcceptLanguage)
	if lang == "" {
		lang = "et-EE,et;q=0.9,en-US;q=0.8,en;q=0.7"
	}
	req.Header.Set("User-Agent", ua)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8")
	req.Header.Set("Accept-Language", lang)
	req.Header.Set("Upgrade-Insecure-Requests", "1")
	req.Header.Set("Sec-Fetch-Mode", "navigate")
	req.Header.Set("Sec-Fetch-Dest", "document")
	req.Header.Set("DNT", "1")
	if referer != "" {
		req.Header.Set("Referer", referer)
		req.Header.Set("Sec-Fetch-Site", "same-origin")
	} else {
		req.Header.Set("Sec-Fetch-Site", "none")
	}
}

func retryable(err error) bool {
	var se *StatusError
	if errors.As(err, &se) {
		return isBlockStatus(se.Status) || se.Status >= 500
	}
	// Transport failures from client.Do are *url.Error; a malformed target
	// fails in NewRequest with Op "parse" and is not worth repeating.
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return urlErr.Op != "parse"
	}
	return false
}

func isBlockStatus(status int) bool {
	return status == http.StatusForbidden || status == http.StatusTooManyRequests
}
