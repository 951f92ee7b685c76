// Package collyfetcher retrieves icon assets over HTTP using gocolly.
package collyfetcher

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"github.com/JakeFAU/iconshelf/internal/icon"
	"github.com/JakeFAU/iconshelf/internal/metrics"
)

const (
	metricsSource  = "http"
	defaultTimeout = 15 * time.Second
)

// Throttle delays requests per host; *ratelimit.Limiter satisfies it.
type Throttle interface {
	Wait(ctx context.Context, rawURL string) error
}

// Config controls collector behavior.
type Config struct {
	// BaseURL is the origin the asset root is served from.
	BaseURL   string
	UserAgent string
	Timeout   time.Duration
	// MaxBodySize caps response bodies in bytes; zero means unlimited.
	MaxBodySize int
}

// Fetcher implements icon.AssetFetcher using the Colly collector.
type Fetcher struct {
	cfg           Config
	base          *url.URL
	throttle      Throttle
	logger        *zap.Logger
	baseCollector *colly.Collector
}

type collectorHooks interface {
	OnResponse(colly.ResponseCallback)
	OnError(colly.ErrorCallback)
}

// Response is a completed HTTP GET.
type Response struct {
	URL        string
	StatusCode int
	Header     http.Header
	Body       []byte
	Duration   time.Duration
}

// New builds a Fetcher. throttle and logger may be nil.
func New(cfg Config, throttle Throttle, logger *zap.Logger) (*Fetcher, error) {
	var base *url.URL
	if cfg.BaseURL != "" {
		parsed, err := url.Parse(cfg.BaseURL)
		if err != nil {
			return nil, fmt.Errorf("parse base url: %w", err)
		}
		if parsed.Scheme == "" || parsed.Host == "" {
			return nil, fmt.Errorf("base url %q must be absolute", cfg.BaseURL)
		}
		base = parsed
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	c := colly.NewCollector(colly.Async(false), colly.AllowURLRevisit())
	c.IgnoreRobotsTxt = true
	c.ParseHTTPErrorResponse = true
	c.MaxBodySize = cfg.MaxBodySize
	c.WithTransport(newHTTPTransport())

	return &Fetcher{
		cfg:           cfg,
		base:          base,
		throttle:      throttle,
		logger:        logger,
		baseCollector: c,
	}, nil
}

// AssetURL resolves rec against the configured base URL.
func (f *Fetcher) AssetURL(rec icon.Record) (string, error) {
	if f.base == nil {
		return "", errors.New("colly fetcher: no base url configured")
	}
	// Uncategorized records carry an empty segment ("icons//x.svg").
	rel := &url.URL{Path: strings.TrimPrefix(path.Clean(rec.RelativePath), "/")}
	resolved := *f.base
	resolved.Path = strings.TrimSuffix(resolved.Path, "/") + "/"
	return resolved.ResolveReference(rel).String(), nil
}

// FetchAsset downloads the SVG for rec. Non-2xx responses become *icon.FetchError.
func (f *Fetcher) FetchAsset(ctx context.Context, rec icon.Record) ([]byte, error) {
	target, err := f.AssetURL(rec)
	if err != nil {
		return nil, &icon.FetchError{Path: rec.RelativePath, Err: err}
	}
	resp, err := f.FetchURL(ctx, target)
	if err != nil {
		return nil, &icon.FetchError{Path: rec.RelativePath, StatusCode: resp.StatusCode, Err: err}
	}
	return resp.Body, nil
}

// FetchURL executes a single HTTP GET. A non-2xx status is returned as an error
// together with the partial response.
func (f *Fetcher) FetchURL(ctx context.Context, rawURL string) (Response, error) {
	if f.throttle != nil {
		if err := f.throttle.Wait(ctx, rawURL); err != nil {
			return Response{}, fmt.Errorf("throttle: %w", err)
		}
	}

	var (
		result   Response
		fetchErr error
	)
	start := time.Now()
	collector := f.buildCollector()
	f.configureCollectorHooks(collector, start, &result, &fetchErr)

	err := f.runCollector(ctx, collector, rawURL, &fetchErr)
	if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
		// The visit goroutine may still write into result.
		metrics.ObserveFetch(metricsSource, metrics.OutcomeError, 0, time.Since(start))
		return Response{}, err
	}
	if err == nil && (result.StatusCode < 200 || result.StatusCode > 299) {
		err = fmt.Errorf("unexpected status %d", result.StatusCode)
	}
	outcome := metrics.OutcomeOK
	if err != nil {
		outcome = metrics.OutcomeError
		f.logger.Debug("asset fetch failed",
			zap.String("url", rawURL),
			zap.Int("status", result.StatusCode),
			zap.Error(err),
		)
	}
	metrics.ObserveFetch(metricsSource, outcome, len(result.Body), time.Since(start))
	return result, err
}

func (f *Fetcher) buildCollector() *colly.Collector {
	collector := f.baseCollector.Clone()
	if f.cfg.UserAgent != "" {
		collector.UserAgent = f.cfg.UserAgent
	}
	collector.IgnoreRobotsTxt = true
	collector.ParseHTTPErrorResponse = true
	collector.MaxBodySize = f.cfg.MaxBodySize
	collector.SetRequestTimeout(f.cfg.Timeout)
	return collector
}

func (f *Fetcher) configureCollectorHooks(
	hooks collectorHooks,
	start time.Time,
	result *Response,
	fetchErr *error,
) {
	hooks.OnResponse(func(r *colly.Response) {
		*result = toResponse(r, start)
	})

	hooks.OnError(func(_ *colly.Response, err error) {
		*fetchErr = err
	})
}

func toResponse(r *colly.Response, start time.Time) Response {
	resp := Response{
		StatusCode: r.StatusCode,
		Body:       append([]byte(nil), r.Body...),
		Duration:   time.Since(start),
	}
	if r.Request != nil && r.Request.URL != nil {
		resp.URL = r.Request.URL.String()
	}
	if r.Headers != nil {
		resp.Header = r.Headers.Clone()
	}
	return resp
}

func (f *Fetcher) runCollector(ctx context.Context, collector *colly.Collector, rawURL string, fetchErr *error) error {
	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(rawURL)
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("colly fetch canceled: %w", ctx.Err())
	case err := <-done:
		if err != nil {
			return fmt.Errorf("colly visit failed: %w", err)
		}
		if *fetchErr != nil {
			return fmt.Errorf("colly response failed: %w", *fetchErr)
		}
		return nil
	}
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   64,
		IdleConnTimeout:       90 * time.Second,
	}
}
