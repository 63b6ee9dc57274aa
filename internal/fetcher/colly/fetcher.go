// Package collyfetcher implements the static product page fetcher using gocolly.
package collyfetcher

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"github.com/JakeFAU/product-copy/internal/product"
	"github.com/JakeFAU/product-copy/internal/urlnorm"
)

// Browser-like defaults sent with every request.
const (
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 " +
		"(KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"
	DefaultAcceptLanguage = "vi-VN,vi;q=0.9,en-US;q=0.8,en;q=0.7"
	defaultAccept         = "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8"
	defaultTimeout        = 10 * time.Second

	// warmUpShare is the divisor of Timeout granted to the homepage visit.
	warmUpShare = 4
)

// Config controls collector behavior.
type Config struct {
	UserAgent      string
	AcceptLanguage string
	// Timeout bounds a whole Fetch, warm-up included.
	Timeout time.Duration
	// SkipWarmUp disables the homepage visit that primes the session cookies.
	SkipWarmUp bool
}

// Fetcher implements product.Fetcher with a fresh Colly collector and cookie
// jar per call, so no session state leaks between requests.
type Fetcher struct {
	cfg       Config
	transport http.RoundTripper
	logger    *zap.Logger
}

type collectorHooks interface {
	OnRequest(colly.RequestCallback)
	OnResponse(colly.ResponseCallback)
	OnError(colly.ErrorCallback)
}

// New builds a Fetcher.
func New(cfg Config, logger *zap.Logger) *Fetcher {
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.AcceptLanguage == "" {
		cfg.AcceptLanguage = DefaultAcceptLanguage
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fetcher{
		cfg:       cfg,
		transport: newHTTPTransport(),
		logger:    logger,
	}
}

// Fetch warms the session on the site's homepage, then retrieves url. The
// whole call, warm-up included, is bounded by cfg.Timeout. The warm-up gets at
// most a quarter of that budget and its failure is not fatal.
func (f *Fetcher) Fetch(ctx context.Context, url product.URL) (product.FetchResult, error) {
	ctx, cancel := context.WithTimeout(ctx, f.cfg.Timeout)
	defer cancel()

	var (
		result   product.FetchResult
		fetchErr error
	)
	jar, err := cookiejar.New(nil)
	if err != nil {
		return product.FetchResult{}, product.NewFetchError(product.ReasonNetworkError, url.String(),
			fmt.Errorf("create cookie jar: %w", err))
	}
	home := urlnorm.HomePage(url)
	if home != "" && !f.cfg.SkipWarmUp {
		f.warmUp(ctx, jar, home)
	}

	collector := f.buildCollector(jar, f.cfg.Timeout)
	collector.OnRequest(func(r *colly.Request) {
		f.setHeaders(r, home)
	})
	start := time.Now()
	f.configureCollectorHooks(collector, url, start, &result, &fetchErr)
	if err := f.runCollector(ctx, collector, url.String(), &fetchErr); err != nil {
		return product.FetchResult{}, err
	}
	return result, nil
}

// warmUp visits home with its own collector so a late homepage response can
// only touch the shared cookie jar, never the page result.
func (f *Fetcher) warmUp(ctx context.Context, jar http.CookieJar, home string) {
	budget := f.cfg.Timeout / warmUpShare
	ctx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()

	collector := f.buildCollector(jar, budget)
	collector.OnRequest(func(r *colly.Request) {
		f.setHeaders(r, home)
	})
	if err := f.runCollector(ctx, collector, home, new(error)); err != nil {
		f.logger.Debug("session warm-up failed", zap.String("home", home), zap.Error(err))
	}
}

func (f *Fetcher) buildCollector(jar http.CookieJar, timeout time.Duration) *colly.Collector {
	collector := colly.NewCollector(
		colly.Async(false),
		colly.UserAgent(f.cfg.UserAgent),
	)
	collector.AllowURLRevisit = true
	collector.ParseHTTPErrorResponse = true
	collector.WithTransport(f.transport)
	collector.SetRequestTimeout(timeout)
	collector.SetCookieJar(jar)
	return collector
}

func (f *Fetcher) configureCollectorHooks(
	hooks collectorHooks,
	url product.URL,
	start time.Time,
	result *product.FetchResult,
	fetchErr *error,
) {
	hooks.OnResponse(func(r *colly.Response) {
		if r.StatusCode < 200 || r.StatusCode > 299 {
			fe := product.NewFetchError(product.ReasonHTTPError, url.String(),
				fmt.Errorf("unexpected status %d", r.StatusCode))
			fe.StatusCode = r.StatusCode
			*fetchErr = fe
			return
		}
		*result = product.FetchResult{
			URL:        url,
			FinalURL:   r.Request.URL.String(),
			Source:     product.SourceStatic,
			StatusCode: r.StatusCode,
			HTML:       append([]byte(nil), r.Body...),
			Duration:   time.Since(start),
		}
	})

	hooks.OnError(func(r *colly.Response, err error) {
		*fetchErr = classify(url.String(), r, err)
	})
}

func (f *Fetcher) runCollector(ctx context.Context, collector *colly.Collector, url string, fetchErr *error) error {
	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(url)
	}()

	select {
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return product.NewFetchError(product.ReasonTimeout, url, ctx.Err())
		}
		return product.NewFetchError(product.ReasonNetworkError, url, ctx.Err())
	case err := <-done:
		if *fetchErr != nil {
			return *fetchErr
		}
		if err != nil {
			return classify(url, nil, err)
		}
		return nil
	}
}

func (f *Fetcher) setHeaders(r *colly.Request, home string) {
	r.Headers.Set("Accept", defaultAccept)
	r.Headers.Set("Accept-Language", f.cfg.AcceptLanguage)
	r.Headers.Set("Upgrade-Insecure-Requests", "1")
	if home == "" || r.URL.String() == home {
		return
	}
	r.Headers.Set("Referer", home)
	r.Headers.Set("Origin", strings.TrimSuffix(home, "/"))
}

func classify(url string, r *colly.Response, err error) *product.FetchError {
	if err == nil {
		err = errors.New("unknown colly error")
	}
	if r != nil && r.StatusCode > 0 {
		fe := product.NewFetchError(product.ReasonHTTPError, url, err)
		fe.StatusCode = r.StatusCode
		return fe
	}
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return product.NewFetchError(product.ReasonTimeout, url, err)
	}
	return product.NewFetchError(product.ReasonNetworkError, url, err)
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		ForceAttemptHTTP2:     true,
	}
}
