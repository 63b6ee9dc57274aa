// Package headless contains the dynamic product page fetcher, which renders
// pages in a headless Chrome driven by chromedp.
package headless

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/JakeFAU/product-copy/internal/product"
	"github.com/JakeFAU/product-copy/internal/wait"
)

// DefaultUserAgent is the fixed User-Agent the browser presents.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 " +
	"(KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"

const (
	defaultSettleDelay       = 2 * time.Second
	defaultProbeTimeout      = 10 * time.Second
	defaultProbeInterval     = 200 * time.Millisecond
	defaultNavigationTimeout = 45 * time.Second
)

// Config controls the behavior of the headless fetcher.
type Config struct {
	UserAgent         string
	ExecPath          string
	NoSandbox         bool
	SettleDelay       time.Duration
	ProbeTimeout      time.Duration
	ProbeInterval     time.Duration
	NavigationTimeout time.Duration
	// ProbeSelectors are the elements whose presence marks a rendered product page.
	ProbeSelectors []string
}

// Fetcher implements product.Fetcher. Every Fetch launches and tears down its
// own browser process; nothing is shared between calls.
type Fetcher struct {
	cfg    Config
	opts   []chromedp.ExecAllocatorOption
	logger *zap.Logger
}

// NewChromedp creates a headless fetcher backed by chromedp.
func NewChromedp(cfg Config, logger *zap.Logger) (*Fetcher, error) {
	if cfg.SettleDelay < 0 || cfg.ProbeTimeout < 0 || cfg.NavigationTimeout < 0 {
		return nil, fmt.Errorf("headless durations must be >= 0")
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.SettleDelay == 0 {
		cfg.SettleDelay = defaultSettleDelay
	}
	if cfg.ProbeTimeout == 0 {
		cfg.ProbeTimeout = defaultProbeTimeout
	}
	if cfg.ProbeInterval <= 0 {
		cfg.ProbeInterval = defaultProbeInterval
	}
	if cfg.NavigationTimeout == 0 {
		cfg.NavigationTimeout = defaultNavigationTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("hide-scrollbars", true),
		chromedp.Flag("enable-automation", false),
		chromedp.UserAgent(cfg.UserAgent),
	)
	if cfg.NoSandbox {
		opts = append(opts, chromedp.NoSandbox)
	}
	if cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(cfg.ExecPath))
	}

	return &Fetcher{
		cfg:    cfg,
		opts:   opts,
		logger: logger,
	}, nil
}

// Fetch renders url in a fresh browser and returns the resulting DOM.
func (f *Fetcher) Fetch(ctx context.Context, url product.URL) (product.FetchResult, error) {
	start := time.Now()

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, f.opts...)
	defer allocCancel()
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)
	defer browserCancel()
	taskCtx, cancel := context.WithTimeout(browserCtx, f.cfg.NavigationTimeout)
	defer cancel()

	meta := newResponseMeta()
	chromedp.ListenTarget(taskCtx, meta.captureEvent)

	if err := chromedp.Run(taskCtx, f.navigateAction(url)); err != nil {
		return product.FetchResult{}, classify(url, "navigate", err)
	}
	if err := f.probe(taskCtx, []string{"body"}); err != nil {
		return product.FetchResult{}, classify(url, "wait for body", err)
	}
	// The only unconditional delay: lets client-side rendering settle.
	if err := chromedp.Run(taskCtx, chromedp.Sleep(f.cfg.SettleDelay)); err != nil {
		return product.FetchResult{}, classify(url, "settle", err)
	}
	if len(f.cfg.ProbeSelectors) > 0 {
		if err := f.probe(taskCtx, f.cfg.ProbeSelectors); err != nil {
			if ctxErr := taskCtx.Err(); ctxErr != nil {
				return product.FetchResult{}, classify(url, "probe", ctxErr)
			}
			f.logger.Info("expected product elements not rendered",
				zap.String("url", url.String()),
				zap.Strings("selectors", f.cfg.ProbeSelectors),
				zap.Error(err),
			)
		}
	}

	var html, location string
	if err := chromedp.Run(taskCtx,
		chromedp.Location(&location),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	); err != nil {
		return product.FetchResult{}, classify(url, "read document", err)
	}

	status, finalURL := meta.snapshotWithFallbacks(url.String(), location)
	if status >= http.StatusBadRequest {
		fe := product.NewFetchError(product.ReasonHTTPError, url.String(), fmt.Errorf("document status %d", status))
		fe.StatusCode = status
		return product.FetchResult{}, fe
	}

	return product.FetchResult{
		URL:        url,
		FinalURL:   finalURL,
		Source:     product.SourceDynamic,
		StatusCode: status,
		HTML:       []byte(html),
		Duration:   time.Since(start),
	}, nil
}

func (f *Fetcher) navigateAction(url product.URL) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		if err := network.Enable().Do(ctx); err != nil {
			return fmt.Errorf("enable network domain: %w", err)
		}
		if err := emulation.SetUserAgentOverride(f.cfg.UserAgent).Do(ctx); err != nil {
			return fmt.Errorf("set user-agent: %w", err)
		}
		if err := chromedp.Navigate(url.String()).Do(ctx); err != nil {
			return fmt.Errorf("navigate: %w", err)
		}
		return nil
	})
}

// probe waits, bounded by ProbeTimeout, until any selector matches an element.
func (f *Fetcher) probe(ctx context.Context, selectors []string) error {
	script, err := presenceScript(selectors)
	if err != nil {
		return err
	}
	return wait.Until(ctx, f.cfg.ProbeTimeout, f.cfg.ProbeInterval, func(ctx context.Context) (bool, error) {
		var found bool
		if err := chromedp.Run(ctx, chromedp.Evaluate(script, &found)); err != nil {
			return false, fmt.Errorf("evaluate probe: %w", err)
		}
		return found, nil
	})
}

func presenceScript(selectors []string) (string, error) {
	cleaned := make([]string, 0, len(selectors))
	for _, sel := range selectors {
		if sel = strings.TrimSpace(sel); sel != "" {
			cleaned = append(cleaned, sel)
		}
	}
	if len(cleaned) == 0 {
		return "", errors.New("no probe selectors")
	}
	encoded, err := json.Marshal(cleaned)
	if err != nil {
		return "", fmt.Errorf("encode probe selectors: %w", err)
	}
	return fmt.Sprintf(
		"%s.some(function(s){try{return document.querySelector(s)!==null}catch(e){return false}})",
		encoded,
	), nil
}

func classify(url product.URL, step string, err error) *product.FetchError {
	wrapped := fmt.Errorf("%s: %w", step, err)
	if errors.Is(err, context.DeadlineExceeded) {
		return product.NewFetchError(product.ReasonTimeout, url.String(), wrapped)
	}
	return product.NewFetchError(product.ReasonBrowserError, url.String(), wrapped)
}

type responseMeta struct {
	mu     sync.RWMutex
	status int
	url    string
}

func newResponseMeta() *responseMeta {
	return &responseMeta{}
}

func (m *responseMeta) capture(event *network.EventResponseReceived) {
	if event.Type != network.ResourceTypeDocument || event.Response == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	// Keep the first document response; later ones belong to iframes.
	if m.status != 0 {
		return
	}
	m.status = int(event.Response.Status)
	m.url = event.Response.URL
}

func (m *responseMeta) captureEvent(ev any) {
	if resp, ok := ev.(*network.EventResponseReceived); ok {
		m.capture(resp)
	}
}

func (m *responseMeta) snapshotWithFallbacks(requestURL, location string) (int, string) {
	m.mu.RLock()
	status, url := m.status, m.url
	m.mu.RUnlock()

	switch {
	case location != "":
		url = location
	case url != "":
	default:
		url = requestURL
	}
	if status == 0 {
		status = http.StatusOK
	}
	return status, url
}
