package product

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/product-copy/internal/metrics"
)

// DefaultFetchTimeout bounds a single fetcher call.
const DefaultFetchTimeout = 60 * time.Second

// DefaultEventTopic names the fetch event topic.
const DefaultEventTopic = "product.fetched"

// User-facing failure messages. Transport detail stays in the logs.
const (
	msgNotFound    = "Không tìm thấy thông tin sản phẩm trên trang này."
	msgUnavailable = "Không thể tải trang sản phẩm, vui lòng thử lại sau."
	msgTimeout     = "Trang sản phẩm phản hồi quá lâu, vui lòng thử lại sau."
)

// ServiceConfig holds the fixed behavior of a Service.
type ServiceConfig struct {
	Policy       Policy
	FetchTimeout time.Duration
	EventTopic   string
}

// Dependencies are the collaborators of a Service. Cache, Publisher, Hasher
// and IDs are optional; Dynamic is optional under PolicyStaticThenDynamic.
type Dependencies struct {
	Normalizer Normalizer
	Static     Fetcher
	Dynamic    Fetcher
	Extractor  Extractor
	Cache      Cache
	Publisher  Publisher
	Hasher     Hasher
	IDs        IDGenerator
	Clock      Clock
	Logger     *zap.Logger
}

// Service retrieves product text for a merchant URL: normalize, consult the
// cache, fetch, extract and store. It is safe for concurrent use. Concurrent
// misses for the same URL are not coalesced and each performs its own fetch.
type Service struct {
	cfg  ServiceConfig
	deps Dependencies
}

// NewService validates the configuration and wires the collaborators.
func NewService(cfg ServiceConfig, deps Dependencies) (*Service, error) {
	if cfg.Policy == "" {
		cfg.Policy = DefaultPolicy
	}
	if _, err := ParsePolicy(string(cfg.Policy)); err != nil {
		return nil, err
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = DefaultFetchTimeout
	}
	if cfg.EventTopic == "" {
		cfg.EventTopic = DefaultEventTopic
	}
	if deps.Normalizer == nil {
		return nil, errors.New("normalizer is required")
	}
	if deps.Extractor == nil {
		return nil, errors.New("extractor is required")
	}
	switch cfg.Policy {
	case PolicyStaticThenDynamic, PolicyStaticOnly:
		if deps.Static == nil {
			return nil, fmt.Errorf("policy %s requires a static fetcher", cfg.Policy)
		}
	case PolicyDynamicOnly:
		if deps.Dynamic == nil {
			return nil, fmt.Errorf("policy %s requires a dynamic fetcher", cfg.Policy)
		}
	}
	if deps.Clock == nil {
		deps.Clock = wallClock{}
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &Service{cfg: cfg, deps: deps}, nil
}

// Policy returns the fetch policy in effect.
func (s *Service) Policy() Policy {
	return s.cfg.Policy
}

// FetchProduct runs the retrieval pipeline for raw. It never panics and never
// returns a Go error: every failure is folded into a Result with a stable code.
func (s *Service) FetchProduct(ctx context.Context, raw string) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			s.deps.Logger.Error("fetch product panicked",
				zap.String("input", raw),
				zap.Any("panic", r),
				zap.Stack("stack"),
			)
			res = Result{Status: StatusError, Code: CodeUnavailable, Message: msgUnavailable}
		}
	}()

	url, err := s.deps.Normalizer.Normalize(raw)
	if err != nil {
		return s.failure(raw, err)
	}
	logger := s.deps.Logger.With(zap.String("url", url.String()))

	if cached, ok := s.lookup(ctx, url, logger); ok {
		return Result{Status: StatusSuccess, Description: cached, Source: SourceCache}
	}

	start := s.deps.Clock.Now()
	text, source, err := s.retrieve(ctx, url, logger)
	s.publish(ctx, url, source, start, text, err, logger)
	if err != nil {
		return s.failure(url.String(), err)
	}

	description := text.String()
	if s.deps.Cache != nil {
		if err := s.deps.Cache.Put(ctx, url, description); err != nil {
			logger.Warn("cache store failed", zap.Error(err))
		}
	}
	return Result{Status: StatusSuccess, Description: description, Source: source}
}

func (s *Service) lookup(ctx context.Context, url URL, logger *zap.Logger) (string, bool) {
	if s.deps.Cache == nil {
		return "", false
	}
	cached, ok, err := s.deps.Cache.Get(ctx, url)
	switch {
	case err != nil:
		metrics.ObserveCacheLookup("error")
		logger.Warn("cache unavailable, bypassing", zap.Error(err))
		return "", false
	case ok:
		metrics.ObserveCacheLookup("hit")
		return cached, true
	default:
		metrics.ObserveCacheLookup("miss")
		return "", false
	}
}

func (s *Service) retrieve(ctx context.Context, url URL, logger *zap.Logger) (Text, Source, error) {
	switch s.cfg.Policy {
	case PolicyStaticOnly:
		return s.attempt(ctx, s.deps.Static, SourceStatic, url)
	case PolicyDynamicOnly:
		return s.attempt(ctx, s.deps.Dynamic, SourceDynamic, url)
	}

	text, source, err := s.attempt(ctx, s.deps.Static, SourceStatic, url)
	if err == nil || s.deps.Dynamic == nil || !fallbackEligible(err) {
		return text, source, err
	}
	metrics.ObserveFallback()
	logger.Info("static fetch unusable, falling back to headless", zap.Error(err))
	return s.attempt(ctx, s.deps.Dynamic, SourceDynamic, url)
}

// fallbackEligible reports whether a static outcome should be retried headless.
func fallbackEligible(err error) bool {
	if errors.Is(err, ErrNotFound) {
		return true
	}
	_, ok := AsFetchError(err)
	return ok
}

func (s *Service) attempt(ctx context.Context, f Fetcher, source Source, url URL) (Text, Source, error) {
	start := s.deps.Clock.Now()
	doc, err := s.fetchBounded(ctx, f, url)
	if err != nil {
		metrics.ObserveFetch(url.String(), string(source), outcomeLabel(err), s.deps.Clock.Now().Sub(start))
		return Text{}, source, err
	}
	if doc.Source != "" {
		source = doc.Source
	}
	text, err := s.deps.Extractor.Extract(doc.HTML)
	metrics.ObserveFetch(url.String(), string(source), outcomeLabel(err), s.deps.Clock.Now().Sub(start))
	return text, source, err
}

type fetchOutcome struct {
	result FetchResult
	err    error
}

// fetchBounded enforces FetchTimeout as a hard bound. A fetcher that ignores
// its context is abandoned; its goroutine drains into a buffered channel.
func (s *Service) fetchBounded(ctx context.Context, f Fetcher, url URL) (FetchResult, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.FetchTimeout)
	defer cancel()

	done := make(chan fetchOutcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fetchOutcome{err: fmt.Errorf("fetcher panic: %v", r)}
			}
		}()
		res, err := f.Fetch(ctx, url)
		done <- fetchOutcome{result: res, err: err}
	}()

	select {
	case out := <-done:
		return out.result, out.err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return FetchResult{}, NewFetchError(ReasonTimeout, url.String(), ctx.Err())
		}
		return FetchResult{}, fmt.Errorf("fetch %s: %w", url, ctx.Err())
	}
}

func (s *Service) publish(ctx context.Context, url URL, source Source, start time.Time, text Text, err error, logger *zap.Logger) {
	if s.deps.Publisher == nil {
		return
	}
	event := FetchEvent{
		URL:        url.String(),
		Source:     source,
		Outcome:    StatusSuccess,
		DurationMs: s.deps.Clock.Now().Sub(start).Milliseconds(),
		OccurredAt: s.deps.Clock.Now(),
	}
	if err != nil {
		failed := classify(err)
		event.Outcome = StatusError
		event.Code = failed.Code
		event.Reason = failed.Reason
	} else if s.deps.Hasher != nil {
		sum, herr := s.deps.Hasher.Hash([]byte(text.String()))
		if herr != nil {
			logger.Warn("hash product text failed", zap.Error(herr))
		}
		event.TextSHA256 = sum
	}
	if s.deps.IDs != nil {
		id, ierr := s.deps.IDs.NewID()
		if ierr != nil {
			logger.Warn("generate event id failed", zap.Error(ierr))
		}
		event.ID = id
	}
	if _, perr := s.deps.Publisher.Publish(ctx, s.cfg.EventTopic, event); perr != nil {
		logger.Warn("publish fetch event failed", zap.Error(perr))
	}
}

func (s *Service) failure(input string, err error) Result {
	res := classify(err)
	fields := []zap.Field{
		zap.String("input", input),
		zap.String("code", string(res.Code)),
		zap.Error(err),
	}
	if res.Reason != "" {
		fields = append(fields, zap.String("reason", string(res.Reason)))
	}
	if res.Code == CodeInvalid {
		s.deps.Logger.Info("product url rejected", fields...)
	} else {
		s.deps.Logger.Warn("fetch product failed", fields...)
	}
	return res
}

// classify maps an error from the pipeline onto the outward taxonomy.
func classify(err error) Result {
	res := Result{Status: StatusError, Code: CodeUnavailable, Message: msgUnavailable}
	var verr *ValidationError
	switch {
	case errors.As(err, &verr):
		res.Code = CodeInvalid
		res.Message = verr.Error()
	case errors.Is(err, ErrNotFound):
		res.Code = CodeNotFound
		res.Message = msgNotFound
	default:
		if fe, ok := AsFetchError(err); ok {
			res.Reason = fe.Reason
			if fe.Reason == ReasonTimeout {
				res.Message = msgTimeout
			}
		}
	}
	return res
}

func outcomeLabel(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	}
	if fe, ok := AsFetchError(err); ok {
		return string(fe.Reason)
	}
	return "error"
}

type wallClock struct{}

func (wallClock) Now() time.Time {
	return time.Now().UTC()
}
