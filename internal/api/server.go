package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/JakeFAU/product-copy/internal/config"
	"github.com/JakeFAU/product-copy/internal/content"
	"github.com/JakeFAU/product-copy/internal/metrics"
	"github.com/JakeFAU/product-copy/internal/product"
)

const (
	maxJSONBody      = 64 << 10
	maxMultipartBody = 10 << 20
)

// ProductFetcher resolves a raw product URL into text.
type ProductFetcher interface {
	FetchProduct(ctx context.Context, raw string) product.Result
}

// CopyGenerator writes marketing copy for a request.
type CopyGenerator interface {
	Generate(ctx context.Context, req content.Request) content.Result
}

// ReadyFunc reports whether a downstream dependency can serve traffic.
type ReadyFunc func(ctx context.Context) error

// Server wires HTTP handlers to the product and content services.
type Server struct {
	router   chi.Router
	products ProductFetcher
	copy     CopyGenerator
	ready    map[string]ReadyFunc
	logger   *zap.Logger
}

// Option customizes a Server.
type Option func(*Server)

// WithReadiness registers a named readiness probe for /readyz.
func WithReadiness(name string, fn ReadyFunc) Option {
	return func(s *Server) {
		s.ready[name] = fn
	}
}

// NewServer constructs a Server with middleware and routes.
func NewServer(
	products ProductFetcher,
	copyGen CopyGenerator,
	cfg config.Config,
	logger *zap.Logger,
	opts ...Option,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		products: products,
		copy:     copyGen,
		ready:    make(map[string]ReadyFunc),
		logger:   logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	metrics.Init()

	timeout := cfg.RequestTimeout()
	if timeout <= 0 {
		timeout = 120 * time.Second
	}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(corsMiddleware)
	r.Use(loggingMiddleware(logger))
	r.Use(recoverMiddleware(logger))
	r.Use(metrics.Middleware)

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Use(timeoutMiddleware(timeout))
		if cfg.Auth.Enabled {
			r.Use(apiKeyMiddleware(cfg.Auth.APIKey))
		}
		r.Post("/fetch-product", s.fetchProduct)
		r.Post("/generate-content", s.generateContent)
	})

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	failures := map[string]string{}
	for name, check := range s.ready {
		if err := check(ctx); err != nil {
			failures[name] = err.Error()
		}
	}
	if len(failures) > 0 {
		s.logger.Warn("readiness check failed", zap.Any("failures", failures))
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "unavailable", "checks": failures})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

type fetchProductRequest struct {
	URL string `json:"url"`
}

func (s *Server) fetchProduct(w http.ResponseWriter, r *http.Request) {
	var req fetchProductRequest
	dec := json.NewDecoder(io.LimitReader(r.Body, maxJSONBody))
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if strings.TrimSpace(req.URL) == "" {
		writeJSON(w, http.StatusBadRequest, product.Result{
			Status:  product.StatusError,
			Code:    product.CodeInvalid,
			Message: "url is required",
		})
		return
	}

	res := s.products.FetchProduct(r.Context(), req.URL)
	writeJSON(w, statusForResult(res), res)
}

func statusForResult(res product.Result) int {
	if res.Status == product.StatusSuccess {
		return http.StatusOK
	}
	switch res.Code {
	case product.CodeInvalid:
		return http.StatusBadRequest
	case product.CodeNotFound:
		return http.StatusNotFound
	default:
		if res.Reason == product.ReasonTimeout {
			return http.StatusGatewayTimeout
		}
		return http.StatusServiceUnavailable
	}
}

func (s *Server) generateContent(w http.ResponseWriter, r *http.Request) {
	if err := parseForm(r); err != nil {
		writeError(w, http.StatusBadRequest, "invalid form body")
		return
	}
	req := content.Request{
		ImageURL:           strings.TrimSpace(r.FormValue("image_url")),
		ProductDescription: r.FormValue("product_description"),
		Gender:             r.FormValue("gender"),
		AgeGroup:           r.FormValue("age_group"),
		Platform:           r.FormValue("platform"),
	}
	if err := req.Validate(); err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, content.Result{Status: product.StatusError, Message: err.Error()})
		return
	}
	// Generation failures are reported in the body with a 200, which is what
	// existing clients check.
	writeJSON(w, http.StatusOK, s.copy.Generate(r.Context(), req))
}

func parseForm(r *http.Request) error {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err == nil && mediaType == "multipart/form-data" {
		if err := r.ParseMultipartForm(maxMultipartBody); err != nil {
			return fmt.Errorf("parse multipart form: %w", err)
		}
		return nil
	}
	r.Body = http.MaxBytesReader(nil, r.Body, maxMultipartBody)
	if err := r.ParseForm(); err != nil {
		return fmt.Errorf("parse form: %w", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil && !errors.Is(err, http.ErrHandlerTimeout) {
		zap.L().Error("write JSON failed", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"status": string(product.StatusError), "error": msg, "message": msg})
}
