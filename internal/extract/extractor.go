// Package extract pulls product fields out of merchant HTML with ordered
// selector cascades.
package extract

import (
	"bytes"
	"fmt"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/JakeFAU/product-copy/internal/product"
)

// Extractor implements product.Extractor.
type Extractor struct {
	fields  []Field
	details ListRule
	logger  *zap.Logger
}

// Option customizes an Extractor.
type Option func(*Extractor)

// WithFields replaces the single-value field cascades.
func WithFields(fields ...Field) Option {
	return func(e *Extractor) {
		e.fields = fields
	}
}

// WithDetails replaces the detail list rule.
func WithDetails(rule ListRule) Option {
	return func(e *Extractor) {
		e.details = rule
	}
}

// New returns an extractor using the default merchant cascades.
func New(logger *zap.Logger, opts ...Option) *Extractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &Extractor{
		fields:  DefaultFields(),
		details: DefaultDetails(),
		logger:  logger,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract parses html and returns the product text blocks.
func (e *Extractor) Extract(html []byte) (product.Text, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return product.Text{}, fmt.Errorf("parse document: %w", err)
	}
	return e.ExtractDocument(doc)
}

// ExtractDocument runs every cascade against doc. It returns
// product.ErrNotFound when no field yields text.
func (e *Extractor) ExtractDocument(doc *goquery.Document) (product.Text, error) {
	var text product.Text
	seen := make(map[string]struct{})
	add := func(block string) {
		if _, dup := seen[block]; dup {
			return
		}
		seen[block] = struct{}{}
		text.Blocks = append(text.Blocks, block)
	}

	var missing []string
	for _, field := range e.fields {
		value, ok := field.Apply(doc)
		if !ok {
			missing = append(missing, field.Name)
			continue
		}
		add(field.Prefix + value)
	}
	if e.details.Selector != "" {
		for _, block := range e.details.Apply(doc) {
			add(block)
		}
	}

	if text.Empty() {
		return product.Text{}, product.ErrNotFound
	}
	if len(missing) > 0 {
		e.logger.Debug("product fields missing", zap.Strings("fields", missing))
	}
	return text, nil
}
