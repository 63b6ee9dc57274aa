// Package urlnorm canonicalizes user supplied merchant product URLs.
package urlnorm

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/JakeFAU/product-copy/internal/product"
)

// Config controls which merchant the normalizer accepts.
type Config struct {
	// Domain is the bare merchant domain, e.g. "leonardo.vn".
	Domain string
	// ForceWWW inserts a "www." prefix when the host is the bare domain.
	ForceWWW bool
}

// Normalizer implements product.Normalizer for a single merchant domain.
type Normalizer struct {
	domain   string
	forceWWW bool
	shape    *regexp.Regexp
}

// New builds a Normalizer.
func New(cfg Config) (*Normalizer, error) {
	domain := strings.ToLower(strings.TrimSpace(cfg.Domain))
	domain = strings.TrimPrefix(domain, "www.")
	if domain == "" {
		return nil, errors.New("merchant domain is required")
	}
	shape, err := regexp.Compile(`^https?://(www\.)?` + regexp.QuoteMeta(domain) + `/`)
	if err != nil {
		return nil, fmt.Errorf("compile url shape: %w", err)
	}
	return &Normalizer{
		domain:   domain,
		forceWWW: cfg.ForceWWW,
		shape:    shape,
	}, nil
}

// Domain returns the merchant domain without a www prefix.
func (n *Normalizer) Domain() string {
	return n.domain
}

// schemePrefix matches an explicit scheme at the start of the input only, so a
// URL carried in the query does not count.
var schemePrefix = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9+.-]*://`)

// Normalize returns the canonical https URL for raw or a *product.ValidationError.
func (n *Normalizer) Normalize(raw string) (product.URL, error) {
	s := strings.TrimSpace(raw)
	s = strings.TrimSpace(strings.TrimLeft(s, "@"))
	if s == "" {
		return "", invalid(raw, "empty url")
	}
	if !schemePrefix.MatchString(s) {
		s = "https://" + s
	}

	u, err := url.Parse(s)
	if err != nil {
		return "", invalid(raw, "unparseable url")
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return "", invalid(raw, "unsupported scheme "+u.Scheme)
	}

	host := strings.ToLower(u.Hostname())
	switch host {
	case n.domain:
		if n.forceWWW {
			host = "www." + n.domain
		}
	case "www." + n.domain:
	default:
		return "", invalid(raw, "host is not "+n.domain)
	}

	u.Scheme = "https"
	u.Host = host
	u.Fragment = ""
	u.RawFragment = ""
	if u.Path == "" {
		u.Path = "/"
	}

	normalized := u.String()
	if !n.shape.MatchString(normalized) {
		return "", invalid(raw, "unexpected url shape")
	}
	return product.URL(normalized), nil
}

// HomePage returns the site root for a normalized product URL.
func HomePage(u product.URL) string {
	parsed, err := url.Parse(u.String())
	if err != nil || parsed.Host == "" {
		return ""
	}
	return parsed.Scheme + "://" + parsed.Host + "/"
}

func invalid(raw, reason string) error {
	return &product.ValidationError{Input: raw, Reason: reason}
}
