package product

import (
	"fmt"
	"strings"
)

// Policy selects which fetchers run and in what order. It is fixed at startup.
type Policy string

// Supported fetch policies.
const (
	// PolicyStaticThenDynamic runs the static fetcher first and falls back to
	// the dynamic fetcher when the static attempt fails or extracts nothing.
	PolicyStaticThenDynamic Policy = "static_then_dynamic"
	PolicyStaticOnly        Policy = "static_only"
	PolicyDynamicOnly       Policy = "dynamic_only"
)

// DefaultPolicy is used when no policy is configured.
const DefaultPolicy = PolicyStaticThenDynamic

// ParsePolicy validates a configured policy name. Empty selects DefaultPolicy.
func ParsePolicy(raw string) (Policy, error) {
	switch p := Policy(strings.ToLower(strings.TrimSpace(raw))); p {
	case "":
		return DefaultPolicy, nil
	case PolicyStaticThenDynamic, PolicyStaticOnly, PolicyDynamicOnly:
		return p, nil
	default:
		return "", fmt.Errorf("unknown fetch policy %q", raw)
	}
}
