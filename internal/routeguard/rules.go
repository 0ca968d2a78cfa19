// Package routeguard is the edge tier: a network-free redirect decision made from the
// credential cookie and the request URL alone.
package routeguard

import (
	"net/url"
	"strings"
)

type Class int

const (
	Protected Class = iota
	Public
	TokenGatedSpecial
)

func (c Class) String() string {
	switch c {
	case Public:
		return "public"
	case TokenGatedSpecial:
		return "token_gated"
	default:
		return "protected"
	}
}

// GatedRoute is reachable without a session when Param is present in the query.
type GatedRoute struct {
	Path  string
	Param string
}

type Rules struct {
	Public []string
	Gated  []GatedRoute
	// Ignored prefixes never reach the guard (assets, APIs, health checks).
	Ignored []string
}

func DefaultRules() Rules {
	return Rules{
		Public: []string{"/login", "/register", "/forgot-password"},
		Gated: []GatedRoute{
			{Path: "/verify-email", Param: "token"},
			{Path: "/reset-password", Param: "token"},
			{Path: "/accept-invite", Param: "token"},
		},
		Ignored: []string{"/static/", "/api/", "/healthz", "/metrics"},
	}
}

// Classify looks at the path and query only. A gated route without its token is Protected.
func (r Rules) Classify(path string, query url.Values) Class {
	for _, g := range r.Gated {
		if matches(path, g.Path) && query.Get(g.Param) != "" {
			return TokenGatedSpecial
		}
	}
	for _, p := range r.Public {
		if matches(path, p) {
			return Public
		}
	}
	return Protected
}

func (r Rules) IsIgnored(path string) bool {
	for _, p := range r.Ignored {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}

func matches(path, route string) bool {
	return path == route || strings.HasPrefix(path, route+"/")
}
