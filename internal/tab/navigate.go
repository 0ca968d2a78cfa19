package tab

import (
	"context"
	"errors"
	"net/url"

	"tenant-dashboard/internal/auth"
	"tenant-dashboard/internal/protect"
	"tenant-dashboard/internal/routeguard"
)

const maxRedirects = 5

var ErrTooManyRedirects = errors.New("tab: too many redirects")

// Page is where a navigation ended up.
type Page struct {
	URL       string
	Class     routeguard.Class
	Outcome   protect.Outcome
	Snapshot  auth.Snapshot
	Redirects []string
}

// Edge runs only the edge tier for raw: cookie and URL, no storage and no network.
func (t *Tab) Edge(raw string) (routeguard.Decision, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return routeguard.Decision{}, err
	}
	token, _ := t.cookies.Token()
	return t.guard.Decide(token, u), nil
}

// Navigate loads raw the way a browser would: edge tier first, following its redirects,
// then the in-page tier once the page mounts.
func (t *Tab) Navigate(ctx context.Context, raw string) (Page, error) {
	var redirects []string
	target := raw
	for i := 0; i <= maxRedirects; i++ {
		u, err := url.Parse(target)
		if err != nil {
			return Page{}, err
		}
		d, _ := t.Edge(target)
		if d.Action != routeguard.Allow {
			redirects = append(redirects, d.Location)
			target = d.Location
			continue
		}

		snap := t.Navigated(ctx, u.Path)
		out := protect.Decide(snap, d.Class)
		if out == protect.Deny {
			_ = t.Logout(ctx)
			target = t.guard.LoginURL(u.Path)
			redirects = append(redirects, target)
			continue
		}
		return Page{URL: u.String(), Class: d.Class, Outcome: out, Snapshot: snap, Redirects: redirects}, nil
	}
	return Page{Redirects: redirects}, ErrTooManyRedirects
}
