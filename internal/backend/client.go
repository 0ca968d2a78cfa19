// Package backend is the HTTP client for the authorization backend. The backend issues and
// validates opaque bearer tokens, each scoped to exactly one organization.
package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"tenant-dashboard/internal/session"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// StatusError is a non-success HTTP response from the backend.
type StatusError struct {
	Op         string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("backend %s: status %d", e.Op, e.StatusCode)
}

// Is maps rejected credentials onto the session taxonomy.
func (e *StatusError) Is(target error) bool {
	switch target {
	case session.ErrSessionInvalid:
		return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
	case session.ErrOrganizationNotFound:
		return e.StatusCode == http.StatusNotFound
	case session.ErrNetworkFailure:
		return e.StatusCode >= http.StatusInternalServerError
	}
	return false
}

type Client struct {
	baseURL *url.URL
	http    *http.Client
}

// NewClient builds a client for baseURL. A zero timeout means no client-side timeout.
func NewClient(baseURL string, timeout time.Duration) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("backend url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("backend url must be absolute, got %q", baseURL)
	}
	return &Client{
		baseURL: u,
		http: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}, nil
}

type identityResponse struct {
	UserID         string `json:"user_id"`
	Email          string `json:"email"`
	IsAdmin        bool   `json:"is_admin"`
	OrganizationID string `json:"organization_id"`
}

// WhoAmI validates token and returns the identity it proves.
func (c *Client) WhoAmI(ctx context.Context, token string) (session.Identity, error) {
	var out identityResponse
	if err := c.do(ctx, "whoami", http.MethodGet, "/auth/me", token, nil, &out); err != nil {
		return session.Identity{}, err
	}
	if out.UserID == "" {
		return session.Identity{}, &StatusError{Op: "whoami", StatusCode: http.StatusUnauthorized}
	}
	return session.Identity{
		UserID:             out.UserID,
		Email:              out.Email,
		IsAdminOfActiveOrg: out.IsAdmin,
		OrganizationID:     out.OrganizationID,
	}, nil
}

type tokenResponse struct {
	AccessToken    string `json:"access_token"`
	OrganizationID string `json:"organization_id"`
}

// Grant is a freshly minted token and the organization it is scoped to.
type Grant struct {
	Token          string
	OrganizationID string
}

// Login exchanges form-encoded credentials for a token.
func (c *Client) Login(ctx context.Context, email, password string) (Grant, error) {
	form := url.Values{"username": {email}, "password": {password}}
	var out tokenResponse
	if err := c.do(ctx, "login", http.MethodPost, "/auth/login", "", strings.NewReader(form.Encode()), &out); err != nil {
		return Grant{}, err
	}
	if out.AccessToken == "" {
		return Grant{}, errors.New("backend login: empty access_token")
	}
	return Grant{Token: out.AccessToken, OrganizationID: out.OrganizationID}, nil
}

// SwitchOrganization asks the backend to mint a token scoped to orgID.
func (c *Client) SwitchOrganization(ctx context.Context, token, orgID string) (Grant, error) {
	var out tokenResponse
	path := "/organizations/" + url.PathEscape(orgID) + "/switch"
	if err := c.do(ctx, "switch", http.MethodPost, path, token, nil, &out); err != nil {
		return Grant{}, err
	}
	if out.AccessToken == "" {
		return Grant{}, errors.New("backend switch: empty access_token")
	}
	if out.OrganizationID == "" {
		out.OrganizationID = orgID
	}
	return Grant{Token: out.AccessToken, OrganizationID: out.OrganizationID}, nil
}

// ListOrganizations returns the organizations the token's identity belongs to.
func (c *Client) ListOrganizations(ctx context.Context, token string) ([]session.Organization, error) {
	var out []session.Organization
	if err := c.do(ctx, "list organizations", http.MethodGet, "/organizations", token, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// OrganizationRole returns the identity's role in orgID.
func (c *Client) OrganizationRole(ctx context.Context, token, orgID string) (string, error) {
	var out struct {
		Role string `json:"role"`
	}
	path := "/organizations/" + url.PathEscape(orgID) + "/role"
	if err := c.do(ctx, "organization role", http.MethodGet, path, token, nil, &out); err != nil {
		return "", err
	}
	return out.Role, nil
}

func (c *Client) do(ctx context.Context, op, method, path, token string, body io.Reader, out any) error {
	// path is already escaped; JoinPath keeps it that way.
	u := c.baseURL.JoinPath(path)

	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("backend %s: %w: %w", op, session.ErrNetworkFailure, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return &StatusError{Op: op, StatusCode: resp.StatusCode}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("backend %s: decode: %w", op, err)
	}
	return nil
}

// Responded reports whether err carries a backend HTTP response, as opposed to a transport
// failure where the backend was never heard from.
func Responded(err error) bool {
	var se *StatusError
	return errors.As(err, &se)
}
