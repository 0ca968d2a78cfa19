package credential

import (
	"net/http"
	"net/url"
	"time"

	"github.com/gin-gonic/gin"
)

// CookieConfig describes the credential cookie seen by the edge tier.
type CookieConfig struct {
	Name          string
	Path          string
	Secure        bool
	PersistentTTL time.Duration
}

func DefaultCookieConfig() CookieConfig {
	return CookieConfig{Name: CookieName, Path: "/", PersistentTTL: 30 * 24 * time.Hour}
}

func (c CookieConfig) withDefaults() CookieConfig {
	out := c
	if out.Name == "" {
		out.Name = CookieName
	}
	if out.Path == "" {
		out.Path = "/"
	}
	if out.PersistentTTL <= 0 {
		out.PersistentTTL = 30 * 24 * time.Hour
	}
	return out
}

// Cookie builds the credential cookie. A non-persistent cookie carries no expiry and lives
// for the browser session only.
func (c CookieConfig) Cookie(token string, persistent bool, now time.Time) *http.Cookie {
	c = c.withDefaults()
	ck := &http.Cookie{
		Name:     c.Name,
		Value:    token,
		Path:     c.Path,
		Secure:   c.Secure,
		SameSite: http.SameSiteLaxMode,
	}
	if persistent {
		ck.Expires = now.Add(c.PersistentTTL)
		ck.MaxAge = int(c.PersistentTTL.Seconds())
	}
	return ck
}

// Expired builds the cookie that deletes the credential cookie.
func (c CookieConfig) Expired() *http.Cookie {
	c = c.withDefaults()
	return &http.Cookie{
		Name:     c.Name,
		Value:    "",
		Path:     c.Path,
		Secure:   c.Secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
	}
}

// CookieChannel is the cookie half of the credential store.
type CookieChannel interface {
	Token() (string, bool)
	SetToken(token string, persistent bool) error
	Clear() error
}

// JarCookies keeps the credential cookie in a cookie jar for one origin.
// Tabs sharing a jar share the cookie, as browser tabs do.
type JarCookies struct {
	jar    http.CookieJar
	origin *url.URL
	cfg    CookieConfig
	now    func() time.Time
}

func NewJarCookies(jar http.CookieJar, origin *url.URL, cfg CookieConfig) *JarCookies {
	return &JarCookies{jar: jar, origin: origin, cfg: cfg.withDefaults(), now: time.Now}
}

func (j *JarCookies) Token() (string, bool) {
	for _, c := range j.jar.Cookies(j.origin) {
		if c.Name == j.cfg.Name && c.Value != "" {
			return c.Value, true
		}
	}
	return "", false
}

func (j *JarCookies) SetToken(token string, persistent bool) error {
	j.jar.SetCookies(j.origin, []*http.Cookie{j.cfg.Cookie(token, persistent, j.now())})
	return nil
}

func (j *JarCookies) Clear() error {
	j.jar.SetCookies(j.origin, []*http.Cookie{j.cfg.Expired()})
	return nil
}

// ExchangeCookies reads the credential cookie from a gateway request and writes Set-Cookie
// headers on its response. Writes are visible to later reads within the same request.
type ExchangeCookies struct {
	c       *gin.Context
	cfg     CookieConfig
	pending *string
	now     func() time.Time
}

func NewExchangeCookies(c *gin.Context, cfg CookieConfig) *ExchangeCookies {
	return &ExchangeCookies{c: c, cfg: cfg.withDefaults(), now: time.Now}
}

func (e *ExchangeCookies) Token() (string, bool) {
	if e.pending != nil {
		return *e.pending, *e.pending != ""
	}
	v, err := e.c.Cookie(e.cfg.Name)
	if err != nil || v == "" {
		return "", false
	}
	return v, true
}

func (e *ExchangeCookies) SetToken(token string, persistent bool) error {
	http.SetCookie(e.c.Writer, e.cfg.Cookie(token, persistent, e.now()))
	e.pending = &token
	return nil
}

func (e *ExchangeCookies) Clear() error {
	http.SetCookie(e.c.Writer, e.cfg.Expired())
	empty := ""
	e.pending = &empty
	return nil
}
