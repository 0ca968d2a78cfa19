package tab

import (
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"

	"tenant-dashboard/internal/credential"
	"tenant-dashboard/internal/localstore"
)

// Browser holds what tabs of one origin share: the cookie jar and the local store.
type Browser struct {
	Origin *url.URL
	Jar    http.CookieJar
	Local  *localstore.Memory

	cookies credential.CookieConfig
	backend Backend
	opts    Options
}

func NewBrowser(origin string, be Backend, cookies credential.CookieConfig, opts Options) (*Browser, error) {
	u, err := url.Parse(origin)
	if err != nil {
		return nil, fmt.Errorf("origin: %w", err)
	}
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	return &Browser{Origin: u, Jar: jar, Local: localstore.NewMemory(), cookies: cookies, backend: be, opts: opts}, nil
}

// Open creates a tab on the shared origin.
func (b *Browser) Open(id string) *Tab {
	return New(id, credential.NewJarCookies(b.Jar, b.Origin, b.cookies), b.Local.Tab(id), b.backend, b.opts)
}
