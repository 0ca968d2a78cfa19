package orgs

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"tenant-dashboard/internal/session"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	mu       sync.Mutex
	orgs     []session.Organization
	roles    map[string]string
	listErr  error
	inFlight atomic.Int32
	peak     atomic.Int32
	hold     chan struct{}
	entered  chan struct{}
}

func (f *fakeSource) ListOrganizations(ctx context.Context, token string) ([]session.Organization, error) {
	if f.hold != nil {
		f.entered <- struct{}{}
		<-f.hold
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.orgs, f.listErr
}

func (f *fakeSource) OrganizationRole(ctx context.Context, token, orgID string) (string, error) {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		p := f.peak.Load()
		if n <= p || f.peak.CompareAndSwap(p, n) {
			break
		}
	}
	time.Sleep(10 * time.Millisecond)
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.roles[orgID], nil
}

func newSource() *fakeSource {
	return &fakeSource{
		orgs:  []session.Organization{{ID: "acme", Name: "Acme"}, {ID: "globex", Name: "Globex"}, {ID: "initech", Name: "Initech"}},
		roles: map[string]string{"acme": "owner", "globex": "member", "initech": "viewer"},
	}
}

func TestDirectory_RefreshJoinsRoles(t *testing.T) {
	src := newSource()
	d := NewDirectory(src, nil, nil)

	got, err := d.Refresh(context.Background(), "tok")
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "owner", got[0].Role)
	assert.Equal(t, "viewer", got[2].Role)
	assert.Greater(t, src.peak.Load(), int32(1), "roles should be fetched in parallel")

	o, ok := d.Lookup("globex")
	assert.True(t, ok)
	assert.Equal(t, "member", o.Role)
	assert.True(t, d.Loaded())
}

func TestDirectory_FailureKeepsLastKnown(t *testing.T) {
	src := newSource()
	d := NewDirectory(src, nil, nil)
	_, err := d.Refresh(context.Background(), "tok")
	require.NoError(t, err)

	src.listErr = session.ErrNetworkFailure
	got, err := d.Refresh(context.Background(), "tok")
	assert.ErrorIs(t, err, session.ErrNetworkFailure)
	assert.Len(t, got, 3)
	assert.Len(t, d.Cached(), 3)
}

func TestDirectory_DiscardsResponseAfterReset(t *testing.T) {
	src := newSource()
	src.hold = make(chan struct{})
	src.entered = make(chan struct{}, 1)
	d := NewDirectory(src, nil, nil)

	errc := make(chan error, 1)
	go func() {
		_, err := d.Refresh(context.Background(), "old-identity-token")
		errc <- err
	}()

	<-src.entered
	d.Reset()
	close(src.hold)

	err := <-errc
	assert.True(t, errors.Is(err, session.ErrStale))
	assert.Empty(t, d.Cached())
	assert.False(t, d.Loaded())
}

func TestDirectory_LookupUnknown(t *testing.T) {
	d := NewDirectory(newSource(), nil, nil)
	_, ok := d.Lookup("acme")
	assert.False(t, ok, "nothing cached before the first refresh")
}
