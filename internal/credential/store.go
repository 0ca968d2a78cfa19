// Package credential persists the active bearer credential over two channels: a cookie the
// edge tier can read, and the origin's local store that survives reloads.
//
// It is the only package that knows the storage keys; everything else goes through Store.
package credential

import (
	"context"
	"errors"
	"fmt"

	"tenant-dashboard/internal/localstore"
	"tenant-dashboard/internal/session"
)

const CookieName = "authToken"

// Local store keys owned by the credential store.
const (
	KeyToken           = "authToken"
	KeyOrganizationID  = "activeOrganizationId"
	KeyRememberedEmail = "rememberedEmail"
	KeyRememberMe      = "rememberMe"
)

// Keys lists every local key the store writes; all are cleared together.
var Keys = []string{KeyToken, KeyOrganizationID, KeyRememberedEmail, KeyRememberMe}

// Store is the single credential persistence contract.
type Store interface {
	Save(ctx context.Context, cred session.Credential) error
	Read(ctx context.Context) (session.Credential, bool, error)
	Clear(ctx context.Context) error
}

// DualStore writes the cookie channel first and the local channel second.
// The two writes are not atomic: if either fails, Save reports session.ErrPersistenceFailure
// and the previous cookie is restored on a best-effort basis.
type DualStore struct {
	cookies CookieChannel
	local   localstore.Store
}

func NewDualStore(cookies CookieChannel, local localstore.Store) *DualStore {
	return &DualStore{cookies: cookies, local: local}
}

func (d *DualStore) Save(ctx context.Context, cred session.Credential) error {
	if cred.Token == "" {
		return fmt.Errorf("%w: empty token", session.ErrPersistenceFailure)
	}

	prevToken, hadPrev := d.cookies.Token()
	prevLocal, _ := d.readLocal(ctx)

	if err := d.cookies.SetToken(cred.Token, cred.Persistent); err != nil {
		return fmt.Errorf("%w: cookie: %w", session.ErrPersistenceFailure, err)
	}

	if err := d.writeLocal(ctx, cred); err != nil {
		if hadPrev {
			_ = d.cookies.SetToken(prevToken, prevLocal.Persistent)
		} else {
			_ = d.cookies.Clear()
		}
		d.restoreLocal(ctx, prevLocal)
		return fmt.Errorf("%w: local store: %w", session.ErrPersistenceFailure, err)
	}
	return nil
}

// restoreLocal puts back the local keys a failed Save may have overwritten. Without a previous
// credential every key is removed, so the half-written token never survives a reload.
func (d *DualStore) restoreLocal(ctx context.Context, prev session.Credential) {
	if prev.Token == "" {
		_ = d.local.Delete(ctx, Keys...)
		return
	}
	_ = d.local.Set(ctx, KeyToken, prev.Token)
	if prev.OrganizationID != "" {
		_ = d.local.Set(ctx, KeyOrganizationID, prev.OrganizationID)
	} else {
		_ = d.local.Delete(ctx, KeyOrganizationID)
	}
	if prev.OwnerEmail != "" {
		_ = d.local.Set(ctx, KeyRememberedEmail, prev.OwnerEmail)
	} else {
		_ = d.local.Delete(ctx, KeyRememberedEmail)
	}
	if prev.Persistent {
		_ = d.local.Set(ctx, KeyRememberMe, "true")
	} else {
		_ = d.local.Delete(ctx, KeyRememberMe)
	}
}

func (d *DualStore) writeLocal(ctx context.Context, cred session.Credential) error {
	if err := d.local.Set(ctx, KeyToken, cred.Token); err != nil {
		return err
	}
	if cred.OrganizationID == "" {
		if err := d.local.Delete(ctx, KeyOrganizationID); err != nil {
			return err
		}
	} else if err := d.local.Set(ctx, KeyOrganizationID, cred.OrganizationID); err != nil {
		return err
	}
	if !cred.Persistent {
		return d.local.Delete(ctx, KeyRememberedEmail, KeyRememberMe)
	}
	if err := d.local.Set(ctx, KeyRememberedEmail, cred.OwnerEmail); err != nil {
		return err
	}
	return d.local.Set(ctx, KeyRememberMe, "true")
}

// Read returns the cookie credential if present, else the local one.
func (d *DualStore) Read(ctx context.Context) (session.Credential, bool, error) {
	local, lerr := d.readLocal(ctx)

	if tok, ok := d.cookies.Token(); ok {
		cred := local
		cred.Token = tok
		if local.Token != tok {
			// Local metadata belongs to another token; keep only the email hint.
			cred.OrganizationID = ""
		}
		return cred, true, nil
	}
	if lerr != nil {
		return session.Credential{}, false, lerr
	}
	if local.Token == "" {
		return session.Credential{}, false, nil
	}
	return local, true, nil
}

func (d *DualStore) readLocal(ctx context.Context) (session.Credential, error) {
	var cred session.Credential
	var err error
	get := func(key string) string {
		if err != nil {
			return ""
		}
		v, _, e := d.local.Get(ctx, key)
		if e != nil {
			err = e
		}
		return v
	}
	cred.Token = get(KeyToken)
	cred.OrganizationID = get(KeyOrganizationID)
	cred.OwnerEmail = get(KeyRememberedEmail)
	cred.Persistent = get(KeyRememberMe) == "true"
	if err != nil {
		return session.Credential{}, fmt.Errorf("read local credential: %w", err)
	}
	return cred, nil
}

// Clear deletes both channels. Both deletions are attempted even if one fails.
func (d *DualStore) Clear(ctx context.Context) error {
	cerr := d.cookies.Clear()
	lerr := d.local.Delete(ctx, Keys...)
	if err := errors.Join(cerr, lerr); err != nil {
		return fmt.Errorf("%w: clear: %w", session.ErrPersistenceFailure, err)
	}
	return nil
}

// RememberedEmail returns the "remember me" email hint for the login form.
func (d *DualStore) RememberedEmail(ctx context.Context) (string, bool) {
	v, ok, err := d.local.Get(ctx, KeyRememberedEmail)
	if err != nil || !ok || v == "" {
		return "", false
	}
	return v, true
}
