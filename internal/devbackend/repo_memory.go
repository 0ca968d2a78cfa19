package devbackend

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// MemoryRepo keeps users and memberships in memory. Seed it with AddUser and Grant.
type MemoryRepo struct {
	mu      sync.RWMutex
	users   map[string]User
	byEmail map[string]string
	orgs    map[string]Organization
	roles   map[string]map[string]string // user id -> org id -> role
	cost    int
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		users:   map[string]User{},
		byEmail: map[string]string{},
		orgs:    map[string]Organization{},
		roles:   map[string]map[string]string{},
		cost:    bcrypt.DefaultCost,
	}
}

// WithBcryptCost lowers the hashing cost, for tests.
func (r *MemoryRepo) WithBcryptCost(cost int) *MemoryRepo {
	r.cost = cost
	return r
}

func (r *MemoryRepo) AddUser(email, password string) (User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), r.cost)
	if err != nil {
		return User{}, err
	}
	u := User{ID: uuid.NewString(), Email: strings.ToLower(email), PasswordHash: string(hash)}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.users[u.ID] = u
	r.byEmail[u.Email] = u.ID
	return u, nil
}

func (r *MemoryRepo) AddOrganization(id, name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.orgs[id] = Organization{ID: id, Name: name}
}

func (r *MemoryRepo) Grant(userID, orgID, role string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.roles[userID] == nil {
		r.roles[userID] = map[string]string{}
	}
	r.roles[userID][orgID] = role
}

func (r *MemoryRepo) Revoke(userID, orgID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.roles[userID], orgID)
}

func (r *MemoryRepo) UserByEmail(ctx context.Context, email string) (User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byEmail[strings.ToLower(email)]
	if !ok {
		return User{}, ErrNotFound
	}
	return r.users[id], nil
}

func (r *MemoryRepo) UserByID(ctx context.Context, id string) (User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.users[id]
	if !ok {
		return User{}, ErrNotFound
	}
	return u, nil
}

func (r *MemoryRepo) Memberships(ctx context.Context, userID string) ([]Membership, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Membership, 0, len(r.roles[userID]))
	for orgID, role := range r.roles[userID] {
		out = append(out, Membership{Organization: r.orgs[orgID], Role: role})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *MemoryRepo) Membership(ctx context.Context, userID, orgID string) (Membership, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	role, ok := r.roles[userID][orgID]
	if !ok {
		return Membership{}, ErrNotFound
	}
	return Membership{Organization: r.orgs[orgID], Role: role}, nil
}
