package rbac

import (
	"context"
	"sync"
)

// Membership links a user to an organization with a raw stored role string.
// The role is kept raw so that legacy or corrupt values are interpreted in
// one place (ParseRole) instead of at every reader.
type Membership struct {
	UserID         string `json:"userId"`
	OrganizationID string `json:"organizationId"`
	Role           string `json:"role"`
}

// Session identifies the acting user and the organization the request acts
// within. Sessions are issued and validated upstream; Memberships are carried
// for display only, permission decisions always consult the MembershipStore.
type Session struct {
	ActorID        string       `json:"actorId"`
	OrganizationID string       `json:"organizationId"`
	Memberships    []Membership `json:"memberships,omitempty"`
}

// MembershipStore lists the memberships a user holds in one organization.
// Duplicate records are allowed and resolved by EffectiveRole.
type MembershipStore interface {
	ListMemberships(ctx context.Context, userID, organizationID string) ([]Membership, error)
}

// StaticStore is an in-process MembershipStore used for seeded development
// runs and tests
type StaticStore struct {
	mu          sync.RWMutex
	memberships []Membership
}

// NewStaticStore creates a store holding the given memberships
func NewStaticStore(memberships ...Membership) *StaticStore {
	return &StaticStore{memberships: append([]Membership(nil), memberships...)}
}

// Add appends a membership
func (s *StaticStore) Add(m Membership) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.memberships = append(s.memberships, m)
}

// ListMemberships implements MembershipStore
func (s *StaticStore) ListMemberships(ctx context.Context, userID, organizationID string) ([]Membership, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Membership
	for _, m := range s.memberships {
		if m.UserID == userID && m.OrganizationID == organizationID {
			out = append(out, m)
		}
	}
	return out, nil
}
