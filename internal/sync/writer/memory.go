package writer

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

type storedApplication struct {
	Application
	ID        uuid.UUID
	RiskLevel string
}

type storedGrant struct {
	AuthorizationGrant
	ID            uuid.UUID
	ApplicationID uuid.UUID
}

type storedUser struct {
	DirectoryUser
	ID uuid.UUID
}

type storedScope struct {
	GrantScope
	ID uuid.UUID
}

type orgEntities struct {
	users        map[string]*storedUser
	applications map[string]*storedApplication
	grants       map[string]*storedGrant
	scopes       map[string]*storedScope
}

// MemoryEntityWriter keeps imported entities in process memory
type MemoryEntityWriter struct {
	mu   sync.RWMutex
	orgs map[string]*orgEntities
}

var _ EntityWriter = (*MemoryEntityWriter)(nil)

// NewMemoryEntityWriter creates an empty in-memory entity writer
func NewMemoryEntityWriter() *MemoryEntityWriter {
	return &MemoryEntityWriter{orgs: make(map[string]*orgEntities)}
}

func (m *MemoryEntityWriter) org(organizationID string) *orgEntities {
	o, ok := m.orgs[organizationID]
	if !ok {
		o = &orgEntities{
			users:        make(map[string]*storedUser),
			applications: make(map[string]*storedApplication),
			grants:       make(map[string]*storedGrant),
			scopes:       make(map[string]*storedScope),
		}
		m.orgs[organizationID] = o
	}
	return o
}

// UpsertUsers implements EntityWriter
func (m *MemoryEntityWriter) UpsertUsers(_ context.Context, organizationID string, users []DirectoryUser) (IDMap, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	o := m.org(organizationID)
	ids := make(IDMap, len(users))
	for _, u := range users {
		existing, ok := o.users[u.ProviderUserID]
		if !ok {
			existing = &storedUser{ID: uuid.New()}
			o.users[u.ProviderUserID] = existing
		}
		existing.DirectoryUser = u
		ids[u.ProviderUserID] = existing.ID
	}
	return ids, nil
}

// UpsertGrants implements EntityWriter
func (m *MemoryEntityWriter) UpsertGrants(
	_ context.Context,
	organizationID string,
	applications []Application,
	grants []AuthorizationGrant,
) (IDMap, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	o := m.org(organizationID)

	// Validate before touching anything so a failed batch leaves no trace.
	known := make(map[string]bool, len(applications))
	for _, a := range applications {
		known[a.ClientID] = true
	}
	for _, g := range grants {
		if _, ok := o.applications[g.ClientID]; !ok && !known[g.ClientID] {
			return nil, fmt.Errorf("grant %s references unknown application %s", g.ProviderGrantID, g.ClientID)
		}
	}

	for _, a := range applications {
		existing, ok := o.applications[a.ClientID]
		if !ok {
			existing = &storedApplication{ID: uuid.New()}
			o.applications[a.ClientID] = existing
		}
		existing.Application = a
	}

	ids := make(IDMap, len(grants))
	for _, g := range grants {
		existing, ok := o.grants[g.ProviderGrantID]
		if !ok {
			existing = &storedGrant{ID: uuid.New()}
			o.grants[g.ProviderGrantID] = existing
		}
		existing.AuthorizationGrant = g
		existing.ApplicationID = o.applications[g.ClientID].ID
		ids[g.ProviderGrantID] = existing.ID
	}
	return ids, nil
}

// UpsertScopes implements EntityWriter
func (m *MemoryEntityWriter) UpsertScopes(
	_ context.Context,
	organizationID string,
	scopes []GrantScope,
	applicationRisk map[string]string,
) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	o := m.org(organizationID)
	written := make(map[string]bool, len(scopes))
	for _, s := range scopes {
		key := s.GrantID.String() + "|" + s.Scope
		existing, ok := o.scopes[key]
		if !ok {
			existing = &storedScope{ID: uuid.New()}
			o.scopes[key] = existing
		}
		existing.GrantScope = s
		written[key] = true
	}

	for clientID, risk := range applicationRisk {
		if app, ok := o.applications[clientID]; ok {
			app.RiskLevel = risk
		}
	}
	return len(written), nil
}

// Users returns a copy of the stored users of an organization keyed by provider id
func (m *MemoryEntityWriter) Users(organizationID string) map[string]DirectoryUser {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string]DirectoryUser)
	if o, ok := m.orgs[organizationID]; ok {
		for k, u := range o.users {
			out[k] = u.DirectoryUser
		}
	}
	return out
}

// ApplicationSnapshot is the stored state of an application
type ApplicationSnapshot struct {
	Application
	RiskLevel string
}

// Applications returns a copy of the stored applications of an organization keyed by client id
func (m *MemoryEntityWriter) Applications(organizationID string) map[string]ApplicationSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string]ApplicationSnapshot)
	if o, ok := m.orgs[organizationID]; ok {
		for k, a := range o.applications {
			out[k] = ApplicationSnapshot{Application: a.Application, RiskLevel: a.RiskLevel}
		}
	}
	return out
}

// Grants returns a copy of the stored grants of an organization keyed by provider grant id
func (m *MemoryEntityWriter) Grants(organizationID string) map[string]AuthorizationGrant {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string]AuthorizationGrant)
	if o, ok := m.orgs[organizationID]; ok {
		for k, g := range o.grants {
			out[k] = g.AuthorizationGrant
		}
	}
	return out
}

// ScopeCount returns the number of stored scopes of an organization
func (m *MemoryEntityWriter) ScopeCount(organizationID string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if o, ok := m.orgs[organizationID]; ok {
		return len(o.scopes)
	}
	return 0
}
