// Package writer persists the directory entities imported by the sync stages.
package writer

import (
	"context"
	"time"

	"github.com/google/uuid"
)

//go:generate mockgen -destination=mocks/mock_entity_writer.go -package=mocks -source=writer.go EntityWriter

// Risk levels attached to scopes and applications
const (
	RiskLow    = "low"
	RiskMedium = "medium"
	RiskHigh   = "high"
)

// DirectoryUser is a user account as imported from the directory provider
type DirectoryUser struct {
	ProviderUserID    string
	Email             string
	DisplayName       string
	IsAdmin           bool
	OrgUnitPath       string
	Suspended         bool
	LastLoginAt       *time.Time
	ProviderCreatedAt *time.Time
}

// Application is a third-party client derived from the grants users gave it
type Application struct {
	ClientID    string
	DisplayName string

	// UserCount is the number of distinct users holding a grant in the latest fetch.
	// It overwrites the stored value; it is never added to it.
	UserCount int
}

// AuthorizationGrant links a user to an application
type AuthorizationGrant struct {
	// ProviderGrantID is the natural key, "<providerUserId>:<clientId>"
	ProviderGrantID string
	UserID          uuid.UUID
	ClientID        string
	Anonymous       bool
	NativeApp       bool
}

// GrantScope is one permission carried by a grant
type GrantScope struct {
	GrantID   uuid.UUID
	Scope     string
	RiskLevel string
}

// IDMap maps a provider-side natural key to the internal id of the stored row
type IDMap map[string]uuid.UUID

// EntityWriter stores imported entities. Every method performs a single batch
// upsert keyed by natural key, so running it twice with the same input leaves the
// store unchanged, and then re-reads the written rows to build the id mapping.
type EntityWriter interface {
	// UpsertUsers stores users and returns providerUserId -> internal id.
	UpsertUsers(ctx context.Context, organizationID string, users []DirectoryUser) (IDMap, error)

	// UpsertGrants stores the applications and the grants referencing them in one
	// transaction and returns providerGrantId -> internal id.
	UpsertGrants(
		ctx context.Context,
		organizationID string,
		applications []Application,
		grants []AuthorizationGrant,
	) (IDMap, error)

	// UpsertScopes stores scopes and overwrites the risk level of the given
	// applications (clientId -> risk) in one transaction. It returns the number of
	// scopes written.
	UpsertScopes(
		ctx context.Context,
		organizationID string,
		scopes []GrantScope,
		applicationRisk map[string]string,
	) (int, error)
}

// ProviderGrantID builds the natural key of a grant
func ProviderGrantID(providerUserID, clientID string) string {
	return providerUserID + ":" + clientID
}

// RiskRank orders risk levels; unknown levels rank lowest.
func RiskRank(level string) int {
	switch level {
	case RiskHigh:
		return 3
	case RiskMedium:
		return 2
	case RiskLow:
		return 1
	default:
		return 0
	}
}

// dedupe keeps the last item for every key, preserving first-seen order.
// A batch upsert cannot touch the same row twice.
func dedupe[T any](items []T, key func(T) string) []T {
	index := make(map[string]int, len(items))
	out := make([]T, 0, len(items))
	for _, item := range items {
		k := key(item)
		if i, ok := index[k]; ok {
			out[i] = item
			continue
		}
		index[k] = len(out)
		out = append(out, item)
	}
	return out
}
