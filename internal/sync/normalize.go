package sync

import (
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"

	"github.com/stitchflow-website/dirsync/internal/sync/writer"
)

// UnknownDisplayName replaces names the provider did not send
const UnknownDisplayName = "Unknown"

// placeholderKey derives a stable natural key for an item that has none, so a
// malformed item maps to the same row on every run.
func placeholderKey(prefix string, item gjson.Result) string {
	sum := sha256.Sum256([]byte(item.Raw))
	return prefix + "-" + hex.EncodeToString(sum[:8])
}

func stringOr(item gjson.Result, path, fallback string) string {
	v := item.Get(path)
	if v.Type != gjson.String || strings.TrimSpace(v.String()) == "" {
		return fallback
	}
	return v.String()
}

// optionalTime parses an RFC 3339 timestamp. The provider reports the epoch for
// events that never happened; those become nil too.
func optionalTime(item gjson.Result, path string) *time.Time {
	v := item.Get(path)
	if v.Type != gjson.String {
		return nil
	}
	t, err := time.Parse(time.RFC3339Nano, v.String())
	if err != nil || !t.After(time.Unix(0, 0)) {
		return nil
	}
	t = t.UTC()
	return &t
}

// userBatch is the normalized output of the users stage
type userBatch struct {
	users []writer.DirectoryUser

	// synthesized holds the keys made up for users sent without an id. The
	// provider does not know them, so later stages never ask for them.
	synthesized  []string
	placeholders int
}

// normalizeUsers converts raw directory users. Malformed items become
// placeholders instead of failing the batch.
func normalizeUsers(items []gjson.Result) userBatch {
	batch := userBatch{users: make([]writer.DirectoryUser, 0, len(items))}

	for _, item := range items {
		if !item.IsObject() {
			key := placeholderKey("unknown-user", item)
			batch.placeholders++
			batch.synthesized = append(batch.synthesized, key)
			batch.users = append(batch.users, writer.DirectoryUser{
				ProviderUserID: key,
				DisplayName:    UnknownDisplayName,
			})
			continue
		}

		id := stringOr(item, "id", "")
		name := stringOr(item, "name.fullName", "")
		if name == "" {
			given, family := stringOr(item, "name.givenName", ""), stringOr(item, "name.familyName", "")
			name = strings.TrimSpace(given + " " + family)
		}
		if id == "" || name == "" {
			batch.placeholders++
		}
		if id == "" {
			id = placeholderKey("unknown-user", item)
			batch.synthesized = append(batch.synthesized, id)
		}
		if name == "" {
			name = UnknownDisplayName
		}

		batch.users = append(batch.users, writer.DirectoryUser{
			ProviderUserID:    id,
			Email:             stringOr(item, "primaryEmail", ""),
			DisplayName:       name,
			IsAdmin:           item.Get("isAdmin").Bool(),
			OrgUnitPath:       stringOr(item, "orgUnitPath", ""),
			Suspended:         item.Get("suspended").Bool(),
			LastLoginAt:       optionalTime(item, "lastLoginTime"),
			ProviderCreatedAt: optionalTime(item, "creationTime"),
		})
	}
	return batch
}

// grantBatch is the normalized output of the grants stage
type grantBatch struct {
	applications []writer.Application
	grants       []writer.AuthorizationGrant
	refs         map[string]GrantRef
	placeholders int
}

// normalizeGrants converts the raw grants of each user. results[i] holds the
// grants of userKeys[i]. Application user counts are the number of distinct
// users holding a grant in this batch.
func normalizeGrants(userKeys []string, results [][]gjson.Result, userIDs map[string]uuid.UUID) grantBatch {
	batch := grantBatch{refs: make(map[string]GrantRef)}

	type appState struct {
		name  string
		users map[string]struct{}
	}
	apps := make(map[string]*appState)
	var appOrder []string

	for i, userKey := range userKeys {
		userID, ok := userIDs[userKey]
		if !ok {
			slog.Warn("Skipping grants of unmapped user", "user_key", userKey)
			continue
		}

		for _, item := range results[i] {
			clientID := stringOr(item, "clientId", "")
			name := stringOr(item, "displayText", "")
			if !item.IsObject() || clientID == "" || name == "" {
				batch.placeholders++
			}
			if clientID == "" {
				clientID = placeholderKey("unknown-client", item)
			}

			app, seen := apps[clientID]
			if !seen {
				app = &appState{name: UnknownDisplayName, users: make(map[string]struct{})}
				apps[clientID] = app
				appOrder = append(appOrder, clientID)
			}
			if name != "" && app.name == UnknownDisplayName {
				app.name = name
			}
			app.users[userKey] = struct{}{}

			grantID := writer.ProviderGrantID(userKey, clientID)
			if _, dup := batch.refs[grantID]; dup {
				continue
			}
			batch.refs[grantID] = GrantRef{UserKey: userKey, ClientID: clientID}
			batch.grants = append(batch.grants, writer.AuthorizationGrant{
				ProviderGrantID: grantID,
				UserID:          userID,
				ClientID:        clientID,
				Anonymous:       item.Get("anonymous").Bool(),
				NativeApp:       item.Get("nativeApp").Bool(),
			})
		}
	}

	for _, clientID := range appOrder {
		app := apps[clientID]
		batch.applications = append(batch.applications, writer.Application{
			ClientID:    clientID,
			DisplayName: app.name,
			UserCount:   len(app.users),
		})
	}
	return batch
}

// scopeBatch is the normalized output of the scopes stage
type scopeBatch struct {
	scopes          []writer.GrantScope
	applicationRisk map[string]string
	skipped         int
}

// normalizeScopes converts the raw scopes of each grant. results[i] holds the
// scopes of grantKeys[i]. Every application of the batch gets the highest risk
// of its scopes, low when it has none.
func normalizeScopes(
	grantKeys []string,
	results [][]gjson.Result,
	grantIDs map[string]uuid.UUID,
	refs map[string]GrantRef,
) scopeBatch {
	batch := scopeBatch{applicationRisk: make(map[string]string)}

	for i, key := range grantKeys {
		clientID := refs[key].ClientID
		if _, ok := batch.applicationRisk[clientID]; !ok {
			batch.applicationRisk[clientID] = writer.RiskLow
		}

		seen := make(map[string]bool)
		for _, item := range results[i] {
			scope := strings.TrimSpace(item.String())
			if item.Type != gjson.String || scope == "" {
				batch.skipped++
				continue
			}
			if seen[scope] {
				continue
			}
			seen[scope] = true

			risk := ClassifyScope(scope)
			batch.scopes = append(batch.scopes, writer.GrantScope{
				GrantID:   grantIDs[key],
				Scope:     scope,
				RiskLevel: risk,
			})
			if writer.RiskRank(risk) > writer.RiskRank(batch.applicationRisk[clientID]) {
				batch.applicationRisk[clientID] = risk
			}
		}
	}
	return batch
}

// grantRefFor resolves where a grant lives at the provider, from the carryover
// when present and from the natural key otherwise.
func grantRefFor(key string, refs map[string]GrantRef) (GrantRef, bool) {
	if ref, ok := refs[key]; ok && ref.UserKey != "" && ref.ClientID != "" {
		return ref, true
	}
	userKey, clientID, ok := strings.Cut(key, ":")
	if !ok || userKey == "" || clientID == "" {
		return GrantRef{}, false
	}
	return GrantRef{UserKey: userKey, ClientID: clientID}, true
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
