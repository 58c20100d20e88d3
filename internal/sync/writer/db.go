package writer

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"k8s.io/utils/clock"

	"github.com/stitchflow-website/dirsync/internal/db/sqlc"
)

// dbEntityWriter is an EntityWriter implementation that persists data to PostgreSQL
type dbEntityWriter struct {
	pool  *pgxpool.Pool
	clock clock.PassiveClock
}

// NewDBEntityWriter creates a new database-backed entity writer.
// The caller is responsible for closing the pool when done.
func NewDBEntityWriter(pool *pgxpool.Pool, clk clock.PassiveClock) (EntityWriter, error) {
	if pool == nil {
		return nil, fmt.Errorf("database pool is required")
	}
	return &dbEntityWriter{pool: pool, clock: clk}, nil
}

func (d *dbEntityWriter) UpsertUsers(ctx context.Context, organizationID string, users []DirectoryUser) (IDMap, error) {
	users = dedupe(users, func(u DirectoryUser) string { return u.ProviderUserID })
	if len(users) == 0 {
		return IDMap{}, nil
	}

	params := sqlc.BulkUpsertDirectoryUsersParams{
		OrganizationID:     organizationID,
		SyncedAt:           d.now(),
		ProviderUserIds:    make([]string, len(users)),
		Emails:             make([]string, len(users)),
		DisplayNames:       make([]string, len(users)),
		IsAdmins:           make([]bool, len(users)),
		OrgUnitPaths:       make([]string, len(users)),
		SuspendedFlags:     make([]bool, len(users)),
		LastLoginAts:       make([]string, len(users)),
		ProviderCreatedAts: make([]string, len(users)),
	}
	for i, u := range users {
		params.ProviderUserIds[i] = u.ProviderUserID
		params.Emails[i] = u.Email
		params.DisplayNames[i] = u.DisplayName
		params.IsAdmins[i] = u.IsAdmin
		params.OrgUnitPaths[i] = u.OrgUnitPath
		params.SuspendedFlags[i] = u.Suspended
		params.LastLoginAts[i] = formatOptionalTime(u.LastLoginAt)
		params.ProviderCreatedAts[i] = formatOptionalTime(u.ProviderCreatedAt)
	}

	var ids IDMap
	err := d.inTx(ctx, func(queries *sqlc.Queries) error {
		if _, err := queries.BulkUpsertDirectoryUsers(ctx, params); err != nil {
			return fmt.Errorf("failed to upsert users: %w", err)
		}

		rows, err := queries.ListDirectoryUserIDs(ctx, sqlc.ListDirectoryUserIDsParams{
			OrganizationID:  organizationID,
			ProviderUserIds: params.ProviderUserIds,
		})
		if err != nil {
			return fmt.Errorf("failed to read back users: %w", err)
		}

		ids = make(IDMap, len(rows))
		for _, row := range rows {
			ids[row.ProviderUserID] = row.ID
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (d *dbEntityWriter) UpsertGrants(
	ctx context.Context,
	organizationID string,
	applications []Application,
	grants []AuthorizationGrant,
) (IDMap, error) {
	applications = dedupe(applications, func(a Application) string { return a.ClientID })
	grants = dedupe(grants, func(g AuthorizationGrant) string { return g.ProviderGrantID })
	if len(grants) == 0 && len(applications) == 0 {
		return IDMap{}, nil
	}

	syncedAt := d.now()

	var ids IDMap
	err := d.inTx(ctx, func(queries *sqlc.Queries) error {
		appIDs, err := upsertApplications(ctx, queries, organizationID, syncedAt, applications)
		if err != nil {
			return err
		}

		params := sqlc.BulkUpsertAuthorizationGrantsParams{
			OrganizationID:   organizationID,
			SyncedAt:         syncedAt,
			ProviderGrantIds: make([]string, len(grants)),
			UserIds:          make([]uuid.UUID, len(grants)),
			ApplicationIds:   make([]uuid.UUID, len(grants)),
			ClientIds:        make([]string, len(grants)),
			AnonymousFlags:   make([]bool, len(grants)),
			NativeAppFlags:   make([]bool, len(grants)),
		}
		for i, g := range grants {
			appID, ok := appIDs[g.ClientID]
			if !ok {
				return fmt.Errorf("grant %s references unknown application %s", g.ProviderGrantID, g.ClientID)
			}
			params.ProviderGrantIds[i] = g.ProviderGrantID
			params.UserIds[i] = g.UserID
			params.ApplicationIds[i] = appID
			params.ClientIds[i] = g.ClientID
			params.AnonymousFlags[i] = g.Anonymous
			params.NativeAppFlags[i] = g.NativeApp
		}

		if _, err := queries.BulkUpsertAuthorizationGrants(ctx, params); err != nil {
			return fmt.Errorf("failed to upsert grants: %w", err)
		}

		rows, err := queries.ListAuthorizationGrantIDs(ctx, sqlc.ListAuthorizationGrantIDsParams{
			OrganizationID:   organizationID,
			ProviderGrantIds: params.ProviderGrantIds,
		})
		if err != nil {
			return fmt.Errorf("failed to read back grants: %w", err)
		}

		ids = make(IDMap, len(rows))
		for _, row := range rows {
			ids[row.ProviderGrantID] = row.ID
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func upsertApplications(
	ctx context.Context,
	queries *sqlc.Queries,
	organizationID string,
	syncedAt time.Time,
	applications []Application,
) (IDMap, error) {
	if len(applications) == 0 {
		return IDMap{}, nil
	}

	params := sqlc.BulkUpsertApplicationsParams{
		OrganizationID: organizationID,
		SyncedAt:       syncedAt,
		ClientIds:      make([]string, len(applications)),
		DisplayNames:   make([]string, len(applications)),
		UserCounts:     make([]int32, len(applications)),
	}
	for i, a := range applications {
		params.ClientIds[i] = a.ClientID
		params.DisplayNames[i] = a.DisplayName
		params.UserCounts[i] = int32(a.UserCount)
	}

	if _, err := queries.BulkUpsertApplications(ctx, params); err != nil {
		return nil, fmt.Errorf("failed to upsert applications: %w", err)
	}

	rows, err := queries.ListApplicationIDs(ctx, sqlc.ListApplicationIDsParams{
		OrganizationID: organizationID,
		ClientIds:      params.ClientIds,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read back applications: %w", err)
	}

	ids := make(IDMap, len(rows))
	for _, row := range rows {
		ids[row.ClientID] = row.ID
	}
	return ids, nil
}

func (d *dbEntityWriter) UpsertScopes(
	ctx context.Context,
	organizationID string,
	scopes []GrantScope,
	applicationRisk map[string]string,
) (int, error) {
	scopes = dedupe(scopes, func(s GrantScope) string { return s.GrantID.String() + "|" + s.Scope })
	syncedAt := d.now()

	err := d.inTx(ctx, func(queries *sqlc.Queries) error {
		if len(scopes) > 0 {
			params := sqlc.BulkUpsertGrantScopesParams{
				OrganizationID: organizationID,
				SyncedAt:       syncedAt,
				GrantIds:       make([]uuid.UUID, len(scopes)),
				Scopes:         make([]string, len(scopes)),
				RiskLevels:     make([]string, len(scopes)),
			}
			for i, s := range scopes {
				params.GrantIds[i] = s.GrantID
				params.Scopes[i] = s.Scope
				params.RiskLevels[i] = s.RiskLevel
			}
			if _, err := queries.BulkUpsertGrantScopes(ctx, params); err != nil {
				return fmt.Errorf("failed to upsert scopes: %w", err)
			}
		}

		if len(applicationRisk) > 0 {
			clientIDs := make([]string, 0, len(applicationRisk))
			for clientID := range applicationRisk {
				clientIDs = append(clientIDs, clientID)
			}
			slices.Sort(clientIDs)

			riskLevels := make([]string, len(clientIDs))
			for i, clientID := range clientIDs {
				riskLevels[i] = applicationRisk[clientID]
			}

			_, err := queries.BulkUpdateApplicationRiskLevels(ctx, sqlc.BulkUpdateApplicationRiskLevelsParams{
				SyncedAt:       syncedAt,
				ClientIds:      clientIDs,
				RiskLevels:     riskLevels,
				OrganizationID: organizationID,
			})
			if err != nil {
				return fmt.Errorf("failed to update application risk levels: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return len(scopes), nil
}

func (d *dbEntityWriter) inTx(ctx context.Context, fn func(*sqlc.Queries) error) error {
	tx, err := d.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(sqlc.New(d.pool).WithTx(tx)); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (d *dbEntityWriter) now() time.Time {
	return d.clock.Now().UTC().Truncate(time.Microsecond)
}

func formatOptionalTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}
