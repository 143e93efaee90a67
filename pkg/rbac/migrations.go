package rbac

import "github.com/info-creator-nilreb/dpp-sub002/pkg/storage/migrate"

// MigrationComponent names the rbac schema in schema_migrations
const MigrationComponent = "rbac"

// GetMigrations returns all RBAC migrations
func GetMigrations() []migrate.Migration {
	return []migrate.Migration{
		{
			Version:     1,
			Description: "Create organization_members table",
			SQL: `
				CREATE TABLE IF NOT EXISTS organization_members (
					id VARCHAR(36) PRIMARY KEY,
					user_id VARCHAR(255) NOT NULL,
					organization_id VARCHAR(255) NOT NULL,
					role VARCHAR(32) NOT NULL,
					created_at TIMESTAMP NOT NULL
				);

				CREATE INDEX IF NOT EXISTS idx_organization_members_user_org
					ON organization_members(user_id, organization_id);
			`,
		},
	}
}
