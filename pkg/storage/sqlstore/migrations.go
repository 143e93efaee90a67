package sqlstore

import "github.com/info-creator-nilreb/dpp-sub002/pkg/storage/migrate"

// MigrationComponent names the template schema in schema_migrations
const MigrationComponent = "templates"

// GetMigrations returns all template schema migrations. The SQL is valid on
// PostgreSQL and SQLite.
func GetMigrations() []migrate.Migration {
	return []migrate.Migration{
		{
			Version:     1,
			Description: "Create templates, template_blocks and template_fields tables",
			SQL: `
				CREATE TABLE IF NOT EXISTS templates (
					id VARCHAR(36) PRIMARY KEY,
					name VARCHAR(255) NOT NULL,
					category VARCHAR(64) NOT NULL,
					category_label VARCHAR(255) NOT NULL DEFAULT '',
					industry VARCHAR(255) NOT NULL DEFAULT '',
					description TEXT NOT NULL DEFAULT '',
					version INTEGER NOT NULL,
					status VARCHAR(16) NOT NULL,
					effective_from TIMESTAMP NULL,
					supersedes_version INTEGER NULL,
					created_by VARCHAR(255) NOT NULL,
					created_at TIMESTAMP NOT NULL,
					updated_at TIMESTAMP NOT NULL,
					CONSTRAINT ck_templates_status CHECK (status IN ('draft', 'active', 'archived')),
					CONSTRAINT ck_templates_version CHECK (version >= 1)
				);

				CREATE INDEX IF NOT EXISTS idx_templates_category_version
					ON templates(category, version);

				CREATE TABLE IF NOT EXISTS template_blocks (
					id VARCHAR(36) PRIMARY KEY,
					template_id VARCHAR(36) NOT NULL REFERENCES templates(id) ON DELETE CASCADE,
					name VARCHAR(255) NOT NULL,
					sort_order INTEGER NOT NULL DEFAULT 0,
					created_at TIMESTAMP NOT NULL
				);

				CREATE INDEX IF NOT EXISTS idx_template_blocks_template
					ON template_blocks(template_id, sort_order);

				CREATE TABLE IF NOT EXISTS template_fields (
					id VARCHAR(36) PRIMARY KEY,
					template_id VARCHAR(36) NOT NULL REFERENCES templates(id) ON DELETE CASCADE,
					block_id VARCHAR(36) NOT NULL REFERENCES template_blocks(id) ON DELETE CASCADE,
					label VARCHAR(255) NOT NULL,
					field_key VARCHAR(64) NOT NULL,
					field_type VARCHAR(32) NOT NULL,
					required BOOLEAN NOT NULL DEFAULT FALSE,
					regulatory_required BOOLEAN NOT NULL DEFAULT FALSE,
					repeatable BOOLEAN NOT NULL DEFAULT FALSE,
					config TEXT NULL,
					sort_order INTEGER NOT NULL DEFAULT 0,
					created_at TIMESTAMP NOT NULL
				);

				CREATE INDEX IF NOT EXISTS idx_template_fields_block
					ON template_fields(block_id, sort_order);
				CREATE INDEX IF NOT EXISTS idx_template_fields_template
					ON template_fields(template_id);
			`,
		},
		{
			Version:     2,
			Description: "Enforce one active template per category and one successor per version",
			SQL: `
				CREATE UNIQUE INDEX IF NOT EXISTS ux_templates_active_category
					ON templates(category) WHERE status = 'active';

				CREATE UNIQUE INDEX IF NOT EXISTS ux_templates_successor
					ON templates(category, supersedes_version) WHERE supersedes_version IS NOT NULL;
			`,
		},
		{
			Version:     3,
			Description: "Add field provenance",
			SQL: `
				ALTER TABLE template_fields ADD COLUMN introduced_in_version INTEGER NULL;
			`,
		},
		{
			Version:     4,
			Description: "Link successors to their source template",
			SQL: `
				ALTER TABLE templates ADD COLUMN supersedes_template_id VARCHAR(36) NULL;

				UPDATE templates SET supersedes_template_id = (
					SELECT p.id FROM templates p
					WHERE p.category = templates.category AND p.version = templates.supersedes_version
				)
				WHERE supersedes_version IS NOT NULL AND (
					SELECT COUNT(*) FROM templates p
					WHERE p.category = templates.category AND p.version = templates.supersedes_version
				) = 1;

				DROP INDEX IF EXISTS ux_templates_successor;
				CREATE UNIQUE INDEX IF NOT EXISTS ux_templates_successor
					ON templates(supersedes_template_id) WHERE supersedes_template_id IS NOT NULL;
			`,
		},
	}
}
