package rbac

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// SQLStore persists organization memberships. It uses $N placeholders and
// portable SQL so it runs on PostgreSQL and SQLite alike.
type SQLStore struct {
	db *sql.DB
}

// NewSQLStore creates a new membership store
func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db}
}

// ListMemberships implements MembershipStore
func (s *SQLStore) ListMemberships(ctx context.Context, userID, organizationID string) ([]Membership, error) {
	query := `
		SELECT user_id, organization_id, role
		FROM organization_members
		WHERE user_id = $1 AND organization_id = $2
	`

	rows, err := s.db.QueryContext(ctx, query, userID, organizationID)
	if err != nil {
		return nil, fmt.Errorf("failed to query memberships: %w", err)
	}
	defer rows.Close()

	var memberships []Membership
	for rows.Next() {
		var m Membership
		if err := rows.Scan(&m.UserID, &m.OrganizationID, &m.Role); err != nil {
			return nil, fmt.Errorf("failed to scan membership: %w", err)
		}
		memberships = append(memberships, m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating memberships: %w", err)
	}

	return memberships, nil
}

// AddMembership inserts a membership row. Duplicates are permitted.
func (s *SQLStore) AddMembership(ctx context.Context, m Membership) error {
	query := `
		INSERT INTO organization_members (id, user_id, organization_id, role, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err := s.db.ExecContext(ctx, query, uuid.NewString(), m.UserID, m.OrganizationID, m.Role, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to add membership: %w", err)
	}
	return nil
}

// RemoveMemberships deletes every membership of the user in the organization
func (s *SQLStore) RemoveMemberships(ctx context.Context, userID, organizationID string) error {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM organization_members WHERE user_id = $1 AND organization_id = $2`,
		userID, organizationID,
	)
	if err != nil {
		return fmt.Errorf("failed to remove memberships: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("membership not found")
	}
	return nil
}
