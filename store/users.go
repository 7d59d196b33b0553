package store

import (
	"context"

	"github.com/google/uuid"
)

// UserBySubject resolves the provisioned row for an IdP subject.
func (s *Store) UserBySubject(ctx context.Context, keycloakID string) (*User, error) {
	u := new(User)
	err := s.db.NewSelect().Model(u).
		Where("keycloak_id = ?", keycloakID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, notFoundOr(err)
	}
	return u, nil
}

func (s *Store) UserByID(ctx context.Context, id uuid.UUID) (*User, error) {
	u := new(User)
	err := s.db.NewSelect().Model(u).
		Where("u.id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, notFoundOr(err)
	}
	return u, nil
}

// ListUsers returns all active users, newest first.
func (s *Store) ListUsers(ctx context.Context, limit, offset int) ([]User, int, error) {
	var users []User
	q := s.db.NewSelect().Model(&users).
		Where("is_active = TRUE").
		Order("created_at DESC")
	total, err := q.Limit(limit).Offset(offset).ScanAndCount(ctx)
	if err != nil {
		return nil, 0, err
	}
	return users, total, nil
}
