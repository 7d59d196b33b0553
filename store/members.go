package store

import (
	"context"

	"github.com/google/uuid"
)

func (s *Store) AddMember(ctx context.Context, m *ProjectMember) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	if m.Role == "" {
		m.Role = "member"
	}
	_, err := s.db.NewInsert().Model(m).Returning("*").Exec(ctx)
	return err
}

func (s *Store) ListMembers(ctx context.Context, projectID uuid.UUID) ([]ProjectMember, error) {
	var members []ProjectMember
	err := s.db.NewSelect().Model(&members).
		Relation("User").
		Where("pm.project_id = ?", projectID).
		Order("pm.joined_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return members, nil
}

func (s *Store) RemoveMember(ctx context.Context, projectID, userID uuid.UUID) error {
	res, err := s.db.NewDelete().Model((*ProjectMember)(nil)).
		Where("project_id = ? AND user_id = ?", projectID, userID).
		Exec(ctx)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
