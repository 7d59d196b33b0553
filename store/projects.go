package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
)

func (s *Store) CreateProject(ctx context.Context, p *Project) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	_, err := s.db.NewInsert().Model(p).Returning("*").Exec(ctx)
	return err
}

func (s *Store) ProjectByID(ctx context.Context, id uuid.UUID) (*Project, error) {
	p := new(Project)
	err := s.db.NewSelect().Model(p).
		Where("p.id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, notFoundOr(err)
	}
	return p, nil
}

// ListProjects returns a page of projects. When restrictTo is non-nil, only
// projects the user owns or belongs to are visible (regular-user view).
func (s *Store) ListProjects(ctx context.Context, restrictTo *uuid.UUID, limit, offset int) ([]Project, int, error) {
	var projects []Project
	q := s.db.NewSelect().Model(&projects)
	if restrictTo != nil {
		q = q.Where(
			"p.owner_id = ? OR p.id IN (SELECT project_id FROM project_members WHERE user_id = ?)",
			*restrictTo, *restrictTo,
		)
	}
	total, err := q.Order("created_at DESC").Limit(limit).Offset(offset).ScanAndCount(ctx)
	if err != nil {
		return nil, 0, err
	}
	return projects, total, nil
}

func (s *Store) UpdateProject(ctx context.Context, p *Project) error {
	p.UpdatedAt = time.Now()
	res, err := s.db.NewUpdate().Model(p).WherePK().Exec(ctx)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) DeleteProject(ctx context.Context, id uuid.UUID) error {
	res, err := s.db.NewDelete().Model((*Project)(nil)).Where("id = ?", id).Exec(ctx)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// MemberRole returns the membership role for (project, user), or ErrNotFound
// when no membership row exists. This is the scoped-manager fact source.
func (s *Store) MemberRole(ctx context.Context, projectID, userID uuid.UUID) (string, error) {
	var role string
	err := s.db.NewSelect().Model((*ProjectMember)(nil)).
		Column("role").
		Where("project_id = ? AND user_id = ?", projectID, userID).
		Limit(1).
		Scan(ctx, &role)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", err
	}
	return role, nil
}

// IsProjectMember reports whether the user owns the project or has a
// membership row. Used for read access on project-scoped resources.
func (s *Store) IsProjectMember(ctx context.Context, projectID, userID uuid.UUID) (bool, error) {
	p, err := s.ProjectByID(ctx, projectID)
	if err != nil {
		return false, err
	}
	if p.OwnerID == userID {
		return true, nil
	}
	n, err := s.db.NewSelect().Model((*ProjectMember)(nil)).
		Where("project_id = ? AND user_id = ?", projectID, userID).
		Count(ctx)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
