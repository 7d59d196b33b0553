package store

import (
	"context"

	"github.com/google/uuid"
)

func (s *Store) CreateComment(ctx context.Context, c *Comment) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	_, err := s.db.NewInsert().Model(c).Returning("*").Exec(ctx)
	return err
}

func (s *Store) CommentByID(ctx context.Context, id uuid.UUID) (*Comment, error) {
	c := new(Comment)
	err := s.db.NewSelect().Model(c).
		Where("c.id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, notFoundOr(err)
	}
	return c, nil
}

func (s *Store) ListComments(ctx context.Context, taskID uuid.UUID) ([]Comment, error) {
	var comments []Comment
	err := s.db.NewSelect().Model(&comments).
		Where("task_id = ?", taskID).
		Order("created_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return comments, nil
}

func (s *Store) DeleteComment(ctx context.Context, id uuid.UUID) error {
	res, err := s.db.NewDelete().Model((*Comment)(nil)).Where("id = ?", id).Exec(ctx)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
