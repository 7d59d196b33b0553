package store

import (
	"context"
	"time"

	"github.com/google/uuid"
)

func (s *Store) CreateTask(ctx context.Context, t *Task) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	_, err := s.db.NewInsert().Model(t).Returning("*").Exec(ctx)
	return err
}

func (s *Store) TaskByID(ctx context.Context, id uuid.UUID) (*Task, error) {
	t := new(Task)
	err := s.db.NewSelect().Model(t).
		Where("t.id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, notFoundOr(err)
	}
	return t, nil
}

func (s *Store) ListTasks(ctx context.Context, projectID uuid.UUID, limit, offset int) ([]Task, int, error) {
	var tasks []Task
	total, err := s.db.NewSelect().Model(&tasks).
		Where("project_id = ?", projectID).
		Order("created_at DESC").
		Limit(limit).Offset(offset).
		ScanAndCount(ctx)
	if err != nil {
		return nil, 0, err
	}
	return tasks, total, nil
}

// TasksAssignedTo returns every task assigned to the user.
func (s *Store) TasksAssignedTo(ctx context.Context, userID uuid.UUID) ([]Task, error) {
	var tasks []Task
	err := s.db.NewSelect().Model(&tasks).
		Where("assigned_to = ?", userID).
		Order("created_at DESC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return tasks, nil
}

func (s *Store) UpdateTask(ctx context.Context, t *Task) error {
	t.UpdatedAt = time.Now()
	res, err := s.db.NewUpdate().Model(t).WherePK().Exec(ctx)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) DeleteTask(ctx context.Context, id uuid.UUID) error {
	res, err := s.db.NewDelete().Model((*Task)(nil)).Where("id = ?", id).Exec(ctx)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
