package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// EntryOverlaps is the overlap rule for one existing entry: a new entry may
// not start inside [existing.start, existing.end); an open-ended entry is
// treated as unbounded.
func EntryOverlaps(existingStart time.Time, existingEnd *time.Time, newStart time.Time) bool {
	if existingStart.After(newStart) {
		return false
	}
	return existingEnd == nil || existingEnd.After(newStart)
}

// RunningEntry returns the user's currently running entry, if any.
// At most one entry may run at a time per user.
func (s *Store) RunningEntry(ctx context.Context, userID uuid.UUID) (*TimeEntry, error) {
	te := new(TimeEntry)
	err := s.db.NewSelect().Model(te).
		Where("user_id = ? AND is_running = TRUE", userID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, notFoundOr(err)
	}
	return te, nil
}

// HasOverlap reports whether any of the user's entries (other than exclude)
// overlaps a new entry starting at start. Mirrors EntryOverlaps in SQL.
func (s *Store) HasOverlap(ctx context.Context, userID uuid.UUID, start time.Time, exclude uuid.UUID) (bool, error) {
	q := s.db.NewSelect().Model((*TimeEntry)(nil)).
		Where("user_id = ?", userID).
		Where("start_time <= ?", start).
		WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Where("end_time IS NULL").WhereOr("end_time > ?", start)
		})
	if exclude != uuid.Nil {
		q = q.Where("te.id != ?", exclude)
	}
	n, err := q.Count(ctx)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *Store) CreateTimeEntry(ctx context.Context, te *TimeEntry) error {
	if te.ID == uuid.Nil {
		te.ID = uuid.New()
	}
	te.IsRunning = te.EndTime == nil
	_, err := s.db.NewInsert().Model(te).Returning("*").Exec(ctx)
	return err
}

func (s *Store) TimeEntryByID(ctx context.Context, id uuid.UUID) (*TimeEntry, error) {
	te := new(TimeEntry)
	err := s.db.NewSelect().Model(te).
		Where("te.id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, notFoundOr(err)
	}
	return te, nil
}

// StopTimeEntry closes a running entry at end.
func (s *Store) StopTimeEntry(ctx context.Context, id uuid.UUID, end time.Time) (*TimeEntry, error) {
	te, err := s.TimeEntryByID(ctx, id)
	if err != nil {
		return nil, err
	}
	te.EndTime = &end
	te.IsRunning = false
	te.UpdatedAt = time.Now()
	if _, err := s.db.NewUpdate().Model(te).WherePK().Exec(ctx); err != nil {
		return nil, err
	}
	return te, nil
}

func (s *Store) UpdateTimeEntry(ctx context.Context, te *TimeEntry) error {
	te.IsRunning = te.EndTime == nil
	te.UpdatedAt = time.Now()
	res, err := s.db.NewUpdate().Model(te).WherePK().Exec(ctx)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// EntryFilter narrows a summary query. Nil fields are unconstrained; the
// time bounds match on start_time.
type EntryFilter struct {
	Start     *time.Time
	End       *time.Time
	ProjectID *uuid.UUID
	UserID    *uuid.UUID
}

// EntriesForSummary returns every entry matching the filter with its
// project attached, oldest first. Unpaginated; the summary needs the full
// set to aggregate.
func (s *Store) EntriesForSummary(ctx context.Context, f EntryFilter) ([]TimeEntry, error) {
	var entries []TimeEntry
	q := s.db.NewSelect().Model(&entries).Relation("Project")
	if f.Start != nil {
		q = q.Where("te.start_time >= ?", *f.Start)
	}
	if f.End != nil {
		q = q.Where("te.start_time <= ?", *f.End)
	}
	if f.ProjectID != nil {
		q = q.Where("te.project_id = ?", *f.ProjectID)
	}
	if f.UserID != nil {
		q = q.Where("te.user_id = ?", *f.UserID)
	}
	if err := q.Order("te.start_time ASC").Scan(ctx); err != nil {
		return nil, err
	}
	return entries, nil
}

// ListTimeEntries returns the user's entries, optionally narrowed to one
// task, newest first.
func (s *Store) ListTimeEntries(ctx context.Context, userID uuid.UUID, taskID *uuid.UUID, limit, offset int) ([]TimeEntry, int, error) {
	var entries []TimeEntry
	q := s.db.NewSelect().Model(&entries).Where("user_id = ?", userID)
	if taskID != nil {
		q = q.Where("task_id = ?", *taskID)
	}
	total, err := q.Order("start_time DESC").Limit(limit).Offset(offset).ScanAndCount(ctx)
	if err != nil {
		return nil, 0, err
	}
	return entries, total, nil
}
