package store

import (
	"context"
	"time"

	"github.com/google/uuid"
)

func (s *Store) InsertNotification(ctx context.Context, n *Notification) error {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	_, err := s.db.NewInsert().Model(n).Returning("*").Exec(ctx)
	return err
}

// ListNotifications returns the user's notifications, newest first.
func (s *Store) ListNotifications(ctx context.Context, userID uuid.UUID, unreadOnly bool, limit, offset int) ([]Notification, error) {
	var ns []Notification
	q := s.db.NewSelect().Model(&ns).Where("user_id = ?", userID)
	if unreadOnly {
		q = q.Where("is_read = FALSE")
	}
	err := q.Order("created_at DESC").Limit(limit).Offset(offset).Scan(ctx)
	if err != nil {
		return nil, err
	}
	return ns, nil
}

// MarkNotificationRead marks one of the user's notifications as read.
// Scoped by user so nobody can ack someone else's notification.
func (s *Store) MarkNotificationRead(ctx context.Context, id, userID uuid.UUID) error {
	now := time.Now()
	res, err := s.db.NewUpdate().Model((*Notification)(nil)).
		Set("is_read = TRUE").
		Set("read_at = ?", now).
		Where("id = ? AND user_id = ?", id, userID).
		Exec(ctx)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) MarkAllNotificationsRead(ctx context.Context, userID uuid.UUID) (int64, error) {
	now := time.Now()
	res, err := s.db.NewUpdate().Model((*Notification)(nil)).
		Set("is_read = TRUE").
		Set("read_at = ?", now).
		Where("user_id = ? AND is_read = FALSE", userID).
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	return n, nil
}

func (s *Store) UnreadNotificationCount(ctx context.Context, userID uuid.UUID) (int, error) {
	return s.db.NewSelect().Model((*Notification)(nil)).
		Where("user_id = ? AND is_read = FALSE", userID).
		Count(ctx)
}

// PruneReadNotifications deletes read notifications older than cutoff.
// Run from the daily cron job.
func (s *Store) PruneReadNotifications(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.NewDelete().Model((*Notification)(nil)).
		Where("is_read = TRUE AND created_at < ?", cutoff).
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	return n, nil
}
