// Package jobs runs background work on a river queue backed by the same
// Postgres pool the store uses. Handlers enqueue; workers write rows.
package jobs

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"github.com/sirupsen/logrus"

	"github.com/open-rails/workplan/store"
)

// NotifyArgs describes one notification fan-out: the same notification body
// delivered to every recipient, minus the actor.
type NotifyArgs struct {
	Recipients []uuid.UUID `json:"recipients"`
	Type       string      `json:"type"`
	Title      string      `json:"title"`
	Message    string      `json:"message"`

	ActorID   *uuid.UUID `json:"actor_id,omitempty"`
	TaskID    *uuid.UUID `json:"task_id,omitempty"`
	ProjectID *uuid.UUID `json:"project_id,omitempty"`
	CommentID *uuid.UUID `json:"comment_id,omitempty"`
}

// Kind implements river.JobArgs.
func (NotifyArgs) Kind() string { return "notification_fanout" }

// NotifyWorker writes one notification row per recipient.
type NotifyWorker struct {
	river.WorkerDefaults[NotifyArgs]
	Store *store.Store
	Log   *logrus.Logger
}

// Work inserts the rows. Recipients equal to the actor are skipped: users
// do not get notified about their own actions.
func (w *NotifyWorker) Work(ctx context.Context, job *river.Job[NotifyArgs]) error {
	a := job.Args
	seen := make(map[uuid.UUID]struct{}, len(a.Recipients))
	for _, r := range a.Recipients {
		if a.ActorID != nil && r == *a.ActorID {
			continue
		}
		if _, dup := seen[r]; dup {
			continue
		}
		seen[r] = struct{}{}

		n := &store.Notification{
			UserID:           r,
			Type:             a.Type,
			Title:            a.Title,
			Message:          a.Message,
			ActorID:          a.ActorID,
			RelatedTaskID:    a.TaskID,
			RelatedProjectID: a.ProjectID,
			RelatedCommentID: a.CommentID,
		}
		if err := w.Store.InsertNotification(ctx, n); err != nil {
			return err
		}
		w.Log.WithFields(logrus.Fields{"user_id": r, "type": a.Type}).Info("created notification")
	}
	return nil
}

// Notifier is what handlers see: enqueue and forget.
type Notifier interface {
	Notify(ctx context.Context, args NotifyArgs) error
}

// Client wraps a river client configured with this package's workers.
type Client struct {
	river *river.Client[pgx.Tx]
}

// NewClient builds a river client on the shared pgx pool.
func NewClient(pool *pgxpool.Pool, st *store.Store, log *logrus.Logger) (*Client, error) {
	workers := river.NewWorkers()
	river.AddWorker(workers, &NotifyWorker{Store: st, Log: log})

	rc, err := river.NewClient(riverpgxv5.New(pool), &river.Config{
		Queues: map[string]river.QueueConfig{
			river.QueueDefault: {MaxWorkers: 4},
		},
		Workers: workers,
	})
	if err != nil {
		return nil, err
	}
	return &Client{river: rc}, nil
}

// Start begins job processing.
func (c *Client) Start(ctx context.Context) error { return c.river.Start(ctx) }

// Stop drains and stops job processing.
func (c *Client) Stop(ctx context.Context) error { return c.river.Stop(ctx) }

// Notify enqueues a fan-out job.
func (c *Client) Notify(ctx context.Context, args NotifyArgs) error {
	_, err := c.river.Insert(ctx, args, nil)
	return err
}
