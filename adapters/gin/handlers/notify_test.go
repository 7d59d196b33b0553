package handlers

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/open-rails/workplan/jobs"
)

type stubNotifier struct {
	calls []jobs.NotifyArgs
	err   error
}

func (s *stubNotifier) Notify(_ context.Context, args jobs.NotifyArgs) error {
	s.calls = append(s.calls, args)
	return s.err
}

func captureLog() (*logrus.Logger, *bytes.Buffer) {
	log := logrus.New()
	buf := new(bytes.Buffer)
	log.SetOutput(buf)
	return log, buf
}

func TestEnqueueNotificationLogsInsertFailure(t *testing.T) {
	log, buf := captureLog()
	n := &stubNotifier{err: errors.New("queue unavailable")}

	enqueueNotification(context.Background(), n, log, jobs.NotifyArgs{
		Recipients: []uuid.UUID{uuid.New()},
		Type:       "task_assigned",
	})

	if len(n.calls) != 1 {
		t.Fatalf("Notify called %d times, want 1", len(n.calls))
	}
	out := buf.String()
	if !strings.Contains(out, "failed to enqueue notification fan-out") {
		t.Errorf("log output %q missing enqueue failure warning", out)
	}
	if !strings.Contains(out, "queue unavailable") {
		t.Errorf("log output %q missing underlying error", out)
	}
}

func TestEnqueueNotificationQuietOnSuccess(t *testing.T) {
	log, buf := captureLog()
	n := &stubNotifier{}

	args := jobs.NotifyArgs{Recipients: []uuid.UUID{uuid.New()}, Type: "comment_added"}
	enqueueNotification(context.Background(), n, log, args)

	if len(n.calls) != 1 || n.calls[0].Type != "comment_added" {
		t.Fatalf("Notify calls = %+v, want one comment_added", n.calls)
	}
	if buf.Len() != 0 {
		t.Errorf("unexpected log output: %q", buf.String())
	}
}

func TestEnqueueNotificationNilNotifier(t *testing.T) {
	log, buf := captureLog()
	enqueueNotification(context.Background(), nil, log, jobs.NotifyArgs{})
	if buf.Len() != 0 {
		t.Errorf("unexpected log output: %q", buf.String())
	}
}
