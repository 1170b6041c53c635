package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/pavitra93/go-multi-tenant-helpdesk/shared/models"
)

const (
	DefaultMaxRetries    = 8
	DefaultBatchSize     = 100
	DefaultCheckInterval = 30 * time.Second
)

// RetryDelay is the wait before attempt n (1-based): 1m, 2m, 4m, ...
func RetryDelay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	return time.Minute * time.Duration(1<<(attempt-1))
}

// RetryWorker replays outbox events through send until they succeed or run
// out of attempts
type RetryWorker struct {
	outbox        Outbox
	send          func(ctx context.Context, ev Event) error
	maxRetries    int
	batchSize     int
	checkInterval time.Duration
	now           func() time.Time
}

func NewRetryWorker(outbox Outbox, send func(ctx context.Context, ev Event) error) *RetryWorker {
	return &RetryWorker{
		outbox:        outbox,
		send:          send,
		maxRetries:    DefaultMaxRetries,
		batchSize:     DefaultBatchSize,
		checkInterval: DefaultCheckInterval,
		now:           time.Now,
	}
}

// Run processes due events every check interval until ctx is cancelled
func (w *RetryWorker) Run(ctx context.Context) {
	logrus.Info("Starting event retry worker...")
	ticker := time.NewTicker(w.checkInterval)
	defer ticker.Stop()

	for {
		if n, err := w.ProcessDue(ctx); err != nil {
			logrus.WithError(err).Warn("Error fetching failed events")
		} else if n > 0 {
			logrus.Infof("Retried %d failed events", n)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// ProcessDue retries one batch of due events and returns how many it touched
func (w *RetryWorker) ProcessDue(ctx context.Context) (int, error) {
	due, err := w.outbox.Due(ctx, w.now(), w.batchSize)
	if err != nil {
		return 0, err
	}
	for i := range due {
		if err := w.retry(ctx, &due[i]); err != nil {
			logrus.WithError(err).WithField("event_id", due[i].EventID).Warn("Failed to update retried event")
		}
	}
	return len(due), nil
}

func (w *RetryWorker) retry(ctx context.Context, failed *models.FailedEvent) error {
	now := w.now()
	failed.UpdatedAt = now

	var ev Event
	if err := json.Unmarshal([]byte(failed.Payload), &ev); err != nil {
		failed.Status = models.FailedEventDead
		failed.ResolvedAt = &now
		failed.ErrorMessage = fmt.Sprintf("Unreadable payload: %v", err)
		return w.outbox.Update(ctx, failed)
	}

	sendErr := w.send(ctx, ev)
	if sendErr == nil {
		failed.Status = models.FailedEventResolved
		failed.ResolvedAt = &now
		return w.outbox.Update(ctx, failed)
	}

	failed.RetryCount++
	if failed.RetryCount >= w.maxRetries {
		failed.Status = models.FailedEventDead
		failed.ResolvedAt = &now
		failed.ErrorMessage = fmt.Sprintf("Max retries reached: %v", sendErr)
	} else {
		next := now.Add(RetryDelay(failed.RetryCount))
		failed.NextRetryAt = &next
		failed.ErrorMessage = sendErr.Error()
	}
	return w.outbox.Update(ctx, failed)
}

// RetryStats summarises the outbox
type RetryStats struct {
	Pending  int64 `json:"pending"`
	Resolved int64 `json:"resolved"`
	Dead     int64 `json:"dead"`
}

func (w *RetryWorker) Stats(ctx context.Context) (RetryStats, error) {
	var stats RetryStats
	for status, dst := range map[string]*int64{
		models.FailedEventPending:  &stats.Pending,
		models.FailedEventResolved: &stats.Resolved,
		models.FailedEventDead:     &stats.Dead,
	} {
		n, err := w.outbox.CountByStatus(ctx, status)
		if err != nil {
			return RetryStats{}, err
		}
		*dst = n
	}
	return stats, nil
}
