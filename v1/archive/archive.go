package archive

import (
	"context"
	"fmt"
	"time"

	"github.com/Aleph-Alpha/rabbit-dlq/v1/delivery"
	"github.com/Aleph-Alpha/rabbit-dlq/v1/observability"
)

// DefaultRecentLimit is used by Recent when limit is not positive.
const DefaultRecentLimit = 50

// Store inserts one dead letter.
func (a *Archive) Store(ctx context.Context, dl delivery.DeadLetter) error {
	start := time.Now()

	rec := newRecord(dl)

	db := a.DB()
	if db == nil {
		a.observe("store", dl.Queue, time.Since(start), ErrNotConnected, 0)
		return ErrNotConnected
	}

	err := db.WithContext(ctx).Create(&rec).Error
	a.observe("store", dl.Queue, time.Since(start), err, int64(len(rec.Body)))
	if err != nil {
		return fmt.Errorf("failed to archive message %s: %w", dl.MessageID, err)
	}
	return nil
}

// Recent returns the latest archived dead letters, newest first. Pass an
// empty queue to list every queue.
func (a *Archive) Recent(ctx context.Context, queue string, limit int) ([]Record, error) {
	start := time.Now()
	if limit <= 0 {
		limit = DefaultRecentLimit
	}

	db := a.DB()
	if db == nil {
		return nil, ErrNotConnected
	}

	q := db.WithContext(ctx).Model(&Record{})
	if queue != "" {
		q = q.Where("queue = ?", queue)
	}

	var records []Record
	err := q.Order("received_at DESC").Order("id DESC").Limit(limit).Find(&records).Error
	a.observe("recent", queue, time.Since(start), err, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to list dead letters: %w", err)
	}
	return records, nil
}

// Count returns how many dead letters were archived for queue, or in total
// when queue is empty.
func (a *Archive) Count(ctx context.Context, queue string) (int64, error) {
	db := a.DB()
	if db == nil {
		return 0, ErrNotConnected
	}

	q := db.WithContext(ctx).Model(&Record{})
	if queue != "" {
		q = q.Where("queue = ?", queue)
	}

	var n int64
	if err := q.Count(&n).Error; err != nil {
		return 0, fmt.Errorf("failed to count dead letters: %w", err)
	}
	return n, nil
}

func (a *Archive) observe(operation, resource string, duration time.Duration, err error, size int64) {
	if a.observer == nil {
		return
	}
	a.observer.ObserveOperation(observability.OperationContext{
		Component: "archive",
		Operation: operation,
		Resource:  resource,
		Duration:  duration,
		Error:     err,
		Size:      size,
		Metadata:  map[string]string{"driver": a.cfg.driver()},
	})
}
