package classify

import (
	"context"
	"time"

	"github.com/charmbracelet/log"

	"github.com/bassamadnan/mailsort/inbox"
)

// DefaultDelay spaces consecutive model calls to stay under rate limits.
const DefaultDelay = 200 * time.Millisecond

// Categorizer is the per-record classification step.
type Categorizer interface {
	Categorize(ctx context.Context, r inbox.EmailRecord) Verdict
}

// ProgressFunc is told how many records are done out of total.
type ProgressFunc func(done, total int)

// Batch runs a Categorizer over a slice, one record at a time.
type Batch struct {
	c      Categorizer
	delay  time.Duration
	logger *log.Logger
}

func NewBatch(c Categorizer, delay time.Duration, logger *log.Logger) *Batch {
	if delay < 0 {
		delay = 0
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Batch{c: c, delay: delay, logger: logger}
}

// ClassifyAll returns a copy of records with categories set, in input order.
//
// Records that already carry a category are passed through without a model
// call. Consecutive model calls are separated by the batch delay; items that
// made no call do not wait. Degraded answers are marked on the record. If ctx is
// cancelled the batch stops and the records not reached stay Unclassified;
// the result always has the same length and order as the input.
func (b *Batch) ClassifyAll(ctx context.Context, records []inbox.EmailRecord, onProgress ProgressFunc) []inbox.EmailRecord {
	out := make([]inbox.EmailRecord, len(records))
	copy(out, records)

	total := len(out)
	lastCalled := false
	for i := range out {
		if !out[i].Classified() {
			if lastCalled && !b.wait(ctx) {
				break
			}
			v := b.c.Categorize(ctx, out[i])
			lastCalled = v.Called
			if ctx.Err() != nil {
				// the answer may be a cancellation fallback, not a real result
				break
			}
			if v.Degraded {
				out[i] = out[i].WithFallback(v.Category)
			} else {
				out[i] = out[i].WithCategory(v.Category)
			}
		}
		if onProgress != nil {
			onProgress(i+1, total)
		}
	}

	if err := ctx.Err(); err != nil {
		b.logger.Info("classification stopped", "err", err)
	}
	return out
}

func (b *Batch) wait(ctx context.Context) bool {
	if b.delay == 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(b.delay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
