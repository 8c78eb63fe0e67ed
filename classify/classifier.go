// Package classify turns email records into categories with a completion model.
package classify

import (
	"context"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/bassamadnan/mailsort/completion"
	"github.com/bassamadnan/mailsort/inbox"
)

// DefaultSampling asks for a short deterministic answer.
var DefaultSampling = completion.Sampling{Temperature: 0, MaxOutputTokens: 50}

// Classifier assigns one category per record. It never fails: every
// problem with the exchange degrades to inbox.Uncategorized.
type Classifier struct {
	svc      completion.Service
	sampling completion.Sampling
	logger   *log.Logger
	warnOnce sync.Once
}

type Option func(*Classifier)

func WithSampling(s completion.Sampling) Option {
	return func(c *Classifier) { c.sampling = s }
}

func WithLogger(l *log.Logger) Option {
	return func(c *Classifier) { c.logger = l }
}

// New returns a Classifier backed by svc. A nil svc (no API key) is
// allowed and classifies everything as Uncategorized.
func New(svc completion.Service, opts ...Option) *Classifier {
	c := &Classifier{svc: svc, sampling: DefaultSampling, logger: log.Default()}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Verdict is the outcome of classifying one record.
type Verdict struct {
	Category inbox.Category
	// Called reports whether a model request was attempted.
	Called bool
	// Degraded means Category is the fallback for a failed exchange.
	Degraded bool
}

// Classify returns the category for r.
func (c *Classifier) Classify(ctx context.Context, r inbox.EmailRecord) inbox.Category {
	return c.Categorize(ctx, r).Category
}

// Categorize classifies r and reports how the answer was reached.
func (c *Classifier) Categorize(ctx context.Context, r inbox.EmailRecord) Verdict {
	if c.svc == nil {
		c.warnOnce.Do(func() {
			c.logger.Warn("no completion service configured, run `mailsort setup` to add an API key")
		})
		return Verdict{Category: inbox.Uncategorized, Degraded: true}
	}

	text, err := c.svc.Complete(ctx, BuildPrompt(r), c.sampling)
	if err != nil {
		c.logger.Debug("classification degraded", "id", r.ID, "err", err)
		return Verdict{Category: inbox.Uncategorized, Called: true, Degraded: true}
	}
	cat := ParseAnswer(text)
	c.logger.Debug("classified", "id", r.ID, "category", cat.ID(), "answer", text)
	return Verdict{Category: cat, Called: true}
}
