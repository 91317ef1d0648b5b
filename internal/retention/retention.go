// Package retention deletes time-partitioned indices older than a retention
// window.
package retention

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Nao-Mk2/cwlogs-to-es/internal/logging"
	"github.com/Nao-Mk2/cwlogs-to-es/internal/model"
	"github.com/Nao-Mk2/cwlogs-to-es/internal/pattern"
)

// Done is returned by Run once every selected deletion was attempted.
const Done = "DONE"

// IndexStore is the subset of the store used by the cleanup path.
type IndexStore interface {
	ListIndices(ctx context.Context) ([]model.IndexDescriptor, error)
	DeleteIndex(ctx context.Context, index string) error
}

// LimitDate returns the start of now's UTC day minus days. Indices dated
// strictly before it are expired.
func LimitDate(now time.Time, days int) time.Time {
	now = now.UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	return today.AddDate(0, 0, -days)
}

// Select returns the indices whose name parses through p to a date before
// limit. Names that do not match p are returned in skipped and never
// selected.
func Select(indices []model.IndexDescriptor, p *pattern.Pattern, limit time.Time) (expired []model.IndexDescriptor, skipped []string) {
	for _, idx := range indices {
		date, ok := p.Parse(idx.Index)
		if !ok {
			skipped = append(skipped, idx.Index)
			continue
		}
		if date.Before(limit) {
			expired = append(expired, idx)
		}
	}
	return expired, skipped
}

// Report summarises a cleanup run.
type Report struct {
	LimitDate time.Time
	Listed    int
	Skipped   []string
	Outcomes  []model.DeletionOutcome
}

// Failed returns the outcomes of deletions that did not succeed.
func (r *Report) Failed() []model.DeletionOutcome {
	var failed []model.DeletionOutcome
	for _, o := range r.Outcomes {
		if !o.OK() {
			failed = append(failed, o)
		}
	}
	return failed
}

// Cleaner runs the retention policy against a store.
type Cleaner struct {
	store           IndexStore
	pattern         *pattern.Pattern
	deleteAfterDays int
	maxConcurrent   int
	now             func() time.Time
	logger          *slog.Logger
}

// Option configures a Cleaner.
type Option func(*Cleaner)

// WithClock overrides the clock used to compute the limit date.
func WithClock(now func() time.Time) Option {
	return func(c *Cleaner) { c.now = now }
}

// WithMaxConcurrent bounds the number of deletions in flight. Zero means
// unbounded.
func WithMaxConcurrent(n int) Option {
	return func(c *Cleaner) { c.maxConcurrent = n }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Cleaner) { c.logger = l }
}

// New creates a Cleaner deleting indices older than deleteAfterDays.
func New(store IndexStore, p *pattern.Pattern, deleteAfterDays int, opts ...Option) *Cleaner {
	c := &Cleaner{
		store:           store,
		pattern:         p,
		deleteAfterDays: deleteAfterDays,
		now:             time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = logging.OrDefault(c.logger)
	return c
}

// Run lists indices, selects the expired ones and deletes them concurrently.
// A failed deletion does not stop the others; the first failure is returned
// once all of them have finished.
func (c *Cleaner) Run(ctx context.Context) (string, error) {
	if _, err := c.Clean(ctx); err != nil {
		return "", err
	}
	return Done, nil
}

// Clean is Run with the detailed report. The report is non-nil whenever the
// catalog could be listed.
func (c *Cleaner) Clean(ctx context.Context) (*Report, error) {
	limit := LimitDate(c.now(), c.deleteAfterDays)
	c.logger.Info("starting index cleanup",
		"pattern", c.pattern.String(),
		"deleteAfterDays", c.deleteAfterDays,
		"limitDate", limit.Format(time.DateOnly))

	indices, err := c.store.ListIndices(ctx)
	if err != nil {
		c.logger.Error("failed to list indices", "error", err)
		return nil, err
	}
	c.logger.Info("listed indices", "count", len(indices), "indices", names(indices))

	expired, skipped := Select(indices, c.pattern, limit)
	for _, name := range skipped {
		c.logger.Error("index name does not match pattern", "index", name, "pattern", c.pattern.String())
	}
	report := &Report{LimitDate: limit, Listed: len(indices), Skipped: skipped}

	c.logger.Info("deleting indices", "count", len(expired), "indices", names(expired))
	report.Outcomes = make([]model.DeletionOutcome, len(expired))
	var g errgroup.Group
	if c.maxConcurrent > 0 {
		g.SetLimit(c.maxConcurrent)
	}
	for i, idx := range expired {
		g.Go(func() error {
			err := c.store.DeleteIndex(ctx, idx.Index)
			report.Outcomes[i] = model.DeletionOutcome{Index: idx.Index, Err: err}
			if err != nil {
				c.logger.Error("failed to delete index", "index", idx.Index, "error", err)
				return err
			}
			c.logger.Info("index deleted", "index", idx.Index)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return report, err
	}
	return report, nil
}

func names(indices []model.IndexDescriptor) string {
	out := make([]string, len(indices))
	for i, idx := range indices {
		out[i] = idx.Index
	}
	return strings.Join(out, " ")
}
