// Package store persists computed design runs. A stored run is never
// mutated; it can only be read or deleted.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/joelkehle/cip-designer/internal/cip"
)

// DefaultListLimit is used when ListRecent receives a non-positive limit.
const DefaultListLimit = 25

var ErrNotFound = errors.New("design run not found")

// DesignRun is one persisted calculation: the resolved input, the returned
// result and when it was produced.
type DesignRun struct {
	ID         string           `json:"id"`
	SystemType string           `json:"systemType"`
	Input      cip.DesignInput  `json:"inputJson"`
	Output     cip.DesignResult `json:"outputJson"`
	CreatedAt  time.Time        `json:"createdAt"`
}

type Store interface {
	// Create assigns ID and CreatedAt when they are empty.
	Create(ctx context.Context, run DesignRun) (DesignRun, error)
	// ListRecent returns runs newest first.
	ListRecent(ctx context.Context, limit int) ([]DesignRun, error)
	Get(ctx context.Context, id string) (DesignRun, error)
	Delete(ctx context.Context, id string) error
	// DeleteAll removes every run and reports how many were removed.
	DeleteAll(ctx context.Context) (int, error)
	Close() error
}

type Option func(*options)

type options struct {
	clock func() time.Time
	newID func() string
}

// WithClock overrides the timestamp source.
func WithClock(clock func() time.Time) Option {
	return func(o *options) { o.clock = clock }
}

// WithIDGenerator overrides the id source.
func WithIDGenerator(gen func() string) Option {
	return func(o *options) { o.newID = gen }
}

func buildOptions(opts []Option) options {
	o := options{clock: time.Now, newID: NewID}
	for _, fn := range opts {
		fn(&o)
	}
	return o
}

// NewID returns a random UUID string.
func NewID() string {
	return uuid.NewString()
}

func (o options) stamp(run DesignRun) DesignRun {
	if run.ID == "" {
		run.ID = o.newID()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = o.clock()
	}
	run.CreatedAt = run.CreatedAt.UTC()
	if run.SystemType == "" {
		run.SystemType = cip.SystemType
	}
	return run
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultListLimit
	}
	return limit
}
