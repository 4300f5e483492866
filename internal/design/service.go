// Package design orchestrates one design request: validate, calculate,
// price, optionally enhance, then persist.
package design

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/joelkehle/cip-designer/internal/cip"
	"github.com/joelkehle/cip-designer/internal/llm"
	"github.com/joelkehle/cip-designer/internal/logging"
	"github.com/joelkehle/cip-designer/internal/store"
	"github.com/joelkehle/cip-designer/internal/telemetry"
)

const (
	EnhancementSkipped  = "skipped"
	EnhancementApplied  = "applied"
	EnhancementFallback = "fallback"
)

type Pricer interface {
	PriceBOM(lines []cip.BomLine) []cip.BomLine
}

type Enhancer interface {
	Enhance(ctx context.Context, in cip.DesignInput, result cip.DesignResult) (cip.DesignResult, error)
}

type CreateOptions struct {
	// Enhance requests LLM text enhancement. It is ignored when the service
	// has no enhancer.
	Enhance bool
}

type Service struct {
	store    store.Store
	pricer   Pricer
	enhancer Enhancer
	log      *logging.Logger
	metrics  *telemetry.Metrics
	tracer   trace.Tracer
}

type Option func(*Service)

func WithEnhancer(e Enhancer) Option {
	return func(s *Service) { s.enhancer = e }
}

func WithLogger(l *logging.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.log = l
		}
	}
}

func WithMetrics(m *telemetry.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func NewService(st store.Store, pricer Pricer, opts ...Option) *Service {
	s := &Service{
		store:  st,
		pricer: pricer,
		log:    logging.Nop(),
		tracer: telemetry.Tracer("design"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// EnhancementAvailable reports whether Create can honour Enhance.
func (s *Service) EnhancementAvailable() bool {
	return s.enhancer != nil
}

// Create returns a *cip.ValidationError for bad input. Every other failure
// after validation is absorbed: enhancement falls back to the computed
// result and a failed write is only logged.
func (s *Service) Create(ctx context.Context, req cip.DesignRequest, opts CreateOptions) (cip.DesignResult, error) {
	ctx, span := s.tracer.Start(ctx, "design.Create")
	defer span.End()

	if err := req.Validate(); err != nil {
		span.SetStatus(codes.Error, "invalid input")
		return cip.DesignResult{}, err
	}
	in := req.Input()
	span.SetAttributes(
		attribute.Int("cip.vessels_stage1", in.VesselsStage1),
		attribute.Int("cip.vessels_stage2", in.VesselsStage2),
		attribute.Bool("cip.heater", in.Heater),
		attribute.Int("cip.mains_hz", in.MainsHz),
	)

	result := cip.Calculate(in)
	if s.pricer != nil {
		result.Bom = s.pricer.PriceBOM(result.Bom)
	}
	_, unpriced := result.TotalCost()
	s.metrics.UnpricedLines(unpriced)

	outcome := EnhancementSkipped
	if opts.Enhance && s.enhancer != nil {
		result, outcome = s.enhance(ctx, in, result)
	}
	span.SetAttributes(attribute.String("cip.enhancement", outcome))
	s.metrics.DesignCalculated(outcome)

	s.persist(ctx, in, result)
	return result, nil
}

func (s *Service) enhance(ctx context.Context, in cip.DesignInput, result cip.DesignResult) (cip.DesignResult, string) {
	ctx, span := s.tracer.Start(ctx, "design.Enhance")
	defer span.End()

	start := time.Now()
	enhanced, err := s.enhancer.Enhance(ctx, in, result)
	if err != nil {
		class := llm.ClassifyError(err)
		span.RecordError(err)
		span.SetStatus(codes.Error, class)
		s.metrics.EnhancementFailed(class)
		s.log.Warn("bom enhancement failed, returning computed result",
			"class", class,
			"elapsed_ms", time.Since(start).Milliseconds(),
			"error", err,
		)
		return result, EnhancementFallback
	}
	s.log.Info("bom enhanced", "elapsed_ms", time.Since(start).Milliseconds())
	return enhanced, EnhancementApplied
}

func (s *Service) persist(ctx context.Context, in cip.DesignInput, result cip.DesignResult) {
	if s.store == nil {
		return
	}
	// The caller gets its result even if the request context is already done.
	run, err := s.store.Create(context.WithoutCancel(ctx), store.DesignRun{
		SystemType: cip.SystemType,
		Input:      in,
		Output:     result,
	})
	if err != nil {
		s.metrics.PersistFailed()
		s.log.Error("failed to persist design run", "error", err)
		return
	}
	s.log.Debug("design run stored", "id", run.ID)
}

// List returns the most recent runs; limit <= 0 means store.DefaultListLimit.
func (s *Service) List(ctx context.Context, limit int) ([]store.DesignRun, error) {
	if s.store == nil {
		return []store.DesignRun{}, nil
	}
	runs, err := s.store.ListRecent(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("list design runs: %w", err)
	}
	if runs == nil {
		runs = []store.DesignRun{}
	}
	return runs, nil
}

func (s *Service) Get(ctx context.Context, id string) (store.DesignRun, error) {
	if s.store == nil {
		return store.DesignRun{}, store.ErrNotFound
	}
	run, err := s.store.Get(ctx, id)
	if err != nil {
		return store.DesignRun{}, wrapStoreErr("get design run", err)
	}
	return run, nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	if s.store == nil {
		return store.ErrNotFound
	}
	if err := s.store.Delete(ctx, id); err != nil {
		return wrapStoreErr("delete design run", err)
	}
	s.log.Info("design run deleted", "id", id)
	return nil
}

func (s *Service) DeleteAll(ctx context.Context) (int, error) {
	if s.store == nil {
		return 0, nil
	}
	n, err := s.store.DeleteAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("clear design runs: %w", err)
	}
	s.log.Info("design history cleared", "deleted", n)
	return n, nil
}

func wrapStoreErr(op string, err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return store.ErrNotFound
	}
	return fmt.Errorf("%s: %w", op, err)
}
