package design

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joelkehle/cip-designer/internal/catalog"
	"github.com/joelkehle/cip-designer/internal/cip"
	"github.com/joelkehle/cip-designer/internal/store"
	"github.com/joelkehle/cip-designer/internal/telemetry"
)

type failingStore struct {
	store.Store
	err error
}

func (f *failingStore) Create(context.Context, store.DesignRun) (store.DesignRun, error) {
	return store.DesignRun{}, f.err
}

func (f *failingStore) Get(context.Context, string) (store.DesignRun, error) {
	return store.DesignRun{}, f.err
}

type fakeEnhancer struct {
	calls int
	err   error
}

func (f *fakeEnhancer) Enhance(_ context.Context, _ cip.DesignInput, result cip.DesignResult) (cip.DesignResult, error) {
	f.calls++
	if f.err != nil {
		return result, f.err
	}
	out := result.Clone()
	for i := range out.Bom {
		out.Bom[i].Comments = "enhanced"
	}
	return out, nil
}

func baselineRequest() cip.DesignRequest {
	in := cip.DesignInput{
		Stages: 2, VesselsStage1: 6, VesselsStage2: 4, MembranesPerVessel: 6,
		PerVesselFlowGPM: 40, Heater: true, MainsHz: 50,
		StartTempC: 20, TargetTempC: 35, HeadAssumptionFt: 110, GPMPerCartridge: 10,
	}
	return in.Request()
}

func TestCreateCalculatesPricesAndStores(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	svc := NewService(st, catalog.Default())

	res, err := svc.Create(ctx, baselineRequest(), CreateOptions{})
	require.NoError(t, err)
	assert.Equal(t, 240.0, res.Summary.F1)
	assert.Equal(t, 160.0, res.Summary.F2)
	assert.Equal(t, 400, res.Summary.TankGal)
	require.Len(t, res.Bom, 9)
	for _, l := range res.Bom {
		assert.True(t, l.Priced(), l.Item)
	}

	runs, err := svc.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, cip.SystemType, runs[0].SystemType)
	assert.Equal(t, res, runs[0].Output)

	got, err := svc.Get(ctx, runs[0].ID)
	require.NoError(t, err)
	assert.Equal(t, res, got.Output)
}

func TestCreateRejectsInvalidInput(t *testing.T) {
	st := store.NewMemoryStore()
	svc := NewService(st, catalog.Default())

	req := baselineRequest()
	bad := 0.0
	req.VesselsStage1 = &bad
	_, err := svc.Create(context.Background(), req, CreateOptions{})

	var ve *cip.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "must be >= 1", ve.Fields["vesselsStage1"])

	runs, _ := svc.List(context.Background(), 0)
	assert.Empty(t, runs)
}

func TestCreateEnhancement(t *testing.T) {
	ctx := context.Background()

	t.Run("applied when requested", func(t *testing.T) {
		fe := &fakeEnhancer{}
		m := telemetry.NewMetrics()
		svc := NewService(store.NewMemoryStore(), catalog.Default(), WithEnhancer(fe), WithMetrics(m))
		res, err := svc.Create(ctx, baselineRequest(), CreateOptions{Enhance: true})
		require.NoError(t, err)
		assert.Equal(t, 1, fe.calls)
		assert.Equal(t, "enhanced", res.Bom[0].Comments)
		assert.True(t, svc.EnhancementAvailable())
		assert.Equal(t, 1.0, counterValue(t, m, "cip_designer_design_calculations_total"))
	})

	t.Run("not called unless requested", func(t *testing.T) {
		fe := &fakeEnhancer{}
		svc := NewService(store.NewMemoryStore(), catalog.Default(), WithEnhancer(fe))
		_, err := svc.Create(ctx, baselineRequest(), CreateOptions{})
		require.NoError(t, err)
		assert.Zero(t, fe.calls)
	})

	t.Run("failure falls back to computed result", func(t *testing.T) {
		fe := &fakeEnhancer{err: context.DeadlineExceeded}
		m := telemetry.NewMetrics()
		svc := NewService(store.NewMemoryStore(), catalog.Default(), WithEnhancer(fe), WithMetrics(m))

		want, err := NewService(nil, catalog.Default()).Create(ctx, baselineRequest(), CreateOptions{})
		require.NoError(t, err)

		got, err := svc.Create(ctx, baselineRequest(), CreateOptions{Enhance: true})
		require.NoError(t, err)
		assert.Equal(t, want, got)

		runs, err := svc.List(ctx, 0)
		require.NoError(t, err)
		require.Len(t, runs, 1)
		assert.Equal(t, want, runs[0].Output)
		assert.Equal(t, 1.0, counterValue(t, m, "cip_designer_design_enhancement_failures_total"))
	})

	t.Run("no enhancer configured", func(t *testing.T) {
		svc := NewService(store.NewMemoryStore(), catalog.Default())
		assert.False(t, svc.EnhancementAvailable())
		_, err := svc.Create(ctx, baselineRequest(), CreateOptions{Enhance: true})
		require.NoError(t, err)
	})
}

func TestPersistFailureIsSwallowed(t *testing.T) {
	m := telemetry.NewMetrics()
	svc := NewService(&failingStore{err: errors.New("disk full")}, catalog.Default(), WithMetrics(m))
	res, err := svc.Create(context.Background(), baselineRequest(), CreateOptions{})
	require.NoError(t, err)
	assert.Len(t, res.Bom, 9)
	assert.Equal(t, 1.0, counterValue(t, m, "cip_designer_store_persist_failures_total"))
}

func counterValue(t *testing.T, m *telemetry.Metrics, name string) float64 {
	t.Helper()
	families, err := m.Registry().Gather()
	require.NoError(t, err)
	var total float64
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, metric := range mf.GetMetric() {
			total += metric.GetCounter().GetValue()
		}
	}
	return total
}

func TestGetAndDeleteErrors(t *testing.T) {
	ctx := context.Background()
	svc := NewService(store.NewMemoryStore(), catalog.Default())

	_, err := svc.Get(ctx, "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.ErrorIs(t, svc.Delete(ctx, "missing"), store.ErrNotFound)

	broken := NewService(&failingStore{err: errors.New("database is locked")}, catalog.Default())
	_, err = broken.Get(ctx, "x")
	require.Error(t, err)
	assert.NotErrorIs(t, err, store.ErrNotFound)
	assert.Contains(t, err.Error(), "get design run")
}

func TestDeleteAll(t *testing.T) {
	ctx := context.Background()
	svc := NewService(store.NewMemoryStore(), catalog.Default())
	for i := 0; i < 3; i++ {
		_, err := svc.Create(ctx, baselineRequest(), CreateOptions{})
		require.NoError(t, err)
	}
	runs, err := svc.List(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, runs, 2)

	n, err := svc.DeleteAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	runs, err = svc.List(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, runs)
}
