package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleanskies/no2-data-prep/internal/domain"
	"github.com/cleanskies/no2-data-prep/internal/observability"
)

var testTransform = domain.GeoTransform{0, 1, 0, 2, 0, -1}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func uniformGrid(t *testing.T, value float32) *domain.RasterGrid {
	t.Helper()
	nodata := domain.NoDataValue
	grid, err := domain.NewRasterGrid([]float32{value, value, value, value}, 2, 2, testTransform, &nodata)
	require.NoError(t, err)
	return grid
}

type fakeRasterStore struct {
	daily    map[string]*domain.RasterGrid
	dailyErr map[string]error
	written  map[domain.Period]*domain.RasterGrid
	writeErr error
	listErr  error
}

func newFakeRasterStore() *fakeRasterStore {
	return &fakeRasterStore{
		daily:    make(map[string]*domain.RasterGrid),
		dailyErr: make(map[string]error),
		written:  make(map[domain.Period]*domain.RasterGrid),
	}
}

func (f *fakeRasterStore) DailyRaster(_ context.Context, day time.Time) (*domain.RasterGrid, error) {
	key := day.Format("2006-01-02")
	if err, ok := f.dailyErr[key]; ok {
		return nil, err
	}
	grid, ok := f.daily[key]
	if !ok {
		return nil, domain.ErrRasterNotFound
	}
	return grid, nil
}

func (f *fakeRasterStore) WriteMonthly(_ context.Context, p domain.Period, grid *domain.RasterGrid) error {
	if f.writeErr != nil {
		return f.writeErr
	}
	f.written[p] = grid
	return nil
}

func (f *fakeRasterStore) DailyDates() ([]time.Time, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	var dates []time.Time
	for key := range f.daily {
		day, err := time.Parse("2006-01-02", key)
		if err != nil {
			return nil, err
		}
		dates = append(dates, day)
	}
	return dates, nil
}

func (f *fakeRasterStore) addMonth(t *testing.T, p domain.Period, days int, value float32) {
	t.Helper()
	for d := 1; d <= days; d++ {
		f.daily[p.Day(d).Format("2006-01-02")] = uniformGrid(t, value)
	}
}

func TestPostprocess_Run(t *testing.T) {
	store := newFakeRasterStore()
	april := domain.Period{Year: 2021, Month: time.April}
	may := domain.Period{Year: 2021, Month: time.May}
	store.addMonth(t, april, 30, 12.5)
	store.addMonth(t, may, 3, 7.0)

	p := NewPostprocess(store, true, observability.NewMetricsForTesting(), discardLogger())
	require.NoError(t, p.Run(context.Background()))

	require.Contains(t, store.written, april)
	assert.NotContains(t, store.written, may)

	composite := store.written[april]
	v, ok := composite.Value(0, 0)
	require.True(t, ok)
	assert.InDelta(t, 12.5, v, 1e-6)
	assert.Equal(t, testTransform, composite.Transform())
}

func TestPostprocess_Run_GateDisabled(t *testing.T) {
	store := newFakeRasterStore()
	may := domain.Period{Year: 2021, Month: time.May}
	store.addMonth(t, may, 3, 7.0)

	p := NewPostprocess(store, false, observability.NewMetricsForTesting(), discardLogger())
	require.NoError(t, p.Run(context.Background()))

	require.Contains(t, store.written, may)
	v, ok := store.written[may].Value(1, 1)
	require.True(t, ok)
	assert.InDelta(t, 7.0, v, 1e-6)
}

func TestPostprocess_Run_EmptyDailyDir(t *testing.T) {
	p := NewPostprocess(newFakeRasterStore(), true, observability.NewMetricsForTesting(), discardLogger())
	require.NoError(t, p.Run(context.Background()))
}

func TestPostprocess_Run_ReadErrorAborts(t *testing.T) {
	store := newFakeRasterStore()
	april := domain.Period{Year: 2021, Month: time.April}
	store.addMonth(t, april, 30, 12.5)
	store.dailyErr["2021-04-15"] = errors.New("checksum mismatch")

	p := NewPostprocess(store, true, observability.NewMetricsForTesting(), discardLogger())
	err := p.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "2021-04-15")
	assert.Empty(t, store.written)
}

func TestPostprocess_Run_WriteErrorAborts(t *testing.T) {
	store := newFakeRasterStore()
	store.addMonth(t, domain.Period{Year: 2021, Month: time.April}, 30, 12.5)
	store.writeErr = errors.New("disk full")

	p := NewPostprocess(store, true, observability.NewMetricsForTesting(), discardLogger())
	assert.Error(t, p.Run(context.Background()))
}

func TestPostprocess_Run_Cancelled(t *testing.T) {
	store := newFakeRasterStore()
	store.addMonth(t, domain.Period{Year: 2021, Month: time.April}, 30, 12.5)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := NewPostprocess(store, true, observability.NewMetricsForTesting(), discardLogger())
	assert.ErrorIs(t, p.Run(ctx), context.Canceled)
}

func TestPeriodsFromDates(t *testing.T) {
	dates := []time.Time{
		time.Date(2021, time.May, 2, 0, 0, 0, 0, time.UTC),
		time.Date(2021, time.April, 30, 0, 0, 0, 0, time.UTC),
		time.Date(2021, time.April, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2019, time.December, 31, 0, 0, 0, 0, time.UTC),
	}

	periods := PeriodsFromDates(dates)
	want := []domain.Period{
		{Year: 2019, Month: time.December},
		{Year: 2021, Month: time.April},
		{Year: 2021, Month: time.May},
	}
	assert.Equal(t, want, periods)

	assert.Empty(t, PeriodsFromDates(nil))
}
