package domain

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeRasterSource serves canned grids or errors by date.
type fakeRasterSource struct {
	grids map[string]*RasterGrid
	errs  map[string]error
	calls int
}

func (f *fakeRasterSource) DailyRaster(_ context.Context, day time.Time) (*RasterGrid, error) {
	f.calls++
	key := day.Format("2006-01-02")
	if err, ok := f.errs[key]; ok {
		return nil, err
	}
	if g, ok := f.grids[key]; ok {
		return g, nil
	}
	return nil, ErrRasterNotFound
}

func TestExtractDailySeries(t *testing.T) {
	april := Period{2021, time.April}
	poly := rect(0, 0, 2, 2)

	uniform := func(t *testing.T, v float32) *RasterGrid {
		t.Helper()
		return mustGrid(t, []float32{v, v, v, v}, 2, 2, f64ptr(-9999))
	}

	t.Run("sparse month yields only the present days", func(t *testing.T) {
		source := &fakeRasterSource{grids: map[string]*RasterGrid{
			"2021-04-03": uniform(t, 7),
			"2021-04-20": uniform(t, 9),
		}}

		series, err := ExtractDailySeries(context.Background(), source, poly, april, discardLogger())
		require.NoError(t, err)
		assert.Equal(t, []float64{7, 9}, series)
		assert.Equal(t, april.Days(), source.calls, "every calendar day is attempted")
	})

	t.Run("unreadable days are tolerated and skipped", func(t *testing.T) {
		source := &fakeRasterSource{
			grids: map[string]*RasterGrid{"2021-04-01": uniform(t, 5)},
			errs:  map[string]error{"2021-04-02": errors.New("corrupt tiff header")},
		}

		series, err := ExtractDailySeries(context.Background(), source, poly, april, discardLogger())
		require.NoError(t, err)
		assert.Equal(t, []float64{5}, series)
	})

	t.Run("undefined zonal means are skipped", func(t *testing.T) {
		allNodata := mustGrid(t, []float32{-9999, -9999, -9999, -9999}, 2, 2, f64ptr(-9999))
		source := &fakeRasterSource{grids: map[string]*RasterGrid{
			"2021-04-01": allNodata,
			"2021-04-02": uniform(t, 3),
		}}

		series, err := ExtractDailySeries(context.Background(), source, poly, april, discardLogger())
		require.NoError(t, err)
		assert.Equal(t, []float64{3}, series)
	})

	t.Run("empty month returns an empty series, not an error", func(t *testing.T) {
		series, err := ExtractDailySeries(context.Background(), &fakeRasterSource{}, poly, april, discardLogger())
		require.NoError(t, err)
		assert.Empty(t, series)
	})

	t.Run("cancelled context stops the scan", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := ExtractDailySeries(ctx, &fakeRasterSource{}, poly, april, discardLogger())
		assert.ErrorIs(t, err, context.Canceled)
	})
}
