package stockout

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skulane/priceflow/internal/domain"
)

var testKey = domain.GroupKey{SKU: "SKU-1", WarehouseCode: "WH-A"}

func day(offset int) time.Time {
	return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, offset)
}

func salesSeries(quantities []float64) []domain.DailySale {
	sales := make([]domain.DailySale, len(quantities))
	for i, q := range quantities {
		sales[i] = domain.DailySale{
			SKU:           testKey.SKU,
			WarehouseCode: testKey.WarehouseCode,
			Date:          day(i),
			Quantity:      q,
		}
	}
	return sales
}

func TestDetectFlagsSustainedZeroRun(t *testing.T) {
	// 40 days of sales with a single 10-day gap starting on day 15.
	quantities := make([]float64, 40)
	for i := range quantities {
		quantities[i] = 5
	}
	for i := 14; i < 24; i++ {
		quantities[i] = 0
	}

	detector := NewDetector(DefaultConfig())
	flags, err := detector.Detect(testKey, salesSeries(quantities))
	require.NoError(t, err)
	require.Len(t, flags, 40)

	for i, f := range flags {
		if i >= 14 && i < 24 {
			assert.Equal(t, 10, f.RunLength, "day %d should carry the full run length", i)
			assert.True(t, f.IsStockout, "day %d should be flagged", i)
			assert.Equal(t, 2.0, f.GapYearsLog10, "day %d log should be capped", i)
		} else {
			assert.Equal(t, 0, f.RunLength, "day %d had sales", i)
			assert.False(t, f.IsStockout, "day %d should not be flagged", i)
		}
	}
}

func TestDetectRefinementLowersBaseline(t *testing.T) {
	quantities := make([]float64, 40)
	for i := range quantities {
		quantities[i] = 5
	}
	for i := 14; i < 24; i++ {
		quantities[i] = 0
	}

	detector := NewDetector(DefaultConfig())
	flags, err := detector.Detect(testKey, salesSeries(quantities))
	require.NoError(t, err)

	initial := 10.0 / 40.0
	require.NotEmpty(t, flags)
	assert.LessOrEqual(t, flags[0].BaselineProbability, initial)
	assert.Greater(t, flags[0].BaselineProbability, 0.0)
}

func TestDetectIgnoresOrdinaryZeroDays(t *testing.T) {
	// Alternating sales and single zero days: no run is long enough to be
	// distinguishable from demand noise.
	quantities := make([]float64, 30)
	for i := range quantities {
		if i%3 == 0 {
			quantities[i] = 0
		} else {
			quantities[i] = 2
		}
	}

	detector := NewDetector(DefaultConfig())
	flags, err := detector.Detect(testKey, salesSeries(quantities))
	require.NoError(t, err)

	for _, f := range flags {
		assert.False(t, f.IsStockout, "isolated zero day on %s flagged", f.Date)
	}
}

func TestDetectDensifiesMissingDays(t *testing.T) {
	// Only two facts, four calendar days apart: the detector must fill the
	// gap with zero days.
	sales := []domain.DailySale{
		{SKU: testKey.SKU, WarehouseCode: testKey.WarehouseCode, Date: day(0), Quantity: 3},
		{SKU: testKey.SKU, WarehouseCode: testKey.WarehouseCode, Date: day(4), Quantity: 7},
	}

	detector := NewDetector(DefaultConfig())
	flags, err := detector.Detect(testKey, sales)
	require.NoError(t, err)
	require.Len(t, flags, 5)

	assert.Equal(t, 0, flags[0].RunLength)
	for i := 1; i < 4; i++ {
		assert.Equal(t, 3, flags[i].RunLength)
		assert.Zero(t, flags[i].Quantity)
	}
	assert.Equal(t, 0, flags[4].RunLength)
}

func TestDetectDegenerateSeries(t *testing.T) {
	detector := NewDetector(DefaultConfig())

	cases := map[string][]domain.DailySale{
		"empty":     {},
		"no zeros":  salesSeries([]float64{1, 2, 3, 4, 5}),
		"all zeros": salesSeries([]float64{0, 0, 0, 0, 0}),
	}
	for name, sales := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := detector.Detect(testKey, sales)
			assert.ErrorIs(t, err, ErrDegenerateSeries)
		})
	}
}

func TestGapYearsMonotonicInRunLength(t *testing.T) {
	for _, p := range []float64{0.1, 0.3, 0.5, 0.9} {
		prev := 0.0
		for l := 1; l <= 30; l++ {
			g := gapYears(l, p)
			assert.GreaterOrEqual(t, g, prev, "gap years decreased at p=%v, L=%d", p, l)
			prev = g
		}
	}
}

func TestZeroRunLengthsBackPropagation(t *testing.T) {
	lengths := zeroRunLengths([]float64{1, 0, 0, 0, 2, 0, 3})
	assert.Equal(t, []int{0, 3, 3, 3, 0, 1, 0}, lengths)
}
