package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skulane/priceflow/internal/domain"
	"github.com/skulane/priceflow/internal/engine/priceopt"
	"github.com/skulane/priceflow/internal/engine/stockout"
)

func day(offset int) time.Time {
	return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, offset)
}

func testConfig() Config {
	return Config{
		WorkerCount: 4,
		Detector:    stockout.DefaultConfig(),
		Optimizer: priceopt.Config{
			LowerBoundFactor:   0.7,
			UpperBoundFactor:   1.3,
			Trials:             7,
			ForecastStockLevel: 10,
		},
	}
}

func salesFor(sku, warehouse string, quantities []float64) []domain.DailySale {
	sales := make([]domain.DailySale, len(quantities))
	for i, q := range quantities {
		sales[i] = domain.DailySale{SKU: sku, WarehouseCode: warehouse, Date: day(i), Quantity: q}
	}
	return sales
}

func forecastFor(sku, warehouse string, days int, quantity float64) []domain.ForecastPoint {
	forecast := make([]domain.ForecastPoint, days)
	for i := range forecast {
		forecast[i] = domain.ForecastPoint{
			SKU:              sku,
			WarehouseCode:    warehouse,
			Date:             day(100 + i),
			ForecastQuantity: quantity,
		}
	}
	return forecast
}

// history with one sustained gap and otherwise steady sales.
func gappySales(sku, warehouse string) []domain.DailySale {
	quantities := make([]float64, 40)
	for i := range quantities {
		quantities[i] = 5
	}
	for i := 14; i < 24; i++ {
		quantities[i] = 0
	}
	return salesFor(sku, warehouse, quantities)
}

func testInputs() Inputs {
	in := Inputs{}
	in.Sales = append(in.Sales, gappySales("SKU-1", "WH-A")...)
	in.Sales = append(in.Sales, gappySales("SKU-2", "WH-A")...)
	in.Forecast = append(in.Forecast, forecastFor("SKU-1", "WH-A", 10, 10)...)
	in.Forecast = append(in.Forecast, forecastFor("SKU-2", "WH-A", 10, 4)...)
	in.Stock = []domain.StockSnapshot{
		{SKU: "SKU-1", WarehouseCode: "WH-A", CurrentAvailable: 1000},
		{SKU: "SKU-2", WarehouseCode: "WH-A", CurrentAvailable: 500},
	}
	in.Elasticities = []domain.PriceElasticity{
		{SKU: "SKU-1", WarehouseCode: "WH-A", PriceElasticity: -2},
		{SKU: "SKU-2", WarehouseCode: "WH-A", PriceElasticity: -1.5},
	}
	in.RefPrices = []domain.RefPrice{
		{SKU: "SKU-1", WarehouseCode: "WH-A", RefPrice: 10},
		{SKU: "SKU-2", WarehouseCode: "WH-A", RefPrice: 25},
	}
	return in
}

func TestRunProducesAllOutputTables(t *testing.T) {
	eng := New(testConfig())
	out, err := eng.Run(context.Background(), testInputs())
	require.NoError(t, err)

	assert.Len(t, out.StockoutFlags, 80, "40 flag rows per historical group")
	assert.Len(t, out.Summary, 2)
	assert.Len(t, out.Trajectory, 20)
	assert.Empty(t, out.Skipped)
}

func TestRunIsolatesFailingGroups(t *testing.T) {
	in := testInputs()

	// A group with no zero-sale days cannot be classified.
	in.Sales = append(in.Sales, salesFor("SKU-BAD", "WH-B", []float64{1, 2, 3, 4, 5})...)
	// A forecast group with no reference price cannot be optimized.
	in.Forecast = append(in.Forecast, forecastFor("SKU-NOPRICE", "WH-B", 10, 5)...)

	eng := New(testConfig())
	out, err := eng.Run(context.Background(), in)
	require.NoError(t, err, "per-group failures must not fail the batch")

	require.Len(t, out.Skipped, 2)
	assert.Equal(t, "SKU-BAD", out.Skipped[0].Key.SKU)
	assert.ErrorIs(t, out.Skipped[0].Err, stockout.ErrDegenerateSeries)
	assert.Equal(t, "SKU-NOPRICE", out.Skipped[1].Key.SKU)
	assert.ErrorIs(t, out.Skipped[1].Err, ErrMissingGroupInput)

	// Healthy groups are unaffected.
	assert.Len(t, out.Summary, 2)
	assert.Len(t, out.StockoutFlags, 80)
}

func TestRunIsIdempotent(t *testing.T) {
	eng := New(testConfig())

	first, err := eng.Run(context.Background(), testInputs())
	require.NoError(t, err)
	second, err := eng.Run(context.Background(), testInputs())
	require.NoError(t, err)

	assert.Equal(t, first.StockoutFlags, second.StockoutFlags)
	assert.Equal(t, first.Trajectory, second.Trajectory)
	assert.Equal(t, first.Summary, second.Summary)
}

func TestRunOrdersOutputDeterministically(t *testing.T) {
	eng := New(testConfig())
	out, err := eng.Run(context.Background(), testInputs())
	require.NoError(t, err)

	for i := 1; i < len(out.StockoutFlags); i++ {
		prev, cur := out.StockoutFlags[i-1], out.StockoutFlags[i]
		if prev.SKU == cur.SKU && prev.WarehouseCode == cur.WarehouseCode {
			assert.True(t, prev.Date.Before(cur.Date))
		} else {
			assert.LessOrEqual(t, prev.SKU, cur.SKU)
		}
	}
	require.Len(t, out.Summary, 2)
	assert.Equal(t, "SKU-1", out.Summary[0].SKU)
	assert.Equal(t, "SKU-2", out.Summary[1].SKU)
}

func TestRunHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	eng := New(testConfig())
	_, err := eng.Run(ctx, testInputs())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRunEmptyInputs(t *testing.T) {
	eng := New(testConfig())
	out, err := eng.Run(context.Background(), Inputs{})
	require.NoError(t, err)

	assert.Empty(t, out.StockoutFlags)
	assert.Empty(t, out.Summary)
	assert.Empty(t, out.Trajectory)
	assert.Empty(t, out.Skipped)
}
