package priceopt

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skulane/priceflow/internal/domain"
)

var testKey = domain.GroupKey{SKU: "SKU-1", WarehouseCode: "WH-A"}

func day(offset int) time.Time {
	return time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, offset)
}

func flatForecast(days int, quantity float64) []domain.ForecastPoint {
	forecast := make([]domain.ForecastPoint, days)
	for i := range forecast {
		forecast[i] = domain.ForecastPoint{
			SKU:              testKey.SKU,
			WarehouseCode:    testKey.WarehouseCode,
			Date:             day(i),
			ForecastQuantity: quantity,
		}
	}
	return forecast
}

func TestAdjustDemandElasticity(t *testing.T) {
	// Price 12 against reference 10 with elasticity -2 scales demand by
	// (1.2)^-2 = 0.694.
	forecast := flatForecast(3, 10)

	demand, err := adjustDemand(forecast, 12, 10, -2)
	require.NoError(t, err)
	require.Len(t, demand, 3)

	for _, d := range demand {
		assert.InDelta(t, 6.944, d.Quantity, 0.001)
	}
}

func TestInvalidBoundsRejectedBeforeTrials(t *testing.T) {
	opt := NewOptimizer(Config{
		LowerBoundFactor: 1.3,
		UpperBoundFactor: 0.7,
	})

	_, err := opt.Optimize(context.Background(), GroupInput{
		Key:        testKey,
		RefPrice:   10,
		Elasticity: -2,
		Forecast:   flatForecast(10, 5),
	})
	assert.ErrorIs(t, err, ErrInvalidPriceBounds)
}

func TestEmptyForecastRejected(t *testing.T) {
	opt := NewOptimizer(DefaultConfig())

	_, err := opt.Optimize(context.Background(), GroupInput{
		Key:      testKey,
		RefPrice: 10,
	})
	assert.ErrorIs(t, err, ErrEmptyForecast)
}

func TestNonPositiveRefPriceRejected(t *testing.T) {
	opt := NewOptimizer(DefaultConfig())

	_, err := opt.Optimize(context.Background(), GroupInput{
		Key:      testKey,
		RefPrice: 0,
		Forecast: flatForecast(10, 5),
	})
	assert.ErrorIs(t, err, ErrNumericDegeneracy)
}

func TestSearchPrefersLowerPriceWhenStockAmple(t *testing.T) {
	// With effectively unlimited stock and elasticity -2, revenue
	// d*(p/p0)^-2*p is strictly decreasing in price, so the search must land
	// on the lower bound exactly (the grid includes both bounds).
	opt := NewOptimizer(Config{
		LowerBoundFactor:   0.7,
		UpperBoundFactor:   1.3,
		Trials:             13,
		ForecastStockLevel: 10,
		StockoutPenalty:    1000,
	})

	out, err := opt.Optimize(context.Background(), GroupInput{
		Key:          testKey,
		RefPrice:     10,
		Elasticity:   -2,
		Forecast:     flatForecast(10, 10),
		CurrentStock: 1e6,
	})
	require.NoError(t, err)

	assert.InDelta(t, 7.0, out.Summary.PriceNew, 1e-9)
	assert.Greater(t, out.Summary.RevenueAfter, out.Summary.RevenueBefore)
}

func TestSearchRaisesPriceUnderScarcity(t *testing.T) {
	// 100 units of demand at the reference price against 50 on hand: the
	// shortfall penalty dominates, so the search throttles demand by raising
	// the price to the upper bound.
	opt := NewOptimizer(Config{
		LowerBoundFactor:   0.7,
		UpperBoundFactor:   1.3,
		Trials:             13,
		ForecastStockLevel: 10,
		StockoutPenalty:    1000,
	})

	out, err := opt.Optimize(context.Background(), GroupInput{
		Key:          testKey,
		RefPrice:     10,
		Elasticity:   -2,
		Forecast:     flatForecast(10, 10),
		CurrentStock: 50,
	})
	require.NoError(t, err)

	assert.InDelta(t, 13.0, out.Summary.PriceNew, 1e-9)
}

func TestSummaryDerivedQuantities(t *testing.T) {
	shipments := map[time.Time]float64{
		day(3):  20,
		day(50): 500, // outside the stock-level window, must not count
	}

	opt := NewOptimizer(Config{
		LowerBoundFactor:   0.7,
		UpperBoundFactor:   1.3,
		Trials:             5,
		ForecastStockLevel: 10,
	})

	out, err := opt.Optimize(context.Background(), GroupInput{
		Key:          testKey,
		RefPrice:     10,
		Elasticity:   -2,
		Forecast:     flatForecast(10, 4),
		CurrentStock: 30,
		Shipments:    shipments,
	})
	require.NoError(t, err)

	// Mean demand 4 over a 10-day target: optimal stock 40; order what the
	// snapshot and the in-window shipment do not already cover.
	assert.InDelta(t, 40.0, out.Summary.OptStockLevel, 1e-9)
	assert.InDelta(t, 40.0-30.0-20.0, out.Summary.InventoryOrderQuantity, 1e-9)
	assert.Equal(t, 10, len(out.Trajectory))
}

func TestElasticityClipped(t *testing.T) {
	opt := NewOptimizer(DefaultConfig())

	out, err := opt.Optimize(context.Background(), GroupInput{
		Key:          testKey,
		RefPrice:     10,
		Elasticity:   -10,
		Forecast:     flatForecast(5, 5),
		CurrentStock: 1e6,
	})
	require.NoError(t, err)
	assert.Equal(t, -5.0, out.Summary.PriceElasticity)

	out, err = opt.Optimize(context.Background(), GroupInput{
		Key:          testKey,
		RefPrice:     10,
		Elasticity:   0.5,
		Forecast:     flatForecast(5, 5),
		CurrentStock: 1e6,
	})
	require.NoError(t, err)
	assert.Equal(t, -1.0, out.Summary.PriceElasticity)
}

func TestTrajectoryCoversFullHorizon(t *testing.T) {
	// Forecast longer than the evaluation window: the returned trajectory
	// still spans every forecast day.
	opt := NewOptimizer(Config{
		LowerBoundFactor:   0.7,
		UpperBoundFactor:   1.3,
		Trials:             5,
		ForecastStockLevel: 10,
	})

	out, err := opt.Optimize(context.Background(), GroupInput{
		Key:          testKey,
		RefPrice:     10,
		Elasticity:   -2,
		Forecast:     flatForecast(25, 5),
		CurrentStock: 1000,
	})
	require.NoError(t, err)
	require.Len(t, out.Trajectory, 25)

	for _, p := range out.Trajectory {
		assert.GreaterOrEqual(t, p.RunningStockAfterAdjusted, 0.0)
	}
}
