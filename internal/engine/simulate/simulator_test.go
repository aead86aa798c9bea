package simulate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(offset int) time.Time {
	return time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, offset)
}

func demandSeries(quantities ...float64) []Demand {
	demand := make([]Demand, len(quantities))
	for i, q := range quantities {
		demand[i] = Demand{Date: day(i), Quantity: q}
	}
	return demand
}

func TestShortfallDayResetsToZero(t *testing.T) {
	// Demand 10 every day against 5 on hand: day one cannot be fulfilled at
	// all, so stock goes to exactly 0, never negative.
	sched := Schedule{InitialAvailable: 5}
	trajectory := Run(sched, demandSeries(10, 10, 10, 10, 10), 90)
	require.Len(t, trajectory, 5)

	assert.Equal(t, 0.0, trajectory[0].RunningStockAfter)
	assert.True(t, trajectory[0].IsUnderstock)
	for _, p := range trajectory {
		assert.Equal(t, 0.0, p.RunningStockAfter)
		assert.True(t, p.IsUnderstock)
	}
}

func TestStockNeverNegative(t *testing.T) {
	sched := Schedule{
		InitialAvailable: 7,
		InTransit: map[time.Time]float64{
			day(2): 4,
			day(5): 1,
		},
	}
	trajectory := Run(sched, demandSeries(3, 6, 2, 9, 1, 5, 8), 90)

	for _, p := range trajectory {
		assert.GreaterOrEqual(t, p.RunningStockAfter, 0.0, "stock went negative on %s", p.Date)
	}
}

func TestShipmentArrivesBeforeDemand(t *testing.T) {
	// An arrival on the demand day is available that same day.
	sched := Schedule{
		InitialAvailable: 0,
		InTransit:        map[time.Time]float64{day(0): 10},
	}
	trajectory := Run(sched, demandSeries(5, 5), 90)
	require.Len(t, trajectory, 2)

	assert.Equal(t, 10.0, trajectory[0].InTransitQuantity)
	assert.Equal(t, 5.0, trajectory[0].RunningStockAfter)
	assert.Equal(t, 0.0, trajectory[1].RunningStockAfter)
}

func TestAllOrNothingCarriesNoShortfall(t *testing.T) {
	// Day two demand exceeds remaining stock: the day fulfills nothing and
	// the remainder is wiped, so day three starts from zero plus arrivals.
	sched := Schedule{
		InitialAvailable: 5,
		InTransit:        map[time.Time]float64{day(2): 4},
	}
	trajectory := Run(sched, demandSeries(3, 3, 4), 90)
	require.Len(t, trajectory, 3)

	assert.Equal(t, 2.0, trajectory[0].RunningStockAfter)
	assert.Equal(t, 0.0, trajectory[1].RunningStockAfter)
	assert.Equal(t, 0.0, trajectory[2].RunningStockAfter)
	assert.True(t, trajectory[2].IsUnderstock, "day three has exactly its demand and no buffer")
}

func TestOverstockFlag(t *testing.T) {
	// Mean demand 1, horizon 10 days: anything above 10 left after demand is
	// overstock.
	sched := Schedule{InitialAvailable: 100}
	trajectory := Run(sched, demandSeries(1, 1, 1), 10)

	for _, p := range trajectory {
		assert.True(t, p.IsOverstock)
		assert.False(t, p.IsUnderstock)
	}
}

func TestEmptyDemand(t *testing.T) {
	assert.Nil(t, Run(Schedule{InitialAvailable: 5}, nil, 90))
}

func TestTrajectoryDayCounts(t *testing.T) {
	sched := Schedule{InitialAvailable: 4}
	trajectory := Run(sched, demandSeries(3, 3, 3), 90)

	assert.Equal(t, 3, trajectory.UnderstockDays())
	assert.Equal(t, 0, trajectory.OverstockDays())
}
