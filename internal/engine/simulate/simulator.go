package simulate

import "time"

// Demand is one day of demand, either the raw forecast or an
// elasticity-adjusted variant. The series must be in chronological order.
type Demand struct {
	Date     time.Time
	Quantity float64
}

// Schedule holds the stock position a simulation starts from: on-hand units
// plus inbound shipments keyed by arrival day (UTC midnight).
type Schedule struct {
	InitialAvailable float64
	InTransit        map[time.Time]float64
}

// Point is one day of the projected trajectory.
type Point struct {
	Date              time.Time
	InTransitQuantity float64
	RunningStockAfter float64
	IsUnderstock      bool
	IsOverstock       bool
}

// Trajectory is the full day-by-day projection for one group.
type Trajectory []Point

func (t Trajectory) UnderstockDays() int {
	n := 0
	for _, p := range t {
		if p.IsUnderstock {
			n++
		}
	}
	return n
}

func (t Trajectory) OverstockDays() int {
	n := 0
	for _, p := range t {
		if p.IsOverstock {
			n++
		}
	}
	return n
}

// Run projects running stock day by day under an all-or-nothing fulfillment
// policy: a day whose demand exceeds available stock fulfills nothing and the
// running total resets to zero. Days are processed strictly in order since
// each depends on the prior day's ending stock. The overstock threshold is
// mean demand times safetyHorizonDays.
//
// The zero-fulfillment reset (rather than partial fulfillment) is a product
// decision carried over from the pricing model; see DESIGN.md.
func Run(sched Schedule, demand []Demand, safetyHorizonDays int) Trajectory {
	if len(demand) == 0 {
		return nil
	}

	overstockLevel := meanDemand(demand) * float64(safetyHorizonDays)

	trajectory := make(Trajectory, 0, len(demand))
	running := sched.InitialAvailable
	for _, day := range demand {
		arriving := sched.InTransit[truncateDay(day.Date)]
		running += arriving

		var after float64
		if running < day.Quantity {
			after = 0
			running = 0
		} else {
			after = running - day.Quantity
			running = after
		}

		trajectory = append(trajectory, Point{
			Date:              day.Date,
			InTransitQuantity: arriving,
			RunningStockAfter: after,
			IsUnderstock:      after < day.Quantity,
			IsOverstock:       after > overstockLevel,
		})
	}
	return trajectory
}

func meanDemand(demand []Demand) float64 {
	if len(demand) == 0 {
		return 0
	}
	total := 0.0
	for _, d := range demand {
		total += d.Quantity
	}
	return total / float64(len(demand))
}

func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
