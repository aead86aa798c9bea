package priceopt

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/skulane/priceflow/internal/domain"
	"github.com/skulane/priceflow/internal/engine/simulate"
)

var (
	// ErrInvalidPriceBounds is raised before any trial runs when the
	// configured search range is empty or touches non-positive prices.
	ErrInvalidPriceBounds = errors.New("invalid price search bounds")

	// ErrEmptyForecast marks a group with no forecast to optimize against.
	ErrEmptyForecast = errors.New("empty demand forecast")

	// ErrNumericDegeneracy marks a group whose inputs produce non-finite
	// demand or revenue under the elasticity model.
	ErrNumericDegeneracy = errors.New("numeric degeneracy in price response")
)

// Elasticity coefficients outside this band are clipped before search.
const (
	elasticityFloor = -5
	elasticityCeil  = -1
)

// Config tunes the price search.
type Config struct {
	// LowerBoundFactor and UpperBoundFactor bound the candidate price range
	// as multiples of the reference price.
	LowerBoundFactor float64
	UpperBoundFactor float64

	// Trials is the number of candidate prices evaluated across the range.
	Trials int

	// ForecastStockLevel is the evaluation horizon in days and the days-of-cover
	// target for the optimal stock level.
	ForecastStockLevel int

	// MinStockLevel is the running-stock floor below which a day counts as a
	// shortfall in the objective.
	MinStockLevel float64

	// StockoutPenalty is the per-shortfall-day surcharge added to the objective.
	StockoutPenalty float64

	// SafetyHorizonDays sets the overstock threshold as a multiple of mean
	// daily demand. Zero defaults to ForecastStockLevel + 60.
	SafetyHorizonDays int

	// TrialConcurrency caps concurrent trial evaluations within one group.
	TrialConcurrency int
}

func DefaultConfig() Config {
	return Config{
		LowerBoundFactor:   0.7,
		UpperBoundFactor:   1.3,
		Trials:             40,
		ForecastStockLevel: 30,
		MinStockLevel:      0,
		StockoutPenalty:    1000,
		TrialConcurrency:   4,
	}
}

// GroupInput carries everything the optimizer needs for one (SKU, warehouse)
// group. Forecast must be in chronological order.
type GroupInput struct {
	Key          domain.GroupKey
	RefPrice     float64
	Elasticity   float64
	Forecast     []domain.ForecastPoint
	CurrentStock float64
	Shipments    map[time.Time]float64
}

// GroupOutput is the optimizer's contribution to the two output tables.
type GroupOutput struct {
	Summary    domain.OptimizationResult
	Trajectory []domain.TrajectoryPoint
}

// trial is one evaluated candidate price. Discarded after selection.
type trial struct {
	price     float64
	objective float64
}

// Optimizer searches a bounded price range for the revenue-maximizing
// adjustment, using the depletion simulator as its evaluation function.
type Optimizer struct {
	cfg Config
}

func NewOptimizer(cfg Config) *Optimizer {
	def := DefaultConfig()
	if cfg.LowerBoundFactor == 0 {
		cfg.LowerBoundFactor = def.LowerBoundFactor
	}
	if cfg.UpperBoundFactor == 0 {
		cfg.UpperBoundFactor = def.UpperBoundFactor
	}
	if cfg.Trials < 2 {
		cfg.Trials = def.Trials
	}
	if cfg.ForecastStockLevel <= 0 {
		cfg.ForecastStockLevel = def.ForecastStockLevel
	}
	if cfg.StockoutPenalty <= 0 {
		cfg.StockoutPenalty = def.StockoutPenalty
	}
	if cfg.SafetyHorizonDays <= 0 {
		cfg.SafetyHorizonDays = cfg.ForecastStockLevel + 60
	}
	if cfg.TrialConcurrency <= 0 {
		cfg.TrialConcurrency = def.TrialConcurrency
	}
	return &Optimizer{cfg: cfg}
}

// Optimize runs the bounded grid search for one group and recomputes the
// full-horizon trajectory at the selected price.
func (o *Optimizer) Optimize(ctx context.Context, in GroupInput) (*GroupOutput, error) {
	if len(in.Forecast) == 0 {
		return nil, fmt.Errorf("%w: group %s", ErrEmptyForecast, in.Key)
	}
	if in.RefPrice <= 0 || math.IsNaN(in.RefPrice) {
		return nil, fmt.Errorf("%w: group %s has ref price %v", ErrNumericDegeneracy, in.Key, in.RefPrice)
	}
	lower := o.cfg.LowerBoundFactor * in.RefPrice
	upper := o.cfg.UpperBoundFactor * in.RefPrice
	if lower <= 0 || lower >= upper {
		return nil, fmt.Errorf("%w: [%v, %v] for group %s", ErrInvalidPriceBounds, lower, upper, in.Key)
	}

	elasticity := clipElasticity(in.Elasticity)

	horizon := o.cfg.ForecastStockLevel
	if horizon > len(in.Forecast) {
		horizon = len(in.Forecast)
	}
	evalForecast := in.Forecast[:horizon]
	sched := simulate.Schedule{InitialAvailable: in.CurrentStock, InTransit: in.Shipments}

	trials := make([]trial, o.cfg.Trials)
	step := (upper - lower) / float64(o.cfg.Trials-1)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.cfg.TrialConcurrency)
	for i := range trials {
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			price := lower + step*float64(i)
			objective, err := o.evaluate(price, in.RefPrice, elasticity, evalForecast, sched)
			if err != nil {
				return fmt.Errorf("trial %d (price %v): %w", i, price, err)
			}
			trials[i] = trial{price: price, objective: objective}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	best := trials[0]
	for _, t := range trials[1:] {
		if t.objective < best.objective {
			best = t
		}
	}

	return o.assemble(in, elasticity, best.price, sched)
}

// evaluate runs one trial: adjust demand for the candidate price, simulate
// depletion over the evaluation horizon, and score stock-constrained revenue
// against the shortfall penalty. Lower is better.
func (o *Optimizer) evaluate(price, refPrice, elasticity float64, forecast []domain.ForecastPoint, sched simulate.Schedule) (float64, error) {
	demand, err := adjustDemand(forecast, price, refPrice, elasticity)
	if err != nil {
		return 0, err
	}
	trajectory := simulate.Run(sched, demand, o.cfg.SafetyHorizonDays)

	revenueInStock := 0.0
	shortfallDays := 0
	lostForecast := 0.0
	for i, point := range trajectory {
		if point.RunningStockAfter > o.cfg.MinStockLevel {
			revenueInStock += demand[i].Quantity * price
		} else {
			shortfallDays++
			lostForecast += forecast[i].ForecastQuantity
		}
	}

	objective := -revenueInStock + o.cfg.StockoutPenalty*float64(shortfallDays) + lostForecast
	if math.IsNaN(objective) || math.IsInf(objective, 0) {
		return 0, fmt.Errorf("%w: objective is %v at price %v", ErrNumericDegeneracy, objective, price)
	}
	return objective, nil
}

// assemble recomputes the trajectory over the full forecast horizon at the
// selected price and derives the summary row.
func (o *Optimizer) assemble(in GroupInput, elasticity, bestPrice float64, sched simulate.Schedule) (*GroupOutput, error) {
	adjusted, err := adjustDemand(in.Forecast, bestPrice, in.RefPrice, elasticity)
	if err != nil {
		return nil, err
	}
	trajectory := simulate.Run(sched, adjusted, o.cfg.SafetyHorizonDays)

	revenueBefore := 0.0
	revenueAfter := 0.0
	meanDemand := 0.0
	for i, fc := range in.Forecast {
		revenueBefore += fc.ForecastQuantity * in.RefPrice
		revenueAfter += adjusted[i].Quantity * bestPrice
		meanDemand += fc.ForecastQuantity
	}
	meanDemand /= float64(len(in.Forecast))

	optStockLevel := meanDemand * float64(o.cfg.ForecastStockLevel)
	orderQuantity := optStockLevel - in.CurrentStock - inTransitWithin(in.Forecast[0].Date, o.cfg.ForecastStockLevel, in.Shipments)

	points := make([]domain.TrajectoryPoint, len(trajectory))
	for i, point := range trajectory {
		points[i] = domain.TrajectoryPoint{
			SKU:                       in.Key.SKU,
			WarehouseCode:             in.Key.WarehouseCode,
			Date:                      point.Date,
			InTransitQuantity:         point.InTransitQuantity,
			RunningStockAfterAdjusted: point.RunningStockAfter,
			AdjustedDemand:            adjusted[i].Quantity,
		}
	}

	return &GroupOutput{
		Summary: domain.OptimizationResult{
			SKU:                    in.Key.SKU,
			WarehouseCode:          in.Key.WarehouseCode,
			RefPrice:               in.RefPrice,
			PriceElasticity:        elasticity,
			CurrentStock:           in.CurrentStock,
			UnderstockDays:         trajectory.UnderstockDays(),
			OverstockDays:          trajectory.OverstockDays(),
			RevenueBefore:          revenueBefore,
			RevenueAfter:           revenueAfter,
			PriceNew:               bestPrice,
			PriceOld:               in.RefPrice,
			OptStockLevel:          optStockLevel,
			InventoryOrderQuantity: orderQuantity,
		},
		Trajectory: points,
	}, nil
}

// adjustDemand applies the constant-elasticity response curve
// demand * (price/refPrice)^elasticity to every forecast day.
func adjustDemand(forecast []domain.ForecastPoint, price, refPrice, elasticity float64) ([]simulate.Demand, error) {
	ratio := math.Pow(price/refPrice, elasticity)
	if math.IsNaN(ratio) || math.IsInf(ratio, 0) {
		return nil, fmt.Errorf("%w: response ratio %v for price %v against ref %v", ErrNumericDegeneracy, ratio, price, refPrice)
	}
	demand := make([]simulate.Demand, len(forecast))
	for i, fc := range forecast {
		demand[i] = simulate.Demand{Date: fc.Date, Quantity: fc.ForecastQuantity * ratio}
	}
	return demand, nil
}

func inTransitWithin(start time.Time, days int, shipments map[time.Time]float64) float64 {
	end := start.AddDate(0, 0, days)
	total := 0.0
	for date, quantity := range shipments {
		if !date.Before(start) && date.Before(end) {
			total += quantity
		}
	}
	return total
}

func clipElasticity(r float64) float64 {
	if math.IsNaN(r) {
		return elasticityCeil
	}
	if r < elasticityFloor {
		return elasticityFloor
	}
	if r > elasticityCeil {
		return elasticityCeil
	}
	return r
}
