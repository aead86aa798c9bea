package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/skulane/priceflow/internal/domain"
	"github.com/skulane/priceflow/internal/engine/priceopt"
	"github.com/skulane/priceflow/internal/engine/stockout"
)

// ErrMissingGroupInput marks a forecast group lacking a reference price or
// elasticity coefficient. The group is skipped, not failed.
var ErrMissingGroupInput = errors.New("missing group input")

// Config controls the batch run.
type Config struct {
	// WorkerCount is the size of the group worker pool.
	WorkerCount int

	Detector  stockout.Config
	Optimizer priceopt.Config
}

func DefaultConfig() Config {
	return Config{
		WorkerCount: 4,
		Detector:    stockout.DefaultConfig(),
		Optimizer:   priceopt.DefaultConfig(),
	}
}

// Inputs are the five read-only tables the engine consumes.
type Inputs struct {
	Sales        []domain.DailySale
	Forecast     []domain.ForecastPoint
	Stock        []domain.StockSnapshot
	Shipments    []domain.ShipmentArrival
	Elasticities []domain.PriceElasticity
	RefPrices    []domain.RefPrice
}

// GroupError records one skipped group and the stage it failed in.
type GroupError struct {
	Key   domain.GroupKey
	Stage string
	Err   error
}

func (e GroupError) Error() string {
	return fmt.Sprintf("group %s (%s): %v", e.Key, e.Stage, e.Err)
}

// Outputs are the three replace-on-write tables plus the skip report.
type Outputs struct {
	StockoutFlags []domain.StockoutFlag
	Trajectory    []domain.TrajectoryPoint
	Summary       []domain.OptimizationResult
	Skipped       []GroupError
}

const (
	stageStockout     = "stockout_detection"
	stageOptimization = "price_optimization"
)

// job is one unit of per-group work dispatched to the pool. A group appears
// twice when it has both history and a forecast; the two stages are
// independent computations over different inputs.
type job struct {
	key   domain.GroupKey
	stage string
}

// groupResult is the immutable outcome of one job. Results are collected over
// a channel and partitioned after all workers finish, so no shared accumulator
// is mutated concurrently.
type groupResult struct {
	key    domain.GroupKey
	stage  string
	flags  []domain.StockoutFlag
	output *priceopt.GroupOutput
	err    error
}

// Engine orchestrates stockout detection and price optimization across all
// (SKU, warehouse) groups in a batch.
type Engine struct {
	cfg       Config
	detector  *stockout.Detector
	optimizer *priceopt.Optimizer
}

func New(cfg Config) *Engine {
	if cfg.WorkerCount < 1 {
		cfg.WorkerCount = 1
	}
	return &Engine{
		cfg:       cfg,
		detector:  stockout.NewDetector(cfg.Detector),
		optimizer: priceopt.NewOptimizer(cfg.Optimizer),
	}
}

// Run processes every group through a fixed-size worker pool. Per-group
// failures are contained: the batch always completes and reports skipped
// groups alongside the successful output.
func (e *Engine) Run(ctx context.Context, in Inputs) (*Outputs, error) {
	grouped := groupInputs(in)
	jobs := grouped.jobs()

	jobChan := make(chan job, len(jobs))
	resultChan := make(chan groupResult, len(jobs))
	var wg sync.WaitGroup

	for i := 0; i < e.cfg.WorkerCount; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobChan {
				resultChan <- e.process(ctx, grouped, j)
			}
		}()
	}

	for _, j := range jobs {
		if err := ctx.Err(); err != nil {
			close(jobChan)
			wg.Wait()
			return nil, err
		}
		jobChan <- j
	}
	close(jobChan)

	go func() {
		wg.Wait()
		close(resultChan)
	}()

	out := &Outputs{}
	for res := range resultChan {
		if res.err != nil {
			log.Warn().
				Str("sku", res.key.SKU).
				Str("warehouse", res.key.WarehouseCode).
				Str("stage", res.stage).
				Err(res.err).
				Msg("group skipped")
			out.Skipped = append(out.Skipped, GroupError{Key: res.key, Stage: res.stage, Err: res.err})
			continue
		}
		switch res.stage {
		case stageStockout:
			out.StockoutFlags = append(out.StockoutFlags, res.flags...)
		case stageOptimization:
			out.Summary = append(out.Summary, res.output.Summary)
			out.Trajectory = append(out.Trajectory, res.output.Trajectory...)
		}
	}

	sortOutputs(out)

	log.Info().
		Int("stockout_rows", len(out.StockoutFlags)).
		Int("summary_rows", len(out.Summary)).
		Int("trajectory_rows", len(out.Trajectory)).
		Int("skipped_groups", len(out.Skipped)).
		Msg("batch completed")

	return out, nil
}

func (e *Engine) process(ctx context.Context, grouped *groupedInputs, j job) groupResult {
	if err := ctx.Err(); err != nil {
		return groupResult{key: j.key, stage: j.stage, err: err}
	}
	switch j.stage {
	case stageStockout:
		flags, err := e.detector.Detect(j.key, grouped.sales[j.key])
		return groupResult{key: j.key, stage: j.stage, flags: flags, err: err}
	case stageOptimization:
		input, err := grouped.optimizerInput(j.key)
		if err != nil {
			return groupResult{key: j.key, stage: j.stage, err: err}
		}
		output, err := e.optimizer.Optimize(ctx, input)
		return groupResult{key: j.key, stage: j.stage, output: output, err: err}
	default:
		return groupResult{key: j.key, stage: j.stage, err: fmt.Errorf("unknown stage %q", j.stage)}
	}
}

// groupedInputs indexes the flat input tables by group key.
type groupedInputs struct {
	sales        map[domain.GroupKey][]domain.DailySale
	forecast     map[domain.GroupKey][]domain.ForecastPoint
	stock        map[domain.GroupKey]float64
	shipments    map[domain.GroupKey]map[time.Time]float64
	elasticities map[domain.GroupKey]float64
	refPrices    map[domain.GroupKey]float64
}

func groupInputs(in Inputs) *groupedInputs {
	g := &groupedInputs{
		sales:        make(map[domain.GroupKey][]domain.DailySale),
		forecast:     make(map[domain.GroupKey][]domain.ForecastPoint),
		stock:        make(map[domain.GroupKey]float64),
		shipments:    make(map[domain.GroupKey]map[time.Time]float64),
		elasticities: make(map[domain.GroupKey]float64),
		refPrices:    make(map[domain.GroupKey]float64),
	}
	for _, s := range in.Sales {
		key := domain.GroupKey{SKU: s.SKU, WarehouseCode: s.WarehouseCode}
		g.sales[key] = append(g.sales[key], s)
	}
	for _, f := range in.Forecast {
		key := domain.GroupKey{SKU: f.SKU, WarehouseCode: f.WarehouseCode}
		g.forecast[key] = append(g.forecast[key], f)
	}
	for _, s := range in.Stock {
		g.stock[domain.GroupKey{SKU: s.SKU, WarehouseCode: s.WarehouseCode}] = s.CurrentAvailable
	}
	for _, sh := range in.Shipments {
		key := domain.GroupKey{SKU: sh.SKU, WarehouseCode: sh.WarehouseCode}
		if g.shipments[key] == nil {
			g.shipments[key] = make(map[time.Time]float64)
		}
		day := truncateDay(sh.ExpectedArrivalDate)
		g.shipments[key][day] += sh.InTransitQuantity
	}
	for _, el := range in.Elasticities {
		g.elasticities[domain.GroupKey{SKU: el.SKU, WarehouseCode: el.WarehouseCode}] = el.PriceElasticity
	}
	for _, rp := range in.RefPrices {
		g.refPrices[domain.GroupKey{SKU: rp.SKU, WarehouseCode: rp.WarehouseCode}] = rp.RefPrice
	}

	for key := range g.sales {
		rows := g.sales[key]
		sort.Slice(rows, func(i, j int) bool { return rows[i].Date.Before(rows[j].Date) })
	}
	for key := range g.forecast {
		rows := g.forecast[key]
		sort.Slice(rows, func(i, j int) bool { return rows[i].Date.Before(rows[j].Date) })
	}
	return g
}

// jobs enumerates the work in a deterministic order: one detection job per
// historical group, one optimization job per forecast group.
func (g *groupedInputs) jobs() []job {
	jobs := make([]job, 0, len(g.sales)+len(g.forecast))
	for _, key := range sortedKeys(g.sales) {
		jobs = append(jobs, job{key: key, stage: stageStockout})
	}
	for _, key := range sortedKeys(g.forecast) {
		jobs = append(jobs, job{key: key, stage: stageOptimization})
	}
	return jobs
}

func (g *groupedInputs) optimizerInput(key domain.GroupKey) (priceopt.GroupInput, error) {
	refPrice, ok := g.refPrices[key]
	if !ok {
		return priceopt.GroupInput{}, fmt.Errorf("%w: no reference price for %s", ErrMissingGroupInput, key)
	}
	elasticity, ok := g.elasticities[key]
	if !ok {
		return priceopt.GroupInput{}, fmt.Errorf("%w: no elasticity for %s", ErrMissingGroupInput, key)
	}
	return priceopt.GroupInput{
		Key:          key,
		RefPrice:     refPrice,
		Elasticity:   elasticity,
		Forecast:     g.forecast[key],
		CurrentStock: g.stock[key],
		Shipments:    g.shipments[key],
	}, nil
}

func sortedKeys[T any](m map[domain.GroupKey]T) []domain.GroupKey {
	keys := make([]domain.GroupKey, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].SKU != keys[j].SKU {
			return keys[i].SKU < keys[j].SKU
		}
		return keys[i].WarehouseCode < keys[j].WarehouseCode
	})
	return keys
}

// sortOutputs fixes the row order so identical inputs always produce
// byte-identical output tables.
func sortOutputs(out *Outputs) {
	sort.Slice(out.StockoutFlags, func(i, j int) bool {
		a, b := out.StockoutFlags[i], out.StockoutFlags[j]
		if a.SKU != b.SKU {
			return a.SKU < b.SKU
		}
		if a.WarehouseCode != b.WarehouseCode {
			return a.WarehouseCode < b.WarehouseCode
		}
		return a.Date.Before(b.Date)
	})
	sort.Slice(out.Trajectory, func(i, j int) bool {
		a, b := out.Trajectory[i], out.Trajectory[j]
		if a.SKU != b.SKU {
			return a.SKU < b.SKU
		}
		if a.WarehouseCode != b.WarehouseCode {
			return a.WarehouseCode < b.WarehouseCode
		}
		return a.Date.Before(b.Date)
	})
	sort.Slice(out.Summary, func(i, j int) bool {
		a, b := out.Summary[i], out.Summary[j]
		if a.SKU != b.SKU {
			return a.SKU < b.SKU
		}
		return a.WarehouseCode < b.WarehouseCode
	})
	sort.Slice(out.Skipped, func(i, j int) bool {
		a, b := out.Skipped[i], out.Skipped[j]
		if a.Key.SKU != b.Key.SKU {
			return a.Key.SKU < b.Key.SKU
		}
		if a.Key.WarehouseCode != b.Key.WarehouseCode {
			return a.Key.WarehouseCode < b.Key.WarehouseCode
		}
		return a.Stage < b.Stage
	})
}

func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
