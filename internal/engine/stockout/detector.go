package stockout

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/skulane/priceflow/internal/domain"
)

const daysPerYear = 365.0

// ErrDegenerateSeries marks a group whose history cannot support the
// run-length model (empty span, no zero-sale days, or nothing but zero days).
// The orchestrator skips such groups instead of failing the batch.
var ErrDegenerateSeries = errors.New("degenerate sales series")

// Config tunes the stockout classifier.
type Config struct {
	// GapYearsThreshold is the waiting time, in years, above which a zero run
	// is excluded from the baseline probability during refinement.
	GapYearsThreshold float64

	// LogCap caps gap_years_log10; a day at the cap is classified a stockout.
	LogCap float64

	// Epsilon keeps the refined probability strictly positive when every zero
	// day has been attributed to stockouts.
	Epsilon float64

	// MaxRefineIterations bounds the refinement loop regardless of convergence.
	MaxRefineIterations int
}

// DefaultConfig returns the thresholds used in production.
func DefaultConfig() Config {
	return Config{
		GapYearsThreshold:   100,
		LogCap:              2,
		Epsilon:             1e-6,
		MaxRefineIterations: 50,
	}
}

// Detector classifies zero-sale runs in a group's daily history as either
// ordinary demand noise or genuine stockouts.
type Detector struct {
	cfg Config
}

func NewDetector(cfg Config) *Detector {
	def := DefaultConfig()
	if cfg.GapYearsThreshold <= 0 {
		cfg.GapYearsThreshold = def.GapYearsThreshold
	}
	if cfg.LogCap <= 0 {
		cfg.LogCap = def.LogCap
	}
	if cfg.Epsilon <= 0 {
		cfg.Epsilon = def.Epsilon
	}
	if cfg.MaxRefineIterations <= 0 {
		cfg.MaxRefineIterations = def.MaxRefineIterations
	}
	return &Detector{cfg: cfg}
}

// Detect densifies the group's sales history, measures zero-sale run lengths,
// and flags runs whose expected waiting time under a Bernoulli no-sale model
// exceeds the classification cap.
func (d *Detector) Detect(key domain.GroupKey, sales []domain.DailySale) ([]domain.StockoutFlag, error) {
	if len(sales) == 0 {
		return nil, fmt.Errorf("%w: group %s has no history", ErrDegenerateSeries, key)
	}

	dates, quantities := densify(sales)
	totalDays := len(dates)

	zeroDays := 0
	for _, q := range quantities {
		if q == 0 {
			zeroDays++
		}
	}
	if zeroDays == 0 {
		return nil, fmt.Errorf("%w: group %s has no zero-sale days", ErrDegenerateSeries, key)
	}
	if zeroDays == totalDays {
		return nil, fmt.Errorf("%w: group %s sold nothing over its whole span", ErrDegenerateSeries, key)
	}

	runLengths := zeroRunLengths(quantities)

	p := float64(zeroDays) / float64(totalDays)
	gaps := gapYearsSeries(runLengths, p)

	// Refine the baseline probability: zero days already attributable to
	// stockouts must not inflate the no-sale probability. Stops once the
	// refined p no longer decreases, or at the iteration guard.
	for i := 0; i < d.cfg.MaxRefineIterations; i++ {
		gapDays := 0
		for _, g := range gaps {
			if g > d.cfg.GapYearsThreshold {
				gapDays++
			}
		}
		denominator := float64(totalDays - gapDays)
		if denominator <= 0 {
			break
		}
		refined := (float64(zeroDays-gapDays) + d.cfg.Epsilon) / denominator
		if refined >= p {
			break
		}
		p = refined
		gaps = gapYearsSeries(runLengths, p)
	}

	flags := make([]domain.StockoutFlag, totalDays)
	for i := range dates {
		logGap := math.Log10(gaps[i] + 1)
		if logGap > d.cfg.LogCap {
			logGap = d.cfg.LogCap
		}
		flags[i] = domain.StockoutFlag{
			SKU:                 key.SKU,
			WarehouseCode:       key.WarehouseCode,
			Date:                dates[i],
			Quantity:            quantities[i],
			RunLength:           runLengths[i],
			GapYears:            gaps[i],
			GapYearsLog10:       logGap,
			BaselineProbability: p,
			IsStockout:          logGap >= d.cfg.LogCap,
		}
	}
	return flags, nil
}

// densify expands the sales facts into a contiguous daily series between the
// group's first and last observed date, filling missing days with quantity 0.
func densify(sales []domain.DailySale) ([]time.Time, []float64) {
	byDay := make(map[time.Time]float64, len(sales))
	var first, last time.Time
	for i, s := range sales {
		day := truncateDay(s.Date)
		byDay[day] += s.Quantity
		if i == 0 || day.Before(first) {
			first = day
		}
		if i == 0 || day.After(last) {
			last = day
		}
	}

	span := int(last.Sub(first).Hours()/24) + 1
	dates := make([]time.Time, 0, span)
	quantities := make([]float64, 0, span)
	for day := first; !day.After(last); day = day.AddDate(0, 0, 1) {
		dates = append(dates, day)
		quantities = append(quantities, byDay[day])
	}
	return dates, quantities
}

// zeroRunLengths returns, per day, the final length of the contiguous zero-run
// the day belongs to (0 for days with sales). A forward accumulation assigns
// each zero day its position in the run; the run total is then propagated back
// so every member carries the same length.
func zeroRunLengths(quantities []float64) []int {
	lengths := make([]int, len(quantities))
	run := 0
	for i, q := range quantities {
		if q == 0 {
			run++
		} else {
			run = 0
		}
		lengths[i] = run
	}
	for i := len(lengths) - 2; i >= 0; i-- {
		if lengths[i] != 0 && lengths[i+1] > lengths[i] {
			lengths[i] = lengths[i+1]
		}
	}
	return lengths
}

// gapYears is the expected waiting time, in years, to observe a zero run of
// length L under an i.i.d. Bernoulli(p) no-sale process.
func gapYears(runLength int, p float64) float64 {
	if runLength == 0 {
		return 0
	}
	pL := math.Pow(p, float64(runLength))
	return ((1 - pL) / (pL * (1 - p))) / daysPerYear
}

func gapYearsSeries(runLengths []int, p float64) []float64 {
	gaps := make([]float64, len(runLengths))
	for i, l := range runLengths {
		gaps[i] = gapYears(l, p)
	}
	return gaps
}

func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
