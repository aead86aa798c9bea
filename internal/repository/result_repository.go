package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/skulane/priceflow/internal/domain"
)

// ResultRepository reads the engine's output tables for the API surface.
type ResultRepository interface {
	GetSummary(ctx context.Context, filter domain.ResultFilter) ([]domain.OptimizationResult, error)
	GetTrajectory(ctx context.Context, filter domain.ResultFilter) ([]domain.TrajectoryPoint, error)
	GetStockouts(ctx context.Context, filter domain.ResultFilter) ([]domain.StockoutFlag, int, error)
}

type resultRepository struct {
	db *sqlx.DB
}

func NewResultRepository(db *sqlx.DB) ResultRepository {
	return &resultRepository{db: db}
}

func (r *resultRepository) GetSummary(ctx context.Context, filter domain.ResultFilter) ([]domain.OptimizationResult, error) {
	query := `
        SELECT
            sku, warehouse_code, ref_price, price_elasticity, current_stock,
            understock_days, overstock_days, revenue_before, revenue_after,
            price_new, price_old, opt_stock_level, inventory_order_quantity
        FROM optimization_summary
        WHERE 1=1
    `
	query, args := applyFilter(query, filter, false)
	query += " ORDER BY sku, warehouse_code"
	query, args = applyPaging(query, args, filter)

	var results []domain.OptimizationResult
	if err := r.db.SelectContext(ctx, &results, query, args...); err != nil {
		return nil, fmt.Errorf("error getting optimization summary: %w", err)
	}
	return results, nil
}

func (r *resultRepository) GetTrajectory(ctx context.Context, filter domain.ResultFilter) ([]domain.TrajectoryPoint, error) {
	query := `
        SELECT
            sku, warehouse_code, date, in_transit_quantity,
            running_stock_after_adjusted, adjusted_demand
        FROM price_adjusted_trajectory
        WHERE 1=1
    `
	query, args := applyFilter(query, filter, true)
	query += " ORDER BY sku, warehouse_code, date"
	query, args = applyPaging(query, args, filter)

	var points []domain.TrajectoryPoint
	if err := r.db.SelectContext(ctx, &points, query, args...); err != nil {
		return nil, fmt.Errorf("error getting trajectory: %w", err)
	}
	return points, nil
}

func (r *resultRepository) GetStockouts(ctx context.Context, filter domain.ResultFilter) ([]domain.StockoutFlag, int, error) {
	baseFilter, args := applyFilter("", filter, true)

	countQuery := "SELECT COUNT(*) FROM stockout_flags WHERE 1=1" + baseFilter
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("error counting stockout flags: %w", err)
	}

	query := `
        SELECT
            sku, warehouse_code, date, quantity, run_length,
            gap_years, gap_years_log10, baseline_probability, is_stockout
        FROM stockout_flags
        WHERE 1=1` + baseFilter + " ORDER BY sku, warehouse_code, date"
	query, args = applyPaging(query, args, filter)

	var flags []domain.StockoutFlag
	if err := r.db.SelectContext(ctx, &flags, query, args...); err != nil {
		return nil, 0, fmt.Errorf("error getting stockout flags: %w", err)
	}
	return flags, total, nil
}

// applyFilter appends WHERE conditions for the common filter fields and
// returns the amended query plus its positional args. When query is empty only
// the condition fragment is returned, for reuse across count and page queries.
func applyFilter(query string, filter domain.ResultFilter, dated bool) (string, []interface{}) {
	var args []interface{}
	var conditions []string
	argCounter := 1

	if len(filter.SKUs) > 0 {
		conditions = append(conditions, fmt.Sprintf("sku = ANY($%d::text[])", argCounter))
		args = append(args, pq.Array(filter.SKUs))
		argCounter++
	}
	if len(filter.Warehouses) > 0 {
		conditions = append(conditions, fmt.Sprintf("warehouse_code = ANY($%d::text[])", argCounter))
		args = append(args, pq.Array(filter.Warehouses))
		argCounter++
	}
	if dated && filter.DateFrom != "" {
		conditions = append(conditions, fmt.Sprintf("date >= $%d::date", argCounter))
		args = append(args, filter.DateFrom)
		argCounter++
	}
	if dated && filter.DateTo != "" {
		conditions = append(conditions, fmt.Sprintf("date <= $%d::date", argCounter))
		args = append(args, filter.DateTo)
		argCounter++
	}

	if len(conditions) > 0 {
		query += " AND " + strings.Join(conditions, " AND ")
	}
	return query, args
}

func applyPaging(query string, args []interface{}, filter domain.ResultFilter) (string, []interface{}) {
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", len(args)+1)
		args = append(args, filter.Limit)
	}
	if filter.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", len(args)+1)
		args = append(args, filter.Offset)
	}
	return query, args
}
