package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/skulane/priceflow/internal/domain"
	"github.com/skulane/priceflow/internal/engine"
	"github.com/skulane/priceflow/internal/repository/postgres"
)

// BatchRepository loads the engine's five input tables and replaces its three
// output tables in one transaction per run.
type BatchRepository interface {
	LoadInputs(ctx context.Context) (engine.Inputs, error)
	ReplaceOutputs(ctx context.Context, out *engine.Outputs) error
}

type batchRepository struct {
	db *postgres.DB
}

func NewBatchRepository(db *postgres.DB) BatchRepository {
	return &batchRepository{db: db}
}

func (r *batchRepository) LoadInputs(ctx context.Context) (engine.Inputs, error) {
	var in engine.Inputs

	queries := []struct {
		name  string
		query string
		dest  interface{}
	}{
		{
			name:  "daily sales",
			query: `SELECT sku, warehouse_code, date, quantity FROM daily_sales ORDER BY sku, warehouse_code, date`,
			dest:  &in.Sales,
		},
		{
			name:  "demand forecast",
			query: `SELECT sku, warehouse_code, date, forecast_quantity, forecast_revenue FROM demand_forecast ORDER BY sku, warehouse_code, date`,
			dest:  &in.Forecast,
		},
		{
			name:  "stock snapshot",
			query: `SELECT sku, warehouse_code, current_available FROM stock_snapshot`,
			dest:  &in.Stock,
		},
		{
			name:  "shipment schedule",
			query: `SELECT sku, warehouse_code, expected_arrival_date, in_transit_quantity FROM shipment_schedule`,
			dest:  &in.Shipments,
		},
		{
			name:  "price elasticity",
			query: `SELECT sku, warehouse_code, price_elasticity FROM price_elasticity`,
			dest:  &in.Elasticities,
		},
		{
			name:  "reference prices",
			query: `SELECT sku, warehouse_code, ref_price FROM ref_prices`,
			dest:  &in.RefPrices,
		},
	}

	for _, q := range queries {
		if err := r.db.SelectContext(ctx, q.dest, q.query); err != nil {
			return engine.Inputs{}, fmt.Errorf("error loading %s: %w", q.name, err)
		}
	}

	return in, nil
}

// ReplaceOutputs rewrites the three output tables in full. Running inside a
// single transaction keeps readers from ever observing a half-replaced run.
func (r *batchRepository) ReplaceOutputs(ctx context.Context, out *engine.Outputs) error {
	return r.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		for _, table := range []string{"stockout_flags", "price_adjusted_trajectory", "optimization_summary"} {
			if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
				return fmt.Errorf("error clearing %s: %w", table, err)
			}
		}
		if err := insertStockoutFlags(ctx, tx, out.StockoutFlags); err != nil {
			return err
		}
		if err := insertTrajectory(ctx, tx, out.Trajectory); err != nil {
			return err
		}
		if err := insertSummary(ctx, tx, out.Summary); err != nil {
			return err
		}
		return nil
	})
}

func insertStockoutFlags(ctx context.Context, tx *sqlx.Tx, rows []domain.StockoutFlag) error {
	if len(rows) == 0 {
		return nil
	}
	query := `
		INSERT INTO stockout_flags (
			sku, warehouse_code, date, quantity, run_length,
			gap_years, gap_years_log10, baseline_probability, is_stockout
		) VALUES (
			:sku, :warehouse_code, :date, :quantity, :run_length,
			:gap_years, :gap_years_log10, :baseline_probability, :is_stockout
		)`
	if _, err := tx.NamedExecContext(ctx, query, rows); err != nil {
		return fmt.Errorf("error inserting stockout flags: %w", err)
	}
	return nil
}

func insertTrajectory(ctx context.Context, tx *sqlx.Tx, rows []domain.TrajectoryPoint) error {
	if len(rows) == 0 {
		return nil
	}
	query := `
		INSERT INTO price_adjusted_trajectory (
			sku, warehouse_code, date, in_transit_quantity,
			running_stock_after_adjusted, adjusted_demand
		) VALUES (
			:sku, :warehouse_code, :date, :in_transit_quantity,
			:running_stock_after_adjusted, :adjusted_demand
		)`
	if _, err := tx.NamedExecContext(ctx, query, rows); err != nil {
		return fmt.Errorf("error inserting trajectory: %w", err)
	}
	return nil
}

func insertSummary(ctx context.Context, tx *sqlx.Tx, rows []domain.OptimizationResult) error {
	if len(rows) == 0 {
		return nil
	}
	query := `
		INSERT INTO optimization_summary (
			sku, warehouse_code, ref_price, price_elasticity, current_stock,
			understock_days, overstock_days, revenue_before, revenue_after,
			price_new, price_old, opt_stock_level, inventory_order_quantity
		) VALUES (
			:sku, :warehouse_code, :ref_price, :price_elasticity, :current_stock,
			:understock_days, :overstock_days, :revenue_before, :revenue_after,
			:price_new, :price_old, :opt_stock_level, :inventory_order_quantity
		)`
	if _, err := tx.NamedExecContext(ctx, query, rows); err != nil {
		return fmt.Errorf("error inserting optimization summary: %w", err)
	}
	return nil
}
