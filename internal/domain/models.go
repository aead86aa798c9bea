package domain

import "time"

// GroupKey identifies a product within a fulfillment location. Every input and
// output row handled by the engine is keyed by one of these.
type GroupKey struct {
	SKU           string `json:"sku" db:"sku"`
	WarehouseCode string `json:"warehouse_code" db:"warehouse_code"`
}

func (k GroupKey) String() string {
	return k.SKU + "@" + k.WarehouseCode
}

// DailySale is a single historical sales fact. Quantity is zero on days with
// no recorded sales once the series has been densified.
type DailySale struct {
	SKU           string    `json:"sku" db:"sku"`
	WarehouseCode string    `json:"warehouse_code" db:"warehouse_code"`
	Date          time.Time `json:"date" db:"date"`
	Quantity      float64   `json:"quantity" db:"quantity"`
}

// ForecastPoint is one day of the upstream demand forecast. Read-only input.
type ForecastPoint struct {
	SKU              string    `json:"sku" db:"sku"`
	WarehouseCode    string    `json:"warehouse_code" db:"warehouse_code"`
	Date             time.Time `json:"date" db:"date"`
	ForecastQuantity float64   `json:"forecast_quantity" db:"forecast_quantity"`
	ForecastRevenue  float64   `json:"forecast_revenue" db:"forecast_revenue"`
}

// StockSnapshot is the on-hand stock for a group at the start of simulation.
type StockSnapshot struct {
	SKU              string  `json:"sku" db:"sku"`
	WarehouseCode    string  `json:"warehouse_code" db:"warehouse_code"`
	CurrentAvailable float64 `json:"current_available" db:"current_available"`
}

// ShipmentArrival is a scheduled inbound shipment for a group.
type ShipmentArrival struct {
	SKU                 string    `json:"sku" db:"sku"`
	WarehouseCode       string    `json:"warehouse_code" db:"warehouse_code"`
	ExpectedArrivalDate time.Time `json:"expected_arrival_date" db:"expected_arrival_date"`
	InTransitQuantity   float64   `json:"in_transit_quantity" db:"in_transit_quantity"`
}

// PriceElasticity is the per-group elasticity coefficient produced by the
// upstream regression.
type PriceElasticity struct {
	SKU             string  `json:"sku" db:"sku"`
	WarehouseCode   string  `json:"warehouse_code" db:"warehouse_code"`
	PriceElasticity float64 `json:"price_elasticity" db:"price_elasticity"`
}

// RefPrice is the current selling price for a group.
type RefPrice struct {
	SKU           string  `json:"sku" db:"sku"`
	WarehouseCode string  `json:"warehouse_code" db:"warehouse_code"`
	RefPrice      float64 `json:"ref_price" db:"ref_price"`
}

// StockoutFlag is one day of stockout classification output.
type StockoutFlag struct {
	SKU                 string    `json:"sku" db:"sku"`
	WarehouseCode       string    `json:"warehouse_code" db:"warehouse_code"`
	Date                time.Time `json:"date" db:"date"`
	Quantity            float64   `json:"quantity" db:"quantity"`
	RunLength           int       `json:"run_length" db:"run_length"`
	GapYears            float64   `json:"gap_years" db:"gap_years"`
	GapYearsLog10       float64   `json:"gap_years_log10" db:"gap_years_log10"`
	BaselineProbability float64   `json:"baseline_probability" db:"baseline_probability"`
	IsStockout          bool      `json:"is_stockout" db:"is_stockout"`
}

// TrajectoryPoint is one day of the price-adjusted running-stock projection.
type TrajectoryPoint struct {
	SKU                       string    `json:"sku" db:"sku"`
	WarehouseCode             string    `json:"warehouse_code" db:"warehouse_code"`
	Date                      time.Time `json:"date" db:"date"`
	InTransitQuantity         float64   `json:"in_transit_quantity" db:"in_transit_quantity"`
	RunningStockAfterAdjusted float64   `json:"running_stock_after_adjusted" db:"running_stock_after_adjusted"`
	AdjustedDemand            float64   `json:"adjusted_demand" db:"adjusted_demand"`
}

// OptimizationResult is the per-group summary row. Each batch run fully
// replaces the prior row for the group.
type OptimizationResult struct {
	SKU                    string  `json:"sku" db:"sku"`
	WarehouseCode          string  `json:"warehouse_code" db:"warehouse_code"`
	RefPrice               float64 `json:"ref_price" db:"ref_price"`
	PriceElasticity        float64 `json:"price_elasticity" db:"price_elasticity"`
	CurrentStock           float64 `json:"current_stock" db:"current_stock"`
	UnderstockDays         int     `json:"understock_days" db:"understock_days"`
	OverstockDays          int     `json:"overstock_days" db:"overstock_days"`
	RevenueBefore          float64 `json:"revenue_before" db:"revenue_before"`
	RevenueAfter           float64 `json:"revenue_after" db:"revenue_after"`
	PriceNew               float64 `json:"price_new" db:"price_new"`
	PriceOld               float64 `json:"price_old" db:"price_old"`
	OptStockLevel          float64 `json:"opt_stock_level" db:"opt_stock_level"`
	InventoryOrderQuantity float64 `json:"inventory_order_quantity" db:"inventory_order_quantity"`
}

// ResultFilter narrows API queries over the output tables.
type ResultFilter struct {
	SKUs       []string
	Warehouses []string
	DateFrom   string
	DateTo     string
	Limit      int
	Offset     int
}
