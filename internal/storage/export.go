package storage

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/skulane/priceflow/internal/engine"
)

const dateLayout = "2006-01-02"

// Exporter writes the three output tables as CSV snapshots to object storage,
// keyed by run date. Dashboards that cannot reach the database read these.
type Exporter struct {
	store  ObjectStorage
	prefix string
}

func NewExporter(store ObjectStorage, prefix string) *Exporter {
	if prefix == "" {
		prefix = "priceflow"
	}
	return &Exporter{store: store, prefix: prefix}
}

// Export uploads one CSV per output table under <prefix>/<yyyymmdd>/.
func (e *Exporter) Export(ctx context.Context, runDate time.Time, out *engine.Outputs) error {
	day := runDate.Format("20060102")

	snapshots := []struct {
		name string
		data []byte
	}{
		{"stockout_flags.csv", encodeStockoutFlags(out)},
		{"price_adjusted_trajectory.csv", encodeTrajectory(out)},
		{"optimization_summary.csv", encodeSummary(out)},
	}

	for _, snap := range snapshots {
		key := fmt.Sprintf("%s/%s/%s", e.prefix, day, snap.name)
		if err := e.store.UploadObject(ctx, key, snap.data, "text/csv"); err != nil {
			return err
		}
		log.Info().Str("key", key).Int("bytes", len(snap.data)).Msg("snapshot uploaded")
	}
	return nil
}

func encodeStockoutFlags(out *engine.Outputs) []byte {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	w.Write([]string{"sku", "warehouse_code", "date", "quantity", "run_length",
		"gap_years", "gap_years_log10", "baseline_probability", "is_stockout"})
	for _, f := range out.StockoutFlags {
		w.Write([]string{
			f.SKU, f.WarehouseCode, f.Date.Format(dateLayout),
			formatFloat(f.Quantity), strconv.Itoa(f.RunLength),
			formatFloat(f.GapYears), formatFloat(f.GapYearsLog10),
			formatFloat(f.BaselineProbability), strconv.FormatBool(f.IsStockout),
		})
	}
	w.Flush()
	return buf.Bytes()
}

func encodeTrajectory(out *engine.Outputs) []byte {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	w.Write([]string{"sku", "warehouse_code", "date", "in_transit_quantity",
		"running_stock_after_adjusted", "adjusted_demand"})
	for _, p := range out.Trajectory {
		w.Write([]string{
			p.SKU, p.WarehouseCode, p.Date.Format(dateLayout),
			formatFloat(p.InTransitQuantity),
			formatFloat(p.RunningStockAfterAdjusted),
			formatFloat(p.AdjustedDemand),
		})
	}
	w.Flush()
	return buf.Bytes()
}

func encodeSummary(out *engine.Outputs) []byte {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	w.Write([]string{"sku", "warehouse_code", "ref_price", "price_elasticity",
		"current_stock", "understock_days", "overstock_days", "revenue_before",
		"revenue_after", "price_new", "price_old", "opt_stock_level",
		"inventory_order_quantity"})
	for _, s := range out.Summary {
		w.Write([]string{
			s.SKU, s.WarehouseCode, formatFloat(s.RefPrice),
			formatFloat(s.PriceElasticity), formatFloat(s.CurrentStock),
			strconv.Itoa(s.UnderstockDays), strconv.Itoa(s.OverstockDays),
			formatFloat(s.RevenueBefore), formatFloat(s.RevenueAfter),
			formatFloat(s.PriceNew), formatFloat(s.PriceOld),
			formatFloat(s.OptStockLevel), formatFloat(s.InventoryOrderQuantity),
		})
	}
	w.Flush()
	return buf.Bytes()
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
