package main

import (
	"database/sql"
	"encoding/csv"
	"fmt"
	"io"
	"log"
	"os"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"
)

func newDBURLFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:     "db-url",
		Usage:    "Database connection string",
		Required: true,
		EnvVars:  []string{"DATABASE_URL"},
	}
}

func newFileFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:     "file",
		Usage:    "CSV file to load",
		Required: true,
	}
}

// tableSpec ties a seed command to its target table. CSV columns must match
// the listed order, with a header row.
type tableSpec struct {
	command string
	usage   string
	table   string
	columns []string
}

var tableSpecs = []tableSpec{
	{
		command: "sales",
		usage:   "Load historical daily sales (sku,warehouse_code,date,quantity)",
		table:   "daily_sales",
		columns: []string{"sku", "warehouse_code", "date", "quantity"},
	},
	{
		command: "forecast",
		usage:   "Load the demand forecast (sku,warehouse_code,date,forecast_quantity,forecast_revenue)",
		table:   "demand_forecast",
		columns: []string{"sku", "warehouse_code", "date", "forecast_quantity", "forecast_revenue"},
	},
	{
		command: "stock",
		usage:   "Load the stock snapshot (sku,warehouse_code,current_available)",
		table:   "stock_snapshot",
		columns: []string{"sku", "warehouse_code", "current_available"},
	},
	{
		command: "shipments",
		usage:   "Load the shipment schedule (sku,warehouse_code,expected_arrival_date,in_transit_quantity)",
		table:   "shipment_schedule",
		columns: []string{"sku", "warehouse_code", "expected_arrival_date", "in_transit_quantity"},
	},
	{
		command: "elasticity",
		usage:   "Load price elasticities (sku,warehouse_code,price_elasticity)",
		table:   "price_elasticity",
		columns: []string{"sku", "warehouse_code", "price_elasticity"},
	},
	{
		command: "prices",
		usage:   "Load reference prices (sku,warehouse_code,ref_price)",
		table:   "ref_prices",
		columns: []string{"sku", "warehouse_code", "ref_price"},
	},
}

func main() {
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("warning: could not load .env file: %v", err)
	}

	commands := make([]*cli.Command, 0, len(tableSpecs))
	for _, spec := range tableSpecs {
		commands = append(commands, &cli.Command{
			Name:  spec.command,
			Usage: spec.usage,
			Flags: []cli.Flag{newDBURLFlag(), newFileFlag()},
			Action: func(c *cli.Context) error {
				return loadCSV(c, spec)
			},
		})
	}

	app := &cli.App{
		Name:     "seed",
		Usage:    "Load the engine's input tables from CSV files",
		Commands: commands,
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func loadCSV(c *cli.Context, spec tableSpec) error {
	db, err := sql.Open("pgx", c.String("db-url"))
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	f, err := os.Open(c.String("file"))
	if err != nil {
		return fmt.Errorf("failed to open csv: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	header, err := reader.Read()
	if err != nil {
		return fmt.Errorf("failed to read header: %w", err)
	}
	if len(header) != len(spec.columns) {
		return fmt.Errorf("expected %d columns for %s, got %d", len(spec.columns), spec.table, len(header))
	}

	query := insertQuery(spec)
	tx, err := db.BeginTx(c.Context, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	rows := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read row %d: %w", rows+1, err)
		}

		args := make([]interface{}, len(record))
		for i, v := range record {
			args[i] = v
		}
		if _, err := tx.ExecContext(c.Context, query, args...); err != nil {
			return fmt.Errorf("failed to insert row %d into %s: %w", rows+1, spec.table, err)
		}
		rows++
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}

	log.Printf("Loaded %d rows into %s", rows, spec.table)
	return nil
}

func insertQuery(spec tableSpec) string {
	query := "INSERT INTO " + spec.table + " ("
	for i, col := range spec.columns {
		if i > 0 {
			query += ", "
		}
		query += col
	}
	query += ") VALUES ("
	for i := range spec.columns {
		if i > 0 {
			query += ", "
		}
		query += fmt.Sprintf("$%d", i+1)
	}
	return query + ")"
}
