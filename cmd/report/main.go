// Command report prints the consolidated year-end summary: grand
// total, per-category totals and the per-employee breakdown.
package main

import (
	"context"
	"flag"
	"fmt"
	"sort"
	"time"

	"github.com/joho/godotenv"

	infraBQ "github.com/valorops/expense-portal/internal/infra/bigquery"
	"github.com/valorops/expense-portal/internal/logger"
	"github.com/valorops/expense-portal/internal/reporting"
)

func main() {
	_ = godotenv.Load()
	log := logger.New("report")

	year := flag.Int("year", time.Now().Year(), "Ledger year to report on")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	ledger, err := infraBQ.NewLedgerRepository(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize ledger repository")
	}
	defer ledger.Close()

	reports := reporting.NewService(ledger)

	summary, err := reports.Summary(ctx, *year)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build summary")
	}

	fmt.Printf("Consolidated expenses %d\n", *year)
	fmt.Printf("  Grand total:  %s\n", summary.GrandTotal.StringFixed(2))
	fmt.Printf("  Employees:    %d\n", summary.EmployeeCount)
	fmt.Printf("  Transactions: %d\n\n", summary.TransactionCount)

	fmt.Println("By category:")
	categories := make([]string, 0, len(summary.ByCategory))
	for cat := range summary.ByCategory {
		categories = append(categories, cat)
	}
	sort.Strings(categories)
	for _, cat := range categories {
		fmt.Printf("  %-40s %12s\n", cat, summary.ByCategory[cat].StringFixed(2))
	}

	employees, err := reports.ByEmployee(ctx, *year)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build employee breakdown")
	}

	fmt.Println("\nBy employee:")
	for _, emp := range employees {
		name := emp.Name
		if emp.EmployeeType != "" {
			name = fmt.Sprintf("%s (%s)", emp.Name, emp.EmployeeType)
		}
		fmt.Printf("  %-40s %12s\n", name, emp.Total.StringFixed(2))
	}
}
