package notify

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/alejandrodnm/spotbot/internal/domain"
)

// Console renders reports to a writer, stdout in normal operation.
type Console struct {
	out     io.Writer
	verbose bool
}

// NewConsole creates a reporter that writes to stdout.
func NewConsole(verbose bool) *Console {
	return &Console{out: os.Stdout, verbose: verbose}
}

// NewConsoleWriter creates a reporter for tests.
func NewConsoleWriter(w io.Writer, verbose bool) *Console {
	return &Console{out: w, verbose: verbose}
}

// PrintBacktest renders a finished backtest run: header, aggregate metrics,
// and in verbose mode the per-trade table.
func (c *Console) PrintBacktest(run domain.BacktestRun) {
	r := run.Result

	fmt.Fprintf(c.out, "\n=== BACKTEST %s / %s ===\n", run.Strategy, run.Symbol)
	fmt.Fprintf(c.out, "  Period:        %s to %s\n",
		run.Start.Format("2006-01-02 15:04"), run.End.Format("2006-01-02 15:04"))
	fmt.Fprintf(c.out, "  Trades:        %d closed\n", r.TotalTrades)
	fmt.Fprintf(c.out, "  Win rate:      %.2f%%\n", r.WinRate)
	fmt.Fprintf(c.out, "  Total return:  %.2f%%\n", r.TotalReturnPercent)
	fmt.Fprintf(c.out, "  Total income:  $%s\n", r.TotalIncome.StringFixed(2))
	fmt.Fprintf(c.out, "  Traded volume: $%s\n", r.TotalVolume.StringFixed(2))

	if open := openTradeCount(r.Trades); open > 0 {
		fmt.Fprintf(c.out, "  Open at end:   %d (excluded from metrics)\n", open)
	}

	if c.verbose && len(r.Trades) > 0 {
		c.printTrades(r.Trades)
	}
	fmt.Fprintln(c.out)
}

func (c *Console) printTrades(trades []domain.Trade) {
	table := tablewriter.NewWriter(c.out)
	table.Header("#", "Opened", "Open$", "TP$", "SL$", "Closed", "Close$", "PnL%", "Income")

	for i, t := range trades {
		closedAt, closePrice, income := "-", "-", "-"
		if t.IsClosed() {
			closedAt = t.CloseTime.Format("01-02 15:04")
			closePrice = t.ClosePrice.StringFixed(4)
			income = "$" + t.Income().StringFixed(4)
		}
		table.Append(
			fmt.Sprintf("%d", i+1),
			t.OpenTime.Format("01-02 15:04"),
			t.OpenPrice.StringFixed(4),
			t.TPPrice.StringFixed(4),
			t.SLPrice.StringFixed(4),
			closedAt,
			closePrice,
			fmt.Sprintf("%.2f", t.PnLPercent()),
			income,
		)
	}
	table.Render()
}

// PrintBacktestRuns renders the stored run history.
func (c *Console) PrintBacktestRuns(runs []domain.BacktestRun) {
	if len(runs) == 0 {
		fmt.Fprintln(c.out, "\n  No backtest runs stored yet.")
		return
	}

	fmt.Fprintf(c.out, "\n=== BACKTEST HISTORY (%d runs) ===\n", len(runs))

	table := tablewriter.NewWriter(c.out)
	table.Header("When", "Strategy", "Symbol", "Period", "Trades", "Win%", "Return%", "Income")

	for _, run := range runs {
		r := run.Result
		period := fmt.Sprintf("%s..%s",
			run.Start.Format("2006-01-02"), run.End.Format("2006-01-02"))
		table.Append(
			run.CreatedAt.Format("2006-01-02 15:04"),
			run.Strategy,
			run.Symbol,
			period,
			fmt.Sprintf("%d", r.TotalTrades),
			fmt.Sprintf("%.1f", r.WinRate),
			fmt.Sprintf("%.2f", r.TotalReturnPercent),
			"$"+r.TotalIncome.StringFixed(2),
		)
	}
	table.Render()
	fmt.Fprintln(c.out)
}

// PrintStats renders aggregated deal statistics for a period.
func (c *Console) PrintStats(stats domain.DealStats, start, end time.Time) {
	fmt.Fprintf(c.out, "\n=== DEAL STATS %s to %s ===\n",
		start.Format("2006-01-02"), end.Format("2006-01-02"))

	if stats.Count == 0 {
		fmt.Fprintln(c.out, "  No deals in period.")
		fmt.Fprintln(c.out)
		return
	}

	fmt.Fprintf(c.out, "  Deals:          %d\n", stats.Count)
	fmt.Fprintf(c.out, "  Invested:       $%.2f\n", stats.TotalInvestedUSD)
	fmt.Fprintf(c.out, "  Buy price:      avg %s  min %s  max %s\n",
		priceLabel(stats.AvgBuyPrice), priceLabel(stats.MinBuyPrice), priceLabel(stats.MaxBuyPrice))
	fmt.Fprintf(c.out, "  Take profits:   %d\n", stats.TakeProfitTriggered)
	fmt.Fprintf(c.out, "  Stop losses:    %d\n", stats.StopLossTriggered)
	fmt.Fprintf(c.out, "  Wins / losses:  %d / %d\n", stats.WinningDeals, stats.LosingDeals)
	fmt.Fprintf(c.out, "  Net earned:     $%.2f\n", stats.TotalEarnedUSD)

	if c.verbose && len(stats.USDDiffs) > 0 {
		fmt.Fprintln(c.out, "  Per-deal P&L:")
		for i, diff := range stats.USDDiffs {
			fmt.Fprintf(c.out, "    #%d  $%.4f\n", i+1, diff)
		}
	}
	fmt.Fprintln(c.out)
}

// PrintOpenPositions renders a table of currently open deals.
func (c *Console) PrintOpenPositions(deals []domain.Deal) {
	if len(deals) == 0 {
		fmt.Fprintln(c.out, "\n  No open positions.")
		return
	}

	fmt.Fprintf(c.out, "\n=== OPEN POSITIONS (%d) ===\n", len(deals))

	table := tablewriter.NewWriter(c.out)
	table.Header("Opened", "Symbol", "Source", "Qty", "Entry$", "TP$", "SL$")

	for _, d := range deals {
		table.Append(
			d.CreatedAt.Format("2006-01-02 15:04"),
			d.Symbol,
			d.Source,
			d.Qty.String(),
			fmt.Sprintf("%.4f", d.Price),
			priceLabel(d.TakeProfitPrice),
			priceLabel(d.StopLossPrice),
		)
	}
	table.Render()
	fmt.Fprintln(c.out)
}

func priceLabel(p *float64) string {
	if p == nil {
		return "-"
	}
	return fmt.Sprintf("%.4f", *p)
}

func openTradeCount(trades []domain.Trade) int {
	n := 0
	for _, t := range trades {
		if !t.IsClosed() {
			n++
		}
	}
	return n
}
