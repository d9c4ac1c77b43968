// Command forecast runs the pipeline on a CSV file and prints the monthly
// energy and the predicted energy for a window of days.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"text/tabwriter"
	"time"

	"github.com/angas/solarforecast-go/cache"
	"github.com/angas/solarforecast-go/days"
	"github.com/angas/solarforecast-go/energy"
	"github.com/angas/solarforecast-go/forecast"
	"github.com/angas/solarforecast-go/pipeline"
	"github.com/lmittmann/tint"
)

func main() {
	csvPath := flag.String("csv", "", "CSV file with solar readings")
	windowDays := flag.Int("days", forecast.DefaultWindowDays, "number of days to sum, 1-365")
	start := flag.String("start", "", "first day of the window (YYYY-MM-DD), default the day after the last reading")
	cacheDir := flag.String("cache-dir", "", "directory to keep the fitted model in, empty keeps it in memory")
	retrain := flag.Bool("retrain", false, "drop the cached model before forecasting")
	verbose := flag.Bool("v", false, "debug logging")
	flag.Parse()

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      level,
		TimeFormat: time.RFC3339Nano,
	}))
	slog.SetDefault(logger)

	if err := run(logger, *csvPath, *windowDays, *start, *cacheDir, *retrain); err != nil {
		logger.Error("forecast failed", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(logger *slog.Logger, csvPath string, n int, start, cacheDir string, retrain bool) error {
	if csvPath == "" {
		return fmt.Errorf("-csv is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var store cache.Store = cache.NewMemoryStore()
	if cacheDir != "" {
		fs, err := cache.NewFileStore(cacheDir)
		if err != nil {
			return err
		}
		store = fs
	}

	c := cache.New(logger, store, forecast.NewAdditive(forecast.DefaultAdditiveOptions()), cache.DefaultKey)
	if retrain {
		if err := c.Invalidate(ctx); err != nil {
			return err
		}
	}

	f, err := os.Open(csvPath)
	if err != nil {
		return err
	}
	defer f.Close()

	report, err := pipeline.New(logger, c, nil, forecast.DefaultHorizonDays).Run(ctx, csvPath, f)
	if err != nil {
		return err
	}

	from := report.DefaultWindowStart()
	if start != "" {
		d, err := days.Parse(start)
		if err != nil {
			return err
		}
		from = d.Time()
	}

	window, err := forecast.SumWindow(report.Forecast, from, n)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprint(tw, "Year\t")
	for _, m := range energy.Months {
		fmt.Fprintf(tw, "%s\t", m.String()[:3])
	}
	fmt.Fprintln(tw, "Total\t")
	for _, row := range report.Pivot.Rows() {
		fmt.Fprintf(tw, "%d\t", row.Year)
		for _, cell := range row.Months {
			fmt.Fprintf(tw, "%s\t", cell.Format("%.1f"))
		}
		fmt.Fprintf(tw, "%.1f\t\n", row.Total)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Printf("\nRows: %d, kept: %d, model: %s\n", report.Rows, len(report.Records), report.Origin)
	fmt.Printf("Predicted energy %s to %s (%d days): %.2f kWh\n",
		days.FromTime(window.Start), days.FromTime(window.End), window.Days, window.Total)
	if window.Truncated {
		fmt.Printf("The forecast ends before the window, only %d predictions were summed.\n", window.Entries)
	}
	return nil
}
