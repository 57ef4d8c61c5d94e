package app

import (
	"context"
	"encoding/csv"
	"errors"
	"math"
	"os"
	"path/filepath"
	"time"

	chart "github.com/wcharczuk/go-chart/v2"

	"tradesentry/internal/storage"
	"tradesentry/internal/throttle"
)

// ExportOptions hold parameters for exporting the signal-event history.
type ExportOptions struct {
	From      *time.Time
	To        *time.Time
	PNGPath   string
	CSVPath   string
	MaxPoints int
}

// Export renders historical signal events as CSV and/or a PNG timeline of
// cumulative outcomes.
func (a *App) Export(ctx context.Context, opts ExportOptions) error {
	if opts.CSVPath == "" && opts.PNGPath == "" {
		return errors.New("at least one of --csv or --png must be provided")
	}

	if opts.MaxPoints <= 0 {
		opts.MaxPoints = a.Config.Export.MaxDataPoints
	}

	_, events, closeStores, err := a.openStores(ctx)
	if err != nil {
		return err
	}
	if closeStores != nil {
		defer closeStores()
	}

	to := time.Now().UTC()
	if opts.To != nil {
		to = opts.To.UTC()
	}
	from := to.Add(-30 * 24 * time.Hour)
	if opts.From != nil {
		from = opts.From.UTC()
	}
	if !from.Before(to) {
		return errors.New("from must be before to")
	}

	history, err := events.ListEventsBetween(ctx, from, to)
	if err != nil {
		return err
	}
	if len(history) == 0 {
		a.Logger.Info().Msg("no events found for export window")
		return nil
	}

	downsampled := downsampleEvents(history, opts.MaxPoints)
	a.Logger.Info().Int("total", len(history)).Int("exported", len(downsampled)).Msg("exporting events")

	if opts.CSVPath != "" {
		if err := writeEventsCSV(opts.CSVPath, downsampled); err != nil {
			return err
		}
	}

	if opts.PNGPath != "" {
		if err := writeEventsPNG(opts.PNGPath, history); err != nil {
			return err
		}
	}

	return nil
}

func downsampleEvents(events []storage.SignalEvent, max int) []storage.SignalEvent {
	if max <= 0 || len(events) <= max {
		return events
	}

	result := make([]storage.SignalEvent, 0, max)
	step := float64(len(events)-1) / float64(max-1)
	for i := 0; i < max; i++ {
		idx := int(math.Round(step * float64(i)))
		if idx >= len(events) {
			idx = len(events) - 1
		}
		result = append(result, events[idx])
	}
	return result
}

func writeEventsCSV(path string, events []storage.SignalEvent) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{"created_at", "symbol", "strategy", "side", "price", "outcome", "origin", "reason"}
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, event := range events {
		record := []string{
			event.CreatedAt.Format(time.RFC3339),
			event.Symbol,
			event.Strategy,
			string(event.Side),
			event.Price.String(),
			event.Outcome,
			event.Origin,
			event.Reason,
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	return writer.Error()
}

func writeEventsPNG(path string, events []storage.SignalEvent) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	outcomes := []string{storage.OutcomeDelivered, storage.OutcomeDenied, storage.OutcomeBlocked, storage.OutcomeFailed}
	series := make([]chart.Series, 0, len(outcomes))

	for _, outcome := range outcomes {
		var (
			x     []time.Time
			y     []float64
			total float64
		)
		for _, event := range events {
			if event.Outcome != outcome {
				continue
			}
			total++
			x = append(x, event.CreatedAt)
			y = append(y, total)
		}
		if len(x) < 2 {
			// go-chart needs at least two points per series.
			continue
		}
		series = append(series, chart.TimeSeries{Name: outcome, XValues: x, YValues: y})
	}

	if len(series) == 0 {
		return errors.New("not enough events to render a chart")
	}

	graph := chart.Chart{
		Width:  1280,
		Height: 720,
		XAxis: chart.XAxis{
			ValueFormatter: chart.TimeValueFormatter,
		},
		YAxis: chart.YAxis{
			Name: "Cumulative events",
		},
		Series: series,
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	return graph.Render(chart.PNG, file)
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

// ParseSide validates a CLI-supplied side string.
func ParseSide(value string) (throttle.Side, error) {
	switch throttle.Side(value) {
	case throttle.SideBuy, throttle.SideSell, throttle.SideIndex:
		return throttle.Side(value), nil
	default:
		return "", errors.New("side must be BUY, SELL, or INDEX")
	}
}
