package report

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/go-echarts/go-echarts/v2/types"
	"gopkg.in/yaml.v3"

	"simex/internal/config"
	"simex/internal/session"
)

const (
	chartWidthPx  = 1200
	chartHeightPx = 520
)

// Write renders one run's report under the configured report dir: an HTML
// chart of the trade price series with the session mean marked, plus a
// YAML snapshot of the resolved config beside it.
func Write(cfg *config.Config, summary *session.Summary, tradePrices []int64) error {
	dir := filepath.Join(cfg.Report.Dir, summary.RunID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	if err := writeChart(filepath.Join(dir, "report.html"), summary, tradePrices); err != nil {
		return err
	}
	return writeConfigSnapshot(filepath.Join(dir, "config.yaml"), cfg)
}

func writeChart(path string, summary *session.Summary, tradePrices []int64) error {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			Theme:  types.ThemeWesteros,
			Width:  fmt.Sprintf("%dpx", chartWidthPx),
			Height: fmt.Sprintf("%dpx", chartHeightPx),
		}),
		charts.WithTitleOpts(opts.Title{
			Title: fmt.Sprintf("run %s", summary.RunID),
			Subtitle: fmt.Sprintf("seed=%d trades=%d efficiency=%s best=%s",
				summary.Seed, summary.Trades, summary.Efficiency.StringFixed(4), summary.BestStrategy),
			Left: "left",
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "slider", XAxisIndex: []int{0}}),
		charts.WithYAxisOpts(opts.YAxis{Scale: opts.Bool(true)}),
	)

	x := make([]string, len(tradePrices))
	data := make([]opts.LineData, len(tradePrices))
	for i, p := range tradePrices {
		x[i] = strconv.Itoa(i + 1)
		data[i] = opts.LineData{Value: p}
	}
	line.SetXAxis(x)
	line.AddSeries("trade price", data,
		charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(false)}),
		charts.WithMarkLineNameYAxisItemOpts(opts.MarkLineNameYAxisItem{
			Name:  "session mean",
			YAxis: summary.MeanTradePrice.InexactFloat64(),
		}),
	)

	page := components.NewPage()
	page.SetLayout(components.PageFlexLayout)
	page.AddCharts(line)

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return page.Render(f)
}

func writeConfigSnapshot(path string, cfg *config.Config) error {
	raw, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, raw, 0o644)
}
