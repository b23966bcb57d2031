package monitor

import (
	"bytes"
	"fmt"
	"net/http"
	"time"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/sensor.watch/internal/httputil"
	"github.com/banshee-data/sensor.watch/internal/telemetry"
)

// echartsAssetsPrefix is where chart pages load the echarts runtime from.
const echartsAssetsPrefix = "https://go-echarts.github.io/go-echarts-assets/assets/"

// renderPage renders one or more charts as a single HTML page.
func renderPage(w http.ResponseWriter, charters ...components.Charter) {
	page := components.NewPage()
	page.SetAssetsHost(echartsAssetsPrefix)
	page.AddCharts(charters...)

	var buf bytes.Buffer
	if err := page.Render(&buf); err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to render chart: %v", err))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

func lineData(samples []float64) []opts.LineData {
	items := make([]opts.LineData, 0, len(samples))
	for _, v := range samples {
		items = append(items, opts.LineData{Value: v})
	}
	return items
}

func sampleIndexes(n int) []int {
	xs := make([]int, n)
	for i := range xs {
		xs[i] = i
	}
	return xs
}

// newSeriesLine builds a line chart over named channels of a series map. All
// channels share the sample-index x axis.
func newSeriesLine(title string, generated time.Time, series map[string][]float64, names ...string) *charts.Line {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "100%", Height: "400px", AssetsHost: echartsAssetsPrefix}),
		charts.WithTitleOpts(opts.Title{Title: title, Subtitle: generated.Format(time.RFC3339)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
	)

	longest := 0
	for _, name := range names {
		if len(series[name]) > longest {
			longest = len(series[name])
		}
	}
	line.SetXAxis(sampleIndexes(longest))
	for _, name := range names {
		line.AddSeries(name, lineData(series[name]))
	}
	return line
}

// MotionCharts serves the motion dashboard chart pages from the published
// view.
type MotionCharts struct {
	sched *Scheduler[MotionView]
}

func NewMotionCharts(sched *Scheduler[MotionView]) *MotionCharts {
	return &MotionCharts{sched: sched}
}

// AttachRoutes mounts the chart endpoints on the daemon mux.
func (c *MotionCharts) AttachRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/charts/motion", c.handleMotion)
}

func (c *MotionCharts) handleMotion(w http.ResponseWriter, r *http.Request) {
	view := c.sched.View()

	accel := newSeriesLine("Accelerometer", view.Generated, view.Series, "AccelX", "AccelY", "AccelZ")
	gyro := newSeriesLine("Gyroscope", view.Generated, view.Series, "GyroX", "GyroY", "GyroZ")
	orientation := newSeriesLine("Orientation", view.Generated, view.Series, "Roll", "Pitch")

	renderPage(w, accel, gyro, orientation)
}

// RangeCharts serves the ranging dashboard: a PNG radar of the latest
// readings and the reading-history line chart.
type RangeCharts struct {
	sched *Scheduler[RangeView]
}

func NewRangeCharts(sched *Scheduler[RangeView]) *RangeCharts {
	return &RangeCharts{sched: sched}
}

// AttachRoutes mounts the chart endpoints on the daemon mux.
func (c *RangeCharts) AttachRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/charts/radar", c.handleRadar)
	mux.HandleFunc("/charts/history", c.handleHistory)
}

func (c *RangeCharts) handleRadar(w http.ResponseWriter, r *http.Request) {
	png, err := RenderRadarPNG(c.sched.View())
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to render radar: %v", err))
		return
	}
	w.Header().Set("Content-Type", "image/png")
	_, _ = w.Write(png)
}

func (c *RangeCharts) handleHistory(w http.ResponseWriter, r *http.Request) {
	view := c.sched.View()

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Sensor Reading History", Width: "100%", Height: "500px", AssetsHost: echartsAssetsPrefix}),
		charts.WithTitleOpts(opts.Title{Title: "Sensor Reading History", Subtitle: view.Generated.Format(time.RFC3339)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Distance (cm)", Min: 0, Max: MaxRangeCM}),
	)

	longest := 0
	for _, ch := range view.Channels {
		if len(view.Series[ch.Name]) > longest {
			longest = len(view.Series[ch.Name])
		}
	}
	line.SetXAxis(sampleIndexes(longest))
	for i, ch := range view.Channels {
		series := charts.WithLineChartOpts(opts.LineChart{Smooth: opts.Bool(false)})
		if i < len(sensorColors) {
			line.AddSeries(ch.Name, lineData(view.Series[ch.Name]), series,
				charts.WithItemStyleOpts(opts.ItemStyle{Color: sensorColors[i]}))
			continue
		}
		line.AddSeries(ch.Name, lineData(view.Series[ch.Name]), series)
	}

	renderPage(w, line)
}

// PacketCharts serves the capture dashboard chart pages.
type PacketCharts struct {
	sched *Scheduler[PacketView]
}

func NewPacketCharts(sched *Scheduler[PacketView]) *PacketCharts {
	return &PacketCharts{sched: sched}
}

// AttachRoutes mounts the chart endpoints on the daemon mux.
func (c *PacketCharts) AttachRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/charts/protocols", c.handleProtocols)
	mux.HandleFunc("/charts/sizes", c.handleSizes)
}

func (c *PacketCharts) handleProtocols(w http.ResponseWriter, r *http.Request) {
	view := c.sched.View()
	protocols := []telemetry.Protocol{telemetry.ProtocolTCP, telemetry.ProtocolUDP, telemetry.ProtocolOther}

	pieItems := make([]opts.PieData, 0, len(protocols))
	names := make([]string, 0, len(protocols))
	barItems := make([]opts.BarData, 0, len(protocols))
	for _, p := range protocols {
		pieItems = append(pieItems, opts.PieData{Name: string(p), Value: view.Counts[p]})
		names = append(names, string(p))
		barItems = append(barItems, opts.BarData{Value: view.Counts[p]})
	}

	pie := charts.NewPie()
	pie.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Protocol Distribution", Width: "100%", Height: "420px", AssetsHost: echartsAssetsPrefix}),
		charts.WithTitleOpts(opts.Title{Title: "Protocol Distribution", Subtitle: fmt.Sprintf("%d packets in window", view.Total)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	)
	pie.AddSeries("protocols", pieItems,
		charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Formatter: "{b}: {c}"}),
	)

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "100%", Height: "420px", AssetsHost: echartsAssetsPrefix}),
		charts.WithTitleOpts(opts.Title{Title: "Packets by Protocol", Subtitle: view.Generated.Format(time.RFC3339)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	)
	bar.SetXAxis(names).
		AddSeries("packets", barItems,
			charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Position: "top"}),
		)

	renderPage(w, pie, bar)
}

func (c *PacketCharts) handleSizes(w http.ResponseWriter, r *http.Request) {
	view := c.sched.View()

	subtitle := fmt.Sprintf("mean %.1f B, stddev %.1f B over %d packets",
		view.SizeStats.Mean, view.SizeStats.StdDev, view.SizeStats.Samples)

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Packet Sizes", Width: "100%", Height: "500px", AssetsHost: echartsAssetsPrefix}),
		charts.WithTitleOpts(opts.Title{Title: "Packet Sizes", Subtitle: subtitle}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Bytes"}),
	)
	line.SetXAxis(sampleIndexes(len(view.Sizes)))
	line.AddSeries("length", lineData(view.Sizes))

	renderPage(w, line)
}
