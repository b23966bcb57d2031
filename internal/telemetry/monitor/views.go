package monitor

import (
	"math"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/sensor.watch/internal/telemetry"
	"github.com/banshee-data/sensor.watch/internal/timeutil"
)

// MaxRangeCM caps a range reading for display. Readings at or beyond the cap
// are drawn as a full-length ray with no obstacle marker.
const MaxRangeCM = 400

// RangeScale shrinks display radii by half so the full 400cm ring fits the
// canvas.
const RangeScale = 0.5

// ChannelSummary is one channel's latest value and window statistics.
type ChannelSummary struct {
	Name    string  `json:"name"`
	Latest  float64 `json:"latest"`
	Mean    float64 `json:"mean"`
	StdDev  float64 `json:"std_dev"`
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
	Samples int     `json:"samples"`
}

// MotionView is the derived motion dashboard state: latest sample, window
// statistics and the raw series the line charts draw.
type MotionView struct {
	Generated time.Time            `json:"generated"`
	Latest    *telemetry.Record    `json:"latest,omitempty"`
	Channels  []ChannelSummary     `json:"channels"`
	Series    map[string][]float64 `json:"series"`
	Counters  telemetry.Counters   `json:"counters"`
}

// GeometryPoint places one range reading on the chassis plane the way the
// radar draws it: clamped to MaxRangeCM, scaled by RangeScale, a ray from
// the origin at the sensor's mounting angle. InRange marks readings short of
// the cap, which get an obstacle marker.
type GeometryPoint struct {
	Channel  string  `json:"channel"`
	AngleDeg float64 `json:"angle_deg"`
	Distance float64 `json:"distance"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	InRange  bool    `json:"in_range"`
}

// RangeView is the derived ranging dashboard state.
type RangeView struct {
	Generated time.Time            `json:"generated"`
	Latest    *telemetry.Record    `json:"latest,omitempty"`
	Channels  []ChannelSummary     `json:"channels"`
	Geometry  []GeometryPoint      `json:"geometry"`
	Series    map[string][]float64 `json:"series"`
	Counters  telemetry.Counters   `json:"counters"`
}

// PacketView is the derived capture dashboard state.
type PacketView struct {
	Generated time.Time                     `json:"generated"`
	Total     uint64                        `json:"total"`
	Counts    map[telemetry.Protocol]uint64 `json:"counts"`
	Sizes     []float64                     `json:"sizes"`
	SizeStats ChannelSummary                `json:"size_stats"`
	Recent    []telemetry.PacketRecord      `json:"recent"`
}

// RecentPacketLimit bounds how many records the dashboard table shows.
const RecentPacketLimit = 20

// sensorAngles pairs the range channels, in schema order, with their
// mounting angles on the chassis: Front 0, Right 90, Left 270, Back 180
// degrees.
var sensorAngles = []float64{0, 90, 270, 180}

// sensorColors are the display colors for the range channels, in schema
// order.
var sensorColors = []string{"red", "green", "blue", "purple"}

func summarize(name string, samples []float64) ChannelSummary {
	s := ChannelSummary{Name: name, Samples: len(samples)}
	if len(samples) == 0 {
		return s
	}
	s.Latest = samples[len(samples)-1]
	s.Mean = stat.Mean(samples, nil)
	if len(samples) > 1 {
		s.StdDev = stat.StdDev(samples, nil)
	}
	s.Min = floats.Min(samples)
	s.Max = floats.Max(samples)
	return s
}

// NewMotionRenderer builds the render function for a motion dashboard over a
// sample store.
func NewMotionRenderer(store *telemetry.SampleStore, clock timeutil.Clock) func() *MotionView {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return func() *MotionView {
		view := &MotionView{
			Generated: clock.Now(),
			Series:    store.SnapshotAll(),
			Counters:  store.Counters(),
		}
		if rec, ok := store.Latest(); ok {
			view.Latest = &rec
		}
		schema := store.Schema()
		for _, ch := range schema.Channels {
			view.Channels = append(view.Channels, summarize(ch.Name, view.Series[ch.Name]))
		}
		return view
	}
}

// RangeGeometry converts a range record into chassis-plane points.
func RangeGeometry(schema telemetry.Schema, rec telemetry.Record) []GeometryPoint {
	n := len(schema.Channels)
	if len(rec.Values) < n {
		n = len(rec.Values)
	}
	if len(sensorAngles) < n {
		n = len(sensorAngles)
	}
	pts := make([]GeometryPoint, 0, n)
	for i := 0; i < n; i++ {
		reading := rec.Values[i]
		clamped := math.Min(reading, MaxRangeCM)
		radius := clamped * RangeScale
		rad := sensorAngles[i] * math.Pi / 180
		pts = append(pts, GeometryPoint{
			Channel:  schema.Channels[i].Name,
			AngleDeg: sensorAngles[i],
			Distance: reading,
			X:        radius * math.Cos(rad),
			Y:        radius * math.Sin(rad),
			InRange:  reading < MaxRangeCM,
		})
	}
	return pts
}

// NewRangeRenderer builds the render function for a ranging dashboard over a
// sample store.
func NewRangeRenderer(store *telemetry.SampleStore, clock timeutil.Clock) func() *RangeView {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return func() *RangeView {
		view := &RangeView{
			Generated: clock.Now(),
			Series:    store.SnapshotAll(),
			Counters:  store.Counters(),
		}
		schema := store.Schema()
		if rec, ok := store.Latest(); ok {
			view.Latest = &rec
			view.Geometry = RangeGeometry(schema, rec)
		}
		for _, ch := range schema.Channels {
			view.Channels = append(view.Channels, summarize(ch.Name, view.Series[ch.Name]))
		}
		return view
	}
}

// NewPacketRenderer builds the render function for a capture dashboard over
// a packet store.
func NewPacketRenderer(store *telemetry.PacketStore, clock timeutil.Clock) func() *PacketView {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return func() *PacketView {
		snap := store.Snapshot()
		view := &PacketView{
			Generated: clock.Now(),
			Counts:    snap.Counts,
			Sizes:     snap.Lengths,
			SizeStats: summarize("Length", snap.Lengths),
		}
		for _, n := range snap.Counts {
			view.Total += n
		}
		recent := snap.Records
		if len(recent) > RecentPacketLimit {
			recent = recent[len(recent)-RecentPacketLimit:]
		}
		view.Recent = recent
		return view
	}
}
