// Package telemetry holds the shared pipeline core for the sensor dashboards:
// line and packet parsing, the rolling-window ring stores, the recording log,
// and CSV export. The acquisition loop in telemetry/capture writes into these
// types; everything else reads through snapshots.
package telemetry

import (
	"strconv"
	"time"
)

// ChannelKind selects how a channel's wire field is converted. Values are
// held as float64 in memory either way; the kind also controls how the value
// prints (integer channels without a decimal point).
type ChannelKind int

const (
	KindFloat64 ChannelKind = iota
	KindInt64
)

// Channel is one named column in a sample stream.
type Channel struct {
	Name string
	Kind ChannelKind
}

// Schema fixes the channel count and order for one pipeline. A Record only
// makes sense against the schema that parsed it, so the schema travels with
// the store rather than with every record.
type Schema struct {
	Name     string
	Channels []Channel
}

func (s Schema) Len() int { return len(s.Channels) }

// ChannelNames returns the channel names in column order.
func (s Schema) ChannelNames() []string {
	names := make([]string, len(s.Channels))
	for i, c := range s.Channels {
		names[i] = c.Name
	}
	return names
}

// FormatValue renders one channel's value for display and CSV: integer
// channels print as integers, float channels in compact form.
func (s Schema) FormatValue(i int, v float64) string {
	if i >= 0 && i < len(s.Channels) && s.Channels[i].Kind == KindInt64 {
		return strconv.FormatInt(int64(v), 10)
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// MotionSchema is the MPU6050 line format: eight floats per sample.
func MotionSchema() Schema {
	return Schema{
		Name: "imu",
		Channels: []Channel{
			{Name: "AccelX", Kind: KindFloat64},
			{Name: "AccelY", Kind: KindFloat64},
			{Name: "AccelZ", Kind: KindFloat64},
			{Name: "GyroX", Kind: KindFloat64},
			{Name: "GyroY", Kind: KindFloat64},
			{Name: "GyroZ", Kind: KindFloat64},
			{Name: "Roll", Kind: KindFloat64},
			{Name: "Pitch", Kind: KindFloat64},
		},
	}
}

// RangeSchema is the four-sensor ultrasonic format: centimeter distances as
// integers, one per mounting direction.
func RangeSchema() Schema {
	return Schema{
		Name: "sonar",
		Channels: []Channel{
			{Name: "Front", Kind: KindInt64},
			{Name: "Right", Kind: KindInt64},
			{Name: "Left", Kind: KindInt64},
			{Name: "Back", Kind: KindInt64},
		},
	}
}

// Record is one parsed sample. Seq and Time are stamped by the acquisition
// loop, not the parser, which keeps parsing a pure function of the input.
type Record struct {
	Seq    uint64    `json:"seq"`
	Time   time.Time `json:"time"`
	Values []float64 `json:"values"`
}

// Field is one named value from a Record.
type Field struct {
	Name  string
	Value float64
}

// Fields pairs the record's values with the schema's channel names in column
// order.
func (r Record) Fields(s Schema) []Field {
	n := len(r.Values)
	if len(s.Channels) < n {
		n = len(s.Channels)
	}
	fields := make([]Field, n)
	for i := 0; i < n; i++ {
		fields[i] = Field{Name: s.Channels[i].Name, Value: r.Values[i]}
	}
	return fields
}
