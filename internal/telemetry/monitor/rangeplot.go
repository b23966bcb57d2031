package monitor

import (
	"bytes"
	"fmt"
	"image/color"
	"math"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
)

// radarPalette maps the chart color names onto RGBA values for the PNG
// renderer.
var radarPalette = map[string]color.Color{
	"red":    color.RGBA{R: 220, G: 50, B: 47, A: 255},
	"green":  color.RGBA{R: 0, G: 160, B: 60, A: 255},
	"blue":   color.RGBA{R: 38, G: 100, B: 210, A: 255},
	"purple": color.RGBA{R: 130, G: 60, B: 160, A: 255},
	"gray":   color.RGBA{R: 170, G: 170, B: 170, A: 255},
}

func rayColor(i int) color.Color {
	if i < len(sensorColors) {
		if c, ok := radarPalette[sensorColors[i]]; ok {
			return c
		}
	}
	return color.Black
}

// circlePoints approximates a circle of the given radius as a closed
// 72-segment line loop around the origin.
func circlePoints(radius float64) plotter.XYs {
	const segments = 72
	pts := make(plotter.XYs, segments+1)
	for i := 0; i <= segments; i++ {
		theta := 2 * math.Pi * float64(i) / segments
		pts[i] = plotter.XY{X: radius * math.Cos(theta), Y: radius * math.Sin(theta)}
	}
	return pts
}

// RenderRadarPNG draws the chassis-plane radar: gray reference circles every
// 100cm out to the display cap, one colored ray per sensor, and an obstacle
// marker wherever the reading came back inside the cap. An empty view still
// renders the reference grid.
func RenderRadarPNG(view *RangeView) ([]byte, error) {
	p := plot.New()
	p.Title.Text = "Obstacle Radar"
	if !view.Generated.IsZero() {
		p.Title.Text = fmt.Sprintf("Obstacle Radar %s", view.Generated.Format("15:04:05"))
	}
	p.X.Label.Text = "X (cm)"
	p.Y.Label.Text = "Y (cm)"

	// Symmetric fixed axes so the frame does not jump between renders.
	limit := MaxRangeCM * RangeScale * 1.05
	p.X.Min, p.X.Max = -limit, limit
	p.Y.Min, p.Y.Max = -limit, limit

	for radius := 100.0; radius <= MaxRangeCM; radius += 100 {
		ring, err := plotter.NewLine(circlePoints(radius * RangeScale))
		if err != nil {
			return nil, fmt.Errorf("failed to build reference circle: %w", err)
		}
		ring.Color = radarPalette["gray"]
		ring.Width = vg.Points(0.5)
		p.Add(ring)
	}

	for i, pt := range view.Geometry {
		ray, err := plotter.NewLine(plotter.XYs{{X: 0, Y: 0}, {X: pt.X, Y: pt.Y}})
		if err != nil {
			return nil, fmt.Errorf("failed to build sensor ray: %w", err)
		}
		ray.Color = rayColor(i)
		ray.Width = vg.Points(2)
		p.Add(ray)
		p.Legend.Add(fmt.Sprintf("%s (%.0f cm)", pt.Channel, pt.Distance), ray)

		if !pt.InRange {
			continue
		}
		marker, err := plotter.NewScatter(plotter.XYs{{X: pt.X, Y: pt.Y}})
		if err != nil {
			return nil, fmt.Errorf("failed to build obstacle marker: %w", err)
		}
		marker.GlyphStyle = draw.GlyphStyle{Shape: draw.CircleGlyph{}, Radius: vg.Points(5), Color: rayColor(i)}
		p.Add(marker)
	}

	p.Legend.Top = true
	p.Legend.Left = true
	p.Legend.XOffs = vg.Points(10)
	p.Legend.YOffs = vg.Points(-10)

	wt, err := p.WriterTo(6*vg.Inch, 6*vg.Inch, "png")
	if err != nil {
		return nil, fmt.Errorf("failed to render radar: %w", err)
	}
	var buf bytes.Buffer
	if _, err := wt.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("failed to write radar PNG: %w", err)
	}
	return buf.Bytes(), nil
}
