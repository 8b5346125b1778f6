package render

import (
	"fmt"
	"math"

	"fleet-dashboard/internal/models"

	"github.com/dustin/go-humanize"
)

func NewMetric(label, value, delta string, color DeltaColor) Metric {
	return Metric{Kind: KindMetric, Label: label, Value: value, Delta: delta, DeltaColor: color}
}

// Money formats whole dollars with thousands separators.
func Money(v float64) string {
	return "$" + humanize.Comma(int64(math.Round(v)))
}

func Count(n int64) string {
	return humanize.Comma(n)
}

func Pct(v float64) string {
	return fmt.Sprintf("%.1f%%", v)
}

// BarOptions describes how a categorical frame becomes a bar chart.
type BarOptions struct {
	Title      string
	X          string
	Y          string
	XLabel     string
	YLabel     string
	SortBy     string // empty keeps warehouse order
	Desc       bool
	ShadeBy    string // numeric column for continuous coloring
	Colors     map[string]string
	Hover      []string
	TextFormat string
	Horizontal bool
}

func BarFrom(f *models.Frame, opts BarOptions) Panel {
	if f.Empty() {
		return Empty("")
	}
	if opts.SortBy != "" {
		f = f.SortBy(opts.SortBy, opts.Desc)
	}
	chart := BarChart{
		Kind:       KindBar,
		Title:      opts.Title,
		XLabel:     label(opts.XLabel, opts.X),
		YLabel:     label(opts.YLabel, opts.Y),
		Horizontal: opts.Horizontal,
		Bars:       make([]Bar, 0, f.Len()),
	}
	for r := 0; r < f.Len(); r++ {
		b := Bar{Category: f.String(r, opts.X), Value: f.Float(r, opts.Y)}
		if opts.ShadeBy != "" {
			b.Shade = f.Float(r, opts.ShadeBy)
		}
		if opts.Colors != nil {
			b.Color = opts.Colors[b.Category]
		}
		if opts.TextFormat != "" {
			b.Text = fmt.Sprintf(opts.TextFormat, b.Value)
		}
		if len(opts.Hover) > 0 {
			b.Hover = make(map[string]any, len(opts.Hover))
			for _, h := range opts.Hover {
				b.Hover[h] = f.Value(r, h)
			}
		}
		chart.Bars = append(chart.Bars, b)
	}
	return chart
}

// MapColumns names the frame columns feeding a risk map.
type MapColumns struct {
	ID      string
	Lat     string
	Lon     string
	Risk    string
	Tooltip []string
}

// Initial view of the fleet map over the continental US.
const (
	MapCenterLat = 39.8283
	MapCenterLon = -98.5795
	MapZoom      = 3.5
	MapPitch     = 0
)

// NoDevicesMessage replaces the map when the filters match nothing.
const NoDevicesMessage = "No devices match the selected filters."

func MapFrom(f *models.Frame, cols MapColumns) Panel {
	if f.Empty() {
		return Empty(NoDevicesMessage)
	}
	m := ScatterMap{
		Kind:      KindMap,
		CenterLat: MapCenterLat,
		CenterLon: MapCenterLon,
		Zoom:      MapZoom,
		Pitch:     MapPitch,
		Markers:   make([]Marker, 0, f.Len()),
	}
	for r := 0; r < f.Len(); r++ {
		p := f.Float(r, cols.Risk)
		mk := Marker{
			ID:     f.String(r, cols.ID),
			Lat:    f.Float(r, cols.Lat),
			Lon:    f.Float(r, cols.Lon),
			Color:  RiskColor(p),
			Radius: MarkerRadius(p),
		}
		if len(cols.Tooltip) > 0 {
			mk.Tooltip = make(map[string]any, len(cols.Tooltip))
			for _, c := range cols.Tooltip {
				mk.Tooltip[c] = f.Value(r, c)
			}
		}
		m.Markers = append(m.Markers, mk)
	}
	return m
}

// SeriesOptions describes a time series panel.
type SeriesOptions struct {
	Title  string
	T      string
	Y      string
	YLabel string
	Mark   Mark
	Rules  []Rule
}

func SeriesFrom(f *models.Frame, opts SeriesOptions) Panel {
	if f.Empty() {
		return Empty("")
	}
	s := TimeSeries{
		Kind:   KindSeries,
		Title:  opts.Title,
		YLabel: label(opts.YLabel, opts.Y),
		Mark:   opts.Mark,
		Points: make([]Point, 0, f.Len()),
		Rules:  opts.Rules,
	}
	if s.Mark == "" {
		s.Mark = MarkLine
	}
	for r := 0; r < f.Len(); r++ {
		s.Points = append(s.Points, Point{T: f.Time(r, opts.T), V: f.Float(r, opts.Y)})
	}
	return s
}

// ScatterOptions describes an x/y scatter panel.
type ScatterOptions struct {
	Title  string
	X      string
	Y      string
	XLabel string
	YLabel string
	Size   string
	Group  string
	Label  string
	Trend  []XY
}

func ScatterFrom(f *models.Frame, opts ScatterOptions) Panel {
	if f.Empty() {
		return Empty("")
	}
	s := Scatter{
		Kind:   KindScatter,
		Title:  opts.Title,
		XLabel: label(opts.XLabel, opts.X),
		YLabel: label(opts.YLabel, opts.Y),
		Points: make([]XY, 0, f.Len()),
		Trend:  opts.Trend,
	}
	for r := 0; r < f.Len(); r++ {
		x, okX := models.ToFloat(f.Value(r, opts.X))
		y, okY := models.ToFloat(f.Value(r, opts.Y))
		if !okX || !okY {
			continue
		}
		p := XY{X: x, Y: y}
		if opts.Size != "" {
			p.Size = f.Float(r, opts.Size)
		}
		if opts.Group != "" {
			p.Group = f.String(r, opts.Group)
		}
		if opts.Label != "" {
			p.Label = f.String(r, opts.Label)
		}
		s.Points = append(s.Points, p)
	}
	return s
}

// Column is a table column and its display label.
type Column struct {
	Name  string
	Label string
}

// TableFrom projects cols out of f. With no cols every column is shown.
func TableFrom(f *models.Frame, title, emptyText string, cols ...Column) Panel {
	if f.Empty() {
		return Empty(emptyText)
	}
	if len(cols) == 0 {
		for _, c := range f.Columns {
			cols = append(cols, Column{Name: c})
		}
	}
	t := Table{Kind: KindTable, Title: title, Rows: make([][]any, 0, f.Len())}
	for _, c := range cols {
		t.Columns = append(t.Columns, label(c.Label, c.Name))
	}
	for r := 0; r < f.Len(); r++ {
		row := make([]any, len(cols))
		for i, c := range cols {
			row[i] = f.Value(r, c.Name)
		}
		t.Rows = append(t.Rows, row)
	}
	return t
}

func label(l, fallback string) string {
	if l != "" {
		return l
	}
	return fallback
}
