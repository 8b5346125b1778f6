package render

import (
	"slices"
	"time"
)

// Kind discriminates panels in their JSON encoding.
type Kind string

const (
	KindMetric  Kind = "metric"
	KindBar     Kind = "bar"
	KindMap     Kind = "map"
	KindSeries  Kind = "series"
	KindScatter Kind = "scatter"
	KindTable   Kind = "table"
	KindNotice  Kind = "notice"
)

// Panel is one renderable unit of a screen.
type Panel interface {
	PanelKind() Kind
}

// DeltaColor is the coloring policy of a metric delta.
type DeltaColor string

const (
	DeltaNormal  DeltaColor = "normal"
	DeltaInverse DeltaColor = "inverse"
	DeltaOff     DeltaColor = "off"
)

type Metric struct {
	Kind       Kind       `json:"kind"`
	Label      string     `json:"label"`
	Value      string     `json:"value"`
	Delta      string     `json:"delta,omitempty"`
	DeltaColor DeltaColor `json:"delta_color,omitempty"`
	Help       string     `json:"help,omitempty"`
}

func (Metric) PanelKind() Kind { return KindMetric }

type Bar struct {
	Category string         `json:"category"`
	Value    float64        `json:"value"`
	Shade    float64        `json:"shade,omitempty"`
	Color    string         `json:"color,omitempty"`
	Text     string         `json:"text,omitempty"`
	Hover    map[string]any `json:"hover,omitempty"`
}

type BarChart struct {
	Kind       Kind   `json:"kind"`
	Title      string `json:"title"`
	XLabel     string `json:"x_label"`
	YLabel     string `json:"y_label"`
	Horizontal bool   `json:"horizontal,omitempty"`
	Bars       []Bar  `json:"bars"`
}

func (BarChart) PanelKind() Kind { return KindBar }

// RGBA is a marker fill color with alpha.
type RGBA [4]uint8

type Marker struct {
	ID      string         `json:"id"`
	Lat     float64        `json:"lat"`
	Lon     float64        `json:"lon"`
	Color   RGBA           `json:"color"`
	Radius  int            `json:"radius"`
	Tooltip map[string]any `json:"tooltip,omitempty"`
}

type ScatterMap struct {
	Kind      Kind     `json:"kind"`
	CenterLat float64  `json:"center_lat"`
	CenterLon float64  `json:"center_lon"`
	Zoom      float64  `json:"zoom"`
	Pitch     float64  `json:"pitch"`
	Markers   []Marker `json:"markers"`
}

func (ScatterMap) PanelKind() Kind { return KindMap }

// Mark is the drawing style of a time series.
type Mark string

const (
	MarkLine Mark = "line"
	MarkBar  Mark = "bar"
)

type Point struct {
	T time.Time `json:"t"`
	V float64   `json:"v"`
}

// Rule is a fixed horizontal threshold line.
type Rule struct {
	Label string  `json:"label"`
	Value float64 `json:"value"`
	Color string  `json:"color"`
}

type TimeSeries struct {
	Kind   Kind    `json:"kind"`
	Title  string  `json:"title"`
	YLabel string  `json:"y_label"`
	Mark   Mark    `json:"mark"`
	Points []Point `json:"points"`
	Rules  []Rule  `json:"rules,omitempty"`
}

func (TimeSeries) PanelKind() Kind { return KindSeries }

type XY struct {
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Size  float64 `json:"size,omitempty"`
	Group string  `json:"group,omitempty"`
	Label string  `json:"label,omitempty"`
}

type Scatter struct {
	Kind   Kind   `json:"kind"`
	Title  string `json:"title"`
	XLabel string `json:"x_label"`
	YLabel string `json:"y_label"`
	Points []XY   `json:"points"`
	Trend  []XY   `json:"trend,omitempty"`
}

func (Scatter) PanelKind() Kind { return KindScatter }

type Table struct {
	Kind    Kind     `json:"kind"`
	Title   string   `json:"title,omitempty"`
	Columns []string `json:"columns"`
	Rows    [][]any  `json:"rows"`
	// Gradient is the entry of Columns shaded from low to high
	Gradient string `json:"gradient,omitempty"`
}

func (Table) PanelKind() Kind { return KindTable }

// WithGradient shades the table column headed header. Other panels, and
// headers the table does not show, are returned unchanged.
func WithGradient(p Panel, header string) Panel {
	t, ok := p.(Table)
	if !ok || !slices.Contains(t.Columns, header) {
		return p
	}
	t.Gradient = header
	return t
}

// Level is the severity of a notice.
type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Notice is an explicit message shown in place of, or next to, a panel.
type Notice struct {
	Kind  Kind   `json:"kind"`
	Level Level  `json:"level"`
	Text  string `json:"text"`
}

func (Notice) PanelKind() Kind { return KindNotice }

func NewNotice(level Level, text string) Notice {
	return Notice{Kind: KindNotice, Level: level, Text: text}
}

// EmptyState is the default message for a query that returned no rows.
const EmptyState = "No data available for the current selection."

func Empty(text string) Notice {
	if text == "" {
		text = EmptyState
	}
	return NewNotice(LevelInfo, text)
}

// IsEmptyState reports whether p is a notice rather than data.
func IsEmptyState(p Panel) bool {
	_, ok := p.(Notice)
	return ok
}
