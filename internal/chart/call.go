package chart

// RenderCall is a fully resolved chart: every column exists in the table and
// every measurement is within bounds. The concrete types are TableCall,
// FrameCall, XYCall, Scatter3DCall and PieCall.
type RenderCall interface {
	// Kind is the chart kind that produced the call.
	Kind() Kind
	// CallType names the variant ("table", "frame", "xy", "scatter3d", "pie").
	CallType() string
}

// TableCall shows the first Rows rows of the table.
type TableCall struct {
	Rows int `json:"rows"`
	// Degraded is set when the default view was too large and fell back to a table.
	Degraded bool `json:"degraded,omitempty"`
}

func (TableCall) Kind() Kind       { return KindTable }
func (TableCall) CallType() string { return "table" }

// FrameCall shows the whole table.
type FrameCall struct{}

func (FrameCall) Kind() Kind       { return KindDefault }
func (FrameCall) CallType() string { return "frame" }

// XYCall is a two-axis bar, line or scatter chart.
type XYCall struct {
	Chart  Kind   `json:"chart"`
	X      string `json:"x"`
	Y      string `json:"y"`
	Color  string `json:"color,omitempty"`
	Title  string `json:"title"`
	Height int    `json:"height"`
	Width  int    `json:"width"`
}

func (c XYCall) Kind() Kind     { return c.Chart }
func (XYCall) CallType() string { return "xy" }

// Scatter3DCall is the three-axis form of bar, line and scatter charts.
type Scatter3DCall struct {
	Source Kind   `json:"source"`
	X      string `json:"x"`
	Y      string `json:"y"`
	Z      string `json:"z"`
	Color  string `json:"color,omitempty"`
	Title  string `json:"title"`
	Height int    `json:"height"`
	Width  int    `json:"width"`
}

func (c Scatter3DCall) Kind() Kind     { return c.Source }
func (Scatter3DCall) CallType() string { return "scatter3d" }

// PieCall slices the Values column by the categories of the Names column.
type PieCall struct {
	Names  string `json:"names"`
	Values string `json:"values"`
	Title  string `json:"title"`
	Height int    `json:"height"`
	Width  int    `json:"width"`
}

func (PieCall) Kind() Kind       { return KindPie }
func (PieCall) CallType() string { return "pie" }
