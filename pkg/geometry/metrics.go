package geometry

import "github.com/matzehuels/ercanvas/pkg/diagram"

// Metrics holds the layout constants of a card and of relationship routing.
// All values are in world units.
type Metrics struct {
	CardWidth       float64 `toml:"card_width" json:"cardWidth"`
	HeaderHeight    float64 `toml:"header_height" json:"headerHeight"`
	PaddingV        float64 `toml:"padding_v" json:"paddingV"`
	RowHeight       float64 `toml:"row_height" json:"rowHeight"`
	RowGap          float64 `toml:"row_gap" json:"rowGap"`
	MinListHeight   float64 `toml:"min_list_height" json:"minListHeight"`
	BorderWidth     float64 `toml:"border_width" json:"borderWidth"`
	FormBlockHeight float64 `toml:"form_block_height" json:"formBlockHeight"`

	FaceBias          float64 `toml:"face_bias" json:"faceBias"`
	FanSpacing        float64 `toml:"fan_spacing" json:"fanSpacing"`
	CrowfootClearance float64 `toml:"crowfoot_clearance" json:"crowfootClearance"`
	Curvature         float64 `toml:"curvature" json:"curvature"`

	SelfLoopReach  float64 `toml:"self_loop_reach" json:"selfLoopReach"`
	SelfLoopRise   float64 `toml:"self_loop_rise" json:"selfLoopRise"`
	SelfLabelRise  float64 `toml:"self_label_rise" json:"selfLabelRise"`
	SelfAnchorDrop float64 `toml:"self_anchor_drop" json:"selfAnchorDrop"`
}

// Default layout constants.
const (
	DefaultCardWidth       = 256
	DefaultHeaderHeight    = 37
	DefaultPaddingV        = 12
	DefaultRowHeight       = 27
	DefaultRowGap          = 6
	DefaultMinListHeight   = 40
	DefaultBorderWidth     = 2
	DefaultFormBlockHeight = 12 + 12 + 1 + 32 // margin, padding, divider, input

	DefaultFaceBias          = 1.1
	DefaultFanSpacing        = 20
	DefaultCrowfootClearance = 15
	DefaultCurvature         = 60

	DefaultSelfLoopReach  = 80
	DefaultSelfLoopRise   = 120
	DefaultSelfLabelRise  = 50
	DefaultSelfAnchorDrop = 20
)

// DefaultMetrics returns the standard card and routing constants.
func DefaultMetrics() Metrics {
	return Metrics{
		CardWidth:         DefaultCardWidth,
		HeaderHeight:      DefaultHeaderHeight,
		PaddingV:          DefaultPaddingV,
		RowHeight:         DefaultRowHeight,
		RowGap:            DefaultRowGap,
		MinListHeight:     DefaultMinListHeight,
		BorderWidth:       DefaultBorderWidth,
		FormBlockHeight:   DefaultFormBlockHeight,
		FaceBias:          DefaultFaceBias,
		FanSpacing:        DefaultFanSpacing,
		CrowfootClearance: DefaultCrowfootClearance,
		Curvature:         DefaultCurvature,
		SelfLoopReach:     DefaultSelfLoopReach,
		SelfLoopRise:      DefaultSelfLoopRise,
		SelfLabelRise:     DefaultSelfLabelRise,
		SelfAnchorDrop:    DefaultSelfAnchorDrop,
	}
}

// WithDefaults returns m with every non-positive field replaced by its default.
func (m Metrics) WithDefaults() Metrics {
	d := DefaultMetrics()
	fill := func(v *float64, def float64) {
		if *v <= 0 {
			*v = def
		}
	}
	fill(&m.CardWidth, d.CardWidth)
	fill(&m.HeaderHeight, d.HeaderHeight)
	fill(&m.PaddingV, d.PaddingV)
	fill(&m.RowHeight, d.RowHeight)
	fill(&m.RowGap, d.RowGap)
	fill(&m.MinListHeight, d.MinListHeight)
	fill(&m.BorderWidth, d.BorderWidth)
	fill(&m.FormBlockHeight, d.FormBlockHeight)
	fill(&m.FaceBias, d.FaceBias)
	fill(&m.FanSpacing, d.FanSpacing)
	fill(&m.CrowfootClearance, d.CrowfootClearance)
	fill(&m.Curvature, d.Curvature)
	fill(&m.SelfLoopReach, d.SelfLoopReach)
	fill(&m.SelfLoopRise, d.SelfLoopRise)
	fill(&m.SelfLabelRise, d.SelfLabelRise)
	fill(&m.SelfAnchorDrop, d.SelfAnchorDrop)
	return m
}

// ListHeight returns the height of an attribute list with n rows, before the
// minimum-height floor is applied.
func (m Metrics) ListHeight(n int) float64 {
	if n <= 0 {
		return 0
	}
	return m.RowHeight*float64(n) + m.RowGap*float64(n-1)
}

// CardHeight returns the rendered height of e. Export mode omits the
// add-attribute form block.
func (m Metrics) CardHeight(e diagram.Entity, exportMode bool) float64 {
	borders := 2 * m.BorderWidth
	if e.Collapsed {
		return m.HeaderHeight + borders
	}
	h := borders + m.HeaderHeight + m.PaddingV + max(m.MinListHeight, m.ListHeight(len(e.Attributes))) + m.PaddingV
	if !exportMode {
		h += m.FormBlockHeight
	}
	return h
}

// CardRect returns the world-space rectangle occupied by e.
func (m Metrics) CardRect(e diagram.Entity, exportMode bool) Rect {
	return Rect{
		Left:   e.Position.X,
		Top:    e.Position.Y,
		Right:  e.Position.X + m.CardWidth,
		Bottom: e.Position.Y + m.CardHeight(e, exportMode),
	}
}

// Center returns the centre of e's card.
func (m Metrics) Center(e diagram.Entity, exportMode bool) diagram.Point {
	return m.CardRect(e, exportMode).Center()
}

// HeaderRect returns the rectangle of e's header strip, the drag handle.
func (m Metrics) HeaderRect(e diagram.Entity) Rect {
	return Rect{
		Left:   e.Position.X,
		Top:    e.Position.Y,
		Right:  e.Position.X + m.CardWidth,
		Bottom: e.Position.Y + m.HeaderHeight + 2*m.BorderWidth,
	}
}

// AttributeRowTop returns the y offset, relative to the card top, of the
// attribute row at index i.
func (m Metrics) AttributeRowTop(i int) float64 {
	return m.BorderWidth + m.HeaderHeight + m.PaddingV + float64(i)*(m.RowHeight+m.RowGap)
}

// ContentBounds returns the union of every card rectangle. The second value
// is false when entities is empty.
func (m Metrics) ContentBounds(entities []diagram.Entity, exportMode bool) (Rect, bool) {
	if len(entities) == 0 {
		return Rect{}, false
	}
	r := m.CardRect(entities[0], exportMode)
	for _, e := range entities[1:] {
		r = r.Union(m.CardRect(e, exportMode))
	}
	return r, true
}
