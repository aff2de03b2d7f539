// Package canvas composes the diagram store, the viewport transform, the
// gesture state machines and the router into a drawable scene.
//
// [Build] turns a model into a [Scene]: card rectangles plus routed
// relationships. A [Controller] owns one interactive canvas, translating
// pointer, wheel and button events into store mutations and transform
// changes. Renderers in pkg/render consume scenes and never look at the store.
package canvas

import (
	"github.com/matzehuels/ercanvas/pkg/diagram"
	"github.com/matzehuels/ercanvas/pkg/geometry"
	"github.com/matzehuels/ercanvas/pkg/route"
	"github.com/matzehuels/ercanvas/pkg/viewport"
)

// Card is one entity placed on the canvas.
type Card struct {
	Entity     diagram.Entity `json:"entity"`
	Rect       geometry.Rect  `json:"rect"`
	Header     geometry.Rect  `json:"header"`
	Selected   bool           `json:"selected,omitempty"`
	LinkSource bool           `json:"linkSource,omitempty"`
}

// Scene is everything a renderer needs to draw one frame.
type Scene struct {
	CaseStudy  string             `json:"caseStudy,omitempty"`
	Transform  viewport.Transform `json:"transform"`
	Size       viewport.Size      `json:"size"`
	Metrics    geometry.Metrics   `json:"metrics"`
	Cards      []Card             `json:"cards"`
	Links      []route.Route      `json:"links"`
	ExportMode bool               `json:"exportMode"`
	Selected   string             `json:"selected,omitempty"`
	LinkSource string             `json:"linkSource,omitempty"`
	SnapToGrid bool               `json:"snapToGrid"`
}

// Build lays out m. The result has an identity transform and no selection.
// In export mode cards omit the add-attribute form.
func Build(m diagram.Model, metrics geometry.Metrics, exportMode bool) Scene {
	metrics = metrics.WithDefaults()
	cards := make([]Card, len(m.Entities))
	for i, e := range m.Entities {
		cards[i] = Card{
			Entity: e,
			Rect:   metrics.CardRect(e, exportMode),
			Header: metrics.HeaderRect(e),
		}
	}
	return Scene{
		CaseStudy:  m.CaseStudy,
		Transform:  viewport.Identity(),
		Metrics:    metrics,
		Cards:      cards,
		Links:      route.NewRouter(metrics).RouteAll(m, exportMode),
		ExportMode: exportMode,
	}
}

// Bounds returns the world-space box covering every card and relationship,
// labels included. ok is false for an empty scene.
func (s Scene) Bounds() (r geometry.Rect, ok bool) {
	for _, c := range s.Cards {
		if !ok {
			r, ok = c.Rect, true
			continue
		}
		r = r.Union(c.Rect)
	}
	for _, l := range s.Links {
		if !ok {
			r, ok = l.Bounds(), true
			continue
		}
		r = r.Union(l.Bounds())
	}
	return r, ok
}

// Card returns the card of entityID.
func (s Scene) Card(entityID string) (Card, bool) {
	for _, c := range s.Cards {
		if c.Entity.ID == entityID {
			return c, true
		}
	}
	return Card{}, false
}
