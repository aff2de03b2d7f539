package canvas

import (
	"slices"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/ercanvas/pkg/diagram"
	"github.com/matzehuels/ercanvas/pkg/errors"
	"github.com/matzehuels/ercanvas/pkg/geometry"
	"github.com/matzehuels/ercanvas/pkg/interact"
	"github.com/matzehuels/ercanvas/pkg/route"
	"github.com/matzehuels/ercanvas/pkg/store"
	"github.com/matzehuels/ercanvas/pkg/viewport"
)

// Button identifies a pointer button.
type Button int

const (
	ButtonPrimary Button = iota
	ButtonMiddle
	ButtonSecondary
)

// HitKind classifies what lies under a pointer.
type HitKind int

const (
	HitEmpty HitKind = iota
	HitHeader
	HitBody
)

func (k HitKind) String() string {
	switch k {
	case HitHeader:
		return "header"
	case HitBody:
		return "body"
	default:
		return "empty"
	}
}

// Hit is the result of a hit test.
type Hit struct {
	Kind     HitKind
	EntityID string
}

// ControllerOption configures a [Controller].
type ControllerOption func(*Controller)

// WithMetrics overrides the layout constants.
func WithMetrics(m geometry.Metrics) ControllerOption {
	return func(c *Controller) { c.metrics = m.WithDefaults() }
}

// WithGrid overrides the default grid.
func WithGrid(g interact.Grid) ControllerOption {
	return func(c *Controller) { c.grid = g }
}

// WithSize sets the initial viewport size.
func WithSize(s viewport.Size) ControllerOption {
	return func(c *Controller) { c.size = s }
}

// WithTransform sets the initial transform.
func WithTransform(t viewport.Transform) ControllerOption {
	return func(c *Controller) { c.transform = t }
}

// WithLogger sets the logger used for gesture diagnostics.
func WithLogger(l *log.Logger) ControllerOption {
	return func(c *Controller) { c.logger = l }
}

// Controller drives one interactive canvas. It is not safe for concurrent
// use: one UI loop owns it. The store it wraps may be shared.
type Controller struct {
	store     *store.Store
	metrics   geometry.Metrics
	transform viewport.Transform
	size      viewport.Size
	grid      interact.Grid
	selected  string

	drag   interact.Drag
	pan    interact.Pan
	linker interact.Linker
	logger *log.Logger
}

// NewController returns a controller over s with an identity transform and
// snapping on.
func NewController(s *store.Store, opts ...ControllerOption) *Controller {
	c := &Controller{
		store:     s,
		metrics:   geometry.DefaultMetrics(),
		transform: viewport.Identity(),
		grid:      interact.DefaultGrid(),
		logger:    log.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Store returns the underlying store.
func (c *Controller) Store() *store.Store { return c.store }

// Transform returns the current transform.
func (c *Controller) Transform() viewport.Transform { return c.transform }

// SetTransform replaces the transform, clamping the scale.
func (c *Controller) SetTransform(t viewport.Transform) {
	t.K = viewport.Clamp(t.K)
	c.transform = t
}

// Size returns the viewport size.
func (c *Controller) Size() viewport.Size { return c.size }

// Resize sets the viewport size.
func (c *Controller) Resize(s viewport.Size) { c.size = s }

// Grid returns the snap grid.
func (c *Controller) Grid() interact.Grid { return c.grid }

// ToggleSnap flips grid snapping and returns the new state.
func (c *Controller) ToggleSnap() bool {
	c.grid.Enabled = !c.grid.Enabled
	return c.grid.Enabled
}

// Selected returns the selected entity id, or "".
func (c *Controller) Selected() string { return c.selected }

// Select makes entityID the selection. An empty id clears it.
func (c *Controller) Select(entityID string) { c.selected = entityID }

// Linking reports whether the canvas awaits a link target, and its source.
func (c *Controller) Linking() (source string, ok bool) {
	return c.linker.Source(), c.linker.Active()
}

// Dragging returns the entity being dragged, or "".
func (c *Controller) Dragging() string { return c.drag.EntityID() }

// Panning reports whether a pan gesture is active.
func (c *Controller) Panning() bool { return c.pan.Active() }

// =============================================================================
// Pointer and wheel
// =============================================================================

// HitTest reports what lies under the screen point p. Later cards are drawn
// on top and win.
func (c *Controller) HitTest(p diagram.Point) Hit {
	w := c.transform.ScreenToWorld(p)
	ents := c.store.Model().Entities
	for i := len(ents) - 1; i >= 0; i-- {
		e := ents[i]
		if !c.metrics.CardRect(e, false).Contains(w) {
			continue
		}
		if c.metrics.HeaderRect(e).Contains(w) {
			return Hit{Kind: HitHeader, EntityID: e.ID}
		}
		return Hit{Kind: HitBody, EntityID: e.ID}
	}
	return Hit{Kind: HitEmpty}
}

// PointerDown starts a gesture. Only the primary button acts. While linking,
// a press on any card is a click on it. Otherwise a press on a header selects
// the entity and starts a drag, a press on a body selects it, and a press on
// empty canvas starts a pan.
func (c *Controller) PointerDown(p diagram.Point, b Button) (*diagram.Relationship, error) {
	if b != ButtonPrimary {
		return nil, nil
	}
	hit := c.HitTest(p)
	if hit.Kind != HitEmpty && c.linker.Active() {
		return c.Click(hit.EntityID)
	}
	switch hit.Kind {
	case HitHeader:
		e, err := c.store.Entity(hit.EntityID)
		if err != nil {
			return nil, err
		}
		c.selected = e.ID
		c.pan.End()
		c.drag.Begin(e.ID, p, e.Position, c.transform)
		c.logger.Debug("drag start", "entity", e.ID, "offset", c.drag.Offset())
	case HitBody:
		c.selected = hit.EntityID
	default:
		c.drag.End()
		c.pan.Begin(p, c.transform)
	}
	return nil, nil
}

// PointerMove advances the active gesture, if any.
func (c *Controller) PointerMove(p diagram.Point) error {
	if id, pos, ok := c.drag.Move(p, c.transform, c.grid); ok {
		if _, err := c.store.MoveEntity(id, pos); err != nil {
			// The dragged entity vanished underneath the gesture.
			c.drag.End()
			return err
		}
		return nil
	}
	if t, ok := c.pan.Move(p, c.transform); ok {
		c.transform = t
	}
	return nil
}

// PointerUp ends any gesture, wherever the pointer is.
func (c *Controller) PointerUp(diagram.Point) {
	if c.drag.Active() {
		c.logger.Debug("drag end", "entity", c.drag.EntityID())
	}
	c.drag.End()
	c.pan.End()
}

// Wheel handles a scroll. With the zoom modifier held it zooms toward p;
// otherwise it pans, except while linking.
func (c *Controller) Wheel(p diagram.Point, dx, dy float64, zoomModifier bool) {
	switch {
	case zoomModifier:
		c.transform = c.transform.WheelZoom(p, dy)
	case !c.linker.Active():
		c.transform = c.transform.Pan(-dx, -dy)
	}
}

// ZoomIn zooms one button step toward the viewport centre.
func (c *Controller) ZoomIn() {
	c.transform = c.transform.ZoomCentered(c.size, viewport.ButtonZoomStep)
}

// ZoomOut zooms one button step away from the viewport centre.
func (c *Controller) ZoomOut() {
	c.transform = c.transform.ZoomCentered(c.size, -viewport.ButtonZoomStep)
}

// Fit frames every card in the viewport.
func (c *Controller) Fit() {
	c.transform = viewport.FitToContent(c.store.Model().Entities, c.metrics, c.size, false)
}

// =============================================================================
// Entities and links
// =============================================================================

// AddEntity creates an entity at the spawn point of the current view and
// selects it.
func (c *Controller) AddEntity(name string, attributeNames []string) (diagram.Entity, error) {
	pos := c.grid.Snap(c.transform.SpawnPoint(c.size))
	e, err := c.store.AddEntity(name, attributeNames, pos)
	if err != nil {
		return diagram.Entity{}, err
	}
	c.selected = e.ID
	return e, nil
}

// Click handles a click on entityID. While linking it completes the link
// unless entityID is the source; otherwise it selects the entity. The new
// relationship is returned when one was created.
func (c *Controller) Click(entityID string) (*diagram.Relationship, error) {
	if !c.linker.Active() {
		c.selected = entityID
		return nil, nil
	}
	from, to, done := c.linker.Select(entityID)
	if !done {
		return nil, nil
	}
	r, err := c.store.AddRelationship(from, to)
	if err != nil {
		return nil, err
	}
	c.logger.Debug("link created", "id", r.ID, "from", from, "to", to)
	return &r, nil
}

// StartLink enters linking mode with entityID as the source.
func (c *Controller) StartLink(entityID string) error {
	if _, err := c.store.Entity(entityID); err != nil {
		return err
	}
	c.linker.Start(entityID)
	return nil
}

// LinkSelf creates a self-relationship on entityID. Clicking the source while
// linking is a no-op, so self-relationships need their own entry point.
func (c *Controller) LinkSelf(entityID string) (diagram.Relationship, error) {
	c.linker.Cancel()
	return c.store.AddRelationship(entityID, entityID)
}

// CancelLink leaves linking mode.
func (c *Controller) CancelLink() { c.linker.Cancel() }

// DeleteEntity removes entityID and its relationships. Linking mode ends
// when entityID was the source.
func (c *Controller) DeleteEntity(entityID string) ([]string, error) {
	removed, err := c.store.DeleteEntity(entityID)
	if err != nil {
		return nil, err
	}
	if c.linker.SourceDeleted(entityID) {
		c.logger.Debug("link cancelled: source deleted", "entity", entityID)
	}
	if c.selected == entityID {
		c.selected = ""
	}
	if c.drag.EntityID() == entityID {
		c.drag.End()
	}
	return removed, nil
}

// DeleteSelected deletes the selected entity.
func (c *Controller) DeleteSelected() ([]string, error) {
	if c.selected == "" {
		return nil, errors.New(errors.ErrCodeInvalidInput, "no entity selected")
	}
	return c.DeleteEntity(c.selected)
}

// =============================================================================
// Scene
// =============================================================================

// Scene builds the current frame. In export mode the transform is identity
// and selection and linking highlights are dropped.
func (c *Controller) Scene(exportMode bool) Scene {
	s := Build(c.store.Model(), c.metrics, exportMode)
	s.Size = c.size
	s.SnapToGrid = c.grid.Enabled
	if exportMode {
		return s
	}
	s.Transform = c.transform
	s.Selected = c.selected
	s.LinkSource = c.linker.Source()
	for i := range s.Cards {
		id := s.Cards[i].Entity.ID
		s.Cards[i].Selected = id == c.selected
		s.Cards[i].LinkSource = id == s.LinkSource
	}
	return s
}

// Routes returns the current relationship routes.
func (c *Controller) Routes(exportMode bool) []route.Route {
	return route.NewRouter(c.metrics).RouteAll(c.store.Model(), exportMode)
}

// EntityIDs returns the ids of every entity in draw order.
func (c *Controller) EntityIDs() []string {
	ents := c.store.Model().Entities
	ids := make([]string, len(ents))
	for i, e := range ents {
		ids[i] = e.ID
	}
	return ids
}

// SelectNext moves the selection by step through the draw order, wrapping.
func (c *Controller) SelectNext(step int) string {
	ids := c.EntityIDs()
	if len(ids) == 0 {
		c.selected = ""
		return ""
	}
	i := slices.Index(ids, c.selected)
	if i < 0 {
		i = 0
		if step < 0 {
			i = len(ids) - 1
		}
	} else {
		i = ((i+step)%len(ids) + len(ids)) % len(ids)
	}
	c.selected = ids[i]
	return c.selected
}
