package cli

import (
	"fmt"
	"math"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/matzehuels/ercanvas/pkg/canvas"
	"github.com/matzehuels/ercanvas/pkg/diagram"
	"github.com/matzehuels/ercanvas/pkg/errors"
	pkgio "github.com/matzehuels/ercanvas/pkg/io"
	"github.com/matzehuels/ercanvas/pkg/store"
	"github.com/matzehuels/ercanvas/pkg/viewport"
)

// One terminal cell covers this many screen units, so world coordinates
// keep the proportions the browser canvas uses.
const (
	cellWidth  = 8
	cellHeight = 16

	// rows taken by the title and help line above the canvas and the
	// status and prompt lines below it
	chromeTop    = 2
	chromeBottom = 2
)

// editCommand creates the "edit" command.
func (c *CLI) editCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "edit <model.json>",
		Short: "Edit a model on a terminal canvas",
		Long: `Edit a model on a terminal canvas.

The file is created when missing and written back on quit. Drag card
headers with the mouse to move them, drag the empty canvas to pan and
ctrl+scroll to zoom. Press ? for the keyboard commands.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.loadConfig()
			if err != nil {
				return err
			}
			path := args[0]
			m := diagram.Model{}
			if _, statErr := os.Stat(path); statErr == nil {
				if m, err = pkgio.ImportModel(path); err != nil {
					return err
				}
			}

			st := store.New(store.WithModel(m))
			ctrl := canvas.NewController(st,
				canvas.WithMetrics(cfg.Layout),
				canvas.WithGrid(cfg.Canvas.Grid),
				canvas.WithLogger(c.Logger),
			)
			ed := newEditorModel(ctrl, path)

			p := tea.NewProgram(ed, tea.WithAltScreen(), tea.WithMouseAllMotion(), tea.WithContext(cmd.Context()))
			final, err := p.Run()
			if err != nil {
				return err
			}
			if ed, ok := final.(*editorModel); ok && ed.dirty() {
				if err := ed.save(); err != nil {
					return err
				}
				printSuccess("Saved")
				printModelStats(ed.ctrl.Store().Model())
				printFile(path)
			}
			return nil
		},
	}
}

// =============================================================================
// editorModel - bubbletea canvas
// =============================================================================

// promptKind is the pending text prompt, if any.
type promptKind int

const (
	promptNone promptKind = iota
	promptEntity
	promptAttribute
	promptRename
	promptRelName
)

var promptLabels = map[promptKind]string{
	promptEntity:    "New entity (Name: attr, attr)",
	promptAttribute: "New attribute",
	promptRename:    "Rename entity",
	promptRelName:   "Relationship name",
}

// editorModel is the bubbletea model of the terminal canvas.
type editorModel struct {
	ctrl      *canvas.Controller
	path      string
	savedAt   uint64
	width     int
	height    int
	status    string
	statusErr bool
	help      bool

	prompt  promptKind
	input   []rune
	lastRel string
}

func newEditorModel(ctrl *canvas.Controller, path string) *editorModel {
	m := &editorModel{
		ctrl:    ctrl,
		path:    path,
		savedAt: ctrl.Store().Version(),
		width:   80,
		height:  24,
	}
	m.resize(m.width, m.height)
	return m
}

func (m *editorModel) dirty() bool { return m.ctrl.Store().Version() != m.savedAt }

func (m *editorModel) save() error {
	if err := pkgio.ExportModel(m.path, m.ctrl.Store().Model()); err != nil {
		return err
	}
	m.savedAt = m.ctrl.Store().Version()
	return nil
}

func (m *editorModel) resize(w, h int) {
	m.width, m.height = w, h
	rows := max(h-chromeTop-chromeBottom, 1)
	m.ctrl.Resize(viewport.Size{Width: float64(w * cellWidth), Height: float64(rows * cellHeight)})
}

// screenPoint converts a terminal cell to canvas screen units. ok is false
// outside the canvas area.
func (m *editorModel) screenPoint(x, y int) (diagram.Point, bool) {
	row := y - chromeTop
	if row < 0 || row >= m.height-chromeTop-chromeBottom {
		return diagram.Point{}, false
	}
	return diagram.Pt(float64(x*cellWidth)+cellWidth/2, float64(row*cellHeight)+cellHeight/2), true
}

func (m *editorModel) report(err error, format string, args ...any) {
	if err != nil {
		m.status, m.statusErr = errors.UserMessage(err), true
		return
	}
	m.status, m.statusErr = fmt.Sprintf(format, args...), false
}

func (m *editorModel) Init() tea.Cmd { return nil }

func (m *editorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
	case tea.MouseMsg:
		m.handleMouse(msg)
	case tea.KeyMsg:
		if m.prompt != promptNone {
			m.handlePromptKey(msg)
			return m, nil
		}
		return m, m.handleKey(msg)
	}
	return m, nil
}

func (m *editorModel) handleMouse(msg tea.MouseMsg) {
	p, ok := m.screenPoint(msg.X, msg.Y)
	if !ok {
		if msg.Action == tea.MouseActionRelease {
			m.ctrl.PointerUp(p)
		}
		return
	}
	switch {
	case msg.Button == tea.MouseButtonWheelUp:
		m.ctrl.Wheel(p, 0, -cellHeight*3, msg.Ctrl)
	case msg.Button == tea.MouseButtonWheelDown:
		m.ctrl.Wheel(p, 0, cellHeight*3, msg.Ctrl)
	case msg.Action == tea.MouseActionPress && msg.Button == tea.MouseButtonLeft:
		rel, err := m.ctrl.PointerDown(p, canvas.ButtonPrimary)
		if rel != nil {
			m.lastRel = rel.ID
		}
		m.report(err, "%s", m.describeLink(rel))
	case msg.Action == tea.MouseActionMotion:
		if err := m.ctrl.PointerMove(p); err != nil {
			m.report(err, "")
		}
	case msg.Action == tea.MouseActionRelease:
		m.ctrl.PointerUp(p)
	}
}

func (m *editorModel) describeLink(rel *diagram.Relationship) string {
	if rel == nil {
		if src, ok := m.ctrl.Linking(); ok {
			return "Linking from " + m.entityName(src) + ": select a target"
		}
		return ""
	}
	return fmt.Sprintf("Linked %s → %s (%s)", m.entityName(rel.FromID), m.entityName(rel.ToID), rel.Cardinality)
}

func (m *editorModel) entityName(id string) string {
	e, err := m.ctrl.Store().Entity(id)
	if err != nil {
		return id
	}
	return e.Name
}

// moveSelected nudges the selected card by one grid step per axis.
func (m *editorModel) moveSelected(dx, dy float64) {
	id := m.ctrl.Selected()
	e, err := m.ctrl.Store().Entity(id)
	if err != nil {
		return
	}
	g := m.ctrl.Grid()
	step := g.Size
	if step <= 0 {
		step = cellWidth
	}
	pos := g.Snap(diagram.Pt(e.Position.X+dx*step, e.Position.Y+dy*step))
	_, err = m.ctrl.Store().MoveEntity(id, pos)
	m.report(err, "%s at (%.0f, %.0f)", e.Name, pos.X, pos.Y)
}

func (m *editorModel) handleKey(msg tea.KeyMsg) tea.Cmd {
	st := m.ctrl.Store()
	sel := m.ctrl.Selected()
	switch msg.String() {
	case "q", "ctrl+c":
		return tea.Quit
	case "?":
		m.help = !m.help
	case "esc":
		m.ctrl.CancelLink()
		m.ctrl.Select("")
		m.report(nil, "")
	case "tab":
		m.ctrl.SelectNext(1)
	case "shift+tab":
		m.ctrl.SelectNext(-1)
	case "up":
		m.moveSelected(0, -1)
	case "down":
		m.moveSelected(0, 1)
	case "left":
		m.moveSelected(-1, 0)
	case "right":
		m.moveSelected(1, 0)
	case "h":
		m.ctrl.SetTransform(m.ctrl.Transform().Pan(cellWidth*4, 0))
	case "l":
		m.ctrl.SetTransform(m.ctrl.Transform().Pan(-cellWidth*4, 0))
	case "k":
		m.ctrl.SetTransform(m.ctrl.Transform().Pan(0, cellHeight*2))
	case "j":
		m.ctrl.SetTransform(m.ctrl.Transform().Pan(0, -cellHeight*2))
	case "+", "=":
		m.ctrl.ZoomIn()
	case "-":
		m.ctrl.ZoomOut()
	case "f":
		m.ctrl.Fit()
	case "g":
		on := m.ctrl.ToggleSnap()
		m.report(nil, "Snap to grid: %v", on)
	case "a":
		m.prompt = promptEntity
	case "n":
		if sel != "" {
			m.prompt = promptAttribute
		}
	case "r":
		if sel != "" {
			m.prompt = promptRename
			m.input = []rune(m.entityName(sel))
		}
	case "c":
		if sel != "" {
			e, err := st.ToggleCollapse(sel)
			m.report(err, "%s collapsed: %v", e.Name, e.Collapsed)
		}
	case "L":
		if sel != "" {
			err := m.ctrl.StartLink(sel)
			m.report(err, "%s", m.describeLink(nil))
		}
	case "S":
		if sel != "" {
			rel, err := m.ctrl.LinkSelf(sel)
			if err == nil {
				m.lastRel = rel.ID
			}
			m.report(err, "%s", m.describeLink(&rel))
		}
	case "enter":
		if sel != "" {
			rel, err := m.ctrl.Click(sel)
			if rel != nil {
				m.lastRel = rel.ID
			}
			m.report(err, "%s", m.describeLink(rel))
		}
	case "C":
		m.cycleCardinality()
	case "N":
		if m.lastRel != "" {
			m.prompt = promptRelName
		}
	case "x", "delete":
		removed, err := m.ctrl.DeleteSelected()
		m.report(err, "Deleted entity and %d relationship(s)", len(removed))
	case "w":
		err := m.save()
		m.report(err, "Saved %s", m.path)
	}
	return nil
}

// cycleCardinality advances the last created relationship through
// 1:1, 1:N, N:1, N:N.
func (m *editorModel) cycleCardinality() {
	if m.lastRel == "" {
		return
	}
	var cur diagram.Cardinality
	for _, r := range m.ctrl.Store().Model().Relationships {
		if r.ID == m.lastRel {
			cur = r.Cardinality
		}
	}
	all := diagram.Cardinalities()
	next := all[0]
	for i, c := range all {
		if c == cur {
			next = all[(i+1)%len(all)]
		}
	}
	_, err := m.ctrl.Store().UpdateRelationship(m.lastRel, store.RelationshipPatch{Cardinality: &next})
	if err != nil {
		m.lastRel = ""
	}
	m.report(err, "Cardinality %s", next)
}

func (m *editorModel) handlePromptKey(msg tea.KeyMsg) {
	switch msg.Type {
	case tea.KeyEsc, tea.KeyCtrlC:
		m.prompt, m.input = promptNone, nil
	case tea.KeyBackspace:
		if len(m.input) > 0 {
			m.input = m.input[:len(m.input)-1]
		}
	case tea.KeyEnter:
		m.commitPrompt(strings.TrimSpace(string(m.input)))
		m.prompt, m.input = promptNone, nil
	case tea.KeySpace:
		m.input = append(m.input, ' ')
	case tea.KeyRunes:
		m.input = append(m.input, msg.Runes...)
	}
}

func (m *editorModel) commitPrompt(text string) {
	st := m.ctrl.Store()
	sel := m.ctrl.Selected()
	switch m.prompt {
	case promptEntity:
		name, attrs := parseEntitySpec(text)
		e, err := m.ctrl.AddEntity(name, attrs)
		m.report(err, "Added %s", e.Name)
	case promptAttribute:
		_, err := st.AddAttribute(sel, text)
		m.report(err, "Added attribute %s", diagram.NormalizeAttributeName(text))
	case promptRename:
		e, err := st.RenameEntity(sel, text)
		m.report(err, "Renamed to %s", e.Name)
	case promptRelName:
		_, err := st.UpdateRelationship(m.lastRel, store.RelationshipPatch{Name: &text})
		m.report(err, "Relationship named %q", text)
	}
}

// parseEntitySpec splits "Name: a, b" into a name and attribute names.
func parseEntitySpec(s string) (string, []string) {
	name, rest, found := strings.Cut(s, ":")
	if !found {
		return strings.TrimSpace(s), nil
	}
	var attrs []string
	for _, a := range strings.Split(rest, ",") {
		if a = strings.TrimSpace(a); a != "" {
			attrs = append(attrs, a)
		}
	}
	return strings.TrimSpace(name), attrs
}

// =============================================================================
// View
// =============================================================================

var (
	editorTitleStyle = StyleTitle
	editorHelpStyle  = StyleDim
	editorErrStyle   = lipgloss.NewStyle().Foreground(colorRed)
	editorPrompt     = lipgloss.NewStyle().Foreground(colorYellow).Bold(true)
)

const editorHelp = "tab select · arrows move · hjkl pan · +/- zoom · f fit · a add · n attr · r rename · c collapse · L link · S self · C card · N name · x delete · w save · q quit"

func (m *editorModel) View() string {
	var b strings.Builder
	title := editorTitleStyle.Render("ercanvas") + " " + StyleDim.Render(m.path)
	if m.dirty() {
		title += StyleWarning.Render(" •")
	}
	b.WriteString(title + "\n")
	if m.help {
		b.WriteString(editorHelpStyle.Render(editorHelp) + "\n")
	} else {
		b.WriteString(editorHelpStyle.Render("? help") + "\n")
	}

	rows := max(m.height-chromeTop-chromeBottom, 1)
	grid := newCellGrid(m.width, rows)
	grid.draw(m.ctrl.Scene(false), m.ctrl.Transform())
	b.WriteString(grid.String())

	b.WriteString(m.statusLine() + "\n")
	if m.prompt != promptNone {
		b.WriteString(editorPrompt.Render(promptLabels[m.prompt]+": ") + string(m.input) + "▏")
	} else if m.statusErr {
		b.WriteString(editorErrStyle.Render(m.status))
	} else {
		b.WriteString(m.status)
	}
	return b.String()
}

func (m *editorModel) statusLine() string {
	t := m.ctrl.Transform()
	model := m.ctrl.Store().Model()
	parts := []string{
		fmt.Sprintf("%d entities", len(model.Entities)),
		fmt.Sprintf("%d relationships", len(model.Relationships)),
		fmt.Sprintf("zoom %d%%", int(math.Round(t.K*100))),
	}
	if m.ctrl.Grid().Enabled {
		parts = append(parts, "snap")
	}
	if sel := m.ctrl.Selected(); sel != "" {
		parts = append(parts, "selected "+m.entityName(sel))
	}
	if src, ok := m.ctrl.Linking(); ok {
		parts = append(parts, "linking from "+m.entityName(src))
	}
	return StyleDim.Render(strings.Join(parts, " · "))
}

// =============================================================================
// cellGrid - character rasterizer
// =============================================================================

type cellStyle uint8

const (
	cellBlank cellStyle = iota
	cellLink
	cellLabel
	cellCard
	cellSelected
	cellLinkSource
)

var cellStyles = map[cellStyle]lipgloss.Style{
	cellBlank:      lipgloss.NewStyle(),
	cellLink:       lipgloss.NewStyle().Foreground(colorGray),
	cellLabel:      lipgloss.NewStyle().Foreground(colorBlue),
	cellCard:       lipgloss.NewStyle().Foreground(colorWhite),
	cellSelected:   lipgloss.NewStyle().Foreground(colorCyan).Bold(true),
	cellLinkSource: lipgloss.NewStyle().Foreground(colorGreen).Bold(true),
}

// cellGrid is a width×height character canvas with a style per cell.
type cellGrid struct {
	w, h   int
	runes  [][]rune
	styles [][]cellStyle
}

func newCellGrid(w, h int) *cellGrid {
	g := &cellGrid{w: w, h: h, runes: make([][]rune, h), styles: make([][]cellStyle, h)}
	for y := range h {
		g.runes[y] = []rune(strings.Repeat(" ", w))
		g.styles[y] = make([]cellStyle, w)
	}
	return g
}

func (g *cellGrid) set(x, y int, r rune, s cellStyle) {
	if x < 0 || y < 0 || x >= g.w || y >= g.h {
		return
	}
	g.runes[y][x] = r
	g.styles[y][x] = s
}

func (g *cellGrid) text(x, y int, s string, maxLen int, st cellStyle) {
	for i, r := range []rune(s) {
		if i >= maxLen {
			break
		}
		g.set(x+i, y, r, st)
	}
}

// cell maps a world point to a grid cell.
func cell(t viewport.Transform, p diagram.Point) (int, int) {
	s := t.WorldToScreen(p)
	return int(math.Floor(s.X / cellWidth)), int(math.Floor(s.Y / cellHeight))
}

func (g *cellGrid) draw(scene canvas.Scene, t viewport.Transform) {
	for _, l := range scene.Links {
		for _, p := range l.Curve.Flatten(48) {
			x, y := cell(t, p)
			g.set(x, y, '·', cellLink)
		}
		for _, f := range l.Feet {
			x, y := cell(t, f.Apex)
			g.set(x, y, '<', cellLink)
		}
	}
	for _, c := range scene.Cards {
		style := cellCard
		switch {
		case c.LinkSource:
			style = cellLinkSource
		case c.Selected:
			style = cellSelected
		}
		g.card(c, t, style)
	}
	// labels last so cards never hide them
	for _, l := range scene.Links {
		x, y := cell(t, l.Mid)
		label := " " + l.Label + " "
		g.text(x-len([]rune(label))/2, y+1, label, len([]rune(label)), cellLabel)
	}
}

func (g *cellGrid) card(c canvas.Card, t viewport.Transform, style cellStyle) {
	x0, y0 := cell(t, diagram.Pt(c.Rect.Left, c.Rect.Top))
	x1, y1 := cell(t, diagram.Pt(c.Rect.Right, c.Rect.Bottom))
	x1, y1 = max(x1, x0+4), max(y1, y0+2)
	for y := y0; y <= y1; y++ {
		for x := x0; x <= x1; x++ {
			var r rune
			switch {
			case y == y0 && x == x0:
				r = '╭'
			case y == y0 && x == x1:
				r = '╮'
			case y == y1 && x == x0:
				r = '╰'
			case y == y1 && x == x1:
				r = '╯'
			case y == y0 || y == y1:
				r = '─'
			case x == x0 || x == x1:
				r = '│'
			default:
				r = ' '
			}
			g.set(x, y, r, style)
		}
	}
	inner := x1 - x0 - 1
	name := c.Entity.Name
	if c.Entity.Collapsed {
		name = "▸ " + name
	}
	g.text(x0+1, y0+1, name, inner, style)
	row := y0 + 2
	for _, a := range c.Entity.Attributes {
		if row >= y1 || c.Entity.Collapsed {
			break
		}
		text := "  " + a.Name
		if a.PK {
			text = "* " + a.Name
		}
		g.text(x0+1, row, text, inner, style)
		row++
	}
}

func (g *cellGrid) String() string {
	var b strings.Builder
	for y := range g.h {
		start := 0
		for x := 1; x <= g.w; x++ {
			if x == g.w || g.styles[y][x] != g.styles[y][start] {
				b.WriteString(cellStyles[g.styles[y][start]].Render(string(g.runes[y][start:x])))
				start = x
			}
		}
		b.WriteString("\n")
	}
	return b.String()
}
