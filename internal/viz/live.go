package viz

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"image/gif"
	"log/slog"
	"os"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"

	"github.com/san-kum/clothsim/internal/cloth"
	"github.com/san-kum/clothsim/internal/metrics"
	"github.com/san-kum/clothsim/internal/solver"
)

const (
	width           = 80
	height          = 24
	historyCapacity = 300
	gridStep        = 2
	frameInterval   = time.Second / 60
)

type TickMsg time.Time

func tick() tea.Cmd {
	return tea.Tick(frameInterval, func(t time.Time) tea.Msg { return TickMsg(t) })
}

type LiveOptions struct {
	Title   string
	GIFPath string
	Logger  *slog.Logger
	// Clock defaults to wall time.
	Clock *cloth.Clock
}

// Model is the interactive cloth view. It owns no simulation logic: key
// presses become cloth.UIState updates.
type Model struct {
	ctx    context.Context
	sim    *cloth.Simulator
	clock  *cloth.Clock
	logger *slog.Logger
	title  string

	ui       cloth.UIState
	frame    cloth.Frame
	edges    [][2]uint32
	canvas   *Canvas
	camera   *Camera
	sag      *metrics.Sag
	settle   *metrics.Settle
	history  []float64
	settles  []float64
	paused   bool
	showHelp bool
	status   string
	ticks    int

	recording bool
	gifPath   string
	frames    []*image.Paletted
}

func NewModel(ctx context.Context, sim *cloth.Simulator, opts LiveOptions) Model {
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	if opts.Clock == nil {
		opts.Clock = cloth.NewClock()
	}
	if opts.GIFPath == "" {
		opts.GIFPath = "cloth.gif"
	}
	if opts.Title == "" {
		opts.Title = "cloth"
	}
	o := sim.Options()
	m := Model{
		ctx:     ctx,
		sim:     sim,
		clock:   opts.Clock,
		logger:  opts.Logger,
		title:   opts.Title,
		ui:      cloth.UIState{Gravity: o.Gravity, Iterations: o.Iterations, GridSize: o.GridSize},
		canvas:  NewCanvas(width, height),
		camera:  NewCamera(),
		sag:     metrics.NewSag(),
		settle:  metrics.NewSettle(),
		history: make([]float64, 0, historyCapacity),
		gifPath: opts.GIFPath,
	}
	m.refresh()
	return m
}

func (m Model) Init() tea.Cmd {
	return tick()
}

// Update handles input events and steps the simulation.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	case TickMsg:
		m.ticks++
		dt := m.clock.Tick()
		if !m.paused {
			if err := m.sim.Step(dt); err != nil {
				m.status = err.Error()
				m.logger.Error("step failed", "err", err)
			}
			m.refresh()
		}
		if m.recording {
			m.captureFrame()
		}
		return m, tick()
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case " ":
		m.paused = !m.paused
	case "g":
		m.ui.Gravity = !m.ui.Gravity
		m.apply()
	case "up", "k":
		m.ui.Iterations++
		m.apply()
	case "down", "j":
		m.ui.Iterations--
		m.apply()
	case "]":
		m.ui.GridSize += gridStep
		m.apply()
	case "[":
		m.ui.GridSize -= gridStep
		m.apply()
	case "r":
		m.ui.Reset = true
		m.apply()
	case "left", "h":
		m.camera.Orbit(-0.1, 0)
	case "right", "l":
		m.camera.Orbit(0.1, 0)
	case "w":
		m.camera.Orbit(0, 0.1)
	case "s":
		m.camera.Orbit(0, -0.1)
	case "+", "=":
		m.camera.ZoomIn()
	case "-", "_":
		m.camera.ZoomOut()
	case "t":
		NextTheme()
	case "v":
		m.toggleRecording()
	case "?":
		m.showHelp = !m.showHelp
	}
	m.draw()
	return m, nil
}

// apply hands the control state to the simulator and reads back the
// clamped values.
func (m *Model) apply() {
	if err := m.sim.Apply(m.ui); err != nil {
		m.status = err.Error()
		m.logger.Error("apply controls", "err", err)
	} else {
		m.status = ""
	}
	o := m.sim.Options()
	m.ui = cloth.UIState{Gravity: o.Gravity, Iterations: o.Iterations, GridSize: o.GridSize}
	m.sag.Reset()
	m.settle.Reset()
	m.history = m.history[:0]
	m.settles = m.settles[:0]
	m.refresh()
}

// refresh pulls the current frame from the simulator and redraws.
func (m *Model) refresh() {
	f, err := m.sim.Frame(m.ctx)
	if err != nil {
		m.status = err.Error()
		return
	}
	if len(f.Indices) != len(m.frame.Indices) || m.edges == nil {
		m.edges = MeshEdges(f.Indices)
	}
	m.frame = f
	m.sag.Observe(f.Positions, f.Time)
	m.settle.Observe(f.Positions, f.Time)
	m.history = appendCapped(m.history, m.sag.Value())
	m.settles = appendCapped(m.settles, m.settle.Value())
	m.draw()
}

func appendCapped(xs []float64, v float64) []float64 {
	xs = append(xs, v)
	if len(xs) > historyCapacity {
		xs = xs[1:]
	}
	return xs
}

func (m *Model) draw() {
	m.canvas.Clear()
	DrawMesh(m.canvas, m.camera, m.frame.Positions, m.edges)
	DrawMarkers(m.canvas, m.camera, m.frame.Positions, m.frame.Corners[:]...)
	DrawMarkers(m.canvas, m.camera, m.frame.Positions, m.frame.Center)
}

func (m *Model) toggleRecording() {
	if !m.recording {
		m.recording = true
		m.frames = m.frames[:0]
		return
	}
	m.recording = false
	if err := m.saveGIF(); err != nil {
		m.status = err.Error()
		m.logger.Error("save gif", "path", m.gifPath, "err", err)
		return
	}
	m.status = "saved " + m.gifPath
	m.frames = nil
}

func (m Model) View() string {
	th := CurrentTheme
	canvasView := lipgloss.NewStyle().Foreground(th.Mesh).Padding(1, 2).Render(m.canvas.String())

	var s strings.Builder
	s.WriteString(lipgloss.NewStyle().Foreground(th.Title).Bold(true).Render(strings.ToUpper(m.title)) + "\n")
	switch {
	case !m.sim.Ready():
		s.WriteString(StatusPaused.Render(AnimatedSpinner(m.ticks)+" compiling pipelines") + "\n\n")
	case m.recording:
		s.WriteString(StatusRecording.Render("● REC") + "\n\n")
	case m.paused:
		s.WriteString(StatusPaused.Render("PAUSED") + "\n\n")
	default:
		s.WriteString(StatusRunning.Render("RUNNING") + "\n\n")
	}

	row := func(label, value string) {
		s.WriteString(MetricLabel.Render(label) + MetricValue.Render(value) + "\n")
	}
	row("Backend", m.sim.Backend())
	row("Grid", fmt.Sprintf("%d x %d", m.ui.GridSize, m.ui.GridSize))
	row("Iterations", fmt.Sprintf("%-3d", m.ui.Iterations)+ProgressBar(float64(m.ui.Iterations)/solver.MaxIterations, 12))
	row("Gravity", onOff(m.ui.Gravity))
	row("Time", fmt.Sprintf("%.2fs", m.frame.Time))
	row("Sag", fmt.Sprintf("%.4f", m.sag.Value()))
	row("Dropped", fmt.Sprintf("%d", m.sim.Dropped()))
	if m.frame.Buffer != nil {
		row("Device buf", fmt.Sprintf("%d B", m.frame.BufferSize))
	}

	if len(m.history) > 1 {
		chart := asciigraph.Plot(m.history, asciigraph.Height(4), asciigraph.Width(30), asciigraph.Caption("sag"))
		s.WriteString("\n" + chart + "\n")
	}
	s.WriteString("\n" + MetricLabel.Render("settle") + SparklineChart(m.settles, 24) + "\n")
	if m.status != "" {
		s.WriteString("\n" + lipgloss.NewStyle().Foreground(th.Warn).Render(m.status) + "\n")
	}
	s.WriteString("\n" + KeyHint.Render("SP:Pause G:Gravity R:Reset Q:Quit\n↑↓:Iter [ ]:Grid ←→ W S:Orbit\nT:Theme V:Record ?:Help"))

	mainView := lipgloss.JoinHorizontal(lipgloss.Top, canvasView, statsPanel.Render(s.String()))
	if m.showHelp {
		return helpText + "\n\n" + mainView
	}
	return mainView
}

const helpText = `
╔═════════════════════════════════════════╗
║            KEYBOARD SHORTCUTS           ║
╠═════════════════════════════════════════╣
║  Space       - Pause/Resume             ║
║  G           - Toggle gravity           ║
║  Up/K Down/J - Solver iterations        ║
║  [ ]         - Grid size                ║
║  R           - Reset cloth              ║
║  Left/Right  - Orbit around             ║
║  W/S         - Orbit up/down            ║
║  + -         - Zoom                     ║
║  V           - Toggle GIF recording     ║
║  T           - Cycle themes             ║
║  Q           - Quit                     ║
╚═════════════════════════════════════════╝`

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}

// captureFrame rasterizes the canvas, one 4x4 pixel block per dot.
func (m *Model) captureFrame() {
	const dot = 4
	w, h := m.canvas.Dots()
	img := image.NewPaletted(image.Rect(0, 0, w*dot, h*dot), color.Palette{color.Black, color.White})
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if !m.canvas.IsSet(x, y) {
				continue
			}
			for py := 0; py < dot; py++ {
				for px := 0; px < dot; px++ {
					img.SetColorIndex(x*dot+px, y*dot+py, 1)
				}
			}
		}
	}
	m.frames = append(m.frames, img)
}

func (m *Model) saveGIF() error {
	if len(m.frames) == 0 {
		return nil
	}
	anim := gif.GIF{LoopCount: 0}
	for _, frame := range m.frames {
		anim.Image = append(anim.Image, frame)
		anim.Delay = append(anim.Delay, 2)
	}
	f, err := os.Create(m.gifPath)
	if err != nil {
		return err
	}
	defer f.Close()
	return gif.EncodeAll(f, &anim)
}

// RunLive runs the view until the user quits.
func RunLive(ctx context.Context, sim *cloth.Simulator, opts LiveOptions) error {
	_, err := tea.NewProgram(NewModel(ctx, sim, opts), tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	return err
}
