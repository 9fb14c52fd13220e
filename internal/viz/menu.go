package viz

import (
	"context"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/san-kum/clothsim/internal/cloth"
	"github.com/san-kum/clothsim/internal/config"
)

var presetInfo = map[string]string{
	"default": "22x22 under gravity",
	"still":   "hangs from two pins, no driver",
	"silk":    "light and stretchy",
	"canvas":  "heavy and stiff",
	"flutter": "48x48 with a fast driver",
	"drum":    "no gravity, 4 Hz driver",
}

// OpenFunc builds a simulator for a preset. release frees it.
type OpenFunc func(ctx context.Context, cfg *config.Config) (sim *cloth.Simulator, release func(), err error)

const (
	stateMenu = iota
	stateSim
)

// Menu picks a preset and hands it to a live [Model]. Quitting the live
// view returns to the list.
type Menu struct {
	ctx     context.Context
	open    OpenFunc
	opts    LiveOptions
	presets []string
	cursor  int
	state   int
	release func()
	live    Model
	err     error
}

func NewMenu(ctx context.Context, open OpenFunc, opts LiveOptions) Menu {
	return Menu{ctx: ctx, open: open, opts: opts, presets: config.ListPresets()}
}

func (m Menu) Init() tea.Cmd { return nil }

func (m Menu) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if m.state == stateSim {
		if k, ok := msg.(tea.KeyMsg); ok && (k.String() == "q" || k.String() == "esc") {
			m.close()
			return m, nil
		}
		next, cmd := m.live.Update(msg)
		m.live = next.(Model)
		return m, cmd
	}
	k, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	switch k.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(m.presets)-1 {
			m.cursor++
		}
	case "enter", " ":
		return m.start()
	}
	return m, nil
}

func (m Menu) start() (tea.Model, tea.Cmd) {
	name := m.presets[m.cursor]
	sim, release, err := m.open(m.ctx, config.GetPreset(name))
	if err != nil {
		m.err = fmt.Errorf("open %s: %w", name, err)
		return m, nil
	}
	m.err = nil
	m.release = release
	opts := m.opts
	opts.Title = name
	m.live = NewModel(m.ctx, sim, opts)
	m.state = stateSim
	return m, m.live.Init()
}

func (m *Menu) close() {
	if m.release != nil {
		m.release()
	}
	m.release = nil
	m.state = stateMenu
}

// Selected reports the preset under the cursor.
func (m Menu) Selected() string { return m.presets[m.cursor] }

func (m Menu) View() string {
	if m.state == stateSim {
		return m.live.View()
	}
	th := CurrentTheme
	var b strings.Builder
	b.WriteString(GradientText("CLOTHSIM", th.Title, th.Accent) + "\n")
	b.WriteString(Separator(40) + "\n\n")
	for i, name := range m.presets {
		line := fmt.Sprintf("%-10s %s", name, Subtle.Render(presetInfo[name]))
		if i == m.cursor {
			b.WriteString(lipgloss.NewStyle().Foreground(th.Accent).Render("▸ "+line) + "\n")
		} else {
			b.WriteString("  " + line + "\n")
		}
	}
	if m.err != nil {
		b.WriteString("\n" + lipgloss.NewStyle().Foreground(th.Warn).Render(m.err.Error()) + "\n")
	}
	b.WriteString("\n" + KeyHint.Render("↑↓:Select Enter:Start Q:Quit"))
	return b.String()
}

// RunMenu runs the preset picker until the user quits.
func RunMenu(ctx context.Context, open OpenFunc, opts LiveOptions) error {
	m := NewMenu(ctx, open, opts)
	final, err := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	if fm, ok := final.(Menu); ok {
		fm.close()
	}
	return err
}
