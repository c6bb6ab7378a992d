package main

import (
	"context"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"chatterbridge/config"
	"chatterbridge/flow"
	"chatterbridge/signdetect"
)

type signModel struct {
	flow *flow.Sign
	cfg  config.DetectConfig
	view flow.SignView

	width, height int
	input         textinput.Model
	spinner       spinner.Model
	alert         *flow.Alert
	quitting      bool
}

func newSignModel(f *flow.Sign, cfg config.DetectConfig, path string) signModel {
	ti := textinput.New()
	ti.Placeholder = "path to a photo or clip of the sign"
	ti.Prompt = "› "
	ti.CharLimit = 4096
	ti.SetValue(path)
	ti.Focus()
	return signModel{flow: f, cfg: cfg, input: ti, spinner: newSpinner()}
}

func (m signModel) Init() tea.Cmd {
	cmds := []tea.Cmd{textinput.Blink, m.spinner.Tick}
	if m.input.Value() != "" {
		cmds = append(cmds, m.capture())
	}
	return tea.Batch(cmds...)
}

func (m signModel) capture() tea.Cmd {
	f, src := m.flow, signSource(m.cfg, strings.TrimSpace(m.input.Value()))
	return func() tea.Msg {
		return opDoneMsg{op: "capture", err: f.Capture(context.Background(), src)}
	}
}

func (m signModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.input.Width = max(msg.Width-6, 10)
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case alertMsg:
		a := msg.alert
		m.alert = &a
		return m, nil

	case changedMsg, opDoneMsg:
		m.view = m.flow.Snapshot()
		return m, nil

	case closedMsg:
		return m, tea.Quit

	case tea.KeyMsg:
		switch key := msg.String(); {
		case key == "ctrl+c" || key == "esc" && m.alert == nil:
			return m.quit()
		case m.quitting:
			return m, nil
		case m.alert != nil:
			if key == "enter" || key == "esc" || key == " " {
				m.alert = nil
			}
			return m, nil
		case key == "enter":
			if m.view.State == flow.SignLoading {
				return m, nil
			}
			return m, m.capture()
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m signModel) quit() (tea.Model, tea.Cmd) {
	if m.quitting {
		return m, nil
	}
	m.quitting = true
	f := m.flow
	return m, func() tea.Msg {
		f.Close()
		return closedMsg{}
	}
}

func (m signModel) View() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}
	if m.alert != nil {
		return renderAlert(*m.alert, m.width, m.height)
	}

	var b strings.Builder
	b.WriteString(lipgloss.NewStyle().Bold(true).Render("Sign detection") + "\n\n")
	b.WriteString(m.input.View() + "\n\n")

	v := m.view
	switch v.State {
	case flow.SignLoading:
		b.WriteString(m.spinner.View() + " Detecting " + v.Media.Kind.String() + "...\n")
	case flow.SignResult:
		for _, line := range strings.Split(v.Result.String(), "\n") {
			b.WriteString(textStyle.Render(line) + "\n")
		}
	case flow.SignError:
		b.WriteString(errStyle.Render(v.Error) + "\n")
	default:
		b.WriteString(dimStyle.Render("Enter a file and press enter") + "\n")
	}

	b.WriteString("\n")
	b.WriteString(helpLine([][2]string{{"enter", "detect"}, {"esc", "quit"}}) + "\n")
	return lipgloss.NewStyle().Padding(1, 2).Render(b.String())
}

func runSignTUI(f *flow.Sign, sink *teaSink, cfg config.DetectConfig, path string) error {
	p := tea.NewProgram(newSignModel(f, cfg, path), tea.WithAltScreen())
	sink.program = p
	_, err := p.Run()
	f.Close()
	return err
}

// detectOnce runs one capture without a screen and returns the rendered
// result.
func detectOnce(ctx context.Context, f *flow.Sign, src signdetect.Source) (string, error) {
	defer f.Close()
	if err := f.Capture(ctx, src); err != nil {
		return "", err
	}
	v := f.Snapshot()
	if v.State != flow.SignResult {
		return "", signdetect.ErrCanceled
	}
	return v.Result.String(), nil
}
