package main

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"chatterbridge/beep"
	"chatterbridge/clipboard"
	"chatterbridge/flow"
	"chatterbridge/language"
	"chatterbridge/log"
)

// Screen events forwarded from the flow controllers.
type recordingStartMsg struct{}
type recordingStopMsg struct{ auto bool }
type recordingTickMsg struct{ elapsed time.Duration }
type audioLevelMsg struct{ level float64 }
type noVoiceMsg struct{ repeat bool }
type noVoiceClearedMsg struct{}
type alertMsg struct{ alert flow.Alert }
type changedMsg struct{}

// opDoneMsg reports a blocking flow call that ran as a tea.Cmd.
type opDoneMsg struct {
	op  string
	err error
}
type closedMsg struct{}
type frameMsg time.Time

// teaSink forwards flow events into a running program. Flow calls must never
// run inside Update: Send blocks until the event loop reads it.
type teaSink struct {
	program *tea.Program
	beeps   bool
}

func (s *teaSink) send(msg tea.Msg) {
	if s.program != nil {
		s.program.Send(msg)
	}
}

func (s *teaSink) RecordingStart() {
	if s.beeps {
		beep.PlayStart()
	}
	s.send(recordingStartMsg{})
}

func (s *teaSink) RecordingStop(auto bool) {
	if s.beeps {
		beep.PlayEnd()
	}
	s.send(recordingStopMsg{auto: auto})
}

func (s *teaSink) RecordingTick(d time.Duration) { s.send(recordingTickMsg{elapsed: d}) }
func (s *teaSink) AudioLevel(level float64)      { s.send(audioLevelMsg{level: level}) }

func (s *teaSink) NoVoiceWarning(repeat bool) {
	if s.beeps {
		beep.PlayWarn()
	}
	s.send(noVoiceMsg{repeat: repeat})
}

func (s *teaSink) NoVoiceCleared()    { s.send(noVoiceClearedMsg{}) }
func (s *teaSink) Alert(a flow.Alert) { s.send(alertMsg{alert: a}) }
func (s *teaSink) Changed()           { s.send(changedMsg{}) }

var (
	dimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	faintStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("239"))
	keyStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Bold(true)
	recStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	warnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("208"))
	errStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("160"))
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	textStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("4"))
	titleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("246"))
)

var alertBoxStyle = lipgloss.NewStyle().
	Border(lipgloss.RoundedBorder()).
	BorderForeground(lipgloss.Color("208")).
	Padding(1, 3)

type langItem struct{ lang language.Language }

func (i langItem) Title() string       { return i.lang.Label }
func (i langItem) Description() string { return i.lang.Code }
func (i langItem) FilterValue() string { return i.lang.Label + " " + i.lang.Code }

func newLanguageList() list.Model {
	all := language.All()
	items := make([]list.Item, len(all))
	for i, l := range all {
		items[i] = langItem{lang: l}
	}
	l := list.New(items, list.NewDefaultDelegate(), 0, 0)
	l.Title = "Translate to"
	l.SetShowStatusBar(false)
	l.Styles.Title = lipgloss.NewStyle().MarginLeft(2).Bold(true)
	return l
}

func newSpinner() spinner.Model {
	return spinner.New(
		spinner.WithSpinner(spinner.Dot),
		spinner.WithStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("214"))),
	)
}

func frameTick() tea.Cmd {
	return tea.Tick(60*time.Millisecond, func(t time.Time) tea.Msg {
		return frameMsg(t)
	})
}

type speechModel struct {
	flow    *flow.Speech
	view    flow.SpeechView
	backend string
	device  string

	frame         int
	width, height int
	level         float64
	peak          float64
	elapsed       time.Duration
	recording     bool
	noVoice       bool
	autoStopped   bool

	spinner  spinner.Model
	picker   list.Model
	picking  bool
	alert    *flow.Alert
	notice   string
	quitting bool
}

func newSpeechModel(f *flow.Speech, backend, device string) speechModel {
	return speechModel{
		flow:    f,
		view:    f.Snapshot(),
		backend: backend,
		device:  device,
		spinner: newSpinner(),
		picker:  newLanguageList(),
	}
}

func (m speechModel) Init() tea.Cmd {
	return tea.Batch(frameTick(), m.spinner.Tick)
}

// run executes a blocking flow call off the event loop.
func (m speechModel) run(op string, fn func(ctx context.Context) error) tea.Cmd {
	return func() tea.Msg {
		return opDoneMsg{op: op, err: fn(context.Background())}
	}
}

func (m speechModel) quit() (tea.Model, tea.Cmd) {
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

func (m speechModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.picker.SetSize(msg.Width, msg.Height-1)
		return m, nil

	case frameMsg:
		m.frame++
		return m, frameTick()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case recordingStartMsg:
		m.recording = true
		m.level, m.peak, m.elapsed = 0, 0, 0
		m.noVoice, m.autoStopped = false, false
		m.notice = ""
		return m, nil

	case recordingStopMsg:
		m.recording = false
		m.level = 0
		m.autoStopped = msg.auto
		return m, nil

	case recordingTickMsg:
		m.elapsed = msg.elapsed
		return m, nil

	case audioLevelMsg:
		if m.recording {
			m.level = m.level*0.6 + msg.level*0.4
			m.peak = max(m.peak, msg.level)
		}
		return m, nil

	case noVoiceMsg:
		m.noVoice = true
		return m, nil

	case noVoiceClearedMsg:
		m.noVoice = false
		return m, nil

	case alertMsg:
		a := msg.alert
		m.alert = &a
		return m, nil

	case changedMsg:
		m.view = m.flow.Snapshot()
		return m, nil

	case opDoneMsg:
		return m.opDone(msg), nil

	case closedMsg:
		return m, tea.Quit

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	if m.picking {
		var cmd tea.Cmd
		m.picker, cmd = m.picker.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m speechModel) opDone(msg opDoneMsg) speechModel {
	switch {
	case msg.op == "copy" && msg.err == nil:
		m.notice = okStyle.Render("✓ copied")
	case msg.op == "copy":
		m.notice = warnStyle.Render("copy failed: " + msg.err.Error())
	case errors.Is(msg.err, flow.ErrBusy):
		m.notice = warnStyle.Render("busy, wait for the current request")
	case msg.err != nil && !errors.Is(msg.err, flow.ErrClosed):
		log.Warnf("%s: %v", msg.op, msg.err)
	}
	m.view = m.flow.Snapshot()
	return m
}

func (m speechModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()
	if key == "ctrl+c" {
		return m.quit()
	}
	if m.quitting {
		return m, nil
	}
	if m.alert != nil {
		switch key {
		case "enter", "esc", " ", "q":
			m.alert = nil
		}
		return m, nil
	}
	if m.picking {
		return m.handlePickerKey(msg)
	}

	f := m.flow
	switch key {
	case " ":
		if m.view.State == flow.Recording || m.recording {
			return m, m.run("stop", f.Stop)
		}
		return m, m.run("start", f.Start)
	case "t":
		target := m.view.Target
		return m, m.run("translate", func(ctx context.Context) error {
			return f.Translate(ctx, target)
		})
	case "l":
		m.picking = true
		m.selectTarget()
		return m, nil
	case "s":
		return m, m.run("speak", f.Speak)
	case "c":
		text := m.view.Translated
		if text == "" {
			text = m.view.Text
		}
		return m, m.run("copy", func(context.Context) error {
			return clipboard.Copy(text)
		})
	case "q", "esc":
		return m.quit()
	}
	return m, nil
}

func (m *speechModel) selectTarget() {
	for i, item := range m.picker.Items() {
		if li, ok := item.(langItem); ok && li.lang.Code == m.view.Target {
			m.picker.Select(i)
			return
		}
	}
}

func (m speechModel) handlePickerKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.picker.FilterState() != list.Filtering {
		switch msg.String() {
		case "esc", "q":
			m.picking = false
			return m, nil
		case "enter":
			m.picking = false
			item, ok := m.picker.SelectedItem().(langItem)
			if !ok {
				return m, nil
			}
			f, code := m.flow, item.lang.Code
			return m, m.run("translate", func(ctx context.Context) error {
				if err := f.SetTarget(code); err != nil {
					return err
				}
				return f.Translate(ctx, code)
			})
		}
	}
	var cmd tea.Cmd
	m.picker, cmd = m.picker.Update(msg)
	return m, cmd
}

func (m speechModel) View() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}
	if m.picking {
		return m.picker.View()
	}
	if m.alert != nil {
		return renderAlert(*m.alert, m.width, m.height)
	}

	const leftWidth = 34
	recording := m.recording || m.view.State == flow.Recording

	var left strings.Builder
	left.WriteString(renderMic(m.frame, m.level, recording))
	left.WriteString("\n")
	left.WriteString(renderEqualizer(m.frame, m.level, recording || m.view.State == flow.Transcribing))
	left.WriteString("\n")
	for _, line := range m.statusLines(recording) {
		left.WriteString(line + "\n")
	}
	left.WriteString("\n")
	left.WriteString(dimStyle.Render("[" + m.backend + "]") + "\n")
	left.WriteString(dimStyle.Render("mic: "+m.device) + "\n")

	rightWidth := max(m.width-leftWidth-1, 20)
	right := m.resultPanel(rightWidth - 2)

	leftPanel := lipgloss.NewStyle().Width(leftWidth).Height(m.height).Render(left.String())
	rightPanel := lipgloss.NewStyle().Width(rightWidth).Height(m.height).PaddingLeft(1).Render(right)
	return lipgloss.JoinHorizontal(lipgloss.Top, leftPanel, rightPanel)
}

func (m speechModel) statusLines(recording bool) []string {
	var lines []string
	switch {
	case recording:
		lines = append(lines, recStyle.Render(fmt.Sprintf("● REC %.1fs", m.elapsed.Seconds())))
		if m.noVoice {
			lines = append(lines, warnStyle.Render("  ⚠ no voice detected"))
		}
	case m.view.State == flow.Transcribing:
		lines = append(lines, m.spinner.View()+" Transcribing...")
	case m.view.State == flow.Error:
		lines = append(lines, errStyle.Render("✗ transcription failed"))
	case m.view.State == flow.Result:
		lines = append(lines, okStyle.Render("✓ done"))
	default:
		lines = append(lines, dimStyle.Render("○ STANDBY"))
	}
	if m.autoStopped && !recording {
		lines = append(lines, warnStyle.Render("stopped automatically"))
	}
	return lines
}

func (m speechModel) resultPanel(width int) string {
	var b strings.Builder
	v := m.view

	b.WriteString(titleStyle.Render("Recognized text") + "\n\n")
	switch {
	case v.Error != "":
		for _, line := range wrapText(v.Error, width) {
			b.WriteString(errStyle.Render(line) + "\n")
		}
	case v.Text != "":
		for _, line := range wrapText(v.Text, width) {
			b.WriteString(textStyle.Render(line) + "\n")
		}
		b.WriteString(dimStyle.Render("Detected language: "+v.DetectedLanguage) + "\n")
	default:
		b.WriteString(dimStyle.Render("Press space to start recording") + "\n")
	}

	b.WriteString("\n")
	b.WriteString(titleStyle.Render("Translation → "+language.Label(v.Target)) + "\n\n")
	switch {
	case v.Translating:
		b.WriteString(m.spinner.View() + " Translating...\n")
	case v.TranslateError != "":
		b.WriteString(warnStyle.Render(v.TranslateError) + "\n")
	case v.Translated != "":
		for _, line := range wrapText(v.Translated, width) {
			b.WriteString(textStyle.Render(line) + "\n")
		}
	default:
		b.WriteString(dimStyle.Render("—") + "\n")
	}

	if v.Speaking {
		b.WriteString("\n" + m.spinner.View() + " Speaking...\n")
	}
	if m.notice != "" {
		b.WriteString("\n" + m.notice + "\n")
	}

	b.WriteString("\n")
	b.WriteString(helpLine([][2]string{
		{"space", "record/stop"}, {"t", "translate"}, {"l", "language"},
		{"s", "speak"}, {"c", "copy"}, {"q", "quit"},
	}) + "\n")
	b.WriteString(faintStyle.Render("chatterbridge "+version) + "\n")
	return b.String()
}

func helpLine(keys [][2]string) string {
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = keyStyle.Render(k[0]) + faintStyle.Render(" "+k[1])
	}
	return strings.Join(parts, faintStyle.Render(" · "))
}

func renderAlert(a flow.Alert, width, height int) string {
	var body strings.Builder
	if a.Title != "" {
		body.WriteString(lipgloss.NewStyle().Bold(true).Render(a.Title) + "\n\n")
	}
	body.WriteString(a.Message + "\n\n")
	body.WriteString(faintStyle.Render("enter to dismiss"))
	return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, alertBoxStyle.Render(body.String()))
}

// Precomputed pixel styles for the mic animation.
var (
	micColorsRec  = []string{"", "231", "224", "210", "203", "196", "160", "124", "88", "236"}
	micColorsIdle = []string{"", "231", "194", "157", "120", "78", "36", "29", "23", "236"}
	micStylesRec  [10]lipgloss.Style
	micStylesIdle [10]lipgloss.Style
	micBgRec      [10][10]lipgloss.Style
	micBgIdle     [10][10]lipgloss.Style
)

func init() {
	build := func(colors []string, fg *[10]lipgloss.Style, bg *[10][10]lipgloss.Style) {
		for i, c := range colors {
			if c == "" {
				continue
			}
			fg[i] = lipgloss.NewStyle().Foreground(lipgloss.Color(c))
			for j, b := range colors {
				if b != "" {
					bg[i][j] = lipgloss.NewStyle().Foreground(lipgloss.Color(c)).Background(lipgloss.Color(b))
				}
			}
		}
	}
	build(micColorsRec, &micStylesRec, &micBgRec)
	build(micColorsIdle, &micStylesIdle, &micBgIdle)
}

// micPixels lays out the pulsing mic as palette indices, two pixel rows per
// character row.
func micPixels(frame int, level float64, recording bool) [][]int {
	const pixW, pixH = 32, 20
	cx, cy := float64(pixW)/2, float64(pixH)/2

	var pulse float64
	if recording {
		pulse = math.Sin(float64(frame)*0.15)*0.04 + min(level*8, 1)*0.6
	} else {
		pulse = math.Sin(float64(frame)*0.06) * 0.03
	}

	rings := []struct {
		radius, react float64
		color         int
	}{
		{2.2, 0.0, 1},
		{3.0, 0.2, 2},
		{3.8, 0.5, 3},
		{4.8, 1.2, 4},
		{5.8, 2.0, 5},
		{6.8, 2.6, 6},
		{7.8, 2.8, 7},
		{8.8, 2.0, 8},
		{9.6, 0.0, 9},
	}

	pixels := make([][]int, pixH)
	for y := range pixels {
		pixels[y] = make([]int, pixW)
		for x := range pixels[y] {
			dx := float64(x) - cx
			dy := float64(y) - cy
			dist := math.Sqrt(dx*dx + dy*dy)
			for _, r := range rings {
				if dist < min(r.radius+pulse*r.react, 9.6) {
					pixels[y][x] = r.color
					break
				}
			}
		}
	}

	// Capsule and stand of the mic drawn over the rings.
	for y := int(cy) - 5; y <= int(cy)+1; y++ {
		for x := int(cx) - 2; x < int(cx)+2; x++ {
			pixels[y][x] = 9
		}
	}
	for x := int(cx) - 3; x <= int(cx)+2; x++ {
		pixels[int(cy)+2][x] = 9
	}
	pixels[int(cy)+3][int(cx)-1] = 9
	pixels[int(cy)+4][int(cx)-1] = 9
	return pixels
}

func renderMic(frame int, level float64, recording bool) string {
	pixels := micPixels(frame, level, recording)
	styles, bgStyles := &micStylesIdle, &micBgIdle
	if recording {
		styles, bgStyles = &micStylesRec, &micBgRec
	}

	var out strings.Builder
	for y := 0; y+1 < len(pixels); y += 2 {
		for x := range pixels[y] {
			top, bot := pixels[y][x], pixels[y+1][x]
			switch {
			case top == 0 && bot == 0:
				out.WriteString(" ")
			case top == bot:
				out.WriteString(styles[top].Render("█"))
			case bot == 0:
				out.WriteString(styles[top].Render("▀"))
			case top == 0:
				out.WriteString(styles[bot].Render("▄"))
			default:
				out.WriteString(bgStyles[top][bot].Render("▀"))
			}
		}
		out.WriteString("\n")
	}
	return out.String()
}

const (
	eqBars   = 5
	eqHeight = 6
)

// equalizerHeights maps the current level to bar heights in [1,eqHeight].
// Inactive bars rest at one cell.
func equalizerHeights(frame int, level float64, active bool) [eqBars]int {
	var h [eqBars]int
	for i := range h {
		if !active {
			h[i] = 1
			continue
		}
		phase := 0.6 + 0.4*math.Sin(float64(frame)*0.5+float64(i)*1.3)
		drive := min(level*12, 1)
		if drive < 0.15 {
			// Keep a slow wave going while waiting on the server.
			drive = 0.35
		}
		h[i] = max(1, min(eqHeight, int(math.Round(drive*phase*eqHeight))))
	}
	return h
}

func renderEqualizer(frame int, level float64, active bool) string {
	heights := equalizerHeights(frame, level, active)
	style := micStylesIdle[5]
	if active {
		style = micStylesRec[4]
	}
	var out strings.Builder
	for row := eqHeight; row >= 1; row-- {
		out.WriteString(strings.Repeat(" ", 10))
		for _, h := range heights {
			if h >= row {
				out.WriteString(style.Render("██"))
			} else {
				out.WriteString("  ")
			}
			out.WriteString(" ")
		}
		out.WriteString("\n")
	}
	return out.String()
}

// wrapText breaks on spaces so no line exceeds width runes.
func wrapText(text string, width int) []string {
	if text == "" {
		return []string{""}
	}
	width = max(width, 1)

	var lines []string
	runes := []rune(text)
	for len(runes) > width {
		splitAt := width
		for i := width; i > 0; i-- {
			if runes[i] == ' ' {
				splitAt = i
				break
			}
		}
		lines = append(lines, string(runes[:splitAt]))
		runes = []rune(strings.TrimLeft(string(runes[splitAt:]), " "))
	}
	if len(runes) > 0 {
		lines = append(lines, string(runes))
	}
	return lines
}

func runSpeechTUI(f *flow.Speech, sink *teaSink, backend, device string) error {
	p := tea.NewProgram(newSpeechModel(f, backend, device), tea.WithAltScreen())
	sink.program = p
	_, err := p.Run()
	f.Close()
	return err
}
