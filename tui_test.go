package main

import (
	"bytes"
	"strings"
	"testing"
	"unicode/utf8"

	tea "github.com/charmbracelet/bubbletea"

	"chatterbridge/config"
	"chatterbridge/flow"
	"chatterbridge/language"
	"chatterbridge/signdetect"
	"chatterbridge/transcriber"
)

func newTestModel(t *testing.T) speechModel {
	t.Helper()
	f := flow.NewSpeech(flow.SpeechOptions{
		Transcriber:   transcriber.NewFake("hello", nil),
		DefaultTarget: "fr",
	})
	t.Cleanup(f.Close)
	m := newSpeechModel(f, "wav | fake | none", "fake")
	next, _ := m.Update(tea.WindowSizeMsg{Width: 100, Height: 30})
	return next.(speechModel)
}

func press(m speechModel, key string) (speechModel, tea.Cmd) {
	var msg tea.KeyMsg
	switch key {
	case "esc":
		msg = tea.KeyMsg{Type: tea.KeyEsc}
	case "enter":
		msg = tea.KeyMsg{Type: tea.KeyEnter}
	case "ctrl+c":
		msg = tea.KeyMsg{Type: tea.KeyCtrlC}
	case " ":
		msg = tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}
	default:
		msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(key)}
	}
	next, cmd := m.Update(msg)
	return next.(speechModel), cmd
}

func TestWrapText(t *testing.T) {
	tests := []struct {
		text  string
		width int
		want  []string
	}{
		{"", 10, []string{""}},
		{"short", 10, []string{"short"}},
		{"hello world again", 11, []string{"hello world", "again"}},
		{"hello world again", 8, []string{"hello", "world", "again"}},
		{"abcdefghij", 4, []string{"abcd", "efgh", "ij"}},
		{"ñandú ñandú", 6, []string{"ñandú", "ñandú"}},
	}
	for _, tt := range tests {
		got := wrapText(tt.text, tt.width)
		if strings.Join(got, "|") != strings.Join(tt.want, "|") {
			t.Errorf("wrapText(%q, %d) = %q, want %q", tt.text, tt.width, got, tt.want)
		}
		for _, line := range got {
			if n := utf8.RuneCountInString(line); n > tt.width {
				t.Errorf("line %q has %d runes, width %d", line, n, tt.width)
			}
		}
	}
}

func TestEqualizerHeights(t *testing.T) {
	for _, h := range equalizerHeights(3, 0.5, false) {
		if h != 1 {
			t.Fatalf("inactive bars = %v, want all 1", equalizerHeights(3, 0.5, false))
		}
	}
	for frame := 0; frame < 40; frame++ {
		for _, level := range []float64{0, 0.01, 0.05, 0.2, 1, 5} {
			for _, h := range equalizerHeights(frame, level, true) {
				if h < 1 || h > eqHeight {
					t.Fatalf("frame %d level %v: height %d out of range", frame, level, h)
				}
			}
		}
	}
}

func TestLanguagePicker(t *testing.T) {
	m := newTestModel(t)

	m, _ = press(m, "l")
	if !m.picking {
		t.Fatal("l did not open the picker")
	}
	item, ok := m.picker.SelectedItem().(langItem)
	if !ok || item.lang.Code != "fr" {
		t.Errorf("picker selection = %+v, want fr", m.picker.SelectedItem())
	}
	if !strings.Contains(m.View(), "Translate to") {
		t.Error("picker view missing title")
	}

	m, _ = press(m, "esc")
	if m.picking {
		t.Fatal("esc did not close the picker")
	}
	if m.quitting {
		t.Fatal("esc in the picker quit the screen")
	}

	m, _ = press(m, "l")
	m, cmd := press(m, "enter")
	if m.picking || cmd == nil {
		t.Fatalf("enter: picking=%v cmd=%v", m.picking, cmd)
	}
	if done, ok := cmd().(opDoneMsg); !ok || done.err != nil {
		t.Fatalf("enter command returned %#v", done)
	}
	if got := m.flow.Snapshot().Target; got != "fr" {
		t.Errorf("target = %q, want fr", got)
	}
}

func TestAlertDismissal(t *testing.T) {
	m := newTestModel(t)
	next, _ := m.Update(alertMsg{alert: flow.PermissionAlert})
	m = next.(speechModel)
	if !strings.Contains(m.View(), flow.PermissionAlert.Title) {
		t.Fatalf("alert not rendered:\n%s", m.View())
	}

	// Keys other than the dismiss keys leave the alert up.
	m, cmd := press(m, "t")
	if m.alert == nil || cmd != nil {
		t.Fatal("t acted while an alert was shown")
	}
	m, _ = press(m, "q")
	if m.alert != nil {
		t.Fatal("q did not dismiss the alert")
	}
	if m.quitting {
		t.Fatal("dismissing the alert quit the screen")
	}
}

func TestQuitClosesFlow(t *testing.T) {
	m := newTestModel(t)
	m, cmd := press(m, "ctrl+c")
	if !m.quitting || cmd == nil {
		t.Fatal("ctrl+c did not start quitting")
	}
	if _, ok := cmd().(closedMsg); !ok {
		t.Fatal("quit command did not report closedMsg")
	}
	if _, again := press(m, "ctrl+c"); again != nil {
		t.Error("second ctrl+c issued another close")
	}
}

func TestRecordingMessages(t *testing.T) {
	m := newTestModel(t)
	next, _ := m.Update(recordingStartMsg{})
	m = next.(speechModel)
	next, _ = m.Update(noVoiceMsg{})
	m = next.(speechModel)
	if !strings.Contains(m.View(), "no voice detected") {
		t.Errorf("no-voice warning missing:\n%s", m.View())
	}
	next, _ = m.Update(recordingStopMsg{auto: true})
	m = next.(speechModel)
	if m.recording || !strings.Contains(m.View(), "stopped automatically") {
		t.Errorf("auto stop not shown:\n%s", m.View())
	}
}

func TestChangedRefreshesView(t *testing.T) {
	m := newTestModel(t)
	if err := m.flow.SetTarget("de"); err != nil {
		t.Fatal(err)
	}
	if m.view.Target != "fr" {
		t.Fatalf("view changed before changedMsg: %q", m.view.Target)
	}
	next, _ := m.Update(changedMsg{})
	m = next.(speechModel)
	if m.view.Target != "de" {
		t.Errorf("target = %q, want de", m.view.Target)
	}
	if !strings.Contains(m.View(), language.Label("de")) {
		t.Errorf("view missing %s", language.Label("de"))
	}
}

func TestWriteLanguageTable(t *testing.T) {
	var buf bytes.Buffer
	writeLanguageTable(&buf, language.Search("span"))
	out := buf.String()
	if !strings.Contains(out, "CODE") || !strings.Contains(out, "es") || !strings.Contains(out, "Spanish") {
		t.Errorf("table output:\n%s", out)
	}
}

func TestSignSourceKind(t *testing.T) {
	src := signSource(config.DetectConfig{Mode: "video"}, "still.jpg")
	if src.Kind == nil || *src.Kind != signdetect.Video {
		t.Errorf("video mode did not force video: %+v", src)
	}
	src = signSource(config.DetectConfig{Mode: "image"}, "clip.mp4")
	if src.Kind != nil {
		t.Errorf("image mode forced a kind: %+v", src)
	}
	if signdetect.KindOf(src.Path) != signdetect.Video {
		t.Error("mp4 not detected as video")
	}
}
