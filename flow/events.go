package flow

import "time"

// Alert is a modal message the display layer must show to the user.
type Alert struct {
	Title   string
	Message string
}

// EventSink abstracts the display layer so the TUI and the headless driver
// receive the same screen events.
type EventSink interface {
	RecordingStart()
	RecordingStop(auto bool)
	RecordingTick(elapsed time.Duration)
	AudioLevel(level float64)
	NoVoiceWarning(repeat bool)
	NoVoiceCleared()
	Alert(a Alert)
	// Changed fires after any state transition; call Snapshot to read it.
	Changed()
}

// NopSink drops every event.
type NopSink struct{}

func (NopSink) RecordingStart()             {}
func (NopSink) RecordingStop(bool)          {}
func (NopSink) RecordingTick(time.Duration) {}
func (NopSink) AudioLevel(float64)          {}
func (NopSink) NoVoiceWarning(bool)         {}
func (NopSink) NoVoiceCleared()             {}
func (NopSink) Alert(Alert)                 {}
func (NopSink) Changed()                    {}
