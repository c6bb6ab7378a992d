package flow

import "time"

const (
	speechMinRatio   = 0.10
	speechClearRatio = 0.25 // higher threshold to clear warning (hysteresis)
)

type SilenceEvent int

const (
	SilenceNone      SilenceEvent = iota
	SilenceWarn                   // no voice detected
	SilenceWarnClear              // speech resumed after warning
	SilenceRepeat                 // warning still active, repeat cue
	SilenceAutoStop               // long silence, stop the recording
)

// silenceMonitor is fed one voiced/unvoiced sample per tick. A zero warn or
// autoStop duration disables that event.
type silenceMonitor struct {
	warnAt   int
	stopAt   int
	windowSz int

	ticks       int
	window      []bool
	speechCount int
	warned      bool
	lastBeep    int
}

func newSilenceMonitor(tick, warn, autoStop time.Duration) *silenceMonitor {
	if tick <= 0 {
		tick = DefaultTickInterval
	}
	m := &silenceMonitor{
		warnAt: int(warn / tick),
		stopAt: int(autoStop / tick),
	}
	m.windowSz = max(m.warnAt, m.stopAt, 1)
	m.window = make([]bool, m.windowSz)
	return m
}

func (m *silenceMonitor) ratio(n int) float64 {
	if m.ticks < n {
		n = m.ticks
	}
	if n == 0 {
		return 1.0
	}
	count := 0
	for i := 0; i < n; i++ {
		if m.window[(m.ticks-1-i+m.windowSz)%m.windowSz] {
			count++
		}
	}
	return float64(count) / float64(n)
}

func (m *silenceMonitor) Tick(hasSpeech bool) SilenceEvent {
	idx := m.ticks % m.windowSz
	if m.ticks >= m.windowSz && m.window[idx] {
		m.speechCount--
	}
	m.window[idx] = hasSpeech
	if hasSpeech {
		m.speechCount++
	}
	m.ticks++

	if m.warnAt > 0 {
		r := m.ratio(m.warnAt)
		if m.ticks >= m.warnAt && r < speechMinRatio && !m.warned {
			m.warned = true
			m.lastBeep = m.ticks
			return SilenceWarn
		}
		if m.warned && r >= speechClearRatio {
			m.warned = false
			return SilenceWarnClear
		}
	}

	// Auto-stop is checked before repeat.
	if m.stopAt > 0 && m.ticks >= m.stopAt && m.recentSpeech(m.stopAt) < speechMinRatio {
		return SilenceAutoStop
	}

	if m.warned && m.ticks-m.lastBeep >= m.warnAt {
		m.lastBeep = m.ticks
		return SilenceRepeat
	}
	return SilenceNone
}

func (m *silenceMonitor) recentSpeech(n int) float64 {
	if n == m.windowSz {
		return float64(m.speechCount) / float64(m.windowSz)
	}
	return m.ratio(n)
}
