// Package beep plays short cues when recording starts, stops or hears no
// voice.
package beep

var disabled bool

// Disable silences every cue. The headless driver and tests call it.
func Disable() { disabled = true }

const (
	sampleRate = 44100

	// Start: high pitch, short
	startFreq   = 1200
	startVolume = 0.5
	startDecay  = 60

	// End: medium pitch, slightly longer
	endFreq   = 900
	endVolume = 0.5
	endDecay  = 40

	// Warn: low pitch double-beep
	warnFreq   = 350
	warnVolume = 0.6
	warnDecay  = 30
)
