//go:build !linux

package beep

// Cues are only wired to PulseAudio; elsewhere they are silent.

func PlayStart() {}
func PlayEnd()   {}
func PlayWarn()  {}
