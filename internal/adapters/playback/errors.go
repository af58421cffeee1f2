package playback

import "errors"

// Sentinel kinds for playback errors.
var (
	ErrUnknownVoicepack = errors.New("unknown voicepack")
	ErrNoCommand        = errors.New("player command is empty")
)
