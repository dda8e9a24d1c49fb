// Package audio provides the capture side of a dictation session: a [Source]
// of raw 16-bit little-endian PCM chunks, format conversion to what the
// transcription API expects, and small helpers shared by streaming code.
package audio

import (
	"fmt"
	"time"
)

// bytesPerSample is the width of one signed 16-bit PCM sample.
const bytesPerSample = 2

// Format describes the sample rate and channel count of a PCM stream.
type Format struct {
	SampleRate int
	Channels   int
}

// DefaultFormat is 16 kHz mono, the input format of most transcription APIs.
var DefaultFormat = Format{SampleRate: 16000, Channels: 1}

// FrameSize returns the size in bytes of one sample across all channels.
func (f Format) FrameSize() int {
	return bytesPerSample * f.Channels
}

// ChunkBytes returns the byte length of d worth of audio, rounded down to a
// whole frame. It is at least one frame.
func (f Format) ChunkBytes(d time.Duration) int {
	frames := int(int64(f.SampleRate) * int64(d) / int64(time.Second))
	return max(frames, 1) * f.FrameSize()
}

// Duration returns the playback length of n bytes of audio.
func (f Format) Duration(n int) time.Duration {
	if f.SampleRate <= 0 || f.Channels <= 0 {
		return 0
	}
	frames := n / f.FrameSize()
	return time.Duration(frames) * time.Second / time.Duration(f.SampleRate)
}

// Validate reports whether the format is usable.
func (f Format) Validate() error {
	if f.SampleRate <= 0 {
		return fmt.Errorf("audio: sample rate must be positive, got %d", f.SampleRate)
	}
	if f.Channels < 1 || f.Channels > 2 {
		return fmt.Errorf("audio: channels must be 1 or 2, got %d", f.Channels)
	}
	return nil
}

func (f Format) String() string {
	return fmt.Sprintf("%dHz/%dch", f.SampleRate, f.Channels)
}
