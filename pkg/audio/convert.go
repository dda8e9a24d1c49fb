package audio

import (
	"encoding/binary"
	"log/slog"
	"math"
	"sync"
)

// Converter turns PCM chunks from one format into another: channels are
// mixed first, then the rate is changed by linear interpolation.
//
// A Converter is stateless between chunks apart from its one-time warnings,
// so chunk edges are interpolated independently.
type Converter struct {
	From, To Format

	warnOdd sync.Once
}

// NewConverter returns a Converter from one format to another.
func NewConverter(from, to Format) *Converter {
	return &Converter{From: from, To: to}
}

// Convert returns pcm in the target format. When the formats match, pcm is
// returned unchanged. A trailing partial frame is dropped.
func (c *Converter) Convert(pcm []byte) []byte {
	if c.From == c.To {
		return pcm
	}
	if rem := len(pcm) % c.From.FrameSize(); rem != 0 {
		c.warnOdd.Do(func() {
			slog.Warn("audio: dropping partial frame", "bytes", rem, "format", c.From.String())
		})
		pcm = pcm[:len(pcm)-rem]
	}

	channels := c.From.Channels
	switch {
	case channels == 2 && c.To.Channels == 1:
		pcm = StereoToMono(pcm)
		channels = 1
	case channels == 1 && c.To.Channels == 2:
		pcm = MonoToStereo(pcm)
		channels = 2
	}
	return Resample(pcm, channels, c.From.SampleRate, c.To.SampleRate)
}

// StereoToMono averages interleaved left/right samples.
func StereoToMono(pcm []byte) []byte {
	frames := len(pcm) / 4
	out := make([]byte, frames*bytesPerSample)
	for i := range frames {
		l := int32(sampleAt(pcm, 2*i))
		r := int32(sampleAt(pcm, 2*i+1))
		putSample(out, i, int16((l+r)/2))
	}
	return out
}

// MonoToStereo duplicates every sample into both channels.
func MonoToStereo(pcm []byte) []byte {
	samples := len(pcm) / bytesPerSample
	out := make([]byte, samples*4)
	for i := range samples {
		s := sampleAt(pcm, i)
		putSample(out, 2*i, s)
		putSample(out, 2*i+1, s)
	}
	return out
}

// Resample changes the sample rate of interleaved PCM by linear
// interpolation. Invalid rates or channel counts return pcm unchanged.
func Resample(pcm []byte, channels, srcRate, dstRate int) []byte {
	if srcRate <= 0 || dstRate <= 0 || channels <= 0 || srcRate == dstRate {
		return pcm
	}
	in := len(pcm) / (bytesPerSample * channels)
	if in == 0 {
		return nil
	}
	n := int(int64(in) * int64(dstRate) / int64(srcRate))
	out := make([]byte, n*bytesPerSample*channels)
	step := float64(srcRate) / float64(dstRate)
	for i := range n {
		pos := float64(i) * step
		j := int(pos)
		k := min(j+1, in-1)
		frac := pos - float64(j)
		for ch := range channels {
			a := float64(sampleAt(pcm, j*channels+ch))
			b := float64(sampleAt(pcm, k*channels+ch))
			putSample(out, i*channels+ch, clamp16(a+(b-a)*frac))
		}
	}
	return out
}

func sampleAt(pcm []byte, i int) int16 {
	return int16(binary.LittleEndian.Uint16(pcm[i*bytesPerSample:]))
}

func putSample(pcm []byte, i int, s int16) {
	binary.LittleEndian.PutUint16(pcm[i*bytesPerSample:], uint16(s))
}

func clamp16(v float64) int16 {
	return int16(max(math.MinInt16, min(math.MaxInt16, math.Round(v))))
}
