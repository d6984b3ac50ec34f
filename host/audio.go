package host

import (
	"fmt"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"
)

const defaultSampleRate = 48000

// ringBufferCapacity is ~167ms at 48kHz stereo 16-bit.
const ringBufferCapacity = 32768

// Frames of queued audio below which an extra frame is run, and above
// which a frame's samples are dropped.
const (
	audioMinFrames = 2
	audioMaxFrames = 6
)

// bufferThresholds converts the frame limits to byte counts of stereo
// int16 audio at sampleRate.
func bufferThresholds(sampleRate int, frame time.Duration) (lo, hi int) {
	if sampleRate <= 0 {
		sampleRate = defaultSampleRate
	}
	if frame <= 0 {
		frame = time.Second / 60
	}
	perFrame := int(int64(sampleRate) * 4 * int64(frame) / int64(time.Second))
	return perFrame * audioMinFrames, perFrame * audioMaxFrames
}

// AudioPlayer plays stereo int16 samples through oto. Samples are queued
// into a ring buffer that the oto player pulls from.
type AudioPlayer struct {
	player     *oto.Player
	ringBuffer *AudioRingBuffer
	audioBytes []byte
}

var (
	otoCtx      *oto.Context
	otoInitOnce sync.Once
	otoInitErr  error
)

// ensureOtoContext creates the process-wide oto context on first use.
// oto allows only one context, so the first sample rate wins.
func ensureOtoContext(sampleRate int) (*oto.Context, error) {
	otoInitOnce.Do(func() {
		op := &oto.NewContextOptions{
			SampleRate:   sampleRate,
			ChannelCount: 2,
			Format:       oto.FormatSignedInt16LE,
			BufferSize:   50 * time.Millisecond,
		}
		var ready chan struct{}
		otoCtx, ready, otoInitErr = oto.NewContext(op)
		if otoInitErr != nil {
			return
		}
		<-ready
	})
	return otoCtx, otoInitErr
}

// NewAudioPlayer starts playback at sampleRate (48kHz when zero).
func NewAudioPlayer(sampleRate int, volume float64) (*AudioPlayer, error) {
	if sampleRate <= 0 {
		sampleRate = defaultSampleRate
	}
	ctx, err := ensureOtoContext(sampleRate)
	if err != nil {
		return nil, fmt.Errorf("oto audio not available: %w", err)
	}

	rb := NewAudioRingBuffer(ringBufferCapacity)
	player := ctx.NewPlayer(rb)
	player.SetBufferSize(19200)
	player.SetVolume(volume)
	player.Play()

	return &AudioPlayer{
		player:     player,
		ringBuffer: rb,
		audioBytes: make([]byte, 0, 4096),
	}, nil
}

// QueueSamples converts samples to little-endian bytes and queues them.
func (a *AudioPlayer) QueueSamples(samples []int16) {
	if len(samples) == 0 {
		return
	}
	a.audioBytes = appendSamples(a.audioBytes[:0], samples)
	a.ringBuffer.Write(a.audioBytes)
}

func appendSamples(dst []byte, samples []int16) []byte {
	for _, s := range samples {
		dst = append(dst, byte(s), byte(s>>8))
	}
	return dst
}

// BufferLevel returns the bytes queued in the ring buffer and the player.
func (a *AudioPlayer) BufferLevel() int {
	return a.ringBuffer.Buffered() + a.player.BufferedSize()
}

// ClearQueue drops queued audio. Used while rewinding so stale frames
// are not played.
func (a *AudioPlayer) ClearQueue() {
	a.ringBuffer.Clear()
}

// SetVolume sets the playback volume, clamped to [0, 2].
func (a *AudioPlayer) SetVolume(vol float64) {
	a.player.SetVolume(max(0, min(vol, 2)))
}

func (a *AudioPlayer) Close() {
	a.ringBuffer.Close()
	a.player.Close()
}

// averageAudio folds the samples of multiplier consecutive frames into one
// frame's worth by averaging matching stereo samples.
func averageAudio(combined []int16, multiplier int) []int16 {
	if multiplier <= 1 || len(combined) == 0 {
		return combined
	}

	frameLen := len(combined) / multiplier
	frameLen &^= 1
	if frameLen == 0 {
		return nil
	}

	out := make([]int16, frameLen)
	for i := range out {
		var acc int32
		for f := 0; f < multiplier; f++ {
			acc += int32(combined[f*frameLen+i])
		}
		out[i] = int16(acc / int32(multiplier))
	}
	return out
}
