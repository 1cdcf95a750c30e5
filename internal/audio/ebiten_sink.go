package audio

import (
	"fmt"
	"io"
	"sync"

	"github.com/hajimehoshi/ebiten/v2/audio"
)

// EbitenSink is the real Sink implementation, backed by
// github.com/hajimehoshi/ebiten/v2/audio (and, transitively,
// ebitengine/oto). ebiten's player streams 16-bit little-endian
// stereo frames; EbitenSink upsamples each enqueued unsigned-8-bit
// mono sample into one such frame, the same shape of conversion
// FabianRolfMatthiasNoll-GameBoyEmulator's internal/ui/audio.go
// apuStream.Read performs for its own emulator's APU.
type EbitenSink struct {
	mu     sync.Mutex
	ring   []byte // u8 mono samples, not yet converted
	closed bool

	ctx    *audio.Context
	player *audio.Player
}

// bytesPerFrame is the size of one ebiten stereo 16-bit frame.
const bytesPerFrame = 4

// maxBufferedSamples bounds how far the sink can fall behind the
// player before it starts dropping the oldest samples, so a stalled
// player can't grow this buffer without bound.
const maxBufferedSamples = 1 << 15

// NewEbitenSink creates an unopened EbitenSink.
func NewEbitenSink() *EbitenSink {
	return &EbitenSink{}
}

// Open implements Sink. It creates the ebiten audio context at the
// requested frequency and starts a player streaming from this sink.
func (s *EbitenSink) Open(spec Spec) error {
	if spec.Format != FormatU8 {
		return fmt.Errorf("audio: unsupported format %v, only FormatU8 is implemented", spec.Format)
	}
	if spec.Channels != 1 {
		return fmt.Errorf("audio: unsupported channel count %d, only mono is implemented", spec.Channels)
	}

	s.mu.Lock()
	s.ctx = audio.NewContext(spec.Freq)
	s.mu.Unlock()

	player, err := s.ctx.NewPlayer(&reader{sink: s})
	if err != nil {
		return fmt.Errorf("audio: opening player: %w", err)
	}
	player.Play()

	s.mu.Lock()
	s.player = player
	s.mu.Unlock()
	return nil
}

// Enqueue implements Sink.
func (s *EbitenSink) Enqueue(sample byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.ring = append(s.ring, sample)
	if over := len(s.ring) - maxBufferedSamples; over > 0 {
		s.ring = s.ring[over:]
	}
}

// Close implements Sink.
func (s *EbitenSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	if s.player != nil {
		return s.player.Close()
	}
	return nil
}

// reader adapts EbitenSink's u8-mono ring buffer into the 16-bit
// stereo PCM stream ebiten's audio.Player reads from.
type reader struct {
	sink *EbitenSink
}

// Read implements io.Reader. It converts as many buffered mono u8
// samples as fit into p into little-endian signed 16-bit stereo
// frames, and emits silence when nothing is buffered yet rather than
// blocking — the APU's sample clock, not this reader, is the pacing
// authority.
func (r *reader) Read(p []byte) (int, error) {
	frames := len(p) / bytesPerFrame
	if frames == 0 {
		return 0, nil
	}

	r.sink.mu.Lock()
	n := frames
	if n > len(r.sink.ring) {
		n = len(r.sink.ring)
	}
	chunk := make([]byte, n)
	copy(chunk, r.sink.ring[:n])
	r.sink.ring = r.sink.ring[n:]
	r.sink.mu.Unlock()

	written := 0
	for _, u8 := range chunk {
		// Unsigned 8-bit PCM is centered at 0x80; widen to a centered
		// 16-bit signed sample and duplicate across both channels.
		s16 := (int16(u8) - 0x80) << 8
		p[written] = byte(s16)
		p[written+1] = byte(s16 >> 8)
		p[written+2] = byte(s16)
		p[written+3] = byte(s16 >> 8)
		written += bytesPerFrame
	}
	// Pad the remainder of this read with silence instead of a short
	// read, which keeps ebiten's player from treating an empty buffer
	// as end-of-stream.
	for i := written; i < len(p); i++ {
		p[i] = 0
	}
	return len(p), nil
}

var _ io.Reader = (*reader)(nil)
