package host

import (
	"io"
	"sync"
)

// AudioRingBuffer is a fixed-capacity byte queue between the game loop,
// which writes one frame of samples at a time, and the oto player, which
// pulls from its own goroutine. When full the oldest bytes are dropped so
// playback stays close to the emulated frame.
type AudioRingBuffer struct {
	mu       sync.Mutex
	cond     *sync.Cond
	buf      []byte
	readPos  int
	writePos int
	count    int
	closed   bool
}

// NewAudioRingBuffer creates a ring buffer holding up to capacity bytes.
func NewAudioRingBuffer(capacity int) *AudioRingBuffer {
	rb := &AudioRingBuffer{buf: make([]byte, capacity)}
	rb.cond = sync.NewCond(&rb.mu)
	return rb
}

// Write appends data, dropping the oldest buffered bytes on overflow.
// Writes after Close are ignored.
func (rb *AudioRingBuffer) Write(data []byte) {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	if rb.closed || len(data) == 0 {
		return
	}

	size := len(rb.buf)
	if len(data) >= size {
		copy(rb.buf, data[len(data)-size:])
		rb.readPos = 0
		rb.writePos = 0
		rb.count = size
		rb.cond.Broadcast()
		return
	}

	if over := rb.count + len(data) - size; over > 0 {
		rb.readPos = (rb.readPos + over) % size
		rb.count -= over
	}

	n := copy(rb.buf[rb.writePos:], data)
	if n < len(data) {
		copy(rb.buf, data[n:])
	}
	rb.writePos = (rb.writePos + len(data)) % size
	rb.count += len(data)
	rb.cond.Broadcast()
}

// Read implements io.Reader. It blocks until data is available and returns
// io.EOF once the buffer is closed and drained.
func (rb *AudioRingBuffer) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}

	rb.mu.Lock()
	defer rb.mu.Unlock()

	for rb.count == 0 && !rb.closed {
		rb.cond.Wait()
	}
	if rb.count == 0 {
		return 0, io.EOF
	}

	n := min(len(p), rb.count)
	first := copy(p[:n], rb.buf[rb.readPos:])
	if first < n {
		copy(p[first:n], rb.buf)
	}
	rb.readPos = (rb.readPos + n) % len(rb.buf)
	rb.count -= n
	return n, nil
}

// Buffered returns the number of bytes waiting to be read.
func (rb *AudioRingBuffer) Buffered() int {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	return rb.count
}

// Clear discards all buffered bytes.
func (rb *AudioRingBuffer) Clear() {
	rb.mu.Lock()
	rb.readPos = 0
	rb.writePos = 0
	rb.count = 0
	rb.mu.Unlock()
}

// Close stops accepting writes and wakes any blocked reader.
func (rb *AudioRingBuffer) Close() {
	rb.mu.Lock()
	rb.closed = true
	rb.cond.Broadcast()
	rb.mu.Unlock()
}
