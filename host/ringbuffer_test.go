package host

import (
	"bytes"
	"io"
	"sync"
	"testing"
)

func TestAudioRingBuffer_WriteRead(t *testing.T) {
	rb := NewAudioRingBuffer(16)
	rb.Write([]byte{1, 2, 3, 4, 5})

	if rb.Buffered() != 5 {
		t.Fatalf("expected 5 buffered bytes, got %d", rb.Buffered())
	}

	out := make([]byte, 5)
	n, err := rb.Read(out)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 5 || !bytes.Equal(out, []byte{1, 2, 3, 4, 5}) {
		t.Fatalf("read %d bytes %v", n, out)
	}
}

func TestAudioRingBuffer_Overflow(t *testing.T) {
	tests := []struct {
		name   string
		cap    int
		writes [][]byte
		want   []byte
	}{
		{
			name:   "drops oldest",
			cap:    8,
			writes: [][]byte{{1, 2, 3, 4, 5, 6}, {7, 8, 9, 10, 11}},
			want:   []byte{4, 5, 6, 7, 8, 9, 10, 11},
		},
		{
			name:   "single write larger than capacity",
			cap:    4,
			writes: [][]byte{{1, 2, 3, 4, 5, 6, 7, 8}},
			want:   []byte{5, 6, 7, 8},
		},
		{
			name:   "exact fill",
			cap:    4,
			writes: [][]byte{{1, 2}, {3, 4}},
			want:   []byte{1, 2, 3, 4},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rb := NewAudioRingBuffer(tc.cap)
			for _, w := range tc.writes {
				rb.Write(w)
			}
			if rb.Buffered() != len(tc.want) {
				t.Fatalf("expected %d buffered, got %d", len(tc.want), rb.Buffered())
			}
			out := make([]byte, len(tc.want))
			n, _ := rb.Read(out)
			if n != len(tc.want) || !bytes.Equal(out, tc.want) {
				t.Fatalf("got %v, want %v", out[:n], tc.want)
			}
		})
	}
}

func TestAudioRingBuffer_WrapAround(t *testing.T) {
	rb := NewAudioRingBuffer(8)
	rb.Write([]byte{1, 2, 3, 4, 5, 6})

	out := make([]byte, 4)
	rb.Read(out)

	rb.Write([]byte{7, 8, 9, 10, 11})
	if rb.Buffered() != 7 {
		t.Fatalf("expected 7 buffered, got %d", rb.Buffered())
	}

	out = make([]byte, 7)
	n, _ := rb.Read(out)
	want := []byte{5, 6, 7, 8, 9, 10, 11}
	if n != 7 || !bytes.Equal(out, want) {
		t.Fatalf("got %v, want %v", out[:n], want)
	}
}

func TestAudioRingBuffer_PartialRead(t *testing.T) {
	rb := NewAudioRingBuffer(16)
	rb.Write([]byte{1, 2, 3, 4, 5, 6, 7, 8})

	out := make([]byte, 3)
	n, err := rb.Read(out)
	if err != nil || n != 3 {
		t.Fatalf("Read = %d, %v", n, err)
	}
	if rb.Buffered() != 5 {
		t.Fatalf("expected 5 remaining, got %d", rb.Buffered())
	}
}

func TestAudioRingBuffer_Clear(t *testing.T) {
	rb := NewAudioRingBuffer(16)
	rb.Write([]byte{1, 2, 3, 4})
	rb.Clear()
	if rb.Buffered() != 0 {
		t.Fatalf("expected 0 buffered after clear, got %d", rb.Buffered())
	}

	rb.Write([]byte{9})
	out := make([]byte, 1)
	if n, _ := rb.Read(out); n != 1 || out[0] != 9 {
		t.Fatalf("read after clear = %v", out[:n])
	}
}

func TestAudioRingBuffer_CloseDrains(t *testing.T) {
	rb := NewAudioRingBuffer(16)
	rb.Write([]byte{1, 2})
	rb.Close()

	out := make([]byte, 2)
	n, err := rb.Read(out)
	if err != nil || n != 2 {
		t.Fatalf("Read = %d, %v; want remaining data", n, err)
	}
	if _, err := rb.Read(out); err != io.EOF {
		t.Fatalf("expected io.EOF after close and drain, got %v", err)
	}

	rb.Write([]byte{3})
	if rb.Buffered() != 0 {
		t.Fatalf("write after close was buffered")
	}
}

func TestAudioRingBuffer_CloseUnblocksReader(t *testing.T) {
	rb := NewAudioRingBuffer(16)

	done := make(chan error, 1)
	go func() {
		buf := make([]byte, 4)
		_, err := rb.Read(buf)
		done <- err
	}()

	rb.Close()
	if err := <-done; err != io.EOF {
		t.Fatalf("expected io.EOF from blocked reader, got %v", err)
	}
}

func TestAudioRingBuffer_ConcurrentReadWrite(t *testing.T) {
	rb := NewAudioRingBuffer(1024)
	const written = 100 * 100

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		data := make([]byte, 100)
		for i := 0; i < 100; i++ {
			for j := range data {
				data[j] = byte(i)
			}
			rb.Write(data)
		}
		rb.Close()
	}()

	received := 0
	go func() {
		defer wg.Done()
		buf := make([]byte, 64)
		for {
			n, err := rb.Read(buf)
			received += n
			if err == io.EOF {
				return
			}
		}
	}()

	wg.Wait()

	if received == 0 || received > written {
		t.Fatalf("received %d bytes of %d written", received, written)
	}
}
