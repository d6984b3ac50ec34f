package statecodec

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestSizedDataRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"empty", []byte{}},
		{"short", []byte("Player 1")},
		{"max length", bytes.Repeat([]byte{0xA5}, MaxSizedData)},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var buf bytes.Buffer
			if err := WriteSizedData(&buf, tc.data); err != nil {
				t.Fatalf("WriteSizedData: %v", err)
			}
			if buf.Len() != len(tc.data)+1 {
				t.Fatalf("encoded %d bytes, want %d", buf.Len(), len(tc.data)+1)
			}

			out := []byte("stale contents that must be replaced")
			if err := ReadSizedData(&buf, &out); err != nil {
				t.Fatalf("ReadSizedData: %v", err)
			}
			if !bytes.Equal(out, tc.data) {
				t.Errorf("got %q, want %q", out, tc.data)
			}
		})
	}
}

func TestWriteSizedDataTooLong(t *testing.T) {
	var buf bytes.Buffer
	err := WriteSizedData(&buf, make([]byte, MaxSizedData+1))
	if !errors.Is(err, ErrSizedDataTooLong) {
		t.Fatalf("expected ErrSizedDataTooLong, got %v", err)
	}
	if buf.Len() != 0 {
		t.Errorf("expected nothing written, got %d bytes", buf.Len())
	}
}

func TestReadSizedDataShort(t *testing.T) {
	tests := []struct {
		name  string
		input []byte
	}{
		{"empty stream", nil},
		{"truncated body", []byte{5, 'a', 'b'}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var out []byte
			err := ReadSizedData(bytes.NewReader(tc.input), &out)
			if !errors.Is(err, ErrShortRead) {
				t.Errorf("expected ErrShortRead, got %v", err)
			}
		})
	}
}

func TestRecordLayout(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteValue(&buf, KeyRewindStates, uint32(0x01020304)); err != nil {
		t.Fatalf("WriteValue: %v", err)
	}

	want := []byte{8, 0, byte(KeyRewindStates), 0, 0x04, 0x03, 0x02, 0x01}
	if !bytes.Equal(buf.Bytes(), want) {
		t.Errorf("got % x, want % x", buf.Bytes(), want)
	}
}

func TestReadRecordsSkipsUnknown(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteRecord(&buf, Key(999), []byte("future setting")); err != nil {
		t.Fatal(err)
	}
	if err := WriteValue(&buf, KeyRewindTimerSecs, int16(30)); err != nil {
		t.Fatal(err)
	}

	var seen []Key
	var secs int16
	err := ReadRecords(&buf, func(key Key, p *Payload) bool {
		seen = append(seen, key)
		if key != KeyRewindTimerSecs {
			return false
		}
		v, err := ReadValue[int16](p)
		if err != nil {
			t.Fatalf("ReadValue: %v", err)
		}
		secs = v
		return true
	})
	if err != nil {
		t.Fatalf("ReadRecords: %v", err)
	}
	if len(seen) != 2 {
		t.Fatalf("saw %d records, want 2", len(seen))
	}
	if secs != 30 {
		t.Errorf("secs = %d, want 30", secs)
	}
}

func TestReadRecordsMalformed(t *testing.T) {
	tests := []struct {
		name  string
		input []byte
		want  error
	}{
		{"length below header", []byte{2, 0, 1, 0}, ErrMalformedRecord},
		{"truncated header", []byte{8, 0, 1}, ErrShortRead},
		{"truncated payload", []byte{8, 0, 1, 0, 0xFF}, ErrShortRead},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := ReadRecords(bytes.NewReader(tc.input), func(Key, *Payload) bool { return true })
			if !errors.Is(err, tc.want) {
				t.Errorf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestReadValueSizeMismatch(t *testing.T) {
	p := NewPayload([]byte{1, 2, 3})
	if _, err := ReadValue[uint32](p); !errors.Is(err, ErrMalformedRecord) {
		t.Errorf("expected ErrMalformedRecord, got %v", err)
	}
}

func TestWriteOptionalSkipsDefault(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteOptional(&buf, KeyConfirmOverwriteState, true, true); err != nil {
		t.Fatal(err)
	}
	if buf.Len() != 0 {
		t.Fatalf("default value should not be written, got %d bytes", buf.Len())
	}
	if err := WriteOptional(&buf, KeyConfirmOverwriteState, false, true); err != nil {
		t.Fatal(err)
	}
	if buf.Len() != headerSize+1 {
		t.Errorf("expected %d bytes, got %d", headerSize+1, buf.Len())
	}
}

func TestWriteRecordTooLarge(t *testing.T) {
	var buf bytes.Buffer
	err := WriteRecord(&buf, KeyRecentContentV2, []byte(strings.Repeat("x", MaxPayload+1)))
	if !errors.Is(err, ErrPayloadTooLarge) {
		t.Errorf("expected ErrPayloadTooLarge, got %v", err)
	}
}
