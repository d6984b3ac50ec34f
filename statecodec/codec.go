// Package statecodec reads and writes the compact binary encoding used by the
// configuration file: length-prefixed "sized" fields and tagged records of the
// form
//
//	uint16 totalBytes | uint16 key | payload(totalBytes - 4)
//
// All multi-byte values are little-endian. Readers skip records whose key they
// don't recognize, which lets old and new config files coexist.
package statecodec

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log"
	"math"
)

// MaxSizedData is the longest byte string a sized field can hold.
const MaxSizedData = math.MaxUint8

// headerSize is the size of the totalBytes and key fields of a record.
const headerSize = 4

// MaxPayload is the largest payload a single record can carry.
const MaxPayload = math.MaxUint16 - headerSize

// ErrSizedDataTooLong is returned when a sized field exceeds MaxSizedData bytes
var ErrSizedDataTooLong = errors.New("sized data exceeds 255 bytes")

// ErrShortRead is returned when the stream ends inside a field or record
var ErrShortRead = errors.New("short read")

// ErrMalformedRecord is returned for a record header with an impossible length
var ErrMalformedRecord = errors.New("malformed record")

// ErrPayloadTooLarge is returned when a record payload exceeds MaxPayload bytes
var ErrPayloadTooLarge = errors.New("record payload too large")

// Fixed is the set of value types stored as fixed-size record payloads.
type Fixed interface {
	~bool | ~uint8 | ~int8 | ~uint16 | ~int16 | ~uint32 | ~int32 | ~uint64 | ~int64
}

// WriteSizedData writes a 1-byte length followed by data. Nothing is written
// if data is longer than MaxSizedData.
func WriteSizedData(w io.Writer, data []byte) error {
	if len(data) > MaxSizedData {
		return fmt.Errorf("%w: %d bytes", ErrSizedDataTooLong, len(data))
	}
	buf := make([]byte, 0, 1+len(data))
	buf = append(buf, byte(len(data)))
	buf = append(buf, data...)
	_, err := w.Write(buf)
	return err
}

// WriteSizedString writes s as a sized field.
func WriteSizedString(w io.Writer, s string) error {
	return WriteSizedData(w, []byte(s))
}

// ReadSizedData reads a 1-byte length and then exactly that many bytes into
// out, resizing it to fit.
func ReadSizedData(r io.Reader, out *[]byte) error {
	var size [1]byte
	if _, err := io.ReadFull(r, size[:]); err != nil {
		return shortRead(err)
	}
	n := int(size[0])
	if cap(*out) < n {
		*out = make([]byte, n)
	}
	*out = (*out)[:n]
	if _, err := io.ReadFull(r, *out); err != nil {
		return shortRead(err)
	}
	return nil
}

// ReadSizedString reads a sized field as a string.
func ReadSizedString(r io.Reader) (string, error) {
	var data []byte
	if err := ReadSizedData(r, &data); err != nil {
		return "", err
	}
	return string(data), nil
}

// WriteRecord writes one tagged record holding payload.
func WriteRecord(w io.Writer, key Key, payload []byte) error {
	if len(payload) > MaxPayload {
		return fmt.Errorf("%w: key %d, %d bytes", ErrPayloadTooLarge, key, len(payload))
	}
	buf := make([]byte, headerSize, headerSize+len(payload))
	binary.LittleEndian.PutUint16(buf[0:], uint16(headerSize+len(payload)))
	binary.LittleEndian.PutUint16(buf[2:], uint16(key))
	buf = append(buf, payload...)
	_, err := w.Write(buf)
	return err
}

// WriteValue writes v as a fixed-size record payload.
func WriteValue[T Fixed](w io.Writer, key Key, v T) error {
	payload, err := binary.Append(nil, binary.LittleEndian, v)
	if err != nil {
		return fmt.Errorf("failed to encode key %d: %w", key, err)
	}
	return WriteRecord(w, key, payload)
}

// WriteOptional writes v only when it differs from def, keeping config files
// limited to settings the user actually changed.
func WriteOptional[T Fixed](w io.Writer, key Key, v, def T) error {
	if v == def {
		return nil
	}
	return WriteValue(w, key, v)
}

// ReadRecords reads records until the end of r, handing each one to fn. The fn
// callback reports whether it recognized the key; unrecognized records are
// skipped. A clean end of stream between records is not an error.
func ReadRecords(r io.Reader, fn func(key Key, p *Payload) bool) error {
	var header [headerSize]byte
	for {
		if _, err := io.ReadFull(r, header[:]); err != nil {
			if err == io.EOF {
				return nil
			}
			return shortRead(err)
		}
		total := int(binary.LittleEndian.Uint16(header[0:]))
		key := Key(binary.LittleEndian.Uint16(header[2:]))
		if total < headerSize {
			return fmt.Errorf("%w: key %d has length %d", ErrMalformedRecord, key, total)
		}
		data := make([]byte, total-headerSize)
		if _, err := io.ReadFull(r, data); err != nil {
			return fmt.Errorf("key %d: %w", key, shortRead(err))
		}
		if !fn(key, NewPayload(data)) {
			log.Printf("Skipping unknown config key %d (%d bytes)", key, len(data))
		}
	}
}

// shortRead maps truncation errors from io.ReadFull to ErrShortRead.
func shortRead(err error) error {
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		return ErrShortRead
	}
	return err
}

// Payload is the body of a single record.
type Payload struct {
	r *bytes.Reader
}

// NewPayload wraps data as a record payload.
func NewPayload(data []byte) *Payload {
	return &Payload{r: bytes.NewReader(data)}
}

// Read implements io.Reader over the unread part of the payload.
func (p *Payload) Read(b []byte) (int, error) {
	return p.r.Read(b)
}

// Len returns the number of unread payload bytes.
func (p *Payload) Len() int {
	return p.r.Len()
}

// Uint16 reads a little-endian uint16 from the payload.
func (p *Payload) Uint16() (uint16, error) {
	var b [2]byte
	if _, err := io.ReadFull(p.r, b[:]); err != nil {
		return 0, shortRead(err)
	}
	return binary.LittleEndian.Uint16(b[:]), nil
}

// Uint8 reads a single byte from the payload.
func (p *Payload) Uint8() (uint8, error) {
	b, err := p.r.ReadByte()
	if err != nil {
		return 0, shortRead(err)
	}
	return b, nil
}

// ReadValue decodes a payload holding exactly one fixed-size value. A payload
// of any other size is rejected so a record written by a different version
// with a wider type isn't misread.
func ReadValue[T Fixed](p *Payload) (T, error) {
	var v T
	if size := binary.Size(v); p.Len() != size {
		return v, fmt.Errorf("%w: payload is %d bytes, want %d", ErrMalformedRecord, p.Len(), size)
	}
	if err := binary.Read(p.r, binary.LittleEndian, &v); err != nil {
		return v, shortRead(err)
	}
	return v, nil
}
