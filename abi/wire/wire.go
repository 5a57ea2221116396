// Package wire implements the compact (value, bytes_consumed) binary codec
// used for kernel-task (kipc) request and response payloads.
//
// The encoding is deliberately not self-describing: every kipc operation has
// a fixed argument and response shape known to both ends at compile time
// (see kernel/kipc.go), so there is no tag/length framing to parse before
// the fields themselves — exactly the "fixed C-layout tuple" case spec.md §9
// calls out, and the case Hubris's own ssmarshal crate was written to cover
// instead of a general serde backend (see SPEC_FULL.md §9).
package wire

import (
	"encoding/binary"
	"errors"
)

// ErrShortBuffer is returned by Decode when the source does not contain
// enough bytes for the value being decoded.
var ErrShortBuffer = errors.New("wire: buffer too short")

// Encoder accumulates encoded bytes. Size reports how many bytes would be
// written without actually writing them, so a too-small destination buffer
// can still be told the size that would have worked (spec.md §9).
type Encoder struct {
	buf []byte
	cap int
	n   int
}

// NewEncoder returns an Encoder that writes into dst, tracking how many
// bytes would be required even once dst is exhausted.
func NewEncoder(dst []byte) *Encoder {
	return &Encoder{buf: dst, cap: len(dst)}
}

// Len returns the number of bytes that have been (or would have been)
// written so far.
func (e *Encoder) Len() int { return e.n }

// Truncated reports whether any write so far exceeded the destination
// buffer's capacity.
func (e *Encoder) Truncated() bool { return e.n > e.cap }

func (e *Encoder) put(b []byte) {
	if e.n < e.cap {
		room := e.cap - e.n
		if room > len(b) {
			room = len(b)
		}
		copy(e.buf[e.n:e.n+room], b[:room])
	}
	e.n += len(b)
}

// PutUint32 encodes a little-endian uint32.
func (e *Encoder) PutUint32(v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	e.put(b[:])
}

// PutUint64 encodes a little-endian uint64, used only for read_image_id's
// 64-bit response (every other kipc field fits in 32 bits).
func (e *Encoder) PutUint64(v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	e.put(b[:])
}

// PutUint16 encodes a little-endian uint16.
func (e *Encoder) PutUint16(v uint16) {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	e.put(b[:])
}

// PutUint8 encodes a single byte.
func (e *Encoder) PutUint8(v uint8) { e.put([]byte{v}) }

// PutBool encodes a bool as a single byte, 0 or 1.
func (e *Encoder) PutBool(v bool) {
	if v {
		e.PutUint8(1)
	} else {
		e.PutUint8(0)
	}
}

// PutBytes copies raw bytes through verbatim (used for fixed-size arrays).
func (e *Encoder) PutBytes(v []byte) { e.put(v) }

// Decoder reads fields out of a fixed source buffer, tracking how many bytes
// have been consumed.
type Decoder struct {
	buf []byte
	off int
	err error
}

// NewDecoder returns a Decoder over src.
func NewDecoder(src []byte) *Decoder { return &Decoder{buf: src} }

// Err returns the first error encountered, if any.
func (d *Decoder) Err() error { return d.err }

// Consumed returns the number of bytes consumed so far.
func (d *Decoder) Consumed() int { return d.off }

func (d *Decoder) take(n int) []byte {
	if d.err != nil {
		return nil
	}
	if d.off+n > len(d.buf) {
		d.err = ErrShortBuffer
		return nil
	}
	b := d.buf[d.off : d.off+n]
	d.off += n
	return b
}

// Uint32 decodes a little-endian uint32.
func (d *Decoder) Uint32() uint32 {
	b := d.take(4)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint32(b)
}

// Uint64 decodes a little-endian uint64.
func (d *Decoder) Uint64() uint64 {
	b := d.take(8)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint64(b)
}

// Uint16 decodes a little-endian uint16.
func (d *Decoder) Uint16() uint16 {
	b := d.take(2)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint16(b)
}

// Uint8 decodes a single byte.
func (d *Decoder) Uint8() uint8 {
	b := d.take(1)
	if b == nil {
		return 0
	}
	return b[0]
}

// Bool decodes a single byte as a bool; any non-zero byte is true.
func (d *Decoder) Bool() bool { return d.Uint8() != 0 }

// Bytes decodes n raw bytes verbatim.
func (d *Decoder) Bytes(n int) []byte {
	b := d.take(n)
	if b == nil {
		return nil
	}
	out := make([]byte, n)
	copy(out, b)
	return out
}
