// Package codec turns a reduced schema.Interface into source files for a
// target language, and provides the little-endian, unpadded wire codec
// those generated files (and this engine's own Go-target referees) link
// against.
package codec

import (
	"encoding/binary"
	"fmt"
	"io"
	"strings"
)

// Writer frames values onto an io.Writer using the engine's wire format:
// scalars at their natural width, bool as one byte, strings as a u32
// length prefix followed by UTF-8 bytes, arrays/structs concatenated
// field-by-field with no padding, and tagged unions as a tag (width
// determined by variant count) followed by the variant's payload.
type Writer struct {
	w   io.Writer
	buf [8]byte
}

// NewWriter wraps w.
func NewWriter(w io.Writer) *Writer { return &Writer{w: w} }

func (w *Writer) WriteU8(v uint8) error {
	w.buf[0] = v
	_, err := w.w.Write(w.buf[:1])
	return err
}

func (w *Writer) WriteU16(v uint16) error {
	binary.LittleEndian.PutUint16(w.buf[:2], v)
	_, err := w.w.Write(w.buf[:2])
	return err
}

func (w *Writer) WriteU32(v uint32) error {
	binary.LittleEndian.PutUint32(w.buf[:4], v)
	_, err := w.w.Write(w.buf[:4])
	return err
}

func (w *Writer) WriteU64(v uint64) error {
	binary.LittleEndian.PutUint64(w.buf[:8], v)
	_, err := w.w.Write(w.buf[:8])
	return err
}

func (w *Writer) WriteI8(v int8) error   { return w.WriteU8(uint8(v)) }
func (w *Writer) WriteI16(v int16) error { return w.WriteU16(uint16(v)) }
func (w *Writer) WriteI32(v int32) error { return w.WriteU32(uint32(v)) }
func (w *Writer) WriteI64(v int64) error { return w.WriteU64(uint64(v)) }

func (w *Writer) WriteF32(v float32) error {
	return w.WriteU32(f32bits(v))
}

func (w *Writer) WriteF64(v float64) error {
	return w.WriteU64(f64bits(v))
}

func (w *Writer) WriteBool(v bool) error {
	if v {
		return w.WriteU8(1)
	}
	return w.WriteU8(0)
}

func (w *Writer) WriteStr(v string) error {
	if err := w.WriteU32(uint32(len(v))); err != nil {
		return err
	}
	_, err := w.w.Write([]byte(v))
	return err
}

// WriteTag writes a union discriminant of the given width (1, 2, 4 or 8
// bytes, as determined by schema.TagWidth for the enum's variant count).
func (w *Writer) WriteTag(tag uint64, width int) error {
	switch width {
	case 1:
		return w.WriteU8(uint8(tag))
	case 2:
		return w.WriteU16(uint16(tag))
	case 4:
		return w.WriteU32(uint32(tag))
	case 8:
		return w.WriteU64(tag)
	default:
		return fmt.Errorf("codec: invalid tag width %d", width)
	}
}

// Reader parses values from an io.Reader framed per the same wire format.
type Reader struct {
	r   io.Reader
	buf [8]byte
}

// NewReader wraps r.
func NewReader(r io.Reader) *Reader { return &Reader{r: r} }

func (r *Reader) fill(n int) error {
	_, err := io.ReadFull(r.r, r.buf[:n])
	return err
}

func (r *Reader) ReadU8() (uint8, error) {
	if err := r.fill(1); err != nil {
		return 0, err
	}
	return r.buf[0], nil
}

func (r *Reader) ReadU16() (uint16, error) {
	if err := r.fill(2); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(r.buf[:2]), nil
}

func (r *Reader) ReadU32() (uint32, error) {
	if err := r.fill(4); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(r.buf[:4]), nil
}

func (r *Reader) ReadU64() (uint64, error) {
	if err := r.fill(8); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(r.buf[:8]), nil
}

func (r *Reader) ReadI8() (int8, error) {
	v, err := r.ReadU8()
	return int8(v), err
}

func (r *Reader) ReadI16() (int16, error) {
	v, err := r.ReadU16()
	return int16(v), err
}

func (r *Reader) ReadI32() (int32, error) {
	v, err := r.ReadU32()
	return int32(v), err
}

func (r *Reader) ReadI64() (int64, error) {
	v, err := r.ReadU64()
	return int64(v), err
}

func (r *Reader) ReadF32() (float32, error) {
	v, err := r.ReadU32()
	if err != nil {
		return 0, err
	}
	return f32frombits(v), nil
}

func (r *Reader) ReadF64() (float64, error) {
	v, err := r.ReadU64()
	if err != nil {
		return 0, err
	}
	return f64frombits(v), nil
}

func (r *Reader) ReadBool() (bool, error) {
	v, err := r.ReadU8()
	if err != nil {
		return false, err
	}
	return v != 0, nil
}

// ReadStr reads a u32 length prefix followed by that many bytes, decoding
// them as UTF-8 with lossy replacement: ill-formed sequences become U+FFFD
// rather than failing the read, matching a peer's String::from_utf8_lossy.
func (r *Reader) ReadStr() (string, error) {
	n, err := r.ReadU32()
	if err != nil {
		return "", err
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r.r, buf); err != nil {
		return "", err
	}
	return strings.ToValidUTF8(string(buf), "�"), nil
}

// ReadTag reads a union discriminant of the given width.
func (r *Reader) ReadTag(width int) (uint64, error) {
	switch width {
	case 1:
		v, err := r.ReadU8()
		return uint64(v), err
	case 2:
		v, err := r.ReadU16()
		return uint64(v), err
	case 4:
		v, err := r.ReadU32()
		return uint64(v), err
	case 8:
		return r.ReadU64()
	default:
		return 0, fmt.Errorf("codec: invalid tag width %d", width)
	}
}
