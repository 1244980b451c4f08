package vm

import (
	"encoding/binary"
	"math"
)

// streamReader decodes the flat byte stream: opcode tags, big-endian
// 32-bit integers, IEEE 754 doubles and null-terminated strings. Every
// read is bounds-checked so corrupt streams fail cleanly instead of
// panicking.
type streamReader struct {
	code []byte
	pos  int
}

func newStreamReader(code []byte) *streamReader {
	return &streamReader{code: code}
}

func (r *streamReader) atEnd() bool {
	return r.pos >= len(r.code)
}

func (r *streamReader) readByte() (byte, error) {
	if r.pos >= len(r.code) {
		return 0, newError(ErrTruncatedBytecode, "byte at %d past end %d", r.pos, len(r.code))
	}
	b := r.code[r.pos]
	r.pos++
	return b, nil
}

func (r *streamReader) readOpcode() (Opcode, error) {
	b, err := r.readByte()
	return Opcode(b), err
}

func (r *streamReader) readInt32() (int32, error) {
	if r.pos+4 > len(r.code) {
		return 0, newError(ErrTruncatedBytecode, "int32 at %d past end %d", r.pos, len(r.code))
	}
	v := int32(binary.BigEndian.Uint32(r.code[r.pos:]))
	r.pos += 4
	return v, nil
}

func (r *streamReader) readFloat64() (float64, error) {
	if r.pos+8 > len(r.code) {
		return 0, newError(ErrTruncatedBytecode, "float64 at %d past end %d", r.pos, len(r.code))
	}
	v := math.Float64frombits(binary.BigEndian.Uint64(r.code[r.pos:]))
	r.pos += 8
	return v, nil
}

// readString reads a null-terminated string. A FormatSentinel byte guards
// the byte that follows it so it never terminates the string: a doubled
// sentinel decodes to one literal 0xFF, and a sentinel followed by a
// format kind keeps both bytes for the template scanner.
func (r *streamReader) readString() (string, error) {
	start := r.pos
	var out []byte
	for r.pos < len(r.code) {
		b := r.code[r.pos]
		r.pos++
		switch b {
		case 0x00:
			return string(out), nil
		case FormatSentinel:
			if r.pos >= len(r.code) {
				return "", newError(ErrStringNotTerminated, "sentinel at end of stream (string at %d)", start)
			}
			next := r.code[r.pos]
			r.pos++
			if next == FormatSentinel {
				out = append(out, FormatSentinel)
			} else {
				out = append(out, FormatSentinel, next)
			}
		default:
			out = append(out, b)
		}
	}
	return "", newError(ErrStringNotTerminated, "string at %d has no terminator", start)
}

// jump repositions the reader at an absolute byte offset.
func (r *streamReader) jump(pos int32) error {
	if pos < 0 || int(pos) > len(r.code) {
		return newError(ErrTruncatedBytecode, "jump target %d outside stream of %d", pos, len(r.code))
	}
	r.pos = int(pos)
	return nil
}
