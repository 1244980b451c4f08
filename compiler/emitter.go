package compiler

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/distributivgesetz/opendream/vm"
)

// Label names a forward jump target. Jumps referencing a label may be
// emitted before the label is bound; Bytes patches them all.
type Label int

type jumpPatch struct {
	pos   int // offset of the 4 placeholder bytes
	label Label
}

// Emitter builds a byte stream in the vm's operand encoding: big-endian
// 32-bit integers, IEEE 754 doubles, null-terminated strings with 0xFF
// escaping, and absolute 32-bit jump positions.
type Emitter struct {
	code    []byte
	labels  []int // bound position per label, -1 while unbound
	patches []jumpPatch
}

// NewEmitter creates an empty emitter.
func NewEmitter() *Emitter {
	return &Emitter{code: make([]byte, 0, 64)}
}

// Len returns the current code length.
func (e *Emitter) Len() int {
	return len(e.code)
}

// Emit appends a bare opcode.
func (e *Emitter) Emit(op vm.Opcode) {
	e.code = append(e.code, byte(op))
}

// EmitInt appends an opcode with a 32-bit integer operand.
func (e *Emitter) EmitInt(op vm.Opcode, v int32) {
	e.code = append(e.code, byte(op))
	e.code = binary.BigEndian.AppendUint32(e.code, uint32(v))
}

// EmitFloat appends an opcode with a 64-bit float operand.
func (e *Emitter) EmitFloat(op vm.Opcode, f float64) {
	e.code = append(e.code, byte(op))
	e.code = binary.BigEndian.AppendUint64(e.code, math.Float64bits(f))
}

// EmitString appends an opcode with a null-terminated string operand.
// A literal 0xFF in the string is escaped so the reader keeps it intact.
func (e *Emitter) EmitString(op vm.Opcode, s string) {
	e.code = append(e.code, byte(op))
	e.appendString(s)
}

func (e *Emitter) appendString(s string) {
	for n := 0; n < len(s); n++ {
		if s[n] == vm.FormatSentinel {
			e.code = append(e.code, vm.FormatSentinel)
		}
		e.code = append(e.code, s[n])
	}
	e.code = append(e.code, 0x00)
}

// EmitFormatString appends OpFormatString with a raw template. The
// template already contains its sentinel sequences, so it bypasses
// escaping; callers build it with FormatTemplate.
func (e *Emitter) EmitFormatString(template []byte) {
	e.code = append(e.code, byte(vm.OpFormatString))
	e.code = append(e.code, template...)
	e.code = append(e.code, 0x00)
}

// FormatTemplate assembles a format template from literal text and
// formatting kinds. Pass a string for literal text and a format kind byte
// (vm.FormatStringify, vm.FormatRef) for each inserted value.
func FormatTemplate(parts ...interface{}) []byte {
	var out []byte
	for _, p := range parts {
		switch v := p.(type) {
		case string:
			for n := 0; n < len(v); n++ {
				if v[n] == vm.FormatSentinel {
					out = append(out, vm.FormatSentinel)
				}
				out = append(out, v[n])
			}
		case byte:
			out = append(out, vm.FormatSentinel, v)
		}
	}
	return out
}

// NewLabel allocates an unbound label.
func (e *Emitter) NewLabel() Label {
	e.labels = append(e.labels, -1)
	return Label(len(e.labels) - 1)
}

// BindLabel binds a label to the current position.
func (e *Emitter) BindLabel(l Label) {
	e.labels[l] = len(e.code)
}

// EmitJump appends a jump-family opcode targeting a label, patched when
// the stream is finalized.
func (e *Emitter) EmitJump(op vm.Opcode, l Label) {
	e.code = append(e.code, byte(op))
	e.patches = append(e.patches, jumpPatch{pos: len(e.code), label: l})
	e.code = append(e.code, 0xFF, 0xFF, 0xFF, 0xFF)
}

// ArgRecord describes one argument of a call site for EmitPushArguments.
type ArgRecord struct {
	Name string // empty for positional
}

// EmitPushArguments appends the tuple-collection opcode. The caller must
// have pushed the argument values in reverse order beforehand.
func (e *Emitter) EmitPushArguments(records []ArgRecord) {
	e.code = append(e.code, byte(vm.OpPushArguments))
	e.code = binary.BigEndian.AppendUint32(e.code, uint32(len(records)))
	for _, rec := range records {
		if rec.Name != "" {
			e.code = append(e.code, 1)
			e.appendString(rec.Name)
		} else {
			e.code = append(e.code, 0)
		}
	}
}

// Bytes finalizes the stream, patching every label jump. Unbound labels
// are an error.
func (e *Emitter) Bytes() ([]byte, error) {
	for _, p := range e.patches {
		target := e.labels[p.label]
		if target < 0 {
			return nil, fmt.Errorf("compiler: jump at %d references unbound label %d", p.pos, p.label)
		}
		binary.BigEndian.PutUint32(e.code[p.pos:], uint32(target))
	}
	return e.code, nil
}
