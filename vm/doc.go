// Package vm implements the runtime core of the DM language: the tagged
// value model, the hybrid ordered/associative list container, the lexical
// scope chain with mutable identifier handles, proc invocation, and the
// bytecode interpreter that ties them together.
//
// Execution is single-threaded per proc. One Interpreter drives one byte
// stream; nested calls get their own Interpreter over the shared Runtime.
// The operand stack is polymorphic: it holds plain values, identifier
// handles (assignable l-values) and argument tuples, and every pop site
// checks which of the three it received.
//
// The byte stream format is flat: one opcode byte followed by inline
// operands. Strings are null-terminated (0xFF escapes the next byte, which
// is how format templates embed their sentinel markers), integers are
// 4-byte big-endian, floats are 8-byte IEEE 754. See opcodes.go for the
// full instruction set and reader.go for the decoding rules.
package vm
