package compiler

import (
	"bytes"
	"testing"

	"github.com/distributivgesetz/opendream/vm"
)

func TestEmitterLabels(t *testing.T) {
	e := NewEmitter()
	end := e.NewLabel()
	e.EmitJump(vm.OpJump, end)      // 5 bytes
	e.EmitInt(vm.OpPushInt, 1)      // skipped
	e.BindLabel(end)                // offset 10
	e.EmitInt(vm.OpPushInt, 2)
	e.Emit(vm.OpReturn)

	code, err := e.Bytes()
	if err != nil {
		t.Fatalf("Bytes failed: %v", err)
	}
	// The patched target is the absolute offset 10.
	if got := code[1:5]; !bytes.Equal(got, []byte{0, 0, 0, 10}) {
		t.Errorf("patched target = %v, want offset 10", got)
	}

	// Execute to prove the patch lands past the skipped push.
	rt := vm.NewRuntime(vm.NewTree())
	v, err := rt.RunProc(&vm.Proc{Name: "jump", Bytecode: code}, nil, nil, nil)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if v.IntVal != 2 {
		t.Errorf("result = %s, want 2", v.Repr())
	}
}

func TestEmitterUnboundLabel(t *testing.T) {
	e := NewEmitter()
	e.EmitJump(vm.OpJump, e.NewLabel())
	if _, err := e.Bytes(); err == nil {
		t.Error("unbound label did not fail")
	}
}

func TestEmitterBackwardJump(t *testing.T) {
	// A loop that counts down from 3 proves backward targets patch too.
	e := NewEmitter()
	e.EmitInt(vm.OpPushInt, 3)
	e.EmitString(vm.OpDefineVariable, "n")
	loop := e.NewLabel()
	done := e.NewLabel()
	e.BindLabel(loop)
	e.EmitString(vm.OpGetIdentifier, "n")
	e.EmitJump(vm.OpJumpIfFalse, done)
	e.EmitString(vm.OpGetIdentifier, "n")
	e.EmitInt(vm.OpPushInt, 1)
	e.Emit(vm.OpSubtract)
	e.EmitString(vm.OpGetIdentifier, "n")
	e.Emit(vm.OpAssign)
	e.Emit(vm.OpPop)
	e.EmitJump(vm.OpJump, loop)
	e.BindLabel(done)
	e.EmitString(vm.OpGetIdentifier, "n")
	e.Emit(vm.OpReturn)

	code, err := e.Bytes()
	if err != nil {
		t.Fatalf("Bytes failed: %v", err)
	}
	rt := vm.NewRuntime(vm.NewTree())
	v, err := rt.RunProc(&vm.Proc{Name: "loop", Bytecode: code}, nil, nil, nil)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if v.IntVal != 0 {
		t.Errorf("countdown result = %s, want 0", v.Repr())
	}
}

func TestEmitStringEscapesSentinel(t *testing.T) {
	// A literal 0xFF byte in a string survives the round trip.
	e := NewEmitter()
	e.EmitString(vm.OpPushString, "a\xffb")
	e.Emit(vm.OpReturn)
	code, err := e.Bytes()
	if err != nil {
		t.Fatalf("Bytes failed: %v", err)
	}
	rt := vm.NewRuntime(vm.NewTree())
	v, err := rt.RunProc(&vm.Proc{Name: "esc", Bytecode: code}, nil, nil, nil)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if v.StrVal != "a\xffb" {
		t.Errorf("round-tripped string = %q", v.StrVal)
	}
}

func TestFormatTemplate(t *testing.T) {
	tpl := FormatTemplate("x=", vm.FormatStringify, "y")
	want := []byte{'x', '=', vm.FormatSentinel, vm.FormatStringify, 'y'}
	if !bytes.Equal(tpl, want) {
		t.Errorf("template = %v, want %v", tpl, want)
	}
}

func TestEmitPushArgumentsEncoding(t *testing.T) {
	e := NewEmitter()
	e.EmitPushArguments([]ArgRecord{{}, {Name: "k"}})
	code, err := e.Bytes()
	if err != nil {
		t.Fatalf("Bytes failed: %v", err)
	}
	want := []byte{
		byte(vm.OpPushArguments),
		0, 0, 0, 2, // count
		0,                // unnamed
		1, 'k', 0x00,     // named "k"
	}
	if !bytes.Equal(code, want) {
		t.Errorf("encoding = %v, want %v", code, want)
	}
}
