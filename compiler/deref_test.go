package compiler

import (
	"errors"
	"testing"

	"github.com/distributivgesetz/opendream/vm"
)

// runChain finalizes an emitter with a trailing Return and executes it.
func runChain(t *testing.T, e *Emitter, rt *vm.Runtime, src *vm.ObjectInstance) (vm.Value, error) {
	t.Helper()
	e.Emit(vm.OpReturn)
	code, err := e.Bytes()
	if err != nil {
		t.Fatalf("finalize failed: %v", err)
	}
	return rt.RunProc(&vm.Proc{Name: "chain", Bytecode: code}, src, nil, nil)
}

func nullHead() Expr {
	return &ConstantExpr{Value: vm.NullValue()}
}

func itemTree(t *testing.T) (*vm.Tree, *vm.ObjectDefinition) {
	t.Helper()
	tree := vm.NewTree()
	def := vm.NewObjectDefinition(vm.ParsePath("/obj/item"), nil)
	def.Variables["hp"] = &vm.Variable{Name: "hp", Default: vm.IntValue(100)}
	def.Variables["max"] = &vm.Variable{Name: "max", Default: vm.IntValue(50), Flags: vm.VarConst}
	def.Variables["tier"] = &vm.Variable{Name: "tier", Default: vm.StringValue("rare"), Flags: vm.VarCompiletimeReadonly}
	def.GlobalIDs["score"] = 0
	tree.Register(def)
	return tree, def
}

func TestSafeChainShortCircuits(t *testing.T) {
	// Null head with chain a?.b.c: the whole chain yields null and no
	// operation past the guard runs (a dereference on null would fail).
	d := &Deref{
		Head: nullHead(),
		Ops: []DerefOperation{
			{Kind: DerefFieldSafe, Field: "a"},
			{Kind: DerefField, Field: "b"},
			{Kind: DerefField, Field: "c"},
		},
	}
	e := NewEmitter()
	if err := d.EmitRead(e); err != nil {
		t.Fatalf("EmitRead failed: %v", err)
	}
	rt := vm.NewRuntime(vm.NewTree())
	v, err := runChain(t, e, rt, nil)
	if err != nil {
		t.Fatalf("safe chain on null unwound: %v", err)
	}
	if !v.IsNull() {
		t.Errorf("safe chain = %s, want null", v.Repr())
	}
}

func TestUnsafeChainFaultsOnNull(t *testing.T) {
	d := &Deref{
		Head: nullHead(),
		Ops:  []DerefOperation{{Kind: DerefField, Field: "a"}},
	}
	e := NewEmitter()
	if err := d.EmitRead(e); err != nil {
		t.Fatalf("EmitRead failed: %v", err)
	}
	_, err := runChain(t, e, vm.NewRuntime(vm.NewTree()), nil)
	if kind, ok := vm.KindOf(err); !ok || kind != vm.ErrNullDeref {
		t.Errorf("unsafe chain on null: got %v, want NullDeref", err)
	}
}

func TestReadChainOnLiveObject(t *testing.T) {
	tree, def := itemTree(t)
	obj, err := tree.CreateObject(def.Path, nil)
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if err := obj.SetField("hp", vm.IntValue(75)); err != nil {
		t.Fatalf("set field: %v", err)
	}

	d := &Deref{
		Head: &SrcExpr{Path: def.Path},
		Ops:  []DerefOperation{{Kind: DerefField, Field: "hp"}},
	}
	e := NewEmitter()
	if err := d.EmitRead(e); err != nil {
		t.Fatalf("EmitRead failed: %v", err)
	}
	v, err := runChain(t, e, vm.NewRuntime(tree), obj)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if v.IntVal != 75 {
		t.Errorf("src.hp = %s, want 75", v.Repr())
	}
}

func TestReferenceEmission(t *testing.T) {
	tree, def := itemTree(t)
	obj, _ := tree.CreateObject(def.Path, nil)

	// Assign through the emitted reference: push the value first, then
	// the reference, then Assign.
	d := &Deref{
		Head: &SrcExpr{Path: def.Path},
		Ops:  []DerefOperation{{Kind: DerefField, Field: "hp"}},
	}
	e := NewEmitter()
	e.EmitInt(vm.OpPushInt, 33)
	if err := d.EmitReference(e, KeepNull); err != nil {
		t.Fatalf("EmitReference failed: %v", err)
	}
	e.Emit(vm.OpAssign)
	if _, err := runChain(t, e, vm.NewRuntime(tree), obj); err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if v, _ := obj.GetField("hp"); v.IntVal != 33 {
		t.Errorf("assignment through reference left hp = %s", v.Repr())
	}
}

func TestReferenceOfCallIsRejected(t *testing.T) {
	d := &Deref{
		Head: nullHead(),
		Ops:  []DerefOperation{{Kind: DerefCall, Field: "f", Loc: Location{Line: 3, Column: 9}}},
	}
	err := d.EmitReference(NewEmitter(), KeepNull)
	var shape *ShapeError
	if !errors.As(err, &shape) {
		t.Fatalf("got %v, want ShapeError", err)
	}
	if shape.Loc.Line != 3 {
		t.Errorf("error location = %s, want line 3", shape.Loc)
	}
}

func TestInitialOfCallResultIsRejected(t *testing.T) {
	// Lowering x.f().g under initial() fails at the call stage.
	d := &Deref{
		Head: nullHead(),
		Ops: []DerefOperation{
			{Kind: DerefCall, Field: "f", Loc: Location{Line: 7, Column: 2}},
			{Kind: DerefField, Field: "g"},
		},
	}
	err := d.EmitInitial(NewEmitter())
	var shape *ShapeError
	if !errors.As(err, &shape) {
		t.Fatalf("got %v, want ShapeError", err)
	}
	if shape.Loc.Line != 7 {
		t.Errorf("error location = %s, want line 7", shape.Loc)
	}

	if err := d.EmitIsSaved(NewEmitter()); err == nil {
		t.Error("issaved of a call result did not fail")
	}
}

func TestEmitInitialOnField(t *testing.T) {
	tree, def := itemTree(t)
	obj, _ := tree.CreateObject(def.Path, nil)
	obj.SetField("hp", vm.IntValue(5))

	d := &Deref{
		Head: &SrcExpr{Path: def.Path},
		Ops:  []DerefOperation{{Kind: DerefField, Field: "hp"}},
	}
	e := NewEmitter()
	if err := d.EmitInitial(e); err != nil {
		t.Fatalf("EmitInitial failed: %v", err)
	}
	v, err := runChain(t, e, vm.NewRuntime(tree), obj)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if v.IntVal != 100 {
		t.Errorf("initial(src.hp) = %s, want the default 100", v.Repr())
	}
}

func TestCallInReadChain(t *testing.T) {
	tree, def := itemTree(t)
	def.Procs["power"] = &vm.Proc{
		Name:       "power",
		OwnerPath:  def.Path,
		Parameters: []string{"n"},
		Bytecode: func() []byte {
			e := NewEmitter()
			e.EmitString(vm.OpGetIdentifier, "n")
			e.EmitInt(vm.OpPushInt, 2)
			e.Emit(vm.OpMultiply)
			e.Emit(vm.OpReturn)
			code, _ := e.Bytes()
			return code
		}(),
	}
	obj, _ := tree.CreateObject(def.Path, nil)

	d := &Deref{
		Head: &SrcExpr{Path: def.Path},
		Ops: []DerefOperation{
			{Kind: DerefCall, Field: "power", Args: []CallArg{
				{Value: &ConstantExpr{Value: vm.IntValue(21)}},
			}},
		},
	}
	e := NewEmitter()
	if err := d.EmitRead(e); err != nil {
		t.Fatalf("EmitRead failed: %v", err)
	}
	v, err := runChain(t, e, vm.NewRuntime(tree), obj)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if v.IntVal != 42 {
		t.Errorf("src.power(21) = %s, want 42", v.Repr())
	}
}

func TestIndexChain(t *testing.T) {
	tree, def := itemTree(t)
	obj, _ := tree.CreateObject(def.Path, nil)

	// Build [10, 20] into the local L, then lower L[2] as an index chain
	// headed by the identifier.
	d := &Deref{
		Head: &IdentifierExpr{Name: "L"},
		Ops:  []DerefOperation{{Kind: DerefIndex, Index: &ConstantExpr{Value: vm.IntValue(2)}}},
	}
	e := NewEmitter()
	e.Emit(vm.OpCreateList)
	e.EmitInt(vm.OpPushInt, 10)
	e.Emit(vm.OpListAppend)
	e.EmitInt(vm.OpPushInt, 20)
	e.Emit(vm.OpListAppend)
	e.EmitString(vm.OpDefineVariable, "L")
	if err := d.EmitRead(e); err != nil {
		t.Fatalf("EmitRead failed: %v", err)
	}
	v, err := runChain(t, e, vm.NewRuntime(tree), obj)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if v.IntVal != 20 {
		t.Errorf("L[2] = %s, want 20", v.Repr())
	}
}

func TestCanShortCircuit(t *testing.T) {
	safe := &Deref{Head: nullHead(), Ops: []DerefOperation{
		{Kind: DerefField, Field: "a"},
		{Kind: DerefIndexSafe, Index: &ConstantExpr{Value: vm.IntValue(1)}},
	}}
	if !safe.CanShortCircuit() {
		t.Error("chain with a safe op reports no short circuit")
	}
	plain := &Deref{Head: nullHead(), Ops: []DerefOperation{
		{Kind: DerefField, Field: "a"},
		{Kind: DerefIndex, Index: &ConstantExpr{Value: vm.IntValue(1)}},
	}}
	if plain.CanShortCircuit() {
		t.Error("chain without safe ops reports a short circuit")
	}
}

func TestTryFold(t *testing.T) {
	tree, def := itemTree(t)

	// Const variable folds to its value.
	d := &Deref{
		Head: &SrcExpr{Path: def.Path},
		Ops:  []DerefOperation{{Kind: DerefField, Field: "max"}},
	}
	v, ok := d.TryFold(tree)
	if !ok || v.IntVal != 50 {
		t.Errorf("fold of const = (%s, %v), want 50", v.Repr(), ok)
	}

	// Compile-time read-only folds opportunistically.
	d.Ops[0].Field = "tier"
	v, ok = d.TryFold(tree)
	if !ok || v.StrVal != "rare" {
		t.Errorf("fold of readonly = (%s, %v), want \"rare\"", v.Repr(), ok)
	}

	// Plain variables do not fold.
	d.Ops[0].Field = "hp"
	if _, ok := d.TryFold(tree); ok {
		t.Error("plain variable folded")
	}

	// Unknown receiver type does not fold.
	d2 := &Deref{
		Head: &IdentifierExpr{Name: "x"},
		Ops:  []DerefOperation{{Kind: DerefField, Field: "max"}},
	}
	if _, ok := d2.TryFold(tree); ok {
		t.Error("untyped head folded")
	}

	// Fold through the penultimate operation's recorded path.
	d3 := &Deref{
		Head: &IdentifierExpr{Name: "x"},
		Ops: []DerefOperation{
			{Kind: DerefField, Field: "holder", Path: def.Path},
			{Kind: DerefFieldSafe, Field: "max"},
		},
	}
	v, ok = d3.TryFold(tree)
	if !ok || v.IntVal != 50 {
		t.Errorf("fold through static path = (%s, %v), want 50", v.Repr(), ok)
	}

	// Call terminals never fold.
	d4 := &Deref{
		Head: &SrcExpr{Path: def.Path},
		Ops:  []DerefOperation{{Kind: DerefCall, Field: "max"}},
	}
	if _, ok := d4.TryFold(tree); ok {
		t.Error("call terminal folded")
	}
}

func TestFoldMatchesLoweredChain(t *testing.T) {
	// Folding a const variable yields the same value the lowered chain
	// produces under the same receiver type.
	tree, def := itemTree(t)
	obj, _ := tree.CreateObject(def.Path, nil)

	d := &Deref{
		Head: &SrcExpr{Path: def.Path},
		Ops:  []DerefOperation{{Kind: DerefField, Field: "max"}},
	}
	folded, ok := d.TryFold(tree)
	if !ok {
		t.Fatal("fold failed")
	}

	e := NewEmitter()
	if err := d.EmitRead(e); err != nil {
		t.Fatalf("EmitRead failed: %v", err)
	}
	lowered, err := runChain(t, e, vm.NewRuntime(tree), obj)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if !folded.Equals(lowered) {
		t.Errorf("fold %s != lowered %s", folded.Repr(), lowered.Repr())
	}
}

func TestInvalidOperationRejected(t *testing.T) {
	d := &Deref{Head: nullHead(), Ops: []DerefOperation{{Kind: DerefInvalid}}}
	if err := d.EmitRead(NewEmitter()); err == nil {
		t.Error("invalid operation lowered")
	}
}
