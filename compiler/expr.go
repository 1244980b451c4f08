package compiler

import "github.com/distributivgesetz/opendream/vm"

// Expr is a lowered expression: something that can push its value onto
// the operand stack. The parser hands the dereference lowering a head
// Expr plus the typed operation chain.
type Expr interface {
	// EmitPush emits code leaving the expression's value on the stack.
	EmitPush(e *Emitter) error

	// StaticPath returns the statically known type path of the
	// expression's value, or nil.
	StaticPath() *vm.Path

	// Constant returns the expression's compile-time value, if it has
	// one. Constant expressions fold inside dereference chains.
	Constant() (vm.Value, bool)

	// Location returns the source position, for compile errors.
	Location() Location
}

// ConstantExpr is a literal value with an optional static type path.
type ConstantExpr struct {
	Value vm.Value
	Path  *vm.Path
	Loc   Location
}

func (c *ConstantExpr) EmitPush(e *Emitter) error {
	return emitConstant(e, c.Value)
}

func (c *ConstantExpr) StaticPath() *vm.Path {
	if c.Path != nil {
		return c.Path
	}
	if c.Value.Kind == vm.KindPath {
		return c.Value.PathVal
	}
	return nil
}

func (c *ConstantExpr) Constant() (vm.Value, bool) {
	return c.Value, true
}

func (c *ConstantExpr) Location() Location {
	return c.Loc
}

// emitConstant lowers a foldable value to its push opcode.
func emitConstant(e *Emitter, v vm.Value) error {
	switch v.Kind {
	case vm.KindNull:
		e.Emit(vm.OpPushNull)
	case vm.KindInt:
		e.EmitInt(vm.OpPushInt, v.IntVal)
	case vm.KindDouble:
		e.EmitFloat(vm.OpPushDouble, v.DoubleVal)
	case vm.KindString:
		e.EmitString(vm.OpPushString, v.StrVal)
	case vm.KindPath:
		e.EmitString(vm.OpPushPath, v.PathVal.String())
	case vm.KindResource:
		e.EmitString(vm.OpPushResource, v.RscVal.Path)
	default:
		return shapeErrorf(Location{}, "%s is not a compile-time constant", v.Kind)
	}
	return nil
}

// isFoldable reports whether a value can be embedded in the instruction
// stream. Live object and proc references cannot.
func isFoldable(v vm.Value) bool {
	switch v.Kind {
	case vm.KindNull, vm.KindInt, vm.KindDouble, vm.KindString, vm.KindPath, vm.KindResource:
		return true
	default:
		return false
	}
}

// IdentifierExpr resolves a name in the executing scope at runtime.
type IdentifierExpr struct {
	Name string
	Path *vm.Path // declared type of the identifier, when known
	Loc  Location
}

func (i *IdentifierExpr) EmitPush(e *Emitter) error {
	e.EmitString(vm.OpGetIdentifier, i.Name)
	return nil
}

func (i *IdentifierExpr) StaticPath() *vm.Path {
	return i.Path
}

func (i *IdentifierExpr) Constant() (vm.Value, bool) {
	return vm.NullValue(), false
}

func (i *IdentifierExpr) Location() Location {
	return i.Loc
}

// SrcExpr pushes the executing proc's src.
type SrcExpr struct {
	Path *vm.Path
	Loc  Location
}

func (s *SrcExpr) EmitPush(e *Emitter) error {
	e.Emit(vm.OpPushSrc)
	return nil
}

func (s *SrcExpr) StaticPath() *vm.Path {
	return s.Path
}

func (s *SrcExpr) Constant() (vm.Value, bool) {
	return vm.NullValue(), false
}

func (s *SrcExpr) Location() Location {
	return s.Loc
}
