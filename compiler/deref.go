package compiler

import "github.com/distributivgesetz/opendream/vm"

// DerefKind classifies one operation of a dereference chain. Safe
// variants short-circuit on a null receiver; Search variants resolve the
// name through the base-class chain.
type DerefKind int

const (
	DerefInvalid DerefKind = iota
	DerefField
	DerefFieldSearch
	DerefFieldSafe
	DerefFieldSafeSearch
	DerefIndex
	DerefIndexSafe
	DerefCall
	DerefCallSearch
	DerefCallSafe
	DerefCallSafeSearch
)

// IsSafe reports the ?. / ?[] / ?() family.
func (k DerefKind) IsSafe() bool {
	switch k {
	case DerefFieldSafe, DerefFieldSafeSearch, DerefIndexSafe, DerefCallSafe, DerefCallSafeSearch:
		return true
	}
	return false
}

// IsField reports the field access kinds.
func (k DerefKind) IsField() bool {
	switch k {
	case DerefField, DerefFieldSearch, DerefFieldSafe, DerefFieldSafeSearch:
		return true
	}
	return false
}

// IsIndex reports the index access kinds.
func (k DerefKind) IsIndex() bool {
	return k == DerefIndex || k == DerefIndexSafe
}

// IsCall reports the call kinds.
func (k DerefKind) IsCall() bool {
	switch k {
	case DerefCall, DerefCallSearch, DerefCallSafe, DerefCallSafeSearch:
		return true
	}
	return false
}

func (k DerefKind) String() string {
	switch k {
	case DerefField:
		return "field"
	case DerefFieldSearch:
		return "field-search"
	case DerefFieldSafe:
		return "field-safe"
	case DerefFieldSafeSearch:
		return "field-safe-search"
	case DerefIndex:
		return "index"
	case DerefIndexSafe:
		return "index-safe"
	case DerefCall:
		return "call"
	case DerefCallSearch:
		return "call-search"
	case DerefCallSafe:
		return "call-safe"
	case DerefCallSafeSearch:
		return "call-safe-search"
	default:
		return "invalid"
	}
}

// CallArg is one argument at a call operation.
type CallArg struct {
	Name  string // empty for positional
	Value Expr
}

// DerefOperation is one typed link of a chain. Path records the static
// type of the value after applying the operation, when the AST knows it.
type DerefOperation struct {
	Kind  DerefKind
	Field string    // field and call kinds
	Index Expr      // index kinds
	Args  []CallArg // call kinds
	Path  *vm.Path
	Loc   Location
}

// ShortCircuitMode selects what a null receiver leaves behind when a safe
// operation trips.
type ShortCircuitMode int

const (
	// KeepNull leaves the null on the stack as the chain's result.
	KeepNull ShortCircuitMode = iota
	// PopNull removes the null receiver before jumping.
	PopNull
)

// Deref is a head expression with its chain of typed operations. One
// Deref emits for four consumers: read, reference (l-value), initial and
// issaved.
type Deref struct {
	Head Expr
	Ops  []DerefOperation
	Loc  Location
}

// CanShortCircuit reports whether any operation is a safe variant, which
// tells callers whether the chain needs a fused end label.
func (d *Deref) CanShortCircuit() bool {
	for _, op := range d.Ops {
		if op.Kind.IsSafe() {
			return true
		}
	}
	return false
}

// EmitRead lowers the chain as an r-value: the whole chain yields null as
// soon as a safe operation sees a null receiver.
func (d *Deref) EmitRead(e *Emitter) error {
	return d.emitChain(e, KeepNull, func(e *Emitter, op *DerefOperation) error {
		return d.emitOperation(e, op)
	})
}

// EmitReference lowers the chain as an l-value: the terminal operation
// leaves a first-class reference handle. Call results are not l-values.
func (d *Deref) EmitReference(e *Emitter, mode ShortCircuitMode) error {
	return d.emitChain(e, mode, func(e *Emitter, op *DerefOperation) error {
		switch {
		case op.Kind.IsField():
			e.EmitString(vm.OpDereference, op.Field)
		case op.Kind.IsIndex():
			if err := op.Index.EmitPush(e); err != nil {
				return err
			}
			e.Emit(vm.OpIndexList)
		case op.Kind.IsCall():
			return shapeErrorf(op.Loc, "cannot assign to the result of a call")
		default:
			return shapeErrorf(op.Loc, "operation %s not implemented", op.Kind)
		}
		return nil
	})
}

// EmitInitial lowers the chain under initial(): a terminal field reads the
// definition-time default instead of the live value; a terminal list index
// reads the slot's current value.
func (d *Deref) EmitInitial(e *Emitter) error {
	return d.emitUnary(e, vm.OpInitial, "initial")
}

// EmitIsSaved lowers the chain under issaved().
func (d *Deref) EmitIsSaved(e *Emitter) error {
	return d.emitUnary(e, vm.OpIsSaved, "issaved")
}

func (d *Deref) emitUnary(e *Emitter, unary vm.Opcode, what string) error {
	// The referenced variable must be rooted in a typed field: a call
	// result anywhere in the chain has no definition-time state.
	for idx := range d.Ops {
		if d.Ops[idx].Kind.IsCall() {
			return shapeErrorf(d.Ops[idx].Loc, "%s of a call result", what)
		}
	}
	return d.emitChain(e, KeepNull, func(e *Emitter, op *DerefOperation) error {
		switch {
		case op.Kind.IsField():
			e.EmitString(vm.OpPushString, op.Field)
			e.Emit(unary)
		case op.Kind.IsIndex():
			if err := op.Index.EmitPush(e); err != nil {
				return err
			}
			e.Emit(unary)
		case op.Kind.IsCall():
			return shapeErrorf(op.Loc, "%s of a call result", what)
		default:
			return shapeErrorf(op.Loc, "operation %s not implemented", op.Kind)
		}
		return nil
	})
}

// emitChain is the shared emission protocol: push the head, allocate one
// end label for the whole chain, guard each safe operation, dispatch the
// terminal to the consumer, bind the label.
func (d *Deref) emitChain(e *Emitter, mode ShortCircuitMode, terminal func(*Emitter, *DerefOperation) error) error {
	if len(d.Ops) == 0 {
		return shapeErrorf(d.Loc, "empty dereference chain")
	}
	if err := d.Head.EmitPush(e); err != nil {
		return err
	}
	end := e.NewLabel()
	guard := vm.OpJumpIfNull
	if mode == PopNull {
		guard = vm.OpJumpIfNullPop
	}
	for idx := range d.Ops {
		op := &d.Ops[idx]
		if op.Kind == DerefInvalid {
			return shapeErrorf(op.Loc, "operation %s not implemented", op.Kind)
		}
		if op.Kind.IsSafe() {
			e.EmitJump(guard, end)
		}
		if idx == len(d.Ops)-1 {
			if err := terminal(e, op); err != nil {
				return err
			}
		} else if err := d.emitOperation(e, op); err != nil {
			return err
		}
	}
	e.BindLabel(end)
	return nil
}

// emitOperation lowers one non-terminal (read-semantics) operation.
func (d *Deref) emitOperation(e *Emitter, op *DerefOperation) error {
	switch {
	case op.Kind.IsField():
		e.EmitString(vm.OpDereference, op.Field)
	case op.Kind.IsIndex():
		if err := op.Index.EmitPush(e); err != nil {
			return err
		}
		e.Emit(vm.OpIndexList)
	case op.Kind.IsCall():
		e.EmitString(vm.OpDereference, op.Field)
		records := make([]ArgRecord, len(op.Args))
		for n := range op.Args {
			records[n] = ArgRecord{Name: op.Args[n].Name}
		}
		// Values go on the stack in reverse so the tuple collector pops
		// them back in declaration order.
		for n := len(op.Args) - 1; n >= 0; n-- {
			if err := op.Args[n].Value.EmitPush(e); err != nil {
				return err
			}
		}
		e.EmitPushArguments(records)
		e.Emit(vm.OpCall)
	default:
		return shapeErrorf(op.Loc, "operation %s not implemented", op.Kind)
	}
	return nil
}

// TryFold attempts compile-time evaluation of the chain. A chain folds
// when the penultimate static path is known and the terminal operation is
// a field of that type whose variable is constant (fold to its value when
// the value itself can live in the instruction stream) or marked
// compile-time read-only (fold opportunistically, always reporting
// success).
func (d *Deref) TryFold(tree vm.ObjectTree) (vm.Value, bool) {
	if len(d.Ops) == 0 {
		return d.Head.Constant()
	}
	terminal := d.Ops[len(d.Ops)-1]
	if !terminal.Kind.IsField() {
		return vm.NullValue(), false
	}
	var receiverPath *vm.Path
	if len(d.Ops) == 1 {
		receiverPath = d.Head.StaticPath()
	} else {
		receiverPath = d.Ops[len(d.Ops)-2].Path
	}
	if receiverPath == nil {
		return vm.NullValue(), false
	}
	def, ok := tree.GetDefinition(receiverPath)
	if !ok {
		return vm.NullValue(), false
	}
	variable, ok := def.GetVariable(terminal.Field)
	if !ok {
		return vm.NullValue(), false
	}
	if variable.IsConst() {
		if isFoldable(variable.Default) {
			return variable.Default, true
		}
		return vm.NullValue(), false
	}
	if variable.Flags&vm.VarCompiletimeReadonly != 0 {
		return variable.Default, true
	}
	return vm.NullValue(), false
}
