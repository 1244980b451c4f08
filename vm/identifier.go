package vm

// Identifier is a writable reference handle. Identifiers live on the
// operand stack between the opcode that produced them and the one that
// consumes them, or inside an argument tuple until the callee materializes
// it (a caller tuple forwarded by `..` carries them into the parent proc).
type Identifier interface {
	// Get reads the referenced slot.
	Get() (Value, error)
	// Assign writes the referenced slot.
	Assign(v Value) error
}

// LocalIdentifier references a local variable binding in a scope.
type LocalIdentifier struct {
	Scope   *Scope
	VarName string
}

func (id *LocalIdentifier) Get() (Value, error) {
	return id.Scope.Get(id.VarName)
}

func (id *LocalIdentifier) Assign(v Value) error {
	id.Scope.Assign(id.VarName, v)
	return nil
}

// FieldIdentifier references a field of an object instance. When the name
// resolves to a proc rather than a field, Get yields the proc reference.
type FieldIdentifier struct {
	Object *ObjectInstance
	Field  string
}

func (id *FieldIdentifier) Get() (Value, error) {
	if id.Object.HasField(id.Field) {
		return id.Object.GetField(id.Field)
	}
	if p, ok := id.Object.Def.GetProc(id.Field); ok {
		return ProcRefValue(p), nil
	}
	return id.Object.GetField(id.Field)
}

func (id *FieldIdentifier) Assign(v Value) error {
	return id.Object.SetField(id.Field, v)
}

// GlobalIdentifier references a slot in the global table.
type GlobalIdentifier struct {
	Globals *GlobalTable
	ID      int
}

func (id *GlobalIdentifier) Get() (Value, error) {
	return id.Globals.Get(id.ID)
}

func (id *GlobalIdentifier) Assign(v Value) error {
	return id.Globals.Set(id.ID, v)
}

// ListIndexIdentifier references one keyed slot of a list.
type ListIndexIdentifier struct {
	List *List
	Key  Value
}

func (id *ListIndexIdentifier) Get() (Value, error) {
	return id.List.Get(id.Key)
}

func (id *ListIndexIdentifier) Assign(v Value) error {
	return id.List.Set(id.Key, v)
}

// SelfProcIdentifier references the running proc activation: reading or
// assigning it works on the default return slot, and calling it re-enters
// the current proc. With Super set it references the parent type's
// override instead.
type SelfProcIdentifier struct {
	Interp *Interpreter
	Super  bool
}

func (id *SelfProcIdentifier) Get() (Value, error) {
	if id.Super {
		if p, ok := id.Interp.superProc(); ok {
			return ProcRefValue(p), nil
		}
		return NullValue(), nil
	}
	return id.Interp.defaultReturn, nil
}

func (id *SelfProcIdentifier) Assign(v Value) error {
	if id.Super {
		return newError(ErrTypeMismatch, "cannot assign to ..")
	}
	id.Interp.defaultReturn = v
	return nil
}

// builtinProcIdentifier names one of the intrinsic callables (initial,
// issaved). It is only meaningful as a Call target.
type builtinProcIdentifier struct {
	name string
}

func (id *builtinProcIdentifier) Get() (Value, error) {
	return NullValue(), newError(ErrTypeMismatch, "%s is not a value", id.name)
}

func (id *builtinProcIdentifier) Assign(Value) error {
	return newError(ErrTypeMismatch, "cannot assign to %s", id.name)
}
