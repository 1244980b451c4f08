package vm

import "unsafe"

// ObjectInstance is a live value of some type: a pointer to its definition
// plus the mutable field map. List instances additionally carry their list
// payload.
type ObjectInstance struct {
	Def    *ObjectDefinition
	List   *List // non-nil only for /list instances
	fields map[string]Value

	deleted bool
}

// NewObjectInstance creates an instance of def with no fields set; reads
// fall back to the definition's defaults.
func NewObjectInstance(def *ObjectDefinition) *ObjectInstance {
	return &ObjectInstance{Def: def, fields: make(map[string]Value)}
}

// GetField reads a field, falling back to the variable's default value.
// Unknown names fail.
func (o *ObjectInstance) GetField(name string) (Value, error) {
	if v, ok := o.fields[name]; ok {
		return v, nil
	}
	if def, ok := o.Def.GetVariable(name); ok {
		return def.Default, nil
	}
	return NullValue(), newError(ErrUnknownIdentifier, "%s has no variable %q", o.Def.Path, name)
}

// SetField writes a field. Constant variables refuse assignment; unknown
// names fail.
func (o *ObjectInstance) SetField(name string, v Value) error {
	def, ok := o.Def.GetVariable(name)
	if !ok {
		return newError(ErrUnknownIdentifier, "%s has no variable %q", o.Def.Path, name)
	}
	if def.IsConst() {
		return newError(ErrTypeMismatch, "cannot assign constant %s.%s", o.Def.Path, name)
	}
	o.fields[name] = v
	return nil
}

// HasField reports whether name names a variable of the instance's type.
func (o *ObjectInstance) HasField(name string) bool {
	_, ok := o.Def.GetVariable(name)
	return ok
}

// Delete runs the type's removal hook and marks the instance dead.
func (o *ObjectInstance) Delete() {
	if o.deleted {
		return
	}
	if m := o.Def.FindMetaobject(); m != nil && m.OnObjectDeleted != nil {
		m.OnObjectDeleted(o)
	}
	o.deleted = true
}

// IsDeleted reports whether Delete ran.
func (o *ObjectInstance) IsDeleted() bool {
	return o.deleted
}

// uintptrOf exposes the instance address for associative-key derivation.
func uintptrOf(o *ObjectInstance) uintptr {
	return uintptr(unsafe.Pointer(o))
}
