package compiler

import "github.com/distributivgesetz/opendream/vm"

// ScopeReference is the E::name form: the head must have a statically
// known type, and name resolves against that type's variable table first,
// then its globals. Instance variables read the definition-time default,
// not a live field; globals load directly from the global table.
type ScopeReference struct {
	Head Expr
	Name string
	Loc  Location
}

// Emit lowers the scope reference for reading.
func (s *ScopeReference) Emit(e *Emitter, tree vm.ObjectTree) error {
	def, err := s.definition(tree)
	if err != nil {
		return err
	}
	if _, ok := def.GetVariable(s.Name); ok {
		if err := s.Head.EmitPush(e); err != nil {
			return err
		}
		e.EmitString(vm.OpPushString, s.Name)
		e.Emit(vm.OpInitial)
		return nil
	}
	if id, ok := def.GetGlobalID(s.Name); ok {
		e.EmitInt(vm.OpGetGlobal, int32(id))
		return nil
	}
	return &UnresolvedNameError{Loc: s.Loc, Type: def.Path.String(), Name: s.Name}
}

// TryFold folds the reference through the static variable table.
func (s *ScopeReference) TryFold(tree vm.ObjectTree) (vm.Value, bool) {
	def, err := s.definition(tree)
	if err != nil {
		return vm.NullValue(), false
	}
	variable, ok := def.GetVariable(s.Name)
	if !ok {
		return vm.NullValue(), false
	}
	if variable.IsConst() && isFoldable(variable.Default) {
		return variable.Default, true
	}
	if variable.Flags&vm.VarCompiletimeReadonly != 0 {
		return variable.Default, true
	}
	return vm.NullValue(), false
}

func (s *ScopeReference) definition(tree vm.ObjectTree) (*vm.ObjectDefinition, error) {
	path := s.Head.StaticPath()
	if path == nil {
		return nil, shapeErrorf(s.Loc, "scope reference requires a statically typed head")
	}
	def, ok := tree.GetDefinition(path)
	if !ok {
		return nil, &UnresolvedNameError{Loc: s.Loc, Type: path.String(), Name: s.Name}
	}
	return def, nil
}
