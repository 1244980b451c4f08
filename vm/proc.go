package vm

// Proc is one compiled procedure: its byte stream plus binding metadata.
type Proc struct {
	Name       string
	OwnerPath  *Path
	Parameters []string
	Bytecode   []byte

	SourceFile string
	Line       int
}

// ArgValue is one argument slot: either a plain value or an identifier
// handle. Identifiers survive until invocation so the initial/issaved
// intrinsics can inspect the referenced variable instead of its value.
type ArgValue struct {
	Ident Identifier
	value Value
}

// ValueArg wraps a plain value.
func ValueArg(v Value) ArgValue {
	return ArgValue{value: v}
}

// IdentArg wraps an identifier handle.
func IdentArg(id Identifier) ArgValue {
	return ArgValue{Ident: id}
}

// Materialize resolves the slot to its current value.
func (a ArgValue) Materialize() (Value, error) {
	if a.Ident != nil {
		return a.Ident.Get()
	}
	return a.value, nil
}

// ProcArgs is the argument tuple handed to an invocation: a positional
// vector plus a named map.
type ProcArgs struct {
	Positional []ArgValue
	Named      map[string]ArgValue
}

// NewProcArgs creates an empty tuple.
func NewProcArgs() *ProcArgs {
	return &ProcArgs{Named: make(map[string]ArgValue)}
}

// AddPositional appends an ordered argument.
func (p *ProcArgs) AddPositional(a ArgValue) {
	p.Positional = append(p.Positional, a)
}

// AddNamed sets a named argument.
func (p *ProcArgs) AddNamed(name string, a ArgValue) {
	if p.Named == nil {
		p.Named = make(map[string]ArgValue)
	}
	p.Named[name] = a
}

// IsEmpty reports a tuple with no arguments at all.
func (p *ProcArgs) IsEmpty() bool {
	return p == nil || (len(p.Positional) == 0 && len(p.Named) == 0)
}

// Materialize resolves every slot, returning the positional values and the
// named values.
func (p *ProcArgs) Materialize() ([]Value, map[string]Value, error) {
	if p == nil {
		return nil, nil, nil
	}
	ordered := make([]Value, len(p.Positional))
	for i, a := range p.Positional {
		v, err := a.Materialize()
		if err != nil {
			return nil, nil, err
		}
		ordered[i] = v
	}
	named := make(map[string]Value, len(p.Named))
	for name, a := range p.Named {
		v, err := a.Materialize()
		if err != nil {
			return nil, nil, err
		}
		named[name] = v
	}
	return ordered, named, nil
}

// SplatList flattens a list into an argument tuple: positional entries
// that are string keys of the associative map become named arguments, and
// every other positional value stays ordered.
func SplatList(l *List) *ProcArgs {
	out := NewProcArgs()
	for _, v := range l.Values() {
		if v.Kind == KindString {
			if assoc, ok := l.AssocValue(v); ok {
				out.AddNamed(v.StrVal, ValueArg(assoc))
				continue
			}
		}
		out.AddPositional(ValueArg(v))
	}
	return out
}
