package vm

// Metaobject supplies per-type operator overrides and lifecycle hooks. It
// is a table of functions rather than an interface so that dispatch stays
// a flat per-type lookup with no hidden polymorphism in Value.
type Metaobject struct {
	Add      func(a, b Value) (Value, error)
	Subtract func(a, b Value) (Value, error)
	Append   func(a, b Value) (Value, error)
	Remove   func(a, b Value) (Value, error)
	Combine  func(a, b Value) (Value, error)
	Output   func(a, b Value) (Value, error)

	OnObjectCreated func(obj *ObjectInstance, args *ProcArgs) error
	OnObjectDeleted func(obj *ObjectInstance)
}

// ContentsMetaobject wires an atom-like type so that instantiation gives
// every instance a contents list; += adds to it and -= removes from it.
func ContentsMetaobject() *Metaobject {
	return &Metaobject{
		OnObjectCreated: func(obj *ObjectInstance, args *ProcArgs) error {
			obj.fields["contents"] = NewList().Value()
			return nil
		},
		Append: func(a, b Value) (Value, error) {
			contents, err := a.ObjVal.GetField("contents")
			if err != nil {
				return NullValue(), err
			}
			if l, ok := contents.AsList(); ok {
				l.Add(b)
			}
			return a, nil
		},
		Remove: func(a, b Value) (Value, error) {
			contents, err := a.ObjVal.GetField("contents")
			if err != nil {
				return NullValue(), err
			}
			if l, ok := contents.AsList(); ok {
				l.Remove(b)
			}
			return a, nil
		},
	}
}

// baseListDef backs every list instance. NewTree registers this same
// definition so that list objects always resolve through the tree.
var baseListDef = NewObjectDefinition(PathList, nil)
