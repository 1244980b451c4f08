package vm

import (
	"strconv"
	"strings"
)

// ValueKind identifies the variant held by a Value.
type ValueKind int

const (
	KindNull ValueKind = iota
	KindInt
	KindDouble
	KindString
	KindPath
	KindObject
	KindResource
	KindProc
)

// String returns the kind's name as used in error messages.
func (k ValueKind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindInt:
		return "integer"
	case KindDouble:
		return "double"
	case KindString:
		return "string"
	case KindPath:
		return "path"
	case KindObject:
		return "object"
	case KindResource:
		return "resource"
	case KindProc:
		return "proc"
	default:
		return "ValueKind(" + strconv.Itoa(int(k)) + ")"
	}
}

// Value is the tagged runtime value. The zero Value is null.
type Value struct {
	Kind ValueKind

	IntVal    int32
	DoubleVal float64
	StrVal    string
	PathVal   *Path
	ObjVal    *ObjectInstance
	RscVal    *Resource
	ProcVal   *Proc
}

// Resource is an opaque handle to a file-like asset resolved by the host's
// resource manager.
type Resource struct {
	ID   int64
	Path string
}

// NullValue returns the null value.
func NullValue() Value {
	return Value{Kind: KindNull}
}

// IntValue creates an integer value.
func IntValue(n int32) Value {
	return Value{Kind: KindInt, IntVal: n}
}

// DoubleValue creates a double value.
func DoubleValue(f float64) Value {
	return Value{Kind: KindDouble, DoubleVal: f}
}

// StringValue creates a string value.
func StringValue(s string) Value {
	return Value{Kind: KindString, StrVal: s}
}

// PathValue creates a path value.
func PathValue(p *Path) Value {
	return Value{Kind: KindPath, PathVal: p}
}

// ObjectValue creates an object reference. A nil instance is null.
func ObjectValue(obj *ObjectInstance) Value {
	if obj == nil {
		return NullValue()
	}
	return Value{Kind: KindObject, ObjVal: obj}
}

// ResourceValue creates a resource handle value.
func ResourceValue(r *Resource) Value {
	return Value{Kind: KindResource, RscVal: r}
}

// ProcRefValue creates a proc reference value.
func ProcRefValue(p *Proc) Value {
	return Value{Kind: KindProc, ProcVal: p}
}

// IsNull reports whether v is the null value.
func (v Value) IsNull() bool {
	return v.Kind == KindNull
}

// IsNumeric reports whether v is an integer or double.
func (v Value) IsNumeric() bool {
	return v.Kind == KindInt || v.Kind == KindDouble
}

// AsNumber returns the numeric value of v, widening integers.
func (v Value) AsNumber() float64 {
	if v.Kind == KindInt {
		return float64(v.IntVal)
	}
	return v.DoubleVal
}

// AsList returns the list payload when v references a list instance.
func (v Value) AsList() (*List, bool) {
	if v.Kind == KindObject && v.ObjVal != nil && v.ObjVal.List != nil {
		return v.ObjVal.List, true
	}
	return nil, false
}

// IsTruthy reports conditional truth: null, numeric zero and the empty
// string are false; everything else is true.
func (v Value) IsTruthy() bool {
	switch v.Kind {
	case KindNull:
		return false
	case KindInt:
		return v.IntVal != 0
	case KindDouble:
		return v.DoubleVal != 0
	case KindString:
		return v.StrVal != ""
	default:
		return true
	}
}

// Equals implements the language's type-first equality. Cross-type numeric
// compares coerce; paths compare element-wise; objects and procs compare
// by identity; resources compare by identity or by equal path; null
// equals only null. Any mix of object
// with number or string is unequal.
func (v Value) Equals(o Value) bool {
	if v.IsNumeric() && o.IsNumeric() {
		return v.AsNumber() == o.AsNumber()
	}
	if v.Kind != o.Kind {
		return false
	}
	switch v.Kind {
	case KindNull:
		return true
	case KindString:
		return v.StrVal == o.StrVal
	case KindPath:
		return v.PathVal.Equals(o.PathVal)
	case KindObject:
		return v.ObjVal == o.ObjVal
	case KindResource:
		return v.RscVal == o.RscVal || (v.RscVal != nil && o.RscVal != nil && v.RscVal.Path == o.RscVal.Path)
	case KindProc:
		return v.ProcVal == o.ProcVal
	default:
		return false
	}
}

// Stringify renders v as the language's text form: null is empty, numbers
// use their shortest representation, paths and resources use their path.
func (v Value) Stringify() string {
	switch v.Kind {
	case KindNull:
		return ""
	case KindInt:
		return strconv.FormatInt(int64(v.IntVal), 10)
	case KindDouble:
		return strconv.FormatFloat(v.DoubleVal, 'g', -1, 64)
	case KindString:
		return v.StrVal
	case KindPath:
		return v.PathVal.String()
	case KindObject:
		if v.ObjVal == nil {
			return ""
		}
		if name, err := v.ObjVal.GetField("name"); err == nil && name.Kind == KindString {
			return name.StrVal
		}
		return v.ObjVal.Def.Path.String()
	case KindResource:
		if v.RscVal == nil {
			return ""
		}
		return v.RscVal.Path
	case KindProc:
		if v.ProcVal == nil {
			return ""
		}
		return v.ProcVal.Name
	default:
		return ""
	}
}

// Repr renders v for diagnostics, quoting strings.
func (v Value) Repr() string {
	if v.Kind == KindString {
		return strconv.Quote(v.StrVal)
	}
	if v.Kind == KindNull {
		return "null"
	}
	s := v.Stringify()
	if s == "" {
		s = v.Kind.String()
	}
	return s
}

// assocKey derives the associative-map key for v. Only strings, paths,
// objects and resources may key the associative half of a list.
func (v Value) assocKey() (string, bool) {
	switch v.Kind {
	case KindString:
		return "s:" + v.StrVal, true
	case KindPath:
		return "p:" + v.PathVal.String(), true
	case KindObject:
		var b strings.Builder
		b.WriteString("o:")
		b.WriteString(strconv.FormatUint(uint64(uintptrOf(v.ObjVal)), 16))
		return b.String(), true
	case KindResource:
		return "r:" + v.RscVal.Path, true
	default:
		return "", false
	}
}
