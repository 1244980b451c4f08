package vm

import "math"

// bitMask24 is the 24-bit mask BitNot truncates through; the other bitwise
// operators do not mask their results.
const bitMask24 = 0xFFFFFF

// metaobjectFor returns the metaobject governing v, if v is a live object
// of a type that registered one.
func metaobjectFor(v Value) *Metaobject {
	if v.Kind == KindObject && v.ObjVal != nil {
		return v.ObjVal.Def.FindMetaobject()
	}
	return nil
}

// Add implements the + operator. Numerics promote to the wider type,
// strings concatenate (string+number stringifies the number), and objects
// defer to their metaobject.
func (v Value) Add(o Value) (Value, error) {
	if m := metaobjectFor(v); m != nil && m.Add != nil {
		return m.Add(v, o)
	}
	switch {
	case v.IsNull() && o.IsNumeric():
		return o, nil
	case v.Kind == KindInt && o.Kind == KindInt:
		return IntValue(v.IntVal + o.IntVal), nil
	case v.IsNumeric() && o.IsNumeric():
		return DoubleValue(v.AsNumber() + o.AsNumber()), nil
	case v.Kind == KindString && o.Kind == KindString:
		return StringValue(v.StrVal + o.StrVal), nil
	case v.Kind == KindString && o.IsNumeric():
		return StringValue(v.StrVal + o.Stringify()), nil
	case v.Kind == KindString && o.IsNull():
		return v, nil
	}
	if l, ok := v.AsList(); ok {
		out := l.Copy(1, 0)
		out.Add(o)
		return out.Value(), nil
	}
	return NullValue(), invalidOperation("+", v, o)
}

// Sub implements the - operator.
func (v Value) Sub(o Value) (Value, error) {
	if m := metaobjectFor(v); m != nil && m.Subtract != nil {
		return m.Subtract(v, o)
	}
	switch {
	case v.IsNull() && o.IsNumeric():
		return o.Neg()
	case v.Kind == KindInt && o.Kind == KindInt:
		return IntValue(v.IntVal - o.IntVal), nil
	case v.IsNumeric() && o.IsNumeric():
		return DoubleValue(v.AsNumber() - o.AsNumber()), nil
	}
	if l, ok := v.AsList(); ok {
		out := l.Copy(1, 0)
		out.Remove(o)
		return out.Value(), nil
	}
	return NullValue(), invalidOperation("-", v, o)
}

// Mul implements the * operator.
func (v Value) Mul(o Value) (Value, error) {
	switch {
	case v.Kind == KindInt && o.Kind == KindInt:
		return IntValue(v.IntVal * o.IntVal), nil
	case v.IsNumeric() && o.IsNumeric():
		return DoubleValue(v.AsNumber() * o.AsNumber()), nil
	}
	return NullValue(), invalidOperation("*", v, o)
}

// Div implements the / operator. All division goes through one numeric
// path and yields a double, integer operands included.
func (v Value) Div(o Value) (Value, error) {
	if !v.IsNumeric() && !v.IsNull() || !o.IsNumeric() {
		return NullValue(), invalidOperation("/", v, o)
	}
	if o.AsNumber() == 0 {
		return NullValue(), newError(ErrDivideByZero, "%s / 0", v.Repr())
	}
	return DoubleValue(v.AsNumber() / o.AsNumber()), nil
}

// Mod implements the % operator.
func (v Value) Mod(o Value) (Value, error) {
	if !v.IsNumeric() || !o.IsNumeric() {
		return NullValue(), invalidOperation("%", v, o)
	}
	if o.AsNumber() == 0 {
		return NullValue(), newError(ErrDivideByZero, "%s %% 0", v.Repr())
	}
	if v.Kind == KindInt && o.Kind == KindInt {
		return IntValue(v.IntVal % o.IntVal), nil
	}
	return DoubleValue(math.Mod(v.AsNumber(), o.AsNumber())), nil
}

// Neg implements unary minus. Null negates to zero.
func (v Value) Neg() (Value, error) {
	switch v.Kind {
	case KindNull:
		return IntValue(0), nil
	case KindInt:
		return IntValue(-v.IntVal), nil
	case KindDouble:
		return DoubleValue(-v.DoubleVal), nil
	}
	return NullValue(), invalidOperation("-", NullValue(), v)
}

// asBits coerces v to an integer for the bitwise operators. Null reads as
// zero; doubles truncate.
func (v Value) asBits() (int32, bool) {
	switch v.Kind {
	case KindNull:
		return 0, true
	case KindInt:
		return v.IntVal, true
	case KindDouble:
		return int32(v.DoubleVal), true
	}
	return 0, false
}

// BitAnd implements the & operator.
func (v Value) BitAnd(o Value) (Value, error) {
	a, okA := v.asBits()
	b, okB := o.asBits()
	if !okA || !okB {
		return NullValue(), invalidOperation("&", v, o)
	}
	return IntValue(a & b), nil
}

// BitOr implements the | operator.
func (v Value) BitOr(o Value) (Value, error) {
	a, okA := v.asBits()
	b, okB := o.asBits()
	if !okA || !okB {
		return NullValue(), invalidOperation("|", v, o)
	}
	return IntValue(a | b), nil
}

// BitXor implements the ^ operator.
func (v Value) BitXor(o Value) (Value, error) {
	a, okA := v.asBits()
	b, okB := o.asBits()
	if !okA || !okB {
		return NullValue(), invalidOperation("^", v, o)
	}
	return IntValue(a ^ b), nil
}

// BitNot implements the ~ operator, truncated to 24 bits.
func (v Value) BitNot() (Value, error) {
	a, ok := v.asBits()
	if !ok {
		return NullValue(), invalidOperation("~", NullValue(), v)
	}
	return IntValue(^a & bitMask24), nil
}

// Shl implements the << operator.
func (v Value) Shl(o Value) (Value, error) {
	a, okA := v.asBits()
	b, okB := o.asBits()
	if !okA || !okB || b < 0 {
		return NullValue(), invalidOperation("<<", v, o)
	}
	return IntValue(a << uint(b)), nil
}

// LessThan implements the < ordering. Only numbers order; null orders as
// zero against a number.
func (v Value) LessThan(o Value) (bool, error) {
	a, b, err := orderOperands(v, o, "<")
	if err != nil {
		return false, err
	}
	return a < b, nil
}

// GreaterThan implements the > ordering.
func (v Value) GreaterThan(o Value) (bool, error) {
	a, b, err := orderOperands(v, o, ">")
	if err != nil {
		return false, err
	}
	return a > b, nil
}

func orderOperands(v, o Value, op string) (float64, float64, error) {
	if (v.IsNumeric() || v.IsNull()) && (o.IsNumeric() || o.IsNull()) {
		var a, b float64
		if !v.IsNull() {
			a = v.AsNumber()
		}
		if !o.IsNull() {
			b = o.AsNumber()
		}
		return a, b, nil
	}
	return 0, 0, invalidOperation(op, v, o)
}

// Append implements the += compound operator. Lists mutate in place;
// everything else behaves like Add.
func (v Value) Append(o Value) (Value, error) {
	if m := metaobjectFor(v); m != nil && m.Append != nil {
		return m.Append(v, o)
	}
	if l, ok := v.AsList(); ok {
		l.Add(o)
		return v, nil
	}
	return v.Add(o)
}

// RemoveFrom implements the -= compound operator.
func (v Value) RemoveFrom(o Value) (Value, error) {
	if m := metaobjectFor(v); m != nil && m.Remove != nil {
		return m.Remove(v, o)
	}
	if l, ok := v.AsList(); ok {
		l.Remove(o)
		return v, nil
	}
	return v.Sub(o)
}

// Combine implements the |= compound operator: bit-or for numbers, add-if-
// absent for lists.
func (v Value) Combine(o Value) (Value, error) {
	if m := metaobjectFor(v); m != nil && m.Combine != nil {
		return m.Combine(v, o)
	}
	if l, ok := v.AsList(); ok {
		if l.Find(o, 1, 0) == 0 {
			l.Add(o)
		}
		return v, nil
	}
	if v.IsNull() {
		return o, nil
	}
	return v.BitOr(o)
}

// Mask implements the &= compound operator: bit-and for numbers, keep-
// only-matching for lists.
func (v Value) Mask(o Value) (Value, error) {
	if l, ok := v.AsList(); ok {
		for i := l.Len(); i >= 1; i-- {
			entry, _ := l.Get(IntValue(int32(i)))
			if !entry.Equals(o) {
				l.cutIndex(i)
			}
		}
		return v, nil
	}
	return v.BitAnd(o)
}

// Output implements the << output operator for objects with a metaobject
// override. Plain left shift handles the numeric case.
func (v Value) Output(o Value) (Value, error) {
	if m := metaobjectFor(v); m != nil && m.Output != nil {
		return m.Output(v, o)
	}
	return v.Shl(o)
}
