package vm

import "testing"

func TestTruthiness(t *testing.T) {
	tests := []struct {
		name string
		v    Value
		want bool
	}{
		{"null", NullValue(), false},
		{"zero int", IntValue(0), false},
		{"nonzero int", IntValue(3), true},
		{"negative int", IntValue(-1), true},
		{"zero double", DoubleValue(0), false},
		{"nonzero double", DoubleValue(0.5), true},
		{"empty string", StringValue(""), false},
		{"string", StringValue("x"), true},
		{"path", PathValue(ParsePath("/mob")), true},
		{"object", ObjectValue(NewObjectInstance(baseListDef)), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.v.IsTruthy(); got != tt.want {
				t.Errorf("IsTruthy(%s) = %v, want %v", tt.v.Repr(), got, tt.want)
			}
		})
	}
}

func TestEqualityReflexive(t *testing.T) {
	obj := NewObjectInstance(baseListDef)
	values := []Value{
		NullValue(),
		IntValue(7),
		IntValue(-7),
		DoubleValue(3.25),
		StringValue(""),
		StringValue("hello"),
		PathValue(ParsePath("/mob/enemy")),
		ObjectValue(obj),
		ResourceValue(&Resource{Path: "icon.dmi"}),
	}
	for _, v := range values {
		if !v.Equals(v) {
			t.Errorf("%s does not equal itself", v.Repr())
		}
	}
}

func TestEquality(t *testing.T) {
	a := NewObjectInstance(baseListDef)
	b := NewObjectInstance(baseListDef)
	tests := []struct {
		name string
		x, y Value
		want bool
	}{
		{"int vs double coerce", IntValue(2), DoubleValue(2.0), true},
		{"int vs double differ", IntValue(2), DoubleValue(2.5), false},
		{"null equals null", NullValue(), NullValue(), true},
		{"null vs zero", NullValue(), IntValue(0), false},
		{"string equal", StringValue("a"), StringValue("a"), true},
		{"string differ", StringValue("a"), StringValue("b"), false},
		{"path equal", PathValue(ParsePath("/mob")), PathValue(ParsePath("/mob")), true},
		{"path differ", PathValue(ParsePath("/mob")), PathValue(ParsePath("/obj")), false},
		{"object identity", ObjectValue(a), ObjectValue(a), true},
		{"object differ", ObjectValue(a), ObjectValue(b), false},
		{"object vs int", ObjectValue(a), IntValue(1), false},
		{"object vs string", ObjectValue(a), StringValue("x"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.x.Equals(tt.y); got != tt.want {
				t.Errorf("%s == %s: got %v, want %v", tt.x.Repr(), tt.y.Repr(), got, tt.want)
			}
			if got := tt.y.Equals(tt.x); got != tt.want {
				t.Errorf("%s == %s (flipped): got %v, want %v", tt.y.Repr(), tt.x.Repr(), got, tt.want)
			}
		})
	}
}

func TestAdd(t *testing.T) {
	tests := []struct {
		name string
		a, b Value
		want Value
	}{
		{"int int", IntValue(2), IntValue(3), IntValue(5)},
		{"int double promotes", IntValue(2), DoubleValue(0.5), DoubleValue(2.5)},
		{"string string", StringValue("foo"), StringValue("bar"), StringValue("foobar")},
		{"string int", StringValue("x="), IntValue(7), StringValue("x=7")},
		{"null int", NullValue(), IntValue(4), IntValue(4)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.a.Add(tt.b)
			if err != nil {
				t.Fatalf("Add failed: %v", err)
			}
			if !got.Equals(tt.want) || got.Kind != tt.want.Kind {
				t.Errorf("%s + %s = %s, want %s", tt.a.Repr(), tt.b.Repr(), got.Repr(), tt.want.Repr())
			}
		})
	}
}

func TestAddInvalid(t *testing.T) {
	_, err := IntValue(1).Add(StringValue("x"))
	if kind, ok := KindOf(err); !ok || kind != ErrInvalidOperation {
		t.Errorf("int + string: got %v, want InvalidOperation", err)
	}
}

func TestDivReturnsDouble(t *testing.T) {
	got, err := IntValue(7).Div(IntValue(2))
	if err != nil {
		t.Fatalf("Div failed: %v", err)
	}
	if got.Kind != KindDouble || got.DoubleVal != 3.5 {
		t.Errorf("7 / 2 = %s, want 3.5 as double", got.Repr())
	}
}

func TestDivideByZero(t *testing.T) {
	_, err := IntValue(1).Div(IntValue(0))
	if kind, ok := KindOf(err); !ok || kind != ErrDivideByZero {
		t.Errorf("1 / 0: got %v, want DivideByZero", err)
	}
	_, err = DoubleValue(1).Mod(IntValue(0))
	if kind, ok := KindOf(err); !ok || kind != ErrDivideByZero {
		t.Errorf("1 %% 0: got %v, want DivideByZero", err)
	}
}

func TestBitNotTruncates(t *testing.T) {
	tests := []struct {
		in   Value
		want int32
	}{
		{IntValue(0), 0xFFFFFF},
		{IntValue(1), 0xFFFFFE},
		{NullValue(), 0xFFFFFF},
	}
	for _, tt := range tests {
		got, err := tt.in.BitNot()
		if err != nil {
			t.Fatalf("BitNot(%s) failed: %v", tt.in.Repr(), err)
		}
		if got.IntVal != tt.want {
			t.Errorf("BitNot(%s) = 0x%X, want 0x%X", tt.in.Repr(), got.IntVal, tt.want)
		}
	}
}

func TestOrdering(t *testing.T) {
	lt, err := IntValue(1).LessThan(DoubleValue(1.5))
	if err != nil || !lt {
		t.Errorf("1 < 1.5: got (%v, %v)", lt, err)
	}
	gt, err := DoubleValue(2).GreaterThan(IntValue(3))
	if err != nil || gt {
		t.Errorf("2.0 > 3: got (%v, %v)", gt, err)
	}
	if _, err := StringValue("a").LessThan(StringValue("b")); err == nil {
		t.Error("string ordering should fail")
	}
}

func TestMetaobjectDispatch(t *testing.T) {
	def := NewObjectDefinition(ParsePath("/vector"), nil)
	def.Metaobject = &Metaobject{
		Add: func(a, b Value) (Value, error) {
			return StringValue("added"), nil
		},
	}
	obj := NewObjectInstance(def)

	got, err := ObjectValue(obj).Add(IntValue(1))
	if err != nil {
		t.Fatalf("metaobject Add failed: %v", err)
	}
	if got.StrVal != "added" {
		t.Errorf("metaobject Add = %s, want \"added\"", got.Repr())
	}

	// Without a metaobject the same operation is invalid.
	bare := NewObjectInstance(NewObjectDefinition(ParsePath("/bare"), nil))
	if _, err := ObjectValue(bare).Add(IntValue(1)); err == nil {
		t.Error("object + int without metaobject should fail")
	}
}

func TestStringify(t *testing.T) {
	tests := []struct {
		v    Value
		want string
	}{
		{NullValue(), ""},
		{IntValue(42), "42"},
		{DoubleValue(2.5), "2.5"},
		{StringValue("hi"), "hi"},
		{PathValue(ParsePath("/mob/enemy")), "/mob/enemy"},
	}
	for _, tt := range tests {
		if got := tt.v.Stringify(); got != tt.want {
			t.Errorf("Stringify(%s) = %q, want %q", tt.v.Repr(), got, tt.want)
		}
	}
}
