package vm

import "strings"

// ListHook observes list mutation. OnAssigned fires after a key takes a
// value; BeforeRemoved fires before a positional entry disappears. Hooks
// are fixed at construction; metaobjects use them to give args and
// contents their write-through behavior.
type ListHook func(key, value Value)

// List is the hybrid container: an ordered value sequence (1-indexed) plus
// an associative map keyed by string, path, object or resource values.
type List struct {
	values []Value
	assoc  map[string]assocEntry

	onAssigned    ListHook
	beforeRemoved ListHook

	// wrapper caches the object instance handed out by Value so a list
	// keeps one identity across pushes.
	wrapper *ObjectInstance
}

type assocEntry struct {
	key   Value
	value Value
}

// NewList creates a list seeded with the given positional values.
func NewList(values ...Value) *List {
	return &List{values: append([]Value{}, values...)}
}

// NewListWithHooks creates an empty list with mutation observers.
func NewListWithHooks(onAssigned, beforeRemoved ListHook) *List {
	return &List{onAssigned: onAssigned, beforeRemoved: beforeRemoved}
}

// Value wraps the list in its object instance, creating it on first use.
func (l *List) Value() Value {
	if l.wrapper == nil {
		l.wrapper = NewObjectInstance(baseListDef)
		l.wrapper.List = l
	}
	return ObjectValue(l.wrapper)
}

// Len returns the positional length.
func (l *List) Len() int {
	return len(l.values)
}

// clampRange normalizes a 1-indexed inclusive range; end = 0 means "up to
// length".
func (l *List) clampRange(start, end int) (int, int) {
	if end == 0 || end > len(l.values) {
		end = len(l.values)
	}
	if start < 1 {
		start = 1
	}
	return start, end
}

// Get reads by key: integers address the ordered sequence, the associative
// kinds address the map (missing keys read as null).
func (l *List) Get(key Value) (Value, error) {
	if key.Kind == KindInt {
		i := int(key.IntVal)
		if i < 1 || i > len(l.values) {
			return NullValue(), newError(ErrTypeMismatch, "list index %d out of range 1..%d", i, len(l.values))
		}
		return l.values[i-1], nil
	}
	k, ok := key.assocKey()
	if !ok {
		return NullValue(), newError(ErrTypeMismatch, "invalid list key of type %s", key.Kind)
	}
	if l.assoc == nil {
		return NullValue(), nil
	}
	if e, found := l.assoc[k]; found {
		return e.value, nil
	}
	return NullValue(), nil
}

// Set writes by key and fires OnAssigned. Setting an associative key that
// is not yet in the positional sequence inserts it there.
func (l *List) Set(key, v Value) error {
	if key.Kind == KindInt {
		i := int(key.IntVal)
		if i < 1 || i > len(l.values) {
			return newError(ErrTypeMismatch, "list index %d out of range 1..%d", i, len(l.values))
		}
		l.values[i-1] = v
		l.fireAssigned(key, v)
		return nil
	}
	k, ok := key.assocKey()
	if !ok {
		return newError(ErrTypeMismatch, "invalid list key of type %s", key.Kind)
	}
	if l.assoc == nil {
		l.assoc = make(map[string]assocEntry)
	}
	if _, present := l.assoc[k]; !present && l.findRaw(key, 1, len(l.values)) == 0 {
		l.values = append(l.values, key)
	}
	l.assoc[k] = assocEntry{key: key, value: v}
	l.fireAssigned(key, v)
	return nil
}

// Add appends to the positional sequence.
func (l *List) Add(v Value) {
	l.values = append(l.values, v)
	l.fireAssigned(IntValue(int32(len(l.values))), v)
}

// Remove drops the first positional occurrence of v. It reports whether
// anything was removed.
func (l *List) Remove(v Value) bool {
	i := l.findRaw(v, 1, len(l.values))
	if i == 0 {
		return false
	}
	l.cutIndex(i)
	return true
}

// cutIndex removes the 1-indexed positional slot, firing BeforeRemoved and
// dropping any associative entry keyed by the removed value.
func (l *List) cutIndex(i int) {
	v := l.values[i-1]
	l.fireRemoved(IntValue(int32(i)), v)
	if k, ok := v.assocKey(); ok && l.assoc != nil {
		delete(l.assoc, k)
	}
	l.values = append(l.values[:i-1], l.values[i:]...)
}

// Cut removes the positional range [start, end] in reverse order.
func (l *List) Cut(start, end int) {
	start, end = l.clampRange(start, end)
	for i := end; i >= start; i-- {
		l.cutIndex(i)
	}
}

// Copy clones the positional slice [start, end] along with the full
// associative map. The clone carries no hooks.
func (l *List) Copy(start, end int) *List {
	start, end = l.clampRange(start, end)
	out := &List{}
	if end >= start {
		out.values = append(out.values, l.values[start-1:end]...)
	}
	if len(l.assoc) > 0 {
		out.assoc = make(map[string]assocEntry, len(l.assoc))
		for k, e := range l.assoc {
			out.assoc[k] = e
		}
	}
	return out
}

// Find searches [start, end] (inclusive, 1-indexed) and returns the index
// of the first match, or 0.
func (l *List) Find(v Value, start, end int) int {
	start, end = l.clampRange(start, end)
	return l.findRaw(v, start, end)
}

func (l *List) findRaw(v Value, start, end int) int {
	for i := start; i <= end && i <= len(l.values); i++ {
		if l.values[i-1].Equals(v) {
			return i
		}
	}
	return 0
}

// Join concatenates the stringified values of [start, end] with glue.
func (l *List) Join(glue string, start, end int) string {
	start, end = l.clampRange(start, end)
	var b strings.Builder
	for i := start; i <= end; i++ {
		if i > start {
			b.WriteString(glue)
		}
		b.WriteString(l.values[i-1].Stringify())
	}
	return b.String()
}

// Values returns a snapshot copy of the positional sequence.
func (l *List) Values() []Value {
	return append([]Value{}, l.values...)
}

// AssocValue returns the associative value for a positional entry, if one
// exists.
func (l *List) AssocValue(key Value) (Value, bool) {
	k, ok := key.assocKey()
	if !ok || l.assoc == nil {
		return NullValue(), false
	}
	e, found := l.assoc[k]
	if !found {
		return NullValue(), false
	}
	return e.value, true
}

func (l *List) fireAssigned(key, v Value) {
	if l.onAssigned != nil {
		l.onAssigned(key, v)
	}
}

func (l *List) fireRemoved(key, v Value) {
	if l.beforeRemoved != nil {
		l.beforeRemoved(key, v)
	}
}
