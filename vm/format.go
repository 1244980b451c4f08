package vm

import (
	"strconv"
	"strings"
	"sync"
)

// formatString expands a format template. The template is a decoded
// string in which FormatSentinel (0xFF) precedes a kind byte; each
// sentinel consumes one stack value, left-to-right. Values were pushed in
// template order, so they are popped into a slice and consumed forward.
func (i *Interpreter) formatString(template string) error {
	count := 0
	for n := 0; n < len(template); n++ {
		if template[n] == FormatSentinel {
			count++
			n++
		}
	}

	values := make([]Value, count)
	for n := count - 1; n >= 0; n-- {
		v, err := i.popValue()
		if err != nil {
			return err
		}
		values[n] = v
	}

	var out strings.Builder
	consumed := 0
	for n := 0; n < len(template); n++ {
		b := template[n]
		if b != FormatSentinel {
			out.WriteByte(b)
			continue
		}
		n++
		if n >= len(template) {
			return newError(ErrStringNotTerminated, "format template ends inside a sentinel")
		}
		v := values[consumed]
		consumed++
		switch template[n] {
		case FormatStringify:
			out.WriteString(v.Stringify())
		case FormatRef:
			out.WriteString(i.rt.RefString(v))
		default:
			return newError(ErrInvalidOpcode, "format kind 0x%02X", template[n])
		}
	}
	i.pushValue(StringValue(out.String()))
	return nil
}

// refTable hands out stable per-object reference ids for the \ref format
// kind. Ids are monotonic and never reused within a runtime.
type refTable struct {
	mu     sync.Mutex
	nextID int
	ids    map[*ObjectInstance]int
}

func newRefTable() *refTable {
	return &refTable{nextID: 1, ids: make(map[*ObjectInstance]int)}
}

// RefString renders the reference form of a value: objects get a stable
// bracketed id, everything else falls back to its text form.
func (rt *Runtime) RefString(v Value) string {
	if v.Kind != KindObject || v.ObjVal == nil {
		return v.Stringify()
	}
	rt.refs.mu.Lock()
	defer rt.refs.mu.Unlock()
	id, ok := rt.refs.ids[v.ObjVal]
	if !ok {
		id = rt.refs.nextID
		rt.refs.nextID++
		rt.refs.ids[v.ObjVal] = id
	}
	return "[0x" + strconv.FormatInt(int64(id), 16) + "]"
}
