package vm

import (
	"github.com/tliron/commonlog"
)

// ---------------------------------------------------------------------------
// Operand stack entries
// ---------------------------------------------------------------------------

type entryKind int

const (
	entryValue entryKind = iota
	entryIdent
	entryArgs
)

func (k entryKind) String() string {
	switch k {
	case entryValue:
		return "value"
	case entryIdent:
		return "identifier"
	case entryArgs:
		return "argument tuple"
	default:
		return "entry"
	}
}

// stackEntry is the three-way operand stack variant: a plain value, an
// identifier handle, or an argument tuple.
type stackEntry struct {
	kind  entryKind
	value Value
	ident Identifier
	args  *ProcArgs
}

// ---------------------------------------------------------------------------
// Runtime: shared execution environment
// ---------------------------------------------------------------------------

// ResourceResolver locates resources by path; the SQLite-backed store
// implements it in production.
type ResourceResolver interface {
	Resolve(path string) (*Resource, error)
}

// Runtime is the shared environment every interpreter runs against: the
// object tree, global table, connection registry, resource resolver and
// appearance registry. Construct it once per world.
type Runtime struct {
	Tree        ObjectTree
	Globals     *GlobalTable
	Connections *ConnectionRegistry
	Resources   ResourceResolver
	Appearances *AppearanceRegistry

	log  commonlog.Logger
	refs *refTable
}

// NewRuntime creates a runtime over the given tree with empty registries.
func NewRuntime(tree ObjectTree) *Runtime {
	return &Runtime{
		Tree:        tree,
		Globals:     NewGlobalTable(0),
		Connections: NewConnectionRegistry(),
		Appearances: NewAppearanceRegistry(),
		log:         commonlog.GetLogger("vm"),
		refs:        newRefTable(),
	}
}

// RunProc executes a proc to completion and returns its result.
func (rt *Runtime) RunProc(proc *Proc, src, usr *ObjectInstance, args *ProcArgs) (Value, error) {
	interp, err := newInterpreter(rt, proc, src, usr, args)
	if err != nil {
		return NullValue(), err
	}
	return interp.Run()
}

// ---------------------------------------------------------------------------
// Interpreter: one proc activation
// ---------------------------------------------------------------------------

// Interpreter drives one proc's byte stream. The operand stack, scope
// chain and enumerator stack belong exclusively to this activation.
type Interpreter struct {
	rt   *Runtime
	proc *Proc
	src  *ObjectInstance
	usr  *ObjectInstance

	callerArgs *ProcArgs // unmaterialized caller tuple, forwarded by zero-arg `..`
	argValues  []Value   // materialized positional arguments
	argsList   *List     // the `args` list with write-through hooks

	r     *streamReader
	stack []stackEntry
	sp    int

	topScope   *Scope
	scope      *Scope
	scopeDepth int

	enumerators []*listEnumerator

	defaultReturn Value
	returned      bool
	result        Value
}

const initialStackSize = 256

func newInterpreter(rt *Runtime, proc *Proc, src, usr *ObjectInstance, args *ProcArgs) (*Interpreter, error) {
	interp := &Interpreter{
		rt:         rt,
		proc:       proc,
		src:        src,
		usr:        usr,
		callerArgs: args,
		r:          newStreamReader(proc.Bytecode),
		stack:      make([]stackEntry, initialStackSize),
	}
	interp.topScope = NewScope(src, rt.Globals)
	interp.scope = interp.topScope
	if err := interp.bindArguments(args); err != nil {
		return nil, err
	}
	return interp, nil
}

// bindArguments materializes the caller tuple, binds parameters by
// position then by name, and builds the args list whose writes flow back
// into the scope.
func (i *Interpreter) bindArguments(args *ProcArgs) error {
	ordered, named, err := args.Materialize()
	if err != nil {
		return err
	}

	i.argValues = make([]Value, len(i.proc.Parameters))
	for idx := range i.proc.Parameters {
		if idx < len(ordered) {
			i.argValues[idx] = ordered[idx]
		}
	}
	for name, v := range named {
		for idx, param := range i.proc.Parameters {
			if param == name {
				i.argValues[idx] = v
			}
		}
	}
	for idx, param := range i.proc.Parameters {
		i.topScope.Define(param, i.argValues[idx])
	}

	// Extra positional arguments stay reachable through args even without
	// a declared parameter.
	extra := ordered[min(len(ordered), len(i.proc.Parameters)):]

	i.argsList = NewListWithHooks(i.onArgAssigned, nil)
	for _, v := range i.argValues {
		i.argsList.values = append(i.argsList.values, v)
	}
	i.argsList.values = append(i.argsList.values, extra...)
	for name, v := range named {
		key := StringValue(name)
		if k, ok := key.assocKey(); ok {
			if i.argsList.assoc == nil {
				i.argsList.assoc = make(map[string]assocEntry)
			}
			i.argsList.assoc[k] = assocEntry{key: key, value: v}
		}
	}
	return nil
}

// onArgAssigned is the args-list write-through hook. String keys update
// the named local binding; integer keys update both the positional
// argument vector and, when the position names a declared parameter, its
// local binding, so integer-keyed writes keep both halves consistent.
func (i *Interpreter) onArgAssigned(key, value Value) {
	switch key.Kind {
	case KindString:
		i.topScope.Assign(key.StrVal, value)
	case KindInt:
		idx := int(key.IntVal)
		if idx >= 1 && idx <= len(i.argValues) {
			i.argValues[idx-1] = value
		}
		if idx >= 1 && idx <= len(i.proc.Parameters) {
			i.topScope.Assign(i.proc.Parameters[idx-1], value)
		}
	}
}

// superProc resolves the parent type's override of the running proc.
func (i *Interpreter) superProc() (*Proc, bool) {
	if i.proc.OwnerPath == nil {
		return nil, false
	}
	def, ok := i.rt.Tree.GetDefinition(i.proc.OwnerPath)
	if !ok {
		return nil, false
	}
	return def.GetSuperProc(i.proc.Name)
}

// ---------------------------------------------------------------------------
// Stack helpers
// ---------------------------------------------------------------------------

func (i *Interpreter) push(e stackEntry) {
	if i.sp == len(i.stack) {
		i.stack = append(i.stack, stackEntry{})
	}
	i.stack[i.sp] = e
	i.sp++
}

func (i *Interpreter) pushValue(v Value) {
	i.push(stackEntry{kind: entryValue, value: v})
}

func (i *Interpreter) pushIdent(id Identifier) {
	i.push(stackEntry{kind: entryIdent, ident: id})
}

func (i *Interpreter) pushArgs(a *ProcArgs) {
	i.push(stackEntry{kind: entryArgs, args: a})
}

func (i *Interpreter) pop() (stackEntry, error) {
	if i.sp == 0 {
		return stackEntry{}, newError(ErrStackTypeError, "pop on empty operand stack")
	}
	i.sp--
	return i.stack[i.sp], nil
}

// popValue pops an entry and resolves identifiers to their current value.
func (i *Interpreter) popValue() (Value, error) {
	e, err := i.pop()
	if err != nil {
		return NullValue(), err
	}
	switch e.kind {
	case entryValue:
		return e.value, nil
	case entryIdent:
		return e.ident.Get()
	default:
		return NullValue(), newError(ErrStackTypeError, "expected value, found %s", e.kind)
	}
}

func (i *Interpreter) popIdent() (Identifier, error) {
	e, err := i.pop()
	if err != nil {
		return nil, err
	}
	if e.kind != entryIdent {
		return nil, newError(ErrStackTypeError, "expected identifier, found %s", e.kind)
	}
	return e.ident, nil
}

func (i *Interpreter) popArgs() (*ProcArgs, error) {
	e, err := i.pop()
	if err != nil {
		return nil, err
	}
	if e.kind != entryArgs {
		return nil, newError(ErrStackTypeError, "expected argument tuple, found %s", e.kind)
	}
	return e.args, nil
}

// popList pops a value and unwraps its list payload.
func (i *Interpreter) popList() (*List, error) {
	v, err := i.popValue()
	if err != nil {
		return nil, err
	}
	if l, ok := v.AsList(); ok {
		return l, nil
	}
	return nil, newError(ErrTypeMismatch, "expected a list, found %s", v.Kind)
}

// ---------------------------------------------------------------------------
// Execution
// ---------------------------------------------------------------------------

// Run drives the byte stream until a Return or the end of the code. Both
// stacks are cleared unconditionally on exit; errors unwind immediately
// and carry the faulting proc and offset.
func (i *Interpreter) Run() (Value, error) {
	defer func() {
		i.sp = 0
		i.scope = nil
		i.enumerators = nil
	}()

	for !i.r.atEnd() && !i.returned {
		opOffset := i.r.pos
		op, err := i.r.readOpcode()
		if err != nil {
			return NullValue(), i.fail(opOffset, err)
		}
		if err := i.execute(op); err != nil {
			return NullValue(), i.fail(opOffset, err)
		}
	}
	if i.returned {
		return i.result, nil
	}
	return i.defaultReturn, nil
}

// fail attaches location metadata to an unwinding error.
func (i *Interpreter) fail(offset int, err error) error {
	if e, ok := err.(*Error); ok {
		if e.Proc == "" {
			e.Proc = i.proc.Name
			e.Offset = offset
		}
		i.rt.log.Errorf("proc %s failed at 0x%04X: %s", i.proc.Name, offset, e.Detail)
		return e
	}
	return err
}

func (i *Interpreter) execute(op Opcode) error {
	switch op {

	// ============ Stack & constants ============
	case OpPushNull:
		i.pushValue(NullValue())

	case OpPushInt:
		n, err := i.r.readInt32()
		if err != nil {
			return err
		}
		i.pushValue(IntValue(n))

	case OpPushDouble:
		f, err := i.r.readFloat64()
		if err != nil {
			return err
		}
		i.pushValue(DoubleValue(f))

	case OpPushString:
		s, err := i.r.readString()
		if err != nil {
			return err
		}
		i.pushValue(StringValue(s))

	case OpPushPath:
		s, err := i.r.readString()
		if err != nil {
			return err
		}
		i.pushValue(PathValue(ParsePath(s)))

	case OpPushResource:
		s, err := i.r.readString()
		if err != nil {
			return err
		}
		rsc, err := i.resolveResource(s)
		if err != nil {
			return err
		}
		i.pushValue(ResourceValue(rsc))

	case OpPushSrc:
		i.pushValue(ObjectValue(i.src))

	case OpPushSelf:
		i.pushIdent(&SelfProcIdentifier{Interp: i})

	case OpPushSuperProc:
		i.pushIdent(&SelfProcIdentifier{Interp: i, Super: true})

	case OpPop:
		_, err := i.pop()
		return err

	// ============ Variables & identifiers ============
	case OpGetIdentifier:
		name, err := i.r.readString()
		if err != nil {
			return err
		}
		return i.getIdentifier(name)

	case OpDefineVariable:
		name, err := i.r.readString()
		if err != nil {
			return err
		}
		v, err := i.popValue()
		if err != nil {
			return err
		}
		i.scope.Define(name, v)

	case OpAssign:
		ident, err := i.popIdent()
		if err != nil {
			return err
		}
		v, err := i.popValue()
		if err != nil {
			return err
		}
		if err := ident.Assign(v); err != nil {
			return err
		}
		i.pushValue(v)

	case OpDereference:
		name, err := i.r.readString()
		if err != nil {
			return err
		}
		return i.dereference(name)

	case OpGetGlobal:
		id, err := i.r.readInt32()
		if err != nil {
			return err
		}
		i.pushIdent(&GlobalIdentifier{Globals: i.rt.Globals, ID: int(id)})

	case OpInitial:
		return i.initialOrSaved(false)

	case OpIsSaved:
		return i.initialOrSaved(true)

	case OpPushArguments:
		return i.pushArguments()

	case OpPushArgList:
		l, err := i.popList()
		if err != nil {
			return err
		}
		i.pushArgs(SplatList(l))

	// ============ Arithmetic ============
	case OpAdd:
		return i.binaryOp(Value.Add)
	case OpSubtract:
		return i.binaryOp(Value.Sub)
	case OpMultiply:
		return i.binaryOp(Value.Mul)
	case OpDivide:
		return i.binaryOp(Value.Div)
	case OpModulus:
		return i.binaryOp(Value.Mod)
	case OpBitAnd:
		return i.binaryOp(Value.BitAnd)
	case OpBitOr:
		return i.binaryOp(Value.BitOr)
	case OpBitXor:
		return i.binaryOp(Value.BitXor)
	case OpBitShiftLeft:
		return i.binaryOp(Value.Shl)

	case OpNegate:
		v, err := i.popValue()
		if err != nil {
			return err
		}
		out, err := v.Neg()
		if err != nil {
			return err
		}
		i.pushValue(out)

	case OpBitNot:
		v, err := i.popValue()
		if err != nil {
			return err
		}
		out, err := v.BitNot()
		if err != nil {
			return err
		}
		i.pushValue(out)

	case OpAppend:
		return i.compoundOp(Value.Append)
	case OpRemove:
		return i.compoundOp(Value.RemoveFrom)
	case OpCombine:
		return i.compoundOp(Value.Combine)
	case OpMask:
		return i.compoundOp(Value.Mask)

	// ============ Comparison ============
	case OpCompareEquals:
		return i.compareOp(func(a, b Value) (bool, error) { return a.Equals(b), nil })
	case OpCompareNotEquals:
		return i.compareOp(func(a, b Value) (bool, error) { return !a.Equals(b), nil })
	case OpCompareLessThan:
		return i.compareOp(Value.LessThan)
	case OpCompareGreaterThan:
		return i.compareOp(Value.GreaterThan)
	case OpCompareLessThanOrEqual:
		return i.compareOp(func(a, b Value) (bool, error) {
			if a.Equals(b) {
				return true, nil
			}
			return a.LessThan(b)
		})
	case OpCompareGreaterThanOrEqual:
		return i.compareOp(func(a, b Value) (bool, error) {
			if a.Equals(b) {
				return true, nil
			}
			return a.GreaterThan(b)
		})

	// ============ Control flow ============
	case OpJump:
		pos, err := i.r.readInt32()
		if err != nil {
			return err
		}
		return i.r.jump(pos)

	case OpJumpIfTrue:
		return i.conditionalJump(true)

	case OpJumpIfFalse:
		return i.conditionalJump(false)

	case OpBooleanAnd:
		return i.booleanShortCircuit(false)

	case OpBooleanOr:
		return i.booleanShortCircuit(true)

	case OpBooleanNot:
		v, err := i.popValue()
		if err != nil {
			return err
		}
		i.pushValue(boolInt(!v.IsTruthy()))

	case OpSwitchCase:
		pos, err := i.r.readInt32()
		if err != nil {
			return err
		}
		test, err := i.popValue()
		if err != nil {
			return err
		}
		subject, err := i.popValue()
		if err != nil {
			return err
		}
		if subject.Equals(test) {
			return i.r.jump(pos)
		}
		i.pushValue(subject)

	case OpJumpIfNull:
		return i.nullGuard(false)

	case OpJumpIfNullPop:
		return i.nullGuard(true)

	case OpReturn:
		v, err := i.popValue()
		if err != nil {
			return err
		}
		i.result = v
		i.returned = true

	case OpError:
		return newError(ErrInvalidOperation, "reached Error opcode")

	// ============ Scopes ============
	case OpCreateScope:
		i.scope = i.scope.Child()
		i.scopeDepth++

	case OpDestroyScope:
		if i.scopeDepth == 0 {
			return newError(ErrScopeUnderflow, "DestroyScope without matching CreateScope")
		}
		i.scope = i.scope.Parent()
		i.scopeDepth--

	// ============ Calls & objects ============
	case OpCall:
		return i.call()

	case OpCallStatement:
		return i.callStatement()

	case OpCreateObject:
		return i.createObject()

	case OpDeleteObject:
		v, err := i.popValue()
		if err != nil {
			return err
		}
		if v.Kind != KindObject || v.ObjVal == nil {
			return newError(ErrNullDeref, "del on %s", v.Kind)
		}
		v.ObjVal.Delete()

	// ============ Lists & iteration ============
	case OpCreateList:
		i.pushValue(NewList().Value())

	case OpListAppend:
		v, err := i.popValue()
		if err != nil {
			return err
		}
		l, err := i.popList()
		if err != nil {
			return err
		}
		l.Add(v)
		i.pushValue(l.Value())

	case OpListAppendAssociated:
		v, err := i.popValue()
		if err != nil {
			return err
		}
		key, err := i.popValue()
		if err != nil {
			return err
		}
		l, err := i.popList()
		if err != nil {
			return err
		}
		if err := l.Set(key, v); err != nil {
			return err
		}
		i.pushValue(l.Value())

	case OpIndexList:
		key, err := i.popValue()
		if err != nil {
			return err
		}
		l, err := i.popList()
		if err != nil {
			return err
		}
		i.pushIdent(&ListIndexIdentifier{List: l, Key: key})

	case OpIsInList:
		return i.isInList()

	case OpCreateListEnumerator:
		l, err := i.popList()
		if err != nil {
			return err
		}
		i.enumerators = append(i.enumerators, newListEnumerator(l))

	case OpEnumerateList:
		name, err := i.r.readString()
		if err != nil {
			return err
		}
		if len(i.enumerators) == 0 {
			return newError(ErrEnumeratorUnderflow, "EnumerateList with no active enumerator")
		}
		enum := i.enumerators[len(i.enumerators)-1]
		v, ok := enum.next()
		if ok {
			i.scope.Assign(name, v)
		}
		i.pushValue(boolInt(ok))

	case OpDestroyListEnumerator:
		if len(i.enumerators) == 0 {
			return newError(ErrEnumeratorUnderflow, "DestroyListEnumerator with no active enumerator")
		}
		i.enumerators = i.enumerators[:len(i.enumerators)-1]

	// ============ I/O bridges & formatting ============
	case OpBrowse:
		return i.ioBridge(func(c Connection, payload, extra Value) {
			c.Browse(payload.Stringify(), extra.Stringify())
		})

	case OpBrowseResource:
		return i.ioBridge(func(c Connection, payload, extra Value) {
			if payload.Kind == KindResource {
				c.BrowseResource(payload.RscVal, extra.Stringify())
			}
		})

	case OpOutputControl:
		return i.ioBridge(func(c Connection, payload, extra Value) {
			c.OutputControl(payload.Stringify(), extra.Stringify())
		})

	case OpFormatString:
		template, err := i.r.readString()
		if err != nil {
			return err
		}
		return i.formatString(template)

	default:
		return newError(ErrInvalidOpcode, "0x%02X", byte(op))
	}
	return nil
}

// ---------------------------------------------------------------------------
// Opcode bodies
// ---------------------------------------------------------------------------

func boolInt(b bool) Value {
	if b {
		return IntValue(1)
	}
	return IntValue(0)
}

func (i *Interpreter) binaryOp(op func(Value, Value) (Value, error)) error {
	b, err := i.popValue()
	if err != nil {
		return err
	}
	a, err := i.popValue()
	if err != nil {
		return err
	}
	out, err := op(a, b)
	if err != nil {
		return err
	}
	i.pushValue(out)
	return nil
}

// compoundOp implements the assigning operators: pop identifier, pop
// value, combine the identifier's current value with the operand, write
// the result back and leave it on the stack.
func (i *Interpreter) compoundOp(op func(Value, Value) (Value, error)) error {
	ident, err := i.popIdent()
	if err != nil {
		return err
	}
	operand, err := i.popValue()
	if err != nil {
		return err
	}
	current, err := ident.Get()
	if err != nil {
		return err
	}
	out, err := op(current, operand)
	if err != nil {
		return err
	}
	if err := ident.Assign(out); err != nil {
		return err
	}
	i.pushValue(out)
	return nil
}

func (i *Interpreter) compareOp(cmp func(Value, Value) (bool, error)) error {
	b, err := i.popValue()
	if err != nil {
		return err
	}
	a, err := i.popValue()
	if err != nil {
		return err
	}
	ok, err := cmp(a, b)
	if err != nil {
		return err
	}
	i.pushValue(boolInt(ok))
	return nil
}

func (i *Interpreter) conditionalJump(when bool) error {
	pos, err := i.r.readInt32()
	if err != nil {
		return err
	}
	v, err := i.popValue()
	if err != nil {
		return err
	}
	if v.IsTruthy() == when {
		return i.r.jump(pos)
	}
	return nil
}

// booleanShortCircuit implements BooleanAnd/BooleanOr: inspect the top of
// stack; when the short-circuit case holds, leave it in place and jump,
// otherwise pop it and continue into the right-hand side.
func (i *Interpreter) booleanShortCircuit(jumpWhenTruthy bool) error {
	pos, err := i.r.readInt32()
	if err != nil {
		return err
	}
	v, err := i.popValue()
	if err != nil {
		return err
	}
	if v.IsTruthy() == jumpWhenTruthy {
		i.pushValue(v)
		return i.r.jump(pos)
	}
	return nil
}

// nullGuard implements the safe-dereference jumps. The receiver is
// normalized to a value; in keep mode a null receiver stays on the stack
// as the chain's result, in pop mode it is dropped.
func (i *Interpreter) nullGuard(popNull bool) error {
	pos, err := i.r.readInt32()
	if err != nil {
		return err
	}
	v, err := i.popValue()
	if err != nil {
		return err
	}
	if v.IsNull() {
		if !popNull {
			i.pushValue(v)
		}
		return i.r.jump(pos)
	}
	i.pushValue(v)
	return nil
}

// getIdentifier resolves a name in the current scope. The names src, usr,
// args, ., .., initial and issaved carry special meaning.
func (i *Interpreter) getIdentifier(name string) error {
	switch name {
	case "src":
		i.pushValue(ObjectValue(i.src))
	case "usr":
		i.pushValue(ObjectValue(i.usr))
	case "args":
		i.pushValue(i.argsList.Value())
	case ".":
		i.pushIdent(&SelfProcIdentifier{Interp: i})
	case "..":
		i.pushIdent(&SelfProcIdentifier{Interp: i, Super: true})
	case "initial", "issaved":
		i.pushIdent(&builtinProcIdentifier{name: name})
	default:
		ident, err := i.scope.ResolveIdentifier(name)
		if err != nil {
			return err
		}
		i.pushIdent(ident)
	}
	return nil
}

// dereference pops an object and pushes the identifier for one of its
// fields, procs or globals.
func (i *Interpreter) dereference(name string) error {
	v, err := i.popValue()
	if err != nil {
		return err
	}
	if v.IsNull() {
		return newError(ErrNullDeref, "field %q of null", name)
	}
	if l, ok := v.AsList(); ok && name == "len" {
		i.pushValue(IntValue(int32(l.Len())))
		return nil
	}
	if v.Kind != KindObject {
		return newError(ErrTypeMismatch, "field %q of %s", name, v.Kind)
	}
	obj := v.ObjVal
	if obj.HasField(name) {
		i.pushIdent(&FieldIdentifier{Object: obj, Field: name})
		return nil
	}
	if _, ok := obj.Def.GetProc(name); ok {
		i.pushIdent(&FieldIdentifier{Object: obj, Field: name})
		return nil
	}
	if id, ok := obj.Def.GetGlobalID(name); ok {
		i.pushIdent(&GlobalIdentifier{Globals: i.rt.Globals, ID: id})
		return nil
	}
	return newError(ErrUnknownIdentifier, "%s has no %q", obj.Def.Path, name)
}

// initialOrSaved pops a variable key and its receiver and pushes the
// definition-time default (Initial) or the persistence flag (IsSaved).
func (i *Interpreter) initialOrSaved(saved bool) error {
	key, err := i.popValue()
	if err != nil {
		return err
	}
	recv, err := i.popValue()
	if err != nil {
		return err
	}
	if recv.IsNull() {
		return newError(ErrNullDeref, "initial of null")
	}
	if l, ok := recv.AsList(); ok {
		// List slots have no definition-time state; initial reads the
		// current value and nothing in a list is persistent.
		if saved {
			i.pushValue(boolInt(false))
			return nil
		}
		v, err := l.Get(key)
		if err != nil {
			return err
		}
		i.pushValue(v)
		return nil
	}
	if recv.Kind != KindObject || key.Kind != KindString {
		return newError(ErrTypeMismatch, "initial of %s[%s]", recv.Kind, key.Kind)
	}
	variable, ok := recv.ObjVal.Def.GetVariable(key.StrVal)
	if !ok {
		return newError(ErrUnknownIdentifier, "%s has no variable %q", recv.ObjVal.Def.Path, key.StrVal)
	}
	if saved {
		i.pushValue(boolInt(variable.IsSaved()))
	} else {
		i.pushValue(variable.Default)
	}
	return nil
}

// pushArguments collects the argument tuple described by the inline
// records. Values were pushed in reverse order, so popping yields them in
// declaration order.
func (i *Interpreter) pushArguments() error {
	count, err := i.r.readInt32()
	if err != nil {
		return err
	}
	tuple := NewProcArgs()
	for n := int32(0); n < count; n++ {
		tag, err := i.r.readByte()
		if err != nil {
			return err
		}
		var name string
		switch tag {
		case 0: // unnamed
		case 1: // named
			if name, err = i.r.readString(); err != nil {
				return err
			}
		default:
			return newError(ErrInvalidOpcode, "argument record tag 0x%02X", tag)
		}
		e, err := i.pop()
		if err != nil {
			return err
		}
		var arg ArgValue
		switch e.kind {
		case entryValue:
			arg = ValueArg(e.value)
		case entryIdent:
			arg = IdentArg(e.ident)
		default:
			return newError(ErrStackTypeError, "argument tuple inside argument tuple")
		}
		if name != "" {
			tuple.AddNamed(name, arg)
		} else {
			tuple.AddPositional(arg)
		}
	}
	i.pushArgs(tuple)
	return nil
}

// call pops an argument tuple and a callee identifier and invokes it.
func (i *Interpreter) call() error {
	tuple, err := i.popArgs()
	if err != nil {
		return err
	}
	ident, err := i.popIdent()
	if err != nil {
		return err
	}

	switch callee := ident.(type) {
	case *builtinProcIdentifier:
		return i.callBuiltin(callee.name, tuple)

	case *SelfProcIdentifier:
		proc := i.proc
		if callee.Super {
			super, ok := i.superProc()
			if !ok {
				return newError(ErrProcUnresolved, "%s has no parent proc %q", i.proc.OwnerPath, i.proc.Name)
			}
			proc = super
		}
		// A zero-argument super call forwards the caller's own tuple.
		if callee.Super && tuple.IsEmpty() {
			tuple = i.callerArgs
		}
		out, err := i.rt.RunProc(proc, i.src, i.usr, tuple)
		if err != nil {
			return err
		}
		i.pushValue(out)
		return nil

	case *FieldIdentifier:
		proc, src, err := i.resolveFieldCall(callee)
		if err != nil {
			return err
		}
		out, err := i.rt.RunProc(proc, src, i.usr, tuple)
		if err != nil {
			return err
		}
		i.pushValue(out)
		return nil

	default:
		v, err := ident.Get()
		if err != nil {
			return err
		}
		if v.Kind != KindProc || v.ProcVal == nil {
			return newError(ErrProcUnresolved, "call target is %s", v.Kind)
		}
		out, err := i.rt.RunProc(v.ProcVal, i.src, i.usr, tuple)
		if err != nil {
			return err
		}
		i.pushValue(out)
		return nil
	}
}

// resolveFieldCall finds the proc a field identifier names: the type's
// proc table first, then a proc reference stored in the field itself.
func (i *Interpreter) resolveFieldCall(id *FieldIdentifier) (*Proc, *ObjectInstance, error) {
	if p, ok := id.Object.Def.GetProc(id.Field); ok {
		return p, id.Object, nil
	}
	if id.Object.HasField(id.Field) {
		v, err := id.Object.GetField(id.Field)
		if err == nil && v.Kind == KindProc && v.ProcVal != nil {
			return v.ProcVal, id.Object, nil
		}
	}
	return nil, nil, newError(ErrProcUnresolved, "%s has no proc %q", id.Object.Def.Path, id.Field)
}

// callBuiltin handles the initial/issaved intrinsics, which take a single
// identifier argument rather than a resolved value.
func (i *Interpreter) callBuiltin(name string, tuple *ProcArgs) error {
	if len(tuple.Positional) != 1 || len(tuple.Named) != 0 {
		return newError(ErrTypeMismatch, "%s takes exactly one argument", name)
	}
	arg := tuple.Positional[0]
	if arg.Ident == nil {
		return newError(ErrTypeMismatch, "%s requires a variable reference", name)
	}
	switch ref := arg.Ident.(type) {
	case *FieldIdentifier:
		variable, ok := ref.Object.Def.GetVariable(ref.Field)
		if !ok {
			return newError(ErrUnknownIdentifier, "%s has no variable %q", ref.Object.Def.Path, ref.Field)
		}
		if name == "issaved" {
			i.pushValue(boolInt(variable.IsSaved()))
		} else {
			i.pushValue(variable.Default)
		}
		return nil
	case *ListIndexIdentifier:
		if name == "issaved" {
			i.pushValue(boolInt(false))
			return nil
		}
		v, err := ref.Get()
		if err != nil {
			return err
		}
		i.pushValue(v)
		return nil
	default:
		return newError(ErrTypeMismatch, "%s requires a field reference", name)
	}
}

// callStatement pops a tuple, a proc name or path, and a source object,
// then dispatches through the object's proc table.
func (i *Interpreter) callStatement() error {
	tuple, err := i.popArgs()
	if err != nil {
		return err
	}
	target, err := i.popValue()
	if err != nil {
		return err
	}
	source, err := i.popValue()
	if err != nil {
		return err
	}
	if source.Kind != KindObject || source.ObjVal == nil {
		return newError(ErrNullDeref, "call on %s", source.Kind)
	}

	var name string
	switch target.Kind {
	case KindString:
		name = target.StrVal
	case KindPath:
		if sub, ok := target.PathVal.SubPathAfter("proc"); ok {
			name = sub.Last()
		} else {
			name = target.PathVal.Last()
		}
	case KindProc:
		out, err := i.rt.RunProc(target.ProcVal, source.ObjVal, i.usr, tuple)
		if err != nil {
			return err
		}
		i.pushValue(out)
		return nil
	default:
		return newError(ErrTypeMismatch, "call target is %s", target.Kind)
	}

	proc, ok := source.ObjVal.Def.GetProc(name)
	if !ok {
		return newError(ErrProcUnresolved, "%s has no proc %q", source.ObjVal.Def.Path, name)
	}
	out, err := i.rt.RunProc(proc, source.ObjVal, i.usr, tuple)
	if err != nil {
		return err
	}
	i.pushValue(out)
	return nil
}

// createObject pops a tuple and a type path and instantiates it. A
// single-element relative path is rebound through the current scope, so
// `new T()` works when T is a local holding a type path.
func (i *Interpreter) createObject() error {
	tuple, err := i.popArgs()
	if err != nil {
		return err
	}
	pathVal, err := i.popValue()
	if err != nil {
		return err
	}
	if pathVal.Kind != KindPath {
		return newError(ErrTypeMismatch, "new of %s", pathVal.Kind)
	}
	path := pathVal.PathVal
	if !path.Absolute && len(path.Elements) == 1 {
		bound, err := i.scope.Get(path.Head())
		if err == nil && bound.Kind == KindPath {
			path = bound.PathVal
		}
	}
	obj, err := i.rt.Tree.CreateObject(path, tuple)
	if err != nil {
		return err
	}
	// Constructor arguments also flow through the type's New proc when
	// one exists.
	if ctor, ok := obj.Def.GetProc("New"); ok {
		if _, err := i.rt.RunProc(ctor, obj, i.usr, tuple); err != nil {
			return err
		}
	}
	i.pushValue(ObjectValue(obj))
	return nil
}

// isInList searches positional membership. Atom- and world-typed
// receivers search their contents list.
func (i *Interpreter) isInList() error {
	container, err := i.popValue()
	if err != nil {
		return err
	}
	v, err := i.popValue()
	if err != nil {
		return err
	}
	l, ok := container.AsList()
	if !ok && container.Kind == KindObject && container.ObjVal != nil {
		def := container.ObjVal.Def
		if def.IsSubtypeOf(PathAtom) || def.IsSubtypeOf(PathWorld) {
			contents, err := container.ObjVal.GetField("contents")
			if err != nil {
				return err
			}
			l, ok = contents.AsList()
		}
	}
	if !ok {
		return newError(ErrTypeMismatch, "in on %s", container.Kind)
	}
	i.pushValue(boolInt(l.Find(v, 1, 0) != 0))
	return nil
}

// ioBridge pops (extra, payload, receiver), resolves the receiver's
// client connection and forwards. A receiver with no connected client is
// a no-op; anything that is neither mob nor client fails.
func (i *Interpreter) ioBridge(send func(c Connection, payload, extra Value)) error {
	extra, err := i.popValue()
	if err != nil {
		return err
	}
	payload, err := i.popValue()
	if err != nil {
		return err
	}
	recv, err := i.popValue()
	if err != nil {
		return err
	}

	client, err := i.resolveClient(recv)
	if err != nil {
		return err
	}
	if client == nil {
		return nil
	}
	conn, ok := i.rt.Connections.ForClient(client)
	if !ok {
		return nil
	}
	send(conn, payload, extra)
	return nil
}

// resolveClient maps an I/O receiver to its client object: clients pass
// through, mobs read their client field, everything else is rejected.
func (i *Interpreter) resolveClient(recv Value) (*ObjectInstance, error) {
	if recv.Kind != KindObject || recv.ObjVal == nil {
		return nil, newError(ErrInvalidRecipient, "receiver is %s", recv.Kind)
	}
	def := recv.ObjVal.Def
	switch {
	case def.IsSubtypeOf(PathClient):
		return recv.ObjVal, nil
	case def.IsSubtypeOf(PathMob):
		client, err := recv.ObjVal.GetField("client")
		if err != nil {
			return nil, err
		}
		if client.Kind != KindObject {
			return nil, nil
		}
		return client.ObjVal, nil
	default:
		return nil, newError(ErrInvalidRecipient, "receiver is %s", def.Path)
	}
}

// resolveResource looks the path up through the runtime's resolver,
// falling back to a bare handle when none is configured.
func (i *Interpreter) resolveResource(path string) (*Resource, error) {
	if i.rt.Resources != nil {
		return i.rt.Resources.Resolve(path)
	}
	return &Resource{Path: path}, nil
}
