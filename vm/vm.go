// Package vm implements the Execute engine and orchestrator (spec.md
// components J and K): a single flat instruction stream with one program
// counter, dispatched opcode-by-opcode against Storage, Streams, Scope
// and the Queue.
//
// Grounded on vm/vm.go's Execute/run/executeInstruction trio: the same
// "loop fetches the current instruction, dispatches to one exec method
// per opcode group, advances the counter unless the instruction itself
// jumped" shape, reshaped from a per-frame call stack (PHP's CallFrame)
// to spec.md §3.6's single State plus a parent-linked Scope chain, since
// SVI calls are "jump into the function body, jump back" rather than a
// stack of independent instruction arrays.
package vm

import (
	"fmt"
	"sync"

	"github.com/svi-lang/svivm/opcodes"
	"github.com/svi-lang/svivm/providers"
	"github.com/svi-lang/svivm/queue"
	"github.com/svi-lang/svivm/scope"
	"github.com/svi-lang/svivm/storage"
	"github.com/svi-lang/svivm/streams"
	"github.com/svi-lang/svivm/types"
	"github.com/svi-lang/svivm/values"
	"github.com/svi-lang/svivm/wire"
)

// HotSpot describes a program counter that was executed frequently.
type HotSpot struct {
	PC    int
	Count int
}

// VirtualMachine is the SVI bytecode interpreter.
type VirtualMachine struct {
	Store     storage.Store
	Arena     *types.Arena
	Wire      *wire.Wire
	Chain     *scope.Chain
	State     *scope.State
	Queue     *queue.Queue
	Providers *providers.Registry

	streamsMu    sync.Mutex
	localStreams map[uint64]streams.Stream
	nextStream   uint64

	out, err func(string)

	profile *profileState
	halted  bool

	mu          sync.Mutex
	lastReturn  *values.Value
	currentCall *values.Function
	exitCode    *float64

	// enteringCall is set immediately before jumping the program counter
	// into a callee's beginfn so execBeginFn can tell a call-jump arrival
	// apart from falling through the definition sequentially.
	enteringCall bool

	// paramCursor tracks how many fnparam bindings a call scope has
	// consumed so far, since Scope itself doesn't carry position state.
	paramCursor map[*scope.Scope]int

	// pendingAssigns remembers which LOCATION a pushcall's optional Dest
	// should eventually receive, once the queue delivers that job's return
	// value (spec.md §4.5).
	pendingMu       sync.Mutex
	pendingAssigns  map[queue.JobID]values.Location

	// activeFilters holds the scheduling filters a `with`-held TAG
	// resource has currently applied (spec.md §4.5's "Filters are applied
	// via the global-services interface ... by holding a TAG resource
	// during a with block").
	filtersMu     sync.Mutex
	activeFilters map[string]string

	locksMu sync.Mutex
	locks   map[values.Location]storage.Lock
}

// New constructs a VM wired to the given backing services. out/errWrite
// receive `out`/`err` opcode output; pass nil to use no-op sinks (the
// host, e.g. cmd/svivm, wires these to its console sink).
func New(store storage.Store, arena *types.Arena, w *wire.Wire, q *queue.Queue, reg *providers.Registry, out, errWrite func(string)) *VirtualMachine {
	if out == nil {
		out = func(string) {}
	}
	if errWrite == nil {
		errWrite = func(string) {}
	}
	return &VirtualMachine{
		Store:          store,
		Arena:          arena,
		Wire:           w,
		Chain:          scope.NewChain(),
		Queue:          q,
		Providers:      reg,
		localStreams:   make(map[uint64]streams.Stream),
		out:            out,
		err:            errWrite,
		profile:        newProfileState(),
		paramCursor:    make(map[*scope.Scope]int),
		pendingAssigns: make(map[queue.JobID]values.Location),
		activeFilters:  make(map[string]string),
		locks:          make(map[values.Location]storage.Lock),
	}
}

func (vm *VirtualMachine) trackPendingAssign(id queue.JobID, loc values.Location) {
	vm.pendingMu.Lock()
	vm.pendingAssigns[id] = loc
	vm.pendingMu.Unlock()
}

func (vm *VirtualMachine) takePendingAssign(id queue.JobID) (values.Location, bool) {
	vm.pendingMu.Lock()
	defer vm.pendingMu.Unlock()
	loc, ok := vm.pendingAssigns[id]
	if ok {
		delete(vm.pendingAssigns, id)
	}
	return loc, ok
}

func (vm *VirtualMachine) filterSnapshot() map[string]string {
	vm.filtersMu.Lock()
	defer vm.filtersMu.Unlock()
	out := make(map[string]string, len(vm.activeFilters))
	for k, v := range vm.activeFilters {
		out[k] = v
	}
	return out
}

// Initialize builds State from a fresh instruction stream and resets the
// scope chain to a single root scope, per spec.md §4.7's `initialize`.
func (vm *VirtualMachine) Initialize(instructions []*opcodes.Instruction) {
	vm.State = scope.NewState(instructions)
	vm.Chain = scope.NewChain()
	vm.halted = false
}

// Restore rebuilds a VM's execution position from a deserialized scope
// and state, used when a worker claims a queued job (spec.md §4.7
// `restore`, §4.5 "executing a job on a worker" step 1).
func (vm *VirtualMachine) Restore(leaf *scope.Scope, st *scope.State) {
	vm.State = st
	vm.Chain = scope.ChainFromLeaf(leaf)
	vm.halted = false
}

// Halted reports whether the program has run to completion or hit `exit`.
func (vm *VirtualMachine) Halted() bool { return vm.halted }

// ExitCode reports the code of an unhandled raise that terminated the
// program, if any (spec.md §4.3, §8 property 6).
func (vm *VirtualMachine) ExitCode() (float64, bool) {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	if vm.exitCode == nil {
		return 0, false
	}
	return *vm.exitCode, true
}

// Step fetches, dispatches, and (unless the instruction itself moved the
// program counter) advances past exactly one instruction.
func (vm *VirtualMachine) Step() error {
	if vm.halted || vm.State.AtEnd(vm.State.PC) {
		vm.halted = true
		return nil
	}
	pc := vm.State.PC
	instr := vm.State.Fetch(pc)
	if instr == nil {
		vm.halted = true
		return nil
	}
	vm.profile.observe(pc, instr.Op)

	advance, err := vm.dispatch(instr)
	if err != nil {
		return decorate(err, pc, instr.Op)
	}
	if vm.halted {
		return nil
	}
	if advance {
		vm.State.PC++
	}
	return nil
}

// Execute runs Step until the program halts or an error occurs.
func (vm *VirtualMachine) Execute() error {
	for !vm.halted {
		if err := vm.Step(); err != nil {
			return err
		}
	}
	return nil
}

func (vm *VirtualMachine) dispatch(instr *opcodes.Instruction) (bool, error) {
	switch instr.Op {
	case opcodes.OpNop:
		return true, nil

	case opcodes.OpPlus, opcodes.OpMinus, opcodes.OpMultiply, opcodes.OpDivide, opcodes.OpMod:
		return vm.execArithmetic(instr)
	case opcodes.OpEq, opcodes.OpNeq, opcodes.OpLt, opcodes.OpLte, opcodes.OpGt, opcodes.OpGte:
		return vm.execComparison(instr)

	case opcodes.OpAnd, opcodes.OpOr, opcodes.OpXor, opcodes.OpNand, opcodes.OpNor, opcodes.OpNot:
		return vm.execBoolean(instr)

	case opcodes.OpAssignValue:
		return vm.execAssignValue(instr)
	case opcodes.OpAssignEval:
		return vm.execAssignEval(instr)

	case opcodes.OpTypify:
		return vm.execTypify(instr)
	case opcodes.OpTypeOf:
		return vm.execTypeOf(instr)
	case opcodes.OpCompatible:
		return vm.execCompatible(instr)

	case opcodes.OpLock:
		return vm.execLock(instr)
	case opcodes.OpUnlock:
		return vm.execUnlock(instr)

	case opcodes.OpEnumInit:
		return vm.execEnumInit(instr)
	case opcodes.OpEnumAppend:
		return vm.execEnumAppend(instr)
	case opcodes.OpEnumPrepend:
		return vm.execEnumPrepend(instr)
	case opcodes.OpEnumLength:
		return vm.execEnumLength(instr)
	case opcodes.OpEnumGet:
		return vm.execEnumGet(instr)
	case opcodes.OpEnumSet:
		return vm.execEnumSet(instr)
	case opcodes.OpEnumConcat:
		return vm.execEnumConcat(instr)
	case opcodes.OpEnumerate:
		return vm.execEnumerate(instr)

	case opcodes.OpMapInit:
		return vm.execMapInit(instr)
	case opcodes.OpMapSet:
		return vm.execMapSet(instr)
	case opcodes.OpMapGet:
		return vm.execMapGet(instr)
	case opcodes.OpMapLength:
		return vm.execMapLength(instr)
	case opcodes.OpMapKeys:
		return vm.execMapKeys(instr)

	case opcodes.OpStrConcat:
		return vm.execStrConcat(instr)
	case opcodes.OpStrLength:
		return vm.execStrLength(instr)
	case opcodes.OpStrSlice:
		return vm.execStrSlice(instr)

	case opcodes.OpStreamInit:
		return vm.execStreamInit(instr)
	case opcodes.OpStreamPush:
		return vm.execStreamPush(instr)
	case opcodes.OpStreamPop:
		return vm.execStreamPop(instr)
	case opcodes.OpStreamClose:
		return vm.execStreamClose(instr)
	case opcodes.OpStreamEmpty:
		return vm.execStreamEmpty(instr)
	case opcodes.OpOut:
		return vm.execOut(instr)
	case opcodes.OpErr:
		return vm.execErr(instr)

	case opcodes.OpBeginFn:
		return vm.execBeginFn(instr)
	case opcodes.OpFnParam:
		return vm.execFnParam(instr)
	case opcodes.OpReturn:
		return vm.execReturn(instr)
	case opcodes.OpCurry:
		return vm.execCurry(instr)
	case opcodes.OpCall:
		return vm.execCall(instr)
	case opcodes.OpCallIf:
		return vm.execCallIf(instr)
	case opcodes.OpCallElse:
		return vm.execCallElse(instr)
	case opcodes.OpPushCall:
		return vm.execPushCall(instr)
	case opcodes.OpPushCallIf:
		return vm.execPushCallIf(instr)
	case opcodes.OpPushCallElse:
		return vm.execPushCallElse(instr)

	case opcodes.OpOTypeInit:
		return vm.execOTypeInit(instr)
	case opcodes.OpOTypeProp:
		return vm.execOTypeProp(instr)
	case opcodes.OpOTypeDel:
		return vm.execOTypeDel(instr)
	case opcodes.OpOTypeGet:
		return vm.execOTypeGet(instr)
	case opcodes.OpOTypeFinalize:
		return vm.execOTypeFinalize(instr)
	case opcodes.OpOTypeSubset:
		return vm.execOTypeSubset(instr)
	case opcodes.OpObjInit:
		return vm.execObjInit(instr)
	case opcodes.OpObjSet:
		return vm.execObjSet(instr)
	case opcodes.OpObjGet:
		return vm.execObjGet(instr)
	case opcodes.OpObjInstance:
		return vm.execObjInstance(instr)
	case opcodes.OpObjCurry:
		return vm.execObjCurry(instr)

	case opcodes.OpPushExHandler:
		return vm.execPushExHandler(instr)
	case opcodes.OpPopExHandler:
		return vm.execPopExHandler(instr)
	case opcodes.OpRaise:
		return vm.execRaise(instr)
	case opcodes.OpResume:
		return vm.execResume(instr)

	case opcodes.OpWhile:
		return vm.execWhile(instr)
	case opcodes.OpWith:
		return vm.execWith(instr)
	case opcodes.OpDrain:
		return vm.execDrain(instr)
	case opcodes.OpEnterContext:
		return vm.execEnterContext(instr)
	case opcodes.OpResumeContext:
		return vm.execResumeContext(instr)
	case opcodes.OpPopContext:
		return vm.execPopContext(instr)
	case opcodes.OpExit:
		vm.halted = true
		return false, nil

	default:
		return false, newError(MalformedInstruction, "unrecognized opcode %s", instr.Op)
	}
}

// Resolve dereferences a LOCATION reference via Store; any other
// reference is returned as-is, per spec.md §4.7's `resolve`.
func (vm *VirtualMachine) Resolve(ref *values.Value) (*values.Value, error) {
	if ref == nil {
		return values.NewVoid(), nil
	}
	if ref.Tag != values.TagLocation {
		return ref, nil
	}
	return vm.LoadFromStore(ref.Loc)
}

// LoadFromStore loads the value bound at loc, per spec.md §4.7's
// `loadFromStore`.
func (vm *VirtualMachine) LoadFromStore(loc values.Location) (*values.Value, error) {
	v, ok, err := vm.Store.Load(loc)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, newError(InvalidStoreLocation, "no value bound at %s", loc)
	}
	return v, nil
}

// write stores v at dest (a LOCATION-tagged reference), typifying the
// location with v's declared type if unset. A nil dest is a no-op, for
// opcodes whose Dest operand was omitted.
func (vm *VirtualMachine) write(dest *values.Value, v *values.Value) error {
	if dest == nil {
		return nil
	}
	if dest.Tag != values.TagLocation {
		return newError(TypeMismatch, "assignment destination %v is not a location", dest)
	}
	if declared, ok, err := vm.Store.TypeOf(dest.Loc); err == nil && ok {
		if !v.TypeOf().AssignableTo(declared, vm.Arena) {
			return newError(TypeMismatch, "cannot store %s into %s declared %s", v.TypeOf(), dest.Loc, declared)
		}
	}
	return vm.Store.Store(dest.Loc, v)
}

func (vm *VirtualMachine) arg(instr *opcodes.Instruction, n int) (*values.Value, error) {
	raw := instr.Arg(n)
	if raw == nil {
		return nil, newError(MalformedInstruction, "%s missing operand %d", instr.Op, n)
	}
	return vm.Resolve(raw)
}

// GetCall returns the function currently executing, for `assigneval`'s
// call-stack introspection (spec.md §4.7 `get_call`).
func (vm *VirtualMachine) GetCall() *values.Function {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	return vm.currentCall
}

// GetReturn returns the most recently captured return value, for
// `assigneval`'s `get_return`.
func (vm *VirtualMachine) GetReturn() *values.Value {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	return vm.lastReturn
}

// SetCaptureReturn flags the current scope to capture its return value
// for the caller to retrieve via GetReturn, per spec.md §4.7
// `set_capture_return`.
func (vm *VirtualMachine) SetCaptureReturn(capture bool) {
	vm.Chain.Current().CaptureReturn = capture
}

func (vm *VirtualMachine) allocStreamID() uint64 {
	vm.streamsMu.Lock()
	defer vm.streamsMu.Unlock()
	vm.nextStream++
	return vm.nextStream
}

func (vm *VirtualMachine) registerStream(s streams.Stream) {
	vm.streamsMu.Lock()
	defer vm.streamsMu.Unlock()
	vm.localStreams[s.ID()] = s
}

func (vm *VirtualMachine) stream(id uint64) (streams.Stream, error) {
	vm.streamsMu.Lock()
	defer vm.streamsMu.Unlock()
	s, ok := vm.localStreams[id]
	if !ok {
		return nil, fmt.Errorf("vm: unknown stream id %d", id)
	}
	return s, nil
}
