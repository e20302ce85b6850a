package vm

import (
	"fmt"

	"github.com/svi-lang/svivm/opcodes"
	"github.com/svi-lang/svivm/queue"
	"github.com/svi-lang/svivm/scope"
	"github.com/svi-lang/svivm/values"
)

// execBeginFn opens a function region (spec.md §4.2's prepass). If the VM
// arrived here by falling through sequential execution rather than by a
// `call` jump, it skips straight to the matching return's successor;
// vm.enteringCall (set by invokeSync right before the jump) distinguishes
// the two arrivals.
func (vm *VirtualMachine) execBeginFn(instr *opcodes.Instruction) (bool, error) {
	if vm.enteringCall {
		vm.enteringCall = false
		return true, nil
	}
	name := ""
	if n := instr.Arg(0); n != nil {
		name = n.Str
	}
	skip, ok := vm.State.SkipTarget(name)
	if !ok {
		return false, newError(MalformedInstruction, "beginfn %s has no matching return", name)
	}
	vm.State.PC = skip
	return false, nil
}

// execFnParam binds the next positional curried argument of the enclosing
// call into a fresh local binding.
func (vm *VirtualMachine) execFnParam(instr *opcodes.Instruction) (bool, error) {
	s := vm.Chain.Current()
	if s.Call == nil {
		return false, newError(MalformedInstruction, "fnparam outside of a call")
	}
	declared, err := vm.arg(instr, 0)
	if err != nil {
		return false, err
	}
	if declared.Tag != values.TagType {
		return false, newError(TypeMismatch, "fnparam declared type operand is not a TYPE")
	}
	rawLoc := instr.Arg(1)
	if rawLoc == nil || rawLoc.Tag != values.TagLocation {
		return false, newError(MalformedInstruction, "fnparam destination operand is not a LOCATION")
	}

	idx := vm.paramCursor[s]
	if idx >= len(s.Call.Curried) {
		return false, newError(TypeMismatch, "call to %s is missing argument %d", s.Call.Name, idx)
	}
	arg := s.Call.Curried[idx]
	if !arg.TypeOf().AssignableTo(declared.Typ, vm.Arena) {
		return false, newError(TypeMismatch, "argument %d to %s is %s, declared %s", idx, s.Call.Name, arg.TypeOf(), declared.Typ)
	}
	vm.paramCursor[s] = idx + 1

	s.Bind(rawLoc.Loc.Name, rawLoc.Loc)
	if err := vm.Store.Typify(rawLoc.Loc, declared.Typ); err != nil {
		return false, err
	}
	return true, vm.Store.Store(rawLoc.Loc, arg)
}

// execReturn unwinds the current call scope, handing the (optional)
// returned value back to the caller via scope.Chain.ReturnToCaller, and
// jumps execution back to the recorded return pc.
func (vm *VirtualMachine) execReturn(instr *opcodes.Instruction) (bool, error) {
	var ret *values.Value
	if len(instr.Args) > 0 {
		v, err := vm.arg(instr, 0)
		if err != nil {
			return false, err
		}
		ret = v
	} else {
		ret = values.NewVoid()
	}

	pc, jumped, found := vm.Chain.ReturnToCaller(ret, true)
	delete(vm.paramCursor, vm.Chain.Current())
	if !found {
		vm.halted = true
		return false, nil
	}
	if _, err := vm.Chain.ExitScope(); err != nil {
		return false, err
	}
	if jumped {
		vm.State.PC = pc
	}
	return false, nil
}

// execCurry partially applies one more argument to a function reference,
// validating it against the function's declared parameter type when
// available, per spec.md §4.3's "curry fn, arg ... validates argument
// type".
func (vm *VirtualMachine) execCurry(instr *opcodes.Instruction) (bool, error) {
	fnRef, err := vm.arg(instr, 0)
	if err != nil {
		return false, err
	}
	if fnRef.Tag != values.TagFunction {
		return false, newError(TypeMismatch, "curry target is not a FUNCTION")
	}
	arg, err := vm.arg(instr, 1)
	if err != nil {
		return false, err
	}
	if idx := len(fnRef.Fn.Curried); idx < len(fnRef.Fn.Params) {
		if !arg.TypeOf().AssignableTo(fnRef.Fn.Params[idx], vm.Arena) {
			return false, newError(TypeMismatch, "curry argument %d to %s is %s, declared %s", idx, fnRef.Fn.Name, arg.TypeOf(), fnRef.Fn.Params[idx])
		}
	}
	curried := &values.Value{Tag: values.TagFunction, Decl: fnRef.Decl, Fn: fnRef.Fn.Curry(arg)}
	return true, vm.write(instr.Dest, curried)
}

func (vm *VirtualMachine) resolveCallTarget(instr *opcodes.Instruction, fnArgIdx, extraArgIdx int) (*values.Function, error) {
	fnRef, err := vm.arg(instr, fnArgIdx)
	if err != nil {
		return nil, err
	}
	if fnRef.Tag != values.TagFunction {
		return nil, newError(TypeMismatch, "call target is not a FUNCTION")
	}
	fn := fnRef.Fn
	if extra := instr.Arg(extraArgIdx); extra != nil {
		extraVal, err := vm.Resolve(extra)
		if err != nil {
			return nil, err
		}
		fn = fn.Curry(extraVal)
	}
	return fn, nil
}

// invokeSync runs fn to completion inline on this VM's own instruction
// tape, capturing its return value via the capture-return flag already
// wired into scope.Chain.ReturnToCaller. Provider-backed functions (those
// with a non-empty Backend) are dispatched through vm.Providers instead of
// jumping into the instruction tape, since they have no beginfn/return
// region to jump to.
func (vm *VirtualMachine) invokeSync(fn *values.Function, extra *values.Value) (*values.Value, error) {
	if extra != nil {
		fn = fn.Curry(extra)
	}
	if fn.Backend != "" {
		if vm.Providers == nil {
			return nil, newError(MissingProducer, "no provider registry configured for backend %q", fn.Backend)
		}
		return vm.Providers.Invoke(fn, nil)
	}

	entry, ok := vm.State.EntryOf(fn.Name)
	if !ok {
		return nil, fmt.Errorf("vm: no function named %q", fn.Name)
	}

	depth := vm.Chain.Depth()
	caller := vm.Chain.Current()
	caller.CaptureReturn = true

	vm.Chain.EnterCallScope(fn, vm.State.PC+1)
	prevCall := vm.currentCall
	vm.mu.Lock()
	vm.currentCall = fn
	vm.mu.Unlock()

	vm.enteringCall = true
	vm.State.PC = entry
	err := vm.runUntilDepth(depth)

	vm.mu.Lock()
	vm.currentCall = prevCall
	vm.mu.Unlock()
	if err != nil {
		return nil, err
	}

	ret := caller.ReturnValue
	caller.ReturnValue = nil
	if ret == nil {
		ret = values.NewVoid()
	}
	vm.mu.Lock()
	vm.lastReturn = ret
	vm.mu.Unlock()
	return ret, nil
}

// runUntilDepth steps the VM until the scope chain unwinds back to target
// depth (a call returned) or the program halts, the same fetch-dispatch-
// advance shape as Step, reused here so a synchronous `call` can run its
// callee to completion before the surrounding instruction continues.
func (vm *VirtualMachine) runUntilDepth(target int) error {
	for vm.Chain.Depth() > target && !vm.halted {
		if vm.State.AtEnd(vm.State.PC) {
			return fmt.Errorf("vm: instruction tape exhausted inside a call")
		}
		pc := vm.State.PC
		instr := vm.State.Fetch(pc)
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
	}
	return nil
}

func (vm *VirtualMachine) execCall(instr *opcodes.Instruction) (bool, error) {
	fn, err := vm.resolveCallTarget(instr, 0, 1)
	if err != nil {
		return false, err
	}
	ret, err := vm.invokeSync(fn, nil)
	if err != nil {
		return false, err
	}
	return true, vm.write(instr.Dest, ret)
}

func (vm *VirtualMachine) execCallGate(instr *opcodes.Instruction, want bool) (bool, error) {
	cond, err := vm.arg(instr, 0)
	if err != nil {
		return false, err
	}
	if cond.Tag != values.TagBoolean {
		return false, newError(TypeMismatch, "%s condition is not a BOOLEAN", instr.Op)
	}
	if cond.Bool != want {
		return true, vm.write(instr.Dest, values.NewVoid())
	}
	fn, err := vm.resolveCallTarget(instr, 1, 2)
	if err != nil {
		return false, err
	}
	ret, err := vm.invokeSync(fn, nil)
	if err != nil {
		return false, err
	}
	return true, vm.write(instr.Dest, ret)
}

func (vm *VirtualMachine) execCallIf(instr *opcodes.Instruction) (bool, error) {
	return vm.execCallGate(instr, true)
}

func (vm *VirtualMachine) execCallElse(instr *opcodes.Instruction) (bool, error) {
	return vm.execCallGate(instr, false)
}

// captureJobState snapshots the caller's live scope chain and instruction
// state into independent copies, round-tripping them through package
// wire's ReduceChain/ProduceChain and ReduceState/ProduceState document
// forms (the same machinery a cross-node job migration uses, spec.md
// §4.5/§4.6). A deferred job must see the scope and PC exactly as they
// stood at pushcall/enumerate time, not the live `*scope.State` the
// calling VM keeps mutating underneath it, per spec.md's "a worker
// rebuilds a VM, restores Scope and State" guarantee.
func (vm *VirtualMachine) captureJobState() (*scope.Scope, *scope.State) {
	chainDocs := vm.Wire.ReduceChain(vm.Chain.Current())
	leaf := vm.Wire.ProduceChain(scope.NewChain(), chainDocs)
	st := vm.Wire.ProduceState(vm.Wire.ReduceState(vm.State))
	return leaf, st
}

// deferCall enqueues fn as a job in the current queue context, recording
// dest (if any) so execDrain can write the eventual return value once the
// queue delivers it, per spec.md §4.5's "the assignment is deferred until
// the queue delivers the return value".
func (vm *VirtualMachine) deferCall(fn *values.Function, dest *values.Value) error {
	if vm.Queue == nil {
		return newError(InvalidResourceOperation, "no queue configured for pushcall")
	}
	leaf, st := vm.captureJobState()
	job := &queue.Job{
		ID:      queue.NewJobID(),
		Call:    fn,
		Scope:   leaf,
		State:   st,
		Filters: vm.filterSnapshot(),
		Status:  queue.Pending,
	}
	if err := vm.Queue.Push(job); err != nil {
		return err
	}
	if dest != nil {
		vm.trackPendingAssign(job.ID, dest.Loc)
	}
	return nil
}

// deferCallTracked enqueues fn and reports the allocated JobID, used by
// `enumerate` to correlate each element job with its original index.
func (vm *VirtualMachine) deferCallTracked(fn *values.Function) (queue.JobID, error) {
	if vm.Queue == nil {
		return queue.JobID{}, newError(InvalidResourceOperation, "no queue configured for enumerate")
	}
	leaf, st := vm.captureJobState()
	job := &queue.Job{
		ID:      queue.NewJobID(),
		Call:    fn,
		Scope:   leaf,
		State:   st,
		Filters: vm.filterSnapshot(),
		Status:  queue.Pending,
	}
	if err := vm.Queue.Push(job); err != nil {
		return queue.JobID{}, err
	}
	return job.ID, nil
}

func (vm *VirtualMachine) execPushCall(instr *opcodes.Instruction) (bool, error) {
	fn, err := vm.resolveCallTarget(instr, 0, 1)
	if err != nil {
		return false, err
	}
	return true, vm.deferCall(fn, instr.Dest)
}

func (vm *VirtualMachine) execPushCallGate(instr *opcodes.Instruction, want bool) (bool, error) {
	cond, err := vm.arg(instr, 0)
	if err != nil {
		return false, err
	}
	if cond.Tag != values.TagBoolean {
		return false, newError(TypeMismatch, "%s condition is not a BOOLEAN", instr.Op)
	}
	if cond.Bool != want {
		return true, nil
	}
	fn, err := vm.resolveCallTarget(instr, 1, 2)
	if err != nil {
		return false, err
	}
	return true, vm.deferCall(fn, instr.Dest)
}

func (vm *VirtualMachine) execPushCallIf(instr *opcodes.Instruction) (bool, error) {
	return vm.execPushCallGate(instr, true)
}

func (vm *VirtualMachine) execPushCallElse(instr *opcodes.Instruction) (bool, error) {
	return vm.execPushCallGate(instr, false)
}

// RunJob implements queue.Runner: it restores an isolated VM view sharing
// this VM's Store/Arena/Wire/Queue/Providers and runs exactly one call to
// completion, per spec.md §4.7's "execute_call(call)" and §4.5's "a
// worker rebuilds a VM, restores Scope and State ... runs the single
// call".
func (vm *VirtualMachine) RunJob(j *queue.Job) error {
	sub := New(vm.Store, vm.Arena, vm.Wire, vm.Queue, vm.Providers, vm.out, vm.err)
	sub.Restore(j.Scope, j.State)
	ret, err := sub.invokeSync(j.Call, nil)
	if err != nil {
		return err
	}
	j.Return = ret
	return nil
}
