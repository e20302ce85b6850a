package vm

import (
	"time"

	"github.com/svi-lang/svivm/opcodes"
	"github.com/svi-lang/svivm/values"
)

// execWhile repeatedly invokes a body function while a condition location
// holds true, re-reading the condition before each iteration (spec.md
// §4.3's `while cond, body`).
func (vm *VirtualMachine) execWhile(instr *opcodes.Instruction) (bool, error) {
	condLoc := instr.Arg(0)
	if condLoc == nil {
		return false, newError(MalformedInstruction, "while missing condition operand")
	}
	bodyVal, err := vm.arg(instr, 1)
	if err != nil {
		return false, err
	}
	if bodyVal.Tag != values.TagFunction {
		return false, newError(TypeMismatch, "while body is not a FUNCTION")
	}
	for {
		cond, err := vm.Resolve(condLoc)
		if err != nil {
			return false, err
		}
		if cond.Tag != values.TagBoolean {
			return false, newError(TypeMismatch, "while condition is not a BOOLEAN")
		}
		if !cond.Bool {
			return true, nil
		}
		if _, err := vm.invokeSync(bodyVal.Fn, nil); err != nil {
			return false, err
		}
	}
}

// resourceTagFilter asks a TAG resource to describe itself, expecting a
// MAP with "key"/"value" string entries, for the duration a `with` block
// holds it (spec.md §4.5's "Filters are applied ... by holding a TAG
// resource during a with block").
func (vm *VirtualMachine) resourceTagFilter(res *values.Resource) (key, val string, ok bool, err error) {
	if res.Kind != "TAG" || res.Invoke == nil {
		return "", "", false, nil
	}
	desc, err := res.Invoke("describe", nil)
	if err != nil {
		return "", "", false, err
	}
	if desc == nil || desc.Tag != values.TagMap {
		return "", "", false, nil
	}
	k, kok := desc.Map.Get("key")
	v, vok := desc.Map.Get("value")
	if !kok || !vok || k.Tag != values.TagString || v.Tag != values.TagString {
		return "", "", false, nil
	}
	return k.Str, v.Str, true, nil
}

// execWith acquires a resource, runs a body function, and releases the
// resource on every exit path — normal return or error — per spec.md
// §4.3's `with resource, body`. TAG resources additionally apply a
// scheduling filter for the block's duration.
func (vm *VirtualMachine) execWith(instr *opcodes.Instruction) (bool, error) {
	resVal, err := vm.arg(instr, 0)
	if err != nil {
		return false, err
	}
	if resVal.Tag != values.TagResource {
		return false, newError(TypeMismatch, "with target is not a RESOURCE")
	}
	bodyVal, err := vm.arg(instr, 1)
	if err != nil {
		return false, err
	}
	if bodyVal.Tag != values.TagFunction {
		return false, newError(TypeMismatch, "with body is not a FUNCTION")
	}
	res := resVal.Res
	if res.Invoke == nil {
		return false, newError(InvalidResourceOperation, "resource %s has no operations", res.Kind)
	}
	if _, err := res.Invoke("acquire", nil); err != nil {
		return false, err
	}

	key, val, hasFilter, ferr := vm.resourceTagFilter(res)
	if ferr == nil && hasFilter {
		vm.filtersMu.Lock()
		vm.activeFilters[key] = val
		vm.filtersMu.Unlock()
		defer func() {
			vm.filtersMu.Lock()
			delete(vm.activeFilters, key)
			vm.filtersMu.Unlock()
		}()
	}

	defer res.Invoke("release", nil)

	_, runErr := vm.invokeSync(bodyVal.Fn, nil)
	return true, runErr
}

// execDrain blocks until the current queue context is idle, then merges
// each completed pushcall's return value into the location it was bound
// for (spec.md §4.5's `drain`).
func (vm *VirtualMachine) execDrain(instr *opcodes.Instruction) (bool, error) {
	for !vm.Queue.Idle() {
		time.Sleep(lockRetryInterval)
	}
	results := vm.Queue.Drain()
	for jobID, v := range results {
		if loc, ok := vm.takePendingAssign(jobID); ok {
			if err := vm.Store.Store(loc, v); err != nil {
				return false, err
			}
		}
	}
	return true, nil
}

func (vm *VirtualMachine) execEnterContext(instr *opcodes.Instruction) (bool, error) {
	id := vm.Queue.EnterContext()
	return true, vm.write(instr.Dest, values.NewContextID(id))
}

func (vm *VirtualMachine) execResumeContext(instr *opcodes.Instruction) (bool, error) {
	idVal, err := vm.arg(instr, 0)
	if err != nil {
		return false, err
	}
	if idVal.Tag != values.TagContextID {
		return false, newError(TypeMismatch, "resumecontext operand is not a CONTEXT")
	}
	if !vm.Queue.ResumeContext(idVal.ContextID) {
		return false, newError(InvalidResourceOperation, "unknown context %d", idVal.ContextID)
	}
	return true, nil
}

func (vm *VirtualMachine) execPopContext(instr *opcodes.Instruction) (bool, error) {
	id := vm.Queue.PopContext()
	return true, vm.write(instr.Dest, values.NewContextID(id))
}
