package vm

import (
	"time"

	"github.com/svi-lang/svivm/opcodes"
	"github.com/svi-lang/svivm/values"
)

// lockRetryInterval paces lock/drain retry-sleep suspension points
// (spec.md §5's "cooperative with respect to explicit suspension points").
var lockRetryInterval = time.Millisecond

// execLock blocks (by retry-sleep) until a non-blocking Acquire succeeds,
// then tracks the lock both on the current scope (guaranteed release on
// scope exit) and in vm.locks (so a later explicit `unlock` can find it).
func (vm *VirtualMachine) execLock(instr *opcodes.Instruction) (bool, error) {
	rawLoc := instr.Arg(0)
	if rawLoc == nil || rawLoc.Tag != values.TagLocation {
		return false, newError(MalformedInstruction, "lock target is not a LOCATION")
	}
	for {
		lock, acquired, err := vm.Store.Acquire(rawLoc.Loc)
		if err != nil {
			return false, err
		}
		if acquired {
			vm.locksMu.Lock()
			vm.locks[rawLoc.Loc] = lock
			vm.locksMu.Unlock()
			vm.Chain.Current().TrackLock(lock)
			return true, nil
		}
		time.Sleep(lockRetryInterval)
	}
}

// execUnlock is a no-op if the location isn't held, per spec.md §4.3.
func (vm *VirtualMachine) execUnlock(instr *opcodes.Instruction) (bool, error) {
	rawLoc := instr.Arg(0)
	if rawLoc == nil || rawLoc.Tag != values.TagLocation {
		return false, newError(MalformedInstruction, "unlock target is not a LOCATION")
	}
	vm.locksMu.Lock()
	lock, ok := vm.locks[rawLoc.Loc]
	if ok {
		delete(vm.locks, rawLoc.Loc)
	}
	vm.locksMu.Unlock()
	if !ok {
		return true, nil
	}
	return true, lock.Release()
}
