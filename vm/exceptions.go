package vm

import (
	"github.com/svi-lang/svivm/opcodes"
	"github.com/svi-lang/svivm/scope"
	"github.com/svi-lang/svivm/values"
)

var handlerSeq uint64

func nextHandlerID() uint64 {
	handlerSeq++
	return handlerSeq
}

// execPushExHandler registers a handler on the current scope: a
// discriminator that resolves to a NUMBER selects Code(n); a FUNCTION
// discriminator selects Predicate(fn); no discriminator at all selects
// Universal (spec.md §4.3).
func (vm *VirtualMachine) execPushExHandler(instr *opcodes.Instruction) (bool, error) {
	fnVal, err := vm.arg(instr, 0)
	if err != nil {
		return false, err
	}
	if fnVal.Tag != values.TagFunction {
		return false, newError(TypeMismatch, "pushexhandler target is not a FUNCTION")
	}

	selector := scope.UniversalSelector()
	if raw := instr.Arg(1); raw != nil {
		disc, err := vm.Resolve(raw)
		if err != nil {
			return false, err
		}
		switch disc.Tag {
		case values.TagNumber:
			selector = scope.CodeSelector(disc.Num)
		case values.TagFunction:
			selector = scope.PredicateSelector(disc.Fn)
		default:
			return false, newError(TypeMismatch, "pushexhandler discriminator must be a NUMBER or FUNCTION")
		}
	}

	id := nextHandlerID()
	vm.Chain.Current().PushHandler(scope.Handler{ID: id, Selector: selector, Fn: fnVal.Fn})
	return true, vm.write(instr.Dest, values.NewNumber(float64(id)))
}

func (vm *VirtualMachine) execPopExHandler(instr *opcodes.Instruction) (bool, error) {
	idVal, err := vm.arg(instr, 0)
	if err != nil {
		return false, err
	}
	if idVal.Tag != values.TagNumber {
		return false, newError(TypeMismatch, "popexhandler operand is not a NUMBER")
	}
	vm.Chain.PopHandlerByID(uint64(idVal.Num))
	return true, nil
}

func (vm *VirtualMachine) selectorMatches(sel scope.Selector, code float64) (bool, error) {
	switch sel.Kind {
	case scope.SelectorUniversal:
		return true, nil
	case scope.SelectorCode:
		return sel.Code == code, nil
	case scope.SelectorPredicate:
		ret, err := vm.invokeSync(sel.Predicate, values.NewNumber(code))
		if err != nil {
			return false, err
		}
		return ret.Tag == values.TagBoolean && ret.Bool, nil
	default:
		return false, nil
	}
}

// execRaise searches the scope chain for the innermost matching handler
// and invokes it with the raised code; with no match, the program
// terminates (spec.md §4.3, §8 property 6).
func (vm *VirtualMachine) execRaise(instr *opcodes.Instruction) (bool, error) {
	codeVal, err := vm.arg(instr, 0)
	if err != nil {
		return false, err
	}
	if codeVal.Tag != values.TagNumber {
		return false, newError(TypeMismatch, "raise operand is not a NUMBER")
	}

	for _, cand := range vm.Chain.Candidates() {
		matched, err := vm.selectorMatches(cand.Handler.Selector, codeVal.Num)
		if err != nil {
			return false, err
		}
		if !matched {
			continue
		}
		if _, err := vm.invokeSync(cand.Handler.Fn, codeVal); err != nil {
			return false, err
		}
		return true, nil
	}

	vm.mu.Lock()
	code := codeVal.Num
	vm.exitCode = &code
	vm.mu.Unlock()
	vm.halted = true
	return false, nil
}

// execResume calls fn to continue execution after a handler ran, per
// spec.md §4.3's `resume fn`.
func (vm *VirtualMachine) execResume(instr *opcodes.Instruction) (bool, error) {
	fnVal, err := vm.arg(instr, 0)
	if err != nil {
		return false, err
	}
	if fnVal.Tag != values.TagFunction {
		return false, newError(TypeMismatch, "resume operand is not a FUNCTION")
	}
	_, err = vm.invokeSync(fnVal.Fn, nil)
	return true, err
}
