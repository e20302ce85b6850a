package vm

import (
	"github.com/svi-lang/svivm/opcodes"
	"github.com/svi-lang/svivm/streams"
	"github.com/svi-lang/svivm/types"
	"github.com/svi-lang/svivm/values"
)

const (
	stdoutStreamID uint64 = 1
	stderrStreamID uint64 = 2
)

// stdStream lazily creates the built-in s:STDOUT / s:STDERR streams,
// whose popped elements are handed to the VM's out/err sinks rather than
// kept in the stream's own buffer (spec.md §4.3: "out/err are shorthands
// that push to those streams").
func (vm *VirtualMachine) stdStream(id uint64) streams.Stream {
	vm.streamsMu.Lock()
	s, ok := vm.localStreams[id]
	vm.streamsMu.Unlock()
	if ok {
		return s
	}
	s = streams.NewMemory(id, types.String())
	vm.registerStream(s)
	return s
}

func (vm *VirtualMachine) execStreamInit(instr *opcodes.Instruction) (bool, error) {
	elemType, err := vm.arg(instr, 0)
	if err != nil {
		return false, err
	}
	if elemType.Tag != values.TagType {
		return false, newError(TypeMismatch, "streaminit operand is not a TYPE")
	}
	id := vm.allocStreamID() + stderrStreamID
	s := streams.NewMemory(id, elemType.Typ)
	vm.registerStream(s)
	return true, vm.write(instr.Dest, &values.Value{Tag: values.TagStream, Decl: types.StreamOf(elemType.Typ), StreamID: id})
}

func (vm *VirtualMachine) streamOperand(instr *opcodes.Instruction, n int) (streams.Stream, error) {
	v, err := vm.arg(instr, n)
	if err != nil {
		return nil, err
	}
	if v.Tag != values.TagStream {
		return nil, newError(TypeMismatch, "expected STREAM operand, got %s", v.TypeOf())
	}
	return vm.stream(v.StreamID)
}

func (vm *VirtualMachine) execStreamPush(instr *opcodes.Instruction) (bool, error) {
	v, err := vm.arg(instr, 0)
	if err != nil {
		return false, err
	}
	s, err := vm.streamOperand(instr, 1)
	if err != nil {
		return false, err
	}
	if !v.TypeOf().AssignableTo(s.InnerType(), vm.Arena) {
		return false, newError(TypeMismatch, "cannot push %s into STREAM<%s>", v.TypeOf(), s.InnerType())
	}
	return true, s.Push(v)
}

func (vm *VirtualMachine) execStreamPop(instr *opcodes.Instruction) (bool, error) {
	s, err := vm.streamOperand(instr, 0)
	if err != nil {
		return false, err
	}
	v, ok, err := s.Pop()
	if err != nil {
		return false, err
	}
	if !ok {
		return false, newError(StreamEmpty, "pop from empty stream %d", s.ID())
	}
	return true, vm.write(instr.Dest, v)
}

func (vm *VirtualMachine) execStreamClose(instr *opcodes.Instruction) (bool, error) {
	s, err := vm.streamOperand(instr, 0)
	if err != nil {
		return false, err
	}
	return true, s.Close()
}

func (vm *VirtualMachine) execStreamEmpty(instr *opcodes.Instruction) (bool, error) {
	s, err := vm.streamOperand(instr, 0)
	if err != nil {
		return false, err
	}
	empty, err := s.IsEmpty()
	if err != nil {
		return false, err
	}
	return true, vm.write(instr.Dest, values.NewBoolean(empty))
}

func (vm *VirtualMachine) execOut(instr *opcodes.Instruction) (bool, error) {
	v, err := vm.arg(instr, 0)
	if err != nil {
		return false, err
	}
	s := vm.stdStream(stdoutStreamID)
	if err := s.Push(v); err != nil {
		return false, err
	}
	if popped, ok, err := s.Pop(); err == nil && ok {
		vm.out(popped.String())
	}
	return true, nil
}

func (vm *VirtualMachine) execErr(instr *opcodes.Instruction) (bool, error) {
	v, err := vm.arg(instr, 0)
	if err != nil {
		return false, err
	}
	s := vm.stdStream(stderrStreamID)
	if pushErr := s.Push(v); pushErr != nil {
		return false, pushErr
	}
	if popped, ok, popErr := s.Pop(); popErr == nil && ok {
		vm.err(popped.String())
	}
	return true, nil
}
