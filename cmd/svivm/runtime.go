package main

import (
	"bytes"
	"fmt"
	"os"

	"github.com/svi-lang/svivm/asm"
	"github.com/svi-lang/svivm/internal/sink"
	"github.com/svi-lang/svivm/opcodes"
	"github.com/svi-lang/svivm/providers"
	"github.com/svi-lang/svivm/queue"
	"github.com/svi-lang/svivm/storage"
	"github.com/svi-lang/svivm/types"
	"github.com/svi-lang/svivm/values"
	"github.com/svi-lang/svivm/vm"
	"github.com/svi-lang/svivm/wire"
)

// bootstrap wires one VM against fresh in-process services: a Router
// backing LOCAL/FUNCTION/PRIMITIVE/OBJECTPROP with an in-memory store and
// SHARED with either another in-memory store (storeDSN == "") or a real
// SQL backend, per spec.md §4.1's "a VM never talks to storage directly,
// it talks to a Router". Mirrors cmd/svivm_old/main.go's
// runtime2.Bootstrap()/vm.NewVirtualMachine() pairing, generalized from a
// single global PHP runtime to a Router/Queue/Wire/Arena bundle per spec.
func bootstrap(storeDSN string, console sink.Sink) (*vm.VirtualMachine, error) {
	arena := types.NewArena()
	w := wire.New(arena)

	local := storage.NewLocal(values.AffinityLocal, values.AffinityFunction, values.AffinityPrimitive, values.AffinityObjectProp)

	var shared storage.Store
	var q *queue.Queue
	if storeDSN == "" {
		shared = storage.NewLocal(values.AffinityShared)
		q = queue.New(queue.NewMemoryStore())
	} else {
		backend, err := storage.Open(storeDSN)
		if err != nil {
			return nil, fmt.Errorf("opening storage %q: %w", storeDSN, err)
		}
		shared = backend
		sqlStore, err := queue.NewSQLStore(backend)
		if err != nil {
			return nil, fmt.Errorf("provisioning job queue: %w", err)
		}
		q = queue.New(sqlStore)
	}

	router := storage.NewRouter(local, shared)
	reg := providers.NewRegistry()

	return vm.New(router, arena, w, q, reg, console.Out, console.Err), nil
}

// loadProgram reads path and assembles it, choosing the SBI binary reader
// or the SVI text parser by peeking the leading magic marker, so `svivm
// run program.svi` and `svivm run program.sbi` both work without a flag.
func loadProgram(path string, w *wire.Wire) ([]*opcodes.Instruction, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return assembleBytes(data, w)
}

func assembleBytes(data []byte, w *wire.Wire) ([]*opcodes.Instruction, error) {
	if asm.IsSBI(data) {
		return asm.ReadSBI(w, data)
	}
	return asm.ParseSVI(bytes.NewReader(data))
}

func runFile(path string, storeDSN string, console sink.Sink) error {
	machine, err := bootstrap(storeDSN, console)
	if err != nil {
		return err
	}
	instrs, err := loadProgram(path, machine.Wire)
	if err != nil {
		return fmt.Errorf("assembling %s: %w", path, err)
	}
	return execute(machine, instrs)
}

func runSource(src []byte, storeDSN string, console sink.Sink) error {
	machine, err := bootstrap(storeDSN, console)
	if err != nil {
		return err
	}
	instrs, err := assembleBytes(src, machine.Wire)
	if err != nil {
		return fmt.Errorf("assembling source: %w", err)
	}
	return execute(machine, instrs)
}

func execute(machine *vm.VirtualMachine, instrs []*opcodes.Instruction) error {
	machine.Initialize(instrs)
	if err := machine.Execute(); err != nil {
		return err
	}
	if code, ok := machine.ExitCode(); ok && code != 0 {
		os.Exit(int(code))
	}
	return nil
}
