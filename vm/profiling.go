package vm

import (
	"fmt"
	"sort"
	"strings"

	"github.com/svi-lang/svivm/opcodes"
)

// profileState accumulates per-pc and per-opcode execution counters,
// adapted from vm/_old/profiling.go's profileState: the same
// instructionCounts/opcodeCounts pair and hotSpots/render shape, trimmed
// of the PHP interpreter's alloc/free byte counters (SVI's values are
// garbage-collected Go structures, not manually refcounted zvals).
type profileState struct {
	instructionCounts map[int]int
	opcodeCounts      map[opcodes.Opcode]int
	total             int
}

func newProfileState() *profileState {
	return &profileState{
		instructionCounts: make(map[int]int),
		opcodeCounts:      make(map[opcodes.Opcode]int),
	}
}

func (p *profileState) observe(pc int, op opcodes.Opcode) {
	p.instructionCounts[pc]++
	p.opcodeCounts[op]++
	p.total++
}

// HotSpots returns the n most frequently executed program counters,
// ties broken by lower pc first.
func (p *profileState) hotSpots(n int) []HotSpot {
	spots := make([]HotSpot, 0, len(p.instructionCounts))
	for pc, count := range p.instructionCounts {
		spots = append(spots, HotSpot{PC: pc, Count: count})
	}
	sort.Slice(spots, func(i, j int) bool {
		if spots[i].Count != spots[j].Count {
			return spots[i].Count > spots[j].Count
		}
		return spots[i].PC < spots[j].PC
	})
	if n > 0 && len(spots) > n {
		spots = spots[:n]
	}
	return spots
}

func (p *profileState) render() string {
	var b strings.Builder
	fmt.Fprintf(&b, "executed %d instructions\n", p.total)
	opNames := make([]string, 0, len(p.opcodeCounts))
	for op := range p.opcodeCounts {
		opNames = append(opNames, op.String())
	}
	sort.Strings(opNames)
	for _, name := range opNames {
		op, _ := opcodes.Lookup(name)
		fmt.Fprintf(&b, "  %-16s %d\n", name, p.opcodeCounts[op])
	}
	return b.String()
}

// HotSpots exposes the VM's accumulated hot-pc counters for diagnostics
// (e.g. a `--profile` flag on cmd/svivm).
func (vm *VirtualMachine) HotSpots(n int) []HotSpot { return vm.profile.hotSpots(n) }

// ProfileReport renders a human-readable execution summary.
func (vm *VirtualMachine) ProfileReport() string { return vm.profile.render() }
