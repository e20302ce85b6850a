// Package streams implements spec.md §4.6's ordered pipe abstraction used
// by the streaminit/streampush/streampop family of opcodes, plus the
// Fabric resource directory that lets a Resource value be published by
// one worker node and looked up by another.
//
// Grounded on vm/output_buffer.go's OutputBuffer/OutputBufferStack (a
// mutex-guarded buffer with push/pop semantics) reshaped from a stack of
// byte buffers into a single typed FIFO of *values.Value.
package streams

import (
	"github.com/svi-lang/svivm/types"
	"github.com/svi-lang/svivm/values"
)

// Stream is the uniform interface both the in-memory and SQL-backed
// stream implementations satisfy.
type Stream interface {
	ID() uint64
	InnerType() *types.Type
	IsOpen() bool
	Close() error

	Push(v *values.Value) error
	Pop() (v *values.Value, ok bool, err error)
	IsEmpty() (bool, error)
}
