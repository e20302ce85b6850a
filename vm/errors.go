package vm

import (
	"errors"
	"fmt"

	"github.com/svi-lang/svivm/opcodes"
)

// Kind identifies one of spec.md §7's internal VM error kinds. These are
// distinct from a user-level `raise`: an internal error bubbles straight
// out of the owning frame and is never caught by a `pushexhandler`.
type Kind byte

const (
	InvalidStoreLocation Kind = iota
	InvalidOrMissingFilePath
	TypeMismatch
	DivideByZero
	StreamEmpty
	EnumOutOfBounds
	MapMissingKey
	InvalidResourceOperation
	AttemptedCloneOfNonReplicableResource
	MissingProducer
	MissingReducer
	ForeignThread
	MalformedInstruction
)

func (k Kind) String() string {
	switch k {
	case InvalidStoreLocation:
		return "InvalidStoreLocation"
	case InvalidOrMissingFilePath:
		return "InvalidOrMissingFilePath"
	case TypeMismatch:
		return "TypeMismatch"
	case DivideByZero:
		return "DivideByZero"
	case StreamEmpty:
		return "StreamEmpty"
	case EnumOutOfBounds:
		return "EnumOutOfBounds"
	case MapMissingKey:
		return "MapMissingKey"
	case InvalidResourceOperation:
		return "InvalidResourceOperation"
	case AttemptedCloneOfNonReplicableResource:
		return "AttemptedCloneOfNonReplicableResource"
	case MissingProducer:
		return "MissingProducer"
	case MissingReducer:
		return "MissingReducer"
	case ForeignThread:
		return "ForeignThread"
	case MalformedInstruction:
		return "MalformedInstruction"
	default:
		return "UnknownError"
	}
}

// Error wraps an internal error Kind with the instruction context it
// failed at, adapted in structure from vm/_old/errors.go's
// VMError/NewVMError/DecorateError family (base error + context message +
// opcode/IP), narrowed to the fixed Kind enumeration spec.md §7 names
// instead of a grab-bag of sentinel errors.
type Error struct {
	Kind    Kind
	Message string
	Opcode  opcodes.Opcode
	PC      int
}

func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s at pc=%d (%s): %s", e.Kind, e.PC, e.Opcode, e.Message)
	}
	return fmt.Sprintf("%s at pc=%d (%s)", e.Kind, e.PC, e.Opcode)
}

func newError(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// decorate attaches the failing instruction's opcode and program counter,
// mirroring vm/_old/vm.go's decorateError wrapping step.
func decorate(err error, pc int, op opcodes.Opcode) error {
	if err == nil {
		return nil
	}
	var verr *Error
	if errors.As(err, &verr) {
		verr.PC = pc
		verr.Opcode = op
		return verr
	}
	return fmt.Errorf("vm error at pc=%d (%s): %w", pc, op, err)
}

// IsKind reports whether err is a *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	var verr *Error
	return errors.As(err, &verr) && verr.Kind == kind
}
