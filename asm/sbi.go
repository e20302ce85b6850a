package asm

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/svi-lang/svivm/opcodes"
	"github.com/svi-lang/svivm/wire"
)

// sbiMagic is the four-byte marker spec.md §6.2 puts at the front of a
// binary SBI file, letting a loader peek the first few bytes of an input
// and decide whether it holds SVI text or an SBI tape without parsing
// either.
const sbiMagic = "\x7fSVI"

// WriteSBI encodes a tape of instructions into the binary form described
// by spec.md §6.2: the \x7fSVI marker followed by a document whose BODY
// is the ordered list of wire-reduced instructions. Each instruction is
// reduced through the same wire.Wire a running VM already uses to ship a
// job's call stack across a storage.Store boundary (see wire/calls.go),
// so a program assembled once and a program reconstructed after a
// worker hand-off serialize identically.
//
// Document encoding is stdlib encoding/json rather than a third-party
// codec: the corpus carries no schema-free structured-data serializer
// (no protobuf, no msgpack, no gob-with-registered-types) that can round
// a trip a bare map[string]any the way wire.Wire already produces it,
// and json is the one stdlib format wire/wire_test.go's existing
// round-trip tests already assume when comparing documents.
func WriteSBI(w *wire.Wire, instrs []*opcodes.Instruction) ([]byte, error) {
	body := make([]any, len(instrs))
	for i, instr := range instrs {
		body[i] = w.ReduceInstruction(instr)
	}
	doc := map[string]any{"BODY": body}

	payload, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("asm: encoding SBI body: %w", err)
	}

	out := make([]byte, 0, len(sbiMagic)+len(payload))
	out = append(out, sbiMagic...)
	out = append(out, payload...)
	return out, nil
}

// ReadSBI decodes a buffer produced by WriteSBI back into a tape.
func ReadSBI(w *wire.Wire, data []byte) ([]*opcodes.Instruction, error) {
	if !IsSBI(data) {
		return nil, fmt.Errorf("asm: missing SBI magic marker")
	}
	payload := data[len(sbiMagic):]

	var doc map[string]any
	if err := json.Unmarshal(payload, &doc); err != nil {
		return nil, fmt.Errorf("asm: decoding SBI body: %w", err)
	}

	rawBody, _ := doc["BODY"].([]any)
	instrs := make([]*opcodes.Instruction, 0, len(rawBody))
	for _, raw := range rawBody {
		idoc, ok := raw.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("asm: malformed BODY entry %T", raw)
		}
		instrs = append(instrs, w.ProduceInstruction(idoc))
	}
	return instrs, nil
}

// IsSBI reports whether data begins with the SBI magic marker, letting a
// loader choose between ReadSBI and ParseSVI without inspecting file
// extensions.
func IsSBI(data []byte) bool {
	return bytes.HasPrefix(data, []byte(sbiMagic))
}
