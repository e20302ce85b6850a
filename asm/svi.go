package asm

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/svi-lang/svivm/opcodes"
	"github.com/svi-lang/svivm/types"
	"github.com/svi-lang/svivm/values"
)

// ParseSVI parses SVI textual source (spec.md §6.1) into a flat
// instruction tape, one opcodes.Instruction per non-blank, non-comment
// line, ready to hand to scope.NewState.
func ParseSVI(r io.Reader) ([]*opcodes.Instruction, error) {
	scanner := bufio.NewScanner(r)
	var instrs []*opcodes.Instruction
	var pendingPos *opcodes.Position
	lineNo := 0

	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(stripComment(scanner.Text()))
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, ".position") {
			pos, err := parsePosition(line)
			if err != nil {
				return nil, fmt.Errorf("asm: line %d: %w", lineNo, err)
			}
			pendingPos = &pos
			continue
		}

		instr, err := parseLine(line)
		if err != nil {
			return nil, fmt.Errorf("asm: line %d: %w", lineNo, err)
		}
		if pendingPos != nil {
			instr.Pos = *pendingPos
			pendingPos = nil
		}
		instrs = append(instrs, instr)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return instrs, nil
}

// stripComment drops everything from the first unquoted "--" onward, per
// spec.md §6.1's "Comments: line-terminated, introduced by --".
func stripComment(line string) string {
	inQuote := false
	for i := 0; i < len(line); i++ {
		switch line[i] {
		case '"':
			if i == 0 || line[i-1] != '\\' {
				inQuote = !inQuote
			}
		case '-':
			if !inQuote && i+1 < len(line) && line[i+1] == '-' {
				return line[:i]
			}
		}
	}
	return line
}

// tokenize splits a line on whitespace, keeping double-quoted substrings
// (including embedded escaped spaces) as single tokens.
func tokenize(line string) []string {
	var tokens []string
	var cur strings.Builder
	inQuote := false
	flush := func() {
		if cur.Len() > 0 {
			tokens = append(tokens, cur.String())
			cur.Reset()
		}
	}
	for i := 0; i < len(line); i++ {
		c := line[i]
		switch {
		case c == '"':
			cur.WriteByte(c)
			if i == 0 || line[i-1] != '\\' {
				inQuote = !inQuote
			}
		case c == ' ' || c == '\t':
			if inQuote {
				cur.WriteByte(c)
			} else {
				flush()
			}
		default:
			cur.WriteByte(c)
		}
	}
	flush()
	return tokens
}

func unquote(tok string) (string, error) {
	if len(tok) < 2 || tok[0] != '"' || tok[len(tok)-1] != '"' {
		return "", fmt.Errorf("malformed string literal %q", tok)
	}
	body := tok[1 : len(tok)-1]
	var out strings.Builder
	for i := 0; i < len(body); i++ {
		if body[i] == '\\' && i+1 < len(body) {
			switch body[i+1] {
			case 'n':
				out.WriteByte('\n')
				i++
				continue
			case '"', '\\':
				out.WriteByte(body[i+1])
				i++
				continue
			}
		}
		out.WriteByte(body[i])
	}
	return out.String(), nil
}

func parsePosition(line string) (opcodes.Position, error) {
	fields := tokenize(line)
	if len(fields) != 4 {
		return opcodes.Position{}, fmt.Errorf("malformed .position annotation %q", line)
	}
	file, err := unquote(fields[1])
	if err != nil {
		return opcodes.Position{}, err
	}
	lineNum, err := strconv.Atoi(fields[2])
	if err != nil {
		return opcodes.Position{}, err
	}
	col, err := strconv.Atoi(fields[3])
	if err != nil {
		return opcodes.Position{}, err
	}
	return opcodes.Position{File: file, Line: lineNum, Col: col}, nil
}

// parseLine handles both line forms of spec.md §6.1: a bare
// `opcode operand*` instruction, and a `$loc <- rhs` assignment, whose
// rhs is either an `opcode operand*` form or a single bare literal
// (which compiles to an implicit `assignvalue`).
func parseLine(line string) (*opcodes.Instruction, error) {
	fields := tokenize(line)
	if len(fields) == 0 {
		return nil, fmt.Errorf("empty instruction")
	}

	if len(fields) >= 2 && fields[1] == "<-" {
		destVal, err := parseOperand(fields[0])
		if err != nil {
			return nil, err
		}
		if destVal.Tag != values.TagLocation {
			return nil, fmt.Errorf("assignment target %q is not a location", fields[0])
		}
		rhs := fields[2:]
		if len(rhs) == 0 {
			return nil, fmt.Errorf("assignment to %q has no right-hand side", fields[0])
		}

		if op, ok := opcodes.Lookup(rhs[0]); ok {
			instr, err := buildInstruction(op, rhs[1:])
			if err != nil {
				return nil, err
			}
			instr.Dest = destVal
			return instr, nil
		}
		if len(rhs) != 1 {
			return nil, fmt.Errorf("bare assignment to %q takes exactly one operand, got %d", fields[0], len(rhs))
		}
		instr, err := buildInstruction(opcodes.OpAssignValue, rhs)
		if err != nil {
			return nil, err
		}
		instr.Dest = destVal
		return instr, nil
	}

	op, ok := opcodes.Lookup(fields[0])
	if !ok {
		return nil, fmt.Errorf("unrecognized opcode mnemonic %q", fields[0])
	}
	return buildInstruction(op, fields[1:])
}

func buildInstruction(op opcodes.Opcode, operandTokens []string) (*opcodes.Instruction, error) {
	if a, ok := Lookup(op); ok {
		if len(operandTokens) < a.Min || len(operandTokens) > a.Max {
			return nil, fmt.Errorf("%s expects %d-%d operands, got %d", op, a.Min, a.Max, len(operandTokens))
		}
	}

	args := make([]*values.Value, len(operandTokens))
	for i, tok := range operandTokens {
		v, err := parseOperand(tok)
		if err != nil {
			return nil, fmt.Errorf("%s operand %d: %w", op, i, err)
		}
		args[i] = v
	}

	// beginfn's own operand names the function being defined, looked up by
	// scope.NewState as a plain string key (see scope/state.go); every
	// other opcode's `f:NAME` operand instead names a callable to invoke,
	// so it is parsed as a FUNCTION reference by default and only
	// downgraded to a STRING here for this one opcode.
	if op == opcodes.OpBeginFn && len(args) > 0 && args[0].Tag == values.TagFunction {
		args[0] = values.NewString(args[0].Fn.Name)
	}

	return &opcodes.Instruction{Op: op, Args: args}, nil
}

func parseOperand(tok string) (*values.Value, error) {
	switch {
	case strings.HasPrefix(tok, "$l:"):
		return values.NewLocation(values.Location{Affinity: values.AffinityLocal, Name: tok[3:]}, nil), nil
	case strings.HasPrefix(tok, "$s:"):
		return values.NewLocation(values.Location{Affinity: values.AffinityShared, Name: tok[3:]}, nil), nil
	case strings.HasPrefix(tok, "f:"):
		return &values.Value{Tag: values.TagFunction, Decl: types.Lambda0(types.Ambiguous()), Fn: &values.Function{Name: tok}}, nil
	case strings.HasPrefix(tok, "p:"):
		return parseTypeName(tok[2:])
	case strings.HasPrefix(tok, "o:"):
		return values.NewString(tok[2:]), nil
	case tok == "true":
		return values.NewBoolean(true), nil
	case tok == "false":
		return values.NewBoolean(false), nil
	case strings.HasPrefix(tok, `"`):
		s, err := unquote(tok)
		if err != nil {
			return nil, err
		}
		return values.NewString(s), nil
	default:
		n, err := strconv.ParseFloat(tok, 64)
		if err != nil {
			return nil, fmt.Errorf("unrecognized operand %q", tok)
		}
		return values.NewNumber(n), nil
	}
}

func parseTypeName(name string) (*values.Value, error) {
	switch name {
	case "STRING":
		return values.NewType(types.String()), nil
	case "NUMBER":
		return values.NewType(types.Number()), nil
	case "BOOLEAN":
		return values.NewType(types.Boolean()), nil
	case "VOID":
		return values.NewType(types.Void()), nil
	case "TYPE":
		return values.NewType(types.TypeType()), nil
	case "THIS":
		return values.NewType(types.This()), nil
	default:
		return nil, fmt.Errorf("unknown type name %q", name)
	}
}
