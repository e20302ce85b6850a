package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/chzyer/readline"

	"github.com/svi-lang/svivm/asm"
	"github.com/svi-lang/svivm/internal/sink"
)

// runREPL hosts a line-mode SVI shell, adapted from
// cmd/svivm_old/main.go's runInteractiveShell/needsMoreInput/
// executeREPLCode trio. chzyer/readline replaces the teacher's hand-rolled
// bufio.Scanner loop for history and line editing; the multiline
// continuation heuristic is rewritten from PHP's brace/quote balance to
// SVI's own nesting construct, a `beginfn` awaiting its matching
// `return`, since SVI has no braces at all.
//
// Each submitted block is assembled and run against a VM that is
// Initialize'd fresh per submission but shares the same Router-backed
// Store across submissions, so `$l:x <- 2` in one line and `out $l:x` in
// the next see the same value: state lives in storage, not in the
// instruction tape.
func runREPL(console sink.Sink, storeDSN string) error {
	machine, err := bootstrap(storeDSN, console)
	if err != nil {
		return err
	}

	rl, err := readline.New("svivm > ")
	if err != nil {
		return err
	}
	defer rl.Close()

	var buffer strings.Builder
	openFns := 0

	for {
		prompt := "svivm > "
		if openFns > 0 {
			prompt = "     .. "
		}
		rl.SetPrompt(prompt)

		line, err := rl.Readline()
		if err == readline.ErrInterrupt {
			if buffer.Len() == 0 {
				continue
			}
			buffer.Reset()
			openFns = 0
			continue
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}

		trimmed := strings.TrimSpace(line)
		if openFns == 0 && (trimmed == "exit" || trimmed == "quit") {
			return nil
		}

		buffer.WriteString(line)
		buffer.WriteByte('\n')
		openFns += fnDelta(trimmed)

		if openFns > 0 {
			continue
		}

		src := buffer.String()
		buffer.Reset()
		openFns = 0

		if strings.TrimSpace(src) == "" {
			continue
		}

		instrs, err := asm.ParseSVI(strings.NewReader(src))
		if err != nil {
			console.Err(err.Error())
			continue
		}

		machine.Initialize(instrs)
		if err := machine.Execute(); err != nil {
			console.Err(err.Error())
			continue
		}
		if code, ok := machine.ExitCode(); ok {
			console.Out(fmt.Sprintf("exit: %v", code))
			return nil
		}
	}
}

// fnDelta reports how a line changes the REPL's open-beginfn count: +1 for
// a line starting a function body, -1 for the return that closes it.
func fnDelta(line string) int {
	switch {
	case strings.HasPrefix(line, "beginfn"):
		return 1
	case strings.HasPrefix(line, "return"):
		return -1
	default:
		return 0
	}
}
