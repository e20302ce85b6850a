package main

import (
	"bytes"
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/svi-lang/svivm/asm"
	"github.com/svi-lang/svivm/types"
	"github.com/svi-lang/svivm/wire"
)

// asmCommand standalone-assembles SVI text into an SBI binary tape (or
// the reverse with -d), independent of execution. Supplements spec.md
// §6's external interfaces: the SVI/SBI formats are meant to be produced
// and consumed by tooling other than the VM itself (a compiler front
// end, a debugger), so the assembler needs to exist as its own verb.
var asmCommand = &cli.Command{
	Name:      "asm",
	Usage:     "Assemble SVI text to SBI binary, or disassemble with -d",
	ArgsUsage: "<input> [output]",
	Flags: []cli.Flag{
		&cli.BoolFlag{Name: "d", Usage: "Disassemble SBI binary to SVI-shaped instruction dump"},
	},
	Action: func(ctx context.Context, cmd *cli.Command) error {
		if cmd.Args().Len() == 0 {
			return fmt.Errorf("asm: an input file is required")
		}
		input := cmd.Args().First()

		data, err := os.ReadFile(input)
		if err != nil {
			return err
		}

		w := wire.New(types.NewArena())

		if cmd.Bool("d") {
			instrs, err := asm.ReadSBI(w, data)
			if err != nil {
				return err
			}
			for _, instr := range instrs {
				fmt.Println(instr.String())
			}
			return nil
		}

		instrs, err := asm.ParseSVI(bytes.NewReader(data))
		if err != nil {
			return fmt.Errorf("asm: parsing %s: %w", input, err)
		}
		blob, err := asm.WriteSBI(w, instrs)
		if err != nil {
			return err
		}

		if cmd.Args().Len() >= 2 {
			return os.WriteFile(cmd.Args().Get(1), blob, 0o644)
		}
		_, err = os.Stdout.Write(blob)
		return err
	},
}
