// Command svivm runs SVI programs: assemble text or binary tapes, execute
// them standalone or against a shared SQL backend, or host a worker node
// that drains jobs off a distributed queue.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/svi-lang/svivm/internal/sink"
	"github.com/svi-lang/svivm/version"
)

func main() {
	app := &cli.Command{
		Name:  "svivm",
		Usage: "A distributed bytecode VM for the SVI instruction set",
		Commands: []*cli.Command{
			runCommand,
			asmCommand,
			workerCommand,
		},
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "a",
				Local:   true,
				Usage:   "Start an interactive REPL",
			},
			&cli.StringFlag{
				Name:    "code",
				Local:   true,
				Aliases: []string{"r"},
				Usage:   "Assemble and run <code> directly",
			},
			&cli.StringFlag{
				Name:    "file",
				Local:   true,
				Aliases: []string{"f"},
				Usage:   "Assemble and run <file>",
			},
			&cli.StringFlag{
				Name:    "store",
				Local:   true,
				Usage:   "SQL storage DSN for SHARED locations (mysql:/pgsql:/sqlite: prefix)",
			},
			&cli.BoolFlag{
				Name:  "version",
				Local: true,
				Usage: "Show version",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.Bool("version") {
				fmt.Println(version.Version())
				return nil
			}
			if cmd.Bool("a") {
				return runREPL(sink.NewStdConsole(), cmd.String("store"))
			}
			if code := cmd.String("code"); code != "" {
				return runSource([]byte(code), cmd.String("store"), sink.NewStdConsole())
			}
			if file := cmd.String("file"); file != "" {
				return runFile(file, cmd.String("store"), sink.NewStdConsole())
			}
			if cmd.Args().Len() > 0 {
				return runFile(cmd.Args().First(), cmd.String("store"), sink.NewStdConsole())
			}
			return runREPL(sink.NewStdConsole(), cmd.String("store"))
		},
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "svivm: %v\n", err)
		os.Exit(1)
	}
}

var runCommand = &cli.Command{
	Name:      "run",
	Usage:     "Assemble and execute an SVI program",
	ArgsUsage: "<file>",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "store", Usage: "SQL storage DSN for SHARED locations"},
	},
	Action: func(ctx context.Context, cmd *cli.Command) error {
		if cmd.Args().Len() == 0 {
			return fmt.Errorf("run: a file argument is required")
		}
		return runFile(cmd.Args().First(), cmd.String("store"), sink.NewStdConsole())
	},
}
