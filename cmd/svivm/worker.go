package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"

	"github.com/svi-lang/svivm/internal/config"
	"github.com/svi-lang/svivm/internal/sink"
	"github.com/svi-lang/svivm/queue"
)

// workerCommand hosts one or more worker-node processes draining jobs off
// a shared SQL-backed queue, per spec.md §4.5. Grounded on
// pkg/fpm/pool/worker.go's lifecycle (spawn N workers, wait on a signal,
// stop them), replacing its FastCGI request loop with
// queue.Worker.tick()'s claim/restore/RunJob/complete cycle.
var workerCommand = &cli.Command{
	Name:  "worker",
	Usage: "Run a worker node draining jobs from the shared queue",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "config", Usage: "path to a svivm worker config file"},
		&cli.StringFlag{Name: "store", Usage: "SQL storage DSN, overrides the config file's storage_dsn"},
		&cli.IntFlag{Name: "workers", Usage: "number of worker goroutines, overrides worker_count"},
	},
	Action: func(ctx context.Context, cmd *cli.Command) error {
		cfg := config.Default()
		if path := cmd.String("config"); path != "" {
			loaded, err := config.Load(path)
			if err != nil {
				return fmt.Errorf("worker: loading config: %w", err)
			}
			cfg = loaded
		}
		if dsn := cmd.String("store"); dsn != "" {
			cfg.StorageDSN = dsn
		}
		if n := cmd.Int("workers"); n > 0 {
			cfg.WorkerCount = int(n)
		}
		if cfg.StorageDSN == "" {
			return fmt.Errorf("worker: a storage_dsn (or -store) is required")
		}

		console := sink.NewStdConsole()
		machine, err := bootstrap(cfg.StorageDSN, console)
		if err != nil {
			return err
		}

		workers := make([]*queue.Worker, 0, cfg.WorkerCount)
		for i := 0; i < cfg.WorkerCount; i++ {
			w := queue.NewWorker(i, machine.Queue, machine, cfg.Filters, cfg.WorkerPollInterval)
			workers = append(workers, w)
			w.Start()
		}
		console.Logger().Printf("started %d worker(s)", len(workers))

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
		<-sigCh

		console.Logger().Print("shutting down")
		for _, w := range workers {
			w.Stop()
		}
		return nil
	},
}
