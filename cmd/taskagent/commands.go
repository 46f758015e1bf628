package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Ananthavalli1991/ananthi-tdsproj1/internal/operation"
	"github.com/Ananthavalli1991/ananthi-tdsproj1/internal/ops"
	"github.com/Ananthavalli1991/ananthi-tdsproj1/internal/runtime"
	"github.com/Ananthavalli1991/ananthi-tdsproj1/internal/server"
)

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		Long: `Start the HTTP API.

Endpoints:
  POST /run?task=...                          Execute a task
  GET  /read?path=...                         Read a file under the data root
  GET  /filter_csv?file_path=&column=&value=  Filter CSV rows
  GET  /health, /metrics`,
		Run: func(cmd *cobra.Command, args []string) {
			a, err := newApp(cfg)
			if err != nil {
				exitOnError(err)
			}
			grace, _ := cmd.Flags().GetDuration("shutdown-timeout")

			srv := server.New(a.agent, a.guard, a.metrics, cfg.ListenAddr)
			mgr := runtime.NewShutdownManager(grace)
			// Handlers run in reverse: stop HTTP, drain the pool, flush logs.
			mgr.RegisterSimple("log-sync", logSync)
			mgr.Register("worker-pool", a.pool.Drain)
			mgr.Register("http-server", srv.Shutdown)
			mgr.ListenForSignals()

			if err := srv.Serve(mgr.Context()); err != nil {
				mgr.Shutdown()
				exitOnError(err)
			}
			if err := mgr.Shutdown(); err != nil {
				exitOnError(err)
			}
		},
	}
	cmd.Flags().String("addr", "", "Listen address (AGENT_LISTEN_ADDR)")
	cmd.Flags().Bool("render", false, "Render scraped pages in a headless browser")
	cmd.Flags().Duration("shutdown-timeout", runtime.DefaultShutdownTimeout, "Grace period for in-flight tasks")
	return cmd
}

func runCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <task>",
		Short: "Execute one task",
		Long: `Execute one plain-English task and print the result.

Use --op to skip classification and force an operation from 'taskagent ops'.`,
		Args: cobra.MinimumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			a, err := newApp(cfg)
			if err != nil {
				exitOnError(err)
			}
			task := strings.Join(args, " ")
			timeout, _ := cmd.Flags().GetDuration("timeout")
			ctx, cancel := context.WithTimeout(context.Background(), timeout)
			defer cancel()

			var res operation.Result
			if op, _ := cmd.Flags().GetString("op"); op != "" {
				res = a.agent.HandleAs(ctx, operation.ID(op), task)
			} else {
				res = a.agent.Handle(ctx, task)
			}

			fmt.Print(renderer().Result(res))
			if !res.OK() {
				logSync()
				os.Exit(1)
			}
		},
	}
	cmd.Flags().String("op", "", "Operation to run without classification")
	cmd.Flags().Duration("timeout", 5*time.Minute, "Time to wait for a worker slot")
	return cmd
}

func readCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "read <path>",
		Short: "Print a file from the data root",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			a, err := newApp(cfg)
			if err != nil {
				exitOnError(err)
			}
			data, err := a.guard.ReadFile(ops.LocalPath(args[0]))
			if err != nil {
				exitOnError(err)
			}
			fmt.Print(renderer().Content(args[0], data))
		},
	}
}

func opsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ops",
		Short: "List the operation catalog",
		Run: func(cmd *cobra.Command, args []string) {
			a, err := newApp(cfg)
			if err != nil {
				exitOnError(err)
			}
			fmt.Print(renderer().Operations(a.catalog.Specs()))
		},
	}
}
