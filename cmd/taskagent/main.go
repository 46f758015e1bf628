// Package main provides the task agent CLI entrypoint.
package main

import (
	"fmt"
	"net/http"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/Ananthavalli1991/ananthi-tdsproj1/internal/classifier"
	"github.com/Ananthavalli1991/ananthi-tdsproj1/internal/config"
	"github.com/Ananthavalli1991/ananthi-tdsproj1/internal/exec"
	"github.com/Ananthavalli1991/ananthi-tdsproj1/internal/executor"
	"github.com/Ananthavalli1991/ananthi-tdsproj1/internal/llm"
	"github.com/Ananthavalli1991/ananthi-tdsproj1/internal/logging"
	"github.com/Ananthavalli1991/ananthi-tdsproj1/internal/metrics"
	"github.com/Ananthavalli1991/ananthi-tdsproj1/internal/operation"
	"github.com/Ananthavalli1991/ananthi-tdsproj1/internal/ops"
	"github.com/Ananthavalli1991/ananthi-tdsproj1/internal/pathguard"
	"github.com/Ananthavalli1991/ananthi-tdsproj1/internal/render"
)

var (
	version = "0.1.0"
	cfg     *config.AgentEnv
	pretty  = true
	asJSON  bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "taskagent",
		Short: "Plain-English task agent confined to a data directory",
		Long: `taskagent: run data-processing tasks described in plain English.

Usage modes:
  taskagent serve          Start the HTTP API (/run, /read, /filter_csv)
  taskagent run <task>     Execute one task and print the result
  taskagent read <path>    Print a file from the data root
  taskagent ops            List the operation catalog

Every file the agent touches must lie under the data root.`,
		Version: version,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			var err error
			cfg, err = config.Load()
			if err != nil {
				fmt.Fprintf(os.Stderr, "Warning: %v (using environment only)\n", err)
			}
			applyFlags(cmd)

			logging.Setup(os.Stderr, logging.Level(cfg.LogLevel))
			if !term.IsTerminal(int(os.Stdout.Fd())) || !pretty {
				color.NoColor = true
			}
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			logging.Sync()
		},
	}

	rootCmd.PersistentFlags().String("root", "", "Data root directory (AGENT_DATA_ROOT)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().Int("workers", 0, "Concurrent task slots (AGENT_WORKERS)")
	rootCmd.PersistentFlags().BoolVar(&pretty, "pretty", true, "Pretty print output")
	rootCmd.PersistentFlags().BoolVar(&asJSON, "json", false, "Output as JSON")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(readCmd())
	rootCmd.AddCommand(opsCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// applyFlags overlays explicitly set flags on the loaded configuration.
func applyFlags(cmd *cobra.Command) {
	flags := cmd.Flags()
	if flags.Changed("root") {
		cfg.DataRoot, _ = flags.GetString("root")
	}
	if flags.Changed("log-level") {
		cfg.LogLevel, _ = flags.GetString("log-level")
	}
	if flags.Changed("workers") {
		cfg.Workers, _ = flags.GetInt("workers")
	}
	if flags.Changed("addr") {
		cfg.ListenAddr, _ = flags.GetString("addr")
	}
	if flags.Changed("render") {
		cfg.BrowserRender, _ = flags.GetBool("render")
	}
}

// app is the fully wired agent.
type app struct {
	guard   *pathguard.Guard
	catalog *operation.Catalog
	pool    *executor.Pool
	agent   *executor.Agent
	metrics *metrics.Metrics
}

func newApp(env *config.AgentEnv) (*app, error) {
	if err := env.Validate(); err != nil {
		return nil, err
	}
	guard, err := pathguard.New(env.DataRoot)
	if err != nil {
		return nil, fmt.Errorf("data root: %w", err)
	}

	var model llm.Backend
	if env.LLMToken != "" {
		model = llm.NewOpenAI(env.LLMToken, env.LLMBaseURL,
			llm.WithModel(env.Model),
			llm.WithTimeout(env.LLMTimeout))
	} else {
		logging.New("main").Warn("model_disabled", map[string]any{"reason": "no AIPROXY_TOKEN or AGENT_LLM_TOKEN"}, nil)
	}

	catalog := ops.NewCatalog(ops.Deps{
		Guard:       guard,
		Runner:      exec.NewOSRunner(),
		Model:       model,
		HTTP:        &http.Client{Timeout: env.FetchTimeout},
		Renderer:    &ops.BrowserRenderer{Timeout: env.FetchTimeout},
		UserEmail:   env.UserEmail,
		DatagenURL:  env.DatagenURL,
		RenderPages: env.BrowserRender,
	})

	m := metrics.Global()
	pool := executor.NewPool(env.Workers, m)
	agent := executor.NewAgent(classifier.New(catalog, model), executor.New(catalog, m), pool, m)
	return &app{guard: guard, catalog: catalog, pool: pool, agent: agent, metrics: m}, nil
}

func renderer() *render.Renderer {
	return render.New(pretty, asJSON)
}
