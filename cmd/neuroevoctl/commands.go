package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"neuroevo/internal/config"
	"neuroevo/internal/storage"
	"neuroevo/internal/task"
	api "neuroevo/pkg/neuroevo"
)

type cliOptions struct {
	stdout io.Writer
	stderr io.Writer

	configPath string
	jsonOut    bool
	cfg        config.RunConfig

	logger *slog.Logger
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	opts := &cliOptions{stdout: stdout, stderr: stderr, cfg: config.Default()}

	root := &cobra.Command{
		Use:           "neuroevoctl",
		Short:         "Evolve and train fixed-topology feedforward networks",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return opts.resolveConfig(cmd)
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	pf := root.PersistentFlags()
	pf.StringVar(&opts.configPath, "config", "", "YAML or INI run config; flags override file values")
	pf.StringVar(&opts.cfg.Store, "store", opts.cfg.Store, "store backend: "+strings.Join(storage.Kinds, ", "))
	pf.StringVar(&opts.cfg.StorePath, "store-path", opts.cfg.StorePath, "sqlite file or badger directory")
	pf.StringVar(&opts.cfg.ArtifactsDir, "artifacts-dir", opts.cfg.ArtifactsDir, "directory for run artifacts (empty disables)")
	pf.StringVar(&opts.cfg.LogLevel, "log-level", opts.cfg.LogLevel, "debug, info, warn or error")
	pf.BoolVar(&opts.jsonOut, "json", false, "emit machine-readable JSON")

	root.AddCommand(
		newEvolveCmd(opts),
		newTrainCmd(opts),
		newInspectCmd(opts),
		newRunsCmd(opts),
		newHistoryCmd(opts),
		newTasksCmd(opts),
	)
	return root
}

// resolveConfig layers flags set on the command line over the config file.
func (o *cliOptions) resolveConfig(cmd *cobra.Command) error {
	if o.configPath != "" {
		changed := map[string]string{}
		cmd.Flags().Visit(func(f *pflag.Flag) {
			changed[f.Name] = f.Value.String()
		})
		loaded, err := config.Load(o.configPath)
		if err != nil {
			return err
		}
		o.cfg = loaded
		for name, value := range changed {
			if err := cmd.Flags().Set(name, value); err != nil {
				return fmt.Errorf("reapply --%s: %w", name, err)
			}
		}
	}
	if err := o.cfg.Validate(); err != nil {
		return err
	}
	o.logger = newLogger(o.stderr, o.cfg.Level())
	return nil
}

func (o *cliOptions) client(reg prometheus.Registerer) (*api.Client, error) {
	return api.New(api.Options{
		StoreKind:    o.cfg.Store,
		StorePath:    o.cfg.StorePath,
		ArtifactsDir: o.cfg.ArtifactsDir,
		Logger:       o.logger,
		Registerer:   reg,
	})
}

// taskName registers the configured table file, if any, and returns the
// task the run should use.
func (o *cliOptions) taskName(client *api.Client) (string, error) {
	if o.cfg.TaskFile == "" {
		return o.cfg.Task, nil
	}
	return client.LoadTableTask(o.cfg.TaskFile)
}

func bindShapeFlags(fs *pflag.FlagSet, cfg *config.RunConfig) {
	fs.StringVar(&cfg.Task, "task", cfg.Task, "task name")
	fs.StringVar(&cfg.TaskFile, "task-file", cfg.TaskFile, "CSV table to use as the task; class* columns are targets")
	fs.IntVar(&cfg.HiddenLayers, "hidden-layers", cfg.HiddenLayers, "number of hidden layers")
	fs.IntVar(&cfg.Inputs, "inputs", cfg.Inputs, "input width")
	fs.IntVar(&cfg.HiddenWidth, "hidden-width", cfg.HiddenWidth, "hidden layer width")
	fs.IntVar(&cfg.Outputs, "outputs", cfg.Outputs, "output width")
	fs.Int64Var(&cfg.Seed, "seed", cfg.Seed, "random seed")
}

func newEvolveCmd(opts *cliOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "evolve",
		Short: "Run the genetic engine on a task",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runEvolve(cmd.Context(), opts)
		},
	}
	fs := cmd.Flags()
	bindShapeFlags(fs, &opts.cfg)
	fs.IntVar(&opts.cfg.PopulationSize, "population", opts.cfg.PopulationSize, "population size")
	fs.IntVar(&opts.cfg.EliteCount, "elite", opts.cfg.EliteCount, "elite individuals kept per generation")
	fs.IntVar(&opts.cfg.Generations, "generations", opts.cfg.Generations, "maximum generations")
	fs.Float64Var(&opts.cfg.FitnessGoal, "fitness-goal", opts.cfg.FitnessGoal, "stop once best fitness reaches this value (0 disables)")
	fs.Float64Var(&opts.cfg.MutationRate, "mutation-rate", opts.cfg.MutationRate, "base per-weight mutation probability")
	fs.Float64Var(&opts.cfg.MutationIntensity, "mutation-intensity", opts.cfg.MutationIntensity, "base mutation standard deviation")
	fs.Float64Var(&opts.cfg.CrossoverRate, "crossover-rate", opts.cfg.CrossoverRate, "crossover probability")
	fs.IntVar(&opts.cfg.Workers, "workers", opts.cfg.Workers, "parallel fitness workers")
	fs.StringVar(&opts.cfg.MetricsAddr, "metrics-addr", opts.cfg.MetricsAddr, "serve Prometheus metrics on this address during the run")
	return cmd
}

func runEvolve(ctx context.Context, opts *cliOptions) error {
	var reg *prometheus.Registry
	if opts.cfg.MetricsAddr != "" {
		reg = prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		stop, err := serveMetrics(opts.cfg.MetricsAddr, reg, opts.logger)
		if err != nil {
			return err
		}
		defer stop()
	}

	var registerer prometheus.Registerer
	if reg != nil {
		registerer = reg
	}
	client, err := opts.client(registerer)
	if err != nil {
		return err
	}
	defer client.Close()

	taskName, err := opts.taskName(client)
	if err != nil {
		return err
	}
	cfg := opts.cfg
	summary, err := client.Run(ctx, api.RunRequest{
		Task:              taskName,
		HiddenLayers:      cfg.HiddenLayers,
		Inputs:            cfg.Inputs,
		HiddenWidth:       cfg.HiddenWidth,
		Outputs:           cfg.Outputs,
		Population:        cfg.PopulationSize,
		EliteCount:        cfg.EliteCount,
		Generations:       cfg.Generations,
		FitnessGoal:       cfg.FitnessGoal,
		MutationRate:      cfg.MutationRate,
		MutationIntensity: cfg.MutationIntensity,
		CrossoverRate:     cfg.CrossoverRate,
		Seed:              cfg.Seed,
		Workers:           cfg.Workers,
	})
	if err != nil {
		return err
	}
	if opts.jsonOut {
		return writeJSON(opts.stdout, summary)
	}
	printRunSummary(opts.stdout, summary)
	return nil
}

func newTrainCmd(opts *cliOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "train",
		Short: "Fit a single network to a task by backpropagation",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := opts.client(nil)
			if err != nil {
				return err
			}
			defer client.Close()

			taskName, err := opts.taskName(client)
			if err != nil {
				return err
			}
			cfg := opts.cfg
			summary, err := client.Train(cmd.Context(), api.TrainRequest{
				Task:         taskName,
				HiddenLayers: cfg.HiddenLayers,
				Inputs:       cfg.Inputs,
				HiddenWidth:  cfg.HiddenWidth,
				Outputs:      cfg.Outputs,
				Epochs:       cfg.Epochs,
				LearningRate: cfg.LearningRate,
				ErrorGoal:    cfg.ErrorGoal,
				Seed:         cfg.Seed,
			})
			if err != nil {
				return err
			}
			if opts.jsonOut {
				return writeJSON(opts.stdout, summary)
			}
			printTrainSummary(opts.stdout, summary)
			return nil
		},
	}
	fs := cmd.Flags()
	bindShapeFlags(fs, &opts.cfg)
	fs.IntVar(&opts.cfg.Epochs, "epochs", opts.cfg.Epochs, "maximum training epochs")
	fs.Float64Var(&opts.cfg.LearningRate, "learning-rate", opts.cfg.LearningRate, "backpropagation learning rate")
	fs.Float64Var(&opts.cfg.ErrorGoal, "error-goal", opts.cfg.ErrorGoal, "stop once mean error falls to this value")
	return cmd
}

func newInspectCmd(opts *cliOptions) *cobra.Command {
	var (
		latest bool
		input  string
	)
	cmd := &cobra.Command{
		Use:   "inspect [run-id]",
		Short: "Show a run's champion network",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := opts.client(nil)
			if err != nil {
				return err
			}
			defer client.Close()

			summary, err := client.Inspect(cmd.Context(), firstArg(args), latest)
			if err != nil {
				return err
			}
			var outputs []float64
			if input != "" {
				values, err := parseFloats(input)
				if err != nil {
					return err
				}
				outputs, err = client.Predict(cmd.Context(), summary.Run.ID, values)
				if err != nil {
					return err
				}
			}
			if opts.jsonOut {
				return writeJSON(opts.stdout, struct {
					api.InspectSummary
					Outputs []float64 `json:"outputs,omitempty"`
				}{summary, outputs})
			}
			printInspect(opts.stdout, summary, outputs)
			return nil
		},
	}
	cmd.Flags().BoolVar(&latest, "latest", false, "inspect the most recent run")
	cmd.Flags().StringVar(&input, "input", "", "comma-separated input to feed through the champion")
	return cmd
}

func newRunsCmd(opts *cliOptions) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recorded runs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if limit <= 0 {
				return errors.New("limit must be > 0")
			}
			client, err := opts.client(nil)
			if err != nil {
				return err
			}
			defer client.Close()

			runs, err := client.Runs(cmd.Context(), api.RunsRequest{Limit: limit})
			if err != nil {
				return err
			}
			if opts.jsonOut {
				return writeJSON(opts.stdout, runs)
			}
			printRuns(opts.stdout, runs, time.Now())
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "max runs to list")
	return cmd
}

func newHistoryCmd(opts *cliOptions) *cobra.Command {
	var latest bool
	cmd := &cobra.Command{
		Use:   "history [run-id]",
		Short: "Print per-generation statistics of a run",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := opts.client(nil)
			if err != nil {
				return err
			}
			defer client.Close()

			history, err := client.History(cmd.Context(), api.HistoryRequest{RunID: firstArg(args), Latest: latest})
			if err != nil {
				return err
			}
			if opts.jsonOut {
				return writeJSON(opts.stdout, history)
			}
			printHistory(opts.stdout, history)
			return nil
		},
	}
	cmd.Flags().BoolVar(&latest, "latest", false, "show the most recent run")
	return cmd
}

func newTasksCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "tasks",
		Short: "List registered tasks",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			for _, name := range task.Names() {
				t, err := task.Resolve(name)
				if err != nil {
					return err
				}
				fmt.Fprintf(opts.stdout, "%-6s inputs=%d outputs=%d  %s\n", name, t.Inputs(), t.Outputs(), t.Description())
			}
			return nil
		},
	}
}

// serveMetrics exposes reg on addr until the returned stop function runs.
func serveMetrics(addr string, reg *prometheus.Registry, logger *slog.Logger) (func(), error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen on metrics address %s: %w", addr, err)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server stopped", slog.String("error", err.Error()))
		}
	}()
	logger.Info("serving metrics", slog.String("addr", ln.Addr().String()))

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}, nil
}

func firstArg(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[0]
}

func parseFloats(s string) ([]float64, error) {
	parts := strings.Split(s, ",")
	out := make([]float64, 0, len(parts))
	for _, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, fmt.Errorf("parse input %q: %w", p, err)
		}
		out = append(out, v)
	}
	return out, nil
}
