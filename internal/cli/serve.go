package cli

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"os"
	"os/signal"
	"slices"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/roach88/admincache/internal/config"
	"github.com/roach88/admincache/internal/model"
	"github.com/roach88/admincache/internal/provider"
	"github.com/roach88/admincache/internal/provider/local"
	"github.com/roach88/admincache/internal/server"
	"github.com/roach88/admincache/internal/store"
)

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	Addr string
	Seed string
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the local store over the simple-rest protocol",
		Long: `Serve the SQLite store at store.path under /api with the
simple-rest protocol, plus /healthz and /metrics.

A seed file (JSON or YAML, resource name to list of records) is loaded
into the store before serving.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Addr, "addr", "", "listen address (default server.addr)")
	cmd.Flags().StringVar(&opts.Seed, "seed", "", "seed file loaded before serving")

	return cmd
}

func runServe(ctx context.Context, opts *ServeOptions, cmd *cobra.Command) error {
	f := opts.formatter(cmd)
	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}
	logger, err := opts.newLogger(cfg.Log, f.GetErrWriter())
	if err != nil {
		return err
	}

	srv, closeStore, err := opts.newServer(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	addr := cfg.Server.Addr
	if opts.Addr != "" {
		addr = opts.Addr
	}
	if err := srv.Run(ctx, addr); err != nil {
		return WrapExitError(ExitFailure, "server stopped", err)
	}
	return nil
}

// newServer opens and seeds the store and builds the server in front of it.
func (o *ServeOptions) newServer(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*server.Server, func(), error) {
	st, err := store.Open(cfg.Store.Path)
	if err != nil {
		return nil, nil, WrapExitError(ExitCommandError, "opening store", err)
	}
	closeStore := func() {
		if err := st.Close(); err != nil {
			logger.Warn("closing store", "error", err)
		}
	}

	if o.Seed != "" {
		seed, err := readSeed(o.Seed)
		if err == nil {
			err = st.Load(ctx, seed)
		}
		if err != nil {
			closeStore()
			return nil, nil, WrapExitError(ExitCommandError, "loading seed", err)
		}
		logger.Info("seed loaded", "file", o.Seed, "resources", len(seed))
	}

	defs, err := fetchDefinitions(cfg.Schema.Path, "", "")
	if err != nil {
		closeStore()
		return nil, nil, WrapExitError(ExitCommandError, "loading schema", err)
	}
	var dp provider.DataProvider = local.New(st, local.WithLogger(logger))
	dp = provider.WithLifecycleCallbacks(dp, provider.CascadeDeletes(slices.Collect(maps.Values(defs)))...)

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	srv := server.New(dp,
		server.WithLogger(logger),
		server.WithRegistry(reg),
		server.WithAllowOrigins(cfg.Server.AllowOrigins...),
		server.WithHealthCheck(st.Ping),
	)
	return srv, closeStore, nil
}

// readSeed decodes a seed file. JSON is read by the YAML decoder.
func readSeed(path string) (map[string][]model.Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading seed file: %w", err)
	}
	var raw map[string][]map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing seed file: %w", err)
	}
	seed := make(map[string][]model.Record, len(raw))
	for resource, recs := range raw {
		out := make([]model.Record, len(recs))
		for i, rec := range recs {
			r := model.Record(rec)
			if _, err := r.ID(); err != nil {
				return nil, fmt.Errorf("seed %s[%d]: %w", resource, i, err)
			}
			out[i] = r
		}
		seed[resource] = out
	}
	return seed, nil
}
