package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/tonimelisma/pdmq/internal/config"
	"github.com/tonimelisma/pdmq/internal/idp"
	"github.com/tonimelisma/pdmq/internal/metrics"
	"github.com/tonimelisma/pdmq/internal/orchestrator"
	"github.com/tonimelisma/pdmq/internal/sqlconn"
)

// version is set at build time via ldflags.
var version = "dev"

// Global persistent flags, bound in newRootCmd().
var (
	flagConfigPath      string
	flagCacheLocation   string
	flagJSON            bool
	flagVerbose         bool
	flagQuiet           bool
	flagMetricsTextfile string
)

// httpClientTimeout bounds OIDC discovery requests.
const httpClientTimeout = 30 * time.Second

func defaultHTTPClient() *http.Client {
	return &http.Client{Timeout: httpClientTimeout}
}

// skipConfigCommands lists commands that must work even when the config
// file is missing or broken.
var skipConfigCommands = map[string]bool{
	"pdmq config path": true,
	"pdmq config init": true,
}

// CLIFlags is a snapshot of the global flags for one invocation.
type CLIFlags struct {
	ConfigPath      string
	CacheLocation   string
	JSON            bool
	Verbose         bool
	Quiet           bool
	MetricsTextfile string
}

// CLIContext carries everything a subcommand needs. It is built once in
// PersistentPreRunE and stored in the command context.
type CLIContext struct {
	Flags   CLIFlags
	Cfg     *config.Resolved
	Holder  *config.Holder
	Logger  *slog.Logger
	Metrics *metrics.Metrics
	Out     io.Writer
	ErrOut  io.Writer

	engines *sqlconn.EngineCache
	orch    *orchestrator.Orchestrator
}

type cliContextKey struct{}

func withCLIContext(ctx context.Context, cc *CLIContext) context.Context {
	return context.WithValue(ctx, cliContextKey{}, cc)
}

// mustCLIContext returns the CLIContext stored by the root pre-run. Calling
// it from a command that skipped the pre-run is a programming error.
func mustCLIContext(ctx context.Context) *CLIContext {
	cc, ok := ctx.Value(cliContextKey{}).(*CLIContext)
	if !ok {
		panic("pdmq: CLIContext missing from command context")
	}

	return cc
}

// newRootCmd builds and returns the fully-assembled root command with all
// subcommands registered. Called once from main().
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "pdmq",
		Short:   "Query the PDM database as a named user",
		Long:    "Run SQL against the PDM database with a cached, silently refreshed Azure AD token.",
		Version: version,
		// Silence Cobra's default error/usage printing; main handles it.
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			flags := currentFlags()

			if skipConfigCommands[cmd.CommandPath()] {
				cmd.SetContext(withCLIContext(cmd.Context(), &CLIContext{
					Flags:  flags,
					Logger: buildLogger(nil, flags),
					Out:    cmd.OutOrStdout(),
					ErrOut: cmd.ErrOrStderr(),
				}))

				return nil
			}

			cc, err := loadCLIContext(cmd, flags)
			if err != nil {
				return err
			}

			cmd.SetContext(withCLIContext(cmd.Context(), cc))

			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			return mustCLIContext(cmd.Context()).Close()
		},
	}

	cmd.PersistentFlags().StringVar(&flagConfigPath, "config", "", "config file path")
	cmd.PersistentFlags().StringVar(&flagCacheLocation, "cache-location", "", "token cache file path")
	cmd.PersistentFlags().BoolVar(&flagJSON, "json", false, "output in JSON format")
	cmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "enable debug logging")
	cmd.PersistentFlags().BoolVarP(&flagQuiet, "quiet", "q", false, "suppress informational output")
	cmd.PersistentFlags().StringVar(&flagMetricsTextfile, "metrics-textfile", "",
		"write Prometheus metrics to this file on exit")
	cmd.MarkFlagsMutuallyExclusive("verbose", "quiet")

	cmd.AddCommand(newQueryCmd())
	cmd.AddCommand(newLoginCmd())
	cmd.AddCommand(newLogoutCmd())
	cmd.AddCommand(newWhoamiCmd())
	cmd.AddCommand(newConfigCmd())

	return cmd
}

func currentFlags() CLIFlags {
	return CLIFlags{
		ConfigPath:      flagConfigPath,
		CacheLocation:   flagCacheLocation,
		JSON:            flagJSON,
		Verbose:         flagVerbose,
		Quiet:           flagQuiet,
		MetricsTextfile: flagMetricsTextfile,
	}
}

// loadCLIContext resolves the effective configuration from the four-layer
// override chain and builds the shared state for subcommands.
func loadCLIContext(cmd *cobra.Command, flags CLIFlags) (*CLIContext, error) {
	cli := config.CLIOverrides{
		ConfigPath:    flags.ConfigPath,
		CacheLocation: flags.CacheLocation,
	}

	if f := cmd.Flags().Lookup("shortname"); f != nil && f.Changed {
		cli.ShortName = f.Value.String()
	}

	resolved, err := config.Resolve(config.ReadEnvOverrides(), cli)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	return &CLIContext{
		Flags:   flags,
		Cfg:     resolved,
		Holder:  config.NewHolder(resolved.Config, resolved.Path),
		Logger:  buildLogger(resolved, flags),
		Metrics: metrics.New(),
		Out:     cmd.OutOrStdout(),
		ErrOut:  cmd.ErrOrStderr(),
	}, nil
}

// Orchestrator returns the query orchestrator, building it on first use so
// subcommands can adjust the auth config (e.g. login --device-code) first.
func (cc *CLIContext) Orchestrator() *orchestrator.Orchestrator {
	if cc.orch != nil {
		return cc.orch
	}

	cfg := cc.Holder.Config()

	registry := sqlconn.NewDefaultRegistry("pdmq/" + version)
	cc.engines = sqlconn.NewEngineCache(registry, sqlconn.PoolOptions{
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetimeDuration(),
	}, cc.Metrics, cc.Logger)

	cc.orch = orchestrator.New(orchestrator.Options{
		Holder:       cc.Holder,
		Engines:      cc.engines,
		OpenProvider: orchestrator.ProviderFromConfig(cfg.Auth, displayDeviceCode, nil, defaultHTTPClient()),
		Metrics:      cc.Metrics,
		Logger:       cc.Logger,
	})

	return cc.orch
}

// Close disposes the engine and writes the metrics textfile if requested.
func (cc *CLIContext) Close() error {
	var errs []error

	if cc.engines != nil {
		if err := cc.engines.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing database engine: %w", err))
		}
	}

	if cc.Flags.MetricsTextfile != "" && cc.Metrics != nil {
		if err := cc.Metrics.WriteTextfile(cc.Flags.MetricsTextfile); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// displayDeviceCode prints device code instructions. The prompt must always
// be visible, so it ignores --quiet.
func displayDeviceCode(da idp.DeviceAuth) {
	if da.Message != "" {
		fmt.Fprintln(os.Stderr, da.Message)
		return
	}

	fmt.Fprintf(os.Stderr, "To sign in, visit: %s\n", da.VerificationURI)
	fmt.Fprintf(os.Stderr, "Enter code: %s\n", da.UserCode)
}

// buildLogger creates an slog.Logger configured by the resolved config and
// CLI flags. Config-file log level provides the baseline; --verbose and
// --quiet override it because CLI flags always win.
func buildLogger(resolved *config.Resolved, flags CLIFlags) *slog.Logger {
	level := slog.LevelWarn

	if resolved != nil {
		switch resolved.Logging.LogLevel {
		case "debug":
			level = slog.LevelDebug
		case "info":
			level = slog.LevelInfo
		case "error":
			level = slog.LevelError
		}
	}

	if flags.Verbose {
		level = slog.LevelDebug
	}

	if flags.Quiet {
		level = slog.LevelError
	}

	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// exitOnError prints a user-friendly error message to stderr and exits.
func exitOnError(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}
