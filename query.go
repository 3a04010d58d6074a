package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tonimelisma/pdmq/internal/orchestrator"
)

// errNoData is returned when the identity provider yields no token. The
// diagnostic has already been logged or printed, so main exits without
// printing it.
var errNoData = errors.New("no data returned")

type queryOptions struct {
	file      string
	params    []string
	shortName string
	watch     bool
}

func newQueryCmd() *cobra.Command {
	var opts queryOptions

	cmd := &cobra.Command{
		Use:   "query [SQL]",
		Short: "Run a SQL query and print the result",
		Long: `Run a SQL query as the given user and print the result.

The SQL comes from the argument or from --file. Named parameters are bound
with --param name=value and referenced as @name in the query.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(cmd, args, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.file, "file", "f", "", "read SQL from this file")
	cmd.Flags().StringArrayVarP(&opts.params, "param", "p", nil, "bind a named parameter (name=value)")
	cmd.Flags().StringVarP(&opts.shortName, "shortname", "s", "", "user short name (default: OS login name)")
	cmd.Flags().BoolVarP(&opts.watch, "watch", "w", false, "re-run the query whenever --file changes")

	return cmd
}

func runQuery(cmd *cobra.Command, args []string, opts queryOptions) error {
	cc := mustCLIContext(cmd.Context())

	if opts.watch && opts.file == "" {
		return errors.New("--watch requires --file")
	}

	if len(args) == 1 && opts.file != "" {
		return errors.New("give the SQL as an argument or with --file, not both")
	}

	params, err := parseParams(opts.params)
	if err != nil {
		return err
	}

	format, err := outputFormat(cc.Flags.JSON, cc.Cfg.Output.Format, cc.Out)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	ctx = shutdownContext(ctx, cc.Logger)

	run := func(ctx context.Context) error {
		sqlText, err := readSQL(args, opts.file)
		if err != nil {
			return err
		}

		table, err := cc.Orchestrator().Query(ctx, sqlText, params, cc.Cfg.ShortName, cc.Flags.Verbose)
		if err != nil {
			return err
		}

		if table == nil {
			cc.reportNoData(ctx)
			return errNoData
		}

		if err := renderTable(cc.Out, format, table); err != nil {
			return err
		}

		cc.Statusf("%d row(s)\n", table.Len())

		return nil
	}

	if !opts.watch {
		return run(ctx)
	}

	return watchFile(ctx, opts.file, cc.Logger, func(ctx context.Context) {
		if err := run(ctx); err != nil && !errors.Is(err, errNoData) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
	})
}

// reportNoData prints the no-data diagnostic when the logger would drop it,
// so a quiet run still says why it exited non-zero.
func (cc *CLIContext) reportNoData(ctx context.Context) {
	if cc.Logger.Enabled(ctx, slog.LevelWarn) {
		return
	}

	shortName := cc.Cfg.ShortName
	if id, err := cc.Orchestrator().Principal(shortName); err == nil {
		shortName = id.ShortName
	}

	fmt.Fprintln(cc.ErrOut, orchestrator.NoDataMessage(shortName))
}

// readSQL returns the query text from the positional argument or the file.
func readSQL(args []string, file string) (string, error) {
	if file != "" {
		data, err := os.ReadFile(file)
		if err != nil {
			return "", fmt.Errorf("reading SQL file: %w", err)
		}

		args = []string{string(data)}
	}

	if len(args) == 0 || strings.TrimSpace(args[0]) == "" {
		return "", errors.New("no SQL given")
	}

	return args[0], nil
}

// parseParams turns name=value pairs into bind parameters. Values that parse
// as integers or floats are bound as numbers; everything else is a string.
func parseParams(pairs []string) (map[string]any, error) {
	if len(pairs) == 0 {
		return nil, nil //nolint:nilnil // no parameters
	}

	params := make(map[string]any, len(pairs))

	for _, pair := range pairs {
		name, value, ok := strings.Cut(pair, "=")
		name = strings.TrimPrefix(strings.TrimSpace(name), "@")

		if !ok || name == "" {
			return nil, fmt.Errorf("invalid --param %q: want name=value", pair)
		}

		if _, dup := params[name]; dup {
			return nil, fmt.Errorf("duplicate --param %q", name)
		}

		params[name] = paramValue(value)
	}

	return params, nil
}

func paramValue(s string) any {
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i
	}

	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}

	return s
}
