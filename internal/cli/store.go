package cli

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/roach88/nidstore/internal/config"
	"github.com/roach88/nidstore/internal/nid"
	"github.com/roach88/nidstore/internal/store"
)

// loadConfig reads the configuration, applying --backend and --db when set.
func (o *RootOptions) loadConfig() (config.Config, error) {
	cfg, err := config.Load(o.Config, func(c *config.Config) {
		if o.Backend != "" {
			c.Backend = o.Backend
		}
		if o.Path != "" {
			c.Path = o.Path
		}
		if o.Verbose {
			c.LogLevel = "debug"
		}
	})
	if err != nil {
		return config.Config{}, WrapExitError(ExitCommandError, "failed to load config", err)
	}
	return cfg, nil
}

// newLogger builds the CLI logger: tint on a terminal-aware writer, or
// JSON when log_format is json.
func newLogger(cfg config.Config, w io.Writer) *slog.Logger {
	if cfg.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: cfg.Level()}))
	}

	noColor := true
	if f, ok := w.(*os.File); ok {
		noColor = !isatty.IsTerminal(f.Fd())
		w = colorable.NewColorable(f)
	}
	return slog.New(tint.NewHandler(w, &tint.Options{
		Level:      cfg.Level(),
		TimeFormat: "15:04:05.000",
		NoColor:    noColor,
	}))
}

// openStore loads the configuration and starts a Store over the configured
// backend. The returned func stops it.
func (o *RootOptions) openStore(cmd *cobra.Command) (*store.Store, func(), error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, nil, err
	}

	logger := o.Logger
	if logger == nil {
		logger = newLogger(cfg, cmd.ErrOrStderr())
	}

	var open store.Opener
	switch cfg.Backend {
	case config.BackendSQLite:
		open = store.SQLiteOpener(cfg.Path)
	default:
		open = store.NewMemoryBackend().Opener()
	}

	st := store.New(open,
		store.WithName(cfg.Name),
		store.WithLogger(logger),
		store.WithWorkers(cfg.Workers),
	)
	if err := st.Start(commandContext(cmd)); err != nil {
		return nil, nil, WrapExitError(ExitCommandError, "failed to open store", err)
	}
	logger.Debug("store opened", "backend", cfg.Backend, "path", cfg.Path)

	return st, func() {
		if err := st.Close(); err != nil {
			logger.Error("error closing store", "error", err)
		}
	}, nil
}

// commandContext returns the command's context, or Background when the
// command was executed without one.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// parseNid parses a decimal nid argument.
func parseNid(s string) (nid.Nid, error) {
	v, err := strconv.ParseInt(s, 10, 32)
	if err != nil {
		return nid.Unset, NewExitError(ExitCommandError, fmt.Sprintf("invalid nid %q", s))
	}
	return nid.Nid(v), nil
}

// readInput returns the bytes given as --hex, or the contents of the file
// named by the first argument.
func readInput(hexInput string, args []string) ([]byte, error) {
	switch {
	case hexInput != "" && len(args) > 0:
		return nil, NewExitError(ExitCommandError, "use either --hex or a file argument, not both")
	case hexInput != "":
		data, err := hex.DecodeString(strings.TrimSpace(hexInput))
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "invalid --hex", err)
		}
		return data, nil
	case len(args) > 0:
		data, err := os.ReadFile(args[0])
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "failed to read input", err)
		}
		return data, nil
	}
	return nil, NewExitError(ExitCommandError, "no input: pass a file or --hex")
}
