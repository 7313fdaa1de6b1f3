package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"runtime/debug"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	pflag "github.com/spf13/pflag"

	"github.com/keeval/keeval"
	httpadapter "github.com/keeval/keeval/internal/adapters/http"
	"github.com/keeval/keeval/internal/cliconfig"
	"github.com/keeval/keeval/internal/metrics"
	"github.com/keeval/keeval/pkg/log"
)

const longHelp = `keeval serves a key-value store over HTTP.

Every write is appended to a journal of JSON lines and replayed on start.
Configure via file ($HOME/.keeval/config.toml), KEEVAL_* environment
variables, or flags, in increasing order of precedence.`

var exampleUsage = strings.TrimSpace(`
  keeval --data-file /var/lib/keeval/data.json --listen :3000
  keeval consolidate --data-file data.json
  keeval dump --data-file data.json --pretty
`)

func getVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "dev"
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		reportError(os.Stderr, err)
		os.Exit(1)
	}
}

func reportError(w io.Writer, err error) {
	logger := log.NewConsoleLogger(w)
	logger.Error().Err(err).Msg("keeval")
}

// cli carries the flag-bound configuration shared by all commands.
type cli struct {
	cfg     cliconfig.Config
	cfgPath string
	// changed holds the flags set on the command line, filled by resolve.
	changed map[string]bool
}

func newRootCmd() *cobra.Command {
	c := &cli{cfg: cliconfig.DefaultConfig()}

	root := &cobra.Command{
		Use:           "keeval",
		Short:         "Journal-backed key-value store with an HTTP interface",
		Long:          longHelp,
		Example:       exampleUsage,
		Version:       fmt.Sprintf("%s %s/%s", getVersion(), runtime.GOOS, runtime.GOARCH),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgFile, err := c.resolve(cmd)
			if err != nil {
				return err
			}
			logger, closer, err := cliconfig.Logger(c.cfg)
			if err != nil {
				return err
			}
			defer closer.Close()

			logger.Info().Interface("config", c.cfg).Msg("configuration")

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, c.cfg, cliconfig.LogLevelReloader(c.changed), cfgFile, logger)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&c.cfgPath, "config", "", "path to config file (default: $HOME/.keeval/config.toml)")
	pf.StringVar(&c.cfg.DataFile, "data-file", c.cfg.DataFile, "journal file path")
	pf.BoolVar(&c.cfg.StrictCommands, "strict-commands", c.cfg.StrictCommands, "treat unknown journal commands as corruption")
	pf.BoolVar(&c.cfg.Sync, "sync", c.cfg.Sync, "fsync the journal after every append")
	pf.StringVar(&c.cfg.LogLevel, "log-level", c.cfg.LogLevel, "log level (debug, info, warn, error)")
	pf.StringVar(&c.cfg.LogFile, "log-file", c.cfg.LogFile, "write JSON logs to a rotating file instead of stderr")

	f := root.Flags()
	f.StringVar(&c.cfg.Listen, "listen", c.cfg.Listen, "HTTP listen address")
	f.BoolVar(&c.cfg.Replay, "replay", c.cfg.Replay, "replay the journal on start")
	f.IntVar(&c.cfg.MaxBodyBytes, "max-body-bytes", c.cfg.MaxBodyBytes, "maximum request body size")
	f.DurationVar(&c.cfg.ShutdownTimeout, "shutdown-timeout", c.cfg.ShutdownTimeout, "grace period for in-flight requests on shutdown")
	f.BoolVar(&c.cfg.WatchConfig, "watch-config", c.cfg.WatchConfig, "reload log level when the config file changes")

	root.AddCommand(newConsolidateCmd(c), newDumpCmd(c))
	return root
}

// resolve layers the config file and environment under explicitly set flags
// and validates the result. It returns the config file path in use, if any.
func (c *cli) resolve(cmd *cobra.Command) (string, error) {
	cfgFile := c.cfgPath
	if cfgFile == "" {
		cfgFile = cliconfig.DefaultConfigPath()
	}

	changed := map[string]bool{}
	cmd.Flags().Visit(func(f *pflag.Flag) { changed[f.Name] = true })
	c.changed = changed

	if cfgFile != "" && cliconfig.FileExists(cfgFile) {
		fc, err := cliconfig.LoadFileConfig(cfgFile)
		if err != nil {
			return "", fmt.Errorf("load config: %w", err)
		}
		if err := cliconfig.ApplyFileConfig(&c.cfg, fc, changed); err != nil {
			return "", err
		}
	} else if c.cfgPath != "" {
		return "", fmt.Errorf("config file %s not found", c.cfgPath)
	} else {
		cfgFile = ""
	}

	if err := cliconfig.ApplyEnvConfig(&c.cfg, changed); err != nil {
		return "", err
	}
	if err := c.cfg.Validate(); err != nil {
		return "", err
	}
	return cfgFile, nil
}

func storeConfig(cfg cliconfig.Config) keeval.Config {
	return keeval.Config{
		DataFile:       cfg.DataFile,
		Replay:         cfg.Replay,
		Sync:           cfg.Sync,
		StrictCommands: cfg.StrictCommands,
	}
}

// serve runs the HTTP server until ctx is done. When cfg.WatchConfig is set
// and cfgFile is non-empty, reload is called with each re-read of the file.
func serve(ctx context.Context, cfg cliconfig.Config, reload func(cliconfig.FileConfig) error, cfgFile string, logger zerolog.Logger) error {
	m := metrics.New()
	store, err := keeval.Open(storeConfig(cfg),
		keeval.WithLogger(log.NewZerologAdapterWithLogger(logger)),
		keeval.WithJournalObserver(m.InstrumentJournal),
	)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}

	if cfg.WatchConfig && cfgFile != "" && reload != nil {
		w := cliconfig.NewWatcher(cfgFile, reload, logger)
		if err := w.Start(ctx); err != nil {
			logger.Warn().Err(err).Msg("config watcher disabled")
		}
	}

	srv := &http.Server{
		Addr: cfg.Listen,
		Handler: httpadapter.NewHandler(store, httpadapter.HandlerConfig{
			MaxBodyBytes: int64(cfg.MaxBodyBytes),
			Logger:       logger,
			Metrics:      m,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("listen", cfg.Listen).Str("data_file", cfg.DataFile).Msg("server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	case <-ctx.Done():
		logger.Info().Msg("received signal, stopping...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	logger.Info().Msg("server stopped")
	return nil
}

// commandLogger builds the logger for the offline subcommands.
func commandLogger(cfg cliconfig.Config) (log.Logger, io.Closer, error) {
	logger, closer, err := cliconfig.Logger(cfg)
	if err != nil {
		return nil, nil, err
	}
	return log.NewZerologAdapterWithLogger(logger), closer, nil
}
