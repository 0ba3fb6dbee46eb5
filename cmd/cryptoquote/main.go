package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/sawpanic/cryptoquote/internal/application"
	"github.com/sawpanic/cryptoquote/internal/config"
	"github.com/sawpanic/cryptoquote/internal/directory"
	"github.com/sawpanic/cryptoquote/internal/interfaces/console"
	"github.com/sawpanic/cryptoquote/internal/metrics"
	"github.com/sawpanic/cryptoquote/internal/quote"
)

const (
	appName = "cryptoquote"
	version = "v1.0.0"
)

func main() {
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	zerolog.SetGlobalLevel(zerolog.WarnLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd := newRootCmd()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		if errors.Is(err, context.Canceled) {
			os.Exit(130)
		}
		log.Error().Err(err).Msg(appName + " failed")
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:     appName,
		Short:   "Look up USD prices of cryptocurrencies by name",
		Version: version,
		Long: `cryptoquote asks for a comma-separated list of coin names, matches each one
against the CoinGecko coin list (cached locally) and prints the current USD price.

Use --coins to skip the prompt in scripts.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runQuote,
	}

	flags := rootCmd.PersistentFlags()
	flags.String("config", "", "YAML config file")
	flags.String("log-level", "", "Log level (debug|info|warn|error)")
	flags.String("cache-path", "", "Coin list cache file")
	flags.Duration("max-age", 0, "Refresh the cached coin list after this age (0 never expires)")
	flags.Int("max-attempts", 0, "Coin list fetch attempts (0 asks after every failure when interactive)")

	rootCmd.Flags().String("coins", "", "Comma-separated coin names, skips the prompt")
	rootCmd.Flags().Int("concurrency", quote.DefaultConcurrency, "Concurrent price lookups")
	rootCmd.Flags().String("metrics-file", "", "Write Prometheus metrics to this textfile at exit")

	rootCmd.AddCommand(newCacheCmd())
	return rootCmd
}

// loadConfig reads --config and applies flag overrides. Only flags the user
// set take effect.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	cmd.Flags().Visit(func(f *pflag.Flag) {
		switch f.Name {
		case "log-level":
			cfg.Log.Level = f.Value.String()
		case "cache-path":
			cfg.Directory.Backend = config.BackendFile
			cfg.Directory.Path = f.Value.String()
		case "max-age":
			cfg.Directory.MaxAge, _ = cmd.Flags().GetDuration(f.Name)
		case "max-attempts":
			cfg.Directory.MaxAttempts, _ = cmd.Flags().GetInt(f.Name)
		case "concurrency":
			cfg.Quotes.Concurrency, _ = cmd.Flags().GetInt(f.Name)
		case "metrics-file":
			cfg.Metrics.Textfile = f.Value.String()
		}
	})

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	level, err := zerolog.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Log.Level, err)
	}
	zerolog.SetGlobalLevel(level)
	return cfg, nil
}

func runQuote(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	interactive := term.IsTerminal(int(os.Stdin.Fd()))
	con := console.New(os.Stdin, os.Stdout, interactive)

	store, closeStore, err := application.NewStore(cfg.Directory)
	if err != nil {
		return err
	}
	defer closeStore()

	recorder, err := application.NewRecorder(ctx, cfg.History)
	if err != nil {
		return err
	}
	defer recorder.Close()

	provider := application.NewProvider(cfg, nil)
	loader := directory.NewLoader(store, provider, directory.Config{
		MaxAge: cfg.Directory.MaxAge,
		Policy: application.NewPolicy(cfg.Directory, con, interactive),
	}, con)

	session := application.NewSession(con, loader, provider, recorder, metrics.NewCollector(), application.SessionConfig{
		Cutoff:      cfg.Resolver.Cutoff,
		MemoSize:    cfg.Resolver.MemoSize,
		Concurrency: cfg.Quotes.Concurrency,
		MetricsFile: cfg.Metrics.Textfile,
	})

	var names []string
	if cmd.Flags().Changed("coins") {
		raw, _ := cmd.Flags().GetString("coins")
		names = quote.ParseNames(raw)
	}

	log.Debug().
		Str("run_id", session.RunID()).
		Bool("interactive", interactive).
		Str("store", store.Describe()).
		Msg("Starting session")
	return session.Run(ctx, names)
}
