package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"
	"sessionrelay/internal/app"
	"sessionrelay/internal/config"
	"sessionrelay/internal/logging"
)

// options holds the command-line overrides
type options struct {
	configPath string
	envFile    string
	port       int
	logLevel   string
	help       bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// run blocks until ctx is cancelled or the server fails
func run(ctx context.Context, args []string, stderr io.Writer) error {
	opts, flagSet, err := parseFlags(args, stderr)
	if err != nil {
		return err
	}
	if opts.help {
		printHelp(stderr, flagSet)
		return nil
	}

	cfg, err := loadConfig(opts, flagSet)
	if err != nil {
		return err
	}

	logger, err := logging.New(stderr, cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}

	application, err := app.NewApplication(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to create application: %w", err)
	}

	if err := application.Start(ctx); err != nil {
		stopCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer cancel()
		_ = application.Stop(stopCtx)
		return fmt.Errorf("application error: %w", err)
	}

	<-ctx.Done()
	logger.Info("shutdown requested")

	// Timeout context prevents hanging shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if err := application.Stop(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown error: %w", err)
	}
	return nil
}

func parseFlags(args []string, stderr io.Writer) (*options, *pflag.FlagSet, error) {
	opts := &options{}

	flagSet := pflag.NewFlagSet("sessionrelay", pflag.ContinueOnError)
	flagSet.SetOutput(stderr)
	flagSet.StringVarP(&opts.configPath, "config", "c", os.Getenv(config.EnvPrefix+"CONFIG_FILE"), "path to a YAML configuration file")
	flagSet.StringVar(&opts.envFile, "env-file", ".env", "load KEY=value pairs from this file before reading the environment")
	flagSet.IntVarP(&opts.port, "port", "p", 0, "listen port (overrides PORT and the config file)")
	flagSet.StringVar(&opts.logLevel, "log-level", "", "debug, info, warn or error")
	flagSet.BoolVarP(&opts.help, "help", "h", false, "show help")

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			opts.help = true
			return opts, flagSet, nil
		}
		return nil, nil, err
	}
	if rest := flagSet.Args(); len(rest) > 0 {
		return nil, nil, fmt.Errorf("unexpected argument: %s", rest[0])
	}
	return opts, flagSet, nil
}

// loadConfig layers defaults, .env, environment, file and flags
func loadConfig(opts *options, flagSet *pflag.FlagSet) (*config.Config, error) {
	// An explicitly named env file must exist; the default one is optional
	if err := config.LoadDotEnv(opts.envFile, flagSet.Changed("env-file")); err != nil {
		return nil, err
	}

	cfg, err := config.LoadConfigWithPrecedence(opts.configPath)
	if err != nil {
		return nil, err
	}

	if flagSet.Changed("port") {
		cfg.HTTP.Port = opts.port
	}
	if flagSet.Changed("log-level") {
		cfg.Log.Level = opts.logLevel
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func printHelp(w io.Writer, flagSet *pflag.FlagSet) {
	fmt.Fprintf(w, `sessionrelay relays waiting sessions to live observers and pushes
redirect decisions back to the producer that registered them.

Usage:
  sessionrelay [flags]

Configuration precedence (lowest first): defaults, environment
(PORT and SESSIONRELAY_*), the YAML file given by --config, flags.

Flags:
`)
	flagSet.PrintDefaults()
}
